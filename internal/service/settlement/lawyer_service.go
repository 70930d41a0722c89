package settlement

import (
	"context"
	"errors"

	"gorm.io/gorm"

	appErrors "github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/repository"
)

// LawyerService 根据登录用户解析律师身份
type LawyerService struct {
	lawyerRepo *repository.LawyerRepository
}

// NewLawyerService 创建律师身份服务
func NewLawyerService(lawyerRepo *repository.LawyerRepository) *LawyerService {
	return &LawyerService{lawyerRepo: lawyerRepo}
}

// ResolveByUserID 获取用户对应的执业律师，停用律师视为不存在
func (s *LawyerService) ResolveByUserID(ctx context.Context, userID int64) (*models.Lawyer, error) {
	lawyer, err := s.lawyerRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrLawyerNotFound
		}
		return nil, appErrors.ErrDatabaseError.WithError(err)
	}
	if lawyer.Status != models.LawyerStatusActive {
		return nil, appErrors.ErrLawyerNotFound
	}
	return lawyer, nil
}
