package models

import "time"

// Lawyer 律师档案（由律师入驻模块维护，结算只读取评分与完成单数）
type Lawyer struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Name           string    `gorm:"type:varchar(64);not null" json:"name"`
	Rating         float64   `gorm:"type:decimal(3,2);not null;default:0" json:"rating"`
	CompletedCount int       `gorm:"not null;default:0" json:"completed_count"`
	Status         int8      `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Lawyer) TableName() string {
	return "lawyers"
}

// LawyerStatus 律师状态
const (
	LawyerStatusDisabled = 0 // 停用
	LawyerStatusActive   = 1 // 正常执业
)

// ConsultationPaid 咨询完成且订单已支付事件
type ConsultationPaid struct {
	ConsultationID int64  `json:"consultation_id"`
	LawyerID       int64  `json:"lawyer_id"`
	OrderNo        string `json:"order_no"`
	ActualAmount   string `json:"actual_amount"`
	Status         string `json:"status"`
}

// OrderStatusPaid 订单已支付
const OrderStatusPaid = "paid"

// WithdrawalEvent 提现申请状态变更事件
type WithdrawalEvent struct {
	RequestNo    string    `json:"request_no"`
	WithdrawalID int64     `json:"withdrawal_id"`
	LawyerID     int64     `json:"lawyer_id"`
	Action       string    `json:"action"`
	Status       string    `json:"status"`
	Amount       string    `json:"amount"`
	ActualAmount string    `json:"actual_amount"`
	OccurredAt   time.Time `json:"occurred_at"`
}
