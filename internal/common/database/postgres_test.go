// Package database 数据库模块单元测试
package database

import (
	"testing"

	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, getLogLevel(true))
	assert.Equal(t, logger.Silent, getLogLevel(false))
}

func TestOpenDialector(t *testing.T) {
	d, err := openDialector(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = openDialector(&config.DatabaseConfig{Driver: "postgres", Host: "localhost"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = openDialector(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestInit_SQLite(t *testing.T) {
	conn, err := Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		SQLitePath:   "file:" + t.Name() + "?mode=memory&cache=shared",
		MaxIdleConns: 1,
		MaxOpenConns: 4,
	})
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Same(t, conn, GetDB())
	t.Cleanup(func() { _ = Close() })
}

type pageRow struct {
	ID   int64
	Name string
}

type centsRow struct {
	ID          int64
	Amount      float64
	AmountCents *int64
}

func openMemory(t *testing.T) *gorm.DB {
	testDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return testDB
}

func TestPaginate(t *testing.T) {
	testDB := openMemory(t)
	require.NoError(t, AutoMigrate(testDB, &pageRow{}))
	for i := 1; i <= 30; i++ {
		testDB.Create(&pageRow{ID: int64(i), Name: "row"})
	}

	tests := []struct {
		name     string
		page     int
		pageSize int
		wantLen  int
		wantFrom int64
	}{
		{"first page", 1, 10, 10, 1},
		{"third page", 3, 10, 10, 21},
		{"past the end", 4, 10, 0, 0},
		{"zero page defaults to 1", 0, 10, 10, 1},
		{"zero pageSize defaults to 10", 1, 0, 10, 1},
		{"pageSize over 100 capped", 1, 500, 30, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows []pageRow
			testDB.Scopes(Paginate(tt.page, tt.pageSize)).Order("id").Find(&rows)
			assert.Len(t, rows, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantFrom, rows[0].ID)
			}
		})
	}
}

func TestCentsSum_FallsBackToAmount(t *testing.T) {
	testDB := openMemory(t)
	require.NoError(t, AutoMigrate(testDB, &centsRow{}))

	mirror := int64(1050)
	testDB.Create(&centsRow{ID: 1, Amount: 10.50, AmountCents: &mirror})
	testDB.Create(&centsRow{ID: 2, Amount: 3.25})

	var total int64
	require.NoError(t, testDB.Model(&centsRow{}).Select(CentsSum("amount")).Scan(&total).Error)
	assert.Equal(t, int64(1375), total)

	var empty int64
	require.NoError(t, testDB.Model(&centsRow{}).Where("id > 99").Select(CentsSum("amount")).Scan(&empty).Error)
	assert.Equal(t, int64(0), empty)
}

func TestPageBounds(t *testing.T) {
	offset, limit := PageBounds(3, 20)
	assert.Equal(t, 40, offset)
	assert.Equal(t, 20, limit)

	offset, limit = PageBounds(0, 0)
	assert.Equal(t, 0, offset)
	assert.Equal(t, 10, limit)

	_, limit = PageBounds(1, 500)
	assert.Equal(t, 100, limit)
}
