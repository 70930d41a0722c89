// Package utils 通用工具函数单元测试
package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateOrderNo(t *testing.T) {
	for _, prefix := range []string{"WD", "CO", ""} {
		t.Run("prefix_"+prefix, func(t *testing.T) {
			no := GenerateOrderNo(prefix)
			assert.True(t, strings.HasPrefix(no, prefix))
			// 前缀 + 14位时间戳 + 6位随机数
			assert.Len(t, no, len(prefix)+20)
		})
	}
}

func TestGenerateOrderNo_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		no := GenerateOrderNo("WD")
		assert.False(t, seen[no], "单号应该唯一")
		seen[no] = true
	}
}

func TestGenerateRandomNumber(t *testing.T) {
	n := GenerateRandomNumber(8)
	assert.Len(t, n, 8)
	for _, r := range n {
		assert.True(t, r >= '0' && r <= '9')
	}
	assert.Empty(t, GenerateRandomNumber(0))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"bank_card", "alipay"}, "alipay"))
	assert.False(t, Contains([]string{"bank_card"}, "wechat"))
	assert.False(t, Contains([]int64{}, 1))
}

func TestPagination_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		in         Pagination
		wantPage   int
		wantSize   int
		wantOffset int
	}{
		{"默认值", Pagination{}, 1, 10, 0},
		{"正常", Pagination{Page: 3, PageSize: 20}, 3, 20, 40},
		{"超过上限", Pagination{Page: 1, PageSize: 500}, 1, 100, 0},
		{"负数页码", Pagination{Page: -2, PageSize: 5}, 1, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.Normalize()
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantSize, p.PageSize)
			assert.Equal(t, tt.wantOffset, p.GetOffset())
		})
	}
}
