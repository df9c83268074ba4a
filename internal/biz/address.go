package biz

import (
	"context"
	"strings"
)

// Address 客户保存的收货地址（只读）
type Address struct {
	ID           int64
	UserID       string
	Label        string
	Name         string
	Phone        string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Pincode      string
	IsDefault    bool
}

// AddressRepo 地址簿数据层接口
type AddressRepo interface {
	// GetDefault 返回默认地址，没有时返回 nil, nil
	GetDefault(ctx context.Context, userID string) (*Address, error)
}

// Format 单行收货地址
func (a *Address) Format() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.AddressLine1, a.AddressLine2, a.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	region := strings.TrimSpace(a.State)
	if pin := strings.TrimSpace(a.Pincode); pin != "" {
		if region != "" {
			region += " - " + pin
		} else {
			region = pin
		}
	}
	if region != "" {
		parts = append(parts, region)
	}
	return strings.Join(parts, ", ")
}

// backfill 用默认地址补全缺失的姓名、电话、收货地址
func (c *Customer) backfill(a *Address) {
	if a == nil {
		return
	}
	if c.Name == "" {
		c.Name = strings.TrimSpace(a.Name)
	}
	if c.Phone == "" {
		c.Phone = strings.TrimSpace(a.Phone)
	}
	if c.ShippingAddress == "" {
		c.ShippingAddress = a.Format()
	}
}
