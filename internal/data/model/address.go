package model

import "time"

// Address 用户地址簿
type Address struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	UserID       string    `gorm:"type:varchar(64);not null;index"`
	Label        string    `gorm:"type:varchar(32)"`
	Name         string    `gorm:"type:varchar(255)"`
	Phone        string    `gorm:"type:varchar(32)"`
	AddressLine1 string    `gorm:"column:address_line1;type:varchar(255)"`
	AddressLine2 string    `gorm:"column:address_line2;type:varchar(255)"`
	City         string    `gorm:"type:varchar(64)"`
	State        string    `gorm:"type:varchar(64)"`
	Pincode      string    `gorm:"type:varchar(16)"`
	IsDefault    bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Address) TableName() string {
	return "address"
}
