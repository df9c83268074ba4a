package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogItem 商品目录表，库存只由订单对账流程调整
type CatalogItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Name      string          `gorm:"type:varchar(255);not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Stock     int             `gorm:"not null;default:0"`
	ImageRef  string          `gorm:"type:varchar(512)"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (CatalogItem) TableName() string {
	return "catalog_item"
}
