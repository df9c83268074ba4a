package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LineItem 订单行快照（JSON 列）
type LineItem struct {
	CatalogItemID int64           `json:"catalogItemId,omitempty"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	ImageRef      string          `json:"image,omitempty"`
}

// Order 订单表
// status 取值：pending, verifying, paid, completed, failed, cancelled, refunded
// utr 未登记时为 NULL，唯一索引保证一笔转账只对应一个订单
type Order struct {
	ID              int64                         `gorm:"primaryKey;autoIncrement"`
	OrderNumber     string                        `gorm:"type:varchar(32);not null;uniqueIndex"`
	ExternalRef     string                        `gorm:"type:varchar(64);index"`
	PaymentRef      string                        `gorm:"type:varchar(64)"`
	PaymentMethod   string                        `gorm:"type:varchar(32)"`
	UTR             *string                       `gorm:"column:utr;type:varchar(64);uniqueIndex:uk_orders_utr"`
	CounterpartyVPA string                        `gorm:"column:counterparty_vpa;type:varchar(128)"`
	MerchantVPA     string                        `gorm:"column:merchant_vpa;type:varchar(128)"`
	WebhookVerified bool                          `gorm:"not null;default:false"`
	RawPayload      datatypes.JSON                `gorm:"type:json"`
	UserID          string                        `gorm:"type:varchar(64);index"`
	CustomerEmail   string                        `gorm:"type:varchar(255);not null;index"`
	CustomerName    string                        `gorm:"type:varchar(255)"`
	CustomerPhone   string                        `gorm:"type:varchar(32)"`
	ShippingAddress string                        `gorm:"type:text"`
	LineItems       datatypes.JSONSlice[LineItem] `gorm:"type:json;not null"`
	Subtotal        decimal.Decimal               `gorm:"type:decimal(12,2);not null"`
	Status          string                        `gorm:"type:varchar(16);not null;default:'pending';index:idx_order_status_created,priority:1"`
	StockReserved   bool                          `gorm:"not null;default:false"`
	ReviewReason    string                        `gorm:"type:varchar(64)"`
	CreatedAt       time.Time                     `gorm:"autoCreateTime;index:idx_order_status_created,priority:2"`
	UpdatedAt       time.Time                     `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
