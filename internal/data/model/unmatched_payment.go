package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// UnmatchedPayment 未匹配到订单的支付凭证，(rail, payment_ref) 唯一
type UnmatchedPayment struct {
	ID              string              `gorm:"primaryKey;type:varchar(36)"`
	Rail            string              `gorm:"type:varchar(32);not null;uniqueIndex:uk_rail_payment_ref,priority:1"`
	PaymentRef      string              `gorm:"type:varchar(64);not null;uniqueIndex:uk_rail_payment_ref,priority:2"`
	OrderNumber     string              `gorm:"type:varchar(32)"`
	ExternalOrderID string              `gorm:"type:varchar(64)"`
	UTR             string              `gorm:"column:utr;type:varchar(64);index"`
	Amount          decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	MerchantVPA     string              `gorm:"column:merchant_vpa;type:varchar(128)"`
	CounterpartyVPA string              `gorm:"column:counterparty_vpa;type:varchar(128)"`
	Failure         bool                `gorm:"not null;default:false"`
	RawPayload      datatypes.JSON      `gorm:"type:json"`
	CreatedAt       time.Time           `gorm:"autoCreateTime;index"`
}

// TableName 指定表名
func (UnmatchedPayment) TableName() string {
	return "unmatched_payment"
}
