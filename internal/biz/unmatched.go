package biz

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UnmatchedPayment 未匹配到订单的支付凭证，等待人工处理
type UnmatchedPayment struct {
	ID              string
	Rail            string
	OrderNumber     string
	ExternalOrderID string
	PaymentRef      string
	UTR             string
	Amount          decimal.NullDecimal
	MerchantVPA     string
	CounterpartyVPA string
	Failure         bool
	RawPayload      []byte
	CreatedAt       time.Time
}

// UnmatchedPaymentRepo 未匹配凭证登记簿，同一通道同一流水号只登记一次
type UnmatchedPaymentRepo interface {
	Record(ctx context.Context, p *UnmatchedPayment) error
	List(ctx context.Context, page, pageSize int) ([]*UnmatchedPayment, int64, error)
}
