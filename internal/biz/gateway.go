package biz

import "context"

// GatewayOrder 网关侧订单
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // 最小货币单位
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// GatewayClient 跳转式支付网关客户端，未配置网关时为 nil
type GatewayClient interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*GatewayOrder, error)
}
