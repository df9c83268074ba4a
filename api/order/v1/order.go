package v1

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem 订单行
type LineItem struct {
	CatalogItemID int64           `json:"catalogItemId,omitempty"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	Image         string          `json:"image,omitempty"`
}

// CreateOrderRequest 下单请求，金额由服务端计算
type CreateOrderRequest struct {
	CustomerEmail   string      `json:"customerEmail"`
	CustomerName    string      `json:"customerName"`
	CustomerPhone   string      `json:"customerPhone"`
	ShippingAddress string      `json:"shippingAddress"`
	Items           []*LineItem `json:"items"`
}

// Order 订单视图
type Order struct {
	OrderNumber     string      `json:"orderNumber"`
	ExternalRef     string      `json:"externalRef,omitempty"`
	PaymentRef      string      `json:"paymentRef,omitempty"`
	PaymentMethod   string      `json:"paymentMethod,omitempty"`
	UTR             string      `json:"utr,omitempty"`
	CounterpartyVPA string      `json:"customerVpa,omitempty"`
	WebhookVerified bool        `json:"webhookVerified"`
	CustomerEmail   string      `json:"customerEmail"`
	CustomerName    string      `json:"customerName,omitempty"`
	CustomerPhone   string      `json:"customerPhone,omitempty"`
	ShippingAddress string      `json:"shippingAddress,omitempty"`
	Items           []*LineItem `json:"items"`
	Subtotal        string      `json:"subtotal"`
	Status          string      `json:"status"`
	ReviewReason    string      `json:"reviewReason,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// OrderReply 单个订单
type OrderReply struct {
	Order *Order `json:"order"`
}

// ListMyOrdersRequest 当前用户的订单
type ListMyOrdersRequest struct{}

// ListOrdersReply 订单列表
type ListOrdersReply struct {
	Orders   []*Order `json:"orders"`
	Total    int64    `json:"total"`
	Page     int      `json:"page,omitempty"`
	PageSize int      `json:"pageSize,omitempty"`
}

// ConfirmPaymentRequest 客户声明已转账
type ConfirmPaymentRequest struct {
	OrderNumber string `json:"orderNumber"`
	UTR         string `json:"utr"`
}

// PaymentReply 对账结果
type PaymentReply struct {
	OrderNumber    string `json:"orderNumber,omitempty"`
	Status         string `json:"status,omitempty"`
	Result         string `json:"result"`
	Acknowledged   bool   `json:"acknowledged"`
	Matched        bool   `json:"matched"`
	Resolved       bool   `json:"resolved"`
	MatchedBy      string `json:"matchedBy,omitempty"`
	Message        string `json:"message"`
	ExpectedAmount string `json:"expectedAmount,omitempty"`
	ReceivedAmount string `json:"receivedAmount,omitempty"`
}

// CreateGatewayOrderRequest 网关下单，Amount 为客户端展示金额（可选，仅用于校验）
type CreateGatewayOrderRequest struct {
	CreateOrderRequest
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// CreateGatewayOrderReply 前端拉起网关所需参数
type CreateGatewayOrderReply struct {
	OrderNumber    string `json:"orderNumber"`
	GatewayOrderID string `json:"gatewayOrderId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"keyId"`
}

// VerifyGatewayPaymentRequest 网关回跳参数
type VerifyGatewayPaymentRequest struct {
	OrderNumber       string `json:"orderNumber"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// GetGatewayKeyRequest 查询网关公钥
type GetGatewayKeyRequest struct{}

// GetGatewayKeyReply 网关公钥
type GetGatewayKeyReply struct {
	KeyID string `json:"keyId"`
}

// WebhookRequest 回调原文与签名头
type WebhookRequest struct {
	Body      []byte
	Signature string
}

// ListOrdersRequest 管理端订单查询
type ListOrdersRequest struct {
	Status      string `json:"status"`
	NeedsReview bool   `json:"needsReview"`
	Page        int    `json:"page"`
	PageSize    int    `json:"pageSize"`
}

// ManualVerifyRequest 管理员核验
type ManualVerifyRequest struct {
	OrderNumber string `json:"orderNumber"`
	Verified    bool   `json:"verified"`
}

// ManualUTRRequest 管理员补录银行流水
type ManualUTRRequest struct {
	OrderNumber string           `json:"orderNumber"`
	UTR         string           `json:"utr"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	MerchantVPA string           `json:"merchantVpa,omitempty"`
}

// UpdateOrderStatusRequest 履约状态维护
type UpdateOrderStatusRequest struct {
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
}

// ListUnmatchedRequest 未匹配凭证查询
type ListUnmatchedRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// UnmatchedPayment 未匹配凭证
type UnmatchedPayment struct {
	ID              string    `json:"id"`
	Rail            string    `json:"rail"`
	OrderNumber     string    `json:"orderNumber,omitempty"`
	ExternalOrderID string    `json:"externalOrderId,omitempty"`
	PaymentRef      string    `json:"paymentRef"`
	UTR             string    `json:"utr,omitempty"`
	Amount          string    `json:"amount,omitempty"`
	MerchantVPA     string    `json:"merchantVpa,omitempty"`
	CounterpartyVPA string    `json:"customerVpa,omitempty"`
	Failure         bool      `json:"failure"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ListUnmatchedReply 未匹配凭证列表
type ListUnmatchedReply struct {
	Payments []*UnmatchedPayment `json:"payments"`
	Total    int64               `json:"total"`
}
