package biz

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"   // 待支付
	StatusVerifying OrderStatus = "verifying" // 客户已提交支付，待核验
	StatusPaid      OrderStatus = "paid"      // 已支付
	StatusCompleted OrderStatus = "completed" // 已完成（履约）
	StatusFailed    OrderStatus = "failed"    // 支付失败
	StatusCancelled OrderStatus = "cancelled" // 已取消
	StatusRefunded  OrderStatus = "refunded"  // 已退款
)

// ErrOrderNumberTaken 订单号唯一约束冲突
var ErrOrderNumberTaken = errors.New("order number already exists")

// ErrUTRInUse 银行流水号已登记在其他订单上
var ErrUTRInUse = errors.New("utr already recorded on another order")

// transitions 合法状态迁移表，管理员履约操作也受此约束
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusVerifying, StatusPaid, StatusFailed, StatusCancelled},
	StatusVerifying: {StatusPaid, StatusFailed, StatusCancelled},
	StatusPaid:      {StatusCompleted, StatusCancelled, StatusRefunded},
}

// ParseOrderStatus 解析状态字符串
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	switch st {
	case StatusPending, StatusVerifying, StatusPaid, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return st, true
	}
	return "", false
}

// CanTransition 判断 from -> to 是否合法
func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsSettled 已支付或已完成
func (s OrderStatus) IsSettled() bool {
	return s == StatusPaid || s == StatusCompleted
}

// IsTerminal 对账流程不再推进的状态
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// AwaitingPayment pending 或 verifying
func (s OrderStatus) AwaitingPayment() bool {
	return s == StatusPending || s == StatusVerifying
}

// LineItem 下单时冻结的商品快照
type LineItem struct {
	CatalogItemID int64           `json:"catalogItemId,omitempty"` // 0 表示无目录引用，不调整库存
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Quantity      int             `json:"quantity"`
	ImageRef      string          `json:"imageRef,omitempty"`
}

// LineTotal 行金额
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Customer 客户联系信息
type Customer struct {
	UserID          string
	Email           string
	Name            string
	Phone           string
	ShippingAddress string
}

// Order 订单领域对象
type Order struct {
	ID              int64
	OrderNumber     string
	ExternalRef     string // 网关订单号或 PENDING_/DEMO_ 占位
	PaymentRef      string // 支付流水号
	PaymentMethod   string // 最终落账的支付通道
	UTR             string
	CounterpartyVPA string
	MerchantVPA     string
	WebhookVerified bool
	RawPayload      []byte // 最近一次收到的通知原文
	Customer        Customer
	LineItems       []LineItem
	Subtotal        decimal.Decimal
	Status          OrderStatus
	StockReserved   bool   // 库存已扣减且未归还
	ReviewReason    string // 非空表示需要人工复核
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderPatch 随状态迁移一起写入的字段，零值字段不更新
type OrderPatch struct {
	ExternalRef     string
	PaymentRef      string
	PaymentMethod   string
	UTR             string
	CounterpartyVPA string
	MerchantVPA     string
	RawPayload      []byte
	WebhookVerified *bool
	StockReserved   *bool
	ReviewReason    *string
}

// OrderFilter 管理端订单查询条件
type OrderFilter struct {
	Status      OrderStatus
	NeedsReview bool
	Page        int
	PageSize    int
}

// OrderRepo 订单数据层接口（定义在 biz 层）
type OrderRepo interface {
	Create(ctx context.Context, o *Order) error
	GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*Order, error)
	GetByUTR(ctx context.Context, utr string) (*Order, error)
	// FindLatestByAmount 按冻结金额（容差内）匹配指定状态的最新订单
	FindLatestByAmount(ctx context.Context, amount, tolerance decimal.Decimal, statuses []OrderStatus) (*Order, error)
	// Transition 条件更新：仅当当前状态为 from 时写入 to 与 patch，返回是否命中
	Transition(ctx context.Context, orderNumber string, from, to OrderStatus, patch *OrderPatch) (bool, error)
	ListByCustomer(ctx context.Context, userID, email string) ([]*Order, error)
	List(ctx context.Context, filter *OrderFilter) ([]*Order, int64, error)
	ListStale(ctx context.Context, status OrderStatus, before time.Time, limit int) ([]*Order, error)
}

// OrderLocker 订单级互斥锁，未配置 Redis 时为空实现
type OrderLocker interface {
	Lock(ctx context.Context, orderNumber string) (unlock func(), err error)
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
