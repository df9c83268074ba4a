package biz

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"order-service/internal/constants"
	orderErrors "order-service/internal/errors"
	"order-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

const (
	// orderNumberAttempts 订单号冲突时的最大重试次数
	orderNumberAttempts = 5
	// transitionAttempts 条件更新未命中时重新读取并判断的最大次数
	transitionAttempts = 3
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// OrderUseCase 订单创建、查询与履约状态维护
type OrderUseCase struct {
	repo      OrderRepo
	addresses AddressRepo
	inventory *InventoryAdjuster
	notifier  *Notifier
	locker    OrderLocker
	conf      *PaymentConfig
	log       *log.Helper
	metrics   *metrics.OrderMetrics
	now       func() time.Time
}

// NewOrderUseCase 创建订单 UseCase
func NewOrderUseCase(
	repo OrderRepo,
	addresses AddressRepo,
	inventory *InventoryAdjuster,
	notifier *Notifier,
	locker OrderLocker,
	conf *PaymentConfig,
	logger log.Logger,
) *OrderUseCase {
	return &OrderUseCase{
		repo:      repo,
		addresses: addresses,
		inventory: inventory,
		notifier:  notifier,
		locker:    locker,
		conf:      conf,
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
		now:       time.Now,
	}
}

// CreatePendingOrder 创建待支付订单，小计由服务端按单价 × 数量计算
func (uc *OrderUseCase) CreatePendingOrder(ctx context.Context, customer Customer, items []LineItem) (*Order, error) {
	o, err := uc.create(ctx, customer, items, func(orderNumber string) string {
		return constants.ExternalRefPendingPrefix + orderNumber
	}, constants.RailClientConfirm)
	if err != nil {
		return nil, err
	}
	uc.notifier.Notify(ctx, NotifyOrderPlaced, o)
	return o, nil
}

// PrepareOrder 校验并补全下单信息，不落库
func (uc *OrderUseCase) PrepareOrder(ctx context.Context, customer Customer, items []LineItem) (Customer, []LineItem, decimal.Decimal, error) {
	customer.Email = strings.TrimSpace(customer.Email)
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.ShippingAddress = strings.TrimSpace(customer.ShippingAddress)
	if customer.Email == "" {
		return customer, nil, decimal.Zero, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "customer email is required")
	}
	if len(items) == 0 {
		return customer, nil, decimal.Zero, orderErrors.BadRequest(orderErrors.ReasonEmptyLineItems, "at least one item is required")
	}

	frozen := make([]LineItem, 0, len(items))
	for i, li := range items {
		li.Name = strings.TrimSpace(li.Name)
		if li.Quantity == 0 {
			li.Quantity = 1
		}
		if li.Quantity < 0 {
			return customer, nil, decimal.Zero, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "item %d: quantity must not be negative", i)
		}
		if li.UnitPrice.IsNegative() {
			return customer, nil, decimal.Zero, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "item %d: price must not be negative", i)
		}
		if li.CatalogItemID < 0 {
			return customer, nil, decimal.Zero, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "item %d: invalid catalog item id", i)
		}
		frozen = append(frozen, li)
	}

	if customer.UserID != "" && uc.addresses != nil &&
		(customer.Name == "" || customer.Phone == "" || customer.ShippingAddress == "") {
		addr, err := uc.addresses.GetDefault(ctx, customer.UserID)
		if err != nil {
			uc.log.Warnf("load default address failed, continuing without backfill: user_id=%s, error=%v", customer.UserID, err)
		} else {
			customer.backfill(addr)
		}
	}
	return customer, frozen, Subtotal(frozen), nil
}

// create 落库，订单号冲突时重新生成
func (uc *OrderUseCase) create(ctx context.Context, customer Customer, items []LineItem, externalRef func(string) string, rail string) (*Order, error) {
	start := time.Now()
	customer, frozen, subtotal, err := uc.PrepareOrder(ctx, customer, items)
	if err != nil {
		return nil, err
	}

	o := &Order{
		Customer:  customer,
		LineItems: frozen,
		Subtotal:  subtotal,
		Status:    StatusPending,
	}
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		now := uc.now()
		o.OrderNumber = generateOrderNumber(now)
		o.ExternalRef = externalRef(o.OrderNumber)
		o.CreatedAt = now
		err = uc.repo.Create(ctx, o)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrOrderNumberTaken) {
			uc.log.Errorf("create order failed: error=%v", err)
			uc.observeCreate(rail, constants.ResultFailed, start)
			return nil, orderErrors.Internal(orderErrors.ReasonInternal, err)
		}
		uc.log.Warnf("order number collision, regenerating: order_number=%s", o.OrderNumber)
	}
	if err != nil {
		uc.observeCreate(rail, constants.ResultFailed, start)
		return nil, orderErrors.Unavailable(orderErrors.ReasonOrderNumberExhausted, err)
	}

	uc.observeCreate(rail, constants.ResultRecorded, start)
	uc.log.Infof("order created: order_number=%s, subtotal=%s, items=%d", o.OrderNumber, o.Subtotal.StringFixed(2), len(o.LineItems))
	return o, nil
}

func (uc *OrderUseCase) observeCreate(rail, result string, start time.Time) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.OrderCreateTotal.WithLabelValues(rail, result).Inc()
	uc.metrics.OrderCreateDuration.Observe(time.Since(start).Seconds())
}

// RecordGatewayOrder 记录网关订单号（pending -> pending）
func (uc *OrderUseCase) RecordGatewayOrder(ctx context.Context, orderNumber, externalOrderID string) error {
	if orderNumber == "" || externalOrderID == "" {
		return orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "order number and external order id are required")
	}
	o, err := uc.repo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return err
	}
	if o == nil {
		return orderErrors.OrderNotFound(orderNumber)
	}
	ok, err := uc.repo.Transition(ctx, orderNumber, StatusPending, StatusPending, &OrderPatch{ExternalRef: externalOrderID})
	if err != nil {
		return err
	}
	if !ok {
		current, err := uc.repo.GetByOrderNumber(ctx, orderNumber)
		if err != nil {
			return err
		}
		status := o.Status
		if current != nil {
			status = current.Status
		}
		return orderErrors.InvalidTransition(orderNumber, string(status))
	}
	uc.log.Infof("gateway order recorded: order_number=%s, external_order_id=%s", orderNumber, externalOrderID)
	return nil
}

// GetOrder 按订单号查询
func (uc *OrderUseCase) GetOrder(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := uc.repo.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, orderErrors.OrderNotFound(orderNumber)
	}
	return o, nil
}

// ListMyOrders 客户自己的订单，按创建时间倒序
func (uc *OrderUseCase) ListMyOrders(ctx context.Context, customer Customer) ([]*Order, error) {
	return uc.repo.ListByCustomer(ctx, customer.UserID, customer.Email)
}

// ListOrders 管理端订单列表
func (uc *OrderUseCase) ListOrders(ctx context.Context, filter *OrderFilter) ([]*Order, int64, error) {
	if filter == nil {
		filter = &OrderFilter{}
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return uc.repo.List(ctx, filter)
}

// UpdateFulfillmentStatus 管理员履约状态维护：completed / cancelled / refunded
func (uc *OrderUseCase) UpdateFulfillmentStatus(ctx context.Context, orderNumber string, to OrderStatus, operator string) (*Order, error) {
	switch to {
	case StatusCompleted, StatusCancelled, StatusRefunded:
	default:
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "status %q cannot be set manually", to)
	}

	unlock, err := lockOrder(ctx, uc.locker, orderNumber)
	if err != nil {
		return nil, err
	}
	defer unlock()

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		o, err := uc.repo.GetByOrderNumber(ctx, orderNumber)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, orderErrors.OrderNotFound(orderNumber)
		}
		if o.Status == to {
			return o, nil
		}
		if !CanTransition(o.Status, to) {
			return nil, orderErrors.InvalidTransition(orderNumber, string(o.Status))
		}

		patch := &OrderPatch{ReviewReason: strPtr("")}
		restore := to == StatusCancelled && o.Status == StatusVerifying && o.StockReserved
		if restore {
			patch.StockReserved = boolPtr(false)
		}
		ok, err := uc.repo.Transition(ctx, orderNumber, o.Status, to, patch)
		if err != nil {
			return nil, err
		}
		if !ok {
			recordLost(uc.metrics, o.Status)
			continue
		}
		recordTransition(uc.metrics, o.Status, to)
		uc.log.Infof("order status updated by operator: order_number=%s, from=%s, to=%s, operator=%s", orderNumber, o.Status, to, operator)

		if restore {
			uc.inventory.Restore(ctx, o)
			o.StockReserved = false
		}
		o.Status = to
		o.ReviewReason = ""
		uc.notifier.Notify(ctx, NotifyStatusChanged, o)
		return o, nil
	}
	return nil, orderErrors.ConcurrentUpdate(orderNumber)
}

// generateOrderNumber KS + 毫秒时间戳(36进制) + 4 位随机串
func generateOrderNumber(now time.Time) string {
	var suffix [4]byte
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return constants.OrderNumberPrefix + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) + string(suffix[:])
}

func lockOrder(ctx context.Context, locker OrderLocker, orderNumber string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	return locker.Lock(ctx, orderNumber)
}

func recordTransition(m *metrics.OrderMetrics, from, to OrderStatus) {
	if m != nil {
		m.TransitionTotal.WithLabelValues(string(from), string(to)).Inc()
	}
}

func recordLost(m *metrics.OrderMetrics, from OrderStatus) {
	if m != nil {
		m.TransitionLost.WithLabelValues(string(from)).Inc()
	}
}
