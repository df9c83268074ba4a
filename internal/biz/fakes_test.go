package biz

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// ========== 订单 ==========

type fakeOrderRepo struct {
	mu          sync.Mutex
	orders      map[string]*Order
	nextID      int64
	collisions  int // 模拟订单号冲突次数
	transitions int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*Order{}}
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.LineItems = append([]LineItem(nil), o.LineItems...)
	c.RawPayload = append([]byte(nil), o.RawPayload...)
	return &c
}

func (r *fakeOrderRepo) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.collisions > 0 {
		r.collisions--
		return ErrOrderNumberTaken
	}
	if _, ok := r.orders[o.OrderNumber]; ok {
		return ErrOrderNumberTaken
	}
	r.nextID++
	o.ID = r.nextID
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	o.UpdatedAt = o.CreatedAt
	r.orders[o.OrderNumber] = cloneOrder(o)
	return nil
}

func (r *fakeOrderRepo) find(match func(*Order) bool) *Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if match(o) {
			return cloneOrder(o)
		}
	}
	return nil
}

func (r *fakeOrderRepo) GetByOrderNumber(_ context.Context, orderNumber string) (*Order, error) {
	return r.find(func(o *Order) bool { return o.OrderNumber == orderNumber }), nil
}

func (r *fakeOrderRepo) GetByExternalRef(_ context.Context, ref string) (*Order, error) {
	return r.find(func(o *Order) bool { return o.ExternalRef == ref }), nil
}

func (r *fakeOrderRepo) GetByUTR(_ context.Context, utr string) (*Order, error) {
	return r.find(func(o *Order) bool { return utr != "" && o.UTR == utr }), nil
}

func (r *fakeOrderRepo) FindLatestByAmount(_ context.Context, amount, tolerance decimal.Decimal, statuses []OrderStatus) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *Order
	for _, o := range r.orders {
		if !AmountMatches(o.Subtotal, amount, tolerance) || !containsStatus(statuses, o.Status) {
			continue
		}
		if best == nil || o.CreatedAt.After(best.CreatedAt) {
			best = o
		}
	}
	if best == nil {
		return nil, nil
	}
	return cloneOrder(best), nil
}

func (r *fakeOrderRepo) Transition(_ context.Context, orderNumber string, from, to OrderStatus, patch *OrderPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNumber]
	if !ok || o.Status != from {
		return false, nil
	}
	if patch != nil && patch.UTR != "" {
		for _, other := range r.orders {
			if other.OrderNumber != orderNumber && other.UTR == patch.UTR {
				return false, ErrUTRInUse
			}
		}
	}
	r.transitions++
	o.Status = to
	if patch != nil {
		if patch.ExternalRef != "" {
			o.ExternalRef = patch.ExternalRef
		}
		if patch.PaymentRef != "" {
			o.PaymentRef = patch.PaymentRef
		}
		if patch.PaymentMethod != "" {
			o.PaymentMethod = patch.PaymentMethod
		}
		if patch.UTR != "" {
			o.UTR = patch.UTR
		}
		if patch.CounterpartyVPA != "" {
			o.CounterpartyVPA = patch.CounterpartyVPA
		}
		if patch.MerchantVPA != "" {
			o.MerchantVPA = patch.MerchantVPA
		}
		if patch.RawPayload != nil {
			o.RawPayload = append([]byte(nil), patch.RawPayload...)
		}
		if patch.WebhookVerified != nil {
			o.WebhookVerified = *patch.WebhookVerified
		}
		if patch.StockReserved != nil {
			o.StockReserved = *patch.StockReserved
		}
		if patch.ReviewReason != nil {
			o.ReviewReason = *patch.ReviewReason
		}
	}
	o.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeOrderRepo) ListByCustomer(_ context.Context, userID, email string) ([]*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Order
	for _, o := range r.orders {
		if o.Customer.UserID == userID || (email != "" && o.Customer.Email == email) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeOrderRepo) List(_ context.Context, filter *OrderFilter) ([]*Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Order
	for _, o := range r.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.NeedsReview && o.ReviewReason == "" {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) ListStale(_ context.Context, status OrderStatus, before time.Time, limit int) ([]*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Order
	for _, o := range r.orders {
		if o.Status == status && o.CreatedAt.Before(before) {
			out = append(out, cloneOrder(o))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// age 将订单创建时间前移 d
func (r *fakeOrderRepo) age(orderNumber string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderNumber]; ok {
		o.CreatedAt = o.CreatedAt.Add(-d)
	}
}

func (r *fakeOrderRepo) mustGet(t *testing.T, orderNumber string) *Order {
	t.Helper()
	o, _ := r.GetByOrderNumber(context.Background(), orderNumber)
	if o == nil {
		t.Fatalf("order %s not found", orderNumber)
	}
	return o
}

func containsStatus(statuses []OrderStatus, s OrderStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// ========== 库存 ==========

type fakeInventory struct {
	mu    sync.Mutex
	stock map[int64]int
	calls int
	fail  map[int64]bool
}

func newFakeInventory(stock map[int64]int) *fakeInventory {
	return &fakeInventory{stock: stock, fail: map[int64]bool{}}
}

func (f *fakeInventory) Decrement(_ context.Context, id int64, qty int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[id] {
		return false, errors.New("storage unavailable")
	}
	cur, ok := f.stock[id]
	if !ok {
		return false, nil
	}
	if cur >= qty {
		f.stock[id] = cur - qty
	} else {
		f.stock[id] = 0
	}
	return true, nil
}

func (f *fakeInventory) Increment(_ context.Context, id int64, qty int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[id] {
		return false, errors.New("storage unavailable")
	}
	if _, ok := f.stock[id]; !ok {
		return false, nil
	}
	f.stock[id] += qty
	return true, nil
}

func (f *fakeInventory) get(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id]
}

// ========== 地址 ==========

type fakeAddressRepo struct {
	defaults map[string]*Address
	err      error
}

func (f *fakeAddressRepo) GetDefault(_ context.Context, userID string) (*Address, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.defaults[userID], nil
}

// ========== 未匹配登记 ==========

type fakeUnmatchedRepo struct {
	mu      sync.Mutex
	records []*UnmatchedPayment
}

func (f *fakeUnmatchedRepo) Record(_ context.Context, p *UnmatchedPayment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.Rail == p.Rail && r.PaymentRef == p.PaymentRef {
			return nil
		}
	}
	f.records = append(f.records, p)
	return nil
}

func (f *fakeUnmatchedRepo) List(_ context.Context, page, pageSize int) ([]*UnmatchedPayment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*UnmatchedPayment(nil), f.records...), int64(len(f.records)), nil
}

// ========== 通知 ==========

type fakeDispatcher struct {
	mu            sync.Mutex
	invoices      []string
	adminNotices  []string
	statusUpdates []string
	failRender    bool
	failSend      bool
}

func (f *fakeDispatcher) RenderInvoice(_ context.Context, o *Order) ([]byte, error) {
	if f.failRender {
		return nil, errors.New("render failed")
	}
	return []byte("%PDF " + o.OrderNumber), nil
}

func (f *fakeDispatcher) SendInvoice(_ context.Context, email, name, orderNumber string, document []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("smtp unavailable")
	}
	f.invoices = append(f.invoices, orderNumber)
	return nil
}

func (f *fakeDispatcher) SendAdminNotification(_ context.Context, o *Order, document []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("smtp unavailable")
	}
	f.adminNotices = append(f.adminNotices, o.OrderNumber)
	return nil
}

func (f *fakeDispatcher) SendStatusUpdate(_ context.Context, email, name, orderNumber string, status OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("smtp unavailable")
	}
	f.statusUpdates = append(f.statusUpdates, orderNumber+":"+string(status))
	return nil
}

type fakeQueue struct {
	events []*NotificationEvent
	err    error
}

func (f *fakeQueue) Publish(_ context.Context, e *NotificationEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

// ========== 网关 ==========

type fakeGateway struct {
	created []*GatewayOrder
	err     error
}

func (f *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string) (*GatewayOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	o := &GatewayOrder{ID: "order_gw_" + receipt, Amount: amountMinor, Currency: currency, Receipt: receipt, Status: "created"}
	f.created = append(f.created, o)
	return o, nil
}

// ========== 测试环境 ==========

type testEnv struct {
	repo       *fakeOrderRepo
	stock      *fakeInventory
	addresses  *fakeAddressRepo
	unmatched  *fakeUnmatchedRepo
	dispatcher *fakeDispatcher
	gateway    *fakeGateway
	conf       *PaymentConfig
	orders     *OrderUseCase
	rec        *Reconciler
	sweep      *SweepUseCase
}

const (
	testWebhookSecret = "upi-webhook-secret"
	testKeySecret     = "gateway-key-secret"
	testMerchantVPA   = "merchant@upi"
	itemA             = int64(1)
	itemB             = int64(2)
)

func newTestEnv(t *testing.T, opts ...func(*PaymentConfig)) *testEnv {
	t.Helper()
	conf := &PaymentConfig{
		Currency:             "INR",
		AmountTolerance:      DefaultAmountTolerance,
		MerchantVPA:          testMerchantVPA,
		UPIWebhookSecret:     testWebhookSecret,
		GatewayKeyID:         "rzp_test_key",
		GatewayKeySecret:     testKeySecret,
		GatewayWebhookSecret: "gateway-webhook-secret",
		PendingTTL:           48 * time.Hour,
		VerifyingAlertAfter:  24 * time.Hour,
		SweepBatchSize:       100,
		NotifyAsync:          false,
		NotifyTimeout:        time.Second,
	}
	for _, o := range opts {
		o(conf)
	}
	logger := log.NewStdLogger(io.Discard)

	env := &testEnv{
		repo:       newFakeOrderRepo(),
		stock:      newFakeInventory(map[int64]int{itemA: 10, itemB: 5}),
		addresses:  &fakeAddressRepo{defaults: map[string]*Address{}},
		unmatched:  &fakeUnmatchedRepo{},
		dispatcher: &fakeDispatcher{},
		gateway:    &fakeGateway{},
		conf:       conf,
	}
	inventory := NewInventoryAdjuster(env.stock, logger)
	notifier := NewNotifier(env.repo, env.dispatcher, nil, conf, logger)
	env.orders = NewOrderUseCase(env.repo, env.addresses, inventory, notifier, nil, conf, logger)
	env.rec = NewReconciler(env.orders, env.repo, env.unmatched, inventory, notifier, nil, env.gateway, conf, logger)
	env.sweep = NewSweepUseCase(env.repo, conf, logger)
	return env
}

var testCustomer = Customer{UserID: "user-1", Email: "buyer@example.com", Name: "Asha"}

// standardItems 小计 300.00：A 100.00 × 2 + B 100.00 × 1
func standardItems() []LineItem {
	return []LineItem{
		{CatalogItemID: itemA, Name: "Premix A", UnitPrice: decimal.RequireFromString("100.00"), Quantity: 2},
		{CatalogItemID: itemB, Name: "Premix B", UnitPrice: decimal.RequireFromString("100.00"), Quantity: 1},
	}
}

func (e *testEnv) createOrder(t *testing.T) *Order {
	t.Helper()
	o, err := e.orders.CreatePendingOrder(context.Background(), testCustomer, standardItems())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}
