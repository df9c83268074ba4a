package biz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"order-service/internal/constants"
	orderErrors "order-service/internal/errors"
	"order-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 订单定位方式
const (
	MatchedByOrderNumber = "order_number"
	MatchedByExternalRef = "external_ref"
	MatchedByUTR         = "utr"
	MatchedByAmount      = "amount"
)

// Outcome 对账结果
// Acknowledged 表示通道层面已确认（回调方无需重试），Resolved 表示业务层面已落定
type Outcome struct {
	OrderNumber    string
	Status         OrderStatus
	Result         string
	Acknowledged   bool
	Resolved       bool
	MatchedBy      string
	Message        string
	ExpectedAmount decimal.NullDecimal
	ReceivedAmount decimal.NullDecimal
}

// GatewayPayment 网关回跳参数
type GatewayPayment struct {
	OrderNumber     string
	ExternalOrderID string
	PaymentID       string
	Signature       string
}

// ManualPayment 人工补录参数，Amount 可为空
type ManualPayment struct {
	OrderNumber string
	UTR         string
	Amount      decimal.NullDecimal
	MerchantVPA string
}

// GatewayCheckout 网关下单结果
type GatewayCheckout struct {
	Order           *Order
	ExternalOrderID string
	AmountMinor     int64
	Currency        string
	KeyID           string
}

type applyOptions struct {
	rail      string
	matchedBy string
	// strict 为 true 时，订单不在待支付状态直接返回冲突，不登记凭证
	strict bool
}

// Reconciler 支付对账核心：各通道只负责鉴权与提取凭证，状态迁移、金额校验、库存与通知在此统一处理
type Reconciler struct {
	orders    *OrderUseCase
	repo      OrderRepo
	unmatched UnmatchedPaymentRepo
	inventory *InventoryAdjuster
	notifier  *Notifier
	locker    OrderLocker
	gateway   GatewayClient
	conf      *PaymentConfig
	log       *log.Helper
	metrics   *metrics.OrderMetrics
	now       func() time.Time

	upiRail            PaymentRail
	gatewayRail        PaymentRail
	gatewayWebhookRail PaymentRail
	manualRail         PaymentRail
	demoRail           PaymentRail
}

// NewReconciler 创建对账 UseCase
func NewReconciler(
	orders *OrderUseCase,
	repo OrderRepo,
	unmatched UnmatchedPaymentRepo,
	inventory *InventoryAdjuster,
	notifier *Notifier,
	locker OrderLocker,
	gateway GatewayClient,
	conf *PaymentConfig,
	logger log.Logger,
) *Reconciler {
	return &Reconciler{
		orders:             orders,
		repo:               repo,
		unmatched:          unmatched,
		inventory:          inventory,
		notifier:           notifier,
		locker:             locker,
		gateway:            gateway,
		conf:               conf,
		log:                log.NewHelper(logger),
		metrics:            metrics.GetMetrics(),
		now:                time.Now,
		upiRail:            NewUPIWebhookRail(conf),
		gatewayRail:        NewGatewayCallbackRail(conf),
		gatewayWebhookRail: NewGatewayWebhookRail(conf),
		manualRail:         NewManualRail(conf),
		demoRail:           NewDemoRail(conf),
	}
}

// GatewayKeyID 前端拉起网关所需的公钥 ID
func (uc *Reconciler) GatewayKeyID() (string, error) {
	if !uc.conf.GatewayEnabled() {
		return "", orderErrors.BadRequest(orderErrors.ReasonGatewayNotConfigured, "payment gateway is not configured")
	}
	return uc.conf.GatewayKeyID, nil
}

// CreateGatewayOrder 创建待支付订单并在网关下单
func (uc *Reconciler) CreateGatewayOrder(ctx context.Context, customer Customer, items []LineItem, clientAmount decimal.NullDecimal) (*GatewayCheckout, error) {
	if uc.gateway == nil || !uc.conf.GatewayEnabled() {
		return nil, orderErrors.BadRequest(orderErrors.ReasonGatewayNotConfigured, "payment gateway is not configured")
	}
	if clientAmount.Valid {
		_, _, subtotal, err := uc.orders.PrepareOrder(ctx, customer, items)
		if err != nil {
			return nil, err
		}
		if !AmountMatches(subtotal, clientAmount.Decimal, uc.conf.AmountTolerance) {
			return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "amount %s does not match order total %s",
				clientAmount.Decimal.StringFixed(2), subtotal.StringFixed(2))
		}
	}

	o, err := uc.orders.create(ctx, customer, items, func(orderNumber string) string {
		return constants.ExternalRefPendingPrefix + orderNumber
	}, constants.RailGateway)
	if err != nil {
		return nil, err
	}

	amountMinor := ToMinorUnits(o.Subtotal)
	gwOrder, err := uc.gateway.CreateOrder(ctx, amountMinor, uc.conf.Currency, o.OrderNumber)
	if err != nil {
		uc.log.Errorf("gateway create order failed: order_number=%s, error=%v", o.OrderNumber, err)
		return nil, orderErrors.Unavailable(orderErrors.ReasonGatewayUnavailable, err)
	}
	if err := uc.orders.RecordGatewayOrder(ctx, o.OrderNumber, gwOrder.ID); err != nil {
		return nil, err
	}
	o.ExternalRef = gwOrder.ID
	uc.notifier.Notify(ctx, NotifyOrderPlaced, o)

	return &GatewayCheckout{
		Order:           o,
		ExternalOrderID: gwOrder.ID,
		AmountMinor:     amountMinor,
		Currency:        uc.conf.Currency,
		KeyID:           uc.conf.GatewayKeyID,
	}, nil
}

// VerifyGatewayPayment 校验网关回跳签名并落账
func (uc *Reconciler) VerifyGatewayPayment(ctx context.Context, customer Customer, p *GatewayPayment) (*Outcome, error) {
	raw := &RawEvidence{
		Signature: p.Signature,
		Submitted: &Evidence{
			OrderNumber:     strings.TrimSpace(p.OrderNumber),
			ExternalOrderID: strings.TrimSpace(p.ExternalOrderID),
			PaymentRef:      strings.TrimSpace(p.PaymentID),
		},
	}
	rail := uc.gatewayRail
	ev, err := uc.authenticate(rail, raw)
	if err != nil {
		return nil, err
	}

	var (
		o         *Order
		matchedBy = MatchedByOrderNumber
	)
	if ev.OrderNumber != "" {
		o, err = uc.repo.GetByOrderNumber(ctx, ev.OrderNumber)
	} else {
		matchedBy = MatchedByExternalRef
		o, err = uc.repo.GetByExternalRef(ctx, ev.ExternalOrderID)
	}
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, orderErrors.OrderNotFound(firstNonEmpty(ev.OrderNumber, ev.ExternalOrderID))
	}
	if !owns(customer, o) {
		return nil, orderErrors.Forbidden(orderErrors.ReasonOrderNotOwned, "order does not belong to the current user")
	}
	if o.ExternalRef != ev.ExternalOrderID {
		return nil, orderErrors.BadRequest(orderErrors.ReasonExternalRefMismatch, "gateway order does not belong to this order")
	}
	return uc.observe(rail.Kind(), func() (*Outcome, error) {
		return uc.apply(ctx, o.OrderNumber, ev, applyOptions{rail: rail.Kind(), matchedBy: matchedBy})
	})
}

// ConfirmClientSidePayment 客户声明已完成转账：pending -> verifying，同时预占库存并发送发票
func (uc *Reconciler) ConfirmClientSidePayment(ctx context.Context, customer Customer, orderNumber, evidenceRef string) (*Outcome, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	evidenceRef = strings.TrimSpace(evidenceRef)
	if orderNumber == "" {
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "order number is required")
	}

	return uc.observe(constants.RailClientConfirm, func() (*Outcome, error) {
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
			if !owns(customer, o) {
				return nil, orderErrors.Forbidden(orderErrors.ReasonOrderNotOwned, "order does not belong to the current user")
			}
			if o.Status != StatusPending {
				return nil, orderErrors.InvalidTransition(orderNumber, string(o.Status))
			}
			if holder, err := uc.utrHolder(ctx, evidenceRef, orderNumber); err != nil {
				return nil, err
			} else if holder != nil {
				uc.log.Warnf("utr reuse rejected: order_number=%s, utr=%s, holder=%s", orderNumber, evidenceRef, holder.OrderNumber)
				return nil, orderErrors.UTRInUse(evidenceRef)
			}

			patch := &OrderPatch{
				PaymentMethod: constants.RailClientConfirm,
				StockReserved: boolPtr(true),
			}
			if evidenceRef != "" {
				patch.UTR = evidenceRef
				patch.PaymentRef = constants.PaymentRefUPIPrefix + evidenceRef
			} else {
				patch.PaymentRef = constants.PaymentRefManualPrefix + strconv.FormatInt(uc.now().UnixMilli(), 10)
			}
			ok, err := uc.repo.Transition(ctx, orderNumber, StatusPending, StatusVerifying, patch)
			if errors.Is(err, ErrUTRInUse) {
				return nil, orderErrors.UTRInUse(evidenceRef)
			}
			if err != nil {
				return nil, err
			}
			if !ok {
				recordLost(uc.metrics, StatusPending)
				continue
			}
			recordTransition(uc.metrics, StatusPending, StatusVerifying)

			if !o.StockReserved {
				uc.inventory.Reserve(ctx, o)
			}
			o.Status = StatusVerifying
			o.StockReserved = true
			o.PaymentRef = patch.PaymentRef
			o.UTR = firstNonEmpty(patch.UTR, o.UTR)
			uc.notifier.Notify(ctx, NotifyPaymentSubmitted, o)
			uc.log.Infof("client payment submitted: order_number=%s, utr=%s", orderNumber, evidenceRef)

			return &Outcome{
				OrderNumber:  orderNumber,
				Status:       StatusVerifying,
				Result:       constants.ResultSubmitted,
				Acknowledged: true,
				MatchedBy:    MatchedByOrderNumber,
				Message:      "payment submitted, pending verification",
			}, nil
		}
		return nil, orderErrors.ConcurrentUpdate(orderNumber)
	})
}

// ApplyWebhookNotification 处理 UPI 到账回调
func (uc *Reconciler) ApplyWebhookNotification(ctx context.Context, body []byte, signature string) (*Outcome, error) {
	return uc.reconcileNotification(ctx, uc.upiRail, &RawEvidence{Body: body, Signature: signature}, true)
}

// ApplyGatewayWebhook 处理网关服务端回调
func (uc *Reconciler) ApplyGatewayWebhook(ctx context.Context, body []byte, signature string) (*Outcome, error) {
	return uc.reconcileNotification(ctx, uc.gatewayWebhookRail, &RawEvidence{Body: body, Signature: signature}, false)
}

// ManualVerify 管理员核验 verifying 订单：true -> paid，false -> failed 并归还库存
func (uc *Reconciler) ManualVerify(ctx context.Context, orderNumber string, verified bool, operator string) (*Outcome, error) {
	if strings.TrimSpace(operator) == "" {
		return nil, orderErrors.Forbidden(orderErrors.ReasonAdminRequired, "operator identity required")
	}
	return uc.observe(constants.RailManual, func() (*Outcome, error) {
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
			if (verified && o.Status.IsSettled()) || (!verified && o.Status == StatusFailed) {
				return alreadyRecorded(o, MatchedByOrderNumber), nil
			}
			if o.Status != StatusVerifying {
				return nil, orderErrors.InvalidTransition(orderNumber, string(o.Status))
			}

			to := StatusFailed
			patch := &OrderPatch{ReviewReason: strPtr("")}
			if verified {
				to = StatusPaid
			} else {
				patch.StockReserved = boolPtr(false)
			}
			ok, err := uc.repo.Transition(ctx, orderNumber, StatusVerifying, to, patch)
			if err != nil {
				return nil, err
			}
			if !ok {
				recordLost(uc.metrics, StatusVerifying)
				continue
			}
			recordTransition(uc.metrics, StatusVerifying, to)
			uc.log.Infof("order verified by operator: order_number=%s, verified=%t, operator=%s", orderNumber, verified, operator)

			if !verified && o.StockReserved {
				uc.inventory.Restore(ctx, o)
			}
			o.Status = to
			o.ReviewReason = ""
			uc.notifier.Notify(ctx, NotifyStatusChanged, o)

			if verified {
				return recorded(o, MatchedByOrderNumber), nil
			}
			return &Outcome{
				OrderNumber:  orderNumber,
				Status:       StatusFailed,
				Result:       constants.ResultFailed,
				Acknowledged: true,
				Resolved:     true,
				MatchedBy:    MatchedByOrderNumber,
				Message:      "payment rejected, contact support",
			}, nil
		}
		return nil, orderErrors.ConcurrentUpdate(orderNumber)
	})
}

// ManualUTROverride 管理员依据银行流水补录，金额与重复落账校验同回调
func (uc *Reconciler) ManualUTROverride(ctx context.Context, p *ManualPayment, operator string) (*Outcome, error) {
	raw := &RawEvidence{
		Operator: operator,
		Submitted: &Evidence{
			OrderNumber: strings.TrimSpace(p.OrderNumber),
			UTR:         strings.TrimSpace(p.UTR),
			Amount:      p.Amount,
			MerchantVPA: strings.TrimSpace(p.MerchantVPA),
		},
	}
	rail := uc.manualRail
	ev, err := uc.authenticate(rail, raw)
	if err != nil {
		return nil, err
	}
	return uc.observe(rail.Kind(), func() (*Outcome, error) {
		out, err := uc.apply(ctx, ev.OrderNumber, ev, applyOptions{rail: rail.Kind(), matchedBy: MatchedByOrderNumber, strict: true})
		if err == nil {
			uc.log.Infof("manual utr override: order_number=%s, utr=%s, result=%s, operator=%s", ev.OrderNumber, ev.UTR, out.Result, operator)
		}
		return out, err
	})
}

// DemoComplete 演示环境：创建订单并立即落账
func (uc *Reconciler) DemoComplete(ctx context.Context, customer Customer, items []LineItem) (*Outcome, error) {
	rail := uc.demoRail
	if err := rail.Authenticate(&RawEvidence{}); err != nil {
		return nil, err
	}
	stamp := strconv.FormatInt(uc.now().UnixMilli(), 10)
	o, err := uc.orders.create(ctx, customer, items, func(string) string {
		return constants.ExternalRefDemoPrefix + stamp
	}, rail.Kind())
	if err != nil {
		return nil, err
	}
	ev, err := rail.Extract(&RawEvidence{Submitted: &Evidence{
		OrderNumber: o.OrderNumber,
		PaymentRef:  constants.PaymentRefDemoPrefix + stamp,
		Amount:      decimal.NewNullDecimal(o.Subtotal),
	}})
	if err != nil {
		return nil, err
	}
	return uc.observe(rail.Kind(), func() (*Outcome, error) {
		return uc.apply(ctx, o.OrderNumber, ev, applyOptions{rail: rail.Kind(), matchedBy: MatchedByOrderNumber, strict: true})
	})
}

// ListUnmatched 未匹配凭证列表
func (uc *Reconciler) ListUnmatched(ctx context.Context, page, pageSize int) ([]*UnmatchedPayment, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return uc.unmatched.List(ctx, page, pageSize)
}

// ========== 对账核心 ==========

func (uc *Reconciler) authenticate(rail PaymentRail, raw *RawEvidence) (*Evidence, error) {
	if err := rail.Authenticate(raw); err != nil {
		if orderErrors.Is(err, orderErrors.ReasonInvalidSignature) {
			uc.log.Warnf("payment evidence rejected: rail=%s, reason=invalid signature", rail.Kind())
			if uc.metrics != nil {
				uc.metrics.SignatureRejected.WithLabelValues(rail.Kind()).Inc()
			}
		}
		return nil, err
	}
	return rail.Extract(raw)
}

// reconcileNotification 回调类通道：未匹配到订单时确认收到但登记待人工处理
func (uc *Reconciler) reconcileNotification(ctx context.Context, rail PaymentRail, raw *RawEvidence, allowAmountMatch bool) (*Outcome, error) {
	ev, err := uc.authenticate(rail, raw)
	if err != nil {
		return nil, err
	}
	return uc.observe(rail.Kind(), func() (*Outcome, error) {
		if ev == nil {
			return &Outcome{
				Result:       constants.ResultIgnored,
				Acknowledged: true,
				Resolved:     true,
				Message:      "event ignored",
			}, nil
		}

		o, matchedBy, err := uc.locate(ctx, ev, allowAmountMatch)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return uc.recordUnmatched(ctx, rail.Kind(), ev)
		}
		return uc.apply(ctx, o.OrderNumber, ev, applyOptions{rail: rail.Kind(), matchedBy: matchedBy})
	})
}

// locate 依次按订单号、网关订单号、UTR、金额定位订单
func (uc *Reconciler) locate(ctx context.Context, ev *Evidence, allowAmountMatch bool) (*Order, string, error) {
	if ev.OrderNumber != "" {
		o, err := uc.repo.GetByOrderNumber(ctx, ev.OrderNumber)
		if err != nil || o != nil {
			return o, MatchedByOrderNumber, err
		}
	}
	if ev.ExternalOrderID != "" {
		o, err := uc.repo.GetByExternalRef(ctx, ev.ExternalOrderID)
		if err != nil || o != nil {
			return o, MatchedByExternalRef, err
		}
	}
	if ev.UTR != "" {
		o, err := uc.repo.GetByUTR(ctx, ev.UTR)
		if err != nil {
			return nil, "", err
		}
		if o != nil {
			// UTR 来自上一次按金额匹配时登记的凭证，仍视为金额匹配
			if o.ReviewReason == constants.ReviewAmountOnlyMatch {
				return o, MatchedByAmount, nil
			}
			return o, MatchedByUTR, nil
		}
	}
	// 失败通知不按金额猜测订单
	if allowAmountMatch && ev.Status == EvidenceSuccess && ev.Amount.Valid {
		o, err := uc.repo.FindLatestByAmount(ctx, ev.Amount.Decimal, uc.conf.AmountTolerance,
			[]OrderStatus{StatusPending, StatusVerifying})
		if err != nil || o != nil {
			return o, MatchedByAmount, err
		}
	}
	return nil, "", nil
}

func (uc *Reconciler) recordUnmatched(ctx context.Context, rail string, ev *Evidence) (*Outcome, error) {
	p := &UnmatchedPayment{
		ID:              uuid.New().String(),
		Rail:            rail,
		OrderNumber:     ev.OrderNumber,
		ExternalOrderID: ev.ExternalOrderID,
		PaymentRef:      ev.PaymentRef,
		UTR:             ev.UTR,
		Amount:          ev.Amount,
		MerchantVPA:     ev.MerchantVPA,
		CounterpartyVPA: ev.CounterpartyVPA,
		Failure:         ev.Status == EvidenceFailure,
		RawPayload:      ev.Raw,
		CreatedAt:       uc.now(),
	}
	if err := uc.unmatched.Record(ctx, p); err != nil {
		uc.log.Errorf("record unmatched payment failed: rail=%s, payment_ref=%s, error=%v", rail, ev.PaymentRef, err)
		return nil, err
	}
	uc.log.Warnf("no matching order for payment evidence: rail=%s, payment_ref=%s, utr=%s, amount=%s",
		rail, ev.PaymentRef, ev.UTR, formatAmount(ev.Amount))
	if uc.metrics != nil {
		uc.metrics.UnmatchedTotal.WithLabelValues(rail).Inc()
	}
	return &Outcome{
		Result:         constants.ResultUnmatched,
		Acknowledged:   true,
		Message:        "no matching order, recorded for manual review",
		ReceivedAmount: ev.Amount,
	}, nil
}

// apply 在订单锁内读取最新状态并尝试迁移，条件更新未命中时重新判断
func (uc *Reconciler) apply(ctx context.Context, orderNumber string, ev *Evidence, opts applyOptions) (*Outcome, error) {
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
		var (
			out  *Outcome
			done bool
		)
		if ev.Status == EvidenceFailure {
			out, done, err = uc.applyFailure(ctx, o, ev, opts)
		} else {
			out, done, err = uc.applySuccess(ctx, o, ev, opts)
		}
		if errors.Is(err, ErrUTRInUse) {
			return nil, orderErrors.UTRInUse(ev.UTR)
		}
		if err != nil || done {
			return out, err
		}
		recordLost(uc.metrics, o.Status)
	}
	return nil, orderErrors.ConcurrentUpdate(orderNumber)
}

func (uc *Reconciler) applySuccess(ctx context.Context, o *Order, ev *Evidence, opts applyOptions) (*Outcome, bool, error) {
	if o.Status.IsSettled() {
		uc.log.Infof("payment already recorded: order_number=%s, rail=%s, payment_ref=%s", o.OrderNumber, opts.rail, ev.PaymentRef)
		return alreadyRecorded(o, opts.matchedBy), true, nil
	}
	holder, err := uc.utrHolder(ctx, ev.UTR, o.OrderNumber)
	if err != nil {
		return nil, true, err
	}
	if holder != nil {
		uc.log.Warnf("utr already recorded on another order: order_number=%s, rail=%s, utr=%s, holder=%s",
			o.OrderNumber, opts.rail, ev.UTR, holder.OrderNumber)
		if opts.strict {
			return nil, true, orderErrors.UTRInUse(ev.UTR)
		}
		detached := *ev
		detached.UTR = ""
		return uc.holdForReview(ctx, o, &detached, opts, constants.ReviewDuplicateUTR, constants.ResultPendingReview)
	}
	if !o.Status.AwaitingPayment() {
		if opts.strict {
			return nil, true, orderErrors.InvalidTransition(o.OrderNumber, string(o.Status))
		}
		return uc.holdForReview(ctx, o, ev, opts, constants.ReviewTerminalEvidence, constants.ResultPendingReview)
	}
	if ev.Amount.Valid && !AmountMatches(o.Subtotal, ev.Amount.Decimal, uc.conf.AmountTolerance) {
		uc.log.Warnf("amount mismatch: order_number=%s, rail=%s, expected=%s, received=%s",
			o.OrderNumber, opts.rail, o.Subtotal.StringFixed(2), ev.Amount.Decimal.String())
		return uc.holdForReview(ctx, o, ev, opts, constants.ReviewAmountMismatch, constants.ResultAmountMismatch)
	}
	if opts.matchedBy == MatchedByAmount && !uc.conf.AllowAmountOnlyMatch {
		return uc.holdForReview(ctx, o, ev, opts, constants.ReviewAmountOnlyMatch, constants.ResultPendingReview)
	}

	from := o.Status
	patch := uc.evidencePatch(ev)
	patch.PaymentRef = ev.PaymentRef
	patch.PaymentMethod = opts.rail
	patch.WebhookVerified = boolPtr(ev.Verified)
	patch.StockReserved = boolPtr(true)
	patch.ReviewReason = strPtr("")
	ok, err := uc.repo.Transition(ctx, o.OrderNumber, from, StatusPaid, patch)
	if err != nil || !ok {
		return nil, false, err
	}
	recordTransition(uc.metrics, from, StatusPaid)
	uc.log.Infof("payment recorded: order_number=%s, rail=%s, from=%s, payment_ref=%s, matched_by=%s",
		o.OrderNumber, opts.rail, from, ev.PaymentRef, opts.matchedBy)

	if !o.StockReserved {
		if failed := uc.inventory.Reserve(ctx, o); failed > 0 {
			uc.log.Errorf("inventory decrement incomplete: order_number=%s, failed_items=%d", o.OrderNumber, failed)
		}
	}
	o.Status = StatusPaid
	o.StockReserved = true
	o.PaymentRef = ev.PaymentRef
	o.PaymentMethod = opts.rail
	o.WebhookVerified = ev.Verified
	o.ReviewReason = ""
	if from == StatusPending {
		uc.notifier.Notify(ctx, NotifyPaymentConfirmed, o)
	} else {
		uc.notifier.Notify(ctx, NotifyStatusChanged, o)
	}

	out := recorded(o, opts.matchedBy)
	out.ReceivedAmount = ev.Amount
	return out, true, nil
}

func (uc *Reconciler) applyFailure(ctx context.Context, o *Order, ev *Evidence, opts applyOptions) (*Outcome, bool, error) {
	if o.Status == StatusFailed {
		return alreadyRecorded(o, opts.matchedBy), true, nil
	}
	holder, err := uc.utrHolder(ctx, ev.UTR, o.OrderNumber)
	if err != nil {
		return nil, true, err
	}
	if holder != nil {
		uc.log.Warnf("failure notice ignored, utr belongs to %s: order_number=%s, rail=%s", holder.OrderNumber, o.OrderNumber, opts.rail)
		return &Outcome{
			OrderNumber:  o.OrderNumber,
			Status:       o.Status,
			Result:       constants.ResultIgnored,
			Acknowledged: true,
			Resolved:     true,
			MatchedBy:    opts.matchedBy,
			Message:      "utr belongs to another order, failure notice ignored",
		}, true, nil
	}
	if !o.Status.AwaitingPayment() {
		uc.log.Warnf("failure notice ignored for %s order: order_number=%s, rail=%s", o.Status, o.OrderNumber, opts.rail)
		return &Outcome{
			OrderNumber:  o.OrderNumber,
			Status:       o.Status,
			Result:       constants.ResultIgnored,
			Acknowledged: true,
			Resolved:     true,
			MatchedBy:    opts.matchedBy,
			Message:      fmt.Sprintf("order is already %s, failure notice ignored", o.Status),
		}, true, nil
	}

	from := o.Status
	patch := uc.evidencePatch(ev)
	patch.PaymentMethod = opts.rail
	patch.WebhookVerified = boolPtr(ev.Verified)
	patch.StockReserved = boolPtr(false)
	ok, err := uc.repo.Transition(ctx, o.OrderNumber, from, StatusFailed, patch)
	if err != nil || !ok {
		return nil, false, err
	}
	recordTransition(uc.metrics, from, StatusFailed)
	uc.log.Infof("payment failed: order_number=%s, rail=%s, from=%s", o.OrderNumber, opts.rail, from)

	if o.StockReserved {
		if failed := uc.inventory.Restore(ctx, o); failed > 0 {
			uc.log.Errorf("inventory restore incomplete: order_number=%s, failed_items=%d", o.OrderNumber, failed)
		}
	}
	o.Status = StatusFailed
	o.StockReserved = false
	uc.notifier.Notify(ctx, NotifyStatusChanged, o)

	return &Outcome{
		OrderNumber:  o.OrderNumber,
		Status:       StatusFailed,
		Result:       constants.ResultFailed,
		Acknowledged: true,
		Resolved:     true,
		MatchedBy:    opts.matchedBy,
		Message:      "payment rejected, contact support",
	}, true, nil
}

// holdForReview 登记凭证与复核原因，不改变状态
func (uc *Reconciler) holdForReview(ctx context.Context, o *Order, ev *Evidence, opts applyOptions, reason, result string) (*Outcome, bool, error) {
	patch := uc.evidencePatch(ev)
	patch.ReviewReason = strPtr(reason)
	ok, err := uc.repo.Transition(ctx, o.OrderNumber, o.Status, o.Status, patch)
	if err != nil || !ok {
		return nil, false, err
	}
	if uc.metrics != nil {
		uc.metrics.ReviewFlagTotal.WithLabelValues(reason).Inc()
	}
	uc.log.Warnf("payment evidence held for review: order_number=%s, status=%s, rail=%s, reason=%s", o.OrderNumber, o.Status, opts.rail, reason)

	return &Outcome{
		OrderNumber:    o.OrderNumber,
		Status:         o.Status,
		Result:         result,
		Acknowledged:   true,
		MatchedBy:      opts.matchedBy,
		Message:        "payment pending manual verification",
		ExpectedAmount: decimal.NewNullDecimal(o.Subtotal),
		ReceivedAmount: ev.Amount,
	}, true, nil
}

// utrHolder 返回已登记该流水号的其他订单
func (uc *Reconciler) utrHolder(ctx context.Context, utr, orderNumber string) (*Order, error) {
	if utr == "" {
		return nil, nil
	}
	o, err := uc.repo.GetByUTR(ctx, utr)
	if err != nil || o == nil || o.OrderNumber == orderNumber {
		return nil, err
	}
	return o, nil
}

func (uc *Reconciler) evidencePatch(ev *Evidence) *OrderPatch {
	return &OrderPatch{
		UTR:             ev.UTR,
		CounterpartyVPA: ev.CounterpartyVPA,
		MerchantVPA:     ev.MerchantVPA,
		RawPayload:      ev.Raw,
	}
}

// observe 记录对账指标
func (uc *Reconciler) observe(rail string, fn func() (*Outcome, error)) (*Outcome, error) {
	start := time.Now()
	out, err := fn()
	if uc.metrics != nil {
		result := constants.ResultRejected
		if err == nil && out != nil {
			result = out.Result
		}
		uc.metrics.ReconcileTotal.WithLabelValues(rail, result).Inc()
		uc.metrics.ReconcileDuration.WithLabelValues(rail).Observe(time.Since(start).Seconds())
	}
	return out, err
}

func recorded(o *Order, matchedBy string) *Outcome {
	return &Outcome{
		OrderNumber:  o.OrderNumber,
		Status:       o.Status,
		Result:       constants.ResultRecorded,
		Acknowledged: true,
		Resolved:     true,
		MatchedBy:    matchedBy,
		Message:      "payment recorded",
	}
}

func alreadyRecorded(o *Order, matchedBy string) *Outcome {
	return &Outcome{
		OrderNumber:  o.OrderNumber,
		Status:       o.Status,
		Result:       constants.ResultAlreadyRecorded,
		Acknowledged: true,
		Resolved:     true,
		MatchedBy:    matchedBy,
		Message:      "payment already recorded",
	}
}

// owns 订单归属：优先比对用户 ID，历史订单无用户 ID 时比对邮箱
func owns(customer Customer, o *Order) bool {
	if o.Customer.UserID != "" {
		return o.Customer.UserID == customer.UserID
	}
	return customer.Email != "" && strings.EqualFold(o.Customer.Email, customer.Email)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatAmount(a decimal.NullDecimal) string {
	if !a.Valid {
		return "-"
	}
	return a.Decimal.String()
}
