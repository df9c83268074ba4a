package biz

import (
	"context"
	"fmt"
	"time"

	"order-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// NotificationKind 通知事件类型
type NotificationKind string

const (
	NotifyOrderPlaced      NotificationKind = "order_placed"      // 新订单提醒管理员
	NotifyPaymentSubmitted NotificationKind = "payment_submitted" // 客户已提交支付：发票 + 管理员提醒
	NotifyPaymentConfirmed NotificationKind = "payment_confirmed" // 直接落账：发票 + 管理员提醒
	NotifyStatusChanged    NotificationKind = "status_changed"    // 状态变更邮件
)

// NotificationEvent 通知事件，只携带订单号，处理时重新读取订单快照
type NotificationEvent struct {
	ID          string           `json:"id"`
	Kind        NotificationKind `json:"kind"`
	OrderNumber string           `json:"order_number"`
	Status      OrderStatus      `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationDispatcher 发票与邮件投递（外部协作方）
type NotificationDispatcher interface {
	RenderInvoice(ctx context.Context, o *Order) ([]byte, error)
	SendInvoice(ctx context.Context, email, name, orderNumber string, document []byte) error
	SendAdminNotification(ctx context.Context, o *Order, document []byte) error
	SendStatusUpdate(ctx context.Context, email, name, orderNumber string, status OrderStatus) error
}

// NotificationQueue 通知事件队列，未启用 MQ 时为 nil
type NotificationQueue interface {
	Publish(ctx context.Context, event *NotificationEvent) error
}

// Notifier 状态迁移提交后的通知触发器，失败只记录不回滚
type Notifier struct {
	repo       OrderRepo
	dispatcher NotificationDispatcher
	queue      NotificationQueue
	conf       *PaymentConfig
	log        *log.Helper
	metrics    *metrics.OrderMetrics
}

// NewNotifier 创建通知触发器
func NewNotifier(repo OrderRepo, dispatcher NotificationDispatcher, queue NotificationQueue, conf *PaymentConfig, logger log.Logger) *Notifier {
	return &Notifier{
		repo:       repo,
		dispatcher: dispatcher,
		queue:      queue,
		conf:       conf,
		log:        log.NewHelper(logger),
		metrics:    metrics.GetMetrics(),
	}
}

// Notify 投递通知事件：优先入队，其次进程内异步，测试环境同步执行
func (n *Notifier) Notify(ctx context.Context, kind NotificationKind, o *Order) {
	event := &NotificationEvent{
		ID:          uuid.New().String(),
		Kind:        kind,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		CreatedAt:   time.Now(),
	}

	if n.queue != nil {
		err := n.queue.Publish(ctx, event)
		if err == nil {
			return
		}
		n.log.Warnf("publish notification failed, dispatching in process: order_number=%s, kind=%s, error=%v", o.OrderNumber, kind, err)
	}

	if !n.conf.NotifyAsync {
		n.dispatch(ctx, event, o)
		return
	}
	snapshot := *o
	go func() {
		dctx, cancel := context.WithTimeout(context.Background(), n.conf.NotifyTimeout)
		defer cancel()
		n.dispatch(dctx, event, &snapshot)
	}()
}

// Handle 处理队列中的通知事件；只有读取订单失败才返回错误以便重试
func (n *Notifier) Handle(ctx context.Context, event *NotificationEvent) error {
	o, err := n.repo.GetByOrderNumber(ctx, event.OrderNumber)
	if err != nil {
		return fmt.Errorf("load order %s: %w", event.OrderNumber, err)
	}
	if o == nil {
		n.log.Warnf("notification for unknown order dropped: order_number=%s, kind=%s", event.OrderNumber, event.Kind)
		return nil
	}
	n.dispatch(ctx, event, o)
	return nil
}

func (n *Notifier) dispatch(ctx context.Context, event *NotificationEvent, o *Order) {
	if n.dispatcher == nil {
		return
	}
	status := event.Status
	if status == "" {
		status = o.Status
	}

	ok := true
	switch event.Kind {
	case NotifyOrderPlaced:
		ok = n.step(event, "admin_notification", n.dispatcher.SendAdminNotification(ctx, o, nil))
	case NotifyPaymentSubmitted, NotifyPaymentConfirmed:
		doc, err := n.dispatcher.RenderInvoice(ctx, o)
		if !n.step(event, "render_invoice", err) {
			doc = nil
			ok = false
		}
		if doc != nil {
			ok = n.step(event, "send_invoice", n.dispatcher.SendInvoice(ctx, o.Customer.Email, o.Customer.Name, o.OrderNumber, doc)) && ok
		}
		ok = n.step(event, "admin_notification", n.dispatcher.SendAdminNotification(ctx, o, doc)) && ok
	case NotifyStatusChanged:
		ok = n.step(event, "status_update", n.dispatcher.SendStatusUpdate(ctx, o.Customer.Email, o.Customer.Name, o.OrderNumber, status))
	default:
		n.log.Warnf("unknown notification kind: %s", event.Kind)
		return
	}

	result := "success"
	if !ok {
		result = "failed"
	}
	if n.metrics != nil {
		n.metrics.NotificationTotal.WithLabelValues(string(event.Kind), result).Inc()
	}
}

func (n *Notifier) step(event *NotificationEvent, step string, err error) bool {
	if err == nil {
		return true
	}
	n.log.Errorf("notification step failed: order_number=%s, kind=%s, step=%s, error=%v", event.OrderNumber, event.Kind, step, err)
	if n.metrics != nil {
		n.metrics.NotificationFailed.WithLabelValues(step).Inc()
	}
	return false
}
