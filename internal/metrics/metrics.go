package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrderMetrics 订单对账指标
type OrderMetrics struct {
	// 订单创建
	OrderCreateTotal    *prometheus.CounterVec // 订单创建总数（按通道、结果）
	OrderCreateDuration prometheus.Histogram   // 订单创建耗时

	// 对账相关指标
	ReconcileTotal    *prometheus.CounterVec   // 对账结果（按通道、结果）
	ReconcileDuration *prometheus.HistogramVec // 对账耗时（按通道）
	TransitionTotal   *prometheus.CounterVec   // 状态迁移（按 from/to）
	TransitionLost    *prometheus.CounterVec   // 条件更新未命中（并发竞争，按 from）
	SignatureRejected *prometheus.CounterVec   // 签名校验失败（按通道）
	UnmatchedTotal    *prometheus.CounterVec   // 未匹配到订单的支付凭证（按通道）
	ReviewFlagTotal   *prometheus.CounterVec   // 标记人工复核（按原因）

	// 库存相关指标
	InventoryAdjustTotal  *prometheus.CounterVec // 库存调整（按操作）
	InventoryAdjustFailed *prometheus.CounterVec // 库存调整失败，需要人工对账（按操作）

	// 通知相关指标
	NotificationTotal  *prometheus.CounterVec // 通知发送（按类型、结果）
	NotificationFailed *prometheus.CounterVec // 依赖失败（按步骤）

	// 分布式锁相关指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时

	// 扫描任务
	SweepCancelledTotal prometheus.Counter // 超时取消的待支付订单
	VerifyingOverdue    prometheus.Gauge   // 超时未核验的订单数
}

// NewOrderMetrics 创建订单对账指标
func NewOrderMetrics() *OrderMetrics {
	return &OrderMetrics{
		OrderCreateTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_create_total",
				Help: "Total number of orders created",
			},
			[]string{"rail", "result"},
		),
		OrderCreateDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_create_duration_seconds",
				Help:    "Duration of order creation",
				Buckets: prometheus.DefBuckets,
			},
		),

		ReconcileTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_reconcile_total",
				Help: "Total number of payment reconciliation outcomes",
			},
			[]string{"rail", "result"},
		),
		ReconcileDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "order_reconcile_duration_seconds",
				Help:    "Duration of payment reconciliation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"rail"},
		),
		TransitionTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transition_total",
				Help: "Total number of order status transitions",
			},
			[]string{"from", "to"},
		),
		TransitionLost: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_transition_lost_total",
				Help: "Conditional transitions that lost a concurrent race",
			},
			[]string{"from"},
		),
		SignatureRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_signature_rejected_total",
				Help: "Total number of payment notifications with invalid signatures",
			},
			[]string{"rail"},
		),
		UnmatchedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_unmatched_payment_total",
				Help: "Payment evidence that matched no order",
			},
			[]string{"rail"},
		),
		ReviewFlagTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_review_flag_total",
				Help: "Orders flagged for manual review",
			},
			[]string{"reason"},
		),

		InventoryAdjustTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_inventory_adjust_total",
				Help: "Total number of inventory adjustments",
			},
			[]string{"operation"},
		),
		InventoryAdjustFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_inventory_adjust_failed_total",
				Help: "Inventory adjustments that failed and need reconciliation",
			},
			[]string{"operation"},
		),

		NotificationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_notification_total",
				Help: "Total number of notification events handled",
			},
			[]string{"kind", "result"},
		),
		NotificationFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_notification_failed_total",
				Help: "Notification dependency failures",
			},
			[]string{"step"},
		),

		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_lock_acquire_total",
				Help: "Total number of lock acquisition attempts",
			},
			[]string{"result"},
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),

		SweepCancelledTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "order_sweep_cancelled_total",
				Help: "Stale pending orders cancelled by the sweep",
			},
		),
		VerifyingOverdue: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "order_verifying_overdue",
				Help: "Orders waiting for payment verification longer than the alert threshold",
			},
		),
	}
}

// 全局指标实例
var defaultMetrics *OrderMetrics

// InitMetrics 初始化全局指标
func InitMetrics() {
	defaultMetrics = NewOrderMetrics()
}

// GetMetrics 获取全局指标实例
func GetMetrics() *OrderMetrics {
	if defaultMetrics == nil {
		InitMetrics()
	}
	return defaultMetrics
}
