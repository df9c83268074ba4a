package data

import (
	"context"
	"time"

	"order-service/internal/biz"
	"order-service/internal/conf"
	"order-service/internal/constants"
	orderErrors "order-service/internal/errors"
	"order-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

const defaultLockExpiry = 10 * time.Second

// orderLocker 基于 redsync 的订单级互斥锁
type orderLocker struct {
	sync    *redsync.Redsync
	expiry  time.Duration
	log     *log.Helper
	metrics *metrics.OrderMetrics
}

// NewOrderLocker 创建订单锁；未配置 Redis 时返回 nil，由条件更新保证正确性
func NewOrderLocker(rs *redsync.Redsync, c *conf.Bootstrap, logger log.Logger) biz.OrderLocker {
	if rs == nil {
		log.NewHelper(logger).Info("redis not configured, order lock disabled")
		return nil
	}
	expiry := defaultLockExpiry
	if c.Data != nil && c.Data.Redis != nil {
		expiry = conf.MustDuration(c.Data.Redis.LockExpiry, defaultLockExpiry)
	}
	return &orderLocker{
		sync:    rs,
		expiry:  expiry,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Lock 获取订单锁，失败返回 503
func (l *orderLocker) Lock(ctx context.Context, orderNumber string) (func(), error) {
	start := time.Now()
	mutex := l.sync.NewMutex(constants.RedisKeyOrderLock+orderNumber, redsync.WithExpiry(l.expiry))
	if err := mutex.LockContext(ctx); err != nil {
		l.log.Errorf("failed to acquire order lock: order_number=%s, error=%v", orderNumber, err)
		l.observe(constants.LockResultFailed, start)
		return nil, orderErrors.Unavailable(orderErrors.ReasonOrderLocked, err)
	}
	l.observe(constants.LockResultSuccess, start)

	return func() {
		if ok, err := mutex.UnlockContext(context.Background()); !ok || err != nil {
			l.log.Warnf("failed to release order lock: order_number=%s, error=%v", orderNumber, err)
		}
	}, nil
}

func (l *orderLocker) observe(result string, start time.Time) {
	if l.metrics == nil {
		return
	}
	l.metrics.LockAcquireTotal.WithLabelValues(result).Inc()
	l.metrics.LockAcquireDuration.Observe(time.Since(start).Seconds())
}
