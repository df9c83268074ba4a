package biz

import (
	"context"
	"time"

	"order-service/internal/constants"
	"order-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// SweepResult 一次扫描的结果
type SweepResult struct {
	Cancelled       []string // 超时取消的 pending 订单
	FlaggedOverdue  []string // 本次新标记为超时未核验的 verifying 订单
	OverdueVerifies int      // 当前超时未核验的订单总数
}

// SweepUseCase 过期订单扫描
// pending 订单超过 PendingTTL 取消（未占库存）；verifying 订单超时只标记复核，资金可能已到账，不自动释放库存
type SweepUseCase struct {
	repo    OrderRepo
	conf    *PaymentConfig
	log     *log.Helper
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// NewSweepUseCase 创建扫描 UseCase
func NewSweepUseCase(repo OrderRepo, conf *PaymentConfig, logger log.Logger) *SweepUseCase {
	return &SweepUseCase{
		repo:    repo,
		conf:    conf,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
		now:     time.Now,
	}
}

// SweepStaleOrders 执行一次扫描
func (uc *SweepUseCase) SweepStaleOrders(ctx context.Context) (*SweepResult, error) {
	now := uc.now()
	result := &SweepResult{}

	if uc.conf.PendingTTL > 0 {
		stale, err := uc.repo.ListStale(ctx, StatusPending, now.Add(-uc.conf.PendingTTL), uc.conf.SweepBatchSize)
		if err != nil {
			return nil, err
		}
		for _, o := range stale {
			ok, err := uc.repo.Transition(ctx, o.OrderNumber, StatusPending, StatusCancelled, &OrderPatch{})
			if err != nil {
				uc.log.Errorf("cancel stale order failed: order_number=%s, error=%v", o.OrderNumber, err)
				continue
			}
			if !ok {
				// 扫描期间已被支付或确认
				continue
			}
			recordTransition(uc.metrics, StatusPending, StatusCancelled)
			result.Cancelled = append(result.Cancelled, o.OrderNumber)
		}
		if uc.metrics != nil {
			uc.metrics.SweepCancelledTotal.Add(float64(len(result.Cancelled)))
		}
	}

	if uc.conf.VerifyingAlertAfter > 0 {
		overdue, err := uc.repo.ListStale(ctx, StatusVerifying, now.Add(-uc.conf.VerifyingAlertAfter), uc.conf.SweepBatchSize)
		if err != nil {
			return nil, err
		}
		result.OverdueVerifies = len(overdue)
		for _, o := range overdue {
			if o.ReviewReason != "" {
				continue
			}
			ok, err := uc.repo.Transition(ctx, o.OrderNumber, StatusVerifying, StatusVerifying,
				&OrderPatch{ReviewReason: strPtr(constants.ReviewVerificationOverdue)})
			if err != nil {
				uc.log.Errorf("flag overdue order failed: order_number=%s, error=%v", o.OrderNumber, err)
				continue
			}
			if ok {
				result.FlaggedOverdue = append(result.FlaggedOverdue, o.OrderNumber)
				if uc.metrics != nil {
					uc.metrics.ReviewFlagTotal.WithLabelValues(constants.ReviewVerificationOverdue).Inc()
				}
			}
		}
		if uc.metrics != nil {
			uc.metrics.VerifyingOverdue.Set(float64(result.OverdueVerifies))
		}
	}

	uc.log.Infof("sweep finished: cancelled=%d, flagged_overdue=%d, overdue_total=%d",
		len(result.Cancelled), len(result.FlaggedOverdue), result.OverdueVerifies)
	return result, nil
}
