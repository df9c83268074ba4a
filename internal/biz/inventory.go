package biz

import (
	"context"
	"fmt"

	"order-service/internal/constants"
	"order-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// InventoryRepo 库存数据层接口
// 每次调用必须是单条原子语句，扣减在 0 处截断；found=false 表示商品不存在
type InventoryRepo interface {
	Decrement(ctx context.Context, catalogItemID int64, quantity int) (found bool, err error)
	Increment(ctx context.Context, catalogItemID int64, quantity int) (found bool, err error)
}

// InventoryAdjuster 按订单行调整库存
type InventoryAdjuster struct {
	repo    InventoryRepo
	log     *log.Helper
	metrics *metrics.OrderMetrics
}

// NewInventoryAdjuster 创建库存调整器
func NewInventoryAdjuster(repo InventoryRepo, logger log.Logger) *InventoryAdjuster {
	return &InventoryAdjuster{
		repo:    repo,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Decrement 扣减单个商品库存
func (a *InventoryAdjuster) Decrement(ctx context.Context, catalogItemID int64, quantity int) error {
	return a.adjust(ctx, constants.InventoryDecrement, catalogItemID, quantity)
}

// Increment 归还单个商品库存
func (a *InventoryAdjuster) Increment(ctx context.Context, catalogItemID int64, quantity int) error {
	return a.adjust(ctx, constants.InventoryIncrement, catalogItemID, quantity)
}

// Reserve 扣减订单全部行的库存，单行失败不影响其他行，返回失败行数
func (a *InventoryAdjuster) Reserve(ctx context.Context, o *Order) int {
	return a.applyOrder(ctx, o, constants.InventoryDecrement)
}

// Restore 归还订单全部行的库存，返回失败行数
func (a *InventoryAdjuster) Restore(ctx context.Context, o *Order) int {
	return a.applyOrder(ctx, o, constants.InventoryIncrement)
}

func (a *InventoryAdjuster) applyOrder(ctx context.Context, o *Order, op string) int {
	failed := 0
	for _, li := range o.LineItems {
		if li.CatalogItemID == 0 || li.Quantity <= 0 {
			continue
		}
		if err := a.adjust(ctx, op, li.CatalogItemID, li.Quantity); err != nil {
			failed++
			a.log.Errorf("inventory %s needs reconciliation: order_number=%s, catalog_item_id=%d, quantity=%d, error=%v",
				op, o.OrderNumber, li.CatalogItemID, li.Quantity, err)
		}
	}
	return failed
}

func (a *InventoryAdjuster) adjust(ctx context.Context, op string, catalogItemID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("invalid quantity %d", quantity)
	}
	var (
		found bool
		err   error
	)
	if op == constants.InventoryDecrement {
		found, err = a.repo.Decrement(ctx, catalogItemID, quantity)
	} else {
		found, err = a.repo.Increment(ctx, catalogItemID, quantity)
	}
	if err == nil && !found {
		err = fmt.Errorf("catalog item %d not found", catalogItemID)
	}
	if err != nil {
		if a.metrics != nil {
			a.metrics.InventoryAdjustFailed.WithLabelValues(op).Inc()
		}
		return err
	}
	if a.metrics != nil {
		a.metrics.InventoryAdjustTotal.WithLabelValues(op).Inc()
	}
	return nil
}
