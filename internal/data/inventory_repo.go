package data

import (
	"context"

	"order-service/internal/biz"
	"order-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// inventoryRepo 商品库存数据访问，每次调整为单条 UPDATE
type inventoryRepo struct {
	data *Data
	log  *log.Helper
}

// NewInventoryRepo 创建库存 repo
func NewInventoryRepo(data *Data, logger log.Logger) biz.InventoryRepo {
	return &inventoryRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Decrement 扣减库存，不足时截断为 0
func (r *inventoryRepo) Decrement(ctx context.Context, catalogItemID int64, quantity int) (bool, error) {
	return r.update(ctx, catalogItemID,
		gorm.Expr("CASE WHEN stock >= ? THEN stock - ? ELSE 0 END", quantity, quantity))
}

// Increment 归还库存
func (r *inventoryRepo) Increment(ctx context.Context, catalogItemID int64, quantity int) (bool, error) {
	return r.update(ctx, catalogItemID, gorm.Expr("stock + ?", quantity))
}

func (r *inventoryRepo) update(ctx context.Context, catalogItemID int64, expr interface{}) (bool, error) {
	res := r.data.db.WithContext(ctx).Model(&model.CatalogItem{}).
		Where("id = ?", catalogItemID).
		Update("stock", expr)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// MySQL 对未变化的行返回 0，需区分商品不存在
	var count int64
	if err := r.data.db.WithContext(ctx).Model(&model.CatalogItem{}).Where("id = ?", catalogItemID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
