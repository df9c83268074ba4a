package data

import (
	"context"
	"errors"
	"time"

	"order-service/internal/biz"
	"order-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// orderRepo 订单数据访问
type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo 创建订单 repo（返回 biz.OrderRepo 接口）
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Create 创建订单，订单号重复时返回 biz.ErrOrderNumberTaken
func (r *orderRepo) Create(ctx context.Context, o *biz.Order) error {
	m := toOrderModel(o)
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return biz.ErrOrderNumberTaken
		}
		return err
	}
	o.ID = m.ID
	o.CreatedAt = m.CreatedAt
	o.UpdatedAt = m.UpdatedAt
	return nil
}

// GetByOrderNumber 按订单号查询，不存在返回 nil
func (r *orderRepo) GetByOrderNumber(ctx context.Context, orderNumber string) (*biz.Order, error) {
	return r.first(ctx, "order_number = ?", orderNumber)
}

// GetByExternalRef 按网关订单号查询
func (r *orderRepo) GetByExternalRef(ctx context.Context, externalRef string) (*biz.Order, error) {
	return r.first(ctx, "external_ref = ?", externalRef)
}

// GetByUTR 按银行流水号查询
func (r *orderRepo) GetByUTR(ctx context.Context, utr string) (*biz.Order, error) {
	return r.first(ctx, "utr = ?", utr)
}

func (r *orderRepo) first(ctx context.Context, query string, args ...interface{}) (*biz.Order, error) {
	var m model.Order
	err := r.data.db.WithContext(ctx).
		Where(query, args...).
		Order("created_at DESC").Order("id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toOrder(&m), nil
}

// FindLatestByAmount 金额容差内、指定状态的最新订单
func (r *orderRepo) FindLatestByAmount(ctx context.Context, amount, tolerance decimal.Decimal, statuses []biz.OrderStatus) (*biz.Order, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	return r.first(ctx, "status IN ? AND subtotal BETWEEN ? AND ?",
		statusStrings(statuses), amount.Sub(tolerance), amount.Add(tolerance))
}

// Transition 条件更新 status = from 的行；utr 唯一约束冲突返回 biz.ErrUTRInUse
func (r *orderRepo) Transition(ctx context.Context, orderNumber string, from, to biz.OrderStatus, patch *biz.OrderPatch) (bool, error) {
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now(),
	}
	if patch != nil {
		for column, v := range map[string]string{
			"external_ref":     patch.ExternalRef,
			"payment_ref":      patch.PaymentRef,
			"payment_method":   patch.PaymentMethod,
			"utr":              patch.UTR,
			"counterparty_vpa": patch.CounterpartyVPA,
			"merchant_vpa":     patch.MerchantVPA,
		} {
			if v != "" {
				updates[column] = v
			}
		}
		if len(patch.RawPayload) > 0 {
			updates["raw_payload"] = datatypes.JSON(patch.RawPayload)
		}
		if patch.WebhookVerified != nil {
			updates["webhook_verified"] = *patch.WebhookVerified
		}
		if patch.StockReserved != nil {
			updates["stock_reserved"] = *patch.StockReserved
		}
		if patch.ReviewReason != nil {
			updates["review_reason"] = *patch.ReviewReason
		}
	}

	res := r.data.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_number = ? AND status = ?", orderNumber, string(from)).
		Updates(updates)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, biz.ErrUTRInUse
		}
		r.log.Errorf("order transition failed: order_number=%s, from=%s, to=%s, error=%v", orderNumber, from, to, res.Error)
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	if from != to {
		return false, nil
	}
	// MySQL 未开启 clientFoundRows 时，值未变化的行不计入 RowsAffected
	var n int64
	err := r.data.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_number = ? AND status = ?", orderNumber, string(from)).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListByCustomer 客户订单：按用户 ID，历史订单无用户 ID 时按邮箱
func (r *orderRepo) ListByCustomer(ctx context.Context, userID, email string) ([]*biz.Order, error) {
	db := r.data.db.WithContext(ctx)
	switch {
	case userID != "" && email != "":
		db = db.Where("user_id = ? OR (user_id = '' AND customer_email = ?)", userID, email)
	case userID != "":
		db = db.Where("user_id = ?", userID)
	case email != "":
		db = db.Where("user_id = '' AND customer_email = ?", email)
	default:
		return nil, nil
	}

	var ms []*model.Order
	if err := db.Order("created_at DESC").Order("id DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	return toOrders(ms), nil
}

// List 管理端分页查询
func (r *orderRepo) List(ctx context.Context, filter *biz.OrderFilter) ([]*biz.Order, int64, error) {
	db := r.data.db.WithContext(ctx).Model(&model.Order{})
	if filter.Status != "" {
		db = db.Where("status = ?", string(filter.Status))
	}
	if filter.NeedsReview {
		db = db.Where("review_reason <> ''")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []*model.Order
	offset := (filter.Page - 1) * filter.PageSize
	if err := db.Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(filter.PageSize).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}
	return toOrders(ms), total, nil
}

// ListStale 指定状态且创建时间早于 before 的订单，按创建时间升序
func (r *orderRepo) ListStale(ctx context.Context, status biz.OrderStatus, before time.Time, limit int) ([]*biz.Order, error) {
	db := r.data.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(status), before).
		Order("created_at ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	var ms []*model.Order
	if err := db.Find(&ms).Error; err != nil {
		return nil, err
	}
	return toOrders(ms), nil
}

func statusStrings(statuses []biz.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toOrderModel(o *biz.Order) *model.Order {
	items := make([]model.LineItem, len(o.LineItems))
	for i, li := range o.LineItems {
		items[i] = model.LineItem{
			CatalogItemID: li.CatalogItemID,
			Name:          li.Name,
			UnitPrice:     li.UnitPrice,
			Quantity:      li.Quantity,
			ImageRef:      li.ImageRef,
		}
	}
	m := &model.Order{
		OrderNumber:     o.OrderNumber,
		ExternalRef:     o.ExternalRef,
		PaymentRef:      o.PaymentRef,
		PaymentMethod:   o.PaymentMethod,
		UTR:             nullString(o.UTR),
		CounterpartyVPA: o.CounterpartyVPA,
		MerchantVPA:     o.MerchantVPA,
		WebhookVerified: o.WebhookVerified,
		UserID:          o.Customer.UserID,
		CustomerEmail:   o.Customer.Email,
		CustomerName:    o.Customer.Name,
		CustomerPhone:   o.Customer.Phone,
		ShippingAddress: o.Customer.ShippingAddress,
		LineItems:       datatypes.NewJSONSlice(items),
		Subtotal:        o.Subtotal,
		Status:          string(o.Status),
		StockReserved:   o.StockReserved,
		ReviewReason:    o.ReviewReason,
		CreatedAt:       o.CreatedAt,
	}
	if len(o.RawPayload) > 0 {
		m.RawPayload = datatypes.JSON(o.RawPayload)
	}
	return m
}

func toOrder(m *model.Order) *biz.Order {
	items := make([]biz.LineItem, len(m.LineItems))
	for i, li := range m.LineItems {
		items[i] = biz.LineItem{
			CatalogItemID: li.CatalogItemID,
			Name:          li.Name,
			UnitPrice:     li.UnitPrice,
			Quantity:      li.Quantity,
			ImageRef:      li.ImageRef,
		}
	}
	return &biz.Order{
		ID:              m.ID,
		OrderNumber:     m.OrderNumber,
		ExternalRef:     m.ExternalRef,
		PaymentRef:      m.PaymentRef,
		PaymentMethod:   m.PaymentMethod,
		UTR:             derefString(m.UTR),
		CounterpartyVPA: m.CounterpartyVPA,
		MerchantVPA:     m.MerchantVPA,
		WebhookVerified: m.WebhookVerified,
		RawPayload:      []byte(m.RawPayload),
		Customer: biz.Customer{
			UserID:          m.UserID,
			Email:           m.CustomerEmail,
			Name:            m.CustomerName,
			Phone:           m.CustomerPhone,
			ShippingAddress: m.ShippingAddress,
		},
		LineItems:     items,
		Subtotal:      m.Subtotal,
		Status:        biz.OrderStatus(m.Status),
		StockReserved: m.StockReserved,
		ReviewReason:  m.ReviewReason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toOrders(ms []*model.Order) []*biz.Order {
	out := make([]*biz.Order, 0, len(ms))
	for _, m := range ms {
		out = append(out, toOrder(m))
	}
	return out
}
