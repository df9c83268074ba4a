package service

import (
	"context"

	v1 "order-service/api/order/v1"
	"order-service/internal/auth"
	"order-service/internal/biz"
	orderErrors "order-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// AdminService 管理端：订单查询、人工核验、履约与未匹配凭证
type AdminService struct {
	orders     *biz.OrderUseCase
	reconciler *biz.Reconciler
	log        *log.Helper
}

// NewAdminService 创建 AdminService
func NewAdminService(orders *biz.OrderUseCase, reconciler *biz.Reconciler, logger log.Logger) *AdminService {
	return &AdminService{
		orders:     orders,
		reconciler: reconciler,
		log:        log.NewHelper(logger),
	}
}

// ListOrders 订单列表
func (s *AdminService) ListOrders(ctx context.Context, req *v1.ListOrdersRequest) (*v1.ListOrdersReply, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	filter := &biz.OrderFilter{NeedsReview: req.NeedsReview, Page: req.Page, PageSize: req.PageSize}
	if req.Status != "" {
		status, ok := biz.ParseOrderStatus(req.Status)
		if !ok {
			return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "unknown status %q", req.Status)
		}
		filter.Status = status
	}
	orders, total, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		s.log.Errorf("ListOrders failed: %v", err)
		return nil, err
	}
	return &v1.ListOrdersReply{
		Orders:   toOrders(orders),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// ManualVerify 人工核验
func (s *AdminService) ManualVerify(ctx context.Context, req *v1.ManualVerifyRequest) (*v1.PaymentReply, error) {
	claims, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.reconciler.ManualVerify(ctx, req.OrderNumber, req.Verified, claims.Operator())
	if err != nil {
		s.log.Errorf("ManualVerify failed: order_number=%s, operator=%s, error=%v", req.OrderNumber, claims.Operator(), err)
		return nil, err
	}
	return toPaymentReply(out), nil
}

// ManualUTR 补录银行流水
func (s *AdminService) ManualUTR(ctx context.Context, req *v1.ManualUTRRequest) (*v1.PaymentReply, error) {
	claims, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	p := &biz.ManualPayment{OrderNumber: req.OrderNumber, UTR: req.UTR, MerchantVPA: req.MerchantVPA}
	if req.Amount != nil {
		p.Amount = decimal.NewNullDecimal(*req.Amount)
	}
	out, err := s.reconciler.ManualUTROverride(ctx, p, claims.Operator())
	if err != nil {
		s.log.Errorf("ManualUTR failed: order_number=%s, operator=%s, error=%v", req.OrderNumber, claims.Operator(), err)
		return nil, err
	}
	return toPaymentReply(out), nil
}

// UpdateOrderStatus 履约状态维护
func (s *AdminService) UpdateOrderStatus(ctx context.Context, req *v1.UpdateOrderStatusRequest) (*v1.OrderReply, error) {
	claims, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	status, ok := biz.ParseOrderStatus(req.Status)
	if !ok {
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "unknown status %q", req.Status)
	}
	o, err := s.orders.UpdateFulfillmentStatus(ctx, req.OrderNumber, status, claims.Operator())
	if err != nil {
		s.log.Errorf("UpdateOrderStatus failed: order_number=%s, status=%s, error=%v", req.OrderNumber, req.Status, err)
		return nil, err
	}
	return &v1.OrderReply{Order: toOrder(o)}, nil
}

// ListUnmatched 未匹配凭证
func (s *AdminService) ListUnmatched(ctx context.Context, req *v1.ListUnmatchedRequest) (*v1.ListUnmatchedReply, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	payments, total, err := s.reconciler.ListUnmatched(ctx, req.Page, req.PageSize)
	if err != nil {
		s.log.Errorf("ListUnmatched failed: %v", err)
		return nil, err
	}
	reply := &v1.ListUnmatchedReply{Payments: make([]*v1.UnmatchedPayment, 0, len(payments)), Total: total}
	for _, p := range payments {
		reply.Payments = append(reply.Payments, toUnmatched(p))
	}
	return reply, nil
}
