package service

import (
	"context"

	v1 "order-service/api/order/v1"
	"order-service/internal/auth"
	"order-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// OrderService 面向客户的订单接口
type OrderService struct {
	uc  *biz.OrderUseCase
	log *log.Helper
}

// NewOrderService 创建 OrderService
func NewOrderService(uc *biz.OrderUseCase, logger log.Logger) *OrderService {
	return &OrderService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// CreateOrder 创建待支付订单
func (s *OrderService) CreateOrder(ctx context.Context, req *v1.CreateOrderRequest) (*v1.OrderReply, error) {
	claims, err := auth.RequireCustomer(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.uc.CreatePendingOrder(ctx, customerFrom(claims, req), toLineItems(req.Items))
	if err != nil {
		s.log.Errorf("CreateOrder failed: user_id=%s, client_ip=%s, error=%v", claims.UserID, clientIP(ctx), err)
		return nil, err
	}
	return &v1.OrderReply{Order: toOrder(o)}, nil
}

// ListMyOrders 当前用户的订单
func (s *OrderService) ListMyOrders(ctx context.Context, _ *v1.ListMyOrdersRequest) (*v1.ListOrdersReply, error) {
	claims, err := auth.RequireCustomer(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.uc.ListMyOrders(ctx, customerFrom(claims, nil))
	if err != nil {
		s.log.Errorf("ListMyOrders failed: user_id=%s, error=%v", claims.UserID, err)
		return nil, err
	}
	return &v1.ListOrdersReply{Orders: toOrders(orders), Total: int64(len(orders))}, nil
}
