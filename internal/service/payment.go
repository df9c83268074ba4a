package service

import (
	"context"

	v1 "order-service/api/order/v1"
	"order-service/internal/auth"
	"order-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// PaymentService 支付确认、网关与回调接口
type PaymentService struct {
	uc  *biz.Reconciler
	log *log.Helper
}

// NewPaymentService 创建 PaymentService
func NewPaymentService(uc *biz.Reconciler, logger log.Logger) *PaymentService {
	return &PaymentService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// ConfirmPayment 客户声明已转账
func (s *PaymentService) ConfirmPayment(ctx context.Context, req *v1.ConfirmPaymentRequest) (*v1.PaymentReply, error) {
	claims, err := auth.RequireCustomer(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.uc.ConfirmClientSidePayment(ctx, customerFrom(claims, nil), req.OrderNumber, req.UTR)
	if err != nil {
		s.log.Errorf("ConfirmPayment failed: order_number=%s, user_id=%s, error=%v", req.OrderNumber, claims.UserID, err)
		return nil, err
	}
	return toPaymentReply(out), nil
}

// CreateGatewayOrder 创建订单并在网关下单
func (s *PaymentService) CreateGatewayOrder(ctx context.Context, req *v1.CreateGatewayOrderRequest) (*v1.CreateGatewayOrderReply, error) {
	claims, err := auth.RequireCustomer(ctx)
	if err != nil {
		return nil, err
	}
	var amount decimal.NullDecimal
	if req.Amount != nil {
		amount = decimal.NewNullDecimal(*req.Amount)
	}
	checkout, err := s.uc.CreateGatewayOrder(ctx, customerFrom(claims, &req.CreateOrderRequest), toLineItems(req.Items), amount)
	if err != nil {
		s.log.Errorf("CreateGatewayOrder failed: user_id=%s, client_ip=%s, error=%v", claims.UserID, clientIP(ctx), err)
		return nil, err
	}
	return &v1.CreateGatewayOrderReply{
		OrderNumber:    checkout.Order.OrderNumber,
		GatewayOrderID: checkout.ExternalOrderID,
		Amount:         checkout.AmountMinor,
		Currency:       checkout.Currency,
		KeyID:          checkout.KeyID,
	}, nil
}

// VerifyGatewayPayment 校验网关回跳
func (s *PaymentService) VerifyGatewayPayment(ctx context.Context, req *v1.VerifyGatewayPaymentRequest) (*v1.PaymentReply, error) {
	claims, err := auth.RequireCustomer(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.uc.VerifyGatewayPayment(ctx, customerFrom(claims, nil), &biz.GatewayPayment{
		OrderNumber:     req.OrderNumber,
		ExternalOrderID: req.RazorpayOrderID,
		PaymentID:       req.RazorpayPaymentID,
		Signature:       req.RazorpaySignature,
	})
	if err != nil {
		s.log.Errorf("VerifyGatewayPayment failed: order_number=%s, gateway_order_id=%s, error=%v", req.OrderNumber, req.RazorpayOrderID, err)
		return nil, err
	}
	return toPaymentReply(out), nil
}

// GetGatewayKey 网关公钥
func (s *PaymentService) GetGatewayKey(ctx context.Context, _ *v1.GetGatewayKeyRequest) (*v1.GetGatewayKeyReply, error) {
	keyID, err := s.uc.GatewayKeyID()
	if err != nil {
		return nil, err
	}
	return &v1.GetGatewayKeyReply{KeyID: keyID}, nil
}

// GatewayWebhook 网关服务端回调
func (s *PaymentService) GatewayWebhook(ctx context.Context, req *v1.WebhookRequest) (*v1.PaymentReply, error) {
	out, err := s.uc.ApplyGatewayWebhook(ctx, req.Body, req.Signature)
	if err != nil {
		s.log.Errorf("GatewayWebhook failed: client_ip=%s, error=%v", clientIP(ctx), err)
		return nil, err
	}
	return toPaymentReply(out), nil
}

// UPIWebhook 银行转账到账通知
func (s *PaymentService) UPIWebhook(ctx context.Context, req *v1.WebhookRequest) (*v1.PaymentReply, error) {
	out, err := s.uc.ApplyWebhookNotification(ctx, req.Body, req.Signature)
	if err != nil {
		s.log.Errorf("UPIWebhook failed: client_ip=%s, error=%v", clientIP(ctx), err)
		return nil, err
	}
	return toPaymentReply(out), nil
}

// DemoComplete 演示支付
func (s *PaymentService) DemoComplete(ctx context.Context, req *v1.CreateOrderRequest) (*v1.PaymentReply, error) {
	claims, err := auth.RequireCustomer(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.uc.DemoComplete(ctx, customerFrom(claims, req), toLineItems(req.Items))
	if err != nil {
		s.log.Errorf("DemoComplete failed: user_id=%s, error=%v", claims.UserID, err)
		return nil, err
	}
	return toPaymentReply(out), nil
}
