package v1

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// 回调签名请求头
const (
	HeaderWebhookSignature         = "X-Webhook-Signature"
	HeaderWebhookSignatureFallback = "X-Signature"
	HeaderGatewaySignature         = "X-Razorpay-Signature"
)

// 回调报文读取失败的错误原因
const (
	ReasonBodyTooLarge = "REQUEST_BODY_TOO_LARGE"
	ReasonBodyUnread   = "REQUEST_BODY_UNREADABLE"
)

// 按顺序取第一个非空值
var webhookSignatureHeaders = []string{HeaderWebhookSignature, HeaderWebhookSignatureFallback, HeaderGatewaySignature}

const (
	OperationOrderServiceCreateOrder          = "/api.order.v1.OrderService/CreateOrder"
	OperationOrderServiceListMyOrders         = "/api.order.v1.OrderService/ListMyOrders"
	OperationPaymentServiceConfirmPayment     = "/api.order.v1.PaymentService/ConfirmPayment"
	OperationPaymentServiceCreateGatewayOrder = "/api.order.v1.PaymentService/CreateGatewayOrder"
	OperationPaymentServiceVerifyGateway      = "/api.order.v1.PaymentService/VerifyGatewayPayment"
	OperationPaymentServiceGetGatewayKey      = "/api.order.v1.PaymentService/GetGatewayKey"
	OperationPaymentServiceGatewayWebhook     = "/api.order.v1.PaymentService/GatewayWebhook"
	OperationPaymentServiceUPIWebhook         = "/api.order.v1.PaymentService/UPIWebhook"
	OperationPaymentServiceDemoComplete       = "/api.order.v1.PaymentService/DemoComplete"
	OperationAdminServiceListOrders           = "/api.order.v1.AdminService/ListOrders"
	OperationAdminServiceManualVerify         = "/api.order.v1.AdminService/ManualVerify"
	OperationAdminServiceManualUTR            = "/api.order.v1.AdminService/ManualUTR"
	OperationAdminServiceUpdateOrderStatus    = "/api.order.v1.AdminService/UpdateOrderStatus"
	OperationAdminServiceListUnmatched        = "/api.order.v1.AdminService/ListUnmatched"
)

// PublicOperations 无需登录的操作（回调自带签名校验）
var PublicOperations = map[string]bool{
	OperationPaymentServiceGetGatewayKey:  true,
	OperationPaymentServiceGatewayWebhook: true,
	OperationPaymentServiceUPIWebhook:     true,
}

type OrderServiceHTTPServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*OrderReply, error)
	ListMyOrders(context.Context, *ListMyOrdersRequest) (*ListOrdersReply, error)
}

type PaymentServiceHTTPServer interface {
	ConfirmPayment(context.Context, *ConfirmPaymentRequest) (*PaymentReply, error)
	CreateGatewayOrder(context.Context, *CreateGatewayOrderRequest) (*CreateGatewayOrderReply, error)
	VerifyGatewayPayment(context.Context, *VerifyGatewayPaymentRequest) (*PaymentReply, error)
	GetGatewayKey(context.Context, *GetGatewayKeyRequest) (*GetGatewayKeyReply, error)
	GatewayWebhook(context.Context, *WebhookRequest) (*PaymentReply, error)
	UPIWebhook(context.Context, *WebhookRequest) (*PaymentReply, error)
	DemoComplete(context.Context, *CreateOrderRequest) (*PaymentReply, error)
}

type AdminServiceHTTPServer interface {
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersReply, error)
	ManualVerify(context.Context, *ManualVerifyRequest) (*PaymentReply, error)
	ManualUTR(context.Context, *ManualUTRRequest) (*PaymentReply, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*OrderReply, error)
	ListUnmatched(context.Context, *ListUnmatchedRequest) (*ListUnmatchedReply, error)
}

func RegisterOrderServiceHTTPServer(s *http.Server, srv OrderServiceHTTPServer) {
	r := s.Route("/")
	r.POST("/api/orders", _OrderService_CreateOrder0_HTTP_Handler(srv))
	r.GET("/api/orders/mine", _OrderService_ListMyOrders0_HTTP_Handler(srv))
}

func RegisterPaymentServiceHTTPServer(s *http.Server, srv PaymentServiceHTTPServer) {
	r := s.Route("/")
	r.POST("/api/payment/confirm", _PaymentService_ConfirmPayment0_HTTP_Handler(srv))
	r.POST("/api/payment/gateway/orders", _PaymentService_CreateGatewayOrder0_HTTP_Handler(srv))
	r.POST("/api/payment/gateway/verify", _PaymentService_VerifyGatewayPayment0_HTTP_Handler(srv))
	r.GET("/api/payment/gateway/key", _PaymentService_GetGatewayKey0_HTTP_Handler(srv))
	r.POST("/api/payment/gateway/webhook", _PaymentService_Webhook0_HTTP_Handler(OperationPaymentServiceGatewayWebhook, srv.GatewayWebhook))
	r.POST("/api/payment/webhook/upi", _PaymentService_Webhook0_HTTP_Handler(OperationPaymentServiceUPIWebhook, srv.UPIWebhook))
	r.POST("/api/payment/demo", _PaymentService_DemoComplete0_HTTP_Handler(srv))
}

func RegisterAdminServiceHTTPServer(s *http.Server, srv AdminServiceHTTPServer) {
	r := s.Route("/")
	r.GET("/api/admin/orders", _AdminService_ListOrders0_HTTP_Handler(srv))
	r.POST("/api/admin/orders/verify", _AdminService_ManualVerify0_HTTP_Handler(srv))
	r.POST("/api/admin/orders/utr", _AdminService_ManualUTR0_HTTP_Handler(srv))
	r.POST("/api/admin/orders/status", _AdminService_UpdateOrderStatus0_HTTP_Handler(srv))
	r.GET("/api/admin/payments/unmatched", _AdminService_ListUnmatched0_HTTP_Handler(srv))
}

func _OrderService_CreateOrder0_HTTP_Handler(srv OrderServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CreateOrderRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderServiceCreateOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CreateOrder(ctx, req.(*CreateOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _OrderService_ListMyOrders0_HTTP_Handler(srv OrderServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListMyOrdersRequest
		http.SetOperation(ctx, OperationOrderServiceListMyOrders)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListMyOrders(ctx, req.(*ListMyOrdersRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _PaymentService_ConfirmPayment0_HTTP_Handler(srv PaymentServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ConfirmPaymentRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationPaymentServiceConfirmPayment)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ConfirmPayment(ctx, req.(*ConfirmPaymentRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _PaymentService_CreateGatewayOrder0_HTTP_Handler(srv PaymentServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CreateGatewayOrderRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationPaymentServiceCreateGatewayOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CreateGatewayOrder(ctx, req.(*CreateGatewayOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _PaymentService_VerifyGatewayPayment0_HTTP_Handler(srv PaymentServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in VerifyGatewayPaymentRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationPaymentServiceVerifyGateway)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.VerifyGatewayPayment(ctx, req.(*VerifyGatewayPaymentRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _PaymentService_GetGatewayKey0_HTTP_Handler(srv PaymentServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GetGatewayKeyRequest
		http.SetOperation(ctx, OperationPaymentServiceGetGatewayKey)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetGatewayKey(ctx, req.(*GetGatewayKeyRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

// 回调需要原始报文参与验签，不做 Bind
func _PaymentService_Webhook0_HTTP_Handler(operation string, call func(context.Context, *WebhookRequest) (*PaymentReply, error)) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		body, err := io.ReadAll(ctx.Request().Body)
		if err != nil {
			var tooLarge *nethttp.MaxBytesError
			if errors.As(err, &tooLarge) {
				return kerrors.BadRequest(ReasonBodyTooLarge, "request body too large")
			}
			return kerrors.BadRequest(ReasonBodyUnread, "read request body failed")
		}
		in := WebhookRequest{Body: body}
		for _, name := range webhookSignatureHeaders {
			if v := ctx.Header().Get(name); v != "" {
				in.Signature = v
				break
			}
		}
		http.SetOperation(ctx, operation)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(ctx, req.(*WebhookRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _PaymentService_DemoComplete0_HTTP_Handler(srv PaymentServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CreateOrderRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationPaymentServiceDemoComplete)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.DemoComplete(ctx, req.(*CreateOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _AdminService_ListOrders0_HTTP_Handler(srv AdminServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListOrdersRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationAdminServiceListOrders)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListOrders(ctx, req.(*ListOrdersRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _AdminService_ManualVerify0_HTTP_Handler(srv AdminServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ManualVerifyRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationAdminServiceManualVerify)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ManualVerify(ctx, req.(*ManualVerifyRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _AdminService_ManualUTR0_HTTP_Handler(srv AdminServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ManualUTRRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationAdminServiceManualUTR)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ManualUTR(ctx, req.(*ManualUTRRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _AdminService_UpdateOrderStatus0_HTTP_Handler(srv AdminServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in UpdateOrderStatusRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationAdminServiceUpdateOrderStatus)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.UpdateOrderStatus(ctx, req.(*UpdateOrderStatusRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func _AdminService_ListUnmatched0_HTTP_Handler(srv AdminServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ListUnmatchedRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationAdminServiceListUnmatched)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ListUnmatched(ctx, req.(*ListUnmatchedRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}
