package data

import (
	"context"
	"encoding/base64"
	"net/http"

	"order-service/internal/biz"
	"order-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

const defaultGatewayEndpoint = "https://api.razorpay.com"

type createGatewayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// gatewayClient 跳转式支付网关 HTTP 客户端
type gatewayClient struct {
	client *khttp.Client
	log    *log.Helper
}

// NewGatewayClient 创建网关客户端；未配置密钥时返回 nil
func NewGatewayClient(c *conf.Bootstrap, logger log.Logger) (biz.GatewayClient, func(), error) {
	if c.Payment == nil || c.Payment.Gateway == nil ||
		c.Payment.Gateway.KeyId == "" || c.Payment.Gateway.KeySecret == "" {
		return nil, func() {}, nil
	}
	gc := c.Payment.Gateway
	endpoint := gc.Endpoint
	if endpoint == "" {
		endpoint = defaultGatewayEndpoint
	}

	client, err := khttp.NewClient(
		context.Background(),
		khttp.WithEndpoint(endpoint),
		khttp.WithTimeout(conf.MustDuration(gc.Timeout, 0)),
		khttp.WithMiddleware(
			recovery.Recovery(),
			basicAuth(gc.KeyId, gc.KeySecret),
		),
	)
	if err != nil {
		return nil, nil, err
	}
	helper := log.NewHelper(logger)
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("failed to close gateway client: %v", err)
		}
	}
	return &gatewayClient{client: client, log: helper}, cleanup, nil
}

// CreateOrder 在网关创建订单，金额为最小货币单位
func (c *gatewayClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*biz.GatewayOrder, error) {
	req := &createGatewayOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
	}
	var reply biz.GatewayOrder
	if err := c.client.Invoke(ctx, http.MethodPost, "/v1/orders", req, &reply); err != nil {
		c.log.Errorf("gateway create order failed: receipt=%s, error=%v", receipt, err)
		return nil, err
	}
	c.log.Infof("gateway order created: receipt=%s, gateway_order_id=%s", receipt, reply.ID)
	return &reply, nil
}

// basicAuth 为出站请求添加 Basic 认证头
func basicAuth(keyID, keySecret string) middleware.Middleware {
	token := "Basic " + base64.StdEncoding.EncodeToString([]byte(keyID+":"+keySecret))
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if tr, ok := transport.FromClientContext(ctx); ok {
				tr.RequestHeader().Set("Authorization", token)
			}
			return handler(ctx, req)
		}
	}
}
