package server

import (
	"context"
	"encoding/json"
	stdhttp "net/http"

	v1 "order-service/api/order/v1"
	"order-service/internal/auth"
	"order-service/internal/conf"
	orderErrors "order-service/internal/errors"
	"order-service/internal/service"

	"github.com/gaoyong06/go-pkg/health"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/auth/jwt"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/middleware/validate"
	"github.com/go-kratos/kratos/v2/transport/http"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "order-service"

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(
	c *conf.Bootstrap,
	orders *service.OrderService,
	payments *service.PaymentService,
	admin *service.AdminService,
	logger log.Logger,
) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
			selector.Server(authMiddleware(c.Auth.JwtSecret)).Match(requiresLogin).Build(),
			validate.Validator(),
		),
		http.Filter(bodyLimit(c.Server.BodyLimit())),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if d := conf.MustDuration(c.Server.Http.Timeout, 0); d > 0 {
			opts = append(opts, http.Timeout(d))
		}
	}
	srv := http.NewServer(opts...)

	v1.RegisterOrderServiceHTTPServer(srv, orders)
	v1.RegisterPaymentServiceHTTPServer(srv, payments)
	v1.RegisterAdminServiceHTTPServer(srv, admin)

	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, health.NewResponse(serviceName))
	})
	srv.Handle("/metrics", promhttp.Handler())

	return srv
}

func authMiddleware(secret string) middleware.Middleware {
	return jwt.Server(
		func(*jwtv5.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithSigningMethod(jwtv5.SigningMethodHS256),
		jwt.WithClaims(auth.NewClaims),
	)
}

// bodyLimit 限制请求体大小，超限时读取返回 *http.MaxBytesError
func bodyLimit(limit int64) http.FilterFunc {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			r.Body = stdhttp.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

func requiresLogin(_ context.Context, operation string) bool {
	return !v1.PublicOperations[operation]
}

// customErrorEncoder 统一错误响应；5xx 不向调用方透出内部原因
func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"code":    status,
		"reason":  orderErrors.ReasonInternal,
		"message": "internal server error",
	}

	if se != nil {
		status = mapErrorStatus(int(se.Code))
		response["code"] = status
		if status < stdhttp.StatusInternalServerError {
			response["reason"] = se.Reason
			response["message"] = se.Message
		} else if se.Reason != "" {
			response["reason"] = se.Reason
			response["message"] = stdhttp.StatusText(status)
		}
		if len(se.Metadata) > 0 {
			response["metadata"] = se.Metadata
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	return stdhttp.StatusInternalServerError
}
