package auth

import (
	"context"
	"time"

	orderErrors "order-service/internal/errors"

	jwtmw "github.com/go-kratos/kratos/v2/middleware/auth/jwt"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Role 用户角色
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Claims 登录凭证中携带的身份信息，由认证服务签发
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Role   Role   `json:"role,omitempty"`
	jwtv5.RegisteredClaims
}

// NewClaims 供 jwt 中间件解析使用
func NewClaims() jwtv5.Claims {
	return &Claims{}
}

// FromContext 从 context 中获取当前身份
func FromContext(ctx context.Context) (*Claims, bool) {
	raw, ok := jwtmw.FromContext(ctx)
	if !ok {
		return nil, false
	}
	claims, ok := raw.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, false
	}
	return claims, true
}

// NewContext 将身份写入 context（命令行工具与测试使用）
func NewContext(ctx context.Context, claims *Claims) context.Context {
	return jwtmw.NewContext(ctx, claims)
}

// IsAdmin 判断当前用户是否为管理员
func IsAdmin(ctx context.Context) bool {
	claims, ok := FromContext(ctx)
	return ok && claims.Role == RoleAdmin
}

// RequireCustomer 要求已登录
func RequireCustomer(ctx context.Context) (*Claims, error) {
	claims, ok := FromContext(ctx)
	if !ok {
		return nil, orderErrors.Unauthorized(orderErrors.ReasonUnauthenticated)
	}
	return claims, nil
}

// RequireAdmin 要求管理员身份
func RequireAdmin(ctx context.Context) (*Claims, error) {
	claims, err := RequireCustomer(ctx)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, orderErrors.Forbidden(orderErrors.ReasonAdminRequired, "admin role required")
	}
	return claims, nil
}

// Operator 管理员操作人标识，用于审计日志
func (c *Claims) Operator() string {
	if c.Email != "" {
		return c.Email
	}
	return c.UserID
}

// Sign 使用 HS256 签发凭证
func Sign(secret string, claims *Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwtv5.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil && ttl > 0 {
		claims.ExpiresAt = jwtv5.NewNumericDate(now.Add(ttl))
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(secret))
}
