package errors

import (
	"fmt"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// Order Service 错误原因定义
// 原因码格式：模块_错误，HTTP 状态码由 kratos errors 携带
//
// 模块划分：
//   REQUEST: 请求校验
//   SIGNATURE: 签名校验
//   ORDER: 订单模块
//   PAYMENT: 支付通道
//   LOCK: 分布式锁

// 请求校验 (400)
const (
	// ReasonInvalidRequest 请求参数缺失或格式错误
	ReasonInvalidRequest = "REQUEST_INVALID"
	// ReasonEmptyLineItems 订单商品为空
	ReasonEmptyLineItems = "ORDER_EMPTY_LINE_ITEMS"
	// ReasonMerchantMismatch 收款方与配置不一致
	ReasonMerchantMismatch = "PAYMENT_MERCHANT_MISMATCH"
	// ReasonUnknownPaymentStatus 未知的交易状态
	ReasonUnknownPaymentStatus = "PAYMENT_UNKNOWN_STATUS"
	// ReasonGatewayNotConfigured 支付网关未配置
	ReasonGatewayNotConfigured = "PAYMENT_GATEWAY_NOT_CONFIGURED"
	// ReasonDemoDisabled 演示支付未启用
	ReasonDemoDisabled = "PAYMENT_DEMO_DISABLED"
	// ReasonExternalRefMismatch 网关订单号与订单记录不一致
	ReasonExternalRefMismatch = "PAYMENT_EXTERNAL_REF_MISMATCH"
)

// 鉴权 (401/403)
const (
	// ReasonInvalidSignature 签名校验失败
	ReasonInvalidSignature = "SIGNATURE_INVALID"
	// ReasonUnauthenticated 未登录
	ReasonUnauthenticated = "UNAUTHENTICATED"
	// ReasonOrderNotOwned 订单不属于当前用户
	ReasonOrderNotOwned = "ORDER_NOT_OWNED"
	// ReasonAdminRequired 需要管理员权限
	ReasonAdminRequired = "ADMIN_REQUIRED"
)

// 订单模块 (404/409)
const (
	// ReasonOrderNotFound 订单不存在
	ReasonOrderNotFound = "ORDER_NOT_FOUND"
	// ReasonInvalidTransition 当前状态不允许该操作
	ReasonInvalidTransition = "ORDER_INVALID_TRANSITION"
	// ReasonOrderNumberExhausted 订单号生成冲突次数过多
	ReasonOrderNumberExhausted = "ORDER_NUMBER_EXHAUSTED"
	// ReasonConcurrentUpdate 条件更新多次未命中
	ReasonConcurrentUpdate = "ORDER_CONCURRENT_UPDATE"
	// ReasonUTRInUse 银行流水号已用于其他订单
	ReasonUTRInUse = "PAYMENT_UTR_IN_USE"
)

// 内部错误 (500)
const (
	// ReasonInternal 存储或其他内部错误
	ReasonInternal = "INTERNAL_ERROR"
)

// 依赖不可用 (503)
const (
	// ReasonOrderLocked 获取订单锁失败
	ReasonOrderLocked = "LOCK_ORDER_BUSY"
	// ReasonGatewayUnavailable 支付网关调用失败
	ReasonGatewayUnavailable = "PAYMENT_GATEWAY_UNAVAILABLE"
)

// BadRequest 参数错误
func BadRequest(reason, format string, args ...interface{}) *kerrors.Error {
	return kerrors.BadRequest(reason, fmt.Sprintf(format, args...))
}

// Unauthorized 签名或凭证无效，不返回具体原因
func Unauthorized(reason string) *kerrors.Error {
	return kerrors.Unauthorized(reason, "unauthorized")
}

// Forbidden 无权操作该资源
func Forbidden(reason, message string) *kerrors.Error {
	return kerrors.Forbidden(reason, message)
}

// OrderNotFound 订单不存在
func OrderNotFound(orderNumber string) *kerrors.Error {
	return kerrors.NotFound(ReasonOrderNotFound, "order not found").
		WithMetadata(map[string]string{"order_number": orderNumber})
}

// InvalidTransition 状态不允许
func InvalidTransition(orderNumber, status string) *kerrors.Error {
	return kerrors.Conflict(ReasonInvalidTransition, fmt.Sprintf("order is already %s", status)).
		WithMetadata(map[string]string{"order_number": orderNumber, "status": status})
}

// ConcurrentUpdate 订单被并发修改，重试后仍未成功
func ConcurrentUpdate(orderNumber string) *kerrors.Error {
	return kerrors.Conflict(ReasonConcurrentUpdate, "order was modified concurrently, please retry").
		WithMetadata(map[string]string{"order_number": orderNumber})
}

// UTRInUse 同一笔转账不能为两个订单付款
func UTRInUse(utr string) *kerrors.Error {
	return kerrors.Conflict(ReasonUTRInUse, "utr is already recorded on another order").
		WithMetadata(map[string]string{"utr": utr})
}

// Internal 内部错误
func Internal(reason string, err error) *kerrors.Error {
	return kerrors.InternalServer(reason, "internal error").WithCause(err)
}

// Unavailable 依赖暂不可用，调用方可重试
func Unavailable(reason string, err error) *kerrors.Error {
	return kerrors.ServiceUnavailable(reason, "temporarily unavailable").WithCause(err)
}

// Is 判断错误原因
func Is(err error, reason string) bool {
	return kerrors.Reason(err) == reason
}
