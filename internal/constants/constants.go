package constants

// Redis Key 前缀常量
const (
	// RedisKeyOrderLock 订单对账锁 key 前缀
	RedisKeyOrderLock = "order:lock:"
)

// 订单号前缀常量
const (
	// OrderNumberPrefix 订单号前缀
	OrderNumberPrefix = "KS"
	// ExternalRefPendingPrefix 未创建网关订单时的占位前缀
	ExternalRefPendingPrefix = "PENDING_"
	// ExternalRefDemoPrefix 演示通道外部订单前缀
	ExternalRefDemoPrefix = "DEMO_ORDER_"
)

// 支付流水号前缀常量
const (
	// PaymentRefUPIPrefix UPI 支付流水号前缀（UPI_<utr>）
	PaymentRefUPIPrefix = "UPI_"
	// PaymentRefManualPrefix 无凭证的手动确认前缀（MANUAL_<timestamp>）
	PaymentRefManualPrefix = "MANUAL_"
	// PaymentRefDemoPrefix 演示通道支付流水号前缀
	PaymentRefDemoPrefix = "DEMO_PAY_"
)

// 支付通道常量（用于日志与指标）
const (
	RailGateway        = "gateway"
	RailGatewayWebhook = "gateway_webhook"
	RailUPIWebhook     = "upi_webhook"
	RailClientConfirm  = "client_confirm"
	RailManual         = "manual"
	RailDemo           = "demo"
)

// UPI 回调交易状态
const (
	UPIStatusSuccess   = "SUCCESS"
	UPIStatusFailed    = "FAILED"
	UPIStatusCancelled = "CANCELLED"
)

// 网关回调事件
const (
	GatewayEventPaymentCaptured = "payment.captured"
	GatewayEventPaymentFailed   = "payment.failed"
)

// 人工复核原因
const (
	ReviewAmountMismatch      = "amount_mismatch"
	ReviewAmountOnlyMatch     = "amount_only_match"
	ReviewTerminalEvidence    = "evidence_on_terminal_order"
	ReviewVerificationOverdue = "verification_overdue"
	ReviewDuplicateUTR        = "utr_on_other_order"
)

// 对账结果常量（用于指标）
const (
	ResultRecorded        = "recorded"
	ResultAlreadyRecorded = "already_recorded"
	ResultPendingReview   = "pending_verification"
	ResultAmountMismatch  = "amount_mismatch"
	ResultUnmatched       = "unmatched"
	ResultRejected        = "rejected"
	ResultFailed          = "failed"
	ResultSubmitted       = "submitted"
	ResultIgnored         = "ignored"
)

// 库存操作（用于指标）
const (
	InventoryDecrement = "decrement"
	InventoryIncrement = "increment"
)

// 锁获取结果（用于指标）
const (
	LockResultSuccess = "success"
	LockResultFailed  = "failed"
)
