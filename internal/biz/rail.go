package biz

import (
	"bytes"
	"encoding/json"
	"strings"

	"order-service/internal/constants"
	orderErrors "order-service/internal/errors"

	"github.com/shopspring/decimal"
)

// EvidenceStatus 支付凭证表示的结果
type EvidenceStatus int

const (
	EvidenceSuccess EvidenceStatus = iota + 1
	EvidenceFailure
)

// Evidence 各通道统一后的支付凭证
type Evidence struct {
	OrderNumber     string
	ExternalOrderID string
	PaymentRef      string
	UTR             string
	Amount          decimal.NullDecimal // 无效表示通道不携带金额
	MerchantVPA     string
	CounterpartyVPA string
	Status          EvidenceStatus
	Raw             []byte
	Verified        bool // 由已校验签名的回调驱动
}

// RawEvidence 通道收到的原始凭证
// 回调类通道使用 Body/Signature，人工与演示通道使用 Submitted
type RawEvidence struct {
	Body      []byte
	Signature string
	Operator  string
	Submitted *Evidence
}

// PaymentRail 支付通道能力：鉴权 + 提取凭证，落账由对账核心统一处理
type PaymentRail interface {
	Kind() string
	// Authenticate 鉴权失败返回 Unauthorized，不解析内容
	Authenticate(raw *RawEvidence) error
	// Extract 校验并提取凭证；返回 nil 表示该通知与对账无关，可直接确认
	Extract(raw *RawEvidence) (*Evidence, error)
}

// flexString 兼容数字与字符串两种 JSON 表示
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// ========== UPI 回调 ==========

type upiNotification struct {
	UTR         flexString       `json:"utr"`
	Amount      *decimal.Decimal `json:"amount"`
	MerchantVPA string           `json:"merchantVpa"`
	CustomerVPA string           `json:"customerVpa"`
	Status      string           `json:"status"`
	Timestamp   string           `json:"timestamp"`
	OrderNumber string           `json:"orderNumber"`
	ReferenceID string           `json:"referenceId"`
}

type upiWebhookRail struct {
	conf *PaymentConfig
}

// NewUPIWebhookRail UPI 到账回调通道
func NewUPIWebhookRail(conf *PaymentConfig) PaymentRail {
	return &upiWebhookRail{conf: conf}
}

func (r *upiWebhookRail) Kind() string { return constants.RailUPIWebhook }

func (r *upiWebhookRail) Authenticate(raw *RawEvidence) error {
	if r.conf.UPIWebhookSecret == "" {
		return nil
	}
	if !VerifySignature(raw.Body, raw.Signature, r.conf.UPIWebhookSecret) {
		return orderErrors.Unauthorized(orderErrors.ReasonInvalidSignature)
	}
	return nil
}

func (r *upiWebhookRail) Extract(raw *RawEvidence) (*Evidence, error) {
	var n upiNotification
	if err := json.Unmarshal(raw.Body, &n); err != nil {
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "malformed notification body")
	}
	n.MerchantVPA = strings.TrimSpace(n.MerchantVPA)
	n.Status = strings.ToUpper(strings.TrimSpace(n.Status))
	if n.UTR == "" || n.Amount == nil || n.MerchantVPA == "" || n.Status == "" {
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "missing required fields: utr, amount, merchantVpa, status")
	}
	if !n.Amount.IsPositive() {
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "amount must be positive")
	}
	if !r.conf.MerchantMatches(n.MerchantVPA) {
		return nil, orderErrors.BadRequest(orderErrors.ReasonMerchantMismatch, "merchant VPA mismatch")
	}

	ev := &Evidence{
		OrderNumber:     strings.TrimSpace(n.OrderNumber),
		PaymentRef:      constants.PaymentRefUPIPrefix + string(n.UTR),
		UTR:             string(n.UTR),
		Amount:          decimal.NewNullDecimal(*n.Amount),
		MerchantVPA:     n.MerchantVPA,
		CounterpartyVPA: strings.TrimSpace(n.CustomerVPA),
		Raw:             raw.Body,
		Verified:        r.conf.UPIWebhookSecret != "",
	}
	switch n.Status {
	case constants.UPIStatusSuccess:
		ev.Status = EvidenceSuccess
	case constants.UPIStatusFailed, constants.UPIStatusCancelled:
		ev.Status = EvidenceFailure
	default:
		return nil, orderErrors.BadRequest(orderErrors.ReasonUnknownPaymentStatus, "unknown transaction status %q", n.Status)
	}
	return ev, nil
}

// ========== 跳转式网关（客户端回跳） ==========

type gatewayCallbackRail struct {
	conf *PaymentConfig
}

// NewGatewayCallbackRail 网关支付完成后客户端回传的签名凭证
func NewGatewayCallbackRail(conf *PaymentConfig) PaymentRail {
	return &gatewayCallbackRail{conf: conf}
}

func (r *gatewayCallbackRail) Kind() string { return constants.RailGateway }

func (r *gatewayCallbackRail) Authenticate(raw *RawEvidence) error {
	if !r.conf.GatewayEnabled() {
		return orderErrors.BadRequest(orderErrors.ReasonGatewayNotConfigured, "payment gateway is not configured")
	}
	sub := raw.Submitted
	if sub == nil || sub.ExternalOrderID == "" || sub.PaymentRef == "" || raw.Signature == "" {
		return orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "missing gateway order id, payment id or signature")
	}
	if !VerifyGatewaySignature(sub.ExternalOrderID, sub.PaymentRef, raw.Signature, r.conf.GatewayKeySecret) {
		return orderErrors.Unauthorized(orderErrors.ReasonInvalidSignature)
	}
	return nil
}

func (r *gatewayCallbackRail) Extract(raw *RawEvidence) (*Evidence, error) {
	sub := raw.Submitted
	return &Evidence{
		OrderNumber:     sub.OrderNumber,
		ExternalOrderID: sub.ExternalOrderID,
		PaymentRef:      sub.PaymentRef,
		Status:          EvidenceSuccess,
	}, nil
}

// ========== 网关服务端回调 ==========

type gatewayWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  *int64 `json:"amount"`
				Status  string `json:"status"`
				VPA     string `json:"vpa"`
				Notes   struct {
					OrderNumber string `json:"orderNumber"`
				} `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type gatewayWebhookRail struct {
	conf *PaymentConfig
}

// NewGatewayWebhookRail 网关 payment.captured / payment.failed 回调
func NewGatewayWebhookRail(conf *PaymentConfig) PaymentRail {
	return &gatewayWebhookRail{conf: conf}
}

func (r *gatewayWebhookRail) Kind() string { return constants.RailGatewayWebhook }

func (r *gatewayWebhookRail) Authenticate(raw *RawEvidence) error {
	if r.conf.GatewayWebhookSecret == "" {
		return nil
	}
	if !VerifySignature(raw.Body, raw.Signature, r.conf.GatewayWebhookSecret) {
		return orderErrors.Unauthorized(orderErrors.ReasonInvalidSignature)
	}
	return nil
}

func (r *gatewayWebhookRail) Extract(raw *RawEvidence) (*Evidence, error) {
	var e gatewayWebhookEvent
	if err := json.Unmarshal(raw.Body, &e); err != nil {
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "malformed webhook body")
	}
	var status EvidenceStatus
	switch e.Event {
	case constants.GatewayEventPaymentCaptured:
		status = EvidenceSuccess
	case constants.GatewayEventPaymentFailed:
		status = EvidenceFailure
	case "":
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "missing event")
	default:
		return nil, nil
	}
	entity := e.Payload.Payment.Entity
	if entity.ID == "" || entity.OrderID == "" {
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "missing payment id or order id")
	}
	ev := &Evidence{
		OrderNumber:     strings.TrimSpace(entity.Notes.OrderNumber),
		ExternalOrderID: entity.OrderID,
		PaymentRef:      entity.ID,
		CounterpartyVPA: entity.VPA,
		Status:          status,
		Raw:             raw.Body,
		Verified:        r.conf.GatewayWebhookSecret != "",
	}
	if entity.Amount != nil {
		ev.Amount = decimal.NewNullDecimal(FromMinorUnits(*entity.Amount))
	}
	return ev, nil
}

// ========== 人工补录 ==========

type manualRail struct {
	conf *PaymentConfig
}

// NewManualRail 管理员依据银行流水补录
func NewManualRail(conf *PaymentConfig) PaymentRail {
	return &manualRail{conf: conf}
}

func (r *manualRail) Kind() string { return constants.RailManual }

func (r *manualRail) Authenticate(raw *RawEvidence) error {
	if strings.TrimSpace(raw.Operator) == "" {
		return orderErrors.Forbidden(orderErrors.ReasonAdminRequired, "operator identity required")
	}
	return nil
}

func (r *manualRail) Extract(raw *RawEvidence) (*Evidence, error) {
	sub := raw.Submitted
	if sub == nil || sub.OrderNumber == "" || sub.UTR == "" {
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "order number and utr are required")
	}
	if sub.MerchantVPA != "" && !r.conf.MerchantMatches(sub.MerchantVPA) {
		return nil, orderErrors.BadRequest(orderErrors.ReasonMerchantMismatch, "merchant VPA mismatch")
	}
	if sub.Amount.Valid && !sub.Amount.Decimal.IsPositive() {
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "amount must be positive")
	}
	ev := *sub
	ev.PaymentRef = constants.PaymentRefUPIPrefix + sub.UTR
	ev.Status = EvidenceSuccess
	ev.Verified = false
	if ev.Raw == nil {
		ev.Raw, _ = json.Marshal(map[string]interface{}{
			"source":      constants.RailManual,
			"operator":    raw.Operator,
			"utr":         sub.UTR,
			"amount":      sub.Amount,
			"merchantVpa": sub.MerchantVPA,
		})
	}
	return &ev, nil
}

// ========== 演示通道 ==========

type demoRail struct {
	conf *PaymentConfig
}

// NewDemoRail 演示环境下直接落账
func NewDemoRail(conf *PaymentConfig) PaymentRail {
	return &demoRail{conf: conf}
}

func (r *demoRail) Kind() string { return constants.RailDemo }

func (r *demoRail) Authenticate(raw *RawEvidence) error {
	if !r.conf.DemoEnabled {
		return orderErrors.Forbidden(orderErrors.ReasonDemoDisabled, "demo payments are disabled")
	}
	return nil
}

func (r *demoRail) Extract(raw *RawEvidence) (*Evidence, error) {
	sub := raw.Submitted
	if sub == nil || sub.OrderNumber == "" {
		return nil, orderErrors.BadRequest(orderErrors.ReasonInvalidRequest, "order number is required")
	}
	ev := *sub
	ev.Status = EvidenceSuccess
	ev.Verified = false
	return &ev, nil
}
