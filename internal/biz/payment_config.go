package biz

import (
	"fmt"
	"strings"
	"time"

	"order-service/internal/conf"

	"github.com/shopspring/decimal"
)

// PaymentConfig 对账配置，启动时由 conf.Bootstrap 构建后注入
type PaymentConfig struct {
	Currency             string
	AmountTolerance      decimal.Decimal
	MerchantVPA          string // 为空时不校验收款方
	UPIWebhookSecret     string // 为空时不校验 UPI 回调签名
	AllowAmountOnlyMatch bool   // 仅凭金额匹配到的订单是否直接落账
	DemoEnabled          bool

	GatewayKeyID         string
	GatewayKeySecret     string
	GatewayWebhookSecret string

	PendingTTL          time.Duration // pending 订单超时取消
	VerifyingAlertAfter time.Duration // verifying 订单超时告警
	SweepBatchSize      int

	NotifyAsync   bool
	NotifyTimeout time.Duration
}

// NewPaymentConfig 从配置创建 PaymentConfig
func NewPaymentConfig(c *conf.Bootstrap) (*PaymentConfig, error) {
	config := &PaymentConfig{
		Currency:            "INR",
		AmountTolerance:     DefaultAmountTolerance,
		PendingTTL:          48 * time.Hour,
		VerifyingAlertAfter: 24 * time.Hour,
		SweepBatchSize:      200,
		NotifyAsync:         true,
		NotifyTimeout:       30 * time.Second,
	}
	if p := c.Payment; p != nil {
		if p.Currency != "" {
			config.Currency = strings.ToUpper(p.Currency)
		}
		if p.AmountTolerance != "" {
			tol, err := decimal.NewFromString(p.AmountTolerance)
			if err != nil || tol.IsNegative() {
				return nil, fmt.Errorf("payment.amount_tolerance %q is invalid", p.AmountTolerance)
			}
			config.AmountTolerance = tol
		}
		config.MerchantVPA = strings.TrimSpace(p.MerchantVpa)
		config.UPIWebhookSecret = p.UpiWebhookSecret
		config.AllowAmountOnlyMatch = p.AllowAmountOnlyMatch
		config.DemoEnabled = p.DemoEnabled
		if g := p.Gateway; g != nil {
			config.GatewayKeyID = g.KeyId
			config.GatewayKeySecret = g.KeySecret
			config.GatewayWebhookSecret = g.WebhookSecret
		}
	}
	if s := c.Sweep; s != nil {
		var err error
		if config.PendingTTL, err = conf.ParseDuration(s.PendingTtl, config.PendingTTL); err != nil {
			return nil, fmt.Errorf("sweep.pending_ttl: %w", err)
		}
		if config.VerifyingAlertAfter, err = conf.ParseDuration(s.VerifyingAlertAfter, config.VerifyingAlertAfter); err != nil {
			return nil, fmt.Errorf("sweep.verifying_alert_after: %w", err)
		}
		if s.BatchSize > 0 {
			config.SweepBatchSize = s.BatchSize
		}
	}
	if n := c.Notify; n != nil {
		config.NotifyAsync = n.Async
		config.NotifyTimeout = conf.MustDuration(n.Timeout, config.NotifyTimeout)
	}
	return config, nil
}

// GatewayEnabled 跳转式网关是否已配置
func (c *PaymentConfig) GatewayEnabled() bool {
	return c.GatewayKeyID != "" && c.GatewayKeySecret != ""
}

// MerchantMatches 收款方比对（忽略大小写），未配置时视为通过
func (c *PaymentConfig) MerchantMatches(vpa string) bool {
	if c.MerchantVPA == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(vpa), c.MerchantVPA)
}
