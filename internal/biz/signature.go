package biz

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignHex HMAC-SHA256 十六进制签名
func SignHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 常量时间比对十六进制签名，签名格式错误视为不通过
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// VerifyGatewaySignature 校验跳转式网关回调签名，签名串为 "<网关订单号>|<支付流水号>"
func VerifyGatewaySignature(externalOrderID, paymentID, signature, secret string) bool {
	return VerifySignature([]byte(externalOrderID+"|"+paymentID), signature, secret)
}
