package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"utr":"123456789012","amount":300}`)
	sig := SignHex("s3cret", body)

	assert.True(t, VerifySignature(body, sig, "s3cret"))
	assert.True(t, VerifySignature(body, " "+sig+" ", "s3cret"))
	assert.False(t, VerifySignature(body, sig, "other"))
	assert.False(t, VerifySignature([]byte(`{"utr":"123456789012","amount":301}`), sig, "s3cret"))
	assert.False(t, VerifySignature(body, "not-hex", "s3cret"))
	assert.False(t, VerifySignature(body, "", "s3cret"))
	assert.False(t, VerifySignature(body, sig, ""))
}

func TestVerifyGatewaySignature(t *testing.T) {
	sig := SignHex("key_secret", []byte("order_abc|pay_xyz"))
	assert.True(t, VerifyGatewaySignature("order_abc", "pay_xyz", sig, "key_secret"))
	assert.False(t, VerifyGatewaySignature("order_abc", "pay_other", sig, "key_secret"))
}
