package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"order-service/internal/constants"
	orderErrors "order-service/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upiBody(t *testing.T, fields map[string]interface{}) []byte {
	t.Helper()
	payload := map[string]interface{}{
		"utr":         "412345678901",
		"amount":      300.00,
		"merchantVpa": testMerchantVPA,
		"customerVpa": "buyer@okbank",
		"status":      "SUCCESS",
	}
	for k, v := range fields {
		if v == nil {
			delete(payload, k)
			continue
		}
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

func (e *testEnv) webhook(t *testing.T, body []byte) (*Outcome, error) {
	t.Helper()
	return e.rec.ApplyWebhookNotification(context.Background(), body, SignHex(testWebhookSecret, body))
}

func TestWebhookIdempotentSuccess(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)
	body := upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber})

	out, err := env.webhook(t, body)
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
	assert.True(t, out.Acknowledged)
	assert.True(t, out.Resolved)
	assert.Equal(t, StatusPaid, out.Status)

	out, err = env.webhook(t, body)
	require.NoError(t, err)
	assert.Equal(t, constants.ResultAlreadyRecorded, out.Result)
	assert.True(t, out.Resolved)

	got := env.repo.mustGet(t, o.OrderNumber)
	assert.Equal(t, StatusPaid, got.Status)
	assert.True(t, got.WebhookVerified)
	assert.Equal(t, "UPI_412345678901", got.PaymentRef)
	assert.Equal(t, "buyer@okbank", got.CounterpartyVPA)
	assert.NotEmpty(t, got.RawPayload)
	assert.Equal(t, 8, env.stock.get(itemA))
	assert.Equal(t, 4, env.stock.get(itemB))
	assert.Equal(t, 2, env.stock.calls)
}

func TestWebhookConcurrentDuplicateDeliveries(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)
	body := upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber})

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := env.webhook(t, body)
			if err == nil {
				results[i] = out.Result
			}
		}(i)
	}
	wg.Wait()

	recordedCount := 0
	for _, r := range results {
		if r == constants.ResultRecorded {
			recordedCount++
		}
	}
	assert.Equal(t, 1, recordedCount)
	assert.Equal(t, 8, env.stock.get(itemA))
	assert.Equal(t, 4, env.stock.get(itemB))
}

func TestPaidOrderNeverMovesBackward(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.createOrder(t)
	_, err := env.webhook(t, upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber}))
	require.NoError(t, err)

	out, err := env.webhook(t, upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber, "status": "FAILED"}))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultIgnored, out.Result)

	_, err = env.rec.ConfirmClientSidePayment(ctx, testCustomer, o.OrderNumber, "412345678901")
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonInvalidTransition))

	_, err = env.rec.ManualVerify(ctx, o.OrderNumber, false, "ops@example.com")
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonInvalidTransition))

	out, err = env.rec.ManualVerify(ctx, o.OrderNumber, true, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, constants.ResultAlreadyRecorded, out.Result)

	assert.Equal(t, StatusPaid, env.repo.mustGet(t, o.OrderNumber).Status)
	assert.Equal(t, 8, env.stock.get(itemA))
}

func TestWebhookAmountTolerance(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)

	out, err := env.webhook(t, upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber, "amount": "300.005"}))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
	assert.Equal(t, StatusPaid, env.repo.mustGet(t, o.OrderNumber).Status)
}

func TestWebhookAmountMismatchHoldsOrder(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)

	out, err := env.webhook(t, upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber, "amount": 301.00}))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultAmountMismatch, out.Result)
	assert.True(t, out.Acknowledged)
	assert.False(t, out.Resolved)
	assert.True(t, out.ExpectedAmount.Decimal.Equal(decimal.RequireFromString("300")))
	assert.True(t, out.ReceivedAmount.Decimal.Equal(decimal.RequireFromString("301")))

	got := env.repo.mustGet(t, o.OrderNumber)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, constants.ReviewAmountMismatch, got.ReviewReason)
	assert.Equal(t, "412345678901", got.UTR)
	assert.NotEmpty(t, got.RawPayload)
	assert.Empty(t, got.PaymentRef)
	assert.Equal(t, 10, env.stock.get(itemA))
}

func TestWebhookInvalidSignatureNeverMutates(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)
	body := upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber})

	for _, sig := range []string{"", "deadbeef", SignHex("wrong-secret", body)} {
		_, err := env.rec.ApplyWebhookNotification(context.Background(), body, sig)
		assert.True(t, orderErrors.Is(err, orderErrors.ReasonInvalidSignature))
	}
	got := env.repo.mustGet(t, o.OrderNumber)
	assert.Equal(t, StatusPending, got.Status)
	assert.Empty(t, got.RawPayload)
	assert.Zero(t, env.repo.transitions)
	assert.Empty(t, env.unmatched.records)
}

func TestWebhookWithoutSecretSkipsSignature(t *testing.T) {
	env := newTestEnv(t, func(c *PaymentConfig) { c.UPIWebhookSecret = "" })
	o := env.createOrder(t)

	out, err := env.rec.ApplyWebhookNotification(context.Background(), upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber}), "")
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
	assert.False(t, env.repo.mustGet(t, o.OrderNumber).WebhookVerified)
}

func TestWebhookValidation(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)

	cases := []struct {
		name   string
		fields map[string]interface{}
		reason string
	}{
		{"missing utr", map[string]interface{}{"utr": nil}, orderErrors.ReasonInvalidRequest},
		{"missing amount", map[string]interface{}{"amount": nil}, orderErrors.ReasonInvalidRequest},
		{"missing merchant", map[string]interface{}{"merchantVpa": nil}, orderErrors.ReasonInvalidRequest},
		{"missing status", map[string]interface{}{"status": nil}, orderErrors.ReasonInvalidRequest},
		{"merchant mismatch", map[string]interface{}{"merchantVpa": "other@upi"}, orderErrors.ReasonMerchantMismatch},
		{"unknown status", map[string]interface{}{"status": "PROCESSING"}, orderErrors.ReasonUnknownPaymentStatus},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.fields["orderNumber"] = o.OrderNumber
			_, err := env.webhook(t, upiBody(t, c.fields))
			assert.True(t, orderErrors.Is(err, c.reason), "got %v", err)
		})
	}
	assert.Equal(t, StatusPending, env.repo.mustGet(t, o.OrderNumber).Status)
	assert.Zero(t, env.repo.transitions)
}

func TestWebhookMerchantComparedCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)
	out, err := env.webhook(t, upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber, "merchantVpa": "MERCHANT@UPI"}))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
}

func TestWebhookUnmatchedEvidence(t *testing.T) {
	env := newTestEnv(t)
	env.createOrder(t)

	body := upiBody(t, map[string]interface{}{"utr": "999999999999", "amount": 12.34})
	out, err := env.webhook(t, body)
	require.NoError(t, err)
	assert.Equal(t, constants.ResultUnmatched, out.Result)
	assert.True(t, out.Acknowledged)
	assert.False(t, out.Resolved)
	require.Len(t, env.unmatched.records, 1)
	assert.Equal(t, "999999999999", env.unmatched.records[0].UTR)
	assert.Equal(t, constants.RailUPIWebhook, env.unmatched.records[0].Rail)

	_, err = env.webhook(t, body)
	require.NoError(t, err)
	assert.Len(t, env.unmatched.records, 1)
}

func TestWebhookMatchesByUTRAfterClientConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.createOrder(t)

	out, err := env.rec.ConfirmClientSidePayment(ctx, testCustomer, o.OrderNumber, "412345678901")
	require.NoError(t, err)
	assert.Equal(t, StatusVerifying, out.Status)
	assert.Equal(t, 8, env.stock.get(itemA))
	assert.Equal(t, 4, env.stock.get(itemB))

	out, err = env.webhook(t, upiBody(t, nil))
	require.NoError(t, err)
	assert.Equal(t, MatchedByUTR, out.MatchedBy)
	assert.Equal(t, constants.ResultRecorded, out.Result)

	got := env.repo.mustGet(t, o.OrderNumber)
	assert.Equal(t, StatusPaid, got.Status)
	assert.True(t, got.WebhookVerified)
	assert.Equal(t, 8, env.stock.get(itemA), "no second decrement")
	assert.Equal(t, 4, env.stock.get(itemB))
	assert.Contains(t, env.dispatcher.invoices, o.OrderNumber)
	assert.Contains(t, env.dispatcher.statusUpdates, o.OrderNumber+":paid")
}

func TestUTRSettlesOnlyOneOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.createOrder(t)
	_, err := env.rec.ConfirmClientSidePayment(ctx, testCustomer, first.OrderNumber, "999")
	require.NoError(t, err)
	body := upiBody(t, map[string]interface{}{"utr": "999"})
	out, err := env.webhook(t, body)
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
	assert.Equal(t, first.OrderNumber, out.OrderNumber)

	second := env.createOrder(t)
	_, err = env.rec.ConfirmClientSidePayment(ctx, testCustomer, second.OrderNumber, "999")
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonUTRInUse))

	_, err = env.rec.ManualUTROverride(ctx, &ManualPayment{OrderNumber: second.OrderNumber, UTR: "999"}, "ops@example.com")
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonUTRInUse))

	// 重复投递仍落在第一笔订单上
	out, err = env.webhook(t, body)
	require.NoError(t, err)
	assert.Equal(t, constants.ResultAlreadyRecorded, out.Result)
	assert.Equal(t, first.OrderNumber, out.OrderNumber)

	// 回调指名第二笔订单时只登记复核，不落账
	out, err = env.webhook(t, upiBody(t, map[string]interface{}{"utr": "999", "orderNumber": second.OrderNumber}))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultPendingReview, out.Result)
	assert.False(t, out.Resolved)

	out, err = env.webhook(t, upiBody(t, map[string]interface{}{"utr": "999", "orderNumber": second.OrderNumber, "status": "FAILED"}))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultIgnored, out.Result)

	got := env.repo.mustGet(t, second.OrderNumber)
	assert.Equal(t, StatusPending, got.Status)
	assert.Empty(t, got.UTR)
	assert.Equal(t, constants.ReviewDuplicateUTR, got.ReviewReason)
	assert.Equal(t, StatusPaid, env.repo.mustGet(t, first.OrderNumber).Status)
}

func TestWebhookAmountOnlyMatch(t *testing.T) {
	t.Run("held for review by default", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.createOrder(t)

		out, err := env.webhook(t, upiBody(t, nil))
		require.NoError(t, err)
		assert.Equal(t, MatchedByAmount, out.MatchedBy)
		assert.Equal(t, constants.ResultPendingReview, out.Result)
		assert.False(t, out.Resolved)

		got := env.repo.mustGet(t, o.OrderNumber)
		assert.Equal(t, StatusPending, got.Status)
		assert.Equal(t, constants.ReviewAmountOnlyMatch, got.ReviewReason)

		// 重复投递命中同一订单，仍等待人工确认
		out, err = env.webhook(t, upiBody(t, nil))
		require.NoError(t, err)
		assert.Equal(t, constants.ResultPendingReview, out.Result)
		assert.Equal(t, StatusPending, env.repo.mustGet(t, o.OrderNumber).Status)
		assert.Equal(t, 10, env.stock.get(itemA))
	})

	t.Run("recorded when allowed", func(t *testing.T) {
		env := newTestEnv(t, func(c *PaymentConfig) { c.AllowAmountOnlyMatch = true })
		older := env.createOrder(t)
		env.repo.age(older.OrderNumber, time.Hour)
		latest := env.createOrder(t)

		out, err := env.webhook(t, upiBody(t, nil))
		require.NoError(t, err)
		assert.Equal(t, constants.ResultRecorded, out.Result)
		assert.Equal(t, latest.OrderNumber, out.OrderNumber)
	})

	t.Run("failure notices are not matched by amount", func(t *testing.T) {
		env := newTestEnv(t, func(c *PaymentConfig) { c.AllowAmountOnlyMatch = true })
		o := env.createOrder(t)

		out, err := env.webhook(t, upiBody(t, map[string]interface{}{"status": "FAILED"}))
		require.NoError(t, err)
		assert.Equal(t, constants.ResultUnmatched, out.Result)
		assert.Equal(t, StatusPending, env.repo.mustGet(t, o.OrderNumber).Status)
	})
}

func TestWebhookFailureRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)
	_, err := env.rec.ConfirmClientSidePayment(context.Background(), testCustomer, o.OrderNumber, "412345678901")
	require.NoError(t, err)

	out, err := env.webhook(t, upiBody(t, map[string]interface{}{"status": "CANCELLED"}))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultFailed, out.Result)

	got := env.repo.mustGet(t, o.OrderNumber)
	assert.Equal(t, StatusFailed, got.Status)
	assert.False(t, got.StockReserved)
	assert.Equal(t, 10, env.stock.get(itemA))
	assert.Equal(t, 5, env.stock.get(itemB))
	assert.Contains(t, env.dispatcher.statusUpdates, o.OrderNumber+":failed")
}

func TestSuccessEvidenceOnFailedOrderHeldForReview(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t)
	_, err := env.webhook(t, upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber, "status": "FAILED"}))
	require.NoError(t, err)

	out, err := env.webhook(t, upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber, "utr": "500000000001"}))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultPendingReview, out.Result)
	assert.False(t, out.Resolved)

	got := env.repo.mustGet(t, o.OrderNumber)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, constants.ReviewTerminalEvidence, got.ReviewReason)
	assert.Equal(t, 10, env.stock.get(itemA))
}

func TestConfirmClientSidePayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.createOrder(t)

	_, err := env.rec.ConfirmClientSidePayment(ctx, testCustomer, "KSMISSING", "1")
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonOrderNotFound))

	stranger := Customer{UserID: "user-2", Email: "other@example.com"}
	_, err = env.rec.ConfirmClientSidePayment(ctx, stranger, o.OrderNumber, "1")
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonOrderNotOwned))

	out, err := env.rec.ConfirmClientSidePayment(ctx, testCustomer, o.OrderNumber, "")
	require.NoError(t, err)
	assert.Equal(t, constants.ResultSubmitted, out.Result)
	assert.False(t, out.Resolved)

	got := env.repo.mustGet(t, o.OrderNumber)
	assert.Equal(t, StatusVerifying, got.Status)
	assert.True(t, got.StockReserved)
	assert.Contains(t, got.PaymentRef, constants.PaymentRefManualPrefix)
	assert.Contains(t, env.dispatcher.invoices, o.OrderNumber)

	_, err = env.rec.ConfirmClientSidePayment(ctx, testCustomer, o.OrderNumber, "")
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonInvalidTransition))
	assert.Equal(t, 8, env.stock.get(itemA))
}

func TestInventorySymmetryOnManualReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.createOrder(t)

	_, err := env.rec.ConfirmClientSidePayment(ctx, testCustomer, o.OrderNumber, "412345678901")
	require.NoError(t, err)
	assert.Equal(t, 8, env.stock.get(itemA))
	assert.Equal(t, 4, env.stock.get(itemB))

	out, err := env.rec.ManualVerify(ctx, o.OrderNumber, false, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 10, env.stock.get(itemA))
	assert.Equal(t, 5, env.stock.get(itemB))

	out, err = env.rec.ManualVerify(ctx, o.OrderNumber, false, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, constants.ResultAlreadyRecorded, out.Result)
	assert.Equal(t, 10, env.stock.get(itemA))
}

func TestManualVerifyAfterMissedWebhook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.createOrder(t)

	_, err := env.rec.ManualVerify(ctx, o.OrderNumber, true, "ops@example.com")
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonInvalidTransition), "pending orders cannot be verified")

	_, err = env.rec.ConfirmClientSidePayment(ctx, testCustomer, o.OrderNumber, "412345678901")
	require.NoError(t, err)

	_, err = env.rec.ManualVerify(ctx, o.OrderNumber, true, "")
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonAdminRequired))

	out, err := env.rec.ManualVerify(ctx, o.OrderNumber, true, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
	assert.Equal(t, StatusPaid, env.repo.mustGet(t, o.OrderNumber).Status)
	assert.Equal(t, 8, env.stock.get(itemA))
	assert.Equal(t, 4, env.stock.get(itemB))

	// 迟到的回调不会再次扣减
	out, err = env.webhook(t, upiBody(t, nil))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultAlreadyRecorded, out.Result)
	assert.Equal(t, 8, env.stock.get(itemA))
}

func TestManualUTROverride(t *testing.T) {
	ctx := context.Background()

	t.Run("pending order is paid and stock decremented", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.createOrder(t)
		out, err := env.rec.ManualUTROverride(ctx, &ManualPayment{
			OrderNumber: o.OrderNumber,
			UTR:         "412345678901",
			Amount:      decimal.NewNullDecimal(decimal.RequireFromString("300.00")),
		}, "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, constants.ResultRecorded, out.Result)

		got := env.repo.mustGet(t, o.OrderNumber)
		assert.Equal(t, StatusPaid, got.Status)
		assert.Equal(t, "UPI_412345678901", got.PaymentRef)
		assert.Equal(t, constants.RailManual, got.PaymentMethod)
		assert.False(t, got.WebhookVerified)
		assert.Equal(t, 8, env.stock.get(itemA))
		assert.Contains(t, env.dispatcher.invoices, o.OrderNumber)
	})

	t.Run("verifying order is not decremented twice", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.createOrder(t)
		_, err := env.rec.ConfirmClientSidePayment(ctx, testCustomer, o.OrderNumber, "")
		require.NoError(t, err)
		_, err = env.rec.ManualUTROverride(ctx, &ManualPayment{OrderNumber: o.OrderNumber, UTR: "412345678901"}, "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, 8, env.stock.get(itemA))
	})

	t.Run("amount mismatch leaves order unchanged", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.createOrder(t)
		out, err := env.rec.ManualUTROverride(ctx, &ManualPayment{
			OrderNumber: o.OrderNumber,
			UTR:         "412345678901",
			Amount:      decimal.NewNullDecimal(decimal.RequireFromString("250.00")),
		}, "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, constants.ResultAmountMismatch, out.Result)
		assert.Equal(t, StatusPending, env.repo.mustGet(t, o.OrderNumber).Status)
	})

	t.Run("already paid is idempotent", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.createOrder(t)
		p := &ManualPayment{OrderNumber: o.OrderNumber, UTR: "412345678901"}
		_, err := env.rec.ManualUTROverride(ctx, p, "ops@example.com")
		require.NoError(t, err)
		out, err := env.rec.ManualUTROverride(ctx, p, "ops@example.com")
		require.NoError(t, err)
		assert.Equal(t, constants.ResultAlreadyRecorded, out.Result)
		assert.Equal(t, 8, env.stock.get(itemA))
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.createOrder(t)
		_, err := env.rec.ManualUTROverride(ctx, &ManualPayment{OrderNumber: o.OrderNumber}, "ops@example.com")
		assert.True(t, orderErrors.Is(err, orderErrors.ReasonInvalidRequest))
		_, err = env.rec.ManualUTROverride(ctx, &ManualPayment{OrderNumber: "KSNOPE", UTR: "1"}, "ops@example.com")
		assert.True(t, orderErrors.Is(err, orderErrors.ReasonOrderNotFound))
		_, err = env.rec.ManualUTROverride(ctx, &ManualPayment{OrderNumber: o.OrderNumber, UTR: "1", MerchantVPA: "x@upi"}, "ops@example.com")
		assert.True(t, orderErrors.Is(err, orderErrors.ReasonMerchantMismatch))
		_, err = env.rec.ManualUTROverride(ctx, &ManualPayment{OrderNumber: o.OrderNumber, UTR: "1"}, "")
		assert.True(t, orderErrors.Is(err, orderErrors.ReasonAdminRequired))
	})

	t.Run("cancelled order conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.createOrder(t)
		_, err := env.orders.UpdateFulfillmentStatus(ctx, o.OrderNumber, StatusCancelled, "ops@example.com")
		require.NoError(t, err)
		_, err = env.rec.ManualUTROverride(ctx, &ManualPayment{OrderNumber: o.OrderNumber, UTR: "1"}, "ops@example.com")
		assert.True(t, orderErrors.Is(err, orderErrors.ReasonInvalidTransition))
	})
}

func gatewayPayment(t *testing.T, env *testEnv, orderNumber, externalID, paymentID string) *GatewayPayment {
	t.Helper()
	return &GatewayPayment{
		OrderNumber:     orderNumber,
		ExternalOrderID: externalID,
		PaymentID:       paymentID,
		Signature:       SignHex(env.conf.GatewayKeySecret, []byte(externalID+"|"+paymentID)),
	}
}

func TestGatewayCheckoutAndVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	checkout, err := env.rec.CreateGatewayOrder(ctx, testCustomer, standardItems(), decimal.NullDecimal{})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), checkout.AmountMinor)
	assert.Equal(t, "rzp_test_key", checkout.KeyID)
	require.Len(t, env.gateway.created, 1)
	assert.Equal(t, checkout.Order.OrderNumber, env.gateway.created[0].Receipt)

	orderNumber := checkout.Order.OrderNumber
	assert.Equal(t, checkout.ExternalOrderID, env.repo.mustGet(t, orderNumber).ExternalRef)

	tampered := gatewayPayment(t, env, orderNumber, checkout.ExternalOrderID, "pay_1")
	tampered.PaymentID = "pay_2"
	_, err = env.rec.VerifyGatewayPayment(ctx, testCustomer, tampered)
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonInvalidSignature))
	assert.Equal(t, StatusPending, env.repo.mustGet(t, orderNumber).Status)

	other := gatewayPayment(t, env, orderNumber, "order_someone_else", "pay_1")
	_, err = env.rec.VerifyGatewayPayment(ctx, testCustomer, other)
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonExternalRefMismatch))

	_, err = env.rec.VerifyGatewayPayment(ctx, Customer{UserID: "user-2"}, gatewayPayment(t, env, orderNumber, checkout.ExternalOrderID, "pay_1"))
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonOrderNotOwned))

	out, err := env.rec.VerifyGatewayPayment(ctx, testCustomer, gatewayPayment(t, env, "", checkout.ExternalOrderID, "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
	assert.Equal(t, MatchedByExternalRef, out.MatchedBy)

	got := env.repo.mustGet(t, orderNumber)
	assert.Equal(t, StatusPaid, got.Status)
	assert.Equal(t, "pay_1", got.PaymentRef)
	assert.False(t, got.WebhookVerified)
	assert.Equal(t, 8, env.stock.get(itemA))

	out, err = env.rec.VerifyGatewayPayment(ctx, testCustomer, gatewayPayment(t, env, orderNumber, checkout.ExternalOrderID, "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultAlreadyRecorded, out.Result)
	assert.Equal(t, 8, env.stock.get(itemA))
}

func TestGatewayCheckoutRejections(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t, func(c *PaymentConfig) { c.GatewayKeySecret = "" })
	_, err := env.rec.CreateGatewayOrder(ctx, testCustomer, standardItems(), decimal.NullDecimal{})
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonGatewayNotConfigured))
	_, err = env.rec.GatewayKeyID()
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonGatewayNotConfigured))

	env = newTestEnv(t)
	_, err = env.rec.CreateGatewayOrder(ctx, testCustomer, standardItems(), decimal.NewNullDecimal(decimal.RequireFromString("1.00")))
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonInvalidRequest))
	assert.Empty(t, env.repo.orders)

	env.gateway.err = fmt.Errorf("connection refused")
	_, err = env.rec.CreateGatewayOrder(ctx, testCustomer, standardItems(), decimal.NullDecimal{})
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonGatewayUnavailable))
}

func gatewayWebhookBody(t *testing.T, event, externalID, paymentID string, amount int64) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"event": event,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       paymentID,
					"order_id": externalID,
					"amount":   amount,
					"status":   "captured",
				},
			},
		},
	})
	require.NoError(t, err)
	return b
}

func TestGatewayWebhook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	checkout, err := env.rec.CreateGatewayOrder(ctx, testCustomer, standardItems(), decimal.NullDecimal{})
	require.NoError(t, err)
	secret := env.conf.GatewayWebhookSecret

	body := gatewayWebhookBody(t, constants.GatewayEventPaymentCaptured, checkout.ExternalOrderID, "pay_9", 30000)
	_, err = env.rec.ApplyGatewayWebhook(ctx, body, "bad")
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonInvalidSignature))

	out, err := env.rec.ApplyGatewayWebhook(ctx, body, SignHex(secret, body))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
	got := env.repo.mustGet(t, checkout.Order.OrderNumber)
	assert.Equal(t, StatusPaid, got.Status)
	assert.True(t, got.WebhookVerified)

	ignored := gatewayWebhookBody(t, "order.paid", checkout.ExternalOrderID, "pay_9", 30000)
	out, err = env.rec.ApplyGatewayWebhook(ctx, ignored, SignHex(secret, ignored))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultIgnored, out.Result)

	unknown := gatewayWebhookBody(t, constants.GatewayEventPaymentFailed, "order_unknown", "pay_x", 100)
	out, err = env.rec.ApplyGatewayWebhook(ctx, unknown, SignHex(secret, unknown))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultUnmatched, out.Result)
	assert.True(t, env.unmatched.records[0].Failure)
}

func TestGatewayWebhookAmountMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	checkout, err := env.rec.CreateGatewayOrder(ctx, testCustomer, standardItems(), decimal.NullDecimal{})
	require.NoError(t, err)

	body := gatewayWebhookBody(t, constants.GatewayEventPaymentCaptured, checkout.ExternalOrderID, "pay_9", 100)
	out, err := env.rec.ApplyGatewayWebhook(ctx, body, SignHex(env.conf.GatewayWebhookSecret, body))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultAmountMismatch, out.Result)
	assert.Equal(t, StatusPending, env.repo.mustGet(t, checkout.Order.OrderNumber).Status)
}

func TestDemoComplete(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t)
	_, err := env.rec.DemoComplete(ctx, testCustomer, standardItems())
	assert.True(t, orderErrors.Is(err, orderErrors.ReasonDemoDisabled))
	assert.Empty(t, env.repo.orders)

	env = newTestEnv(t, func(c *PaymentConfig) { c.DemoEnabled = true })
	out, err := env.rec.DemoComplete(ctx, testCustomer, standardItems())
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
	got := env.repo.mustGet(t, out.OrderNumber)
	assert.Equal(t, StatusPaid, got.Status)
	assert.Contains(t, got.ExternalRef, constants.ExternalRefDemoPrefix)
	assert.Contains(t, got.PaymentRef, constants.PaymentRefDemoPrefix)
	assert.Equal(t, 8, env.stock.get(itemA))
}

func TestNotificationFailureDoesNotAffectOutcome(t *testing.T) {
	env := newTestEnv(t)
	env.dispatcher.failRender = true
	env.dispatcher.failSend = true
	o := env.createOrder(t)

	out, err := env.webhook(t, upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber}))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
	assert.Equal(t, StatusPaid, env.repo.mustGet(t, o.OrderNumber).Status)
}

func TestInventoryFailureDoesNotAbortTransition(t *testing.T) {
	env := newTestEnv(t)
	env.stock.fail[itemA] = true
	o := env.createOrder(t)

	out, err := env.webhook(t, upiBody(t, map[string]interface{}{"orderNumber": o.OrderNumber}))
	require.NoError(t, err)
	assert.Equal(t, constants.ResultRecorded, out.Result)
	assert.Equal(t, 10, env.stock.get(itemA))
	assert.Equal(t, 4, env.stock.get(itemB))
}

func TestListUnmatched(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.webhook(t, upiBody(t, map[string]interface{}{"utr": "1", "amount": 1}))
	require.NoError(t, err)
	list, total, err := env.rec.ListUnmatched(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}
