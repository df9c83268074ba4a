package data

import (
	"context"
	"testing"
	"time"

	"order-service/internal/biz"
	"order-service/internal/data/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmatchedPaymentRepoDeduplicates(t *testing.T) {
	repo := NewUnmatchedPaymentRepo(newTestData(t), testLogger)
	ctx := context.Background()

	p := &biz.UnmatchedPayment{
		Rail:       "upi_webhook",
		PaymentRef: "UPI_999999999999",
		UTR:        "999999999999",
		Amount:     decimal.NewNullDecimal(decimal.RequireFromString("12.34")),
		RawPayload: []byte(`{"utr":"999999999999"}`),
		CreatedAt:  time.Now(),
	}
	require.NoError(t, repo.Record(ctx, p))
	dup := *p
	dup.ID = ""
	require.NoError(t, repo.Record(ctx, &dup))
	require.NoError(t, repo.Record(ctx, &biz.UnmatchedPayment{Rail: "gateway_webhook", PaymentRef: "UPI_999999999999", CreatedAt: time.Now()}))

	list, total, err := repo.List(ctx, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)
}

func TestAddressRepoGetDefault(t *testing.T) {
	d := newTestData(t)
	repo := NewAddressRepo(d, testLogger)
	ctx := context.Background()

	require.NoError(t, d.db.Create(&model.Address{UserID: "user-1", Label: "Work", City: "Chennai"}).Error)
	got, err := repo.GetDefault(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, d.db.Create(&model.Address{
		UserID: "user-1", Label: "Home", Name: "Asha", AddressLine1: "4 Beach Rd", City: "Chennai", State: "TN", Pincode: "600001", IsDefault: true,
	}).Error)
	got, err = repo.GetDefault(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "4 Beach Rd, Chennai, TN - 600001", got.Format())
}
