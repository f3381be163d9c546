package service

import (
	"context"
	"testing"

	"github.com/invoiceflow/invoiceflow/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentRequest(invoiceID int64, txHash string) *CreatePaymentRequest {
	return &CreatePaymentRequest{
		InvoiceID:        invoiceID,
		PayerAddress:     payerAddress.Hex(),
		RecipientAddress: sellerAddress.Hex(),
		Amount:           "1000",
		Fee:              "10",
		TxHash:           txHash,
	}
}

func TestRecordPayment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	invoice := mint(t, svc, 41, 1000)

	payment, err := svc.RecordPayment(ctx, paymentRequest(invoice.ID, "0xpay"))
	require.NoError(t, err)
	assert.Equal(t, int64(41), payment.TokenID)
	assert.Equal(t, payer, payment.PayerAddress)
	assert.True(t, decimal.NewFromInt(10).Equal(payment.Fee))

	stored, err := svc.FindInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStatusPaid, stored.Status)

	found, err := svc.FindPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "0xpay", found.TxHash)

	_, err = svc.RecordPayment(ctx, paymentRequest(invoice.ID, "0xpay"))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.FindPayment(ctx, payment.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordPaymentValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	invoice := mint(t, svc, 42, 1000)

	req := paymentRequest(invoice.ID, "0x1")
	req.Amount = "0"
	_, err := svc.RecordPayment(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	req = paymentRequest(invoice.ID, "0x2")
	req.Fee = "-1"
	_, err = svc.RecordPayment(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.RecordPayment(ctx, paymentRequest(invoice.ID+10, "0x3"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPayments(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	first := mint(t, svc, 43, 1000)
	second := mint(t, svc, 44, 1000)
	_, err := svc.RecordPayment(ctx, paymentRequest(first.ID, "0xa"))
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, paymentRequest(second.ID, "0xb"))
	require.NoError(t, err)

	res, err := svc.ListPayments(ctx, &PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, res.Payments, 2)
	assert.Equal(t, "0xb", res.Payments[0].TxHash)

	res, err = svc.ListPayments(ctx, &PaymentFilter{InvoiceID: first.ID})
	require.NoError(t, err)
	require.Len(t, res.Payments, 1)
	assert.Equal(t, "0xa", res.Payments[0].TxHash)

	res, err = svc.ListPayments(ctx, &PaymentFilter{Recipient: buyer})
	require.NoError(t, err)
	assert.Empty(t, res.Payments)
}

func TestResearchPool(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	stats, err := svc.ResearchPoolStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.PoolBalance.IsZero())

	donation, err := svc.CreateDonation(ctx, &CreateDonationRequest{
		DonorAddress: payerAddress.Hex(),
		Amount:       "100",
		TxHash:       "0x01",
	})
	require.NoError(t, err)
	assert.Equal(t, common.DonationSourceDirect, donation.Source)

	_, err = svc.CreateDonation(ctx, &CreateDonationRequest{DonorAddress: payer, Amount: "5", TxHash: "0x01"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateGrant(ctx, &CreateGrantRequest{RecipientAddress: buyer, Amount: "150", Purpose: "too much"})
	assert.ErrorIs(t, err, ErrInsufficientPoolBalance)

	grant, err := svc.CreateGrant(ctx, &CreateGrantRequest{RecipientAddress: buyer, Amount: "60", Purpose: "protein folding"})
	require.NoError(t, err)
	assert.False(t, grant.IsExecuted)

	stats, err = svc.ResearchPoolStats(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(stats.TotalDonated))
	assert.True(t, decimal.NewFromInt(60).Equal(stats.TotalGranted))
	assert.True(t, decimal.NewFromInt(40).Equal(stats.PoolBalance))
	assert.Equal(t, 1, stats.ActiveGrants)
	assert.Equal(t, 1, stats.TotalDonations)
	assert.Equal(t, 1, stats.TotalGrants)

	_, err = svc.CreateGrant(ctx, &CreateGrantRequest{RecipientAddress: buyer, Amount: "41", Purpose: "one more"})
	assert.ErrorIs(t, err, ErrInsufficientPoolBalance)

	donations, err := svc.ListDonations(ctx, PageRequest{})
	require.NoError(t, err)
	assert.Len(t, donations.Donations, 1)
	grants, err := svc.ListGrants(ctx, PageRequest{})
	require.NoError(t, err)
	assert.Len(t, grants.Grants, 1)
	assert.Equal(t, 1, grants.Pagination.Total)
}
