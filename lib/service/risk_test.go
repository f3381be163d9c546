package service

import (
	"context"
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow/common"
	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/invoiceflow/invoiceflow/risk"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertInvoice(t *testing.T, svc *InvoiceFlowService, payerAddr, status string, amount decimal.Decimal, due time.Time) *models.Invoice {
	t.Helper()
	invoice := &models.Invoice{
		Amount:              amount,
		TokenAddress:        "0xtoken",
		SellerAddress:       seller,
		PayerAddress:        payerAddr,
		CurrentOwnerAddress: seller,
		Status:              status,
		DueDate:             due,
		ChainID:             97,
	}
	_, err := svc.DB.NewInsert().Model(invoice).Exec(context.Background())
	require.NoError(t, err)
	return invoice
}

func insertPayment(t *testing.T, svc *InvoiceFlowService, invoice *models.Invoice, txHash string, paidAt time.Time) {
	t.Helper()
	payment := &models.Payment{
		InvoiceID:        invoice.ID,
		PayerAddress:     invoice.PayerAddress,
		RecipientAddress: invoice.SellerAddress,
		Amount:           invoice.Amount,
		Fee:              decimal.Zero,
		TxHash:           txHash,
		PaidAt:           paidAt,
		ChainID:          97,
	}
	_, err := svc.DB.NewInsert().Model(payment).Exec(context.Background())
	require.NoError(t, err)
}

func insertDispute(t *testing.T, svc *InvoiceFlowService, invoice *models.Invoice) {
	t.Helper()
	dispute := &models.Dispute{InvoiceID: invoice.ID, DisputedBy: invoice.PayerAddress, CreatedAt: testNow}
	_, err := svc.DB.NewInsert().Model(dispute).Exec(context.Background())
	require.NoError(t, err)
}

func TestPayerHistory(t *testing.T) {
	svc, _ := newTestService(t)
	due := testNow.Add(-10 * 24 * time.Hour)
	onTime := insertInvoice(t, svc, payer, common.InvoiceStatusPaid, decimal.NewFromInt(1), due)
	late := insertInvoice(t, svc, payer, common.InvoiceStatusPaid, decimal.NewFromInt(1), due)
	insertInvoice(t, svc, buyer, common.InvoiceStatusApproved, decimal.NewFromInt(1), due)
	insertPayment(t, svc, onTime, "0x1", due)
	insertPayment(t, svc, late, "0x2", due.Add(time.Minute))
	insertDispute(t, svc, late)

	history, err := svc.PayerHistory(context.Background(), payerAddress.Hex())
	require.NoError(t, err)
	assert.Equal(t, risk.History{TotalInvoices: 2, TotalPayments: 2, OnTimePayments: 1, Disputes: 1}, history)
}

func TestScoreRiskWithoutHistory(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.ScoreRisk(context.Background(), payer, decimal.NewFromInt(500), testNow.Add(45*24*time.Hour), nil)
	require.NoError(t, err)

	// 2 base, 0 due date, 0 history, -0.5 no disputes, -0.3 small amount
	assert.True(t, decimal.RequireFromString("1.2").Equal(res.SuggestedDiscount), res.SuggestedDiscount.String())
	assert.Equal(t, risk.LevelLow, res.RiskLevel)
	assert.Equal(t, 30, res.Confidence)
	assert.Len(t, res.Factors, 5)
	assert.Contains(t, res.Explanation, payer)
	assert.Contains(t, res.Explanation, "Days until due: 45.")
}

func TestScoreRiskFirstInvoiceStillOpen(t *testing.T) {
	svc, _ := newTestService(t)
	insertInvoice(t, svc, payer, common.InvoiceStatusApproved, decimal.NewFromInt(5000), testNow.Add(45*24*time.Hour))

	res, err := svc.ScoreRisk(context.Background(), payer, decimal.NewFromInt(5000), testNow.Add(45*24*time.Hour), nil)
	require.NoError(t, err)

	// an unpaid invoice that is not due yet is not a poor track record
	assert.True(t, decimal.RequireFromString("1.5").Equal(res.SuggestedDiscount), res.SuggestedDiscount.String())
	assert.Equal(t, risk.LevelLow, res.RiskLevel)
	assert.Equal(t, "n/a", res.Factors[2].Value)
	assert.True(t, decimal.Zero.Equal(res.Factors[2].Adjustment))
}

func TestScoreRiskFromStoredHistory(t *testing.T) {
	svc, _ := newTestService(t)
	due := testNow.Add(-10 * 24 * time.Hour)
	onTime := insertInvoice(t, svc, payer, common.InvoiceStatusPaid, decimal.NewFromInt(1), due)
	late := insertInvoice(t, svc, payer, common.InvoiceStatusPaid, decimal.NewFromInt(1), due)
	insertPayment(t, svc, onTime, "0x1", due)
	insertPayment(t, svc, late, "0x2", due.Add(time.Hour))
	insertDispute(t, svc, late)

	res, err := svc.ScoreRisk(context.Background(), payer, decimal.NewFromInt(20000), testNow.Add(3*24*time.Hour), nil)
	require.NoError(t, err)

	// 2 base, +2 due soon, +1.5 poor ratio, +0.5 one dispute, +0.5 large amount
	assert.True(t, decimal.RequireFromString("6.5").Equal(res.SuggestedDiscount), res.SuggestedDiscount.String())
	assert.Equal(t, risk.LevelHigh, res.RiskLevel)
	assert.Equal(t, 70, res.Confidence)
}

func TestScoreRiskWithSuppliedHistory(t *testing.T) {
	svc, _ := newTestService(t)
	history := &risk.History{TotalInvoices: 20, TotalPayments: 20, OnTimePayments: 20}

	res, err := svc.ScoreRisk(context.Background(), payer, decimal.NewFromInt(5000), testNow.Add(90*24*time.Hour), history)
	require.NoError(t, err)

	// 2 base, -0.5 long due date, -0.5 excellent ratio, -0.5 no disputes, clamped at 1
	assert.True(t, decimal.NewFromInt(1).Equal(res.SuggestedDiscount), res.SuggestedDiscount.String())
	assert.Equal(t, risk.LevelLow, res.RiskLevel)
	assert.Equal(t, 95, res.Confidence)
}

func TestGetInsights(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	units := decimal.New(1, common.TokenDecimals)

	insights, err := svc.GetInsights(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, insights.TotalAssessed)
	assert.Empty(t, insights.TopRiskyPayers)

	risky := insertInvoice(t, svc, payer, common.InvoiceStatusApproved, units.Mul(decimal.NewFromInt(20000)), testNow.Add(2*24*time.Hour))
	insertInvoice(t, svc, payer, common.InvoiceStatusApproved, units, testNow.Add(90*24*time.Hour))
	insertDispute(t, svc, risky)
	insertDispute(t, svc, risky)
	insertDispute(t, svc, risky)
	insertInvoice(t, svc, buyer, common.InvoiceStatusApproved, units.Mul(decimal.NewFromInt(100)), testNow.Add(45*24*time.Hour))
	insertInvoice(t, svc, seller, common.InvoiceStatusDraft, units, testNow.Add(45*24*time.Hour))

	insights, err = svc.GetInsights(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, insights.TotalAssessed)
	assert.Equal(t, risk.Distribution{Low: 1, High: 1}, insights.RiskDistribution)
	require.Len(t, insights.TopRiskyPayers, 2)
	assert.Equal(t, payer, insights.TopRiskyPayers[0].Address)
	assert.Equal(t, 3, insights.TopRiskyPayers[0].DisputeCount)
	assert.Equal(t, buyer, insights.TopRiskyPayers[1].Address)
	// amounts are scored in token units: 100 tokens is a small invoice
	assert.True(t, decimal.RequireFromString("6.5").Equal(insights.TopRiskyPayers[0].Discount), insights.TopRiskyPayers[0].Discount.String())
	assert.True(t, decimal.RequireFromString("1.2").Equal(insights.TopRiskyPayers[1].Discount), insights.TopRiskyPayers[1].Discount.String())
}
