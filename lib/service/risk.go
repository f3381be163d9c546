package service

import (
	"context"
	"time"

	"github.com/invoiceflow/invoiceflow/common"
	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/invoiceflow/invoiceflow/risk"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type RiskScoreRequest struct {
	InvoiceID    int64         `json:"invoiceId" validate:"omitempty,min=1"`
	PayerAddress string        `json:"payerAddress" validate:"required,eth_addr"`
	Amount       string        `json:"amount" validate:"required,numeric"`
	DueDate      time.Time     `json:"dueDate" validate:"required"`
	PayerHistory *risk.History `json:"payerHistory"`
}

type RiskScoreResponse struct {
	RiskLevel         risk.Level      `json:"riskLevel"`
	SuggestedDiscount decimal.Decimal `json:"suggestedDiscount"`
	Confidence        int             `json:"confidence"`
	Factors           []risk.Factor   `json:"factors"`
	Explanation       string          `json:"explanation"`
}

type InsightsResponse struct {
	TotalAssessed     int               `json:"totalAssessed"`
	RiskDistribution  risk.Distribution `json:"riskDistribution"`
	AverageDiscount   decimal.Decimal   `json:"averageDiscount"`
	AverageConfidence decimal.Decimal   `json:"averageConfidence"`
	TopRiskyPayers    []risk.RiskyPayer `json:"topRiskyPayers"`
}

// PayerHistory aggregates what the store knows about payer. A payment is on
// time when it was made no later than its invoice's due date.
func (svc *InvoiceFlowService) PayerHistory(ctx context.Context, payer string) (risk.History, error) {
	payer = normalize(payer)

	invoices := []models.Invoice{}
	err := svc.DB.NewSelect().Model(&invoices).
		Column("id", "due_date").
		Where("payer_address = ?", payer).
		Scan(ctx)
	if err != nil {
		return risk.History{}, err
	}
	payments := []models.Payment{}
	err = svc.DB.NewSelect().Model(&payments).
		Column("invoice_id", "paid_at").
		Where("payer_address = ?", payer).
		Scan(ctx)
	if err != nil {
		return risk.History{}, err
	}
	disputes, err := svc.DB.NewSelect().Model((*models.Dispute)(nil)).
		Where("disputed_by = ?", payer).
		Count(ctx)
	if err != nil {
		return risk.History{}, err
	}

	dueDates := make(map[int64]time.Time, len(invoices))
	for _, invoice := range invoices {
		dueDates[invoice.ID] = invoice.DueDate
	}
	onTime := 0
	for _, payment := range payments {
		due, ok := dueDates[payment.InvoiceID]
		if ok && !payment.PaidAt.After(due) {
			onTime++
		}
	}
	return risk.History{
		TotalInvoices:  len(invoices),
		TotalPayments:  len(payments),
		OnTimePayments: onTime,
		Disputes:       disputes,
	}, nil
}

// ScoreRisk scores a candidate invoice. The amount is in display units. When
// history is nil it is built from the store.
func (svc *InvoiceFlowService) ScoreRisk(ctx context.Context, payer string, amount decimal.Decimal, dueDate time.Time, history *risk.History) (*RiskScoreResponse, error) {
	var h risk.History
	if history != nil {
		h = *history
	} else {
		var err error
		h, err = svc.PayerHistory(ctx, payer)
		if err != nil {
			return nil, err
		}
	}
	score := risk.Evaluate(risk.Input{
		Amount:  amount,
		DueDate: dueDate,
		Now:     svc.now(),
		History: h,
	})
	return &RiskScoreResponse{
		RiskLevel:         score.Level,
		SuggestedDiscount: score.Discount,
		Confidence:        score.Confidence,
		Factors:           score.Factors,
		Explanation:       risk.Explain(normalize(payer), score, h),
	}, nil
}

// GetInsights scores every distinct payer once, using their oldest live
// invoice as the representative.
func (svc *InvoiceFlowService) GetInsights(ctx context.Context) (*InsightsResponse, error) {
	invoices := []models.Invoice{}
	err := svc.DB.NewSelect().Model(&invoices).
		Column("id", "payer_address", "amount", "due_date").
		Where("status NOT IN (?)", bun.In([]string{common.InvoiceStatusDraft, common.InvoiceStatusCancelled})).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	now := svc.now()
	seen := map[string]bool{}
	scores := []risk.PayerScore{}
	for _, invoice := range invoices {
		if seen[invoice.PayerAddress] {
			continue
		}
		seen[invoice.PayerAddress] = true

		history, err := svc.PayerHistory(ctx, invoice.PayerAddress)
		if err != nil {
			return nil, err
		}
		score := risk.Evaluate(risk.Input{
			Amount:  invoice.Amount.Shift(-common.TokenDecimals),
			DueDate: invoice.DueDate,
			Now:     now,
			History: history,
		})
		scores = append(scores, risk.PayerScore{Address: invoice.PayerAddress, Score: score, History: history})
	}

	summary := risk.Summarize(scores)
	return &InsightsResponse{
		TotalAssessed:     summary.TotalAssessed,
		RiskDistribution:  summary.Distribution,
		AverageDiscount:   summary.AverageDiscount,
		AverageConfidence: summary.AverageConfidence,
		TopRiskyPayers:    summary.TopRiskyPayers,
	}, nil
}
