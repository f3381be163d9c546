package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/invoiceflow/invoiceflow/common"
	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type CreatePaymentRequest struct {
	InvoiceID        int64  `json:"invoiceId" validate:"required,min=1"`
	PayerAddress     string `json:"payerAddress" validate:"required,eth_addr"`
	RecipientAddress string `json:"recipientAddress" validate:"required,eth_addr"`
	Amount           string `json:"amount" validate:"required,numeric"`
	Fee              string `json:"fee" validate:"omitempty,numeric"`
	TxHash           string `json:"txHash" validate:"required,max=66"`
}

type PaymentFilter struct {
	InvoiceID int64  `query:"invoiceId"`
	Payer     string `query:"payer"`
	Recipient string `query:"recipient"`
	Page      int    `query:"page" validate:"omitempty,min=1"`
	Limit     int    `query:"limit" validate:"omitempty,min=1"`
}

type PaymentsResponse struct {
	Payments   []models.Payment `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// RecordPayment stores a payment reported by a client and marks the invoice
// paid. A tx hash that is already recorded yields ErrConflict.
func (svc *InvoiceFlowService) RecordPayment(ctx context.Context, req *CreatePaymentRequest) (*models.Payment, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", ErrInvalidArgument)
	}
	fee := decimal.Zero
	if req.Fee != "" {
		fee, err = decimal.NewFromString(req.Fee)
		if err != nil || fee.IsNegative() {
			return nil, fmt.Errorf("fee must not be negative: %w", ErrInvalidArgument)
		}
	}

	invoice, err := svc.FindInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		InvoiceID:        invoice.ID,
		PayerAddress:     normalize(req.PayerAddress),
		RecipientAddress: normalize(req.RecipientAddress),
		Amount:           amount,
		Fee:              fee,
		TxHash:           req.TxHash,
		PaidAt:           svc.now(),
		ChainID:          invoice.ChainID,
	}
	if invoice.TokenID != nil {
		payment.TokenID = *invoice.TokenID
	}

	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(payment).Exec(ctx)
		if isUniqueViolation(err) {
			return fmt.Errorf("payment %s already recorded: %w", req.TxHash, ErrConflict)
		}
		if err != nil {
			return err
		}
		invoice.Status = common.InvoiceStatusPaid
		_, err = tx.NewUpdate().Model(invoice).Column("status", "updated_at").WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (svc *InvoiceFlowService) FindPayment(ctx context.Context, id int64) (*models.Payment, error) {
	payment := new(models.Payment)
	err := svc.DB.NewSelect().Model(payment).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (svc *InvoiceFlowService) ListPayments(ctx context.Context, filter *PaymentFilter) (*PaymentsResponse, error) {
	page, limit, offset := svc.normalizePage(PageRequest{Page: filter.Page, Limit: filter.Limit})
	payments := []models.Payment{}
	query := svc.DB.NewSelect().Model(&payments)
	if filter.InvoiceID != 0 {
		query = query.Where("invoice_id = ?", filter.InvoiceID)
	}
	if filter.Payer != "" {
		query = query.Where("payer_address = ?", normalize(filter.Payer))
	}
	if filter.Recipient != "" {
		query = query.Where("recipient_address = ?", normalize(filter.Recipient))
	}
	total, err := query.
		Order("paid_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}
	return &PaymentsResponse{Payments: payments, Pagination: newPagination(page, limit, total)}, nil
}
