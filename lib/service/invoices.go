package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type CreateInvoiceRequest struct {
	TokenID      *int64    `json:"tokenId" validate:"omitempty,min=0"`
	InvoiceHash  string    `json:"invoiceHash" validate:"omitempty,max=66"`
	Amount       string    `json:"amount" validate:"required,numeric"`
	TokenAddress string    `json:"tokenAddress" validate:"required,eth_addr"`
	PayerAddress string    `json:"payerAddress" validate:"required,eth_addr"`
	Title        string    `json:"title" validate:"max=200"`
	Description  string    `json:"description"`
	DueDate      time.Time `json:"dueDate" validate:"required"`
	IsMilestone  bool      `json:"isMilestone"`
	PdfIpfsHash  string    `json:"pdfIpfsHash" validate:"max=100"`
	MintTxHash   string    `json:"mintTxHash" validate:"max=66"`
	ChainID      int64     `json:"chainId"`
}

type UpdateInvoiceRequest struct {
	Title               *string `json:"title" validate:"omitempty,max=200"`
	Description         *string `json:"description"`
	Status              *string `json:"status" validate:"omitempty,oneof=draft awaiting_approval approved listed sold disputed paid cancelled"`
	CurrentOwnerAddress *string `json:"currentOwnerAddress" validate:"omitempty,eth_addr"`
}

type InvoiceFilter struct {
	Seller  string `query:"seller"`
	Payer   string `query:"payer"`
	Owner   string `query:"owner"`
	Status  string `query:"status"`
	ChainID int64  `query:"chainId"`
	Page    int    `query:"page" validate:"omitempty,min=1"`
	Limit   int    `query:"limit" validate:"omitempty,min=1"`
}

type InvoicesResponse struct {
	Invoices   []models.Invoice `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// CreateInvoice stores an off-chain draft. Minting it later fills in the
// chain columns through the token_id upsert.
func (svc *InvoiceFlowService) CreateInvoice(ctx context.Context, seller string, req *CreateInvoiceRequest) (*models.Invoice, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		return nil, fmt.Errorf("amount must be a non-negative number: %w", ErrInvalidArgument)
	}
	chainID := req.ChainID
	if chainID == 0 {
		chainID = svc.ChainConfig.ChainID
	}
	seller = normalize(seller)
	invoice := &models.Invoice{
		TokenID:             req.TokenID,
		InvoiceHash:         req.InvoiceHash,
		Amount:              amount,
		AmountDisplay:       FormatUnits(amount),
		TokenAddress:        normalize(req.TokenAddress),
		SellerAddress:       seller,
		PayerAddress:        normalize(req.PayerAddress),
		CurrentOwnerAddress: seller,
		Title:               req.Title,
		Description:         req.Description,
		DueDate:             req.DueDate.UTC(),
		IsMilestone:         req.IsMilestone,
		PdfIpfsHash:         req.PdfIpfsHash,
		MintTxHash:          req.MintTxHash,
		ChainID:             chainID,
		CreatedAt:           svc.now(),
	}
	_, err = svc.DB.NewInsert().Model(invoice).Exec(ctx)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("invoice for this token is already mirrored: %w", ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// UpdateInvoice applies the editable fields. Only the seller or the current
// owner may edit.
func (svc *InvoiceFlowService) UpdateInvoice(ctx context.Context, caller string, id int64, req *UpdateInvoiceRequest) (*models.Invoice, error) {
	invoice, err := svc.FindInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	caller = normalize(caller)
	if invoice.SellerAddress != caller && invoice.CurrentOwnerAddress != caller {
		return nil, fmt.Errorf("invoice %d: %w", id, ErrForbidden)
	}

	columns := []string{"updated_at"}
	if req.Title != nil {
		invoice.Title = *req.Title
		columns = append(columns, "title")
	}
	if req.Description != nil {
		invoice.Description = *req.Description
		columns = append(columns, "description")
	}
	if req.Status != nil {
		invoice.Status = *req.Status
		columns = append(columns, "status")
	}
	if req.CurrentOwnerAddress != nil {
		invoice.CurrentOwnerAddress = normalize(*req.CurrentOwnerAddress)
		columns = append(columns, "current_owner_address")
	}
	_, err = svc.DB.NewUpdate().Model(invoice).Column(columns...).WherePK().Exec(ctx)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (svc *InvoiceFlowService) FindInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	invoice := new(models.Invoice)
	err := svc.DB.NewSelect().Model(invoice).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// InvoiceDetails loads an invoice with its listings, payments and disputes.
func (svc *InvoiceFlowService) InvoiceDetails(ctx context.Context, id int64) (*models.Invoice, error) {
	return svc.invoiceDetails(ctx, "invoice.id = ?", id)
}

func (svc *InvoiceFlowService) InvoiceDetailsByToken(ctx context.Context, tokenID int64) (*models.Invoice, error) {
	return svc.invoiceDetails(ctx, "invoice.token_id = ?", tokenID)
}

func (svc *InvoiceFlowService) invoiceDetails(ctx context.Context, where string, arg int64) (*models.Invoice, error) {
	invoice := new(models.Invoice)
	err := svc.DB.NewSelect().Model(invoice).
		Relation("Listings", orderNewest).
		Relation("Payments", orderNewest).
		Relation("Disputes", orderNewest).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func orderNewest(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("id DESC")
}

func (svc *InvoiceFlowService) ListInvoices(ctx context.Context, filter *InvoiceFilter) (*InvoicesResponse, error) {
	page, limit, offset := svc.normalizePage(PageRequest{Page: filter.Page, Limit: filter.Limit})
	invoices := []models.Invoice{}
	query := svc.DB.NewSelect().Model(&invoices)
	if filter.Seller != "" {
		query = query.Where("seller_address = ?", normalize(filter.Seller))
	}
	if filter.Payer != "" {
		query = query.Where("payer_address = ?", normalize(filter.Payer))
	}
	if filter.Owner != "" {
		query = query.Where("current_owner_address = ?", normalize(filter.Owner))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ChainID != 0 {
		query = query.Where("chain_id = ?", filter.ChainID)
	}
	total, err := query.
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}
	return &InvoicesResponse{Invoices: invoices, Pagination: newPagination(page, limit, total)}, nil
}
