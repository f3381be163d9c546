package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/invoiceflow/invoiceflow/common"
	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type CreateDonationRequest struct {
	DonorAddress string `json:"donorAddress" validate:"required,eth_addr"`
	Amount       string `json:"amount" validate:"required,numeric"`
	TxHash       string `json:"txHash" validate:"required,len=66,startswith=0x"`
	Source       string `json:"source" validate:"omitempty,oneof=direct escrow_fee marketplace"`
}

type CreateGrantRequest struct {
	RecipientAddress string `json:"recipientAddress" validate:"required,eth_addr"`
	Amount           string `json:"amount" validate:"required,numeric"`
	Purpose          string `json:"purpose" validate:"required,max=2000"`
}

type PoolStats struct {
	TotalDonated   decimal.Decimal `json:"totalDonated"`
	TotalGranted   decimal.Decimal `json:"totalGranted"`
	PoolBalance    decimal.Decimal `json:"poolBalance"`
	ActiveGrants   int             `json:"activeGrants"`
	TotalDonations int             `json:"totalDonations"`
	TotalGrants    int             `json:"totalGrants"`
}

type DonationsResponse struct {
	Donations  []models.ResearchDonation `json:"donations"`
	Pagination Pagination                `json:"pagination"`
}

type GrantsResponse struct {
	Grants     []models.ResearchGrant `json:"grants"`
	Pagination Pagination             `json:"pagination"`
}

type amountSum struct {
	Total decimal.NullDecimal `bun:"total"`
	Count int                 `bun:"count"`
}

func sumAmounts(ctx context.Context, db bun.IDB, model interface{}) (decimal.Decimal, int, error) {
	var sum amountSum
	err := db.NewSelect().Model(model).
		ColumnExpr("SUM(amount) AS total").
		ColumnExpr("COUNT(*) AS count").
		Scan(ctx, &sum)
	if err != nil {
		return decimal.Zero, 0, err
	}
	if !sum.Total.Valid {
		return decimal.Zero, sum.Count, nil
	}
	return sum.Total.Decimal, sum.Count, nil
}

// ResearchPoolStats reports the mirrored pool: donations minus grants.
func (svc *InvoiceFlowService) ResearchPoolStats(ctx context.Context) (*PoolStats, error) {
	return poolStats(ctx, svc.DB)
}

func poolStats(ctx context.Context, db bun.IDB) (*PoolStats, error) {
	donated, donations, err := sumAmounts(ctx, db, (*models.ResearchDonation)(nil))
	if err != nil {
		return nil, err
	}
	granted, grants, err := sumAmounts(ctx, db, (*models.ResearchGrant)(nil))
	if err != nil {
		return nil, err
	}
	active, err := db.NewSelect().Model((*models.ResearchGrant)(nil)).
		Where("is_executed = ?", false).
		Count(ctx)
	if err != nil {
		return nil, err
	}
	return &PoolStats{
		TotalDonated:   donated,
		TotalGranted:   granted,
		PoolBalance:    donated.Sub(granted),
		ActiveGrants:   active,
		TotalDonations: donations,
		TotalGrants:    grants,
	}, nil
}

func (svc *InvoiceFlowService) CreateDonation(ctx context.Context, req *CreateDonationRequest) (*models.ResearchDonation, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", ErrInvalidArgument)
	}
	source := req.Source
	if source == "" {
		source = common.DonationSourceDirect
	}
	donation := &models.ResearchDonation{
		DonorAddress: normalize(req.DonorAddress),
		Amount:       amount,
		TxHash:       req.TxHash,
		Source:       source,
		CreatedAt:    svc.now(),
	}
	_, err = svc.DB.NewInsert().Model(donation).Exec(ctx)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("donation %s already recorded: %w", req.TxHash, ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return donation, nil
}

// CreateGrant allocates a grant if the pool balance covers it. The balance
// check and the insert share one transaction.
func (svc *InvoiceFlowService) CreateGrant(ctx context.Context, req *CreateGrantRequest) (*models.ResearchGrant, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", ErrInvalidArgument)
	}
	grant := &models.ResearchGrant{
		RecipientAddress: normalize(req.RecipientAddress),
		Amount:           amount,
		Purpose:          req.Purpose,
		CreatedAt:        svc.now(),
	}
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		stats, err := poolStats(ctx, tx)
		if err != nil {
			return err
		}
		if amount.GreaterThan(stats.PoolBalance) {
			return fmt.Errorf("available %s, requested %s: %w", stats.PoolBalance, amount, ErrInsufficientPoolBalance)
		}
		_, err = tx.NewInsert().Model(grant).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

func (svc *InvoiceFlowService) ListDonations(ctx context.Context, req PageRequest) (*DonationsResponse, error) {
	page, limit, offset := svc.normalizePage(req)
	donations := []models.ResearchDonation{}
	total, err := svc.DB.NewSelect().Model(&donations).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}
	return &DonationsResponse{Donations: donations, Pagination: newPagination(page, limit, total)}, nil
}

func (svc *InvoiceFlowService) ListGrants(ctx context.Context, req PageRequest) (*GrantsResponse, error) {
	page, limit, offset := svc.normalizePage(req)
	grants := []models.ResearchGrant{}
	total, err := svc.DB.NewSelect().Model(&grants).
		Order("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}
	return &GrantsResponse{Grants: grants, Pagination: newPagination(page, limit, total)}, nil
}
