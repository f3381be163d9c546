package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow/common"
	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type CreateListingRequest struct {
	InvoiceID       int64     `json:"invoiceId" validate:"required,min=1"`
	TokenID         int64     `json:"tokenId" validate:"min=0"`
	SalePrice       string    `json:"salePrice" validate:"required,numeric"`
	OriginalAmount  string    `json:"originalAmount" validate:"omitempty,numeric"`
	DiscountPercent string    `json:"discountPercent" validate:"omitempty,numeric"`
	PaymentToken    string    `json:"paymentToken" validate:"required,eth_addr"`
	Expiry          time.Time `json:"expiry" validate:"required"`
}

type ListingFilter struct {
	Seller       string `query:"seller"`
	PaymentToken string `query:"paymentToken"`
	MinPrice     string `query:"minPrice" validate:"omitempty,numeric"`
	MaxPrice     string `query:"maxPrice" validate:"omitempty,numeric"`
	Sort         string `query:"sort" validate:"omitempty,oneof=newest oldest price_asc price_desc"`
	Page         int    `query:"page" validate:"omitempty,min=1"`
	Limit        int    `query:"limit" validate:"omitempty,min=1"`
}

type ListingsResponse struct {
	Listings   []models.Listing `json:"listings"`
	Pagination Pagination       `json:"pagination"`
}

type MarketplaceStats struct {
	ActiveListings         int             `json:"activeListings"`
	TotalSold              int             `json:"totalSold"`
	TotalVolume            decimal.Decimal `json:"totalVolume"`
	AverageDiscountPercent decimal.Decimal `json:"averageDiscountPercent"`
}

// CreateListing lists an invoice owned (or originally issued) by seller.
// A second active listing for the same invoice is rejected with ErrConflict.
func (svc *InvoiceFlowService) CreateListing(ctx context.Context, seller string, req *CreateListingRequest) (*models.Listing, error) {
	seller = normalize(seller)
	invoice, err := svc.FindInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.SellerAddress != seller && invoice.CurrentOwnerAddress != seller {
		return nil, fmt.Errorf("invoice %d is not owned by %s: %w", invoice.ID, seller, ErrForbidden)
	}

	salePrice, err := decimal.NewFromString(req.SalePrice)
	if err != nil {
		return nil, fmt.Errorf("salePrice: %w", ErrInvalidArgument)
	}
	originalAmount := invoice.Amount
	if req.OriginalAmount != "" {
		originalAmount, err = decimal.NewFromString(req.OriginalAmount)
		if err != nil {
			return nil, fmt.Errorf("originalAmount: %w", ErrInvalidArgument)
		}
	}
	discount := req.DiscountPercent
	if discount == "" {
		discount = DiscountPercent(originalAmount, salePrice)
	}

	listing := &models.Listing{
		InvoiceID:       invoice.ID,
		TokenID:         req.TokenID,
		SellerAddress:   seller,
		SalePrice:       salePrice,
		OriginalAmount:  originalAmount,
		DiscountPercent: discount,
		PaymentToken:    normalize(req.PaymentToken),
		Expiry:          req.Expiry.UTC(),
		IsActive:        true,
		CreatedAt:       svc.now(),
	}
	err = svc.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := svc.insertActiveListing(ctx, tx, listing); err != nil {
			return err
		}
		invoice.Status = common.InvoiceStatusListed
		_, err := tx.NewUpdate().Model(invoice).Column("status", "updated_at").WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	listing.Invoice = invoice
	return listing, nil
}

func (svc *InvoiceFlowService) insertActiveListing(ctx context.Context, db bun.IDB, listing *models.Listing) error {
	active, err := db.NewSelect().Model((*models.Listing)(nil)).
		Where("invoice_id = ?", listing.InvoiceID).
		Where("is_active = ?", true).
		Exists(ctx)
	if err != nil {
		return err
	}
	if active {
		return fmt.Errorf("invoice %d already has an active listing: %w", listing.InvoiceID, ErrConflict)
	}
	_, err = db.NewInsert().Model(listing).Exec(ctx)
	if isUniqueViolation(err) {
		// lost the race against a concurrent insert
		return fmt.Errorf("invoice %d already has an active listing: %w", listing.InvoiceID, ErrConflict)
	}
	return err
}

// RecordSale closes an active listing for buyer and transfers the invoice in
// one transaction.
func (svc *InvoiceFlowService) RecordSale(ctx context.Context, listingID int64, buyer, buyTxHash string) (*models.Listing, error) {
	listing, err := svc.FindListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsActive {
		return nil, fmt.Errorf("listing %d is already inactive: %w", listingID, ErrConflict)
	}

	buyer = normalize(buyer)
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return svc.markSold(ctx, tx, listing.Invoice, buyer, buyTxHash)
	})
	if err != nil {
		return nil, err
	}
	return svc.FindListing(ctx, listingID)
}

// recordSale is the chain side of RecordSale, keyed by token id.
func (svc *InvoiceFlowService) recordSale(ctx context.Context, tokenID int64, buyer, buyTxHash string) (invoice *models.Invoice, previous string, err error) {
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		invoice, err = findInvoiceByToken(ctx, tx, tokenID)
		if err != nil {
			return err
		}
		if invoice == nil {
			svc.Logger.Warnf("InvoiceSold for token %d which is not mirrored yet, skipping", tokenID)
			return nil
		}
		previous = invoice.Status
		if !common.CanTransition(previous, common.InvoiceStatusSold) {
			svc.Logger.Warnf("InvoiceSold moves invoice %d from %s to %s", invoice.ID, previous, common.InvoiceStatusSold)
		}
		return svc.markSold(ctx, tx, invoice, buyer, buyTxHash)
	})
	if err != nil {
		return nil, "", err
	}
	return invoice, previous, nil
}

func (svc *InvoiceFlowService) markSold(ctx context.Context, tx bun.IDB, invoice *models.Invoice, buyer, buyTxHash string) error {
	invoice.Status = common.InvoiceStatusSold
	invoice.CurrentOwnerAddress = buyer
	_, err := tx.NewUpdate().Model(invoice).
		Column("status", "current_owner_address", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("transferring invoice %d: %w", invoice.ID, err)
	}

	_, err = tx.NewUpdate().Model((*models.Listing)(nil)).
		Set("is_active = ?", false).
		Set("buyer_address = ?", buyer).
		Set("buy_tx_hash = ?", sql.NullString{String: buyTxHash, Valid: buyTxHash != ""}).
		Set("updated_at = ?", svc.now()).
		Where("invoice_id = ?", invoice.ID).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("closing listing of invoice %d: %w", invoice.ID, err)
	}
	return nil
}

func (svc *InvoiceFlowService) FindListing(ctx context.Context, id int64) (*models.Listing, error) {
	listing := new(models.Listing)
	err := svc.DB.NewSelect().Model(listing).
		Relation("Invoice").
		Where("listing.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (svc *InvoiceFlowService) ListingsByInvoice(ctx context.Context, invoiceID int64) ([]models.Listing, error) {
	listings := []models.Listing{}
	err := svc.DB.NewSelect().Model(&listings).
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	return listings, err
}

// ActiveListings browses active, unexpired listings. Prices are in base units.
func (svc *InvoiceFlowService) ActiveListings(ctx context.Context, filter *ListingFilter) (*ListingsResponse, error) {
	page, limit, offset := svc.normalizePage(PageRequest{Page: filter.Page, Limit: filter.Limit})
	listings := []models.Listing{}
	query := svc.DB.NewSelect().Model(&listings).
		Relation("Invoice").
		Where("listing.is_active = ?", true).
		Where("listing.expiry > ?", svc.now())
	if filter.Seller != "" {
		query = query.Where("listing.seller_address = ?", normalize(filter.Seller))
	}
	if filter.PaymentToken != "" {
		query = query.Where("listing.payment_token = ?", normalize(filter.PaymentToken))
	}
	if filter.MinPrice != "" {
		minPrice, err := decimal.NewFromString(filter.MinPrice)
		if err != nil {
			return nil, fmt.Errorf("minPrice: %w", ErrInvalidArgument)
		}
		query = query.Where("listing.sale_price >= ?", minPrice)
	}
	if filter.MaxPrice != "" {
		maxPrice, err := decimal.NewFromString(filter.MaxPrice)
		if err != nil {
			return nil, fmt.Errorf("maxPrice: %w", ErrInvalidArgument)
		}
		query = query.Where("listing.sale_price <= ?", maxPrice)
	}
	switch filter.Sort {
	case "oldest":
		query = query.Order("listing.created_at ASC", "listing.id ASC")
	case "price_asc":
		query = query.Order("listing.sale_price ASC", "listing.id ASC")
	case "price_desc":
		query = query.Order("listing.sale_price DESC", "listing.id DESC")
	default:
		query = query.Order("listing.created_at DESC", "listing.id DESC")
	}
	total, err := query.Limit(limit).Offset(offset).ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}
	return &ListingsResponse{Listings: listings, Pagination: newPagination(page, limit, total)}, nil
}

// MarketplaceStats counts active and sold listings. A listing counts as sold
// once it is inactive with a buyer.
func (svc *InvoiceFlowService) MarketplaceStats(ctx context.Context) (*MarketplaceStats, error) {
	stats := &MarketplaceStats{TotalVolume: decimal.Zero, AverageDiscountPercent: decimal.Zero}

	var err error
	stats.ActiveListings, err = svc.DB.NewSelect().Model((*models.Listing)(nil)).
		Where("is_active = ?", true).
		Where("expiry > ?", svc.now()).
		Count(ctx)
	if err != nil {
		return nil, err
	}

	sold := []models.Listing{}
	err = svc.DB.NewSelect().Model(&sold).
		Column("sale_price", "discount_percent").
		Where("is_active = ?", false).
		Where("buyer_address IS NOT NULL").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalSold = len(sold)
	if len(sold) == 0 {
		return stats, nil
	}

	discounts := decimal.Zero
	for _, listing := range sold {
		stats.TotalVolume = stats.TotalVolume.Add(listing.SalePrice)
		discount, err := decimal.NewFromString(listing.DiscountPercent)
		if err != nil {
			svc.Logger.Warnf("Listing %d has malformed discount %q", listing.ID, listing.DiscountPercent)
			continue
		}
		discounts = discounts.Add(discount)
	}
	stats.AverageDiscountPercent = discounts.Div(decimal.NewFromInt(int64(len(sold)))).Round(2)
	return stats, nil
}
