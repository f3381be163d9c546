package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/invoiceflow/invoiceflow/chain"
	"github.com/invoiceflow/invoiceflow/common"
	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/invoiceflow/invoiceflow/listener"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// EventHandlers is the listener's dispatch table.
func (svc *InvoiceFlowService) EventHandlers() listener.Handlers {
	return listener.Handlers{
		chain.EventInvoiceMinted: func(ctx context.Context, e chain.Event) error {
			return svc.HandleInvoiceMinted(ctx, e.(*chain.InvoiceMinted))
		},
		chain.EventApprovalRequested: func(ctx context.Context, e chain.Event) error {
			return svc.HandleApprovalRequested(ctx, e.(*chain.ApprovalRequested))
		},
		chain.EventInvoiceApproved: func(ctx context.Context, e chain.Event) error {
			return svc.HandleInvoiceApproved(ctx, e.(*chain.InvoiceApproved))
		},
		chain.EventInvoiceDisputed: func(ctx context.Context, e chain.Event) error {
			return svc.HandleInvoiceDisputed(ctx, e.(*chain.InvoiceDisputed))
		},
		chain.EventDisputeResolved: func(ctx context.Context, e chain.Event) error {
			return svc.HandleDisputeResolved(ctx, e.(*chain.DisputeResolved))
		},
		chain.EventStatusChanged: func(ctx context.Context, e chain.Event) error {
			changed := e.(*chain.StatusChanged)
			svc.Logger.Debugf("StatusChanged token_id=%s %s -> %s", changed.TokenId,
				common.StatusFromChainCode(changed.OldStatus), common.StatusFromChainCode(changed.NewStatus))
			return nil
		},
		chain.EventInvoicePaid: func(ctx context.Context, e chain.Event) error {
			return svc.HandleInvoicePaid(ctx, e.(*chain.InvoicePaid))
		},
		chain.EventInvoiceListed: func(ctx context.Context, e chain.Event) error {
			return svc.HandleInvoiceListed(ctx, e.(*chain.InvoiceListed))
		},
		chain.EventInvoiceSold: func(ctx context.Context, e chain.Event) error {
			return svc.HandleInvoiceSold(ctx, e.(*chain.InvoiceSold))
		},
		chain.EventListingCancelled: func(ctx context.Context, e chain.Event) error {
			return svc.HandleListingCancelled(ctx, e.(*chain.ListingCancelled))
		},
	}
}

func (svc *InvoiceFlowService) HandleInvoiceMinted(ctx context.Context, e *chain.InvoiceMinted) error {
	tokenID, err := tokenIDOf(e.TokenId)
	if err != nil {
		return err
	}
	svc.Logger.Infof("InvoiceMinted token_id=%d tx=%s", tokenID, e.Raw.TxHash.Hex())

	existing, err := findInvoiceByToken(ctx, svc.DB, tokenID)
	if err != nil {
		return err
	}

	amount := decimalFromBig(e.Amount)
	seller := chain.NormalizeAddress(e.Seller)
	invoice := &models.Invoice{
		TokenID:             &tokenID,
		InvoiceHash:         hexutil.Encode(e.InvoiceHash[:]),
		Amount:              amount,
		AmountDisplay:       FormatUnits(amount),
		TokenAddress:        chain.NormalizeAddress(e.Token),
		SellerAddress:       seller,
		PayerAddress:        chain.NormalizeAddress(e.Payer),
		CurrentOwnerAddress: seller,
		Status:              common.InvoiceStatusDraft,
		DueDate:             time.Unix(int64(e.DueDate), 0).UTC(),
		MintTxHash:          e.Raw.TxHash.Hex(),
		ChainID:             svc.ChainConfig.ChainID,
	}
	err = upsertChainInvoice(ctx, svc.DB, invoice, "mint_tx_hash")
	if err != nil {
		return fmt.Errorf("upserting minted invoice %d: %w", tokenID, err)
	}
	if existing != nil {
		// replay, the payer was told already
		return nil
	}

	stored, err := findInvoiceByToken(ctx, svc.DB, tokenID)
	if err != nil {
		return err
	}
	svc.Notify(ctx, invoice.PayerAddress, common.NotificationInvoiceCreated, "New Invoice Received",
		fmt.Sprintf("A new invoice #%d has been created by %s", tokenID, shortAddress(seller)), invoiceIDOf(stored))
	return nil
}

func (svc *InvoiceFlowService) HandleApprovalRequested(ctx context.Context, e *chain.ApprovalRequested) error {
	tokenID, err := tokenIDOf(e.TokenId)
	if err != nil {
		return err
	}
	svc.Logger.Infof("ApprovalRequested token_id=%d", tokenID)

	invoice, previous, err := svc.applyStatus(ctx, svc.DB, tokenID, common.InvoiceStatusAwaitingApproval, chain.EventApprovalRequested)
	if err != nil {
		return err
	}
	if invoice != nil && previous == common.InvoiceStatusAwaitingApproval {
		return nil
	}
	// the payer is part of the event, so it is told even before the mint is mirrored
	svc.Notify(ctx, chain.NormalizeAddress(e.Payer), common.NotificationApprovalRequested, "Approval Requested",
		fmt.Sprintf("Invoice #%d requires your approval.", tokenID), invoiceIDOf(invoice))
	return nil
}

func (svc *InvoiceFlowService) HandleInvoiceApproved(ctx context.Context, e *chain.InvoiceApproved) error {
	tokenID, err := tokenIDOf(e.TokenId)
	if err != nil {
		return err
	}
	svc.Logger.Infof("InvoiceApproved token_id=%d", tokenID)

	invoice, previous, err := svc.applyStatus(ctx, svc.DB, tokenID, common.InvoiceStatusApproved, chain.EventInvoiceApproved)
	if err != nil || invoice == nil || previous == common.InvoiceStatusApproved {
		return err
	}
	svc.Notify(ctx, invoice.SellerAddress, common.NotificationInvoiceApproved, "Invoice Approved",
		fmt.Sprintf("Invoice #%d has been approved by the payer.", tokenID), &invoice.ID)
	return nil
}

func (svc *InvoiceFlowService) HandleInvoiceDisputed(ctx context.Context, e *chain.InvoiceDisputed) error {
	tokenID, err := tokenIDOf(e.TokenId)
	if err != nil {
		return err
	}
	svc.Logger.Infof("InvoiceDisputed token_id=%d", tokenID)

	invoice, _, err := svc.applyStatus(ctx, svc.DB, tokenID, common.InvoiceStatusDisputed, chain.EventInvoiceDisputed)
	if err != nil || invoice == nil {
		return err
	}

	open, err := svc.DB.NewSelect().Model((*models.Dispute)(nil)).
		Where("invoice_id = ?", invoice.ID).
		Where("is_resolved = ?", false).
		Exists(ctx)
	if err != nil {
		return err
	}
	if open {
		svc.Logger.Infof("Invoice %d already has an open dispute, skipping", invoice.ID)
		return nil
	}

	dispute := &models.Dispute{
		InvoiceID:  invoice.ID,
		TokenID:    tokenID,
		DisputedBy: chain.NormalizeAddress(e.Payer),
		CreatedAt:  svc.now(),
	}
	_, err = svc.DB.NewInsert().Model(dispute).Exec(ctx)
	if err != nil {
		return fmt.Errorf("opening dispute for invoice %d: %w", invoice.ID, err)
	}

	svc.Notify(ctx, invoice.SellerAddress, common.NotificationInvoiceDisputed, "Invoice Disputed",
		fmt.Sprintf("Invoice #%d has been disputed by the payer.", tokenID), &invoice.ID)
	return nil
}

func (svc *InvoiceFlowService) HandleDisputeResolved(ctx context.Context, e *chain.DisputeResolved) error {
	tokenID, err := tokenIDOf(e.TokenId)
	if err != nil {
		return err
	}
	svc.Logger.Infof("DisputeResolved token_id=%d approved=%t", tokenID, e.Approved)

	status := common.InvoiceStatusCancelled
	resolution := "Resolved in favour of payer"
	outcome := "invoice cancelled"
	if e.Approved {
		status = common.InvoiceStatusApproved
		resolution = "Resolved in favour of seller"
		outcome = "invoice approved"
	}

	invoice, previous, err := svc.applyStatus(ctx, svc.DB, tokenID, status, chain.EventDisputeResolved)
	if err != nil || invoice == nil {
		return err
	}

	openDispute := new(models.Dispute)
	err = svc.DB.NewSelect().Model(openDispute).
		Where("invoice_id = ?", invoice.ID).
		Where("is_resolved = ?", false).
		Order("created_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	closed := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		openDispute.IsResolved = true
		openDispute.Resolution = resolution
		openDispute.ResolvedAt = bun.NullTime{Time: svc.now()}
		_, err = svc.DB.NewUpdate().Model(openDispute).
			Column("is_resolved", "resolution", "resolved_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("resolving dispute %d: %w", openDispute.ID, err)
		}
		closed = true
	}
	if !closed && previous == status {
		return nil
	}

	message := fmt.Sprintf("Dispute for invoice #%d has been resolved -- %s.", tokenID, outcome)
	svc.Notify(ctx, invoice.SellerAddress, common.NotificationDisputeResolved, "Dispute Resolved", message, &invoice.ID)
	svc.Notify(ctx, invoice.PayerAddress, common.NotificationDisputeResolved, "Dispute Resolved", message, &invoice.ID)
	return nil
}

func (svc *InvoiceFlowService) HandleInvoicePaid(ctx context.Context, e *chain.InvoicePaid) error {
	tokenID, err := tokenIDOf(e.InvoiceId)
	if err != nil {
		return err
	}
	txHash := e.Raw.TxHash.Hex()
	payer := chain.NormalizeAddress(e.Payer)
	recipient := chain.NormalizeAddress(e.Recipient)
	svc.Logger.Infof("InvoicePaid token_id=%d tx=%s", tokenID, txHash)

	var (
		invoice  *models.Invoice
		recorded bool
	)
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		invoice, _, err = svc.applyStatus(ctx, tx, tokenID, common.InvoiceStatusPaid, chain.EventInvoicePaid)
		if err != nil || invoice == nil {
			return err
		}

		payment := &models.Payment{
			InvoiceID:        invoice.ID,
			TokenID:          tokenID,
			PayerAddress:     payer,
			RecipientAddress: recipient,
			Amount:           decimalFromBig(e.Amount),
			Fee:              decimalFromBig(e.ProtocolFee),
			TxHash:           txHash,
			PaidAt:           svc.now(),
			ChainID:          svc.ChainConfig.ChainID,
		}
		res, err := tx.NewInsert().Model(payment).On("CONFLICT (tx_hash) DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("recording payment %s: %w", txHash, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		recorded = affected > 0

		researchFee := decimalFromBig(e.ResearchFee)
		if researchFee.IsPositive() {
			donation := &models.ResearchDonation{
				DonorAddress: payer,
				Amount:       researchFee,
				TxHash:       txHash,
				Source:       common.DonationSourceEscrowFee,
				CreatedAt:    svc.now(),
			}
			_, err = tx.NewInsert().Model(donation).On("CONFLICT (tx_hash) DO NOTHING").Exec(ctx)
			if err != nil {
				return fmt.Errorf("recording research fee %s: %w", txHash, err)
			}
		}
		return nil
	})
	if err != nil || invoice == nil {
		return err
	}
	if !recorded {
		svc.Logger.Infof("Payment %s already recorded, skipping notifications", txHash)
		return nil
	}

	svc.Notify(ctx, recipient, common.NotificationInvoicePaid, "Invoice Paid",
		fmt.Sprintf("Invoice #%d has been paid by %s", tokenID, shortAddress(payer)), &invoice.ID)
	svc.Notify(ctx, payer, common.NotificationPaymentConfirmed, "Payment Confirmed",
		fmt.Sprintf("Your payment for invoice #%d has been confirmed.", tokenID), &invoice.ID)
	return nil
}

func (svc *InvoiceFlowService) HandleInvoiceListed(ctx context.Context, e *chain.InvoiceListed) error {
	tokenID, err := tokenIDOf(e.InvoiceId)
	if err != nil {
		return err
	}
	svc.Logger.Infof("InvoiceListed token_id=%d tx=%s", tokenID, e.Raw.TxHash.Hex())

	invoice, _, err := svc.applyStatus(ctx, svc.DB, tokenID, common.InvoiceStatusListed, chain.EventInvoiceListed)
	if err != nil || invoice == nil {
		return err
	}

	salePrice := decimalFromBig(e.SalePrice)
	listing := &models.Listing{
		InvoiceID:       invoice.ID,
		TokenID:         tokenID,
		SellerAddress:   chain.NormalizeAddress(e.Seller),
		SalePrice:       salePrice,
		OriginalAmount:  invoice.Amount,
		DiscountPercent: DiscountPercent(invoice.Amount, salePrice),
		PaymentToken:    chain.NormalizeAddress(e.PaymentToken),
		Expiry:          time.Unix(int64(e.Expiry), 0).UTC(),
		IsActive:        true,
		ListTxHash:      e.Raw.TxHash.Hex(),
		CreatedAt:       svc.now(),
	}
	err = svc.insertActiveListing(ctx, svc.DB, listing)
	if errors.Is(err, ErrConflict) {
		svc.Logger.Infof("Invoice %d already has an active listing, skipping", invoice.ID)
		return nil
	}
	if err != nil {
		return err
	}

	svc.Notify(ctx, invoice.PayerAddress, common.NotificationInvoiceListed, "Invoice Listed on Marketplace",
		fmt.Sprintf("Invoice #%d has been listed for sale at a %s%% discount.", tokenID, listing.DiscountPercent), &invoice.ID)
	return nil
}

func (svc *InvoiceFlowService) HandleInvoiceSold(ctx context.Context, e *chain.InvoiceSold) error {
	tokenID, err := tokenIDOf(e.InvoiceId)
	if err != nil {
		return err
	}
	buyer := chain.NormalizeAddress(e.Buyer)
	seller := chain.NormalizeAddress(e.Seller)
	svc.Logger.Infof("InvoiceSold token_id=%d tx=%s", tokenID, e.Raw.TxHash.Hex())

	invoice, previous, err := svc.recordSale(ctx, tokenID, buyer, e.Raw.TxHash.Hex())
	if err != nil || invoice == nil {
		return err
	}
	if previous == common.InvoiceStatusSold {
		return nil
	}

	svc.Notify(ctx, seller, common.NotificationInvoiceSold, "Invoice Sold",
		fmt.Sprintf("Your listed invoice #%d has been purchased by %s", tokenID, shortAddress(buyer)), &invoice.ID)
	svc.Notify(ctx, buyer, common.NotificationInvoicePurchased, "Invoice Purchased",
		fmt.Sprintf("You have purchased invoice #%d.", tokenID), &invoice.ID)
	svc.Notify(ctx, invoice.PayerAddress, common.NotificationInvoiceOwnershipChanged, "Invoice Ownership Changed",
		fmt.Sprintf("Invoice #%d has a new owner. Payments should now go to %s", tokenID, shortAddress(buyer)), &invoice.ID)
	return nil
}

func (svc *InvoiceFlowService) HandleListingCancelled(ctx context.Context, e *chain.ListingCancelled) error {
	tokenID, err := tokenIDOf(e.InvoiceId)
	if err != nil {
		return err
	}
	svc.Logger.Infof("ListingCancelled token_id=%d", tokenID)

	var (
		invoice  *models.Invoice
		previous string
	)
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		invoice, previous, err = svc.applyStatus(ctx, tx, tokenID, common.InvoiceStatusApproved, chain.EventListingCancelled)
		if err != nil || invoice == nil {
			return err
		}
		_, err = tx.NewUpdate().Model((*models.Listing)(nil)).
			Set("is_active = ?", false).
			Set("updated_at = ?", svc.now()).
			Where("invoice_id = ?", invoice.ID).
			Where("is_active = ?", true).
			Exec(ctx)
		return err
	})
	if err != nil || invoice == nil || previous == common.InvoiceStatusApproved {
		return err
	}

	svc.Notify(ctx, chain.NormalizeAddress(e.Seller), common.NotificationListingCancelled, "Listing Cancelled",
		fmt.Sprintf("Your listing for invoice #%d has been cancelled.", tokenID), &invoice.ID)
	return nil
}

// applyStatus moves the invoice minted as tokenID to status. A token that is
// not mirrored yet returns a nil invoice and no error.
func (svc *InvoiceFlowService) applyStatus(ctx context.Context, db bun.IDB, tokenID int64, status string, kind chain.EventKind) (invoice *models.Invoice, previous string, err error) {
	invoice, err = findInvoiceByToken(ctx, db, tokenID)
	if err != nil {
		return nil, "", err
	}
	if invoice == nil {
		svc.Logger.Warnf("%s for token %d which is not mirrored yet, skipping", kind, tokenID)
		return nil, "", nil
	}
	previous = invoice.Status
	if !common.CanTransition(previous, status) {
		svc.Logger.Warnf("%s moves invoice %d from %s to %s", kind, invoice.ID, previous, status)
	}
	invoice.Status = status
	_, err = db.NewUpdate().Model(invoice).Column("status", "updated_at").WherePK().Exec(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("updating invoice %d to %s: %w", invoice.ID, status, err)
	}
	return invoice, previous, nil
}

func findInvoiceByToken(ctx context.Context, db bun.IDB, tokenID int64) (*models.Invoice, error) {
	invoice := new(models.Invoice)
	err := db.NewSelect().Model(invoice).Where("token_id = ?", tokenID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// upsertChainInvoice writes the chain-derived columns of invoice keyed on
// token_id, leaving off-chain metadata (title, description, pdf) untouched.
func upsertChainInvoice(ctx context.Context, db bun.IDB, invoice *models.Invoice, extra ...string) error {
	columns := []string{
		"invoice_hash", "amount", "amount_display", "token_address", "seller_address",
		"payer_address", "current_owner_address", "status", "due_date", "chain_id", "updated_at",
	}
	query := db.NewInsert().Model(invoice).On("CONFLICT (token_id) DO UPDATE")
	for _, column := range append(columns, extra...) {
		query = query.Set(fmt.Sprintf("%[1]s = EXCLUDED.%[1]s", column))
	}
	_, err := query.Exec(ctx)
	return err
}

// DiscountPercent is (original - sale) / original * 100 with two decimals,
// "0" when the original amount is not positive.
func DiscountPercent(original, sale decimal.Decimal) string {
	if !original.IsPositive() {
		return "0"
	}
	return original.Sub(sale).Div(original).Mul(decimal.NewFromInt(100)).StringFixed(2)
}

func invoiceIDOf(invoice *models.Invoice) *int64 {
	if invoice == nil {
		return nil
	}
	id := invoice.ID
	return &id
}

// tokenIDOf rejects uint256 token ids that do not fit the int64 columns.
func tokenIDOf(v *big.Int) (int64, error) {
	if v == nil || v.Sign() < 0 || !v.IsInt64() {
		return 0, fmt.Errorf("%w: token id %s out of range", ErrInvalidArgument, v)
	}
	return v.Int64(), nil
}
