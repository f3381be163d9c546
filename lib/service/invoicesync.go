package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/invoiceflow/invoiceflow/chain"
	"github.com/invoiceflow/invoiceflow/common"
	"github.com/invoiceflow/invoiceflow/db/models"
)

type SyncInvoiceRequest struct {
	TokenID int64 `json:"tokenId" validate:"min=0"`
	ChainID int64 `json:"chainId" validate:"required,min=1"`
}

// SyncFromChain reads token tokenID from the registry on chainID and
// overwrites the mirrored chain columns. It does not retry: configuration
// problems wrap ErrUnsupportedChain or ErrContractNotConfigured, failed
// calls wrap ErrChainCall.
func (svc *InvoiceFlowService) SyncFromChain(ctx context.Context, tokenID, chainID int64) (*models.Invoice, error) {
	rpcUrl, ok := svc.ChainConfig.RPCUrlFor(chainID)
	if !ok {
		return nil, fmt.Errorf("chain id %d: %w", chainID, ErrUnsupportedChain)
	}
	address, ok, err := chain.Address(svc.ChainConfig.InvoiceNFTAddress)
	if err != nil {
		return nil, fmt.Errorf("INVOICE_NFT_ADDRESS: %s: %w", err.Error(), ErrContractNotConfigured)
	}
	if !ok {
		return nil, fmt.Errorf("INVOICE_NFT_ADDRESS is empty: %w", ErrContractNotConfigured)
	}

	client, err := svc.Dial(ctx, rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("dialing chain %d: %s: %w", chainID, err.Error(), ErrChainCall)
	}
	defer client.Close()

	reader := chain.NewInvoiceReader(address, client)
	id := big.NewInt(tokenID)
	record, err := reader.GetInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getInvoice(%d): %s: %w", tokenID, err.Error(), ErrChainCall)
	}
	owner, err := reader.OwnerOf(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ownerOf(%d): %s: %w", tokenID, err.Error(), ErrChainCall)
	}

	amount := decimalFromBig(record.Amount)
	invoice := &models.Invoice{
		TokenID:             &tokenID,
		InvoiceHash:         hexutil.Encode(record.InvoiceHash[:]),
		Amount:              amount,
		AmountDisplay:       FormatUnits(amount),
		TokenAddress:        chain.NormalizeAddress(record.Token),
		SellerAddress:       chain.NormalizeAddress(record.Seller),
		PayerAddress:        chain.NormalizeAddress(record.Payer),
		CurrentOwnerAddress: chain.NormalizeAddress(owner),
		Status:              common.StatusFromChainCode(record.Status),
		DueDate:             time.Unix(int64(record.DueDate), 0).UTC(),
		ChainID:             chainID,
		CreatedAt:           time.Unix(int64(record.CreatedAt), 0).UTC(),
	}
	err = upsertChainInvoice(ctx, svc.DB, invoice)
	if err != nil {
		return nil, fmt.Errorf("upserting invoice %d: %w", tokenID, err)
	}
	svc.Logger.Infof("Synced invoice token_id=%d chain_id=%d status=%s", tokenID, chainID, invoice.Status)
	return svc.InvoiceDetailsByToken(ctx, tokenID)
}
