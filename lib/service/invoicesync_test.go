package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow/chain"
	"github.com/invoiceflow/invoiceflow/common"
	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainRecord(status uint8) chain.InvoiceRecord {
	amount, _ := new(big.Int).SetString("2500000000000000000000", 10)
	return chain.InvoiceRecord{
		InvoiceHash: [32]byte{0xaa},
		Amount:      amount,
		Token:       tokenAddress,
		Payer:       payerAddress,
		Seller:      sellerAddress,
		DueDate:     uint64(testNow.Add(30 * 24 * time.Hour).Unix()),
		Status:      status,
		CreatedAt:   uint64(testNow.Add(-time.Hour).Unix()),
	}
}

func TestSyncFromChainInsertsMissingInvoice(t *testing.T) {
	svc, node := newTestService(t)
	node.Invoices[8] = chainRecord(2)
	node.Owners[8] = buyerAddress

	invoice, err := svc.SyncFromChain(context.Background(), 8, 97)
	require.NoError(t, err)
	assert.Equal(t, int64(8), *invoice.TokenID)
	assert.Equal(t, common.InvoiceStatusApproved, invoice.Status)
	assert.Equal(t, buyer, invoice.CurrentOwnerAddress)
	assert.Equal(t, seller, invoice.SellerAddress)
	assert.Equal(t, "2500", invoice.AmountDisplay)
	assert.True(t, decimal.RequireFromString("2500000000000000000000").Equal(invoice.Amount))
	assert.Equal(t, 1, node.Closed())
}

func TestSyncFromChainOverwritesChainColumns(t *testing.T) {
	svc, node := newTestService(t)
	ctx := context.Background()
	stale := mint(t, svc, 9, 1000)
	stale.Title = "Design work"
	_, err := svc.DB.NewUpdate().Model(stale).Column("title").WherePK().Exec(ctx)
	require.NoError(t, err)

	node.Invoices[9] = chainRecord(6)
	node.Owners[9] = sellerAddress

	invoice, err := svc.SyncFromChain(ctx, 9, 97)
	require.NoError(t, err)
	assert.Equal(t, stale.ID, invoice.ID)
	assert.Equal(t, common.InvoiceStatusPaid, invoice.Status)
	assert.Equal(t, "Design work", invoice.Title)
	assert.Equal(t, 1, countRows(t, svc, (*models.Invoice)(nil)))
}

func TestSyncFromChainErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown chain", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.SyncFromChain(ctx, 1, 1)
		assert.ErrorIs(t, err, ErrUnsupportedChain)
	})

	t.Run("registry not configured", func(t *testing.T) {
		svc, _ := newTestService(t)
		svc.ChainConfig.InvoiceNFTAddress = ""
		_, err := svc.SyncFromChain(ctx, 1, 97)
		assert.ErrorIs(t, err, ErrContractNotConfigured)
	})

	t.Run("dial failure", func(t *testing.T) {
		svc, _ := newTestService(t)
		svc.Dial = func(ctx context.Context, rawurl string) (chain.Client, error) {
			return nil, errors.New("connection refused")
		}
		_, err := svc.SyncFromChain(ctx, 1, 97)
		assert.ErrorIs(t, err, ErrChainCall)
	})

	t.Run("token does not exist", func(t *testing.T) {
		svc, node := newTestService(t)
		_, err := svc.SyncFromChain(ctx, 404, 97)
		assert.ErrorIs(t, err, ErrChainCall)
		assert.Equal(t, 1, node.Closed())
		assert.Equal(t, 0, countRows(t, svc, (*models.Invoice)(nil)))
	})
}
