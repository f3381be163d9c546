package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/invoiceflow/invoiceflow/chain"
	"github.com/invoiceflow/invoiceflow/chain/chaintest"
	"github.com/invoiceflow/invoiceflow/db/migrations"
	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/migrate"
	"github.com/ziflex/lecho/v3"
)

var (
	registryAddress = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	sellerAddress   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	payerAddress    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	buyerAddress    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	tokenAddress    = common.HexToAddress("0x4444444444444444444444444444444444444444")

	seller = chain.NormalizeAddress(sellerAddress)
	payer  = chain.NormalizeAddress(payerAddress)
	buyer  = chain.NormalizeAddress(buyerAddress)

	testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

// newTestService runs the migrations against a private in-memory sqlite
// database and wires a fake chain node behind Dial.
func newTestService(t *testing.T) (*InvoiceFlowService, *chaintest.Node) {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	node := chaintest.NewNode()
	svc := &InvoiceFlowService{
		Config: &Config{
			JWTSecret:       []byte("supersecret"),
			JWTExpiry:       3600,
			AuthMessage:     "Sign in to InvoiceFlow",
			AuthMaxSkew:     300,
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		ChainConfig: &chain.Config{
			RPCUrl:            "ws://node.test",
			ChainID:           97,
			InvoiceNFTAddress: registryAddress.Hex(),
		},
		DB:     db,
		Logger: lecho.New(io.Discard),
		Dial: func(ctx context.Context, rawurl string) (chain.Client, error) {
			return node, nil
		},
		NotificationPubSub: NewPubsub(),
		Now:                func() time.Time { return testNow },
	}
	return svc, node
}

func txLog(label string) types.Log {
	return types.Log{Address: registryAddress, TxHash: chaintest.TxHash(label), BlockNumber: 100}
}

func mintEvent(tokenID int64, amount int64, dueDate time.Time) *chain.InvoiceMinted {
	return &chain.InvoiceMinted{
		TokenId:     big.NewInt(tokenID),
		Seller:      sellerAddress,
		Payer:       payerAddress,
		Amount:      big.NewInt(amount),
		Token:       tokenAddress,
		DueDate:     uint64(dueDate.Unix()),
		InvoiceHash: [32]byte{byte(tokenID)},
		Raw:         txLog(fmt.Sprintf("mint%d", tokenID)),
	}
}

// mint mirrors a fresh invoice and returns it.
func mint(t *testing.T, svc *InvoiceFlowService, tokenID int64, amount int64) *models.Invoice {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.HandleInvoiceMinted(ctx, mintEvent(tokenID, amount, testNow.Add(45*24*time.Hour))))
	invoice, err := findInvoiceByToken(ctx, svc.DB, tokenID)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	return invoice
}

func setStatus(t *testing.T, svc *InvoiceFlowService, invoice *models.Invoice, status string) {
	t.Helper()
	invoice.Status = status
	_, err := svc.DB.NewUpdate().Model(invoice).Column("status").WherePK().Exec(context.Background())
	require.NoError(t, err)
}

func notificationsOfType(t *testing.T, svc *InvoiceFlowService, notificationType string) []models.Notification {
	t.Helper()
	notifications := []models.Notification{}
	err := svc.DB.NewSelect().Model(&notifications).
		Where("type = ?", notificationType).
		Order("id ASC").
		Scan(context.Background())
	require.NoError(t, err)
	return notifications
}

func countRows(t *testing.T, svc *InvoiceFlowService, model interface{}) int {
	t.Helper()
	count, err := svc.DB.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return count
}
