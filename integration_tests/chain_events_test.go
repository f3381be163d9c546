package integration_tests

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/invoiceflow/invoiceflow/chain/chaintest"
	"github.com/invoiceflow/invoiceflow/listener"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ChainEventsTestSuite drives the listener with a fake node and checks the
// mirror through the HTTP API.
type ChainEventsTestSuite struct {
	TestSuite
	listener *listener.Listener
	seller   *wallet
	payer    *wallet
	buyer    *wallet
}

func (suite *ChainEventsTestSuite) SetupSuite() {
	svc, node, err := InvoiceFlowTestServiceInit("chain_events_suite")
	if err != nil {
		log.Fatalf("Error initializing test service: %v", err)
	}
	suite.service = svc
	suite.node = node
	suite.listener, err = listener.New(svc.ChainConfig, svc.Dial, svc.EventHandlers(),
		listener.WithLogger(svc.Logger),
		listener.WithMetrics(listener.NewMetrics(prometheus.NewRegistry())),
		listener.WithBackOff(backoff.NewConstantBackOff(10*time.Millisecond)),
	)
	if err != nil {
		log.Fatalf("Error initializing listener: %v", err)
	}
	suite.echo = newTestEcho(svc, func() string { return suite.listener.State().String() })
	suite.seller = newWallet()
	suite.payer = newWallet()
	suite.buyer = newWallet()

	suite.listener.Start(context.Background())
	require.Eventually(suite.T(), func() bool {
		return suite.node.Active(registryAddress) != nil &&
			suite.node.Active(escrowAddress) != nil &&
			suite.node.Active(marketplaceAddress) != nil
	}, 5*time.Second, 10*time.Millisecond)
}

func (suite *ChainEventsTestSuite) TearDownSuite() {
	suite.listener.Stop()
	suite.service.DB.Close()
}

func (suite *ChainEventsTestSuite) emit(raw types.Log) {
	sub := suite.node.Active(raw.Address)
	require.NotNil(suite.T(), sub)
	require.True(suite.T(), sub.Emit(raw))
}

func (suite *ChainEventsTestSuite) invoiceByToken(tokenID int64) *invoiceResponse {
	list := struct {
		Data []invoiceResponse `json:"data"`
	}{}
	rec := suite.request(http.MethodGet, "/v2/invoices?seller="+suite.seller.Address, nil, "")
	if rec.Code != http.StatusOK {
		return nil
	}
	suite.decode(rec, &list)
	for i := range list.Data {
		if list.Data[i].TokenID != nil && *list.Data[i].TokenID == tokenID {
			return suite.getInvoice(list.Data[i].ID)
		}
	}
	return nil
}

func (suite *ChainEventsTestSuite) waitForStatus(tokenID int64, status string) *invoiceResponse {
	var invoice *invoiceResponse
	assert.Eventually(suite.T(), func() bool {
		invoice = suite.invoiceByToken(tokenID)
		return invoice != nil && invoice.Status == status
	}, 5*time.Second, 20*time.Millisecond, "token %d never reached %s", tokenID, status)
	return invoice
}

func (suite *ChainEventsTestSuite) mint(tokenID int64, payer *wallet) {
	suite.emit(chaintest.Log(chaintest.RegistryABI, "InvoiceMinted", registryAddress, chaintest.TxHash(fmt.Sprintf("mint%d", tokenID)),
		big.NewInt(tokenID), suite.seller.addr(), payer.addr(),
		big.NewInt(1000), tokenAddress, uint64(time.Now().Add(30*24*time.Hour).Unix()), [32]byte{byte(tokenID)}))
	suite.waitForStatus(tokenID, "draft")
}

func (suite *ChainEventsTestSuite) TestHealthReportsListener() {
	rec := suite.request(http.MethodGet, "/health", nil, "")
	assert.Equal(suite.T(), http.StatusOK, rec.Code)
	health := struct {
		Listener string `json:"listener"`
	}{}
	suite.decode(rec, &health)
	assert.Equal(suite.T(), listener.StateRunning.String(), health.Listener)
}

func (suite *ChainEventsTestSuite) TestInvoiceLifecycle() {
	tokenID := int64(1)
	payer := newWallet()
	suite.mint(tokenID, payer)

	suite.emit(chaintest.Log(chaintest.RegistryABI, "ApprovalRequested", registryAddress, chaintest.TxHash("request1"),
		big.NewInt(tokenID), payer.addr()))
	suite.waitForStatus(tokenID, "awaiting_approval")

	suite.emit(chaintest.Log(chaintest.RegistryABI, "InvoiceApproved", registryAddress, chaintest.TxHash("approve1"),
		big.NewInt(tokenID), payer.addr()))
	suite.waitForStatus(tokenID, "approved")

	paidLog := chaintest.Log(chaintest.EscrowABI, "InvoicePaid", escrowAddress, chaintest.TxHash("paid1"),
		big.NewInt(tokenID), payer.addr(), suite.seller.addr(), big.NewInt(1000), big.NewInt(10), big.NewInt(5))
	suite.emit(paidLog)
	paid := suite.waitForStatus(tokenID, "paid")
	if assert.NotNil(suite.T(), paid) {
		assert.Len(suite.T(), paid.Payments, 1)
	}

	// redelivery after a reconnect must not double count
	suite.emit(paidLog)
	pool := struct {
		TotalDonations int `json:"totalDonations"`
	}{}
	assert.Eventually(suite.T(), func() bool {
		rec := suite.request(http.MethodGet, "/v2/research/pool", nil, "")
		suite.decode(rec, &pool)
		return pool.TotalDonations == 1
	}, 5*time.Second, 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	again := suite.invoiceByToken(tokenID)
	if assert.NotNil(suite.T(), again) {
		assert.Len(suite.T(), again.Payments, 1)
	}

	// mint, approval request and payment each reach the payer
	payerToken := suite.login(payer)
	unread := struct {
		Unread int `json:"unread"`
	}{}
	rec := suite.request(http.MethodGet, "/v2/notifications/unread-count", nil, payerToken)
	suite.decode(rec, &unread)
	assert.Equal(suite.T(), 3, unread.Unread)
}

func (suite *ChainEventsTestSuite) TestMarketplaceSale() {
	tokenID := int64(2)
	suite.mint(tokenID, suite.payer)

	suite.emit(chaintest.Log(chaintest.MarketplaceABI, "InvoiceListed", marketplaceAddress, chaintest.TxHash("list2"),
		big.NewInt(tokenID), suite.seller.addr(), big.NewInt(950), tokenAddress, uint64(time.Now().Add(48*time.Hour).Unix())))
	listed := suite.waitForStatus(tokenID, "listed")
	if assert.NotNil(suite.T(), listed) {
		assert.Len(suite.T(), listed.Listings, 1)
	}

	suite.emit(chaintest.Log(chaintest.MarketplaceABI, "InvoiceSold", marketplaceAddress, chaintest.TxHash("sold2"),
		big.NewInt(tokenID), suite.seller.addr(), suite.buyer.addr(), big.NewInt(950), big.NewInt(5)))
	sold := suite.waitForStatus(tokenID, "sold")
	if assert.NotNil(suite.T(), sold) {
		assert.Equal(suite.T(), suite.buyer.Address, sold.CurrentOwnerAddress)
		if assert.Len(suite.T(), sold.Listings, 1) {
			assert.False(suite.T(), sold.Listings[0].IsActive)
		}
	}
}

func (suite *ChainEventsTestSuite) TestReconnectKeepsMirroring() {
	tokenID := int64(3)
	before := suite.node.Active(registryAddress)
	require.NotNil(suite.T(), before)
	before.Fail(fmt.Errorf("connection reset"))

	require.Eventually(suite.T(), func() bool {
		sub := suite.node.Active(registryAddress)
		return sub != nil && sub != before && suite.node.Active(escrowAddress) != nil &&
			suite.node.Active(marketplaceAddress) != nil
	}, 5*time.Second, 10*time.Millisecond)

	suite.mint(tokenID, suite.payer)
}

func TestChainEventsSuite(t *testing.T) {
	suite.Run(t, new(ChainEventsTestSuite))
}
