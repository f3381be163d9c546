package chain_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/invoiceflow/invoiceflow/chain"
	"github.com/invoiceflow/invoiceflow/chain/chaintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	registry = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	seller   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	payer    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	buyer    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	token    = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func TestDecodeInvoiceMinted(t *testing.T) {
	amount, _ := new(big.Int).SetString("1000000000000000000000", 10)
	hash := [32]byte{1, 2, 3}
	log := chaintest.Log(chaintest.RegistryABI, "InvoiceMinted", registry, chaintest.TxHash("mint"),
		big.NewInt(7), seller, payer, amount, token, uint64(1712000000), hash)

	event, err := chain.NewDecoder().Decode(log)
	require.NoError(t, err)
	assert.Equal(t, chain.EventInvoiceMinted, event.Kind())

	minted := event.(*chain.InvoiceMinted)
	assert.Equal(t, int64(7), minted.TokenId.Int64())
	assert.Equal(t, seller, minted.Seller)
	assert.Equal(t, payer, minted.Payer)
	assert.Equal(t, 0, amount.Cmp(minted.Amount))
	assert.Equal(t, token, minted.Token)
	assert.Equal(t, uint64(1712000000), minted.DueDate)
	assert.Equal(t, hash, minted.InvoiceHash)
	assert.Equal(t, chaintest.TxHash("mint"), minted.Log().TxHash)
}

func TestDecodeDisputeResolved(t *testing.T) {
	log := chaintest.Log(chaintest.RegistryABI, "DisputeResolved", registry, chaintest.TxHash("resolve"), big.NewInt(3), true)
	event, err := chain.NewDecoder().Decode(log)
	require.NoError(t, err)
	resolved := event.(*chain.DisputeResolved)
	assert.Equal(t, int64(3), resolved.TokenId.Int64())
	assert.True(t, resolved.Approved)
}

func TestDecodeTopicOnlyEvent(t *testing.T) {
	log := chaintest.Log(chaintest.RegistryABI, "ApprovalRequested", registry, chaintest.TxHash("approval"), big.NewInt(9), payer)
	event, err := chain.NewDecoder().Decode(log)
	require.NoError(t, err)
	requested := event.(*chain.ApprovalRequested)
	assert.Equal(t, int64(9), requested.TokenId.Int64())
	assert.Equal(t, payer, requested.Payer)
}

func TestDecodeEscrowAndMarketplace(t *testing.T) {
	decoder := chain.NewDecoder()

	paid, err := decoder.Decode(chaintest.Log(chaintest.EscrowABI, "InvoicePaid", registry, chaintest.TxHash("paid"),
		big.NewInt(4), payer, seller, big.NewInt(1000), big.NewInt(10), big.NewInt(5)))
	require.NoError(t, err)
	assert.Equal(t, chain.EventInvoicePaid, paid.Kind())
	assert.Equal(t, int64(5), paid.(*chain.InvoicePaid).ResearchFee.Int64())
	assert.Equal(t, seller, paid.(*chain.InvoicePaid).Recipient)

	sold, err := decoder.Decode(chaintest.Log(chaintest.MarketplaceABI, "InvoiceSold", registry, chaintest.TxHash("sold"),
		big.NewInt(4), seller, buyer, big.NewInt(950), big.NewInt(2)))
	require.NoError(t, err)
	assert.Equal(t, buyer, sold.(*chain.InvoiceSold).Buyer)
	assert.Equal(t, int64(950), sold.(*chain.InvoiceSold).SalePrice.Int64())

	listed, err := decoder.Decode(chaintest.Log(chaintest.MarketplaceABI, "InvoiceListed", registry, chaintest.TxHash("listed"),
		big.NewInt(4), seller, big.NewInt(950), token, uint64(1713000000)))
	require.NoError(t, err)
	assert.Equal(t, token, listed.(*chain.InvoiceListed).PaymentToken)
	assert.Equal(t, uint64(1713000000), listed.(*chain.InvoiceListed).Expiry)
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := chain.NewDecoder().Decode(types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}})
	assert.True(t, errors.Is(err, chain.ErrUnknownEvent))

	_, err = chain.NewDecoder().Decode(types.Log{})
	assert.True(t, errors.Is(err, chain.ErrUnknownEvent))
}

func TestTopicsPerGroup(t *testing.T) {
	assert.Len(t, chain.Topics(chain.GroupRegistry), 6)
	assert.Len(t, chain.Topics(chain.GroupEscrow), 1)
	assert.Len(t, chain.Topics(chain.GroupMarketplace), 3)
	assert.Equal(t, chaintest.EscrowABI.Events["InvoicePaid"].ID, chain.Topics(chain.GroupEscrow)[0])
}
