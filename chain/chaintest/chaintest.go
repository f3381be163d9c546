// Package chaintest provides an in-memory node for tests of code built on chain.Client.
package chaintest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/invoiceflow/invoiceflow/chain"
)

var (
	RegistryABI    = mustParse(chain.InvoiceNFTABI)
	EscrowABI      = mustParse(chain.InvoiceEscrowABI)
	MarketplaceABI = mustParse(chain.InvoiceMarketplaceABI)
)

func mustParse(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Node is a fake chain.Client. It records subscriptions and serves the
// registry's read calls from Invoices and Owners.
type Node struct {
	mu       sync.Mutex
	head     uint64
	subs     []*Subscription
	closed   int
	Invoices map[int64]chain.InvoiceRecord
	Owners   map[int64]common.Address

	BlockNumberErr error
	SubscribeErr   error
	CallErr        error
}

func NewNode() *Node {
	return &Node{
		head:     100,
		Invoices: map[int64]chain.InvoiceRecord{},
		Owners:   map[int64]common.Address{},
	}
}

func (n *Node) BlockNumber(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.BlockNumberErr != nil {
		return 0, n.BlockNumberErr
	}
	return n.head, nil
}

func (n *Node) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.SubscribeErr != nil {
		return nil, n.SubscribeErr
	}
	sub := &Subscription{Query: q, ch: ch, errc: make(chan error, 1), quit: make(chan struct{})}
	n.subs = append(n.subs, sub)
	return sub, nil
}

func (n *Node) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (n *Node) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if n.CallErr != nil {
		return nil, n.CallErr
	}
	if len(call.Data) < 4 {
		return nil, errors.New("missing selector")
	}
	method, err := RegistryABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	tokenID := args[0].(*big.Int).Int64()

	n.mu.Lock()
	defer n.mu.Unlock()
	switch method.Name {
	case "getInvoice":
		record, ok := n.Invoices[tokenID]
		if !ok {
			return nil, fmt.Errorf("execution reverted: invoice %d does not exist", tokenID)
		}
		return method.Outputs.Pack(record)
	case "ownerOf":
		owner, ok := n.Owners[tokenID]
		if !ok {
			return nil, fmt.Errorf("execution reverted: invoice %d does not exist", tokenID)
		}
		return method.Outputs.Pack(owner)
	}
	return nil, fmt.Errorf("unsupported method %s", method.Name)
}

func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed++
}

func (n *Node) Closed() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

func (n *Node) SetBlockNumberErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.BlockNumberErr = err
}

func (n *Node) Subscriptions() []*Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*Subscription(nil), n.subs...)
}

// Active returns the latest live subscription filtering on address.
func (n *Node) Active(address common.Address) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.subs) - 1; i >= 0; i-- {
		sub := n.subs[i]
		if sub.Unsubscribed() {
			continue
		}
		for _, a := range sub.Query.Addresses {
			if a == address {
				return sub
			}
		}
	}
	return nil
}

type Subscription struct {
	Query ethereum.FilterQuery

	ch   chan<- types.Log
	errc chan error
	quit chan struct{}
	once sync.Once
}

func (s *Subscription) Err() <-chan error { return s.errc }

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { close(s.quit) })
}

func (s *Subscription) Unsubscribed() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// Emit delivers a log unless the subscription was torn down.
func (s *Subscription) Emit(log types.Log) bool {
	select {
	case s.ch <- log:
		return true
	case <-s.quit:
		return false
	}
}

// Fail reports a transport error to the subscriber.
func (s *Subscription) Fail(err error) {
	select {
	case s.errc <- err:
	case <-s.quit:
	}
}

// Log builds a raw log for the named event. Arguments follow the ABI
// declaration order; indexed ones become topics.
func Log(contractABI abi.ABI, name string, address common.Address, txHash common.Hash, args ...interface{}) types.Log {
	ev, ok := contractABI.Events[name]
	if !ok {
		panic("unknown event " + name)
	}
	if len(args) != len(ev.Inputs) {
		panic(fmt.Sprintf("%s takes %d arguments, got %d", name, len(ev.Inputs), len(args)))
	}
	topics := []common.Hash{ev.ID}
	var data []interface{}
	for i, input := range ev.Inputs {
		if input.Indexed {
			topics = append(topics, topic(args[i]))
			continue
		}
		data = append(data, args[i])
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address: address,
		Topics:  topics,
		Data:    packed,
		TxHash:  txHash,
	}
}

func topic(v interface{}) common.Hash {
	switch value := v.(type) {
	case *big.Int:
		return common.BigToHash(value)
	case common.Address:
		return common.BytesToHash(value.Bytes())
	case [32]byte:
		return common.Hash(value)
	}
	panic(fmt.Sprintf("unsupported topic type %T", v))
}

// TxHash derives a deterministic transaction hash from a label.
func TxHash(label string) common.Hash {
	return common.BytesToHash(bytes.Repeat([]byte(label), 32/len(label)+1)[:32])
}
