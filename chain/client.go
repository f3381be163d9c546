package chain

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is the subset of an EVM node connection the listener and the sync path need.
type Client interface {
	BlockNumber(ctx context.Context) (uint64, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// DialFunc opens a connection to a node.
type DialFunc func(ctx context.Context, rawurl string) (Client, error)

// NewDialer returns a DialFunc that uses native subscriptions over websocket
// and ipc, and log polling over http.
func NewDialer(pollInterval time.Duration) DialFunc {
	return func(ctx context.Context, rawurl string) (Client, error) {
		rpcClient, err := rpc.DialContext(ctx, rawurl)
		if err != nil {
			return nil, err
		}
		client := ethclient.NewClient(rpcClient)
		if strings.HasPrefix(rawurl, "http://") || strings.HasPrefix(rawurl, "https://") {
			return &pollingClient{Client: client, interval: pollInterval}, nil
		}
		return client, nil
	}
}

// pollingClient emulates eth_subscribe with eth_getLogs for endpoints without push support.
type pollingClient struct {
	*ethclient.Client
	interval time.Duration
}

func (c *pollingClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	head, err := c.Client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	return newLogPoller(c.Client, q, head+1, c.interval, ch), nil
}
