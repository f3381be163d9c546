package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

type logFilterer interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// newLogPoller delivers logs matching q from block `from` onwards. The first
// RPC error ends the subscription and is reported on Err().
func newLogPoller(client logFilterer, q ethereum.FilterQuery, from uint64, interval time.Duration, ch chan<- types.Log) ethereum.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-quit:
				cancel()
			case <-ctx.Done():
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return nil
			case <-ticker.C:
			}
			head, err := client.BlockNumber(ctx)
			if err != nil {
				return err
			}
			if head < from {
				continue
			}
			window := q
			window.FromBlock = new(big.Int).SetUint64(from)
			window.ToBlock = new(big.Int).SetUint64(head)
			logs, err := client.FilterLogs(ctx, window)
			if err != nil {
				return err
			}
			for _, log := range logs {
				select {
				case ch <- log:
				case <-quit:
					return nil
				}
			}
			from = head + 1
		}
	})
}
