// Package listener mirrors contract events into the store. It owns one chain
// session at a time: dial, liveness check, one log subscription per contract
// group. Any transport error tears the whole session down and a new one is
// started after the backoff delay, until Stop.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/getsentry/sentry-go"
	"github.com/invoiceflow/invoiceflow/chain"
	"github.com/ziflex/lecho/v3"
)

const DefaultReconnectDelay = 5 * time.Second

type HandlerFunc func(ctx context.Context, event chain.Event) error

// Handlers is the dispatch table, keyed by event kind.
type Handlers map[chain.EventKind]HandlerFunc

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateReconnectPending
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateReconnectPending:
		return "reconnect_pending"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// groups are subscribed in this order
var groups = []chain.Group{chain.GroupRegistry, chain.GroupEscrow, chain.GroupMarketplace}

type Listener struct {
	dial      chain.DialFunc
	rpcUrl    string
	contracts map[chain.Group]common.Address
	handlers  Handlers
	decoder   *chain.Decoder
	backoff   backoff.BackOff
	logger    *lecho.Logger
	metrics   *Metrics
	logBuffer int

	// opMu serializes Start and Stop
	opMu   sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	stateMu sync.RWMutex
	state   State
}

type Option func(l *Listener)

func WithBackOff(b backoff.BackOff) Option {
	return func(l *Listener) {
		l.backoff = b
	}
}

func WithLogger(logger *lecho.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(l *Listener) {
		l.metrics = metrics
	}
}

func WithRPCUrl(rpcUrl string) Option {
	return func(l *Listener) {
		l.rpcUrl = rpcUrl
	}
}

// New resolves the configured contract addresses. Empty addresses are
// allowed and their group is skipped; malformed ones are an error.
func New(cfg *chain.Config, dial chain.DialFunc, handlers Handlers, options ...Option) (*Listener, error) {
	l := &Listener{
		dial:      dial,
		rpcUrl:    cfg.RPCUrl,
		contracts: map[chain.Group]common.Address{},
		handlers:  handlers,
		decoder:   chain.NewDecoder(),
		logBuffer: cfg.LogBuffer,
	}

	configured := map[chain.Group]string{
		chain.GroupRegistry:    cfg.InvoiceNFTAddress,
		chain.GroupEscrow:      cfg.InvoiceEscrowAddress,
		chain.GroupMarketplace: cfg.InvoiceMarketplaceAddress,
	}
	for group, value := range configured {
		address, ok, err := chain.Address(value)
		if err != nil {
			return nil, fmt.Errorf("%s contract: %w", group, err)
		}
		if ok {
			l.contracts[group] = address
		}
	}

	for _, opt := range options {
		opt(l)
	}
	if l.backoff == nil {
		delay := DefaultReconnectDelay
		if cfg.ReconnectDelay > 0 {
			delay = time.Duration(cfg.ReconnectDelay) * time.Second
		}
		l.backoff = backoff.NewConstantBackOff(delay)
	}
	if l.logger == nil {
		l.logger = lecho.New(nopWriter{})
	}
	if l.metrics == nil {
		l.metrics = NewMetrics(nil)
	}
	if l.logBuffer <= 0 {
		l.logBuffer = 256
	}
	return l, nil
}

func (l *Listener) State() State {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.state
}

func (l *Listener) setState(s State) {
	l.stateMu.Lock()
	l.state = s
	l.stateMu.Unlock()
	l.metrics.State.Set(float64(s))
}

// Start launches the session loop and returns immediately. It is a no-op
// while the listener is already running, but starts afresh once a cancelled
// parent context has ended the previous run. Failures while starting are
// retried in the background, never returned. The loop also ends when ctx
// is cancelled.
func (l *Listener) Start(ctx context.Context) {
	l.opMu.Lock()
	defer l.opMu.Unlock()
	if l.cancel != nil {
		if l.State() != StateStopped {
			return
		}
		// the parent context ended the previous run, which reports
		// Stopped just before closing done
		<-l.done
		l.cancel()
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.setState(StateStarting)
	go l.run(runCtx, l.done)
}

// Stop cancels a pending reconnect, closes the connection and waits for
// the consumers to exit. Safe to call when never started.
func (l *Listener) Stop() {
	l.opMu.Lock()
	defer l.opMu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil
}

func (l *Listener) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer l.setState(StateStopped)

	l.backoff.Reset()
	for {
		l.setState(StateStarting)
		err := l.session(ctx)
		if ctx.Err() != nil {
			l.logger.Info("Chain listener stopped")
			return
		}

		l.metrics.Reconnects.Inc()
		l.logger.Errorf("Chain session ended: %v", err)
		sentry.CaptureException(fmt.Errorf("chain listener: %w", err))

		delay := l.backoff.NextBackOff()
		if delay == backoff.Stop {
			delay = DefaultReconnectDelay
		}
		l.setState(StateReconnectPending)
		l.logger.Infof("Reconnecting to chain in %s", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.logger.Info("Chain listener stopped")
			return
		case <-timer.C:
		}
	}
}

// session runs one connection until a transport error or cancellation.
func (l *Listener) session(ctx context.Context) error {
	client, err := l.dial(ctx, l.rpcUrl)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", l.rpcUrl, err)
	}
	defer client.Close()

	head, err := client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("liveness check: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		subs []ethereum.Subscription
	)
	errc := make(chan error, len(groups))
	teardown := func() {
		cancel()
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		wg.Wait()
	}

	for _, group := range groups {
		address, ok := l.contracts[group]
		if !ok {
			l.logger.Warnf("No %s contract address configured, skipping its events", group)
			continue
		}
		logs := make(chan types.Log, l.logBuffer)
		query := ethereum.FilterQuery{
			Addresses: []common.Address{address},
			Topics:    [][]common.Hash{chain.Topics(group)},
		}
		sub, err := client.SubscribeFilterLogs(sessionCtx, query, logs)
		if err != nil {
			teardown()
			return fmt.Errorf("subscribing to %s events: %w", group, err)
		}
		subs = append(subs, sub)
		wg.Add(1)
		go l.consume(sessionCtx, &wg, group, sub, logs, errc)
	}

	l.setState(StateRunning)
	l.logger.Infof("Listening for contract events from block %d (%d subscriptions)", head, len(subs))

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-errc:
	}
	teardown()
	return err
}

// consume handles one group's logs in delivery order.
func (l *Listener) consume(ctx context.Context, wg *sync.WaitGroup, group chain.Group, sub ethereum.Subscription, logs <-chan types.Log, errc chan<- error) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			errc <- fmt.Errorf("%s subscription: %w", group, err)
			return
		case log := <-logs:
			if ctx.Err() != nil {
				return
			}
			l.dispatch(ctx, log)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, log types.Log) {
	event, err := l.decoder.Decode(log)
	if errors.Is(err, chain.ErrUnknownEvent) {
		l.logger.Debugf("Ignoring log in tx %s: %v", log.TxHash.Hex(), err)
		return
	}
	if err != nil {
		l.metrics.Failures.WithLabelValues("undecodable").Inc()
		l.logger.Errorf("Failed to decode log in tx %s: %v", log.TxHash.Hex(), err)
		sentry.CaptureException(err)
		return
	}

	kind := event.Kind()
	handler, ok := l.handlers[kind]
	if !ok {
		l.logger.Debugf("No handler for %s", kind)
		return
	}

	l.metrics.Events.WithLabelValues(string(kind)).Inc()
	// in-flight handlers finish even if the session is torn down meanwhile
	err = safeCall(context.WithoutCancel(ctx), handler, event)
	if err == nil {
		return
	}
	l.metrics.Failures.WithLabelValues(string(kind)).Inc()
	l.logger.Errorf("Handler for %s failed: tx=%s block=%d log_index=%d error=%v", kind, log.TxHash.Hex(), log.BlockNumber, log.Index, err)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("event", string(kind))
		scope.SetExtra("tx_hash", log.TxHash.Hex())
		scope.SetExtra("block_number", log.BlockNumber)
		sentry.CaptureException(err)
	})
}

func safeCall(ctx context.Context, handler HandlerFunc, event chain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
