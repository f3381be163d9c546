package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

const (
	heartbeat   = 10 * time.Second
	dialTimeout = 3 * time.Second

	// requeued sync requests are redelivered at most this many times
	deliveryLimit = 10
)

type connEvent int

const (
	connRestored connEvent = iota
	connLost
)

type AMQPClient interface {
	Listen(ctx context.Context, exchange string, routingKey string, queueName string, options ...AMQPListenOptions) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Close() error
}

// session is one live broker connection. Publishing and consuming use
// separate channels so flow control on publishes never stalls consumers.
type session struct {
	conn    *amqp.Connection
	consume *amqp.Channel
	publish *amqp.Channel
	closed  chan *amqp.Error
}

func openSession(uri string) (*session, error) {
	conn, err := amqp.DialConfig(uri, amqp.Config{
		Heartbeat: heartbeat,
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}
	consume, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening consume channel: %w", err)
	}
	publish, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening publish channel: %w", err)
	}
	s := &session{conn: conn, consume: consume, publish: publish, closed: make(chan *amqp.Error, 1)}
	conn.NotifyClose(s.closed)
	return s, nil
}

type defaultAMQPClient struct {
	uri    string
	logger *lecho.Logger
	retry  func() backoff.BackOff

	mu      sync.RWMutex
	current *session
	// ready is closed while a session is usable and replaced during a redial
	ready chan struct{}

	watchersMu sync.Mutex
	watchers   []chan connEvent
}

func DialAMQP(uri string, logger *lecho.Logger) (AMQPClient, error) {
	s, err := openSession(uri)
	if err != nil {
		return nil, err
	}
	ready := make(chan struct{})
	close(ready)
	client := &defaultAMQPClient{
		uri:     uri,
		logger:  logger,
		retry:   redialBackOff,
		current: s,
		ready:   ready,
	}
	go client.supervise()
	return client, nil
}

func redialBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = time.Minute
	return b
}

func (c *defaultAMQPClient) session() *session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// supervise redials whenever the broker drops the connection and tells
// every Listen loop about the outcome.
func (c *defaultAMQPClient) supervise() {
	for {
		amqpErr, ok := <-c.session().closed
		if !ok || amqpErr == nil {
			return
		}
		c.logger.Errorf("amqp: connection lost: %v", amqpErr)

		pending := make(chan struct{})
		c.mu.Lock()
		c.ready = pending
		c.mu.Unlock()

		var next *session
		err := backoff.RetryNotify(func() (err error) {
			next, err = openSession(c.uri)
			return err
		}, c.retry(), func(err error, wait time.Duration) {
			c.logger.Warnf("amqp: redial failed, next attempt in %s: %v", wait, err)
		})
		if err != nil {
			c.logger.Errorf("amqp: giving up on the broker: %v", err)
			c.notify(connLost)
			return
		}

		c.mu.Lock()
		c.current = next
		c.mu.Unlock()
		close(pending)
		c.logger.Info("amqp: reconnected")
		c.notify(connRestored)
	}
}

func (c *defaultAMQPClient) watch() chan connEvent {
	ch := make(chan connEvent, 2)
	c.watchersMu.Lock()
	c.watchers = append(c.watchers, ch)
	c.watchersMu.Unlock()
	return ch
}

func (c *defaultAMQPClient) notify(ev connEvent) {
	c.watchersMu.Lock()
	defer c.watchersMu.Unlock()
	for _, w := range c.watchers {
		select {
		case w <- ev:
		default:
			c.logger.Warnf("amqp: a consumer missed connection event %d", ev)
		}
	}
}

func (c *defaultAMQPClient) Close() error {
	return c.session().conn.Close()
}

func (c *defaultAMQPClient) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	ch, err := c.session().conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

type ListenOptions struct {
	Durable    bool
	AutoDelete bool
	Internal   bool
	Wait       bool
	Exclusive  bool
	AutoAck    bool
}

type AMQPListenOptions = func(opts ListenOptions) ListenOptions

func WithDurable(durable bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.Durable = durable
		return opts
	}
}

func WithExclusive(exclusive bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.Exclusive = exclusive
		return opts
	}
}

func WithAutoAck(autoAck bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.AutoAck = autoAck
		return opts
	}
}

// Listen consumes routingKey from exchange through queueName. The returned
// channel outlives reconnects and is closed once the client gives up.
func (c *defaultAMQPClient) Listen(ctx context.Context, exchange string, routingKey string, queueName string, options ...AMQPListenOptions) (<-chan amqp.Delivery, error) {
	opts := ListenOptions{Durable: true}
	for _, opt := range options {
		opts = opt(opts)
	}
	bind := func() (<-chan amqp.Delivery, error) {
		return bindQueue(c.session().consume, exchange, routingKey, queueName, opts)
	}

	deliveries, err := bind()
	if err != nil {
		return nil, err
	}
	out := make(chan amqp.Delivery)
	events := c.watch()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if ev == connLost {
					return
				}
				deliveries, err = bind()
				if err != nil {
					c.logger.Errorf("amqp: rebinding %s: %v", queueName, err)
					return
				}
				c.logger.Infof("amqp: consuming %s again", routingKey)
			case delivery, ok := <-deliveries:
				if !ok {
					// parked until the supervisor reports back
					deliveries = nil
					continue
				}
				select {
				case out <- delivery:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func bindQueue(ch *amqp.Channel, exchange, routingKey, queueName string, opts ListenOptions) (<-chan amqp.Delivery, error) {
	err := ch.ExchangeDeclare(exchange, "topic", opts.Durable, opts.AutoDelete, opts.Internal, opts.Wait, nil)
	if err != nil {
		return nil, err
	}
	queue, err := ch.QueueDeclare(queueName, opts.Durable, opts.AutoDelete, opts.Exclusive, opts.Wait,
		amqp.Table{"x-delivery-limit": deliveryLimit})
	if err != nil {
		return nil, err
	}
	err = ch.QueueBind(queue.Name, routingKey, exchange, opts.Wait, nil)
	if err != nil {
		return nil, err
	}
	return ch.Consume(queue.Name, "", opts.AutoAck, opts.Exclusive, false, opts.Wait, nil)
}

// PublishWithContext waits for a pending redial before publishing.
func (c *defaultAMQPClient) PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()
	select {
	case <-ready:
	case <-ctx.Done():
		return fmt.Errorf("amqp: publish while reconnecting: %w", ctx.Err())
	}
	return c.session().publish.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}
