package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/invoiceflow/invoiceflow/db/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

// bufPool lets consecutive publishes reuse the same encoding buffer.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const (
	contentTypeJSON = "application/json"

	SyncRoutingKey = "invoice.sync"
)

// SyncRequest asks the server to re-read one invoice from the chain.
type SyncRequest struct {
	TokenID int64 `json:"token_id"`
	ChainID int64 `json:"chain_id"`
}

type (
	SyncRequestHandler           = func(ctx context.Context, req SyncRequest) error
	SubscribeToNotificationsFunc = func() (notifications chan models.Notification, unsubscribe func(), err error)
	EncodeNotificationFunc       = func(ctx context.Context, w io.Writer, notification models.Notification) error
)

type Client interface {
	SubscribeToSyncRequests(context.Context, SyncRequestHandler) error
	StartPublishNotifications(context.Context, SubscribeToNotificationsFunc, EncodeNotificationFunc) error
	// Close will close all connections to rabbitmq
	Close() error
}

type DefaultClient struct {
	amqpClient AMQPClient
	logger     *lecho.Logger

	notificationExchange  string
	syncExchange          string
	syncConsumerQueueName string
}

type ClientOption = func(client *DefaultClient)

func WithNotificationExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.notificationExchange = exchange
	}
}

func WithSyncExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.syncExchange = exchange
	}
}

func WithSyncConsumerQueueName(name string) ClientOption {
	return func(client *DefaultClient) {
		client.syncConsumerQueueName = name
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

// Dial connects to rabbitmq and returns a client that survives broker restarts.
func Dial(uri string, logger *lecho.Logger, options ...ClientOption) (Client, error) {
	amqpClient, err := DialAMQP(uri, logger)
	if err != nil {
		return nil, err
	}
	return NewClient(amqpClient, append([]ClientOption{WithLogger(logger)}, options...)...)
}

func NewClient(amqpClient AMQPClient, options ...ClientOption) (Client, error) {
	client := &DefaultClient{
		amqpClient: amqpClient,
		logger:     lecho.New(io.Discard),

		notificationExchange:  "invoiceflow_notifications",
		syncExchange:          "invoiceflow_sync",
		syncConsumerQueueName: "invoiceflow_sync_consumer",
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

func (client *DefaultClient) Close() error { return client.amqpClient.Close() }

func (client *DefaultClient) SubscribeToSyncRequests(ctx context.Context, handler SyncRequestHandler) error {
	deliveries, err := client.amqpClient.Listen(ctx, client.syncExchange, SyncRoutingKey, client.syncConsumerQueueName)
	if err != nil {
		return err
	}

	client.logger.Info("Starting rabbitmq sync request consumer")
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("disconnected from rabbitmq")
			}

			var req SyncRequest
			err := json.Unmarshal(delivery.Body, &req)
			if err != nil {
				captureErr(client.logger, err)
				// malformed requests are dropped, never requeued
				if err := delivery.Nack(false, false); err != nil {
					captureErr(client.logger, err)
				}
				continue
			}

			err = handler(ctx, req)
			if err != nil {
				captureErr(client.logger, fmt.Errorf("sync request for token %d on chain %d: %w", req.TokenID, req.ChainID, err))
				if err := delivery.Nack(false, false); err != nil {
					captureErr(client.logger, err)
				}
				continue
			}

			if err := delivery.Ack(false); err != nil {
				captureErr(client.logger, err)
			}
		}
	}
}

func (client *DefaultClient) StartPublishNotifications(ctx context.Context, subscribeFunc SubscribeToNotificationsFunc, payloadFunc EncodeNotificationFunc) error {
	err := client.amqpClient.ExchangeDeclare(
		client.notificationExchange,
		// topic exchanges let consumers bind on notification.<type>
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	notifications, unsubscribe, err := subscribeFunc()
	if err != nil {
		return err
	}
	defer unsubscribe()

	client.logger.Info("Starting rabbitmq notification publisher")
	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case notification, ok := <-notifications:
			if !ok {
				return nil
			}
			err = client.publishNotification(ctx, notification, payloadFunc)
			if err != nil {
				captureErr(client.logger, err)
			}
		}
	}
}

func (client *DefaultClient) publishNotification(ctx context.Context, notification models.Notification, payloadFunc EncodeNotificationFunc) error {
	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	err := payloadFunc(ctx, payload, notification)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("notification.%s", notification.Type)
	err = client.amqpClient.PublishWithContext(ctx,
		client.notificationExchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		return err
	}

	client.logger.Debugf("Published notification %d to rabbitmq with key %s", notification.ID, key)
	return nil
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
