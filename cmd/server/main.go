package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/getsentry/sentry-go"
	"github.com/invoiceflow/invoiceflow/chain"
	"github.com/invoiceflow/invoiceflow/db"
	"github.com/invoiceflow/invoiceflow/db/migrations"
	"github.com/invoiceflow/invoiceflow/lib/logging"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/invoiceflow/invoiceflow/lib/tokens"
	"github.com/invoiceflow/invoiceflow/lib/transport"
	"github.com/invoiceflow/invoiceflow/listener"
	"github.com/invoiceflow/invoiceflow/rabbitmq"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun/migrate"
	ddEcho "gopkg.in/DataDog/dd-trace-go.v1/contrib/labstack/echo.v4"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func main() {
	c := &service.Config{}

	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}
	chainCfg, err := chain.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading chain config: %v", err)
	}

	logger := logging.Logger(c.LogFilePath, c.LogLevel)

	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}
	defer dbConn.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Duration(c.DatabaseTimeout)*time.Second)
	migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
	err = migrator.Init(startupCtx)
	if err != nil {
		logger.Fatalf("Error initializing db migrator: %v", err)
	}
	group, err := migrator.Migrate(startupCtx)
	if err != nil {
		logger.Fatalf("Error migrating database: %v", err)
	}
	cancelStartup()
	if !group.IsZero() {
		logger.Infof("Migrated database to %s", group)
	}

	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			IgnoreErrors:     []string{"401"},
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Without RABBITMQ_URI there is no fan-out to the broker and no sync consumer.
	var rabbitmqClient rabbitmq.Client
	if c.RabbitMQUri != "" {
		rabbitmqClient, err = rabbitmq.Dial(c.RabbitMQUri, logger,
			rabbitmq.WithNotificationExchange(c.RabbitMQExchange),
			rabbitmq.WithSyncExchange(c.RabbitMQSyncExchange),
			rabbitmq.WithSyncConsumerQueueName(c.RabbitMQSyncQueueName),
		)
		if err != nil {
			logger.Fatal(err)
		}
		defer rabbitmqClient.Close()
	}

	dial := chain.NewDialer(time.Duration(chainCfg.PollInterval) * time.Second)
	svc := &service.InvoiceFlowService{
		Config:             c,
		ChainConfig:        chainCfg,
		DB:                 dbConn,
		Logger:             logger,
		Dial:               dial,
		NotificationPubSub: service.NewPubsub(),
		RabbitMQClient:     rabbitmqClient,
	}

	var chainListener *listener.Listener
	if c.EnableListener {
		chainListener, err = listener.New(chainCfg, dial, svc.EventHandlers(),
			listener.WithLogger(logger),
			listener.WithMetrics(listener.NewMetrics(prometheus.DefaultRegisterer)),
			listener.WithBackOff(backoff.NewConstantBackOff(time.Duration(chainCfg.ReconnectDelay)*time.Second)),
		)
		if err != nil {
			logger.Fatalf("Error initializing chain listener: %v", err)
		}
	}

	e := transport.InitEcho(c, logger)
	if c.DatadogAgentUrl != "" {
		tracer.Start(tracer.WithAgentAddr(c.DatadogAgentUrl))
		defer tracer.Stop()
		e.Use(ddEcho.Middleware(ddEcho.WithServiceName("invoiceflow")))
	}

	logMw := transport.CreateLoggingMiddleware(logger)
	// strict rate limit for writes that move invoices or money
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)
	cacheMw, err := transport.CreateCacheMiddleware(time.Minute)
	if err != nil {
		logger.Fatal(err)
	}

	endpoints := transport.Endpoints{
		Public:                     e.Group("", logMw),
		Secured:                    e.Group("", tokens.Middleware(c.JWTSecret), logMw),
		SecuredWithStrictRateLimit: e.Group("", tokens.Middleware(c.JWTSecret), strictRateLimitMiddleware, logMw),
		StrictRateLimit:            strictRateLimitMiddleware,
		Admin:                      tokens.AdminTokenMiddleware(c.AdminToken),
		Cache:                      cacheMw,
	}
	if chainListener != nil {
		endpoints.ListenerState = func() string { return chainListener.State().String() }
	}
	transport.RegisterV2Endpoints(svc, e, endpoints)

	var backgroundWg sync.WaitGroup
	backgroundCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if chainListener != nil {
		chainListener.Start(backgroundCtx)
		logger.Infof("Chain listener started for chain %d", chainCfg.ChainID)
	}

	if svc.Config.WebhookUrl != "" {
		backgroundWg.Add(1)
		go func() {
			svc.StartWebhookSubscription(backgroundCtx, svc.Config.WebhookUrl)
			svc.Logger.Info("Webhook routine done")
			backgroundWg.Done()
		}()
	}
	if svc.RabbitMQClient != nil {
		backgroundWg.Add(1)
		go func() {
			err := svc.RabbitMQClient.StartPublishNotifications(backgroundCtx,
				svc.SubscribeNotifications,
				svc.EncodeNotification,
			)
			if err != nil {
				svc.Logger.Error(err)
				sentry.CaptureException(err)
			}
			svc.Logger.Info("Rabbit notification publisher done")
			backgroundWg.Done()
		}()

		backgroundWg.Add(1)
		go func() {
			err := svc.RabbitMQClient.SubscribeToSyncRequests(backgroundCtx, svc.HandleSyncRequest)
			if err != nil {
				svc.Logger.Error(err)
				sentry.CaptureException(err)
			}
			svc.Logger.Info("Rabbit sync consumer done")
			backgroundWg.Done()
		}()
	}

	var echoPrometheus *echo.Echo
	if svc.Config.EnablePrometheus {
		echoPrometheus = transport.StartPrometheusEcho(logger, svc, e)
	}

	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backgroundCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Error(err)
	}
	if echoPrometheus != nil {
		if err := echoPrometheus.Shutdown(ctx); err != nil {
			e.Logger.Error(err)
		}
	}
	if chainListener != nil {
		chainListener.Stop()
	}
	backgroundWg.Wait()
	svc.Logger.Info("InvoiceFlow exiting gracefully. Goodbye.")
}
