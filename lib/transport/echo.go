package transport

import (
	"fmt"
	"net/http"
	"time"

	cache "github.com/SporkHubr/echo-http-cache"
	"github.com/SporkHubr/echo-http-cache/adapter/memory"
	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/go-playground/validator/v10"
	"github.com/invoiceflow/invoiceflow/lib"
	"github.com/invoiceflow/invoiceflow/lib/responses"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/invoiceflow/invoiceflow/lib/tokens"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/ziflex/lecho/v3"
	"golang.org/x/time/rate"
)

func InitEcho(c *service.Config, logger *lecho.Logger) (e *echo.Echo) {
	e = echo.New()
	e.HideBanner = true

	e.HTTPErrorHandler = responses.HTTPErrorHandler
	e.Validator = &lib.CustomValidator{Validator: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("250K"))
	// overall max requests/second per client
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(c.DefaultRateLimit))))

	e.Logger = logger
	e.Use(middleware.RequestID())

	// sentry.Init has to run before this
	if c.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{}))
	}
	return e
}

func CreateLoggingMiddleware(logger *lecho.Logger) echo.MiddlewareFunc {
	return lecho.Middleware(lecho.Config{
		Logger: logger,
		Enricher: func(c echo.Context, logger zerolog.Context) zerolog.Context {
			return logger.Interface(tokens.ContextKeyWallet, c.Get(tokens.ContextKeyWallet))
		},
	})
}

// CreateRateLimitMiddleware limits authenticated callers per wallet and
// everybody else per IP.
func CreateRateLimitMiddleware(requestsPerSecond int, burst int) echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(requestsPerSecond), Burst: burst},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			if wallet, ok := ctx.Get(tokens.ContextKeyWallet).(string); ok && wallet != "" {
				return wallet, nil
			}
			return ctx.RealIP(), nil
		},
	}

	return middleware.RateLimiterWithConfig(config)
}

// CreateCacheMiddleware caches GET responses in memory for ttl. Requests with
// the "refresh" query parameter bypass and refresh the entry.
func CreateCacheMiddleware(ttl time.Duration) (echo.MiddlewareFunc, error) {
	memcached, err := memory.NewAdapter(
		memory.AdapterWithAlgorithm(memory.LRU),
		memory.AdapterWithCapacity(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cache memory adapter: %w", err)
	}

	cacheClient, err := cache.NewClient(
		cache.ClientWithAdapter(memcached),
		cache.ClientWithTTL(ttl),
		cache.ClientWithRefreshKey("refresh"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cache client: %w", err)
	}
	return cacheClient.Middleware(), nil
}

// StartPrometheusEcho serves /metrics on its own port in the background.
func StartPrometheusEcho(logger *lecho.Logger, svc *service.InvoiceFlowService, e *echo.Echo) *echo.Echo {
	echoPrometheus := echo.New()
	echoPrometheus.HideBanner = true
	prom := prometheus.NewPrometheus("echo", nil)
	// scrape the main server
	e.Use(prom.HandlerFunc)
	prom.SetMetricsPath(echoPrometheus)
	echoPrometheus.Logger = logger

	go func() {
		echoPrometheus.Logger.Infof("Starting prometheus on port %d", svc.Config.PrometheusPort)
		err := echoPrometheus.Start(fmt.Sprintf(":%d", svc.Config.PrometheusPort))
		if err != nil && err != http.ErrServerClosed {
			echoPrometheus.Logger.Errorf("Prometheus server failed: %v", err)
			sentry.CaptureException(err)
		}
	}()
	return echoPrometheus
}
