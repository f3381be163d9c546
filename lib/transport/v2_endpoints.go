package transport

import (
	v2controllers "github.com/invoiceflow/invoiceflow/controllers_v2"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/labstack/echo/v4"
)

// Endpoints carries the middleware and groups the routes are attached to.
type Endpoints struct {
	// Public routes
	Public *echo.Group
	// Secured routes need a bearer token
	Secured *echo.Group
	// SecuredWithStrictRateLimit is for writes that move invoices or money
	SecuredWithStrictRateLimit *echo.Group

	StrictRateLimit echo.MiddlewareFunc
	Admin           echo.MiddlewareFunc
	Cache           echo.MiddlewareFunc
	// ListenerState is reported by /health when set
	ListenerState func() string
}

func RegisterV2Endpoints(svc *service.InvoiceFlowService, e *echo.Echo, endpoints Endpoints) {
	cacheMw := endpoints.Cache
	if cacheMw == nil {
		cacheMw = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	e.GET("/health", v2controllers.NewHealthController(svc, endpoints.ListenerState).Check)
	e.POST("/auth", v2controllers.NewAuthController(svc).Auth, endpoints.StrictRateLimit)

	userCtrl := v2controllers.NewUserController(svc)
	endpoints.Secured.GET("/v2/users/me", userCtrl.Me)
	endpoints.Secured.PUT("/v2/users/me", userCtrl.UpdateMe)
	endpoints.Public.GET("/v2/users/:address", userCtrl.Get)

	invoiceCtrl := v2controllers.NewInvoiceController(svc)
	endpoints.Public.GET("/v2/invoices", invoiceCtrl.ListInvoices)
	endpoints.Public.GET("/v2/invoices/:id", invoiceCtrl.GetInvoice)
	endpoints.Secured.POST("/v2/invoices", invoiceCtrl.CreateInvoice)
	endpoints.Secured.PUT("/v2/invoices/:id", invoiceCtrl.UpdateInvoice)
	e.POST("/v2/invoices/sync", invoiceCtrl.SyncInvoice, endpoints.StrictRateLimit, endpoints.Admin)

	marketplaceCtrl := v2controllers.NewMarketplaceController(svc)
	endpoints.Public.GET("/v2/marketplace/listings", marketplaceCtrl.ListListings)
	endpoints.Public.GET("/v2/marketplace/listings/:id", marketplaceCtrl.GetListing)
	endpoints.Public.GET("/v2/marketplace/stats", marketplaceCtrl.Stats, cacheMw)
	endpoints.SecuredWithStrictRateLimit.POST("/v2/marketplace/listings", marketplaceCtrl.CreateListing)
	endpoints.SecuredWithStrictRateLimit.POST("/v2/marketplace/listings/:id/sale", marketplaceCtrl.RecordSale)

	paymentCtrl := v2controllers.NewPaymentController(svc)
	endpoints.Public.GET("/v2/payments", paymentCtrl.ListPayments)
	endpoints.Public.GET("/v2/payments/:id", paymentCtrl.GetPayment)
	endpoints.SecuredWithStrictRateLimit.POST("/v2/payments", paymentCtrl.CreatePayment)

	researchCtrl := v2controllers.NewResearchController(svc)
	endpoints.Public.GET("/v2/research/pool", researchCtrl.Pool)
	endpoints.Public.GET("/v2/research/donations", researchCtrl.ListDonations)
	endpoints.Public.GET("/v2/research/grants", researchCtrl.ListGrants)
	endpoints.SecuredWithStrictRateLimit.POST("/v2/research/donations", researchCtrl.CreateDonation)
	e.POST("/v2/research/grants", researchCtrl.CreateGrant, endpoints.StrictRateLimit, endpoints.Admin)

	notificationCtrl := v2controllers.NewNotificationController(svc)
	endpoints.Secured.GET("/v2/notifications", notificationCtrl.ListNotifications)
	endpoints.Secured.GET("/v2/notifications/unread-count", notificationCtrl.UnreadCount)
	endpoints.Secured.PUT("/v2/notifications/read-all", notificationCtrl.MarkAllRead)
	endpoints.Secured.PUT("/v2/notifications/:id/read", notificationCtrl.MarkRead)

	aiCtrl := v2controllers.NewAIController(svc)
	endpoints.Public.POST("/v2/ai/risk-score", aiCtrl.RiskScore)
	endpoints.Public.GET("/v2/ai/insights", aiCtrl.Insights, cacheMw)
}
