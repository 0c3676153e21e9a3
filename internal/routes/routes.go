// Package routes defines the API routing configuration. It wires
// repositories, services and handlers together and groups routes by
// concern with the required middleware.
package routes

import (
	"gearted/internal/config"
	"gearted/internal/handlers"
	"gearted/internal/middleware"
	"gearted/internal/repositories"
	"gearted/internal/repositories/cache"
	"gearted/internal/services/boost"
	"gearted/internal/services/expert"
	"gearted/internal/services/notification"
	"gearted/internal/services/payment"
	"gearted/internal/services/protection"
	"gearted/internal/services/settings"
	"gearted/internal/services/webhook"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Services bundles the wired service layer so main can reuse it for the
// background sweep.
type Services struct {
	Payments    *payment.Service
	Boosts      *boost.Service
	Protections *protection.Service
	Experts     *expert.Service
	Processor   *webhook.Processor
}

// SetupRoutes configures all application routes and returns the wired
// services. cacheSvc may be nil when Redis is disabled.
func SetupRoutes(app *fiber.App, db *gorm.DB, cacheSvc *cache.CacheService) *Services {
	// Repositories
	transactionRepo := repositories.NewTransactionRepository(db)
	productRepo := repositories.NewProductRepository(db)
	userRepo := repositories.NewUserRepository(db)
	payoutRepo := repositories.NewPayoutAccountRepository(db)
	expertRepo := repositories.NewExpertRepository(db)
	boostRepo := repositories.NewBoostRepository(db)
	protectionRepo := repositories.NewProtectionRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	// Services
	var settingsCache settings.Cache
	if cacheSvc != nil {
		settingsCache = cacheSvc
	}
	settingsService := settings.NewService(settingsRepo, settingsCache)
	notifier := notification.NewService(notificationRepo)

	provider := payment.NewStripeProvider(config.GetEnv("STRIPE_SECRET_KEY", ""))

	boostService := boost.NewService(boostRepo, productRepo, provider, settingsService, notifier)
	protectionService := protection.NewService(protectionRepo, transactionRepo, provider, settingsService, notifier)

	processor := webhook.NewProcessor(
		transactionRepo,
		productRepo,
		payoutRepo,
		boostService,
		protectionService,
		nil, // expert activator set below, after the expert service exists
		notifier,
	)

	expertService := expert.NewService(expertRepo, transactionRepo, provider, settingsService, processor, notifier)
	processor.SetExpertActivator(expertService)

	paymentService := payment.NewService(
		provider,
		transactionRepo,
		productRepo,
		userRepo,
		payoutRepo,
		expertRepo,
		protectionRepo,
		settingsService,
		processor,
	)

	// Handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, processor, config.GetEnv("STRIPE_WEBHOOK_SECRET", ""))
	premiumHandler := handlers.NewPremiumHandler(boostService, protectionService, expertService, settingsService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	healthHandler := handlers.NewHealthHandler(db, cacheSvc)

	app.Get("/health", healthHandler.Check)

	api := app.Group("/api")

	// Payments
	payments := api.Group("/payments")
	payments.Post("/webhook", paymentHandler.HandleWebhook)
	payments.Get("/public-key", paymentHandler.GetPublicKey)
	payments.Post("/intent", middleware.AuthMiddleware, paymentHandler.CreateIntent)
	payments.Post("/confirm", middleware.AuthMiddleware, paymentHandler.ConfirmPayment)
	payments.Post("/refund", middleware.AuthMiddleware, middleware.AdminAuthMiddleware, paymentHandler.RefundPayment)

	connect := payments.Group("/connect", middleware.AuthMiddleware)
	connect.Post("/account", paymentHandler.CreateConnectAccount)
	connect.Post("/onboarding-link", paymentHandler.CreateOnboardingLink)
	connect.Get("/dashboard-link", paymentHandler.GetDashboardLink)
	connect.Get("/status", paymentHandler.GetConnectStatus)

	// Premium add-ons
	premium := api.Group("/premium")
	premium.Get("/pricing", premiumHandler.GetPricing)
	premium.Get("/boosted-products", premiumHandler.BoostedProducts)
	premium.Get("/boost/product/:productId", premiumHandler.ProductBoost)

	premiumAuth := premium.Group("", middleware.AuthMiddleware)
	premiumAuth.Post("/boost", premiumHandler.CreateBoost)
	premiumAuth.Delete("/boost/:id", premiumHandler.CancelBoost)
	premiumAuth.Get("/boost/my-boosts", premiumHandler.MyBoosts)

	premiumAuth.Post("/protection", premiumHandler.AddProtection)
	premiumAuth.Get("/protection/:transactionId", premiumHandler.ProtectionStatus)
	premiumAuth.Post("/protection/:transactionId/claim", premiumHandler.OpenClaim)

	premiumAuth.Post("/expert", premiumHandler.RequestExpert)
	premiumAuth.Get("/expert/:id", premiumHandler.ExpertStatus)
	premiumAuth.Put("/expert/:id/seller-tracking", premiumHandler.SetSellerTracking)
	premiumAuth.Post("/expert/:id/confirm-delivery", premiumHandler.ConfirmExpertDelivery)

	// Admin operations
	admin := premium.Group("/admin", middleware.AuthMiddleware, middleware.AdminAuthMiddleware)
	admin.Get("/expert/pending", premiumHandler.PendingExpertServices)
	admin.Put("/expert/:id/received", premiumHandler.MarkExpertReceived)
	admin.Put("/expert/:id/start-verification", premiumHandler.StartExpertVerification)
	admin.Put("/expert/:id/verify", premiumHandler.SubmitExpertVerification)
	admin.Put("/expert/:id/ship-to-buyer", premiumHandler.ShipExpertToBuyer)
	admin.Put("/expert/:id/delivered", premiumHandler.MarkExpertDelivered)
	admin.Put("/protection/:id/resolve", premiumHandler.ResolveClaim)

	// Settings
	api.Get("/settings/commissions", settingsHandler.GetCommissions)

	return &Services{
		Payments:    paymentService,
		Boosts:      boostService,
		Protections: protectionService,
		Experts:     expertService,
		Processor:   processor,
	}
}
