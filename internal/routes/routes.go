package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/karobar-pk/karobar/internal/auth"
	"github.com/karobar-pk/karobar/internal/config"
	"github.com/karobar-pk/karobar/internal/gateway"
	"github.com/karobar-pk/karobar/internal/identity"
	"github.com/karobar-pk/karobar/internal/middleware"
	"github.com/karobar-pk/karobar/internal/notification"
	"github.com/karobar-pk/karobar/internal/otp"
	"github.com/karobar-pk/karobar/internal/payment"
	"github.com/karobar-pk/karobar/internal/unlock"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Repositories.
	var identityRepo identity.Repository
	var paymentStore payment.Store
	var unlockRepo unlock.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
		paymentStore = payment.NewPostgresStore(d.DB)
		unlockRepo = unlock.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
		paymentStore = payment.NewInMemory()
		unlockRepo = unlock.NewInMemory(paymentStore)
	}

	// Core services.
	notifier := notification.NewLoggerNotifier(d.Logger)
	otpSvc := otp.NewService(d.Cfg.OTPTTL, d.Cfg.OTPMaxAttempts, time.Now)
	identitySvc := identity.NewService(identityRepo, otpSvc, otp.CryptoGenerator{}, notifier, d.Logger, d.Cfg.TrialDays, time.Now)
	tokenSvc := auth.NewService(d.Cfg)

	// Payment adapters. The simulated processor is a distinct implementation
	// selected here by configuration, never inside the live client.
	var processor gateway.CardProcessor
	if d.Cfg.CardProcessor == config.CardProcessorLive {
		processor = gateway.NewLiveCardProcessor(d.Cfg.CardAPIKey, d.Cfg.CardAPIBaseURL)
	} else {
		processor = gateway.SimulatedCardProcessor{}
	}
	manual := gateway.NewManualWalletAdapter()
	card := gateway.NewCardAdapter(processor, d.Logger, time.Now)
	adapters := map[gateway.Method]gateway.Adapter{
		gateway.MethodJazzCash:     manual,
		gateway.MethodBankTransfer: manual,
		gateway.MethodCard:         card,
	}
	wallet := gateway.NewRedirectWalletAdapter(
		d.Cfg.EasypayStoreID, d.Cfg.EasypayHashKey, d.Cfg.EasypayPostbackURL, d.Cfg.EasypayBaseURL, time.Now)

	unlockSvc := unlock.NewService(unlockRepo, paymentStore, adapters, wallet, identityRepo,
		notifier, d.Logger, d.Cfg.UnlockPrice, d.Cfg.UnlockCurrency, time.Now)

	identityHandler := auth.NewHandler(identitySvc, tokenSvc)
	unlockHandler := unlock.NewHandler(unlockSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes.
	otpLimiter := middleware.OTPRateLimit(d.Cache, 3)
	RegisterIdentityRoutes(api, identityHandler, otpLimiter)

	// The wallet posts back without our auth headers.
	api.Post("/payments/easypay/callback", unlockHandler.Callback)

	// Protected routes.
	authmw := middleware.BearerAuth(d.Cfg)
	protected := api.Group("", authmw)
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterSellerRoutes(protected, identityHandler)
	RegisterAdminRoutes(protected, identityHandler)
	RegisterUnlockRoutes(protected, unlockHandler)

	return nil
}
