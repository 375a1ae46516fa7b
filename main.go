package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/arhamfareed106/medusa-payment-backend/config"
	"github.com/arhamfareed106/medusa-payment-backend/events"
	"github.com/arhamfareed106/medusa-payment-backend/handlers"
	"github.com/arhamfareed106/medusa-payment-backend/logger"
	"github.com/arhamfareed106/medusa-payment-backend/models"
	"github.com/arhamfareed106/medusa-payment-backend/payments"
	"github.com/arhamfareed106/medusa-payment-backend/pricing"
	"github.com/arhamfareed106/medusa-payment-backend/reconcile"
	"github.com/arhamfareed106/medusa-payment-backend/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zl, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer func() { _ = zl.Sync() }()

	// Money is rendered as JSON numbers for the storefront.
	decimal.MarshalJSONWithoutQuotes = true

	// Database connection
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}

	// orders and carts belong to the checkout workflow and are not migrated here
	if err := db.AutoMigrate(&models.OrderPaymentInfo{}, &models.ReconciliationAttempt{}); err != nil {
		zl.Fatal("failed to migrate database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infos := store.NewGormPaymentInfoRepo(db)
	orders := store.NewGormOrderRepo(db)
	attempts := store.NewGormAttemptRepo(db)

	calc := pricing.NewCalculator(cfg.Pricing.CODFee, cfg.Pricing.BankTransferDiscountPercent)
	paymentSvc := payments.NewService(infos, orders, calc, zl)

	matcher := reconcile.NewMatcher(infos, orders, paymentSvc, cfg.Reconcile.Tolerance, zl)
	if cfg.Events.PaymentTopicARN != "" {
		pub, err := events.NewSNSPublisher(ctx, cfg.Events.PaymentTopicARN)
		if err != nil {
			zl.Fatal("failed to create SNS publisher", zap.Error(err))
		}
		matcher.WithPublisher(pub)
	}

	job := reconcile.NewJob(reconcile.JobConfig{
		Name:         cfg.Reconcile.JobName,
		PhaseTimeout: cfg.Reconcile.PhaseTimeout,
		Currency:     cfg.Pricing.Currency,
	}, reconcile.MailboxDialer(cfg.IMAP), matcher, attempts, zl)

	if !cfg.IMAP.Configured() {
		zl.Warn("IMAP credentials not configured, bank transfers will not be verified automatically")
	}
	scheduler, err := reconcile.NewScheduler(reconcile.SchedulerConfig{
		Name:     cfg.Reconcile.JobName,
		Schedule: cfg.Reconcile.Schedule,
	}, job, zl)
	if err != nil {
		zl.Fatal("failed to create scheduler", zap.Error(err))
	}
	scheduler.Start()

	// Create Fiber app
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET, POST, OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}))

	handlers.SetupRoutes(app,
		handlers.NewPaymentHandler(paymentSvc, orders, calc, zl),
		handlers.NewReconciliationHandler(job, attempts, zl),
	)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := scheduler.Stop(shutdownCtx); err != nil {
			zl.Warn("scheduler did not stop in time", zap.Error(err))
		}
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			zl.Warn("http shutdown", zap.Error(err))
		}
	}()

	zl.Info("server running", zap.String("addr", ":"+cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatal("server stopped", zap.Error(err))
	}
	zl.Info("server stopped")
}
