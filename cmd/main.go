package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/events"
	httpapi "github.com/UmaimaHameed/Elegant-La-Vie/internal/http"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/payment"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/repository"
	"github.com/UmaimaHameed/Elegant-La-Vie/internal/service"
	"github.com/UmaimaHameed/Elegant-La-Vie/pkg/config"
	"github.com/UmaimaHameed/Elegant-La-Vie/pkg/metrics"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	var (
		products repository.ProductRepository
		orders   repository.OrderRepository
		tx       repository.TxManager
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		store := repository.NewPostgresStore(pool)
		products = store
		orders = repository.NewPostgresOrders(store)
		tx = repository.NewPostgresTx(pool)
		logger.Info("using postgres store")
	} else {
		store := repository.NewMemoryStore()
		products = store
		orders = repository.NewMemoryOrders(store)
		tx = repository.NewMemoryTx(store)
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderEventTopic); kp != nil {
		publisher = kp
		defer kp.Close()
		logger.Info("order events enabled", zap.String("topic", cfg.OrderEventTopic))
	}

	channels := map[domain.PaymentMethod]service.Channel{}
	var verifier service.WebhookVerifier
	if cfg.StripeAPIKey != "" {
		channels[domain.PaymentMethodStripe] = service.NewStripeChannel(
			payment.NewStripeProvider(cfg.StripeAPIKey), cfg.Currency, cfg.StripeTimeout)
		verifier = payment.NewStripeVerifier(cfg.StripeWebhookSecret)
	}
	if cfg.WhatsAppNumber != "" {
		channels[domain.PaymentMethodWhatsApp] = service.NewWhatsAppChannel(
			cfg.WhatsAppNumber, cfg.StoreName, cfg.CurrencySymbol)
	}
	if len(channels) == 0 {
		logger.Fatal("no fulfillment channel configured: set STRIPE_API_KEY and/or WHATSAPP_NUMBER")
	}

	rules := service.PricingRules{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ShippingFee:           cfg.ShippingFee,
		GiftWrapFees: map[domain.GiftWrap]int64{
			domain.GiftWrapStandard: cfg.GiftWrapStandardFee,
			domain.GiftWrapPremium:  cfg.GiftWrapPremiumFee,
		},
	}

	productsSvc := service.NewProductService(products)
	checkoutSvc := service.NewCheckoutService(products, orders, tx, rules, channels, publisher, logger)
	confirmSvc := service.NewConfirmationService(orders, tx, publisher, logger)

	srv := httpapi.NewServer(httpapi.Deps{
		Products:      productsSvc,
		Checkout:      checkoutSvc,
		Confirmations: confirmSvc,
		Verifier:      verifier,
		Logger:        logger,
		Metrics:       metrics.New("checkout"),
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
