package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/INNOCENT-010/storefront-checkout/internal/cart/cache"
	cartrepo "github.com/INNOCENT-010/storefront-checkout/internal/cart/repository"
	cartservice "github.com/INNOCENT-010/storefront-checkout/internal/cart/service"
	"github.com/INNOCENT-010/storefront-checkout/internal/catalog"
	"github.com/INNOCENT-010/storefront-checkout/internal/checkout"
	"github.com/INNOCENT-010/storefront-checkout/internal/currency"
	"github.com/INNOCENT-010/storefront-checkout/internal/gateway"
	h "github.com/INNOCENT-010/storefront-checkout/internal/http"
	ordersrepo "github.com/INNOCENT-010/storefront-checkout/internal/orders/repository"
	"github.com/INNOCENT-010/storefront-checkout/internal/payments"
	"github.com/INNOCENT-010/storefront-checkout/internal/publisher"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MongoURI    string
	MongoDBName string
	RedisAddr   string

	CatalogDBPath     string
	CatalogMigrations string

	PostgresHost       string
	PostgresPort       int
	PostgresUser       string
	PostgresPassword   string
	PostgresDB         string
	PostgresMigrations string

	GatewayBaseURL   string
	GatewaySecretKey string
	GatewayCallback  string
	GatewayTimeout   time.Duration

	KafkaBrokers []string

	MaxOrderTotal int64
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "shopdb"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),

		CatalogDBPath:     getEnv("CATALOG_DB_PATH", "./catalog.db"),
		CatalogMigrations: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/catalog/migrations"),

		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:       getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:         getEnv("POSTGRES_DB", "ordersdb"),
		PostgresMigrations: getEnv("ORDERS_MIGRATIONS_PATH", "./internal/orders/repository/migrations"),

		GatewayBaseURL:   getEnv("GATEWAY_BASE_URL", "https://api.paystack.co"),
		GatewaySecretKey: getEnv("GATEWAY_SECRET_KEY", ""),
		GatewayCallback:  getEnv("GATEWAY_CALLBACK_URL", ""),
		GatewayTimeout:   15 * time.Second,

		KafkaBrokers: []string{getEnv("KAFKA_BROKER", "localhost:9092")},

		// Anything above this is a malformed or adversarial submission.
		MaxOrderTotal: int64(getEnvInt("MAX_ORDER_TOTAL", 100_000_000)),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Cart storage
	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	cartRepository := cartrepo.NewMongoRepository(mongoDB)
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer redisClient.Close()
	cartCache := cache.NewRedisCache(redisClient)

	// Product catalog
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.CatalogMigrations); err != nil {
		log.Fatalf("Failed to run catalog migrations: %v", err)
	}

	// Orders storage
	ordersCred := &ordersrepo.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.PostgresMigrations,
	}
	orderRepository, err := ordersrepo.NewRepository(ordersCred)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer orderRepository.Close()
	if err := orderRepository.RunMigrations(ordersCred); err != nil {
		log.Fatalf("Failed to run orders migrations: %v", err)
	}

	// Payment gateway
	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecretKey, cfg.GatewayCallback, cfg.GatewayTimeout)

	// Services
	cartSvc := cartservice.NewCartService(cartRepository, cartCache, catalogRepo)
	validator := checkout.NewValidator(cfg.MaxOrderTotal)
	checkoutSvc := checkout.NewService(validator, cartSvc, gatewayClient, orderRepository)
	confirmationSvc := payments.NewConfirmationService(orderRepository, gatewayClient)

	converter := currency.NewConverter(map[currency.Currency]decimal.Decimal{
		currency.USD: decimal.NewFromInt(1500),
		currency.GBP: decimal.NewFromInt(1900),
		currency.EUR: decimal.NewFromInt(1600),
	})

	// Downstream notifications
	poller := publisher.NewOutboxPoller(orderRepository, cfg.KafkaBrokers...)
	pollerCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	go poller.Run(pollerCtx)

	// Handlers
	cartHandler := h.NewCartHandler(cartSvc, converter, cfg.RequestTimeout)
	paymentsHandler := h.NewPaymentsHandler(checkoutSvc, confirmationSvc, orderRepository, cfg.GatewaySecretKey, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartHandler.GetCart)
		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
		r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		r.Delete("/", cartHandler.ClearCart)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/initialize", paymentsHandler.Initialize)
		r.Get("/verify/{reference}", paymentsHandler.Verify)
		r.Post("/webhook", paymentsHandler.Webhook)
		r.Get("/order/{order_number}", paymentsHandler.GetOrder)
		r.Patch("/order/{order_number}/status", paymentsHandler.UpdateOrderStatus)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "shopfront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("shopfront starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	stopPoller()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
