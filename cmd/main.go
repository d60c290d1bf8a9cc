package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/velomart/storefront/internal/backend"
	"github.com/velomart/storefront/internal/cache"
	"github.com/velomart/storefront/internal/cart"
	"github.com/velomart/storefront/internal/checkout"
	"github.com/velomart/storefront/internal/coupon"
	"github.com/velomart/storefront/internal/fulfillment"
	h "github.com/velomart/storefront/internal/http"
	"github.com/velomart/storefront/internal/publisher"
	"github.com/velomart/storefront/internal/repository"
	"github.com/velomart/storefront/internal/submissions"
)

type Config struct {
	HTTPPort             string
	BackendURL           string
	BackendTimeout       time.Duration
	MongoURI             string
	MongoDBName          string
	RedisAddr            string
	RedisPassword        string
	PostgresHost         string
	PostgresPort         int
	PostgresUser         string
	PostgresPassword     string
	PostgresDB           string
	MigrationsDir        string
	KafkaBrokers         string
	WidgetURL            string
	PaymentRetryInterval time.Duration
	RequestTimeout       time.Duration
	ShutdownTimeout      time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		BackendURL:           getEnv("BACKEND_URL", "http://localhost:9090"),
		BackendTimeout:       10 * time.Second,
		MongoURI:             getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:          getEnv("MONGO_DB_NAME", "storefront"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		PostgresHost:         getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:         getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:         getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:     getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:           getEnv("POSTGRES_DB", "storefront"),
		MigrationsDir:        getEnv("MIGRATIONS_DIR", "migrations"),
		KafkaBrokers:         getEnv("KAFKA_BROKERS", "localhost:9092"),
		WidgetURL:            getEnv("PICKUP_WIDGET_URL", "https://geowidget.inpost.pl/inpost-geowidget.js"),
		PaymentRetryInterval: 3 * time.Second,
		RequestTimeout:       30 * time.Second,
		ShutdownTimeout:      10 * time.Second,
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
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Set up MongoDB connection
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	repo := repository.NewMongoRepository(mongoDB)
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	pgCred := &submissions.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDir,
	}
	submissionLog, err := submissions.NewRepository(pgCred)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer submissionLog.Close()
	if err := submissionLog.RunMigrations(pgCred); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Printf("Submission log ready at %s:%d", cfg.PostgresHost, cfg.PostgresPort)

	orderEvents := publisher.NewOrderEventPublisher(strings.Split(cfg.KafkaBrokers, ",")...)
	defer orderEvents.Close()

	backendClient := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)

	store := cart.NewStore(repo, cache.NewRedisCache(redisClient))
	couponEngine := coupon.NewEngine(backendClient, store)
	resolver := fulfillment.NewResolver(backendClient, widgetLoader(cfg.WidgetURL), cfg.PaymentRetryInterval)
	orchestrator := checkout.NewOrchestrator(store, couponEngine, resolver, backendClient, submissionLog, orderEvents)

	cartHandler := h.NewCartHandler(store, orchestrator, cfg.RequestTimeout)
	couponHandler := h.NewCouponHandler(couponEngine, store, cfg.RequestTimeout)
	checkoutHandler := h.NewCheckoutHandler(orchestrator, resolver, cfg.RequestTimeout)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(h.SessionMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/lines", cartHandler.AddLine)
			r.Put("/lines/{cart_key}", cartHandler.UpdateQuantity)
			r.Delete("/lines/{cart_key}", cartHandler.RemoveLine)
			r.Post("/coupon", couponHandler.Apply)
			r.Delete("/coupon", couponHandler.Remove)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.GetCheckout)
			r.Get("/shipping-methods", checkoutHandler.ShippingMethods)
			r.Get("/payment-methods", checkoutHandler.PaymentMethods)
			r.Post("/shipping", checkoutHandler.SelectShipping)
			r.Post("/submit", checkoutHandler.Submit)
			r.Get("/order", checkoutHandler.LastOrder)
		})
		r.Get("/currency", checkoutHandler.Currency)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Storefront starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}

// widgetLoader fetches the pickup-point widget asset so the first locker
// selection in a session pays the load cost once.
func widgetLoader(url string) fulfillment.WidgetLoader {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("widget fetch returned %s", resp.Status)
		}
		return nil
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
