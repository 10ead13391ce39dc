package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/reservd/internal/booking"
	"github.com/md-rashed-zaman/reservd/internal/clock"
	"github.com/md-rashed-zaman/reservd/internal/events"
	"github.com/md-rashed-zaman/reservd/internal/handlers"
	"github.com/md-rashed-zaman/reservd/internal/payment"
	"github.com/md-rashed-zaman/reservd/internal/store"
	"github.com/md-rashed-zaman/reservd/libs/config"
	"github.com/md-rashed-zaman/reservd/libs/db"
	"github.com/md-rashed-zaman/reservd/libs/httpx"
	"github.com/md-rashed-zaman/reservd/libs/kafkax"
	"github.com/md-rashed-zaman/reservd/libs/otelx"
	"github.com/md-rashed-zaman/reservd/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "reservd")
	port, err := config.Port("PORT", "3000")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	baseURL := config.String("BASE_URL", "http://localhost:3000")

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
	}

	st, storeReady, pool := openStore(ctx, logger, rdb)
	if pool != nil {
		defer pool.Close()
	}

	provider := buildPaymentProvider(logger, baseURL)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := events.NewPublisher(brokers, logger)
	defer func() { _ = publisher.Close() }()

	engine := booking.NewEngine(st, provider, clock.NewSystem(), logger,
		booking.WithExpiration(time.Duration(config.Int("RES_EXPIRATION_MIN", 30))*time.Minute),
	)
	bookingHandler := handlers.NewBookingHandler(engine, publisher, logger)

	readyChecks := []runtime.ReadyCheck{{Name: "store", Check: storeReady}}
	if strings.TrimSpace(brokers) != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/public/bookings", bookingHandler.Create)
	mux.HandleFunc("/api/v1/public/occupied", bookingHandler.Occupied)
	mux.HandleFunc("/confirm", bookingHandler.Confirm)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitCSV(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
	}
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if rdb != nil {
		middlewares = append(middlewares, httpx.NewRedisRateLimiter(rdb, limit, time.Minute, service).Middleware(logger, true))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(limit, time.Minute).Middleware())
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func splitCSV(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// openStore picks the snapshot backend from STORE_BACKEND. The returned pool
// is non-nil only for postgres, so the caller can close it on shutdown.
func openStore(ctx context.Context, logger *slog.Logger, rdb *redis.Client) (store.Store, func(context.Context) error, *db.Pool) {
	backend := strings.ToLower(strings.TrimSpace(config.String("STORE_BACKEND", "file")))
	switch backend {
	case "file", "":
		fs, err := store.OpenFileStore(config.String("DATA_DIR", "data"))
		if err != nil {
			logger.Error("file store init failed", "err", err)
			panic(err)
		}
		return fs, fs.Ping, nil
	case "memory":
		ms := store.NewMemStore()
		return ms, ms.Ping, nil
	case "redis":
		if rdb == nil {
			panic("STORE_BACKEND=redis requires REDIS_ADDR")
		}
		rs := store.NewRedisStore(rdb)
		return rs, rs.Ping, nil
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			panic(err)
		}
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		ps, err := store.OpenPGStore(ctx, pool)
		if err != nil {
			logger.Error("pg store init failed", "err", err)
			pool.Close()
			panic(err)
		}
		return ps, ps.Ping, pool
	default:
		panic("unknown STORE_BACKEND: " + backend)
	}
}

// buildPaymentProvider picks the payment adapter from PAYMENT_PROVIDER.
// Without one configured, the local provider keeps the identical lifecycle
// testable end to end.
func buildPaymentProvider(logger *slog.Logger, baseURL string) payment.Provider {
	name := strings.ToLower(strings.TrimSpace(config.String("PAYMENT_PROVIDER", "")))
	switch name {
	case "mercadopago":
		token, err := config.RequiredString("MP_ACCESS_TOKEN")
		if err != nil {
			panic(err)
		}
		return payment.NewMercadoPagoProvider(token, baseURL)
	case "stripe":
		secretKey, err := config.RequiredString("STRIPE_SECRET_KEY")
		if err != nil {
			panic(err)
		}
		priceID, err := config.RequiredString("STRIPE_PRICE_ID")
		if err != nil {
			panic(err)
		}
		return payment.NewStripeProvider(secretKey, priceID, baseURL)
	case "", "local":
		logger.Warn("no live payment provider configured; using local success redirects")
		return payment.NewLocalProvider(baseURL)
	default:
		panic("unknown PAYMENT_PROVIDER: " + name)
	}
}
