package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shop-services/internal/auth"
	"github.com/ariefcatur/go-shop-services/internal/config"
	"github.com/ariefcatur/go-shop-services/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-services/internal/kafka"
	"github.com/ariefcatur/go-shop-services/internal/logger"
	"github.com/ariefcatur/go-shop-services/internal/orders"
	"github.com/ariefcatur/go-shop-services/internal/postgres"
	"github.com/ariefcatur/go-shop-services/internal/productclient"
	"github.com/ariefcatur/go-shop-services/internal/redisx"
	"github.com/ariefcatur/go-shop-services/internal/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load("order-service")

	log, err := logger.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("telemetry", zap.Error(err))
	}

	verifier, err := auth.NewVerifierFromConfig(cfg.JWT.PublicKeyFile, cfg.JWT.HMACSecret, cfg.JWT.Issuer)
	if err != nil {
		log.Fatal("jwt verifier", zap.Error(err))
	}

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN, orders.Migrations, "migrations", "orders_schema_migrations"); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.WithMaxConns(cfg.DBMaxConns))
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis is a cache only; the service runs without it
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Warn("redis unreachable, running uncached", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	svc := &orders.Service{
		Store: &orders.Repo{DB: db},
		Products: productclient.New(cfg.ProductServiceURL, productclient.Options{
			Timeout:         cfg.ProductServiceTimeout,
			BreakerFailures: cfg.ProductBreakerFails,
		}),
		Cache: &orders.RedisCache{R: rdb},
		Log:   log,
		Name:  cfg.ServiceName,
	}

	// Kafka producer
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
		prod.Start()
		svc.Events = prod
	} else {
		log.Info("KAFKA_BROKERS empty, order events disabled")
	}

	router := httpx.NewRouter(log)
	oh := &httpx.OrdersHandler{
		Service:  svc,
		Verifier: verifier,
		Log:      log,
	}
	oh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.Instrument(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("product_service", cfg.ProductServiceURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if prod != nil {
		prod.Close() // flush queued events, then close the writer
		prod.WaitClosed()
	}
	if err := shutdownTracing(ctx2); err != nil {
		log.Warn("tracer shutdown", zap.Error(err))
	}
}
