package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	catalogapp "github.com/dmehra2102/pos-checkout/internal/catalog/application"
	cataloghttp "github.com/dmehra2102/pos-checkout/internal/catalog/infrastructure/http"
	catalogpg "github.com/dmehra2102/pos-checkout/internal/catalog/infrastructure/postgres"
	catalogsqlite "github.com/dmehra2102/pos-checkout/internal/catalog/infrastructure/sqlite"
	"github.com/dmehra2102/pos-checkout/internal/config"
	"github.com/dmehra2102/pos-checkout/internal/order/application"
	orderhttp "github.com/dmehra2102/pos-checkout/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/pos-checkout/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/pos-checkout/internal/order/infrastructure/postgres"
	orderredis "github.com/dmehra2102/pos-checkout/internal/order/infrastructure/redis"
	ordersqlite "github.com/dmehra2102/pos-checkout/internal/order/infrastructure/sqlite"
	"github.com/dmehra2102/pos-checkout/internal/platform/migrations"
	"github.com/dmehra2102/pos-checkout/internal/platform/sqlitedb"
	"github.com/dmehra2102/pos-checkout/pkg/healthcheck"
	"github.com/dmehra2102/pos-checkout/pkg/httpx"
	"github.com/dmehra2102/pos-checkout/pkg/idempotency"
	"github.com/dmehra2102/pos-checkout/pkg/logging"
	"github.com/dmehra2102/pos-checkout/pkg/outbox"
	"github.com/dmehra2102/pos-checkout/pkg/shutdown"
	"github.com/dmehra2102/pos-checkout/pkg/tracing"
)

const serviceName = "pos-service"

// stores is the set of repositories backed by the configured driver.
type stores struct {
	products catalogapp.ProductRepository
	ledger   application.Ledger
	outbox   outbox.Store
	ping     healthcheck.Probe
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, serviceName, cfg.OTelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	st, err := openStores(ctx, log, cfg)
	if err != nil {
		log.Error("store open failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer st.close()

	catalog := catalogapp.NewService(log, st.products)
	if err := seedCatalog(ctx, catalog, cfg.SeedFile); err != nil {
		log.Error("catalog seed failed", "err", err)
		os.Exit(1)
	}

	opts := []application.Option{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("redis connect failed", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		opts = append(opts,
			application.WithInvoiceCache(orderredis.NewInvoiceCache(rdb, cfg.InvoiceCacheTTL)),
			application.WithIdempotency(idempotency.NewStore(rdb, cfg.IdempotencyTTL)),
		)
		log.Info("redis enabled", "addr", cfg.RedisAddr)
	}
	svc := application.NewService(log, catalog, st.ledger, opts...)

	// Outbox relay
	if len(cfg.KafkaBrokers) > 0 {
		writer := orderkafka.NewWriter(log, cfg.KafkaBrokers)
		defer writer.Close()
		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
		relay := outbox.NewRelay(log, st.outbox, dispatch, relayID())
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	} else {
		log.Info("KAFKA_ADDR not set, order events stay in the outbox")
	}

	// gRPC health
	hs := healthcheck.NewServer(log, serviceName, st.ping)
	gs, err := healthcheck.Run(cfg.GRPCAddr, hs)
	if err != nil {
		log.Error("grpc listen failed", "addr", cfg.GRPCAddr, "err", err)
		os.Exit(1)
	}
	go hs.Watch(ctx)
	log.Info("grpc health listening", "addr", cfg.GRPCAddr)

	// HTTP server
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpx.RequestLogger(log))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/api/products", cataloghttp.NewHandler(log, catalog).Routes())
	orderhttp.NewHandler(log, svc, cfg.HistoryLimit, orderhttp.WithLocation(cfg.DisplayLocation)).Mount(r)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(r, "http.server"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	gs.GracefulStop()
	log.Info("pos-service shutdown complete")
}

func openStores(ctx context.Context, log *slog.Logger, cfg config.Config) (stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			return stores{}, err
		}
		if err := migrations.UpPostgres(pool); err != nil {
			pool.Close()
			return stores{}, err
		}
		return stores{
			products: catalogpg.NewRepository(log, pool),
			ledger:   orderpg.NewRepository(log, pool),
			outbox:   orderpg.NewOutboxStore(log, pool),
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	default:
		db, err := sqlitedb.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return stores{}, err
		}
		return stores{
			products: catalogsqlite.NewRepository(log, db),
			ledger:   ordersqlite.NewRepository(log, db),
			outbox:   ordersqlite.NewOutboxStore(log, db),
			ping:     db.PingContext,
			close:    func() { closeDB(log, db) },
		}, nil
	}
}

func closeDB(log *slog.Logger, db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Error("sqlite close failed", "err", err)
	}
}

// seedCatalog fills an empty catalog from path, or with the default drinks
// when no seed file is configured.
func seedCatalog(ctx context.Context, catalog *catalogapp.Service, path string) error {
	products := catalogapp.DefaultSeed()
	if path != "" {
		var err error
		if products, err = catalogapp.LoadSeedFile(path); err != nil {
			return err
		}
	}
	_, err := catalog.SeedIfEmpty(ctx, products)
	return err
}

func relayID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return serviceName + "-relay"
	}
	return serviceName + "-relay-" + host
}
