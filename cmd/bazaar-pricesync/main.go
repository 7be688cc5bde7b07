// Bazaar Pricesync — периодически обновляет котировки токенов
// зарегистрированных APIs из внешнего источника цен.
//
// Несколько реплик координируются через pg advisory lock:
// опрашивает цены только лидер, остальные ждут.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/bazaar/internal/flaunch"
	"github.com/shaiso/bazaar/internal/pricing"
	"github.com/shaiso/bazaar/internal/registry"
	"github.com/shaiso/bazaar/internal/repo"
	"github.com/shaiso/bazaar/internal/telemetry"
)

const priceSyncLockKey int64 = 844210

func main() {
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting bazaar-pricesync")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	store := registry.NewStore(repo.NewAPIRepo(pool), repo.NewWorkflowRepo(pool), logger)
	if err := store.Load(ctx); err != nil {
		logger.Error("failed to load registry", "error", err)
		os.Exit(1)
	}

	flaunchClient := flaunch.NewClient(flaunch.ConfigFromEnv(), logger)

	var interval time.Duration
	if v := os.Getenv("PRICE_SYNC_INTERVAL"); v != "" {
		interval, err = time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid PRICE_SYNC_INTERVAL", "value", v, "error", err)
			os.Exit(1)
		}
	}

	cronExpr := os.Getenv("PRICE_SYNC_CRON")
	if cronExpr != "" {
		if err := pricing.ValidateCronExpr(cronExpr); err != nil {
			logger.Error("invalid PRICE_SYNC_CRON", "value", cronExpr, "error", err)
			os.Exit(1)
		}
	}

	poller := pricing.New(pricing.Config{
		Source:   flaunchClient,
		Registry: store,
		Logger:   logger,
		Interval: interval,
	})

	// Цикл лидерства: опрос цен запускается только после захвата lock.
	// Advisory lock сессионный, поэтому соединение закрепляется за
	// лидером на всё время работы: вернись оно в пул, lock мог бы
	// уйти вместе с ним.
	go func() {
		tk := time.NewTicker(1 * time.Second)
		defer tk.Stop()

		var lockConn *pgxpool.Conn
		defer func() {
			if lockConn != nil {
				_, _ = lockConn.Exec(context.Background(), "select pg_advisory_unlock($1)", priceSyncLockKey)
				lockConn.Release()
			}
		}()

		for {
			select {
			case <-tk.C:
				if lockConn != nil {
					continue
				}

				conn, err := pool.Acquire(ctx)
				if err != nil {
					logger.Warn("leader lock attempt failed", "error", err)
					continue
				}

				var ok bool
				if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", priceSyncLockKey).Scan(&ok); err != nil {
					conn.Release()
					logger.Warn("leader lock attempt failed", "error", err)
					continue
				}
				if !ok {
					// не лидер — пропускаем тик
					conn.Release()
					continue
				}
				lockConn = conn
				logger.Info("became price sync leader")

				if cronExpr != "" {
					if err := poller.StartCron(ctx, cronExpr); err != nil {
						logger.Error("failed to start cron poller", "error", err)
						cancel()
					}
				} else {
					poller.Start(ctx)
				}

			case <-ctx.Done():
				poller.Stop()
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("PRICESYNC_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("bazaar-pricesync stopped")
}
