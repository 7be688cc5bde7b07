// Bazaar Launcher — доводит запуск токенов до конца.
//
// Launcher:
//   - Получает события launch.requested из RabbitMQ
//   - Опрашивает launch-сервис до готовности токена
//   - Финализирует запись API (DEPLOYED + адрес токена)
//   - Подтягивает первую котировку токена
//
// Незавершённые запуски возвращаются в очередь и будут
// дообработаны следующей попыткой.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/bazaar/internal/flaunch"
	"github.com/shaiso/bazaar/internal/launcher"
	"github.com/shaiso/bazaar/internal/mq"
	"github.com/shaiso/bazaar/internal/registry"
	"github.com/shaiso/bazaar/internal/repo"
	"github.com/shaiso/bazaar/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting bazaar-launcher")

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

	// Реестр APIs поверх Postgres
	store := registry.NewStore(repo.NewAPIRepo(pool), repo.NewWorkflowRepo(pool), logger)
	if err := store.Load(ctx); err != nil {
		logger.Error("failed to load registry", "error", err)
		os.Exit(1)
	}

	// Клиент launch-сервиса
	flaunchClient := flaunch.NewClient(flaunch.ConfigFromEnv(), logger)

	// RabbitMQ: без очереди launcher бесполезен
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	l := launcher.New(launcher.Config{
		Registry: store,
		Service:  flaunchClient,
		Logger:   logger,
	})

	consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
		Queue:    mq.QueueLaunchRequested,
		Handler:  l.HandleDelivery,
		Prefetch: 4,
	})

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("consumer stopped", "error", err)
			cancel()
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("LAUNCHER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("bazaar-launcher stopped")
}
