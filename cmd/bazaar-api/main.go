// Bazaar API — HTTP-сервер маркетплейса: admin API для регистрации
// APIs и деплоя workflows плюс платный x402-шлюз к зарегистрированным
// endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/bazaar/internal/api"
	"github.com/shaiso/bazaar/internal/flaunch"
	"github.com/shaiso/bazaar/internal/gateway"
	"github.com/shaiso/bazaar/internal/launcher"
	"github.com/shaiso/bazaar/internal/mq"
	"github.com/shaiso/bazaar/internal/registry"
	"github.com/shaiso/bazaar/internal/repo"
	"github.com/shaiso/bazaar/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazaar_api_http_requests_total",
		Help: "Total HTTP requests handled by bazaar_api",
	})
)

func main() {
	// .env опционален: в контейнере переменные приходят из окружения
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting bazaar-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Реестр APIs и workflows поверх Postgres
	store := registry.NewStore(repo.NewAPIRepo(pool), repo.NewWorkflowRepo(pool), logger)
	if err := store.Load(context.Background()); err != nil {
		logger.Error("failed to load registry", "error", err)
		os.Exit(1)
	}

	// Клиент launch-сервиса токенов
	flaunchCfg := flaunch.ConfigFromEnv()
	flaunchClient := flaunch.NewClient(flaunchCfg, logger)

	// Предзагрузка маршрутов с уже задеплоенными токенами
	if path := os.Getenv("PRELOAD_ROUTES"); path != "" {
		if _, err := store.SeedFromFile(context.Background(), path, flaunchCfg.Network); err != nil {
			logger.Error("failed to seed routes", "error", err)
			os.Exit(1)
		}
	}

	// RabbitMQ: при недоступности работаем без событий запуска,
	// финализацию закрывает ленивая проверка статуса
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, launch events disabled", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	facilitator := gateway.FacilitatorFromEnv(logger)

	// Финализатор для ленивой проверки статуса запуска
	lazyLauncher := launcher.New(launcher.Config{
		Registry: store,
		Service:  flaunchClient,
		Logger:   logger,
	})

	handlerCfg := api.Config{
		Store:     store,
		Runs:      repo.NewRunRepo(pool),
		Launch:    flaunchClient,
		Finalizer: lazyLauncher,
		Prices:    flaunchClient,
		Verifier:  facilitator,
		Proxy:     gateway.NewProxy(0, logger),
		Invoker:   gateway.NewHTTPInvoker(0),
		Network:   facilitator.Network(),
		Logger:    logger,
	}
	if publisher != nil {
		handlerCfg.Publisher = publisher
	}
	handler := api.NewHandler(handlerCfg)

	mux := http.NewServeMux()

	// Health и metrics: с явным методом, иначе конфликт с catch-all шлюза
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
