package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/bazaar/internal/domain"
	"github.com/shaiso/bazaar/internal/engine"
	"github.com/shaiso/bazaar/internal/gateway"
	"github.com/shaiso/bazaar/internal/registry"
	"github.com/shaiso/bazaar/internal/repo"
)

// LaunchService — клиент внешнего launch-сервиса токенов.
type LaunchService interface {
	LaunchToken(ctx context.Context, apiName, walletAddress, startingMarketCap string) (string, error)
}

// Finalizer — ленивая финализация запуска токена из HTTP-обработчиков.
type Finalizer interface {
	FinalizeOnce(ctx context.Context, endpoint, jobID string) (bool, error)
}

// LaunchPublisher — публикация события о запрошенном запуске токена.
type LaunchPublisher interface {
	PublishLaunchRequested(ctx context.Context, endpoint, jobID string) error
}

// RunStore — персистентность запусков workflow.
type RunStore interface {
	Create(ctx context.Context, run *domain.WorkflowRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowRun, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.WorkflowRun, error)
}

// PriceSource — источник котировок токенов.
type PriceSource interface {
	TokenPrice(ctx context.Context, tokenAddress string) (domain.PriceSnapshot, error)
}

// Handler обрабатывает HTTP запросы маркетплейса: admin API
// и платный шлюз к зарегистрированным endpoints.
type Handler struct {
	store     *registry.Store
	runs      RunStore
	launch    LaunchService
	finalizer Finalizer
	publisher LaunchPublisher
	prices    PriceSource
	verifier  gateway.Verifier
	proxy     *gateway.Proxy
	executor  *engine.Executor
	network   string
	logger    *slog.Logger
}

// Config — зависимости Handler.
type Config struct {
	Store     *registry.Store
	Runs      RunStore
	Launch    LaunchService
	Finalizer Finalizer
	Publisher LaunchPublisher
	Prices    PriceSource
	Verifier  gateway.Verifier
	Proxy     *gateway.Proxy
	Invoker   engine.Invoker
	Network   string
	Logger    *slog.Logger
}

// NewHandler создаёт Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		store:     cfg.Store,
		runs:      cfg.Runs,
		launch:    cfg.Launch,
		finalizer: cfg.Finalizer,
		publisher: cfg.Publisher,
		prices:    cfg.Prices,
		verifier:  cfg.Verifier,
		proxy:     cfg.Proxy,
		executor:  engine.NewExecutor(cfg.Store, cfg.Invoker, cfg.Logger),
		network:   cfg.Network,
		logger:    cfg.Logger,
	}
}
