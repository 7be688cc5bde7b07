// Package launcher финализирует запуск токенов: потребляет задачи из
// очереди launch.requested, опрашивает launch-сервис и переводит API
// в DEPLOYED, когда токен задеплоен on-chain.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
	"github.com/shaiso/bazaar/internal/flaunch"
	"github.com/shaiso/bazaar/internal/mq"
	"github.com/shaiso/bazaar/internal/repo"
)

const (
	// DefaultPollInterval — пауза между проверками статуса запуска.
	DefaultPollInterval = 2 * time.Second

	// DefaultPollBudget — бюджет ожидания деплоя в рамках одной задачи.
	// По исчерпании задача возвращается в очередь.
	DefaultPollBudget = 60 * time.Second
)

// Registry — часть реестра, нужная launcher'у. Lookup обязан ходить
// в БД при промахе кэша: задачи приходят из очереди для API,
// зарегистрированных другим процессом.
type Registry interface {
	Lookup(ctx context.Context, endpoint string) (*domain.RegisteredAPI, error)
	Finalize(ctx context.Context, endpoint string, token domain.TokenInfo) error
	UpdatePrice(ctx context.Context, endpoint string, price domain.PriceSnapshot) error
}

// LaunchService — внешний launch-сервис.
type LaunchService interface {
	LaunchStatus(ctx context.Context, jobID string) (domain.TokenInfo, error)
	TokenPrice(ctx context.Context, tokenAddress string) (domain.PriceSnapshot, error)
}

// Launcher — обработчик задач финализации запуска.
type Launcher struct {
	registry     Registry
	service      LaunchService
	logger       *slog.Logger
	pollInterval time.Duration
	pollBudget   time.Duration
}

// Config — конфигурация Launcher.
type Config struct {
	Registry     Registry
	Service      LaunchService
	Logger       *slog.Logger
	PollInterval time.Duration // default: DefaultPollInterval
	PollBudget   time.Duration // default: DefaultPollBudget
}

// New создаёт новый Launcher.
func New(cfg Config) *Launcher {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	pollBudget := cfg.PollBudget
	if pollBudget <= 0 {
		pollBudget = DefaultPollBudget
	}
	return &Launcher{
		registry:     cfg.Registry,
		service:      cfg.Service,
		logger:       cfg.Logger,
		pollInterval: pollInterval,
		pollBudget:   pollBudget,
	}
}

// HandleDelivery — mq.Handler для очереди launch.requested.
//
// Незавершённый за бюджет запуск возвращается в очередь; задача
// по несуществующему endpoint уходит в DLQ.
func (l *Launcher) HandleDelivery(ctx context.Context, d *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.LaunchRequestedPayload](&d.Message)
	if err != nil {
		d.Nack(false)
		return fmt.Errorf("parse launch payload: %w", err)
	}

	logger := l.logger.With("endpoint", payload.Endpoint, "job_id", payload.JobID)

	err = l.FinalizeJob(ctx, payload.Endpoint, payload.JobID)
	switch {
	case err == nil:
		d.Ack()
		return nil
	case errors.Is(err, flaunch.ErrLaunchPending):
		logger.Info("launch still pending, requeueing")
		d.Nack(true)
		return nil
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, repo.ErrInvalidState):
		logger.Warn("launch job is stale, dropping", "error", err)
		d.Nack(false)
		return err
	default:
		logger.Error("finalize failed, requeueing", "error", err)
		d.Nack(true)
		return err
	}
}

// FinalizeJob опрашивает статус запуска в пределах бюджета и финализирует
// API при успешном деплое. Возвращает flaunch.ErrLaunchPending, если
// бюджет исчерпан, а токен всё ещё не задеплоен.
func (l *Launcher) FinalizeJob(ctx context.Context, endpoint, jobID string) error {
	deadline := time.Now().Add(l.pollBudget)

	for {
		done, err := l.FinalizeOnce(ctx, endpoint, jobID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if time.Now().After(deadline) {
			return flaunch.ErrLaunchPending
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

// FinalizeOnce делает одну проверку статуса запуска. Возвращает true,
// если API финализирован (или уже был задеплоен ранее).
//
// Используется и launcher'ом в цикле, и шлюзом для ленивой финализации
// при чтении статуса.
func (l *Launcher) FinalizeOnce(ctx context.Context, endpoint, jobID string) (bool, error) {
	api, err := l.registry.Lookup(ctx, endpoint)
	if err != nil {
		return false, fmt.Errorf("endpoint %q: %w", endpoint, err)
	}
	if api.IsDeployed() {
		return true, nil
	}
	if jobID == "" {
		jobID = api.Token.JobID
	}
	if jobID == "" {
		return false, fmt.Errorf("endpoint %q has no launch job: %w", endpoint, repo.ErrInvalidState)
	}

	token, err := l.service.LaunchStatus(ctx, jobID)
	if errors.Is(err, flaunch.ErrLaunchPending) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check launch status: %w", err)
	}

	// Сохраняем стартовую капитализацию из исходной регистрации
	token.StartingMarketCap = api.Token.StartingMarketCap

	if err := l.registry.Finalize(ctx, endpoint, token); err != nil {
		return false, err
	}

	l.logger.Info("token deployed",
		"endpoint", endpoint,
		"token_address", token.Address,
		"symbol", token.Symbol,
		"tx_hash", token.TxHash,
	)

	// Первичный снапшот котировок. Неудача не откатывает деплой:
	// до первого успешного fetch действует цена по умолчанию.
	price, err := l.service.TokenPrice(ctx, token.Address)
	if err != nil {
		l.logger.Warn("initial price fetch failed",
			"endpoint", endpoint, "token_address", token.Address, "error", err)
		return true, nil
	}
	if err := l.registry.UpdatePrice(ctx, endpoint, price); err != nil {
		l.logger.Warn("initial price update failed", "endpoint", endpoint, "error", err)
	}

	return true, nil
}
