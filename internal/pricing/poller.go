// Package pricing — фоновая синхронизация цен токенов: периодически
// обновляет кэшированные снапшоты котировок всех задеплоенных API.
package pricing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
)

// DefaultInterval — период опроса котировок по умолчанию.
const DefaultInterval = 30 * time.Second

// PriceSource отдаёт актуальные котировки токена.
// Реализуется flaunch-клиентом.
type PriceSource interface {
	TokenPrice(ctx context.Context, tokenAddress string) (domain.PriceSnapshot, error)
}

// Registry — реестр API, чьи снапшоты обновляет poller.
// DeployedAPIs обязан читать персистентное хранилище: poller живёт в
// отдельном процессе и без этого не увидел бы API, задеплоенные после
// его старта.
type Registry interface {
	DeployedAPIs(ctx context.Context) ([]domain.RegisteredAPI, error)
	UpdatePrice(ctx context.Context, endpoint string, price domain.PriceSnapshot) error
}

// Poller периодически обновляет ценовые снапшоты.
//
// Неудачный fetch по одному API не трогает его прежний снапшот
// и не мешает обновлению остальных.
type Poller struct {
	source   PriceSource
	registry Registry
	logger   *slog.Logger
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config — конфигурация poller'а.
type Config struct {
	Source   PriceSource
	Registry Registry
	Logger   *slog.Logger
	Interval time.Duration // default: DefaultInterval
}

// New создаёт новый Poller.
func New(cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		source:   cfg.Source,
		registry: cfg.Registry,
		logger:   cfg.Logger,
		interval: interval,
	}
}

// Start запускает фоновый цикл опроса. Первый проход выполняется сразу.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.SyncOnce(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.SyncOnce(ctx)
			}
		}
	}()

	p.logger.Info("price poller started", "interval", p.interval)
}

// Stop останавливает цикл и дожидается завершения текущего прохода.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("price poller stopped")
}

// SyncOnce делает один проход: обновляет снапшоты всех API
// с задеплоенным токеном.
func (p *Poller) SyncOnce(ctx context.Context) {
	apis, err := p.registry.DeployedAPIs(ctx)
	if err != nil {
		// Прежние снапшоты остаются в силе до следующего тика
		p.logger.Error("list deployed apis failed", "error", err)
		return
	}

	var updated, failed int
	for _, api := range apis {
		if api.Token.Address == "" {
			continue
		}

		price, err := p.source.TokenPrice(ctx, api.Token.Address)
		if err != nil {
			// Прежний снапшот остаётся в силе до следующего тика
			p.logger.Warn("price fetch failed",
				"endpoint", api.Endpoint, "token", api.Token.Address, "error", err)
			failed++
			continue
		}

		if err := p.registry.UpdatePrice(ctx, api.Endpoint, price); err != nil {
			p.logger.Warn("price update failed", "endpoint", api.Endpoint, "error", err)
			failed++
			continue
		}

		p.logger.Debug("price updated",
			"endpoint", api.Endpoint,
			"token_price_usd", price.TokenPriceUSD,
			"volume_24h_usd", price.Volume24hUSD,
		)
		updated++
	}

	if updated > 0 || failed > 0 {
		p.logger.Info("price sync completed", "updated", updated, "failed", failed)
	}
}
