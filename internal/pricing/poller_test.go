package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
)

// fakeSource — источник котировок для тестов.
type fakeSource struct {
	prices map[string]domain.PriceSnapshot
	errs   map[string]error
	calls  map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		prices: make(map[string]domain.PriceSnapshot),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *fakeSource) TokenPrice(_ context.Context, addr string) (domain.PriceSnapshot, error) {
	f.calls[addr]++
	if err := f.errs[addr]; err != nil {
		return domain.PriceSnapshot{}, err
	}
	return f.prices[addr], nil
}

// fakeRegistry — реестр для тестов. Как и настоящий Store, отдаёт
// из DeployedAPIs только DEPLOYED записи.
type fakeRegistry struct {
	apis    map[string]domain.RegisteredAPI
	listErr error
}

func (f *fakeRegistry) DeployedAPIs(_ context.Context) ([]domain.RegisteredAPI, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.RegisteredAPI
	for _, api := range f.apis {
		if api.IsDeployed() {
			out = append(out, api)
		}
	}
	return out, nil
}

func (f *fakeRegistry) UpdatePrice(_ context.Context, endpoint string, price domain.PriceSnapshot) error {
	api, ok := f.apis[endpoint]
	if !ok {
		return errors.New("not found")
	}
	api.Price = price
	f.apis[endpoint] = api
	return nil
}

func newTestPoller(reg *fakeRegistry, src *fakeSource) *Poller {
	return New(Config{
		Source:   src,
		Registry: reg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestSyncOnce_UpdatesDeployedAPIs(t *testing.T) {
	reg := &fakeRegistry{apis: map[string]domain.RegisteredAPI{
		"/deployed": {
			Endpoint: "/deployed",
			Status:   domain.APIStatusDeployed,
			Token:    domain.TokenInfo{Address: "0xaaa"},
		},
		"/launching": {
			Endpoint: "/launching",
			Status:   domain.APIStatusLaunching,
			Token:    domain.TokenInfo{JobID: "job-1"},
		},
	}}

	src := newFakeSource()
	src.prices["0xaaa"] = domain.PriceSnapshot{TokenPriceUSD: 0.000002, FetchedAt: time.Now()}

	newTestPoller(reg, src).SyncOnce(context.Background())

	if reg.apis["/deployed"].Price.TokenPriceUSD != 0.000002 {
		t.Errorf("deployed api price should be updated, got %v", reg.apis["/deployed"].Price.TokenPriceUSD)
	}
	// API без задеплоенного токена не опрашивается
	if src.calls["0xaaa"] != 1 {
		t.Errorf("expected 1 call for deployed token, got %d", src.calls["0xaaa"])
	}
	if len(src.calls) != 1 {
		t.Errorf("launching api should not be polled, calls: %v", src.calls)
	}
}

func TestSyncOnce_FetchFailureKeepsPriorSnapshot(t *testing.T) {
	prior := domain.PriceSnapshot{TokenPriceUSD: 0.000009, Volume24hUSD: 100}
	reg := &fakeRegistry{apis: map[string]domain.RegisteredAPI{
		"/data": {
			Endpoint: "/data",
			Status:   domain.APIStatusDeployed,
			Token:    domain.TokenInfo{Address: "0xbbb"},
			Price:    prior,
		},
	}}

	src := newFakeSource()
	src.errs["0xbbb"] = errors.New("data api down")

	newTestPoller(reg, src).SyncOnce(context.Background())

	// Неудачный fetch не затирает прежний снапшот
	if reg.apis["/data"].Price != prior {
		t.Errorf("prior snapshot should survive fetch failure, got %+v", reg.apis["/data"].Price)
	}
}

func TestSyncOnce_OneFailureDoesNotBlockOthers(t *testing.T) {
	reg := &fakeRegistry{apis: map[string]domain.RegisteredAPI{
		"/bad": {
			Endpoint: "/bad",
			Status:   domain.APIStatusDeployed,
			Token:    domain.TokenInfo{Address: "0xbad"},
		},
		"/good": {
			Endpoint: "/good",
			Status:   domain.APIStatusDeployed,
			Token:    domain.TokenInfo{Address: "0xgood"},
		},
	}}

	src := newFakeSource()
	src.errs["0xbad"] = errors.New("boom")
	src.prices["0xgood"] = domain.PriceSnapshot{TokenPriceUSD: 0.000003}

	newTestPoller(reg, src).SyncOnce(context.Background())

	if reg.apis["/good"].Price.TokenPriceUSD != 0.000003 {
		t.Errorf("good api should be updated despite bad api failure, got %v",
			reg.apis["/good"].Price.TokenPriceUSD)
	}
}

func TestSyncOnce_ListFailureSkipsPass(t *testing.T) {
	reg := &fakeRegistry{listErr: errors.New("db down")}
	src := newFakeSource()

	newTestPoller(reg, src).SyncOnce(context.Background())

	// Без списка API источник котировок не трогаем
	if len(src.calls) != 0 {
		t.Errorf("expected no price fetches, calls: %v", src.calls)
	}
}

func TestStartStop(t *testing.T) {
	reg := &fakeRegistry{apis: map[string]domain.RegisteredAPI{
		"/data": {
			Endpoint: "/data",
			Status:   domain.APIStatusDeployed,
			Token:    domain.TokenInfo{Address: "0xccc"},
		},
	}}
	src := newFakeSource()
	src.prices["0xccc"] = domain.PriceSnapshot{TokenPriceUSD: 0.000001}

	p := New(Config{
		Source:   src,
		Registry: reg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Interval: time.Hour, // первый проход сразу, следующий нескоро
	})

	p.Start(context.Background())
	p.Stop()

	// Первый проход случился при старте
	if src.calls["0xccc"] == 0 {
		t.Error("expected at least one sync pass on start")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/5 * * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("invalid expression accepted")
	}
}
