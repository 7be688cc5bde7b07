package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shaiso/bazaar/internal/domain"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestSeedFromFile(t *testing.T) {
	store, apiRepo, _ := newTestStore()

	path := writeSeedFile(t, `[
		{
			"name": "Weather API",
			"endpoint": "weather",
			"target_url": "https://api.example.com/weather",
			"wallet_address": "0xabc",
			"token_address": "0xtoken"
		},
		{
			"name": "Report API",
			"endpoint": "/report",
			"target_url": "https://api.example.com/report",
			"method": "post",
			"wallet_address": "0xdef",
			"token_address": "0xother",
			"symbol": "REPX",
			"launchpad_url": "https://flaunch.gg/custom",
			"price_multiplier": 5000
		}
	]`)

	seeded, err := store.SeedFromFile(context.Background(), path, "base")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeded != 2 {
		t.Fatalf("expected 2 seeded routes, got %d", seeded)
	}

	weather, ok := store.ResolveEndpoint("/weather")
	if !ok {
		t.Fatal("expected /weather in registry")
	}
	if !weather.IsDeployed() {
		t.Errorf("expected DEPLOYED status, got %s", weather.Status)
	}
	if weather.Method != "GET" {
		t.Errorf("expected default GET, got %s", weather.Method)
	}
	if weather.Token.Symbol != "WEAAPI" {
		t.Errorf("expected default symbol WEAAPI, got %s", weather.Token.Symbol)
	}
	if weather.Token.LaunchpadURL != "https://flaunch.gg/base/coin/0xtoken" {
		t.Errorf("unexpected launchpad URL: %s", weather.Token.LaunchpadURL)
	}
	if weather.PriceMultiplier != domain.DefaultPriceMultiplier {
		t.Errorf("expected default multiplier, got %v", weather.PriceMultiplier)
	}

	report, ok := store.ResolveEndpoint("/report")
	if !ok {
		t.Fatal("expected /report in registry")
	}
	if report.Method != "POST" {
		t.Errorf("expected POST, got %s", report.Method)
	}
	if report.Token.Symbol != "REPX" {
		t.Errorf("expected REPX, got %s", report.Token.Symbol)
	}
	if report.Token.LaunchpadURL != "https://flaunch.gg/custom" {
		t.Errorf("unexpected launchpad URL: %s", report.Token.LaunchpadURL)
	}
	if report.PriceMultiplier != 5000 {
		t.Errorf("expected multiplier 5000, got %v", report.PriceMultiplier)
	}

	// Записи ушли и в персистентное хранилище
	if len(apiRepo.apis) != 2 {
		t.Errorf("expected 2 apis in repo, got %d", len(apiRepo.apis))
	}
}

func TestSeedFromFile_SkipsInvalidAndDuplicate(t *testing.T) {
	store, _, _ := newTestStore()

	existing := &domain.RegisteredAPI{
		Endpoint: "/weather",
		Name:     "Weather API",
		Kind:     domain.APIKindProxy,
		Status:   domain.APIStatusDeployed,
	}
	if err := store.Register(context.Background(), existing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := writeSeedFile(t, `[
		{
			"name": "Weather API",
			"endpoint": "/weather",
			"target_url": "https://api.example.com/weather",
			"wallet_address": "0xabc",
			"token_address": "0xtoken"
		},
		{
			"name": "No Token API",
			"endpoint": "/no-token",
			"target_url": "https://api.example.com/no-token",
			"wallet_address": "0xabc"
		},
		{
			"name": "Valid API",
			"endpoint": "/valid",
			"target_url": "https://api.example.com/valid",
			"wallet_address": "0xabc",
			"token_address": "0xvalid"
		}
	]`)

	seeded, err := store.SeedFromFile(context.Background(), path, "base")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeded != 1 {
		t.Fatalf("expected 1 seeded route, got %d", seeded)
	}
	if _, ok := store.ResolveEndpoint("/valid"); !ok {
		t.Error("expected /valid in registry")
	}
	if _, ok := store.ResolveEndpoint("/no-token"); ok {
		t.Error("route without token_address must be skipped")
	}
}

func TestSeedFromFile_MissingFile(t *testing.T) {
	store, _, _ := newTestStore()

	seeded, err := store.SeedFromFile(context.Background(), "/nonexistent/routes.json", "base")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seeded != 0 {
		t.Errorf("expected 0 seeded routes, got %d", seeded)
	}
}

func TestSeedFromFile_MalformedJSON(t *testing.T) {
	store, _, _ := newTestStore()

	path := writeSeedFile(t, `{"not": "an array"`)
	if _, err := store.SeedFromFile(context.Background(), path, "base"); err == nil {
		t.Fatal("expected error for malformed seed file")
	}
}
