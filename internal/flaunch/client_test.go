package flaunch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(baseURL, dataURL string) *Client {
	return NewClient(Config{
		BaseURL: baseURL,
		DataURL: dataURL,
		Network: "base",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLaunchToken(t *testing.T) {
	var gotBody launchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/base/launch-memecoin" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "jobId": "job-42"})
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	jobID, err := client.LaunchToken(context.Background(), "Weather", "0xwallet", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if jobID != "job-42" {
		t.Errorf("expected job-42, got %s", jobID)
	}
	// Тикер — первые 3 буквы имени + API
	if gotBody.Symbol != "WEAAPI" {
		t.Errorf("expected symbol WEAAPI, got %s", gotBody.Symbol)
	}
	if gotBody.Name != "Weather Token" {
		t.Errorf("expected Weather Token, got %s", gotBody.Name)
	}
	if gotBody.CreatorAddress != "0xwallet" {
		t.Errorf("expected creator 0xwallet, got %s", gotBody.CreatorAddress)
	}
	// Пустая капитализация заменяется значением по умолчанию
	if gotBody.MarketCap != DefaultStartingMarketCap {
		t.Errorf("expected default market cap, got %s", gotBody.MarketCap)
	}
}

func TestLaunchToken_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "invalid wallet"})
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	_, err := client.LaunchToken(context.Background(), "Weather", "bad", "")
	if !errors.Is(err, ErrLaunchFailed) {
		t.Errorf("expected ErrLaunchFailed, got %v", err)
	}
}

func TestLaunchStatus_Deployed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/launch-status/job-42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"transactionHash": "0xdeadbeef",
			"collectionToken": map[string]any{
				"address":  "0xtoken",
				"symbol":   "WEAAPI",
				"tokenURI": "ipfs://meta",
			},
		})
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	token, err := client.LaunchStatus(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if token.Address != "0xtoken" {
		t.Errorf("expected 0xtoken, got %s", token.Address)
	}
	if token.Symbol != "WEAAPI" {
		t.Errorf("expected WEAAPI, got %s", token.Symbol)
	}
	if token.TxHash != "0xdeadbeef" {
		t.Errorf("expected 0xdeadbeef, got %s", token.TxHash)
	}
	if token.JobID != "job-42" {
		t.Errorf("expected job-42, got %s", token.JobID)
	}
	if token.LaunchpadURL != "https://flaunch.gg/base/coin/0xtoken" {
		t.Errorf("unexpected launchpad URL: %s", token.LaunchpadURL)
	}
}

func TestLaunchStatus_Pending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Запуск ещё в очереди: success, но без адреса токена
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	_, err := client.LaunchStatus(context.Background(), "job-42")
	if !errors.Is(err, ErrLaunchPending) {
		t.Errorf("expected ErrLaunchPending, got %v", err)
	}
}

func TestTokenPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/base/tokens/0xtoken/price" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		// Data API отдаёт числа строками
		json.NewEncoder(w).Encode(map[string]any{
			"price":  map[string]any{"priceUSDC": "0.00000123"},
			"volume": map[string]any{"volumeUSDC24h": 456.7, "volumeUSDC7d": "890.1"},
		})
	}))
	defer server.Close()

	client := testClient("", server.URL)
	price, err := client.TokenPrice(context.Background(), "0xtoken")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if price.TokenPriceUSD != 0.00000123 {
		t.Errorf("expected 0.00000123, got %v", price.TokenPriceUSD)
	}
	if price.Volume24hUSD != 456.7 {
		t.Errorf("expected 456.7, got %v", price.Volume24hUSD)
	}
	if price.Volume7dUSD != 890.1 {
		t.Errorf("expected 890.1, got %v", price.Volume7dUSD)
	}
	if price.FetchedAt.IsZero() {
		t.Error("FetchedAt should be set")
	}
}

func TestTokenPrice_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient("", server.URL)
	if _, err := client.TokenPrice(context.Background(), "0xtoken"); err == nil {
		t.Error("expected error on 502")
	}
}
