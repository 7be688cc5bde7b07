// Package flaunch — клиент внешнего launch-сервиса Flaunch:
// запуск токена, проверка статуса запуска и котировки с Data API.
package flaunch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
)

const (
	defaultBaseURL = "https://web2-api.flaunch.gg/api/v1"
	defaultDataURL = "https://dev-api.flayerlabs.xyz/v1"
	defaultNetwork = "base"

	// DefaultStartingMarketCap — стартовая капитализация в wei
	// (1M wei ~ $1 USD).
	DefaultStartingMarketCap = "1000000"

	// tokenImageHash — IPFS-хэш картинки токена.
	tokenImageHash = "QmX7UbPKJ7Drci3y6p6E8oi5TpUiG7NH3qSzcohPX9Xkvo"
)

// ErrLaunchPending — запуск токена ещё не завершён.
var ErrLaunchPending = errors.New("token launch pending")

// ErrLaunchFailed — launch-сервис отклонил запуск.
var ErrLaunchFailed = errors.New("token launch failed")

// Config — параметры подключения к Flaunch.
type Config struct {
	BaseURL string // launch API
	DataURL string // data API (котировки)
	Network string // например, base или base-sepolia
}

// ConfigFromEnv читает конфигурацию из переменных окружения,
// подставляя значения по умолчанию.
func ConfigFromEnv() Config {
	cfg := Config{
		BaseURL: os.Getenv("FLAUNCH_BASE_URL"),
		DataURL: os.Getenv("FLAUNCH_DATA_URL"),
		Network: os.Getenv("FLAUNCH_NETWORK"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.DataURL == "" {
		cfg.DataURL = defaultDataURL
	}
	if cfg.Network == "" {
		cfg.Network = defaultNetwork
	}
	return cfg
}

// Client — HTTP-клиент Flaunch.
type Client struct {
	cfg    Config
	httpc  *http.Client
	logger *slog.Logger
}

// NewClient создаёт клиент с таймаутом на все вызовы.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// launchRequest — тело запроса launch-memecoin.
type launchRequest struct {
	Name               string `json:"name"`
	Symbol             string `json:"symbol"`
	Description        string `json:"description"`
	ImageIpfs          string `json:"imageIpfs"`
	CreatorAddress     string `json:"creatorAddress"`
	MarketCap          string `json:"marketCap"`
	CreatorFeeSplit    string `json:"creatorFeeSplit"`
	FairLaunchDuration string `json:"fairLaunchDuration"`
	SniperProtection   bool   `json:"sniperProtection"`
}

type launchResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Error   string `json:"error"`
}

// LaunchToken ставит запуск токена для API в очередь launch-сервиса
// и возвращает ID задачи.
func (c *Client) LaunchToken(ctx context.Context, apiName, walletAddress, startingMarketCap string) (string, error) {
	symbol := domain.TokenSymbol(apiName)
	if startingMarketCap == "" {
		startingMarketCap = DefaultStartingMarketCap
	}

	reqBody := launchRequest{
		Name:               apiName + " Token",
		Symbol:             symbol,
		Description:        fmt.Sprintf("Pay with %s to access %s. Token price = API access cost.", symbol, apiName),
		ImageIpfs:          tokenImageHash,
		CreatorAddress:     walletAddress,
		MarketCap:          startingMarketCap,
		CreatorFeeSplit:    "8000",
		FairLaunchDuration: "0",
		SniperProtection:   true,
	}

	var result launchResponse
	url := fmt.Sprintf("%s/%s/launch-memecoin", c.cfg.BaseURL, c.cfg.Network)
	if err := c.postJSON(ctx, url, reqBody, &result); err != nil {
		return "", err
	}
	if !result.Success {
		c.logger.Warn("token launch rejected", "api", apiName, "error", result.Error)
		return "", fmt.Errorf("%w: %s", ErrLaunchFailed, result.Error)
	}

	c.logger.Info("token launch queued", "api", apiName, "symbol", symbol, "job_id", result.JobID)
	return result.JobID, nil
}

type launchStatusResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	CollectionToken struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		TokenURI string `json:"tokenURI"`
	} `json:"collectionToken"`
}

// LaunchStatus проверяет завершение запуска. Возвращает ErrLaunchPending,
// пока токен не задеплоен on-chain.
func (c *Client) LaunchStatus(ctx context.Context, jobID string) (domain.TokenInfo, error) {
	var result launchStatusResponse
	url := fmt.Sprintf("%s/launch-status/%s", c.cfg.BaseURL, jobID)
	if err := c.getJSON(ctx, url, &result); err != nil {
		return domain.TokenInfo{}, err
	}

	if !result.Success || result.CollectionToken.Address == "" {
		return domain.TokenInfo{}, ErrLaunchPending
	}

	return domain.TokenInfo{
		JobID:        jobID,
		Address:      result.CollectionToken.Address,
		Symbol:       result.CollectionToken.Symbol,
		TokenURI:     result.CollectionToken.TokenURI,
		TxHash:       result.TransactionHash,
		LaunchpadURL: LaunchpadURL(c.cfg.Network, result.CollectionToken.Address),
	}, nil
}

// LaunchpadURL строит ссылку на страницу токена на launchpad.
func LaunchpadURL(network, tokenAddress string) string {
	return fmt.Sprintf("https://flaunch.gg/%s/coin/%s", network, tokenAddress)
}

// tokenPriceResponse — ответ Data API. Числовые поля приходят
// то числом, то строкой.
type tokenPriceResponse struct {
	Price struct {
		PriceUSDC usdcAmount `json:"priceUSDC"`
	} `json:"price"`
	Volume struct {
		VolumeUSDC24h usdcAmount `json:"volumeUSDC24h"`
		VolumeUSDC7d  usdcAmount `json:"volumeUSDC7d"`
	} `json:"volume"`
}

// TokenPrice возвращает актуальные котировки токена с Data API.
func (c *Client) TokenPrice(ctx context.Context, tokenAddress string) (domain.PriceSnapshot, error) {
	var result tokenPriceResponse
	url := fmt.Sprintf("%s/%s/tokens/%s/price", c.cfg.DataURL, c.cfg.Network, tokenAddress)
	if err := c.getJSON(ctx, url, &result); err != nil {
		return domain.PriceSnapshot{}, err
	}

	return domain.PriceSnapshot{
		TokenPriceUSD: float64(result.Price.PriceUSDC),
		Volume24hUSD:  float64(result.Volume.VolumeUSDC24h),
		Volume7dUSD:   float64(result.Volume.VolumeUSDC7d),
		FetchedAt:     time.Now(),
	}, nil
}

// --- HTTP helpers ---

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("flaunch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("flaunch: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode flaunch response: %w", err)
	}
	return nil
}

// usdcAmount декодирует число из JSON number или строки.
type usdcAmount float64

func (a *usdcAmount) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*a = 0
		return nil
	}
	s := string(data)
	if s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	if s == "" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse usdc amount %q: %w", s, err)
	}
	*a = usdcAmount(v)
	return nil
}
