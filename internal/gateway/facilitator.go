// Package gateway — платный шлюз маркетплейса: проверка платежей через
// внешний x402-facilitator, проксирование на обёрнутые API и HTTP-вызовы
// узлов workflow.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
)

// ErrPaymentInvalid — facilitator отклонил платёж.
var ErrPaymentInvalid = errors.New("payment invalid")

// PaymentRequirements — требования к платежу за один вызов API.
// Возвращаются клиенту в теле 402.
type PaymentRequirements struct {
	// Scheme — схема платежа x402.
	Scheme string `json:"scheme"`

	// Network — сеть расчёта (например, base).
	Network string `json:"network"`

	// Amount — цена вызова в USD, формат "$0.010000".
	Amount string `json:"amount"`

	// PayTo — кошелёк владельца API.
	PayTo string `json:"pay_to"`

	// Asset — актив расчёта.
	Asset string `json:"asset"`

	// Resource — endpoint, к которому запрошен доступ.
	Resource string `json:"resource"`
}

// RequirementsFor строит требования к платежу по текущей цене API.
func RequirementsFor(api *domain.RegisteredAPI, network string) PaymentRequirements {
	return PaymentRequirements{
		Scheme:   "exact",
		Network:  network,
		Amount:   fmt.Sprintf("$%.6f", api.APIPriceUSD()),
		PayTo:    api.WalletAddress,
		Asset:    "USDC",
		Resource: api.Endpoint,
	}
}

// Verifier проверяет платёж по заголовку X-Payment.
type Verifier interface {
	Verify(ctx context.Context, paymentHeader string, req PaymentRequirements) error
}

// Facilitator — клиент внешнего x402-facilitator'а. Криптографическая
// проверка платежа целиком на его стороне.
type Facilitator struct {
	baseURL string
	network string
	httpc   *http.Client
	logger  *slog.Logger
}

// FacilitatorFromEnv создаёт клиент по FACILITATOR_URL и X402_NETWORK.
func FacilitatorFromEnv(logger *slog.Logger) *Facilitator {
	baseURL := os.Getenv("FACILITATOR_URL")
	if baseURL == "" {
		baseURL = "https://x402.org/facilitator"
	}
	network := os.Getenv("X402_NETWORK")
	if network == "" {
		network = "base"
	}
	return NewFacilitator(baseURL, network, logger)
}

// NewFacilitator создаёт клиент facilitator'а.
func NewFacilitator(baseURL, network string, logger *slog.Logger) *Facilitator {
	return &Facilitator{
		baseURL: baseURL,
		network: network,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Network возвращает сеть расчёта facilitator'а.
func (f *Facilitator) Network() string {
	return f.network
}

type verifyRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentHeader       string              `json:"paymentHeader"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

type verifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason"`
}

// Verify отправляет платёж facilitator'у. Возвращает ErrPaymentInvalid
// с причиной, если платёж отклонён.
func (f *Facilitator) Verify(ctx context.Context, paymentHeader string, req PaymentRequirements) error {
	payload, err := json.Marshal(verifyRequest{
		X402Version:         1,
		PaymentHeader:       paymentHeader,
		PaymentRequirements: req,
	})
	if err != nil {
		return fmt.Errorf("marshal verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/verify", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.httpc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("facilitator request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("facilitator: unexpected status %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode verify response: %w", err)
	}

	if !result.IsValid {
		f.logger.Warn("payment rejected",
			"resource", req.Resource, "reason", result.InvalidReason)
		return fmt.Errorf("%w: %s", ErrPaymentInvalid, result.InvalidReason)
	}
	return nil
}
