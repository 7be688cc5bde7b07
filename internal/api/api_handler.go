package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
	"github.com/shaiso/bazaar/internal/flaunch"
	"github.com/shaiso/bazaar/internal/repo"
)

// RegisterAPI обрабатывает POST /admin/apis.
//
// Регистрация синхронно инициирует запуск токена на launch-сервисе:
// без job id запись не создаётся. Финализацию запуска доводит
// launcher по событию из очереди.
func (h *Handler) RegisterAPI(w http.ResponseWriter, r *http.Request) {
	var req RegisterAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.Endpoint == "" {
		BadRequest(w, "endpoint is required")
		return
	}
	if req.TargetURL == "" {
		BadRequest(w, "target_url is required")
		return
	}
	if req.WalletAddress == "" {
		BadRequest(w, "wallet_address is required")
		return
	}

	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if !domain.IsValidMethod(req.Method) {
		BadRequest(w, fmt.Sprintf("unsupported method: %s", req.Method))
		return
	}

	target, err := url.Parse(req.TargetURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		BadRequest(w, "target_url must be an http(s) URL")
		return
	}

	// Дубликат проверяем до запуска токена: повторная регистрация
	// не должна стоить лишнего launch-job
	endpoint := domain.NormalizeEndpoint(req.Endpoint)
	if _, err := h.store.Lookup(r.Context(), endpoint); err == nil {
		Conflict(w, fmt.Sprintf("endpoint already registered: %s", endpoint))
		return
	} else if !errors.Is(err, repo.ErrNotFound) {
		InternalError(w, h.logger, err)
		return
	}

	marketCap := req.StartingMarketCap
	if marketCap == "" {
		marketCap = flaunch.DefaultStartingMarketCap
	}

	jobID, err := h.launch.LaunchToken(r.Context(), req.Name, req.WalletAddress, marketCap)
	if err != nil {
		h.logger.Error("token launch failed", "endpoint", endpoint, "error", err)
		Error(w, http.StatusInternalServerError, ErrCodeInternalError, "token launch failed")
		return
	}

	multiplier := req.PriceMultiplier
	if multiplier <= 0 {
		multiplier = domain.DefaultPriceMultiplier
	}

	api := &domain.RegisteredAPI{
		Endpoint:        endpoint,
		Name:            req.Name,
		TargetURL:       req.TargetURL,
		Method:          req.Method,
		WalletAddress:   req.WalletAddress,
		Description:     req.Description,
		Kind:            domain.APIKindProxy,
		Status:          domain.APIStatusLaunching,
		InputSchema:     req.InputSchema,
		OutputSchema:    req.OutputSchema,
		PriceMultiplier: multiplier,
		Token: domain.TokenInfo{
			JobID:             jobID,
			Symbol:            domain.TokenSymbol(req.Name),
			StartingMarketCap: marketCap,
		},
		CreatedAt: time.Now(),
	}

	if err := h.store.Register(r.Context(), api); err != nil {
		HandleRepoError(w, h.logger, err, "API not found")
		return
	}

	// Потеря события не фатальна: финализацию доведёт ленивая
	// проверка статуса при первом обращении к endpoint.
	if h.publisher != nil {
		if err := h.publisher.PublishLaunchRequested(r.Context(), endpoint, jobID); err != nil {
			h.logger.Warn("failed to publish launch event", "endpoint", endpoint, "error", err)
		}
	}

	h.logger.Info("API registered", "endpoint", endpoint, "job_id", jobID)
	Created(w, APIResponseFromDomain(api))
}

// ListAPIs обрабатывает GET /admin/apis.
func (h *Handler) ListAPIs(w http.ResponseWriter, r *http.Request) {
	apis := h.store.List()

	resp := make([]APIResponse, 0, len(apis))
	for i := range apis {
		resp = append(resp, APIResponseFromDomain(&apis[i]))
	}
	List(w, resp, len(resp))
}

// GetAPI обрабатывает GET /admin/apis/{endpoint}.
func (h *Handler) GetAPI(w http.ResponseWriter, r *http.Request) {
	endpoint := domain.NormalizeEndpoint(r.PathValue("endpoint"))

	api, err := h.store.Lookup(r.Context(), endpoint)
	if HandleRepoError(w, h.logger, err, "API not found") {
		return
	}

	Success(w, APIResponseFromDomain(api))
}

// GetAPIStatus обрабатывает GET /admin/apis/{endpoint}/status.
//
// Для LAUNCHING API перед ответом делает одну попытку финализации:
// клиент может опрашивать статус, не дожидаясь launcher'а.
func (h *Handler) GetAPIStatus(w http.ResponseWriter, r *http.Request) {
	endpoint := domain.NormalizeEndpoint(r.PathValue("endpoint"))

	api, err := h.store.Lookup(r.Context(), endpoint)
	if HandleRepoError(w, h.logger, err, "API not found") {
		return
	}

	if !api.IsDeployed() && h.finalizer != nil {
		if _, err := h.finalizer.FinalizeOnce(r.Context(), endpoint, api.Token.JobID); err != nil {
			h.logger.Warn("lazy finalize failed", "endpoint", endpoint, "error", err)
		}
		if refreshed, ok := h.store.ResolveEndpoint(endpoint); ok {
			api = refreshed
		}
	}

	Success(w, APIStatusResponse{
		Endpoint: api.Endpoint,
		Status:   api.Status,
		Token:    api.Token,
	})
}

// GetAPISchema обрабатывает GET /admin/apis/{endpoint}/schema.
func (h *Handler) GetAPISchema(w http.ResponseWriter, r *http.Request) {
	endpoint := domain.NormalizeEndpoint(r.PathValue("endpoint"))

	api, err := h.store.Lookup(r.Context(), endpoint)
	if HandleRepoError(w, h.logger, err, "API not found") {
		return
	}

	Success(w, APISchemaResponse{
		Endpoint:     api.Endpoint,
		InputSchema:  api.InputSchema,
		OutputSchema: api.OutputSchema,
	})
}

// GetAPIInfo обрабатывает GET /admin/apis/{endpoint}/info.
//
// Перед ответом освежает котировки токена, чтобы цена вызова
// не отставала от рынка на интервал poller'а.
func (h *Handler) GetAPIInfo(w http.ResponseWriter, r *http.Request) {
	endpoint := domain.NormalizeEndpoint(r.PathValue("endpoint"))

	api, err := h.store.Lookup(r.Context(), endpoint)
	if HandleRepoError(w, h.logger, err, "API not found") {
		return
	}

	if api.IsDeployed() && api.Token.Address != "" && h.prices != nil {
		price, err := h.prices.TokenPrice(r.Context(), api.Token.Address)
		if err != nil {
			h.logger.Warn("price refresh failed", "endpoint", endpoint, "error", err)
		} else if err := h.store.UpdatePrice(r.Context(), endpoint, price); err != nil {
			h.logger.Warn("price update failed", "endpoint", endpoint, "error", err)
		} else if refreshed, ok := h.store.ResolveEndpoint(endpoint); ok {
			api = refreshed
		}
	}

	Success(w, APIResponseFromDomain(api))
}
