package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
	"github.com/shaiso/bazaar/internal/engine"
	"github.com/shaiso/bazaar/internal/gateway"
	"github.com/shaiso/bazaar/internal/repo"
)

// ServeGateway обрабатывает вызов зарегистрированного endpoint:
// проверяет готовность токена и платёж, затем проксирует запрос
// либо выполняет сохранённый workflow.
func (h *Handler) ServeGateway(w http.ResponseWriter, r *http.Request) {
	endpoint := domain.NormalizeEndpoint(r.PathValue("path"))

	api, err := h.store.Lookup(r.Context(), endpoint)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			NotFound(w, "Unknown API endpoint")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	if !api.IsDeployed() {
		api = h.lazyFinalize(r, api)
	}
	if !api.IsDeployed() {
		ErrorWithDetails(w, http.StatusServiceUnavailable, ErrCodeInvalidState,
			"Token still launching", map[string]string{"job_id": api.Token.JobID})
		return
	}

	requirements := gateway.RequirementsFor(api, h.network)

	payment := r.Header.Get("X-Payment")
	if payment == "" {
		ErrorWithDetails(w, http.StatusPaymentRequired, ErrCodePaymentRequired,
			"payment required", requirements)
		return
	}

	if err := h.verifier.Verify(r.Context(), payment, requirements); err != nil {
		if errors.Is(err, gateway.ErrPaymentInvalid) {
			ErrorWithDetails(w, http.StatusPaymentRequired, ErrCodePaymentRequired,
				err.Error(), requirements)
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	switch api.Kind {
	case domain.APIKindComposite:
		h.executeComposite(w, r, api)
	default:
		h.proxy.Forward(w, r, api)
	}
}

// lazyFinalize делает одну попытку финализации запуска токена
// по пути запроса. Возвращает актуальное состояние API.
func (h *Handler) lazyFinalize(r *http.Request, api *domain.RegisteredAPI) *domain.RegisteredAPI {
	if h.finalizer == nil {
		return api
	}
	if _, err := h.finalizer.FinalizeOnce(r.Context(), api.Endpoint, api.Token.JobID); err != nil {
		h.logger.Warn("lazy finalize failed", "endpoint", api.Endpoint, "error", err)
		return api
	}
	if refreshed, ok := h.store.ResolveEndpoint(api.Endpoint); ok {
		return refreshed
	}
	return api
}

// executeComposite выполняет workflow, стоящий за composite endpoint.
//
// Overrides берутся из query-параметров для GET и из JSON тела для POST;
// применяются только к корневым узлам графа.
func (h *Handler) executeComposite(w http.ResponseWriter, r *http.Request, api *domain.RegisteredAPI) {
	wf, err := h.store.LookupWorkflow(r.Context(), api.Endpoint)
	if err != nil {
		InternalError(w, h.logger, fmt.Errorf("workflow for composite endpoint %s: %w", api.Endpoint, err))
		return
	}

	overrides, err := gatewayOverrides(r)
	if err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}

	g, err := engine.Validate(&wf.Graph, h.store)
	if err != nil {
		InvalidState(w, err.Error())
		return
	}

	started := time.Now()
	res := h.executor.Execute(r.Context(), g, overrides)
	run := h.persistRun(r.Context(), res, &wf.ID, started)

	resp := RunResponseFromDomain(run)
	resp.Output = res.Output
	Success(w, resp)
}

// gatewayOverrides извлекает overrides из входящего запроса.
func gatewayOverrides(r *http.Request) (map[string]any, error) {
	if r.Method == http.MethodGet {
		overrides := make(map[string]any)
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				overrides[key] = values[0]
			}
		}
		return overrides, nil
	}

	if r.Body == nil || r.ContentLength == 0 {
		return nil, nil
	}

	var overrides map[string]any
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}
