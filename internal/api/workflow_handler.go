package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/bazaar/internal/domain"
	"github.com/shaiso/bazaar/internal/engine"
	"github.com/shaiso/bazaar/internal/flaunch"
	"github.com/shaiso/bazaar/internal/repo"
)

// ExecuteWorkflow обрабатывает POST /admin/workflows/execute.
//
// Тестовый запуск: граф приходит в теле запроса, выполняется сразу
// и не сохраняется. Сохраняется только run.
func (h *Handler) ExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var req ExecuteWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}

	g, err := engine.Validate(&req.Graph, h.store)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	started := time.Now()
	res := h.executor.Execute(r.Context(), g, req.Overrides)
	run := h.persistRun(r.Context(), res, nil, started)

	resp := RunResponseFromDomain(run)
	resp.Output = res.Output
	Success(w, resp)
}

// DeployWorkflow обрабатывает POST /admin/workflows.
//
// Деплой регистрирует composite endpoint с собственным токеном:
// жизненный цикл запуска тот же, что у обычного API.
func (h *Handler) DeployWorkflow(w http.ResponseWriter, r *http.Request) {
	var req DeployWorkflowRequest
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
	if req.WalletAddress == "" {
		BadRequest(w, "wallet_address is required")
		return
	}

	if _, err := engine.Validate(&req.Graph, h.store); err != nil {
		BadRequest(w, err.Error())
		return
	}

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
		Method:          http.MethodPost,
		WalletAddress:   req.WalletAddress,
		Description:     req.Description,
		Kind:            domain.APIKindComposite,
		Status:          domain.APIStatusLaunching,
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

	wf := &domain.Workflow{
		ID:        uuid.New(),
		Name:      req.Name,
		Endpoint:  endpoint,
		Graph:     req.Graph,
		CreatedAt: time.Now(),
	}
	if err := h.store.RegisterWorkflow(r.Context(), wf); err != nil {
		HandleRepoError(w, h.logger, err, "workflow not found")
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishLaunchRequested(r.Context(), endpoint, jobID); err != nil {
			h.logger.Warn("failed to publish launch event", "endpoint", endpoint, "error", err)
		}
	}

	h.logger.Info("workflow deployed", "endpoint", endpoint, "workflow_id", wf.ID, "job_id", jobID)
	Created(w, DeployWorkflowResponse{
		API:      APIResponseFromDomain(api),
		Workflow: WorkflowResponseFromDomain(wf),
	})
}

// ListWorkflows обрабатывает GET /admin/workflows.
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	wfs := h.store.Workflows()

	resp := make([]WorkflowResponse, 0, len(wfs))
	for i := range wfs {
		resp = append(resp, WorkflowResponseFromDomain(&wfs[i]))
	}
	List(w, resp, len(resp))
}

// GetWorkflow обрабатывает GET /admin/workflows/{id}.
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid workflow ID")
		return
	}

	wf, err := h.store.WorkflowByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "workflow not found") {
		return
	}

	Success(w, WorkflowResponseFromDomain(wf))
}

// GetRun обрабатывает GET /admin/runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run ID")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunResponseFromDomain(run))
}

// ListRuns обрабатывает GET /admin/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{Limit: 50}

	if v := r.URL.Query().Get("workflow_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			BadRequest(w, "invalid workflow_id")
			return
		}
		filter.WorkflowID = &id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = n
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "runs not found") {
		return
	}

	resp := make([]RunResponse, 0, len(runs))
	for i := range runs {
		resp = append(resp, RunResponseFromDomain(&runs[i]))
	}
	List(w, resp, len(resp))
}

// persistRun формирует WorkflowRun из результата выполнения и сохраняет его.
// Ошибка сохранения не роняет запрос: результат выполнения важнее записи.
func (h *Handler) persistRun(ctx context.Context, res *engine.Result, workflowID *uuid.UUID, started time.Time) *domain.WorkflowRun {
	finished := started.Add(res.Duration)

	run := &domain.WorkflowRun{
		ID:           uuid.New(),
		WorkflowID:   workflowID,
		Status:       res.Status,
		Log:          res.Log,
		TotalCostUSD: res.TotalCostUSD,
		StartedAt:    started,
		FinishedAt:   &finished,
		CreatedAt:    started,
	}

	if res.Status == domain.RunStatusFailed {
		run.Error = firstNodeError(res.Log)
	}

	if err := h.runs.Create(ctx, run); err != nil {
		h.logger.Warn("failed to persist run", "run_id", run.ID, "error", err)
	}
	return run
}

// firstNodeError возвращает ошибку первого неуспешного узла.
func firstNodeError(log []domain.NodeResult) string {
	for _, nr := range log {
		if nr.Status == domain.NodeStatusFailed && nr.Error != "" {
			return fmt.Sprintf("node %s: %s", nr.NodeID, nr.Error)
		}
	}
	return "workflow failed"
}
