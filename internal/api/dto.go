package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/bazaar/internal/domain"
)

// RegisterAPIRequest — запрос регистрации API.
type RegisterAPIRequest struct {
	Name              string        `json:"name"`
	Endpoint          string        `json:"endpoint"`
	TargetURL         string        `json:"target_url"`
	Method            string        `json:"method"`
	WalletAddress     string        `json:"wallet_address"`
	Description       string        `json:"description"`
	InputSchema       domain.Schema `json:"input_schema"`
	OutputSchema      domain.Schema `json:"output_schema"`
	PriceMultiplier   float64       `json:"price_multiplier"`
	StartingMarketCap string        `json:"starting_market_cap"`
}

// APIResponse — представление зарегистрированного API в ответах.
type APIResponse struct {
	Endpoint        string               `json:"endpoint"`
	Name            string               `json:"name"`
	TargetURL       string               `json:"target_url,omitempty"`
	Method          string               `json:"method"`
	WalletAddress   string               `json:"wallet_address"`
	Description     string               `json:"description,omitempty"`
	Kind            domain.APIKind       `json:"kind"`
	Status          domain.APIStatus     `json:"status"`
	InputSchema     domain.Schema        `json:"input_schema,omitempty"`
	OutputSchema    domain.Schema        `json:"output_schema,omitempty"`
	PriceMultiplier float64              `json:"price_multiplier"`
	PriceUSD        float64              `json:"price_usd"`
	Token           domain.TokenInfo     `json:"token"`
	Price           domain.PriceSnapshot `json:"price"`
	CreatedAt       time.Time            `json:"created_at"`
}

// APIResponseFromDomain конвертирует доменный API в DTO.
func APIResponseFromDomain(a *domain.RegisteredAPI) APIResponse {
	return APIResponse{
		Endpoint:        a.Endpoint,
		Name:            a.Name,
		TargetURL:       a.TargetURL,
		Method:          a.Method,
		WalletAddress:   a.WalletAddress,
		Description:     a.Description,
		Kind:            a.Kind,
		Status:          a.Status,
		InputSchema:     a.InputSchema,
		OutputSchema:    a.OutputSchema,
		PriceMultiplier: a.PriceMultiplier,
		PriceUSD:        a.APIPriceUSD(),
		Token:           a.Token,
		Price:           a.Price,
		CreatedAt:       a.CreatedAt,
	}
}

// APIStatusResponse — ответ на запрос статуса запуска токена.
type APIStatusResponse struct {
	Endpoint string           `json:"endpoint"`
	Status   domain.APIStatus `json:"status"`
	Token    domain.TokenInfo `json:"token"`
}

// APISchemaResponse — ответ со схемами входа/выхода API.
type APISchemaResponse struct {
	Endpoint     string        `json:"endpoint"`
	InputSchema  domain.Schema `json:"input_schema,omitempty"`
	OutputSchema domain.Schema `json:"output_schema,omitempty"`
}

// ExecuteWorkflowRequest — запрос тестового запуска графа.
type ExecuteWorkflowRequest struct {
	Graph     domain.WorkflowGraph `json:"graph"`
	Overrides map[string]any       `json:"overrides"`
}

// DeployWorkflowRequest — запрос деплоя workflow как composite endpoint.
type DeployWorkflowRequest struct {
	Name              string               `json:"name"`
	Endpoint          string               `json:"endpoint"`
	WalletAddress     string               `json:"wallet_address"`
	Description       string               `json:"description"`
	PriceMultiplier   float64              `json:"price_multiplier"`
	StartingMarketCap string               `json:"starting_market_cap"`
	Graph             domain.WorkflowGraph `json:"graph"`
}

// DeployWorkflowResponse — ответ на деплой workflow.
type DeployWorkflowResponse struct {
	API      APIResponse      `json:"api"`
	Workflow WorkflowResponse `json:"workflow"`
}

// WorkflowResponse — представление workflow в ответах.
type WorkflowResponse struct {
	ID        uuid.UUID            `json:"id"`
	Name      string               `json:"name"`
	Endpoint  string               `json:"endpoint"`
	Graph     domain.WorkflowGraph `json:"graph"`
	CreatedAt time.Time            `json:"created_at"`
}

// WorkflowResponseFromDomain конвертирует доменный workflow в DTO.
func WorkflowResponseFromDomain(wf *domain.Workflow) WorkflowResponse {
	return WorkflowResponse{
		ID:        wf.ID,
		Name:      wf.Name,
		Endpoint:  wf.Endpoint,
		Graph:     wf.Graph,
		CreatedAt: wf.CreatedAt,
	}
}

// RunResponse — представление запуска workflow в ответах.
type RunResponse struct {
	RunID        uuid.UUID           `json:"run_id"`
	WorkflowID   *uuid.UUID          `json:"workflow_id,omitempty"`
	Status       domain.RunStatus    `json:"status"`
	Log          []domain.NodeResult `json:"log"`
	Output       map[string]any      `json:"output,omitempty"`
	TotalCostUSD float64             `json:"total_cost_usd"`
	Error        string              `json:"error,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}

// RunResponseFromDomain конвертирует доменный run в DTO.
func RunResponseFromDomain(run *domain.WorkflowRun) RunResponse {
	return RunResponse{
		RunID:        run.ID,
		WorkflowID:   run.WorkflowID,
		Status:       run.Status,
		Log:          run.Log,
		TotalCostUSD: run.TotalCostUSD,
		Error:        run.Error,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	}
}
