package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// APIResponse — зарегистрированный API из Bazaar API.
type APIResponse struct {
	Endpoint        string         `json:"endpoint"`
	Name            string         `json:"name"`
	TargetURL       string         `json:"target_url,omitempty"`
	Method          string         `json:"method"`
	WalletAddress   string         `json:"wallet_address"`
	Description     string         `json:"description,omitempty"`
	Kind            string         `json:"kind"`
	Status          string         `json:"status"`
	InputSchema     map[string]any `json:"input_schema,omitempty"`
	OutputSchema    map[string]any `json:"output_schema,omitempty"`
	PriceMultiplier float64        `json:"price_multiplier"`
	PriceUSD        float64        `json:"price_usd"`
	Token           TokenInfo      `json:"token"`
	CreatedAt       string         `json:"created_at"`
}

// TokenInfo — метаданные токена API.
type TokenInfo struct {
	JobID        string `json:"job_id,omitempty"`
	Address      string `json:"address,omitempty"`
	Symbol       string `json:"symbol,omitempty"`
	TxHash       string `json:"tx_hash,omitempty"`
	LaunchpadURL string `json:"launchpad_url,omitempty"`
}

// APIStatusResponse — статус запуска токена.
type APIStatusResponse struct {
	Endpoint string    `json:"endpoint"`
	Status   string    `json:"status"`
	Token    TokenInfo `json:"token"`
}

// WorkflowResponse — workflow из Bazaar API.
type WorkflowResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Endpoint  string         `json:"endpoint"`
	Graph     map[string]any `json:"graph"`
	CreatedAt string         `json:"created_at"`
}

// DeployWorkflowResponse — результат деплоя workflow.
type DeployWorkflowResponse struct {
	API      APIResponse      `json:"api"`
	Workflow WorkflowResponse `json:"workflow"`
}

// RunResponse — запуск workflow из Bazaar API.
type RunResponse struct {
	RunID        string         `json:"run_id"`
	WorkflowID   string         `json:"workflow_id,omitempty"`
	Status       string         `json:"status"`
	Log          []NodeResult   `json:"log"`
	Output       map[string]any `json:"output,omitempty"`
	TotalCostUSD float64        `json:"total_cost_usd"`
	Error        string         `json:"error,omitempty"`
	StartedAt    string         `json:"started_at"`
	FinishedAt   string         `json:"finished_at,omitempty"`
}

// NodeResult — запись лога выполнения узла.
type NodeResult struct {
	NodeID   string  `json:"node_id"`
	Endpoint string  `json:"endpoint"`
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
	PriceUSD float64 `json:"price_usd"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	WorkflowID string
	Limit      int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Bazaar API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- APIs ---

// ListAPIs возвращает все зарегистрированные APIs.
func (c *Client) ListAPIs() ([]APIResponse, error) {
	var apis []APIResponse
	err := c.list("/admin/apis", nil, &apis)
	return apis, err
}

// RegisterAPI регистрирует API. Тело запроса — сырой JSON из файла:
// схемы полей удобнее описывать файлом, чем флагами.
func (c *Client) RegisterAPI(spec json.RawMessage) (*APIResponse, error) {
	var api APIResponse
	err := c.post("/admin/apis", spec, &api)
	return &api, err
}

// GetAPI возвращает зарегистрированный API по endpoint.
func (c *Client) GetAPI(endpoint string) (*APIResponse, error) {
	var api APIResponse
	err := c.get("/admin/apis/"+url.PathEscape(trimEndpoint(endpoint)), &api)
	return &api, err
}

// GetAPIStatus возвращает статус запуска токена.
func (c *Client) GetAPIStatus(endpoint string) (*APIStatusResponse, error) {
	var status APIStatusResponse
	err := c.get("/admin/apis/"+url.PathEscape(trimEndpoint(endpoint))+"/status", &status)
	return &status, err
}

// GetAPIInfo возвращает полную информацию об API со свежей ценой.
func (c *Client) GetAPIInfo(endpoint string) (*APIResponse, error) {
	var api APIResponse
	err := c.get("/admin/apis/"+url.PathEscape(trimEndpoint(endpoint))+"/info", &api)
	return &api, err
}

// --- Workflows ---

// ListWorkflows возвращает задеплоенные workflows.
func (c *Client) ListWorkflows() ([]WorkflowResponse, error) {
	var wfs []WorkflowResponse
	err := c.list("/admin/workflows", nil, &wfs)
	return wfs, err
}

// GetWorkflow возвращает задеплоенный workflow по ID.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/admin/workflows/"+url.PathEscape(id), &wf)
	return &wf, err
}

// ExecuteWorkflow выполняет граф из файла без деплоя.
func (c *Client) ExecuteWorkflow(spec json.RawMessage) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/admin/workflows/execute", spec, &run)
	return &run, err
}

// DeployWorkflow деплоит workflow как composite endpoint.
func (c *Client) DeployWorkflow(spec json.RawMessage) (*DeployWorkflowResponse, error) {
	var resp DeployWorkflowResponse
	err := c.post("/admin/workflows", spec, &resp)
	return &resp, err
}

// --- Runs ---

// ListRuns возвращает запуски workflow с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.WorkflowID != "" {
		params.Set("workflow_id", opts.WorkflowID)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/admin/runs", params, &runs)
	return runs, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/admin/runs/"+id, &run)
	return &run, err
}

// trimEndpoint убирает ведущий "/" перед подстановкой в path.
func trimEndpoint(endpoint string) string {
	if len(endpoint) > 0 && endpoint[0] == '/' {
		return endpoint[1:]
	}
	return endpoint
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
