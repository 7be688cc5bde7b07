package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/bazaar/internal/domain"
	"github.com/shaiso/bazaar/internal/gateway"
	"github.com/shaiso/bazaar/internal/registry"
	"github.com/shaiso/bazaar/internal/repo"
)

// Фейки персистентности: Store работает поверх них как чистый кэш.

type fakeAPIRepo struct{}

func (r *fakeAPIRepo) Create(ctx context.Context, api *domain.RegisteredAPI) error { return nil }
func (r *fakeAPIRepo) GetByEndpoint(ctx context.Context, endpoint string) (*domain.RegisteredAPI, error) {
	return nil, repo.ErrNotFound
}
func (r *fakeAPIRepo) List(ctx context.Context) ([]domain.RegisteredAPI, error) { return nil, nil }
func (r *fakeAPIRepo) ListByStatus(ctx context.Context, status domain.APIStatus) ([]domain.RegisteredAPI, error) {
	return nil, nil
}
func (r *fakeAPIRepo) Finalize(ctx context.Context, endpoint string, token domain.TokenInfo) error {
	return nil
}
func (r *fakeAPIRepo) UpdatePrice(ctx context.Context, endpoint string, price domain.PriceSnapshot) error {
	return nil
}

type fakeWorkflowRepo struct{}

func (r *fakeWorkflowRepo) Create(ctx context.Context, wf *domain.Workflow) error { return nil }
func (r *fakeWorkflowRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	return nil, repo.ErrNotFound
}
func (r *fakeWorkflowRepo) GetByEndpoint(ctx context.Context, endpoint string) (*domain.Workflow, error) {
	return nil, repo.ErrNotFound
}
func (r *fakeWorkflowRepo) List(ctx context.Context) ([]domain.Workflow, error) { return nil, nil }

type fakeLaunch struct {
	jobID string
	err   error
	calls int
}

func (f *fakeLaunch) LaunchToken(ctx context.Context, apiName, walletAddress, startingMarketCap string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.jobID, nil
}

type fakeFinalizer struct {
	fn func(ctx context.Context, endpoint, jobID string) (bool, error)
}

func (f *fakeFinalizer) FinalizeOnce(ctx context.Context, endpoint, jobID string) (bool, error) {
	if f.fn == nil {
		return false, nil
	}
	return f.fn(ctx, endpoint, jobID)
}

type fakePublisher struct {
	events []string
	err    error
}

func (f *fakePublisher) PublishLaunchRequested(ctx context.Context, endpoint, jobID string) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, endpoint)
	return nil
}

type fakeRuns struct {
	created []*domain.WorkflowRun
	byID    map[uuid.UUID]*domain.WorkflowRun
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{byID: make(map[uuid.UUID]*domain.WorkflowRun)}
}

func (f *fakeRuns) Create(ctx context.Context, run *domain.WorkflowRun) error {
	f.created = append(f.created, run)
	f.byID[run.ID] = run
	return nil
}

func (f *fakeRuns) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowRun, error) {
	run, ok := f.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return run, nil
}

func (f *fakeRuns) List(ctx context.Context, filter repo.RunFilter) ([]domain.WorkflowRun, error) {
	var out []domain.WorkflowRun
	for _, run := range f.created {
		if filter.WorkflowID != nil && (run.WorkflowID == nil || *run.WorkflowID != *filter.WorkflowID) {
			continue
		}
		out = append(out, *run)
	}
	return out, nil
}

type fakePrices struct {
	snapshot domain.PriceSnapshot
	err      error
}

func (f *fakePrices) TokenPrice(ctx context.Context, tokenAddress string) (domain.PriceSnapshot, error) {
	return f.snapshot, f.err
}

type fakeVerifier struct {
	err        error
	lastHeader string
}

func (f *fakeVerifier) Verify(ctx context.Context, paymentHeader string, req gateway.PaymentRequirements) error {
	f.lastHeader = paymentHeader
	return f.err
}

type fakeInvoker struct {
	outputs map[string]map[string]any // по endpoint
	inputs  map[string]map[string]any
	err     error
}

func (f *fakeInvoker) Invoke(ctx context.Context, api *domain.RegisteredAPI, inputs map[string]any) (map[string]any, error) {
	if f.inputs == nil {
		f.inputs = make(map[string]map[string]any)
	}
	f.inputs[api.Endpoint] = inputs
	if f.err != nil {
		return nil, f.err
	}
	return f.outputs[api.Endpoint], nil
}

// testEnv — собранный Handler с фейковыми зависимостями.
type testEnv struct {
	handler   *Handler
	store     *registry.Store
	launch    *fakeLaunch
	finalizer *fakeFinalizer
	publisher *fakePublisher
	runs      *fakeRuns
	prices    *fakePrices
	verifier  *fakeVerifier
	invoker   *fakeInvoker
	mux       *http.ServeMux
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := registry.NewStore(&fakeAPIRepo{}, &fakeWorkflowRepo{}, logger)

	env := &testEnv{
		store:     store,
		launch:    &fakeLaunch{jobID: "job-1"},
		finalizer: &fakeFinalizer{},
		publisher: &fakePublisher{},
		runs:      newFakeRuns(),
		prices:    &fakePrices{},
		verifier:  &fakeVerifier{},
		invoker:   &fakeInvoker{outputs: make(map[string]map[string]any)},
	}

	env.handler = NewHandler(Config{
		Store:     store,
		Runs:      env.runs,
		Launch:    env.launch,
		Finalizer: env.finalizer,
		Publisher: env.publisher,
		Prices:    env.prices,
		Verifier:  env.verifier,
		Proxy:     gateway.NewProxy(0, logger),
		Invoker:   env.invoker,
		Network:   "base",
		Logger:    logger,
	})

	env.mux = http.NewServeMux()
	env.handler.RegisterRoutes(env.mux)
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

// seedAPI кладёт API в реестр напрямую, минуя HTTP регистрацию.
func (env *testEnv) seedAPI(t *testing.T, api domain.RegisteredAPI) {
	t.Helper()
	if err := env.store.Register(context.Background(), &api); err != nil {
		t.Fatalf("seed API %s: %v", api.Endpoint, err)
	}
}

func deployedAPI(endpoint, name string) domain.RegisteredAPI {
	return domain.RegisteredAPI{
		Endpoint:      endpoint,
		Name:          name,
		TargetURL:     "http://upstream.local",
		Method:        http.MethodGet,
		WalletAddress: "0xabc",
		Kind:          domain.APIKindProxy,
		Status:        domain.APIStatusDeployed,
		Token:         domain.TokenInfo{JobID: "job-1", Address: "0xtoken", Symbol: domain.TokenSymbol(name)},
	}
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type errEnvelope struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env dataEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v (body: %s)", err, rec.Body.String())
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errEnvelope {
	t.Helper()
	var env errEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (body: %s)", err, rec.Body.String())
	}
	return env
}
