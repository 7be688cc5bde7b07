package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shaiso/bazaar/internal/domain"
)

// fakeInvoker возвращает заранее заданный выход или ошибку per endpoint
// и записывает полученные входы.
type fakeInvoker struct {
	outputs map[string]map[string]any
	errs    map[string]error
	inputs  map[string]map[string]any // последние входы per endpoint
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		outputs: make(map[string]map[string]any),
		errs:    make(map[string]error),
		inputs:  make(map[string]map[string]any),
	}
}

func (f *fakeInvoker) Invoke(_ context.Context, api *domain.RegisteredAPI, inputs map[string]any) (map[string]any, error) {
	f.inputs[api.Endpoint] = inputs
	if err := f.errs[api.Endpoint]; err != nil {
		return nil, err
	}
	return f.outputs[api.Endpoint], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustGraph(t *testing.T, wg *domain.WorkflowGraph, resolver Resolver) *Graph {
	t.Helper()
	g, err := Validate(wg, resolver)
	if err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
	return g
}

func TestExecute_Chain(t *testing.T) {
	resolver := fakeResolver{
		"/weather": {
			Endpoint:     "/weather",
			Status:       domain.APIStatusDeployed,
			OutputSchema: domain.Schema{"temp": {Type: "number"}},
			Price:        domain.PriceSnapshot{TokenPriceUSD: 0.0001},
		},
		"/alert": {
			Endpoint:    "/alert",
			Status:      domain.APIStatusDeployed,
			InputSchema: domain.Schema{"temperature": {Type: "number", Required: true}},
			Price:       domain.PriceSnapshot{TokenPriceUSD: 0.0002},
		},
	}

	invoker := newFakeInvoker()
	invoker.outputs["/weather"] = map[string]any{"temp": 31.5}
	invoker.outputs["/alert"] = map[string]any{"sent": true}

	wg := &domain.WorkflowGraph{
		Nodes: []domain.WorkflowNode{
			{ID: "w", Endpoint: "/weather", Params: map[string]any{"city": "Lisbon"}},
			{ID: "a", Endpoint: "/alert"},
		},
		Edges: []domain.WorkflowEdge{
			{Source: "w", Target: "a", Mappings: []domain.FieldMapping{
				{SourceField: "temp", DestField: "temperature"},
			}},
		},
	}

	g := mustGraph(t, wg, resolver)
	res := NewExecutor(resolver, invoker, testLogger()).Execute(context.Background(), g, nil)

	if res.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", res.Status)
	}
	if len(res.Log) != 2 {
		t.Fatalf("expected 2 node results, got %d", len(res.Log))
	}

	// Выход первого узла пробрасывается во второй через mapping
	if got := invoker.inputs["/alert"]["temperature"]; got != 31.5 {
		t.Errorf("expected temperature 31.5, got %v", got)
	}
	// Статический параметр узла передаётся как есть
	if got := invoker.inputs["/weather"]["city"]; got != "Lisbon" {
		t.Errorf("expected city Lisbon, got %v", got)
	}

	// Стоимость — сумма цен узлов: (0.0001 + 0.0002) * 10000
	wantCost := 0.0001*domain.DefaultPriceMultiplier + 0.0002*domain.DefaultPriceMultiplier
	if res.TotalCostUSD != wantCost {
		t.Errorf("expected total cost %v, got %v", wantCost, res.TotalCostUSD)
	}

	// Выход графа — выход терминального узла
	if got := res.Output["sent"]; got != true {
		t.Errorf("expected output sent=true, got %v", got)
	}
}

func TestExecute_FailureSkipsDependents(t *testing.T) {
	// A падает, B зависит от A и пропускается,
	// C — независимая ветка и выполняется.
	resolver := fakeResolver{
		"/a": {Endpoint: "/a"},
		"/b": {Endpoint: "/b"},
		"/c": {Endpoint: "/c"},
	}

	invoker := newFakeInvoker()
	invoker.errs["/a"] = errors.New("upstream exploded")
	invoker.outputs["/c"] = map[string]any{"ok": true}

	wg := &domain.WorkflowGraph{
		Nodes: []domain.WorkflowNode{
			{ID: "A", Endpoint: "/a"},
			{ID: "B", Endpoint: "/b"},
			{ID: "C", Endpoint: "/c"},
		},
		Edges: []domain.WorkflowEdge{
			{Source: "A", Target: "B"},
		},
	}

	g := mustGraph(t, wg, resolver)
	res := NewExecutor(resolver, invoker, testLogger()).Execute(context.Background(), g, nil)

	if res.Status != domain.RunStatusFailed {
		t.Fatalf("expected FAILED, got %s", res.Status)
	}

	byID := make(map[string]domain.NodeResult)
	for _, nr := range res.Log {
		byID[nr.NodeID] = nr
	}

	if byID["A"].Status != domain.NodeStatusFailed {
		t.Errorf("A should be FAILED, got %s", byID["A"].Status)
	}
	if byID["B"].Status != domain.NodeStatusSkipped {
		t.Errorf("B should be SKIPPED, got %s", byID["B"].Status)
	}
	if byID["C"].Status != domain.NodeStatusSucceeded {
		t.Errorf("C should be SUCCEEDED, got %s", byID["C"].Status)
	}

	// Пропущенный узел не вызывался
	if _, called := invoker.inputs["/b"]; called {
		t.Error("B should not have been invoked")
	}
}

func TestExecute_SkipCascades(t *testing.T) {
	// A падает, B пропускается, C зависит от B и тоже пропускается
	resolver := fakeResolver{
		"/a": {Endpoint: "/a"},
		"/b": {Endpoint: "/b"},
		"/c": {Endpoint: "/c"},
	}

	invoker := newFakeInvoker()
	invoker.errs["/a"] = errors.New("boom")

	wg := &domain.WorkflowGraph{
		Nodes: []domain.WorkflowNode{
			{ID: "A", Endpoint: "/a"},
			{ID: "B", Endpoint: "/b"},
			{ID: "C", Endpoint: "/c"},
		},
		Edges: []domain.WorkflowEdge{
			{Source: "A", Target: "B"},
			{Source: "B", Target: "C"},
		},
	}

	g := mustGraph(t, wg, resolver)
	res := NewExecutor(resolver, invoker, testLogger()).Execute(context.Background(), g, nil)

	byID := make(map[string]domain.NodeResult)
	for _, nr := range res.Log {
		byID[nr.NodeID] = nr
	}

	if byID["B"].Status != domain.NodeStatusSkipped {
		t.Errorf("B should be SKIPPED, got %s", byID["B"].Status)
	}
	if byID["C"].Status != domain.NodeStatusSkipped {
		t.Errorf("C should be SKIPPED, got %s", byID["C"].Status)
	}
}

func TestExecute_LastMappingWins(t *testing.T) {
	// Два mapping пишут в одно dest-поле: побеждает последний
	// в порядке объявления рёбер.
	resolver := fakeResolver{
		"/x":    {Endpoint: "/x"},
		"/y":    {Endpoint: "/y"},
		"/sink": {Endpoint: "/sink"},
	}

	invoker := newFakeInvoker()
	invoker.outputs["/x"] = map[string]any{"val": "from-x"}
	invoker.outputs["/y"] = map[string]any{"val": "from-y"}

	wg := &domain.WorkflowGraph{
		Nodes: []domain.WorkflowNode{
			{ID: "X", Endpoint: "/x"},
			{ID: "Y", Endpoint: "/y"},
			{ID: "S", Endpoint: "/sink"},
		},
		Edges: []domain.WorkflowEdge{
			{Source: "X", Target: "S", Mappings: []domain.FieldMapping{{SourceField: "val", DestField: "input"}}},
			{Source: "Y", Target: "S", Mappings: []domain.FieldMapping{{SourceField: "val", DestField: "input"}}},
		},
	}

	g := mustGraph(t, wg, resolver)
	res := NewExecutor(resolver, invoker, testLogger()).Execute(context.Background(), g, nil)

	if res.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", res.Status)
	}
	if got := invoker.inputs["/sink"]["input"]; got != "from-y" {
		t.Errorf("expected from-y (last mapping wins), got %v", got)
	}
}

func TestExecute_MissingRequiredField(t *testing.T) {
	resolver := fakeResolver{
		"/strict": {
			Endpoint:    "/strict",
			InputSchema: domain.Schema{"token": {Type: "string", Required: true}},
		},
	}

	invoker := newFakeInvoker()

	wg := &domain.WorkflowGraph{
		Nodes: []domain.WorkflowNode{{ID: "S", Endpoint: "/strict"}},
	}

	g := mustGraph(t, wg, resolver)
	res := NewExecutor(resolver, invoker, testLogger()).Execute(context.Background(), g, nil)

	if res.Status != domain.RunStatusFailed {
		t.Fatalf("expected FAILED, got %s", res.Status)
	}
	if res.Log[0].Status != domain.NodeStatusFailed {
		t.Errorf("node should be FAILED, got %s", res.Log[0].Status)
	}
	// Узел не вызывался, цена не начисляется
	if _, called := invoker.inputs["/strict"]; called {
		t.Error("node should not have been invoked")
	}
	if res.TotalCostUSD != 0 {
		t.Errorf("expected zero cost, got %v", res.TotalCostUSD)
	}
}

func TestExecute_SchemaDefaults(t *testing.T) {
	resolver := fakeResolver{
		"/greet": {
			Endpoint: "/greet",
			InputSchema: domain.Schema{
				"name": {Type: "string", Default: "world"},
			},
		},
	}

	invoker := newFakeInvoker()
	invoker.outputs["/greet"] = map[string]any{"greeting": "hello"}

	wg := &domain.WorkflowGraph{
		Nodes: []domain.WorkflowNode{{ID: "G", Endpoint: "/greet"}},
	}

	g := mustGraph(t, wg, resolver)
	res := NewExecutor(resolver, invoker, testLogger()).Execute(context.Background(), g, nil)

	if res.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", res.Status)
	}
	if got := invoker.inputs["/greet"]["name"]; got != "world" {
		t.Errorf("expected default name world, got %v", got)
	}
}

func TestExecute_OverridesApplyToRootNodes(t *testing.T) {
	// Входной запрос composite endpoint'а применяется только
	// к узлам без входящих рёбер.
	resolver := fakeResolver{
		"/root": {
			Endpoint:    "/root",
			InputSchema: domain.Schema{"q": {Type: "string"}},
		},
		"/leaf": {
			Endpoint:    "/leaf",
			InputSchema: domain.Schema{"q": {Type: "string"}, "data": {Type: "string"}},
		},
	}

	invoker := newFakeInvoker()
	invoker.outputs["/root"] = map[string]any{"out": "payload"}
	invoker.outputs["/leaf"] = map[string]any{"done": true}

	wg := &domain.WorkflowGraph{
		Nodes: []domain.WorkflowNode{
			{ID: "R", Endpoint: "/root"},
			{ID: "L", Endpoint: "/leaf"},
		},
		Edges: []domain.WorkflowEdge{
			{Source: "R", Target: "L", Mappings: []domain.FieldMapping{{SourceField: "out", DestField: "data"}}},
		},
	}

	g := mustGraph(t, wg, resolver)
	overrides := map[string]any{"q": "btc price"}
	res := NewExecutor(resolver, invoker, testLogger()).Execute(context.Background(), g, overrides)

	if res.Status != domain.RunStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", res.Status)
	}
	if got := invoker.inputs["/root"]["q"]; got != "btc price" {
		t.Errorf("root node should receive override, got %v", got)
	}
	if _, ok := invoker.inputs["/leaf"]["q"]; ok {
		t.Error("leaf node should not receive override")
	}
	if got := invoker.inputs["/leaf"]["data"]; got != "payload" {
		t.Errorf("leaf node should receive mapped value, got %v", got)
	}
}
