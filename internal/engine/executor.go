package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
)

// Invoker вызывает один зарегистрированный API с подготовленными
// входами и возвращает его выход. Реализуется HTTP-шлюзом.
type Invoker interface {
	Invoke(ctx context.Context, api *domain.RegisteredAPI, inputs map[string]any) (map[string]any, error)
}

// Result — итог выполнения графа workflow.
type Result struct {
	Status       domain.RunStatus    // SUCCEEDED, если все узлы успешны
	Log          []domain.NodeResult // результаты узлов в порядке выполнения
	Output       map[string]any      // объединённый выход терминальных узлов
	TotalCostUSD float64             // сумма цен успешно выполненных узлов
	Duration     time.Duration
}

// Executor выполняет граф workflow: узлы по одному в топологическом
// порядке, выходы передаются вниз по рёбрам согласно mappings.
type Executor struct {
	resolver Resolver
	invoker  Invoker
	logger   *slog.Logger
}

// NewExecutor создаёт executor поверх реестра API и invoker'а.
func NewExecutor(resolver Resolver, invoker Invoker, logger *slog.Logger) *Executor {
	return &Executor{
		resolver: resolver,
		invoker:  invoker,
		logger:   logger,
	}
}

// Execute выполняет проверенный граф. Упавший узел не прерывает
// выполнение: независимые ветки продолжаются, а все узлы ниже по
// графу от упавшего помечаются SKIPPED. Итоговый статус SUCCEEDED
// только если успешны все узлы.
func (e *Executor) Execute(ctx context.Context, g *Graph, overrides map[string]any) *Result {
	started := time.Now()

	res := &Result{
		Status: domain.RunStatusSucceeded,
		Log:    make([]domain.NodeResult, 0, len(g.Order)),
		Output: make(map[string]any),
	}

	outputs := make(map[string]map[string]any, len(g.Order)) // выходы узлов по ID
	statuses := make(map[string]domain.NodeStatus, len(g.Order))
	hasChildren := make(map[string]bool)
	for _, edges := range g.Incoming {
		for _, edge := range edges {
			hasChildren[edge.Source] = true
		}
	}

	for _, id := range g.Order {
		node := g.Nodes[id]
		api, ok := e.resolver.ResolveEndpoint(node.Endpoint)
		if !ok {
			// Привязка проверяется до выполнения; сюда попадаем,
			// только если API удалили между валидацией и запуском.
			statuses[id] = domain.NodeStatusFailed
			res.Status = domain.RunStatusFailed
			res.Log = append(res.Log, domain.NodeResult{
				NodeID:   id,
				Endpoint: node.Endpoint,
				Status:   domain.NodeStatusFailed,
				Error:    fmt.Sprintf("endpoint %q is not registered", node.Endpoint),
			})
			continue
		}

		// Узел пропускается, если хотя бы один upstream не успешен.
		if failed := e.failedParent(g, statuses, id); failed != "" {
			statuses[id] = domain.NodeStatusSkipped
			res.Status = domain.RunStatusFailed
			res.Log = append(res.Log, domain.NodeResult{
				NodeID:   id,
				Endpoint: node.Endpoint,
				Status:   domain.NodeStatusSkipped,
				Error:    fmt.Sprintf("%s: %q", ErrUpstreamFailed.Error(), failed),
			})
			e.logger.Info("node skipped", "node_id", id, "endpoint", node.Endpoint, "failed_parent", failed)
			continue
		}

		inputs := e.resolveInputs(g, node, api, outputs, overrides)

		if missing := missingRequired(api.InputSchema, inputs); missing != "" {
			statuses[id] = domain.NodeStatusFailed
			res.Status = domain.RunStatusFailed
			res.Log = append(res.Log, domain.NodeResult{
				NodeID:   id,
				Endpoint: node.Endpoint,
				Status:   domain.NodeStatusFailed,
				Inputs:   inputs,
				Error:    fmt.Sprintf("%s: %q", ErrMissingRequiredField.Error(), missing),
			})
			e.logger.Warn("node failed: missing required field",
				"node_id", id, "endpoint", node.Endpoint, "field", missing)
			continue
		}

		output, err := e.invoker.Invoke(ctx, api, inputs)
		if err != nil {
			statuses[id] = domain.NodeStatusFailed
			res.Status = domain.RunStatusFailed
			res.Log = append(res.Log, domain.NodeResult{
				NodeID:   id,
				Endpoint: node.Endpoint,
				Status:   domain.NodeStatusFailed,
				Inputs:   inputs,
				Error:    err.Error(),
			})
			e.logger.Warn("node failed", "node_id", id, "endpoint", node.Endpoint, "error", err)
			continue
		}

		statuses[id] = domain.NodeStatusSucceeded
		outputs[id] = output
		price := api.APIPriceUSD()
		res.TotalCostUSD += price
		res.Log = append(res.Log, domain.NodeResult{
			NodeID:   id,
			Endpoint: node.Endpoint,
			Status:   domain.NodeStatusSucceeded,
			Inputs:   inputs,
			Output:   output,
			PriceUSD: price,
		})
		e.logger.Info("node succeeded", "node_id", id, "endpoint", node.Endpoint, "price_usd", price)
	}

	// Выход графа — объединённые выходы терминальных узлов
	// в топологическом порядке.
	for _, id := range g.Order {
		if hasChildren[id] || statuses[id] != domain.NodeStatusSucceeded {
			continue
		}
		for k, v := range outputs[id] {
			res.Output[k] = v
		}
	}

	res.Duration = time.Since(started)
	return res
}

// resolveInputs собирает входы узла: статические параметры узла,
// затем дефолты из входной схемы, затем значения по входящим
// mappings в порядке объявления рёбер. При конфликте dest-полей
// побеждает последний mapping. Overrides (входной запрос composite
// endpoint'а) применяются к узлам без входящих рёбер.
func (e *Executor) resolveInputs(g *Graph, node *domain.WorkflowNode, api *domain.RegisteredAPI, outputs map[string]map[string]any, overrides map[string]any) map[string]any {
	inputs := make(map[string]any, len(node.Params))
	for k, v := range node.Params {
		inputs[k] = v
	}

	edges := g.Incoming[node.ID]
	if len(edges) == 0 {
		for k, v := range overrides {
			if api.InputSchema.Has(k) {
				inputs[k] = v
			}
		}
	}

	api.InputSchema.ApplyDefaults(inputs)

	for _, edge := range edges {
		src := outputs[edge.Source]
		for _, m := range edge.Mappings {
			if v, ok := src[m.SourceField]; ok {
				inputs[m.DestField] = v
			}
		}
	}

	return inputs
}

// failedParent возвращает ID первого upstream-узла, который не
// завершился успехом, либо пустую строку.
func (e *Executor) failedParent(g *Graph, statuses map[string]domain.NodeStatus, nodeID string) string {
	for _, parent := range g.Parents(nodeID) {
		if statuses[parent] != domain.NodeStatusSucceeded {
			return parent
		}
	}
	return ""
}

// missingRequired возвращает имя первого обязательного поля схемы,
// отсутствующего во входах, либо пустую строку.
func missingRequired(schema domain.Schema, inputs map[string]any) string {
	for _, field := range schema.RequiredFields() {
		if _, ok := inputs[field]; !ok {
			return field
		}
	}
	return ""
}
