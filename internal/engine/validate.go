package engine

import (
	"fmt"

	"github.com/shaiso/bazaar/internal/domain"
)

// Resolver отдаёт зарегистрированный API по его endpoint.
// Реализуется реестром API.
type Resolver interface {
	ResolveEndpoint(endpoint string) (*domain.RegisteredAPI, bool)
}

// ValidateBindings проверяет привязку графа к реестру: каждый узел
// ссылается на существующий endpoint, каждый mapping читает поле из
// декларированной выходной схемы source-узла и пишет в поле входной
// схемы target-узла. Пустая схема трактуется как «любые поля».
func ValidateBindings(g *Graph, resolver Resolver) error {
	apis := make(map[string]*domain.RegisteredAPI, len(g.Nodes))

	for _, id := range g.Order {
		node := g.Nodes[id]
		api, ok := resolver.ResolveEndpoint(node.Endpoint)
		if !ok {
			return NewValidationError(id, "endpoint",
				fmt.Sprintf("endpoint %q is not registered", node.Endpoint),
				ErrUnknownEndpoint)
		}
		apis[id] = api
	}

	for target, edges := range g.Incoming {
		targetAPI := apis[target]
		for _, edge := range edges {
			sourceAPI := apis[edge.Source]
			for _, m := range edge.Mappings {
				if !sourceAPI.OutputSchema.Has(m.SourceField) {
					return NewValidationError(edge.Source, m.SourceField,
						fmt.Sprintf("output schema of %q has no field %q", edge.Source, m.SourceField),
						ErrUnknownOutputField)
				}
				if !targetAPI.InputSchema.Has(m.DestField) {
					return NewValidationError(target, m.DestField,
						fmt.Sprintf("input schema of %q has no field %q", target, m.DestField),
						ErrUnknownInputField)
				}
			}
		}
	}

	return nil
}

// Validate строит граф и проверяет его привязку к реестру.
// Используется при выполнении и при деплое workflow.
func Validate(wg *domain.WorkflowGraph, resolver Resolver) (*Graph, error) {
	g, err := BuildGraph(wg)
	if err != nil {
		return nil, err
	}
	if err := ValidateBindings(g, resolver); err != nil {
		return nil, err
	}
	return g, nil
}
