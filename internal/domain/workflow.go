package domain

import (
	"time"

	"github.com/google/uuid"
)

// Workflow — сохранённая цепочка зарегистрированных API.
//
// Workflow создаётся при deploy: валидированный граф узлов и рёбер
// персистится и регистрируется как composite endpoint. Входящий вызов
// такого endpoint через шлюз выполняет весь граф.
type Workflow struct {
	// ID — уникальный идентификатор workflow.
	ID uuid.UUID `json:"id"`

	// Name — имя workflow.
	Name string `json:"name"`

	// Endpoint — endpoint path composite API, под которым workflow
	// зарегистрирован в шлюзе.
	Endpoint string `json:"endpoint"`

	// Graph — узлы и рёбра.
	Graph WorkflowGraph `json:"graph"`

	// CreatedAt — время деплоя.
	CreatedAt time.Time `json:"created_at"`
}

// WorkflowGraph — граф workflow: узлы + направленные рёбра с field mappings.
type WorkflowGraph struct {
	// Nodes — узлы графа.
	Nodes []WorkflowNode `json:"nodes"`

	// Edges — рёбра. Порядок объявления значим: при конфликте
	// dest-поля выигрывает последнее по порядку объявления ребро.
	Edges []WorkflowEdge `json:"edges"`
}

// WorkflowNode — узел workflow: ссылка на зарегистрированный API.
type WorkflowNode struct {
	// ID — идентификатор узла, уникальный в рамках графа.
	ID string `json:"id"`

	// Endpoint — endpoint зарегистрированного API, который вызывает узел.
	Endpoint string `json:"endpoint"`

	// Params — статические входные параметры, заданные пользователем.
	// Могут переопределяться значениями из входящих рёбер.
	Params map[string]any `json:"params,omitempty"`

	// Position — координаты узла в редакторе. На выполнение не влияет.
	Position *Position `json:"position,omitempty"`
}

// Position — позиция узла в визуальном редакторе.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WorkflowEdge — направленное ребро между узлами.
type WorkflowEdge struct {
	// Source — ID узла-источника.
	Source string `json:"source"`

	// Target — ID узла-приёмника.
	Target string `json:"target"`

	// Mappings — упорядоченный список правил копирования полей:
	// именованное поле выхода source-узла → именованный вход target-узла.
	Mappings []FieldMapping `json:"mappings,omitempty"`
}

// FieldMapping — правило копирования одного поля.
type FieldMapping struct {
	// SourceField — имя поля в выходе source-узла.
	SourceField string `json:"source_field"`

	// DestField — имя входного параметра target-узла.
	DestField string `json:"dest_field"`
}

// NodeByID возвращает узел по ID или nil.
func (g *WorkflowGraph) NodeByID(id string) *WorkflowNode {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}
