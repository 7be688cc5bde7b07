package engine

import (
	"fmt"

	"github.com/shaiso/bazaar/internal/domain"
)

// Graph — построенный и проверенный на структурную корректность
// граф workflow: узлы, смежность и детерминированный топологический
// порядок выполнения.
type Graph struct {
	Nodes map[string]*domain.WorkflowNode // узлы по ID

	// Incoming — входящие рёбра по ID target-узла, в порядке
	// объявления в графе. Порядок значим: при конфликте dest-полей
	// побеждает последний mapping.
	Incoming map[string][]domain.WorkflowEdge

	// Order — топологический порядок выполнения узлов.
	Order []string

	parents map[string][]string // ID upstream-узлов по ID узла
}

// Parents возвращает ID всех прямых upstream-узлов данного узла.
func (g *Graph) Parents(nodeID string) []string {
	return g.parents[nodeID]
}

// BuildGraph строит граф из описания workflow, проверяя структурную
// корректность: непустой список узлов, уникальные ID, рёбра только
// между существующими узлами, отсутствие петель и циклов.
func BuildGraph(wg *domain.WorkflowGraph) (*Graph, error) {
	if len(wg.Nodes) == 0 {
		return nil, ErrEmptyNodes
	}

	g := &Graph{
		Nodes:    make(map[string]*domain.WorkflowNode, len(wg.Nodes)),
		Incoming: make(map[string][]domain.WorkflowEdge),
		parents:  make(map[string][]string),
	}

	for i := range wg.Nodes {
		node := &wg.Nodes[i]
		if node.ID == "" {
			return nil, ErrEmptyNodeID
		}
		if _, ok := g.Nodes[node.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNodeID, node.ID)
		}
		g.Nodes[node.ID] = node
	}

	// indegree считаем по уникальным парам (source, target): несколько
	// рёбер между одной парой узлов допустимы (разные mappings), но
	// в топологической сортировке пара учитывается один раз.
	indegree := make(map[string]int, len(wg.Nodes))
	children := make(map[string][]string)
	seenPair := make(map[[2]string]bool)

	for _, edge := range wg.Edges {
		if _, ok := g.Nodes[edge.Source]; !ok {
			return nil, fmt.Errorf("%w: source %q", ErrUnknownNode, edge.Source)
		}
		if _, ok := g.Nodes[edge.Target]; !ok {
			return nil, fmt.Errorf("%w: target %q", ErrUnknownNode, edge.Target)
		}
		if edge.Source == edge.Target {
			return nil, fmt.Errorf("%w: %q", ErrSelfEdge, edge.Source)
		}
		for _, m := range edge.Mappings {
			if m.SourceField == "" || m.DestField == "" {
				return nil, fmt.Errorf("%w: edge %q -> %q", ErrEmptyMapping, edge.Source, edge.Target)
			}
		}

		g.Incoming[edge.Target] = append(g.Incoming[edge.Target], edge)

		pair := [2]string{edge.Source, edge.Target}
		if !seenPair[pair] {
			seenPair[pair] = true
			children[edge.Source] = append(children[edge.Source], edge.Target)
			g.parents[edge.Target] = append(g.parents[edge.Target], edge.Source)
			indegree[edge.Target]++
		}
	}

	// Алгоритм Кана. Очередь инициализируется в порядке объявления
	// узлов, поэтому порядок выполнения детерминирован для
	// одинакового входа.
	queue := make([]string, 0, len(wg.Nodes))
	for i := range wg.Nodes {
		if indegree[wg.Nodes[i].ID] == 0 {
			queue = append(queue, wg.Nodes[i].ID)
		}
	}

	order := make([]string, 0, len(wg.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, child := range children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != len(wg.Nodes) {
		return nil, ErrCyclicGraph
	}

	g.Order = order
	return g, nil
}
