package engine

import "errors"

// Ошибки валидации графа workflow.
var (
	// ErrEmptyNodes — граф не содержит узлов.
	ErrEmptyNodes = errors.New("workflow graph has no nodes")

	// ErrEmptyNodeID — узел не имеет ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNode — ребро ссылается на несуществующий узел.
	ErrUnknownNode = errors.New("edge references unknown node")

	// ErrSelfEdge — ребро из узла в самого себя.
	ErrSelfEdge = errors.New("edge from node to itself")

	// ErrCyclicGraph — обнаружен цикл в графе.
	ErrCyclicGraph = errors.New("workflow graph contains a cycle")

	// ErrEmptyMapping — mapping без имени source или dest поля.
	ErrEmptyMapping = errors.New("field mapping has empty field name")
)

// Ошибки привязки графа к реестру API.
var (
	// ErrUnknownEndpoint — узел ссылается на незарегистрированный endpoint.
	ErrUnknownEndpoint = errors.New("node references unknown endpoint")

	// ErrUnknownOutputField — mapping читает поле, которого нет
	// в декларированной выходной схеме source-узла.
	ErrUnknownOutputField = errors.New("mapping reads undeclared output field")

	// ErrUnknownInputField — mapping пишет в поле, которого нет
	// в декларированной входной схеме target-узла.
	ErrUnknownInputField = errors.New("mapping writes undeclared input field")
)

// Ошибки выполнения узлов.
var (
	// ErrMissingRequiredField — обязательное входное поле не разрешено
	// ни статическим параметром, ни входящим mapping.
	ErrMissingRequiredField = errors.New("missing required input field")

	// ErrUpstreamFailed — upstream-узел завершился с ошибкой или пропущен.
	ErrUpstreamFailed = errors.New("upstream node did not succeed")
)

// ValidationError — ошибка валидации с контекстом узла.
type ValidationError struct {
	NodeID  string // ID узла, где произошла ошибка
	Field   string // поле или ребро, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
