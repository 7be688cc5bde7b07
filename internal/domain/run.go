package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowRun — один запуск workflow.
//
// Run создаётся когда:
// - Пользователь выполняет тестовый запуск графа (execute)
// - Шлюз выполняет задеплоенный composite endpoint
//
// Run выполняется целиком в рамках одного запроса; лог выполнения
// формируется заново на каждый запуск.
type WorkflowRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// WorkflowID — ссылка на задеплоенный workflow.
	// Nil для ad-hoc запусков через execute.
	WorkflowID *uuid.UUID `json:"workflow_id,omitempty"`

	// Status — итоговый статус run.
	Status RunStatus `json:"status"`

	// Log — записи выполнения узлов в порядке выполнения.
	// Ровно одна запись на каждый узел графа.
	Log []NodeResult `json:"log"`

	// TotalCostUSD — суммарная стоимость запуска: сумма цен вызова
	// каждого успешно выполненного узла на момент выполнения.
	TotalCostUSD float64 `json:"total_cost_usd"`

	// Error — текст ошибки для FAILED run.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NodeResult — запись лога выполнения одного узла.
type NodeResult struct {
	// NodeID — идентификатор узла в графе.
	NodeID string `json:"node_id"`

	// Endpoint — endpoint вызванного API.
	Endpoint string `json:"endpoint"`

	// Status — SUCCEEDED, FAILED или SKIPPED.
	Status NodeStatus `json:"status"`

	// Inputs — разрешённые входные параметры: статические params узла,
	// дополненные и переопределённые значениями из входящих рёбер.
	Inputs map[string]any `json:"inputs,omitempty"`

	// Output — выход API для успешного узла.
	Output map[string]any `json:"output,omitempty"`

	// Error — текст ошибки для FAILED/SKIPPED узла.
	Error string `json:"error,omitempty"`

	// PriceUSD — цена вызова на момент выполнения. 0 для невыполненных узлов.
	PriceUSD float64 `json:"price_usd"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *WorkflowRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *WorkflowRun) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *WorkflowRun) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}
