package domain

// APIStatus — статус зарегистрированного API.
//
// Жизненный цикл:
//
//	LAUNCHING → DEPLOYED
//
// Composite endpoints проходят тот же жизненный цикл:
// для задеплоенного workflow токен запускается так же, как для proxy API.
type APIStatus string

const (
	// APIStatusLaunching — токен ещё запускается, шлюз отвечает 503.
	APIStatusLaunching APIStatus = "LAUNCHING"

	// APIStatusDeployed — токен задеплоен, API принимает оплаченные вызовы.
	APIStatusDeployed APIStatus = "DEPLOYED"
)

// RunStatus — статус выполнения workflow run.
//
// Жизненный цикл:
//
//	RUNNING → SUCCEEDED
//	        ↘ FAILED
//
// Run выполняется синхронно в рамках одного запроса, поэтому
// PENDING-состояния нет.
type RunStatus string

const (
	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все узлы выполнены успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — хотя бы один узел завершился с ошибкой или пропущен.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// NodeStatus — статус выполнения одного узла workflow.
type NodeStatus string

const (
	// NodeStatusSucceeded — вызов API узла завершился 2xx.
	NodeStatusSucceeded NodeStatus = "SUCCEEDED"

	// NodeStatusFailed — сетевая ошибка, non-2xx ответ или отсутствие
	// обязательного входного поля.
	NodeStatusFailed NodeStatus = "FAILED"

	// NodeStatusSkipped — узел не выполнялся: упал или был пропущен
	// один из его upstream-узлов.
	NodeStatusSkipped NodeStatus = "SKIPPED"
)
