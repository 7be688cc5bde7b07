package domain

import (
	"net/http"
	"strings"
	"time"
)

// Значения по умолчанию для ценообразования.
const (
	// DefaultPriceMultiplier — множитель, превращающий микроскопическую цену
	// токена в осмысленную цену вызова API.
	// Пример: цена токена $0.000001 * 10000 = $0.01 за вызов.
	DefaultPriceMultiplier = 10000

	// DefaultTokenPriceUSD — цена токена до первого успешного fetch
	// из внешнего источника котировок.
	DefaultTokenPriceUSD = 0.000001
)

// APIKind — вид зарегистрированного endpoint.
type APIKind string

const (
	// APIKindProxy — обычный API: шлюз проксирует запрос на target URL.
	APIKindProxy APIKind = "proxy"

	// APIKindComposite — составной API: endpoint выполняет сохранённый workflow.
	APIKindComposite APIKind = "composite"
)

// RegisteredAPI — зарегистрированный в маркетплейсе API.
//
// Ключ — endpoint path (уникальный, всегда с ведущим "/").
// Запись создаётся при регистрации, ценовой снапшот мутируется
// price poller'ом. Удаление не поддерживается.
type RegisteredAPI struct {
	// Endpoint — путь, по которому API доступен через шлюз.
	Endpoint string `json:"endpoint"`

	// Name — человекочитаемое имя (например, "Weather API").
	Name string `json:"name"`

	// TargetURL — URL обёрнутого API, куда проксируются запросы.
	// Пустой для composite endpoints.
	TargetURL string `json:"target_url,omitempty"`

	// Method — HTTP-метод вызова: GET или POST.
	Method string `json:"method"`

	// WalletAddress — адрес кошелька владельца (получатель платежей).
	WalletAddress string `json:"wallet_address"`

	// Description — описание назначения API.
	Description string `json:"description,omitempty"`

	// Kind — proxy или composite.
	Kind APIKind `json:"kind"`

	// Status — LAUNCHING, пока токен не задеплоен, затем DEPLOYED.
	Status APIStatus `json:"status"`

	// InputSchema — декларация входных полей. Nil — поля не декларированы,
	// принимается любой набор.
	InputSchema Schema `json:"input_schema,omitempty"`

	// OutputSchema — декларация выходных полей.
	OutputSchema Schema `json:"output_schema,omitempty"`

	// PriceMultiplier — множитель цены токена для этого API.
	PriceMultiplier float64 `json:"price_multiplier"`

	// Token — метаданные токена, запущенного для этого API.
	Token TokenInfo `json:"token"`

	// Price — кэшированный ценовой снапшот.
	Price PriceSnapshot `json:"price"`

	// CreatedAt — время регистрации.
	CreatedAt time.Time `json:"created_at"`
}

// TokenInfo — метаданные токена, запущенного на внешнем launch-сервисе.
type TokenInfo struct {
	// JobID — идентификатор задачи запуска на launch-сервисе.
	JobID string `json:"job_id,omitempty"`

	// Address — адрес контракта токена. Пустой, пока запуск не завершён.
	Address string `json:"address,omitempty"`

	// Symbol — тикер токена (первые 3 буквы имени + "API").
	Symbol string `json:"symbol,omitempty"`

	// TokenURI — URI метаданных токена.
	TokenURI string `json:"token_uri,omitempty"`

	// TxHash — хэш транзакции деплоя.
	TxHash string `json:"tx_hash,omitempty"`

	// LaunchpadURL — ссылка на страницу токена на launchpad.
	LaunchpadURL string `json:"launchpad_url,omitempty"`

	// StartingMarketCap — стартовая капитализация, передаётся launch-сервису.
	StartingMarketCap string `json:"starting_market_cap,omitempty"`
}

// PriceSnapshot — кэшированные котировки токена.
//
// Заменяется атомарно целиком: читатели могут видеть устаревший снапшот,
// но никогда — частично обновлённый.
type PriceSnapshot struct {
	// TokenPriceUSD — текущая цена токена в USD.
	TokenPriceUSD float64 `json:"token_price_usd"`

	// Volume24hUSD — объём торгов за 24 часа.
	Volume24hUSD float64 `json:"volume_24h_usd"`

	// Volume7dUSD — объём торгов за 7 дней.
	Volume7dUSD float64 `json:"volume_7d_usd"`

	// FetchedAt — время последнего успешного обновления.
	// Нулевое, если котировки ни разу не были получены.
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// APIPriceUSD возвращает цену одного вызова API:
// цена токена * множитель. До первого fetch используется цена по умолчанию.
func (a *RegisteredAPI) APIPriceUSD() float64 {
	tokenPrice := a.Price.TokenPriceUSD
	if tokenPrice <= 0 {
		tokenPrice = DefaultTokenPriceUSD
	}
	multiplier := a.PriceMultiplier
	if multiplier <= 0 {
		multiplier = DefaultPriceMultiplier
	}
	return tokenPrice * multiplier
}

// IsDeployed возвращает true, если токен задеплоен и API принимает платежи.
func (a *RegisteredAPI) IsDeployed() bool {
	return a.Status == APIStatusDeployed
}

// NormalizeEndpoint приводит endpoint path к каноническому виду
// (с ведущим "/").
func NormalizeEndpoint(endpoint string) string {
	if endpoint == "" {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		return "/" + endpoint
	}
	return endpoint
}

// IsValidMethod проверяет, что метод поддерживается шлюзом.
func IsValidMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodPost:
		return true
	default:
		return false
	}
}

// TokenSymbol строит тикер токена из имени API: первые 3 буквы + "API".
func TokenSymbol(name string) string {
	base := strings.ToUpper(name)
	if len(base) > 3 {
		base = base[:3]
	}
	return base + "API"
}
