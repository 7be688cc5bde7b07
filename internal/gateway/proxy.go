package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
)

// DefaultProxyTimeout — бюджет одного запроса к обёрнутому API.
const DefaultProxyTimeout = 30 * time.Second

// Proxy проксирует оплаченный запрос на target URL обёрнутого API.
//
// Наружу передаются query-параметры, тело и заголовки запроса,
// кроме Host и X-Payment. Статус и тело ответа возвращаются как есть;
// таймаут апстрима — 504, сетевая ошибка — 502.
type Proxy struct {
	httpc  *http.Client
	logger *slog.Logger
}

// NewProxy создаёт прокси с заданным таймаутом апстрима.
func NewProxy(timeout time.Duration, logger *slog.Logger) *Proxy {
	if timeout <= 0 {
		timeout = DefaultProxyTimeout
	}
	return &Proxy{
		httpc:  &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Forward выполняет запрос к target URL и пишет ответ апстрима в w.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, api *domain.RegisteredAPI) {
	target, err := url.Parse(api.TargetURL)
	if err != nil {
		writeProxyError(w, http.StatusBadGateway, "invalid target URL")
		return
	}

	// Query-параметры входящего запроса добавляются к параметрам target URL
	query := target.Query()
	for key, values := range r.URL.Query() {
		for _, v := range values {
			query.Add(key, v)
		}
	}
	target.RawQuery = query.Encode()

	var body io.Reader
	if strings.EqualFold(api.Method, http.MethodPost) {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(r.Context(), strings.ToUpper(api.Method), target.String(), body)
	if err != nil {
		writeProxyError(w, http.StatusBadGateway, "build upstream request: "+err.Error())
		return
	}

	// Host и X-Payment наружу не уходят
	for key, values := range r.Header {
		if lower := strings.ToLower(key); lower == "host" || lower == "x-payment" {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		if isTimeout(err) {
			p.logger.Warn("target api timeout", "endpoint", api.Endpoint, "target", api.TargetURL)
			writeProxyError(w, http.StatusGatewayTimeout, "Target API timeout")
			return
		}
		p.logger.Warn("target api unreachable",
			"endpoint", api.Endpoint, "target", api.TargetURL, "error", err)
		writeProxyError(w, http.StatusBadGateway, "Target API error: "+err.Error())
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Warn("copy upstream body", "endpoint", api.Endpoint, "error", err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func writeProxyError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
