package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
)

// HTTPInvoker выполняет вызов одного API для узла workflow.
// Реализует engine.Invoker.
//
// GET: входы уходят query-параметрами, POST: JSON-телом.
// Не-2xx ответ или сетевая ошибка — ошибка узла.
type HTTPInvoker struct {
	httpc *http.Client
}

// NewHTTPInvoker создаёт invoker с таймаутом на каждый вызов узла.
func NewHTTPInvoker(timeout time.Duration) *HTTPInvoker {
	if timeout <= 0 {
		timeout = DefaultProxyTimeout
	}
	return &HTTPInvoker{
		httpc: &http.Client{Timeout: timeout},
	}
}

// Invoke вызывает API с подготовленными входами и возвращает его выход.
func (i *HTTPInvoker) Invoke(ctx context.Context, api *domain.RegisteredAPI, inputs map[string]any) (map[string]any, error) {
	req, err := i.buildRequest(ctx, api, inputs)
	if err != nil {
		return nil, err
	}

	resp, err := i.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", api.Endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", api.Endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned status %d: %s", api.Endpoint, resp.StatusCode, truncate(body, 256))
	}

	// Выход узла — JSON-объект; любой другой JSON оборачивается
	// в поле result, чтобы его тоже можно было замапить дальше.
	var out map[string]any
	if err := json.Unmarshal(body, &out); err == nil {
		return out, nil
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, fmt.Errorf("response from %s is not JSON: %s", api.Endpoint, truncate(body, 256))
	}
	return map[string]any{"result": value}, nil
}

func (i *HTTPInvoker) buildRequest(ctx context.Context, api *domain.RegisteredAPI, inputs map[string]any) (*http.Request, error) {
	method := strings.ToUpper(api.Method)

	if method == http.MethodGet {
		target, err := url.Parse(api.TargetURL)
		if err != nil {
			return nil, fmt.Errorf("parse target URL for %s: %w", api.Endpoint, err)
		}
		query := target.Query()
		for key, value := range inputs {
			query.Set(key, fmt.Sprintf("%v", value))
		}
		target.RawQuery = query.Encode()

		return http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	}

	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("marshal inputs for %s: %w", api.Endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, api.TargetURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
