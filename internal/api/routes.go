package api

import (
	"net/http"
)

// RegisterRoutes регистрирует маршруты admin API и платного шлюза.
//
// Health и metrics регистрирует бинарник: у шлюза catch-all маршрут,
// поэтому служебные пути должны объявляться с явным методом.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// APIs
	mux.Handle("POST /admin/apis", chain(http.HandlerFunc(h.RegisterAPI)))
	mux.Handle("GET /admin/apis", chain(http.HandlerFunc(h.ListAPIs)))
	mux.Handle("GET /admin/apis/{endpoint}", chain(http.HandlerFunc(h.GetAPI)))
	mux.Handle("GET /admin/apis/{endpoint}/status", chain(http.HandlerFunc(h.GetAPIStatus)))
	mux.Handle("GET /admin/apis/{endpoint}/schema", chain(http.HandlerFunc(h.GetAPISchema)))
	mux.Handle("GET /admin/apis/{endpoint}/info", chain(http.HandlerFunc(h.GetAPIInfo)))

	// Workflows
	mux.Handle("POST /admin/workflows/execute", chain(http.HandlerFunc(h.ExecuteWorkflow)))
	mux.Handle("POST /admin/workflows", chain(http.HandlerFunc(h.DeployWorkflow)))
	mux.Handle("GET /admin/workflows", chain(http.HandlerFunc(h.ListWorkflows)))
	mux.Handle("GET /admin/workflows/{id}", chain(http.HandlerFunc(h.GetWorkflow)))

	// Runs
	mux.Handle("GET /admin/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /admin/runs/{id}", chain(http.HandlerFunc(h.GetRun)))

	// Платный шлюз: все остальные пути — зарегистрированные endpoints.
	mux.Handle("GET /{path...}", chain(http.HandlerFunc(h.ServeGateway)))
	mux.Handle("POST /{path...}", chain(http.HandlerFunc(h.ServeGateway)))
}
