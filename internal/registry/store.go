// Package registry хранит реестр зарегистрированных API и задеплоенных
// workflows: персистентность в Postgres плюс in-memory кэш для горячего
// пути шлюза (резолв endpoint на каждый запрос).
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/bazaar/internal/domain"
)

// APIRepository — персистентное хранилище записей API.
type APIRepository interface {
	Create(ctx context.Context, api *domain.RegisteredAPI) error
	GetByEndpoint(ctx context.Context, endpoint string) (*domain.RegisteredAPI, error)
	List(ctx context.Context) ([]domain.RegisteredAPI, error)
	ListByStatus(ctx context.Context, status domain.APIStatus) ([]domain.RegisteredAPI, error)
	Finalize(ctx context.Context, endpoint string, token domain.TokenInfo) error
	UpdatePrice(ctx context.Context, endpoint string, price domain.PriceSnapshot) error
}

// WorkflowRepository — персистентное хранилище workflows.
type WorkflowRepository interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	GetByEndpoint(ctx context.Context, endpoint string) (*domain.Workflow, error)
	List(ctx context.Context) ([]domain.Workflow, error)
}

// Store — реестр API. Все операции пишут сначала в БД, затем в кэш;
// чтения идут из кэша без похода в БД.
type Store struct {
	apiRepo APIRepository
	wfRepo  WorkflowRepository
	logger  *slog.Logger

	mu        sync.RWMutex
	apis      map[string]domain.RegisteredAPI // по endpoint
	workflows map[string]domain.Workflow      // по endpoint
}

// NewStore создаёт пустой реестр поверх репозиториев.
func NewStore(apiRepo APIRepository, wfRepo WorkflowRepository, logger *slog.Logger) *Store {
	return &Store{
		apiRepo:   apiRepo,
		wfRepo:    wfRepo,
		logger:    logger,
		apis:      make(map[string]domain.RegisteredAPI),
		workflows: make(map[string]domain.Workflow),
	}
}

// Load прогревает кэш из БД. Вызывается при старте сервиса.
func (s *Store) Load(ctx context.Context) error {
	apis, err := s.apiRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("load apis: %w", err)
	}
	workflows, err := s.wfRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("load workflows: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, api := range apis {
		s.apis[api.Endpoint] = api
	}
	for _, wf := range workflows {
		s.workflows[wf.Endpoint] = wf
	}

	s.logger.Info("registry loaded", "apis", len(apis), "workflows", len(workflows))
	return nil
}

// Register сохраняет новый API и кладёт его в кэш.
func (s *Store) Register(ctx context.Context, api *domain.RegisteredAPI) error {
	if err := s.apiRepo.Create(ctx, api); err != nil {
		return err
	}

	s.mu.Lock()
	s.apis[api.Endpoint] = *api
	s.mu.Unlock()

	s.logger.Info("api registered",
		"endpoint", api.Endpoint, "name", api.Name, "kind", api.Kind)
	return nil
}

// ResolveEndpoint возвращает копию записи API по endpoint.
// Реализует engine.Resolver.
func (s *Store) ResolveEndpoint(endpoint string) (*domain.RegisteredAPI, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	api, ok := s.apis[endpoint]
	if !ok {
		return nil, false
	}
	return &api, true
}

// Lookup — как ResolveEndpoint, но при промахе кэша идёт в БД и кладёт
// найденную запись в кэш. Кэш прогревается один раз при старте, а пишет
// в него только собственный процесс: API, зарегистрированные через
// bazaar-api, launcher и pricesync иначе не увидели бы до рестарта.
func (s *Store) Lookup(ctx context.Context, endpoint string) (*domain.RegisteredAPI, error) {
	if api, ok := s.ResolveEndpoint(endpoint); ok {
		return api, nil
	}

	api, err := s.apiRepo.GetByEndpoint(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.apis[api.Endpoint] = *api
	s.mu.Unlock()

	s.logger.Debug("api cache refreshed from db", "endpoint", api.Endpoint)
	return api, nil
}

// List возвращает копии всех записей API.
func (s *Store) List() []domain.RegisteredAPI {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apis := make([]domain.RegisteredAPI, 0, len(s.apis))
	for _, api := range s.apis {
		apis = append(apis, api)
	}
	return apis
}

// DeployedAPIs возвращает все DEPLOYED API из БД и освежает кэш.
// В отличие от List читает персистентное хранилище: записи, задеплоенные
// другими процессами после старта, тоже попадают в результат.
func (s *Store) DeployedAPIs(ctx context.Context) ([]domain.RegisteredAPI, error) {
	apis, err := s.apiRepo.ListByStatus(ctx, domain.APIStatusDeployed)
	if err != nil {
		return nil, fmt.Errorf("list deployed apis: %w", err)
	}

	s.mu.Lock()
	for _, api := range apis {
		s.apis[api.Endpoint] = api
	}
	s.mu.Unlock()

	return apis, nil
}

// Finalize переводит API в DEPLOYED с метаданными токена.
func (s *Store) Finalize(ctx context.Context, endpoint string, token domain.TokenInfo) error {
	if err := s.apiRepo.Finalize(ctx, endpoint, token); err != nil {
		return err
	}

	s.mu.Lock()
	if api, ok := s.apis[endpoint]; ok {
		api.Status = domain.APIStatusDeployed
		api.Token = token
		s.apis[endpoint] = api
	}
	s.mu.Unlock()

	s.logger.Info("api deployed",
		"endpoint", endpoint, "token_address", token.Address, "symbol", token.Symbol)
	return nil
}

// UpdatePrice заменяет ценовой снапшот API целиком.
func (s *Store) UpdatePrice(ctx context.Context, endpoint string, price domain.PriceSnapshot) error {
	if err := s.apiRepo.UpdatePrice(ctx, endpoint, price); err != nil {
		return err
	}

	s.mu.Lock()
	if api, ok := s.apis[endpoint]; ok {
		api.Price = price
		s.apis[endpoint] = api
	}
	s.mu.Unlock()
	return nil
}

// RegisterWorkflow сохраняет задеплоенный workflow.
func (s *Store) RegisterWorkflow(ctx context.Context, wf *domain.Workflow) error {
	if err := s.wfRepo.Create(ctx, wf); err != nil {
		return err
	}

	s.mu.Lock()
	s.workflows[wf.Endpoint] = *wf
	s.mu.Unlock()

	s.logger.Info("workflow deployed", "endpoint", wf.Endpoint, "name", wf.Name)
	return nil
}

// WorkflowByEndpoint возвращает workflow, задеплоенный на endpoint.
func (s *Store) WorkflowByEndpoint(endpoint string) (*domain.Workflow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.workflows[endpoint]
	if !ok {
		return nil, false
	}
	return &wf, true
}

// LookupWorkflow — WorkflowByEndpoint с фолбэком в БД при промахе кэша.
func (s *Store) LookupWorkflow(ctx context.Context, endpoint string) (*domain.Workflow, error) {
	if wf, ok := s.WorkflowByEndpoint(endpoint); ok {
		return wf, nil
	}

	wf, err := s.wfRepo.GetByEndpoint(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.workflows[wf.Endpoint] = *wf
	s.mu.Unlock()

	s.logger.Debug("workflow cache refreshed from db", "endpoint", wf.Endpoint)
	return wf, nil
}

// WorkflowByID возвращает workflow по ID: сначала кэш, затем БД.
func (s *Store) WorkflowByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	s.mu.RLock()
	for _, wf := range s.workflows {
		if wf.ID == id {
			s.mu.RUnlock()
			found := wf
			return &found, nil
		}
	}
	s.mu.RUnlock()

	wf, err := s.wfRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.workflows[wf.Endpoint] = *wf
	s.mu.Unlock()

	return wf, nil
}

// Workflows возвращает копии всех задеплоенных workflows.
func (s *Store) Workflows() []domain.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflows := make([]domain.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		workflows = append(workflows, wf)
	}
	return workflows
}
