package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/bazaar/internal/domain"
)

// APIRepo — репозиторий для работы с registered_apis.
type APIRepo struct {
	pool *pgxpool.Pool
}

// NewAPIRepo создаёт новый APIRepo.
func NewAPIRepo(pool *pgxpool.Pool) *APIRepo {
	return &APIRepo{pool: pool}
}

const apiColumns = `
	endpoint, name, target_url, method, wallet_address, description,
	kind, status, input_schema, output_schema, price_multiplier,
	token, price, created_at
`

// Create создаёт новую запись API. Возвращает ErrAlreadyExists,
// если endpoint уже зарегистрирован.
func (r *APIRepo) Create(ctx context.Context, api *domain.RegisteredAPI) error {
	inputJSON, err := json.Marshal(api.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal input schema: %w", err)
	}
	outputJSON, err := json.Marshal(api.OutputSchema)
	if err != nil {
		return fmt.Errorf("marshal output schema: %w", err)
	}
	tokenJSON, err := json.Marshal(api.Token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	priceJSON, err := json.Marshal(api.Price)
	if err != nil {
		return fmt.Errorf("marshal price: %w", err)
	}

	query := `
		INSERT INTO registered_apis (` + apiColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.pool.Exec(ctx, query,
		api.Endpoint,
		api.Name,
		nullString(api.TargetURL),
		api.Method,
		api.WalletAddress,
		nullString(api.Description),
		api.Kind,
		api.Status,
		inputJSON,
		outputJSON,
		api.PriceMultiplier,
		tokenJSON,
		priceJSON,
		api.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert registered api: %w", err)
	}
	return nil
}

// GetByEndpoint возвращает API по endpoint path.
func (r *APIRepo) GetByEndpoint(ctx context.Context, endpoint string) (*domain.RegisteredAPI, error) {
	query := `
		SELECT ` + apiColumns + `
		FROM registered_apis
		WHERE endpoint = $1
	`
	return scanAPI(r.pool.QueryRow(ctx, query, endpoint))
}

// List возвращает все API в порядке регистрации (новые первыми).
func (r *APIRepo) List(ctx context.Context) ([]domain.RegisteredAPI, error) {
	query := `
		SELECT ` + apiColumns + `
		FROM registered_apis
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list registered apis: %w", err)
	}
	defer rows.Close()

	var apis []domain.RegisteredAPI
	for rows.Next() {
		api, err := scanAPIRows(rows)
		if err != nil {
			return nil, err
		}
		apis = append(apis, *api)
	}
	return apis, rows.Err()
}

// ListByStatus возвращает API в заданном статусе.
func (r *APIRepo) ListByStatus(ctx context.Context, status domain.APIStatus) ([]domain.RegisteredAPI, error) {
	query := `
		SELECT ` + apiColumns + `
		FROM registered_apis
		WHERE status = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list apis by status: %w", err)
	}
	defer rows.Close()

	var apis []domain.RegisteredAPI
	for rows.Next() {
		api, err := scanAPIRows(rows)
		if err != nil {
			return nil, err
		}
		apis = append(apis, *api)
	}
	return apis, rows.Err()
}

// Finalize переводит API из LAUNCHING в DEPLOYED и сохраняет
// метаданные задеплоенного токена. Возвращает ErrInvalidState,
// если API уже задеплоен.
func (r *APIRepo) Finalize(ctx context.Context, endpoint string, token domain.TokenInfo) error {
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	query := `
		UPDATE registered_apis
		SET status = $2, token = $3
		WHERE endpoint = $1 AND status = $4
	`
	result, err := r.pool.Exec(ctx, query,
		endpoint,
		domain.APIStatusDeployed,
		tokenJSON,
		domain.APIStatusLaunching,
	)
	if err != nil {
		return fmt.Errorf("finalize api: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Либо endpoint не существует, либо уже DEPLOYED
		if _, err := r.GetByEndpoint(ctx, endpoint); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

// UpdatePrice сохраняет свежий ценовой снапшот.
func (r *APIRepo) UpdatePrice(ctx context.Context, endpoint string, price domain.PriceSnapshot) error {
	priceJSON, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("marshal price: %w", err)
	}

	query := `
		UPDATE registered_apis
		SET price = $2
		WHERE endpoint = $1
	`
	result, err := r.pool.Exec(ctx, query, endpoint, priceJSON)
	if err != nil {
		return fmt.Errorf("update api price: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanAPI сканирует одну строку в RegisteredAPI.
func scanAPI(row pgx.Row) (*domain.RegisteredAPI, error) {
	api, err := scanAPIFrom(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return api, err
}

// scanAPIRows сканирует строку из rows в RegisteredAPI.
func scanAPIRows(rows pgx.Rows) (*domain.RegisteredAPI, error) {
	return scanAPIFrom(rows.Scan)
}

func scanAPIFrom(scan func(dest ...any) error) (*domain.RegisteredAPI, error) {
	var api domain.RegisteredAPI
	var targetURL, description *string
	var inputJSON, outputJSON, tokenJSON, priceJSON []byte
	var createdAt time.Time

	err := scan(
		&api.Endpoint,
		&api.Name,
		&targetURL,
		&api.Method,
		&api.WalletAddress,
		&description,
		&api.Kind,
		&api.Status,
		&inputJSON,
		&outputJSON,
		&api.PriceMultiplier,
		&tokenJSON,
		&priceJSON,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan registered api: %w", err)
	}

	if targetURL != nil {
		api.TargetURL = *targetURL
	}
	if description != nil {
		api.Description = *description
	}
	api.CreatedAt = createdAt

	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &api.InputSchema); err != nil {
			return nil, fmt.Errorf("unmarshal input schema: %w", err)
		}
	}
	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &api.OutputSchema); err != nil {
			return nil, fmt.Errorf("unmarshal output schema: %w", err)
		}
	}
	if tokenJSON != nil {
		if err := json.Unmarshal(tokenJSON, &api.Token); err != nil {
			return nil, fmt.Errorf("unmarshal token: %w", err)
		}
	}
	if priceJSON != nil {
		if err := json.Unmarshal(priceJSON, &api.Price); err != nil {
			return nil, fmt.Errorf("unmarshal price: %w", err)
		}
	}

	return &api, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
