package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
	"github.com/shaiso/bazaar/internal/flaunch"
)

// seedRoute — одна запись в файле предзагрузки. Описывает API с уже
// задеплоенным токеном, который нужно поднять в реестр без запуска.
type seedRoute struct {
	Name            string        `json:"name"`
	Endpoint        string        `json:"endpoint"`
	TargetURL       string        `json:"target_url"`
	Method          string        `json:"method"`
	WalletAddress   string        `json:"wallet_address"`
	Description     string        `json:"description"`
	TokenAddress    string        `json:"token_address"`
	Symbol          string        `json:"symbol"`
	TokenURI        string        `json:"token_uri"`
	TxHash          string        `json:"tx_hash"`
	LaunchpadURL    string        `json:"launchpad_url"`
	PriceMultiplier float64       `json:"price_multiplier"`
	InputSchema     domain.Schema `json:"input_schema"`
	OutputSchema    domain.Schema `json:"output_schema"`
}

// missingField возвращает имя первого незаполненного обязательного поля.
func (r *seedRoute) missingField() string {
	switch {
	case r.Name == "":
		return "name"
	case r.Endpoint == "":
		return "endpoint"
	case r.TargetURL == "":
		return "target_url"
	case r.WalletAddress == "":
		return "wallet_address"
	case r.TokenAddress == "":
		return "token_address"
	default:
		return ""
	}
}

// SeedFromFile регистрирует API из JSON-файла предзагрузки.
//
// Записи с незаполненными обязательными полями и endpoints, уже
// присутствующие в реестре, пропускаются с предупреждением. Все
// загруженные API сразу получают статус DEPLOYED: токен для них уже
// задеплоен, котировки подтянет price poller на первом тике.
//
// Отсутствие файла не ошибка: возвращается (0, nil).
func (s *Store) SeedFromFile(ctx context.Context, path, network string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var routes []seedRoute
	if err := json.Unmarshal(data, &routes); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	seeded := 0
	for _, route := range routes {
		if field := route.missingField(); field != "" {
			s.logger.Warn("seed route skipped: missing required field",
				"field", field, "endpoint", route.Endpoint, "name", route.Name)
			continue
		}

		endpoint := domain.NormalizeEndpoint(route.Endpoint)
		if _, ok := s.ResolveEndpoint(endpoint); ok {
			s.logger.Warn("seed route skipped: endpoint already registered",
				"endpoint", endpoint)
			continue
		}

		api := seedAPI(route, endpoint, network)
		if err := s.Register(ctx, &api); err != nil {
			return seeded, fmt.Errorf("seed %s: %w", endpoint, err)
		}
		seeded++
	}

	if seeded > 0 {
		s.logger.Info("seed routes loaded", "path", path, "count", seeded)
	}
	return seeded, nil
}

// seedAPI строит запись реестра из seed-записи, подставляя значения
// по умолчанию там, где файл молчит.
func seedAPI(route seedRoute, endpoint, network string) domain.RegisteredAPI {
	method := strings.ToUpper(route.Method)
	if method == "" {
		method = "GET"
	}
	symbol := route.Symbol
	if symbol == "" {
		symbol = domain.TokenSymbol(route.Name)
	}
	launchpadURL := route.LaunchpadURL
	if launchpadURL == "" {
		launchpadURL = flaunch.LaunchpadURL(network, route.TokenAddress)
	}
	multiplier := route.PriceMultiplier
	if multiplier <= 0 {
		multiplier = domain.DefaultPriceMultiplier
	}

	return domain.RegisteredAPI{
		Endpoint:        endpoint,
		Name:            route.Name,
		TargetURL:       route.TargetURL,
		Method:          method,
		WalletAddress:   route.WalletAddress,
		Description:     route.Description,
		Kind:            domain.APIKindProxy,
		Status:          domain.APIStatusDeployed,
		InputSchema:     route.InputSchema,
		OutputSchema:    route.OutputSchema,
		PriceMultiplier: multiplier,
		Token: domain.TokenInfo{
			Address:      route.TokenAddress,
			Symbol:       symbol,
			TokenURI:     route.TokenURI,
			TxHash:       route.TxHash,
			LaunchpadURL: launchpadURL,
		},
		CreatedAt: time.Now(),
	}
}
