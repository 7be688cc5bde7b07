// Package cli реализует инструмент командной строки Bazaar.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Bazaar API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для регистрации APIs, деплоя workflows и
// просмотра запусков.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Bazaar API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	apis, err := client.ListAPIs()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: bazaar api list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - api: list, register, show, status, info
//   - workflow: list, show, execute, deploy
//   - run: list, show
//
// Каждая группа создаётся через фабричную функцию (NewAPICmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
