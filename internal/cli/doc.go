// Package cli реализует инструмент командной строки Gridflow.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Gridflow API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для приёма заказов, запуска и наблюдения прогонов
// и управления расписаниями.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Gridflow API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (dataResponse, listResponse, errorResponse),
// bearer-авторизацию и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080", token)
//	runs, err := client.ListRuns(cli.ListRunsOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: gridflow run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - order: ingest, list
//   - run: list, start, show, transitions
//   - schedule: list, create, show, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
