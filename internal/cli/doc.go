// Package cli реализует команды provisor.
//
// # Обзор
//
// provisor — one-shot утилита: каждая команда выполняет одно действие
// и завершается. Команды организованы по сценариям:
//
//   - validate — проверить конфиг и показать порядок применения (offline)
//   - plan     — показать, что изменит apply
//   - apply    — привести workspace в соответствие с конфигом
//   - run      — выполнить скрипты локально (smoke-тест)
//   - jobs     — list/show/delete/start для jobs workspace
//   - history  — прошлые запуски apply из ledger'а
//
// # Вывод
//
// Output поддерживает два режима: таблицы (text/tabwriter) по умолчанию
// и JSON с флагом --json. Данные уходят в stdout, сообщения
// (Success/Warn/Error) — в stderr, поэтому работает pipe:
//
//	provisor plan --json | jq '.jobs[] | select(.action != "noop")'
//
// # Зависимости команд
//
// Каждая группа создаётся фабрикой New...Cmd(deps), где Deps — набор
// замыканий для ленивого создания клиента, Output и логгера после
// разбора PersistentFlags.
package cli
