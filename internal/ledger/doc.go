// Package ledger — опциональная история запусков apply в Postgres.
//
// Каждый apply записывается как apply_run с построчными apply_jobs —
// что было создано, обновлено, удалено и с какими ошибками.
// Подключается флагом --ledger (DSN из DB_URL); без него provisor
// не трогает БД вообще.
package ledger
