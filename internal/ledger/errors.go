package ledger

import "errors"

// Общие ошибки ledger'а.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")
)
