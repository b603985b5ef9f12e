package engine

import "errors"

// Ошибки валидации конфига job'ов.
var (
	// ErrEmptyJobs — конфиг не содержит ни одного job'а.
	ErrEmptyJobs = errors.New("config has no jobs")

	// ErrEmptyName — job не имеет отображаемого имени.
	ErrEmptyName = errors.New("job has empty name")

	// ErrEmptyScript — job не имеет скрипта.
	ErrEmptyScript = errors.New("job has empty script")

	// ErrDuplicateName — несколько job'ов с одинаковым именем.
	// Имя — ключ reconciliation, совпадения недопустимы.
	ErrDuplicateName = errors.New("duplicate job name")

	// ErrDuplicateKey — несколько job'ов с одинаковым логическим ключом.
	ErrDuplicateKey = errors.New("duplicate job key")

	// ErrUnknownKernel — неизвестный kernel.
	ErrUnknownKernel = errors.New("unknown kernel")

	// ErrUnknownParent — job ссылается на несуществующий родительский ключ.
	ErrUnknownParent = errors.New("job references unknown parent")

	// ErrSelfParent — job ссылается сам на себя.
	ErrSelfParent = errors.New("job is its own parent")

	// ErrCyclicDependency — обнаружен цикл в parent-ссылках.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrScheduleConflict — заданы и schedule, и parent одновременно.
	ErrScheduleConflict = errors.New("schedule and parent are mutually exclusive")

	// ErrInvalidSchedule — невалидное cron-выражение.
	ErrInvalidSchedule = errors.New("invalid cron expression")

	// ErrInvalidResources — невалидный resource profile (cpu/memory/gpu/timeout).
	ErrInvalidResources = errors.New("invalid resource profile")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	JobKey  string // ключ job'а, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.JobKey != "" {
		return "job " + e.JobKey + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(jobKey, field, message string, err error) *ValidationError {
	return &ValidationError{
		JobKey:  jobKey,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
