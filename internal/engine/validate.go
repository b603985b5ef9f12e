package engine

import (
	"fmt"
	"math"

	"github.com/shaiso/Provisor/internal/domain"
)

// Допустимые kernel'ы.
var validKernels = map[string]bool{
	domain.KernelPython3: true,
	domain.KernelR:       true,
	domain.KernelScala:   true,
}

// Validate выполняет полную валидацию конфига job'ов.
//
// Проверяет:
// - Наличие job'ов
// - Обязательные поля (name, script)
// - Уникальность логических ключей
// - Уникальность имён (имя — ключ reconciliation)
// - Корректность kernel'а
// - Валидность resource profile (cpu, memory, gpu, timeout)
// - Взаимоисключимость schedule и parent
// - Валидность cron-выражений
// - Валидность parent-ссылок (существование, self-reference)
// - Отсутствие циклов (делегируется DAG)
func Validate(cfg *domain.JobsConfig) error {
	if cfg == nil || len(cfg.Jobs) == 0 {
		return ErrEmptyJobs
	}

	names := make(map[string]string) // name → key первого владельца
	keys := make(map[string]bool)

	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]

		// Повторный ключ склеил бы два job'а в один узел DAG.
		if keys[job.Key] {
			return NewValidationError(job.Key, "key",
				fmt.Sprintf("duplicate job key %q", job.Key), ErrDuplicateKey)
		}
		keys[job.Key] = true

		if err := validateJob(job, names); err != nil {
			return err
		}
	}

	// Parent-ссылки проверяются вторым проходом: ссылаться можно
	// на job, объявленный ниже по файлу.
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]

		if job.Parent == "" {
			continue
		}
		if job.Parent == job.Key {
			return NewValidationError(job.Key, "parent",
				"job is its own parent", ErrSelfParent)
		}
		if !keys[job.Parent] {
			return NewValidationError(job.Key, "parent",
				fmt.Sprintf("references unknown parent: %s", job.Parent), ErrUnknownParent)
		}
	}

	// Циклы обнаруживает топологическая сортировка.
	if _, err := BuildDAG(cfg); err != nil {
		return err
	}

	return nil
}

// validateJob валидирует один job без учёта parent-ссылок.
// names — уже встреченные имена (для проверки уникальности).
func validateJob(job *domain.JobDef, names map[string]string) error {
	if job.Name == "" {
		return NewValidationError(job.Key, "name", "job has empty name", ErrEmptyName)
	}

	if owner, ok := names[job.Name]; ok {
		return NewValidationError(job.Key, "name",
			fmt.Sprintf("duplicate job name %q (already used by %s)", job.Name, owner),
			ErrDuplicateName)
	}
	names[job.Name] = job.Key

	if job.Script == "" {
		return NewValidationError(job.Key, "script", "job has empty script", ErrEmptyScript)
	}

	if !validKernels[job.Kernel] {
		return NewValidationError(job.Key, "kernel",
			fmt.Sprintf("unknown kernel: %s", job.Kernel), ErrUnknownKernel)
	}

	if err := validateResources(job); err != nil {
		return err
	}

	if job.Schedule != "" && job.Parent != "" {
		return NewValidationError(job.Key, "schedule",
			"schedule and parent are mutually exclusive", ErrScheduleConflict)
	}

	if job.Schedule != "" {
		if err := ValidateCronExpr(job.Schedule); err != nil {
			return NewValidationError(job.Key, "schedule", err.Error(), ErrInvalidSchedule)
		}
	}

	return nil
}

// validateResources проверяет resource profile job'а.
//
// cpu и memory могут быть дробными (partial vcores/GB),
// gpu — только целое неотрицательное число.
func validateResources(job *domain.JobDef) error {
	if job.CPU <= 0 || math.IsNaN(job.CPU) || math.IsInf(job.CPU, 0) {
		return NewValidationError(job.Key, "cpu",
			fmt.Sprintf("cpu must be positive, got %v", job.CPU), ErrInvalidResources)
	}
	if job.Memory <= 0 || math.IsNaN(job.Memory) || math.IsInf(job.Memory, 0) {
		return NewValidationError(job.Key, "memory",
			fmt.Sprintf("memory must be positive, got %v", job.Memory), ErrInvalidResources)
	}
	if job.NvidiaGPU < 0 {
		return NewValidationError(job.Key, "nvidia_gpu",
			fmt.Sprintf("nvidia_gpu must not be negative, got %d", job.NvidiaGPU),
			ErrInvalidResources)
	}
	if job.TimeoutSec <= 0 {
		return NewValidationError(job.Key, "timeout",
			fmt.Sprintf("timeout must be positive, got %d", job.TimeoutSec),
			ErrInvalidResources)
	}
	return nil
}

// IsValidKernel проверяет, является ли kernel допустимым.
func IsValidKernel(kernel string) bool {
	return validKernels[kernel]
}
