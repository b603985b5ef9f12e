package domain

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Допустимые kernel'ы для job'ов в CML workspace.
const (
	KernelPython3 = "python3"
	KernelR       = "r"
	KernelScala   = "scala"
)

// DefaultKernel — kernel по умолчанию, если не указан в конфиге.
const DefaultKernel = KernelPython3

// Значения по умолчанию для ресурсов и таймаута job'а.
const (
	DefaultCPU        = 1.0  // vcores
	DefaultMemory     = 1.0  // GB
	DefaultTimeoutSec = 3600 // 1 час
)

// JobDef — объявление одного job'а в конфиге.
//
// Job создаётся в удалённом workspace как есть: platform сам
// управляет запуском, retry и расписанием. Здесь только описание.
type JobDef struct {
	// Key — логический ключ job'а в конфиге (ключ в mapping'е jobs).
	// Используется для ссылок parent и в отчётах. Не уходит в API.
	Key string `yaml:"-"`

	// Name — отображаемое имя job'а в workspace.
	// Уникально в рамках конфига: по нему выполняется reconciliation.
	Name string `yaml:"name"`

	// Script — путь к скрипту относительно корня проекта в workspace.
	Script string `yaml:"script"`

	// Kernel — среда выполнения: "python3", "r" или "scala".
	Kernel string `yaml:"kernel,omitempty"`

	// CPU — количество vcores. Допустимы дробные значения.
	CPU float64 `yaml:"cpu,omitempty"`

	// Memory — память в GB. Допустимы дробные значения.
	Memory float64 `yaml:"memory,omitempty"`

	// NvidiaGPU — количество GPU. Только целые значения, 0 — без GPU.
	NvidiaGPU int `yaml:"nvidia_gpu,omitempty"`

	// TimeoutSec — таймаут выполнения в секундах.
	TimeoutSec int `yaml:"timeout,omitempty"`

	// Arguments — аргументы командной строки скрипта (одной строкой).
	Arguments string `yaml:"arguments,omitempty"`

	// Environment — переменные окружения job'а.
	Environment map[string]string `yaml:"environment,omitempty"`

	// Attachments — файлы, прикрепляемые к email-отчётам job'а.
	Attachments []string `yaml:"attachments,omitempty"`

	// Schedule — cron-выражение для периодического запуска.
	// Взаимоисключимо с Parent.
	Schedule string `yaml:"schedule,omitempty"`

	// Parent — ключ родительского job'а. Job запускается platform'ой
	// после успешного завершения родителя. Взаимоисключимо с Schedule.
	Parent string `yaml:"parent,omitempty"`
}

// IsScheduled возвращает true, если job запускается по расписанию.
func (j *JobDef) IsScheduled() bool {
	return j.Schedule != ""
}

// IsDependent возвращает true, если job запускается после родителя.
func (j *JobDef) IsDependent() bool {
	return j.Parent != ""
}

// JobsConfig — полный job graph из конфига.
//
// Порядок объявления сохраняется: он используется как детерминированный
// tie-break при топологической сортировке и в выводе plan/apply.
type JobsConfig struct {
	// Jobs — job'ы в порядке объявления в YAML.
	Jobs []JobDef
}

// Get возвращает job по ключу. nil, если не найден.
func (c *JobsConfig) Get(key string) *JobDef {
	for i := range c.Jobs {
		if c.Jobs[i].Key == key {
			return &c.Jobs[i]
		}
	}
	return nil
}

// Keys возвращает ключи job'ов в порядке объявления.
func (c *JobsConfig) Keys() []string {
	keys := make([]string, len(c.Jobs))
	for i := range c.Jobs {
		keys[i] = c.Jobs[i].Key
	}
	return keys
}

// configFile — структура верхнего уровня YAML-файла.
type configFile struct {
	Jobs yaml.Node `yaml:"jobs"`
}

// UnmarshalYAML разбирает конфиг, сохраняя порядок объявления job'ов.
//
// Стандартный decode в map[string]JobDef теряет порядок ключей,
// поэтому mapping jobs обходится по узлам.
func (c *JobsConfig) UnmarshalYAML(value *yaml.Node) error {
	var file configFile
	if err := value.Decode(&file); err != nil {
		return err
	}

	if file.Jobs.Kind == 0 {
		// Секция jobs отсутствует — оставляем пустой список,
		// валидация сообщит об этом осмысленной ошибкой.
		return nil
	}

	if file.Jobs.Kind != yaml.MappingNode {
		return fmt.Errorf("jobs must be a mapping of job key to job definition")
	}

	// MappingNode хранит пары [key, value, key, value, ...]
	seen := make(map[string]bool, len(file.Jobs.Content)/2)
	for i := 0; i+1 < len(file.Jobs.Content); i += 2 {
		keyNode := file.Jobs.Content[i]
		valNode := file.Jobs.Content[i+1]

		// yaml.Node не отбрасывает повторные ключи mapping'а сам.
		if seen[keyNode.Value] {
			return fmt.Errorf("duplicate job key %q", keyNode.Value)
		}
		seen[keyNode.Value] = true

		var job JobDef
		if err := valNode.Decode(&job); err != nil {
			return fmt.Errorf("job %q: %w", keyNode.Value, err)
		}
		job.Key = keyNode.Value

		c.Jobs = append(c.Jobs, job)
	}

	return nil
}
