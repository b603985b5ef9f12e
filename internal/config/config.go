package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Provisor/internal/domain"
)

// ErrConfigNotFound — конфиг не найден ни по одному из известных путей.
var ErrConfigNotFound = errors.New("jobs config not found")

// defaultPaths — пути, по которым ищется конфиг, если путь не задан явно.
// Порядок имеет значение: первый существующий выигрывает.
var defaultPaths = []string{
	"config/jobs.yaml",
	"jobs.yaml",
	filepath.Join("..", "config", "jobs.yaml"),
}

// Load загружает и подготавливает конфиг job'ов.
//
// Если path пустой, файл ищется по стандартным путям (config/jobs.yaml,
// jobs.yaml, ../config/jobs.yaml). После разбора ко всем job'ам
// применяются значения по умолчанию, а в значениях environment
// разворачиваются ссылки на переменные окружения ($VAR и ${VAR}).
func Load(path string) (*domain.JobsConfig, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", resolved, err)
	}

	return cfg, nil
}

// Parse разбирает YAML-конфиг и применяет defaults и env expansion.
func Parse(data []byte) (*domain.JobsConfig, error) {
	var cfg domain.JobsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	expandEnv(&cfg)

	return &cfg, nil
}

// resolvePath возвращает путь к конфигу: явный или первый существующий
// из стандартных.
func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return path, nil
	}

	for _, candidate := range defaultPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: tried %v", ErrConfigNotFound, defaultPaths)
}

// applyDefaults заполняет незаданные поля значениями по умолчанию.
func applyDefaults(cfg *domain.JobsConfig) {
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]

		if job.Kernel == "" {
			job.Kernel = domain.DefaultKernel
		}
		if job.CPU == 0 {
			job.CPU = domain.DefaultCPU
		}
		if job.Memory == 0 {
			job.Memory = domain.DefaultMemory
		}
		if job.TimeoutSec == 0 {
			job.TimeoutSec = domain.DefaultTimeoutSec
		}
	}
}

// expandEnv разворачивает $VAR и ${VAR} в значениях environment.
// Несуществующие переменные заменяются пустой строкой.
func expandEnv(cfg *domain.JobsConfig) {
	for i := range cfg.Jobs {
		for k, v := range cfg.Jobs[i].Environment {
			cfg.Jobs[i].Environment[k] = os.ExpandEnv(v)
		}
	}
}
