package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Provisor/internal/domain"
	"github.com/shaiso/Provisor/internal/engine"
	"github.com/shaiso/Provisor/internal/telemetry"
)

// Status — итог локального запуска одного job'а.
type Status string

const (
	// StatusSucceeded — скрипт завершился с кодом 0.
	StatusSucceeded Status = "SUCCEEDED"

	// StatusFailed — скрипт завершился с ошибкой или по таймауту.
	StatusFailed Status = "FAILED"

	// StatusSkipped — job пропущен: его родитель не выполнился.
	StatusSkipped Status = "SKIPPED"
)

// defaultInterpreters — интерпретатор для каждого kernel'а.
var defaultInterpreters = map[string]string{
	domain.KernelPython3: "python3",
	domain.KernelR:       "Rscript",
	domain.KernelScala:   "scala",
}

// defaultMaxParallel — ограничение на одновременные запуски.
const defaultMaxParallel = 4

// Result — результат локального запуска одного job'а.
type Result struct {
	// Key и Name — идентификация job'а из конфига.
	Key  string `json:"key"`
	Name string `json:"name"`

	// Status — итог запуска.
	Status Status `json:"status"`

	// Duration — длительность выполнения скрипта.
	Duration time.Duration `json:"duration"`

	// Stdout и Stderr — захваченный вывод скрипта.
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`

	// Error — причина FAILED/SKIPPED.
	Error string `json:"error,omitempty"`
}

// Runner выполняет скрипты job'ов локально.
//
// Runner — smoke-тест конфига перед provisioning'ом: каждый скрипт
// запускается один раз, в порядке зависимостей, с окружением и
// таймаутом из конфига. Это не scheduler: расписания игнорируются,
// выполняется ровно один проход по графу.
type Runner struct {
	workDir      string
	maxParallel  int
	interpreters map[string]string
	logger       *slog.Logger
}

// Options — настройки Runner.
type Options struct {
	// WorkDir — рабочая директория для скриптов (по умолчанию текущая).
	WorkDir string

	// MaxParallel — сколько независимых job'ов выполнять одновременно.
	MaxParallel int

	// Interpreters — переопределение интерпретаторов по kernel'у
	// (используется в тестах).
	Interpreters map[string]string

	// Logger (опционально; если nil — slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(opts Options) *Runner {
	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}

	interpreters := opts.Interpreters
	if interpreters == nil {
		interpreters = defaultInterpreters
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		workDir:      opts.WorkDir,
		maxParallel:  maxParallel,
		interpreters: interpreters,
		logger:       logger,
	}
}

// Run выполняет все jobs конфига локально в порядке зависимостей.
//
// Job'ы одного уровня независимы и выполняются параллельно
// (до MaxParallel одновременно). Упавший job не прерывает проход:
// его потомки помечаются SKIPPED, остальные ветки выполняются.
// Результаты возвращаются в топологическом порядке.
func (r *Runner) Run(ctx context.Context, cfg *domain.JobsConfig) ([]Result, error) {
	if err := engine.Validate(cfg); err != nil {
		return nil, err
	}

	dag, err := engine.BuildDAG(cfg)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make(map[string]Result, dag.Size())
	failed := make(map[string]bool)

	for _, level := range dag.Levels() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.maxParallel)

		for _, node := range level {
			mu.Lock()
			parentFailed := node.Job.Parent != "" && failed[node.Job.Parent]
			mu.Unlock()

			if parentFailed {
				mu.Lock()
				failed[node.Key] = true
				results[node.Key] = Result{
					Key:    node.Key,
					Name:   node.Job.Name,
					Status: StatusSkipped,
					Error:  fmt.Sprintf("parent %q did not succeed", node.Job.Parent),
				}
				mu.Unlock()
				continue
			}

			job := node.Job
			g.Go(func() error {
				res := r.runJob(gctx, job)

				mu.Lock()
				results[job.Key] = res
				if res.Status != StatusSucceeded {
					failed[job.Key] = true
				}
				mu.Unlock()

				// Ошибка job'а не отменяет уровень: потомки
				// обрабатываются через failed map.
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	ordered := make([]Result, 0, len(results))
	for _, node := range dag.Order {
		ordered = append(ordered, results[node.Key])
	}
	return ordered, nil
}

// runJob выполняет скрипт одного job'а.
func (r *Runner) runJob(ctx context.Context, job *domain.JobDef) Result {
	logger := telemetry.WithJobKey(r.logger, job.Key)

	res := Result{
		Key:  job.Key,
		Name: job.Name,
	}

	interpreter, ok := r.interpreters[job.Kernel]
	if !ok {
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("no interpreter for kernel %q", job.Kernel)
		return res
	}

	timeout := time.Duration(job.TimeoutSec) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{job.Script}, splitArguments(job.Arguments)...)
	cmd := exec.CommandContext(runCtx, interpreter, args...)
	cmd.Dir = r.workDir
	cmd.Env = mergeEnv(job.Environment)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Info("running job locally",
		"name", job.Name,
		"script", job.Script,
		"timeout", timeout,
	)

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("timed out after %s", timeout)
		logger.Error("job timed out", "name", job.Name, "timeout", timeout)
	case err != nil:
		res.Status = StatusFailed
		res.Error = err.Error()
		logger.Error("job failed", "name", job.Name, "error", err, "duration", res.Duration)
	default:
		res.Status = StatusSucceeded
		logger.Info("job succeeded", "name", job.Name, "duration", res.Duration)
	}

	return res
}

// splitArguments разбивает строку аргументов по пробелам.
func splitArguments(arguments string) []string {
	if arguments == "" {
		return nil
	}
	return strings.Fields(arguments)
}

// mergeEnv накладывает environment job'а поверх окружения процесса.
func mergeEnv(jobEnv map[string]string) []string {
	env := os.Environ()
	for k, v := range jobEnv {
		env = append(env, k+"="+v)
	}
	return env
}

// Failed возвращает true, если хотя бы один результат не SUCCEEDED.
func Failed(results []Result) bool {
	for _, res := range results {
		if res.Status != StatusSucceeded {
			return true
		}
	}
	return false
}
