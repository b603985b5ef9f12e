package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Provisor/internal/cml"
	"github.com/shaiso/Provisor/internal/domain"
	"github.com/shaiso/Provisor/internal/engine"
	"github.com/shaiso/Provisor/internal/events"
	"github.com/shaiso/Provisor/internal/ledger"
	"github.com/shaiso/Provisor/internal/telemetry"
)

// API — подмножество CML API, которое использует provisioner.
// Выделено в интерфейс для тестов; боевая реализация — *cml.Client.
type API interface {
	ListJobs(ctx context.Context, projectID string) ([]cml.Job, error)
	CreateJob(ctx context.Context, projectID string, req cml.CreateJobRequest) (*cml.Job, error)
	UpdateJob(ctx context.Context, projectID, jobID string, req cml.UpdateJobRequest) (*cml.Job, error)
	DeleteJob(ctx context.Context, projectID, jobID string) error
}

// Provisioner выполняет reconciliation конфига с workspace.
//
// Provisioner — one-shot компонент: один вызов Apply — один проход
// по job graph'у в топологическом порядке. Никакого состояния между
// запусками он не держит; источник истины — конфиг и сам workspace.
type Provisioner struct {
	api       API
	projectID string
	logger    *slog.Logger

	// Опциональные подписчики результата. nil — выключено.
	events  *events.Publisher
	history *ledger.HistoryRepo
	metrics *telemetry.Metrics
}

// Config — конфигурация Provisioner.
type Config struct {
	// API — клиент CML API (обязательно).
	API API

	// ProjectID — проект workspace, в котором создаются jobs (обязательно).
	ProjectID string

	// Logger (опционально; если nil — slog.Default()).
	Logger *slog.Logger

	// Events — публикация событий в RabbitMQ (опционально).
	Events *events.Publisher

	// History — запись итога в ledger (опционально).
	History *ledger.HistoryRepo

	// Metrics — метрики запуска (опционально).
	Metrics *telemetry.Metrics
}

// New создаёт новый Provisioner.
func New(cfg Config) *Provisioner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provisioner{
		api:       cfg.API,
		projectID: cfg.ProjectID,
		logger:    telemetry.WithProjectID(logger, cfg.ProjectID),
		events:    cfg.Events,
		history:   cfg.History,
		metrics:   cfg.Metrics,
	}
}

// ApplyOptions — опции запуска Apply.
type ApplyOptions struct {
	// Prune — удалять из workspace jobs, отсутствующие в конфиге.
	Prune bool
}

// Apply приводит workspace в соответствие с конфигом.
//
// Job'ы обрабатываются в топологическом порядке, поэтому к моменту
// создания дочернего job'а ID его родителя уже известен. Ошибка
// одного job'а не прерывает проход: его потомки помечаются SKIPPED,
// остальные ветки применяются. Итог с хотя бы одним FAILED/SKIPPED
// job'ом считается неуспешным (ApplyResult.Failed).
func (p *Provisioner) Apply(ctx context.Context, cfg *domain.JobsConfig, opts ApplyOptions) (*domain.ApplyResult, error) {
	if err := engine.Validate(cfg); err != nil {
		return nil, err
	}

	dag, err := engine.BuildDAG(cfg)
	if err != nil {
		return nil, err
	}

	result := &domain.ApplyResult{
		RunID:     uuid.New(),
		ProjectID: p.projectID,
		StartedAt: time.Now(),
	}
	logger := telemetry.WithApplyRunID(p.logger, result.RunID.String())
	// Подписчики (events/history) достают логгер запуска из контекста,
	// чтобы их предупреждения несли apply_run_id.
	ctx = telemetry.WithLogger(ctx, logger)

	existing, err := p.listByName(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("starting apply",
		"jobs", dag.Size(),
		"existing", len(existing),
		"prune", opts.Prune,
	)

	// idMap: ключ job'а → ID в workspace. Заполняется по мере прохода
	// и используется для подстановки parent_job_id у детей.
	idMap := make(map[string]string, dag.Size())
	failed := make(map[string]bool)

	for _, node := range dag.Order {
		applied := p.applyJob(ctx, logger, node, existing, idMap, failed)
		result.Jobs = append(result.Jobs, applied)

		if p.metrics != nil {
			p.metrics.ObserveJob(string(applied.Action), string(applied.Outcome))
		}
		p.publishJobEvent(ctx, result, applied)
	}

	if opts.Prune {
		managed := make(map[string]bool, len(cfg.Jobs))
		for i := range cfg.Jobs {
			managed[cfg.Jobs[i].Name] = true
		}
		p.prune(ctx, logger, existing, managed, result)
	}

	result.FinishedAt = time.Now()

	if p.metrics != nil {
		p.metrics.ObserveApply(result.FinishedAt.Sub(result.StartedAt))
	}
	p.publishApplyFinished(ctx, result)
	p.recordHistory(ctx, logger, result)

	logger.Info("apply finished",
		"jobs", len(result.Jobs),
		"failed", result.Failed(),
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)

	return result, nil
}

// applyJob применяет один job: create, update или noop.
func (p *Provisioner) applyJob(
	ctx context.Context,
	logger *slog.Logger,
	node *engine.Node,
	existing map[string]cml.Job,
	idMap map[string]string,
	failed map[string]bool,
) domain.AppliedJob {
	job := node.Job
	jobLogger := telemetry.WithJobKey(logger, job.Key)

	applied := domain.AppliedJob{
		Key:  job.Key,
		Name: job.Name,
	}

	// Родитель не создан — job невозможно привязать.
	parentID := ""
	if job.Parent != "" {
		if failed[job.Parent] {
			applied.Action = domain.ActionNoop
			applied.Outcome = domain.OutcomeSkipped
			applied.Error = fmt.Sprintf("parent %q was not provisioned", job.Parent)
			failed[job.Key] = true
			jobLogger.Warn("skipping job: parent not provisioned", "parent", job.Parent)
			return applied
		}
		// Топологический порядок гарантирует, что родитель уже пройден.
		parentID = idMap[job.Parent]
	}
	applied.ParentJobID = parentID

	current, exists := existing[job.Name]
	if !exists {
		created, err := p.api.CreateJob(ctx, p.projectID, buildCreateRequest(job, parentID))
		if err != nil {
			applied.Action = domain.ActionCreate
			applied.Outcome = domain.OutcomeFailed
			applied.Error = err.Error()
			failed[job.Key] = true
			jobLogger.Error("create job failed", "name", job.Name, "error", err)
			return applied
		}

		idMap[job.Key] = created.ID
		applied.Action = domain.ActionCreate
		applied.Outcome = domain.OutcomeApplied
		applied.JobID = created.ID
		jobLogger.Info("job created", "name", job.Name, "job_id", created.ID)
		return applied
	}

	drift := diffJob(job, &current, parentID, true)
	if len(drift) == 0 {
		idMap[job.Key] = current.ID
		applied.Action = domain.ActionNoop
		applied.Outcome = domain.OutcomeApplied
		applied.JobID = current.ID
		jobLogger.Debug("job up to date", "name", job.Name, "job_id", current.ID)
		return applied
	}

	updated, err := p.api.UpdateJob(ctx, p.projectID, current.ID, buildUpdateRequest(job, parentID))
	if err != nil {
		applied.Action = domain.ActionUpdate
		applied.Outcome = domain.OutcomeFailed
		applied.Error = err.Error()
		failed[job.Key] = true
		jobLogger.Error("update job failed", "name", job.Name, "job_id", current.ID, "error", err)
		return applied
	}

	idMap[job.Key] = updated.ID
	applied.Action = domain.ActionUpdate
	applied.Outcome = domain.OutcomeApplied
	applied.JobID = updated.ID
	jobLogger.Info("job updated", "name", job.Name, "job_id", updated.ID, "drift", drift)
	return applied
}

// prune удаляет из workspace jobs, отсутствующие в конфиге.
// Дети удаляются раньше родителей.
func (p *Provisioner) prune(
	ctx context.Context,
	logger *slog.Logger,
	existing map[string]cml.Job,
	managed map[string]bool,
	result *domain.ApplyResult,
) {
	orphans := make([]cml.Job, 0)
	for _, job := range existing {
		if !managed[job.Name] {
			orphans = append(orphans, job)
		}
	}

	for _, job := range pruneOrder(orphans) {
		applied := domain.AppliedJob{
			Name:   job.Name,
			JobID:  job.ID,
			Action: domain.ActionPrune,
		}

		if err := p.api.DeleteJob(ctx, p.projectID, job.ID); err != nil {
			applied.Outcome = domain.OutcomeFailed
			applied.Error = err.Error()
			logger.Error("prune job failed", "name", job.Name, "job_id", job.ID, "error", err)
		} else {
			applied.Outcome = domain.OutcomeApplied
			logger.Info("job pruned", "name", job.Name, "job_id", job.ID)
		}

		result.Jobs = append(result.Jobs, applied)

		if p.metrics != nil {
			p.metrics.ObserveJob(string(applied.Action), string(applied.Outcome))
		}
		p.publishJobEvent(ctx, result, applied)
	}
}

// pruneOrder упорядочивает jobs так, чтобы дети шли раньше родителей
// (Кан по обратным рёбрам parent_job_id внутри удаляемого набора).
func pruneOrder(jobs []cml.Job) []cml.Job {
	inSet := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		inSet[j.ID] = true
	}

	// refCount[id] — сколько jobs из набора ссылаются на id как на родителя.
	refCount := make(map[string]int, len(jobs))
	for _, j := range jobs {
		if j.ParentJobID != "" && inSet[j.ParentJobID] {
			refCount[j.ParentJobID]++
		}
	}

	queue := make([]cml.Job, 0, len(jobs))
	for _, j := range jobs {
		if refCount[j.ID] == 0 {
			queue = append(queue, j)
		}
	}

	byID := make(map[string]cml.Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	order := make([]cml.Job, 0, len(jobs))
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		order = append(order, j)

		if j.ParentJobID != "" && inSet[j.ParentJobID] {
			refCount[j.ParentJobID]--
			if refCount[j.ParentJobID] == 0 {
				queue = append(queue, byID[j.ParentJobID])
			}
		}
	}

	// Циклы в parent_job_id workspace не создаёт; если данные всё же
	// битые, оставшиеся jobs добавляются в конец как есть.
	if len(order) != len(jobs) {
		seen := make(map[string]bool, len(order))
		for _, j := range order {
			seen[j.ID] = true
		}
		for _, j := range jobs {
			if !seen[j.ID] {
				order = append(order, j)
			}
		}
	}

	return order
}

// listByName возвращает jobs проекта, индексированные по имени.
func (p *Provisioner) listByName(ctx context.Context) (map[string]cml.Job, error) {
	jobs, err := p.api.ListJobs(ctx, p.projectID)
	if err != nil {
		return nil, fmt.Errorf("list workspace jobs: %w", err)
	}

	byName := make(map[string]cml.Job, len(jobs))
	for _, job := range jobs {
		byName[job.Name] = job
	}
	return byName, nil
}

// publishJobEvent публикует событие об одном job'е.
// Ошибка публикации логируется и не влияет на итог apply.
func (p *Provisioner) publishJobEvent(ctx context.Context, result *domain.ApplyResult, applied domain.AppliedJob) {
	if p.events == nil {
		return
	}
	if applied.Action == domain.ActionNoop && applied.Outcome == domain.OutcomeApplied {
		// noop — не событие.
		return
	}

	var msgType events.MessageType
	switch {
	case applied.Outcome != domain.OutcomeApplied:
		msgType = events.MessageTypeJobFailed
	case applied.Action == domain.ActionCreate:
		msgType = events.MessageTypeJobCreated
	case applied.Action == domain.ActionUpdate:
		msgType = events.MessageTypeJobUpdated
	case applied.Action == domain.ActionPrune:
		msgType = events.MessageTypeJobDeleted
	default:
		return
	}

	payload := events.JobEventPayload{
		ApplyRunID: result.RunID,
		ProjectID:  p.projectID,
		JobKey:     applied.Key,
		JobName:    applied.Name,
		JobID:      applied.JobID,
		Action:     string(applied.Action),
		Error:      applied.Error,
	}

	if err := p.events.PublishJobEvent(ctx, msgType, payload); err != nil {
		telemetry.FromContext(ctx).Warn("publish job event failed", "type", msgType, "error", err)
	}
}

// publishApplyFinished публикует итоговое событие apply.
func (p *Provisioner) publishApplyFinished(ctx context.Context, result *domain.ApplyResult) {
	if p.events == nil {
		return
	}

	var created, updated, deleted, failedCount int
	for _, j := range result.Jobs {
		switch {
		case j.Outcome != domain.OutcomeApplied:
			failedCount++
		case j.Action == domain.ActionCreate:
			created++
		case j.Action == domain.ActionUpdate:
			updated++
		case j.Action == domain.ActionPrune:
			deleted++
		}
	}

	payload := events.ApplyFinishedPayload{
		ApplyRunID: result.RunID,
		ProjectID:  p.projectID,
		Created:    created,
		Updated:    updated,
		Deleted:    deleted,
		Failed:     failedCount,
		DurationMs: result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}

	if err := p.events.PublishApplyFinished(ctx, payload); err != nil {
		telemetry.FromContext(ctx).Warn("publish apply event failed", "error", err)
	}
}

// recordHistory записывает итог в ledger.
// Ошибка записи логируется и не влияет на итог apply.
func (p *Provisioner) recordHistory(ctx context.Context, logger *slog.Logger, result *domain.ApplyResult) {
	if p.history == nil {
		return
	}
	if err := p.history.RecordApply(ctx, result); err != nil {
		logger.Warn("record apply history failed", "error", err)
	}
}
