package provisioner

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/shaiso/Provisor/internal/cml"
	"github.com/shaiso/Provisor/internal/domain"
	"github.com/shaiso/Provisor/internal/engine"
)

// Plan сравнивает конфиг с workspace, ничего не меняя.
//
// Для каждого job'а из конфига план содержит create/update/noop
// с перечнем разошедшихся полей; для scheduled job'ов — ближайший
// запуск. Jobs workspace, отсутствующие в конфиге, попадают в план
// как prune (выполняются только с apply --prune).
func (p *Provisioner) Plan(ctx context.Context, cfg *domain.JobsConfig) (*domain.Plan, error) {
	if err := engine.Validate(cfg); err != nil {
		return nil, err
	}

	dag, err := engine.BuildDAG(cfg)
	if err != nil {
		return nil, err
	}

	existing, err := p.listByName(ctx)
	if err != nil {
		return nil, err
	}

	plan := &domain.Plan{ProjectID: p.projectID}
	now := time.Now()

	for _, node := range dag.Order {
		job := node.Job

		planned := domain.PlannedJob{
			Key:  job.Key,
			Name: job.Name,
		}

		if job.IsScheduled() {
			// Конфиг уже провалидирован, ошибка парсинга невозможна.
			planned.NextRun, _ = engine.NextRun(job.Schedule, now)
		}

		current, exists := existing[job.Name]
		if !exists {
			planned.Action = domain.ActionCreate
			plan.Jobs = append(plan.Jobs, planned)
			continue
		}
		planned.JobID = current.ID

		// Ожидаемый parent ID известен, только если родитель уже есть
		// в workspace. Если родителя ещё нет, он будет создан с новым
		// ID — parent_job_id ребёнка гарантированно изменится.
		expectedParent := ""
		parentKnown := true
		if job.Parent != "" {
			parentName := cfg.Get(job.Parent).Name
			if parentJob, ok := existing[parentName]; ok {
				expectedParent = parentJob.ID
			} else {
				parentKnown = false
			}
		}

		drift := diffJob(job, &current, expectedParent, parentKnown)
		if len(drift) == 0 {
			planned.Action = domain.ActionNoop
		} else {
			planned.Action = domain.ActionUpdate
			planned.Drift = drift
		}
		plan.Jobs = append(plan.Jobs, planned)
	}

	// Prune-кандидаты: дети раньше родителей, как и при apply.
	managed := make(map[string]bool, len(cfg.Jobs))
	for i := range cfg.Jobs {
		managed[cfg.Jobs[i].Name] = true
	}

	orphans := make([]cml.Job, 0)
	for _, job := range existing {
		if !managed[job.Name] {
			orphans = append(orphans, job)
		}
	}

	for _, job := range pruneOrder(orphans) {
		plan.Jobs = append(plan.Jobs, domain.PlannedJob{
			Name:   job.Name,
			JobID:  job.ID,
			Action: domain.ActionPrune,
		})
	}

	return plan, nil
}

// diffJob возвращает список полей, по которым desired расходится
// с существующим job'ом workspace.
//
// parentKnown=false означает, что родитель будет создан заново
// и parent_job_id гарантированно изменится.
func diffJob(desired *domain.JobDef, current *cml.Job, expectedParent string, parentKnown bool) []string {
	drift := make([]string, 0)

	if desired.Script != current.Script {
		drift = append(drift, "script")
	}
	if desired.Kernel != current.Kernel {
		drift = append(drift, "kernel")
	}
	if desired.CPU != current.CPU {
		drift = append(drift, "cpu")
	}
	if desired.Memory != current.Memory {
		drift = append(drift, "memory")
	}
	if desired.NvidiaGPU != current.NvidiaGPU {
		drift = append(drift, "nvidia_gpu")
	}
	if desired.TimeoutSec != current.Timeout {
		drift = append(drift, "timeout")
	}
	if desired.Arguments != current.Arguments {
		drift = append(drift, "arguments")
	}
	if !envEqual(desired.Environment, current.Environment) {
		drift = append(drift, "environment")
	}
	if !attachmentsEqual(desired.Attachments, current.Attachments) {
		drift = append(drift, "attachments")
	}
	if desired.Schedule != current.Schedule {
		drift = append(drift, "schedule")
	}
	if !parentKnown || expectedParent != current.ParentJobID {
		drift = append(drift, "parent_job_id")
	}

	return drift
}

// envEqual сравнивает environment-мапы. nil и пустая мапа эквивалентны.
func envEqual(a, b map[string]string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return maps.Equal(a, b)
}

// attachmentsEqual сравнивает списки attachments. nil и пустой
// список эквивалентны.
func attachmentsEqual(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return slices.Equal(a, b)
}

// buildCreateRequest собирает запрос на создание job'а.
func buildCreateRequest(job *domain.JobDef, parentID string) cml.CreateJobRequest {
	return cml.CreateJobRequest{
		Name:        job.Name,
		Script:      job.Script,
		Kernel:      job.Kernel,
		CPU:         job.CPU,
		Memory:      job.Memory,
		NvidiaGPU:   job.NvidiaGPU,
		Timeout:     job.TimeoutSec,
		Arguments:   job.Arguments,
		Environment: job.Environment,
		Attachments: job.Attachments,
		Schedule:    job.Schedule,
		ParentJobID: parentID,
	}
}

// buildUpdateRequest собирает запрос на полное обновление job'а.
// Все поля перезаписываются значениями из конфига: источник истины —
// конфиг, ручные правки в workspace не сохраняются.
func buildUpdateRequest(job *domain.JobDef, parentID string) cml.UpdateJobRequest {
	env := job.Environment
	attachments := job.Attachments

	return cml.UpdateJobRequest{
		Name:        &job.Name,
		Script:      &job.Script,
		Kernel:      &job.Kernel,
		CPU:         &job.CPU,
		Memory:      &job.Memory,
		NvidiaGPU:   &job.NvidiaGPU,
		Timeout:     &job.TimeoutSec,
		Arguments:   &job.Arguments,
		Environment: &env,
		Attachments: &attachments,
		Schedule:    &job.Schedule,
		ParentJobID: &parentID,
	}
}
