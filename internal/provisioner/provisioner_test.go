package provisioner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shaiso/Provisor/internal/cml"
	"github.com/shaiso/Provisor/internal/domain"
	"github.com/shaiso/Provisor/internal/engine"
)

// fakeAPI — in-memory реализация API для тестов.
type fakeAPI struct {
	jobs   map[string]cml.Job // id → job
	nextID int

	// failCreate — имена jobs, создание которых должно упасть.
	failCreate map[string]bool

	creates int
	updates int
	deletes int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		jobs:       make(map[string]cml.Job),
		failCreate: make(map[string]bool),
	}
}

func (f *fakeAPI) seed(job cml.Job) {
	f.jobs[job.ID] = job
}

func (f *fakeAPI) ListJobs(ctx context.Context, projectID string) ([]cml.Job, error) {
	jobs := make([]cml.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (f *fakeAPI) CreateJob(ctx context.Context, projectID string, req cml.CreateJobRequest) (*cml.Job, error) {
	if f.failCreate[req.Name] {
		return nil, &cml.APIError{StatusCode: 500, Message: "workspace unavailable"}
	}

	f.creates++
	f.nextID++
	job := cml.Job{
		ID:          fmt.Sprintf("id-%d", f.nextID),
		Name:        req.Name,
		Script:      req.Script,
		Kernel:      req.Kernel,
		CPU:         req.CPU,
		Memory:      req.Memory,
		NvidiaGPU:   req.NvidiaGPU,
		Timeout:     req.Timeout,
		Arguments:   req.Arguments,
		Environment: req.Environment,
		Attachments: req.Attachments,
		Schedule:    req.Schedule,
		ParentJobID: req.ParentJobID,
	}
	f.jobs[job.ID] = job
	return &job, nil
}

func (f *fakeAPI) UpdateJob(ctx context.Context, projectID, jobID string, req cml.UpdateJobRequest) (*cml.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, &cml.APIError{StatusCode: 404, Message: "job not found"}
	}

	f.updates++
	if req.Name != nil {
		job.Name = *req.Name
	}
	if req.Script != nil {
		job.Script = *req.Script
	}
	if req.Kernel != nil {
		job.Kernel = *req.Kernel
	}
	if req.CPU != nil {
		job.CPU = *req.CPU
	}
	if req.Memory != nil {
		job.Memory = *req.Memory
	}
	if req.NvidiaGPU != nil {
		job.NvidiaGPU = *req.NvidiaGPU
	}
	if req.Timeout != nil {
		job.Timeout = *req.Timeout
	}
	if req.Arguments != nil {
		job.Arguments = *req.Arguments
	}
	if req.Environment != nil {
		job.Environment = *req.Environment
	}
	if req.Attachments != nil {
		job.Attachments = *req.Attachments
	}
	if req.Schedule != nil {
		job.Schedule = *req.Schedule
	}
	if req.ParentJobID != nil {
		job.ParentJobID = *req.ParentJobID
	}

	f.jobs[jobID] = job
	return &job, nil
}

func (f *fakeAPI) DeleteJob(ctx context.Context, projectID, jobID string) error {
	if _, ok := f.jobs[jobID]; !ok {
		return &cml.APIError{StatusCode: 404, Message: "job not found"}
	}
	f.deletes++
	delete(f.jobs, jobID)
	return nil
}

// pipelineConfig — конфиг из трёх job'ов: ingest → train → report.
func pipelineConfig() *domain.JobsConfig {
	return &domain.JobsConfig{
		Jobs: []domain.JobDef{
			{
				Key: "ingest", Name: "Ingest data", Script: "ingest.py",
				Kernel: domain.KernelPython3, CPU: 1, Memory: 2, TimeoutSec: 600,
				Schedule: "0 6 * * *",
			},
			{
				Key: "train", Name: "Train model", Script: "train.py",
				Kernel: domain.KernelPython3, CPU: 2, Memory: 4, TimeoutSec: 3600,
				Parent: "ingest",
			},
			{
				Key: "report", Name: "Send report", Script: "report.py",
				Kernel: domain.KernelPython3, CPU: 1, Memory: 1, TimeoutSec: 300,
				Parent: "train",
			},
		},
	}
}

func TestApply_FreshWorkspace(t *testing.T) {
	api := newFakeAPI()
	p := New(Config{API: api, ProjectID: "p1"})

	result, err := p.Apply(context.Background(), pipelineConfig(), ApplyOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Failed() {
		t.Fatalf("apply should succeed: %+v", result.Jobs)
	}
	if api.creates != 3 {
		t.Errorf("expected 3 creates, got %d", api.creates)
	}
	if api.updates != 0 {
		t.Errorf("expected no updates, got %d", api.updates)
	}

	// Все действия — create в топологическом порядке
	want := []string{"ingest", "train", "report"}
	for i, applied := range result.Jobs {
		if applied.Key != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], applied.Key)
		}
		if applied.Action != domain.ActionCreate {
			t.Errorf("job %s: expected create, got %s", applied.Key, applied.Action)
		}
	}

	// parent_job_id ребёнка — ID созданного родителя
	idMap := result.IDMap()
	for _, job := range api.jobs {
		switch job.Name {
		case "Train model":
			if job.ParentJobID != idMap["ingest"] {
				t.Errorf("train should reference ingest ID, got %q", job.ParentJobID)
			}
		case "Send report":
			if job.ParentJobID != idMap["train"] {
				t.Errorf("report should reference train ID, got %q", job.ParentJobID)
			}
		}
	}
}

func TestApply_Idempotent(t *testing.T) {
	api := newFakeAPI()
	p := New(Config{API: api, ProjectID: "p1"})

	if _, err := p.Apply(context.Background(), pipelineConfig(), ApplyOptions{}); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	// Повторный apply того же конфига — ни одной мутации.
	result, err := p.Apply(context.Background(), pipelineConfig(), ApplyOptions{})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if api.creates != 3 || api.updates != 0 || api.deletes != 0 {
		t.Errorf("second apply should be a noop: creates=%d updates=%d deletes=%d",
			api.creates, api.updates, api.deletes)
	}
	for _, applied := range result.Jobs {
		if applied.Action != domain.ActionNoop {
			t.Errorf("job %s: expected noop, got %s", applied.Key, applied.Action)
		}
	}
}

func TestApply_UpdateOnDrift(t *testing.T) {
	api := newFakeAPI()
	p := New(Config{API: api, ProjectID: "p1"})

	if _, err := p.Apply(context.Background(), pipelineConfig(), ApplyOptions{}); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	// Меняем скрипт train — apply должен обновить только его.
	cfg := pipelineConfig()
	cfg.Jobs[1].Script = "train_v2.py"

	result, err := p.Apply(context.Background(), cfg, ApplyOptions{})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}

	if api.updates != 1 {
		t.Errorf("expected 1 update, got %d", api.updates)
	}
	for _, applied := range result.Jobs {
		want := domain.ActionNoop
		if applied.Key == "train" {
			want = domain.ActionUpdate
		}
		if applied.Action != want {
			t.Errorf("job %s: expected %s, got %s", applied.Key, want, applied.Action)
		}
	}

	// ID job'а после update не изменился
	idMap := result.IDMap()
	for _, job := range api.jobs {
		if job.Name == "Send report" && job.ParentJobID != idMap["train"] {
			t.Error("report should still reference the same train ID")
		}
	}
}

func TestApply_FailedParentSkipsDescendants(t *testing.T) {
	api := newFakeAPI()
	api.failCreate["Train model"] = true
	p := New(Config{API: api, ProjectID: "p1"})

	result, err := p.Apply(context.Background(), pipelineConfig(), ApplyOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Failed() {
		t.Fatal("apply with a failed job should be marked failed")
	}

	outcomes := make(map[string]domain.JobOutcome)
	for _, applied := range result.Jobs {
		outcomes[applied.Key] = applied.Outcome
	}

	if outcomes["ingest"] != domain.OutcomeApplied {
		t.Errorf("ingest should be applied, got %s", outcomes["ingest"])
	}
	if outcomes["train"] != domain.OutcomeFailed {
		t.Errorf("train should fail, got %s", outcomes["train"])
	}
	// Потомок упавшего job'а пропускается, а не создаётся без родителя
	if outcomes["report"] != domain.OutcomeSkipped {
		t.Errorf("report should be skipped, got %s", outcomes["report"])
	}
	if api.creates != 1 {
		t.Errorf("expected only ingest to be created, got %d creates", api.creates)
	}
}

func TestApply_InvalidConfig(t *testing.T) {
	api := newFakeAPI()
	p := New(Config{API: api, ProjectID: "p1"})

	cfg := pipelineConfig()
	cfg.Jobs[1].Parent = "ghost"

	_, err := p.Apply(context.Background(), cfg, ApplyOptions{})
	if !errors.Is(err, engine.ErrUnknownParent) {
		t.Fatalf("expected ErrUnknownParent, got %v", err)
	}

	// Валидация падает до любых API-вызовов
	if api.creates != 0 {
		t.Errorf("no jobs should be created, got %d", api.creates)
	}
}

func TestApply_Prune(t *testing.T) {
	api := newFakeAPI()
	// Чужая пара parent/child, отсутствующая в конфиге.
	api.seed(cml.Job{ID: "old-parent", Name: "Legacy parent"})
	api.seed(cml.Job{ID: "old-child", Name: "Legacy child", ParentJobID: "old-parent"})

	p := New(Config{API: api, ProjectID: "p1"})

	result, err := p.Apply(context.Background(), pipelineConfig(), ApplyOptions{Prune: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if api.deletes != 2 {
		t.Errorf("expected 2 deletes, got %d", api.deletes)
	}

	// Дети удаляются раньше родителей
	pruned := make([]string, 0)
	for _, applied := range result.Jobs {
		if applied.Action == domain.ActionPrune {
			pruned = append(pruned, applied.JobID)
		}
	}
	if len(pruned) != 2 || pruned[0] != "old-child" || pruned[1] != "old-parent" {
		t.Errorf("expected prune order [old-child old-parent], got %v", pruned)
	}

	// Управляемые jobs не тронуты
	if len(api.jobs) != 3 {
		t.Errorf("expected 3 managed jobs to remain, got %d", len(api.jobs))
	}
}

func TestApply_NoPruneByDefault(t *testing.T) {
	api := newFakeAPI()
	api.seed(cml.Job{ID: "manual", Name: "Manually created"})

	p := New(Config{API: api, ProjectID: "p1"})

	if _, err := p.Apply(context.Background(), pipelineConfig(), ApplyOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if api.deletes != 0 {
		t.Errorf("jobs outside the config must not be touched, got %d deletes", api.deletes)
	}
	if _, ok := api.jobs["manual"]; !ok {
		t.Error("manually created job should survive apply")
	}
}

func TestPlan_FreshWorkspace(t *testing.T) {
	api := newFakeAPI()
	p := New(Config{API: api, ProjectID: "p1"})

	plan, err := p.Plan(context.Background(), pipelineConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	create, update, noop, prune := plan.Counts()
	if create != 3 || update != 0 || noop != 0 || prune != 0 {
		t.Errorf("expected 3 creates, got create=%d update=%d noop=%d prune=%d",
			create, update, noop, prune)
	}
	if !plan.HasChanges() {
		t.Error("plan should report changes")
	}

	// Plan ничего не меняет
	if api.creates != 0 || api.updates != 0 || api.deletes != 0 {
		t.Error("plan must not mutate the workspace")
	}

	// Для scheduled job'а заполнен ближайший запуск
	for _, planned := range plan.Jobs {
		if planned.Key == "ingest" && planned.NextRun.IsZero() {
			t.Error("scheduled job should have next run")
		}
	}
}

func TestPlan_DriftFields(t *testing.T) {
	api := newFakeAPI()
	p := New(Config{API: api, ProjectID: "p1"})

	if _, err := p.Apply(context.Background(), pipelineConfig(), ApplyOptions{}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	cfg := pipelineConfig()
	cfg.Jobs[1].Script = "train_v2.py"
	cfg.Jobs[1].CPU = 4

	plan, err := p.Plan(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, planned := range plan.Jobs {
		if planned.Key != "train" {
			if planned.Action != domain.ActionNoop {
				t.Errorf("job %s: expected noop, got %s", planned.Key, planned.Action)
			}
			continue
		}

		if planned.Action != domain.ActionUpdate {
			t.Fatalf("train: expected update, got %s", planned.Action)
		}

		driftSet := make(map[string]bool, len(planned.Drift))
		for _, field := range planned.Drift {
			driftSet[field] = true
		}
		if !driftSet["script"] || !driftSet["cpu"] {
			t.Errorf("expected drift on script and cpu, got %v", planned.Drift)
		}
		if len(planned.Drift) != 2 {
			t.Errorf("expected exactly 2 drifted fields, got %v", planned.Drift)
		}
	}
}

func TestPlan_UnknownParentDrift(t *testing.T) {
	// Родитель в workspace отсутствует: его ID неизвестен заранее,
	// parent_job_id ребёнка помечается как drift.
	api := newFakeAPI()
	api.seed(cml.Job{
		ID: "t1", Name: "Train model", Script: "train.py",
		Kernel: domain.KernelPython3, CPU: 2, Memory: 4, Timeout: 3600,
		ParentJobID: "stale-id",
	})

	cfg := &domain.JobsConfig{
		Jobs: []domain.JobDef{
			{
				Key: "ingest", Name: "Ingest data", Script: "ingest.py",
				Kernel: domain.KernelPython3, CPU: 1, Memory: 2, TimeoutSec: 600,
			},
			{
				Key: "train", Name: "Train model", Script: "train.py",
				Kernel: domain.KernelPython3, CPU: 2, Memory: 4, TimeoutSec: 3600,
				Parent: "ingest",
			},
		},
	}

	p := New(Config{API: api, ProjectID: "p1"})
	plan, err := p.Plan(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, planned := range plan.Jobs {
		if planned.Key != "train" {
			continue
		}
		if planned.Action != domain.ActionUpdate {
			t.Fatalf("train: expected update, got %s", planned.Action)
		}
		found := false
		for _, field := range planned.Drift {
			if field == "parent_job_id" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected parent_job_id drift, got %v", planned.Drift)
		}
	}
}

func TestPlan_PruneCandidates(t *testing.T) {
	api := newFakeAPI()
	api.seed(cml.Job{ID: "orphan", Name: "Orphan job"})

	p := New(Config{API: api, ProjectID: "p1"})
	plan, err := p.Plan(context.Background(), pipelineConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, _, prune := plan.Counts()
	if prune != 1 {
		t.Errorf("expected 1 prune candidate, got %d", prune)
	}

	// Prune-кандидаты идут после jobs конфига
	last := plan.Jobs[len(plan.Jobs)-1]
	if last.Action != domain.ActionPrune || last.JobID != "orphan" {
		t.Errorf("expected orphan prune at the end, got %+v", last)
	}
}

func TestPruneOrder_ChildrenFirst(t *testing.T) {
	jobs := []cml.Job{
		{ID: "grandparent", Name: "GP"},
		{ID: "parent", Name: "P", ParentJobID: "grandparent"},
		{ID: "child", Name: "C", ParentJobID: "parent"},
	}

	order := pruneOrder(jobs)
	positions := make(map[string]int, len(order))
	for i, j := range order {
		positions[j.ID] = i
	}

	if positions["child"] > positions["parent"] {
		t.Error("child should be pruned before parent")
	}
	if positions["parent"] > positions["grandparent"] {
		t.Error("parent should be pruned before grandparent")
	}
}

func TestPruneOrder_ExternalParent(t *testing.T) {
	// Родитель вне удаляемого набора не влияет на порядок.
	jobs := []cml.Job{
		{ID: "a", Name: "A", ParentJobID: "kept-elsewhere"},
		{ID: "b", Name: "B"},
	}

	order := pruneOrder(jobs)
	if len(order) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(order))
	}
}

func TestDiffJob_NilVsEmpty(t *testing.T) {
	desired := &domain.JobDef{
		Name: "Job", Script: "job.py", Kernel: domain.KernelPython3,
		CPU: 1, Memory: 1, TimeoutSec: 60,
	}
	current := &cml.Job{
		ID: "j1", Name: "Job", Script: "job.py", Kernel: domain.KernelPython3,
		CPU: 1, Memory: 1, Timeout: 60,
		Environment: map[string]string{},
		Attachments: []string{},
	}

	// nil и пустые environment/attachments эквивалентны
	drift := diffJob(desired, current, "", true)
	if len(drift) != 0 {
		t.Errorf("expected no drift, got %v", drift)
	}
}
