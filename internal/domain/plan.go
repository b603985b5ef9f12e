package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action — действие reconciliation для одного job'а.
type Action string

const (
	// ActionCreate — job отсутствует в workspace, будет создан.
	ActionCreate Action = "create"

	// ActionUpdate — job существует, но конфигурация разошлась.
	ActionUpdate Action = "update"

	// ActionNoop — job существует и совпадает с конфигом.
	ActionNoop Action = "noop"

	// ActionPrune — job есть в workspace, но отсутствует в конфиге.
	// Выполняется только с флагом --prune.
	ActionPrune Action = "prune"
)

// PlannedJob — запланированное действие для одного job'а.
type PlannedJob struct {
	// Key — логический ключ job'а (пустой для prune: job не из конфига).
	Key string `json:"key,omitempty"`

	// Name — отображаемое имя job'а.
	Name string `json:"name"`

	// JobID — ID в workspace (пустой для create).
	JobID string `json:"job_id,omitempty"`

	// Action — что будет сделано.
	Action Action `json:"action"`

	// Drift — список полей, отличающихся от workspace (для update).
	Drift []string `json:"drift,omitempty"`

	// NextRun — ближайший запуск по расписанию (для scheduled job'ов).
	NextRun time.Time `json:"next_run,omitzero"`
}

// Plan — результат сравнения конфига с workspace.
type Plan struct {
	// ProjectID — проект, для которого строился план.
	ProjectID string `json:"project_id"`

	// Jobs — действия в порядке применения (топологический порядок,
	// prune в конце в обратном порядке).
	Jobs []PlannedJob `json:"jobs"`
}

// Counts возвращает количество действий по типам.
func (p *Plan) Counts() (create, update, noop, prune int) {
	for _, j := range p.Jobs {
		switch j.Action {
		case ActionCreate:
			create++
		case ActionUpdate:
			update++
		case ActionNoop:
			noop++
		case ActionPrune:
			prune++
		}
	}
	return
}

// HasChanges возвращает true, если план содержит хотя бы одну мутацию.
func (p *Plan) HasChanges() bool {
	create, update, _, prune := p.Counts()
	return create+update+prune > 0
}

// JobOutcome — итог применения одного job'а.
type JobOutcome string

const (
	// OutcomeApplied — действие выполнено успешно.
	OutcomeApplied JobOutcome = "APPLIED"

	// OutcomeFailed — API-вызов завершился ошибкой.
	OutcomeFailed JobOutcome = "FAILED"

	// OutcomeSkipped — job пропущен, потому что его родитель не создан.
	OutcomeSkipped JobOutcome = "SKIPPED"
)

// AppliedJob — результат применения одного job'а.
type AppliedJob struct {
	// Key — логический ключ job'а.
	Key string `json:"key,omitempty"`

	// Name — отображаемое имя.
	Name string `json:"name"`

	// JobID — ID в workspace (после create/update).
	JobID string `json:"job_id,omitempty"`

	// ParentJobID — ID родителя, подставленный при создании.
	ParentJobID string `json:"parent_job_id,omitempty"`

	// Action — выполненное действие.
	Action Action `json:"action"`

	// Outcome — итог.
	Outcome JobOutcome `json:"outcome"`

	// Error — текст ошибки для FAILED/SKIPPED.
	Error string `json:"error,omitempty"`
}

// ApplyResult — итог одного запуска apply.
type ApplyResult struct {
	// RunID — уникальный идентификатор запуска apply (для ledger и событий).
	RunID uuid.UUID `json:"run_id"`

	// ProjectID — проект workspace.
	ProjectID string `json:"project_id"`

	// Jobs — результаты в порядке применения.
	Jobs []AppliedJob `json:"jobs"`

	// StartedAt и FinishedAt — границы запуска.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// IDMap возвращает отображение ключ job'а → ID в workspace
// для всех успешно применённых job'ов.
func (r *ApplyResult) IDMap() map[string]string {
	m := make(map[string]string)
	for _, j := range r.Jobs {
		if j.Outcome == OutcomeApplied && j.Key != "" {
			m[j.Key] = j.JobID
		}
	}
	return m
}

// Failed возвращает true, если хотя бы один job завершился
// ошибкой или был пропущен.
func (r *ApplyResult) Failed() bool {
	for _, j := range r.Jobs {
		if j.Outcome != OutcomeApplied {
			return true
		}
	}
	return false
}
