package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shaiso/Provisor/internal/cml"
	"github.com/shaiso/Provisor/internal/domain"
	"github.com/shaiso/Provisor/internal/engine"
	"github.com/shaiso/Provisor/internal/ledger"
	"github.com/shaiso/Provisor/internal/runner"
)

// Output печатает результаты команд provisor.
//
// Данные (порядок применения, план, результаты apply/run, списки jobs)
// уходят в stdout — таблицей или, с флагом --json, машиночитаемым
// JSON'ом. Сообщения (Success/Warn/Error) всегда уходят в stderr,
// поэтому вывод можно передавать по pipe.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout: данные
	errW     io.Writer // stderr: сообщения
}

// NewOutput создаёт Output. jsonMode переключает данные на JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// PrintApplyOrder печатает job'ы в порядке применения с их триггерами.
func (o *Output) PrintApplyOrder(dag *engine.DAG) {
	if o.jsonMode {
		jobs := make([]*domain.JobDef, 0, dag.Size())
		for _, node := range dag.Order {
			jobs = append(jobs, node.Job)
		}
		o.printJSON(jobs)
		return
	}

	rows := make([][]string, 0, dag.Size())
	for i, node := range dag.Order {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			node.Key,
			node.Job.Name,
			describeTrigger(node.Job),
		})
	}
	o.table([]string{"#", "KEY", "NAME", "TRIGGER"}, rows)
}

// PrintPlan печатает план reconciliation с drift'ом по полям.
func (o *Output) PrintPlan(plan *domain.Plan) {
	if o.jsonMode {
		o.printJSON(plan)
		return
	}

	rows := make([][]string, 0, len(plan.Jobs))
	for _, j := range plan.Jobs {
		nextRun := ""
		if !j.NextRun.IsZero() {
			nextRun = j.NextRun.Format(time.RFC3339)
		}
		rows = append(rows, []string{
			string(j.Action),
			j.Key,
			j.Name,
			j.JobID,
			strings.Join(j.Drift, ","),
			nextRun,
		})
	}
	o.table([]string{"ACTION", "KEY", "NAME", "JOB_ID", "DRIFT", "NEXT_RUN"}, rows)
}

// PrintApplyResult печатает per-job итоги запуска apply.
func (o *Output) PrintApplyResult(result *domain.ApplyResult) {
	if o.jsonMode {
		o.printJSON(result)
		return
	}

	rows := make([][]string, 0, len(result.Jobs))
	for _, j := range result.Jobs {
		rows = append(rows, []string{
			string(j.Action),
			j.Key,
			j.Name,
			j.JobID,
			string(j.Outcome),
			j.Error,
		})
	}
	o.table([]string{"ACTION", "KEY", "NAME", "JOB_ID", "OUTCOME", "ERROR"}, rows)
}

// PrintRunResults печатает итоги локального запуска скриптов.
func (o *Output) PrintRunResults(results []runner.Result) {
	if o.jsonMode {
		o.printJSON(results)
		return
	}

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{
			res.Key,
			res.Name,
			string(res.Status),
			res.Duration.Round(time.Millisecond).String(),
			res.Error,
		})
	}
	o.table([]string{"KEY", "NAME", "STATUS", "DURATION", "ERROR"}, rows)
}

// PrintWorkspaceJobs печатает список jobs проекта.
func (o *Output) PrintWorkspaceJobs(jobs []cml.Job) {
	if o.jsonMode {
		o.printJSON(jobs)
		return
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			j.Name,
			j.Schedule,
			j.ParentJobID,
			j.CreatedAt.Format(time.RFC3339),
		})
	}
	o.table([]string{"ID", "NAME", "SCHEDULE", "PARENT_JOB_ID", "CREATED"}, rows)
}

// PrintWorkspaceJob печатает один job целиком.
func (o *Output) PrintWorkspaceJob(job *cml.Job) {
	if o.jsonMode {
		o.printJSON(job)
		return
	}

	o.table(
		[]string{"ID", "NAME", "SCRIPT", "KERNEL", "CPU", "MEMORY", "GPU", "TIMEOUT", "SCHEDULE", "PARENT_JOB_ID"},
		[][]string{{
			job.ID,
			job.Name,
			job.Script,
			job.Kernel,
			fmt.Sprintf("%g", job.CPU),
			fmt.Sprintf("%g", job.Memory),
			strconv.Itoa(job.NvidiaGPU),
			fmt.Sprintf("%ds", job.Timeout),
			job.Schedule,
			job.ParentJobID,
		}},
	)
}

// PrintJobRun печатает запущенный run job'а.
func (o *Output) PrintJobRun(run *cml.JobRun) {
	if o.jsonMode {
		o.printJSON(run)
		return
	}

	o.table(
		[]string{"RUN_ID", "JOB_ID", "STATUS", "CREATED"},
		[][]string{{run.ID, run.JobID, run.Status, run.CreatedAt.Format(time.RFC3339)}},
	)
}

// PrintApplyHistory печатает список прошлых запусков apply.
func (o *Output) PrintApplyHistory(records []ledger.ApplyRecord) {
	if o.jsonMode {
		o.printJSON(records)
		return
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.RunID.String(),
			strconv.Itoa(rec.Created),
			strconv.Itoa(rec.Updated),
			strconv.Itoa(rec.Deleted),
			strconv.Itoa(rec.Failed),
			rec.StartedAt.Format(time.RFC3339),
		})
	}
	o.table([]string{"RUN_ID", "CREATED", "UPDATED", "DELETED", "FAILED", "STARTED"}, rows)
}

// PrintApplyDetails печатает один запуск apply с per-job записями.
func (o *Output) PrintApplyDetails(run *ledger.ApplyRecord, jobs []ledger.JobRecord) {
	if o.jsonMode {
		o.printJSON(struct {
			Run  *ledger.ApplyRecord `json:"run"`
			Jobs []ledger.JobRecord  `json:"jobs"`
		}{run, jobs})
		return
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{j.JobKey, j.JobName, j.JobID, j.Action, j.Outcome, j.Error})
	}
	o.table([]string{"KEY", "NAME", "JOB_ID", "ACTION", "OUTCOME", "ERROR"}, rows)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Warn выводит предупреждение в stderr.
func (o *Output) Warn(msg string) {
	fmt.Fprintln(o.errW, "Warning: "+msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// describeTrigger возвращает человекочитаемое описание триггера job'а.
func describeTrigger(job *domain.JobDef) string {
	switch {
	case job.IsScheduled():
		return "cron " + job.Schedule
	case job.IsDependent():
		return "after " + job.Parent
	default:
		return "manual"
	}
}

// table печатает таблицу с заголовком через tabwriter.
func (o *Output) table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// printJSON выводит данные в JSON с отступами.
func (o *Output) printJSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
