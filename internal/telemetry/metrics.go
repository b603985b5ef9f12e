package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics — метрики одного запуска provisor.
//
// provisor — one-shot процесс, поэтому метрики не отдаются через
// /metrics, а пушатся в Pushgateway после завершения apply
// (стандартная схема для batch-процессов).
type Metrics struct {
	registry *prometheus.Registry

	jobsTotal     *prometheus.CounterVec
	applyDuration prometheus.Gauge
	lastApplyTime prometheus.Gauge
}

// NewMetrics создаёт реестр метрик запуска.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provisor_jobs_total",
			Help: "Jobs processed during apply, by action and outcome.",
		}, []string{"action", "outcome"}),
		applyDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "provisor_apply_duration_seconds",
			Help: "Duration of the last apply run.",
		}),
		lastApplyTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "provisor_last_apply_timestamp_seconds",
			Help: "Unix timestamp of the last apply run.",
		}),
	}

	registry.MustRegister(m.jobsTotal, m.applyDuration, m.lastApplyTime)

	return m
}

// ObserveJob учитывает один обработанный job.
func (m *Metrics) ObserveJob(action, outcome string) {
	m.jobsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveApply фиксирует длительность и время завершения apply.
func (m *Metrics) ObserveApply(duration time.Duration) {
	m.applyDuration.Set(duration.Seconds())
	m.lastApplyTime.SetToCurrentTime()
}

// Push отправляет метрики в Pushgateway.
//
// projectID уходит в grouping label, чтобы несколько проектов
// не затирали метрики друг друга.
func (m *Metrics) Push(gatewayURL, projectID string) error {
	err := push.New(gatewayURL, "provisor").
		Gatherer(m.registry).
		Grouping("project", projectID).
		Push()
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
