package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	phaseDuration     *prom.HistogramVec
	bootDuration      prom.Histogram
	phaseResults      *prom.CounterVec
	bootOutcome       *prom.CounterVec
	probeAttempts     prom.Histogram
	packBuildDuration *prom.HistogramVec
	packBuildResults  *prom.CounterVec
	processes         prom.Gauge
	restarts          *prom.CounterVec
	restartsExhausted *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.phaseDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "courseboot",
			Name:      "phase_duration_seconds",
			Help:      "Duration of individual bootstrap phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"})
		pr.bootDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "courseboot",
			Name:      "boot_duration_seconds",
			Help:      "Total bootstrap duration up to the sentinel phase",
			Buckets:   prom.DefBuckets,
		})
		pr.phaseResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "courseboot",
			Name:      "phase_results_total",
			Help:      "Phase result counts by outcome",
		}, []string{"phase", "result"})
		pr.bootOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "courseboot",
			Name:      "boot_outcomes_total",
			Help:      "Bootstrap outcomes by final status",
		}, []string{"outcome"})
		pr.probeAttempts = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "courseboot",
			Name:      "probe_attempts",
			Help:      "Database readiness probe attempts until success",
			Buckets:   []float64{1, 2, 3, 5, 8, 10},
		})
		pr.packBuildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "courseboot",
			Name:      "pack_build_duration_seconds",
			Help:      "Duration of individual content pack builds",
			Buckets:   prom.DefBuckets,
		}, []string{"pack", "result"})
		pr.packBuildResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "courseboot",
			Name:      "pack_build_results_total",
			Help:      "Pack build results by success/failure",
		}, []string{"result"})
		pr.processes = prom.NewGauge(prom.GaugeOpts{
			Namespace: "courseboot",
			Name:      "supervised_processes",
			Help:      "Supervised child processes currently alive",
		})
		pr.restarts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "courseboot",
			Name:      "process_restarts_total",
			Help:      "Total supervised process restarts",
		}, []string{"process"})
		pr.restartsExhausted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "courseboot",
			Name:      "process_restart_exhausted_total",
			Help:      "Count of processes whose restart budget ran out",
		}, []string{"process"})
		reg.MustRegister(pr.phaseDuration, pr.bootDuration, pr.phaseResults, pr.bootOutcome,
			pr.probeAttempts, pr.packBuildDuration, pr.packBuildResults, pr.processes,
			pr.restarts, pr.restartsExhausted)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil || p.phaseDuration == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBootDuration(d time.Duration) {
	if p == nil || p.bootDuration == nil {
		return
	}
	p.bootDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPhaseResult(phase string, result ResultLabel) {
	if p == nil || p.phaseResults == nil {
		return
	}
	p.phaseResults.WithLabelValues(phase, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBootOutcome(outcome string) {
	if p == nil || p.bootOutcome == nil {
		return
	}
	p.bootOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveProbeAttempts(attempts int) {
	if p == nil || p.probeAttempts == nil {
		return
	}
	p.probeAttempts.Observe(float64(attempts))
}

func (p *PrometheusRecorder) ObservePackBuildDuration(pack string, d time.Duration, success bool) {
	if p == nil || p.packBuildDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.packBuildDuration.WithLabelValues(pack, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPackBuildResult(success bool) {
	if p == nil || p.packBuildResults == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.packBuildResults.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) SetSupervisedProcesses(n int) {
	if p == nil || p.processes == nil {
		return
	}
	p.processes.Set(float64(n))
}

func (p *PrometheusRecorder) IncProcessRestart(process string) {
	if p == nil || p.restarts == nil {
		return
	}
	p.restarts.WithLabelValues(process).Inc()
}

func (p *PrometheusRecorder) IncProcessRestartExhausted(process string) {
	if p == nil || p.restartsExhausted == nil {
		return
	}
	p.restartsExhausted.WithLabelValues(process).Inc()
}
