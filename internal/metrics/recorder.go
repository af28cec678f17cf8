package metrics

import "time"

// ResultLabel enumerates phase result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for bootstrap and supervision metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods must
// be safe for nil receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	ObserveBootDuration(d time.Duration)
	IncPhaseResult(phase string, result ResultLabel)
	IncBootOutcome(outcome string) // outcome: success|failed|canceled
	ObserveProbeAttempts(attempts int)
	ObservePackBuildDuration(pack string, d time.Duration, success bool)
	IncPackBuildResult(success bool)
	SetSupervisedProcesses(n int)
	IncProcessRestart(process string)
	IncProcessRestartExhausted(process string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration)           {}
func (NoopRecorder) ObserveBootDuration(time.Duration)                    {}
func (NoopRecorder) IncPhaseResult(string, ResultLabel)                   {}
func (NoopRecorder) IncBootOutcome(string)                                {}
func (NoopRecorder) ObserveProbeAttempts(int)                             {}
func (NoopRecorder) ObservePackBuildDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncPackBuildResult(bool)                              {}
func (NoopRecorder) SetSupervisedProcesses(int)                           {}
func (NoopRecorder) IncProcessRestart(string)                             {}
func (NoopRecorder) IncProcessRestartExhausted(string)                    {}
