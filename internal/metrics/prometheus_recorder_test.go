package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObservePhaseDuration("migrate", 150*time.Millisecond)
	pr.ObserveBootDuration(500 * time.Millisecond)
	pr.IncPhaseResult("migrate", ResultSuccess)
	pr.IncBootOutcome("success")
	pr.ObserveProbeAttempts(2)
	pr.ObservePackBuildDuration("intro-go", 2*time.Second, false)
	pr.IncPackBuildResult(true)
	pr.SetSupervisedProcesses(3)
	pr.IncProcessRestart("proxy")
	pr.IncProcessRestartExhausted("proxy")
	// Basic scrape to ensure metrics encode without panic
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
}
