package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromSink_SignupOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("NewPromSink 应成功: %v", err)
	}

	sink.SignupOutcome("junior", "Accepted")
	sink.SignupOutcome("junior", "Accepted")
	sink.SignupOutcome("senior", "RejectedFull")

	expected := `
# HELP retrho_signups_total Observing signups by tier and outcome
# TYPE retrho_signups_total counter
retrho_signups_total{status="Accepted",tier="junior"} 2
retrho_signups_total{status="RejectedFull",tier="senior"} 1
`
	if err := testutil.CollectAndCompare(sink.signups, strings.NewReader(expected)); err != nil {
		t.Errorf("指标不符: %v", err)
	}
}

func TestPromSink_TargetsExpired(t *testing.T) {
	sink, err := NewPromSink(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewPromSink 应成功: %v", err)
	}

	sink.TargetsExpired(3)
	sink.TargetsExpired(0)

	if v := testutil.ToFloat64(sink.expired); v != 3 {
		t.Errorf("期望 3，实际 %v", v)
	}
}

func TestNewPromSink_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("首次注册应成功: %v", err)
	}
	second, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("重复注册应复用已有指标: %v", err)
	}

	first.SubmissionOutcome("stored")
	second.SubmissionOutcome("stored")
	if v := testutil.ToFloat64(first.submissions.WithLabelValues("stored")); v != 2 {
		t.Errorf("期望两个实例共享计数 2，实际 %v", v)
	}
}
