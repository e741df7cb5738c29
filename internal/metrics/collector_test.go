package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/netreach/gozmap/internal/metrics"
	"github.com/netreach/gozmap/internal/state"
)

func TestNewCollectorRegisters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(&state.SendState{}, &state.RecvState{})

	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	if len(families) == 0 {
		t.Error("Gather() returned no metric families")
	}
}

func TestCollectorSamplesSendCounters(t *testing.T) {
	t.Parallel()

	send := &state.SendState{}
	recv := &state.RecvState{}
	send.Sent.Store(42)
	send.Failures.Store(3)

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(send, recv)
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if got := gatherValue(t, reg, "gozmap_scan_sent_total"); got != 42 {
		t.Errorf("sent_total = %v, want 42", got)
	}
	if got := gatherValue(t, reg, "gozmap_scan_send_failures_total"); got != 3 {
		t.Errorf("send_failures_total = %v, want 3", got)
	}
}

func TestCollectorSamplesRecvCounters(t *testing.T) {
	t.Parallel()

	send := &state.SendState{}
	recv := &state.RecvState{}
	recv.SuccessTotal.Store(10)
	recv.SuccessUnique.Store(9)
	recv.FailureTotal.Store(5)
	recv.ICMPBadLen.Store(1)
	recv.AppSuccessTotal.Store(4)
	recv.AppSuccessUnique.Store(4)

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(send, recv)
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if got := gatherValue(t, reg, "gozmap_scan_success_total"); got != 10 {
		t.Errorf("success_total = %v, want 10", got)
	}
	if got := gatherValue(t, reg, "gozmap_scan_success_unique_total"); got != 9 {
		t.Errorf("success_unique_total = %v, want 9", got)
	}
	if got := gatherValue(t, reg, "gozmap_scan_failure_total"); got != 5 {
		t.Errorf("failure_total = %v, want 5", got)
	}
	if got := gatherValue(t, reg, "gozmap_scan_icmp_short_total"); got != 1 {
		t.Errorf("icmp_short_total = %v, want 1", got)
	}
	if got := gatherValue(t, reg, "gozmap_scan_app_success_total"); got != 4 {
		t.Errorf("app_success_total = %v, want 4", got)
	}
	if got := gatherValue(t, reg, "gozmap_scan_app_success_unique_total"); got != 4 {
		t.Errorf("app_success_unique_total = %v, want 4", got)
	}
}

func TestCollectorReflectsSendCompletion(t *testing.T) {
	t.Parallel()

	send := &state.SendState{}
	recv := &state.RecvState{}

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(send, recv)
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if got := gatherValue(t, reg, "gozmap_scan_send_complete"); got != 0 {
		t.Errorf("send_complete = %v, want 0 before Finish", got)
	}

	send.Complete.Store(true)

	if got := gatherValue(t, reg, "gozmap_scan_send_complete"); got != 1 {
		t.Errorf("send_complete = %v, want 1 after Finish", got)
	}
}

// gatherValue gathers reg and returns the single sample's value for the
// metric family named name; it fails the test if the family is missing
// or carries more than one sample (none of this collector's metrics are
// labeled, so exactly one sample each is expected).
func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		metrics := fam.GetMetric()
		if len(metrics) != 1 {
			t.Fatalf("family %s has %d samples, want 1", name, len(metrics))
		}
		return metricValue(metrics[0])
	}

	t.Fatalf("metric family %s not found", name)
	return 0
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.GetCounter().GetValue()
	case m.Gauge != nil:
		return m.GetGauge().GetValue()
	default:
		return 0
	}
}
