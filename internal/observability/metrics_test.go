package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveTickRecordsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewBridgeCollector(reg)
	if err != nil {
		t.Fatalf("NewBridgeCollector: %v", err)
	}

	collector.ObserveTick(12 * time.Millisecond)
	collector.ObserveTick(40 * time.Millisecond)

	if got := testutil.ToFloat64(collector.Ticks); got != 2 {
		t.Fatalf("bridge_ticks_total = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "bridge_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("bridge_tick_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestSoftFailureAndCommandLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewBridgeCollector(reg)
	if err != nil {
		t.Fatalf("NewBridgeCollector: %v", err)
	}

	collector.IncSoftFailure("pull")
	collector.IncSoftFailure("pull")
	collector.IncSoftFailure("commands")
	collector.IncCommand("emergency_mode")

	if got := testutil.ToFloat64(collector.SoftFailures.WithLabelValues("pull")); got != 2 {
		t.Fatalf("bridge_soft_failures_total{phase=pull} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.SoftFailures.WithLabelValues("commands")); got != 1 {
		t.Fatalf("bridge_soft_failures_total{phase=commands} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Commands.WithLabelValues("emergency_mode")); got != 1 {
		t.Fatalf("bridge_commands_total{kind=emergency_mode} = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesTrafficGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewBridgeCollector(reg)
	if err != nil {
		t.Fatalf("NewBridgeCollector: %v", err)
	}
	collector.SetTraffic(14, 42.5)
	collector.SetConnected(true)
	collector.ObserveTick(5 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"bridge_ticks_total",
		"bridge_tick_duration_seconds",
		"bridge_vehicle_count",
		"bridge_average_speed_kmh",
		"bridge_simulation_connected",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, "bridge_vehicle_count 14") {
		t.Fatalf("/metrics output missing vehicle count gauge: %s", body)
	}
	if !strings.Contains(body, "bridge_simulation_connected 1") {
		t.Fatalf("/metrics output missing connected gauge: %s", body)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *BridgeCollector
	collector.ObserveTick(time.Millisecond)
	collector.IncSoftFailure("pull")
	collector.IncCommand("system_reset")
	collector.SetTraffic(1, 1)
	collector.SetConnected(false)
}

func TestDoubleRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewBridgeCollector(reg)
	if err != nil {
		t.Fatalf("NewBridgeCollector: %v", err)
	}
	second, err := NewBridgeCollector(reg)
	if err != nil {
		t.Fatalf("NewBridgeCollector second registration: %v", err)
	}

	first.Ticks.Inc()
	second.Ticks.Inc()
	if got := testutil.ToFloat64(first.Ticks); got != 2 {
		t.Fatalf("shared bridge_ticks_total = %v, want 2", got)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
