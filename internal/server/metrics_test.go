package server

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gatherOne returns the metric family named name from reg, or nil.
func gatherOne(t *testing.T, reg prometheus.Gatherer, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func Test_Metrics_SearchCounterByOutcome(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := newServerMetrics(reg)

	m.searchRequestsTotal.WithLabelValues("ok").Inc()
	m.searchRequestsTotal.WithLabelValues("ok").Inc()
	m.searchRequestsTotal.WithLabelValues("error").Inc()

	mf := gatherOne(t, reg, "vetrag_search_requests_total")
	if mf == nil {
		t.Fatal("vetrag_search_requests_total not found in gathered metrics")
	}
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "outcome" {
				got[lp.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if got["ok"] != 2 || got["error"] != 1 {
		t.Errorf("want ok=2 error=1, got %v", got)
	}
}

func Test_Metrics_ActiveStreamsGauge(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := newServerMetrics(reg)

	m.askActiveStreams.Inc()
	m.askActiveStreams.Inc()
	m.askActiveStreams.Dec()

	mf := gatherOne(t, reg, "vetrag_ask_active_streams")
	if mf == nil {
		t.Fatal("vetrag_ask_active_streams not found in gathered metrics")
	}
	if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Errorf("want active_streams=1, got %v", v)
	}
}

func Test_Metrics_SeparateRegistries(t *testing.T) {
	t.Parallel()
	// Two servers in one process must not collide on registration.
	newServerMetrics(prometheus.NewRegistry())
	newServerMetrics(prometheus.NewRegistry())
}
