package observability

import (
	"testing"

	"github.com/adred-codev/irmo/netproto"
	"github.com/adred-codev/irmo/schema"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestNewMetricsRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	if mfs, err := reg.Gather(); err != nil || len(mfs) == 0 {
		t.Fatalf("Gather() = %d families, %v; want at least one", len(mfs), err)
	}
	_ = m
}

func TestObserveServerCountsPeersByState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	srv := netproto.NewServer("demo", nil, nil, func(addr string, data []byte) error { return nil })
	p := netproto.NewClientPeer(nil, nil, "demo", func([]byte) error { return nil })
	_ = p

	m.ObserveServer("demo", srv)
	if got := gaugeValue(t, m.PeersByState.WithLabelValues("demo", netproto.StateConnected.String())); got != 0 {
		t.Fatalf("connected count = %v, want 0 for an empty server", got)
	}
}

func TestObservePeerReportsCongestionFields(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	spec := buildSpecForMetricsTest(t)
	p := netproto.NewClientPeer(nil, spec, "demo", func([]byte) error { return nil })

	m.ObservePeer("1.2.3.4:9000", p)
	if got := gaugeValue(t, m.Cwnd.WithLabelValues("1.2.3.4:9000")); got != float64(p.Cwnd()) {
		t.Fatalf("cwnd gauge = %v, want %v", got, p.Cwnd())
	}
}

func buildSpecForMetricsTest(t *testing.T) *schema.Spec {
	t.Helper()
	b := schema.NewBuilder()
	b.AddClass("Thing", "")
	spec, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return spec
}
