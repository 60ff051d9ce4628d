package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MessageReceived("point")
	m.MessageReceived("point")
	m.MessageReceived("chunk")
	m.MessageMalformed()
	m.SweepBegun(false)
	m.SweepBegun(true)
	m.Rendered(false)
	m.Rendered(true)
	m.RenderSuppressed()
	m.RunEnded("stopped")
	m.SweepPoints(42)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{name: "point messages", c: m.messages.WithLabelValues("point"), want: 2},
		{name: "chunk messages", c: m.messages.WithLabelValues("chunk"), want: 1},
		{name: "malformed", c: m.malformed, want: 1},
		{name: "sweeps", c: m.sweeps, want: 2},
		{name: "evicted", c: m.evicted, want: 1},
		{name: "throttled renders", c: m.RendersCounter(false), want: 1},
		{name: "final renders", c: m.RendersCounter(true), want: 1},
		{name: "suppressed", c: m.suppressed, want: 1},
		{name: "stopped runs", c: m.RunsCounter("stopped"), want: 1},
		{name: "sweep points", c: m.sweepPoints, want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetrics_SessionState(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	all := []string{"idle", "connecting", "active"}
	m.SessionState("connecting", all...)
	m.SessionState("active", all...)

	for _, s := range all {
		want := 0.0
		if s == "active" {
			want = 1
		}
		if got := testutil.ToFloat64(m.state.WithLabelValues(s)); got != want {
			t.Errorf("state %s = %v, want %v", s, got, want)
		}
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics

	// A nil Metrics records nothing and must not panic.
	m.MessageReceived("point")
	m.MessageMalformed()
	m.SweepBegun(true)
	m.SweepPoints(1)
	m.Rendered(true)
	m.RenderSuppressed()
	m.RunEnded("stopped")
	m.SessionState("idle")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RunEnded("server_error")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if want := `spectrum_watch_runs_total{outcome="server_error"} 1`; !strings.Contains(string(body), want) {
		t.Errorf("metrics output missing %q", want)
	}
}
