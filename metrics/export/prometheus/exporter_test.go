package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
)

type fakeSource struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goSession.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func emptySnapshot() goSession.MetricsSnapshot {
	return goSession.MetricsSnapshot{
		Counters:   map[goSession.MetricID]uint64{},
		Histograms: map[goSession.MetricID][]uint64{},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	if got := New(fakeSource{snapshot: emptySnapshot()}).Render(); got != "" {
		t.Fatalf("expected empty output, got:\n%s", got)
	}
	var nilExp *Exporter
	if nilExp.Render() != "" {
		t.Fatal("nil exporter must render nothing")
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	exp := New(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:   7,
				goSession.MetricReplayDetected: 2,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 3,
	})

	out := exp.Render()
	for _, want := range []string{
		"gosession_login_success_total 7",
		"gosession_replay_detected_total 2",
		"gosession_refresh_success_total 0",
		`gosession_validate_latency_seconds_bucket{le="0.005"} 1`,
		`gosession_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"gosession_validate_latency_seconds_count 36",
		"gosession_audit_dropped_total 3",
		"# TYPE gosession_validate_latency_seconds histogram",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestRenderSkipsDisabledHistogram(t *testing.T) {
	snap := emptySnapshot()
	snap.Counters[goSession.MetricLogout] = 1
	out := New(fakeSource{snapshot: snap}).Render()
	if strings.Contains(out, "gosession_validate_latency_seconds") {
		t.Fatalf("histogram rendered without data:\n%s", out)
	}
}

func TestHandlerContentType(t *testing.T) {
	snap := emptySnapshot()
	snap.Counters[goSession.MetricLoginSuccess] = 1

	rec := httptest.NewRecorder()
	New(fakeSource{snapshot: snap}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := New(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:   1000,
				goSession.MetricLoginFailure:   40,
				goSession.MetricRefreshSuccess: 800,
				goSession.MetricSessionCreated: 800,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
