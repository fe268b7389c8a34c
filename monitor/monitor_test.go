package monitor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, m *Monitor) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestMonitor_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMonitorWithRegistry("test", reg, reg)

	m.IncFramesReceived("roast")
	m.IncFramesReceived("roast")
	m.IncVotes()
	m.SetActiveArenas(3)
	m.IncBattlesCompleted()

	body := scrape(t, m)
	for _, want := range []string{
		`test_frames_received_total{type="roast"} 2`,
		"test_votes_cast_total 1",
		"test_active_arenas 3",
		"test_battles_completed_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMonitor_NilIsNoop(t *testing.T) {
	var m *Monitor
	m.IncRoasts()
	m.IncBackendErrors("get_battle")
	m.DecViewers()
}
