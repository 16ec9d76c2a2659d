package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/plcbridge/internal/testutil/testlog"
)

func TestAdminRouterEndpoints(t *testing.T) {
	testlog.Start(t)
	router := NewAdminRouter("plcbridge-test", func() any {
		return map[string]any{"state": "connected", "frames_sent": 3}
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "ok" || health["service"] != "plcbridge-test" {
		t.Fatalf("unexpected health: %v", health)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status["state"] != "connected" || status["frames_sent"] != float64(3) {
		t.Fatalf("unexpected status: %v", status)
	}

	RecordFrame("client", "tx", 9)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "plcbridge_session_frames_total") {
		t.Fatalf("metrics output missing frame counter")
	}
}

func TestAdminRouterWithoutStatusSource(t *testing.T) {
	testlog.Start(t)
	router := NewAdminRouter("plcbridge-test", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status code=%d", rec.Code)
	}
}
