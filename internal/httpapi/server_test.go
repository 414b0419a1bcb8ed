package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/antoniostano/tauntbot/internal/clips"
	"github.com/antoniostano/tauntbot/internal/reliability"
)

type readyFlag bool

func (r readyFlag) Ready() bool { return bool(r) }

type brokenLister struct{}

func (brokenLister) List() ([]int, error) { return nil, errors.New("permission denied") }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndReady(t *testing.T) {
	srv := New(readyFlag(false), clips.NewDirStore(t.TempDir(), ".ogg"), nil, 105)
	h := srv.Router()

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
	rec := get(t, h, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode readyz response: %v", err)
	}
	if body.Code != "gateway_not_ready" {
		t.Fatalf("readyz code = %q, want %q", body.Code, "gateway_not_ready")
	}

	srv = New(readyFlag(true), clips.NewDirStore(t.TempDir(), ".ogg"), nil, 105)
	if rec := get(t, srv.Router(), "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHealthReportsBreakerState(t *testing.T) {
	breaker := reliability.NewBreaker(reliability.BreakerConfig{Name: "voice"}, nil)
	srv := New(readyFlag(true), brokenLister{}, breaker, 105)

	rec := get(t, srv.Router(), "/healthz")
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode healthz response: %v", err)
	}
	if body["voice_breaker"] != "closed" {
		t.Fatalf("voice_breaker = %v, want closed", body["voice_breaker"])
	}
}

func TestListClips(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.ogg", "3.ogg", "200.ogg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	srv := New(readyFlag(true), clips.NewDirStore(dir, ".ogg"), nil, 4)

	rec := get(t, srv.Router(), "/v1/clips")
	if rec.Code != http.StatusOK {
		t.Fatalf("clips status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body clipsResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode clips response: %v", err)
	}
	if body.Count != 2 || body.Max != 4 {
		t.Fatalf("clips count/max = %d/%d, want 2/4", body.Count, body.Max)
	}
	if got := join(body.Clips); got != "1,3" {
		t.Fatalf("clips = %s, want 1,3", got)
	}
	if got := join(body.Missing); got != "2,4" {
		t.Fatalf("missing = %s, want 2,4", got)
	}
}

func TestListClipsStoreError(t *testing.T) {
	srv := New(readyFlag(true), brokenLister{}, nil, 105)

	rec := get(t, srv.Router(), "/v1/clips")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("clips status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New(readyFlag(true), brokenLister{}, nil, 105)

	rec := get(t, srv.Router(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics body missing go runtime collectors")
	}
}

func join(ns []int) string {
	parts := make([]string, 0, len(ns))
	for _, n := range ns {
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, ",")
}
