package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/tauntbot/internal/observability"
)

// ReadyChecker reports whether the chat gateway is connected.
type ReadyChecker interface {
	Ready() bool
}

// ClipLister lists the clip numbers that have an asset on disk.
type ClipLister interface {
	List() ([]int, error)
}

// BreakerStater reports the voice circuit breaker state.
type BreakerStater interface {
	State() string
}

// Server is the operational HTTP surface of the bot.
type Server struct {
	gateway ReadyChecker
	clips   ClipLister
	breaker BreakerStater
	maxClip int
}

// New builds the server. breaker may be nil.
func New(gateway ReadyChecker, clips ClipLister, breaker BreakerStater, maxClip int) *Server {
	return &Server{gateway: gateway, clips: clips, breaker: breaker, maxClip: maxClip}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/clips", s.handleListClips)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.breaker != nil {
		body["voice_breaker"] = s.breaker.State()
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.gateway == nil || !s.gateway.Ready() {
		respondError(w, http.StatusServiceUnavailable, "gateway_not_ready", "discord gateway is not connected")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type clipsResponse struct {
	Clips   []int `json:"clips"`
	Count   int   `json:"count"`
	Max     int   `json:"max"`
	Missing []int `json:"missing"`
}

func (s *Server) handleListClips(w http.ResponseWriter, _ *http.Request) {
	available, err := s.clips.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "clip_store_unavailable", err.Error())
		return
	}
	present := make(map[int]bool, len(available))
	inRange := make([]int, 0, len(available))
	for _, n := range available {
		if n <= s.maxClip {
			present[n] = true
			inRange = append(inRange, n)
		}
	}
	missing := []int{}
	for n := 1; n <= s.maxClip; n++ {
		if !present[n] {
			missing = append(missing, n)
		}
	}
	respondJSON(w, http.StatusOK, clipsResponse{
		Clips:   inRange,
		Count:   len(inRange),
		Max:     s.maxClip,
		Missing: missing,
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
