package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pbaille/tagvault/internal/audit"
	"github.com/pbaille/tagvault/internal/domain"
	"github.com/pbaille/tagvault/internal/ingest"
	"github.com/pbaille/tagvault/internal/store"
)

const defaultAuditLimit = 50

// Server handles HTTP requests for the vault API
type Server struct {
	pipeline *ingest.Pipeline
	store    *store.Store
	sink     audit.Sink
	logger   *zap.Logger
	addr     string
}

// New creates a new API server
func New(p *ingest.Pipeline, s *store.Store, logger *zap.Logger, addr string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pipeline: p, store: s, sink: s.Sink(), logger: logger, addr: addr}
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Entries
	mux.HandleFunc("GET /entries", s.listEntries)
	mux.HandleFunc("POST /entries", s.addEntry)
	mux.HandleFunc("GET /entries/{id}", s.getEntry)
	mux.HandleFunc("DELETE /entries/{id}", s.deleteEntry)

	// Retention
	mux.HandleFunc("POST /sweep", s.sweep)
	mux.HandleFunc("GET /policy", s.policy)

	// Audit trail
	mux.HandleFunc("GET /audit", s.recentAudit)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return withCORS(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AddEntryRequest is the request body for adding an entry
type AddEntryRequest struct {
	Payload json.RawMessage `json:"payload,omitempty"`
	Origin  string          `json:"origin,omitempty"`
	URL     string          `json:"url,omitempty"`
}

// AddEntryResponse is the response for adding an entry
type AddEntryResponse struct {
	ID        string    `json:"id"`
	Tags      []string  `json:"tags"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	var req AddEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		entry domain.Entry
		err   error
	)
	if req.URL != "" {
		entry, err = s.pipeline.SubmitURL(r.Context(), req.URL, req.Origin)
	} else {
		entry, err = s.pipeline.Submit(r.Context(), decodePayload(req.Payload), req.Origin)
	}
	switch {
	case errors.Is(err, store.ErrInvalidPayload):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil && req.URL != "":
		writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, AddEntryResponse{
		ID:        entry.ID,
		Tags:      entry.Tags,
		ExpiresAt: entry.ExpiresAt,
	})
}

// decodePayload turns a JSON string into a Go string so it is classified by
// its text rather than its quoted encoding. Other values stay structured.
func decodePayload(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	return v
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	entries := s.store.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) sweep(w http.ResponseWriter, r *http.Request) {
	purged := s.store.SweepNow()
	if purged == nil {
		purged = []string{}
	}
	s.logger.Info("manual sweep", zap.Int("purged", len(purged)))
	writeJSON(w, http.StatusOK, map[string]interface{}{"purged": purged})
}

func (s *Server) policy(w http.ResponseWriter, r *http.Request) {
	p := s.store.Policy()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"default_ttl_seconds": int64(p.DefaultTTL() / time.Second),
		"ttl_seconds":         p.Seconds(),
	})
}

func (s *Server) recentAudit(w http.ResponseWriter, r *http.Request) {
	n := defaultAuditLimit
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	events, err := s.sink.Recent(n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []domain.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
