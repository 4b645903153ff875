package render

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"sptlb/internal/battlepass"
	"sptlb/internal/leaderboard"
	"sptlb/internal/storage"
	"sptlb/internal/toast"
	logx "sptlb/pkg/logx"
)

type ToastSource interface {
	Snapshot() []toast.Toast
	Stats() toast.Stats
}

type PlayerSource interface {
	Lookup(id leaderboard.ID) (leaderboard.Player, bool)
}

type HistorySource interface {
	RecentHistory(ctx context.Context, n int) ([]storage.HistoryEntry, error)
}

const (
	defaultHistory = 50
	maxHistory     = 300
	shutdownWait   = 5 * time.Second
)

// Server exposes the overlay websocket and a small read-only JSON API.
type Server struct {
	addr    string
	hub     *Hub
	toasts  ToastSource
	players PlayerSource
	history HistorySource
	log     logx.Logger
	router  *mux.Router
}

// NewServer builds the router. players and history may be nil; their
// routes then answer 503.
func NewServer(addr string, hub *Hub, toasts ToastSource, players PlayerSource, history HistorySource, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		addr:    addr,
		hub:     hub,
		toasts:  toasts,
		players: players,
		history: history,
		log:     log.With(logx.String("comp", "http")),
	}
	r := mux.NewRouter()
	if hub != nil {
		r.Handle("/ws", hub)
	}
	// Routes sit on the root router; a subrouter answers 404 on a method mismatch.
	r.HandleFunc("/api/toasts", s.handleToasts).Methods(http.MethodGet)
	r.HandleFunc("/api/players/{id}/battlepass", s.handleBattlepass).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("http listening", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(sctx); err != nil {
		s.log.Warn("http shutdown", logx.Err(err))
		_ = srv.Close()
	}
	return nil
}

type toastsResponse struct {
	Toasts []toast.Toast `json:"toasts"`
	Stats  toast.Stats   `json:"stats"`
}

// handleToasts reports pending and on-screen toasts for inspection. Overlay
// clients reset from the hub snapshot frame, which holds on-screen toasts only.
func (s *Server) handleToasts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, toastsResponse{Toasts: s.toasts.Snapshot(), Stats: s.toasts.Stats()})
}

type battlepassResponse struct {
	ID      leaderboard.ID      `json:"id"`
	Name    string              `json:"name"`
	Level   battlepass.Progress `json:"level"`
	Summary string              `json:"summary"`
}

func (s *Server) handleBattlepass(w http.ResponseWriter, r *http.Request) {
	if s.players == nil {
		s.writeError(w, http.StatusServiceUnavailable, "leaderboard not available")
		return
	}
	id := leaderboard.ID(mux.Vars(r)["id"])
	p, ok := s.players.Lookup(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "player not found")
		return
	}
	lvl := battlepass.PlayerLevel(p)
	s.writeJSON(w, http.StatusOK, battlepassResponse{ID: p.ID, Name: p.Name, Level: lvl, Summary: lvl.Summary()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history not available")
		return
	}
	n := defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		n = min(parsed, maxHistory)
	}
	entries, err := s.history.RecentHistory(r.Context(), n)
	if err != nil {
		s.log.Warn("history read failed", logx.Err(err))
		s.writeError(w, http.StatusInternalServerError, "history read failed")
		return
	}
	if entries == nil {
		entries = []storage.HistoryEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.hub != nil {
		clients = s.hub.Clients()
	}
	st := s.toasts.Stats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": clients,
		"visible": st.Visible,
		"pending": st.Pending,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("response write failed", logx.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
