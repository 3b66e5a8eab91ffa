// Package api exposes the monitor's state to the presentation layer over
// HTTP and WebSocket. The emergency stop toggle is its only mutation.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"sentinel/internal/config"
	"sentinel/internal/emergency"
	"sentinel/internal/metrics"
	"sentinel/internal/model"
	"sentinel/internal/syncloop"
)

// StateSource publishes the latest synchronized state.
type StateSource interface {
	State() syncloop.State
}

// StopController is the emergency stop surface used by the façade.
type StopController interface {
	Status() emergency.Status
	Set(ctx context.Context, stop bool) bool
	Toggle(ctx context.Context) bool
}

// LogSource returns the operational log.
type LogSource interface {
	Entries() []model.LogEntry
}

// View is everything the presentation layer renders.
type View struct {
	Assets    []model.Asset     `json:"assets"`
	Trades    []model.Trade     `json:"trades"`
	Signals   []model.Signal    `json:"signals"`
	Summary   metrics.Summary   `json:"summary"`
	Holdings  []metrics.Holding `json:"holdings"`
	Connected bool              `json:"connected"`
	LastError string            `json:"lastError,omitempty"`
	LastSync  time.Time         `json:"lastSync"`
	Emergency emergency.Status  `json:"emergency"`
	Logs      []model.LogEntry  `json:"logs"`
}

// Server is the monitor's HTTP façade.
type Server struct {
	logger   *slog.Logger
	cfg      config.FacadeConfig
	base     string
	state    StateSource
	stop     StopController
	log      LogSource
	limiter  *rate.Limiter
	hub      *Hub
	upgrader websocket.Upgrader
	router   *mux.Router
}

// NewServer creates the façade. base is the currency aggregates are expressed in.
func NewServer(logger *slog.Logger, cfg config.FacadeConfig, base string, state StateSource, stop StopController, log LogSource) *Server {
	s := &Server{
		logger:  logger,
		cfg:     cfg,
		base:    base,
		state:   state,
		stop:    stop,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.ToggleRate), cfg.ToggleBurst),
		hub:     NewHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	api.HandleFunc("/trades", s.handleTrades).Methods(http.MethodGet)
	api.HandleFunc("/signals", s.handleSignals).Methods(http.MethodGet)
	api.HandleFunc("/logs", s.handleLogs).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/emergency-stop", s.handleEmergencyStop).Methods(http.MethodPost)

	s.router = r
	return s
}

// Handler returns the HTTP handler of the façade.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Facade: listening", "addr", s.cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "facade server")
	}
	return nil
}

// BuildView assembles the current view from a single published state.
func (s *Server) BuildView() View {
	st := s.state.State()
	return View{
		Assets:    st.Snapshot.Assets,
		Trades:    st.Snapshot.Trades,
		Signals:   st.Snapshot.Signals,
		Summary:   metrics.Summarize(st.Snapshot.Assets, s.base),
		Holdings:  metrics.Holdings(st.Snapshot.Assets),
		Connected: st.Connected,
		LastError: st.LastError,
		LastSync:  st.Snapshot.FetchedAt,
		Emergency: s.stop.Status(),
		Logs:      s.log.Entries(),
	}
}

// Publish pushes the current view to websocket clients.
func (s *Server) Publish() {
	if s.hub.Len() == 0 {
		return
	}
	s.hub.BroadcastJSON(s.BuildView())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.state.State()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "connected": st.Connected, "ticks": st.Ticks})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.BuildView())
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.State().Snapshot.Assets)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.State().Snapshot.Trades)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.State().Snapshot.Signals)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.log.Entries())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stop.Status())
}

// handleEmergencyStop toggles the stop flag, or sets it when the body carries
// an explicit {"stop": bool}.
func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many toggle requests")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	// a disconnecting client must not abort a toggle already sent
	ctx := context.WithoutCancel(r.Context())

	var halted bool
	if len(raw) == 0 {
		halted = s.stop.Toggle(ctx)
	} else {
		var body map[string]interface{}
		if err := json.Unmarshal(raw, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid body")
			return
		}
		v, present := body["stop"]
		if !present {
			halted = s.stop.Toggle(ctx)
		} else if stop, ok := v.(bool); ok {
			halted = s.stop.Set(ctx, stop)
		} else {
			writeError(w, http.StatusBadRequest, "Invalid body")
			return
		}
	}

	s.Publish()
	writeJSON(w, http.StatusOK, model.Status{IsEmergencyStopped: halted})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Facade: websocket upgrade failed", "error", err)
		return
	}
	c := s.hub.add(conn)
	if err := c.writeJSON(s.BuildView()); err != nil {
		s.hub.remove(conn)
		return
	}

	// drain client frames until the connection closes
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
