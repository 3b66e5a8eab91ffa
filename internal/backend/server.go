// Package backend is a reference account gateway serving the wire contract
// the monitor consumes: portfolio, trades, signals, status and the
// emergency stop switch.
package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"sentinel/internal/config"
	"sentinel/internal/model"
)

const engineName = "Sentinel Gateway"

// Server serves the gateway API.
type Server struct {
	logger  *slog.Logger
	cfg     config.GatewayConfig
	flag    *StopFlag
	prices  PriceSource
	trades  []model.Trade
	signals []model.Signal
	router  *mux.Router
}

// NewServer creates the gateway server. prices may be nil, in which case
// crypto wallets are quoted at 1.
func NewServer(logger *slog.Logger, cfg config.GatewayConfig, flag *StopFlag, prices PriceSource) *Server {
	s := &Server{
		logger:  logger,
		cfg:     cfg,
		flag:    flag,
		prices:  prices,
		trades:  []model.Trade{},
		signals: []model.Signal{},
	}

	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, corsMiddleware)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/emergency-stop", s.handleEmergencyStop).Methods(http.MethodPost)
	r.HandleFunc("/api/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	r.HandleFunc("/api/trades", s.handleTrades).Methods(http.MethodGet)
	r.HandleFunc("/api/signals", s.handleSignals).Methods(http.MethodGet)
	// preflight requests are answered by the CORS middleware
	r.Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	s.router = r
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// LoadSeeds reads the optional trades and signals seed files. An empty path is skipped.
func (s *Server) LoadSeeds() error {
	if s.cfg.TradesFile != "" {
		raw, err := os.ReadFile(s.cfg.TradesFile)
		if err != nil {
			return errors.Wrap(err, "read trades seed")
		}
		trades, err := model.DecodeTrades(raw, 0)
		if err != nil {
			return errors.Wrapf(err, "decode %s", s.cfg.TradesFile)
		}
		s.trades = trades
	}
	if s.cfg.SignalsFile != "" {
		raw, err := os.ReadFile(s.cfg.SignalsFile)
		if err != nil {
			return errors.Wrap(err, "read signals seed")
		}
		signals, err := model.DecodeSignals(raw)
		if err != nil {
			return errors.Wrapf(err, "decode %s", s.cfg.SignalsFile)
		}
		s.signals = signals
	}
	s.logger.Info("Gateway: seeds loaded", "trades", len(s.trades), "signals", len(s.signals))
	return nil
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Gateway: listening", "addr", s.cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "gateway server")
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "Online", "engine": engineName})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Status{IsEmergencyStopped: s.flag.Get()})
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	stop, ok := body["stop"].(bool)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	if s.flag.Set(stop) {
		if stop {
			s.logger.Warn("Gateway: emergency stop engaged", "requestId", requestID(r))
		} else {
			s.logger.Info("Gateway: emergency stop released", "requestId", requestID(r))
		}
	}
	writeJSON(w, http.StatusOK, model.StopResponse{Success: true, IsEmergencyStopped: s.flag.Get()})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildPortfolio(s.cfg.Wallets, s.cfg.BaseCurrency, s.prices))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, recentTrades(s.trades, s.cfg.MaxTrades))
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.signals)
}

type ctxKey struct{}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		s.logger.Debug("Gateway: request", "method", r.Method, "path", r.URL.Path, "requestId", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
