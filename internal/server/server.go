package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline"
)

// SyncRunner is the slice of the pipeline the HTTP surface needs.
type SyncRunner interface {
	Run(ctx context.Context, dateStart, dateEnd string, deadline time.Time, trigger string) (*pipeline.Report, error)
}

// Server exposes the manual sync trigger plus health and metrics.
type Server struct {
	syncer SyncRunner
	guard  *pipeline.RunGuard
	budget time.Duration
	port   int
	logger *slog.Logger
}

func New(syncer SyncRunner, guard *pipeline.RunGuard, budget time.Duration, port int, logger *slog.Logger) *Server {
	return &Server{
		syncer: syncer,
		guard:  guard,
		budget: budget,
		port:   port,
		logger: logger.With("component", "server"),
	}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/sync", s.handleSync)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			s.logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server started", "port", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"message": "método não permitido",
		})
		return
	}

	dateStart := r.URL.Query().Get("dataInicial")
	dateEnd := r.URL.Query().Get("dataFinal")
	if err := validateDateParam(dateStart); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": fmt.Sprintf("dataInicial inválida: %v", err),
		})
		return
	}
	if err := validateDateParam(dateEnd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": fmt.Sprintf("dataFinal inválida: %v", err),
		})
		return
	}
	if dateStart > dateEnd {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "dataInicial posterior a dataFinal",
		})
		return
	}

	if !s.guard.TryAcquire() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"message": "sincronização já em andamento",
		})
		return
	}
	defer s.guard.Release()

	deadline := time.Now().Add(s.budget)
	ctx, cancel := context.WithDeadline(r.Context(), deadline)
	defer cancel()

	report, err := s.syncer.Run(ctx, dateStart, dateEnd, deadline, "http")
	if err != nil {
		s.logger.Error("sync run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "falha interna na sincronização",
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// validateDateParam accepts only real calendar dates in AAAAMMDD form.
func validateDateParam(v string) error {
	if len(v) != 8 {
		return fmt.Errorf("esperado formato AAAAMMDD")
	}
	if _, err := time.Parse("20060102", v); err != nil {
		return fmt.Errorf("data inexistente")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
