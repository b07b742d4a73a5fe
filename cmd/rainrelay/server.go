package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rainrelay/internal/constants"
	"rainrelay/internal/middleware"
	"rainrelay/internal/models"
	"rainrelay/internal/service"
	"rainrelay/internal/store"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router       *mux.Router
	logger       *logrus.Logger
	store        store.Store
	monitor      *service.Monitor
	relayEnabled bool
	startTime    time.Time
	server       *http.Server
}

// StatusResponse is served on /status.
type StatusResponse struct {
	Version   string                 `json:"version"`
	UptimeSec int64                  `json:"uptimeSec"`
	Store     models.StoreStats      `json:"store"`
	Monitor   *service.MonitorStatus `json:"monitor,omitempty"`
	Relay     RelayStatus            `json:"relay"`
}

type RelayStatus struct {
	Enabled bool `json:"enabled"`
}

// NewServer builds the status server. monitor is nil when feed monitoring is off.
func NewServer(port int, st store.Store, monitor *service.Monitor, relayEnabled bool, logger *logrus.Logger) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		logger:       logger,
		store:        st,
		monitor:      monitor,
		relayEnabled: relayEnabled,
		startTime:    time.Now(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(constants.DefaultServerReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(constants.DefaultServerWriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(constants.DefaultServerIdleTimeoutSec) * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.logger.Infof("Starting server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler implementations
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.store.Stats(r.Context())
		if err != nil {
			s.logger.WithError(err).Error("Failed to read store stats")
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}

		resp := StatusResponse{
			Version:   Version,
			UptimeSec: int64(time.Since(s.startTime).Seconds()),
			Store:     stats,
			Relay:     RelayStatus{Enabled: s.relayEnabled},
		}
		if s.monitor != nil {
			status := s.monitor.Status()
			resp.Monitor = &status
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.WithError(err).Error("Failed to encode status response")
		}
	}
}
