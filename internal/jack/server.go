// Package jack serves the MIDI device endpoints the selection dialog talks
// to: the current port list with the in-use subset, and the update of that
// subset together with the routing mode.
package jack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/leandrodaf/midiports/internal/remote"
	"github.com/leandrodaf/midiports/sdk/contracts"
)

const (
	maxRequestBody        = 64 << 10
	defaultRequestTimeout = 10 * time.Second
)

// Server exposes the device store over HTTP.
type Server struct {
	ports   contracts.PortSource
	store   *Store
	logger  contracts.Logger
	timeout time.Duration
	router  *mux.Router
	handler http.Handler
	http    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithRequestTimeout bounds the handling of a single request. Requests that
// run longer are answered with 503.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewServer wires the routes. addr may be empty when only Handler is used.
func NewServer(addr string, ports contracts.PortSource, store *Store, logger contracts.Logger, opts ...Option) *Server {
	s := &Server{
		ports:   ports,
		store:   store,
		logger:  logger,
		timeout: defaultRequestTimeout,
		router:  mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc(remote.GetDevicesPath, s.handleGetDevices).Methods(http.MethodGet)
	s.router.HandleFunc(remote.SetDevicesPath, s.handleSetDevices).Methods(http.MethodPost)
	s.router.Use(s.logRequests)

	timeoutBody, _ := json.Marshal(Error{
		Status:  http.StatusServiceUnavailable,
		Code:    ErrCodeTimeout,
		Message: "request timed out",
	})
	s.handler = http.TimeoutHandler(s.router, s.timeout, string(timeoutBody))

	// The write deadline leaves room for the timeout response itself.
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: s.timeout,
		ReadTimeout:       s.timeout,
		WriteTimeout:      2 * s.timeout,
	}
	return s
}

// Handler returns the routes wrapped in the request timeout.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("device server listening", s.logger.Field().String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listening on %s: %w", s.http.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("device server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.ports.ListDevices()
	if err != nil {
		s.logger.Error("listing MIDI ports failed", s.logger.Field().Error("error", err))
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list MIDI ports")
		return
	}

	inUse, aggregated := s.store.Get()
	active := make(map[string]struct{}, len(inUse))
	for _, id := range inUse {
		active[id] = struct{}{}
	}

	resp := contracts.DeviceState{
		DevsInUse:          []string{},
		DevList:            make([]string, 0, len(devices)),
		Names:              make(map[string]string, len(devices)),
		MidiAggregatedMode: aggregated,
	}
	for _, d := range devices {
		if _, dup := resp.Names[d.ID]; dup {
			continue
		}
		resp.DevList = append(resp.DevList, d.ID)
		resp.Names[d.ID] = d.DisplayName()
		if _, ok := active[d.ID]; ok {
			resp.DevsInUse = append(resp.DevsInUse, d.ID)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// setDevicesRequest keeps devs as a pointer so a missing field can be told
// apart from an empty list.
type setDevicesRequest struct {
	Devs               *[]string `json:"devs"`
	MidiAggregatedMode bool      `json:"midiAggregatedMode"`
}

func (s *Server) handleSetDevices(w http.ResponseWriter, r *http.Request) {
	var req setDevicesRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.Devs == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "devs is required")
		return
	}

	devices, err := s.ports.ListDevices()
	if err != nil {
		s.logger.Error("listing MIDI ports failed", s.logger.Field().Error("error", err))
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to list MIDI ports")
		return
	}
	known := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		known[d.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(*req.Devs))
	devs := make([]string, 0, len(*req.Devs))
	for _, id := range *req.Devs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := known[id]; !ok {
			s.logger.Warn("ignoring unknown MIDI device", s.logger.Field().String("device", id))
			continue
		}
		devs = append(devs, id)
	}

	if err := s.store.Set(devs, req.MidiAggregatedMode); err != nil {
		s.logger.Error("saving MIDI device selection failed", s.logger.Field().Error("error", err))
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to save MIDI device selection")
		return
	}

	s.logger.Info("MIDI devices updated",
		s.logger.Field().Strings("devs", devs),
		s.logger.Field().String("mode", contracts.ModeFromAggregated(req.MidiAggregatedMode).String()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			s.logger.Field().String("method", r.Method),
			s.logger.Field().String("path", r.URL.Path),
			s.logger.Field().String("request_id", r.Header.Get("X-Request-Id")),
			s.logger.Field().Int64("elapsed_ms", time.Since(start).Milliseconds()))
	})
}
