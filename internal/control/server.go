package control

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"autoclock/internal/engine"
	"autoclock/internal/model"
	"autoclock/internal/settings"
)

// Controller is the set of engine operations exposed to operators.
type Controller interface {
	Status(ctx context.Context) (engine.Status, error)
	CheckNow(ctx context.Context, test bool) (engine.Report, error)
	Clock(ctx context.Context, action model.Action) (engine.Report, error)
	UpdateSchedule(ctx context.Context, upd settings.ScheduleUpdate) (model.Schedule, error)
	SetEnabled(ctx context.Context, enabled bool) error
	Reschedule(ctx context.Context) error
	CurrentState(ctx context.Context) (model.ClockState, error)
}

type Config struct {
	Address string
	// APIKey, when set, is required in the x-api-key header.
	APIKey        string
	RatePerMinute int
}

// Server is the HTTP control API.
type Server struct {
	ctrl    Controller
	cfg     Config
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func NewServer(ctrl Controller, cfg Config, logger zerolog.Logger) *Server {
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 30
	}
	burst := cfg.RatePerMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &Server{
		ctrl:    ctrl,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), burst),
		logger:  logger.With().Str("component", "control").Logger(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/settings", s.limited(s.handleSettings))
	mux.HandleFunc("POST /api/enabled", s.limited(s.handleEnabled))
	mux.HandleFunc("POST /api/reschedule", s.limited(s.handleReschedule))
	mux.HandleFunc("POST /api/check", s.limited(s.handleCheck))
	mux.HandleFunc("POST /api/clock/{action}", s.limited(s.handleClock))
	return s.authenticated(mux)
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.cfg.Address).Msg("Control API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) authenticated(next http.Handler) http.Handler {
	if s.cfg.APIKey == "" {
		return next
	}
	want := []byte(s.cfg.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("x-api-key"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limited(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		h(w, r)
	}
}

type statusResponse struct {
	engine.Status
	ProbeState model.ClockState `json:"probe_state,omitempty"`
	ProbeError string           `json:"probe_error,omitempty"`
}

// handleStatus returns the schedule, history and boundary phases.
// GET /api/status?probe=true also reads the state off the open portal tab.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Status(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Status failed")
		writeError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}

	resp := statusResponse{Status: st}
	if r.URL.Query().Get("probe") == "true" {
		state, err := s.ctrl.CurrentState(r.Context())
		resp.ProbeState = state
		if err != nil {
			resp.ProbeError = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type settingsResponse struct {
	Schedule settings.ScheduleView `json:"schedule"`
	Summary  string                `json:"summary"`
}

// handleSettings applies a partial schedule update.
// POST /api/settings {"enabled":true,"clockInTime":"09:30",...}
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var upd settings.ScheduleUpdate
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sched, err := s.ctrl.UpdateSchedule(r.Context(), upd)
	if err != nil {
		if errors.Is(err, settings.ErrInvalidValue) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Settings update failed")
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{Schedule: settings.ViewOf(sched), Summary: sched.Summary()})
}

// handleEnabled toggles automation.
// POST /api/enabled {"enabled":false}
func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": true|false}`)
		return
	}

	if err := s.ctrl.SetEnabled(r.Context(), *req.Enabled); err != nil {
		s.logger.Error().Err(err).Msg("Toggle failed")
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

// handleReschedule re-arms the timer from the stored schedule.
// POST /api/reschedule
func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Reschedule(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Reschedule failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type cycleResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Report  engine.Report `json:"report"`
}

// handleCheck runs a cycle now.
// POST /api/check?test=true
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	rep, err := s.ctrl.CheckNow(r.Context(), r.URL.Query().Get("test") == "true")
	writeCycle(w, rep, err)
}

// handleClock performs a manual clock action.
// POST /api/clock/in, POST /api/clock/out
func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	action, err := model.ParseAction(r.PathValue("action"))
	if err != nil {
		writeError(w, http.StatusNotFound, "action must be in or out")
		return
	}
	rep, err := s.ctrl.Clock(r.Context(), action)
	writeCycle(w, rep, err)
}

func writeCycle(w http.ResponseWriter, rep engine.Report, err error) {
	resp := cycleResponse{Success: err == nil, Message: rep.StatusText(), Report: rep}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, engine.ErrBusy):
		writeJSON(w, http.StatusConflict, resp)
	default:
		writeJSON(w, http.StatusBadGateway, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
