// Package api serves schedule generation, score recording and match
// listing over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/derekprior/fixtures/internal/fixtures"
	"github.com/derekprior/fixtures/internal/league"
	"github.com/derekprior/fixtures/internal/metrics"
)

const (
	maxBodyBytes = 1 << 20
	dateLayout   = "2006-01-02"
)

// Service is the part of fixtures.Service the handlers call.
type Service interface {
	GenerateSchedule(ctx context.Context, competitionID int64, cfg league.ScheduleConfig) (*fixtures.ScheduleResult, error)
	RecordScore(ctx context.Context, matchID int64, home, away int) (*league.Match, error)
	Matches(ctx context.Context, competitionID int64) (*league.Competition, []league.Match, error)
}

type Handler struct {
	svc     Service
	metrics *metrics.Metrics
}

// NewHandler returns the API handler. m may be nil, in which case nothing
// is recorded and /metrics is not served.
func NewHandler(svc Service, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, metrics: m}
}

// Routes returns the full handler tree, middleware included.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	h.handle(mux, http.MethodPost, "/competitions/{id}/schedule", h.HandleGenerateSchedule)
	h.handle(mux, http.MethodGet, "/competitions/{id}/matches", h.HandleListMatches)
	h.handle(mux, http.MethodPut, "/matches/{id}/score", h.HandleRecordScore)

	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}

	return ChainMiddleware(
		mux,
		WithRecovery,
		WithLogging,
		WithRequestID,
	)
}

func (h *Handler) handle(mux *http.ServeMux, method, route string, fn http.HandlerFunc) {
	mux.Handle(method+" "+route, instrument(h.metrics, route, fn))
}

type scheduleRequest struct {
	StartDate     string  `json:"startDate"`
	DayOfWeek     *int    `json:"dayOfWeek"`
	NumberOfWeeks int     `json:"numberOfWeeks"`
	CourtIDs      []int64 `json:"courtIds"`
}

func (req scheduleRequest) config() (league.ScheduleConfig, error) {
	raw := strings.TrimSpace(req.StartDate)
	if raw == "" {
		return league.ScheduleConfig{}, fmt.Errorf("startDate is required")
	}
	start, err := time.Parse(dateLayout, raw)
	if err != nil {
		return league.ScheduleConfig{}, fmt.Errorf("startDate must be YYYY-MM-DD, got %q", raw)
	}
	if req.DayOfWeek == nil {
		return league.ScheduleConfig{}, fmt.Errorf("dayOfWeek is required")
	}

	cfg := league.ScheduleConfig{
		StartDate:     start,
		DayOfWeek:     time.Weekday(*req.DayOfWeek),
		NumberOfWeeks: req.NumberOfWeeks,
		CourtIDs:      req.CourtIDs,
	}
	if err := cfg.Validate(); err != nil {
		return league.ScheduleConfig{}, err
	}
	return cfg, nil
}

// POST /competitions/{id}/schedule
func (h *Handler) HandleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	competitionID, err := idFromPath(r)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "invalid competition ID"})
		return
	}

	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	cfg, err := req.config()
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	res, err := h.svc.GenerateSchedule(r.Context(), competitionID, cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info().
		Int64("competition_id", competitionID).
		Int("matches_created", res.MatchesCreated).
		Msg("Schedule created")
	writeJSON(w, r, http.StatusCreated, res)
}

type scoreRequest struct {
	HomeScore *int `json:"homeScore"`
	AwayScore *int `json:"awayScore"`
}

// PUT /matches/{id}/score
func (h *Handler) HandleRecordScore(w http.ResponseWriter, r *http.Request) {
	matchID, err := idFromPath(r)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "invalid match ID"})
		return
	}

	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if req.HomeScore == nil || req.AwayScore == nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "homeScore and awayScore are required"})
		return
	}

	m, err := h.svc.RecordScore(r.Context(), matchID, *req.HomeScore, *req.AwayScore)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

type matchesResponse struct {
	Competition *league.Competition `json:"competition"`
	Matches     []league.Match      `json:"matches"`
}

// GET /competitions/{id}/matches
func (h *Handler) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	competitionID, err := idFromPath(r)
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorBody{Error: "invalid competition ID"})
		return
	}

	comp, matches, err := h.svc.Matches(r.Context(), competitionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if matches == nil {
		matches = []league.Match{}
	}
	writeJSON(w, r, http.StatusOK, matchesResponse{Competition: comp, Matches: matches})
}

func idFromPath(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps the league error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, league.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, league.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, league.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, league.ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())
	status := statusFor(err)

	switch status {
	case http.StatusInternalServerError:
		logger.Error().Err(err).Msg("Request failed")
		writeJSON(w, r, status, errorBody{Error: "internal server error"})
		return
	case http.StatusServiceUnavailable:
		logger.Warn().Err(err).Msg("Store unavailable")
		w.Header().Set("Retry-After", "1")
	default:
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeJSON(w, r, status, errorBody{Error: league.Message(err)})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write response")
	}
}
