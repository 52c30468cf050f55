package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/telhawk-systems/loginwatch/internal/httputil"
	"github.com/telhawk-systems/loginwatch/internal/logging"
	"github.com/telhawk-systems/loginwatch/internal/models"
	"github.com/telhawk-systems/loginwatch/internal/notification"
	"github.com/telhawk-systems/loginwatch/internal/ratelimit"
	"github.com/telhawk-systems/loginwatch/internal/repository"
	"github.com/telhawk-systems/loginwatch/internal/service"
	"github.com/telhawk-systems/loginwatch/internal/validator"
)

const maxBodyBytes = 10 << 20 // 10 MB

// Handler serves the HTTP API.
type Handler struct {
	ingest   *service.IngestService
	query    *service.QueryService
	repo     repository.Repository
	limiter  ratelimit.RateLimiter
	reporter notification.Channel
	logger   *logging.Logger
}

func New(ingest *service.IngestService, query *service.QueryService, repo repository.Repository, limiter ratelimit.RateLimiter, reporter notification.Channel, logger *logging.Logger) *Handler {
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	return &Handler{
		ingest:   ingest,
		query:    query,
		repo:     repo,
		limiter:  limiter,
		reporter: reporter,
		logger:   logger,
	}
}

// IngestEvents handles POST /api/events.
func (h *Handler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	allowed, err := h.limiter.Allow(ctx, getClientIP(r))
	if err != nil {
		h.logger.ErrorContext(ctx, "rate limiter unavailable", logging.Error(err))
	} else if !allowed {
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, err := h.ingest.Ingest(ctx, req.Events)
	if err != nil {
		h.writeIngestError(w, r, count, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.IngestResponse{Count: count})
}

func (h *Handler) writeIngestError(w http.ResponseWriter, r *http.Request, count int, err error) {
	ctx := r.Context()

	var verr *validator.Error
	if errors.As(err, &verr) {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error": verr.Error(),
			"index": verr.Index,
			"field": verr.Field,
		})
		return
	}

	var perr *service.PartialBatchError
	if errors.As(err, &perr) {
		status := http.StatusInternalServerError
		if perr.Retryable() {
			status = http.StatusServiceUnavailable
		}
		h.logger.ErrorContext(ctx, "batch partially committed",
			logging.Count(perr.Committed),
			logging.Error(err))
		httputil.WriteJSON(w, status, map[string]any{
			"error":     "batch failed after partial commit",
			"committed": perr.Committed,
			"retryable": perr.Retryable(),
		})
		return
	}

	h.logger.ErrorContext(ctx, "ingest failed", logging.Error(err))
	httputil.WriteError(w, http.StatusInternalServerError, "internal error")
}

// ListEvents handles GET /api/events with optional filters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serveEvents(w, r, filter)
}

// ListEventsByComputer handles GET /api/events/computer/{name}.
func (h *Handler) ListEventsByComputer(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.ComputerName = r.PathValue("name")
	h.serveEvents(w, r, filter)
}

// ListEventsByIP handles GET /api/events/ip/{ip}.
func (h *Handler) ListEventsByIP(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.IPAddress = r.PathValue("ip")
	h.serveEvents(w, r, filter)
}

// ListEventsByType handles GET /api/events/type/{type}.
func (h *Handler) ListEventsByType(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.EventType = r.PathValue("type")
	h.serveEvents(w, r, filter)
}

// ListEventsByRange handles GET /api/events/range?start=&end=.
// Both bounds are required and inclusive.
func (h *Handler) ListEventsByRange(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		httputil.WriteError(w, http.StatusBadRequest, "start and end are required")
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.serveEvents(w, r, filter)
}

func (h *Handler) serveEvents(w http.ResponseWriter, r *http.Request, filter models.EventFilter) {
	events, err := h.query.ListEvents(r.Context(), filter)
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

// ListIdentities handles GET /api/identities.
func (h *Handler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	ids, err := h.query.ListIdentities(r.Context())
	if err != nil {
		h.writeStorageError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ids)
}

// GetIdentity handles GET /api/identities/{name}.
func (h *Handler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := h.query.GetIdentity(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "identity not found")
			return
		}
		h.writeStorageError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, id)
}

// SetIdentityStatus handles PUT /api/identities/{name}/status.
func (h *Handler) SetIdentityStatus(w http.ResponseWriter, r *http.Request) {
	var req models.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.query.SetIdentityStatus(r.Context(), r.PathValue("name"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrIdentityNotFound):
			httputil.WriteError(w, http.StatusNotFound, "identity not found")
		default:
			h.writeStorageError(w, r, err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, id)
}

// TriggerReport handles POST /api/reports. Delivery runs in the background;
// the response only acknowledges the request.
func (h *Handler) TriggerReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind     string `json:"kind"`
		Lookback string `json:"lookback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lookback := 24 * time.Hour
	if req.Lookback != "" {
		d, err := time.ParseDuration(req.Lookback)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid lookback duration")
			return
		}
		lookback = d
	}

	switch req.Kind {
	case notification.KindSuspiciousActivity, notification.KindCriticalAlert:
	default:
		httputil.WriteError(w, http.StatusBadRequest, "unknown report kind")
		return
	}

	go h.deliverReport(req.Kind, lookback)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) deliverReport(kind string, lookback time.Duration) {
	// Detached from the request: delivery must survive the 202 response.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	since := time.Now().UTC().Add(-lookback)
	filter := models.EventFilter{Start: &since}
	if kind == notification.KindCriticalAlert {
		filter.Status = models.EventStatusFailure
	}

	events, err := h.query.ListEvents(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "report query failed", logging.Error(err))
		return
	}

	var report *notification.Report
	if kind == notification.KindCriticalAlert {
		report, err = notification.CriticalSecurityAlert(events)
	} else {
		report, err = notification.SuspiciousActivitySummary(events)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "report render failed", logging.Error(err))
		return
	}

	if err := h.reporter.Send(ctx, report); err != nil {
		h.logger.ErrorContext(ctx, "report delivery failed", logging.Error(err))
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz; it fails while storage is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "storage error", logging.Error(err))
	if errors.Is(err, repository.ErrUnavailable) {
		httputil.WriteError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	httputil.WriteError(w, http.StatusInternalServerError, "internal error")
}

func parseFilter(r *http.Request) (models.EventFilter, error) {
	q := r.URL.Query()
	filter := models.EventFilter{
		ComputerName: q.Get("computer_name"),
		IPAddress:    q.Get("ip_address"),
		EventType:    q.Get("event_type"),
		Status:       q.Get("status"),
	}

	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("start must be an RFC 3339 timestamp")
		}
		filter.Start = &t
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("end must be an RFC 3339 timestamp")
		}
		filter.End = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
