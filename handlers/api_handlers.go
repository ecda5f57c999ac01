package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"reminder-mailer/database"
	"reminder-mailer/metrics"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// QueueStore is the storage the API reads and writes.
type QueueStore interface {
	Ping(ctx context.Context) error
	Create(ctx context.Context, in database.NewEmail) (*database.QueuedEmail, error)
	Get(ctx context.Context, id string) (*database.QueuedEmail, error)
	List(ctx context.Context, status string, limit int) ([]*database.QueuedEmail, error)
	StatusDistribution(ctx context.Context) (map[string]int, error)
}

// API serves the queue over HTTP.
type API struct {
	store QueueStore
	log   *zap.SugaredLogger
}

// NewAPI creates a new API instance
func NewAPI(store QueueStore, log *zap.SugaredLogger) *API {
	return &API{store: store, log: log}
}

// NewRouter wires every route of the service.
func NewRouter(a *API) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/queue", a.EnqueueHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/queue", a.ListEmailsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/queue/{id}", a.GetEmailHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.HealthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.MetricsHandler()).Methods(http.MethodGet)
	return r
}

// EnqueueHandler creates a queued email record. Field validation is left to
// the processor, which records problems on the record itself.
func (a *API) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	var req database.NewEmail
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.errorResponse(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	rec, err := a.store.Create(r.Context(), req)
	if err != nil {
		a.log.Errorw("Error enqueueing email", "error", err)
		a.errorResponse(w, "Internal server error enqueueing email", http.StatusInternalServerError)
		return
	}

	a.log.Infow("Email queued", "id", rec.ID)
	a.successResponse(w, http.StatusCreated, "Email queued", rec)
}

// GetEmailHandler returns one record with its current status.
func (a *API) GetEmailHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := a.store.Get(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		a.errorResponse(w, "Email not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.log.Errorw("Error loading email", "id", id, "error", err)
		a.errorResponse(w, "Internal server error fetching email", http.StatusInternalServerError)
		return
	}
	a.successResponse(w, http.StatusOK, "Email retrieved successfully", rec)
}

// ListEmailsHandler returns the most recent records, newest first.
func (a *API) ListEmailsHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", database.StatusPending, database.StatusSent, database.StatusError:
	default:
		a.errorResponse(w, "Invalid status. Use pending, sent or error.", http.StatusBadRequest)
		return
	}

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			a.errorResponse(w, "Invalid limit. Use a positive integer.", http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxListLimit)
	}

	recs, err := a.store.List(r.Context(), status, limit)
	if err != nil {
		a.log.Errorw("Error querying emails", "error", err)
		a.errorResponse(w, "Internal server error fetching emails", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []*database.QueuedEmail{}
	}
	a.successResponse(w, http.StatusOK, "Emails retrieved successfully", recs)
}

// StatsHandler returns the number of records per status.
func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := a.store.StatusDistribution(r.Context())
	if err != nil {
		a.log.Errorw("Error fetching email stats", "error", err)
		a.errorResponse(w, "Internal server error fetching email stats", http.StatusInternalServerError)
		return
	}
	a.successResponse(w, http.StatusOK, "Email status distribution retrieved", counts)
}

// HealthHandler reports whether the database is reachable.
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		a.log.Warnw("Health check failed", "error", err)
		a.errorResponse(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}
	a.successResponse(w, http.StatusOK, "ok", nil)
}
