package operator

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/bridge-relayer/pkg/app/errors"
	apphttp "github.com/chainsafe/bridge-relayer/pkg/app/http"
	"github.com/chainsafe/bridge-relayer/pkg/auth"
	"github.com/chainsafe/bridge-relayer/pkg/queue"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// FailRequest is the optional body of the fail action
type FailRequest struct {
	Reason string `json:"reason"`
}

// RegisterRoutes registers the operator endpoints on r. Rescue actions require an
// operator token validated by validator.
func RegisterRoutes(r chi.Router, service Service, validator *auth.JWTValidator, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Get("/stats", apphttp.HandleErrorWithLogger(h.stats, logger))
	r.Get("/jobs", apphttp.HandleErrorWithLogger(h.listJobs, logger))
	r.Get("/jobs/{id}", apphttp.HandleErrorWithLogger(h.getJob, logger))

	r.Group(func(r chi.Router) {
		r.Use(validator.RequireOperator)
		r.Post("/jobs/{id}/reverify", apphttp.HandleErrorWithLogger(h.reverify, logger))
		r.Post("/jobs/{id}/execute", apphttp.HandleErrorWithLogger(h.execute, logger))
		r.Post("/jobs/{id}/fail", apphttp.HandleErrorWithLogger(h.fail, logger))
	})
}

func (h *HTTP) stats(w http.ResponseWriter, r *http.Request) error {
	snap, err := h.service.Stats(r.Context())
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, snap)
	return nil
}

func (h *HTTP) listJobs(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	filter := queue.Filter{Status: queue.Status(q.Get("status"))}

	if d := q.Get("direction"); d != "" {
		dir, err := queue.ParseDirection(d)
		if err != nil {
			return apperrors.BadRequestError(err, "unknown direction "+d)
		}
		filter.Direction = dir
	}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil {
			return apperrors.BadRequestError(err, "limit must be an integer")
		}
		filter.Limit = limit
	}

	jobs, err := h.service.ListJobs(r.Context(), filter)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
	return nil
}

func (h *HTTP) getJob(w http.ResponseWriter, r *http.Request) error {
	job, err := h.service.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, job)
	return nil
}

func (h *HTTP) reverify(w http.ResponseWriter, r *http.Request) error {
	res, err := h.service.Reverify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (h *HTTP) execute(w http.ResponseWriter, r *http.Request) error {
	res, err := h.service.ForceExecute(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, res)
	return nil
}

func (h *HTTP) fail(w http.ResponseWriter, r *http.Request) error {
	var req FailRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return apperrors.BadRequestError(err, "invalid JSON")
		}
	}

	job, err := h.service.MarkFailed(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, job)
	return nil
}

