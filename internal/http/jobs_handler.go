package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/erp-automation/internal/application"
	"github.com/example/erp-automation/internal/jobs"
)

type jobRunner interface {
	RunNow(ctx context.Context, name string) (jobs.Result, error)
}

// JobsHandler triggers scheduled jobs on demand. Only administrators may run jobs.
type JobsHandler struct {
	runner    jobRunner
	responder responder
	logger    *slog.Logger
}

func NewJobsHandler(runner jobRunner, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{runner: runner, responder: newResponder(logger), logger: defaultLogger(logger)}
}

func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.runner == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingJobName)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())
	if !principal.IsAdmin {
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthorized)
		return
	}

	result, err := h.runner.RunNow(r.Context(), name)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := jobRunResponse{
		Job:        result.Job,
		Outcome:    result.Outcome,
		Rows:       result.Rows,
		DurationMS: result.Duration.Milliseconds(),
	}
	status := http.StatusOK
	if result.Err != nil {
		resp.Error = result.Err.Error()
		resp.ErrorKind = application.ErrorKind(result.Err)
		status = http.StatusInternalServerError
		if errors.Is(result.Err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
	}

	handlerLogger(r.Context(), h.logger, "jobs", "run", "job", name, "principal", principal.UserID).
		InfoContext(r.Context(), "job run on demand", "outcome", result.Outcome, "rows", result.Rows)
	h.responder.writeJSON(r.Context(), w, status, resp)
}

type jobRunResponse struct {
	Job        string `json:"job"`
	Outcome    string `json:"outcome"`
	Rows       int    `json:"rows"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
}
