package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/erp-automation/internal/application"
)

type cancelService interface {
	ForceCancel(ctx context.Context, principal application.Principal, doctype, id string) (application.ForceCancelResult, error)
}

type conflictService interface {
	Run(ctx context.Context) ([]application.MeetingConflict, error)
}

// DocumentHandler exposes administrative document operations.
type DocumentHandler struct {
	cancel    cancelService
	conflicts conflictService
	responder responder
	logger    *slog.Logger
}

func NewDocumentHandler(cancel cancelService, conflicts conflictService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		cancel:    cancel,
		conflicts: conflicts,
		responder: newResponder(logger),
		logger:    defaultLogger(logger),
	}
}

// ForceCancel answers 200 with {success, message} for every outcome the
// canceller reports, including unsupported types and missing documents.
func (h *DocumentHandler) ForceCancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.cancel == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req forceCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.cancel.ForceCancel(r.Context(), principal, strings.TrimSpace(req.DocType), strings.TrimSpace(req.ID))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "document", "force_cancel", "doctype", req.DocType, "document_id", req.ID).
		InfoContext(r.Context(), "force cancel handled", "success", result.Success, "message", result.Message)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, forceCancelResponse{Success: result.Success, Message: result.Message})
}

// Conflicts lists overlapping planned meetings.
func (h *DocumentHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.conflicts == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	found, err := h.conflicts.Run(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]meetingConflictDTO, 0, len(found))
	for _, c := range found {
		payload = append(payload, meetingConflictDTO{
			MeetingID:      c.MeetingID,
			WithMeetingID:  c.WithMeetingID,
			Date:           c.Date.Format(dateLayout),
			Type:           c.Type,
			Participant:    c.Participant,
			Venue:          c.Venue,
			PrimaryWindow:  c.PrimaryWindow.From + " - " + c.PrimaryWindow.To,
			ConflictWindow: c.ConflictWindow.From + " - " + c.ConflictWindow.To,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

type forceCancelRequest struct {
	DocType string `json:"doctype"`
	ID      string `json:"id"`
}

type forceCancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type meetingConflictDTO struct {
	MeetingID      string `json:"meeting_id"`
	WithMeetingID  string `json:"conflicts_with"`
	Date           string `json:"date"`
	Type           string `json:"type"`
	Participant    string `json:"participant,omitempty"`
	Venue          string `json:"venue,omitempty"`
	PrimaryWindow  string `json:"primary_window"`
	ConflictWindow string `json:"conflict_window"`
}
