package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/erp-automation/internal/application"
	"github.com/example/erp-automation/internal/persistence"
)

type engineeringService interface {
	SaveSketch(ctx context.Context, principal application.Principal, sketch persistence.Sketch) (persistence.Sketch, int, error)
	CreateEngineeringAssignments(ctx context.Context, principal application.Principal, sketchID string) (int, error)
	RefreshRequirementStatuses(ctx context.Context, sketchID string) (int, error)
	UpdateEngineeringTaskStatus(ctx context.Context, principal application.Principal, taskID string, status persistence.Status) (persistence.EngineeringTask, error)
}

// EngineeringHandler serves sketches, assignments and engineering tasks.
type EngineeringHandler struct {
	service   engineeringService
	responder responder
	logger    *slog.Logger
}

func NewEngineeringHandler(service engineeringService, logger *slog.Logger) *EngineeringHandler {
	return &EngineeringHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

// SaveSketch stores the sketch named in the path and creates assignments
// for its Required rows.
func (h *EngineeringHandler) SaveSketch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req sketchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	sketch, vErr := req.toSketch(id)
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	saved, created, err := h.service.SaveSketch(r.Context(), principal, sketch)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, sketchResponse{
		Sketch:             toSketchDTO(saved),
		AssignmentsCreated: created,
	})
}

func (h *EngineeringHandler) CreateAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	created, err := h.service.CreateEngineeringAssignments(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, countResponse{Created: &created})
}

func (h *EngineeringHandler) RefreshStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	updated, err := h.service.RefreshRequirementStatuses(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, countResponse{Updated: &updated})
}

func (h *EngineeringHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	task, err := h.service.UpdateEngineeringTaskStatus(r.Context(), principal, id, persistence.Status(strings.TrimSpace(req.Status)))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "engineering", "update_task_status", "task_id", id).
		InfoContext(r.Context(), "engineering task status saved", "status", task.Status)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEngineeringTaskDTO(task))
}

func (h *EngineeringHandler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return "", false
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return "", false
	}
	return id, true
}

type sketchRequest struct {
	Title        string                  `json:"title"`
	Requirements []requirementRowPayload `json:"requirements"`
}

type requirementRowPayload struct {
	ID          string  `json:"id,omitempty"`
	Item        string  `json:"item"`
	Engineer    string  `json:"engineer"`
	Status      string  `json:"status"`
	Description string  `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
}

func (req sketchRequest) toSketch(id string) (persistence.Sketch, *application.ValidationError) {
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}
	sketch := persistence.Sketch{ID: id, Title: req.Title}
	for i, row := range req.Requirements {
		start, ok := parseDate(row.StartDate)
		if !ok {
			vErr.FieldErrors["requirements["+strconv.Itoa(i)+"].start_date"] = "must be a YYYY-MM-DD date"
		}
		end, ok := parseDate(row.EndDate)
		if !ok {
			vErr.FieldErrors["requirements["+strconv.Itoa(i)+"].end_date"] = "must be a YYYY-MM-DD date"
		}
		sketch.Requirements = append(sketch.Requirements, persistence.RequirementRow{
			ID:          row.ID,
			Item:        row.Item,
			Engineer:    row.Engineer,
			Status:      persistence.Status(row.Status),
			Description: row.Description,
			StartDate:   start,
			EndDate:     end,
		})
	}
	return sketch, vErr
}

type sketchDTO struct {
	ID           string                  `json:"id"`
	Title        string                  `json:"title"`
	Requirements []requirementRowPayload `json:"requirements"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

type sketchResponse struct {
	Sketch             sketchDTO `json:"sketch"`
	AssignmentsCreated int       `json:"assignments_created"`
}

type countResponse struct {
	Created *int `json:"created,omitempty"`
	Updated *int `json:"updated,omitempty"`
}

type engineeringTaskDTO struct {
	ID              string     `json:"id"`
	AssignmentID    string     `json:"assignment_id"`
	SketchID        string     `json:"sketch_id,omitempty"`
	JuniorEngineer  string     `json:"junior_engineer"`
	RequirementItem string     `json:"requirement_item"`
	Status          string     `json:"status"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	EstimatedHours  *float64   `json:"estimated_hours,omitempty"`
	ActualHours     *float64   `json:"actual_hours,omitempty"`
}

func toSketchDTO(s persistence.Sketch) sketchDTO {
	dto := sketchDTO{
		ID:           s.ID,
		Title:        s.Title,
		Requirements: make([]requirementRowPayload, 0, len(s.Requirements)),
		UpdatedAt:    s.UpdatedAt,
	}
	for _, row := range s.Requirements {
		dto.Requirements = append(dto.Requirements, requirementRowPayload{
			ID:          row.ID,
			Item:        row.Item,
			Engineer:    row.Engineer,
			Status:      string(row.Status),
			Description: row.Description,
			StartDate:   formatDate(row.StartDate),
			EndDate:     formatDate(row.EndDate),
		})
	}
	return dto
}

func toEngineeringTaskDTO(t persistence.EngineeringTask) engineeringTaskDTO {
	return engineeringTaskDTO{
		ID:              t.ID,
		AssignmentID:    t.AssignmentID,
		SketchID:        t.SketchID,
		JuniorEngineer:  t.JuniorEngineer,
		RequirementItem: t.RequirementItem,
		Status:          string(t.Status),
		StartDate:       t.StartDate,
		EndDate:         t.EndDate,
		EstimatedHours:  t.EstimatedHours,
		ActualHours:     t.ActualHours,
	}
}
