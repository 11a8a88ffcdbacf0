package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/erp-automation/internal/application"
	"github.com/example/erp-automation/internal/persistence"
)

const dateLayout = "2006-01-02"

type scheduleService interface {
	CreateSchedule(ctx context.Context, principal application.Principal, input application.ScheduleInput) (persistence.Schedule, error)
	GetSchedule(ctx context.Context, id string) (persistence.Schedule, error)
	CreateTestMeeting(ctx context.Context, principal application.Principal, scheduleID string) (string, error)
	PreviewNextMeetings(ctx context.Context, scheduleID string, count int) ([]application.PreviewEntry, error)
	WritePreviewCalendar(ctx context.Context, w io.Writer, scheduleID string, count int) error
}

type ScheduleHandler struct {
	service   scheduleService
	responder responder
	logger    *slog.Logger
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger), logger: defaultLogger(logger)}
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, vErr := req.toInput()
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	schedule, err := h.service.CreateSchedule(r.Context(), principal, input)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toScheduleDTO(schedule))
}

func (h *ScheduleHandler) CreateTestMeeting(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	meetingID, err := h.service.CreateTestMeeting(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "schedule", "create_test_meeting", "schedule_id", id).
		InfoContext(r.Context(), "test meeting created", "meeting_id", meetingID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, testMeetingResponse{MeetingID: meetingID})
}

func (h *ScheduleHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}
	count, ok := h.previewCount(w, r)
	if !ok {
		return
	}

	entries, err := h.service.PreviewNextMeetings(r.Context(), id, count)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]previewEntryDTO, 0, len(entries))
	for _, e := range entries {
		payload = append(payload, previewEntryDTO{
			Date:                e.Date.Format(dateLayout),
			DayName:             e.DayName,
			TimeWindowPrimary:   e.TimeWindowPrimary,
			TimeWindowSecondary: e.TimeWindowSecondary,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// PreviewCalendar renders the preview as text/calendar. The feed is buffered
// so a failure can still be reported as JSON.
func (h *ScheduleHandler) PreviewCalendar(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scheduleID(w, r)
	if !ok {
		return
	}
	count, ok := h.previewCount(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.WritePreviewCalendar(r.Context(), &buf, id, count); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		handlerLogger(r.Context(), h.logger, "schedule", "preview_calendar").
			WarnContext(r.Context(), "failed to write calendar", "error", err)
	}
}

func (h *ScheduleHandler) scheduleID(w http.ResponseWriter, r *http.Request) (string, bool) {
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

// previewCount reads ?count=; zero means the service default.
func (h *ScheduleHandler) previewCount(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("count"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCount)
		return 0, false
	}
	return n, true
}

type scheduleRequest struct {
	Name       string  `json:"name"`
	Frequency  string  `json:"frequency"`
	StartDate  string  `json:"start_date"`
	EndDate    *string `json:"end_date"`
	TemplateID string  `json:"template_id"`
	TimeFrom   string  `json:"time_from"`
	TimeTo     string  `json:"time_to"`
	IsEnabled  *bool   `json:"is_enabled"`
}

func (req scheduleRequest) toInput() (application.ScheduleInput, *application.ValidationError) {
	input := application.ScheduleInput{
		Name:       req.Name,
		Frequency:  req.Frequency,
		TemplateID: req.TemplateID,
		TimeFrom:   req.TimeFrom,
		TimeTo:     req.TimeTo,
		IsEnabled:  req.IsEnabled,
	}
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}

	if s := strings.TrimSpace(req.StartDate); s != "" {
		start, err := time.Parse(dateLayout, s)
		if err != nil {
			vErr.FieldErrors["start_date"] = "must be a YYYY-MM-DD date"
		} else {
			input.StartDate = start
		}
	}
	end, ok := parseDate(req.EndDate)
	if !ok {
		vErr.FieldErrors["end_date"] = "must be a YYYY-MM-DD date"
	}
	input.EndDate = end
	return input, vErr
}

type scheduleDTO struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Frequency       string              `json:"frequency"`
	StartDate       string              `json:"start_date"`
	EndDate         *string             `json:"end_date,omitempty"`
	NextRunDate     *string             `json:"next_run_date,omitempty"`
	LastRunDate     *string             `json:"last_run_date,omitempty"`
	IsEnabled       bool                `json:"is_enabled"`
	TemplateID      string              `json:"template_id"`
	TimeFrom        string              `json:"time_from"`
	TimeTo          string              `json:"time_to"`
	TotalCreated    int                 `json:"total_meetings_created"`
	CreatedMeetings []createdMeetingDTO `json:"created_meetings"`
}

type createdMeetingDTO struct {
	MeetingID string    `json:"meeting_id"`
	Date      string    `json:"meeting_date"`
	CreatedAt time.Time `json:"created_on"`
	Status    string    `json:"status"`
}

type previewEntryDTO struct {
	Date                string `json:"date"`
	DayName             string `json:"day_name"`
	TimeWindowPrimary   string `json:"time_window_primary"`
	TimeWindowSecondary string `json:"time_window_secondary"`
}

type testMeetingResponse struct {
	MeetingID string `json:"meeting_id"`
}

func toScheduleDTO(s persistence.Schedule) scheduleDTO {
	dto := scheduleDTO{
		ID:              s.ID,
		Name:            s.Name,
		Frequency:       s.Frequency.String(),
		StartDate:       s.StartDate.Format(dateLayout),
		EndDate:         formatDate(s.EndDate),
		NextRunDate:     formatDate(s.NextRunDate),
		LastRunDate:     formatDate(s.LastRunDate),
		IsEnabled:       s.IsEnabled,
		TemplateID:      s.TemplateID,
		TimeFrom:        s.TimeFrom,
		TimeTo:          s.TimeTo,
		TotalCreated:    s.TotalCreated,
		CreatedMeetings: make([]createdMeetingDTO, 0, len(s.CreatedMeetings)),
	}
	for _, cm := range s.CreatedMeetings {
		dto.CreatedMeetings = append(dto.CreatedMeetings, createdMeetingDTO{
			MeetingID: cm.MeetingID,
			Date:      cm.Date.Format(dateLayout),
			CreatedAt: cm.CreatedAt,
			Status:    string(cm.Status),
		})
	}
	return dto
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func parseDate(s *string) (*time.Time, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*s))
	if err != nil {
		return nil, false
	}
	return &t, true
}
