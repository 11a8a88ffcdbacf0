package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/erp-automation/internal/auth"
	"github.com/example/erp-automation/internal/jobs"
	"github.com/example/erp-automation/internal/persistence"
	"github.com/example/erp-automation/internal/persistence/memory"
	"github.com/example/erp-automation/internal/testfixtures"
)

const testAPIKey = "ops-key"

type apiHarness struct {
	handler http.Handler
	store   *memory.Storage
	factory *testfixtures.ServiceFactory
	tokens  *auth.TokenIssuer
	tmpl    persistence.Template
	sched   persistence.Schedule
	eng     testfixtures.EngineeringSet
	task    persistence.Task
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	factory := testfixtures.NewServiceFactory(testfixtures.WithLogger(quietLogger()))
	store := testfixtures.NewMemoryStore()

	tmpl := testfixtures.NewTemplate()
	sched := testfixtures.NewSchedule(tmpl.ID)
	eng := testfixtures.NewEngineeringSet("CAD", "senior", "junior-a", "junior-b")
	task := testfixtures.NewTask(persistence.TaskDaily, testfixtures.ReferenceTime())
	seed := testfixtures.Seed{
		Templates: []persistence.Template{tmpl},
		Schedules: []persistence.Schedule{sched},
		Tasks:     []persistence.Task{task},
	}
	seed.Add(eng)
	seed.Apply(t, store)

	hash, err := auth.HashAPIKey(testAPIKey, auth.Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("HashAPIKey returned error: %v", err)
	}
	tokens := auth.NewTokenIssuer([]byte("test-secret"), factory.Clock.NowFunc())

	runner := jobs.NewRunner(time.UTC, time.Minute, quietLogger())
	if err := runner.Register(jobs.Job{
		Name: "rollover-daily",
		Spec: "@daily",
		Run:  factory.NewTaskRollover(store).RolloverDaily,
	}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	handler := NewRouter(RouterConfig{
		Schedules:   NewScheduleHandler(factory.NewMeetingScheduler(store), quietLogger()),
		Engineering: NewEngineeringHandler(factory.NewEngineeringCascade(store), quietLogger()),
		Documents:   NewDocumentHandler(factory.NewDocumentCanceller(store), factory.NewConflictChecker(store), quietLogger()),
		Jobs:        NewJobsHandler(runner, quietLogger()),
		Auth:        &auth.Authenticator{Tokens: tokens, APIKeyHash: hash, KeySubject: "Administrator"},
		Logger:      quietLogger(),
	})

	return &apiHarness{
		handler: handler,
		store:   store,
		factory: factory,
		tokens:  tokens,
		tmpl:    tmpl,
		sched:   sched,
		eng:     eng,
		task:    task,
	}
}

// do sends a request as caller: "admin" uses the API key, "" sends no
// credentials and any other name gets a non-admin token.
func (h *apiHarness) do(t *testing.T, caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	switch caller {
	case "":
	case "admin":
		req.Header.Set("X-API-Key", testAPIKey)
	default:
		token, err := h.tokens.Issue(caller, false, time.Hour)
		if err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndAuthBoundary(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)

	if rec := h.do(t, "", http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected /healthz 200, got %d", rec.Code)
	}
	if rec := h.do(t, "", http.MethodGet, "/metrics", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected /metrics 200, got %d", rec.Code)
	}
	if rec := h.do(t, "", http.MethodGet, "/api/schedules/"+h.sched.ID, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/schedules/"+h.sched.ID, nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong key, got %d", rec.Code)
	}
}

func TestHealthReportsUnavailableStore(t *testing.T) {
	t.Parallel()

	handler := NewRouter(RouterConfig{
		Logger: quietLogger(),
		Health: func(context.Context) error { return errors.New("database is locked") },
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestScheduleHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create returns the stored schedule", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		rec := h.do(t, "planner", http.MethodPost, "/api/schedules", map[string]any{
			"name":        "Ops review",
			"frequency":   "Monthly",
			"start_date":  "2024-01-31",
			"template_id": h.tmpl.ID,
			"time_from":   "09:00",
			"time_to":     "09:30",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		dto := decode[scheduleDTO](t, rec)
		if dto.Frequency != "Monthly" || dto.NextRunDate == nil || *dto.NextRunDate != "2024-01-31" {
			t.Fatalf("unexpected schedule %+v", dto)
		}
		if dto.TimeFrom != "09:00:00" || !dto.IsEnabled {
			t.Fatalf("expected normalized window and enabled flag, got %+v", dto)
		}
	})

	t.Run("validation errors answer 422 with field map", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		rec := h.do(t, "planner", http.MethodPost, "/api/schedules", map[string]any{
			"name":        "Bad",
			"frequency":   "Weekly",
			"start_date":  "31/01/2024",
			"template_id": h.tmpl.ID,
			"time_from":   "10:00",
			"time_to":     "11:00",
		})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		body := decode[errorResponse](t, rec)
		if _, ok := body.Errors["start_date"]; !ok {
			t.Fatalf("expected start_date error, got %v", body.Errors)
		}
	})

	t.Run("malformed body answers 400", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		req := httptest.NewRequest(http.MethodPost, "/api/schedules", strings.NewReader("{"))
		req.Header.Set("X-API-Key", testAPIKey)
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown schedule maps to 404", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		if rec := h.do(t, "planner", http.MethodGet, "/api/schedules/missing", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("preview lists upcoming occurrences", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		rec := h.do(t, "planner", http.MethodGet, "/api/schedules/"+h.sched.ID+"/preview?count=2", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		entries := decode[[]previewEntryDTO](t, rec)
		if len(entries) != 2 || entries[0].Date != "2024-01-08" || entries[1].Date != "2024-01-15" {
			t.Fatalf("unexpected preview %+v", entries)
		}
		if entries[0].TimeWindowSecondary != "11:00:00 - 12:00:00" {
			t.Fatalf("unexpected secondary window %q", entries[0].TimeWindowSecondary)
		}

		if rec := h.do(t, "planner", http.MethodGet, "/api/schedules/"+h.sched.ID+"/preview?count=zero", nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for a bad count, got %d", rec.Code)
		}
	})

	t.Run("preview.ics serves a calendar feed", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		rec := h.do(t, "planner", http.MethodGet, "/api/schedules/"+h.sched.ID+"/preview.ics?count=3", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
			t.Fatalf("unexpected content type %q", ct)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "BEGIN:VCALENDAR") || strings.Count(body, "BEGIN:VEVENT") != 3 {
			t.Fatalf("unexpected calendar body:\n%s", body)
		}
	})

	t.Run("test meeting is recorded on the ledger", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		rec := h.do(t, "planner", http.MethodPost, "/api/schedules/"+h.sched.ID+"/test-meeting", nil)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
		}
		meetingID := decode[testMeetingResponse](t, rec).MeetingID
		if meetingID == "" {
			t.Fatal("expected a meeting id")
		}

		rec = h.do(t, "planner", http.MethodGet, "/api/schedules/"+h.sched.ID, nil)
		dto := decode[scheduleDTO](t, rec)
		if len(dto.CreatedMeetings) != 1 || dto.CreatedMeetings[0].Status != string(persistence.LedgerTest) {
			t.Fatalf("unexpected ledger %+v", dto.CreatedMeetings)
		}
		if dto.CreatedMeetings[0].MeetingID != meetingID {
			t.Fatalf("ledger references %q, want %q", dto.CreatedMeetings[0].MeetingID, meetingID)
		}
	})
}

func TestForceCancelHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		caller         string
		doctype        string
		id             func(h *apiHarness) string
		expectedStatus int
		expected       forceCancelResponse
	}{
		{
			name:           "non admin is forbidden",
			caller:         "planner",
			doctype:        "Task",
			id:             func(h *apiHarness) string { return h.task.ID },
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "cancels a task",
			caller:         "admin",
			doctype:        "Task",
			id:             func(h *apiHarness) string { return h.task.ID },
			expectedStatus: http.StatusOK,
			expected:       forceCancelResponse{Success: true, Message: "document cancelled"},
		},
		{
			name:           "unsupported doctype",
			caller:         "admin",
			doctype:        "Invoice",
			id:             func(*apiHarness) string { return "INV-1" },
			expectedStatus: http.StatusOK,
			expected:       forceCancelResponse{Success: false, Message: "unsupported doctype"},
		},
		{
			name:           "missing document",
			caller:         "admin",
			doctype:        "Engineering Task",
			id:             func(*apiHarness) string { return "nope" },
			expectedStatus: http.StatusOK,
			expected:       forceCancelResponse{Success: false, Message: "not found"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newAPIHarness(t)

			rec := h.do(t, tc.caller, http.MethodPost, "/api/force-cancel", map[string]string{"doctype": tc.doctype, "id": tc.id(h)})
			if rec.Code != tc.expectedStatus {
				t.Fatalf("expected %d, got %d (%s)", tc.expectedStatus, rec.Code, rec.Body.String())
			}
			if tc.expectedStatus != http.StatusOK {
				return
			}
			if got := decode[forceCancelResponse](t, rec); got != tc.expected {
				t.Fatalf("got %+v, want %+v", got, tc.expected)
			}
		})
	}

	t.Run("missing id answers 400", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)
		if rec := h.do(t, "admin", http.MethodPost, "/api/force-cancel", map[string]string{"doctype": "Task"}); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestEngineeringHandlers(t *testing.T) {
	t.Parallel()

	t.Run("completing every task completes the requirement row", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		for _, task := range h.eng.Tasks {
			rec := h.do(t, "junior", http.MethodPut, "/api/engineering-tasks/"+task.ID+"/status", map[string]string{"status": "Completed"})
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
			}
			dto := decode[engineeringTaskDTO](t, rec)
			if dto.Status != "Completed" || dto.ActualHours == nil {
				t.Fatalf("expected completed task with actual hours, got %+v", dto)
			}
		}

		sketch, err := h.store.GetSketch(context.Background(), h.eng.Sketch.ID)
		if err != nil {
			t.Fatalf("GetSketch returned error: %v", err)
		}
		if sketch.Requirements[0].Status != persistence.StatusCompleted {
			t.Fatalf("expected row Completed, got %s", sketch.Requirements[0].Status)
		}
	})

	t.Run("invalid status answers 422", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		rec := h.do(t, "junior", http.MethodPut, "/api/engineering-tasks/"+h.eng.Tasks[0].ID+"/status", map[string]string{"status": "Done-ish"})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
		}
	})

	t.Run("saving a sketch creates assignments once", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		body := map[string]any{
			"title": "Gearbox",
			"requirements": []map[string]any{
				{"item": "FEA", "engineer": "senior-2", "status": "Required", "end_date": "2024-02-01"},
				{"item": "Drawings", "engineer": "senior-3", "status": "Pending"},
			},
		}
		rec := h.do(t, "lead", http.MethodPut, "/api/sketches/sketch-new", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		resp := decode[sketchResponse](t, rec)
		if resp.AssignmentsCreated != 1 || len(resp.Sketch.Requirements) != 2 {
			t.Fatalf("unexpected response %+v", resp)
		}

		rec = h.do(t, "lead", http.MethodPost, "/api/sketches/sketch-new/assignments", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := decode[countResponse](t, rec); got.Created == nil || *got.Created != 0 {
			t.Fatalf("expected no new assignments, got %+v", got)
		}

		msgs := h.factory.Notifier.Messages()
		if len(msgs) != 1 || msgs[0].From != "lead" || msgs[0].To != "senior-2" {
			t.Fatalf("unexpected notifications %+v", msgs)
		}
	})

	t.Run("refresh reports updated rows", func(t *testing.T) {
		t.Parallel()
		h := newAPIHarness(t)

		rec := h.do(t, "lead", http.MethodPost, "/api/sketches/"+h.eng.Sketch.ID+"/refresh-statuses", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := decode[countResponse](t, rec); got.Updated == nil || *got.Updated != 0 {
			t.Fatalf("expected 0 updated rows, got %+v", got)
		}

		if rec := h.do(t, "lead", http.MethodPost, "/api/sketches/missing/refresh-statuses", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for an unknown sketch, got %d", rec.Code)
		}
	})
}

func TestJobsHandler(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)

	if rec := h.do(t, "planner", http.MethodPost, "/api/jobs/rollover-daily/run", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non admin, got %d", rec.Code)
	}
	if rec := h.do(t, "admin", http.MethodPost, "/api/jobs/rollover-yearly/run", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown job, got %d", rec.Code)
	}

	rec := h.do(t, "admin", http.MethodPost, "/api/jobs/rollover-daily/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	resp := decode[jobRunResponse](t, rec)
	if resp.Outcome != jobs.OutcomeSuccess || resp.Rows != 1 {
		t.Fatalf("unexpected job result %+v", resp)
	}

	task, err := h.store.GetTask(context.Background(), h.task.ID)
	if err != nil {
		t.Fatalf("GetTask returned error: %v", err)
	}
	if task.Status != persistence.StatusOpen {
		t.Fatalf("expected task reopened, got %s", task.Status)
	}
}

func TestConflictsHandler(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)

	day := testfixtures.Date(2024, 1, 9)
	for _, m := range []persistence.Meeting{
		{ID: "m-1", Subject: "A", Venue: "Room A", Date: day, Status: persistence.StatusPlanned, Primary: persistence.TimeWindow{From: "10:00:00", To: "11:00:00"}},
		{ID: "m-2", Subject: "B", Venue: "Room A", Date: day, Status: persistence.StatusPlanned, Primary: persistence.TimeWindow{From: "10:30:00", To: "11:30:00"}},
	} {
		if err := h.store.CreateMeeting(context.Background(), m); err != nil {
			t.Fatalf("CreateMeeting returned error: %v", err)
		}
	}

	rec := h.do(t, "planner", http.MethodGet, "/api/meetings/conflicts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	found := decode[[]meetingConflictDTO](t, rec)
	if len(found) != 1 || found[0].Venue != "Room A" || found[0].Date != "2024-01-09" {
		t.Fatalf("unexpected conflicts %+v", found)
	}
}
