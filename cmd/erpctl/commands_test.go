package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/erp-automation/internal/auth"
)

// execute runs erpctl with args against apiURL and returns what it printed.
func execute(t *testing.T, apiURL string, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if stdin != nil {
		root.SetIn(stdin)
	}
	if apiURL != "" {
		args = append(args, "--url", apiURL)
	}
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestForceCancel(t *testing.T) {
	tests := []struct {
		name         string
		success      bool
		expectError  bool
		expectOutput string
	}{
		{name: "cancelled", success: true, expectOutput: "Meeting M-1 cancelled"},
		{name: "not cancelled", success: false, expectError: true, expectOutput: "Meeting M-1 cancelled"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/force-cancel" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if got := r.Header.Get("X-API-Key"); got != "operator-key" {
					t.Errorf("expected API key header, got %q", got)
				}
				var body map[string]string
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decode body: %v", err)
				}
				if body["doctype"] != "Meeting" || body["id"] != "M-1" {
					t.Errorf("unexpected body %v", body)
				}
				_ = json.NewEncoder(w).Encode(map[string]any{"success": tc.success, "message": "Meeting M-1 cancelled"})
			}))
			defer srv.Close()

			out, err := execute(t, srv.URL, nil, "force-cancel", "Meeting", "M-1", "--api-key", "operator-key")
			if (err != nil) != tc.expectError {
				t.Fatalf("expected error %v, got %v", tc.expectError, err)
			}
			if !strings.Contains(out, tc.expectOutput) {
				t.Fatalf("expected %q in output, got: %s", tc.expectOutput, out)
			}
		})
	}
}

func TestSchedulePreviewTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/schedules/sched-1/preview" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("count"); got != "2" {
			t.Errorf("expected count=2, got %q", got)
		}
		_ = json.NewEncoder(w).Encode([]previewRow{
			{Date: "2024-01-08", DayName: "Monday", TimeWindowPrimary: "10:00:00 - 11:00:00", TimeWindowSecondary: "11:00:00 - 12:00:00"},
			{Date: "2024-01-15", DayName: "Monday", TimeWindowPrimary: "10:00:00 - 11:00:00", TimeWindowSecondary: "11:00:00 - 12:00:00"},
		})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, nil, "schedule", "preview", "sched-1", "--count", "2")
	if err != nil {
		t.Fatalf("preview returned error: %v", err)
	}
	for _, want := range []string{"2024-01-08", "2024-01-15", "Monday", "11:00:00 - 12:00:00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestSchedulePreviewWritesCalendarFile(t *testing.T) {
	const feed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/schedules/sched-1/preview.ics" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = io.WriteString(w, feed)
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "preview.ics")
	if _, err := execute(t, srv.URL, nil, "schedule", "preview", "sched-1", "--ics", target); err != nil {
		t.Fatalf("preview returned error: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read calendar: %v", err)
	}
	if string(data) != feed {
		t.Fatalf("unexpected calendar contents %q", data)
	}
}

func TestScheduleCreateReportsFieldErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "validation failed",
			"errors":  map[string]string{"start_date": "must be YYYY-MM-DD", "time_to": "must be after time_from"},
		})
	}))
	defer srv.Close()

	_, err := execute(t, srv.URL, nil, "schedule", "create", "--name", "Weekly sync", "--start", "08/01/2024")
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"422", "validation failed", "start_date: must be YYYY-MM-DD", "time_to"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in error, got: %s", want, msg)
		}
	}
	if strings.Index(msg, "start_date") > strings.Index(msg, "time_to") {
		t.Fatalf("expected field errors sorted by name, got: %s", msg)
	}
}

func TestJobsRunUsesBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs/rollover-daily/run" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer signed" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if r.Header.Get("X-API-Key") != "" {
			t.Error("expected the token to take precedence over the API key")
		}
		_ = json.NewEncoder(w).Encode(jobRunView{Job: "rollover-daily", Outcome: "success", Rows: 3, DurationMS: 12})
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, nil, "jobs", "run", "rollover-daily", "--token", "signed", "--api-key", "ignored")
	if err != nil {
		t.Fatalf("jobs run returned error: %v", err)
	}
	if !strings.Contains(out, "rollover-daily") || !strings.Contains(out, "success") || !strings.Contains(out, "12ms") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestJobsRunFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(jobRunView{Job: "meetings-daily", Outcome: "error", Error: "store unavailable"})
	}))
	defer srv.Close()

	_, err := execute(t, srv.URL, nil, "jobs", "run", "meetings-daily")
	if err == nil || !strings.Contains(err.Error(), "store unavailable") {
		t.Fatalf("expected job error to be reported, got %v", err)
	}
}

func TestConflictsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "[]")
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, nil, "conflicts")
	if err != nil {
		t.Fatalf("conflicts returned error: %v", err)
	}
	if !strings.Contains(out, "No conflicts") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSketchAssignmentsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/sketches/SK-1/assignments" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"created":2}`)
	}))
	defer srv.Close()

	out, err := execute(t, srv.URL, nil, "sketch", "assignments", "SK-1")
	if err != nil {
		t.Fatalf("sketch assignments returned error: %v", err)
	}
	if !strings.Contains(out, "Assignments created: 2") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestHashKeyFromStdin(t *testing.T) {
	out, err := execute(t, "", strings.NewReader("operator-key\n"), "hash-key", "--memory", "8192", "--iterations", "1", "--parallelism", "1")
	if err != nil {
		t.Fatalf("hash-key returned error: %v", err)
	}
	hash := strings.TrimSpace(out)
	if err := auth.VerifyAPIKey(hash, "operator-key"); err != nil {
		t.Fatalf("printed hash does not verify: %v (%s)", err, hash)
	}
}

func TestToken(t *testing.T) {
	out, err := execute(t, "", nil, "token", "--secret", "test-secret", "--subject", "planner", "--admin")
	if err != nil {
		t.Fatalf("token returned error: %v", err)
	}
	claims, err := auth.NewTokenIssuer([]byte("test-secret"), nil).Parse(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.Subject != "planner" || !claims.Admin {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := execute(t, "", nil, "token", "--secret=", "--subject", "planner"); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}
