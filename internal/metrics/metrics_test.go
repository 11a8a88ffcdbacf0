package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/api/schedules/{id}", "200"))
	RecordRequest("GET", "/api/schedules/{id}", 200, 0.01)
	after := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/api/schedules/{id}", "200"))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}

	RecordRequest("GET", "", 404, 0.01)
	if got := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "unmatched", "404")); got < 1 {
		t.Fatalf("expected unmatched route label, got %v", got)
	}
}

func TestRecordJob(t *testing.T) {
	before := testutil.ToFloat64(JobRowsTouched.WithLabelValues("rollover-daily"))
	RecordJob("rollover-daily", "success", 0.2, 3)
	RecordJob("rollover-daily", "success", 0.2, 0)
	if got := testutil.ToFloat64(JobRowsTouched.WithLabelValues("rollover-daily")) - before; got != 3 {
		t.Fatalf("expected 3 rows recorded, got %v", got)
	}
	if got := testutil.ToFloat64(JobRunsTotal.WithLabelValues("rollover-daily", "success")); got < 2 {
		t.Fatalf("expected at least 2 runs recorded, got %v", got)
	}
}

func TestAddMeetingsCreated(t *testing.T) {
	before := testutil.ToFloat64(MeetingsCreated.WithLabelValues("Weekly"))
	AddMeetingsCreated("Weekly", 2)
	AddMeetingsCreated("Weekly", 0)
	if got := testutil.ToFloat64(MeetingsCreated.WithLabelValues("Weekly")) - before; got != 2 {
		t.Fatalf("expected 2 meetings recorded, got %v", got)
	}
}
