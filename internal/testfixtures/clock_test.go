package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
	if clock.Now().Weekday() != time.Monday {
		t.Fatalf("reference time must be a Monday, got %v", clock.Now().Weekday())
	}
}

func TestClockAdvance(t *testing.T) {
	start := time.Date(2024, time.January, 31, 9, 30, 0, 0, time.UTC)
	clock := NewClock(start)

	if got := clock.Advance(90 * time.Minute); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("Advance returned %v", got)
	}
	clock.Set(start)
	if got := clock.AdvanceDays(1); !got.Equal(time.Date(2024, time.February, 1, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("AdvanceDays returned %v", got)
	}
	if got := clock.Today(); !got.Equal(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Today returned %v", got)
	}
}

func TestClockNowFunc(t *testing.T) {
	clock := NewClock(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	nowFn := clock.NowFunc()

	clock.Advance(time.Minute)
	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("expected NowFunc to follow the clock, got %v", got)
	}

	var nilClock *Clock
	if nilClock.NowFunc() == nil {
		t.Fatal("nil clock must fall back to time.Now")
	}
}
