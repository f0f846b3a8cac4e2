package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(fixedTime)

	if !clock.Now().Equal(fixedTime) {
		t.Errorf("got %v, want %v", clock.Now(), fixedTime)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(time.Time{})
	clock.Set(start)
	clock.Advance(time.Hour)

	want := start.Add(time.Hour)
	if !clock.Now().Equal(want) {
		t.Errorf("got %v, want %v", clock.Now(), want)
	}
}

func TestMockClock_Since(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	past := now.Add(-5 * time.Minute)

	if d := clock.Since(past); d != 5*time.Minute {
		t.Errorf("got %v, want 5m", d)
	}
}

func TestMockClock_SleepRecorded(t *testing.T) {
	clock := NewMockClock(time.Now())
	clock.Sleep(33 * time.Millisecond)
	clock.Sleep(2 * time.Millisecond)
	sleeps := clock.Sleeps()

	if len(sleeps) != 2 {
		t.Fatalf("got %d sleeps, want 2", len(sleeps))
	}
	if sleeps[0] != 33*time.Millisecond {
		t.Errorf("first sleep: got %v, want 33ms", sleeps[0])
	}
	if sleeps[1] != 2*time.Millisecond {
		t.Errorf("second sleep: got %v, want 2ms", sleeps[1])
	}
}
