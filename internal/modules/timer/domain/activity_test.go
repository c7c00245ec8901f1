package domain_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"timeblock/internal/modules/timer/domain"
	apperrors "timeblock/internal/platform/errors"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	v := t0.Add(d)
	return &v
}

func TestRemainingTime(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a    domain.Activity
		now  time.Time
		want int
	}{
		{"paused uses duration", domain.Activity{Duration: 42, InitialDuration: 60}, t0, 42},
		{"running counts down to endTime", domain.Activity{IsRunning: true, EndTime: at(7 * time.Second), Duration: 60}, t0, 7},
		{"rounds half up", domain.Activity{IsRunning: true, EndTime: at(2500 * time.Millisecond)}, t0, 3},
		{"rounds down below half", domain.Activity{IsRunning: true, EndTime: at(2499 * time.Millisecond)}, t0, 2},
		{"expired clamps at zero", domain.Activity{IsRunning: true, EndTime: at(-90 * time.Second)}, t0, 0},
		{"exactly at endTime", domain.Activity{IsRunning: true, EndTime: at(0)}, t0, 0},
		{"completed is zero", domain.Activity{IsCompleted: true, Duration: 5}, t0, 0},
		{"negative duration clamps", domain.Activity{Duration: -3}, t0, 0},
		{"running without endTime falls back", domain.Activity{IsRunning: true, Duration: 9}, t0, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := domain.RemainingTime(tc.a, tc.now); got != tc.want {
				t.Fatalf("RemainingTime = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRemainingTimeNeverNegative(t *testing.T) {
	t.Parallel()
	a := domain.Activity{IsRunning: true, EndTime: at(3 * time.Second), InitialDuration: 3}
	for step := 0; step < 20; step++ {
		now := t0.Add(time.Duration(step) * 700 * time.Millisecond)
		if got := domain.RemainingTime(a, now); got < 0 {
			t.Fatalf("remaining at step %d = %d", step, got)
		}
	}
}

func TestNewActivityValidation(t *testing.T) {
	t.Parallel()
	a, err := domain.NewActivity("a1", "  Deep work  ", 1500, 2, t0)
	if err != nil {
		t.Fatalf("new activity: %v", err)
	}
	if a.Title != "Deep work" || a.Duration != 1500 || a.InitialDuration != 1500 || a.Order != 2 || a.EndTime != nil || a.IsRunning {
		t.Fatalf("unexpected activity: %+v", a)
	}
	if !a.CreatedAt.Equal(t0) {
		t.Fatalf("createdAt = %v", a.CreatedAt)
	}

	if _, err := domain.NewActivity("a2", "   ", 10, 0, t0); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("blank title error = %v", err)
	}
	_, err = domain.NewActivity("a3", "Read", 0, 0, t0)
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("zero duration error = %v", err)
	}
	if !strings.Contains(err.Error(), "please set a duration greater than zero") {
		t.Fatalf("zero duration message = %q", err.Error())
	}
}

func TestTotalSeconds(t *testing.T) {
	t.Parallel()
	got, err := domain.TotalSeconds(1, 30, 15)
	if err != nil || got != 5415 {
		t.Fatalf("TotalSeconds = %d, %v", got, err)
	}
	if _, err := domain.TotalSeconds(1, -61, 0); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("negative part error = %v", err)
	}
}

func TestFormatClock(t *testing.T) {
	t.Parallel()
	for in, want := range map[int]string{0: "00:00:00", 59: "00:00:59", 3661: "01:01:01", -5: "00:00:00", 360000: "100:00:00"} {
		if got := domain.FormatClock(in); got != want {
			t.Fatalf("FormatClock(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSpan(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]int{"25m": 1500, "1h30m": 5400, "90s": 90, "1:02:03": 3723, "05:00": 300, "42": 42} {
		got, err := domain.ParseSpan(in)
		if err != nil || got != want {
			t.Fatalf("ParseSpan(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "abc", "1:2:3:4", "-5m", "1:-2"} {
		if _, err := domain.ParseSpan(bad); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("ParseSpan(%q) error = %v", bad, err)
		}
	}
}

func TestActivityValidate(t *testing.T) {
	t.Parallel()
	ok := domain.Activity{ID: "a", InitialDuration: 10, Duration: 10}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid activity: %v", err)
	}
	bad := []domain.Activity{
		{InitialDuration: 10},
		{ID: "a", InitialDuration: 0},
		{ID: "a", InitialDuration: 10, IsRunning: true},
		{ID: "a", InitialDuration: 10, IsCompleted: true, Duration: 4},
		{ID: "a", InitialDuration: 10, Order: -1},
	}
	for i, a := range bad {
		if err := a.Validate(); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("case %d: error = %v", i, err)
		}
	}
}
