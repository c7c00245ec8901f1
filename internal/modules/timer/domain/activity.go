package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "timeblock/internal/platform/errors"
)

const SchemaVersion = 1

// Activity is one timed block. JSON names match the persisted document
// fields so existing exports load unchanged.
type Activity struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	InitialDuration int        `json:"initialDuration"`
	Duration        int        `json:"duration"`
	EndTime         *time.Time `json:"endTime"`
	IsRunning       bool       `json:"isRunning"`
	IsCompleted     bool       `json:"isCompleted"`
	Order           int        `json:"order"`
	TimeSpent       int        `json:"timeSpent"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// RemainingTime is the only authoritative remaining-seconds derivation.
// A running record without an endTime falls back to its paused duration.
func RemainingTime(a Activity, now time.Time) int {
	if a.IsCompleted {
		return 0
	}
	if a.IsRunning && a.EndTime != nil {
		ms := a.EndTime.Sub(now).Milliseconds()
		if ms <= 0 {
			return 0
		}
		return int(math.Round(float64(ms) / 1000))
	}
	if a.Duration < 0 {
		return 0
	}
	return a.Duration
}

func (a Activity) Partition() Partition {
	if a.IsCompleted {
		return PartitionCompleted
	}
	return PartitionActive
}

func (a Activity) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("activity id is required: %w", apperrors.ErrInvalidInput)
	}
	if a.InitialDuration < 1 {
		return fmt.Errorf("activity %s: initial duration must be at least 1s: %w", a.ID, apperrors.ErrInvalidInput)
	}
	if a.Duration < 0 || a.TimeSpent < 0 || a.Order < 0 {
		return fmt.Errorf("activity %s: negative counters: %w", a.ID, apperrors.ErrInvalidInput)
	}
	if a.IsRunning && (a.EndTime == nil || a.IsCompleted) {
		return fmt.Errorf("activity %s: running without endTime or while completed: %w", a.ID, apperrors.ErrInvalidInput)
	}
	if a.IsCompleted && a.Duration != 0 {
		return fmt.Errorf("activity %s: completed with remaining duration: %w", a.ID, apperrors.ErrInvalidInput)
	}
	return nil
}

func NewActivity(id, title string, seconds, order int, now time.Time) (Activity, error) {
	title, err := ValidateTitle(title)
	if err != nil {
		return Activity{}, err
	}
	if err := ValidateDuration(seconds); err != nil {
		return Activity{}, err
	}
	return Activity{
		ID:              id,
		Title:           title,
		InitialDuration: seconds,
		Duration:        seconds,
		Order:           order,
		CreatedAt:       now,
	}, nil
}

func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("title is required: %w", apperrors.ErrInvalidInput)
	}
	return title, nil
}

func ValidateDuration(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("please set a duration greater than zero: %w", apperrors.ErrInvalidInput)
	}
	return nil
}

// TotalSeconds folds an hours/minutes/seconds form into seconds. Negative
// parts are rejected instead of silently cancelling each other out.
func TotalSeconds(hours, minutes, seconds int) (int, error) {
	if hours < 0 || minutes < 0 || seconds < 0 {
		return 0, fmt.Errorf("duration parts must not be negative: %w", apperrors.ErrInvalidInput)
	}
	return hours*3600 + minutes*60 + seconds, nil
}

func FormatClock(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseSpan reads a duration written as a Go duration ("1h30m", "90s") or
// as a clock ("HH:MM:SS", "MM:SS"). A bare number is seconds. Sub-second
// parts are dropped.
func ParseSpan(input string) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, fmt.Errorf("duration is required: %w", apperrors.ErrInvalidInput)
	}
	if strings.Contains(input, ":") {
		parts := strings.Split(input, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("invalid clock %q: %w", input, apperrors.ErrInvalidInput)
		}
		total := 0
		for _, part := range parts {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid clock %q: %w", input, apperrors.ErrInvalidInput)
			}
			total = total*60 + n
		}
		return total, nil
	}
	if n, err := strconv.Atoi(input); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("duration must not be negative: %w", apperrors.ErrInvalidInput)
		}
		return n, nil
	}
	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", input, apperrors.ErrInvalidInput)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %w", apperrors.ErrInvalidInput)
	}
	return int(d / time.Second), nil
}
