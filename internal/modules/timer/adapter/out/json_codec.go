package out

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"timeblock/internal/modules/timer/domain"
	timerout "timeblock/internal/modules/timer/port/out"
	apperrors "timeblock/internal/platform/errors"
)

type JSONCodec struct{}

var (
	_ timerout.ActivityExporter = JSONCodec{}
	_ timerout.ActivityImporter = JSONCodec{}
)

func NewJSONCodec() JSONCodec { return JSONCodec{} }

func (JSONCodec) Format() string { return "json" }

type jsonDocument struct {
	Scope         string            `json:"scope"`
	SchemaVersion int               `json:"schemaVersion"`
	ExportedAt    time.Time         `json:"exportedAt"`
	Activities    []domain.Activity `json:"activities"`
}

func (JSONCodec) Export(_ context.Context, scope string, activities []domain.Activity, now time.Time) ([]byte, error) {
	doc := jsonDocument{
		Scope:         scope,
		SchemaVersion: domain.SchemaVersion,
		ExportedAt:    now.UTC(),
		Activities:    domain.SortBoard(activities),
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal activities: %w", err)
	}
	return append(raw, '\n'), nil
}

// legacyActivity accepts the loose shapes found in document-store exports:
// timestamps as RFC 3339 strings, epoch milliseconds, or
// {seconds, nanoseconds} objects.
type legacyActivity struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	InitialDuration int       `json:"initialDuration"`
	Duration        int       `json:"duration"`
	EndTime         timestamp `json:"endTime"`
	IsRunning       bool      `json:"isRunning"`
	IsCompleted     bool      `json:"isCompleted"`
	Order           int       `json:"order"`
	TimeSpent       int       `json:"timeSpent"`
	CreatedAt       timestamp `json:"createdAt"`
}

// Import reads either an exported document or a bare array of activities.
func (JSONCodec) Import(_ context.Context, payload []byte) ([]domain.Activity, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty import payload: %w", apperrors.ErrInvalidInput)
	}
	var records []legacyActivity
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode activity list: %w: %w", apperrors.ErrInvalidInput, err)
		}
	} else {
		var doc struct {
			Activities []legacyActivity `json:"activities"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decode activity document: %w: %w", apperrors.ErrInvalidInput, err)
		}
		records = doc.Activities
	}

	out := make([]domain.Activity, 0, len(records))
	for _, r := range records {
		a := domain.Activity{
			ID:              strings.TrimSpace(r.ID),
			Title:           strings.TrimSpace(r.Title),
			InitialDuration: r.InitialDuration,
			Duration:        r.Duration,
			IsRunning:       r.IsRunning,
			IsCompleted:     r.IsCompleted,
			Order:           r.Order,
			TimeSpent:       r.TimeSpent,
		}
		if a.InitialDuration == 0 {
			a.InitialDuration = a.Duration
		}
		if r.CreatedAt.set {
			a.CreatedAt = r.CreatedAt.t
		}
		if a.IsRunning && r.EndTime.set {
			end := r.EndTime.t
			a.EndTime = &end
		} else {
			a.IsRunning = false
		}
		if a.IsCompleted {
			a.Duration = 0
		}
		out = append(out, a)
	}
	return out, nil
}

type timestamp struct {
	t   time.Time
	set bool
}

func (ts *timestamp) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		ts.t, ts.set = t.UTC(), true
	case '{':
		var obj struct {
			Seconds      *int64 `json:"seconds"`
			Nanoseconds  int64  `json:"nanoseconds"`
			USeconds     *int64 `json:"_seconds"`
			UNanoseconds int64  `json:"_nanoseconds"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return err
		}
		switch {
		case obj.Seconds != nil:
			ts.t, ts.set = time.Unix(*obj.Seconds, obj.Nanoseconds).UTC(), true
		case obj.USeconds != nil:
			ts.t, ts.set = time.Unix(*obj.USeconds, obj.UNanoseconds).UTC(), true
		}
	default:
		var ms int64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return fmt.Errorf("parse timestamp %s: %w", raw, err)
		}
		ts.t, ts.set = time.UnixMilli(ms).UTC(), true
	}
	return nil
}
