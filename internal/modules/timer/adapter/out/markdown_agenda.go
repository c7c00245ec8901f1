package out

import (
	"context"
	"fmt"
	"strings"
	"time"

	"timeblock/internal/modules/timer/domain"
	timerout "timeblock/internal/modules/timer/port/out"
	"timeblock/internal/platform/markdown"
	"timeblock/internal/platform/slug"
)

type MarkdownAgenda struct{}

var _ timerout.ActivityExporter = MarkdownAgenda{}

func NewMarkdownAgenda() MarkdownAgenda { return MarkdownAgenda{} }

func (MarkdownAgenda) Format() string { return "markdown" }

type agendaMeta struct {
	Type            string `yaml:"type"`
	Scope           string `yaml:"scope"`
	Slug            string `yaml:"slug"`
	GeneratedAt     string `yaml:"generated_at"`
	Active          int    `yaml:"active"`
	Completed       int    `yaml:"completed"`
	RemainingTotal  string `yaml:"remaining_total"`
	ProjectedFinish string `yaml:"projected_finish,omitempty"`
}

func (MarkdownAgenda) Export(_ context.Context, scope string, activities []domain.Activity, now time.Time) ([]byte, error) {
	active := domain.SortPartition(activities, domain.PartitionActive)
	completed := domain.SortPartition(activities, domain.PartitionCompleted)
	projections := domain.Estimate(activities, now)
	byID := domain.ProjectionsByID(projections)

	total := 0
	for _, p := range projections {
		total += p.Remaining
	}
	meta := agendaMeta{
		Type:           "agenda",
		Scope:          scope,
		Slug:           slug.Make(scope, "agenda"),
		GeneratedAt:    now.UTC().Format(time.RFC3339),
		Active:         len(active),
		Completed:      len(completed),
		RemainingTotal: domain.FormatClock(total),
	}
	if len(projections) > 0 {
		meta.ProjectedFinish = projections[len(projections)-1].FinishAt.UTC().Format(time.RFC3339)
	}

	b := strings.Builder{}
	b.WriteString("# Agenda\n\n## Active\n\n")
	if len(active) == 0 {
		b.WriteString("_Nothing planned._\n")
	}
	for _, a := range active {
		marker := ""
		if a.IsRunning {
			marker = " (running)"
		}
		p := byID[a.ID]
		fmt.Fprintf(&b, "- [ ] %s%s: %s left, done by %s\n", a.Title, marker, domain.FormatClock(p.Remaining), p.FinishAt.Local().Format("15:04"))
	}
	b.WriteString("\n## Completed\n\n")
	if len(completed) == 0 {
		b.WriteString("_Nothing completed yet._\n")
	}
	for _, a := range completed {
		fmt.Fprintf(&b, "- [x] %s: %s spent\n", a.Title, domain.FormatClock(a.TimeSpent))
	}

	rendered, err := markdown.Render(meta, b.String())
	if err != nil {
		return nil, fmt.Errorf("render agenda: %w", err)
	}
	return []byte(rendered), nil
}
