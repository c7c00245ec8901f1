package dto

import "time"

type AddInput struct {
	Title   string
	Hours   int
	Minutes int
	Seconds int
}

// EditInput changes the title and/or the planned duration. Duration parts
// left nil count as zero; all nil leaves the duration alone.
type EditInput struct {
	ID      string
	Title   *string
	Hours   *int
	Minutes *int
	Seconds *int
}

type MoveInput struct {
	ID      string
	To      string
	ToIndex int
}

type ActivityOutput struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Partition       string     `json:"partition"`
	Order           int        `json:"order"`
	InitialDuration int        `json:"initialDuration"`
	Remaining       int        `json:"remaining"`
	TimeSpent       int        `json:"timeSpent"`
	IsRunning       bool       `json:"isRunning"`
	IsCompleted     bool       `json:"isCompleted"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	EstimatedFinish *time.Time `json:"estimatedFinish,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type Board struct {
	Activities      []ActivityOutput
	Session         string
	Running         bool
	Permission      string
	Now             time.Time
	Loaded          bool
	LoadError       string
	LastError       string
	Version         uint64
	RemainingTotal  int
	ProjectedFinish *time.Time
}

func (b Board) Active() []ActivityOutput {
	out := []ActivityOutput{}
	for _, a := range b.Activities {
		if !a.IsCompleted {
			out = append(out, a)
		}
	}
	return out
}

func (b Board) Completed() []ActivityOutput {
	out := []ActivityOutput{}
	for _, a := range b.Activities {
		if a.IsCompleted {
			out = append(out, a)
		}
	}
	return out
}

type ExportInput struct {
	Format string
}

type ExportOutput struct {
	Format  string
	Payload []byte
}

type ImportInput struct {
	Payload []byte
}

type ImportOutput struct {
	Imported int
}

// RunInput drives the headless loop. CatchUp fires when the process resumes
// from suspension.
type RunInput struct {
	TickInterval time.Duration
	CatchUp      <-chan struct{}
}
