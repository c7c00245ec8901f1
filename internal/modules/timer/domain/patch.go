package domain

import "time"

// Patch is a partial update. Nil fields are left untouched; ClearEndTime
// wins over EndTime.
type Patch struct {
	Title           *string
	InitialDuration *int
	Duration        *int
	EndTime         *time.Time
	ClearEndTime    bool
	IsRunning       *bool
	IsCompleted     *bool
	Order           *int
	TimeSpent       *int
}

type Change struct {
	ID    string
	Patch Patch
}

func Ptr[T any](v T) *T { return &v }

func (p Patch) Empty() bool {
	return p.Title == nil && p.InitialDuration == nil && p.Duration == nil && p.EndTime == nil &&
		!p.ClearEndTime && p.IsRunning == nil && p.IsCompleted == nil && p.Order == nil && p.TimeSpent == nil
}

func (p Patch) Apply(a Activity) Activity {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.InitialDuration != nil {
		a.InitialDuration = *p.InitialDuration
	}
	if p.Duration != nil {
		a.Duration = *p.Duration
	}
	if p.ClearEndTime {
		a.EndTime = nil
	} else if p.EndTime != nil {
		t := *p.EndTime
		a.EndTime = &t
	}
	if p.IsRunning != nil {
		a.IsRunning = *p.IsRunning
	}
	if p.IsCompleted != nil {
		a.IsCompleted = *p.IsCompleted
	}
	if p.Order != nil {
		a.Order = *p.Order
	}
	if p.TimeSpent != nil {
		a.TimeSpent = *p.TimeSpent
	}
	return a
}

// Covers reports whether a already carries every field p sets. Timestamps
// compare at millisecond precision, the resolution stores persist.
func (p Patch) Covers(a Activity) bool {
	if p.Title != nil && a.Title != *p.Title {
		return false
	}
	if p.InitialDuration != nil && a.InitialDuration != *p.InitialDuration {
		return false
	}
	if p.Duration != nil && a.Duration != *p.Duration {
		return false
	}
	if p.ClearEndTime && a.EndTime != nil {
		return false
	}
	if !p.ClearEndTime && p.EndTime != nil {
		if a.EndTime == nil || !a.EndTime.Truncate(time.Millisecond).Equal(p.EndTime.Truncate(time.Millisecond)) {
			return false
		}
	}
	if p.IsRunning != nil && a.IsRunning != *p.IsRunning {
		return false
	}
	if p.IsCompleted != nil && a.IsCompleted != *p.IsCompleted {
		return false
	}
	if p.Order != nil && a.Order != *p.Order {
		return false
	}
	if p.TimeSpent != nil && a.TimeSpent != *p.TimeSpent {
		return false
	}
	return true
}

func (p Patch) Merge(next Patch) Patch {
	out := p
	if next.Title != nil {
		out.Title = next.Title
	}
	if next.InitialDuration != nil {
		out.InitialDuration = next.InitialDuration
	}
	if next.Duration != nil {
		out.Duration = next.Duration
	}
	if next.ClearEndTime {
		out.ClearEndTime = true
		out.EndTime = nil
	} else if next.EndTime != nil {
		out.ClearEndTime = false
		out.EndTime = next.EndTime
	}
	if next.IsRunning != nil {
		out.IsRunning = next.IsRunning
	}
	if next.IsCompleted != nil {
		out.IsCompleted = next.IsCompleted
	}
	if next.Order != nil {
		out.Order = next.Order
	}
	if next.TimeSpent != nil {
		out.TimeSpent = next.TimeSpent
	}
	return out
}

func ApplyChanges(list []Activity, changes []Change) []Activity {
	out := make([]Activity, len(list))
	copy(out, list)
	index := make(map[string]int, len(out))
	for i, a := range out {
		index[a.ID] = i
	}
	for _, c := range changes {
		if i, ok := index[c.ID]; ok {
			out[i] = c.Patch.Apply(out[i])
		}
	}
	return out
}

func CoalesceChanges(changes []Change) []Change {
	out := make([]Change, 0, len(changes))
	index := map[string]int{}
	for _, c := range changes {
		if i, ok := index[c.ID]; ok {
			out[i].Patch = out[i].Patch.Merge(c.Patch)
			continue
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}
