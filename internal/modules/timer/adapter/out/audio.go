package out

import (
	"context"
	"fmt"
	"io"
	"sync"

	timerout "timeblock/internal/modules/timer/port/out"
)

type Bell struct {
	mu sync.Mutex
	w  io.Writer
}

func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

func (b *Bell) Play(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := io.WriteString(b.w, "\a"); err != nil {
		return fmt.Errorf("ring bell: %w", err)
	}
	return nil
}

type Silent struct{}

func (Silent) Play(context.Context) error { return nil }

func NewAudioCue(kind string, w io.Writer) timerout.AudioCue {
	if kind == "none" || w == nil {
		return Silent{}
	}
	return NewBell(w)
}
