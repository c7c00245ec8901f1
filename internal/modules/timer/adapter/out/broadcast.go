package out

import (
	"sync"

	timerout "timeblock/internal/modules/timer/port/out"
)

// hub fans snapshots out per scope. Each subscriber holds at most one
// undelivered snapshot; a newer one replaces it so writers never block.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan timerout.Snapshot
}

func newHub() *hub {
	return &hub{subs: map[string]map[int]chan timerout.Snapshot{}}
}

func (h *hub) add(scope string) (int, <-chan timerout.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	ch := make(chan timerout.Snapshot, 1)
	if h.subs[scope] == nil {
		h.subs[scope] = map[int]chan timerout.Snapshot{}
	}
	h.subs[scope][h.next] = ch
	return h.next, ch
}

func (h *hub) remove(scope string, key int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[scope][key]; ok {
		delete(h.subs[scope], key)
		close(ch)
	}
}

func (h *hub) publish(scope string, snap timerout.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[scope] {
		offer(ch, snap)
	}
}

func (h *hub) publishTo(scope string, key int, snap timerout.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[scope][key]; ok {
		offer(ch, snap)
	}
}

func (h *hub) has(scope string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[scope]) > 0
}

func offer(ch chan timerout.Snapshot, snap timerout.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
