package hub

import (
	"sort"
	"sync"

	"patchpilot/backend/global"
)

// Notifier wakes long-polls of the given devices.
type Notifier interface {
	Notify(deviceIDs ...string)
}

// Hub tracks devices parked in a long-poll and wakes them when work arrives.
type Hub struct {
	mu   sync.RWMutex
	byID map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub { return &Hub{byID: make(map[string]map[chan struct{}]struct{})} }

// Wait registers a waiter for deviceID. The returned channel receives at most
// one value; release must be called once the caller stops waiting.
func (h *Hub) Wait(deviceID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	set, ok := h.byID[deviceID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.byID[deviceID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	release := func() {
		h.mu.Lock()
		if set, ok := h.byID[deviceID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.byID, deviceID)
			}
		}
		h.mu.Unlock()
	}
	return ch, release
}

// Notify implements Notifier for a single process.
func (h *Hub) Notify(deviceIDs ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range deviceIDs {
		n := 0
		for ch := range h.byID[id] {
			select {
			case ch <- struct{}{}:
			default:
			}
			n++
		}
		global.Logger.Debug().Str("device_id", id).Int("waiters", n).Msg("hub notify")
	}
}

func (h *Hub) IsOnline(deviceID string) bool {
	h.mu.RLock()
	_, ok := h.byID[deviceID]
	h.mu.RUnlock()
	return ok
}

// OnlineDevices lists devices currently holding a long-poll.
func (h *Hub) OnlineDevices() []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.byID))
	for id := range h.byID {
		out = append(out, id)
	}
	h.mu.RUnlock()
	sort.Strings(out)
	return out
}
