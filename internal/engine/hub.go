package engine

import (
	"sync"
	"time"
)

// Notice kinds.
const (
	NoticeInitialized = "initialized"
	NoticeEvent       = "event"
	NoticeSkipped     = "skipped"
	NoticeImage       = "image"
	NoticeReport      = "report"
	NoticeStory       = "story"
)

// recentNotices is how many notices a new subscriber can catch up on.
const recentNotices = 50

// Notice tells stream subscribers that the world changed.
type Notice struct {
	Kind     string    `json:"kind"`
	WorldID  string    `json:"world_id"`
	Year     int       `json:"year"`
	Index    int       `json:"index"`
	Headline string    `json:"headline,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// hub fans notices out to subscribers. Slow subscribers miss notices
// rather than stall a tick.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Notice
	recent []Notice
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Notice)}
}

func (h *hub) subscribe() (int, <-chan Notice) {
	id, _, ch := h.subscribeWithBacklog()
	return id, ch
}

// subscribeWithBacklog registers and snapshots the backlog under one lock,
// so no notice lands in both.
func (h *hub) subscribeWithBacklog() (int, []Notice, <-chan Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan Notice, 16)
	h.subs[h.nextID] = ch
	return h.nextID, append([]Notice(nil), h.recent...), ch
}

func (h *hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

func (h *hub) publish(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.recent = append(h.recent, n)
	if len(h.recent) > recentNotices {
		h.recent = h.recent[len(h.recent)-recentNotices:]
	}
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
