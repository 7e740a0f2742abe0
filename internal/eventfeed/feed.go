package eventfeed

import (
	"strconv"
	"sync"
	"time"
)

// Record is one mirrored server or game event.
type Record struct {
	ID       string `json:"id"`
	Event    string `json:"event"`
	GameID   uint16 `json:"game_id,omitempty"`
	ServerTS int64  `json:"server_ts"`
	Data     any    `json:"data"`
}

// Seq is the record's position in the feed, or 0 for records that were
// never published, such as pings.
func (r Record) Seq() int64 {
	n, _ := strconv.ParseInt(r.ID, 10, 64)
	return n
}

// Event is what the feed accepts; game and server events satisfy it.
type Event interface {
	EventName() string
}

// Feed keeps the last max records for replay and fans new ones out to
// subscribers. Slow subscribers miss records instead of blocking publishers.
type Feed struct {
	mu       sync.Mutex
	nextID   int64
	max      int
	records  []Record
	watchers map[chan Record]struct{}
	closed   bool
	now      func() time.Time
}

func New(max int) *Feed {
	if max <= 0 {
		max = 500
	}
	return &Feed{
		max:      max,
		watchers: map[chan Record]struct{}{},
		now:      time.Now,
	}
}

func (f *Feed) Publish(gameID uint16, ev Event) Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return Record{}
	}
	f.nextID++
	rec := Record{
		ID:       strconv.FormatInt(f.nextID, 10),
		Event:    ev.EventName(),
		GameID:   gameID,
		ServerTS: f.now().UnixMilli(),
		Data:     ev,
	}
	f.records = append(f.records, rec)
	if len(f.records) > f.max {
		f.records = f.records[len(f.records)-f.max:]
	}
	for ch := range f.watchers {
		select {
		case ch <- rec:
		default:
		}
	}
	return rec
}

// ReplayAfter returns the retained records newer than lastID. An empty or
// unparsable id replays everything retained.
func (f *Feed) ReplayAfter(lastID string) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	last, err := strconv.ParseInt(lastID, 10, 64)
	if lastID == "" || err != nil {
		out := make([]Record, len(f.records))
		copy(out, f.records)
		return out
	}
	out := make([]Record, 0, len(f.records))
	for _, rec := range f.records {
		if rec.Seq() > last {
			out = append(out, rec)
		}
	}
	return out
}

func (f *Feed) Subscribe() chan Record {
	ch := make(chan Record, 64)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.watchers[ch] = struct{}{}
	return ch
}

func (f *Feed) Unsubscribe(ch chan Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.watchers[ch]; ok {
		delete(f.watchers, ch)
		close(ch)
	}
}

func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.watchers {
		close(ch)
		delete(f.watchers, ch)
	}
}
