package events

import (
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
)

const DefaultFeedSize = 200

// Feed keeps the most recent events per outlet for the polling endpoint.
// Sequence numbers are assigned here, so a poller and a websocket client
// see the same Seq for the same fact.
type Feed struct {
	mu      sync.RWMutex
	streams map[snowflake.ID]*stream
	size    int
	seq     atomic.Uint64
}

type stream struct {
	mu     sync.Mutex
	buffer []Event
	// evicted is the highest Seq pushed out of buffer
	evicted uint64
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{
		streams: make(map[snowflake.ID]*stream),
		size:    size,
	}
}

// Append stamps ev with the next sequence number and stores it.
func (f *Feed) Append(ev Event) Event {
	if f == nil {
		return ev
	}
	ev.Seq = f.seq.Add(1)

	s := f.ensureStream(ev.OutletID)
	s.mu.Lock()
	s.buffer = append(s.buffer, ev)
	if len(s.buffer) > f.size {
		drop := len(s.buffer) - f.size
		s.evicted = s.buffer[drop-1].Seq
		s.buffer = append([]Event(nil), s.buffer[drop:]...)
	}
	s.mu.Unlock()
	return ev
}

// Since returns up to limit events for outletID with Seq > after, oldest
// first. truncated is true when events after the cursor were already
// evicted and the caller should do a full refresh.
func (f *Feed) Since(outletID snowflake.ID, after uint64, limit int) (items []Event, truncated bool) {
	if f == nil {
		return nil, false
	}
	if limit <= 0 || limit > f.size {
		limit = f.size
	}

	f.mu.RLock()
	s := f.streams[outletID]
	f.mu.RUnlock()
	if s == nil {
		return []Event{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	truncated = after < s.evicted

	items = make([]Event, 0, limit)
	for _, ev := range s.buffer {
		if ev.Seq <= after {
			continue
		}
		items = append(items, ev)
		if len(items) == limit {
			break
		}
	}
	return items, truncated
}

// LastSeq returns the most recently assigned sequence number.
func (f *Feed) LastSeq() uint64 {
	if f == nil {
		return 0
	}
	return f.seq.Load()
}

func (f *Feed) ensureStream(outletID snowflake.ID) *stream {
	f.mu.RLock()
	current := f.streams[outletID]
	f.mu.RUnlock()
	if current != nil {
		return current
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	current = f.streams[outletID]
	if current == nil {
		current = &stream{}
		f.streams[outletID] = current
	}
	return current
}
