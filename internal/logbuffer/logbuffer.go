// Package logbuffer keeps the most recent structured log lines in memory so
// operators can inspect pipeline activity without shell access.
package logbuffer

import (
	"encoding/json"
	"sync"
	"time"
)

// Entry is one captured log line
type Entry struct {
	Time    time.Time              `json:"time"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Buffer is a capped FIFO of log entries. It implements io.Writer so it can
// sit next to stdout in a zerolog.MultiLevelWriter.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// New creates a buffer holding at most size entries
func New(size int) *Buffer {
	if size <= 0 {
		size = 1000
	}
	return &Buffer{entries: make([]Entry, size)}
}

// Write parses one zerolog JSON line. Lines that are not JSON are kept as the
// raw message.
func (b *Buffer) Write(p []byte) (int, error) {
	entry := Entry{Time: time.Now().UTC()}

	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		entry.Message = string(p)
	} else {
		if v, ok := fields["level"].(string); ok {
			entry.Level = v
			delete(fields, "level")
		}
		if v, ok := fields["message"].(string); ok {
			entry.Message = v
			delete(fields, "message")
		}
		if v, ok := fields["time"].(float64); ok {
			entry.Time = time.Unix(int64(v), 0).UTC()
			delete(fields, "time")
		}
		if len(fields) > 0 {
			entry.Fields = fields
		}
	}

	b.Add(entry)
	return len(p), nil
}

// Add appends an entry, evicting the oldest one when the buffer is full
func (b *Buffer) Add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = entry
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Entries returns the retained entries, oldest first
func (b *Buffer) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.full {
		out := make([]Entry, b.next)
		copy(out, b.entries[:b.next])
		return out
	}

	out := make([]Entry, 0, len(b.entries))
	out = append(out, b.entries[b.next:]...)
	out = append(out, b.entries[:b.next]...)
	return out
}

// Len returns the number of retained entries
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Capacity returns the maximum number of entries retained
func (b *Buffer) Capacity() int {
	return len(b.entries)
}

// Clear drops every entry
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make([]Entry, len(b.entries))
	b.next = 0
	b.full = false
}
