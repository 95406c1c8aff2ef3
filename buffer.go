package delaytail

import (
	"time"

	"github.com/eapache/queue"
)

// Entry is one complete source line waiting for its release time.
type Entry struct {
	ReleaseAt time.Time
	// Line includes its trailing newline.
	Line []byte
}

// Buffer is the ordered set of entries waiting to be released. Entries leave
// it in the order they were pushed, and ReleaseAt never decreases from head
// to tail.
//
// A Buffer is not safe for concurrent use; the engine goroutine owns it.
type Buffer struct {
	q      *queue.Queue
	bytes  int
	policy AdmissionPolicy
}

// NewBuffer returns an empty buffer that admits entries under policy.
func NewBuffer(policy AdmissionPolicy) *Buffer {
	return &Buffer{q: queue.New(), policy: policy}
}

// Push offers e to the admission policy. It reports whether e was admitted
// and how many older entries were evicted to make room for it.
func (b *Buffer) Push(e Entry) (admitted bool, evicted int) {
	admitted, evicted = b.policy.Admit(b, len(e.Line))
	if !admitted {
		return false, evicted
	}
	if tail, ok := b.tail(); ok && e.ReleaseAt.Before(tail.ReleaseAt) {
		e.ReleaseAt = tail.ReleaseAt
	}
	b.q.Add(e)
	b.bytes += len(e.Line)
	return true, evicted
}

// Head returns the entry that will be released next.
func (b *Buffer) Head() (Entry, bool) {
	if b.q.Length() == 0 {
		return Entry{}, false
	}
	return b.q.Peek().(Entry), true
}

// PopReady removes and returns, in order, every entry due at or before now.
func (b *Buffer) PopReady(now time.Time) []Entry {
	var ready []Entry
	for b.q.Length() > 0 {
		head := b.q.Peek().(Entry)
		if head.ReleaseAt.After(now) {
			break
		}
		ready = append(ready, b.popHead())
	}
	return ready
}

func (b *Buffer) Len() int {
	return b.q.Length()
}

// Bytes is the total size of the buffered lines.
func (b *Buffer) Bytes() int {
	return b.bytes
}

func (b *Buffer) popHead() Entry {
	e := b.q.Remove().(Entry)
	b.bytes -= len(e.Line)
	return e
}

func (b *Buffer) tail() (Entry, bool) {
	n := b.q.Length()
	if n == 0 {
		return Entry{}, false
	}
	return b.q.Get(n - 1).(Entry), true
}
