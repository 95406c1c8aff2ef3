package delaytail

import (
	"fmt"

	"github.com/pkg/errors"
)

// Policy names accepted by ParsePolicy.
const (
	PolicyRejectNew = "reject-new"
	PolicyEvictOld  = "evict-old"
)

// DefaultMaxBytes bounds the buffer under the default policy.
const DefaultMaxBytes = 1 << 30

// DefaultMaxLineBytes bounds a single line.
const DefaultMaxLineBytes = 16 << 20

// AdmissionPolicy decides what happens to a new line when the buffer is at
// its bound. Neither implementation ever reorders buffered entries.
type AdmissionPolicy interface {
	// Admit may evict entries from the head of b. It reports whether a line
	// of the given size may then be appended, and how many entries it
	// evicted.
	Admit(b *Buffer, size int) (bool, int)
	String() string
}

// RejectNewBytes bounds the total buffered bytes and drops any new line that
// does not fit. A dropped line is lost: the cursor has already moved past it.
type RejectNewBytes struct {
	MaxBytes int
}

func (p RejectNewBytes) Admit(b *Buffer, size int) (bool, int) {
	return b.Bytes()+size <= p.MaxBytes, 0
}

func (p RejectNewBytes) String() string {
	return fmt.Sprintf("%s(max_bytes=%d)", PolicyRejectNew, p.MaxBytes)
}

// EvictOldCount bounds the number of buffered entries, evicting the oldest
// until the new line fits.
type EvictOldCount struct {
	MaxEntries int
}

func (p EvictOldCount) Admit(b *Buffer, _ int) (bool, int) {
	if p.MaxEntries < 1 {
		return false, 0
	}
	evicted := 0
	for b.Len() >= p.MaxEntries {
		b.popHead()
		evicted++
	}
	return true, evicted
}

func (p EvictOldCount) String() string {
	return fmt.Sprintf("%s(max_entries=%d)", PolicyEvictOld, p.MaxEntries)
}

// ParsePolicy builds the policy called name. Only the bound that the chosen
// policy uses is checked.
func ParsePolicy(name string, maxBytes, maxEntries int) (AdmissionPolicy, error) {
	switch name {
	case PolicyRejectNew, "":
		if maxBytes < 1 {
			return nil, errors.Wrapf(ErrInvalidConfig, "max bytes must be positive, got %d", maxBytes)
		}
		return RejectNewBytes{MaxBytes: maxBytes}, nil
	case PolicyEvictOld:
		if maxEntries < 1 {
			return nil, errors.Wrapf(ErrInvalidConfig, "max entries must be positive, got %d", maxEntries)
		}
		return EvictOldCount{MaxEntries: maxEntries}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown policy %q; use %s|%s", name, PolicyRejectNew, PolicyEvictOld)
	}
}
