// Package delaytail relays lines appended to one file into another file,
// each line a fixed delay after it was read.
//
// The source is opened once with O_NOFOLLOW, so a symlink planted at the
// source path before startup is refused. Nothing protects against the file
// being swapped after it is open: rotation schemes that replace the inode
// leave the engine reading the old file.
//
// Buffered lines live only in memory. Stopping the process loses whatever
// is still waiting for its release time.
package delaytail

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Options configures an Engine. The zero value is usable: no delay, the
// default reject-new policy, DefaultMaxLineBytes, the real clock, no logging.
type Options struct {
	Delay  time.Duration
	Policy AdmissionPolicy
	// MaxLineBytes caps a single line, including the part of it still
	// waiting for a newline. Longer lines are counted as dropped.
	MaxLineBytes int

	Clock  clock.Clock
	Logger *zap.Logger
	Stats  *Stats
}

// Engine owns the delay buffer. It reads the source whenever a notification
// arrives and releases entries to the destination when their time comes.
// Every buffer access happens on the goroutine running Run.
type Engine struct {
	reader *FSReader
	writer *DurableWriter
	events <-chan Event
	buffer *Buffer
	delay  time.Duration
	clock  clock.Clock
	stats  *Stats
	log    *zap.Logger
}

func NewEngine(reader *FSReader, writer *DurableWriter, events <-chan Event, opts Options) *Engine {
	if opts.Policy == nil {
		opts.Policy = RejectNewBytes{MaxBytes: DefaultMaxBytes}
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	reader.SetMaxLine(opts.MaxLineBytes)
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Stats == nil {
		opts.Stats = &Stats{}
	}
	return &Engine{
		reader: reader,
		writer: writer,
		events: events,
		buffer: NewBuffer(opts.Policy),
		delay:  opts.Delay,
		clock:  opts.Clock,
		stats:  opts.Stats,
		log:    opts.Logger,
	}
}

func (e *Engine) Stats() *Stats {
	return e.stats
}

// Run processes notifications and releases until ctx is done or a fatal
// error occurs. It never returns nil. Entries still buffered when it returns
// are discarded.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("relay started",
		zap.String("source", e.reader.Cursor().Path),
		zap.String("destination", e.writer.Path()),
		zap.Duration("delay", e.delay),
		zap.Stringer("policy", e.buffer.policy),
		zap.Int64("offset", e.reader.Cursor().Offset))

	var timer *clock.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		var wake <-chan time.Time
		if head, ok := e.buffer.Head(); ok {
			wait := head.ReleaseAt.Sub(e.clock.Now())
			if wait <= 0 {
				if err := e.release(); err != nil {
					return err
				}
				continue
			}
			if timer == nil {
				timer = e.clock.Timer(wait)
			} else {
				stopTimer(timer)
				timer.Reset(wait)
			}
			wake = timer.C
		}

		select {
		case <-ctx.Done():
			e.log.Info("relay stopped",
				zap.Int("discarded_lines", e.buffer.Len()),
				zap.Int("discarded_bytes", e.buffer.Bytes()))
			return ctx.Err()
		case ev, ok := <-e.events:
			if !ok {
				return ErrEventsClosed
			}
			if err := e.handle(ev); err != nil {
				return err
			}
		case <-wake:
			if err := e.release(); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) handle(ev Event) error {
	switch ev.Kind {
	case EventRemoved:
		return errors.Wrap(ErrSourceRemoved, ev.Path)
	case EventGrew:
		_, err := e.reader.ReadLines(e.admit)
		if d := e.reader.takeDiscarded(); d > 0 {
			e.stats.Dropped.Add(d)
			e.log.Debug("dropped over-long lines", zap.Int64("count", d))
		}
		e.stats.observe(e.buffer)
		return err
	default:
		return nil
	}
}

func (e *Engine) admit(line []byte) {
	e.stats.LinesRead.Inc()
	e.stats.BytesRead.Add(int64(len(line)))

	admitted, evicted := e.buffer.Push(Entry{
		ReleaseAt: e.clock.Now().Add(e.delay),
		Line:      line,
	})
	if evicted > 0 {
		e.stats.Evicted.Add(int64(evicted))
		e.log.Debug("evicted buffered lines", zap.Int("count", evicted))
	}
	if !admitted {
		e.stats.Dropped.Inc()
		e.log.Debug("dropped line", zap.Int("size", len(line)), zap.Int("buffered_bytes", e.buffer.Bytes()))
		return
	}
	e.stats.Admitted.Inc()
}

// release writes every due entry as a single batch. The write and its sync
// finish before the loop looks at another event.
func (e *Engine) release() error {
	batch := e.buffer.PopReady(e.clock.Now())
	e.stats.observe(e.buffer)
	if len(batch) == 0 {
		return nil
	}
	n, err := e.writer.WriteBatch(batch)
	e.stats.BytesWritten.Add(n)
	if err != nil {
		return err
	}
	e.stats.Released.Add(int64(len(batch)))
	e.stats.Batches.Inc()
	e.log.Debug("released batch", zap.Int("lines", len(batch)), zap.Int64("bytes", n))
	return nil
}

func stopTimer(t *clock.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
