package delaytail

import (
	"context"

	"go.uber.org/zap"
)

// Relay wires a reader, a watcher, a writer and an engine for one
// source/destination pair on the OS filesystem.
type Relay struct {
	reader  *FSReader
	watcher *Watcher
	engine  *Engine
}

// Open validates cfg and opens the source. The watch is armed before the
// cursor is placed at end of file, so any growth past that point produces a
// notification.
func Open(cfg Config, stats *Stats, log *zap.Logger) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := NewWatcher(cfg.Source, cfg.QueueSize, log.Named("watcher"))
	if err != nil {
		return nil, err
	}
	reader, err := OpenReader(defaultFS, cfg.Source)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	engine := NewEngine(reader, NewDurableWriter(defaultFS, cfg.Destination), watcher.Events(), Options{
		Delay:        cfg.Delay,
		Policy:       policy,
		MaxLineBytes: cfg.MaxLineBytes,
		Logger:       log.Named("engine"),
		Stats:        stats,
	})
	return &Relay{reader: reader, watcher: watcher, engine: engine}, nil
}

// Run blocks until ctx is done or a fatal error occurs.
func (r *Relay) Run(ctx context.Context) error {
	return r.engine.Run(ctx)
}

func (r *Relay) Stats() *Stats {
	return r.engine.Stats()
}

func (r *Relay) Close() error {
	werr := r.watcher.Close()
	if err := r.reader.Close(); err != nil {
		return err
	}
	return werr
}
