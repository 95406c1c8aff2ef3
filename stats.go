package delaytail

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

const metricsNamespace = "delaytail"

// Stats counts what the engine did. Counters only grow; the Buffered gauges
// mirror the buffer after every admission and release. All fields are safe
// to read from any goroutine.
type Stats struct {
	LinesRead atomic.Int64
	BytesRead atomic.Int64
	Admitted  atomic.Int64
	// Dropped counts lines refused by the admission policy.
	Dropped atomic.Int64
	// Evicted counts buffered lines discarded to admit newer ones.
	Evicted      atomic.Int64
	Released     atomic.Int64
	BytesWritten atomic.Int64
	Batches      atomic.Int64

	BufferedEntries atomic.Int64
	BufferedBytes   atomic.Int64
}

func (s *Stats) observe(b *Buffer) {
	s.BufferedEntries.Store(int64(b.Len()))
	s.BufferedBytes.Store(int64(b.Bytes()))
}

// RegisterMetrics exposes s on reg.
func RegisterMetrics(reg prometheus.Registerer, s *Stats) error {
	counter := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}
	gauge := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}
	collectors := []prometheus.Collector{
		counter("lines_read_total", "Complete lines read from the source.", &s.LinesRead),
		counter("bytes_read_total", "Bytes of complete lines read from the source.", &s.BytesRead),
		counter("lines_admitted_total", "Lines admitted to the delay buffer.", &s.Admitted),
		counter("lines_dropped_total", "Lines refused by the admission policy.", &s.Dropped),
		counter("lines_evicted_total", "Buffered lines evicted by the admission policy.", &s.Evicted),
		counter("lines_released_total", "Lines written and synced to the destination.", &s.Released),
		counter("bytes_written_total", "Bytes written to the destination.", &s.BytesWritten),
		counter("batches_total", "Release batches written to the destination.", &s.Batches),
		gauge("buffered_lines", "Lines currently waiting in the delay buffer.", &s.BufferedEntries),
		gauge("buffered_bytes", "Bytes currently waiting in the delay buffer.", &s.BufferedBytes),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
