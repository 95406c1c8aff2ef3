package delaytail

import (
	"testing"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRegisterMetrics(t *testing.T) {
	g := NewGomegaWithT(t)
	reg := prometheus.NewRegistry()
	s := &Stats{}
	g.Expect(RegisterMetrics(reg, s)).To(Succeed())

	s.Dropped.Add(3)
	s.Released.Inc()
	b := NewBuffer(RejectNewBytes{MaxBytes: 100})
	b.Push(entry(0, "abc\n"))
	s.observe(b)

	families, err := reg.Gather()
	g.Expect(err).ToNot(HaveOccurred())
	values := map[string]float64{}
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	g.Expect(values).To(HaveLen(10))
	g.Expect(values).To(HaveKeyWithValue("delaytail_lines_dropped_total", 3.0))
	g.Expect(values).To(HaveKeyWithValue("delaytail_lines_released_total", 1.0))
	g.Expect(values).To(HaveKeyWithValue("delaytail_buffered_lines", 1.0))
	g.Expect(values).To(HaveKeyWithValue("delaytail_buffered_bytes", 4.0))

	g.Expect(RegisterMetrics(reg, s)).ToNot(Succeed())
}
