package delaytail

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
)

func TestParseDelay(t *testing.T) {
	g := NewGomegaWithT(t)
	for in, want := range map[string]time.Duration{
		"0":    0,
		"1":    time.Second,
		"30":   30 * time.Second,
		"0.25": 250 * time.Millisecond,
	} {
		d, err := ParseDelay(in)
		g.Expect(err).ToNot(HaveOccurred(), in)
		g.Expect(d).To(Equal(want), in)
	}
	for _, in := range []string{"", "-1", "abc", "NaN", "+Inf", "1e300"} {
		_, err := ParseDelay(in)
		g.Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue(), in)
	}
}

func TestConfigValidate(t *testing.T) {
	g := NewGomegaWithT(t)
	valid := DefaultConfig()
	valid.Source, valid.Destination, valid.Delay = "/a", "/b", time.Second
	g.Expect(valid.Validate()).To(Succeed())

	p, err := valid.Policy()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(p).To(Equal(RejectNewBytes{MaxBytes: DefaultMaxBytes}))

	for name, mutate := range map[string]func(*Config){
		"no source":      func(c *Config) { c.Source = "" },
		"no destination": func(c *Config) { c.Destination = "" },
		"same file":      func(c *Config) { c.Destination = c.Source },
		"negative delay": func(c *Config) { c.Delay = -time.Second },
		"empty queue":    func(c *Config) { c.QueueSize = 0 },
		"bad policy":     func(c *Config) { c.PolicyName = "lifo" },
		"no max bytes":   func(c *Config) { c.MaxBytes = 0 },
		"no max entries": func(c *Config) { c.PolicyName, c.MaxEntries = PolicyEvictOld, 0 },
	} {
		c := valid
		mutate(&c)
		err := c.Validate()
		g.Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue(), name)
	}
}
