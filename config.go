package delaytail

import (
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Config is everything the binary needs to build a relay.
type Config struct {
	Source      string
	Destination string
	Delay       time.Duration

	PolicyName string
	MaxBytes   int
	MaxEntries int
	// MaxLineBytes caps one line, including an unterminated fragment.
	MaxLineBytes int

	// QueueSize is the capacity of the watcher to engine channel.
	QueueSize int

	LogLevel    string
	MetricsAddr string
}

// DefaultConfig returns a Config with every optional field set: reject-new
// at 1 GiB, no metrics listener.
func DefaultConfig() Config {
	return Config{
		PolicyName:   PolicyRejectNew,
		MaxBytes:     DefaultMaxBytes,
		MaxEntries:   1 << 20,
		MaxLineBytes: DefaultMaxLineBytes,
		QueueSize:    DefaultQueueSize,
		LogLevel:     "info",
	}
}

// ParseDelay parses a non-negative number of seconds; fractions are allowed.
func ParseDelay(s string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "delay %q is not a number", s)
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, errors.Wrapf(ErrInvalidConfig, "delay %q must be a finite non-negative number", s)
	}
	if secs > float64(math.MaxInt64)/float64(time.Second) {
		return 0, errors.Wrapf(ErrInvalidConfig, "delay %q is too large", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (c Config) Validate() error {
	if c.Source == "" {
		return errors.Wrap(ErrInvalidConfig, "source path is empty")
	}
	if c.Destination == "" {
		return errors.Wrap(ErrInvalidConfig, "destination path is empty")
	}
	if c.Source == c.Destination {
		return errors.Wrapf(ErrInvalidConfig, "source and destination are both %q", c.Source)
	}
	if c.Delay < 0 {
		return errors.Wrapf(ErrInvalidConfig, "negative delay %s", c.Delay)
	}
	if c.MaxLineBytes < 1 {
		return errors.Wrapf(ErrInvalidConfig, "max line bytes must be positive, got %d", c.MaxLineBytes)
	}
	if c.QueueSize < 1 {
		return errors.Wrapf(ErrInvalidConfig, "queue size must be positive, got %d", c.QueueSize)
	}
	_, err := c.Policy()
	return err
}

// Policy builds the admission policy the config names.
func (c Config) Policy() (AdmissionPolicy, error) {
	return ParsePolicy(c.PolicyName, c.MaxBytes, c.MaxEntries)
}
