package delaytail

import "github.com/pkg/errors"

var (
	// ErrSourceIsSymlink is returned when the source path names a symbolic link.
	ErrSourceIsSymlink = errors.New("source is a symbolic link")
	// ErrSourceRemoved is returned when the source is removed or renamed away
	// while being tailed.
	ErrSourceRemoved = errors.New("source was removed")
	// ErrEventsClosed is returned when the notification channel closes under a
	// running engine.
	ErrEventsClosed = errors.New("notification channel closed")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)
