package seap

import (
	"errors"

	"github.com/openscap-probes/seap/internal/desctable"
)

// Config holds the context-level knobs spec.md leaves implicit: the
// descriptor table's upper bound and whether CMD dispatch runs inline or
// on a worker pool. Zero-value fields are filled in by Valid, matching
// the teacher's range-check idiom (cs104.Config.Valid).
type Config struct {
	// MaxDescriptors bounds the descriptor table; 0 means
	// desctable.DefaultMaxDescriptors.
	MaxDescriptors int

	// ThreadDispatch selects worker-mode CMD dispatch (spec.md §4.5.2.2)
	// instead of the inline default.
	ThreadDispatch bool
}

// Valid fills in defaults and rejects invalid overrides.
func (c *Config) Valid() error {
	if c == nil {
		return errors.New("invalid pointer")
	}
	if c.MaxDescriptors == 0 {
		c.MaxDescriptors = desctable.DefaultMaxDescriptors
	} else if c.MaxDescriptors < 0 {
		return errors.New("MaxDescriptors must be > 0")
	}
	return nil
}

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	return Config{MaxDescriptors: desctable.DefaultMaxDescriptors}
}
