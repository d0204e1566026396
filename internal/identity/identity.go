package identity

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator hands out identifiers that are unique for the lifetime of the process.
type Generator interface {
	NewString() string
}

// UUID generates random (v4) UUID strings.
type UUID struct{}

func (UUID) NewString() string { return uuid.NewString() }

// New returns the default generator.
func New() Generator { return UUID{} }

// Sequence generates "<prefix>-1", "<prefix>-2", ... in call order.
type Sequence struct {
	Prefix string
	n      atomic.Uint64
}

func (s *Sequence) NewString() string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "id"
	}
	return fmt.Sprintf("%s-%d", prefix, s.n.Add(1))
}
