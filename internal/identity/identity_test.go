package identity

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUUIDIsParseableAndUnique(t *testing.T) {
	g := New()
	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		id := g.NewString()
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestSequence(t *testing.T) {
	s := &Sequence{Prefix: "item"}
	require.Equal(t, "item-1", s.NewString())
	require.Equal(t, "item-2", s.NewString())

	var empty Sequence
	require.Equal(t, "id-1", empty.NewString())
}

func TestSequenceConcurrent(t *testing.T) {
	s := &Sequence{Prefix: "c"}
	var mu sync.Mutex
	seen := map[string]struct{}{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := s.NewString()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 800)
}
