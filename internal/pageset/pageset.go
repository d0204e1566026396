// Package pageset validates and normalizes zero-based page index selections.
package pageset

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrEmpty      = errors.New("page selection is empty")
	ErrOutOfRange = errors.New("page index out of range")
	ErrDuplicate  = errors.New("duplicate page index")
)

// Validate checks that pages is non-empty, unique and within [0,total).
func Validate(pages []int, total int) error {
	if len(pages) == 0 {
		return ErrEmpty
	}
	seen := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		if p < 0 || p >= total {
			return fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, p, total)
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicate, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// Normalize collapses duplicates and sorts ascending. Out-of-range indices
// and empty selections are rejected rather than clamped.
func Normalize(pages []int, total int) ([]int, error) {
	if len(pages) == 0 {
		return nil, ErrEmpty
	}
	m := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		if p < 0 || p >= total {
			return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrOutOfRange, p, total)
		}
		m[p] = struct{}{}
	}
	out := make([]int, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}

// All returns [0, 1, ..., total-1].
func All(total int) []int {
	if total <= 0 {
		return nil
	}
	out := make([]int, total)
	for i := range out {
		out[i] = i
	}
	return out
}

// Clone copies pages; nil stays nil.
func Clone(pages []int) []int {
	if pages == nil {
		return nil
	}
	out := make([]int, len(pages))
	copy(out, pages)
	return out
}
