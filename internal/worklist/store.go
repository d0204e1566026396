// Package worklist holds the ordered collection of intake items. The store is
// the only owner of item state; readers get copies.
package worklist

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfintake/internal/pageset"
)

// Store is an ordered collection keyed by item id. Error items keep their
// absolute position through reorders.
type Store struct {
	mu    sync.Mutex
	items []*Item
	index map[string]*Item
	seen  map[string]struct{} // every id ever appended
}

func NewStore() *Store {
	return &Store{index: map[string]*Item{}, seen: map[string]struct{}{}}
}

// Append adds items at the end in the given order. Either all are added or
// none are.
func (s *Store) Append(items ...Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("%w: empty id", ErrDuplicateID)
		}
		if _, ok := s.seen[it.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, it.ID)
		}
		if _, ok := batch[it.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, it.ID)
		}
		batch[it.ID] = struct{}{}
		if err := it.check(); err != nil {
			return fmt.Errorf("item %s: %w", it.ID, err)
		}
	}
	for _, it := range items {
		cp := it.clone(false)
		cp.Bytes = it.Bytes // ownership moves to the store
		s.items = append(s.items, &cp)
		s.index[cp.ID] = &cp
		s.seen[cp.ID] = struct{}{}
	}
	return nil
}

// RemoveByID deletes the item with id and releases its content. It reports
// whether anything was removed.
func (s *Store) RemoveByID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.index[id]
	if !ok {
		return false
	}
	for i, p := range s.items {
		if p == it {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	delete(s.index, id)
	it.Bytes = nil
	return true
}

// Reorder adopts ids as the new order of success items. Error item ids in the
// list are ignored and error items stay in their slots. The remaining ids must
// be an exact permutation of the current success items, otherwise nothing
// changes.
func (s *Store) Reorder(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := make([]*Item, 0, len(ids))
	used := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		it, ok := s.index[id]
		if !ok {
			return fmt.Errorf("%w: unknown id %s", ErrInvalidOrder, id)
		}
		if !it.Draggable() {
			continue
		}
		if _, dup := used[id]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidOrder, id)
		}
		used[id] = struct{}{}
		order = append(order, it)
	}

	movable := 0
	for _, it := range s.items {
		if it.Draggable() {
			movable++
		}
	}
	if len(order) != movable {
		return fmt.Errorf("%w: got %d of %d items", ErrInvalidOrder, len(order), movable)
	}

	next := 0
	for i, it := range s.items {
		if it.Draggable() {
			s.items[i] = order[next]
			next++
		}
	}
	log.Debug().Int("items", len(s.items)).Msg("worklist reordered")
	return nil
}

// UpdateSelectedPages replaces the selection of a success item.
func (s *Store) UpdateSelectedPages(id string, pages []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if it.Status != StatusSuccess {
		return fmt.Errorf("%w: %s", ErrNotSuccess, id)
	}
	if err := pageset.Validate(pages, it.TotalPages); err != nil {
		return errors.Join(ErrInvalidPages, err)
	}
	it.SelectedPages = pageset.Clone(pages)
	return nil
}

// Get returns a copy of the item, content included.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.index[id]
	if !ok {
		return Item{}, false
	}
	return it.clone(true), true
}

// Items returns every item in order, without content.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	for i, it := range s.items {
		out[i] = it.clone(false)
	}
	return out
}

// SuccessItems returns success items in order with copied content.
func (s *Store) SuccessItems() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Item
	for _, it := range s.items {
		if it.Status == StatusSuccess {
			out = append(out, it.clone(true))
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Counts returns the number of success and error items.
func (s *Store) Counts() (success, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.Status == StatusSuccess {
			success++
		} else {
			failed++
		}
	}
	return success, failed
}
