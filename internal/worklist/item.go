package worklist

import (
	"errors"

	"github.com/local/pdfintake/internal/pageset"
)

// Status is the lifecycle state of an Item. Pending only exists while a file
// is being validated or waiting on page selection; it is never stored.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

var (
	ErrDuplicateID  = errors.New("item id already used")
	ErrNotFound     = errors.New("item not found")
	ErrNotSuccess   = errors.New("item is not in success state")
	ErrNotTerminal  = errors.New("item is still pending")
	ErrInvalidPages = errors.New("invalid page selection")
	ErrInvalidOrder = errors.New("order is not a permutation of reorderable items")
	ErrSinglePage   = errors.New("item has a single page")
)

// Source describes the original submitted file.
type Source struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"mimeType"`
}

// Item is one submitted document under management.
type Item struct {
	ID            string `json:"id"`
	Source        Source `json:"source"`
	Bytes         []byte `json:"-"`
	Status        Status `json:"status"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	TotalPages    int    `json:"totalPages,omitempty"` // 0 when never read
	SelectedPages []int  `json:"selectedPages,omitempty"`
}

// Draggable reports whether the item takes part in reordering.
func (it Item) Draggable() bool { return it.Status == StatusSuccess }

func (it Item) check() error {
	switch it.Status {
	case StatusSuccess:
		if err := pageset.Validate(it.SelectedPages, it.TotalPages); err != nil {
			return errors.Join(ErrInvalidPages, err)
		}
	case StatusError:
	default:
		return ErrNotTerminal
	}
	return nil
}

// clone deep-copies the item. withBytes controls whether content is copied.
func (it Item) clone(withBytes bool) Item {
	out := it
	out.SelectedPages = pageset.Clone(it.SelectedPages)
	out.Bytes = nil
	if withBytes && it.Bytes != nil {
		out.Bytes = append([]byte(nil), it.Bytes...)
	}
	return out
}
