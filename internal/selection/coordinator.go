// Package selection coordinates interactive page selection for multi-page
// documents. A request is handed to an external surface and the caller waits
// until the surface commits a page set or cancels.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfintake/internal/identity"
	mpkg "github.com/local/pdfintake/internal/metrics"
	"github.com/local/pdfintake/internal/pageset"
)

var (
	ErrNoPendingRequest = errors.New("no selection request is pending")
	ErrRequestMismatch  = errors.New("selection request is no longer pending")
	ErrInvalidRequest   = errors.New("invalid selection request")
)

// Request asks the surface to pick pages from one document.
type Request struct {
	ItemID           string
	Name             string
	Bytes            []byte
	TotalPages       int
	InitialSelection []int // current pages when re-editing an existing item
}

// Pending is an outstanding request as seen by the surface.
type Pending struct {
	ID string
	Request
	Since time.Time
}

// Resolution is how a request ended.
type Resolution int

const (
	Cancelled Resolution = iota
	Committed
)

func (r Resolution) String() string {
	if r == Committed {
		return "committed"
	}
	return "cancelled"
}

// Outcome is the single resolution of a request. Pages is set only when
// committed, sorted ascending and free of duplicates.
type Outcome struct {
	Resolution Resolution
	Pages      []int
}

func (o Outcome) IsCommitted() bool { return o.Resolution == Committed }

// Surface is told about each request as it becomes outstanding.
type Surface interface {
	Present(p Pending)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(p Pending)

func (f SurfaceFunc) Present(p Pending) { f(p) }

type pendingRequest struct {
	info Pending
	done chan Outcome
}

// Coordinator allows one outstanding request at a time; later callers queue
// behind it. There is no timeout: a request waits until it is resolved or the
// caller's context ends.
type Coordinator struct {
	ids      identity.Generator
	turn     chan struct{}
	mu       sync.Mutex
	pending  *pendingRequest
	surfaces []Surface
}

// New creates a coordinator. ids generates request identifiers.
func New(ids identity.Generator, surfaces ...Surface) *Coordinator {
	if ids == nil {
		ids = identity.New()
	}
	return &Coordinator{ids: ids, turn: make(chan struct{}, 1), surfaces: surfaces}
}

// AddSurface registers another surface to be told about new requests.
func (c *Coordinator) AddSurface(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surfaces = append(c.surfaces, s)
}

// RequestSelection blocks until the surface resolves the request. A context
// error abandons the request; it is not reported as a user cancellation.
func (c *Coordinator) RequestSelection(ctx context.Context, req Request) (Outcome, error) {
	if req.TotalPages <= 0 {
		return Outcome{}, fmt.Errorf("%w: total pages %d", ErrInvalidRequest, req.TotalPages)
	}

	select {
	case c.turn <- struct{}{}:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	defer func() { <-c.turn }()

	initial, err := pageset.Normalize(req.InitialSelection, req.TotalPages)
	if err != nil {
		initial = nil
	}
	req.InitialSelection = initial

	p := &pendingRequest{
		info: Pending{ID: c.ids.NewString(), Request: req, Since: time.Now()},
		done: make(chan Outcome, 1),
	}

	c.mu.Lock()
	c.pending = p
	surfaces := append([]Surface(nil), c.surfaces...)
	c.mu.Unlock()

	log.Info().
		Str("request_id", p.info.ID).
		Str("item_id", req.ItemID).
		Str("file", req.Name).
		Int("total_pages", req.TotalPages).
		Ints("initial_pages", initial).
		Msg("page selection requested")

	for _, s := range surfaces {
		s.Present(p.info)
	}

	select {
	case out := <-p.done:
		dur := time.Since(p.info.Since)
		mpkg.ObserveSelection(out.Resolution.String(), dur)
		log.Info().
			Str("request_id", p.info.ID).
			Str("item_id", req.ItemID).
			Str("resolution", out.Resolution.String()).
			Ints("pages", out.Pages).
			Dur("waited", dur).
			Msg("page selection resolved")
		return out, nil
	case <-ctx.Done():
		c.mu.Lock()
		if c.pending == p {
			c.pending = nil
		}
		c.mu.Unlock()
		log.Warn().Err(ctx.Err()).Str("request_id", p.info.ID).Msg("page selection abandoned")
		return Outcome{}, ctx.Err()
	}
}

// Pending returns the outstanding request, if any.
func (c *Coordinator) Pending() (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Pending{}, false
	}
	return c.pending.info, true
}

// Commit resolves request id with pages. An invalid page set is rejected and
// the request stays outstanding. It returns the normalized pages. An empty id
// addresses whichever request is pending.
func (c *Coordinator) Commit(id string, pages []int) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.current(id)
	if err != nil {
		return nil, err
	}
	norm, err := pageset.Normalize(pages, p.info.TotalPages)
	if err != nil {
		return nil, err
	}
	c.pending = nil
	p.done <- Outcome{Resolution: Committed, Pages: norm}
	return pageset.Clone(norm), nil
}

// Cancel resolves request id without a selection.
func (c *Coordinator) Cancel(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.current(id)
	if err != nil {
		return err
	}
	c.pending = nil
	p.done <- Outcome{Resolution: Cancelled}
	return nil
}

func (c *Coordinator) current(id string) (*pendingRequest, error) {
	if c.pending == nil {
		return nil, ErrNoPendingRequest
	}
	if id != "" && c.pending.info.ID != id {
		return nil, ErrRequestMismatch
	}
	return c.pending, nil
}
