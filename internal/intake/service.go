// Package intake drives submitted files through validation and page selection
// into the worklist, and routes list-item actions to the store.
package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/pdfintake/internal/document"
	"github.com/local/pdfintake/internal/identity"
	"github.com/local/pdfintake/internal/metrics"
	"github.com/local/pdfintake/internal/notify"
	"github.com/local/pdfintake/internal/pageset"
	"github.com/local/pdfintake/internal/publish"
	"github.com/local/pdfintake/internal/selection"
	"github.com/local/pdfintake/internal/worklist"
)

var ErrNotDraggable = errors.New("item cannot be dragged")

// Validator classifies one submitted file.
type Validator interface {
	Validate(ctx context.Context, f document.File) document.Result
}

// Selector asks the user to pick pages from a multi-page document.
type Selector interface {
	RequestSelection(ctx context.Context, req selection.Request) (selection.Outcome, error)
}

type Dependencies struct {
	Validator Validator
	Selector  Selector
	Store     *worklist.Store
	Bridge    *publish.Bridge
	Notifier  notify.Notifier
	IDs       identity.Generator
}

type Options struct {
	// Prefetch > 1 validates up to that many files ahead of the one being
	// processed. Selection and store order are unaffected.
	Prefetch int
}

// Service is the batch orchestrator and list-item action facade.
type Service struct {
	validator Validator
	selector  Selector
	store     *worklist.Store
	bridge    *publish.Bridge
	notifier  notify.Notifier
	ids       identity.Generator
	prefetch  int

	batchMu sync.Mutex
	// stateMu spans a store mutation and the snapshot published for it, so
	// snapshots are emitted in mutation order.
	stateMu sync.Mutex
}

func New(deps Dependencies, opts Options) (*Service, error) {
	if deps.Validator == nil || deps.Selector == nil || deps.Store == nil || deps.Bridge == nil {
		return nil, errors.New("intake: validator, selector, store and bridge are required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.LogSink{}
	}
	if deps.IDs == nil {
		deps.IDs = identity.New()
	}
	return &Service{
		validator: deps.Validator,
		selector:  deps.Selector,
		store:     deps.Store,
		bridge:    deps.Bridge,
		notifier:  deps.Notifier,
		ids:       deps.IDs,
		prefetch:  opts.Prefetch,
	}, nil
}

// File outcome statuses.
const (
	OutcomeAdded     = "added"
	OutcomeFailed    = "failed"   // stored as an error item
	OutcomeRejected  = "rejected" // wrong type, reported but not stored
	OutcomeCancelled = "cancelled"
)

type FileOutcome struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	TotalPages    int    `json:"totalPages,omitempty"`
	SelectedPages []int  `json:"selectedPages,omitempty"`
}

// BatchResult summarizes one Submit call. Added + Failed + Cancelled always
// equals the number of submitted files.
type BatchResult struct {
	Files       []FileOutcome `json:"files"`
	Added       int           `json:"added"`
	Failed      int           `json:"failed"`
	Cancelled   int           `json:"cancelled"`
	FailedNames []string      `json:"failedNames,omitempty"`
	Summary     string        `json:"summary,omitempty"`
}

// Submit processes files in order. New items are appended after existing ones
// in submission order with a single store mutation and one snapshot at the end
// of the batch. Batches are applied one at a time.
func (s *Service) Submit(ctx context.Context, files []document.File) BatchResult {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	start := time.Now()
	res := BatchResult{Files: make([]FileOutcome, 0, len(files))}
	var staged []worklist.Item

	next, wait := s.validations(ctx, files)
	for i, f := range files {
		id := s.ids.NewString()
		v := next(i)
		src := worklist.Source{Name: f.Name, Size: f.Size, MIMEType: f.Type}
		if v.Bytes != nil {
			src.Size = int64(len(v.Bytes))
		}

		switch v.Outcome {
		case document.Invalid:
			if abandoned(v.Err) {
				res.Cancelled++
				notify.Info(s.notifier, fmt.Sprintf("%s was skipped", f.Name))
				res.Files = append(res.Files, FileOutcome{Name: f.Name, Status: OutcomeCancelled})
				continue
			}
			metrics.IncValidationFailure(string(v.Err.Kind))
			res.Failed++
			res.FailedNames = append(res.FailedNames, f.Name)
			out := FileOutcome{Name: f.Name, Message: v.Err.Message, TotalPages: v.TotalPages}
			if !v.Err.Stored() {
				out.Status = OutcomeRejected
				notify.Error(s.notifier, v.Err.Message)
			} else {
				out.ID, out.Status = id, OutcomeFailed
				notify.Error(s.notifier, fmt.Sprintf("%s: %s", f.Name, v.Err.Message))
				staged = append(staged, worklist.Item{
					ID:           id,
					Source:       src,
					Status:       worklist.StatusError,
					ErrorMessage: v.Err.Message,
					TotalPages:   v.TotalPages,
				})
			}
			log.Warn().Err(v.Err).Str("file", f.Name).Str("kind", string(v.Err.Kind)).Msg("file failed validation")
			res.Files = append(res.Files, out)

		case document.SinglePage:
			staged = append(staged, successItem(id, src, v.Bytes, v.TotalPages, v.SelectedPages))
			res.Added++
			res.Files = append(res.Files, FileOutcome{ID: id, Name: f.Name, Status: OutcomeAdded, TotalPages: v.TotalPages, SelectedPages: pageset.Clone(v.SelectedPages)})

		case document.MultiPage:
			sel, err := s.selector.RequestSelection(ctx, selection.Request{
				ItemID:     id,
				Name:       f.Name,
				Bytes:      v.Bytes,
				TotalPages: v.TotalPages,
			})
			if err != nil || !sel.IsCommitted() {
				if err != nil {
					log.Info().Err(err).Str("file", f.Name).Msg("page selection abandoned")
				}
				res.Cancelled++
				notify.Info(s.notifier, fmt.Sprintf("%s was skipped", f.Name))
				res.Files = append(res.Files, FileOutcome{Name: f.Name, Status: OutcomeCancelled, TotalPages: v.TotalPages})
				continue
			}
			staged = append(staged, successItem(id, src, v.Bytes, v.TotalPages, sel.Pages))
			res.Added++
			res.Files = append(res.Files, FileOutcome{ID: id, Name: f.Name, Status: OutcomeAdded, TotalPages: v.TotalPages, SelectedPages: pageset.Clone(sel.Pages)})
		}
	}
	wait()

	if len(staged) > 0 {
		if err := s.mutate(func() error { return s.store.Append(staged...) }); err != nil {
			log.Error().Err(err).Int("items", len(staged)).Msg("worklist append failed")
			s.unstage(&res)
		}
	}

	for _, f := range res.Files {
		metrics.IncFile(f.Status)
	}
	res.Summary = s.summarize(res)
	metrics.ObserveBatch(time.Since(start))
	log.Info().
		Int("files", len(files)).
		Int("added", res.Added).
		Int("failed", res.Failed).
		Int("cancelled", res.Cancelled).
		Dur("took", time.Since(start)).
		Msg("batch processed")
	return res
}

// unstage rewrites the result after the batch could not be stored: added
// files become failures and no outcome carries an item id.
func (s *Service) unstage(res *BatchResult) {
	for i := range res.Files {
		out := &res.Files[i]
		if out.ID == "" {
			continue
		}
		out.ID = ""
		if out.Status != OutcomeAdded {
			continue
		}
		out.Status, out.Message, out.SelectedPages = OutcomeFailed, "Failed to add file", nil
		res.Added--
		res.Failed++
		res.FailedNames = append(res.FailedNames, out.Name)
		notify.Error(s.notifier, fmt.Sprintf("%s: %s", out.Name, out.Message))
	}
}

// abandoned reports whether validation stopped because the caller went away.
func abandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func successItem(id string, src worklist.Source, data []byte, total int, pages []int) worklist.Item {
	return worklist.Item{
		ID:            id,
		Source:        src,
		Bytes:         data,
		Status:        worklist.StatusSuccess,
		TotalPages:    total,
		SelectedPages: pageset.Clone(pages),
	}
}

// validations returns a function yielding the validation result of file i,
// and a wait function to call once every result has been taken. With
// prefetching, later files are validated while earlier ones await selection.
func (s *Service) validations(ctx context.Context, files []document.File) (func(int) document.Result, func()) {
	if s.prefetch <= 1 || len(files) < 2 {
		return func(i int) document.Result { return s.validator.Validate(ctx, files[i]) }, func() {}
	}

	results := make([]chan document.Result, len(files))
	for i := range results {
		results[i] = make(chan document.Result, 1)
	}
	var g errgroup.Group
	g.SetLimit(s.prefetch)
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i := range files {
			g.Go(func() error {
				results[i] <- s.validator.Validate(ctx, files[i])
				return nil
			})
		}
	}()
	return func(i int) document.Result { return <-results[i] }, func() {
		<-launched
		_ = g.Wait()
	}
}

func (s *Service) summarize(r BatchResult) string {
	var msg string
	switch {
	case r.Added == 0 && r.Failed == 0:
		return ""
	case r.Failed == 0 && r.Added == 1:
		msg = "File added successfully"
	case r.Failed == 0:
		msg = fmt.Sprintf("%d files added successfully", r.Added)
	case r.Added == 0:
		msg = fmt.Sprintf("All %d file(s) failed to load.", r.Failed)
	default:
		msg = fmt.Sprintf("%d file(s) added successfully. %d file(s) failed to load.", r.Added, r.Failed)
	}

	if r.Failed == 0 {
		notify.Success(s.notifier, msg)
		return msg
	}
	notify.Error(s.notifier, msg)
	title := "Some files failed to load"
	if r.Added == 0 {
		title = "Files failed to load"
	}
	s.notifier.ShowFailures(notify.FailureDialog{
		Title:       title,
		Message:     msg,
		FailedNames: append([]string(nil), r.FailedNames...),
		Actions:     []notify.Action{notify.ActionRetry, notify.ActionDismiss},
	})
	return msg
}

// Remove deletes the item with id. It reports whether the item existed.
func (s *Service) Remove(id string) bool {
	err := s.mutate(func() error {
		if !s.store.RemoveByID(id) {
			return worklist.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return false
	}
	log.Info().Str("item_id", id).Msg("item removed")
	return true
}

// Reorder adopts ids as the new order of the success items.
func (s *Service) Reorder(ids []string) error {
	return s.mutate(func() error { return s.store.Reorder(ids) })
}

// DragStart checks that id may be dragged. Error items are pinned.
func (s *Service) DragStart(id string) error {
	it, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", worklist.ErrNotFound, id)
	}
	if !it.Draggable() {
		return fmt.Errorf("%w: %s", ErrNotDraggable, id)
	}
	log.Debug().Str("item_id", id).Msg("drag started")
	return nil
}

// DragEnd applies the order produced by a drag gesture.
func (s *Service) DragEnd(ids []string) error { return s.Reorder(ids) }

// SetPages replaces the selection of a success item directly.
func (s *Service) SetPages(id string, pages []int) error {
	if err := s.mutate(func() error { return s.store.UpdateSelectedPages(id, pages) }); err != nil {
		return err
	}
	log.Info().Str("item_id", id).Ints("pages", pages).Msg("selection updated")
	return nil
}

// EditPages re-opens page selection for an existing multi-page item with its
// current pages preselected. A cancel leaves the item unchanged.
func (s *Service) EditPages(ctx context.Context, id string) (selection.Outcome, error) {
	it, ok := s.store.Get(id)
	if !ok {
		return selection.Outcome{}, fmt.Errorf("%w: %s", worklist.ErrNotFound, id)
	}
	if it.Status != worklist.StatusSuccess {
		return selection.Outcome{}, fmt.Errorf("%w: %s", worklist.ErrNotSuccess, id)
	}
	if it.TotalPages <= 1 {
		return selection.Outcome{}, fmt.Errorf("%w: %s", worklist.ErrSinglePage, id)
	}

	out, err := s.selector.RequestSelection(ctx, selection.Request{
		ItemID:           id,
		Name:             it.Source.Name,
		Bytes:            it.Bytes,
		TotalPages:       it.TotalPages,
		InitialSelection: it.SelectedPages,
	})
	if err != nil {
		return selection.Outcome{}, err
	}
	if !out.IsCommitted() {
		log.Info().Str("item_id", id).Msg("page edit cancelled")
		return out, nil
	}
	if err := s.SetPages(id, out.Pages); err != nil {
		// the item was removed while the surface was open
		return selection.Outcome{}, err
	}
	return out, nil
}

// ReportExternalError forwards an error raised by the selection surface.
func (s *Service) ReportExternalError(msg string) {
	if msg == "" {
		return
	}
	notify.Error(s.notifier, msg)
}

// Items returns the current worklist without file content.
func (s *Service) Items() []worklist.Item { return s.store.Items() }

// mutate applies fn to the store and, if it succeeds, publishes the resulting
// state before any other mutation can run.
func (s *Service) mutate(fn func() error) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	s.bridge.Publish(s.store.SuccessItems())
	metrics.SetWorklist(s.store.Counts())
	return nil
}
