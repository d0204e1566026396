// Package notify carries user-facing feedback: toast notifications and the
// aggregate failure dialog raised at the end of a batch.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfintake/internal/metrics"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

type Notification struct {
	Message string    `json:"message"`
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
}

type Action string

const (
	ActionRetry   Action = "retry"
	ActionDismiss Action = "dismiss"
)

// FailureDialog lists the files of a batch that failed to load. Retry reopens
// the file picker.
type FailureDialog struct {
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	FailedNames []string  `json:"failedNames"`
	Actions     []Action  `json:"actions"`
	At          time.Time `json:"at"`
}

// Notifier receives notifications and dialogs.
type Notifier interface {
	Notify(n Notification)
	ShowFailures(d FailureDialog)
}

// Hub fans out to every registered notifier.
type Hub struct {
	mu    sync.RWMutex
	sinks []Notifier
}

func NewHub(sinks ...Notifier) *Hub { return &Hub{sinks: sinks} }

func (h *Hub) Add(n Notifier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, n)
}

func (h *Hub) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	metrics.IncNotification(string(n.Kind))
	for _, s := range h.snapshot() {
		s.Notify(n)
	}
}

func (h *Hub) ShowFailures(d FailureDialog) {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	if len(d.Actions) == 0 {
		d.Actions = []Action{ActionRetry, ActionDismiss}
	}
	for _, s := range h.snapshot() {
		s.ShowFailures(d)
	}
}

func (h *Hub) snapshot() []Notifier {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Notifier(nil), h.sinks...)
}

// Success, Error and Info are shorthands for Notify.
func Success(n Notifier, msg string) { n.Notify(Notification{Message: msg, Kind: KindSuccess}) }
func Error(n Notifier, msg string)   { n.Notify(Notification{Message: msg, Kind: KindError}) }
func Info(n Notifier, msg string)    { n.Notify(Notification{Message: msg, Kind: KindInfo}) }

// LogSink writes notifications to the global logger. Failed files are user
// input problems, so they log at warn.
type LogSink struct{}

func (LogSink) Notify(n Notification) {
	ev := log.Info()
	if n.Kind == KindError {
		ev = log.Warn()
	}
	ev.Str("kind", string(n.Kind)).Msg(n.Message)
}

func (LogSink) ShowFailures(d FailureDialog) {
	log.Warn().Strs("failed", d.FailedNames).Str("title", d.Title).Msg(d.Message)
}

// Entry is one item of the feed: exactly one of Notification or Dialog is set.
type Entry struct {
	Seq          uint64         `json:"seq"`
	Notification *Notification  `json:"notification,omitempty"`
	Dialog       *FailureDialog `json:"dialog,omitempty"`
}

// Feed keeps the most recent entries in a fixed-size ring.
type Feed struct {
	mu   sync.Mutex
	buf  []Entry
	next int
	full bool
	seq  uint64
}

const DefaultFeedSize = 100

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{buf: make([]Entry, size)}
}

func (f *Feed) Notify(n Notification) { f.push(Entry{Notification: &n}) }

func (f *Feed) ShowFailures(d FailureDialog) {
	d.FailedNames = append([]string(nil), d.FailedNames...)
	f.push(Entry{Dialog: &d})
}

func (f *Feed) push(e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	e.Seq = f.seq
	f.buf[f.next] = e
	f.next = (f.next + 1) % len(f.buf)
	if f.next == 0 {
		f.full = true
	}
}

// Since returns entries with Seq greater than after, oldest first.
func (f *Feed) Since(after uint64) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ordered []Entry
	if f.full {
		ordered = append(ordered, f.buf[f.next:]...)
	}
	ordered = append(ordered, f.buf[:f.next]...)
	out := make([]Entry, 0, len(ordered))
	for _, e := range ordered {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}
