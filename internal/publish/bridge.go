// Package publish emits point-in-time snapshots of the worklist to any number
// of subscribers.
package publish

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfintake/internal/metrics"
	"github.com/local/pdfintake/internal/pageset"
	"github.com/local/pdfintake/internal/worklist"
)

// File is one successful item reduced to what downstream stages need.
type File struct {
	Name          string `json:"name"`
	Bytes         []byte `json:"bytes"`
	SelectedPages []int  `json:"selectedPages"`
}

// Snapshot is an immutable export of the worklist's success items in order.
type Snapshot struct {
	Seq   uint64    `json:"seq"`
	At    time.Time `json:"at"`
	Files []File    `json:"files"`
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Seq: s.Seq, At: s.At, Files: make([]File, len(s.Files))}
	for i, f := range s.Files {
		out.Files[i] = File{
			Name:          f.Name,
			Bytes:         append([]byte(nil), f.Bytes...),
			SelectedPages: pageset.Clone(f.SelectedPages),
		}
	}
	return out
}

// ManifestFile describes a snapshot file without its content.
type ManifestFile struct {
	Name          string `json:"name"`
	Size          int    `json:"size"`
	SHA256        string `json:"sha256"`
	SelectedPages []int  `json:"selectedPages"`
}

type Manifest struct {
	Seq   uint64         `json:"seq"`
	At    time.Time      `json:"at"`
	Files []ManifestFile `json:"files"`
}

func (s Snapshot) Manifest() Manifest {
	m := Manifest{Seq: s.Seq, At: s.At, Files: make([]ManifestFile, len(s.Files))}
	for i, f := range s.Files {
		sum := sha256.Sum256(f.Bytes)
		m.Files[i] = ManifestFile{
			Name:          f.Name,
			Size:          len(f.Bytes),
			SHA256:        hex.EncodeToString(sum[:]),
			SelectedPages: pageset.Clone(f.SelectedPages),
		}
	}
	return m
}

// Subscriber receives every snapshot published while it is registered. A
// subscriber owns the snapshot it is given.
type Subscriber interface {
	Receive(s Snapshot)
}

type SubscriberFunc func(s Snapshot)

func (f SubscriberFunc) Receive(s Snapshot) { f(s) }

type subscription struct {
	id  uint64
	sub Subscriber
}

// Bridge fans snapshots out to subscribers. Delivery is at-most-once with no
// buffering: a snapshot published with no subscribers is dropped.
type Bridge struct {
	mu     sync.Mutex
	subs   []subscription
	nextID uint64
	seq    uint64
}

func NewBridge() *Bridge { return &Bridge{} }

// Subscribe registers sub and returns a function that removes it.
func (b *Bridge) Subscribe(sub Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, sub: sub})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish builds a snapshot from items, keeping success items only, and hands
// each subscriber its own copy in registration order.
func (b *Bridge) Publish(items []worklist.Item) Snapshot {
	b.mu.Lock()
	b.seq++
	snap := Snapshot{Seq: b.seq, At: time.Now(), Files: []File{}}
	subs := make([]Subscriber, len(b.subs))
	for i, s := range b.subs {
		subs[i] = s.sub
	}
	b.mu.Unlock()

	for _, it := range items {
		if it.Status != worklist.StatusSuccess {
			continue
		}
		snap.Files = append(snap.Files, File{
			Name:          it.Source.Name,
			Bytes:         append([]byte(nil), it.Bytes...),
			SelectedPages: pageset.Clone(it.SelectedPages),
		})
	}

	for _, sub := range subs {
		deliver(sub, snap.Clone())
	}
	metrics.IncSnapshot()
	log.Debug().Uint64("seq", snap.Seq).Int("files", len(snap.Files)).Int("subscribers", len(subs)).Msg("snapshot published")
	return snap
}

func deliver(sub Subscriber, s Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Uint64("seq", s.Seq).Msg("snapshot subscriber panicked")
		}
	}()
	sub.Receive(s)
}

// Latest keeps the most recently received snapshot.
type Latest struct {
	mu   sync.RWMutex
	snap Snapshot
	ok   bool
}

func (l *Latest) Receive(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap, l.ok = s, true
}

// Get returns a copy of the latest snapshot and whether one was received.
func (l *Latest) Get() (Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.ok {
		return Snapshot{}, false
	}
	return l.snap.Clone(), true
}
