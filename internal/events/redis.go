// Package events mirrors intake activity onto Redis pub/sub channels so that
// out-of-process surfaces can follow it. File content never leaves the
// process: snapshots are sent as manifests.
package events

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfintake/internal/metrics"
	"github.com/local/pdfintake/internal/notify"
	"github.com/local/pdfintake/internal/publish"
	"github.com/local/pdfintake/internal/selection"
)

// Publisher is the part of the redis client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type Channels struct {
	Snapshots     string
	Notifications string
	Selections    string
}

func DefaultChannels() Channels {
	return Channels{
		Snapshots:     "pdfintake:snapshots",
		Notifications: "pdfintake:notifications",
		Selections:    "pdfintake:selections",
	}
}

// Envelope wraps every published message.
type Envelope struct {
	Type string      `json:"type"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

// SelectionRequest is the wire form of an outstanding page selection.
type SelectionRequest struct {
	RequestID            string `json:"requestId"`
	ItemID               string `json:"itemId"`
	Name                 string `json:"name"`
	Size                 int    `json:"size"`
	TotalPages           int    `json:"totalPages"`
	InitialSelectedPages []int  `json:"initialSelectedPages,omitempty"`
}

// Sink publishes snapshots, notifications and selection requests. It
// implements publish.Subscriber, notify.Notifier and selection.Surface.
type Sink struct {
	client  Publisher
	rc      *redis.Client // set when the sink owns the connection
	ch      Channels
	timeout time.Duration
}

// NewRedisSink connects to redisURL and verifies the connection.
func NewRedisSink(redisURL string, ch Channels) (*Sink, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	s := NewSink(c, ch)
	s.rc = c
	return s, nil
}

// NewSink publishes through client. Empty channel names fall back to the
// defaults.
func NewSink(client Publisher, ch Channels) *Sink {
	def := DefaultChannels()
	if ch.Snapshots == "" {
		ch.Snapshots = def.Snapshots
	}
	if ch.Notifications == "" {
		ch.Notifications = def.Notifications
	}
	if ch.Selections == "" {
		ch.Selections = def.Selections
	}
	return &Sink{client: client, ch: ch, timeout: 2 * time.Second}
}

func (s *Sink) Receive(snap publish.Snapshot) {
	s.send(s.ch.Snapshots, "snapshot", snap.Manifest())
}

func (s *Sink) Notify(n notify.Notification) {
	s.send(s.ch.Notifications, "notification", n)
}

func (s *Sink) ShowFailures(d notify.FailureDialog) {
	s.send(s.ch.Notifications, "failure_dialog", d)
}

func (s *Sink) Present(p selection.Pending) {
	s.send(s.ch.Selections, "selection_request", SelectionRequest{
		RequestID:            p.ID,
		ItemID:               p.ItemID,
		Name:                 p.Name,
		Size:                 len(p.Bytes),
		TotalPages:           p.TotalPages,
		InitialSelectedPages: p.InitialSelection,
	})
}

// Ping checks the owned connection.
func (s *Sink) Ping(ctx context.Context) error {
	if s.rc == nil {
		return nil
	}
	return s.rc.Ping(ctx).Err()
}

func (s *Sink) Close() error {
	if s.rc == nil {
		return nil
	}
	return s.rc.Close()
}

// send is at-most-once: failures are logged and dropped.
func (s *Sink) send(channel, typ string, data interface{}) {
	b, err := json.Marshal(Envelope{Type: typ, At: time.Now(), Data: data})
	if err != nil {
		metrics.IncEvent(channel, "error")
		log.Error().Err(err).Str("channel", channel).Str("type", typ).Msg("event encode failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Publish(ctx, channel, b).Err(); err != nil {
		metrics.IncEvent(channel, "error")
		log.Warn().Err(err).Str("channel", channel).Str("type", typ).Msg("event publish failed")
		return
	}
	metrics.IncEvent(channel, "ok")
}
