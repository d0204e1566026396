package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/local/pdfintake/internal/document"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// PageRenderer is satisfied by preview.Renderer.
type PageRenderer interface {
	RenderJPEG(data []byte, page int) ([]byte, int, int, error)
}

// Checker aggregates health checks for the intake service's dependencies.
type Checker struct {
	redis    RedisPinger
	parser   document.Parser
	renderer PageRenderer
}

// Options configures the Checker. A nil Redis means events are disabled.
type Options struct {
	Redis    RedisPinger
	Parser   document.Parser
	Renderer PageRenderer
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Redis   Status `json:"redis"`
	Parser  Status `json:"parser"`
	Preview Status `json:"preview"`
}

// Healthy reports whether the subsystems needed for intake are up. Events and
// previews are optional.
func (s Summary) Healthy() bool { return s.Parser.OK }

func New(opts Options) *Checker {
	return &Checker{redis: opts.Redis, parser: opts.Parser, renderer: opts.Renderer}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:   c.checkRedis(ctx),
		Parser:  c.checkParser(),
		Preview: c.checkPreview(),
	}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: false, Message: "Events disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

// checkParser inspects a generated two-page document.
func (c *Checker) checkParser() Status {
	if c.parser == nil {
		return Status{OK: false, Message: "Parser not configured"}
	}
	info, err := c.parser.Inspect(document.BlankPDF(2, 595, 842))
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	if info.PageCount != 2 {
		return Status{OK: false, Message: fmt.Sprintf("self-check read %d pages, want 2", info.PageCount)}
	}
	return Status{OK: true, Message: c.parser.Name()}
}

func (c *Checker) checkPreview() Status {
	if c.renderer == nil {
		return Status{OK: false, Message: "Renderer not configured"}
	}
	if _, _, _, err := c.renderer.RenderJPEG(document.BlankPDF(1, 72, 72), 0); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
