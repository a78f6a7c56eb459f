package archive

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/nao1215/freezedry/internal/model"
	"github.com/nao1215/freezedry/internal/resource"
)

// LivePage is a document loaded in a browser.
type LivePage interface {
	resource.FrameSource
	Document(ctx context.Context) (*html.Node, error)
	Close()
}

// Opener loads url in a browser.
type Opener func(ctx context.Context, url string) (LivePage, error)

// Settings are the per-run capture options.
type Settings struct {
	// ContentSecurityPolicy replaces the default policy when not empty.
	ContentSecurityPolicy string

	// Memento adds provenance tags to the root document.
	Memento bool

	// KeepOriginalAttributes keeps rewritten values in data-original-*.
	KeepOriginalAttributes bool

	// Dedup downloads each URL once per capture.
	Dedup bool

	// MaxDepth bounds frame and @import nesting. Zero means the default.
	MaxDepth int
}

// Archiver captures documents.
type Archiver struct {
	fetcher  resource.Fetcher
	settings Settings
	open     Opener
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithSettings sets the capture options.
func WithSettings(s Settings) Option {
	return func(a *Archiver) {
		a.settings = s
	}
}

// WithLiveSource captures root documents from a browser instead of the
// downloaded markup.
func WithLiveSource(open Opener) Option {
	return func(a *Archiver) {
		a.open = open
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock sets the time source of capture timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an Archiver downloading through fetcher.
func New(fetcher resource.Fetcher, opts ...Option) *Archiver {
	a := &Archiver{
		fetcher:  fetcher,
		settings: Settings{Memento: true},
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive captures c.URL, resolving subresources through resolver, and
// returns the serialized document. c is filled with the outcome except for
// Error, which is left to the caller.
func (a *Archiver) Archive(ctx context.Context, c *model.Capture, resolver resource.Resolver) ([]byte, error) {
	logger := a.logger.With(slog.String("capture", c.ID), slog.String("url", c.URL))
	if c.StartedAt.IsZero() {
		c.StartedAt = a.now()
	}
	if c.Resources == nil {
		c.Resources = make(map[string]int)
	}
	tally := &tally{capture: c}

	opts := resource.Options{
		URL:                    c.URL,
		ContentSecurityPolicy:  a.settings.ContentSecurityPolicy,
		KeepOriginalAttributes: a.settings.KeepOriginalAttributes,
		MaxDepth:               a.settings.MaxDepth,
	}
	if a.settings.Memento {
		opts.Metadata = &resource.Metadata{Time: c.StartedAt}
	}
	io := resource.IO{
		Fetcher:  a.fetcher,
		Resolver: resolver,
		Observer: tally,
		Logger:   logger,
	}
	if a.settings.Dedup {
		io.Shared = resource.NewShared()
	}

	if a.open != nil {
		page, err := a.open(ctx, c.URL)
		switch {
		case err != nil && resource.IsFatal(ctx, err):
			return nil, err
		case err != nil:
			logger.Warn("browser capture failed, using downloaded markup", slog.String("error", err.Error()))
		default:
			defer page.Close()
			doc, err := page.Document(ctx)
			if err != nil {
				return nil, err
			}
			opts.Source = doc
			io.Frames = page
		}
	}

	root, err := resource.NewRoot(opts, io)
	if err != nil {
		return nil, err
	}
	text, err := root.Text(ctx)
	c.FinishedAt = a.now()
	if err != nil {
		return nil, fmt.Errorf("failed to archive %s: %w", c.URL, err)
	}

	out := []byte(text)
	c.Bytes = len(out)
	c.Digest = model.Digest(out)
	logger.Info("document archived",
		slog.Int("bytes", c.Bytes),
		slog.Int("resources", c.TotalResources()),
		slog.Int("failures", len(c.Failures)),
		slog.Duration("elapsed", c.Duration()),
	)
	return out, nil
}

// tally records resolution outcomes. Siblings resolve concurrently, so it
// is locked.
type tally struct {
	mu      sync.Mutex
	capture *model.Capture
}

func (t *tally) Resolved(r *resource.Resource, _ string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.capture.Resources[r.ResourceType()]++
}

func (t *tally) Failed(r *resource.Resource, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.capture.Failures = append(t.capture.Failures, model.Failure{
		URL:   r.URL(),
		Type:  r.ResourceType(),
		Error: err.Error(),
	})
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// maxNameLength bounds file names derived from URLs.
const maxNameLength = 100

// OutputName derives an HTML file name from a document URL:
// "https://example.com/blog/post?id=1" becomes "example.com_blog_post_id_1.html".
func OutputName(rawURL string) string {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		name = u.Host + u.Path
		if u.RawQuery != "" {
			name += "_" + u.RawQuery
		}
	}
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if len(name) > maxNameLength {
		name = strings.TrimRight(name[:maxNameLength], "._")
	}
	if name == "" {
		name = "index"
	}
	return name + ".html"
}
