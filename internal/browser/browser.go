package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"

	"github.com/nao1215/freezedry/internal/resource"
)

// DefaultSettle is how long a page may keep running scripts after load
// before it is snapshotted.
const DefaultSettle = 2 * time.Second

// ErrNoDocument is returned when the page has no document element.
var ErrNoDocument = errors.New("page has no document")

// Browser owns a headless Chrome process.
type Browser struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	rootCtx     context.Context
	cancelRoot  context.CancelFunc

	settle time.Duration
	logger *slog.Logger
}

type config struct {
	proxy     string
	userAgent string
	settle    time.Duration
	logger    *slog.Logger
}

// Option configures a Browser.
type Option func(*config)

// WithProxy makes Chrome connect through a SOCKS5 proxy ("host:port").
func WithProxy(addr string) Option {
	return func(c *config) {
		c.proxy = addr
	}
}

// WithUserAgent overrides the browser user agent.
func WithUserAgent(ua string) Option {
	return func(c *config) {
		c.userAgent = ua
	}
}

// WithSettle sets how long to wait after load before snapshotting.
func WithSettle(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.settle = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New starts a headless Chrome.
func New(opts ...Option) (*Browser, error) {
	cfg := config{settle: DefaultSettle, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer("socks5://"+cfg.proxy))
	}
	if cfg.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(cfg.userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	rootCtx, cancelRoot := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		cfg.logger.Debug(fmt.Sprintf(format, args...))
	}))
	// The first Run starts the browser process.
	if err := chromedp.Run(rootCtx); err != nil {
		cancelRoot()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Browser{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		rootCtx:     rootCtx,
		cancelRoot:  cancelRoot,
		settle:      cfg.settle,
		logger:      cfg.logger,
	}, nil
}

// Close stops the browser.
func (b *Browser) Close() {
	b.cancelRoot()
	b.cancelAlloc()
}

// Page is one loaded tab.
type Page struct {
	url    string
	tabCtx context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// Open loads url in a new tab with the given extra request headers and
// waits for it to settle.
func (b *Browser) Open(ctx context.Context, url string, headers map[string]string) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.rootCtx)
	p := &Page{url: url, tabCtx: tabCtx, cancel: cancel, logger: b.logger.With(slog.String("url", url))}

	actions := []chromedp.Action{network.Enable()}
	if len(headers) > 0 {
		h := make(network.Headers, len(headers))
		for k, v := range headers {
			h[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(h))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if b.settle > 0 {
		actions = append(actions, chromedp.Sleep(b.settle))
	}

	if err := p.run(ctx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}
	p.logger.Debug("page loaded in browser")
	return p, nil
}

// Close closes the tab.
func (p *Page) Close() {
	p.cancel()
}

// run executes actions in the tab, stopping when ctx is done.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Document snapshots the current DOM of the top-level document.
func (p *Page) Document(ctx context.Context) (*html.Node, error) {
	var markup string
	if err := p.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", p.url, err)
	}
	return parseSnapshot(p.url, markup)
}

// frameScript walks a frame path from the top document and returns the
// outer HTML of the frame's document element. It yields null when an
// element is missing or a frame is cross-origin.
const frameScript = `(function (paths) {
	let doc = document;
	for (const path of paths) {
		let n = doc;
		for (const i of path) {
			n = n && n.children[i];
		}
		if (!n || (n.tagName !== "IFRAME" && n.tagName !== "FRAME")) {
			return null;
		}
		try {
			doc = n.contentDocument;
		} catch (e) {
			return null;
		}
		if (!doc || !doc.documentElement) {
			return null;
		}
	}
	return doc.documentElement.outerHTML;
})(%s)`

// FrameDocument implements resource.FrameSource. Cross-origin frames give
// nil and no error, so the caller downloads them instead.
func (p *Page) FrameDocument(ctx context.Context, frame resource.Frame) (*html.Node, error) {
	if len(frame.Path) == 0 {
		return p.Document(ctx)
	}
	expr, err := frameExpression(frame.Path)
	if err != nil {
		return nil, err
	}

	var markup *string
	if err := p.run(ctx, chromedp.Evaluate(expr, &markup)); err != nil {
		return nil, fmt.Errorf("failed to read frame %s: %w", frame.URL, err)
	}
	if markup == nil {
		p.logger.Debug("frame not reachable in browser", slog.String("frame", frame.URL))
		return nil, nil
	}
	return parseSnapshot(frame.URL, *markup)
}

func parseSnapshot(url, markup string) (*html.Node, error) {
	doc, err := resource.ParseDocument(markup)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot of %s: %w", url, err)
	}
	return doc, nil
}

func frameExpression(paths [][]int) (string, error) {
	encoded, err := json.Marshal(paths)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(frameScript, encoded), nil
}
