package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/freezedry/internal/model"
	"github.com/nao1215/freezedry/internal/policy"
	"github.com/nao1215/freezedry/internal/tor"
)

// Defaults.
const (
	// DefaultUserAgent is sent unless a site rule overrides it.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultMaxBodySize limits a single response body.
	DefaultMaxBodySize = 50 * 1024 * 1024

	// DefaultConcurrency bounds simultaneous network requests.
	DefaultConcurrency = 8

	// DefaultTimeout bounds a single request, body included.
	DefaultTimeout = 30 * time.Second

	maxRedirects = 10
)

// Cache stores responses by request URL.
type Cache interface {
	Lookup(ctx context.Context, url string) (*model.Response, bool, error)
	Store(ctx context.Context, url string, resp *model.Response) error
}

// Recorder receives fetch statistics.
type Recorder interface {
	ObserveFetch(status, size int, d time.Duration, cached bool, err error)
}

// Site holds request settings for one host.
type Site struct {
	Headers   map[string]string
	Cookie    string
	UserAgent string
}

// SiteFunc returns the settings for a host.
type SiteFunc func(host string) Site

// Fetcher downloads resources over HTTP.
type Fetcher struct {
	client      *http.Client
	sem         *semaphore.Weighted
	group       singleflight.Group
	cache       Cache
	recorder    Recorder
	sites       SiteFunc
	userAgent   string
	maxBodySize int64
	timeout     time.Duration
	proxied     bool
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client. Redirect handling of c is kept.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithProxy routes every request through the SOCKS5 client and allows
// onion services.
func WithProxy(c *tor.Client) Option {
	return func(f *Fetcher) {
		if c == nil {
			return
		}
		f.client = &http.Client{
			Transport:     c.Transport(),
			CheckRedirect: limitRedirects,
		}
		f.proxied = true
	}
}

// WithConcurrency bounds simultaneous network requests.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithCache sets the response cache.
func WithCache(c Cache) Option {
	return func(f *Fetcher) {
		f.cache = c
	}
}

// WithRecorder sets where fetch statistics go.
func WithRecorder(r Recorder) Option {
	return func(f *Fetcher) {
		f.recorder = r
	}
}

// WithSites sets the per-host request settings.
func WithSites(sites SiteFunc) Option {
	return func(f *Fetcher) {
		f.sites = sites
	}
}

// WithUserAgent sets the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize limits response bodies.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New returns a Fetcher using a direct connection unless configured
// otherwise.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{CheckRedirect: limitRedirects},
		sem:         semaphore.NewWeighted(DefaultConcurrency),
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		timeout:     DefaultTimeout,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func limitRedirects(_ *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, maxRedirects)
	}
	return nil
}

// Fetch implements resource.Fetcher. Error statuses are returned as
// responses; transport failures as errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(u.Scheme) {
	case "data":
		return decodeData(rawURL)
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if tor.IsOnionHost(u.Hostname()) {
		if !f.proxied {
			return nil, ErrOnionWithoutProxy
		}
		if err := tor.ValidateOnionHost(u.Hostname()); err != nil {
			return nil, err
		}
	}

	v, err, shared := f.group.Do(rawURL, func() (any, error) {
		return f.fetch(ctx, rawURL, u.Hostname())
	})
	if err != nil {
		return nil, err
	}
	if shared {
		f.logger.Debug("joined in-flight fetch", slog.String("url", rawURL))
	}
	resp := *v.(*model.Response)
	return &resp, nil
}

func decodeData(rawURL string) (*model.Response, error) {
	mediaType, data, err := policy.DecodeDataURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &model.Response{URL: rawURL, ContentType: mediaType, Body: data}, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, host string) (*model.Response, error) {
	if f.cache != nil {
		resp, ok, err := f.cache.Lookup(ctx, rawURL)
		switch {
		case err != nil:
			f.logger.Warn("response cache lookup failed", slog.String("url", rawURL), slog.String("error", err.Error()))
		case ok:
			resp.FromCache = true
			f.observe(resp.StatusCode, len(resp.Body), 0, true, nil)
			return resp, nil
		}
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.sem.Release(1)

	start := time.Now()
	resp, err := f.get(ctx, rawURL, host)
	status := 0
	size := 0
	if resp != nil {
		status, size = resp.StatusCode, len(resp.Body)
	}
	f.observe(status, size, time.Since(start), false, err)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched",
		slog.String("url", rawURL),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(resp.Body)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if f.cache != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := f.cache.Store(ctx, rawURL, resp); err != nil {
			f.logger.Warn("response cache store failed", slog.String("url", rawURL), slog.String("error", err.Error()))
		}
	}
	return resp, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL, host string) (*model.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	f.setHeaders(req, host)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.maxBodySize)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return &model.Response{
		URL:         final,
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (f *Fetcher) setHeaders(req *http.Request, host string) {
	var site Site
	if f.sites != nil {
		site = f.sites(host)
	}

	ua := f.userAgent
	if site.UserAgent != "" {
		ua = site.UserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if site.Cookie != "" {
		req.Header.Set("Cookie", site.Cookie)
	}
	for k, v := range site.Headers {
		req.Header.Set(k, v)
	}
}

func (f *Fetcher) observe(status, size int, d time.Duration, cached bool, err error) {
	if f.recorder == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	f.recorder.ObserveFetch(status, size, d, cached, err)
}
