package archive

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/nao1215/freezedry/internal/model"
	"github.com/nao1215/freezedry/internal/policy"
	"github.com/nao1215/freezedry/internal/resource"
)

type mapFetcher struct {
	mu        sync.Mutex
	responses map[string]*model.Response
	calls     map[string]int
}

func newMapFetcher() *mapFetcher {
	return &mapFetcher{responses: make(map[string]*model.Response), calls: make(map[string]int)}
}

func (m *mapFetcher) add(url, contentType, body string) {
	m.responses[url] = &model.Response{URL: url, StatusCode: 200, ContentType: contentType, Body: []byte(body)}
}

func (m *mapFetcher) Fetch(ctx context.Context, url string) (*model.Response, error) {
	m.mu.Lock()
	m.calls[url]++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, ok := m.responses[url]
	if !ok {
		return &model.Response{URL: url, StatusCode: 404}, nil
	}
	cp := *resp
	return &cp, nil
}

func (m *mapFetcher) count(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

type fakePage struct {
	markup string
	closed bool
}

func (p *fakePage) Document(context.Context) (*html.Node, error) {
	return html.Parse(strings.NewReader(p.markup))
}

func (p *fakePage) FrameDocument(context.Context, resource.Frame) (*html.Node, error) {
	return nil, nil
}

func (p *fakePage) Close() { p.closed = true }

func inline(t *testing.T) *policy.Policy {
	t.Helper()
	p, err := policy.New(policy.ModeInline)
	if err != nil {
		t.Fatalf("policy.New() error = %v", err)
	}
	return p
}

var fixedTime = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func TestArchive(t *testing.T) {
	t.Parallel()

	f := newMapFetcher()
	f.add("https://example.com/", "text/html", `<html><head><link rel="stylesheet" href="s.css"></head>`+
		`<body><img src="a.png"><img src="missing.png"><script>alert(1)</script></body></html>`)
	f.add("https://example.com/s.css", "text/css", `body{background:url(bg.png)}`)
	f.add("https://example.com/a.png", "image/png", "PNG")
	f.add("https://example.com/bg.png", "image/png", "BG")

	a := New(f, WithClock(fixedClock), WithSettings(Settings{Memento: true}))
	c := model.NewCapture("id-1", "https://example.com/", time.Time{})
	out, err := a.Archive(context.Background(), c, inline(t))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	doc := string(out)
	if strings.Contains(doc, "<script") {
		t.Errorf("scripts should be removed:\n%s", doc)
	}
	if !strings.Contains(doc, `content="Sun, 18 Oct 2026 09:30:00 GMT"`) {
		t.Errorf("memento datetime missing:\n%s", doc)
	}
	if !strings.Contains(doc, policy.DataURL("image/png", []byte("PNG"))) {
		t.Errorf("image should be inlined:\n%s", doc)
	}
	if !strings.Contains(doc, `src="https://example.com/missing.png"`) {
		t.Errorf("failed image should keep its absolute URL:\n%s", doc)
	}

	if c.Bytes != len(out) || c.Digest != model.Digest(out) {
		t.Errorf("size/digest not recorded: %d %q", c.Bytes, c.Digest)
	}
	if !c.StartedAt.Equal(fixedTime) || !c.FinishedAt.Equal(fixedTime) {
		t.Errorf("timestamps = %v, %v", c.StartedAt, c.FinishedAt)
	}
	if c.Resources["style"] != 1 || c.Resources["image"] != 2 {
		t.Errorf("Resources = %v, want style:1 image:2", c.Resources)
	}
	if len(c.Failures) != 1 || c.Failures[0].URL != "https://example.com/missing.png" {
		t.Errorf("Failures = %+v", c.Failures)
	}
	if c.Error != "" {
		t.Errorf("Error should be left to the caller, got %q", c.Error)
	}
}

func TestArchiveWithoutMemento(t *testing.T) {
	t.Parallel()

	f := newMapFetcher()
	f.add("https://example.com/", "text/html", `<p>hi</p>`)

	a := New(f, WithSettings(Settings{ContentSecurityPolicy: "default-src 'none'"}))
	c := model.NewCapture("id", "https://example.com/", fixedTime)
	out, err := a.Archive(context.Background(), c, inline(t))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if strings.Contains(string(out), "Memento-Datetime") {
		t.Errorf("memento tags should be omitted:\n%s", out)
	}
	if !strings.Contains(string(out), "default-src &#39;none&#39;") {
		t.Errorf("custom policy missing:\n%s", out)
	}
}

func TestArchiveRootFailure(t *testing.T) {
	t.Parallel()

	a := New(newMapFetcher())
	c := model.NewCapture("id", "https://example.com/gone", fixedTime)
	_, err := a.Archive(context.Background(), c, inline(t))

	var fetchErr *resource.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != 404 {
		t.Fatalf("Archive() error = %v, want a 404 FetchError", err)
	}
	if c.Bytes != 0 {
		t.Errorf("Bytes = %d for a failed capture", c.Bytes)
	}
}

func TestArchiveDedup(t *testing.T) {
	t.Parallel()

	f := newMapFetcher()
	f.add("https://example.com/", "text/html", `<img src="a.png"><link rel="icon" href="a.png">`)
	f.add("https://example.com/a.png", "image/png", "PNG")

	a := New(f, WithSettings(Settings{Dedup: true}))
	c := model.NewCapture("id", "https://example.com/", fixedTime)
	if _, err := a.Archive(context.Background(), c, inline(t)); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if n := f.count("https://example.com/a.png"); n != 1 {
		t.Errorf("a.png fetched %d times, want 1", n)
	}
}

func TestArchiveLiveSource(t *testing.T) {
	t.Parallel()

	f := newMapFetcher()
	f.add("https://example.com/", "text/html", `<p id="app">loading</p>`)
	page := &fakePage{markup: `<html><body><p id="app">rendered</p></body></html>`}

	a := New(f, WithLiveSource(func(context.Context, string) (LivePage, error) {
		return page, nil
	}))
	c := model.NewCapture("id", "https://example.com/", fixedTime)
	out, err := a.Archive(context.Background(), c, inline(t))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if !strings.Contains(string(out), "rendered") || strings.Contains(string(out), "loading") {
		t.Errorf("live DOM should be archived:\n%s", out)
	}
	if !page.closed {
		t.Error("page should be closed")
	}
	if n := f.count("https://example.com/"); n != 0 {
		t.Errorf("root fetched %d times, want 0", n)
	}
}

func TestArchiveLiveSourceFallback(t *testing.T) {
	t.Parallel()

	f := newMapFetcher()
	f.add("https://example.com/", "text/html", `<p>downloaded</p>`)

	a := New(f, WithLiveSource(func(context.Context, string) (LivePage, error) {
		return nil, errors.New("chrome not found")
	}))
	c := model.NewCapture("id", "https://example.com/", fixedTime)
	out, err := a.Archive(context.Background(), c, inline(t))
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if !strings.Contains(string(out), "downloaded") {
		t.Errorf("downloaded markup should be archived:\n%s", out)
	}
}

func TestArchiveCanceled(t *testing.T) {
	t.Parallel()

	f := newMapFetcher()
	f.add("https://example.com/", "text/html", `<p>x</p>`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := model.NewCapture("id", "https://example.com/", fixedTime)
	if _, err := New(f).Archive(ctx, c, inline(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("Archive() error = %v, want context.Canceled", err)
	}
}

func TestOutputName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{url: "https://example.com/", want: "example.com.html"},
		{url: "https://example.com/blog/post?id=1", want: "example.com_blog_post_id_1.html"},
		{url: "http://host:8080/a b", want: "host_8080_a_b.html"},
		{url: "https://example.com/" + strings.Repeat("x", 200), want: "example.com_" + strings.Repeat("x", 88) + ".html"},
		{url: "///", want: "index.html"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := OutputName(tt.url); got != tt.want {
				t.Errorf("OutputName(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
