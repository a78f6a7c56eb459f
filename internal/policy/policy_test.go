package policy

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/freezedry/internal/model"
	"github.com/nao1215/freezedry/internal/resource"
)

type mapFetcher map[string]*model.Response

func (m mapFetcher) Fetch(_ context.Context, url string) (*model.Response, error) {
	resp, ok := m[url]
	if !ok {
		return &model.Response{URL: url, StatusCode: 404}, nil
	}
	cp := *resp
	return &cp, nil
}

func page(body string) *model.Response {
	return &model.Response{StatusCode: 200, ContentType: "text/html", Body: []byte(body)}
}

func archive(t *testing.T, fetcher mapFetcher, p *Policy) string {
	t.Helper()
	root, err := resource.NewRoot(resource.Options{URL: "https://example.com/"}, resource.IO{Fetcher: fetcher, Resolver: p})
	if err != nil {
		t.Fatalf("NewRoot() error = %v", err)
	}
	out, err := root.Text(context.Background())
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	return out
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "inline", want: ModeInline},
		{in: " Directory ", want: ModeDirectory},
		{in: "ABSOLUTE", want: ModeAbsolute},
		{in: "zip", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownMode) {
					t.Errorf("ParseMode() error = %v, want ErrUnknownMode", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseMode() = %q, %v, want %q", got, err, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(ModeDirectory); !errors.Is(err, ErrNoDirectory) {
		t.Errorf("New(directory) error = %v, want ErrNoDirectory", err)
	}
	if _, err := New("tar"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("New(tar) error = %v, want ErrUnknownMode", err)
	}
	p, err := New(ModeInline)
	if err != nil || p.Mode() != ModeInline {
		t.Errorf("New(inline) = %v, %v", p, err)
	}
}

func TestInline(t *testing.T) {
	t.Parallel()

	fetcher := mapFetcher{
		"https://example.com/":      page(`<link rel="stylesheet" href="s.css"><img src="a.png">`),
		"https://example.com/s.css": {StatusCode: 200, ContentType: "text/css", Body: []byte(`p{background:url(b.png)}`)},
		"https://example.com/a.png": {StatusCode: 200, ContentType: "image/png", Body: []byte("PNG-A")},
		"https://example.com/b.png": {StatusCode: 200, ContentType: "image/png", Body: []byte("PNG-B")},
	}
	p, err := New(ModeInline)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out := archive(t, fetcher, p)

	wantImage := DataURL("image/png", []byte("PNG-A"))
	if !strings.Contains(out, `src="`+wantImage+`"`) {
		t.Errorf("image not inlined:\n%s", out)
	}
	wantSheet := DataURL("text/css", []byte(`p{background:url("`+DataURL("image/png", []byte("PNG-B"))+`")}`))
	if !strings.Contains(out, `href="`+wantSheet+`"`) {
		t.Errorf("stylesheet not inlined recursively:\n%s", out)
	}
}

func TestAbsolute(t *testing.T) {
	t.Parallel()

	fetcher := mapFetcher{"https://example.com/": page(`<img src="/img/a.png">`)}
	p, err := New(ModeAbsolute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out := archive(t, fetcher, p)
	if !strings.Contains(out, `src="https://example.com/img/a.png"`) {
		t.Errorf("image not left absolute:\n%s", out)
	}
}

func TestDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "page_files")
	store := NewDirectory(dir, "page_files")
	p, err := New(ModeDirectory, WithDirectory(store))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fetcher := mapFetcher{
		"https://example.com/":         page(`<iframe src="f.html"></iframe><img src="a.png"><img src="copy.png">`),
		"https://example.com/f.html":   page(`<img src="a.png">`),
		"https://example.com/a.png":    {StatusCode: 200, ContentType: "image/png", Body: []byte("PNG")},
		"https://example.com/copy.png": {StatusCode: 200, ContentType: "image/png", Body: []byte("PNG")},
	}
	out := archive(t, fetcher, p)

	image := FileName("https://example.com/a.png", "image/png", []byte("PNG"))
	if !strings.Contains(out, `src="page_files/`+image+`"`) {
		t.Errorf("root does not reference the prefixed file:\n%s", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, image))
	if err != nil || string(data) != "PNG" {
		t.Fatalf("stored image = %q, %v", data, err)
	}

	frameName := ""
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".html") {
			frameName = e.Name()
		}
	}
	if frameName == "" {
		t.Fatal("frame document not stored")
	}
	frame, err := os.ReadFile(filepath.Join(dir, frameName))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(frame), `src="`+image+`"`) {
		t.Errorf("nested document does not reference its sibling by name:\n%s", frame)
	}

	count, size := store.Files()
	if count != 2 || size != int64(3+len(frame)) {
		t.Errorf("Files() = %d, %d", count, size)
	}
}

func TestRules(t *testing.T) {
	t.Parallel()

	fetcher := mapFetcher{
		"https://example.com/":               page(`<img src="/ads/banner.png"><img src="/logo.png"><img src="https://cdn.example.net/x.png">`),
		"https://example.com/ads/banner.png": {StatusCode: 200, ContentType: "image/png", Body: []byte("AD")},
		"https://example.com/logo.png":       {StatusCode: 200, ContentType: "image/png", Body: []byte("LOGO")},
		"https://cdn.example.net/x.png":      {StatusCode: 200, ContentType: "image/png", Body: []byte("CDN")},
	}
	rules := func(host string) Rule {
		switch host {
		case "example.com":
			return Rule{IgnorePatterns: []string{"/ads/*"}}
		case "cdn.example.net":
			return Rule{Mode: ModeAbsolute}
		default:
			return Rule{}
		}
	}
	p, err := New(ModeInline, WithRules(rules))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out := archive(t, fetcher, p)

	for _, want := range []string{
		`src="https://example.com/ads/banner.png"`,
		`src="` + DataURL("image/png", []byte("LOGO")) + `"`,
		`src="https://cdn.example.net/x.png"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDataURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mediaType string
		want      string
	}{
		{name: "binary", mediaType: "image/png", want: "data:image/png;base64,"},
		{name: "text gets utf-8", mediaType: "text/css", want: "data:text/css;charset=utf-8;base64,"},
		{name: "text keeps charset", mediaType: "text/plain; charset=iso-8859-1", want: "data:text/plain; charset=iso-8859-1;base64,"},
		{name: "empty", mediaType: "", want: "data:application/octet-stream;base64,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DataURL(tt.mediaType, []byte("hi"))
			if got != tt.want+base64.StdEncoding.EncodeToString([]byte("hi")) {
				t.Errorf("DataURL() = %q", got)
			}
		})
	}
}

func TestDecodeDataURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		wantType string
		wantData string
		wantErr  bool
	}{
		{name: "base64", in: "data:image/png;base64,aGk=", wantType: "image/png", wantData: "hi"},
		{name: "unpadded base64", in: "data:image/png;base64,aGk", wantType: "image/png", wantData: "hi"},
		{name: "percent encoded", in: "data:text/plain,a%20b", wantType: "text/plain", wantData: "a b"},
		{name: "default type", in: "data:,x", wantType: defaultDataType, wantData: "x"},
		{name: "fragment dropped", in: "data:text/css,p{}#frag", wantType: "text/css", wantData: "p{}"},
		{name: "uppercase scheme", in: "DATA:text/plain;BASE64,aGk=", wantType: "text/plain", wantData: "hi"},
		{name: "no comma", in: "data:text/plain", wantErr: true},
		{name: "not data", in: "https://a/", wantErr: true},
		{name: "bad base64", in: "data:;base64,!!!", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotType, gotData, err := DecodeDataURL(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDataURL) {
					t.Errorf("DecodeDataURL() error = %v, want ErrInvalidDataURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDataURL() error = %v", err)
			}
			if gotType != tt.wantType || string(gotData) != tt.wantData {
				t.Errorf("DecodeDataURL() = %q, %q, want %q, %q", gotType, gotData, tt.wantType, tt.wantData)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	data := []byte("x")
	prefix := model.Digest(data)[:digestLength]
	tests := []struct {
		url, mediaType, want string
	}{
		{url: "https://a/p.jpeg", mediaType: "image/jpeg", want: ".jpg"},
		{url: "https://a/font.WOFF2", mediaType: "application/octet-stream", want: ".woff2"},
		{url: "https://a/noext", mediaType: "", want: ".bin"},
		{url: "data:image/png;base64,eA==", mediaType: "text/html; charset=utf-8", want: ".html"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			if got := FileName(tt.url, tt.mediaType, data); got != prefix+tt.want {
				t.Errorf("FileName() = %q, want %q", got, prefix+tt.want)
			}
		})
	}
}

func TestSiblingDirectory(t *testing.T) {
	t.Parallel()

	d := SiblingDirectory(filepath.Join("out", "page.html"))
	if d.Dir != filepath.Join("out", "page_files") {
		t.Errorf("Dir = %q", d.Dir)
	}
	if d.Prefix != "page_files/" {
		t.Errorf("Prefix = %q", d.Prefix)
	}
}
