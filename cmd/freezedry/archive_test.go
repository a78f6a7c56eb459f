package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/freezedry/internal/config"
	"github.com/nao1215/freezedry/internal/database"
	"github.com/nao1215/freezedry/internal/model"
	"github.com/nao1215/freezedry/internal/pipeline"
	"github.com/nao1215/freezedry/internal/policy"
	"github.com/nao1215/freezedry/internal/tor"
)

// newSiteServer serves a page with a stylesheet, an image and a missing
// image.
func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>t</title>` +
			`<link rel="stylesheet" href="/style.css"></head>` +
			`<body><img src="/logo.png"><img src="/missing.png">` +
			`<script>document.write("x")</script></body></html>`))
	})
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte(`body { background: url(bg.png) }`))
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("logo"))
	})
	mux.HandleFunc("/bg.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("bg"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runRoot(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// emptyConfig is a site file with no settings, so tests do not pick up a
// .freezedry of the machine running them.
func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".freezedry")
	if err := os.WriteFile(path, []byte("sites: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestArchiveCommand(t *testing.T) {
	srv := newSiteServer(t)

	t.Run("archives a page to a file and records it", func(t *testing.T) {
		cacheDir := t.TempDir()
		output := filepath.Join(t.TempDir(), "page.html")
		metricsFile := filepath.Join(t.TempDir(), "freezedry.prom")

		_, stderr, err := runRoot(t, "archive", srv.URL+"/",
			"-o", output, "--cache-dir", cacheDir, "--metrics-file", metricsFile,
			"-c", emptyConfig(t))
		if err != nil {
			t.Fatalf("archive failed: %v\n%s", err, stderr)
		}

		data, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("expected archive file: %v", err)
		}
		doc := string(data)
		if strings.Contains(doc, "<script") {
			t.Error("scripts should be removed")
		}
		if !strings.Contains(doc, policy.DataURL("image/png", []byte("logo"))) {
			t.Error("image should be inlined")
		}
		if !strings.Contains(doc, srv.URL+"/missing.png") {
			t.Error("missing image should keep its absolute URL")
		}
		if !strings.Contains(doc, "Content-Security-Policy") {
			t.Error("archive should carry a content security policy")
		}
		if !strings.Contains(stderr, "[1/1] archived "+srv.URL+"/") {
			t.Errorf("expected progress output:\n%s", stderr)
		}
		if !strings.Contains(stderr, "1 unresolved") {
			t.Errorf("expected report on stderr:\n%s", stderr)
		}

		if _, err := os.Stat(metricsFile); err != nil {
			t.Errorf("expected metrics file: %v", err)
		}

		db, err := database.Open(cacheDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		captures, err := db.ListCaptures(context.Background(), srv.URL+"/", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(captures) != 1 {
			t.Fatalf("expected 1 recorded capture, got %d", len(captures))
		}
		c := captures[0]
		if c.Bytes != len(data) || c.Digest != model.Digest(data) || c.OutputPath != output {
			t.Errorf("recorded capture = %+v", c)
		}
	})

	t.Run("archives to stdout", func(t *testing.T) {
		stdout, stderr, err := runRoot(t, "archive", srv.URL+"/",
			"--cache-dir", t.TempDir(), "--no-cache", "--no-memento", "-c", emptyConfig(t))
		if err != nil {
			t.Fatalf("archive failed: %v\n%s", err, stderr)
		}
		if !strings.HasPrefix(stdout, "<!DOCTYPE html>") {
			t.Errorf("expected the document on stdout, got %.80q", stdout)
		}
		if strings.Contains(stdout, "Memento-Datetime") {
			t.Error("memento tags should be omitted")
		}
	})

	t.Run("directory mode writes sibling files", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "page.html")
		_, stderr, err := runRoot(t, "archive", srv.URL+"/",
			"--mode", "directory", "-o", output, "--cache-dir", t.TempDir(), "-c", emptyConfig(t))
		if err != nil {
			t.Fatalf("archive failed: %v\n%s", err, stderr)
		}
		data, err := os.ReadFile(output)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `src="page_files/`) {
			t.Errorf("expected a relative file reference:\n%s", data)
		}
		entries, err := os.ReadDir(filepath.Join(filepath.Dir(output), "page_files"))
		if err != nil {
			t.Fatalf("expected page_files directory: %v", err)
		}
		// logo.png, style.css and bg.png
		if len(entries) != 3 {
			t.Errorf("expected 3 files, got %d", len(entries))
		}
	})

	t.Run("several pages go into the output directory", func(t *testing.T) {
		outDir := t.TempDir()
		_, stderr, err := runRoot(t, "archive", srv.URL+"/", srv.URL+"/gone",
			"-o", outDir, "--cache-dir", t.TempDir(), "--json", "-c", emptyConfig(t))
		if err == nil || !strings.Contains(err.Error(), "1 of 2 captures failed") {
			t.Fatalf("expected one failure, got %v", err)
		}
		entries, err := os.ReadDir(outDir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("only the successful page should be written, got %d files", len(entries))
		}
		if !strings.Contains(stderr, `"captures": [`) {
			t.Errorf("expected a JSON batch report:\n%s", stderr)
		}
	})

	t.Run("site rules leave ignored subresources absolute", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), ".freezedry")
		if err := os.WriteFile(configPath, []byte("defaults:\n  ignorePatterns:\n    - \"*.png\"\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		stdout, stderr, err := runRoot(t, "archive", srv.URL+"/",
			"--cache-dir", t.TempDir(), "--no-cache", "-c", configPath)
		if err != nil {
			t.Fatalf("archive failed: %v\n%s", err, stderr)
		}
		if !strings.Contains(stdout, `src="`+srv.URL+`/logo.png"`) {
			t.Errorf("ignored image should stay absolute:\n%s", stdout)
		}
	})
}

func TestArchiveCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no target", args: []string{"archive"}, want: "no target"},
		{name: "bad scheme", args: []string{"archive", "ftp://example.com/"}, want: "scheme must be http or https"},
		{name: "unknown mode", args: []string{"archive", "--mode", "zip", "https://example.com/"}, want: "zip"},
		{name: "directory mode without output", args: []string{"archive", "--mode", "directory", "https://example.com/"}, want: "output"},
		{name: "several targets without output", args: []string{"archive", "https://a.example/", "https://b.example/"}, want: "output"},
		{name: "conflicting reports", args: []string{"archive", "--json", "--markdown", "https://example.com/"}, want: "json"},
		{name: "tor and proxy", args: []string{"archive", "--tor", "--proxy", "127.0.0.1:9050", "https://example.com/"}, want: "proxy"},
		{name: "missing config", args: []string{"archive", "-c", "/nonexistent/.freezedry", "https://example.com/"}, want: "configuration file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runRoot(t, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSetupProxyUnreachable(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	cfg := config.NewConfig()
	cfg.ProxyAddress = addr
	client, stop, err := setupProxy(context.Background(), cfg, slog.New(slog.DiscardHandler), io.Discard)
	defer stop()
	if !errors.Is(err, tor.ErrProxyCannotConnect) {
		t.Errorf("setupProxy() error = %v, want ErrProxyCannotConnect", err)
	}
	if client != nil {
		t.Error("setupProxy() returned a client for an unreachable proxy")
	}
	if err != nil && !strings.Contains(err.Error(), addr) {
		t.Errorf("error %q does not name the proxy address", err)
	}
}

func TestNormalizeTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://example.com/", want: "https://example.com/"},
		{in: "http://example.com/a?b=c", want: "http://example.com/a?b=c"},
		{in: "example.com", want: "https://example.com"},
		{in: "exampleonion.onion/page", want: "https://exampleonion.onion/page"},
		{in: "file:///etc/passwd", wantErr: true},
		{in: "https://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeTarget(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeTarget(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("normalizeTarget(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewJobs(t *testing.T) {
	t.Parallel()

	t.Run("single target writes to the output file", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Targets = []string{"https://example.com/"}
		cfg.Output = filepath.Join(t.TempDir(), "out.html")

		jobs := newJobs(cfg)
		if len(jobs) != 1 || jobs[0].Capture.OutputPath != cfg.Output {
			t.Fatalf("jobs = %+v", jobs)
		}
		if jobs[0].Capture.ID == "" || jobs[0].Capture.Mode != config.DefaultMode {
			t.Errorf("capture = %+v", jobs[0].Capture)
		}
	})

	t.Run("several targets go into the directory", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Targets = []string{"https://example.com/", "https://example.org/a"}
		cfg.Output = "archives"

		jobs := newJobs(cfg)
		want := []string{
			filepath.Join("archives", "example.com.html"),
			filepath.Join("archives", "example.org_a.html"),
		}
		for i, job := range jobs {
			if job.Capture.OutputPath != want[i] {
				t.Errorf("job %d path = %q, want %q", i, job.Capture.OutputPath, want[i])
			}
		}
		if jobs[0].Capture.ID == jobs[1].Capture.ID {
			t.Error("capture IDs should be unique")
		}
	})

	t.Run("existing directory output", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Targets = []string{"https://example.com/"}
		cfg.Output = t.TempDir()

		jobs := newJobs(cfg)
		if want := filepath.Join(cfg.Output, "example.com.html"); jobs[0].Capture.OutputPath != want {
			t.Errorf("path = %q, want %q", jobs[0].Capture.OutputPath, want)
		}
	})
}

func TestSiteAdapters(t *testing.T) {
	t.Parallel()

	sites := &config.File{
		Defaults: config.SiteConfig{Headers: map[string]string{"Accept-Language": "en"}},
		Sites: map[string]config.SiteConfig{
			"example.com": {
				Cookie:         "sid=1",
				UserAgent:      "custom",
				Mode:           "absolute",
				IgnorePatterns: []string{"*.mp4"},
			},
		},
	}

	t.Run("fetch settings", func(t *testing.T) {
		t.Parallel()

		site := siteFunc(sites)("example.com")
		if site.Cookie != "sid=1" || site.UserAgent != "custom" || site.Headers["Accept-Language"] != "en" {
			t.Errorf("site = %+v", site)
		}
		if other := siteFunc(sites)("other.example"); other.Cookie != "" {
			t.Errorf("other host should get the defaults, got %+v", other)
		}
	})

	t.Run("resolution rules", func(t *testing.T) {
		t.Parallel()

		rule := ruleFunc(sites)("example.com")
		if rule.Mode != policy.ModeAbsolute || len(rule.IgnorePatterns) != 1 {
			t.Errorf("rule = %+v", rule)
		}
		if other := ruleFunc(sites)("other.example"); other.Mode != "" {
			t.Errorf("other host should keep the default mode, got %q", other.Mode)
		}
	})

	t.Run("resolver per job", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.SiteConfigs = sites
		job := &pipeline.Job{Capture: model.NewCapture("id", "https://example.com/", time.Now())}
		resolver, err := resolverFactory(cfg, nil)(job)
		if err != nil {
			t.Fatalf("resolverFactory() error = %v", err)
		}
		p, ok := resolver.(*policy.Policy)
		if !ok || p.Mode() != policy.ModeInline {
			t.Errorf("resolver = %T", resolver)
		}
	})
}
