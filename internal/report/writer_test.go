package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/freezedry/internal/model"
)

// createTestCapture returns a partially successful capture.
func createTestCapture() *model.Capture {
	started := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	c := model.NewCapture("0b6f6f62-6f0e-4a58-9f55-1e4d2f9d3c11", "https://example.com/", started)
	c.FinishedAt = started.Add(1500 * time.Millisecond)
	c.Mode = "inline"
	c.OutputPath = "example.com.html"
	c.Bytes = 2048
	c.Digest = strings.Repeat("ab", 32)
	c.Resources["image"] = 3
	c.Resources["style"] = 1
	c.Failures = []model.Failure{
		{URL: "https://cdn.example.net/font.woff2", Type: "font", Error: "Failed to fetch: 403"},
	}
	return c
}

func createFailedCapture() *model.Capture {
	c := model.NewCapture("id-2", "https://example.org/", time.Date(2026, 10, 18, 9, 31, 0, 0, time.UTC))
	c.Mode = "inline"
	c.Error = "context deadline exceeded"
	return c
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes the capture summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestCapture()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{
			"URL:       https://example.com/",
			"Date:      2026-10-18 09:30:00 UTC",
			"Duration:  1.5s",
			"Size:      2.0 kB",
			"Complete with 1 unresolved subresource(s)",
			"Image:",
			"Style:",
			"Total:       4",
			"Run with --verbose",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
		if strings.Contains(output, "font.woff2") {
			t.Error("failures should not be listed without verbose")
		}
	})

	t.Run("verbose lists failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestCapture()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "[font] https://cdn.example.net/font.woff2") {
			t.Errorf("expected the failure to be listed:\n%s", buf.String())
		}
	})

	t.Run("failed capture", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createFailedCapture()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "FAILED - context deadline exceeded") {
			t.Errorf("expected failure status:\n%s", output)
		}
		if strings.Contains(output, "RESOURCES") {
			t.Error("a failed capture has no resource section")
		}
	})

	t.Run("batch totals", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteAll([]*model.Capture{createTestCapture(), createFailedCapture()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Captured 1 of 2 URLs, 2.0 kB in total") {
			t.Errorf("expected totals:\n%s", buf.String())
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes one capture with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("v1.2.3")).Write(createTestCapture()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got JSONReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Version != "v1.2.3" {
			t.Errorf("Version = %q", got.Version)
		}
		if got.Capture == nil || got.Capture.Resources["image"] != 3 || len(got.Capture.Failures) != 1 {
			t.Errorf("Capture = %+v", got.Capture)
		}
		if !strings.HasSuffix(buf.String(), "}\n") {
			t.Error("expected a trailing newline")
		}
	})

	t.Run("writes a batch", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteAll([]*model.Capture{createTestCapture(), createFailedCapture()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got JSONReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got.Captures) != 2 || got.Captures[1].Error != "context deadline exceeded" {
			t.Errorf("Captures = %+v", got.Captures)
		}
	})

	t.Run("empty batch is an empty list", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteAll(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(buf.String()) != `{"captures":[]}` {
			t.Errorf("output = %q", buf.String())
		}
	})

	t.Run("empty batch keeps the list next to the version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("v1.2.3")).WriteAll([]*model.Capture{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(buf.String()) != `{"version":"v1.2.3","captures":[]}` {
			t.Errorf("output = %q", buf.String())
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestCapture()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"capture\": {") {
			t.Errorf("expected indented output:\n%s", buf.String())
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestCapture()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		for _, want := range []string{
			"# freezedry Capture",
			"`https://example.com/`",
			"⚠️ Partial",
			"[!WARNING]",
			"### Resources",
			"pie",
			"Archived Resources by Type",
			"### Unresolved",
			"font.woff2",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q:\n%s", want, output)
			}
		}
	})

	t.Run("failed capture shows a caution", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createFailedCapture()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "[!CAUTION]") || !strings.Contains(output, "context deadline exceeded") {
			t.Errorf("expected a caution alert:\n%s", output)
		}
		if strings.Contains(output, "### Resources") {
			t.Error("a failed capture has no resource section")
		}
	})

	t.Run("batch overview", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteAll([]*model.Capture{createTestCapture(), createFailedCapture()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "# freezedry Captures") || !strings.Contains(output, "## https://example.org/") {
			t.Errorf("expected overview and sections:\n%s", output)
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(*model.Capture) (int, error)      { return 0, errors.New("write failed") }
func (failingWriter) WriteAll([]*model.Capture) (int, error) { return 0, errors.New("write failed") }

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to every writer", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
		n, err := mw.Write(createTestCapture())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() || text.Len() == 0 || js.Len() == 0 {
			t.Errorf("n = %d, text = %d, json = %d", n, text.Len(), js.Len())
		}
	})

	t.Run("stops at the first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		mw := NewMultiWriter(failingWriter{}, NewSimpleWriter(&after))
		if _, err := mw.WriteAll([]*model.Capture{createTestCapture()}); err == nil {
			t.Fatal("expected an error")
		}
		if after.Len() != 0 {
			t.Error("writers after the failure should not run")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}
