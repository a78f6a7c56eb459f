package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/freezedry/internal/model"
)

const ruleWidth = 70

// timeLayout formats capture times in text reports.
const timeLayout = "2006-01-02 15:04:05 MST"

// SimpleWriter outputs plain text summaries for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists every failure instead of a count.
	verbose bool

	title cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every failed subresource.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary of one capture.
func (w *SimpleWriter) Write(c *model.Capture) (int, error) {
	var sb strings.Builder
	w.writeCapture(&sb, c)
	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

// WriteAll outputs every capture followed by batch totals.
func (w *SimpleWriter) WriteAll(captures []*model.Capture) (int, error) {
	var sb strings.Builder
	for _, c := range captures {
		w.writeCapture(&sb, c)
	}
	if len(captures) > 1 {
		w.writeTotals(&sb, captures)
	}
	w.writeFooter(&sb)
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeCapture(sb *strings.Builder, c *model.Capture) {
	rule(sb, '=')
	fmt.Fprintf(sb, "URL:       %s\n", c.URL)
	fmt.Fprintf(sb, "Capture:   %s\n", c.ID)
	fmt.Fprintf(sb, "Date:      %s\n", c.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Duration:  %s\n", c.Duration().Round(1e6))
	fmt.Fprintf(sb, "Mode:      %s\n", c.Mode)
	if c.OutputPath != "" {
		fmt.Fprintf(sb, "Output:    %s\n", c.OutputPath)
	}
	if !c.Succeeded() {
		fmt.Fprintf(sb, "Status:    FAILED - %s\n\n", c.Error)
		return
	}
	fmt.Fprintf(sb, "Size:      %s\n", humanize.Bytes(uint64(c.Bytes))) //nolint:gosec // sizes are non-negative
	fmt.Fprintf(sb, "Digest:    %s\n", c.Digest)
	if len(c.Failures) > 0 {
		fmt.Fprintf(sb, "Status:    Complete with %d unresolved subresource(s)\n", len(c.Failures))
	} else {
		sb.WriteString("Status:    Complete\n")
	}
	sb.WriteString("\n")

	w.writeResources(sb, c)
	w.writeFailures(sb, c)
}

func (w *SimpleWriter) writeResources(sb *strings.Builder, c *model.Capture) {
	rule(sb, '-')
	sb.WriteString("RESOURCES\n")
	rule(sb, '-')
	if c.TotalResources() == 0 {
		sb.WriteString("  No subresources\n\n")
		return
	}
	for _, t := range c.ResourceTypes() {
		fmt.Fprintf(sb, "  %-12s %d\n", w.title.String(t)+":", c.Resources[t])
	}
	fmt.Fprintf(sb, "  %-12s %d\n\n", "Total:", c.TotalResources())
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, c *model.Capture) {
	if len(c.Failures) == 0 {
		return
	}
	rule(sb, '-')
	fmt.Fprintf(sb, "UNRESOLVED (%d, left pointing at the web)\n", len(c.Failures))
	rule(sb, '-')
	if !w.verbose {
		sb.WriteString("  Run with --verbose to list them\n\n")
		return
	}
	for _, f := range c.Failures {
		fmt.Fprintf(sb, "  [%s] %s\n", f.Type, f.URL)
		fmt.Fprintf(sb, "    %s\n", f.Error)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTotals(sb *strings.Builder, captures []*model.Capture) {
	var failed, bytes int
	for _, c := range captures {
		if !c.Succeeded() {
			failed++
		}
		bytes += c.Bytes
	}
	rule(sb, '=')
	fmt.Fprintf(sb, "Captured %d of %d URLs, %s in total\n\n",
		len(captures)-failed, len(captures), humanize.Bytes(uint64(bytes))) //nolint:gosec // sizes are non-negative
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, '=')
	sb.WriteString("Archived by freezedry (https://github.com/nao1215/freezedry)\n")
}

func rule(sb *strings.Builder, c byte) {
	sb.WriteString(strings.Repeat(string(c), ruleWidth))
	sb.WriteString("\n")
}
