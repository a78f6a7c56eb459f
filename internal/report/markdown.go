package report

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/freezedry/internal/model"
)

// MarkdownWriter outputs GitHub-flavored Markdown summaries.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs one capture.
func (w *MarkdownWriter) Write(c *model.Capture) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("freezedry Capture")
	md.PlainText("")
	w.writeCapture(md, c)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteAll outputs an overview table followed by every capture.
func (w *MarkdownWriter) WriteAll(captures []*model.Capture) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("freezedry Captures")
	md.PlainText("")

	rows := make([][]string, len(captures))
	for i, c := range captures {
		rows[i] = []string{"`" + c.URL + "`", statusText(c), strconv.Itoa(c.TotalResources()), strconv.Itoa(len(c.Failures))}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Resources", "Unresolved"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, c := range captures {
		md.H2(c.URL)
		md.PlainText("")
		w.writeCapture(md, c)
	}
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeCapture(md *markdown.Markdown, c *model.Capture) {
	rows := [][]string{
		{"URL", "`" + c.URL + "`"},
		{"Capture", "`" + c.ID + "`"},
		{"Date", c.StartedAt.Format(timeLayout)},
		{"Duration", c.Duration().Round(1e6).String()},
		{"Mode", c.Mode},
		{"Status", statusText(c)},
	}
	if c.OutputPath != "" {
		rows = append(rows, []string{"Output", "`" + c.OutputPath + "`"})
	}
	if c.Succeeded() {
		rows = append(rows,
			[]string{"Size", humanize.Bytes(uint64(c.Bytes))}, //nolint:gosec // sizes are non-negative
			[]string{"Digest (SHA3-256)", "`" + c.Digest + "`"},
		)
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	w.writeAlert(md, c)
	if !c.Succeeded() {
		return
	}
	w.writeResources(md, c)
	w.writeFailures(md, c)
}

func statusText(c *model.Capture) string {
	switch {
	case !c.Succeeded():
		return "❌ Failed"
	case len(c.Failures) > 0:
		return "⚠️ Partial"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, c *model.Capture) {
	switch {
	case !c.Succeeded():
		md.Cautionf("The capture failed: %s", c.Error)
	case len(c.Failures) > 0:
		md.Warningf("%d subresource(s) could not be archived and still point at the web.", len(c.Failures))
	default:
		md.Tip("Every subresource was archived.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeResources(md *markdown.Markdown, c *model.Capture) {
	md.H3("Resources")
	md.PlainText("")
	if c.TotalResources() == 0 {
		md.PlainText("No subresources.")
		md.PlainText("")
		return
	}

	types := c.ResourceTypes()
	rows := make([][]string, 0, len(types)+1)
	chart := piechart.NewPieChart(io.Discard,
		piechart.WithTitle("Archived Resources by Type"),
		piechart.WithShowData(true),
	)
	for _, t := range types {
		rows = append(rows, []string{t, strconv.Itoa(c.Resources[t])})
		chart.LabelAndIntValue(t, uint64(c.Resources[t])) //nolint:gosec // counts are non-negative
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(c.TotalResources()) + "**"})
	md.Table(markdown.TableSet{Header: []string{"Type", "Count"}, Rows: rows})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, c *model.Capture) {
	if len(c.Failures) == 0 {
		return
	}
	md.H3("Unresolved")
	md.PlainText("")
	rows := make([][]string, len(c.Failures))
	for i, f := range c.Failures {
		rows[i] = []string{f.Type, truncateString(f.URL, 60), truncateString(f.Error, 80)}
	}
	md.Table(markdown.TableSet{Header: []string{"Type", "URL", "Error"}, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Archived by [freezedry](https://github.com/nao1215/freezedry)*")
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
