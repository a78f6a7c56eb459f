package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/freezedry/internal/model"
)

// JSONWriter outputs captures as JSON for tooling.
type JSONWriter struct {
	baseWriter

	version      string
	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the freezedry version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps captures with the version that produced them.
type JSONReport struct {
	Version  string           `json:"version,omitempty"`
	Capture  *model.Capture   `json:"capture,omitempty"`
	Captures []*model.Capture `json:"captures,omitempty"`
}

// batchReport is the WriteAll form of JSONReport. An empty batch keeps
// its captures list.
type batchReport struct {
	Version  string           `json:"version,omitempty"`
	Captures []*model.Capture `json:"captures"`
}

// Write outputs one capture.
func (w *JSONWriter) Write(c *model.Capture) (int, error) {
	return w.writeJSON(JSONReport{Version: w.version, Capture: c})
}

// WriteAll outputs the captures of a batch.
func (w *JSONWriter) WriteAll(captures []*model.Capture) (int, error) {
	if captures == nil {
		captures = []*model.Capture{}
	}
	return w.writeJSON(batchReport{Version: w.version, Captures: captures})
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
