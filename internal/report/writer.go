package report

import (
	"io"

	"github.com/nao1215/freezedry/internal/model"
)

// Writer renders capture summaries.
type Writer interface {
	// Write renders one capture.
	Write(c *model.Capture) (int, error)

	// WriteAll renders the captures of a batch.
	WriteAll(captures []*model.Capture) (int, error)
}

// MultiWriter writes to several Writers. It stops at the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders c with every writer.
func (m *MultiWriter) Write(c *model.Capture) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(c)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteAll renders captures with every writer.
func (m *MultiWriter) WriteAll(captures []*model.Capture) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteAll(captures)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
