package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/freezedry/internal/model"
	"github.com/nao1215/freezedry/internal/resource"
)

// Archiver builds the archived document of a capture.
type Archiver interface {
	Archive(ctx context.Context, c *model.Capture, resolver resource.Resolver) ([]byte, error)
}

// ResolverFactory returns the resolution policy for a job. Directory mode
// needs one per job, since the sibling directory follows the output path.
type ResolverFactory func(job *Job) (resource.Resolver, error)

// CaptureStep archives the job's URL into job.Document.
type CaptureStep struct {
	archiver  Archiver
	resolvers ResolverFactory
}

// NewCaptureStep creates a capture step.
func NewCaptureStep(archiver Archiver, resolvers ResolverFactory) *CaptureStep {
	return &CaptureStep{archiver: archiver, resolvers: resolvers}
}

// Name returns the step name.
func (s *CaptureStep) Name() string {
	return "capture"
}

// Do executes the capture step.
func (s *CaptureStep) Do(ctx context.Context, job *Job) error {
	resolver, err := s.resolvers(job)
	if err != nil {
		return fmt.Errorf("failed to set up resolution: %w", err)
	}
	doc, err := s.archiver.Archive(ctx, job.Capture, resolver)
	if err != nil {
		if job.Capture.FinishedAt.IsZero() {
			job.Capture.FinishedAt = time.Now()
		}
		return err
	}
	job.Document = doc
	return nil
}

// WriteStep writes job.Document to the capture's output path, or to
// stdout when it has none. Jobs without a document are skipped.
type WriteStep struct {
	stdout io.Writer
	logger *slog.Logger
}

// WriteStepOption configures a WriteStep.
type WriteStepOption func(*WriteStep)

// WithStdout sets where documents without an output path go.
func WithStdout(w io.Writer) WriteStepOption {
	return func(s *WriteStep) {
		s.stdout = w
	}
}

// WithWriteLogger sets the logger.
func WithWriteLogger(logger *slog.Logger) WriteStepOption {
	return func(s *WriteStep) {
		s.logger = logger
	}
}

// NewWriteStep creates a write step.
func NewWriteStep(opts ...WriteStepOption) *WriteStep {
	s := &WriteStep{stdout: os.Stdout, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return "write"
}

// Do executes the write step.
func (s *WriteStep) Do(_ context.Context, job *Job) error {
	if job.Document == nil {
		s.logger.Debug("nothing to write", "url", job.Capture.URL)
		return nil
	}

	path := job.Capture.OutputPath
	if path == "" {
		if _, err := s.stdout.Write(job.Document); err != nil {
			return fmt.Errorf("failed to write document: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, job.Document, 0o644); err != nil { //nolint:gosec // archives are meant to be shared
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.logger.Info("document written", "path", path, "bytes", len(job.Document))
	return nil
}

// CaptureStore persists capture summaries.
type CaptureStore interface {
	SaveCapture(ctx context.Context, c *model.Capture) error
}

// HistoryStep records the capture, failed or not.
type HistoryStep struct {
	store CaptureStore
}

// NewHistoryStep creates a history step.
func NewHistoryStep(store CaptureStore) *HistoryStep {
	return &HistoryStep{store: store}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// Do executes the history step. The write is detached from cancellation,
// so a finished capture is recorded even when the run is interrupted
// meanwhile.
func (s *HistoryStep) Do(ctx context.Context, job *Job) error {
	if err := s.store.SaveCapture(context.WithoutCancel(ctx), job.Capture); err != nil {
		return fmt.Errorf("failed to record capture: %w", err)
	}
	return nil
}

// CaptureRecorder receives finished captures.
type CaptureRecorder interface {
	ObserveCapture(c *model.Capture)
}

// MetricsStep reports the capture to a metrics recorder.
type MetricsStep struct {
	recorder CaptureRecorder
}

// NewMetricsStep creates a metrics step.
func NewMetricsStep(recorder CaptureRecorder) *MetricsStep {
	return &MetricsStep{recorder: recorder}
}

// Name returns the step name.
func (s *MetricsStep) Name() string {
	return "metrics"
}

// Do executes the metrics step.
func (s *MetricsStep) Do(_ context.Context, job *Job) error {
	s.recorder.ObserveCapture(job.Capture)
	return nil
}
