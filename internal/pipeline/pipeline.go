package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/freezedry/internal/model"
)

// Job is one URL travelling through a pipeline.
type Job struct {
	// Capture is the summary filled by the steps.
	Capture *model.Capture

	// Document is the archived document produced by CaptureStep.
	Document []byte

	// Steps lists the steps that completed, in order.
	Steps []string
}

// Step is one stage of a capture.
type Step interface {
	// Do executes the step. Failures that leave the job usable are
	// recorded in the job and return nil.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging.
	Name() string
}

// Pipeline runs steps in order.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running the remaining steps after one fails,
// so a failed capture still reaches history and metrics.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a Pipeline. Steps are added with AddStep.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order, checking for cancellation before each.
//
// The first step error is recorded in job.Capture.Error. It is returned
// unless the pipeline continues on error, in which case Execute returns
// nil and the error stays in the capture.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	c := job.Capture
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", c.URL,
				"reason", err,
			)
			if c.Error == "" {
				c.Error = err.Error()
			}
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "url", c.URL)
		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", c.URL,
				"error", err,
			)
			if c.Error == "" {
				c.Error = err.Error()
			}
			if !p.continueOnError {
				return err
			}
			continue
		}
		job.Steps = append(job.Steps, step.Name())
	}
	return nil
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
