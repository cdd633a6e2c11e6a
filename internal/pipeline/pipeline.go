package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/tracing"
)

type Step[C Context] struct {
	Name string
	Run  func(ctx context.Context, c C) error
}

type ErrorStep[C Context] struct {
	Name string
	Run  func(ctx context.Context, c C, err error) error
}

type Status int

const (
	StatusCompleted Status = iota
	StatusAborted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of one pipeline run. Err and Step are only set when
// Status is StatusFailed.
type Result struct {
	Status   Status
	Step     string
	Err      error
	Duration time.Duration
}

func (r Result) Failed() bool {
	return r.Status == StatusFailed
}

// Pipeline is the ordered step sequence bound to one consumer.
type Pipeline[C Context] struct {
	agent      string
	log        logger.Logger
	steps      []Step[C]
	errorSteps []ErrorStep[C]
}

func New[C Context](agent string, log logger.Logger, steps []Step[C], errorSteps []ErrorStep[C]) *Pipeline[C] {
	return &Pipeline[C]{
		agent:      agent,
		log:        log,
		steps:      steps,
		errorSteps: errorSteps,
	}
}

func (p *Pipeline[C]) Agent() string {
	return p.agent
}

// Run executes the steps in order against c. The first failing step stops
// the happy path; every error step then runs with that error. Errors raised
// by error steps are logged and dropped, so Run never fails its caller.
func (p *Pipeline[C]) Run(ctx context.Context, c C) Result {
	start := time.Now()

	for _, step := range p.steps {
		if c.Aborted() {
			return Result{Status: StatusAborted, Duration: time.Since(start)}
		}

		if err := p.runStep(ctx, step, c); err != nil {
			p.logFailure(step.Name, c, err)
			p.runErrorSteps(ctx, c, err)
			return Result{Status: StatusFailed, Step: step.Name, Err: err, Duration: time.Since(start)}
		}
	}

	if c.Aborted() {
		return Result{Status: StatusAborted, Duration: time.Since(start)}
	}
	return Result{Status: StatusCompleted, Duration: time.Since(start)}
}

func (p *Pipeline[C]) runStep(ctx context.Context, step Step[C], c C) (err error) {
	span, ctx := tracing.StartTracerSpan(ctx, p.agent+"."+step.Name)
	defer span.Finish()
	tracing.TagComponentPipeline(span)
	tracing.TagAgent(span, p.agent)

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic in step %s: %v", step.Name, r)
		}
		tracing.TraceErr(span, err)
	}()

	return step.Run(ctx, c)
}

func (p *Pipeline[C]) runErrorSteps(ctx context.Context, c C, cause error) {
	for _, errorStep := range p.errorSteps {
		if err := p.runErrorStep(ctx, errorStep, c, cause); err != nil {
			p.log.Warnw("error step failed",
				"agent", p.agent,
				"step", errorStep.Name,
				"error", err.Error())
		}
	}
}

func (p *Pipeline[C]) runErrorStep(ctx context.Context, errorStep ErrorStep[C], c C, cause error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic in error step %s: %v", errorStep.Name, r)
		}
	}()
	return errorStep.Run(ctx, c, cause)
}

func (p *Pipeline[C]) logFailure(step string, c C, err error) {
	keysAndValues := []interface{}{
		"agent", p.agent,
		"step", step,
		"error_type", hermeserrors.Kind(err),
		"error", err.Error(),
	}
	if env := c.Envelope(); env != nil {
		keysAndValues = append(keysAndValues, "message_type", env.Type.String(), "message_id", env.MessageID)
	}
	p.log.Errorw("pipeline step failed", keysAndValues...)
}
