package pipeline

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
)

type testContext struct {
	Base
	trace []string
	seen  error
}

func newTestContext() *testContext {
	return &testContext{Base: NewBase(nil)}
}

func record(name string) Step[*testContext] {
	return Step[*testContext]{Name: name, Run: func(_ context.Context, c *testContext) error {
		c.trace = append(c.trace, name)
		return nil
	}}
}

func failing(name string, err error) Step[*testContext] {
	return Step[*testContext]{Name: name, Run: func(_ context.Context, c *testContext) error {
		c.trace = append(c.trace, name)
		return err
	}}
}

func recordError(name string) ErrorStep[*testContext] {
	return ErrorStep[*testContext]{Name: name, Run: func(_ context.Context, c *testContext, err error) error {
		c.trace = append(c.trace, name)
		c.seen = err
		return nil
	}}
}

func TestRun_AllStepsComplete(t *testing.T) {
	p := New("test", logger.NewNopLogger(),
		[]Step[*testContext]{record("s1"), record("s2"), record("s3")},
		[]ErrorStep[*testContext]{recordError("e1")})

	c := newTestContext()
	result := p.Run(context.Background(), c)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.NoError(t, result.Err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, c.trace)
}

func TestRun_FailingStepRunsErrorStepsAndStops(t *testing.T) {
	boom := errors.New("boom")
	p := New("test", logger.NewNopLogger(),
		[]Step[*testContext]{record("s1"), failing("s2", boom), record("s3")},
		[]ErrorStep[*testContext]{recordError("e1"), recordError("e2")})

	c := newTestContext()
	result := p.Run(context.Background(), c)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "s2", result.Step)
	assert.ErrorIs(t, result.Err, boom)
	assert.Equal(t, []string{"s1", "s2", "e1", "e2"}, c.trace)
	assert.ErrorIs(t, c.seen, boom)
}

func TestRun_FailingErrorStepIsSwallowed(t *testing.T) {
	p := New("test", logger.NewNopLogger(),
		[]Step[*testContext]{failing("s1", errors.New("first"))},
		[]ErrorStep[*testContext]{
			{Name: "e1", Run: func(context.Context, *testContext, error) error { return errors.New("second") }},
			{Name: "e2", Run: func(context.Context, *testContext, error) error { panic("third") }},
			recordError("e3"),
		})

	c := newTestContext()
	var result Result
	require.NotPanics(t, func() {
		result = p.Run(context.Background(), c)
	})

	assert.Equal(t, StatusFailed, result.Status)
	assert.EqualError(t, result.Err, "first")
	assert.Equal(t, []string{"s1", "e3"}, c.trace)
}

func TestRun_AbortSkipsRemainingStepsWithoutErrorSteps(t *testing.T) {
	abort := Step[*testContext]{Name: "abort", Run: func(_ context.Context, c *testContext) error {
		c.trace = append(c.trace, "abort")
		c.Abort()
		return nil
	}}
	p := New("test", logger.NewNopLogger(),
		[]Step[*testContext]{record("s1"), abort, record("s3")},
		[]ErrorStep[*testContext]{recordError("e1")})

	c := newTestContext()
	result := p.Run(context.Background(), c)

	assert.Equal(t, StatusAborted, result.Status)
	assert.NoError(t, result.Err)
	assert.Equal(t, []string{"s1", "abort"}, c.trace)
	assert.Nil(t, c.seen)
}

func TestRun_AbortedBeforeStart(t *testing.T) {
	p := New("test", logger.NewNopLogger(), []Step[*testContext]{record("s1")}, nil)

	c := newTestContext()
	c.Abort()

	assert.Equal(t, StatusAborted, p.Run(context.Background(), c).Status)
	assert.Empty(t, c.trace)
}

func TestRun_PanickingStepBecomesFailure(t *testing.T) {
	p := New("test", logger.NewNopLogger(),
		[]Step[*testContext]{
			{Name: "explode", Run: func(context.Context, *testContext) error { panic("nil map") }},
			record("after"),
		},
		[]ErrorStep[*testContext]{recordError("e1")})

	c := newTestContext()
	result := p.Run(context.Background(), c)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Err.Error(), "panic in step explode")
	assert.Equal(t, []string{"e1"}, c.trace)
}

func TestBind_FreshContextPerMessage(t *testing.T) {
	var contexts []*testContext
	p := New("test", logger.NewNopLogger(), []Step[*testContext]{record("s1")}, nil)
	handler := Bind(p, func(env *message.Envelope) *testContext {
		c := &testContext{Base: NewBase(env)}
		contexts = append(contexts, c)
		return c
	})

	env := &message.Envelope{MessageID: "m1"}
	handler.Handle(context.Background(), env)
	handler.Handle(context.Background(), env)

	require.Len(t, contexts, 2)
	assert.NotSame(t, contexts[0], contexts[1])
	assert.Same(t, env, contexts[0].Envelope())
	assert.Equal(t, []string{"s1"}, contexts[1].trace)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "completed", StatusCompleted.String())
	assert.Equal(t, "aborted", StatusAborted.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
