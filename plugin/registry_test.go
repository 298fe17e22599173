package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
)

type counting struct {
	name    string
	created int
	batches int
	delay   time.Duration
	err     error
}

func (c *counting) Name() string { return c.name }

func (c *counting) OnLineItemCreated(_ context.Context, _ *lineitem.LineItem) error {
	c.created++
	return c.err
}

func (c *counting) OnBatchCompleted(_ context.Context, _ id.BatchID, _ string, _ int, _ error) error {
	time.Sleep(c.delay)
	c.batches++
	return nil
}

func newTestRegistry() *Registry {
	return NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Register(&counting{name: "a"}))
	assert.Error(t, r.Register(&counting{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("b"))
}

func TestImplementedInterfaces(t *testing.T) {
	assert.Equal(t, []string{"OnLineItemCreated", "OnBatchCompleted"}, implementedInterfaces(&counting{}))
}

func TestEmitSwallowsHookErrors(t *testing.T) {
	r := newTestRegistry()
	failing := &counting{name: "failing", err: errors.New("boom")}
	ok := &counting{name: "ok"}
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(ok))

	r.EmitLineItemCreated(context.Background(), &lineitem.LineItem{})
	assert.Equal(t, 1, failing.created)
	assert.Equal(t, 1, ok.created, "a failing plugin does not stop the others")
}

func TestEmitTimesOut(t *testing.T) {
	r := newTestRegistry().WithTimeout(10 * time.Millisecond)
	slow := &counting{name: "slow", delay: time.Second}
	require.NoError(t, r.Register(slow))

	start := time.Now()
	r.EmitBatchCompleted(context.Background(), id.NewBatchID(), "bulk_transition", 1, nil)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
