package observability_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/placement"
	"github.com/xraph/placement/id"
	"github.com/xraph/placement/lineitem"
	"github.com/xraph/placement/observability"
	"github.com/xraph/placement/store/memory"
)

func TestMetricsExtension(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	e := placement.New(memory.New(),
		placement.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		placement.WithPlugin(metrics),
	)
	require.NoError(t, e.Start(ctx))
	defer e.Stop(ctx)

	li := &lineitem.LineItem{OrderID: id.NewOrderID(), ClientID: "client_1"}
	require.NoError(t, e.CreateLineItem(ctx, li, "sales@example.com"))

	_, err := e.TransitionLineItem(ctx, li.ID, li.Version+1, lineitem.ActionCancel, placement.Payload{Actor: "ops@example.com", Reason: "x"})
	require.True(t, placement.IsConflict(err))

	_, err = e.TransitionLineItem(ctx, li.ID, li.Version, lineitem.ActionCancel, placement.Payload{Actor: "ops@example.com", Reason: "duplicate"})
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LineItemsCreated.(prometheus.Counter)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LineItemsCancelled.(prometheus.Counter)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransitionsRejected.(prometheus.Counter)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.VersionConflicts.(prometheus.Counter)), 0)

	n, err := testutil.GatherAndCount(reg, "placement_line_item_created_total", "placement_batch_size")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrometheusFactoryReusesMetrics(t *testing.T) {
	f := observability.NewPrometheusFactory(prometheus.NewRegistry())

	a := f.Counter("placement.batch.committed")
	b := f.Counter("placement.batch.committed")
	a.Inc()
	b.Add(2)
	assert.InDelta(t, 3, testutil.ToFloat64(a.(prometheus.Counter)), 0)
}
