package extension

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/placement"
	"github.com/xraph/placement/offering"
	"github.com/xraph/placement/pricingrule"
	"github.com/xraph/placement/publisher"
	"github.com/xraph/placement/store/memory"
	"github.com/xraph/placement/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Config
	}{
		{
			name: "namespaced",
			body: "extensions:\n  placement:\n    default_strategy: max_price\n    approval_redis_addr: localhost:6379\n",
			want: Config{
				StoreDriver:            DriverMemory,
				DefaultStrategy:        "max_price",
				RecalculateConcurrency: 8,
				ApprovalRedisAddr:      "localhost:6379",
			},
		},
		{
			name: "legacy key",
			body: "placement:\n  store_driver: postgres\n  recalculate_concurrency: 2\n",
			want: Config{StoreDriver: DriverPostgres, DefaultStrategy: "min_price", RecalculateConcurrency: 2},
		},
		{
			name: "top level",
			body: "disable_migrate: true\n",
			want: Config{DisableMigrate: true, StoreDriver: DriverMemory, DefaultStrategy: "min_price", RecalculateConcurrency: 8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfigFile(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestLoadConfigFileRejectsInvalid(t *testing.T) {
	_, err := LoadConfigFile(writeConfig(t, "placement:\n  default_strategy: average\n"))
	assert.ErrorContains(t, err, "average")

	_, err = LoadConfigFile(writeConfig(t, "placement:\n  store_driver: cassandra\n"))
	assert.ErrorContains(t, err, "cassandra")

	_, err = LoadConfigFile(writeConfig(t, "placement:\n  store_driver: cassandra\n  recalculate_concurrency: -1\n"))
	var merr placement.MultiError
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMergeConfigurations(t *testing.T) {
	file := Config{DefaultStrategy: "max_price"}
	prog := Config{DefaultStrategy: "override", DisableMigrate: true, ApprovalRedisKey: "k"}

	got := mergeConfigurations(file, prog)
	assert.Equal(t, "max_price", got.DefaultStrategy)
	assert.True(t, got.DisableMigrate)
	assert.Equal(t, "k", got.ApprovalRedisKey)
	assert.Equal(t, DriverMemory, got.StoreDriver)
}

func TestBuildNeedsGroveForSQLDrivers(t *testing.T) {
	e := New(WithConfig(Config{StoreDriver: DriverPostgres}))
	assert.Error(t, e.build())

	e = New(WithConfig(withDefaults(Config{})))
	require.NoError(t, e.build())
	assert.IsType(t, &memory.Store{}, e.store)
}

func TestBuildWiresRedisApprovalQueue(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	e := New(WithConfig(withDefaults(Config{})), WithApprovalRedis(mr.Addr(), "test:approvals"))
	require.NoError(t, e.build())
	eng := e.Engine()
	require.NoError(t, eng.Start(ctx))
	t.Cleanup(func() {
		_ = eng.Stop(ctx)
		_ = e.redis.Close()
	})
	require.NoError(t, e.Health(ctx))
	assert.True(t, e.ownsRedis)

	pub := &publisher.Publisher{Email: "a@blog.example"}
	require.NoError(t, eng.CreatePublisher(ctx, pub))
	o := &offering.Offering{PublisherID: pub.ID, Type: offering.TypeGuestPost, BasePrice: types.USD(50000).Ptr()}
	require.NoError(t, eng.CreateOffering(ctx, o))
	require.NoError(t, eng.CreatePricingRule(ctx, &pricingrule.Rule{
		OfferingID:       o.ID,
		Name:             "Agency Rate",
		Type:             pricingrule.TypeDiscount,
		Actions:          pricingrule.Actions{Percent: types.Percent(15)},
		RequiresApproval: true,
		IsActive:         true,
	}))

	res, err := eng.ApplyPricingRules(ctx, o.ID, pricingrule.Context{Quantity: 1})
	require.NoError(t, err)
	assert.Len(t, res.PendingApproval, 1)

	keys, err := mr.HKeys("test:approvals")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	pending, err := eng.PendingApprovals(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Agency Rate", pending[0].RuleName)
}
