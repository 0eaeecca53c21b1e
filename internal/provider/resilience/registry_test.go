package resilience_test

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjjsocial/bjjsocial/internal/provider/resilience"
)

func TestRegistry_RegisterOnConstruction(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("platform-api")
	cfg.Registry = registry

	_ = resilience.NewClient(cfg)

	health, ok := registry.Health("platform-api")
	require.True(t, ok)
	assert.Equal(t, "platform-api", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, resilience.StatusHealthy, health.Status())
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
}

func TestRegistry_RecordOutcome(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("platform-api")
	cfg.Registry = registry
	_ = resilience.NewClient(cfg)

	registry.RecordSuccess("platform-api")
	registry.RecordFailure("platform-api", errors.New("connection refused"))

	health, ok := registry.Health("platform-api")
	require.True(t, ok)
	assert.NotNil(t, health.LastSuccessAt)
	assert.NotNil(t, health.LastFailureAt)
	assert.Equal(t, "connection refused", health.LastError)
}

func TestRegistry_UnknownUpstream(t *testing.T) {
	registry := resilience.NewRegistry()

	registry.RecordSuccess("missing")
	registry.RecordFailure("missing", errors.New("boom"))

	_, ok := registry.Health("missing")
	assert.False(t, ok)
	assert.Empty(t, registry.Snapshot())
	assert.True(t, registry.Healthy())
}

func TestRegistry_SnapshotOrdered(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"rest", "cloudinary", "postgres"} {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		_ = resilience.NewClient(cfg)
	}

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "cloudinary", snapshot[0].Name)
	assert.Equal(t, "postgres", snapshot[1].Name)
	assert.Equal(t, "rest", snapshot[2].Name)
}

func TestUpstreamHealth_Status(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  string
	}{
		{gobreaker.StateClosed, resilience.StatusHealthy},
		{gobreaker.StateHalfOpen, resilience.StatusDegraded},
		{gobreaker.StateOpen, resilience.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := resilience.UpstreamHealth{CircuitState: tt.state}
			assert.Equal(t, tt.want, h.Status())
		})
	}
}
