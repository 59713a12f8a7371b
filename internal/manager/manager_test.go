package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segd/internal/sam"
	"segd/pkg/types"
)

func TestNewWithConfigDefaults(t *testing.T) {
	m := NewWithConfig(ManagerConfig{})
	assert.Equal(t, defaultMaxQueueDepth, m.maxQueueDepth)
	assert.Equal(t, defaultMaxWait, m.maxWait)
	assert.Equal(t, defaultCacheSize, m.cache.Capacity())
	assert.Equal(t, "cpu", m.Device())
	assert.Empty(t, m.DefaultModel())
}

func TestDefaultModelPrefersSAM2(t *testing.T) {
	m := New([]types.Model{
		{ID: "vit_b", Family: types.FamilyMicroSAM},
		{ID: "sam2-large", Family: types.FamilySAM2},
	}, "")
	assert.Equal(t, "sam2-large", m.DefaultModel())
}

func TestListModelsReturnsCopy(t *testing.T) {
	m := New([]types.Model{{ID: "a"}, {ID: "b"}}, "a")
	out := m.ListModels()
	require.Len(t, out, 2)
	// mutate returned slice and ensure internal registry remains intact
	out[0].ID = "z"
	assert.Equal(t, "a", m.ListModels()[0].ID)
}

func TestReadyReflectsInstance(t *testing.T) {
	env := newTestEnv(t)
	assert.False(t, env.m.Ready(), "not ready before any load")
	_, err := env.m.EnsureInstance(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, env.m.Ready())
	assert.True(t, hasEvent(env.pub, EventModelLoaded))
}

func TestEnsureInstance_ModelNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.m.EnsureInstance(context.Background(), "nope")
	assert.True(t, IsModelNotFound(err))

	m := New(nil, "")
	_, err = m.EnsureInstance(context.Background(), "")
	assert.True(t, IsModelNotFound(err))
}

func TestEnsureInstance_RuntimeUnavailable(t *testing.T) {
	pub := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{
		Registry:  []types.Model{{ID: "sam2-tiny", Family: types.FamilySAM2}},
		Publisher: pub,
		Opener: func(sam.Spec, sam.RuntimeConfig) (sam.Model, error) {
			return nil, sam.ErrRuntimeUnavailable
		},
	})
	_, err := m.EnsureInstance(context.Background(), "sam2-tiny")
	require.Error(t, err)
	assert.True(t, IsDependencyUnavailable(err))
	assert.True(t, errors.Is(err, sam.ErrRuntimeUnavailable))
	assert.True(t, hasEvent(pub, EventModelLoadFailed))

	st := m.Status()
	assert.Equal(t, string(StateError), st.State)
	require.Len(t, st.Models, 1)
	assert.Equal(t, string(StateError), st.Models[0].State)
	assert.NotEmpty(t, st.LastError)
	assert.False(t, m.Ready())
}

func TestEnsureInstance_LoadErrorIsRetried(t *testing.T) {
	calls := 0
	m := NewWithConfig(ManagerConfig{
		Registry: []types.Model{{ID: "sam2-tiny", Family: types.FamilySAM2}},
		Opener: func(spec sam.Spec, _ sam.RuntimeConfig) (sam.Model, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("disk hiccup")
			}
			return nil, sam.ErrRuntimeUnavailable
		},
	})
	_, err := m.EnsureInstance(context.Background(), "")
	require.Error(t, err)
	assert.False(t, IsDependencyUnavailable(err))
	_, err = m.EnsureInstance(context.Background(), "")
	assert.True(t, IsDependencyUnavailable(err))
	assert.Equal(t, 2, calls)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.m.ComputeEmbedding(context.Background(), types.ComputeEmbeddingRequest{ImagePath: env.image})
	require.NoError(t, err)

	st := env.m.Status()
	assert.Equal(t, string(StateReady), st.State)
	assert.Equal(t, uint64(1), st.LoadsTotal)
	assert.Equal(t, int64(1700000000), st.ServerTimeUnix)
	require.Len(t, st.Models, 1)
	assert.Equal(t, "sam2-tiny", st.Models[0].ModelID)
	assert.Equal(t, "sam2", st.Models[0].Family)
	assert.Equal(t, defaultMaxQueueDepth, st.Models[0].MaxQueueDepth)
	assert.Equal(t, 0, st.Models[0].Inflight)
	assert.Equal(t, 1, st.Cache.Len)
	require.Len(t, st.Cache.Entries, 1)
	assert.Equal(t, "sam2-tiny", st.Cache.Entries[0].Model)
}

func TestClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.m.ComputeEmbedding(ctx, types.ComputeEmbeddingRequest{ImagePath: env.image})
	require.NoError(t, err)

	require.NoError(t, env.m.Close())
	mdl := env.models["sam2-tiny"]
	assert.True(t, mdl.Closed())
	assert.Equal(t, 0, mdl.OpenEmbeddings())
	assert.False(t, env.m.Ready())
	assert.Equal(t, string(StateDraining), env.m.Status().State)

	_, err = env.m.ComputeEmbedding(ctx, types.ComputeEmbeddingRequest{ImagePath: env.image})
	assert.True(t, IsTooBusy(err))
	assert.NoError(t, env.m.Close(), "second close is a no-op")
}
