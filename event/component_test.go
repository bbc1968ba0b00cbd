package event

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/KOMKZ/go-yogan-tiercache/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loaderFor(t *testing.T, yaml string) *config.Loader {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	loader, err := config.NewLoaderBuilder().WithConfigFile(path).Build()
	require.NoError(t, err)
	return loader
}

func TestComponent_Lifecycle(t *testing.T) {
	c := NewComponent()
	assert.Equal(t, "event", c.Name())
	assert.Contains(t, c.DependsOn(), "config")

	ctx := context.Background()
	require.NoError(t, c.Init(ctx, loaderFor(t, "event:\n  pool_size: 4\n  set_all_sync: true\n")))
	require.True(t, c.IsEnabled())

	var got int
	c.GetDispatcher().Subscribe("parcel.updated", ListenerFunc(func(context.Context, Event) error {
		got++
		return nil
	}), WithAsync())
	// set_all_sync turns the async listener into a synchronous one
	require.NoError(t, c.GetDispatcher().Dispatch(ctx, NewDataChanged("parcel.updated")))
	assert.Equal(t, 1, got)

	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Stop(ctx))
	assert.ErrorIs(t, c.GetDispatcher().Dispatch(ctx, NewDataChanged("parcel.updated")), ErrDispatcherClosed)
}

func TestComponent_Disabled(t *testing.T) {
	c := NewComponent()
	require.NoError(t, c.Init(context.Background(), loaderFor(t, "event:\n  enabled: false\n")))
	assert.False(t, c.IsEnabled())
	assert.Nil(t, c.GetDispatcher())
	assert.NoError(t, c.Stop(context.Background()))
}

func TestComponent_DefaultsWithoutSection(t *testing.T) {
	c := NewComponent()
	require.NoError(t, c.Init(context.Background(), loaderFor(t, "cache:\n  batch_size: 1\n")))
	assert.True(t, c.IsEnabled())
	c.Stop(context.Background())
}
