package cache

import (
	"context"
	"testing"

	"github.com/KOMKZ/go-yogan-tiercache/event"
	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeInvalidation(t *testing.T) {
	env := newTestManager(t, newFileTier(t))
	ctx := context.Background()
	d := event.NewDispatcher(event.WithLogger(logger.Nop()), event.WithSetAllSync(true))
	defer d.Close()

	unsubscribe, err := env.mgr.SubscribeInvalidation(d, []InvalidationRule{
		{Event: "parcel.updated", Categories: []Category{CategoryGeo}},
		{Event: "tariff.published", Categories: []Category{CategorySubsidy, CategoryRegulatory}},
	})
	require.NoError(t, err)

	require.NoError(t, env.mgr.SetBatch(ctx, CategoryGeo, Policy{}, []Item{{ID: "p1"}, {ID: "p2"}}))
	require.NoError(t, env.mgr.Set(ctx, CategorySubsidy, "aid", []byte("x"), Policy{}))
	require.NoError(t, env.mgr.Set(ctx, CategoryRegulatory, "rule", []byte("x"), Policy{}))

	// named ids: only those
	require.NoError(t, d.Dispatch(ctx, event.NewDataChanged("parcel.updated", "p1")))
	assertCached(t, env.mgr, CategoryGeo, "p1", false)
	assertCached(t, env.mgr, CategoryGeo, "p2", true)

	// no ids: whole categories
	require.NoError(t, d.Dispatch(ctx, event.NewDataChanged("tariff.published")))
	assertCached(t, env.mgr, CategorySubsidy, "aid", false)
	assertCached(t, env.mgr, CategoryRegulatory, "rule", false)
	assertCached(t, env.mgr, CategoryGeo, "p2", true)

	unsubscribe()
	require.NoError(t, d.Dispatch(ctx, event.NewDataChanged("parcel.updated", "p2")))
	assertCached(t, env.mgr, CategoryGeo, "p2", true)
}

func TestSubscribeInvalidation_RejectsBadRules(t *testing.T) {
	env := newTestManager(t, nil)
	d := event.NewDispatcher(event.WithLogger(logger.Nop()))
	defer d.Close()

	_, err := env.mgr.SubscribeInvalidation(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = env.mgr.SubscribeInvalidation(d, []InvalidationRule{{Event: "x"}})
	assert.ErrorIs(t, err, ErrConfigInvalid)
	_, err = env.mgr.SubscribeInvalidation(d, []InvalidationRule{{Event: "x", Categories: []Category{"Bad"}}})
	assert.ErrorIs(t, err, ErrConfigInvalid)
	assert.Zero(t, d.ListenerCount("x"))
}

func assertCached(t *testing.T, m *Manager, c Category, id string, want bool) {
	t.Helper()
	_, ok, err := m.Peek(context.Background(), c, id)
	require.NoError(t, err)
	assert.Equal(t, want, ok, "%s:%s", c, id)
}
