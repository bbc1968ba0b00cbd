package database

import (
	"context"
	"testing"

	"github.com/KOMKZ/go-yogan-tiercache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker(t *testing.T) {
	assert.Error(t, NewHealthChecker(nil).Check(context.Background()))

	m, err := NewManager(map[string]Config{"a": {DSN: ":memory:"}}, nil, logger.Nop())
	require.NoError(t, err)

	h := NewHealthChecker(m)
	assert.Equal(t, "database", h.Name())
	assert.NoError(t, h.Check(context.Background()))

	require.NoError(t, m.Close())
	assert.Error(t, h.Check(context.Background()))
}
