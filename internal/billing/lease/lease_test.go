package lease

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcess(t *testing.T) {
	ctx := context.Background()
	l := NewInProcess()

	acquired, err := l.TryAcquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = l.TryAcquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired, "held lease is not re-acquirable")

	require.NoError(t, l.Release(ctx))

	acquired, err = l.TryAcquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired, "released lease is acquirable again")
	require.NoError(t, l.Release(ctx))
}
