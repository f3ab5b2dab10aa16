package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integração: roda só com REDIS_TEST_ADDR definido.
func TestLockerIsExclusive(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR não definido")
	}
	ctx := context.Background()
	rdb, err := ConnectRedis(ctx, addr)
	require.NoError(t, err)
	defer rdb.Close()

	l := NewLocker(rdb)
	key := "test:" + uuid.NewString()

	unlock, err := l.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	unlock()
	unlock()

	unlock2, err := l.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	unlock2()
}
