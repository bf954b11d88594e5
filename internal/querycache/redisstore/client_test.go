package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMini(t *testing.T, opts ...Option) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rc, err := New(ctx, mr.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestGetSet(t *testing.T) {
	rc, mr := newMini(t, WithPoolSize(2), WithTimeouts(time.Second, time.Second))
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "gv:v1:parcels:p0", []byte{0x28, 0xb5}, time.Minute))
	v, ok, err := rc.Get(ctx, "gv:v1:parcels:p0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{0x28, 0xb5}, v)
	assert.Equal(t, time.Minute, mr.TTL("gv:v1:parcels:p0"))

	_, ok, err = rc.Get(ctx, "gv:v1:parcels:missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "page", []byte("v"), 2*time.Second))
	mr.FastForward(3 * time.Second)
	_, ok, err := rc.Get(ctx, "page")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire")
}

func TestDeletePrefix(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()
	for i := range 40 {
		require.NoError(t, rc.Set(ctx, fmt.Sprintf("gv:v1:demo:parcels:EPSG:4326:%d+500:x", i*500), []byte("p"), time.Minute))
	}
	require.NoError(t, rc.Set(ctx, "gv:v1:demo:roads:EPSG:4326:0+500:x", []byte("r"), time.Minute))

	n, err := rc.DeletePrefix(ctx, "gv:v1:demo:parcels:")
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, []string{"gv:v1:demo:roads:EPSG:4326:0+500:x"}, mr.Keys())

	n, err = rc.DeletePrefix(ctx, "gv:v1:demo:parcels:")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = rc.DeletePrefix(ctx, "")
	assert.Error(t, err)
}

func TestContextCanceled(t *testing.T) {
	rc, _ := newMini(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, rc.Set(ctx, "k", []byte("v"), time.Second))
	_, _, err := rc.Get(ctx, "k")
	assert.Error(t, err)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = New(ctx, addr, WithTimeouts(100*time.Millisecond, 100*time.Millisecond))
	assert.Error(t, err)
}
