package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	InitRedis(mr.Addr())
	defer Close()

	require.NotNil(t, GetClient())
	assert.NoError(t, GetClient().Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestInitRedis_FailOpen(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"bad url", "redis://%zz"},
		{"unreachable", "127.0.0.1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitRedis(tt.addr)
			assert.Nil(t, GetClient())
		})
	}
}

func TestNewClient_URL(t *testing.T) {
	t.Parallel()
	c, err := NewClient("redis://localhost:6379/2")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.Equal(t, 2, c.Options().DB)
}
