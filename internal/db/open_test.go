package db

import (
	"context"
	"testing"

	"ascii-arena/internal/config"
	"ascii-arena/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Driver = "memory"

	st, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, st)
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Driver = "sqlite"

	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
