package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openroad/roadassist/config"
	"github.com/openroad/roadassist/core/dispute"
)

func TestNewDisputeStoreBackends(t *testing.T) {
	s, err := newDisputeStore(config.DisputesConfig{Backend: "memory"})
	require.NoError(t, err)
	_, ok := s.(*dispute.MemoryStore)
	assert.True(t, ok, "memory backend selects the in-memory store")

	path := filepath.Join(t.TempDir(), "disputes.db")
	s, err = newDisputeStore(config.DisputesConfig{Backend: "sqlite", Path: path})
	require.NoError(t, err)
	_, ok = s.(*dispute.SQLiteStore)
	assert.True(t, ok, "sqlite backend selects the durable store")
	require.NoError(t, s.Close())
}
