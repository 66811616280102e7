package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	st, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, st.AccessToken)

	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, Save(path, TokenState{AccessToken: "abc", Subject: "cli", ExpiresAt: exp}))

	st, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", st.AccessToken)
	assert.True(t, st.ExpiresAt.Equal(exp))
	assert.False(t, st.Expired(exp.Add(-time.Second)))
	assert.True(t, st.Expired(exp))

	require.NoError(t, Clear(path))
	require.NoError(t, Clear(path))
	st, err = Load(path)
	require.NoError(t, err)
	assert.Empty(t, st.AccessToken)
}

func TestZeroExpiryNeverExpires(t *testing.T) {
	assert.False(t, TokenState{AccessToken: "x"}.Expired(time.Now()))
}
