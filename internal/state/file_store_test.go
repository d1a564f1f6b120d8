package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupcheck/internal/port"
	"dupcheck/internal/state"
)

func TestFileStore_LoadMissing(t *testing.T) {
	s, err := state.NewFileStore(filepath.Join(t.TempDir(), "state.toml"))
	require.NoError(t, err)

	st, err := s.Load()

	require.NoError(t, err)
	assert.Equal(t, &port.LastUsed{}, st)
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.toml")
	s, err := state.NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Save(&port.LastUsed{
		Reference: "/data/invoices.db",
		Candidate: "s3://ap-exports/march.xlsx",
		Sheet:     "March",
	}))

	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/invoices.db", st.Reference)
	assert.Equal(t, "s3://ap-exports/march.xlsx", st.Candidate)
	assert.Equal(t, "March", st.Sheet)
	assert.WithinDuration(t, time.Now(), st.UpdatedAt, time.Minute)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/data/invoices.db")
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	require.NoError(t, os.WriteFile(path, []byte("reference = [unterminated"), 0o600))
	s, err := state.NewFileStore(path)
	require.NoError(t, err)

	_, err = s.Load()

	assert.Error(t, err)
}

func TestModTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ref.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	got, ok := state.ModTime(path)
	require.True(t, ok)
	assert.True(t, stamp.Equal(got))

	_, ok = state.ModTime(dir)
	assert.False(t, ok)
	_, ok = state.ModTime("store")
	assert.False(t, ok)
	_, ok = state.ModTime("")
	assert.False(t, ok)
}
