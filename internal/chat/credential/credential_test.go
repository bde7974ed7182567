package credential

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadClear(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nested", "creds.yaml"))

	c, err := s.Load()
	require.NoError(t, err)
	require.False(t, c.Valid())

	want := Credential{Token: "tok", UserID: "u1", Email: "agent@example.com", Role: "agent"}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, want, got)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	got, err = s.Load()
	require.NoError(t, err)
	require.False(t, got.Valid())
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unterminated"), 0o600))

	_, err := NewStore(path).Load()
	require.Error(t, err)
}
