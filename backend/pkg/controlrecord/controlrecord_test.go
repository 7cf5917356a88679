package controlrecord_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vgitarchive/vgitarchive/backend/pkg/controlrecord"
)

func TestIsValidVersion(t *testing.T) {
	valid := []string{"0.1", "1.2.3", "3.x", "x"}
	invalid := []string{"1..2", "1.a", ""}

	for _, v := range valid {
		require.Truef(t, controlrecord.IsValidVersion(v), "expected %q to be valid", v)
	}
	for _, v := range invalid {
		require.Falsef(t, controlrecord.IsValidVersion(v), "expected %q to be invalid", v)
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, controlrecord.Name)

	rec, err := controlrecord.New(controlrecord.DefaultVersion, "a test archive")
	require.NoError(t, err)
	require.NoError(t, controlrecord.WriteFile(path, rec))

	got, ok, err := controlrecord.ReadFile(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec.Version, got.Version)
	require.Equal(t, rec.Description, got.Description)
}

func TestReadFileMissing(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := controlrecord.ReadFile(filepath.Join(dir, controlrecord.Name))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewRejectsInvalidVersion(t *testing.T) {
	_, err := controlrecord.New("1.a", "bad")
	require.ErrorIs(t, err, controlrecord.ErrInvalidVersion)
}
