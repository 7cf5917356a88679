package vfile

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vgitarchive/vgitarchive/backend/pkg/archivecodec"
	"github.com/vgitarchive/vgitarchive/backend/pkg/historystore"
	"github.com/vgitarchive/vgitarchive/backend/pkg/workspace"
)

func requireGitInternal(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found on PATH")
	}
}

func setupBaseInternal(t *testing.T) {
	t.Helper()
	workspace.ResetBaseForTest()
	t.Cleanup(workspace.ResetBaseForTest)
	require.NoError(t, workspace.SetBase(t.TempDir()))
}

// S4 - overwrite safety. A dirty sandbox left over from a previous
// process run contains fewer commits than the on-disk archive;
// cleanup() must refuse to discard the archive's extra history.
//
// This directly attaches a `Session` to a hand-built dirty sandbox,
// bypassing `Open()`'s crash-leftover guard (spec.md §4.5 says a normal
// `open()` must fail loudly in that case on non-Windows platforms) --
// the point of this test is `canClose()`'s comparison logic, not the
// guard itself.
func TestScenarioOverwriteSafety(t *testing.T) {
	requireGitInternal(t)
	setupBaseInternal(t)
	ctx := context.Background()

	archive := filepath.Join(t.TempDir(), "n3.vfile")
	full, err := New(archive, Options{})
	require.NoError(t, err)
	require.NoError(t, full.Create(ctx))
	require.NoError(t, full.Open(ctx, false))
	content, err := full.Content()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(content, "f.txt"), []byte{byte('a' + i)}, 0o644))
		require.NoError(t, full.Commit(ctx, "m"))
	}
	require.NoError(t, full.Close(ctx))

	dirty := &Session{
		archive:  archive,
		codec:    archivecodec.ZipCodec{},
		newStore: func() historystore.Store { return historystore.NewGitStore() },
		lg:       full.lg,
	}
	sandbox, err := workspace.Allocate(archive, "")
	require.NoError(t, err)
	store := dirty.newStore()
	require.NoError(t, store.Init(ctx, sandbox))
	require.NoError(t, os.WriteFile(filepath.Join(sandbox, "f.txt"), []byte("a"), 0o644))
	require.NoError(t, store.AddAll(ctx))
	_, err = store.Commit(ctx, "m", "tester")
	require.NoError(t, err)

	commits, err := store.ListCommitsTopoReversed(ctx)
	require.NoError(t, err)
	require.Len(t, commits, 2) // root + 1, archive has root + 3

	dirty.content = sandbox
	dirty.store = store
	dirty.commits = commits
	dirty.currentVersion = len(commits) - 1
	dirty.opened = true

	err = dirty.Cleanup(ctx)
	require.ErrorIs(t, err, ErrOverwriteWouldLoseHistory)

	// The sandbox must survive a refused cleanup.
	_, statErr := os.Stat(sandbox)
	require.NoError(t, statErr)
	require.NoError(t, os.RemoveAll(sandbox))
}

func TestRecoverAttachesToLeftoverSandbox(t *testing.T) {
	requireGitInternal(t)
	setupBaseInternal(t)
	ctx := context.Background()

	archive := filepath.Join(t.TempDir(), "recover.vfile")
	s, err := New(archive, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx))
	require.NoError(t, s.Open(ctx, false))

	// Simulate a crash: forget the session without closing it so the
	// sandbox and its registry entry both remain.
	leftoverContent := s.content
	registryRemove(s.archive)
	s.opened = false

	s2, err := New(archive, Options{})
	require.NoError(t, err)
	require.NoError(t, s2.Recover(ctx))
	defer s2.Close(ctx)

	got, err := s2.Content()
	require.NoError(t, err)
	require.Equal(t, leftoverContent, got)
}
