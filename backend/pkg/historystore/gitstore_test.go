package historystore_test

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vgitarchive/vgitarchive/backend/pkg/historystore"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
}

func TestGitStoreInitMakesRootCommit(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	root := t.TempDir()

	s := historystore.NewGitStore()
	require.NoError(t, s.Init(ctx, root))

	commits, err := s.ListCommitsTopoReversed(ctx)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	require.Equal(t, "root", commits[0].Message)
	require.Empty(t, commits[0].Parents)
}

func TestGitStoreCommitCycle(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	root := t.TempDir()

	s := historystore.NewGitStore()
	require.NoError(t, s.Init(ctx, root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v1"), 0o644))
	require.NoError(t, s.AddAll(ctx))

	st, err := s.Status(ctx)
	require.NoError(t, err)
	require.False(t, st.IsClean())
	require.Contains(t, st.Added, "a.txt")

	id, err := s.Commit(ctx, "add a.txt", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = s.Commit(ctx, "nothing changed", "alice")
	require.ErrorIs(t, err, historystore.ErrNothingToCommit)

	commits, err := s.ListCommitsTopoReversed(ctx)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	require.Equal(t, "alice", commits[1].Author)

	entries, err := s.ReadTree(ctx, commits[1].ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a.txt", entries[0].Path)

	var buf bytes.Buffer
	require.NoError(t, s.ReadBlob(ctx, entries[0].Blob, &buf))
	require.Equal(t, "v1", buf.String())
}

func TestGitStoreOpenExisting(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	root := t.TempDir()

	require.NoError(t, historystore.NewGitStore().Init(ctx, root))

	s2 := historystore.NewGitStore()
	require.NoError(t, s2.Open(ctx, root))
	commits, err := s2.ListCommitsTopoReversed(ctx)
	require.NoError(t, err)
	require.Len(t, commits, 1)
}

func TestGitStoreHumanStatusUnquotesPaths(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	root := t.TempDir()

	s := historystore.NewGitStore()
	require.NoError(t, s.Init(ctx, root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "plain.txt"), []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "café.txt"), []byte("v1"), 0o644))

	lines, err := s.HumanStatus(ctx)
	require.NoError(t, err)

	var found string
	for _, l := range lines {
		if len(l) > 3 && l[3:] == "café.txt" {
			found = l
		}
	}
	require.NotEmpty(t, found, "expected an unquoted non-ASCII path among %v", lines)
}

func TestGitStoreRm(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	root := t.TempDir()

	s := historystore.NewGitStore()
	require.NoError(t, s.Init(ctx, root))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v1"), 0o644))
	require.NoError(t, s.AddAll(ctx))
	_, err := s.Commit(ctx, "add a.txt", "alice")
	require.NoError(t, err)

	require.NoError(t, s.Rm(ctx, "a.txt"))
	_, err = os.Stat(filepath.Join(root, "a.txt"))
	require.True(t, os.IsNotExist(err))

	id, err := s.Commit(ctx, "remove a.txt", "alice")
	require.NoError(t, err)

	entries, err := s.ReadTree(ctx, id)
	require.NoError(t, err)
	require.Empty(t, entries)
}
