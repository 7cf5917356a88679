package vfile_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vgitarchive/vgitarchive/backend/internal/vfile"
	"github.com/vgitarchive/vgitarchive/backend/pkg/archivecodec"
	"github.com/vgitarchive/vgitarchive/backend/pkg/workspace"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found on PATH")
	}
}

func setupBase(t *testing.T) {
	t.Helper()
	workspace.ResetBaseForTest()
	t.Cleanup(workspace.ResetBaseForTest)
	require.NoError(t, workspace.SetBase(t.TempDir()))
}

func newSession(t *testing.T, archive string) *vfile.Session {
	t.Helper()
	s, err := vfile.New(archive, vfile.Options{})
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// S1 - create/commit/navigate.
func TestScenarioCreateCommitNavigate(t *testing.T) {
	requireGit(t)
	setupBase(t)
	ctx := context.Background()

	archive := filepath.Join(t.TempDir(), "project.vfile")
	s := newSession(t, archive)

	require.NoError(t, s.Create(ctx))
	require.NoError(t, s.Open(ctx, false))
	defer s.Close(ctx)

	content, err := s.Content()
	require.NoError(t, err)

	writeFile(t, filepath.Join(content, "file1.txt"), "")
	require.NoError(t, s.Commit(ctx, "empty"))
	n, err := s.NumberOfVersions()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	writeFile(t, filepath.Join(content, "file1.txt"), "NanoTime 1: 1000\n")
	require.NoError(t, s.Commit(ctx, "ts1"))

	writeFile(t, filepath.Join(content, "file1.txt"), "NanoTime 1: 1000\nNanoTime 2: 2000\n")
	require.NoError(t, s.Commit(ctx, "ts2"))

	n, err = s.NumberOfVersions()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.NoError(t, s.CheckoutLatestVersion(ctx))
	lines := countLines(t, filepath.Join(content, "file1.txt"))
	require.Equal(t, 2, lines)

	require.NoError(t, s.CheckoutPreviousVersion(ctx))
	lines = countLines(t, filepath.Join(content, "file1.txt"))
	require.Equal(t, 1, lines)

	require.NoError(t, s.CheckoutPreviousVersion(ctx))
	lines = countLines(t, filepath.Join(content, "file1.txt"))
	require.Equal(t, 0, lines)

	hasPrev, err := s.HasPreviousVersion()
	require.NoError(t, err)
	require.False(t, hasPrev)
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data := readFile(t, path)
	if data == "" {
		return 0
	}
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}

// Invariant 5, round-trip: commit then checkoutLatest leaves the tree
// unchanged and reports no uncommitted changes.
func TestRoundTripCommitThenCheckoutLatest(t *testing.T) {
	requireGit(t)
	setupBase(t)
	ctx := context.Background()

	archive := filepath.Join(t.TempDir(), "roundtrip.vfile")
	s := newSession(t, archive)
	require.NoError(t, s.Create(ctx))
	require.NoError(t, s.Open(ctx, false))
	defer s.Close(ctx)

	content, err := s.Content()
	require.NoError(t, err)
	writeFile(t, filepath.Join(content, "a.txt"), "hello")
	require.NoError(t, s.Commit(ctx, "m"))

	require.NoError(t, s.CheckoutLatestVersion(ctx))

	has, err := s.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	require.False(t, has)
	require.Equal(t, "hello", readFile(t, filepath.Join(content, "a.txt")))

	writeFile(t, filepath.Join(content, "b.txt"), "world")
	lines, err := s.HumanStatus(ctx)
	require.NoError(t, err)
	found := false
	for _, l := range lines {
		if len(l) > 3 && l[3:] == "b.txt" {
			found = true
		}
	}
	require.True(t, found, "expected b.txt among %v", lines)
}

// S6 - version string grammar, exercised via controlrecord directly is
// covered in controlrecord_test.go; here, through Create()'s control
// record being written with the default version.
func TestCreateWritesValidControlRecord(t *testing.T) {
	requireGit(t)
	setupBase(t)
	ctx := context.Background()

	archive := filepath.Join(t.TempDir(), "ctl.vfile")
	s := newSession(t, archive)
	require.NoError(t, s.Create(ctx))
	require.NoError(t, s.Open(ctx, false))
	defer s.Close(ctx)

	rec, err := s.Info()
	require.NoError(t, err)
	require.Equal(t, "0.1", rec.Version)
}

// Invariant 8 / testable property 8: a second open() on the same
// archive from one process fails with ErrAlreadyOpen.
func TestSecondOpenFails(t *testing.T) {
	requireGit(t)
	setupBase(t)
	ctx := context.Background()

	archive := filepath.Join(t.TempDir(), "dup.vfile")
	s1 := newSession(t, archive)
	require.NoError(t, s1.Create(ctx))
	require.NoError(t, s1.Open(ctx, false))
	defer s1.Close(ctx)

	s2 := newSession(t, archive)
	require.ErrorIs(t, s2.Open(ctx, false), vfile.ErrAlreadyOpen)
}

// S5 - invalid archive: a zip lacking the control record fails open()
// with ErrInvalidArchive and leaves no sandbox behind.
func TestOpenInvalidArchiveLeavesNoSandbox(t *testing.T) {
	requireGit(t)
	setupBase(t)
	ctx := context.Background()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "g.txt")
	writeFile(t, garbage, "not an archive\n")

	archive := filepath.Join(t.TempDir(), "invalid.vfile")
	require.NoError(t, (archivecodec.ZipCodec{}).Pack(ctx, dir, archive))

	s := newSession(t, archive)
	err := s.Open(ctx, false)
	require.ErrorIs(t, err, vfile.ErrInvalidArchive)

	leftover, err := workspace.ExistingWorkspaces(archive)
	require.NoError(t, err)
	require.Empty(t, leftover)
}

// commit() fails with NothingToCommit (spec.md §4.3) when staging
// leaves nothing changed.
func TestCommitWithNoChangesFailsNothingToCommit(t *testing.T) {
	requireGit(t)
	setupBase(t)
	ctx := context.Background()

	archive := filepath.Join(t.TempDir(), "noop.vfile")
	s := newSession(t, archive)
	require.NoError(t, s.Create(ctx))
	require.NoError(t, s.Open(ctx, false))
	defer s.Close(ctx)

	content, err := s.Content()
	require.NoError(t, err)
	writeFile(t, filepath.Join(content, "a.txt"), "hello")
	require.NoError(t, s.Commit(ctx, "m"))

	require.ErrorIs(t, s.Commit(ctx, "again"), vfile.ErrNothingToCommit)
}

func TestSetTmpFolderMapsWorkspaceErrorToVfileError(t *testing.T) {
	workspace.ResetBaseForTest()
	defer workspace.ResetBaseForTest()

	require.NoError(t, vfile.SetTmpFolder(t.TempDir()))
	require.ErrorIs(t, vfile.SetTmpFolder(t.TempDir()), vfile.ErrTmpAlreadyInitialized)
}

// S3 - containment.
func TestScenarioContainment(t *testing.T) {
	requireGit(t)
	setupBase(t)
	ctx := context.Background()

	dirA := t.TempDir()
	archiveA := filepath.Join(dirA, "a.vfile")
	a := newSession(t, archiveA)
	require.NoError(t, a.Create(ctx))
	require.NoError(t, a.Open(ctx, false))
	commitN(t, ctx, a, 5)
	require.NoError(t, a.Close(ctx))

	dirB := t.TempDir()
	archiveB := filepath.Join(dirB, "b.vfile")
	b := newSession(t, archiveB)
	require.NoError(t, b.Create(ctx))
	require.NoError(t, b.Open(ctx, false))
	commitN(t, ctx, b, 5)
	require.NoError(t, b.Close(ctx))

	archiveC := filepath.Join(t.TempDir(), "c.vfile")
	require.NoError(t, copyFileForTest(archiveB, archiveC))
	c := newSession(t, archiveC)
	require.NoError(t, c.Open(ctx, false))
	commitN(t, ctx, c, 5)

	b2 := newSession(t, archiveB)
	require.NoError(t, b2.Open(ctx, false))
	defer b2.Close(ctx)

	a2 := newSession(t, archiveA)
	require.NoError(t, a2.Open(ctx, false))
	defer a2.Close(ctx)

	cContainsB, err := c.Contains(b2)
	require.NoError(t, err)
	require.True(t, cContainsB)

	cContainsA, err := c.Contains(a2)
	require.NoError(t, err)
	require.False(t, cContainsA)

	bContainsA, err := b2.Contains(a2)
	require.NoError(t, err)
	require.False(t, bContainsA)

	bContainsC, err := b2.Contains(c)
	require.NoError(t, err)
	require.False(t, bContainsC)

	require.NoError(t, c.Close(ctx))
}

func commitN(t *testing.T, ctx context.Context, s *vfile.Session, n int) {
	t.Helper()
	content, err := s.Content()
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		writeFile(t, filepath.Join(content, "f.txt"), repeatLine(i))
		require.NoError(t, s.Commit(ctx, "m"))
	}
}

func repeatLine(n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		out += "line\n"
	}
	return out
}

func copyFileForTest(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
