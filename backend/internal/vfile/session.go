// Package `vfile` implements the versioned-file lifecycle engine: the
// session manager that couples a working area on disk with an embedded
// history store and an archive codec, as `VersionedFile.java` does in
// the original source, generalized and corrected per the design notes
// (`contains()` set-membership, always-checkout-N `checkoutLatestVersion`).
package vfile

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/vgitarchive/vgitarchive/backend/pkg/uuid"

	"github.com/vgitarchive/vgitarchive/backend/pkg/archivecodec"
	"github.com/vgitarchive/vgitarchive/backend/pkg/controlrecord"
	"github.com/vgitarchive/vgitarchive/backend/pkg/errorsx"
	"github.com/vgitarchive/vgitarchive/backend/pkg/historystore"
	"github.com/vgitarchive/vgitarchive/backend/pkg/mulog"
	"github.com/vgitarchive/vgitarchive/backend/pkg/ulid"
	"github.com/vgitarchive/vgitarchive/backend/pkg/workspace"
)

// `Logger` is the minimal structured-logging interface this package
// depends on, satisfied by both `backend/pkg/zap.Logger` (sugared Zap)
// and `backend/pkg/mulog.Logger`/`mulog.Printer`, the same
// inject-an-interface idiom `nogfsostad/shadows.Filesystem` uses.
type Logger interface {
	Infow(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
	Errorw(msg string, kv ...interface{})
}

// `Options` configures a `Session`.  Zero value is valid: the default
// codec is `archivecodec.ZipCodec{}`, the default store is
// `historystore.NewGitStore()`, and the default logger is
// `mulog.Printer{}`.
type Options struct {
	Codec         archivecodec.Codec
	NewStore      func() historystore.Store
	Logger        Logger
	FlushOnCommit bool
}

// `Session` mediates access to one archive, matching `VersionedFile` in
// the original source.  A `Session` is safe for use by one goroutine at
// a time; the engine is synchronous and single-caller per session
// (spec.md §5).
type Session struct {
	archive  string
	codec    archivecodec.Codec
	newStore func() historystore.Store
	lg       Logger

	flushOnCommit bool

	mu      sync.Mutex
	opened  bool
	content string
	store   historystore.Store

	additional ExcludeSet
	events     listenerRegistry

	commits        []historystore.Commit
	currentVersion int

	// `everOpenedInProcess` backs the Windows-only fast path of
	// `canClose()` (spec.md §4.5 item 5): on Windows, a session that has
	// already opened this archive once in this process is trusted
	// without a second unpack-and-compare probe.
	everOpenedInProcess bool
}

// `SetTmpFolder()` configures the process-wide workspace base directory
// sessions allocate their sandboxes under (spec.md §4.3). It wraps
// `workspace.SetBase()`, translating `workspace.ErrBaseAlreadySet` into
// `ErrTmpAlreadyInitialized` at this package's error-reporting
// boundary, per spec.md §7's `TmpAlreadyInitialized` failure.
func SetTmpFolder(path string) error {
	if err := workspace.SetBase(path); err != nil {
		if errorsx.Is(err, workspace.ErrBaseAlreadySet) {
			return ErrTmpAlreadyInitialized
		}
		return err
	}
	return nil
}

// `New()` constructs a closed session for the archive at `archivePath`.
func New(archivePath string, opts Options) (*Session, error) {
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, &IOFailure{Op: "new", Cause: err}
	}

	codec := opts.Codec
	if codec == nil {
		codec = archivecodec.ZipCodec{}
	}
	newStore := opts.NewStore
	if newStore == nil {
		newStore = func() historystore.Store { return historystore.NewGitStore() }
	}
	lg := opts.Logger
	if lg == nil {
		lg = mulog.Printer{}
	}

	return &Session{
		archive:       abs,
		codec:         codec,
		newStore:      newStore,
		lg:            lg,
		flushOnCommit: opts.FlushOnCommit,
	}, nil
}

// `ArchivePath()` returns the absolute path of the archive this session
// manages.
func (s *Session) ArchivePath() string { return s.archive }

func currentUserName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// `Create()` materialises an empty archive at the session's path. The
// session remains closed afterward (spec.md §4.5).
func (s *Session) Create(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return ErrAlreadyOpen
	}

	if _, err := os.Stat(s.archive); err == nil {
		return ErrExists
	} else if !os.IsNotExist(err) {
		return &IOFailure{Op: "create", Cause: err}
	}

	if !registryInsert(s.archive) {
		return ErrAlreadyOpen
	}
	defer registryRemove(s.archive)

	sandbox, err := workspace.Allocate(s.archive, "")
	if err != nil {
		return &IOFailure{Op: "create", Cause: err}
	}
	defer os.RemoveAll(sandbox)

	store := s.newStore()
	if err := store.Init(ctx, sandbox); err != nil {
		return &IOFailure{Op: "create", Cause: err}
	}
	defer store.Close()

	rec, err := controlrecord.New(controlrecord.DefaultVersion, controlrecord.DefaultDescription)
	if err != nil {
		return &IOFailure{Op: "create", Cause: err}
	}
	if err := controlrecord.WriteFile(
		filepath.Join(sandbox, controlrecord.Name), rec,
	); err != nil {
		return &IOFailure{Op: "create", Cause: err}
	}

	if err := s.codec.Pack(ctx, sandbox, s.archive, s.packExclusions()...); err != nil {
		return &IOFailure{Op: "create", Cause: err}
	}

	s.lg.Infow("vfile create ok.", "archive", s.archive)
	return nil
}

// `Open()` opens the session, unpacking the archive into a fresh
// sandbox and, if `checkoutLatest`, checking out the latest revision.
func (s *Session) Open(ctx context.Context, checkoutLatest bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return ErrAlreadyOpen
	}

	if _, err := os.Stat(s.archive); err != nil {
		return &IOFailure{Op: "open", Cause: err}
	}

	if !registryInsert(s.archive) {
		return ErrAlreadyOpen
	}
	ok := false
	defer func() {
		if !ok {
			registryRemove(s.archive)
		}
	}()

	leftover, err := workspace.ExistingWorkspaces(s.archive)
	if err != nil {
		return &IOFailure{Op: "open", Cause: err}
	}
	if len(leftover) > 0 {
		// A crash-leftover sandbox from a previous run of this
		// engine: this module targets POSIX, where the original
		// fails loudly rather than silently reusing unknown state
		// (spec.md §4.5).
		return ErrAlreadyOpen
	}

	sandbox, err := workspace.Allocate(s.archive, "")
	if err != nil {
		return &IOFailure{Op: "open", Cause: err}
	}
	sandboxOk := false
	defer func() {
		if !sandboxOk {
			os.RemoveAll(sandbox)
		}
	}()

	if err := s.codec.Unpack(ctx, s.archive, sandbox); err != nil {
		return &IOFailure{Op: "open", Cause: err}
	}

	rec, present, err := controlrecord.ReadFile(filepath.Join(sandbox, controlrecord.Name))
	if err != nil {
		return &IOFailure{Op: "open", Cause: err}
	}
	if !present || !controlrecord.IsValidVersion(rec.Version) {
		return ErrInvalidArchive
	}

	store := s.newStore()
	if err := store.Open(ctx, sandbox); err != nil {
		return &IOFailure{Op: "open", Cause: err}
	}

	commits, err := store.ListCommitsTopoReversed(ctx)
	if err != nil {
		store.Close()
		return &IOFailure{Op: "open", Cause: err}
	}

	s.content = sandbox
	s.store = store
	s.commits = commits
	s.currentVersion = len(commits) - 1
	s.opened = true
	s.everOpenedInProcess = true
	sandboxOk = true
	ok = true

	s.lg.Infow(
		"vfile open ok.",
		"archive", s.archive, "content", s.content,
		"version", s.currentVersion,
	)

	if checkoutLatest && s.currentVersion >= 1 {
		if err := s.checkoutVersionLocked(ctx, s.currentVersion); err != nil {
			return err
		}
	}
	return nil
}

// `Recover()` attaches to a sandbox left behind by a process that
// exited without calling `Close()`, instead of unpacking a fresh one,
// so that `Cleanup()`'s `canClose()` safety check can be run against
// the dirty state (spec.md §4.5, §9 "Windows deferred deletion" and the
// crash-leftover branch of `open()`). If no leftover sandbox exists, it
// behaves like `Open(ctx, false)`.
func (s *Session) Recover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return ErrAlreadyOpen
	}

	leftover, err := workspace.ExistingWorkspaces(s.archive)
	if err != nil {
		return &IOFailure{Op: "recover", Cause: err}
	}
	if len(leftover) == 0 {
		s.mu.Unlock()
		err := s.Open(ctx, false)
		s.mu.Lock()
		return err
	}

	if !registryInsert(s.archive) {
		return ErrAlreadyOpen
	}
	ok := false
	defer func() {
		if !ok {
			registryRemove(s.archive)
		}
	}()

	sandbox := leftover[0]
	store := s.newStore()
	if err := store.Open(ctx, sandbox); err != nil {
		return &IOFailure{Op: "recover", Cause: err}
	}

	commits, err := store.ListCommitsTopoReversed(ctx)
	if err != nil {
		store.Close()
		return &IOFailure{Op: "recover", Cause: err}
	}

	s.content = sandbox
	s.store = store
	s.commits = commits
	s.currentVersion = len(commits) - 1
	s.opened = true
	ok = true

	s.lg.Warnw(
		"vfile recovered leftover sandbox.",
		"archive", s.archive, "content", s.content,
	)
	return nil
}

// `Content()` returns the working area path. Requires an opened
// session.
func (s *Session) Content() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return "", ErrNotOpen
	}
	return s.content, nil
}

// `CurrentVersion()` returns the currently checked-out version index.
func (s *Session) CurrentVersion() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return 0, ErrNotOpen
	}
	return s.currentVersion, nil
}

// `NumberOfVersions()` returns `N`, the number of user-visible versions
// (excludes the private root commit).
func (s *Session) NumberOfVersions() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return 0, ErrNotOpen
	}
	return len(s.commits) - 1, nil
}

// `Commit()` stages and commits the working area, per the algorithm in
// spec.md §4.5: `status()`, `rm` every missing path, `addAll`, then
// `commit`.
func (s *Session) Commit(ctx context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return ErrNotOpen
	}

	st, err := s.store.Status(ctx)
	if err != nil {
		return &IOFailure{Op: "commit", Cause: err}
	}
	if len(st.Conflicting) > 0 {
		return ErrConflicted
	}

	if len(st.Missing) > 0 {
		if err := s.store.Rm(ctx, st.Missing...); err != nil {
			return &IOFailure{Op: "commit", Cause: err}
		}
	}
	if err := s.store.AddAll(ctx); err != nil {
		return &IOFailure{Op: "commit", Cause: err}
	}

	if message == "" {
		message = "no message"
	}
	_, err = s.store.Commit(ctx, message, currentUserName())
	if err != nil {
		if errorsx.Is(err, historystore.ErrNothingToCommit) {
			return ErrNothingToCommit
		}
		return &IOFailure{Op: "commit", Cause: err}
	}

	commits, err := s.store.ListCommitsTopoReversed(ctx)
	if err != nil {
		return &IOFailure{Op: "commit", Cause: err}
	}
	s.commits = commits
	s.currentVersion = len(commits) - 1

	s.lg.Infow("vfile commit ok.", "archive", s.archive, "version", s.currentVersion)

	if s.flushOnCommit {
		return s.flushLocked(ctx)
	}
	return nil
}

func (s *Session) checkoutVersionLocked(ctx context.Context, i int) error {
	n := len(s.commits) - 1
	if i < 1 || i > n {
		return &InvalidVersionError{I: i, N: n}
	}
	commit := s.commits[i]

	ev := VersionEvent{Session: s, Commit: commit, Version: i}
	s.events.firePreCheckout(ev)

	excl := s.cleanupExcludeSet()
	if err := cleanWorkingArea(s.content, excl); err != nil {
		return &IOFailure{Op: "checkout", Cause: err}
	}

	entries, err := s.store.ReadTree(ctx, commit.ID)
	if err != nil {
		return &IOFailure{Op: "checkout", Cause: err}
	}
	for _, entry := range entries {
		if entry.Path == controlrecord.Name {
			continue
		}
		dest := filepath.Join(s.content, filepath.FromSlash(entry.Path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return &IOFailure{Op: "checkout", Cause: err}
		}
		f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return &IOFailure{Op: "checkout", Cause: err}
		}
		err = s.store.ReadBlob(ctx, entry.Blob, f)
		closeErr := f.Close()
		if err != nil {
			return &IOFailure{Op: "checkout", Cause: err}
		}
		if closeErr != nil {
			return &IOFailure{Op: "checkout", Cause: closeErr}
		}
	}

	s.currentVersion = i
	s.events.firePostCheckout(ev)
	return nil
}

// `CheckoutVersion()` materialises version `i` into the working area.
func (s *Session) CheckoutVersion(ctx context.Context, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return ErrNotOpen
	}
	return s.checkoutVersionLocked(ctx, i)
}

// `CheckoutFirstVersion()` checks out version 1.
func (s *Session) CheckoutFirstVersion(ctx context.Context) error {
	return s.CheckoutVersion(ctx, 1)
}

// `CheckoutLatestVersion()` checks out version `N`. Unlike the original
// source's `checkoutLatestVersion` (which only acts when `N > 1`, so
// `N == 1` is never re-checked-out), this always checks out version `N`
// when `N >= 1`, per the recommended fix in spec.md §9.
func (s *Session) CheckoutLatestVersion(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.commits) - 1
	opened := s.opened
	s.mu.Unlock()
	if !opened {
		return ErrNotOpen
	}
	if n < 1 {
		return nil
	}
	return s.CheckoutVersion(ctx, n)
}

// `CheckoutPreviousVersion()` checks out `currentVersion - 1`.
func (s *Session) CheckoutPreviousVersion(ctx context.Context) error {
	s.mu.Lock()
	i := s.currentVersion - 1
	opened := s.opened
	s.mu.Unlock()
	if !opened {
		return ErrNotOpen
	}
	return s.CheckoutVersion(ctx, i)
}

// `CheckoutNextVersion()` checks out `currentVersion + 1`.
func (s *Session) CheckoutNextVersion(ctx context.Context) error {
	s.mu.Lock()
	i := s.currentVersion + 1
	opened := s.opened
	s.mu.Unlock()
	if !opened {
		return ErrNotOpen
	}
	return s.CheckoutVersion(ctx, i)
}

// `HasPreviousVersion()` reports whether `CheckoutPreviousVersion` would
// succeed.
func (s *Session) HasPreviousVersion() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return false, ErrNotOpen
	}
	return s.currentVersion-1 >= 1, nil
}

// `HasNextVersion()` reports whether `CheckoutNextVersion` would
// succeed.
func (s *Session) HasNextVersion() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return false, ErrNotOpen
	}
	return s.currentVersion+1 <= len(s.commits)-1, nil
}

// `Versions()` returns the commit records in topological-reverse order,
// index 0 is the private root commit.
func (s *Session) Versions() ([]historystore.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil, ErrNotOpen
	}
	return append([]historystore.Commit(nil), s.commits...), nil
}

// `UncommittedChanges()` returns the paths with uncommitted changes,
// excluding any matching `endings`.
func (s *Session) UncommittedChanges(ctx context.Context, endings ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil, ErrNotOpen
	}
	st, err := s.store.Status(ctx)
	if err != nil {
		return nil, &IOFailure{Op: "uncommitted-changes", Cause: err}
	}

	var out []string
	for _, p := range st.AllChanges() {
		excluded := false
		for _, e := range endings {
			if e != "" && len(p) >= len(e) && p[len(p)-len(e):] == e {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, p)
		}
	}
	return out, nil
}

// `HumanStatus()` returns the working area's status as porcelain lines
// with display-safe, unquoted paths, for a CLI `status` command to
// print directly rather than reassembling from `UncommittedChanges()`'s
// flattened path set.
func (s *Session) HumanStatus(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil, ErrNotOpen
	}
	lines, err := s.store.HumanStatus(ctx)
	if err != nil {
		return nil, &IOFailure{Op: "human-status", Cause: err}
	}
	return lines, nil
}

// `HasUncommittedChanges()` reports whether the working area has any
// uncommitted change, ignoring conflicts (which are reported
// separately, §4.2).
func (s *Session) HasUncommittedChanges(ctx context.Context) (bool, error) {
	changes, err := s.UncommittedChanges(ctx)
	if err != nil {
		return false, err
	}
	return len(changes) > 0, nil
}

// `Flush()` repacks the working area into the archive file, backing up
// the previous archive to `<archive>~` first. A no-op when the session
// is closed.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil
	}
	return s.flushLocked(ctx)
}

func (s *Session) flushLocked(ctx context.Context) error {
	backup := s.archive + "~"
	if _, err := os.Stat(s.archive); err == nil {
		if err := copyFile(s.archive, backup); err != nil {
			return &IOFailure{Op: "flush", Cause: err}
		}
	}

	if err := s.codec.Pack(ctx, s.content, s.archive, s.packExclusions()...); err != nil {
		return &IOFailure{Op: "flush", Cause: err}
	}
	s.lg.Infow("vfile flush ok.", "archive", s.archive)
	return nil
}

// `Close()` flushes, deregisters the session, then removes the
// sandbox. Idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil
	}

	err := s.flushLocked(ctx)
	registryRemove(s.archive)
	if s.store != nil {
		s.store.Close()
	}
	rmErr := os.RemoveAll(s.content)

	s.opened = false
	s.content = ""
	s.store = nil

	if err != nil {
		return err
	}
	if rmErr != nil {
		return &IOFailure{Op: "close", Cause: rmErr}
	}
	s.lg.Infow("vfile close ok.", "archive", s.archive)
	return nil
}

// `canClose()` is the overwrite-safety check (spec.md §4.5): it proves
// the dirty working area's history is a superset of the on-disk
// archive's history before `Cleanup()` is allowed to overwrite it.
func (s *Session) canClose(ctx context.Context) (bool, error) {
	// Windows-only fast path (spec.md §4.5 item 5): if this process
	// already opened this archive once, its in-memory commit list is
	// trusted without paying for a second unpack-and-compare, since a
	// mandatory file lock on Windows would make that second sandbox
	// unreliable anyway.
	if runtime.GOOS == "windows" && s.everOpenedInProcess {
		return true, nil
	}

	var probe string
	var err error
	const attempts = 10
	for i := 0; i < attempts; i++ {
		prefix := uuid.Must(uuid.NewRandom()).String() + "-"
		probe, err = workspace.Allocate(s.archive, prefix)
		if err == nil {
			break
		}
	}
	if err != nil {
		return false, ErrSandboxExhausted
	}
	defer os.RemoveAll(probe)

	if err := s.codec.Unpack(ctx, s.archive, probe); err != nil {
		return false, &IOFailure{Op: "cleanup", Cause: err}
	}
	probeStore := s.newStore()
	if err := probeStore.Open(ctx, probe); err != nil {
		return false, &IOFailure{Op: "cleanup", Cause: err}
	}
	defer probeStore.Close()

	archiveCommits, err := probeStore.ListCommitsTopoReversed(ctx)
	if err != nil {
		return false, &IOFailure{Op: "cleanup", Cause: err}
	}

	return containsAll(s.commits, archiveCommits), nil
}

// `containsAll()` reports whether every commit in `other` also appears
// in `self`, by identifier membership (spec.md §9: the original source
// compares `theirs[i]` against `ours[i]` positionally, which is almost
// certainly a bug; this implements the set-membership semantics
// spec.md §4.5 specifies instead).
func containsAll(self, other []historystore.Commit) bool {
	if len(self) < len(other) {
		return false
	}
	ids := make(map[historystore.CommitID]struct{}, len(self))
	for _, c := range self {
		ids[c.ID] = struct{}{}
	}
	for _, c := range other {
		if _, ok := ids[c.ID]; !ok {
			return false
		}
	}
	return true
}

// `Contains()` reports whether this session's history is a superset of
// `other`'s, per spec.md §4.5.
func (s *Session) Contains(other *Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return false, ErrNotOpen
	}
	other.mu.Lock()
	defer other.mu.Unlock()
	if !other.opened {
		return false, ErrNotOpen
	}
	if len(s.commits) < len(other.commits) {
		return false, nil
	}
	return containsAll(s.commits, other.commits), nil
}

// `Cleanup()` closes a session left open from a previous run, provided
// `canClose()` proves it is safe to do so.
func (s *Session) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ok, err := s.canClose(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOverwriteWouldLoseHistory
	}
	return s.Close(ctx)
}

// `SwitchToNewArchive()` retargets the session to a new archive path,
// per spec.md §4.5.
func (s *Session) SwitchToNewArchive(ctx context.Context, dest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return ErrNotOpen
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return &IOFailure{Op: "switch-to-new-archive", Cause: err}
	}

	newSandbox, err := workspace.Allocate(abs, "")
	if err != nil {
		return &IOFailure{Op: "switch-to-new-archive", Cause: err}
	}

	oldSandbox := s.content
	oldArchive := s.archive

	if newSandbox != oldSandbox {
		if err := copyTree(oldSandbox, newSandbox); err != nil {
			os.RemoveAll(newSandbox)
			return &IOFailure{Op: "switch-to-new-archive", Cause: err}
		}
	}

	store := s.newStore()
	if err := store.Open(ctx, newSandbox); err != nil {
		os.RemoveAll(newSandbox)
		return &IOFailure{Op: "switch-to-new-archive", Cause: err}
	}
	if s.store != nil {
		s.store.Close()
	}

	registryRemove(oldArchive)
	os.RemoveAll(oldSandbox)

	s.archive = abs
	s.content = newSandbox
	s.store = store
	registryInsert(abs)

	return s.flushLocked(ctx)
}

// `DeleteHistory()` checks out the latest version, then re-initialises
// the history store over the current tree, collapsing all prior
// history into a fresh private root commit followed by a single
// version holding the current tree (spec.md §4.5).
func (s *Session) DeleteHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return ErrNotOpen
	}

	if len(s.commits)-1 >= 1 {
		if err := s.checkoutVersionLocked(ctx, len(s.commits)-1); err != nil {
			return err
		}
	}

	if err := os.RemoveAll(filepath.Join(s.content, historyDirName)); err != nil {
		return &IOFailure{Op: "delete-history", Cause: err}
	}

	s.store.Close()
	store := s.newStore()
	if err := store.Init(ctx, s.content); err != nil {
		return &IOFailure{Op: "delete-history", Cause: err}
	}
	s.store = store

	_, err := store.Commit(ctx, "initial commit (cleared history)", currentUserName())
	if err != nil {
		return &IOFailure{Op: "delete-history", Cause: err}
	}

	commits, err := store.ListCommitsTopoReversed(ctx)
	if err != nil {
		return &IOFailure{Op: "delete-history", Cause: err}
	}
	s.commits = commits
	s.currentVersion = len(commits) - 1
	return nil
}

// `Exists()` reports whether `file` (relative to the working area)
// exists. Requires an opened session.
func (s *Session) Exists(file string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return false, ErrNotOpen
	}
	if file == "" {
		return false, ErrInvalidArgument
	}
	_, err := os.Stat(filepath.Join(s.content, file))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &IOFailure{Op: "exists", Cause: err}
}

// `Info()` returns the parsed control record of the currently open
// session.
func (s *Session) Info() (controlrecord.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return controlrecord.Record{}, ErrNotOpen
	}
	rec, present, err := controlrecord.ReadFile(filepath.Join(s.content, controlrecord.Name))
	if err != nil {
		return controlrecord.Record{}, &IOFailure{Op: "info", Cause: err}
	}
	if !present {
		return controlrecord.Record{}, ErrInvalidArchive
	}
	return rec, nil
}

// `IsValid()` reports whether the session's archive is a valid
// versioned archive. If the session is closed, it unpacks a throwaway
// probe sandbox to check, then removes it, as the original source's
// `isValidWithoutOpen()` does.
func (s *Session) IsValid(ctx context.Context) (bool, error) {
	s.mu.Lock()
	opened := s.opened
	content := s.content
	s.mu.Unlock()

	if opened {
		_, present, err := controlrecord.ReadFile(filepath.Join(content, controlrecord.Name))
		return present, err
	}
	return IsValidArchive(ctx, s.archive, s.codec)
}

// `IsValidArchive()` unpacks `archivePath` into a throwaway sandbox with
// `codec` and reports whether it carries a valid control record.
func IsValidArchive(ctx context.Context, archivePath string, codec archivecodec.Codec) (bool, error) {
	abs, err := filepath.Abs(archivePath)
	if err != nil {
		return false, &IOFailure{Op: "is-valid-archive", Cause: err}
	}
	if _, err := os.Stat(abs); err != nil {
		return false, nil
	}

	probe, err := workspace.Allocate(abs, uuid.Must(uuid.NewRandom()).String()+"-")
	if err != nil {
		return false, &IOFailure{Op: "is-valid-archive", Cause: err}
	}
	defer os.RemoveAll(probe)

	if err := codec.Unpack(ctx, abs, probe); err != nil {
		return false, nil
	}
	_, present, err := controlrecord.ReadFile(filepath.Join(probe, controlrecord.Name))
	if err != nil {
		return false, &IOFailure{Op: "is-valid-archive", Cause: err}
	}
	return present, nil
}

// `ExcludePathsFromCleanup()` extends the cleanup/pack exclusion set
// with relative paths.
func (s *Session) ExcludePathsFromCleanup(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.additional.addPaths(paths...)
}

// `SetExcludeEndingsFromCleanup()` extends the cleanup/pack exclusion
// set with filename suffixes.
func (s *Session) SetExcludeEndingsFromCleanup(endings ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.additional.addEndings(endings...)
}

// `AddVersionEventListener()` registers `l` and returns a handle that
// must be passed to `RemoveVersionEventListener()` to unregister it.
func (s *Session) AddVersionEventListener(l VersionEventListener) (string, error) {
	id, err := s.events.add(l)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// `RemoveVersionEventListener()` unregisters the listener previously
// returned by `AddVersionEventListener()`.
func (s *Session) RemoveVersionEventListener(handle string) error {
	id, err := ulid.Parse(handle)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	s.events.remove(id)
	return nil
}
