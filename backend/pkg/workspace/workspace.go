// Package `workspace` allocates and locks the scratch directories a
// session unpacks an archive's working area into (spec.md §4.3,
// "Workspace Allocator").  A workspace lives below the current
// generation of the configured tmp base, named
// `<archive-basename>.vtmp<k>` for the first free `k`, the numbering
// scheme `VersionedFile.getTmpFolder()` used in the original source.
// The tmp base itself keeps up to `DefaultMaxBackups` numbered
// generations (`0` current, `1` previous, ...) for crash salvage
// (spec.md §4.7).
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vgitarchive/vgitarchive/backend/pkg/flock"
)

// `ErrBaseAlreadySet` is returned by `SetBase()` when a base directory
// has already been configured for this process.  The allocator is a
// process-wide singleton: all sessions in one process share one
// sandbox base, so the lock file at its root can be used to coordinate
// with other processes touching the same archive.
var ErrBaseAlreadySet = errors.New("workspace: base directory already set")

var (
	mu     sync.Mutex
	base   string
	baseLk *flock.Flock
)

// `DefaultMaxBackups` bounds the number of prior generations
// `SetBase()` keeps under the tmp base directory (spec.md §4.7).
const DefaultMaxBackups = 3

// `lockFileName` is the advisory lock file `SetBase()` creates directly
// under the tmp base. `RotateBackups()` excludes it by name from its
// "not a pure decimal" sweep, so it survives rotation regardless of
// lock ordering.
const lockFileName = ".vgitarchive-workspace.lock"

// `SetBase()` configures the process-wide workspace base directory and
// acquires its advisory lock (spec.md §4.3 "Lock discipline") before
// doing anything else, so a second process sharing the same `--tmp`
// base blocks on `TryLockRetry` (spec.md §5 suspension points) rather
// than racing the rotation below. `path` is the tmp base; once the
// lock is held, its numbered generations are rotated (`RotateBackups`,
// spec.md §4.7, `DefaultMaxBackups` generations) and a fresh empty `0`
// is created, which becomes the actual sandbox root sessions allocate
// into. It may be called exactly once; subsequent calls return
// `ErrBaseAlreadySet`. The lock is held until `Unlock()` is called
// explicitly or the process exits; sessions opened against archives
// under this base share it rather than acquiring one lock per session.
// Tests call `ResetBaseForTest()` to clear it between cases.
func SetBase(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if base != "" {
		return ErrBaseAlreadySet
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("workspace: set base: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("workspace: set base: %w", err)
	}

	lockPath := filepath.Join(abs, lockFileName)
	lk, err := flock.OpenOrCreate(lockPath)
	if err != nil {
		return fmt.Errorf("workspace: set base: %w", err)
	}
	if err := lk.TryLockRetry(DefaultLockAttempts, DefaultLockDelay); err != nil {
		lk.Close()
		return fmt.Errorf("workspace: set base: %w", err)
	}

	if err := RotateBackups(abs, DefaultMaxBackups); err != nil {
		lk.Unlock()
		lk.Close()
		return fmt.Errorf("workspace: set base: %w", err)
	}

	base = filepath.Join(abs, "0")
	baseLk = lk
	return nil
}

// `Unlock()` releases the base lock acquired by `SetBase()`. It does
// not clear the base itself; use `ResetBaseForTest()` for that. Safe to
// call when no lock is held.
func Unlock() error {
	mu.Lock()
	defer mu.Unlock()
	if baseLk == nil {
		return nil
	}
	err := baseLk.Unlock()
	baseLk.Close()
	baseLk = nil
	return err
}

// `Base()` returns the configured base directory, or `os.TempDir()` if
// none has been set.  The `os.TempDir()` fallback is used as is: it is
// neither locked nor rotated.
func Base() string {
	mu.Lock()
	defer mu.Unlock()
	if base == "" {
		return os.TempDir()
	}
	return base
}

// `ResetBaseForTest()` clears the process-wide base and releases its
// lock so tests can call `SetBase()` again.  Not for production use.
func ResetBaseForTest() {
	mu.Lock()
	lk := baseLk
	base = ""
	baseLk = nil
	mu.Unlock()
	if lk != nil {
		lk.Unlock()
		lk.Close()
	}
}

// `MirrorPath()` maps an absolute archive path to a path below the
// workspace base that mirrors its directory structure, so that
// workspaces for distinct archives never collide even when their
// basenames match.  On POSIX, the leading `/` is simply stripped; a
// Windows drive letter `C:\...` would map to `Drive_C\...`, following
// the same mapping `nogfsostad/shadows.ShadowPath()` uses to mangle a
// host path into its shadow-tree location, though this system is only
// exercised on POSIX.
func MirrorPath(archiveAbsPath string) string {
	clean := filepath.Clean(archiveAbsPath)
	if vol := filepath.VolumeName(clean); vol != "" {
		drive := strings.TrimSuffix(vol, ":")
		rest := strings.TrimPrefix(clean, vol)
		rest = strings.TrimPrefix(rest, string(filepath.Separator))
		return filepath.Join(fmt.Sprintf("Drive_%s", drive), rest)
	}
	return strings.TrimPrefix(clean, string(filepath.Separator))
}

// `Allocate()` reserves the next free `<randomPrefix><basename>.vtmp<k>`
// directory for `archiveAbsPath` below the configured base and creates
// it.  `randomPrefix` is normally empty; `canClose()`'s probe sandbox
// passes a random token (spec.md §4.5) so its sandbox can never collide
// with the session's own. It returns the absolute path of the new
// workspace directory.
func Allocate(archiveAbsPath, randomPrefix string) (string, error) {
	root := Base()
	if root == "" {
		return "", errors.New("workspace: base directory not set")
	}

	mirrorDir := filepath.Join(root, filepath.Dir(MirrorPath(archiveAbsPath)))
	if err := os.MkdirAll(mirrorDir, 0o755); err != nil {
		return "", fmt.Errorf("workspace: allocate: %w", err)
	}

	name := filepath.Base(archiveAbsPath)
	for k := 0; ; k++ {
		candidate := filepath.Join(mirrorDir, fmt.Sprintf("%s%s.vtmp%d", randomPrefix, name, k))
		err := os.Mkdir(candidate, 0o755)
		switch {
		case err == nil:
			return candidate, nil
		case os.IsExist(err):
			continue
		default:
			return "", fmt.Errorf("workspace: allocate: %w", err)
		}
	}
}

// `ExistingWorkspaces()` lists the `<basename>.vtmpK` directories
// already allocated for `archiveAbsPath`, used by crash recovery to
// find abandoned workspaces left by a process that exited without
// calling `Close()` (spec.md §9).
func ExistingWorkspaces(archiveAbsPath string) ([]string, error) {
	root := Base()
	if root == "" {
		return nil, errors.New("workspace: base directory not set")
	}
	mirrorDir := filepath.Join(root, filepath.Dir(MirrorPath(archiveAbsPath)))
	entries, err := os.ReadDir(mirrorDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("workspace: list: %w", err)
	}

	name := filepath.Base(archiveAbsPath)
	prefix := name + ".vtmp"
	var found []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimPrefix(e.Name(), prefix)); err != nil {
			continue
		}
		found = append(found, filepath.Join(mirrorDir, e.Name()))
	}
	return found, nil
}

const (
	DefaultLockAttempts = 10
	DefaultLockDelay    = 300 * time.Millisecond
)

// `RotateBackups()` keeps at most `maxBackups` numbered generations
// `<base>/0`, `<base>/1`, ... of crash salvage directly under `base`,
// `0` the newest, exactly per spec.md §4.7: delete any entry that is
// not a pure decimal or whose number is out of range, delete the
// oldest generation (`maxBackups-1`) to make room, shift every
// remaining generation `k` to `k+1`, then create a fresh empty `0`.
// Called from `SetBase()`, while it holds the base lock, at sandbox
// base initialisation. `lockFileName` is exempt from the "not a pure
// decimal" sweep: it is the advisory lock `SetBase()` itself lives
// under, and must survive regardless of call order.
func RotateBackups(base string, maxBackups int) error {
	if maxBackups <= 0 {
		return nil
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("workspace: rotate backups: %w", err)
		}
		entries = nil
	}
	for _, e := range entries {
		if e.Name() == lockFileName {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil || n < 0 || n >= maxBackups {
			if err := os.RemoveAll(filepath.Join(base, e.Name())); err != nil {
				return fmt.Errorf("workspace: rotate backups: %w", err)
			}
		}
	}

	oldest := filepath.Join(base, strconv.Itoa(maxBackups-1))
	if err := os.RemoveAll(oldest); err != nil {
		return fmt.Errorf("workspace: rotate backups: %w", err)
	}

	for k := maxBackups - 2; k >= 0; k-- {
		from := filepath.Join(base, strconv.Itoa(k))
		to := filepath.Join(base, strconv.Itoa(k+1))
		if _, err := os.Stat(from); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("workspace: rotate backups: %w", err)
		}
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("workspace: rotate backups: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Join(base, "0"), 0o755); err != nil {
		return fmt.Errorf("workspace: rotate backups: %w", err)
	}
	return nil
}
