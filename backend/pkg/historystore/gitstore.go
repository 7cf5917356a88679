package historystore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vgitarchive/vgitarchive/backend/pkg/execx"
	"github.com/vgitarchive/vgitarchive/backend/pkg/gitstat"
	"github.com/vgitarchive/vgitarchive/backend/pkg/iox"
	"github.com/vgitarchive/vgitarchive/backend/pkg/tarquote"
)

// `gitUser` mirrors `shadows.User`: a name/email pair injected into the
// `git` subprocess environment as author or committer.
type gitUser struct {
	Name  string
	Email string
}

// `GitStore` is the default `Store`, driving the system `git` binary
// the same way `nogfsostad/shadows.Filesystem` drives `git`/`git-fso`:
// locate the binary once with `execx.LookTool()`, then run one
// `exec.CommandContext()` per operation with `cmd.Dir` set to the store
// root and `cmd.Env` carrying the author/committer identity.
//
// `GitStore` commits as a single fixed system identity; the
// human-readable author name passed to `Commit()` is recorded as the
// Git author while `committer` stays the system identity, so history
// always attributes a commit to the session owner without trusting
// them to configure `user.email`.
type GitStore struct {
	tool      *execx.Tool
	root      string
	committer gitUser
}

// `NewGitStore()` returns a `GitStore` whose commits are committed by a
// fixed system identity.  The `git` binary is located lazily on the
// first `Init()`/`Open()` call.
func NewGitStore() *GitStore {
	return &GitStore{
		committer: gitUser{
			Name:  "vgitarchive",
			Email: "vgitarchive@sys.local",
		},
	}
}

// `rootAuthor` mirrors the original source's `"VRL-User"` synthetic
// author for the private root commit; it is never attributed to a real
// session user.
var rootAuthor = gitUser{Name: "vgitarchive-root", Email: "root@vgitarchive.local"}

func lookGit() (*execx.Tool, error) {
	return execx.LookTool(execx.ToolSpec{
		Program:   "git",
		CheckArgs: []string{"--version"},
		CheckText: "git version",
	})
}

func (s *GitStore) Init(ctx context.Context, root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return &ErrFailure{Op: "init", Cause: err}
	}
	tool, err := lookGit()
	if err != nil {
		return &ErrFailure{Op: "init", Cause: err}
	}
	s.tool = tool
	s.root = root

	if _, err := s.runGit(ctx, s.committer, "init", "-q"); err != nil {
		return err
	}
	// The private root commit (spec.md §3, "version 0") always exists
	// and is always empty: it is made before anything is staged, so
	// version numbers are stable regardless of what the caller packed
	// first, and files already present under `root` are staged for the
	// first `Commit()` rather than hidden in version 0.
	_, err = s.runGit(
		ctx, rootAuthor,
		"commit", "--allow-empty", "-q", "-m", "root",
	)
	if err != nil {
		return err
	}
	return s.AddAll(ctx)
}

func (s *GitStore) Open(ctx context.Context, root string) error {
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return &ErrFailure{Op: "open", Cause: err}
	}
	tool, err := lookGit()
	if err != nil {
		return &ErrFailure{Op: "open", Cause: err}
	}
	s.tool = tool
	s.root = root
	return nil
}

func (s *GitStore) Status(ctx context.Context) (Status, error) {
	out, err := s.runGit(ctx, s.committer, "status", "--porcelain=v1", "-z")
	if err != nil {
		return Status{}, err
	}

	var st Status
	records := strings.Split(strings.TrimSuffix(string(out), "\x00"), "\x00")
	for i := 0; i < len(records); i++ {
		rec := records[i]
		if rec == "" {
			continue
		}
		if len(rec) < 3 {
			continue
		}
		x, y := rec[0], rec[1]
		path := rec[3:]

		switch {
		case x == 'R' || x == 'C':
			// Rename/copy records carry the origin path as a second
			// NUL-terminated field, which this system reports as a
			// removal plus an addition rather than tracking renames.
			i++
			st.Removed = append(st.Removed, records[i])
			st.Added = append(st.Added, path)
		case x == '?' && y == '?':
			st.Untracked = append(st.Untracked, path)
		case x == 'U' || y == 'U' || (x == 'A' && y == 'A') || (x == 'D' && y == 'D'):
			st.Conflicting = append(st.Conflicting, path)
		default:
			if x == 'A' {
				st.Added = append(st.Added, path)
			}
			if x == 'M' {
				st.Changed = append(st.Changed, path)
			}
			if x == 'D' {
				st.Removed = append(st.Removed, path)
			}
			if y == 'M' {
				st.Modified = append(st.Modified, path)
			}
			if y == 'D' {
				st.Missing = append(st.Missing, path)
			}
		}
	}
	return st, nil
}

// `HumanStatus()` is like `Status()` but queries `git status --porcelain=v1`
// without `-z`, which lets `core.quotePath` quote paths containing
// non-ASCII or special bytes; those are recovered with
// `tarquote.UnquoteEscape()` for display in a terminal, as opposed to
// the `-z` form `Status()` uses, which `git` never quotes.
func (s *GitStore) HumanStatus(ctx context.Context) ([]string, error) {
	out, err := s.runGit(ctx, s.committer, "status", "--porcelain=v1")
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, rec := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if rec == "" || len(rec) < 4 {
			continue
		}
		path := rec[3:]
		if len(path) >= 2 && path[0] == '"' && path[len(path)-1] == '"' {
			unquoted, err := tarquote.UnquoteEscape(path[1 : len(path)-1])
			if err != nil {
				return nil, &ErrFailure{Op: "status", Cause: err}
			}
			path = unquoted
		}
		lines = append(lines, rec[:3]+path)
	}
	return lines, nil
}

func (s *GitStore) AddAll(ctx context.Context) error {
	_, err := s.runGit(ctx, s.committer, "add", "-A", ".")
	return err
}

func (s *GitStore) Rm(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"rm", "-f", "-r", "-q", "--ignore-unmatch", "--"}, paths...)
	_, err := s.runGit(ctx, s.committer, args...)
	return err
}

func (s *GitStore) Commit(
	ctx context.Context, message, authorName string,
) (CommitID, error) {
	clean := exec.CommandContext(ctx, s.tool.Path, "diff", "--cached", "--quiet")
	clean.Dir = s.root
	if err := clean.Run(); err == nil {
		return "", ErrNothingToCommit
	} else if _, ok := err.(*exec.ExitError); !ok {
		return "", &ErrFailure{Op: "commit", Cause: err}
	}

	author := s.committer
	if authorName != "" {
		author = gitUser{Name: authorName, Email: s.committer.Email}
	}

	env := s.env(author)
	cmd := exec.CommandContext(ctx, s.tool.Path, "commit", "-q", "-m", message)
	cmd.Dir = s.root
	cmd.Env = env
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &ErrFailure{Op: "commit", Output: stderr.String(), Cause: err}
	}

	out, err := s.runGit(ctx, s.committer, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return CommitID(strings.TrimSpace(string(out))), nil
}

func (s *GitStore) ListCommitsTopoReversed(ctx context.Context) ([]Commit, error) {
	format := strings.Join(
		[]string{"%H", "%P", "%an", "%ae", "%s"}, "%x00",
	)
	out, err := s.runGit(
		ctx, s.committer,
		"log", "--topo-order", "--reverse", "--format="+format,
	)
	if err != nil {
		if errx, ok := err.(*ErrFailure); ok &&
			strings.Contains(errx.Output, "does not have any commits yet") {
			return nil, ErrNoHead
		}
		return nil, err
	}

	text := strings.TrimRight(string(out), "\n")
	if text == "" {
		return nil, ErrNoHead
	}

	lines := strings.Split(text, "\n")
	commits := make([]Commit, 0, len(lines))
	for _, line := range lines {
		fields := strings.Split(line, "\x00")
		if len(fields) != 5 {
			return nil, &ErrFailure{
				Op:    "log",
				Cause: fmt.Errorf("unexpected `git log` record: %q", line),
			}
		}
		var parents []CommitID
		if fields[1] != "" {
			for _, p := range strings.Split(fields[1], " ") {
				parents = append(parents, CommitID(p))
			}
		}
		commits = append(commits, Commit{
			ID:      CommitID(fields[0]),
			Parents: parents,
			Author:  fields[2],
			Email:   fields[3],
			Message: fields[4],
		})
	}
	return commits, nil
}

func (s *GitStore) ReadTree(ctx context.Context, id CommitID) ([]TreeEntry, error) {
	out, err := s.runGit(ctx, s.committer, "ls-tree", "-r", "-z", string(id))
	if err != nil {
		return nil, err
	}

	nul := []byte{0}
	raw := bytes.TrimSuffix(out, nul)
	if len(raw) == 0 {
		return nil, nil
	}

	var entries []TreeEntry
	for _, rec := range bytes.Split(raw, nul) {
		tabFields := strings.SplitN(string(rec), "\t", 2)
		if len(tabFields) != 2 {
			return nil, &ErrFailure{
				Op:    "ls-tree",
				Cause: fmt.Errorf("unexpected `git ls-tree` record: %q", rec),
			}
		}
		infoFields := strings.Split(tabFields[0], " ")
		if len(infoFields) != 3 {
			return nil, &ErrFailure{
				Op:    "ls-tree",
				Cause: fmt.Errorf("unexpected `git ls-tree` info: %q", tabFields[0]),
			}
		}
		modeVal, err := strconv.ParseUint(infoFields[0], 8, 32)
		if err != nil {
			return nil, &ErrFailure{Op: "ls-tree", Cause: err}
		}
		if !gitstat.Mode(modeVal).IsRegular() && !gitstat.Mode(modeVal).IsSymlink() {
			continue
		}
		entries = append(entries, TreeEntry{
			Path: tabFields[1],
			Blob: BlobID(infoFields[2]),
		})
	}
	return entries, nil
}

func (s *GitStore) ReadBlob(ctx context.Context, id BlobID, w io.Writer) error {
	cmd := exec.CommandContext(ctx, s.tool.Path, "cat-file", "-p", string(id))
	cmd.Dir = s.root
	cmd.Env = s.env(s.committer)

	pipe, err := iox.WrapPipe3(os.Pipe())
	if err != nil {
		return &ErrFailure{Op: "cat-file", Cause: err}
	}
	cmd.Stdout = pipe.W
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		pipe.CloseBoth()
		return &ErrFailure{Op: "cat-file", Cause: err}
	}
	// Close this process's copy of the write end; `os/exec` dup'd it
	// into the child, so the child's exit is what produces EOF for the
	// `io.Copy()` below.
	if err := pipe.CloseW(); err != nil {
		return &ErrFailure{Op: "cat-file", Cause: err}
	}

	copied := make(chan error, 1)
	go func() {
		_, err := io.Copy(w, pipe.R)
		copied <- err
	}()

	waitErr := cmd.Wait()
	copyErr := <-copied
	if waitErr != nil {
		return &ErrFailure{Op: "cat-file", Output: stderr.String(), Cause: waitErr}
	}
	if copyErr != nil {
		return &ErrFailure{Op: "cat-file", Cause: copyErr}
	}
	return pipe.CloseR()
}

func (s *GitStore) Close() error {
	return nil
}

func (s *GitStore) env(author gitUser) []string {
	return append(
		os.Environ(),
		fmt.Sprintf("GIT_AUTHOR_NAME=%s", author.Name),
		fmt.Sprintf("GIT_AUTHOR_EMAIL=%s", author.Email),
		fmt.Sprintf("GIT_COMMITTER_NAME=%s", s.committer.Name),
		fmt.Sprintf("GIT_COMMITTER_EMAIL=%s", s.committer.Email),
	)
}

func (s *GitStore) runGit(
	ctx context.Context, author gitUser, args ...string,
) ([]byte, error) {
	if s.tool == nil {
		return nil, ErrNotInitialized
	}
	cmd := exec.CommandContext(ctx, s.tool.Path, args...)
	cmd.Dir = s.root
	cmd.Env = s.env(author)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, &ErrFailure{
			Op:     strings.Join(args, " "),
			Output: stderr.String(),
			Cause:  err,
		}
	}
	return out, nil
}
