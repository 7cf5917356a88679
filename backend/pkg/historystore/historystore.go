// Package `historystore` defines the embedded revision-control boundary
// the session manager builds on (spec.md §4.2): commits, trees, objects,
// status, and topological history listing. `GitStore` is the default
// implementation, driving the system `git` binary as a subprocess; any
// content-addressed snapshot store exposing this interface is a valid
// substitute, as long as commit identifiers are content hashes and
// `ListCommitsTopoReversed` is a deterministic total order (spec.md §9).
package historystore

import (
	"context"
	"io"
)

// `CommitID` is an opaque, content-addressed commit identifier.
type CommitID string

// `BlobID` is an opaque, content-addressed blob identifier.
type BlobID string

// `Commit` is a single revision: an identifier plus metadata.  Revisions
// form a linear history in this system; `Parents` is carried for
// completeness but no operation exposed here branches or merges.
type Commit struct {
	ID      CommitID
	Parents []CommitID
	Author  string
	Email   string
	Message string
}

// `TreeEntry` is one file in a commit's tree, excluding tree-only
// (directory/submodule) entries per spec.md §4.2.
type TreeEntry struct {
	Path string
	Blob BlobID
}

// `Status` groups working-tree change sets by kind, mirroring
// `org.eclipse.jgit.api.Status` in the original source.
type Status struct {
	Added       []string
	Changed     []string
	Missing     []string
	Modified    []string
	Removed     []string
	Untracked   []string
	Conflicting []string
}

// `IsClean()` reports whether every change set is empty.
func (s Status) IsClean() bool {
	return len(s.Added) == 0 &&
		len(s.Changed) == 0 &&
		len(s.Missing) == 0 &&
		len(s.Modified) == 0 &&
		len(s.Removed) == 0 &&
		len(s.Untracked) == 0 &&
		len(s.Conflicting) == 0
}

// `AllChanges()` flattens every non-conflicting change set into one set
// of path strings, the semantics `VersionedFile.getUncommittedChanges()`
// used.
func (s Status) AllChanges() []string {
	out := make([]string, 0,
		len(s.Added)+len(s.Changed)+len(s.Missing)+
			len(s.Modified)+len(s.Removed)+len(s.Untracked),
	)
	out = append(out, s.Added...)
	out = append(out, s.Changed...)
	out = append(out, s.Missing...)
	out = append(out, s.Modified...)
	out = append(out, s.Removed...)
	out = append(out, s.Untracked...)
	return out
}

// `Store` is the history-store interface the session manager invokes.
type Store interface {
	// `Init()` creates a fresh store rooted at `root`, makes the empty
	// private root commit (spec.md §3 "version 0 is a private root
	// commit"), and stages everything present for the next `Commit()`.
	Init(ctx context.Context, root string) error

	// `Open()` attaches to an existing store at `root`.
	Open(ctx context.Context, root string) error

	// `Status()` reports the working-tree status.
	Status(ctx context.Context) (Status, error)

	// `HumanStatus()` reports the working-tree status as porcelain
	// lines with paths unquoted for terminal display, for a CLI `status`
	// command rather than the `AllChanges()` path-set `Status()` feeds.
	HumanStatus(ctx context.Context) ([]string, error)

	// `AddAll()` stages every currently present path.
	AddAll(ctx context.Context) error

	// `Rm()` stages deletion of `paths`.
	Rm(ctx context.Context, paths ...string) error

	// `Commit()` records a new revision.  Implementations return
	// `ErrNothingToCommit`, `ErrNoHead`, `ErrConflicted`, or a wrapped
	// `ErrFailure` on I/O failure.
	Commit(ctx context.Context, message, authorName string) (CommitID, error)

	// `ListCommitsTopoReversed()` returns every commit, oldest first,
	// including the private root commit.
	ListCommitsTopoReversed(ctx context.Context) ([]Commit, error)

	// `ReadTree()` lists the regular-file and symlink entries of a
	// commit's tree; directory and submodule entries are omitted.
	ReadTree(ctx context.Context, id CommitID) ([]TreeEntry, error)

	// `ReadBlob()` streams a blob's bytes to `w`.
	ReadBlob(ctx context.Context, id BlobID, w io.Writer) error

	// `Close()` releases any resources held by the store.
	Close() error
}
