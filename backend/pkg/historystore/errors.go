package historystore

import "errors"

var (
	// `ErrNotInitialized` is returned when an operation other than
	// `Init()`/`Open()` is called before the store has been attached to
	// a root.
	ErrNotInitialized = errors.New("historystore: store is not initialized")

	// `ErrNothingToCommit` is returned by `Commit()` when the working
	// tree has no staged changes.
	ErrNothingToCommit = errors.New("historystore: nothing to commit")

	// `ErrConflicted` is available to `Store` implementations to report
	// unresolved conflicts, which this system never creates itself.
	// `GitStore` does not return it: its `Status()` lists conflicting
	// paths in `Status.Conflicting` instead.
	ErrConflicted = errors.New("historystore: working tree has conflicts")

	// `ErrNoHead` is returned when a history operation expects at least
	// one commit, e.g. before the private root commit has been made.
	ErrNoHead = errors.New("historystore: no commits in history")
)

// `ErrFailure` wraps an unexpected failure of the underlying store,
// e.g. the `git` subprocess exiting non-zero, carrying the operation,
// the subprocess's stderr, and the underlying cause.
type ErrFailure struct {
	Op     string
	Output string
	Cause  error
}

func (e *ErrFailure) Error() string {
	if e.Output == "" {
		return "historystore: " + e.Op + ": " + e.Cause.Error()
	}
	return "historystore: " + e.Op + ": " + e.Cause.Error() + "; output: " + e.Output
}

func (e *ErrFailure) Unwrap() error { return e.Cause }
