// Package `vgitarchive` is the public facade over `internal/vfile`: a
// versioned single-file document archive combining a ZIP-style archive
// codec with an embedded git-backed revision store.
package vgitarchive

import (
	"context"

	"github.com/vgitarchive/vgitarchive/backend/internal/vfile"
	"github.com/vgitarchive/vgitarchive/backend/pkg/archivecodec"
	"github.com/vgitarchive/vgitarchive/backend/pkg/controlrecord"
	"github.com/vgitarchive/vgitarchive/backend/pkg/historystore"
)

type (
	// `Session` mediates access to one archive.
	Session = vfile.Session
	// `Options` configures a `Session`; see `vfile.Options`.
	Options = vfile.Options
	// `Logger` is the structured-logging interface a `Session` accepts.
	Logger = vfile.Logger
	// `VersionEvent` is delivered to listeners around a checkout.
	VersionEvent = vfile.VersionEvent
	// `VersionEventListener` observes checkouts.
	VersionEventListener = vfile.VersionEventListener
)

var (
	// `ErrAlreadyOpen` is returned when a session, or a crash-leftover
	// sandbox, already claims an archive.
	ErrAlreadyOpen = vfile.ErrAlreadyOpen
	// `ErrNotOpen` is returned by operations that require an opened
	// session.
	ErrNotOpen = vfile.ErrNotOpen
	// `ErrInvalidArchive` is returned when a file unpacks but is not a
	// valid versioned archive.
	ErrInvalidArchive = vfile.ErrInvalidArchive
	// `ErrExists` is returned by `Create()` when the archive already
	// exists.
	ErrExists = vfile.ErrExists
	// `ErrOverwriteWouldLoseHistory` is returned by `Cleanup()` when it
	// would discard history the on-disk archive has and the leftover
	// sandbox does not.
	ErrOverwriteWouldLoseHistory = vfile.ErrOverwriteWouldLoseHistory
	// `ErrConflicted` is returned when the history store reports
	// conflicts.
	ErrConflicted = vfile.ErrConflicted
	// `ErrNothingToCommit` is returned by `Commit()` when staging leaves
	// nothing changed.
	ErrNothingToCommit = vfile.ErrNothingToCommit
)

// `New()` constructs a closed session for the archive at `path`.
func New(path string, opts Options) (*Session, error) {
	return vfile.New(path, opts)
}

// `IsValidArchive()` reports whether `path` is a valid versioned
// archive, without requiring an open session.
func IsValidArchive(ctx context.Context, path string) (bool, error) {
	return vfile.IsValidArchive(ctx, path, archivecodec.ZipCodec{})
}

// `Commit` is a single revision of the embedded history store.
type Commit = historystore.Commit

// `ControlRecord` is the small descriptor every valid archive carries.
type ControlRecord = controlrecord.Record
