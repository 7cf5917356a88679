// Package `archivecodec` defines the pluggable archive-format boundary
// VGitArchive packs a working area into and unpacks it from (spec.md
// §4.1). `ZipCodec` is the default implementation; any other format can
// be substituted by implementing `Codec`.
package archivecodec

import "context"

// `Codec` packs a folder to a single file and unpacks a file back into a
// folder.  Implementations must preserve directory structure, use
// forward slashes for entry names, and encode entry names as UTF-8.
// Symbolic links are not required to round-trip.
type Codec interface {
	// `Pack()` writes the recursive contents of `folder` to `destFile`,
	// replacing it if it already exists.  Paths whose name ends in one
	// of `excludedEndings` are omitted.
	Pack(ctx context.Context, folder, destFile string, excludedEndings ...string) error

	// `Unpack()` materializes `archive` into `destFolder`, creating
	// intermediate directories as needed.
	Unpack(ctx context.Context, archive, destFolder string) error

	// `Identifier()` returns a short tag identifying the format, e.g.
	// `"ZIP"`.
	Identifier() string
}
