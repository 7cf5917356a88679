package vfile

import (
	"strings"

	"github.com/vgitarchive/vgitarchive/backend/pkg/controlrecord"
)

const historyDirName = ".git"

// `baseCleanupPaths` always survives checkout cleanup: the history
// store directory and the control record must never be deleted while
// materialising a revision (spec.md §4.4).
var baseCleanupPaths = []string{historyDirName, controlrecord.Name}

// Fixed pack exclusions (spec.md §4.4): an ignore file, compiled-class
// artefacts (kept for fidelity with the original's purge list), build
// manifest files, and a legacy project descriptor name. The history
// directory and control record are deliberately NOT in this set — they
// are required archive contents per spec.md §6, so a Pack() exclusion
// would leave the repacked archive invalid.
var (
	basePackPaths   = []string{".vgitarchiveignore", "VFILE-PROJECT.xml"}
	basePackEndings = []string{".class", "MANIFEST.MF"}
)

// `ExcludeSet` is the Working-Area Policy (spec.md §4.4): paths and
// filename suffixes, relative to a working area, that are left alone by
// checkout cleanup and omitted from packing.
type ExcludeSet struct {
	Paths   []string
	Endings []string
}

// `Matches()` reports whether `relPath` (relative to the working area,
// forward-slash separated) is excluded.
func (e ExcludeSet) Matches(relPath string) bool {
	for _, p := range e.Paths {
		if relPath == p || strings.HasPrefix(relPath, p+"/") {
			return true
		}
	}
	for _, suf := range e.Endings {
		if strings.HasSuffix(relPath, suf) {
			return true
		}
	}
	return false
}

func (e *ExcludeSet) addPaths(paths ...string) {
	e.Paths = append(e.Paths, paths...)
}

func (e *ExcludeSet) addEndings(endings ...string) {
	e.Endings = append(e.Endings, endings...)
}

// `cleanupExcludeSet()` is the fixed base plus whatever the caller has
// added via `ExcludePathsFromCleanup`/`SetExcludeEndingsFromCleanup`.
func (s *Session) cleanupExcludeSet() ExcludeSet {
	return ExcludeSet{
		Paths:   append(append([]string(nil), baseCleanupPaths...), s.additional.Paths...),
		Endings: append([]string(nil), s.additional.Endings...),
	}
}

// `packExcludeSet()` is the fixed pack-time base plus the same
// caller-supplied additions.
func (s *Session) packExcludeSet() ExcludeSet {
	return ExcludeSet{
		Paths:   append(append([]string(nil), basePackPaths...), s.additional.Paths...),
		Endings: append(append([]string(nil), basePackEndings...), s.additional.Endings...),
	}
}

// `packExclusions()` flattens `packExcludeSet()` into the single
// suffix-match list `archivecodec.Codec.Pack` accepts: the codec has no
// separate path-exclusion parameter, so a named path like
// `.vgitarchiveignore` is passed through as a suffix pattern too, which
// is exact-match equivalent for the fixed top-level names in
// `basePackPaths`.  Caller-added paths are matched the same way, so a
// path such as `notes.txt` also omits any other path ending in
// `notes.txt` (e.g. `old-notes.txt`).
func (s *Session) packExclusions() []string {
	excl := s.packExcludeSet()
	out := make([]string, 0, len(excl.Paths)+len(excl.Endings))
	out = append(out, excl.Paths...)
	out = append(out, excl.Endings...)
	return out
}
