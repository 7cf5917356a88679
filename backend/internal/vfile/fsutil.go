package vfile

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// `cleanWorkingArea()` removes every file under `root`, recursively,
// that is not excluded by `excl`, the "wipe before checkout" step of
// spec.md §4.4.  Exclusions are matched against the file's path
// relative to `root`, not just the top-level entry name, so a nested
// build artefact (`bin/app.class`) or a caller-added ending
// (`sub/keep.dat`) survives the same way `VersionedFile.
// deleteAllCheckedOutFiles` preserves them in the original source.  A
// directory whose relative path itself matches `excl` is skipped
// whole; otherwise its files are visited individually and the
// directory is removed afterward if that leaves it empty.
func cleanWorkingArea(root string, excl ExcludeSet) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if excl.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		return os.Remove(path)
	})
	if err != nil {
		return err
	}

	// Remove directories left empty by the walk above, deepest first;
	// a directory that still holds an excluded file fails with
	// "not empty" and is left in place.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		os.Remove(dir)
	}
	return nil
}

// `copyFile()` copies `src` to `dst`, creating or truncating `dst` and
// preserving `src`'s mode bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// `copyTree()` recursively copies the contents of `src` into `dst`,
// used by `SwitchToNewArchive()` to seed the new sandbox from the old
// one when the workspace base maps them to different directories.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if rel == "." {
			return os.MkdirAll(target, 0o755)
		}
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if d.Type()&fs.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		return copyFile(path, target)
	})
}
