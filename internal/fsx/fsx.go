// Package fsx implements staged file placement: content is written to
// a uniquely named staging file in the destination directory and only
// becomes visible under its final name through a rename or link, so a
// crash can never leave a truncated file at the final path.
package fsx

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StagingName returns a hidden, globally unique staging filename for
// name inside its destination directory. Uniqueness across processes
// comes from the UUID, so concurrent workers never collide on staging
// paths.
func StagingName(name string) string {
	return "." + name + ".tmp-" + uuid.NewString()
}

// Place stages src into dstDir and finalizes it under name. When move
// is true the source file is removed after the staged copy is durable.
// If the final name is taken, a deterministic numeric suffix is
// appended (name_1.ext, name_2.ext, ...). Returns the final path and
// the number of bytes placed.
func Place(src, dstDir, name string, move bool) (string, int64, error) {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create destination directory: %w", err)
	}

	staging := filepath.Join(dstDir, StagingName(name))
	bytes, consumed, err := stage(src, staging, move)
	if err != nil {
		discardStaging(staging, src, consumed)
		return "", 0, err
	}

	final, err := finalize(staging, dstDir, name)
	if err != nil {
		discardStaging(staging, src, consumed)
		return "", 0, err
	}

	if move {
		// The staged copy is already durable at the final path, so a
		// failed source removal is not fatal to placement.
		if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
			return final, bytes, fmt.Errorf("placed %s but failed to remove source: %w", final, err)
		}
	}
	return final, bytes, nil
}

// stage copies src to the staging path and syncs it. For moves a
// same-filesystem rename is tried first; cross-device moves fall back
// to copy. consumed reports that the source was renamed away and the
// staging file is now its only copy.
func stage(src, staging string, move bool) (bytes int64, consumed bool, err error) {
	if move {
		if err := os.Rename(src, staging); err == nil {
			fi, err := os.Stat(staging)
			if err != nil {
				return 0, true, err
			}
			return fi.Size(), true, nil
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, false, fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(staging, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create staging file: %w", err)
	}

	bytes, err = io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, false, fmt.Errorf("failed to copy to staging file: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return 0, false, err
	}
	if err := out.Close(); err != nil {
		return 0, false, err
	}
	return bytes, false, nil
}

// discardStaging disposes of a staging file after a failure. When the
// source was renamed into staging it is the only remaining copy, so it
// is moved back to the source path rather than deleted; if even that
// rename fails the staging file is left in place for recovery.
func discardStaging(staging, src string, consumed bool) {
	if consumed {
		os.Rename(staging, src)
		return
	}
	os.Remove(staging)
}

// finalize links the staged file to the first free disambiguated name.
// Link fails with EEXIST instead of overwriting, which keeps the
// counter collision-free even when two workers finalize at once.
func finalize(staging, dstDir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for counter := 0; ; counter++ {
		candidate := name
		if counter > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, counter, ext)
		}
		final := filepath.Join(dstDir, candidate)

		err := os.Link(staging, final)
		if err == nil {
			os.Remove(staging)
			return final, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		// Filesystems without hard links: fall back to an existence
		// check plus rename. The unique staging name keeps the rename
		// itself atomic.
		if _, statErr := os.Lstat(final); statErr == nil {
			continue
		} else if !os.IsNotExist(statErr) {
			return "", statErr
		}
		if renameErr := os.Rename(staging, final); renameErr != nil {
			return "", renameErr
		}
		return final, nil
	}
}

// WriteFileAtomic writes data to dir/name through a staging file and
// rename, replacing any existing file.
func WriteFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	staging := filepath.Join(dir, StagingName(name))
	if err := os.WriteFile(staging, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(staging, filepath.Join(dir, name)); err != nil {
		os.Remove(staging)
		return err
	}
	return nil
}
