// Package artifact manages the lifecycle of generated audio files.
//
// A Store owns a single base directory. It allocates collision-resistant
// identifiers for new artifacts, serves sanitized paths to the transport
// layer, and reclaims disk space either per-file or in bulk by age. The
// store keeps no in-memory index: every query re-lists the directory, so
// there is no cache state to desynchronize.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

// Directory permissions for the managed base directory.
const dirPermissions = 0o750

// Recognized artifact extensions. Files with other extensions are never
// touched by Sweep or counted by Count.
const (
	extWAV  = ".wav"
	extMP3  = ".mp3"
	extFLAC = ".flac"
)

// Static errors.
var (
	// ErrBaseDirEmpty indicates that no base directory was configured.
	ErrBaseDirEmpty = errors.New("artifact base directory cannot be empty")
	// ErrExtensionEmpty indicates that Allocate was called without an extension.
	ErrExtensionEmpty = errors.New("artifact extension cannot be empty")
	// ErrFilenameEmpty indicates that Resolve was called without a filename.
	ErrFilenameEmpty = errors.New("artifact filename cannot be empty")
	// ErrOutsideBaseDir indicates a filename that would escape the base directory.
	ErrOutsideBaseDir = errors.New("filename escapes the artifact directory")
	// ErrUnrecognizedExtension indicates a filename outside the extension allow-list.
	ErrUnrecognizedExtension = errors.New("unrecognized artifact extension")
)

// Store owns one base directory of generated audio artifacts.
//
// All mutation is append-only (new files) or delete-by-name, and deletes
// treat "already gone" as success, so concurrent callers need no in-process
// locking.
type Store struct {
	baseDir    string
	extensions map[string]struct{}
	log        *logger.Logger
}

// SweepFailure records a single file that could not be removed during a sweep.
type SweepFailure struct {
	Name string
	Err  error
}

// SweepReport is the per-item result of a sweep pass. It distinguishes
// "nothing to clean" from "some deletions failed".
type SweepReport struct {
	Removed []string
	Failed  []SweepFailure
}

// RemovedCount returns the number of files deleted by the sweep.
func (r SweepReport) RemovedCount() int {
	return len(r.Removed)
}

// New creates a Store rooted at baseDir, creating the directory if absent.
// Directory creation failure is fatal: the store cannot function without
// its base directory, so the error is surfaced immediately.
//
// The extensions slice overrides the default allow-list (.wav, .mp3, .flac);
// pass nil to keep the default.
func New(baseDir string, extensions []string, log *logger.Logger) (*Store, error) {
	if baseDir == "" {
		return nil, ErrBaseDirEmpty
	}

	mkdirErr := os.MkdirAll(baseDir, dirPermissions)
	if mkdirErr != nil {
		return nil, fmt.Errorf(
			"failed to create artifact directory %s: %w",
			baseDir,
			mkdirErr,
		)
	}

	allowed := make(map[string]struct{})

	if len(extensions) == 0 {
		allowed[extWAV] = struct{}{}
		allowed[extMP3] = struct{}{}
		allowed[extFLAC] = struct{}{}
	} else {
		for _, ext := range extensions {
			allowed[normalizeExtension(ext)] = struct{}{}
		}
	}

	return &Store{
		baseDir:    baseDir,
		extensions: allowed,
		log:        log,
	}, nil
}

// BaseDir returns the directory managed by the store.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Allocate generates a fresh unique identifier and composes a path for a
// new artifact with the given extension. It does not create the file; the
// caller writes to the returned path. Identifiers are random 128-bit UUIDs,
// so two concurrent allocations never collide in practice.
func (s *Store) Allocate(extension string) (string, string, error) {
	if extension == "" {
		return "", "", ErrExtensionEmpty
	}

	id := uuid.NewString()
	filename := id + normalizeExtension(extension)

	return id, filepath.Join(s.baseDir, filename), nil
}

// DeleteOne removes the file at path if present and reports whether a
// deletion occurred. A file that is already gone is success-as-no-op, which
// makes concurrent deletes of the same artifact safe. Any other I/O failure
// is reported, not swallowed.
func (s *Store) DeleteOne(path string) (bool, error) {
	removeErr := os.Remove(path)
	if removeErr == nil {
		return true, nil
	}

	if os.IsNotExist(removeErr) {
		return false, nil
	}

	return false, fmt.Errorf("failed to delete artifact %s: %w", path, removeErr)
}

// Sweep deletes every recognized artifact in the base directory whose
// modification time is older than now - maxAge. A maxAge of zero deletes
// everything currently present (full teardown). Files that fail to delete
// are collected in the report and the sweep continues; only a failure to
// list the directory itself aborts the pass.
func (s *Store) Sweep(maxAge time.Duration) (SweepReport, error) {
	var report SweepReport

	entries, readErr := os.ReadDir(s.baseDir)
	if readErr != nil {
		return report, fmt.Errorf(
			"failed to list artifact directory %s: %w",
			s.baseDir,
			readErr,
		)
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if entry.IsDir() || !s.recognized(entry.Name()) {
			continue
		}

		if maxAge > 0 {
			info, infoErr := entry.Info()
			if infoErr != nil {
				// Raced with a concurrent delete; nothing left to do.
				if os.IsNotExist(infoErr) {
					continue
				}

				report.Failed = append(report.Failed, SweepFailure{
					Name: entry.Name(),
					Err:  infoErr,
				})

				continue
			}

			if !info.ModTime().Before(cutoff) {
				continue
			}
		}

		deleted, deleteErr := s.DeleteOne(filepath.Join(s.baseDir, entry.Name()))
		if deleteErr != nil {
			report.Failed = append(report.Failed, SweepFailure{
				Name: entry.Name(),
				Err:  deleteErr,
			})

			s.log.Warn("Sweep failed to delete %s: %v", entry.Name(), deleteErr)

			continue
		}

		// A concurrent sweep may have deleted the file first; count
		// each removal exactly once.
		if deleted {
			report.Removed = append(report.Removed, entry.Name())
		}
	}

	if report.RemovedCount() > 0 {
		s.log.Info(
			"Sweep removed %d artifacts from %s",
			report.RemovedCount(),
			s.baseDir,
		)
	}

	return report, nil
}

// Count returns the number of recognized artifact files currently present.
// Intended for diagnostics only.
func (s *Store) Count() (int, error) {
	entries, readErr := os.ReadDir(s.baseDir)
	if readErr != nil {
		return 0, fmt.Errorf(
			"failed to list artifact directory %s: %w",
			s.baseDir,
			readErr,
		)
	}

	count := 0

	for _, entry := range entries {
		if !entry.IsDir() && s.recognized(entry.Name()) {
			count++
		}
	}

	return count, nil
}

// Resolve maps a client-supplied filename onto a path inside the base
// directory. Filenames containing path separators or unrecognized
// extensions are rejected, so a resolved path can never escape the store.
func (s *Store) Resolve(filename string) (string, error) {
	if filename == "" {
		return "", ErrFilenameEmpty
	}

	if filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrOutsideBaseDir, filename)
	}

	if !s.recognized(filename) {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedExtension, filename)
	}

	return filepath.Join(s.baseDir, filename), nil
}

func (s *Store) recognized(filename string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(filename))]

	return ok
}

// extensionSanitizer strips characters that are invalid in filenames or
// that could be used for path traversal.
var extensionSanitizer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	"..", "_",
	":", "_",
	"<", "_",
	">", "_",
	"\"", "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// normalizeExtension sanitizes and lower-cases an extension and ensures a
// leading dot, accepting both "wav" and ".wav" forms from configuration.
func normalizeExtension(extension string) string {
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))

	return "." + extensionSanitizer.Replace(ext)
}
