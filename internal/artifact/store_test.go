// Package artifact_test tests the filesystem artifact store.
package artifact_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naijavoice/tts-api/internal/artifact"
)

const testFilePermissions = 0o600

func newTestStore(t *testing.T) *artifact.Store {
	t.Helper()

	log, err := logger.New(t.TempDir(), "artifact-test.log")
	require.NoError(t, err)

	store, err := artifact.New(t.TempDir(), nil, log)
	require.NoError(t, err)

	return store
}

func writeArtifact(t *testing.T, store *artifact.Store, name string, age time.Duration) string {
	t.Helper()

	path := filepath.Join(store.BaseDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("RIFF-audio-data"), testFilePermissions))

	if age > 0 {
		stamp := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, stamp, stamp))
	}

	return path
}

func TestNew_EmptyBaseDir(t *testing.T) {
	t.Parallel()

	log, err := logger.New(t.TempDir(), "artifact-test.log")
	require.NoError(t, err)

	_, err = artifact.New("", nil, log)
	require.ErrorIs(t, err, artifact.ErrBaseDirEmpty)
}

func TestNew_DirectoryCreationFailureIsFatal(t *testing.T) {
	t.Parallel()

	log, err := logger.New(t.TempDir(), "artifact-test.log")
	require.NoError(t, err)

	// A regular file where the directory should go makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), testFilePermissions))

	_, err = artifact.New(filepath.Join(blocker, "audio"), nil, log)
	require.Error(t, err)
}

func TestAllocate_UniqueIdentifiers(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seen := make(map[string]struct{})

	for range 1000 {
		id, path, err := store.Allocate("wav")
		require.NoError(t, err)

		_, dup := seen[id]
		require.False(t, dup, "duplicate identifier %s", id)
		seen[id] = struct{}{}

		// Allocation is pure computation; no file may exist yet.
		_, statErr := os.Stat(path)
		require.True(t, os.IsNotExist(statErr))
	}
}

func TestAllocate_PathStaysInsideBaseDir(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, path, err := store.Allocate("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, store.BaseDir(), filepath.Dir(path))
}

func TestAllocate_EmptyExtension(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, _, err := store.Allocate("")
	require.ErrorIs(t, err, artifact.ErrExtensionEmpty)
}

func TestDeleteOne_Idempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	path := writeArtifact(t, store, "gone.wav", 0)

	deleted, err := store.DeleteOne(path)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Second delete of the same path is success-as-no-op.
	deleted, err = store.DeleteOne(path)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteOne_MissingFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	deleted, err := store.DeleteOne(filepath.Join(store.BaseDir(), "never-existed.wav"))
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSweep_ZeroMaxAgeRemovesAllRecognized(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	writeArtifact(t, store, "a.wav", 0)
	writeArtifact(t, store, "b.mp3", 0)
	writeArtifact(t, store, "c.flac", 0)
	keep := writeArtifact(t, store, "notes.txt", 0)

	report, err := store.Sweep(0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.RemovedCount())
	assert.Empty(t, report.Failed)

	// Non-recognized files are never touched.
	_, statErr := os.Stat(keep)
	require.NoError(t, statErr)
}

func TestSweep_RemovesOnlyFilesOlderThanCutoff(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	old := writeArtifact(t, store, "old.wav", 2*time.Hour)
	fresh := writeArtifact(t, store, "fresh.wav", 30*time.Minute)

	report, err := store.Sweep(time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, report.RemovedCount())
	assert.Equal(t, "old.wav", report.Removed[0])

	_, statErr := os.Stat(old)
	assert.True(t, os.IsNotExist(statErr))

	_, statErr = os.Stat(fresh)
	require.NoError(t, statErr)
}

func TestSweep_FreshlyWrittenArtifactSurvives(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, path, err := store.Allocate("wav")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("ten bytes!"), testFilePermissions))

	report, err := store.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, report.RemovedCount())

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	// Once aged past the threshold the same file is reclaimed.
	stamp := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	report, err = store.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.RemovedCount())
}

func TestSweep_ConcurrentSweepsDoNotDoubleCount(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	const staleFiles = 20
	for i := range staleFiles {
		writeArtifact(t, store, fmt.Sprintf("stale-%02d.wav", i), 2*time.Hour)
	}

	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		total     int
	)

	for range 2 {
		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			report, err := store.Sweep(time.Hour)
			assert.NoError(t, err)

			mutex.Lock()
			total += report.RemovedCount()
			mutex.Unlock()
		}()
	}

	waitGroup.Wait()

	assert.Equal(t, staleFiles, total)
}

func TestCount_OnlyRecognizedExtensions(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	writeArtifact(t, store, "one.wav", 0)
	writeArtifact(t, store, "two.mp3", 0)
	writeArtifact(t, store, "three.flac", 0)
	writeArtifact(t, store, "readme.md", 0)
	writeArtifact(t, store, "data.json", 0)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestResolve_RejectsTraversal(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	for _, name := range []string{"../secret.wav", "a/b.wav", `..\evil.wav`} {
		_, err := store.Resolve(name)
		require.ErrorIs(t, err, artifact.ErrOutsideBaseDir, "filename %q", name)
	}
}

func TestResolve_RejectsUnrecognizedExtension(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Resolve("artifact.exe")
	require.ErrorIs(t, err, artifact.ErrUnrecognizedExtension)
}

func TestResolve_ValidFilename(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	path, err := store.Resolve("abc123.wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BaseDir(), "abc123.wav"), path)
}
