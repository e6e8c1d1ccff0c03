package sync

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/timschmidt/bugbot9000/internal/errors"
	"github.com/timschmidt/bugbot9000/internal/models"
	"github.com/timschmidt/bugbot9000/internal/registry"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeIndex returns a fixed roster of names.
type fakeIndex struct {
	names      []string
	refreshErr error
	refreshes  int
}

func (f *fakeIndex) Refresh(ctx context.Context) error {
	f.refreshes++
	return f.refreshErr
}

func (f *fakeIndex) List(ctx context.Context) ([]string, error) {
	return f.names, nil
}

// memStore is the in-memory Store fake the skip/record logic is tested with.
type memStore struct {
	entries  map[string]*models.StateEntry
	readErr  error
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]*models.StateEntry)}
}

func (m *memStore) GetStatus(ctx context.Context, name string) (models.SyncStatus, error) {
	if m.readErr != nil {
		return "", m.readErr
	}
	if e, ok := m.entries[name]; ok {
		return e.Status, nil
	}
	return "", nil
}

func (m *memStore) GetEntry(ctx context.Context, name string) (*models.StateEntry, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.entries[name], nil
}

func (m *memStore) UpsertPending(ctx context.Context, name, repository string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	repo := repository
	if e, ok := m.entries[name]; ok {
		e.Repository = &repo
		e.Status = models.StatusPending
		return nil
	}
	m.entries[name] = &models.StateEntry{Name: name, Repository: &repo, Status: models.StatusPending}
	return nil
}

func (m *memStore) SetStatus(ctx context.Context, name string, status models.SyncStatus) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if e, ok := m.entries[name]; ok {
		e.Status = status
		return nil
	}
	m.entries[name] = &models.StateEntry{Name: name, Status: status}
	return nil
}

func (m *memStore) ListEntries(ctx context.Context, status models.SyncStatus) ([]*models.StateEntry, error) {
	var entries []*models.StateEntry
	for _, e := range m.entries {
		if status == "" || e.Status == status {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *memStore) CountByStatus(ctx context.Context) (map[models.SyncStatus]int64, error) {
	counts := make(map[models.SyncStatus]int64)
	for _, e := range m.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (m *memStore) Close() error { return nil }

// fakeRegistry serves metadata from fixed maps; a missing or empty repos
// entry means the crate declares no repository.
type fakeRegistry struct {
	repos map[string]string
	errs  map[string]error
	calls map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		repos: make(map[string]string),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeRegistry) FetchCrate(ctx context.Context, name string) (*registry.Metadata, error) {
	f.calls[name]++
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	url := f.repos[name]
	if url == "" {
		return &registry.Metadata{Name: name}, nil
	}
	return &registry.Metadata{Name: name, Repository: &url}, nil
}

// fakeCloner materialises a non-empty destination directory on success.
type fakeCloner struct {
	failURLs map[string]bool
	calls    []string
}

func newFakeCloner() *fakeCloner {
	return &fakeCloner{failURLs: make(map[string]bool)}
}

func (f *fakeCloner) Clone(ctx context.Context, url, dest string) error {
	f.calls = append(f.calls, url)
	if f.failURLs[url] {
		return apperrors.NewCloneError("failed to clone "+url, errors.New("unreachable"))
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, "README.md"), []byte("mirror"), 0o644)
}

func TestOrchestrator_Scenario(t *testing.T) {
	// index = [a -> repoA(ok), b -> none, c -> repoC(unreachable)]
	ctx := context.Background()
	outputDir := t.TempDir()

	idx := &fakeIndex{names: []string{"a", "b", "c"}}
	store := newMemStore()
	reg := newFakeRegistry()
	reg.repos["a"] = "https://example.com/repo-a"
	reg.repos["c"] = "https://example.com/repo-c"
	cln := newFakeCloner()
	cln.failURLs["https://example.com/repo-c"] = true

	orch := New(idx, store, reg, cln, outputDir, testLogger())
	summary, err := orch.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Cloned)
	assert.Equal(t, 1, summary.NoRepo)
	assert.Equal(t, 1, summary.Failed)

	assert.Equal(t, models.StatusCloned, store.entries["a"].Status)
	assert.DirExists(t, filepath.Join(outputDir, "a"))

	assert.Equal(t, models.StatusNoRepo, store.entries["b"].Status)
	assert.NoDirExists(t, filepath.Join(outputDir, "b"))

	assert.Equal(t, models.StatusFailed, store.entries["c"].Status)
	require.NotNil(t, store.entries["c"].Repository, "pending upsert must have recorded the URL")
	assert.Equal(t, "https://example.com/repo-c", *store.entries["c"].Repository)
	assert.NoDirExists(t, filepath.Join(outputDir, "c"))

	t.Run("re-run with repoC reachable clones it", func(t *testing.T) {
		cln.failURLs["https://example.com/repo-c"] = false

		summary, err := orch.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, models.StatusCloned, store.entries["c"].Status)
		assert.DirExists(t, filepath.Join(outputDir, "c"))
		// a was already cloned, b keeps being re-fetched (no_repo is not a
		// skip condition)
		assert.Equal(t, 1, summary.Skipped)
		assert.Equal(t, 1, reg.calls["a"], "cloned crate must not be fetched again")
		assert.Equal(t, 2, reg.calls["b"])
	})
}

func TestOrchestrator_Idempotence(t *testing.T) {
	ctx := context.Background()
	outputDir := t.TempDir()

	idx := &fakeIndex{names: []string{"serde", "rand"}}
	store := newMemStore()
	reg := newFakeRegistry()
	reg.repos["serde"] = "https://example.com/serde"
	reg.repos["rand"] = "https://example.com/rand"
	cln := newFakeCloner()

	orch := New(idx, store, reg, cln, outputDir, testLogger())

	_, err := orch.Run(ctx)
	require.NoError(t, err)
	first := map[string]models.SyncStatus{}
	for name, e := range store.entries {
		first[name] = e.Status
	}

	_, err = orch.Run(ctx)
	require.NoError(t, err)

	assert.Len(t, store.entries, len(first))
	for name, e := range store.entries {
		assert.Equal(t, first[name], e.Status)
	}
	assert.Len(t, cln.calls, 2, "no second clone for already-cloned crates")
	assert.Equal(t, 1, reg.calls["serde"])
	assert.Equal(t, 1, reg.calls["rand"])
}

func TestOrchestrator_MetadataErrorSkipsClone(t *testing.T) {
	ctx := context.Background()
	outputDir := t.TempDir()

	idx := &fakeIndex{names: []string{"flaky"}}
	store := newMemStore()
	reg := newFakeRegistry()
	reg.errs["flaky"] = apperrors.NewFetchError("registry returned status 500", nil)
	cln := newFakeCloner()

	orch := New(idx, store, reg, cln, outputDir, testLogger())
	summary, err := orch.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MetadataError)
	assert.Equal(t, models.StatusMetadataError, store.entries["flaky"].Status)
	assert.Empty(t, cln.calls, "no clone may be attempted after a failed fetch")
	assert.NoDirExists(t, filepath.Join(outputDir, "flaky"))
}

func TestOrchestrator_ExistingDestinationSkips(t *testing.T) {
	ctx := context.Background()
	outputDir := t.TempDir()

	// a manually restored mirror, unknown to the state store
	require.NoError(t, os.MkdirAll(filepath.Join(outputDir, "serde"), 0o755))

	idx := &fakeIndex{names: []string{"serde"}}
	store := newMemStore()
	// the stored status even disagrees with the filesystem
	require.NoError(t, store.SetStatus(ctx, "serde", models.StatusFailed))
	reg := newFakeRegistry()
	cln := newFakeCloner()

	orch := New(idx, store, reg, cln, outputDir, testLogger())
	summary, err := orch.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, reg.calls, "skip must not touch the network")
	assert.Empty(t, cln.calls)
	// skip means no state mutation either
	assert.Equal(t, models.StatusFailed, store.entries["serde"].Status)
}

func TestOrchestrator_StoreFailuresDoNotGate(t *testing.T) {
	ctx := context.Background()
	outputDir := t.TempDir()

	idx := &fakeIndex{names: []string{"a", "b"}}
	store := newMemStore()
	store.readErr = errors.New("disk full")
	store.writeErr = errors.New("disk full")
	reg := newFakeRegistry()
	reg.repos["a"] = "https://example.com/repo-a"
	reg.repos["b"] = "https://example.com/repo-b"
	cln := newFakeCloner()

	orch := New(idx, store, reg, cln, outputDir, testLogger())
	summary, err := orch.Run(ctx)
	require.NoError(t, err, "store failures must never abort the run")

	// clone outcome, not store outcome, decides whether work was done
	assert.Equal(t, 2, summary.Cloned)
	assert.DirExists(t, filepath.Join(outputDir, "a"))
	assert.DirExists(t, filepath.Join(outputDir, "b"))
}

func TestOrchestrator_DuplicateIndexEntries(t *testing.T) {
	ctx := context.Background()
	outputDir := t.TempDir()

	idx := &fakeIndex{names: []string{"serde", "serde"}}
	store := newMemStore()
	reg := newFakeRegistry()
	reg.repos["serde"] = "https://example.com/serde"
	cln := newFakeCloner()

	orch := New(idx, store, reg, cln, outputDir, testLogger())
	summary, err := orch.Run(ctx)
	require.NoError(t, err)

	// the second occurrence hits the skip check
	assert.Equal(t, 1, summary.Cloned)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, cln.calls, 1)
}

func TestOrchestrator_IndexFailureIsFatal(t *testing.T) {
	idx := &fakeIndex{
		names:      []string{"serde"},
		refreshErr: apperrors.NewIndexError("could not update registry index", errors.New("network down")),
	}
	store := newMemStore()
	reg := newFakeRegistry()
	cln := newFakeCloner()

	orch := New(idx, store, reg, cln, t.TempDir(), testLogger())
	summary, err := orch.Run(context.Background())

	require.Error(t, err)
	assert.True(t, apperrors.IsIndexError(err))
	assert.Equal(t, 0, summary.Total, "no crate may be processed without an index")
	assert.Empty(t, reg.calls)
	assert.Empty(t, store.entries)
}

func TestOrchestrator_CancelledContextStopsBetweenCrates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	idx := &fakeIndex{names: []string{"a", "b"}}
	store := newMemStore()
	reg := newFakeRegistry()
	cln := newFakeCloner()

	orch := New(idx, store, reg, cln, t.TempDir(), testLogger())
	_, err := orch.Run(ctx)

	require.Error(t, err)
	assert.Empty(t, cln.calls)
}
