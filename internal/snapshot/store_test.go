package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"snap/internal/commitlog"
	"snap/internal/content"
	snaperrors "snap/internal/errors"
	"snap/internal/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	root  string
	dir   string
	index *index.Index
	log   *commitlog.Log
	store *Store
}

func setupStore(t *testing.T) *fixture {
	root := t.TempDir()
	marker := filepath.Join(root, ".snap")
	require.NoError(t, os.MkdirAll(filepath.Join(marker, "commits"), 0o755))

	f := &fixture{
		root:  root,
		dir:   filepath.Join(marker, "commits"),
		index: index.New(filepath.Join(marker, "index")),
		log:   commitlog.New(filepath.Join(marker, "log")),
	}
	f.store = NewStore(root, f.dir, f.index, f.log, zaptest.NewLogger(t))
	return f
}

func (f *fixture) write(t *testing.T, rel, body string) {
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func (f *fixture) commitDirs(t *testing.T) []string {
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCommit(t *testing.T) {
	f := setupStore(t)
	f.write(t, "a.txt", "hello")
	f.write(t, "dir/b.txt", "world")
	require.NoError(t, f.index.Replace([]string{"a.txt", "dir/b.txt"}))

	entry, err := f.store.Commit("first", "ada")
	require.NoError(t, err)

	want := content.CommitID([]string{content.Digest([]byte("hello")), content.Digest([]byte("world"))})
	assert.Equal(t, want, entry.ID)
	assert.Equal(t, commitlog.Entry{ID: want, Author: "ada", Message: "first"}, entry)

	files, err := f.store.Files(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "dir/b.txt"}, files)

	data, err := os.ReadFile(f.store.FilePath(entry.ID, "dir/b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))

	latest, ok, err := f.log.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry, latest)

	tracked, err := f.index.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "dir/b.txt"}, tracked, "commit leaves the index alone")

	assert.Equal(t, []string{entry.ID}, f.commitDirs(t), "no staging directory left behind")
}

func TestCommitIDIsContentAddressed(t *testing.T) {
	a := setupStore(t)
	b := setupStore(t)
	for _, f := range []*fixture{a, b} {
		f.write(t, "x.txt", "same")
		f.write(t, "y.txt", "content")
		require.NoError(t, f.index.Replace([]string{"x.txt", "y.txt"}))
	}

	first, err := a.store.Commit("one", "ada")
	require.NoError(t, err)
	second, err := b.store.Commit("two", "grace")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestCommitOrderAndDuplicates(t *testing.T) {
	f := setupStore(t)
	f.write(t, "a.txt", "a")
	require.NoError(t, f.index.Replace([]string{"a.txt", "a.txt"}))

	entry, err := f.store.Commit("dup", "")
	require.NoError(t, err)

	d := content.Digest([]byte("a"))
	assert.Equal(t, content.CommitID([]string{d, d}), entry.ID)
	assert.Empty(t, entry.Author, "unset author is recorded as empty")

	files, err := f.store.Files(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, files)
}

func TestCommitMissingFileIsAtomic(t *testing.T) {
	f := setupStore(t)
	f.write(t, "a.txt", "hello")
	require.NoError(t, f.index.Replace([]string{"a.txt", "gone.txt"}))

	_, err := f.store.Commit("broken", "ada")
	assert.True(t, snaperrors.IsType(err, snaperrors.ErrorTypeIO), "got %v", err)

	entries, err := f.log.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.commitDirs(t))

	has, err := f.store.HasSnapshots()
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCommitEmptyIndex(t *testing.T) {
	f := setupStore(t)
	_, err := f.store.Commit("nothing", "ada")
	assert.True(t, snaperrors.IsType(err, snaperrors.ErrorTypePrecondition))
}

func TestCommitCollision(t *testing.T) {
	f := setupStore(t)
	f.write(t, "a.txt", "hello")
	require.NoError(t, f.index.Replace([]string{"a.txt"}))

	_, err := f.store.Commit("first", "ada")
	require.NoError(t, err)

	_, err = f.store.Commit("again", "ada")
	assert.True(t, snaperrors.IsType(err, snaperrors.ErrorTypeInvariant))

	entries, err := f.log.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, f.commitDirs(t), 1)
}

func TestCommitLogFailureRollsBackSnapshot(t *testing.T) {
	f := setupStore(t)
	f.write(t, "a.txt", "hello")
	require.NoError(t, f.index.Replace([]string{"a.txt"}))

	_, err := f.store.Commit("bad:::message", "ada")
	assert.Error(t, err)
	assert.Empty(t, f.commitDirs(t))
}

func TestHasSnapshotsIgnoresStaging(t *testing.T) {
	f := setupStore(t)
	require.NoError(t, os.Mkdir(filepath.Join(f.dir, stagingPrefix+"leftover"), 0o755))

	has, err := f.store.HasSnapshots()
	require.NoError(t, err)
	assert.False(t, has)
}

func TestExistsAndFiles(t *testing.T) {
	f := setupStore(t)

	ok, err := f.store.Exists("deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, bad := range []string{"", ".staging-x", "../x"} {
		ok, err := f.store.Exists(bad)
		require.NoError(t, err)
		assert.False(t, ok, bad)
	}

	_, err = f.store.Files("deadbeef")
	assert.True(t, snaperrors.IsType(err, snaperrors.ErrorTypeNotFound))
}

func TestExistsRequiresFullCommitID(t *testing.T) {
	f := setupStore(t)
	f.write(t, "a.txt", "hello")
	require.NoError(t, f.index.Replace([]string{"a.txt"}))
	entry, err := f.store.Commit("first", "ada")
	require.NoError(t, err)

	ok, err := f.store.Exists(entry.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, ref := range []string{entry.ID[:8], strings.ToUpper(entry.ID)} {
		ok, err := f.store.Exists(ref)
		require.NoError(t, err)
		assert.False(t, ok, ref)
	}
}
