// internal/repo/repo.go
package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"snap/internal/change"
	"snap/internal/checkout"
	"snap/internal/commitlog"
	"snap/internal/config"
	"snap/internal/content"
	snaperrors "snap/internal/errors"
	"snap/internal/index"
	"snap/internal/logging"
	"snap/internal/snapshot"
	"snap/internal/storage"
	"snap/internal/validation"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// MarkerDir is the directory holding all repository state.
const MarkerDir = ".snap"

// Repository is the context every command runs against. It owns the paths
// of the persisted artifacts and the components built on top of them.
type Repository struct {
	Root     string
	Dir      string
	Settings *config.Settings
	Logger   *zap.Logger

	Index    *index.Index
	Log      *commitlog.Log
	Store    *snapshot.Store
	Detector *change.Detector
	Checkout *checkout.Engine

	db *badger.DB
}

// Options controls Open. Zero values mean: load settings from the marker
// directory, log nowhere, keep the digest cache on disk.
type Options struct {
	Settings      *config.Settings
	Logger        *logging.Logger
	InMemoryCache bool
}

func (r *Repository) ConfigPath() string   { return filepath.Join(r.Dir, "config") }
func (r *Repository) IndexPath() string    { return filepath.Join(r.Dir, "index") }
func (r *Repository) LogPath() string      { return filepath.Join(r.Dir, "log") }
func (r *Repository) CommitsDir() string   { return filepath.Join(r.Dir, "commits") }
func (r *Repository) CacheDir() string     { return filepath.Join(r.Dir, "cache") }
func (r *Repository) SettingsPath() string { return filepath.Join(r.Dir, "settings.yaml") }

// Initialize creates the marker directory layout under root. Existing state
// is left alone.
func Initialize(root string) error {
	dir := filepath.Join(root, MarkerDir)
	if err := os.MkdirAll(filepath.Join(dir, "commits"), 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", MarkerDir, err)
	}

	for _, name := range []string{"config", "index", "log"} {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
		f.Close()
	}
	return nil
}

// FindRoot searches startDir and its parents for the marker directory.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, MarkerDir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", snaperrors.NotFound("not a snap repository (run snap init)")
}

// Open wires a repository rooted at root, which must already be initialized.
func Open(root string, opts Options) (*Repository, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", root, err)
	}

	r := &Repository{
		Root:     absRoot,
		Dir:      filepath.Join(absRoot, MarkerDir),
		Settings: opts.Settings,
	}
	if info, err := os.Stat(r.Dir); err != nil || !info.IsDir() {
		return nil, snaperrors.NotFound(fmt.Sprintf("%s is not a snap repository (run snap init)", absRoot))
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	r.Logger = logger.WithRepo(absRoot)
	if r.Settings == nil {
		if r.Settings, err = config.Load(r.SettingsPath()); err != nil {
			return nil, err
		}
	}

	var committed content.Hasher = content.FileHasher{}
	if r.Settings.Cache.Enabled {
		committed = r.openCache(opts.InMemoryCache)
	}

	r.Index = index.New(r.IndexPath())
	r.Log = commitlog.New(r.LogPath())
	r.Store = snapshot.NewStore(r.Root, r.CommitsDir(), r.Index, r.Log, r.Logger)
	r.Detector = change.NewDetector(r.Root, r.Index, r.Log, r.Store, committed, r.Logger)
	r.Checkout = checkout.NewEngine(r.Root, r.Index, r.Store, r.Logger)

	return r, nil
}

// openCache returns the badger-backed digest cache, or a plain hasher when
// the cache cannot be opened, usually because another snap process holds
// the database lock.
func (r *Repository) openCache(inMemory bool) content.Hasher {
	db, err := storage.Open(r.CacheDir(), inMemory)
	if err != nil {
		r.Logger.Warn("digest cache unavailable, hashing snapshot files directly", zap.Error(err))
		return content.FileHasher{}
	}
	cache, err := content.NewCache(db, r.Settings.Cache.Size, r.Logger)
	if err != nil {
		db.Close()
		r.Logger.Warn("digest cache unavailable, hashing snapshot files directly", zap.Error(err))
		return content.FileHasher{}
	}
	r.db = db
	return cache
}

// Close releases the digest cache.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("closing digest cache: %w", err)
	}
	return nil
}

// Author returns the configured author name, "" when unset.
func (r *Repository) Author() (string, error) {
	return config.ReadAuthor(r.ConfigPath())
}

func (r *Repository) SetAuthor(name string) (string, error) {
	name, err := validation.Author(name)
	if err != nil {
		return "", err
	}
	if err := config.WriteAuthor(r.ConfigPath(), name); err != nil {
		return "", snaperrors.IO("saving author", err)
	}
	return name, nil
}

// Add tracks the given paths. Relative paths are taken from the repository
// root. Directories are walked ("." adds every file), glob patterns
// (including **) are expanded, and every plain file must exist. Returns the paths appended, in order.
func (r *Repository) Add(paths ...string) ([]string, error) {
	if len(paths) == 0 {
		return nil, snaperrors.Precondition("no paths given")
	}

	var added []string
	for _, p := range paths {
		rel, err := validation.TrackedPath(r.Root, MarkerDir, p)
		if err != nil {
			return nil, err
		}

		var files []string
		if r.isPattern(rel) {
			files, err = r.glob(rel)
		} else {
			files, err = r.expand(rel)
		}
		if err != nil {
			return nil, err
		}
		added = append(added, files...)
	}

	tracked, err := r.Index.List()
	if err != nil {
		return nil, err
	}
	if err := r.Index.Replace(append(tracked, added...)); err != nil {
		return nil, err
	}

	r.Logger.Debug("paths tracked", zap.Strings("paths", added))
	return added, nil
}

// expand resolves a plain path to the files it names.
func (r *Repository) expand(rel string) ([]string, error) {
	abs := filepath.Join(r.Root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, snaperrors.NotFound(fmt.Sprintf("file %s does not exist", rel))
	}
	if err != nil {
		return nil, snaperrors.IO("checking "+rel, err)
	}
	if info.Mode().IsRegular() {
		return []string{rel}, nil
	}
	if !info.IsDir() {
		return nil, snaperrors.Precondition(fmt.Sprintf("%s is not a regular file", rel))
	}

	var files []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == MarkerDir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fileRel, err := validation.TrackedPath(r.Root, MarkerDir, path)
		if err != nil {
			return err
		}
		files = append(files, fileRel)
		return nil
	})
	if err != nil {
		return nil, snaperrors.IO("walking "+rel, err)
	}
	if len(files) == 0 {
		return nil, snaperrors.NotFound(fmt.Sprintf("directory %s has no files", rel))
	}
	return files, nil
}

func (r *Repository) glob(pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(r.Root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, snaperrors.Precondition(fmt.Sprintf("bad pattern %s: %v", pattern, err))
	}

	files := matches[:0]
	for _, m := range matches {
		if m == MarkerDir || strings.HasPrefix(m, MarkerDir+"/") {
			continue
		}
		files = append(files, m)
	}
	if len(files) == 0 {
		return nil, snaperrors.NotFound(fmt.Sprintf("pattern %s matched no files", pattern))
	}
	slices.Sort(files)
	return files, nil
}

// isPattern reports whether rel should be expanded as a glob. A path that
// exists on disk is always taken literally, so "notes[1].txt" names a file.
func (r *Repository) isPattern(rel string) bool {
	if !hasMeta(rel) || !doublestar.ValidatePattern(rel) {
		return false
	}
	_, err := os.Lstat(filepath.Join(r.Root, filepath.FromSlash(rel)))
	return errors.Is(err, os.ErrNotExist)
}

func hasMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// Tracked returns the index in order.
func (r *Repository) Tracked() ([]string, error) {
	return r.Index.List()
}

// Entries returns the commit log, most recent first.
func (r *Repository) Entries() ([]commitlog.Entry, error) {
	return r.Log.Entries()
}

func (r *Repository) ShouldCommit() (bool, error) {
	return r.Detector.ShouldCommit()
}

func (r *Repository) Status() (*change.Status, error) {
	return r.Detector.Status()
}

// Commit validates message, checks there is something new to record and
// creates the commit under the configured author.
func (r *Repository) Commit(message string) (commitlog.Entry, error) {
	message, err := validation.NormalizeMessage(message)
	if err != nil {
		return commitlog.Entry{}, err
	}

	tracked, err := r.Index.List()
	if err != nil {
		return commitlog.Entry{}, err
	}
	if len(tracked) == 0 {
		return commitlog.Entry{}, snaperrors.Precondition("nothing to commit: no files are tracked (use snap add)")
	}

	ok, err := r.Detector.ShouldCommit()
	if err != nil {
		return commitlog.Entry{}, err
	}
	if !ok {
		return commitlog.Entry{}, snaperrors.Precondition("nothing to commit: tracked files match the latest commit")
	}

	author, err := r.Author()
	if err != nil {
		return commitlog.Entry{}, snaperrors.IO("reading author", err)
	}
	return r.Store.Commit(message, author)
}

// CheckoutRef resolves ref (a commit id or unique prefix) against the log
// and restores that commit. It returns the full id.
func (r *Repository) CheckoutRef(ref string) (string, error) {
	id, err := r.Log.Resolve(ref)
	if err != nil {
		return "", err
	}
	if err := r.Checkout.Checkout(id); err != nil {
		return "", err
	}
	return id, nil
}
