// internal/snapshot/store.go
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"snap/internal/commitlog"
	"snap/internal/content"
	snaperrors "snap/internal/errors"
	"snap/internal/index"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stagingPrefix = ".staging-"

// Store keeps one directory per commit under dir, named by commit id and
// holding a byte-for-byte copy of every file tracked at commit time.
type Store struct {
	root   string // working directory
	dir    string // commits directory
	index  *index.Index
	log    *commitlog.Log
	logger *zap.Logger
}

func NewStore(root, dir string, idx *index.Index, log *commitlog.Log, logger *zap.Logger) *Store {
	return &Store{
		root:   root,
		dir:    dir,
		index:  idx,
		log:    log,
		logger: logger,
	}
}

// Path returns the snapshot directory for id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id)
}

// FilePath returns where the stored copy of rel lives inside snapshot id.
func (s *Store) FilePath(id, rel string) string {
	return filepath.Join(s.dir, id, filepath.FromSlash(rel))
}

// Exists reports whether a snapshot is stored for id. Anything that is not
// a well-formed commit id never exists.
func (s *Store) Exists(id string) (bool, error) {
	if !content.IsDigest(id) {
		return false, nil
	}
	info, err := os.Stat(s.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, snaperrors.IO("checking snapshot "+id, err)
	}
	return info.IsDir(), nil
}

// HasSnapshots reports whether at least one committed snapshot directory
// exists. In-flight staging directories do not count.
func (s *Store) HasSnapshots() (bool, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, snaperrors.IO("listing commits", err)
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			return true, nil
		}
	}
	return false, nil
}

// Files lists the paths stored in snapshot id, slash-separated and sorted.
func (s *Store) Files(id string) ([]string, error) {
	base := s.Path(id)
	var files []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, snaperrors.NotFound(fmt.Sprintf("snapshot %s does not exist", id))
	}
	if err != nil {
		return nil, snaperrors.IO("listing snapshot "+id, err)
	}
	slices.Sort(files)
	return files, nil
}

// Commit snapshots every tracked file and records the commit in the log.
// The snapshot is staged in full and renamed into place before the log is
// touched, so a failure never leaves a log entry without its snapshot.
// The index is left as it is.
func (s *Store) Commit(message, author string) (commitlog.Entry, error) {
	paths, err := s.index.List()
	if err != nil {
		return commitlog.Entry{}, err
	}
	if len(paths) == 0 {
		return commitlog.Entry{}, snaperrors.Precondition("nothing to commit: no files are tracked")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return commitlog.Entry{}, snaperrors.IO("creating commits directory", err)
	}
	staging := filepath.Join(s.dir, stagingPrefix+uuid.New().String())
	if err := os.Mkdir(staging, 0o755); err != nil {
		return commitlog.Entry{}, snaperrors.IO("creating staging directory", err)
	}
	staged := false
	defer func() {
		if !staged {
			if err := os.RemoveAll(staging); err != nil {
				s.logger.Warn("removing staging directory", zap.String("dir", staging), zap.Error(err))
			}
		}
	}()

	// A path tracked twice contributes its digest twice but is stored once.
	digests := make([]string, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		digest, ok := seen[p]
		if !ok {
			if digest, err = s.stageFile(staging, p); err != nil {
				return commitlog.Entry{}, err
			}
			seen[p] = digest
		}
		digests = append(digests, digest)
	}

	id := content.CommitID(digests)
	exists, err := s.Exists(id)
	if err != nil {
		return commitlog.Entry{}, err
	}
	if exists {
		return commitlog.Entry{}, snaperrors.Invariant(fmt.Sprintf("snapshot %s already exists", id))
	}

	final := s.Path(id)
	if err := os.Rename(staging, final); err != nil {
		return commitlog.Entry{}, snaperrors.IO("publishing snapshot "+id, err)
	}
	staged = true

	entry := commitlog.Entry{ID: id, Author: author, Message: message}
	if err := s.log.Prepend(entry); err != nil {
		if rmErr := os.RemoveAll(final); rmErr != nil {
			s.logger.Error("snapshot left without log entry", zap.String("commit", id), zap.Error(rmErr))
		}
		return commitlog.Entry{}, err
	}

	s.logger.Info("commit created",
		zap.String("commit", id),
		zap.Int("files", len(paths)),
		zap.String("author", author))
	return entry, nil
}

// stageFile copies one tracked file into the staging directory and returns
// the digest of the bytes that were copied.
func (s *Store) stageFile(staging, rel string) (string, error) {
	src := filepath.Join(s.root, filepath.FromSlash(rel))
	info, err := os.Stat(src)
	if err != nil {
		return "", snaperrors.IO("reading tracked file "+rel, err)
	}
	if !info.Mode().IsRegular() {
		return "", snaperrors.Precondition(fmt.Sprintf("tracked path %s is not a regular file", rel))
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return "", snaperrors.IO("reading tracked file "+rel, err)
	}

	dst := filepath.Join(staging, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", snaperrors.IO("staging "+rel, err)
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return "", snaperrors.IO("staging "+rel, err)
	}
	return content.Digest(data), nil
}
