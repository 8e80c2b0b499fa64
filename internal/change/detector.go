// internal/change/detector.go
package change

import (
	"errors"
	"os"
	"path/filepath"
	"slices"

	"snap/internal/commitlog"
	"snap/internal/content"
	snaperrors "snap/internal/errors"
	"snap/internal/index"
	"snap/internal/snapshot"
	"snap/shared/utils"

	"go.uber.org/zap"
)

// Detector decides whether committing now would produce anything new
// compared to the most recent commit.
type Detector struct {
	root      string
	index     *index.Index
	log       *commitlog.Log
	store     *snapshot.Store
	working   content.Hasher
	committed content.Hasher
	logger    *zap.Logger
}

// NewDetector wires a detector. Working files are always re-read; committed
// is used for the immutable snapshot copies and may be a cache.
func NewDetector(root string, idx *index.Index, log *commitlog.Log, store *snapshot.Store, committed content.Hasher, logger *zap.Logger) *Detector {
	if committed == nil {
		committed = content.FileHasher{}
	}
	return &Detector{
		root:      root,
		index:     idx,
		log:       log,
		store:     store,
		working:   content.FileHasher{},
		committed: committed,
		logger:    logger,
	}
}

// ShouldCommit applies the rules in order and stops at the first one that
// decides: empty index, no prior commit, differing file sets, differing
// content.
func (d *Detector) ShouldCommit() (bool, error) {
	paths, err := d.index.List()
	if err != nil {
		return false, err
	}
	if len(paths) == 0 {
		return false, nil
	}

	latest, ok, err := d.latest()
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	committed, err := d.store.Files(latest)
	if snaperrors.IsType(err, snaperrors.ErrorTypeNotFound) {
		d.logger.Warn("latest commit has no snapshot", zap.String("commit", latest))
		return true, nil
	}
	if err != nil {
		return false, err
	}

	indexed := uniqueSorted(paths)
	if !slices.Equal(committed, indexed) {
		d.logger.Debug("tracked set differs from latest commit", zap.String("commit", latest))
		return true, nil
	}

	for _, p := range indexed {
		same, err := d.sameContent(latest, p)
		if err != nil {
			return false, err
		}
		if !same {
			d.logger.Debug("content differs", zap.String("path", p), zap.String("commit", latest))
			return true, nil
		}
	}
	return false, nil
}

// Status compares the index against the latest commit without stopping at
// the first difference.
func (d *Detector) Status() (*Status, error) {
	paths, err := d.index.List()
	if err != nil {
		return nil, err
	}

	status := &Status{Tracked: uniqueSorted(paths)}
	for _, p := range status.Tracked {
		if _, err := os.Stat(d.workingPath(p)); errors.Is(err, os.ErrNotExist) {
			status.Missing = append(status.Missing, p)
		}
	}

	latest, ok, err := d.latest()
	if err != nil {
		return nil, err
	}
	if !ok {
		status.Added = status.Tracked
		return status, nil
	}
	status.Latest = latest

	committed, err := d.store.Files(latest)
	if err != nil && !snaperrors.IsType(err, snaperrors.ErrorTypeNotFound) {
		return nil, err
	}

	inCommit := make(map[string]bool, len(committed))
	for _, p := range committed {
		inCommit[p] = true
	}
	inIndex := make(map[string]bool, len(status.Tracked))
	for _, p := range status.Tracked {
		inIndex[p] = true
		if !inCommit[p] {
			status.Added = append(status.Added, p)
			continue
		}
		if slices.Contains(status.Missing, p) {
			continue
		}
		same, err := d.sameContent(latest, p)
		if err != nil {
			return nil, err
		}
		if !same {
			status.Modified = append(status.Modified, p)
		}
	}
	for _, p := range committed {
		if !inIndex[p] {
			status.Removed = append(status.Removed, p)
		}
	}
	return status, nil
}

// latest returns the id of the most recent commit, or ok=false when nothing
// has been committed yet.
func (d *Detector) latest() (id string, ok bool, err error) {
	entry, ok, err := d.log.Latest()
	if err != nil || !ok {
		return "", false, err
	}
	has, err := d.store.HasSnapshots()
	if err != nil || !has {
		return "", false, err
	}
	return entry.ID, true, nil
}

func (d *Detector) sameContent(commit, rel string) (bool, error) {
	current, err := d.working.DigestFile(d.workingPath(rel))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, snaperrors.IO("hashing "+rel, err)
	}

	stored, err := d.committed.DigestFile(d.store.FilePath(commit, rel))
	if err != nil {
		return false, snaperrors.IO("hashing snapshot copy of "+rel, err)
	}
	return current == stored, nil
}

func (d *Detector) workingPath(rel string) string {
	return filepath.Join(d.root, filepath.FromSlash(rel))
}

func uniqueSorted(paths []string) []string {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return utils.SortedKeys(set)
}
