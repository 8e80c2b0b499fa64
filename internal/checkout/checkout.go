// internal/checkout/checkout.go
package checkout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	snaperrors "snap/internal/errors"
	"snap/internal/index"
	"snap/internal/snapshot"

	"go.uber.org/zap"
)

// Engine restores snapshots into the working directory.
type Engine struct {
	root   string
	index  *index.Index
	store  *snapshot.Store
	logger *zap.Logger
}

func NewEngine(root string, idx *index.Index, store *snapshot.Store, logger *zap.Logger) *Engine {
	return &Engine{
		root:   root,
		index:  idx,
		store:  store,
		logger: logger,
	}
}

// Checkout removes every currently tracked file, writes back the files of
// snapshot id and resets the index to the snapshot's sorted file list.
//
// The sequence is not atomic: an I/O error after the removals leaves the
// working directory partly restored.
func (e *Engine) Checkout(id string) error {
	exists, err := e.store.Exists(id)
	if err != nil {
		return err
	}
	if !exists {
		return snaperrors.NotFound(fmt.Sprintf("commit %s does not exist", id))
	}

	files, err := e.store.Files(id)
	if err != nil {
		return err
	}

	tracked, err := e.index.List()
	if err != nil {
		return err
	}
	for _, p := range tracked {
		err := os.Remove(e.workingPath(p))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return snaperrors.IO("removing "+p, err)
		}
	}

	for _, f := range files {
		if err := e.restore(id, f); err != nil {
			return err
		}
	}

	if err := e.index.Replace(files); err != nil {
		return err
	}

	e.logger.Info("checked out",
		zap.String("commit", id),
		zap.Int("removed", len(tracked)),
		zap.Int("restored", len(files)))
	return nil
}

func (e *Engine) restore(id, rel string) error {
	src := e.store.FilePath(id, rel)
	info, err := os.Stat(src)
	if err != nil {
		return snaperrors.IO("reading snapshot copy of "+rel, err)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return snaperrors.IO("reading snapshot copy of "+rel, err)
	}

	dst := e.workingPath(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return snaperrors.IO("restoring "+rel, err)
	}
	// An untracked file may already sit at dst; it is overwritten.
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return snaperrors.IO("restoring "+rel, err)
	}
	return nil
}

func (e *Engine) workingPath(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}
