// internal/index/index.go
package index

import (
	"errors"
	"fmt"
	"os"
	"strings"

	snaperrors "snap/internal/errors"
	"snap/shared/utils"
)

// Index is the ordered list of tracked paths. Order is insertion order and
// duplicates are kept; both feed into commit id derivation. Every call hits
// the file, nothing is cached.
type Index struct {
	path string
}

func New(path string) *Index {
	return &Index{path: path}
}

// List returns tracked paths in index order.
func (i *Index) List() ([]string, error) {
	data, err := os.ReadFile(i.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, snaperrors.IO("reading index", err)
	}

	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// Append tracks path at the end of the index. Existence of the file is the
// caller's concern.
func (i *Index) Append(path string) error {
	paths, err := i.List()
	if err != nil {
		return err
	}
	return i.Replace(append(paths, path))
}

// Replace overwrites the whole index.
func (i *Index) Replace(paths []string) error {
	var b strings.Builder
	for _, p := range paths {
		if p == "" || strings.ContainsAny(p, "\r\n") {
			return snaperrors.Precondition(fmt.Sprintf("invalid tracked path %q", p))
		}
		b.WriteString(p)
		b.WriteByte('\n')
	}

	if err := utils.WriteFileAtomic(i.path, []byte(b.String()), 0o644); err != nil {
		return snaperrors.IO("writing index", err)
	}
	return nil
}
