// internal/archive/archive.go
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Source is the read side of the commit store.
type Source interface {
	Files(id string) ([]string, error)
	FilePath(id, rel string) string
}

// Options configures archive output.
type Options struct {
	// Compression level (1=fastest, 4=best)
	Level int
	// Prefix is a directory every entry is placed under, e.g. "project".
	Prefix string
}

func DefaultOptions() Options {
	return Options{Level: 2}
}

// epoch is the fixed mtime of every entry so the same commit always yields
// the same archive bytes.
var epoch = time.Unix(0, 0).UTC()

// Write streams snapshot id from src to w as a zstd-compressed tar. Entries
// are written in sorted path order.
func Write(w io.Writer, src Source, id string, opts Options) (int, error) {
	if opts.Level < int(zstd.SpeedFastest) || opts.Level > int(zstd.SpeedBestCompression) {
		return 0, fmt.Errorf("compression level %d out of range", opts.Level)
	}

	files, err := src.Files(id)
	if err != nil {
		return 0, err
	}

	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.EncoderLevel(opts.Level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return 0, fmt.Errorf("creating encoder: %w", err)
	}

	prefix := opts.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	tw := tar.NewWriter(enc)
	for _, rel := range files {
		if err := addFile(tw, src.FilePath(id, rel), prefix+rel); err != nil {
			enc.Close()
			return 0, fmt.Errorf("archiving %s: %w", rel, err)
		}
	}

	if err := tw.Close(); err != nil {
		enc.Close()
		return 0, fmt.Errorf("finalizing tar: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("finalizing compression: %w", err)
	}
	return len(files), nil
}

func addFile(tw *tar.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  epoch,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
