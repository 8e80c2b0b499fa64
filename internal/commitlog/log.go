// internal/commitlog/log.go
package commitlog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	snaperrors "snap/internal/errors"
	"snap/shared/utils"
)

// Separator joins the three fields of a serialized entry.
const Separator = ":::"

// MinPrefix is the shortest id prefix Resolve accepts.
const MinPrefix = 4

// Entry is one commit record.
type Entry struct {
	ID      string
	Author  string
	Message string
}

// MarshalText renders the entry as a single log line without the trailing
// newline. Fields that would break the line format are rejected.
func (e Entry) MarshalText() ([]byte, error) {
	for name, field := range map[string]string{"id": e.ID, "author": e.Author, "message": e.Message} {
		if strings.Contains(field, Separator) {
			return nil, fmt.Errorf("%s contains the log separator %q", name, Separator)
		}
		if strings.ContainsAny(field, "\r\n") {
			return nil, fmt.Errorf("%s contains a line break", name)
		}
	}
	if e.ID == "" {
		return nil, fmt.Errorf("entry has no commit id")
	}
	return []byte(e.ID + Separator + e.Author + Separator + e.Message), nil
}

func (e *Entry) UnmarshalText(line []byte) error {
	parts := strings.SplitN(string(line), Separator, 3)
	if len(parts) != 3 || parts[0] == "" {
		return fmt.Errorf("malformed log line %q", line)
	}
	e.ID, e.Author, e.Message = parts[0], parts[1], parts[2]
	return nil
}

// Log is the on-disk commit history, most recent entry first.
type Log struct {
	path string
}

func New(path string) *Log {
	return &Log{path: path}
}

// Entries returns every entry, most recent first. A missing log file is an
// empty history.
func (l *Log) Entries() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, snaperrors.IO("reading log", err)
	}

	var entries []Entry
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		var e Entry
		if err := e.UnmarshalText([]byte(line)); err != nil {
			return nil, snaperrors.Corrupt(fmt.Sprintf("log line %d", n+1), err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Latest returns the most recently prepended entry. ok is false when the
// log is empty.
func (l *Log) Latest() (entry Entry, ok bool, err error) {
	entries, err := l.Entries()
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[0], true, nil
}

// Prepend puts e at the head of the log. The file is replaced atomically.
func (l *Log) Prepend(e Entry) error {
	line, err := e.MarshalText()
	if err != nil {
		return snaperrors.Precondition(fmt.Sprintf("cannot record commit: %v", err))
	}

	existing, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return snaperrors.IO("reading log", err)
	}

	data := make([]byte, 0, len(line)+1+len(existing))
	data = append(data, line...)
	data = append(data, '\n')
	data = append(data, existing...)

	if err := utils.WriteFileAtomic(l.path, data, 0o644); err != nil {
		return snaperrors.IO("writing log", err)
	}
	return nil
}

// Resolve maps a full id or a unique prefix of at least MinPrefix characters
// to a recorded commit id.
func (l *Log) Resolve(ref string) (string, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return "", snaperrors.Precondition("no commit id given")
	}

	entries, err := l.Entries()
	if err != nil {
		return "", err
	}

	matches := make(map[string]bool)
	for _, e := range entries {
		if e.ID == ref {
			return e.ID, nil
		}
		if len(ref) >= MinPrefix && strings.HasPrefix(e.ID, ref) {
			matches[e.ID] = true
		}
	}

	switch len(matches) {
	case 0:
		return "", snaperrors.NotFound(fmt.Sprintf("commit %s does not exist", ref))
	case 1:
		return utils.SortedKeys(matches)[0], nil
	default:
		return "", snaperrors.Precondition(fmt.Sprintf("commit prefix %s is ambiguous (%d matches)", ref, len(matches)))
	}
}
