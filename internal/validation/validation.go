package validation

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"snap/internal/commitlog"
	"snap/internal/errors"
)

// NormalizeMessage trims whitespace and strips one pair of surrounding
// double quotes. A quote is only stripped when both ends carry one.
func NormalizeMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if len(message) >= 2 && strings.HasPrefix(message, `"`) && strings.HasSuffix(message, `"`) {
		message = strings.TrimSpace(message[1 : len(message)-1])
	}

	if message == "" {
		return "", errors.Precondition("commit message is empty")
	}
	if err := checkField("commit message", message); err != nil {
		return "", err
	}
	return message, nil
}

// Author validates an author name before it is stored.
func Author(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.Precondition("author name is empty")
	}
	if err := checkField("author name", name); err != nil {
		return "", err
	}
	return name, nil
}

// TrackedPath turns a user-supplied path into the slash-separated form the
// index stores, relative to root. Paths escaping root or pointing into the
// marker directory are rejected. Root itself comes back as ".".
func TrackedPath(root, markerDir, p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, p)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", errors.Precondition(fmt.Sprintf("path %s is outside the repository", p))
	}
	rel = path.Clean(filepath.ToSlash(rel))

	switch {
	case rel == ".." || strings.HasPrefix(rel, "../"):
		return "", errors.Precondition(fmt.Sprintf("path %s is outside the repository", p))
	case rel == markerDir || strings.HasPrefix(rel, markerDir+"/"):
		return "", errors.Precondition(fmt.Sprintf("path %s is inside %s", p, markerDir))
	case strings.ContainsAny(rel, "\r\n"):
		return "", errors.Precondition(fmt.Sprintf("path %q contains a line break", p))
	}
	return rel, nil
}

func checkField(name, value string) error {
	if strings.Contains(value, commitlog.Separator) {
		return errors.Precondition(fmt.Sprintf("%s must not contain %q", name, commitlog.Separator))
	}
	if strings.ContainsAny(value, "\r\n") {
		return errors.Precondition(fmt.Sprintf("%s must be a single line", name))
	}
	return nil
}
