package validation

import (
	"path/filepath"
	"testing"

	"snap/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"first", "first", false},
		{"  padded  ", "padded", false},
		{`"quoted"`, "quoted", false},
		{`  " spaced quote "  `, "spaced quote", false},
		{`"leading only`, `"leading only`, false},
		{`trailing only"`, `trailing only"`, false},
		{`"`, `"`, false},
		{`say "hi"`, `say "hi"`, false},
		{"", "", true},
		{"  ", "", true},
		{`"  "`, "", true},
		{`""`, "", true},
		{"a:::b", "", true},
		{"two\nlines", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeMessage(tt.in)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypePrecondition), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthor(t *testing.T) {
	name, err := Author("  Ada  ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)

	for _, bad := range []string{"", "   ", "a:::b", "a\nb"} {
		_, err := Author(bad)
		assert.Error(t, err, bad)
	}
}

func TestTrackedPath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "a.txt", "a.txt", false},
		{"nested", filepath.Join("dir", "b.txt"), "dir/b.txt", false},
		{"dot segments", "./dir/../a.txt", "a.txt", false},
		{"absolute inside", filepath.Join(root, "c.txt"), "c.txt", false},
		{"root itself", ".", ".", false},
		{"escapes", "../x.txt", "", true},
		{"marker dir", ".snap/index", "", true},
		{"marker dir itself", ".snap", "", true},
		{"marker-like name", ".snapshot", ".snapshot", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TrackedPath(root, ".snap", tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
