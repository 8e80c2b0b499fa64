package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves the test into dir for its duration.
func chdir(t *testing.T, dir string) {
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(prev) })
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	out, err := run(t, args...)
	require.NoError(t, err, "snap %s", strings.Join(args, " "))
	return out
}

func TestCLIWorkflow(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("SNAP_LOG_LEVEL", "")

	assert.Contains(t, mustRun(t, "init"), "Initialized snap repository")
	assert.Contains(t, mustRun(t, "config", "Ada", "Lovelace"), "Author set to Ada Lovelace")
	assert.Contains(t, mustRun(t, "config"), "Author: Ada Lovelace")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	assert.Contains(t, mustRun(t, "add", "a.txt"), "Tracking a.txt")
	assert.Equal(t, "a.txt\n", mustRun(t, "list"))
	assert.Contains(t, mustRun(t, "status"), "No commits yet")

	first := mustRun(t, "commit", "-m", "first")
	assert.Contains(t, first, "Committed ")

	_, err := run(t, "commit", "again")
	assert.ErrorContains(t, err, "nothing to commit")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello!"), 0o644))
	assert.Contains(t, mustRun(t, "status"), "M a.txt")
	mustRun(t, "commit", `"second"`)

	log := mustRun(t, "log")
	assert.Equal(t, 2, strings.Count(log, "commit "))
	assert.Less(t, strings.Index(log, "second"), strings.Index(log, "first"), "newest first")
	assert.Contains(t, log, "Author: Ada Lovelace")

	firstID := strings.Fields(strings.TrimPrefix(first, "Committed "))[0]
	firstID = strings.TrimSuffix(firstID, ":")
	assert.Contains(t, mustRun(t, "checkout", firstID[:10]), "Checked out "+firstID)

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	archivePath := filepath.Join(dir, "out.tar.zst")
	assert.Contains(t, mustRun(t, "archive", firstID, "-o", archivePath), "Wrote 1 files")
	info, err := os.Stat(archivePath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCLIErrors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	_, err := run(t, "list")
	assert.ErrorContains(t, err, "not a snap repository")

	mustRun(t, "init")

	_, err = run(t, "checkout")
	assert.ErrorContains(t, err, "exactly one commit id")

	_, err = run(t, "checkout", "abcdef12")
	assert.ErrorContains(t, err, "does not exist")

	_, err = run(t, "add", "missing.txt")
	assert.ErrorContains(t, err, "does not exist")

	_, err = run(t, "commit", "-m", "   ")
	assert.ErrorContains(t, err, "message is empty")

	_, err = run(t, "commit", "-m", "x", "y")
	assert.Error(t, err)
}
