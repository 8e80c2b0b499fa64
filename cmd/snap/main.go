// cmd/snap/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"snap/internal/archive"
	"snap/internal/change"
	"snap/internal/config"
	"snap/internal/logging"
	"snap/internal/repo"
	"snap/internal/watch"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "snap",
	Short: "Snap is a minimal local version control tool",
	Long: `Snap tracks a chosen set of files, snapshots them under a content-derived
commit id whenever they change, and restores any earlier snapshot on demand.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new snap repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			if err := repo.Initialize(dir); err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Initialized snap repository in", filepath.Join(dir, repo.MarkerDir))
			return nil
		},
	}

	var configCmd = &cobra.Command{
		Use:   "config [author name]",
		Short: "Show or set the commit author",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if len(args) == 0 {
				author, err := r.Author()
				if err != nil {
					return err
				}
				if author == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "No author configured")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Author:", author)
				return nil
			}

			name, err := r.SetAuthor(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Author set to", name)
			return nil
		},
	}

	var addCmd = &cobra.Command{
		Use:   "add <path>...",
		Short: "Track files for the next commit",
		Long: `Appends paths to the index. Directories are added file by file and glob
patterns such as 'src/**/*.txt' are expanded. Adding a path twice tracks it twice.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			paths, err := absolute(args)
			if err != nil {
				return err
			}

			added, err := r.Add(paths...)
			if err != nil {
				return err
			}

			if len(added) == 1 {
				fmt.Fprintln(cmd.OutOrStdout(), "Tracking", added[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Tracking %d files\n", len(added))
			}
			return nil
		},
	}

	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "List tracked paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			tracked, err := r.Tracked()
			if err != nil {
				return err
			}

			if len(tracked) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files tracked")
				return nil
			}
			for _, p := range tracked {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show commit history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			entries, err := r.Entries()
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No commits yet")
				return nil
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			for i, e := range entries {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "commit %s\n", yellow(e.ID))
				fmt.Fprintf(cmd.OutOrStdout(), "Author: %s\n", e.Author)
				fmt.Fprintf(cmd.OutOrStdout(), "\n    %s\n", e.Message)
			}
			return nil
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show how tracked files differ from the latest commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			status, err := r.Status()
			if err != nil {
				return err
			}
			printStatus(cmd, status)
			return nil
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit [message]",
		Short: "Snapshot tracked files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			if len(args) == 1 {
				if message != "" {
					return fmt.Errorf("give the message either as an argument or with -m, not both")
				}
				message = args[0]
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			entry, err := r.Commit(message)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Committed %s: %s\n", entry.ID, entry.Message)
			return nil
		},
	}

	var checkoutCmd = &cobra.Command{
		Use:   "checkout <commit>",
		Short: "Restore tracked files to a commit",
		Long: `Deletes the currently tracked files, restores the files of the given commit
and resets the index to that commit's file list. A unique prefix of at least
four characters may be used instead of the full id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("checkout needs exactly one commit id")
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.CheckoutRef(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Checked out", id)
			return nil
		},
	}

	var archiveCmd = &cobra.Command{
		Use:   "archive <commit>",
		Short: "Export a commit as a zstd-compressed tarball",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			prefix, _ := cmd.Flags().GetString("prefix")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.Log.Resolve(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = id[:12] + ".tar.zst"
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating archive: %w", err)
			}

			opts := archive.DefaultOptions()
			opts.Level = r.Settings.Archive.Level
			opts.Prefix = prefix

			n, err := archive.Write(f, r.Store, id, opts)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				os.Remove(output)
				return fmt.Errorf("writing archive: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d files to %s\n", n, output)
			return nil
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Report whenever tracked files drift from the latest commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			w, err := watch.New(r.Root, repo.MarkerDir, r.Logger)
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			report := func([]string) {
				status, err := r.Status()
				if err != nil {
					r.Logger.Error("computing status", zap.Error(err))
					return
				}
				printStatus(cmd, status)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Watching", r.Root, "(Ctrl-C to stop)")
			report(nil)
			return w.Run(ctx, report)
		},
	}

	commitCmd.Flags().StringP("message", "m", "", "Commit message")

	archiveCmd.Flags().StringP("output", "o", "", "Archive file (default <id>.tar.zst)")
	archiveCmd.Flags().String("prefix", "", "Directory prefix for archive entries")

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(watchCmd)
}

// openRepo finds the repository around the working directory and opens it
// with its settings and a logger at the configured level.
func openRepo() (*repo.Repository, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	root, err := repo.FindRoot(cwd)
	if err != nil {
		return nil, err
	}

	settings, err := config.Load(filepath.Join(root, repo.MarkerDir, "settings.yaml"))
	if err != nil {
		return nil, err
	}
	if level, _ := rootCmd.PersistentFlags().GetString("log-level"); level != "" {
		settings.LogLevel = level
	}

	logger, err := logging.NewLogger(settings.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	return repo.Open(root, repo.Options{
		Settings: settings,
		Logger:   logger,
	})
}

// absolute resolves command-line paths against the working directory so
// they can be used from anywhere inside the repository.
func absolute(args []string) ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	paths := make([]string, len(args))
	for i, a := range args {
		if filepath.IsAbs(a) {
			paths[i] = a
		} else {
			paths[i] = filepath.Join(cwd, a)
		}
	}
	return paths, nil
}

func printStatus(cmd *cobra.Command, s *change.Status) {
	out := cmd.OutOrStdout()

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if len(s.Tracked) == 0 {
		fmt.Fprintln(out, "No files tracked (use \"snap add <file>...\")")
		return
	}
	if s.Clean() {
		fmt.Fprintf(out, "Nothing to commit, tracked files match %s\n", s.Latest)
		return
	}

	if s.Latest == "" {
		fmt.Fprintln(out, "No commits yet")
	} else {
		fmt.Fprintf(out, "Changes since %s:\n", s.Latest)
	}
	for _, p := range s.Added {
		fmt.Fprintf(out, "\t%s %s\n", green("A"), p)
	}
	for _, p := range s.Modified {
		fmt.Fprintf(out, "\t%s %s\n", yellow("M"), p)
	}
	for _, p := range s.Removed {
		fmt.Fprintf(out, "\t%s %s\n", red("R"), p)
	}
	for _, p := range s.Missing {
		fmt.Fprintf(out, "\t%s %s\n", red("!"), p)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
