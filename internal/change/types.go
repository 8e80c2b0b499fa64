// internal/change/types.go
package change

// Status describes how the index and working directory differ from the
// latest commit. All lists are sorted.
type Status struct {
	Latest   string   // empty before the first commit
	Tracked  []string // distinct tracked paths
	Added    []string // tracked but not in the latest commit
	Removed  []string // in the latest commit but no longer tracked
	Modified []string // tracked, committed, content differs
	Missing  []string // tracked but absent from the working directory
}

// Clean reports whether a commit would record nothing new.
func (s *Status) Clean() bool {
	return len(s.Tracked) == 0 || (s.Latest != "" &&
		len(s.Added) == 0 && len(s.Removed) == 0 && len(s.Modified) == 0 && len(s.Missing) == 0)
}
