// Package discovery enumerates candidate usage-log files across the
// configured root directories.
//
// A missing or unreadable root is skipped with a warning; discovery only
// fails when every configured root is unusable. Traversal order is
// stable (sorted) so repeated runs log files in the same order, though
// the pipeline itself is order-insensitive.
//
// Example usage:
//
//	d := discovery.New([]string{"~/.config/claude/projects"}, logger.Default())
//	files, err := d.Discover("")
//	for _, f := range files {
//	    fmt.Printf("%s (project %s)\n", f.Path, f.Project)
//	}
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SourceFile is one discovered usage-log file.
type SourceFile struct {
	// Path is the absolute path to the JSONL file.
	Path string

	// Project is the project name extracted from the directory layout
	// (.../projects/<project>/<session>.jsonl), or "unknown".
	Project string

	// SessionID is the filename without the .jsonl extension.
	SessionID string

	// Size is the file size in bytes at discovery time.
	Size int64
}

// Discoverer enumerates usage-log files.
type Discoverer interface {
	// Discover scans all configured roots and returns the files found,
	// optionally filtered to one project name (empty means no filter).
	//
	// Unusable roots are skipped with a warning. Returns
	// ErrNoUsableSources only when every root is missing or unreadable.
	Discover(project string) ([]SourceFile, error)
}

type discoverer struct {
	roots  []string
	logger Logger
}

// New creates a Discoverer over the given root directories.
//
// Roots are deduplicated after ~ expansion, so overlapping configuration
// does not scan the same tree twice.
func New(roots []string, logger Logger) Discoverer {
	seen := make(map[string]struct{}, len(roots))
	unique := make([]string, 0, len(roots))
	for _, r := range roots {
		expanded := expandHome(r)
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		unique = append(unique, expanded)
	}
	sort.Strings(unique)

	return &discoverer{
		roots:  unique,
		logger: logger,
	}
}

// Discover implements Discoverer.Discover.
func (d *discoverer) Discover(project string) ([]SourceFile, error) {
	if len(d.roots) == 0 {
		return nil, ErrNoUsableSources
	}

	var files []SourceFile
	usable := 0

	for _, root := range d.roots {
		rootFiles, err := d.scanRoot(root)
		if err != nil {
			d.logger.Warn("skipping unusable source directory",
				"path", root,
				"error", err)
			continue
		}
		usable++
		files = append(files, rootFiles...)
	}

	if usable == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoUsableSources, d.roots)
	}

	if project != "" {
		filtered := files[:0]
		for _, f := range files {
			if f.Project == project {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	d.logger.Debug("discovery complete",
		"roots", len(d.roots),
		"usable", usable,
		"files", len(files))

	return files, nil
}

// scanRoot walks one root directory for .jsonl files.
func (d *discoverer) scanRoot(root string) ([]SourceFile, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}

	var files []SourceFile

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable subtree: skip it, keep walking.
			d.logger.Warn("error walking source directory",
				"path", path,
				"error", err)
			return nil
		}

		if info.IsDir() || !strings.HasSuffix(info.Name(), ".jsonl") {
			return nil
		}

		files = append(files, SourceFile{
			Path:      path,
			Project:   extractProject(path),
			SessionID: strings.TrimSuffix(info.Name(), ".jsonl"),
			Size:      info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// extractProject derives the project name from a file path of the form
// .../projects/<project>/<session>.jsonl.
func extractProject(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == "projects" && i+1 < len(parts)-1 {
			return parts[i+1]
		}
	}

	// Fall back to the parent directory name.
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) {
		return "unknown"
	}
	return dir
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
