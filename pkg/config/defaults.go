package config

import (
	"os"
	"path/filepath"
)

// defaultSourceDirs returns the default usage-log directories.
//
// Searches in order:
// 1. ~/.config/claude/projects/ (new default)
// 2. ~/.claude/projects/ (legacy)
//
// Returns all directories that exist on the filesystem.
func defaultSourceDirs() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return []string{"."}
	}

	candidates := []string{
		filepath.Join(homeDir, ".config", "claude", "projects"),
		filepath.Join(homeDir, ".claude", "projects"),
	}

	var dirs []string
	for _, dir := range candidates {
		if _, err := os.Stat(dir); err == nil {
			dirs = append(dirs, dir)
		}
	}

	// If neither exists, keep the new default so discovery reports it
	// rather than failing on an empty list.
	if len(dirs) == 0 {
		return []string{filepath.Join(homeDir, ".config", "claude", "projects")}
	}

	return dirs
}

// defaultOffsetDBPath returns the default offset database file path.
//
// Returns: ~/.config/usagemeter/offsets.db.
func defaultOffsetDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./offsets.db"
	}

	return filepath.Join(homeDir, ".config", "usagemeter", "offsets.db")
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/usagemeter/config.yaml.
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "usagemeter", "config.yaml")
}
