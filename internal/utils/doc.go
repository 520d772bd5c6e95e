// Package utils provides shared helper functions.
package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir ensures a directory exists, creating it if necessary.
func EnsureDir(path string) (string, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", err
	}
	return path, nil
}

// GetDataPath returns the officebot data directory (~/.officebot).
func GetDataPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".officebot")
}

// ExpandHome resolves a leading "~" and returns "" unchanged.
// Relative paths are resolved against the data directory.
func ExpandHome(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	if !filepath.IsAbs(path) {
		return filepath.Join(GetDataPath(), path)
	}
	return path
}

// NormalizeChannel strips surrounding space and a leading '#'.
func NormalizeChannel(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "#")
}

// TruncateString truncates a string to maxLen, adding suffix if truncated.
func TruncateString(s string, maxLen int, suffix string) string {
	if len(s) <= maxLen {
		return s
	}
	if suffix == "" {
		suffix = "..."
	}
	cutoff := maxLen - len(suffix)
	if cutoff < 0 {
		cutoff = 0
	}
	return s[:cutoff] + suffix
}
