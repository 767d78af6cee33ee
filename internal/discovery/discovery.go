// Package discovery finds job files under a configured root directory.
//
// A job file's base name (without extension) is the job name. Only files
// whose extension is in the accepted set are discoverable.
package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CodeNoJobsFound is the distinguished code attached to discovery
// failures when the root contains no discoverable job files.
const CodeNoJobsFound = "ERR_NO_JOBS_FOUND"

// ErrNoJobsFound is the distinguished discovery failure: the root exists
// but holds no files matching the accepted extensions.
var ErrNoJobsFound = errors.New("no job files found in root")

// List returns the discoverable job names in root, sorted. A missing or
// non-directory root is an error; an empty result is not (callers decide
// whether that matters via the root check).
func List(root string, exts []string) ([]string, error) {
	if err := CheckRoot(root); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := jobName(e.Name(), exts); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Resolve maps a bare job name to the path of its job file. The first
// accepted extension that exists wins, in the configured order.
func Resolve(root, name string, exts []string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("job %q has no path and no root is configured", name)
	}
	for _, ext := range exts {
		p := filepath.Join(root, name+ext)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("job file for %q not found in %s", name, root)
}

// CheckRoot verifies root exists and is a directory.
func CheckRoot(root string) error {
	fi, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root %q is not accessible: %w", root, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("root %q is not a directory", root)
	}
	return nil
}

func jobName(file string, exts []string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(file))
	if ext == "" {
		return "", false
	}
	for _, accepted := range exts {
		if ext == accepted {
			return strings.TrimSuffix(file, filepath.Ext(file)), true
		}
	}
	return "", false
}
