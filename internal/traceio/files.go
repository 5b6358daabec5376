package traceio

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/usestring/alergia-mcp/pkg/trace"
)

// Glob returns the regular files under base matching pattern, sorted.
func Glob(base, pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		base, pattern = doublestar.SplitPattern(filepath.ToSlash(pattern))
	}
	if base == "" {
		base = "."
	}

	var matches []string
	err := doublestar.GlobWalk(os.DirFS(base), pattern, func(path string, d fs.DirEntry) error {
		if !d.IsDir() {
			matches = append(matches, filepath.Join(base, path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadFile decodes the traces in path. Log files yield one trace named after
// the file.
func ReadFile(path, defaultInput string) ([]trace.Trace, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	if format == FormatLog {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		tr, err := ParseTimestampLog(f, name, defaultInput)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []trace.Trace{tr}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	traces, err := Decode(data, format, defaultInput)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return traces, nil
}

// LoadFiles reads every file matched by patterns relative to base, in order.
// A pattern without glob metacharacters names a single file.
func LoadFiles(base string, patterns []string, defaultInput string) ([]trace.Trace, error) {
	var traces []trace.Trace
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		paths := []string{pattern}
		if strings.ContainsAny(pattern, "*?[{") {
			var err error
			paths, err = Glob(base, pattern)
			if err != nil {
				return nil, err
			}
			if len(paths) == 0 {
				return nil, fmt.Errorf("pattern %s matched no files", pattern)
			}
		} else if !filepath.IsAbs(pattern) && base != "" {
			paths = []string{filepath.Join(base, pattern)}
		}
		for _, p := range paths {
			if seen[p] {
				continue
			}
			seen[p] = true
			ts, err := ReadFile(p, defaultInput)
			if err != nil {
				return nil, err
			}
			traces = append(traces, ts...)
		}
	}
	return traces, nil
}
