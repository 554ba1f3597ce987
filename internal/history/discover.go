// Package history imports AI CLI transcripts into unified conversations.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"sessionhub/internal/model"
)

func parserFor(tool model.AiTool) (model.Parser, error) {
	parser, err := model.NewParser(tool)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoParser, err)
	}
	return parser, nil
}

// Discover returns the transcript files under base for tool, sorted by path.
// A missing base yields no files and no error; unreadable subdirectories are
// skipped.
func Discover(base string, tool model.AiTool) ([]string, error) {
	parser, err := parserFor(tool)
	if err != nil {
		return nil, err
	}
	if base == "" {
		return nil, errors.New("base directory is required")
	}
	if _, err := os.Stat(base); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &ImportError{Path: base, Op: "stat", Err: err}
	}

	globs := parser.Transcripts().Globs
	var files []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == base {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if matchAny(globs, d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &ImportError{Path: base, Op: "walk", Err: err}
	}

	sort.Strings(files)
	return files, nil
}

// Detect reports whether dir looks like a project directory of tool, that
// is, it contains one of the tool's marker files or directories.
func Detect(dir string, tool model.AiTool) bool {
	parser, err := parserFor(tool)
	if err != nil {
		return false
	}
	markers := parser.Transcripts().Markers
	if len(markers) == 0 {
		info, err := os.Stat(dir)
		return err == nil && info.IsDir()
	}
	for _, marker := range markers {
		matches, err := filepath.Glob(filepath.Join(dir, marker))
		if err == nil && len(matches) > 0 {
			return true
		}
	}
	return false
}

func matchAny(globs []string, name string) bool {
	for _, glob := range globs {
		if ok, _ := filepath.Match(glob, name); ok {
			return true
		}
	}
	return false
}
