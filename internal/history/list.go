package history

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sessionhub/internal/model"
)

// Summary holds lightweight information about one transcript.
type Summary struct {
	SessionID       string       `json:"session_id"`
	Tool            model.AiTool `json:"ai_tool"`
	Path            string       `json:"path"`
	CWD             string       `json:"cwd"`
	StartedAt       time.Time    `json:"started_at"`
	LastAt          time.Time    `json:"last_at"`
	Summary         string       `json:"summary"`
	MessageCount    int          `json:"message_count"`
	DurationSeconds int          `json:"duration_seconds"`
}

// ListOptions controls how transcripts are enumerated.
type ListOptions struct {
	Root       string
	CWD        string
	ExactCWD   bool
	After      *time.Time
	Before     *time.Time
	Limit      int
	MaxSummary int
}

// ListResult contains transcript summaries and non-fatal warnings.
type ListResult struct {
	Summaries []Summary
	Warnings  []error
}

// RootDir returns the directory holding every project's transcripts of tool
// under home.
func RootDir(home string, tool model.AiTool) (string, error) {
	parser, err := parserFor(tool)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, parser.Transcripts().Root), nil
}

// List enumerates transcripts of tool under opts.Root, newest first.
func List(tool model.AiTool, opts ListOptions) (ListResult, error) {
	if opts.Root == "" {
		return ListResult{}, errors.New("root directory is required")
	}
	files, err := Discover(opts.Root, tool)
	if err != nil {
		return ListResult{}, err
	}

	var result ListResult
	for _, path := range files {
		conv, _, err := Parse(path, tool)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("parse %s: %w", path, err))
			continue
		}
		if len(conv.Messages) == 0 {
			continue
		}

		if opts.CWD != "" {
			if opts.ExactCWD {
				if conv.ProjectPath != opts.CWD {
					continue
				}
			} else if !strings.HasPrefix(conv.ProjectPath, opts.CWD) {
				continue
			}
		}

		started, last := timeRange(conv.Messages)
		if opts.After != nil && started.Before(*opts.After) {
			continue
		}
		if opts.Before != nil && started.After(*opts.Before) {
			continue
		}

		result.Summaries = append(result.Summaries, Summary{
			SessionID:       conv.SessionID,
			Tool:            tool,
			Path:            path,
			CWD:             conv.ProjectPath,
			StartedAt:       started,
			LastAt:          last,
			Summary:         conv.Summary(opts.MaxSummary),
			MessageCount:    len(conv.Messages),
			DurationSeconds: durationSeconds(started, last),
		})
	}

	sort.SliceStable(result.Summaries, func(i, j int) bool {
		return result.Summaries[i].StartedAt.After(result.Summaries[j].StartedAt)
	})
	if opts.Limit > 0 && len(result.Summaries) > opts.Limit {
		result.Summaries = result.Summaries[:opts.Limit]
	}
	return result, nil
}

// FindSession searches root for the transcript whose session id matches id.
func FindSession(tool model.AiTool, root, id string) (string, error) {
	if root == "" {
		return "", errors.New("root directory is required")
	}
	if id == "" {
		return "", errors.New("session id is required")
	}
	files, err := Discover(root, tool)
	if err != nil {
		return "", err
	}
	for _, path := range files {
		if strings.Contains(filepath.Base(path), id) {
			return path, nil
		}
	}
	for _, path := range files {
		conv, _, err := Parse(path, tool)
		if err != nil {
			continue
		}
		if conv.SessionID == id {
			return path, nil
		}
	}
	return "", fmt.Errorf("session id %s not found under %s", id, root)
}

func timeRange(msgs []model.Message) (first, last time.Time) {
	for _, msg := range msgs {
		if msg.Timestamp.IsZero() {
			continue
		}
		if first.IsZero() || msg.Timestamp.Before(first) {
			first = msg.Timestamp
		}
		if msg.Timestamp.After(last) {
			last = msg.Timestamp
		}
	}
	return first, last
}

func durationSeconds(start, end time.Time) int {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Seconds())
}
