// Package format renders listings of sessions, active requests, import
// results and tools as tables, plain text, JSON or JSONL.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"sessionhub/internal/bridge"
	"sessionhub/internal/history"
	"sessionhub/internal/model"
	"sessionhub/internal/registry"
	"sessionhub/internal/store"
)

// columns describes the shared layout of one listing.
type columns struct {
	headers []string
	plain   []string
	configs []table.ColumnConfig
	empty   table.Row
}

func write[T any](w io.Writer, items []T, includeHeader bool, format string, cols columns, row func(T) []any) error {
	switch strings.ToLower(format) {
	case "", "table":
		return writeTable(w, items, includeHeader, cols, row)
	case "plain":
		return writePlain(w, items, includeHeader, cols, row)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if items == nil {
			items = []T{}
		}
		return enc.Encode(items)
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, item := range items {
			if err := enc.Encode(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writePlain[T any](w io.Writer, items []T, includeHeader bool, cols columns, row func(T) []any) error {
	if includeHeader {
		if _, err := fmt.Fprintln(w, strings.Join(cols.plain, "\t")); err != nil {
			return err
		}
	}
	for _, item := range items {
		values := row(item)
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = escapeNewlines(fmt.Sprint(v))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func writeTable[T any](w io.Writer, items []T, includeHeader bool, cols columns, row func(T) []any) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = true
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	tw.SetColumnConfigs(cols.configs)

	if includeHeader {
		header := make(table.Row, len(cols.headers))
		for i, h := range cols.headers {
			header[i] = h
		}
		tw.AppendHeader(header)
	}
	for _, item := range items {
		values := row(item)
		for i, v := range values {
			if s, ok := v.(string); ok {
				values[i] = escapeNewlines(s)
			}
		}
		tw.AppendRow(table.Row(values))
	}
	if len(items) == 0 {
		tw.AppendRow(cols.empty)
	}

	_ = tw.Render()
	return nil
}

func escapeNewlines(text string) string {
	return strings.ReplaceAll(text, "\n", "\\n")
}

func left(n int) table.ColumnConfig {
	return table.ColumnConfig{Number: n, Align: text.AlignLeft, AlignHeader: text.AlignCenter}
}

func center(n int) table.ColumnConfig {
	return table.ColumnConfig{Number: n, Align: text.AlignCenter, AlignHeader: text.AlignCenter}
}

func right(n int) table.ColumnConfig {
	return table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignCenter}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

// WriteSummaries writes transcript summaries to w in the requested format.
func WriteSummaries(w io.Writer, items []history.Summary, includeHeader bool, format string) error {
	cols := columns{
		headers: []string{"Timestamp", "Tool", "Session ID", "CWD", "Duration", "Messages", "Summary"},
		plain:   []string{"timestamp", "ai_tool", "session_id", "cwd", "duration", "message_count", "summary"},
		configs: []table.ColumnConfig{
			left(1), center(2), left(3), left(4), center(5), right(6),
			{Number: 7, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 80},
		},
		empty: table.Row{"-", "-", "(no sessions)", "-", "00:00:00", 0, "-"},
	}
	return write(w, items, includeHeader, format, cols, func(item history.Summary) []any {
		return []any{
			timestamp(item.StartedAt),
			string(item.Tool),
			item.SessionID,
			item.CWD,
			formatDuration(item.DurationSeconds),
			item.MessageCount,
			item.Summary,
		}
	})
}

// WriteConversations writes stored conversation summaries.
func WriteConversations(w io.Writer, items []store.ConversationSummary, includeHeader bool, format string) error {
	cols := columns{
		headers: []string{"Updated", "Tool", "Session ID", "Project", "Messages", "Summary"},
		plain:   []string{"updated_at", "ai_tool", "session_id", "project_path", "message_count", "summary"},
		configs: []table.ColumnConfig{
			left(1), center(2), left(3), left(4), right(5),
			{Number: 6, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 80},
		},
		empty: table.Row{"-", "-", "(no conversations)", "-", 0, "-"},
	}
	return write(w, items, includeHeader, format, cols, func(item store.ConversationSummary) []any {
		return []any{
			timestamp(item.UpdatedAt),
			string(item.Tool),
			item.SessionID,
			item.ProjectPath,
			item.MessageCount,
			item.Summary,
		}
	})
}

// WriteActive writes active requests with their elapsed time relative to now.
func WriteActive(w io.Writer, items []registry.ActiveProcess, includeHeader bool, format string, now time.Time) error {
	cols := columns{
		headers: []string{"Request ID", "Session ID", "Tool", "Started", "Elapsed"},
		plain:   []string{"request_id", "session_id", "ai_tool", "started_at", "elapsed"},
		configs: []table.ColumnConfig{left(1), left(2), center(3), left(4), right(5)},
		empty:   table.Row{"(no active requests)", "-", "-", "-", "00:00:00"},
	}
	return write(w, items, includeHeader, format, cols, func(item registry.ActiveProcess) []any {
		session := item.SessionID
		if session == "" {
			session = "-"
		}
		return []any{
			item.RequestID,
			session,
			string(item.Tool),
			timestamp(item.StartedAt),
			formatDuration(int(now.Sub(item.StartedAt).Seconds())),
		}
	})
}

// WriteTools writes installation probe results.
func WriteTools(w io.Writer, items []bridge.ToolStatus, includeHeader bool, format string) error {
	cols := columns{
		headers: []string{"Tool", "Executable", "Installed", "Path"},
		plain:   []string{"ai_tool", "executable", "installed", "path"},
		configs: []table.ColumnConfig{left(1), left(2), center(3), left(4)},
		empty:   table.Row{"-", "-", "-", "-"},
	}
	return write(w, items, includeHeader, format, cols, func(item bridge.ToolStatus) []any {
		installed, path := "no", item.Path
		if item.Installed {
			installed = "yes"
		}
		if path == "" {
			path = "-"
		}
		return []any{string(item.Tool), item.Executable, installed, path}
	})
}

// WriteImportStats writes the result of one sync followed by its per-file
// errors.
func WriteImportStats(w io.Writer, stats model.ImportStats, format string) error {
	switch strings.ToLower(format) {
	case "json", "jsonl":
		if stats.Errors == nil {
			stats.Errors = []model.FileError{}
		}
		enc := json.NewEncoder(w)
		if strings.ToLower(format) == "json" {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(stats)
	}

	cols := columns{
		headers: []string{"Scanned", "Imported", "Skipped", "Errors"},
		plain:   []string{"scanned", "imported", "skipped", "errors"},
		configs: []table.ColumnConfig{right(1), right(2), right(3), right(4)},
	}
	err := write(w, []model.ImportStats{stats}, true, format, cols, func(s model.ImportStats) []any {
		return []any{s.Scanned, s.Imported, s.Skipped, len(s.Errors)}
	})
	if err != nil || len(stats.Errors) == 0 {
		return err
	}

	errCols := columns{
		headers: []string{"Path", "Error"},
		plain:   []string{"path", "error"},
		configs: []table.ColumnConfig{
			left(1),
			{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 80},
		},
	}
	return write(w, stats.Errors, true, format, errCols, func(e model.FileError) []any {
		return []any{e.Path, e.Message}
	})
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "00:00:00"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
