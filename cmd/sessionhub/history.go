package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"sessionhub/internal/format"
	"sessionhub/internal/history"
	"sessionhub/internal/model"
	"sessionhub/internal/view"
)

func newSyncCmd(root *rootOptions) *cobra.Command {
	var (
		project    string
		allTools   bool
		formatFlag string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import a project's transcripts into the conversation store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.load(cmd)
			if err != nil {
				return err
			}
			if project == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("determine current directory: %w", err)
				}
				project = wd
			}

			tools := model.Tools()
			if !allTools {
				tool, err := root.toolChoice()
				if err != nil {
					return err
				}
				tools = []model.AiTool{tool}
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			importer := a.newImporter(st)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			total := model.ImportStats{Errors: []model.FileError{}}
			for _, tool := range tools {
				stats, err := importer.Sync(ctx, project, tool)
				if err != nil {
					return fmt.Errorf("sync %s: %w", tool, err)
				}
				total.Scanned += stats.Scanned
				total.Imported += stats.Imported
				total.Skipped += stats.Skipped
				total.Errors = append(total.Errors, stats.Errors...)
			}
			return format.WriteImportStats(cmd.OutOrStdout(), total, formatFlag)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&project, "project", "", "project path to sync (default: current directory)")
	flags.BoolVar(&allTools, "all-tools", false, "sync every supported tool")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	return cmd
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse transcripts on disk and conversations in the store",
	}
	cmd.AddCommand(newHistoryListCmd(root))
	cmd.AddCommand(newHistoryViewCmd(root))
	return cmd
}

func newHistoryListCmd(root *rootOptions) *cobra.Command {
	var (
		cwd          string
		all          bool
		stored       bool
		afterStr     string
		beforeStr    string
		limit        int
		formatFlag   string
		noHeader     bool
		summaryWidth int
		sessionsDir  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions in reverse chronological order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all && cwd != "" {
				return errors.New("--cwd cannot be used with --all")
			}
			a, err := root.load(cmd)
			if err != nil {
				return err
			}

			if !all && cwd == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("determine current directory: %w", err)
				}
				cwd = wd
			}

			if stored {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				items, err := st.ListConversations(cmd.Context(), cwd)
				if err != nil {
					return err
				}
				if limit > 0 && len(items) > limit {
					items = items[:limit]
				}
				return format.WriteConversations(cmd.OutOrStdout(), items, !noHeader, formatFlag)
			}

			tool, err := root.toolChoice()
			if err != nil {
				return err
			}
			if sessionsDir == "" {
				sessionsDir, err = defaultSessionsDir(a, tool)
				if err != nil {
					return err
				}
			}

			after, err := parseTimeFlag("--after", afterStr)
			if err != nil {
				return err
			}
			before, err := parseTimeFlag("--before", beforeStr)
			if err != nil {
				return err
			}

			result, err := history.List(tool, history.ListOptions{
				Root:       sessionsDir,
				CWD:        cwd,
				ExactCWD:   !all,
				After:      after,
				Before:     before,
				Limit:      limit,
				MaxSummary: summaryWidth,
			})
			if err != nil {
				return err
			}

			errs := cmd.ErrOrStderr()
			for _, warn := range result.Warnings {
				fmt.Fprintf(errs, "warning: %v\n", warn) //nolint:errcheck
			}
			return format.WriteSummaries(cmd.OutOrStdout(), result.Summaries, !noHeader, formatFlag)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cwd, "cwd", "", "filter sessions whose cwd equals the provided path")
	flags.BoolVar(&all, "all", false, "include sessions from all directories")
	flags.BoolVar(&stored, "stored", false, "list conversations from the store instead of transcripts on disk")
	flags.StringVar(&afterStr, "after", "", "include sessions starting on/after the given RFC3339 timestamp")
	flags.StringVar(&beforeStr, "before", "", "include sessions starting on/before the given RFC3339 timestamp")
	flags.IntVar(&limit, "limit", 0, "limit number of sessions returned (0 means no limit)")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit header row for plain output")
	flags.IntVar(&summaryWidth, "summary-width", 160, "maximum characters included in the summary column")
	flags.StringVar(&sessionsDir, "sessions-dir", "", "override the sessions directory (default: tool-specific)")
	return cmd
}

func newHistoryViewCmd(root *rootOptions) *cobra.Command {
	var (
		kindsArg     string
		allKinds     bool
		raw          bool
		wrap         int
		maxMessages  int
		sessionsDir  string
		formatFlag   string
		forceColor   bool
		forceNoColor bool
	)

	cmd := &cobra.Command{
		Use:   "view <session-id-or-path>",
		Short: "Render a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forceColor && forceNoColor {
				return errors.New("--color and --no-color cannot be used together")
			}
			if allKinds && kindsArg != "" {
				return errors.New("--all cannot be used with --kinds")
			}
			a, err := root.load(cmd)
			if err != nil {
				return err
			}
			tool, err := root.toolChoice()
			if err != nil {
				return err
			}
			if sessionsDir == "" {
				sessionsDir, err = defaultSessionsDir(a, tool)
				if err != nil {
					return err
				}
			}

			path, err := resolveSessionPath(tool, args[0], sessionsDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			outFile, _ := out.(*os.File)
			return view.Run(view.Options{
				Path:         path,
				Tool:         tool,
				Format:       formatFlag,
				Wrap:         wrap,
				MaxMessages:  maxMessages,
				KindsArg:     kindsArg,
				AllKinds:     allKinds,
				ForceColor:   forceColor,
				ForceNoColor: forceNoColor,
				RawFile:      raw,
				Out:          out,
				OutFile:      outFile,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&kindsArg, "kinds", "K", "", "comma-separated message kinds to include (default: user,assistant; use 'all' for every kind)")
	flags.BoolVar(&allKinds, "all", false, "show every message kind (overrides --kinds)")
	flags.BoolVar(&raw, "raw", false, "copy the transcript file without formatting")
	flags.IntVar(&wrap, "wrap", 0, "wrap message body at the given column width")
	flags.IntVar(&maxMessages, "max", 0, "show only the most recent N messages (0 means no limit)")
	flags.StringVar(&sessionsDir, "sessions-dir", "", "override the sessions directory (default: tool-specific)")
	flags.StringVar(&formatFlag, "format", "text", "output format: text, chat, json, or raw")
	flags.BoolVar(&forceColor, "color", false, "force-enable ANSI colors even when stdout is not a TTY")
	flags.BoolVar(&forceNoColor, "no-color", false, "disable ANSI colors regardless of terminal detection")
	return cmd
}

// defaultSessionsDir returns the directory holding every project's
// transcripts for tool.
func defaultSessionsDir(a *app, tool model.AiTool) (string, error) {
	importer := a.newImporter(history.NewMemorySink())
	home, err := importer.Home(tool)
	if err != nil {
		return "", err
	}
	return history.RootDir(home, tool)
}

func resolveSessionPath(tool model.AiTool, arg, root string) (string, error) {
	if arg == "" {
		return "", errors.New("session identifier is empty")
	}

	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return arg, nil
	}

	candidate := filepath.Join(root, arg)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, nil
	}

	return history.FindSession(tool, root, arg)
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value: %w", name, err)
	}
	return &t, nil
}
