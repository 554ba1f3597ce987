package history

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"sessionhub/internal/logging"
	"sessionhub/internal/model"
)

const defaultWorkers = 4

// Sink persists conversations. Upsert merges conv into the stored
// conversation with the same session id, skipping messages whose identity
// is already present, and returns how many messages were newly stored.
type Sink interface {
	Upsert(ctx context.Context, conv *model.Conversation) (int, error)
}

// Options configures an Importer.
type Options struct {
	// Homes overrides the data directory per tool.
	Homes   map[model.AiTool]string
	Workers int
	Logger  *logging.Logger
}

// Importer syncs transcripts of a project into a Sink.
type Importer struct {
	sink    Sink
	homes   map[model.AiTool]string
	workers int
	log     *logging.Logger
}

// NewImporter returns an Importer writing to sink.
func NewImporter(sink Sink, opts Options) *Importer {
	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}
	return &Importer{sink: sink, homes: opts.Homes, workers: opts.Workers, log: opts.Logger}
}

// Home returns the data directory used for tool.
func (im *Importer) Home(tool model.AiTool) (string, error) {
	parser, err := parserFor(tool)
	if err != nil {
		return "", err
	}
	if home := im.homes[tool]; home != "" {
		return home, nil
	}
	return parser.DefaultHome(), nil
}

// ProjectDir returns the directory holding tool's transcripts for projectPath.
func (im *Importer) ProjectDir(projectPath string, tool model.AiTool) (string, error) {
	parser, err := parserFor(tool)
	if err != nil {
		return "", err
	}
	home, err := im.Home(tool)
	if err != nil {
		return "", err
	}
	return parser.ProjectDir(home, projectPath), nil
}

type parsed struct {
	path    string
	conv    *model.Conversation
	skipped int
	err     error
}

// Sync discovers, parses and upserts every transcript of projectPath for
// tool. Per-file failures are reported in ImportStats.Errors; the returned
// error is reserved for an unknown tool or a cancelled context. Calling Sync
// again on grown files only imports the new messages.
func (im *Importer) Sync(ctx context.Context, projectPath string, tool model.AiTool) (model.ImportStats, error) {
	stats := model.ImportStats{Errors: []model.FileError{}}

	parser, err := parserFor(tool)
	if err != nil {
		return stats, err
	}
	base, err := im.ProjectDir(projectPath, tool)
	if err != nil {
		return stats, err
	}
	files, err := Discover(base, tool)
	if err != nil {
		stats.Errors = append(stats.Errors, model.FileError{Path: base, Message: err.Error()})
		return stats, nil
	}

	log := im.log.With("tool", string(tool), "project", projectPath)
	results := make([]parsed, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			conv, skipped, err := parseFile(path, tool, log)
			results[i] = parsed{path: path, conv: conv, skipped: skipped, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("sync %s: %w", projectPath, err)
	}

	filter := parser.Transcripts().FilterByCWD
	for _, res := range results {
		if res.err != nil {
			log.Warn("import failed", "path", res.path, "error", res.err)
			stats.Scanned++
			stats.Errors = append(stats.Errors, model.FileError{Path: res.path, Message: res.err.Error()})
			continue
		}
		if filter && !sameProject(res.conv.ProjectPath, projectPath) {
			continue
		}
		stats.Scanned++
		stats.Skipped += res.skipped
		if res.conv.ProjectPath == "" {
			res.conv.ProjectPath = projectPath
		}
		if len(res.conv.Messages) == 0 {
			continue
		}

		inserted, err := im.sink.Upsert(ctx, res.conv)
		if err != nil {
			log.Warn("upsert failed", "path", res.path, "session_id", res.conv.SessionID, "error", err)
			stats.Errors = append(stats.Errors, model.FileError{Path: res.path, Message: err.Error()})
			continue
		}
		stats.Imported += inserted
	}

	log.Info("sync finished", "scanned", stats.Scanned, "imported", stats.Imported, "skipped", stats.Skipped, "errors", len(stats.Errors))
	return stats, ctx.Err()
}

func sameProject(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
