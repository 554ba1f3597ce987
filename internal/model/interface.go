package model

import "encoding/json"

// Adapter knows how to drive one external CLI: how to build its command line
// and how to read its raw output. Implementations are stateless.
type Adapter interface {
	Tool() AiTool

	// BuildInvocation resolves the executable, arguments, working directory
	// and stdin payload for one request.
	BuildInvocation(projectPath, prompt string, cfg *ToolConfig) (Invocation, error)

	// ParseLine maps one line of stdout onto zero or more tokens. A line that
	// is not in the tool's structured format degrades to a text token.
	ParseLine(line []byte) []Token
}

// Record is the result of parsing one transcript record.
type Record struct {
	SessionID string
	CWD       string
	Messages  []Message
}

// Transcripts describes where a tool keeps its on-disk history.
type Transcripts struct {
	// Root is the directory under the tool home holding every project's
	// transcripts.
	Root string
	// Globs are matched against file names during discovery.
	Globs []string
	// Markers are file or directory names identifying a tool project directory.
	Markers []string
	// FilterByCWD is set when transcripts of all projects share one directory
	// and must be filtered by the cwd recorded inside them.
	FilterByCWD bool
	// Document is set when a transcript is a single JSON document whose
	// records live in an array rather than one record per line.
	Document bool
}

// Parser maps a tool's transcript records onto the unified message model.
type Parser interface {
	Tool() AiTool
	Transcripts() Transcripts

	// DefaultHome returns the tool's data directory (for example ~/.claude).
	DefaultHome() string

	// ProjectDir returns the directory under home that holds transcripts
	// for projectPath.
	ProjectDir(home, projectPath string) string

	// ParseRecord parses one raw record. A returned error marks the record
	// as skipped; it is never fatal to the file.
	ParseRecord(raw []byte) (Record, error)
}

// DocumentParser is implemented by parsers whose transcripts are whole JSON
// documents. SplitDocument returns the session-level fields and the raw
// records to feed through ParseRecord in order.
type DocumentParser interface {
	SplitDocument(data []byte) (Record, []json.RawMessage, error)
}
