package history

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"sessionhub/internal/logging"
	"sessionhub/internal/model"
)

// Parse reads one transcript file into a conversation. Records that fail to
// parse are skipped and counted; only an unreadable file is an error.
func Parse(path string, tool model.AiTool) (*model.Conversation, int, error) {
	return parseFile(path, tool, nil)
}

func parseFile(path string, tool model.AiTool, log *logging.Logger) (*model.Conversation, int, error) {
	parser, err := parserFor(tool)
	if err != nil {
		return nil, 0, err
	}

	conv := &model.Conversation{Tool: tool, SourcePath: path}
	skipped := 0
	apply := func(raw []byte) {
		rec, err := parser.ParseRecord(raw)
		if err != nil {
			skipped++
			log.Debug("skipped record", "path", path, "error", err)
			return
		}
		if conv.SessionID == "" && rec.SessionID != "" {
			conv.SessionID = rec.SessionID
		}
		if conv.ProjectPath == "" && rec.CWD != "" {
			conv.ProjectPath = rec.CWD
		}
		conv.Append(rec.Messages...)
	}

	doc, isDoc := parser.(model.DocumentParser)
	if isDoc && parser.Transcripts().Document && strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, &ImportError{Path: path, Op: "read", Err: err}
		}
		head, records, err := doc.SplitDocument(data)
		if err != nil {
			return nil, 0, &ImportError{Path: path, Op: "decode", Err: err}
		}
		conv.SessionID = head.SessionID
		conv.ProjectPath = head.CWD
		for _, raw := range records {
			apply(raw)
		}
	} else {
		if err := scanLines(path, apply); err != nil {
			return nil, 0, err
		}
	}

	if conv.SessionID == "" {
		conv.SessionID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return conv, skipped, nil
}

func scanLines(path string, fn func([]byte)) error {
	file, err := os.Open(path)
	if err != nil {
		return &ImportError{Path: path, Op: "open", Err: err}
	}
	defer file.Close()

	scanner := newScanner(file)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return &ImportError{Path: path, Op: "scan", Err: err}
	}
	return nil
}

func newScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	// Allow large payloads such as instructions blocks.
	const maxCapacity = 8 * 1024 * 1024
	buf := make([]byte, 1024)
	scanner.Buffer(buf, maxCapacity)
	return scanner
}
