package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"sessionhub/internal/format"
	"sessionhub/internal/history"
	"sessionhub/internal/model"
)

// Options defines the configurable parameters for rendering a view.
type Options struct {
	Path         string
	Tool         model.AiTool
	Format       string
	Wrap         int
	MaxMessages  int
	KindsArg     string
	AllKinds     bool
	ForceColor   bool
	ForceNoColor bool
	RawFile      bool
	Out          io.Writer
	OutFile      *os.File
}

// Run renders a transcript according to the provided options.
func Run(opts Options) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	if opts.RawFile {
		return copyFile(opts.Out, opts.Path)
	}

	kinds, err := buildKindFilter(opts.AllKinds, opts.KindsArg)
	if err != nil {
		return err
	}

	formatMode := strings.ToLower(opts.Format)
	if formatMode == "" {
		formatMode = "text"
	}

	conv, _, err := history.Parse(opts.Path, opts.Tool)
	if err != nil {
		return err
	}

	ring := newMessageRing(opts.MaxMessages)
	for _, msg := range conv.Messages {
		if kinds != nil {
			if _, ok := kinds[msg.Kind]; !ok {
				continue
			}
		}
		ring.push(msg)
	}
	messages := ring.slice()

	switch formatMode {
	case "text":
		styles := newPalette(opts.Out, resolveColorChoice(opts))
		for idx, msg := range messages {
			if idx > 0 {
				fmt.Fprintln(opts.Out)
			}
			printMessage(opts.Out, msg, idx+1, opts.Wrap, styles)
		}
		return nil

	case "raw":
		var last []byte
		for _, msg := range messages {
			if msg.Meta == nil || len(msg.Meta.RawData) == 0 || bytes.Equal(msg.Meta.RawData, last) {
				continue
			}
			last = msg.Meta.RawData
			if _, err := fmt.Fprintln(opts.Out, string(last)); err != nil {
				return err
			}
		}
		return nil

	case "json":
		out := model.Conversation{
			SessionID:   conv.SessionID,
			Tool:        conv.Tool,
			ProjectPath: conv.ProjectPath,
			SourcePath:  conv.SourcePath,
			Messages:    messages,
		}
		if out.Messages == nil {
			out.Messages = []model.Message{}
		}
		enc := json.NewEncoder(opts.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)

	case "chat":
		colorEnabled := resolveColorChoice(opts)
		width := determineWidth(opts.OutFile, opts.Wrap)
		if len(messages) == 0 {
			return nil
		}

		lines := renderChatTranscript(messages, width, newPalette(opts.Out, colorEnabled))
		if len(lines) == 0 {
			return nil
		}
		if opts.OutFile != nil && isatty.IsTerminal(opts.OutFile.Fd()) {
			return pipeThroughPager(lines, colorEnabled)
		}
		return writeLines(opts.Out, lines)

	default:
		return fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

var kindLookup = map[string]model.MessageKind{
	"user":      model.KindUser,
	"assistant": model.KindAssistant,
	"tool":      model.KindTool,
	"system":    model.KindSystem,
	"thinking":  model.KindThinking,
	"plan":      model.KindPlan,
	"todo":      model.KindTodo,
}

// buildKindFilter returns the message kinds to show; nil shows every kind.
// User and assistant messages are shown by default.
func buildKindFilter(all bool, arg string) (map[model.MessageKind]struct{}, error) {
	if all {
		return nil, nil
	}
	values := parseCSV(arg)
	if len(values) == 0 {
		return map[model.MessageKind]struct{}{
			model.KindUser:      {},
			model.KindAssistant: {},
		}, nil
	}
	if len(values) == 1 && values[0] == "all" {
		return nil, nil
	}

	set := make(map[model.MessageKind]struct{}, len(values))
	for _, token := range values {
		kind, ok := kindLookup[token]
		if !ok {
			return nil, fmt.Errorf("unknown message kind %q", token)
		}
		set[kind] = struct{}{}
	}
	return set, nil
}

func parseCSV(arg string) []string {
	if strings.TrimSpace(arg) == "" {
		return nil
	}
	parts := strings.Split(arg, ",")
	output := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.TrimSpace(strings.ToLower(part))
		if token != "" {
			output = append(output, token)
		}
	}
	return output
}

// messageRing keeps the last n messages; n <= 0 keeps everything.
type messageRing struct {
	all    []model.Message
	data   []model.Message
	start  int
	length int
}

func newMessageRing(capacity int) *messageRing {
	if capacity <= 0 {
		return &messageRing{}
	}
	return &messageRing{data: make([]model.Message, capacity)}
}

func (r *messageRing) push(msg model.Message) {
	if len(r.data) == 0 {
		r.all = append(r.all, msg)
		return
	}
	idx := (r.start + r.length) % len(r.data)
	r.data[idx] = msg
	if r.length < len(r.data) {
		r.length++
		return
	}
	r.start = (r.start + 1) % len(r.data)
}

func (r *messageRing) slice() []model.Message {
	if len(r.data) == 0 {
		return r.all
	}
	if r.length == 0 {
		return nil
	}
	result := make([]model.Message, r.length)
	for i := 0; i < r.length; i++ {
		result[i] = r.data[(r.start+i)%len(r.data)]
	}
	return result
}

func determineWidth(out *os.File, wrap int) int {
	if wrap > 0 {
		return wrap
	}
	if out != nil {
		if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
			return w
		}
	}
	if colsStr := os.Getenv("COLUMNS"); colsStr != "" {
		if v, err := strconv.Atoi(colsStr); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

func pipeThroughPager(lines []string, colorEnabled bool) error {
	text := strings.Join(lines, "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	pagerCmd := os.Getenv("PAGER")
	var cmd *exec.Cmd
	if pagerCmd == "" {
		args := []string{"less"}
		if colorEnabled {
			args = append(args, "-R")
		}
		cmd = exec.Command(args[0], args[1:]...) // #nosec G204
	} else {
		cmd = exec.Command("sh", "-c", pagerCmd) // #nosec G204
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create pager pipe: %w", err)
	}
	go func() {
		defer stdin.Close()
		io.WriteString(stdin, text) //nolint:errcheck
	}()

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run pager: %w", err)
	}

	return nil
}

func writeLines(out io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func printMessage(out io.Writer, msg model.Message, index int, wrap int, styles palette) {
	label := messageLabel(msg)

	ts := "-"
	if !msg.Timestamp.IsZero() {
		ts = msg.Timestamp.Format(time.RFC3339)
	}
	headerPlain := fmt.Sprintf("[#%03d] %s | %s", index, label, ts)

	separator := styles.separator.Render("|")
	header := fmt.Sprintf("[%s] %s %s %s",
		styles.index.Render(fmt.Sprintf("#%03d", index)),
		styles.role(msg.Kind).Render(label),
		separator,
		styles.timestamp.Render(ts),
	)
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, strings.Repeat("-", len(headerPlain)))

	lines := format.RenderMessageLines(msg, wrap)
	if len(lines) == 0 {
		fmt.Fprintf(out, "%s %s\n", separator, "(no content)")
		return
	}
	for _, line := range lines {
		if line == "" {
			fmt.Fprintln(out, separator)
			continue
		}
		fmt.Fprintf(out, "%s %s\n", separator, line)
	}
}

// messageLabel names a message in headers, including the tool name for
// tool calls.
func messageLabel(msg model.Message) string {
	label := string(msg.Kind)
	if label == "" {
		label = "event"
	}
	if msg.Kind == model.KindTool && msg.Tool != nil && msg.Tool.Name != "" {
		label += ": " + msg.Tool.Name
	}
	if msg.Kind == model.KindSystem && msg.Level != "" && msg.Level != model.LevelInfo {
		label += ": " + string(msg.Level)
	}
	return label
}

// palette holds the styles used by the text and chat views. With color
// disabled every style renders its input unchanged.
type palette struct {
	index     lipgloss.Style
	timestamp lipgloss.Style
	separator lipgloss.Style
	assistant lipgloss.Style
	user      lipgloss.Style
	tool      lipgloss.Style
}

func newPalette(out io.Writer, enabled bool) palette {
	r := lipgloss.NewRenderer(out)
	if enabled {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return palette{
		index:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		timestamp: r.NewStyle().Foreground(lipgloss.Color("245")),
		separator: r.NewStyle().Foreground(lipgloss.Color("240")),
		assistant: r.NewStyle().Foreground(lipgloss.Color("44")),
		user:      r.NewStyle().Foreground(lipgloss.Color("220")),
		tool:      r.NewStyle().Foreground(lipgloss.Color("207")),
	}
}

func (p palette) role(kind model.MessageKind) lipgloss.Style {
	switch kind {
	case model.KindAssistant, model.KindThinking:
		return p.assistant
	case model.KindUser:
		return p.user
	case model.KindTool, model.KindSystem, model.KindTodo, model.KindPlan:
		return p.tool
	default:
		return p.separator
	}
}

func resolveColorChoice(opts Options) bool {
	if opts.ForceColor {
		return true
	}
	if opts.ForceNoColor {
		return false
	}
	return shouldUseColorAuto(opts.Out)
}

func shouldUseColorAuto(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func copyFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(dst, f)
	return err
}
