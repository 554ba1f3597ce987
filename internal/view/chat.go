package view

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"sessionhub/internal/format"
	"sessionhub/internal/model"
)

type alignment int

const (
	alignLeft alignment = iota
	alignCenter
	alignRight
)

func renderChatTranscript(messages []model.Message, width int, styles palette) []string {
	if width <= 0 {
		width = 80
	}
	padding := 2

	lines := make([]string, 0, len(messages)*6)
	for idx, msg := range messages {
		if idx > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, renderChatBubble(msg, width, padding, styles)...)
	}
	return lines
}

func renderChatBubble(msg model.Message, totalWidth int, padding int, styles palette) []string {
	bodyLines := format.RenderMessageLines(msg, 0)

	maxContentWidth := totalWidth - padding*2 - 10
	if maxContentWidth < 20 {
		if totalWidth > 30 {
			maxContentWidth = totalWidth - 12
		} else {
			maxContentWidth = totalWidth - 8
		}
		if maxContentWidth < 8 {
			maxContentWidth = 8
		}
	}

	headerText, headerLabel, headerTime := chatHeader(messageLabel(msg), msg.Timestamp)
	content := wrapLines(append([]string{headerText}, bodyLines...), maxContentWidth)
	bubbleWidth := contentMaxWidth(content)
	if bubbleWidth > maxContentWidth {
		bubbleWidth = maxContentWidth
	}

	leftPad := computeLeftPad(totalWidth, bubbleWidth, padding, alignmentForKind(msg.Kind))

	if len(content) > 0 {
		colored := fmt.Sprintf("%s · %s",
			styles.role(msg.Kind).Render(headerLabel),
			styles.timestamp.Render(headerTime),
		)
		content[0] = strings.Replace(content[0], headerText, colored, 1)
	}

	top := fmt.Sprintf("%s╭%s╮", strings.Repeat(" ", leftPad), strings.Repeat("─", bubbleWidth+2))
	bottom := fmt.Sprintf("%s╰%s╯", strings.Repeat(" ", leftPad), strings.Repeat("─", bubbleWidth+2))

	result := []string{top}
	for _, line := range content {
		result = append(result, renderBubbleBodyLine(line, bubbleWidth, leftPad, styles))
	}
	result = append(result, bottom)
	return result
}

func renderBubbleBodyLine(line string, bubbleWidth int, leftPad int, styles palette) string {
	displayLen := visibleWidth(line)
	if displayLen > bubbleWidth {
		line = truncateToWidth(line, bubbleWidth)
		displayLen = bubbleWidth
	}
	paddingRight := bubbleWidth - displayLen
	border := styles.separator.Render("|")

	return fmt.Sprintf("%s%s %s%s %s", strings.Repeat(" ", leftPad), border, line, strings.Repeat(" ", paddingRight), border)
}

func chatHeader(role string, ts time.Time) (header string, label string, timeText string) {
	label = titleCase(role)
	if label == "" {
		label = "Event"
	}
	timeText = "-"
	if !ts.IsZero() {
		timeText = ts.Format("Jan 02 15:04")
	}

	return fmt.Sprintf("%s · %s", label, timeText), label, timeText
}

func alignmentForKind(kind model.MessageKind) alignment {
	switch kind {
	case model.KindUser:
		return alignRight
	case model.KindTool, model.KindSystem, model.KindTodo, model.KindPlan:
		return alignCenter
	default:
		return alignLeft
	}
}

func computeLeftPad(totalWidth, bubbleWidth, padding int, align alignment) int {
	maxPad := totalWidth - bubbleWidth - 4
	if maxPad < 0 {
		maxPad = 0
	}

	switch align {
	case alignRight:
		return maxPad
	case alignCenter:
		center := maxPad / 2
		if center < padding {
			center = padding
		}
		if center > maxPad {
			center = maxPad
		}
		return center
	default:
		if padding > maxPad {
			return maxPad
		}
		return padding
	}
}

func wrapLines(lines []string, width int) []string {
	var out []string
	for _, line := range lines {
		out = append(out, wrapText(line, width)...)
	}
	return out
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	text = strings.TrimRight(text, " ")
	if text == "" {
		return []string{""}
	}
	var out []string
	var current strings.Builder
	currentWidth := 0

	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if currentWidth+rw > width && current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
			currentWidth = 0
		}
		current.WriteRune(r)
		currentWidth += rw
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

func titleCase(text string) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func contentMaxWidth(lines []string) int {
	widest := 0
	for _, line := range lines {
		if w := visibleWidth(line); w > widest {
			widest = w
		}
	}
	return widest
}

func truncateToWidth(text string, width int) string {
	if visibleWidth(text) <= width {
		return text
	}
	var out strings.Builder
	current := 0

	for i := 0; i < len(text); {
		if m := ansiPattern.FindStringIndex(text[i:]); m != nil && m[0] == 0 {
			out.WriteString(text[i : i+m[1]])
			i += m[1]
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		rw := runewidth.RuneWidth(r)
		if current+rw > width {
			break
		}
		out.WriteRune(r)
		current += rw
		i += size
	}
	return out.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func visibleWidth(text string) int {
	clean := ansiPattern.ReplaceAllString(text, "")
	return runewidth.StringWidth(clean)
}
