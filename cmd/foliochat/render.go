package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/user/foliochat/internal/controller"
	"github.com/user/foliochat/internal/types"
)

var (
	userStyle   = color.New(color.FgCyan, color.Bold)
	botStyle    = color.New(color.FgGreen, color.Bold)
	toolStyle   = color.New(color.FgYellow)
	errorStyle  = color.New(color.FgRed)
	mutedStyle  = color.New(color.Faint)
	starStyle   = color.New(color.FgYellow, color.Bold)
	headerStyle = color.New(color.Bold)
)

func roleLabel(role types.Role) string {
	switch {
	case role.IsUser():
		return userStyle.Sprint("you")
	case role.IsTool():
		return toolStyle.Sprint("tool")
	default:
		return botStyle.Sprint("assistant")
	}
}

// printMessage renders a stored message with its parts.
func printMessage(w io.Writer, m types.Message, eligible bool, now time.Time) {
	header := roleLabel(m.Role)
	if !m.CreatedAt.IsZero() {
		header += " " + mutedStyle.Sprint(m.CreatedAt.RelativeTime(now))
	}
	if eligible && m.Feedback != types.FeedbackNone {
		header += " " + mutedStyle.Sprintf("[%s]", m.Feedback)
	}
	fmt.Fprintln(w, header)
	for _, p := range m.ContentParts() {
		printPart(w, p)
	}
	if m.Error {
		fmt.Fprintln(w, errorStyle.Sprint("  (failed)"))
	}
	fmt.Fprintln(w)
}

func printPart(w io.Writer, p types.Part) {
	switch p := p.(type) {
	case *types.TextPart:
		if p.Text != "" {
			fmt.Fprintln(w, indent(p.Text))
		}
	case *types.ToolCallPart:
		fmt.Fprintln(w, toolStyle.Sprintf("  > %s(%s)", p.ToolName, toolInput(p)))
	case *types.ToolResultPart:
		if p.State == types.ToolOutputError {
			fmt.Fprintln(w, errorStyle.Sprintf("  < %s failed: %s", p.ToolName, p.ErrorText))
			return
		}
		fmt.Fprintln(w, toolStyle.Sprintf("  < %s", firstLine(p.OutputText())))
	}
}

func toolInput(p *types.ToolCallPart) string {
	if len(p.Input) > 0 {
		return string(p.Input)
	}
	return p.InputText
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// streamPrinter writes a turn to w as it streams. Messages present before
// the turn started are skipped.
type streamPrinter struct {
	w     io.Writer
	known map[types.MessageID]bool

	mu          sync.Mutex
	printedText map[string]int
	printedPart map[string]bool
	placeholder bool
	current     types.MessageID
	midLine     bool
}

func newStreamPrinter(w io.Writer, history []types.Message) *streamPrinter {
	known := make(map[types.MessageID]bool, len(history))
	for _, m := range history {
		known[m.ID] = true
	}
	return &streamPrinter{
		w:           w,
		known:       known,
		printedText: make(map[string]int),
		printedPart: make(map[string]bool),
	}
}

func (p *streamPrinter) update(v controller.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v.Placeholder && !p.placeholder {
		p.placeholder = true
		fmt.Fprintln(p.w, mutedStyle.Sprint("generating..."))
	}
	for _, m := range v.Messages {
		if p.known[m.ID] || !m.Role.IsAssistant() {
			continue
		}
		for i, part := range m.ContentParts() {
			key := fmt.Sprintf("%s/%d", m.ID, i)
			switch part := part.(type) {
			case *types.TextPart:
				done := p.printedText[key]
				if len(part.Text) <= done {
					continue
				}
				p.header(m.ID)
				fmt.Fprint(p.w, part.Text[done:])
				p.printedText[key] = len(part.Text)
				p.midLine = !strings.HasSuffix(part.Text, "\n")
			case *types.ToolCallPart:
				if part.State != types.ToolInputAvailable || p.printedPart[key] {
					continue
				}
				p.header(m.ID)
				p.endLine()
				printPart(p.w, part)
				p.printedPart[key] = true
			case *types.ToolResultPart:
				if p.printedPart[key] {
					continue
				}
				p.header(m.ID)
				p.endLine()
				printPart(p.w, part)
				p.printedPart[key] = true
			}
		}
	}
}

func (p *streamPrinter) header(id types.MessageID) {
	if p.current == id {
		return
	}
	p.endLine()
	if p.current != "" {
		fmt.Fprintln(p.w)
	}
	p.current = id
	fmt.Fprintln(p.w, roleLabel(types.RoleAssistant))
}

func (p *streamPrinter) endLine() {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
}

func (p *streamPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endLine()
}
