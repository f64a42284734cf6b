package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/rendis/flowsim/pkg/schema"
)

// Output formats shared by the reporting commands.
const (
	outputText     = "text"
	outputJSON     = "json"
	outputMarkdown = "markdown"
)

func checkOutput(name string) error {
	switch name {
	case outputText, outputJSON, outputMarkdown:
		return nil
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown output %q (want text, json or markdown)", name)
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeMarkdown writes md as is, or styled for the terminal when w is one.
func writeMarkdown(w io.Writer, md string) error {
	if !isTerminal(w) {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// painter colors status words when w is a color terminal and leaves them
// plain otherwise. Basic ANSI colors keep escape sequences the same length,
// so tabwriter columns stay aligned.
type painter struct {
	out *termenv.Output
}

func newPainter(w io.Writer) *painter {
	return &painter{out: termenv.NewOutput(w)}
}

func (p *painter) paint(s, color string) string {
	return p.out.String(s).Foreground(p.out.Color(color)).String()
}

func (p *painter) status(s schema.Status) string {
	switch s {
	case schema.StatusCompleted, schema.StatusApproved:
		return p.paint(string(s), "2")
	case schema.StatusPending, schema.StatusExecuting:
		return p.paint(string(s), "3")
	case schema.StatusSkipped:
		return p.paint(string(s), "4")
	case schema.StatusError:
		return p.paint(string(s), "1")
	default:
		return string(s)
	}
}

func (p *painter) pass(ok bool) string {
	if ok {
		return p.paint("PASS", "2")
	}
	return p.paint("FAIL", "1")
}

func (p *painter) warn(s string) string {
	return p.paint(s, "3")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
