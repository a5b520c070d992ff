package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/randalmurphal/taskq/internal/agent"
	"github.com/randalmurphal/taskq/internal/db"
)

const defaultWidth = 100

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// render applies style only when writing to a terminal.
func render(w io.Writer, style lipgloss.Style, s string) string {
	if !isTerminal(w) {
		return s
	}
	return style.Render(s)
}

func outputWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printQueue writes a project queue as an aligned table.
func printQueue(w io.Writer, project *db.Project, items []db.QueueItem) {
	if len(items) == 0 {
		fmt.Fprintf(w, "Queue of %s is empty.\n", project.Name)
		return
	}

	fmt.Fprintln(w, render(w, headerStyle, fmt.Sprintf("Queue of %s (%d tasks)", project.Name, len(items))))

	idWidth := len(items[0].Task.ID)
	titleWidth := outputWidth(w) - idWidth - 40
	if titleWidth < 20 {
		titleWidth = 20
	}

	for i, item := range items {
		state := agent.StateOf(&item.Task)
		if item.Task.Paused {
			state += ",paused"
		}
		line := fmt.Sprintf("%3d. %s %8d  %-*s  %-*s  %s",
			i+1,
			stateIcon(agent.StateOf(&item.Task), item.Task.Paused),
			item.Position,
			titleWidth, truncate(item.Task.Title, titleWidth),
			idWidth, item.Task.ID,
			render(w, dimStyle, state),
		)
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// printTask writes a task with its lifecycle timestamps.
func printTask(w io.Writer, t *db.Task, position *int64) {
	fmt.Fprintln(w, render(w, headerStyle, t.Title))
	fmt.Fprintf(w, "ID:     %s\n", t.ID)
	fmt.Fprintf(w, "Story:  %s\n", t.UserStoryID)
	state := agent.StateOf(t)
	if t.Paused {
		state += " (paused)"
	}
	fmt.Fprintf(w, "State:  %s %s\n", stateIcon(agent.StateOf(t), t.Paused), state)
	if position != nil {
		fmt.Fprintf(w, "Queue:  position %d\n", *position)
	}
	if t.ApprovedAt != nil {
		fmt.Fprintf(w, "Approved:  %s\n", t.ApprovedAt.Format("2006-01-02 15:04:05"))
	}
	if t.RequestedAt != nil {
		fmt.Fprintf(w, "Requested: %s\n", t.RequestedAt.Format("2006-01-02 15:04:05"))
	}
	if t.FinishedAt != nil {
		fmt.Fprintf(w, "Finished:  %s\n", t.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	if t.Description != "" {
		fmt.Fprintf(w, "\n%s\n", t.Description)
	}
	if t.PromptBody != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", render(w, dimStyle, "Prompt:"), t.PromptBody)
	}
}

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, render(w, okStyle, fmt.Sprintf(format, args...)))
}
