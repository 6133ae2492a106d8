// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"chaintask/internal/service"
)

// FormatTask formats a task with its description on an indented second line.
// Format: "{ID:>4}  {TITLE}\n      {TEXT}\n"
func FormatTask(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "%4d  %s\n", task.ID, normalize(task.Title))
	if text := normalize(task.Text); text != "" && text != "(untitled)" {
		fmt.Fprintf(w, "      %s\n", text)
	}
}

// FormatTaskOneline formats a task as a single line.
func FormatTaskOneline(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "%4d  %s\n", task.ID, normalize(task.Title))
}

// FormatStatus formats the session summary for the status command.
func FormatStatus(w io.Writer, sess service.Session, taskCount int) {
	fmt.Fprintf(w, "address: %s\n", sess.Address)
	fmt.Fprintf(w, "network: %d\n", sess.NetworkID)
	fmt.Fprintf(w, "tasks:   %d\n", taskCount)
}

// normalize flattens newlines and substitutes a placeholder for empty text.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	if strings.TrimSpace(s) == "" {
		return "(untitled)"
	}
	return s
}
