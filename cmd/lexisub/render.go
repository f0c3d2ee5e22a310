package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"lexisub/internal/chunk"
	"lexisub/internal/daemon"
	"lexisub/internal/deps"
	"lexisub/internal/progress"
	"lexisub/internal/vocabulary"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const labelWidth = 14

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func stageColor(stage chunk.State) string {
	switch stage {
	case chunk.StateCompleted:
		return ansiGreen
	case chunk.StateFailed:
		return ansiRed
	case chunk.StatePending:
		return ansiYellow
	default:
		return ansiBlue
	}
}

func paint(s, color string, colorize bool) string {
	if !colorize || color == "" {
		return s
	}
	return color + s + ansiReset
}

func labelLine(label, value string) string {
	return fmt.Sprintf("  %-*s %s", labelWidth, label+":", value)
}

// renderRecord prints one task record as aligned label lines.
func renderRecord(rec progress.Record, colorize bool) string {
	lines := []string{
		labelLine("Task", rec.TaskID),
		labelLine("Stage", paint(string(rec.Stage), stageColor(rec.Stage), colorize)),
		labelLine("Progress", fmt.Sprintf("%.0f%%", rec.Percent)),
	}
	if !rec.StartedAt.IsZero() {
		lines = append(lines, labelLine("Started", rec.StartedAt.Local().Format("2006-01-02 15:04:05")))
	}
	if !rec.UpdatedAt.IsZero() {
		lines = append(lines, labelLine("Updated", rec.UpdatedAt.Local().Format("2006-01-02 15:04:05")))
	}
	if rec.Error != nil {
		lines = append(lines, labelLine("Error", paint(fmt.Sprintf("[%s] %s", rec.Error.Category, rec.Error.Message), ansiRed, colorize)))
	}
	return strings.Join(lines, "\n")
}

func renderDaemonStatus(status daemon.Status, colorize bool) string {
	state := paint("stopped", ansiRed, colorize)
	if status.Running {
		state = paint("running", ansiGreen, colorize)
	}
	lines := []string{
		labelLine("Daemon", state),
		labelLine("PID", fmt.Sprintf("%d", status.PID)),
		labelLine("API", status.APIAddress),
		labelLine("Lock", status.LockFilePath),
		labelLine("Active tasks", fmt.Sprintf("%d", status.ActiveTasks)),
	}
	if !status.StartedAt.IsZero() {
		lines = append(lines, labelLine("Started", status.StartedAt.Local().Format("2006-01-02 15:04:05")))
	}
	stages := append([]chunk.State{chunk.StatePending}, chunk.Stages()...)
	stages = append(stages, chunk.StateCompleted, chunk.StateFailed)
	for _, stage := range stages {
		if n := status.TasksByStage[stage]; n > 0 {
			lines = append(lines, labelLine(string(stage), fmt.Sprintf("%d", n)))
		}
	}
	return strings.Join(lines, "\n")
}

func renderDependencies(statuses []deps.Status, colorize bool) string {
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		state := paint("ok", ansiGreen, colorize)
		switch {
		case !st.Available && st.Optional:
			state = paint("missing (optional)", ansiYellow, colorize)
		case !st.Available:
			state = paint("missing", ansiRed, colorize)
		}
		detail := st.Path
		if detail == "" {
			detail = st.Detail
		}
		rows = append(rows, []string{st.Name, st.Command, state, detail})
	}
	return renderTable([]string{"Dependency", "Command", "Status", "Detail"}, rows, nil)
}

func renderVocabulary(candidates []vocabulary.Candidate) string {
	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, []string{
			c.SurfaceForm,
			deref(c.Lemma),
			string(c.DifficultyLevel),
			deref(c.Translation),
			c.Identifier,
		})
	}
	return renderTable([]string{"Word", "Lemma", "Level", "Translation", "ID"}, rows, nil)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
