package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/handiism/mailmirror/internal/download"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	verboseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// progressPrinter writes one line per progress event.
type progressPrinter struct {
	out      io.Writer
	verbose  bool
	colorize bool
}

func newProgressPrinter(out io.Writer, verbose bool) *progressPrinter {
	return &progressPrinter{
		out:      out,
		verbose:  verbose,
		colorize: shouldColorize(out),
	}
}

// Print implements the download progress callback.
func (p *progressPrinter) Print(event download.ProgressEvent) {
	if event.Level == download.LevelVerbose && !p.verbose {
		return
	}
	fmt.Fprintln(p.out, p.style(event))
}

func (p *progressPrinter) style(event download.ProgressEvent) string {
	if !p.colorize {
		return event.Message
	}
	switch event.Level {
	case download.LevelError:
		return errorStyle.Render(event.Message)
	case download.LevelWarning:
		return warningStyle.Render(event.Message)
	case download.LevelSuccess:
		return successStyle.Render(event.Message)
	case download.LevelVerbose:
		return verboseStyle.Render(event.Message)
	default:
		return event.Message
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
