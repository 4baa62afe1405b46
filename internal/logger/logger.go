package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// colorEnabled is evaluated per call so tests can swap os.Stdout.
func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(color, s string) string {
	if !colorEnabled() {
		return s
	}
	return color + s + reset
}

func line(color, symbol, tag, msg string) {
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(os.Stdout, "%s %s %s %s\n",
		paint(dim, ts),
		paint(color, symbol),
		paint(bold, fmt.Sprintf("[%s]", tag)),
		msg,
	)
}

// Info prints a neutral status line.
func Info(tag, msg string) { line(cyan, "•", tag, msg) }

// Success prints a completed-step line.
func Success(tag, msg string) { line(green, "✓", tag, msg) }

// Warn prints a recoverable problem.
func Warn(tag, msg string) { line(yellow, "!", tag, msg) }

// Error prints a failure.
func Error(tag, msg string) { line(red, "✗", tag, msg) }

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	title := fmt.Sprintf("elite-trader %s", version)
	rule := strings.Repeat("─", len(title)+4)
	fmt.Fprintln(os.Stdout, paint(cyan, "┌"+rule+"┐"))
	fmt.Fprintln(os.Stdout, paint(cyan, "│  ")+paint(bold, title)+paint(cyan, "  │"))
	fmt.Fprintln(os.Stdout, paint(cyan, "└"+rule+"┘"))
}

// Section prints a heading for a block of Stats lines.
func Section(title string) {
	fmt.Fprintf(os.Stdout, "\n%s\n", paint(bold, "── "+title+" ──"))
}

// Stats prints one aligned key/value line.
func Stats(key string, value interface{}) {
	fmt.Fprintf(os.Stdout, "  %-22s %v\n", key+":", value)
}
