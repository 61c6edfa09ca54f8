package utils

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Logger is a leveled logger over the standard log package.
type Logger struct {
	file   *os.File
	logger *log.Logger
	info   string
	warn   string
	err    string
}

// NewLogger creates a logger that appends to the file at filePath.
func NewLogger(filePath string) (*Logger, error) {
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l := New(file)
	l.file = file
	return l, nil
}

// New creates a logger writing to w. Level prefixes are coloured when w is a terminal.
func New(w io.Writer) *Logger {
	l := &Logger{
		logger: log.New(w, "", log.LstdFlags),
		info:   "INFO: ",
		warn:   "WARN: ",
		err:    "ERROR: ",
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		l.info = color.New(color.FgGreen).Sprint(l.info)
		l.warn = color.New(color.FgYellow).Sprint(l.warn)
		l.err = color.New(color.FgRed, color.Bold).Sprint(l.err)
	}
	return l
}

// Discard returns a logger that drops everything.
func Discard() *Logger { return New(io.Discard) }

// Info logs an info message
func (l *Logger) Info(msg string) { l.logger.Print(l.info + msg) }

// Warn logs a warning message
func (l *Logger) Warn(msg string) { l.logger.Print(l.warn + msg) }

// Error logs an error message
func (l *Logger) Error(msg string) { l.logger.Print(l.err + msg) }

func (l *Logger) Infof(format string, args ...any)  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.Error(fmt.Sprintf(format, args...)) }

// Close closes the log file, if the logger owns one.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
