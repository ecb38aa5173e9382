// Package logger provides leveled logging to stdout/stderr and, optionally, per-level files.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Logger writes info, warning and error entries through separate stdlib loggers.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      []*os.File
	mu         sync.Mutex
}

// New creates a Logger. When logDir is non-empty, each level is also appended
// to info.log, warning.log and error.log inside it.
func New(logDir string) (*Logger, error) {
	var infoOut, warningOut, errorOut io.Writer = os.Stdout, os.Stdout, os.Stderr

	l := &Logger{}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		infoFile, err := l.openLogFile(filepath.Join(logDir, "info.log"))
		if err != nil {
			return nil, err
		}
		warningFile, err := l.openLogFile(filepath.Join(logDir, "warning.log"))
		if err != nil {
			l.Close()
			return nil, err
		}
		errorFile, err := l.openLogFile(filepath.Join(logDir, "error.log"))
		if err != nil {
			l.Close()
			return nil, err
		}

		infoOut = io.MultiWriter(infoOut, infoFile)
		warningOut = io.MultiWriter(warningOut, warningFile)
		errorOut = io.MultiWriter(errorOut, errorFile)
	}

	l.setup(infoOut, warningOut, errorOut)
	return l, nil
}

// NewWriter creates a Logger that sends every level to w. Used by tests.
func NewWriter(w io.Writer) *Logger {
	l := &Logger{}
	l.setup(w, w, w)
	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard)
}

func (l *Logger) setup(info, warning, errOut io.Writer) {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	l.infoLog = log.New(info, "INFO    ", flags)
	l.warningLog = log.New(warning, "WARNING ", flags)
	l.errorLog = log.New(errOut, "ERROR   ", flags)
}

func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", filename, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// Close releases any log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
