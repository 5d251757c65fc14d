package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Level names a log stream; each non-debug level has its own file.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// FileName returns the log file backing a level.
func (l Level) FileName() string {
	if l == LevelDebug {
		return string(LevelInfo) + ".log"
	}
	return string(l) + ".log"
}

// Logger provides leveled logging (debug/info/warning/error) to files and stdout/stderr.
type Logger struct {
	loggers map[Level]*log.Logger
	files   []*os.File
	logDir  string
	debug   bool
	mu      sync.Mutex
}

// New creates a Logger writing into logDir, creating the directory when needed.
// Debug entries are dropped unless debug is set.
func New(logDir string, debug bool) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		loggers: make(map[Level]*log.Logger),
		logDir:  logDir,
		debug:   debug,
	}

	writers := make(map[Level]io.Writer)
	for _, level := range []Level{LevelInfo, LevelWarning, LevelError} {
		file, err := os.OpenFile(filepath.Join(logDir, level.FileName()), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", level.FileName(), err)
		}
		l.files = append(l.files, file)

		console := io.Writer(os.Stdout)
		if level == LevelError {
			console = os.Stderr
		}
		writers[level] = io.MultiWriter(console, file)
	}
	writers[LevelDebug] = writers[LevelInfo]

	l.setup(writers)
	return l, nil
}

// NewWithWriter sends every level to w; no files are created.
func NewWithWriter(w io.Writer, debug bool) *Logger {
	l := &Logger{loggers: make(map[Level]*log.Logger), debug: debug}
	l.setup(map[Level]io.Writer{LevelDebug: w, LevelInfo: w, LevelWarning: w, LevelError: w})
	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard, false)
}

func (l *Logger) setup(writers map[Level]io.Writer) {
	prefixes := map[Level]string{
		LevelDebug:   "DEBUG   ",
		LevelInfo:    "INFO    ",
		LevelWarning: "WARNING ",
		LevelError:   "ERROR   ",
	}
	for level, w := range writers {
		l.loggers[level] = log.New(w, prefixes[level], log.Ldate|log.Ltime|log.Lshortfile)
	}
}

func (l *Logger) output(level Level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// calldepth 3 points Lshortfile at the caller of Info/Warning/...
	l.loggers[level].Output(3, fmt.Sprintf(format, v...))
}

// Debug writes a formatted debug-level entry when debug logging is enabled.
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.debug {
		return
	}
	l.output(LevelDebug, format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(LevelInfo, format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.output(LevelWarning, format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.output(LevelError, format, v...)
}

// Dir is the directory holding the log files, empty for writer-backed loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the log file of the given level.
func (l *Logger) CleanLogs(level Level) error {
	if l.logDir == "" {
		return nil
	}

	filePath := filepath.Join(l.logDir, level.FileName())
	if err := os.Truncate(filePath, 0); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", level.FileName(), err)
	}

	l.Info("Log file %s has been cleared", level.FileName())
	return nil
}

// Close releases the underlying files.
func (l *Logger) Close() {
	for _, f := range l.files {
		f.Close()
	}
	l.files = nil
}
