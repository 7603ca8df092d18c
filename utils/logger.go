package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	lineTimeLayout = "2006-01-02 15:04:05"
	fileTimeLayout = "20060102_150405"
	banner         = "============================================================"
)

// Logger writes leveled, timestamped lines for one pipeline process.
// A run logger mirrors every line to its log file and to stdout.
type Logger struct {
	mu        sync.Mutex
	out       io.Writer
	console   io.Writer
	file      *os.File
	path      string
	label     string
	startedAt time.Time
	now       func() time.Time
	debug     bool
	finalized bool
}

// NewLogger creates a Logger that writes only to w. It has no log file and
// Finalize just writes the closing marker.
func NewLogger(w io.Writer) *Logger {
	return &Logger{
		out:       w,
		console:   w,
		now:       time.Now,
		startedAt: time.Now(),
	}
}

// NewRunLogger creates dir if needed and opens
// dir/log_<label>_<YYYYMMDD_HHMMSS>.txt for appending.
func NewRunLogger(dir, label string) (*Logger, error) {
	return newRunLogger(dir, label, os.Stdout, time.Now)
}

func newRunLogger(dir, label string, console io.Writer, now func() time.Time) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}

	started := now()
	name := fmt.Sprintf("log_%s_%s.txt", label, started.Format(fileTimeLayout))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %q: %w", path, err)
	}

	l := &Logger{
		out:       io.MultiWriter(f, console),
		console:   console,
		file:      f,
		path:      path,
		label:     label,
		startedAt: started,
		now:       now,
	}

	l.Info(banner)
	l.Info("LOG START - Process: %s", label)
	l.Info("Log file: %s", name)
	l.Info(banner)
	return l, nil
}

// SetDebug toggles DEBUG lines.
func (l *Logger) SetDebug(on bool) { l.debug = on }

// Path is the log file path, empty for console-only loggers.
func (l *Logger) Path() string { return l.path }

// StartedAt is the time the logger was created.
func (l *Logger) StartedAt() time.Time { return l.startedAt }

func (l *Logger) Info(format string, args ...any) {
	l.write("INFO", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.write("WARNING", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.write("ERROR", format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.write("DEBUG", format, args...)
}

// Transformation logs a before/after block for one applied rule.
func (l *Logger) Transformation(name string, before, after int, details string) {
	diff := before - after
	pct := 0.0
	if before > 0 {
		pct = float64(diff) / float64(before) * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TRANSFORMATION APPLIED: %s\n", name)
	fmt.Fprintf(&b, "  Records before: %s\n", FormatInt(before))
	fmt.Fprintf(&b, "  Records after:  %s\n", FormatInt(after))
	fmt.Fprintf(&b, "  Difference:     %s (%.2f%%)", FormatInt(diff), pct)
	if details != "" {
		fmt.Fprintf(&b, "\n  Details:        %s", details)
	}
	l.Info("%s", b.String())
}

// Finalize writes the closing marker and releases the log file.
// Subsequent calls are no-ops; later log lines go to the console only.
func (l *Logger) Finalize() error {
	l.mu.Lock()
	done := l.finalized
	l.mu.Unlock()
	if done {
		return nil
	}

	l.Info(banner)
	l.Info("LOG END")
	l.Info(banner)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.finalized = true
	l.out = l.console
	if l.file == nil {
		return nil
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("logger: close %q: %w", l.path, err)
	}
	return nil
}

func (l *Logger) write(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s - %s - %s\n", l.now().Format(lineTimeLayout), level, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, line)
}

// FormatInt renders n with comma thousands separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
