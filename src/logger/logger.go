// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/helper/gc"
)

// Level is the minimum severity a logger emits.
type Level int32

const (
	// LevelDebug emits everything, including per-request diagnostics.
	LevelDebug Level = iota
	// LevelInfo emits lifecycle messages and above.
	LevelInfo
	// LevelWarn emits skipped records, retries and above.
	LevelWarn
	// LevelError emits failures only.
	LevelError
	// LevelSilent suppresses all output.
	LevelSilent
)

var levelNames = [...]string{"debug", "info", "warn", "error", "silent"}

// String returns the lowercase level name.
func (l Level) String() string {
	if l < LevelDebug || l > LevelSilent {
		return fmt.Sprintf("level(%d)", int32(l))
	}
	return levelNames[l]
}

// ParseLevel parses a level name case-insensitively.
// "warning" is accepted as an alias for "warn" and an empty string yields [LevelInfo].
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "off", "none":
		return LevelSilent, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (expected debug, info, warn, error or silent)", s)
}

// Logger defines the interface for logging operations.
// It provides methods for different log levels and formatted output.
//
// This interface supports both CLI and [MCP] server modes, allowing seamless
// switching between human-readable output and structured logging.
//
// [MCP]: https://modelcontextprotocol.io/docs/getting-started/intro
type Logger interface {
	// Printf formats and prints a log message.
	Printf(format string, v ...any)
	// Println prints a log message with a newline.
	Println(v ...any)
	// SetOutput sets the output destination for the logger.
	SetOutput(w io.Writer)

	// Debugf logs a diagnostic message.
	Debugf(format string, v ...any)
	// Infof logs a lifecycle message.
	Infof(format string, v ...any)
	// Warnf logs a recoverable problem.
	Warnf(format string, v ...any)
	// Errorf logs a failure.
	Errorf(format string, v ...any)
}

// CLILogger implements Logger using the standard log package.
// It's designed for command-line interface output with human-readable formatting.
//
// Printf and Println always write; the leveled methods respect the configured level
// and prefix the message with it.
type CLILogger struct {
	logger *log.Logger
	level  atomic.Int32
}

// NewCLILogger creates a new CLI logger with timestamps disabled.
// This is suitable for user-facing CLI output.
func NewCLILogger() *CLILogger {
	c := &CLILogger{logger: log.New(os.Stdout, "", 0)}
	c.level.Store(int32(LevelInfo))
	return c
}

// Printf formats and prints a log message using fmt.Printf semantics.
func (c *CLILogger) Printf(format string, v ...any) { c.logger.Printf(format, v...) }

// Println prints a log message with a newline.
func (c *CLILogger) Println(v ...any) { c.logger.Println(v...) }

// SetOutput sets the output destination for the CLI logger.
func (c *CLILogger) SetOutput(w io.Writer) { c.logger.SetOutput(w) }

// SetLevel changes the minimum level of the leveled methods.
func (c *CLILogger) SetLevel(l Level) { c.level.Store(int32(l)) }

// Debugf logs at [LevelDebug].
func (c *CLILogger) Debugf(format string, v ...any) { c.logf(LevelDebug, format, v...) }

// Infof logs at [LevelInfo].
func (c *CLILogger) Infof(format string, v ...any) { c.logf(LevelInfo, format, v...) }

// Warnf logs at [LevelWarn].
func (c *CLILogger) Warnf(format string, v ...any) { c.logf(LevelWarn, format, v...) }

// Errorf logs at [LevelError].
func (c *CLILogger) Errorf(format string, v ...any) { c.logf(LevelError, format, v...) }

func (c *CLILogger) logf(l Level, format string, v ...any) {
	if l < Level(c.level.Load()) {
		return
	}
	c.logger.Printf("%s: %s", strings.ToUpper(l.String()), fmt.Sprintf(format, v...))
}

// MCPLogger implements Logger for [MCP] server mode.
// It writes one JSON object per line so that logs sent to stderr or a file
// never mix with the protocol stream on stdout.
//
// MCPLogger is safe for concurrent use by multiple goroutines.
//
// [MCP]: https://modelcontextprotocol.io/docs/getting-started/intro
type MCPLogger struct {
	mu     sync.Mutex
	writer io.Writer
	level  Level
	now    func() time.Time
}

// NewMCPLogger creates a new [MCP] logger writing to writer at the given minimum level.
// A nil writer discards output; [LevelSilent] suppresses it entirely.
//
// [MCP]: https://modelcontextprotocol.io/docs/getting-started/intro
func NewMCPLogger(writer io.Writer, level Level) *MCPLogger {
	if writer == nil {
		writer = io.Discard
	}
	return &MCPLogger{
		writer: writer,
		level:  level,
		now:    time.Now,
	}
}

// Printf formats and logs a structured message at info level.
//
// Printf is safe for concurrent use by multiple goroutines.
func (m *MCPLogger) Printf(format string, v ...any) {
	m.log(LevelInfo, fmt.Sprintf(format, v...))
}

// Println logs a structured message at info level.
//
// Println is safe for concurrent use by multiple goroutines.
func (m *MCPLogger) Println(v ...any) {
	m.log(LevelInfo, fmt.Sprint(v...))
}

// Debugf logs at [LevelDebug].
func (m *MCPLogger) Debugf(format string, v ...any) { m.log(LevelDebug, fmt.Sprintf(format, v...)) }

// Infof logs at [LevelInfo].
func (m *MCPLogger) Infof(format string, v ...any) { m.log(LevelInfo, fmt.Sprintf(format, v...)) }

// Warnf logs at [LevelWarn].
func (m *MCPLogger) Warnf(format string, v ...any) { m.log(LevelWarn, fmt.Sprintf(format, v...)) }

// Errorf logs at [LevelError].
func (m *MCPLogger) Errorf(format string, v ...any) { m.log(LevelError, fmt.Sprintf(format, v...)) }

// SetOutput sets the output destination for the MCP logger.
//
// SetOutput is safe for concurrent use by multiple goroutines.
func (m *MCPLogger) SetOutput(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w == nil {
		m.writer = io.Discard
	} else {
		m.writer = w
	}
}

// SetLevel changes the minimum level.
func (m *MCPLogger) SetLevel(l Level) {
	m.mu.Lock()
	m.level = l
	m.mu.Unlock()
}

// logEntry is the JSON shape of one log line.
type logEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (m *MCPLogger) log(l Level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l < m.level || m.level == LevelSilent {
		return
	}

	data, err := json.Marshal(logEntry{
		Time:    m.now().UTC().Format(time.RFC3339),
		Level:   l.String(),
		Message: msg,
	})
	if err != nil {
		return
	}

	buf := gc.Default.Get()
	defer func() {
		buf.Reset()
		gc.Default.Put(buf)
	}()

	buf.Write(data)
	buf.WriteByte('\n')
	m.writer.Write(buf.Bytes())
}
