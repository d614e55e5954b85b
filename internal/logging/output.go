package logging

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single captured line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of lines buffered per watchdog.
	MaxBufferedLines = 100
)

// OutputHandler captures stdout/stderr output from the supervised child.
// It buffers recent lines for the exit summary and logs them.
type OutputHandler struct {
	watchdogID int
	stream     string // "stdout" or "stderr"
	logger     *slog.Logger
	verbose    bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewOutputHandler creates an output handler for one of a child's streams.
func NewOutputHandler(watchdogID int, stream string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		watchdogID: watchdogID,
		stream:     stream,
		logger:     logger,
		verbose:    verbose,
		buffer:     make([]string, MaxBufferedLines),
	}
}

// HandleReader reads from an io.Reader and processes each line.
// This should be run in a goroutine; it returns when the reader closes.
// Lines beyond MaxLineLength are truncated rather than treated as errors, so
// the pipe stays drained no matter what the child writes.
func (h *OutputHandler) HandleReader(r io.Reader) {
	br := bufio.NewReaderSize(r, 16*1024)

	var line []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if len(chunk) > 0 && len(line) <= MaxLineLength {
			line = append(line, chunk...)
		}
		if err != nil {
			if len(line) > 0 {
				h.HandleLine(string(line))
			}
			return
		}
		if isPrefix {
			continue
		}
		h.HandleLine(string(line))
		line = line[:0]
	}
}

// HandleLine processes a single line of child output.
func (h *OutputHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	h.logLine(line)
}

// logLine logs the line at appropriate level based on content.
func (h *OutputHandler) logLine(line string) {
	level := h.classifyLine(line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level == slog.LevelDebug {
		return
	}

	h.logger.Log(nil, level, "child_output",
		"watchdog_id", h.watchdogID,
		"stream", h.stream,
		"line", line,
	)
}

// classifyLine determines the log level for a line based on content.
func (h *OutputHandler) classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.Contains(lower, "error") ||
		strings.Contains(lower, "fatal") ||
		strings.Contains(lower, "panic") {
		return slog.LevelWarn
	}

	if strings.Contains(lower, "warn") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns the most recent lines from the buffer.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)

	// Read from circular buffer in order
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}
