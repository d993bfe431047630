package sandbox

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/ideaforge/fab/internal/domain"
)

// LogCallback receives sandbox log records as they are produced, enabling
// real-time progress reporting while the process runs.
type LogCallback func(domain.LogRecord)

// logCollector accumulates the ordered, append-only log sequence for one
// run and fans records out to an optional live callback. The sequence is
// finite (it ends when the process exits or the watchdog fires) and is
// not restartable; a new run produces a new collector.
type logCollector struct {
	mu       sync.Mutex
	records  []domain.LogRecord
	callback LogCallback
}

func newLogCollector(cb LogCallback) *logCollector {
	return &logCollector{callback: cb}
}

// add appends a record and delivers it to the live callback.
func (c *logCollector) add(source domain.LogSource, severity domain.LogSeverity, line string) {
	rec := domain.LogRecord{
		Timestamp: time.Now().UTC(),
		Source:    source,
		Severity:  severity,
		Line:      line,
	}

	c.mu.Lock()
	c.records = append(c.records, rec)
	cb := c.callback
	c.mu.Unlock()

	if cb != nil {
		cb(rec)
	}
}

// all returns the accumulated records.
func (c *logCollector) all() []domain.LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.LogRecord, len(c.records))
	copy(out, c.records)
	return out
}

// pump reads r line by line and appends each line to the collector with
// the given source tag. Lines from one pipe are delivered in the order
// the process emitted them.
func (c *logCollector) pump(r io.Reader, source domain.LogSource, severity domain.LogSeverity) error {
	scanner := bufio.NewScanner(r)

	// Agent output can contain very long lines.
	const maxLineSize = 1024 * 1024 // 1MB
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		c.add(source, severity, scanner.Text())
	}
	return scanner.Err()
}
