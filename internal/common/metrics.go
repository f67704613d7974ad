package common

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Metrics aggregates counters across a run. It is safe for concurrent use by
// batch workers.
type Metrics struct {
	mu         sync.Mutex
	start      time.Time
	end        time.Time
	files      int64
	totalFiles int64
	failed     int64
	bytes      int64
	containers int64
	entries    int64
	replaced   int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
		m.end = time.Time{}
	}
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

func (m *Metrics) SetTotalFiles(n int64) {
	m.mu.Lock()
	m.totalFiles = max(n, 0)
	m.mu.Unlock()
}

// AddFile accounts for one processed dump.
func (m *Metrics) AddFile(size int64, containers, entries, replaced int, failed bool) {
	m.mu.Lock()
	m.files++
	if failed {
		m.failed++
	}
	m.bytes += max(size, 0)
	m.containers += int64(containers)
	m.entries += int64(entries)
	m.replaced += int64(replaced)
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var elapsed time.Duration
	switch {
	case m.start.IsZero():
	case m.end.IsZero():
		elapsed = time.Since(m.start)
	default:
		elapsed = m.end.Sub(m.start)
	}
	return MetricsSnapshot{
		Duration:   elapsed,
		Files:      m.files,
		TotalFiles: m.totalFiles,
		Failed:     m.failed,
		Bytes:      m.bytes,
		Containers: m.containers,
		Entries:    m.entries,
		Replaced:   m.replaced,
	}
}

type MetricsSnapshot struct {
	Duration   time.Duration
	Files      int64
	TotalFiles int64
	Failed     int64
	Bytes      int64
	Containers int64
	Entries    int64
	Replaced   int64
}

func (s MetricsSnapshot) String() string {
	return fmt.Sprintf("%d file(s), %d failed, %s scanned, %d container(s), %d entr(ies), %d replaced in %s",
		s.Files, s.Failed, FormatBytes(s.Bytes), s.Containers, s.Entries, s.Replaced, s.Duration.Round(time.Millisecond))
}

// FormatBytes renders a size with IEC units.
func FormatBytes(b int64) string {
	if b < 0 {
		return fmt.Sprintf("-%s", humanize.IBytes(uint64(-b)))
	}
	return humanize.IBytes(uint64(b))
}

func progressLine(s MetricsSnapshot) string {
	if s.TotalFiles > 0 {
		return fmt.Sprintf("Files: %d/%d (%s, %d replaced)", s.Files, s.TotalFiles, FormatBytes(s.Bytes), s.Replaced)
	}
	return fmt.Sprintf("Files: %d (%s, %d replaced)", s.Files, FormatBytes(s.Bytes), s.Replaced)
}

// StartProgressPrinter redraws a single progress line on w every interval
// until the returned stop function is called.
func StartProgressPrinter(w io.Writer, m *Metrics, interval time.Duration) func() {
	if m == nil || w == nil {
		return func() {}
	}
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		lastLen := 0
		for {
			select {
			case <-ticker.C:
				line := progressLine(m.Snapshot())
				if pad := lastLen - len(line); pad > 0 {
					line += strings.Repeat(" ", pad)
				}
				fmt.Fprintf(w, "\r%s", line)
				lastLen = len(line)
			case <-done:
				if lastLen > 0 {
					fmt.Fprintf(w, "\r%s\r\n", strings.Repeat(" ", lastLen))
				}
				return
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
