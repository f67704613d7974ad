package common

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
)

// ReplaceEntry records one payload substitution made while repacking a dump.
type ReplaceEntry struct {
	Input     string        `json:"input"`
	Output    string        `json:"output"`
	Backup    string        `json:"backup,omitempty"`
	Variant   string        `json:"variant"`
	Strategy  string        `json:"strategy"`
	Container int           `json:"container"`
	Index     int           `json:"index"`
	Offset    int64         `json:"offset"`
	OldSize   int           `json:"oldSize"`
	NewSize   int           `json:"newSize"`
	OldDigest digest.Digest `json:"oldDigest"`
	NewDigest digest.Digest `json:"newDigest"`
	Source    string        `json:"source,omitempty"`
	// InputDigest and OutputDigest identify the whole files so undo can
	// refuse to run against the wrong pair.
	InputDigest  digest.Digest `json:"inputDigest"`
	OutputDigest digest.Digest `json:"outputDigest"`
	Ts           time.Time     `json:"ts"`
}

// ReplaceLog provides append-only access to a JSONL audit log.
type ReplaceLog struct {
	path string
	mu   sync.Mutex
}

// NewReplaceLog returns a ReplaceLog that writes to the provided path.
func NewReplaceLog(path string) *ReplaceLog {
	return &ReplaceLog{path: path}
}

func (l *ReplaceLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes entries as one JSON object per line.
func (l *ReplaceLog) Append(entries ...ReplaceEntry) error {
	if l == nil {
		return errors.New("nil replace log")
	}
	if len(entries) == 0 {
		return nil
	}
	var buf strings.Builder
	now := time.Now().UTC()
	for _, entry := range entries {
		if entry.Output == "" {
			return errors.New("replace entry missing output")
		}
		if entry.Ts.IsZero() {
			entry.Ts = now
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	dir := filepath.Dir(l.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(buf.String()); err != nil {
		return err
	}
	return f.Sync()
}

// ReadReplaceLog loads every entry from the supplied JSONL file.
func ReadReplaceLog(path string) ([]ReplaceEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []ReplaceEntry
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var entry ReplaceEntry
		if err := json.Unmarshal([]byte(text), &entry); err != nil {
			return nil, fmt.Errorf("decode replace entry on line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// ForOutput returns the entries written for output, in log order.
func ForOutput(entries []ReplaceEntry, output string) []ReplaceEntry {
	want := filepath.Clean(output)
	var out []ReplaceEntry
	for _, e := range entries {
		if filepath.Clean(e.Output) == want {
			out = append(out, e)
		}
	}
	return out
}
