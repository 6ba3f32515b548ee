// Package audit keeps an append-only, privacy-preserving record of guard decisions.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one audit line.
type Record struct {
	Timestamp time.Time      `json:"timestamp"`
	Principal string         `json:"principal"`
	Event     string         `json:"event"`
	Details   map[string]any `json:"details,omitempty"`
}

// Masker redacts sensitive substrings.
type Masker interface {
	Mask(text string) string
}

// Log appends JSON lines to a file. Each record is written with a single
// Write on an O_APPEND descriptor so concurrent appends never interleave.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	masker Masker
	now    func() time.Time
}

// Open opens or creates the log at path.
func Open(path string, masker Masker) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Log{file: f, path: path, masker: masker, now: time.Now}, nil
}

// Path returns the file the log writes to.
func (l *Log) Path() string {
	return l.path
}

// Append writes one record. The principal is hashed and every string in
// details is masked before anything reaches the file. The write is local
// and runs even when ctx is already cancelled.
func (l *Log) Append(ctx context.Context, principal, event string, details map[string]any) error {
	rec := Record{
		Timestamp: l.now().UTC(),
		Principal: HashPrincipal(principal),
		Event:     event,
	}
	if len(details) > 0 {
		rec.Details = make(map[string]any, len(details))
		for k, v := range details {
			rec.Details[k] = l.mask(v)
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return fmt.Errorf("audit log %s is closed", l.path)
	}
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Log) mask(v any) any {
	if l.masker == nil {
		return v
	}
	switch val := v.(type) {
	case string:
		return l.masker.Mask(val)
	case []string:
		out := make([]string, len(val))
		for i, s := range val {
			out[i] = l.masker.Mask(s)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = l.mask(e)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = l.masker.Mask(s)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = l.mask(e)
		}
		return out
	case error:
		return l.masker.Mask(val.Error())
	case fmt.Stringer:
		return l.masker.Mask(val.String())
	default:
		return v
	}
}

// HashPrincipal returns a stable one-way identifier for principal:
// the first 16 bytes of its SHA-256, hex encoded.
func HashPrincipal(principal string) string {
	sum := sha256.Sum256([]byte(principal))
	return hex.EncodeToString(sum[:16])
}
