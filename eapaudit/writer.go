// Package eapaudit records EAP session lifecycle events (session created,
// method selected, terminal outcome) to a rotating file, the audit trail a
// production deployment needs, grounded on the now-removed cdrwriter
// package's rotation-by-size/time file writer and CSV record shape.
package eapaudit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/francistor/radeap/core"
	"github.com/francistor/radeap/eap"
)

// Event is a single session lifecycle record.
type Event struct {
	Timestamp  time.Time
	Correlator string
	Username   string
	Type       eap.Type
	Outcome    string // "success", "failure", "proxied", "destroyed"
}

// Writer appends Events as CSV lines to a file, rotating to a fresh file
// once the current one exceeds maxBytes.
type Writer struct {
	mu       sync.Mutex
	dir      string
	prefix   string
	maxBytes int64

	f   *os.File
	w   *csv.Writer
	cur int64
}

// NewWriter opens (or creates) the audit log under dir, rotating files
// named prefix-<unix-nano>.csv once the active one exceeds maxBytes.
func NewWriter(dir, prefix string, maxBytes int64) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	w := &Writer{dir: dir, prefix: prefix, maxBytes: maxBytes}
	if err := w.rotate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) rotate() error {
	if w.f != nil {
		w.w.Flush()
		w.f.Close()
	}
	name := filepath.Join(w.dir, fmt.Sprintf("%s-%d.csv", w.prefix, time.Now().UnixNano()))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit file: %w", err)
	}
	w.f = f
	w.w = csv.NewWriter(f)
	w.cur = 0
	return nil
}

// Write appends ev, rotating the file first if it has grown past maxBytes.
func (w *Writer) Write(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxBytes > 0 && w.cur > w.maxBytes {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	record := []string{
		ev.Timestamp.Format(time.RFC3339Nano),
		ev.Correlator,
		ev.Username,
		fmt.Sprintf("%d", ev.Type),
		ev.Outcome,
	}
	if err := w.w.Write(record); err != nil {
		return err
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return err
	}

	for _, f := range record {
		w.cur += int64(len(f)) + 1
	}

	core.GetLogger().Debugw("eap audit event written", "correlator", ev.Correlator, "outcome", ev.Outcome)
	return nil
}

// Close flushes and closes the active file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	return w.f.Close()
}
