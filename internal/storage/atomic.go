// Package storage writes downloaded artifacts to disk without ever leaving a
// half-written file under the final name.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// AtomicWriter writes into a hidden temp file next to the target and renames
// it into place on Commit.
type AtomicWriter struct {
	path    string
	tmpPath string
	file    *os.File
	written int64
}

// NewAtomicWriter opens a temp file in the target's directory. The directory
// must already exist.
func NewAtomicWriter(path string) (*AtomicWriter, error) {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, ".nicotools-"+uuid.NewString()+".part")

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &AtomicWriter{
		path:    path,
		tmpPath: tmpPath,
		file:    f,
	}, nil
}

// Write writes data to the temp file.
func (w *AtomicWriter) Write(p []byte) (int, error) {
	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

// Written reports how many bytes have gone into the temp file so far.
func (w *AtomicWriter) Written() int64 {
	return w.written
}

// Path is the final destination.
func (w *AtomicWriter) Path() string {
	return w.path
}

// Commit flushes the temp file and renames it over the target.
func (w *AtomicWriter) Commit() error {
	if err := w.file.Sync(); err != nil {
		w.Abort()
		return fmt.Errorf("sync: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		os.Remove(w.tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Abort discards the temp file.
func (w *AtomicWriter) Abort() error {
	w.file.Close()
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteFile stores data at path atomically.
func WriteFile(path string, data []byte) error {
	w, err := NewAtomicWriter(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Abort()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return w.Commit()
}
