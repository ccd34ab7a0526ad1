package eventbus

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	// DefaultMaxBytes is the size at which WithLogFile rotates the log file.
	DefaultMaxBytes = 10 * 1024 * 1024

	// maxBackups bounds how many rotated files are kept (path.1 .. path.N).
	maxBackups = 5
)

// RotatingFileWriter is an io.WriteCloser that rotates the underlying file
// once a write would push it past a maximum size. Rotation renames the file
// to path.1, shifting existing backups up and discarding the oldest beyond
// maxBackups.
type RotatingFileWriter struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	file     *os.File
	size     int64
}

// NewRotatingFileWriter opens (or creates) the file at path for appending.
// A non-positive maxBytes falls back to DefaultMaxBytes.
func NewRotatingFileWriter(path string, maxBytes int64) (*RotatingFileWriter, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	w := &RotatingFileWriter{
		path:     path,
		maxBytes: maxBytes,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingFileWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	w.file = file
	w.size = info.Size()
	return nil
}

// Write appends p to the current file, rotating first when the write would
// exceed the maximum size.
func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingFileWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
	}

	// Shift backups up: .4 -> .5, ..., .1 -> .2. A failed rename skips that
	// backup rather than aborting the rotation.
	for i := maxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", w.path, i)
		newPath := fmt.Sprintf("%s.%d", w.path, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Remove(newPath)
			os.Rename(oldPath, newPath)
		}
	}

	backupPath := w.path + ".1"
	if _, err := os.Stat(w.path); err == nil {
		os.Remove(backupPath)
		if err := os.Rename(w.path, backupPath); err != nil {
			os.Remove(w.path)
		}
	}

	return w.open()
}

// Close closes the underlying file. Further writes fail.
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

var _ io.WriteCloser = (*RotatingFileWriter)(nil)
