package destinations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sluicekit/sluice/core"
)

// File appends events to a local file, one line per event. Delivery is
// synchronous; Flush syncs the file to disk.
type File struct {
	path   string
	file   *os.File
	mu     sync.Mutex
	isOpen bool
	format func(*core.Event) string
}

// FileOption configures a file destination.
type FileOption func(*File)

// WithFileFormat replaces the default line format.
func WithFileFormat(format func(*core.Event) string) FileOption {
	return func(f *File) {
		f.format = format
	}
}

// NewFile opens (creating if necessary) the file for appending.
func NewFile(path string, opts ...FileOption) (*File, error) {
	f := &File{path: path, format: defaultFileFormat}
	for _, opt := range opts {
		opt(f)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	handle, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	f.file = handle
	f.isOpen = true
	return f, nil
}

// Accept appends one line.
func (f *File) Accept(event *core.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isOpen {
		return core.NewDeliveryError(core.ErrCodeClosed, "file destination %s is closed", f.path)
	}
	if _, err := f.file.WriteString(f.format(event) + "\n"); err != nil {
		return core.NewDeliveryError(core.ErrCodeWriteFailed, "write %s: %v", f.path, err)
	}
	return nil
}

// Flush syncs buffered writes to disk.
func (f *File) Flush(ctx context.Context) core.FlushResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isOpen {
		return core.FlushOK
	}
	if err := f.file.Sync(); err != nil {
		return core.FlushPartial
	}
	return core.FlushOK
}

// Close syncs and closes the file. Further Accepts are rejected.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isOpen {
		return nil
	}
	f.isOpen = false
	if err := f.file.Sync(); err != nil {
		_ = f.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	return f.file.Close()
}

func defaultFileFormat(event *core.Event) string {
	var sb strings.Builder
	sb.WriteString(event.Timestamp.Format("2006-01-02 15:04:05.000"))
	sb.WriteString(" [")
	sb.WriteString(event.Level.Short())
	sb.WriteString("] ")
	sb.WriteString(event.RenderedMessage)

	if event.Exception != nil {
		sb.WriteString(" error=")
		sb.WriteString(event.Exception.Error())
	}
	if len(event.Properties) > 0 {
		names := make([]string, 0, len(event.Properties))
		for name := range event.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString(" {")
		for i, name := range names {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", name, event.Properties[name])
		}
		sb.WriteByte('}')
	}
	return sb.String()
}
