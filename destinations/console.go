// Package destinations provides the concrete delivery endpoints the
// pipeline fans out to. Every destination implements core.Destination;
// remote ones additionally implement core.Prober so the health gate can
// skip them when unreachable.
package destinations

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/sluicekit/sluice/core"
)

// ANSI codes used for level coloring.
const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiCyan   = "\x1b[36m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiBgRed  = "\x1b[41m\x1b[37m"
)

// Console writes events to a terminal or any writer, one line per event,
// with level coloring when the writer is a TTY. Delivery is synchronous
// and never rejects an event short of a write error.
type Console struct {
	out            io.Writer
	mu             sync.Mutex
	useColor       bool
	showProperties bool
}

// ConsoleOption configures a console destination.
type ConsoleOption func(*Console)

// WithConsoleWriter redirects output; color is re-detected for the writer.
func WithConsoleWriter(w io.Writer) ConsoleOption {
	return func(c *Console) {
		c.out = w
		c.useColor = writerIsTerminal(w)
	}
}

// WithConsoleColor forces colored or plain output.
func WithConsoleColor(enabled bool) ConsoleOption {
	return func(c *Console) {
		c.useColor = enabled
	}
}

// WithConsoleProperties appends the event's properties to each line.
func WithConsoleProperties() ConsoleOption {
	return func(c *Console) {
		c.showProperties = true
	}
}

// NewConsole creates a console destination writing to stderr.
func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{
		out:      os.Stderr,
		useColor: writerIsTerminal(os.Stderr),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Accept writes one formatted line.
func (c *Console) Accept(event *core.Event) error {
	line := c.format(event)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.out, line); err != nil {
		return core.NewDeliveryError(core.ErrCodeWriteFailed, "console write: %v", err)
	}
	return nil
}

// Flush is a no-op; the console is unbuffered.
func (c *Console) Flush(ctx context.Context) core.FlushResult {
	return core.FlushOK
}

// Close is a no-op; the console does not own its writer.
func (c *Console) Close() error {
	return nil
}

func (c *Console) format(event *core.Event) string {
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(event.Timestamp.Format("15:04:05"))
	sb.WriteByte(' ')
	sb.WriteString(c.levelLabel(event.Level))
	sb.WriteString("] ")
	sb.WriteString(event.RenderedMessage)

	if event.Exception != nil {
		sb.WriteString(" error=")
		sb.WriteString(event.Exception.Error())
	}

	if c.showProperties && len(event.Properties) > 0 {
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

func (c *Console) levelLabel(level core.Level) string {
	if !c.useColor {
		return level.Short()
	}
	switch level {
	case core.VerboseLevel:
		return ansiDim + level.Short() + ansiReset
	case core.DebugLevel:
		return ansiCyan + level.Short() + ansiReset
	case core.WarningLevel:
		return ansiYellow + level.Short() + ansiReset
	case core.ErrorLevel:
		return ansiRed + level.Short() + ansiReset
	case core.FatalLevel:
		return ansiBgRed + level.Short() + ansiReset
	default:
		return level.Short()
	}
}
