// ABOUTME: Line-delimited JSON-RPC transport over an io.Reader and io.Writer, normally stdin and stdout.
// ABOUTME: Requests are handled sequentially in arrival order; malformed lines get a parse error reply.

package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Stdio reads one JSON value per line and writes one response per line.
type Stdio struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewStdio creates a stdio transport reading from in and writing to out.
func NewStdio(in io.Reader, out io.Writer, logger *slog.Logger) *Stdio {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stdio{
		in:     in,
		out:    out,
		logger: logger.With("component", "stdio_transport"),
		done:   make(chan struct{}),
	}
}

// Start launches the read loop. It returns immediately.
func (t *Stdio) Start(ctx context.Context, handler RequestHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running.Load() {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running.Store(true)

	go t.readLoop(loopCtx, handler, t.done)

	t.logger.Info("stdio transport started")
	return nil
}

// Stop prevents further lines from being dispatched. A read already blocked on
// the input returns only when the input yields data or EOF.
func (t *Stdio) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running.Swap(false) {
		return ErrNotRunning
	}
	t.cancel()
	t.logger.Info("stdio transport stopped")
	return nil
}

// IsRunning reports whether lines are still being dispatched.
func (t *Stdio) IsRunning() bool {
	return t.running.Load()
}

// Done is closed when the read loop exits, on EOF, read error or after Stop.
func (t *Stdio) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Stdio) readLoop(ctx context.Context, handler RequestHandler, done chan struct{}) {
	defer close(done)
	defer t.running.Store(false)

	reader := bufio.NewReader(t.in)
	for {
		line, readErr := reader.ReadBytes('\n')

		if ctx.Err() != nil {
			return
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			t.handleLine(ctx, handler, trimmed)
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				t.logger.Error("reading input failed", "error", readErr)
			} else {
				t.logger.Info("input closed")
			}
			return
		}
	}
}

func (t *Stdio) handleLine(ctx context.Context, handler RequestHandler, line []byte) {
	if err := checkJSON(line); err != nil {
		t.logger.Warn("received malformed JSON", "error", err)
		t.writeLine(parseErrorResponse("Error while parsing received JSON text: " + err.Error()))
		return
	}

	t.logger.Debug("request received", "bytes", len(line))
	t.writeLine(safeHandle(ctx, handler, line, t.logger))
}

func (t *Stdio) writeLine(msg []byte) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	buf := make([]byte, 0, len(msg)+1)
	buf = append(buf, msg...)
	buf = append(buf, '\n')
	if _, err := t.out.Write(buf); err != nil {
		t.logger.Error("writing response failed", "error", err)
	}
}
