package bridge

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sessionhub/internal/logging"
	"sessionhub/internal/model"
	"sessionhub/internal/registry"
)

// Stream is the handle for one running request. Chunks are delivered in
// output order on Chunks; the channel is closed right after the single
// terminal chunk (Done or Error).
type Stream struct {
	RequestID string
	SessionID string
	Tool      model.AiTool
	PID       int

	ch       chan model.StreamChunk
	cancel   context.CancelFunc
	linger   time.Duration
	reg      *registry.Registry
	log      *logging.Logger
	aborted  atomic.Bool
	finished atomic.Bool
	abort    sync.Once
	detach   sync.Once
	detached chan struct{}
	done     chan struct{}
}

func newStream(req model.ChatRequest, buffer int, linger time.Duration, cancel context.CancelFunc, reg *registry.Registry, log *logging.Logger) *Stream {
	return &Stream{
		linger:    linger,
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		Tool:      req.Tool,
		ch:        make(chan model.StreamChunk, buffer),
		cancel:    cancel,
		reg:       reg,
		log:       log,
		detached:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Chunks returns the chunk channel. Sends block while the buffer is full,
// which in turn stops reading the process output.
func (s *Stream) Chunks() <-chan model.StreamChunk {
	return s.ch
}

// Done is closed once the process has exited and the stream is closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Abort terminates the process. If no terminal chunk was emitted yet, the
// stream ends with Error("aborted by user"). Safe to call repeatedly; after
// the terminal chunk it is a no-op.
func (s *Stream) Abort() {
	s.abort.Do(func() {
		if s.finished.Load() {
			return
		}
		s.aborted.Store(true)
		s.reg.Unregister(s.RequestID)
		s.cancel()
		s.log.Info("request aborted")
	})
}

// Detach aborts the request and stops delivery; used when the consumer has
// gone away and will not drain Chunks.
func (s *Stream) Detach() {
	s.Abort()
	s.detach.Do(func() { close(s.detached) })
}

// Aborted reports whether Abort was called.
func (s *Stream) Aborted() bool {
	return s.aborted.Load()
}

// Collect drains the stream and returns the concatenated text and the
// terminal chunk.
func (s *Stream) Collect() (string, model.StreamChunk) {
	var b strings.Builder
	var last model.StreamChunk
	for chunk := range s.ch {
		if chunk.Type == model.ChunkText {
			b.WriteString(chunk.Content)
		}
		last = chunk
	}
	return b.String(), last
}

func (s *Stream) run(cmd *exec.Cmd, stdout, stderr io.Reader, adapter model.Adapter) {
	defer close(s.done)
	defer close(s.ch)
	defer s.cancel()

	var errBuf limitedBuffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})

	var (
		terminal *model.StreamChunk
		reap     *time.Timer
		exited   bool
	)
	defer func() {
		if reap != nil {
			reap.Stop()
		}
	}()
	emit := func(chunk model.StreamChunk) {
		if terminal != nil {
			s.log.Warn("ignoring chunk after terminal", "chunk", string(chunk.Type), "terminal", string(terminal.Type))
			return
		}
		if chunk.IsTerminal() {
			terminal = &chunk
			s.finished.Store(true)
			s.reg.Unregister(s.RequestID)
			s.log.Info("request finished", "chunk", string(chunk.Type), "message", chunk.Message)
		}
		if chunk.IsTerminal() && !exited {
			// Reap a CLI that keeps running after reporting its result.
			reap = time.AfterFunc(s.linger, func() {
				s.log.Warn("process still running after terminal chunk, terminating", "grace", s.linger.String())
				s.cancel()
			})
		}
		select {
		case s.ch <- chunk:
		case <-s.detached:
		}
	}

	scanner := newScanner(stdout)
	for scanner.Scan() {
		if s.aborted.Load() {
			continue
		}
		for _, tok := range adapter.ParseLine(scanner.Bytes()) {
			emit(tok.Chunk())
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		s.cancel()
		_, _ = io.Copy(io.Discard, stdout)
	}
	stderrErr := g.Wait()
	waitErr := cmd.Wait()
	exited = true

	switch {
	case terminal != nil:
		if waitErr != nil && !s.aborted.Load() {
			s.log.Warn("ignoring exit status after terminal chunk", "error", waitErr)
		}
	case s.aborted.Load():
		emit(model.ErrorChunk(model.AbortedMessage))
	case scanErr != nil:
		emit(model.ErrorChunk(fmt.Sprintf("read output: %v", scanErr)))
	case waitErr != nil:
		msg := strings.TrimSpace(errBuf.String())
		if msg == "" {
			msg = fmt.Sprintf("%s exited: %v", s.Tool, waitErr)
		}
		emit(model.ErrorChunk(msg))
	default:
		if stderrErr != nil {
			s.log.Debug("stderr read failed", "error", stderrErr)
		}
		emit(model.DoneChunk())
	}
	s.reg.Unregister(s.RequestID)
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	// Allow large payloads such as tool results.
	const maxCapacity = 8 * 1024 * 1024
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxCapacity)
	return scanner
}

// limitedBuffer keeps the first maxStderrBytes written and discards the rest.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if room := maxStderrBytes - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}

func (l *limitedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}
