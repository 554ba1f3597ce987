// Package gateway serves chunk streams and heartbeats as server-sent events.
package gateway

import (
	"errors"
	"net/http"
	"time"

	"sessionhub/internal/logging"
	"sessionhub/internal/model"
)

// DefaultHeartbeat is the keep-alive interval used when none is configured.
const DefaultHeartbeat = 15 * time.Second

// ClosedWithoutTerminal is the error message delivered when the chunk
// channel closes before a Done or Error chunk.
const ClosedWithoutTerminal = "stream closed unexpectedly"

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Source is the producer side of one request stream.
type Source interface {
	Chunks() <-chan model.StreamChunk
	// Detach is called when the client goes away before a terminal chunk.
	Detach()
}

// Heartbeat is the payload of the heartbeat stream.
type Heartbeat struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
}

// Gateway writes event streams to HTTP clients.
type Gateway struct {
	interval time.Duration
	log      *logging.Logger
	now      func() time.Time
}

// New returns a Gateway sending keep-alives every interval.
func New(interval time.Duration, log *logging.Logger) *Gateway {
	if interval <= 0 {
		interval = DefaultHeartbeat
	}
	return &Gateway{interval: interval, log: log, now: time.Now}
}

func startStream(w http.ResponseWriter) (http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, nil
}

// ServeStream delivers src to one client. It returns after the terminal
// chunk was written, or after the client disconnected, in which case src is
// detached. A channel closed without a terminal chunk is reported to the
// client as an Error.
func (g *Gateway) ServeStream(w http.ResponseWriter, r *http.Request, src Source) error {
	flusher, err := startStream(w)
	if err != nil {
		src.Detach()
		return err
	}

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			g.log.Info("client disconnected before terminal chunk")
			src.Detach()
			return ctx.Err()

		case chunk, ok := <-src.Chunks():
			if !ok {
				g.log.Warn("chunk stream closed without terminal chunk")
				return writeEvent(w, flusher, string(model.ChunkError), model.ErrorChunk(ClosedWithoutTerminal))
			}
			if err := writeEvent(w, flusher, string(chunk.Type), chunk); err != nil {
				src.Detach()
				return err
			}
			if chunk.IsTerminal() {
				return nil
			}

		case <-ticker.C:
			if err := writeComment(w, flusher, "keep-alive"); err != nil {
				src.Detach()
				return err
			}
		}
	}
}

// ServeHeartbeat writes a heartbeat event immediately and then on every
// interval until the client disconnects.
func (g *Gateway) ServeHeartbeat(w http.ResponseWriter, r *http.Request) error {
	flusher, err := startStream(w)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		if err := writeEvent(w, flusher, "heartbeat", Heartbeat{Type: "heartbeat", Time: g.now().UTC()}); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
