// Package ws forwards captured frames over a websocket connection: each
// delivered frame becomes a JSON metadata message followed by a binary PCM
// message.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	duplex "github.com/overdub-audio/duplex-go"
)

// DialConfig configures the websocket connection.
type DialConfig struct {
	URL            string
	Headers        http.Header
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	// QueueSize bounds the outbound frame queue. When the queue is full
	// the handler drops the frame instead of blocking the dispatch
	// worker behind a slow peer.
	QueueSize int
}

func (d *DialConfig) defaults() {
	if d.ConnectTimeout == 0 {
		d.ConnectTimeout = 10 * time.Second
	}
	if d.WriteTimeout == 0 {
		d.WriteTimeout = 5 * time.Second
	}
	if d.QueueSize == 0 {
		d.QueueSize = 64
	}
}

// frameMeta is the JSON wire form of a capture frame's metadata.
type frameMeta struct {
	NumFrames        int32 `json:"num_frames"`
	SampleRate       int32 `json:"sample_rate"`
	Channels         int32 `json:"channels"`
	OutputFramePos   int64 `json:"output_frame_pos"`
	InputFramePos    int64 `json:"input_frame_pos"`
	TimestampNanos   int64 `json:"timestamp_nanos"`
	RelativeFramePos int64 `json:"relative_frame_pos"`
	SessionID        int64 `json:"session_id"`
}

type queuedFrame struct {
	meta duplex.CaptureFrame
	pcm  []byte
}

// Forwarder owns a websocket connection and a writer goroutine.
type Forwarder struct {
	conn         *websocket.Conn
	out          chan queuedFrame
	done         chan struct{}
	writeTimeout time.Duration
	logger       *slog.Logger

	// mu orders handler sends against Close: the handler may still be
	// registered on an engine whose worker delivers after Close.
	mu     sync.Mutex
	closed bool
}

// Dial connects to the websocket endpoint and starts the writer goroutine.
func Dial(ctx context.Context, cfg DialConfig) (*Forwarder, error) {
	cfg.defaults()

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ws: parse url: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), cfg.Headers)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", cfg.URL, err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		conn.Close()
		return nil, fmt.Errorf("ws: unexpected status code: %d", resp.StatusCode)
	}

	logger := slog.Default().With(
		slog.String("component", "capture_ws"),
		slog.String("remote_addr", conn.RemoteAddr().String()),
	)

	f := &Forwarder{
		conn:         conn,
		out:          make(chan queuedFrame, cfg.QueueSize),
		done:         make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		logger:       logger,
	}
	go f.writeLoop()
	return f, nil
}

// Handler returns the capture handler to register on the engine. Frames
// that do not fit in the outbound queue are dropped, and frames delivered
// after Close are ignored.
func (f *Forwarder) Handler() duplex.Handler {
	return func(pcm []byte, meta duplex.CaptureFrame) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.closed {
			return
		}
		select {
		case f.out <- queuedFrame{meta: meta, pcm: pcm}:
		default:
			f.logger.Debug("outbound queue full, frame dropped",
				slog.Int64("session_id", meta.SessionID),
			)
		}
	}
}

func (f *Forwarder) writeLoop() {
	defer close(f.done)
	for qf := range f.out {
		if err := f.writeFrame(qf); err != nil {
			f.logger.Error("write frame failed", slog.Any("err", err))
			if cerr := f.conn.Close(); cerr != nil {
				f.logger.Debug("connection close failed", slog.Any("err", cerr))
			}
			return
		}
	}

	deadline := time.Now().Add(f.writeTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closed")
	if err := f.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		f.logger.Debug("close message failed", slog.Any("err", err))
	}
	if err := f.conn.Close(); err != nil {
		f.logger.Debug("connection close failed", slog.Any("err", err))
	}
}

func (f *Forwarder) writeFrame(qf queuedFrame) error {
	meta := frameMeta(qf.meta)
	data, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	_ = f.conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
	if err := f.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	if err := f.conn.WriteMessage(websocket.BinaryMessage, qf.pcm); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// Close flushes queued frames, sends a close message and waits for the
// writer goroutine to exit. Close is idempotent and safe to call while the
// handler is still registered.
func (f *Forwarder) Close(ctx context.Context) error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.out)
	}
	f.mu.Unlock()
	select {
	case <-ctx.Done():
		return fmt.Errorf("ws: close: %w", ctx.Err())
	case <-f.done:
		return nil
	}
}
