package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	duplex "github.com/overdub-audio/duplex-go"
)

type recvMsg struct {
	mt   int
	data []byte
}

func startEchoServer(t *testing.T) (string, chan recvMsg) {
	t.Helper()

	received := make(chan recvMsg, 16)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			received <- recvMsg{mt: mt, data: data}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func waitMsg(t *testing.T, ch chan recvMsg) recvMsg {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for websocket message")
		return recvMsg{}
	}
}

func TestForwarderSendsMetaThenPayload(t *testing.T) {
	url, received := startEchoServer(t)

	f, err := Dial(context.Background(), DialConfig{URL: url})
	require.NoError(t, err)

	h := f.Handler()
	h([]byte{1, 2, 3, 4}, duplex.CaptureFrame{
		NumFrames:        2,
		SampleRate:       8000,
		Channels:         1,
		RelativeFramePos: 256,
		SessionID:        3,
	})

	m1 := waitMsg(t, received)
	require.Equal(t, websocket.TextMessage, m1.mt)
	var meta frameMeta
	require.NoError(t, json.Unmarshal(m1.data, &meta))
	require.Equal(t, int32(2), meta.NumFrames)
	require.Equal(t, int32(8000), meta.SampleRate)
	require.Equal(t, int64(256), meta.RelativeFramePos)
	require.Equal(t, int64(3), meta.SessionID)

	m2 := waitMsg(t, received)
	require.Equal(t, websocket.BinaryMessage, m2.mt)
	require.Equal(t, []byte{1, 2, 3, 4}, m2.data)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.Close(ctx))
}

func TestForwarderFlushesQueueOnClose(t *testing.T) {
	url, received := startEchoServer(t)

	f, err := Dial(context.Background(), DialConfig{URL: url, QueueSize: 8})
	require.NoError(t, err)

	h := f.Handler()
	for i := byte(1); i <= 3; i++ {
		h([]byte{i}, duplex.CaptureFrame{NumFrames: 1, Channels: 1})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.Close(ctx))

	// three meta+payload pairs, in order
	for i := byte(1); i <= 3; i++ {
		m := waitMsg(t, received)
		require.Equal(t, websocket.TextMessage, m.mt)
		p := waitMsg(t, received)
		require.Equal(t, websocket.BinaryMessage, p.mt)
		require.Equal(t, []byte{i}, p.data)
	}
}

func TestDeliveryAfterCloseIsIgnored(t *testing.T) {
	url, received := startEchoServer(t)

	f, err := Dial(context.Background(), DialConfig{URL: url})
	require.NoError(t, err)
	h := f.Handler()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.Close(ctx))
	require.NoError(t, f.Close(ctx)) // idempotent

	// a dispatch worker may still hold the handler when the forwarder
	// closes; late deliveries must be dropped, not crash the worker
	require.NotPanics(t, func() {
		h([]byte{7}, duplex.CaptureFrame{NumFrames: 1, Channels: 1})
	})

	select {
	case m := <-received:
		t.Fatalf("unexpected message after close: type %d", m.mt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), DialConfig{
		URL:            "ws://127.0.0.1:1",
		ConnectTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
}
