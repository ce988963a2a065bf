package transport_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/hostlink/internal/errors"
	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, os.ErrClosed
}

func TestWriterSinkWritesRawFrames(t *testing.T) {
	var buf bytes.Buffer
	sink := transport.NewWriterSink(&buf)

	require.NoError(t, sink.Write(frame.EncodeClock(14, 5)))
	require.NoError(t, sink.Write(frame.EncodeVolume(0.37)))
	require.NoError(t, sink.Close())

	assert.Equal(t, []byte{0x01, 14, 5, 0x02, 37}, buf.Bytes())
}

func TestWriterSinkWrapsWriteErrors(t *testing.T) {
	sink := transport.NewWriterSink(failingWriter{})

	err := sink.Write(frame.EncodeVolume(0.5))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTransportWrite))
}

func TestHexSinkWritesOneLinePerFrame(t *testing.T) {
	var buf bytes.Buffer
	sink := transport.NewHexSink(&buf)

	require.NoError(t, sink.Write(frame.EncodeClock(14, 6)))
	require.NoError(t, sink.Write(frame.EncodeVolume(0.37)))
	require.NoError(t, sink.Close())

	assert.Equal(t, []string{"clock 0e 06", "volume 25"}, strings.Split(strings.TrimSpace(buf.String()), "\n"))
}

func TestOpenFileTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device")

	sink, err := transport.Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(frame.EncodeVolume(1.0)))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 100}, data)
}

func TestOpenMissingDirectory(t *testing.T) {
	_, err := transport.Open(context.Background(), filepath.Join(t.TempDir(), "missing", "device"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTransportDial))
}

func TestOpenRejectsOtherSchemes(t *testing.T) {
	_, err := transport.Open(context.Background(), "http://localhost:9000/frames")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestWebSocketSinkSendsBinaryMessages(t *testing.T) {
	received := make(chan []byte, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				close(received)
				return
			}
			if mt == websocket.BinaryMessage {
				received <- data
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sink, err := transport.Open(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)

	require.NoError(t, sink.Write(frame.EncodeClock(14, 5)))
	require.NoError(t, sink.Write(frame.EncodeVolume(0.10)))
	require.NoError(t, sink.Close())

	var got [][]byte
	for data := range received {
		got = append(got, data)
	}
	assert.Equal(t, [][]byte{{0x01, 14, 5}, {0x02, 10}}, got)
}

func TestDialWebSocketFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := transport.DialWebSocket(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTransportDial))
}
