package googlestt

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/luiz-pereira/go-google-stt/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Speech.Recognizer = testRecognizer
	return cfg
}

func newTestServer(t *testing.T) (*Server, *fakeProvider, *websocket.Conn) {
	t.Helper()
	provider := &fakeProvider{}
	server := NewServer(testConfig(), provider, log.New(io.Discard))

	testServer := httptest.NewServer(http.HandlerFunc(server.handleWebSocket))
	t.Cleanup(testServer.Close)

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return server, provider, conn
}

func TestWebSocketAudioFlow(t *testing.T) {
	_, provider, conn := newTestServer(t)

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Buf: []byte("test audio data")}))

	require.Eventually(t, func() bool {
		return provider.connectCount() == 1 && provider.connAt(0).stream.sentCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	stream := provider.connAt(0).stream
	require.NotNil(t, stream.sentAt(0).GetStreamingConfig())
	assert.Equal(t, []byte("test audio data"), stream.sentAt(1).GetAudio())
}

func TestWebSocketTranscriptionFlow(t *testing.T) {
	_, provider, conn := newTestServer(t)

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Buf: []byte("hello world audio")}))
	require.Eventually(t, func() bool {
		return provider.connectCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	provider.connAt(0).stream.push(finalResponse("Hello world"))

	var ev WebSocketEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "transcript", ev.Type)
	assert.Equal(t, "Hello world", ev.Content)
	assert.True(t, ev.IsFinal)
}

func TestWebSocketStreamErrorFlow(t *testing.T) {
	_, provider, conn := newTestServer(t)

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Buf: []byte("audio")}))
	require.Eventually(t, func() bool {
		return provider.connectCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	provider.connAt(0).stream.pushErr(status.Error(codes.ResourceExhausted, "quota exceeded"))

	var ev WebSocketEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
	assert.Equal(t, codes.ResourceExhausted.String(), ev.Status)
	assert.Equal(t, "quota exceeded", ev.Message)
}

func TestWebSocketInvalidJSONIsIgnored(t *testing.T) {
	_, provider, conn := newTestServer(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("invalid json")))
	require.NoError(t, conn.WriteJSON(WebSocketRequest{Buf: []byte("good")}))

	// The bad frame is skipped; the good one still opens a stream.
	require.Eventually(t, func() bool {
		return provider.connectCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketCloseEndsStream(t *testing.T) {
	_, provider, conn := newTestServer(t)

	require.NoError(t, conn.WriteJSON(WebSocketRequest{Buf: []byte("audio")}))
	require.Eventually(t, func() bool {
		return provider.connectCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	// The handler half-closes the stream and the worker releases the
	// connection on teardown.
	require.Eventually(t, func() bool {
		return provider.connAt(0).stream.closeSendCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return provider.connAt(0).closeCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRenderEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		expected WebSocketEvent
	}{
		{
			name:     "transcript",
			event:    Transcript{Content: "hi", IsFinal: true},
			expected: WebSocketEvent{Type: "transcript", Content: "hi", IsFinal: true},
		},
		{
			name:     "activity",
			event:    SpeechActivity{Kind: speechpb.StreamingRecognizeResponse_SPEECH_ACTIVITY_END},
			expected: WebSocketEvent{Type: "activity", Kind: "SPEECH_ACTIVITY_END"},
		},
		{
			name:     "timeout",
			event:    StreamTimeout{},
			expected: WebSocketEvent{Type: "timeout"},
		},
		{
			name:     "error",
			event:    Error{Status: codes.Internal, Message: "boom"},
			expected: WebSocketEvent{Type: "error", Status: "Internal", Message: "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, renderEvent(tt.event))
		})
	}
}
