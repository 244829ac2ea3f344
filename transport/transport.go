// Package transport defines the narrow interfaces the session layer uses to
// reach the streaming speech service. The google subpackage provides the real
// implementation; tests substitute fakes.
package transport

import (
	"context"

	"cloud.google.com/go/speech/apiv2/speechpb"
)

// Provider establishes connections to the speech service.
type Provider interface {
	// Connect opens a new connection. The caller owns the returned Conn and
	// must Close it when done.
	Connect(ctx context.Context) (Conn, error)
}

// Conn is one established connection to the speech service. A Conn can open
// streaming calls independently of other Conns.
type Conn interface {
	// OpenStream starts a bidirectional streaming recognize call.
	OpenStream(ctx context.Context) (Stream, error)

	// Close releases the underlying connection.
	Close() error
}

// Stream is one open bidirectional streaming recognize call.
type Stream interface {
	// Send writes one request to the stream. Requests are delivered in call
	// order. A Send after CloseSend is an error.
	Send(*speechpb.StreamingRecognizeRequest) error

	// Recv blocks until the next response is available or the stream ends.
	Recv() (*speechpb.StreamingRecognizeResponse, error)

	// CloseSend half-closes the stream. Responses may still arrive until the
	// server finishes.
	CloseSend() error

	// Cancel aborts the stream immediately.
	Cancel()
}
