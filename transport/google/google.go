// Package google implements transport against the Google Cloud
// Speech-to-Text v2 API.
package google

import (
	"context"

	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"

	"github.com/luiz-pereira/go-google-stt/transport"
)

// Provider creates Speech v2 connections. The zero value uses default
// credentials; pass option.ClientOption values to override endpoint or auth.
type Provider struct {
	opts []option.ClientOption
}

// NewProvider creates a provider with the given client options.
func NewProvider(opts ...option.ClientOption) *Provider {
	return &Provider{opts: opts}
}

// Connect dials the Speech v2 service.
func (p *Provider) Connect(ctx context.Context) (transport.Conn, error) {
	client, err := speech.NewClient(ctx, p.opts...)
	if err != nil {
		return nil, err
	}
	return &conn{client: client}, nil
}

type conn struct {
	client *speech.Client
}

func (c *conn) OpenStream(ctx context.Context) (transport.Stream, error) {
	// Each stream gets its own cancelable context so Cancel aborts only this
	// RPC, not the whole connection.
	streamCtx, cancel := context.WithCancel(ctx)
	rpc, err := c.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	return &stream{rpc: rpc, cancel: cancel}, nil
}

func (c *conn) Close() error {
	return c.client.Close()
}

type stream struct {
	rpc    speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
}

// Send forwards one request. When the stream has been aborted grpc-go returns
// io.EOF here and the real status surfaces from Recv; callers must treat an
// io.EOF from Send as "wait for Recv".
func (s *stream) Send(req *speechpb.StreamingRecognizeRequest) error {
	return s.rpc.Send(req)
}

func (s *stream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	return s.rpc.Recv()
}

func (s *stream) CloseSend() error {
	return s.rpc.CloseSend()
}

func (s *stream) Cancel() {
	s.cancel()
}
