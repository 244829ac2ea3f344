package googlestt

import (
	"context"
	"sync"

	"cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/luiz-pereira/go-google-stt/transport"
)

// fakeStream is a scriptable transport.Stream. Tests push inbound responses
// and errors through push/pushErr and inspect what was sent.
type fakeStream struct {
	mu         sync.Mutex
	sent       []*speechpb.StreamingRecognizeRequest
	sendErr    error
	closeSends int

	recvCh     chan recvResult
	cancelCh   chan struct{}
	cancelOnce sync.Once
	cancels    int
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		recvCh:   make(chan recvResult, 16),
		cancelCh: make(chan struct{}),
	}
}

func (f *fakeStream) push(resp *speechpb.StreamingRecognizeResponse) {
	f.recvCh <- recvResult{resp: resp}
}

func (f *fakeStream) pushErr(err error) {
	f.recvCh <- recvResult{err: err}
}

func (f *fakeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	select {
	case r := <-f.recvCh:
		return r.resp, r.err
	case <-f.cancelCh:
		return nil, status.Error(codes.Canceled, "context canceled")
	}
}

func (f *fakeStream) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSends++
	return nil
}

func (f *fakeStream) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
	f.cancelOnce.Do(func() { close(f.cancelCh) })
}

func (f *fakeStream) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeStream) sentAt(i int) *speechpb.StreamingRecognizeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[i]
}

func (f *fakeStream) closeSendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeSends
}

func (f *fakeStream) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

func (f *fakeStream) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

type fakeConn struct {
	stream *fakeStream

	mu     sync.Mutex
	closed int
}

func (c *fakeConn) OpenStream(ctx context.Context) (transport.Stream, error) {
	return c.stream, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeProvider hands out a fresh conn+stream per Connect and remembers them.
type fakeProvider struct {
	mu         sync.Mutex
	conns      []*fakeConn
	connectErr error
}

func (p *fakeProvider) Connect(ctx context.Context) (transport.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	conn := &fakeConn{stream: newFakeStream()}
	p.conns = append(p.conns, conn)
	return conn, nil
}

func (p *fakeProvider) connectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (p *fakeProvider) connAt(i int) *fakeConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conns[i]
}

func resultOf(text string, final bool) *speechpb.StreamingRecognitionResult {
	return &speechpb.StreamingRecognitionResult{
		IsFinal: final,
		Alternatives: []*speechpb.SpeechRecognitionAlternative{
			{Transcript: text},
		},
	}
}

func finalResponse(text string) *speechpb.StreamingRecognizeResponse {
	return &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{resultOf(text, true)},
	}
}
