package googlestt

import (
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/charmbracelet/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/luiz-pereira/go-google-stt/transport"
)

// ErrWorkerClosed is returned by Worker.Send when the worker has terminated.
var ErrWorkerClosed = errors.New("googlestt: stream worker closed")

// notice is what a worker forwards to its session's inbox. from names the
// originating worker: notices are delivered asynchronously, and the session
// must be able to tell a stale notice from one sent by its current worker.
type notice struct {
	from    *Worker
	resp    *speechpb.StreamingRecognizeResponse
	err     error // unrecoverable transport error; the worker has terminated
	timeout bool  // receive deadline ended the stream with no data
}

type commandKind int

const (
	cmdSend commandKind = iota
	cmdEndStream
	cmdCancel
	cmdStop
)

type command struct {
	kind commandKind
	req  *speechpb.StreamingRecognizeRequest
}

// Worker owns exactly one open streaming RPC and the connection beneath it.
// It multiplexes inbound responses and outbound commands from a single loop
// goroutine: a receive pump feeds one channel, commands arrive on another, and
// the loop selects over both so neither side can starve the other. The
// connection is closed when the loop exits, however it exits.
type Worker struct {
	conn   transport.Conn
	stream transport.Stream
	inbox  chan<- notice
	quit   <-chan struct{} // owning session's lifetime
	cmds   chan command
	done   chan struct{}
	log    *log.Logger
}

// startWorker spawns the worker loop over an already-open stream. Inbound
// responses and failures are forwarded to inbox until quit closes or the
// stream ends.
func startWorker(conn transport.Conn, stream transport.Stream, inbox chan<- notice, quit <-chan struct{}, logger *log.Logger) *Worker {
	w := &Worker{
		conn:   conn,
		stream: stream,
		inbox:  inbox,
		quit:   quit,
		cmds:   make(chan command, 64),
		done:   make(chan struct{}),
		log:    logger,
	}
	go w.run()
	return w
}

// Send enqueues one outbound request. Delivery order to the transport equals
// call order. Fire-and-forget: a nil return means enqueued, not acknowledged.
func (w *Worker) Send(req *speechpb.StreamingRecognizeRequest) error {
	select {
	case w.cmds <- command{kind: cmdSend, req: req}:
		return nil
	case <-w.done:
		return ErrWorkerClosed
	}
}

// EndStream half-closes the stream gracefully. Inbound responses keep flowing
// until the server finishes, then the worker terminates. Safe to call more
// than once; only the first has effect.
func (w *Worker) EndStream() {
	w.post(command{kind: cmdEndStream})
}

// Cancel aborts the stream immediately and terminates the worker. A Cancel
// after EndStream is a no-op so a draining stream is not truncated.
func (w *Worker) Cancel() {
	w.post(command{kind: cmdCancel})
}

// Stop aborts the stream, releases the connection and terminates the worker
// unconditionally.
func (w *Worker) Stop() {
	w.post(command{kind: cmdStop})
}

// Alive reports whether the worker loop is still running.
func (w *Worker) Alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Done closes when the worker has terminated and its connection is released.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) post(c command) {
	select {
	case w.cmds <- c:
	case <-w.done:
	}
}

type recvResult struct {
	resp *speechpb.StreamingRecognizeResponse
	err  error
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.conn.Close()

	recv := make(chan recvResult, 8)
	go w.receive(recv)

	var sentEOS bool
	for {
		select {
		case r := <-recv:
			if r.err == nil {
				if !w.forward(notice{resp: r.resp}) {
					w.stream.Cancel()
					return
				}
				continue
			}
			switch classifyRecvError(r.err) {
			case recvTimeout:
				// The deadline finished the RPC. One timeout notice, then
				// the worker retires quietly; the next audio chunk opens a
				// fresh stream.
				w.forward(notice{timeout: true})
				return
			case recvClosed:
				w.log.Debug("stream closed by peer")
				return
			default:
				w.forward(notice{err: r.err})
				return
			}
		case c := <-w.cmds:
			switch c.kind {
			case cmdSend:
				if err := w.stream.Send(c.req); err != nil {
					if errors.Is(err, io.EOF) {
						// Aborted stream; the receive pump surfaces the
						// real status.
						w.log.Debug("send on aborted stream")
						continue
					}
					w.forward(notice{err: err})
					w.stream.Cancel()
					return
				}
			case cmdEndStream:
				if sentEOS {
					continue
				}
				sentEOS = true
				if err := w.stream.CloseSend(); err != nil {
					w.log.Warn("half-close failed", "err", err)
				}
			case cmdCancel:
				if sentEOS {
					// Already draining to completion.
					continue
				}
				w.stream.Cancel()
				return
			case cmdStop:
				w.stream.Cancel()
				return
			}
		case <-w.quit:
			w.flushCommands(&sentEOS)
			w.stream.Cancel()
			return
		}
	}
}

// flushCommands executes whatever was already enqueued before teardown so a
// send or half-close that raced the quit signal is not silently dropped.
func (w *Worker) flushCommands(sentEOS *bool) {
	for {
		select {
		case c := <-w.cmds:
			switch c.kind {
			case cmdSend:
				if err := w.stream.Send(c.req); err != nil {
					return
				}
			case cmdEndStream:
				if !*sentEOS {
					*sentEOS = true
					w.stream.CloseSend()
				}
			}
		default:
			return
		}
	}
}

// receive pumps inbound responses into out and stops on the first error. Any
// non-nil error from Recv means the RPC is finished; reading again would
// return the same error forever. Classification is left to the loop.
func (w *Worker) receive(out chan<- recvResult) {
	for {
		resp, err := w.stream.Recv()
		select {
		case out <- recvResult{resp: resp, err: err}:
		case <-w.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// forward delivers a notice to the session inbox. Returns false when the
// session is gone.
func (w *Worker) forward(n notice) bool {
	n.from = w
	select {
	case w.inbox <- n:
		return true
	case <-w.quit:
		return false
	}
}

type recvClass int

const (
	recvFatal recvClass = iota
	recvTimeout
	recvClosed
)

// classifyRecvError sorts a Recv failure into terminal-quiet, timeout and
// fatal. io.EOF and Canceled are how a normally finished or aborted stream
// reports itself. Unavailable/Internal wrapping an EOF are how grpc-go
// reports a connection closed by the peer; they mean the same thing.
func classifyRecvError(err error) recvClass {
	if errors.Is(err, io.EOF) {
		return recvClosed
	}
	if isDeadlineNoData(err) {
		return recvTimeout
	}
	switch s := status.Convert(err); s.Code() {
	case codes.Canceled:
		return recvClosed
	case codes.Unavailable, codes.Internal:
		msg := strings.ToLower(s.Message())
		if strings.Contains(msg, "eof") || strings.Contains(msg, "connection closed") {
			return recvClosed
		}
	}
	return recvFatal
}

func isDeadlineNoData(err error) bool {
	return status.Code(err) == codes.DeadlineExceeded
}
