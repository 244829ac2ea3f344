// Package googlestt manages long-lived bidirectional transcription sessions
// against the Google Cloud Speech-to-Text v2 streaming API. A Session owns
// stream lifecycle and configuration for one caller; a Worker drives one open
// streaming RPC. Callers push audio with ProcessAudio and receive Events
// asynchronously on their target channel.
package googlestt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/charmbracelet/log"

	"github.com/luiz-pereira/go-google-stt/transport"
)

// ErrSessionClosed is returned by session operations after the session's
// context has been canceled.
var ErrSessionClosed = errors.New("googlestt: session closed")

// ErrNoRecognizer is returned by Start when no recognizer is set in the
// options and no process-wide default has been configured.
var ErrNoRecognizer = errors.New("googlestt: no recognizer configured")

// defaultRecognizer is the process-wide recognizer used when Options leaves
// Recognizer empty. Set once at startup, before any Session starts.
var defaultRecognizer atomic.Value // string

// SetDefaultRecognizer configures the process-wide default recognizer, e.g.
// "projects/p/locations/global/recognizers/r".
func SetDefaultRecognizer(r string) {
	defaultRecognizer.Store(r)
}

// DefaultRecognizer returns the process-wide default recognizer, or "".
func DefaultRecognizer() string {
	r, _ := defaultRecognizer.Load().(string)
	return r
}

// Options configures a Session. Use DefaultOptions as the starting point;
// zero-value fields fall back to the same defaults at Start.
type Options struct {
	// Target receives the session's events. When nil the session allocates
	// its own channel, exposed via Events. The target's identity is fixed at
	// Start.
	Target chan<- Event

	LanguageCodes              []string
	Model                      string
	Recognizer                 string
	EnableAutomaticPunctuation bool
	InterimResults             bool
}

// DefaultOptions returns the stock session options: en-US, latest_long,
// automatic punctuation on, interim results off, process-wide recognizer.
func DefaultOptions() Options {
	return Options{
		LanguageCodes:              []string{"en-US"},
		Model:                      "latest_long",
		Recognizer:                 DefaultRecognizer(),
		EnableAutomaticPunctuation: true,
	}
}

type streamState int

const (
	stateClosed streamState = iota
	stateOpen
)

// Session owns per-caller stream state. All mutating operations are
// serialized through one mutex; events are translated and forwarded from a
// single pump goroutine so arrival order is preserved end to end.
//
// The ctx handed to Start is the caller-liveness signal: when it is done the
// session stops its worker, closes its event channel (when it owns one) and
// terminates. That teardown is mandatory, not best effort, or open streams
// would leak with their callers.
type Session struct {
	provider transport.Provider
	opts     Options
	log      *log.Logger

	mu     sync.Mutex
	state  streamState
	worker *Worker

	// inbox outlives any individual worker: successive workers for this
	// session all forward into it.
	inbox  chan notice
	target chan<- Event
	events chan Event // non-nil only when the session owns its target

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Start creates a Session bound to ctx. No stream is opened yet; the first
// ProcessAudio opens one lazily.
func Start(ctx context.Context, provider transport.Provider, opts Options, logger *log.Logger) (*Session, error) {
	if opts.Recognizer == "" {
		opts.Recognizer = DefaultRecognizer()
	}
	if opts.Recognizer == "" {
		return nil, ErrNoRecognizer
	}
	if len(opts.LanguageCodes) == 0 {
		opts.LanguageCodes = []string{"en-US"}
	}
	if opts.Model == "" {
		opts.Model = "latest_long"
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		provider: provider,
		opts:     opts,
		log:      logger.With("recognizer", opts.Recognizer),
		inbox:    make(chan notice, 16),
		ctx:      sessionCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if opts.Target != nil {
		s.target = opts.Target
	} else {
		s.events = make(chan Event, 16)
		s.target = s.events
	}

	go s.pump()
	return s, nil
}

// Events returns the session-owned event channel. It is nil when a Target was
// supplied in Options. The channel is closed when the session terminates.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done closes when the session has terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ProcessAudio forwards one chunk of raw audio on the session's stream,
// opening the stream (config request first) when none is open. Repeated calls
// reuse the open stream.
func (s *Session) ProcessAudio(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	w, err := s.ensureWorkerLocked()
	if err != nil {
		return err
	}
	return w.Send(audioRequest(s.opts.Recognizer, audio))
}

// EndStream half-closes the open stream gracefully and transitions to closed.
// Trailing responses from the draining stream are still delivered. A closed
// session is a no-op.
func (s *Session) EndStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return nil
	}
	if s.worker != nil {
		s.worker.EndStream()
	}
	s.worker = nil
	s.state = stateClosed
	return nil
}

// ensureWorkerLocked returns the live worker, creating one when the state is
// closed. A recorded handle whose worker has died is not trusted: the state
// is reconciled to closed and a fresh stream is opened.
func (s *Session) ensureWorkerLocked() (*Worker, error) {
	if s.state == stateOpen && s.worker != nil && s.worker.Alive() {
		return s.worker, nil
	}
	s.worker = nil
	s.state = stateClosed

	conn, err := s.provider.Connect(s.ctx)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStream(s.ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}

	w := startWorker(conn, stream, s.inbox, s.ctx.Done(), s.log)
	if err := w.Send(configRequest(s.opts)); err != nil {
		w.Stop()
		return nil, err
	}
	s.worker = w
	s.state = stateOpen
	s.log.Debug("stream opened")
	return w, nil
}

// pump translates worker notices into events and forwards them to the target
// in arrival order. It is the only goroutine that writes to the target.
func (s *Session) pump() {
	defer close(s.done)
	defer func() {
		if s.events != nil {
			close(s.events)
		}
	}()

	for {
		select {
		case n := <-s.inbox:
			for _, ev := range translate(n) {
				if !s.deliver(ev) {
					s.teardown()
					return
				}
			}
			if n.err != nil || n.timeout {
				// The worker behind this notice is gone; flip to closed
				// rather than letting the caller talk to a dead handle.
				s.releaseWorker(n.from)
			}
		case <-s.ctx.Done():
			s.teardown()
			return
		}
	}
}

func (s *Session) deliver(ev Event) bool {
	select {
	case s.target <- ev:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// releaseWorker clears the recorded handle, but only when it still refers to
// origin. A stale notice can arrive after ensureWorkerLocked has already
// replaced the dead worker; the replacement must be left alone.
func (s *Session) releaseWorker(origin *Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker != origin {
		return
	}
	s.worker = nil
	s.state = stateClosed
}

// teardown is the caller-termination path: the in-flight worker is stopped
// fire-and-forget and the session state cleared.
func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker != nil {
		s.worker.Stop()
		s.worker = nil
	}
	s.state = stateClosed
	s.log.Debug("session terminated")
}

// configRequest is the first message on every stream. The recognizer rides on
// every request; the service requires it even on audio messages.
func configRequest(o Options) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: o.Recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					DecodingConfig: &speechpb.RecognitionConfig_AutoDecodingConfig{
						AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
					},
					LanguageCodes: o.LanguageCodes,
					Model:         o.Model,
					Features: &speechpb.RecognitionFeatures{
						EnableAutomaticPunctuation: o.EnableAutomaticPunctuation,
					},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
					InterimResults: o.InterimResults,
				},
			},
		},
	}
}

func audioRequest(recognizer string, audio []byte) *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: audio,
		},
	}
}
