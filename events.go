package googlestt

import (
	"cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/grpc/codes"
)

// Event is a caller-visible outcome derived from one inbound stream message.
// The concrete types are Transcript, SpeechActivity, StreamTimeout and Error.
type Event interface {
	event()
}

// Transcript carries recognized text. When a response holds several results,
// their best alternatives are concatenated into one Transcript and IsFinal is
// true if any constituent result was final.
type Transcript struct {
	Content string
	IsFinal bool
}

// SpeechActivity reports a voice activity marker from the service, such as
// speech beginning or ending.
type SpeechActivity struct {
	Kind speechpb.StreamingRecognizeResponse_SpeechEventType
}

// StreamTimeout means the receive deadline elapsed with no data, which ends
// the RPC. The stream that produced it is gone; the next ProcessAudio opens a
// fresh one.
type StreamTimeout struct{}

// Error is an unrecoverable transport failure. The stream that produced it is
// gone; the next ProcessAudio opens a fresh one.
type Error struct {
	Status  codes.Code
	Message string
}

func (Transcript) event()     {}
func (SpeechActivity) event() {}
func (StreamTimeout) event()  {}
func (Error) event()          {}
