package googlestt

import (
	"strings"

	"cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/grpc/status"
)

// translate maps one worker notice to zero or more events.
//
// A response with results becomes exactly one Transcript: the best
// alternative of every result concatenated, final if any result is final.
// A response with no results but a speech event type becomes one
// SpeechActivity. Bare frames (headers, metadata) produce nothing.
func translate(n notice) []Event {
	switch {
	case n.timeout:
		return []Event{StreamTimeout{}}
	case n.err != nil:
		st := status.Convert(n.err)
		return []Event{Error{Status: st.Code(), Message: st.Message()}}
	case n.resp == nil:
		return nil
	}

	resp := n.resp
	if len(resp.Results) > 0 {
		var content strings.Builder
		var final bool
		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			content.WriteString(result.Alternatives[0].Transcript)
			if result.IsFinal {
				final = true
			}
		}
		return []Event{Transcript{Content: content.String(), IsFinal: final}}
	}

	if resp.SpeechEventType != speechpb.StreamingRecognizeResponse_SPEECH_EVENT_TYPE_UNSPECIFIED {
		return []Event{SpeechActivity{Kind: resp.SpeechEventType}}
	}

	return nil
}
