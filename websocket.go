package googlestt

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketRequest is one inbound frame: a chunk of raw audio.
type WebSocketRequest struct {
	Buf []byte `json:"buf"`
}

// WebSocketEvent is one outbound frame, a JSON rendering of an Event.
type WebSocketEvent struct {
	Type    string `json:"type"` // transcript | activity | timeout | error
	Content string `json:"content,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  8192,
		WriteBufferSize: 8192,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// The connection is the caller: when it goes away the session must too.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := Start(ctx, s.provider, Options{
		LanguageCodes:              s.speech.LanguageCodes,
		Model:                      s.speech.Model,
		Recognizer:                 s.speech.Recognizer,
		EnableAutomaticPunctuation: s.speech.EnableAutomaticPunctuation,
		InterimResults:             s.speech.InterimResults,
	}, s.log)
	if err != nil {
		s.log.Error("failed to start session", "err", err)
		return
	}
	s.metrics.SessionsStarted.Inc()
	s.metrics.ActiveSessions.Inc()
	defer func() {
		s.metrics.SessionsEnded.Inc()
		s.metrics.ActiveSessions.Dec()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeEvents(conn, session)
	}()

	s.readAudio(conn, session)

	// Reader is done: half-close the stream, then tear the session down so
	// the event channel closes and the writer exits.
	if err := session.EndStream(); err != nil {
		s.log.Error("end stream failed", "err", err)
	}
	cancel()
	wg.Wait()
}

func (s *Server) readAudio(conn *websocket.Conn, session *Session) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Error("websocket read error", "err", err)
			}
			return
		}

		var req WebSocketRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.log.Warn("bad websocket frame", "err", err)
			continue
		}

		if err := session.ProcessAudio(req.Buf); err != nil {
			s.log.Error("process audio failed", "err", err)
			return
		}
		s.metrics.AudioChunks.Inc()
		s.metrics.AudioBytes.Add(float64(len(req.Buf)))
	}
}

func (s *Server) writeEvents(conn *websocket.Conn, session *Session) {
	for ev := range session.Events() {
		frame := renderEvent(ev)
		s.metrics.EventsEmitted.WithLabelValues(frame.Type).Inc()
		if frame.Type == "error" {
			s.metrics.StreamErrors.Inc()
		}
		if err := conn.WriteJSON(frame); err != nil {
			s.log.Error("websocket write error", "err", err)
			return
		}
	}
}

func renderEvent(ev Event) WebSocketEvent {
	switch ev := ev.(type) {
	case Transcript:
		return WebSocketEvent{Type: "transcript", Content: ev.Content, IsFinal: ev.IsFinal}
	case SpeechActivity:
		return WebSocketEvent{Type: "activity", Kind: ev.Kind.String()}
	case StreamTimeout:
		return WebSocketEvent{Type: "timeout"}
	case Error:
		return WebSocketEvent{Type: "error", Status: ev.Status.String(), Message: ev.Message}
	default:
		return WebSocketEvent{Type: "unknown"}
	}
}
