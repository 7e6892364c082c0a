package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talkflow/talkflow/internal/pipeline"
	"github.com/talkflow/talkflow/internal/session"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 90 * time.Second
	pingInterval = 30 * time.Second
)

// controlMessage is a client JSON message on the websocket text channel.
// Binary messages carry raw PCM-16 audio and need no envelope.
type controlMessage struct {
	Type       string  `json:"type"`
	SourceLang *string `json:"source_lang,omitempty"`
	TargetLang *string `json:"target_lang,omitempty"`
	Voice      *string `json:"voice,omitempty"`
	VADEnabled *bool   `json:"vad_enabled,omitempty"`
}

// wsConn serializes writes to one websocket connection. Events and control
// acknowledgements are written from different goroutines.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket runs one client session over a websocket connection.
// Binary frames are PCM-16 audio; text frames are control messages. Pipeline
// events stream back as JSON until the session ends.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	ws := &wsConn{conn: conn}

	sess, err := s.manager.Create()
	if err != nil {
		s.logger.Warn("session rejected", "error", err, "remote", r.RemoteAddr)
		ws.writeJSON(map[string]string{"type": "error", "error": err.Error()})
		conn.Close()
		return
	}

	logger := s.logger.With("session_id", sess.ID, "remote", r.RemoteAddr)
	logger.Info("websocket session opened")

	ws.writeJSON(map[string]string{
		"type":       "session_started",
		"session_id": sess.ID,
	})

	// Event writer: drains the pipeline until its event channel closes.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for ev := range sess.Pipeline.Events() {
			if err := ws.writeJSON(ev); err != nil {
				logger.Warn("event write failed", "error", err)
				return
			}
		}
	}()

	// Keepalive pings; the read deadline is refreshed on pong.
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	pingStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ws.ping(); err != nil {
					return
				}
			case <-pingStop:
				return
			}
		}
	}()

	s.readLoop(ws, sess, logger)

	close(pingStop)
	s.manager.Close(sess.ID)
	<-writerDone
	conn.Close()
	logger.Info("websocket session closed")
}

func (s *Server) readLoop(ws *wsConn, sess *session.Session, logger *slog.Logger) {
	for {
		msgType, data, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		sess.Touch()

		switch msgType {
		case websocket.BinaryMessage:
			if err := sess.Pipeline.PushAudio(data); err != nil {
				logger.Warn("audio rejected", "error", err)
				ws.writeJSON(map[string]string{"type": "error", "error": err.Error()})
			}

		case websocket.TextMessage:
			if done := s.handleControl(ws, sess, data, logger); done {
				return
			}
		}
	}
}

// handleControl applies one control message. Returns true when the client
// asked to end the session.
func (s *Server) handleControl(ws *wsConn, sess *session.Session, data []byte, logger *slog.Logger) bool {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ws.writeJSON(map[string]string{"type": "error", "error": "invalid control message"})
		return false
	}

	switch msg.Type {
	case "configure":
		err := sess.Pipeline.Configure(pipeline.ConfigUpdate{
			SourceLang: msg.SourceLang,
			TargetLang: msg.TargetLang,
			Voice:      msg.Voice,
			VADEnabled: msg.VADEnabled,
		})
		if err != nil {
			ws.writeJSON(map[string]string{"type": "error", "error": err.Error()})
			return false
		}
		ws.writeJSON(map[string]string{"type": "configured", "session_id": sess.ID})

	case "reset":
		if err := sess.Pipeline.Reset(); err != nil {
			ws.writeJSON(map[string]string{"type": "error", "error": err.Error()})
		}

	case "stop":
		logger.Info("client requested stop")
		return true

	default:
		ws.writeJSON(map[string]string{"type": "error", "error": "unknown control type: " + msg.Type})
	}

	return false
}
