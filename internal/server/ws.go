package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/gestureview/internal/bridge"
	"github.com/ayusman/gestureview/internal/capture"
	"github.com/ayusman/gestureview/internal/logger"
	"github.com/ayusman/gestureview/internal/pipeline"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 8 << 20

	// closeWait bounds how long the peer has to answer our close frame.
	closeWait = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// SessionHandler runs one classification session per WebSocket connection.
// The page sends JPEG or PNG frames (binary, or data URLs as text) and
// receives result, gesture, error and end messages.
type SessionHandler struct {
	engine Engine
	log    *logger.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(engine Engine, log *logger.Logger) *SessionHandler {
	return &SessionHandler{engine: engine, log: log}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = pipeline.SourceClient
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	out := &wsWriter{conn: conn}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := h.engine.StartSession(ctx, source)
	if err != nil {
		out.send(bridge.ErrorMessage{Type: bridge.TypeError, Error: err.Error()})
		out.close(websocket.CloseUnsupportedData, err.Error())
		return
	}
	defer h.engine.EndSession(sess)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.deliver(sess, out)
	}()

	h.receive(sess, conn, out)

	// Reader is gone: end the session so deliver returns.
	h.engine.EndSession(sess)
	cancel()
	<-done
}

// receive reads frames until the connection closes.
func (h *SessionHandler) receive(sess *pipeline.Session, conn *websocket.Conn, out *wsWriter) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if sess.Source == pipeline.SourceCamera {
			continue
		}

		var frame capture.Frame
		switch kind {
		case websocket.BinaryMessage:
			frame, err = capture.Decode(data)
		case websocket.TextMessage:
			frame, err = capture.DecodeDataURL(string(data))
		default:
			continue
		}
		if err != nil {
			if out.send(bridge.ErrorMessage{Type: bridge.TypeError, Error: err.Error()}) != nil {
				return
			}
			continue
		}

		if _, err := sess.Submit(frame); err != nil {
			return
		}
	}
}

// deliver forwards results to the page until the session ends or a write
// fails. Either way the read side is released so ServeHTTP can return.
func (h *SessionHandler) deliver(sess *pipeline.Session, out *wsWriter) {
	for {
		select {
		case <-sess.Done():
			out.send(bridge.EndMessage{Type: bridge.TypeEnd, Session: sess.ID, Reason: sess.Reason()})
			out.close(websocket.CloseNormalClosure, sess.Reason())
			// A peer that never answers the close frame must not hold the
			// handler past the session's time limit.
			out.conn.SetReadDeadline(time.Now().Add(closeWait))
			return

		case res := <-sess.Results():
			if err := h.forward(sess, out, res); err != nil {
				h.log.Warning("Session %s: write failed, dropping connection: %v", sess.ID, err)
				out.conn.Close()
				return
			}
		}
	}
}

// forward sends the messages for one result.
func (h *SessionHandler) forward(sess *pipeline.Session, out *wsWriter, res pipeline.Result) error {
	if res.Err != nil {
		h.log.Error("Session %s: frame %d failed: %v", sess.ID, res.Seq, res.Err)
		return out.send(bridge.ErrorMessage{Type: bridge.TypeError, Seq: res.Seq, Error: res.Err.Error()})
	}

	h.engine.Record(sess, res)

	err := out.send(bridge.ResultMessage{
		Type:       bridge.TypeResult,
		Seq:        res.Seq,
		FPS:        bridge.RoundFPS(res.Classification.FPS),
		Prediction: res.Decision.Prediction,
		KeyCode:    string(res.Decision.Code),
		Label:      res.Classification.Top,
		Confidence: res.Classification.Confidence,
	})
	if err != nil {
		return err
	}

	if msg, ok := sess.Forward(res.Decision.Code); ok {
		return out.send(msg)
	}
	return nil
}

// wsWriter serializes writes; gorilla connections allow one concurrent writer.
type wsWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsWriter) send(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}

func (w *wsWriter) close(code int, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	return w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
