package http

import (
	"encoding/json"
	"net/http"

	"github.com/aretw0/topical/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// wsReply is written back for every inbound frame.
type wsReply struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ServeWebSocket handles GET /conversations/{id}/ws. Every inbound text frame
// is one turn: either an EventRequest object or plain text. Frames are
// processed in order, so a connection never runs two turns at once.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "conversation_id", id, "err", err)
		return
	}
	defer c.Close()

	for {
		mt, message, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", "conversation_id", id, "err", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		reply := s.handleFrame(r, id, message)
		js, err := json.Marshal(reply)
		if err != nil {
			s.logger.Error("websocket reply marshal failed", "err", err)
			continue
		}
		if err := c.WriteMessage(websocket.TextMessage, js); err != nil {
			s.logger.Warn("websocket write failed", "conversation_id", id, "err", err)
			return
		}
	}
}

func (s *Server) handleFrame(r *http.Request, id string, message []byte) wsReply {
	event, err := runner.DecodeEvent(message)
	if err != nil {
		return wsReply{Error: err.Error()}
	}
	res, err := s.send(r, id, event)
	if err != nil {
		s.logger.Warn("websocket turn failed", "conversation_id", id, "err", err)
		return wsReply{Error: err.Error()}
	}
	return wsReply{Result: res}
}
