package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/becomeliminal/nim-memory/api"
)

func (s *Server) newUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin admits clients without an Origin header, browsers on the
// server's own host and the configured AllowedOrigins. Others get a 403.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if slices.Contains(s.cfg.AllowedOrigins, origin) {
		return true
	}
	s.log.Warn("websocket origin rejected", "origin", origin, "host", r.Host)
	return false
}

// Frame is a websocket request. The operation's fields, including the
// memory "id" of a delete, sit next to Ref and Op in the same JSON object.
type Frame struct {
	Ref string `json:"ref,omitempty"`
	Op  string `json:"op"`
}

// Reply answers one Frame.
type Reply struct {
	Ref    string `json:"ref"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Status int    `json:"status,omitempty"`
}

// handleWebSocket answers frames one at a time, in arrival order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxBodyBytes)
	log := s.log.With("remote", r.RemoteAddr)
	log.Info("websocket connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read failed", "error", err)
			}
			log.Info("websocket disconnected")
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply := s.handleFrame(r, data)
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) handleFrame(r *http.Request, data []byte) Reply {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Reply{Ref: uuid.NewString(), Error: "invalid frame: " + err.Error(), Status: http.StatusUnprocessableEntity}
	}
	if f.Ref == "" {
		f.Ref = uuid.NewString()
	}

	store, err := s.cfg.Stores.Get()
	if err != nil {
		return Reply{Ref: f.Ref, Error: err.Error(), Status: StatusFor(err)}
	}

	result, err := api.Dispatch(r.Context(), store, f.Op, data)
	if err != nil {
		status := StatusFor(err)
		if status >= 500 {
			s.log.Error("websocket op failed", "op", f.Op, "ref", f.Ref, "error", err)
		}
		return Reply{Ref: f.Ref, Error: err.Error(), Status: status}
	}
	return Reply{Ref: f.Ref, OK: true, Result: result}
}
