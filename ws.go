package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsMsgUpdate  = "update"
	wsMsgRemove  = "remove"
	wsMsgNearest = "nearest"
	wsMsgRoute   = "route"
)

// wsMessage is one request from an agent controller. Fields are used per Type.
type wsMessage struct {
	Type      string  `json:"type"`
	Seq       int64   `json:"seq,omitempty"` // echoed back
	Agent     AgentID `json:"agent,omitempty"`
	Team      TeamID  `json:"team"`
	Position  *Point  `json:"position,omitempty"`
	Old       *Point  `json:"old,omitempty"`
	Goal      *Point  `json:"goal,omitempty"`
	TimeoutMs int     `json:"timeoutMs,omitempty"`
}

type wsReply struct {
	Type    string                `json:"type"`
	Seq     int64                 `json:"seq,omitempty"`
	Session string                `json:"session"`
	OK      bool                  `json:"ok"`
	Error   string                `json:"error,omitempty"`
	Route   *RouteResponse        `json:"route,omitempty"`
	Nearest *NearestEnemyResponse `json:"nearest,omitempty"`
}

// wsHandler serves one agent controller per connection. Every text message
// gets exactly one reply. Agents reported through a session are removed when
// the session ends.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	owned := make(map[AgentID]struct{})
	s.metrics.sessionOpened()
	log.Printf("🔌 [%s] Agent session opened from %s\n", session, r.RemoteAddr)

	defer func() {
		s.mu.Lock()
		for agent := range owned {
			if st, ok := s.engine.Occupancy.Agent(agent); ok {
				s.engine.RemoveAgent(agent, st.Position)
			}
		}
		s.mu.Unlock()
		s.metrics.sessionClosed()
		log.Printf("🔌 [%s] Agent session closed, released %d agents\n", session, len(owned))
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		reply := wsReply{Session: session}
		if err := json.Unmarshal(raw, &msg); err != nil {
			reply.Type = "error"
			reply.Error = "invalid message: " + err.Error()
		} else {
			reply = s.handleWS(session, owned, msg)
		}

		if err := writeWS(conn, reply); err != nil {
			return
		}
	}
}

func (s *Server) handleWS(session string, owned map[AgentID]struct{}, msg wsMessage) wsReply {
	reply := wsReply{Type: msg.Type, Seq: msg.Seq, Session: session}
	fail := func(reason string) wsReply {
		reply.Error = reason
		return reply
	}

	switch msg.Type {
	case wsMsgUpdate:
		if msg.Agent == "" || msg.Position == nil {
			return fail("update needs agent and position")
		}
		if !msg.Position.IsFinite() {
			return fail("position must be finite")
		}
		s.mu.Lock()
		if msg.Old != nil {
			s.engine.UpdateAgent(msg.Agent, *msg.Old, *msg.Position, msg.Team)
		} else {
			s.engine.MoveAgent(msg.Agent, *msg.Position, msg.Team)
		}
		s.mu.Unlock()
		owned[msg.Agent] = struct{}{}

	case wsMsgRemove:
		if msg.Agent == "" {
			return fail("remove needs agent")
		}
		s.mu.Lock()
		pos := Point{}
		if msg.Position != nil {
			pos = *msg.Position
		} else if st, ok := s.engine.Occupancy.Agent(msg.Agent); ok {
			pos = st.Position
		}
		s.engine.RemoveAgent(msg.Agent, pos)
		s.mu.Unlock()
		delete(owned, msg.Agent)

	case wsMsgNearest:
		if msg.Position == nil {
			return fail("nearest needs position")
		}
		nearest := s.nearestEnemy(*msg.Position, msg.Team)
		reply.Nearest = &nearest

	case wsMsgRoute:
		if msg.Position == nil || msg.Goal == nil {
			return fail("route needs position and goal")
		}
		s.mu.RLock()
		route := s.engine.FindPath(*msg.Position, *msg.Goal, msg.Team, time.Duration(msg.TimeoutMs)*time.Millisecond)
		s.mu.RUnlock()
		resp := routeResponse(route)
		reply.Route = &resp

	default:
		return fail("unknown message type " + msg.Type)
	}

	reply.OK = true
	return reply
}

func writeWS(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
