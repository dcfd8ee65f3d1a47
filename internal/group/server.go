// Package group implements relay-backed group sessions: every member of a
// named session receives what any other member sends. The relay only routes;
// payloads may be sealed with a secret it never sees.
package group

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SWAI-Ltd/multipass/internal/proto"
	"github.com/SWAI-Ltd/multipass/internal/transport"
)

// Server is the relay.
type Server struct {
	server *transport.Server
	log    *zap.Logger

	mu       sync.Mutex
	sessions map[string]map[*member]struct{}
}

type member struct {
	conn        *transport.Conn
	session     string
	participant uuid.UUID
}

// RunServer starts a relay on addr.
func RunServer(ctx context.Context, addr string, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.L()
	}
	s := &Server{log: log, sessions: make(map[string]map[*member]struct{})}
	server, err := transport.Listen(ctx, addr, s.handleConn)
	if err != nil {
		return nil, err
	}
	s.server = server
	log.Info("relay listening", zap.String("addr", server.Addr()))
	return s, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.server.Addr() }

// Close stops accepting new members.
func (s *Server) Close() error { return s.server.Close() }

// Members returns the participants joined to session, sorted.
func (s *Server) Members(session string) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membersLocked(session)
}

func (s *Server) handleConn(c *transport.Conn) {
	m := &member{conn: c}
	defer func() {
		s.leave(m)
		_ = c.Close()
	}()

	var f proto.Frame
	for {
		if err := c.RecvFrame(&f); err != nil {
			return
		}
		switch f.Type {
		case proto.FrameTypeJoin:
			if j := f.Join; j != nil && j.Session != "" {
				s.leave(m)
				s.join(m, j.Session, j.Participant)
			}
		case proto.FrameTypeLeave:
			s.leave(m)
		case proto.FrameTypeData:
			if d := f.Data; d != nil {
				s.forward(m, d)
			}
		}
	}
}

func (s *Server) join(m *member, session string, participant uuid.UUID) {
	s.mu.Lock()
	m.session, m.participant = session, participant
	set, ok := s.sessions[session]
	if !ok {
		set = make(map[*member]struct{})
		s.sessions[session] = set
	}
	var stale []*member
	for other := range set {
		if other != m && other.participant == participant {
			delete(set, other)
			other.session = ""
			stale = append(stale, other)
		}
	}
	set[m] = struct{}{}
	s.mu.Unlock()

	// A rejoin replaces the participant's earlier connection.
	for _, old := range stale {
		_ = old.conn.Close()
	}
	_ = m.conn.SendFrame(&proto.Frame{Type: proto.FrameTypeAck, Ack: &proto.AckFrame{OK: true}})
	s.log.Info("member joined", zap.String("session", session), zap.Stringer("participant", participant))
	s.broadcastMembers(session)
}

func (s *Server) leave(m *member) {
	s.mu.Lock()
	session := m.session
	if session == "" {
		s.mu.Unlock()
		return
	}
	set := s.sessions[session]
	delete(set, m)
	if len(set) == 0 {
		delete(s.sessions, session)
	}
	m.session = ""
	participant := m.participant
	s.mu.Unlock()

	s.log.Info("member left", zap.String("session", session), zap.Stringer("participant", participant))
	s.broadcastMembers(session)
}

func (s *Server) forward(from *member, d *proto.DataFrame) {
	s.mu.Lock()
	session := from.session
	if session == "" {
		s.mu.Unlock()
		_ = from.conn.SendFrame(&proto.Frame{Type: proto.FrameTypeError, Error: &proto.ErrorFrame{
			Code: "NOT_JOINED", Message: "join a session before sending",
		}})
		return
	}
	targets := s.othersLocked(session, from)
	s.mu.Unlock()

	out := &proto.Frame{Type: proto.FrameTypeData, Data: &proto.DataFrame{Session: session, Payload: d.Payload}}
	for _, t := range targets {
		if err := t.conn.SendFrame(out); err != nil {
			s.log.Warn("relay: failed to forward to member", zap.Stringer("participant", t.participant), zap.Error(err))
		}
	}
	s.log.Debug("relay: forwarded", zap.String("session", session), zap.Int("members", len(targets)))
}

func (s *Server) broadcastMembers(session string) {
	s.mu.Lock()
	ids := s.membersLocked(session)
	targets := s.othersLocked(session, nil)
	s.mu.Unlock()

	f := &proto.Frame{Type: proto.FrameTypeMembers, Members: &proto.MembersFrame{Session: session, Participants: ids}}
	for _, t := range targets {
		if err := t.conn.SendFrame(f); err != nil {
			s.log.Debug("relay: members update failed", zap.Stringer("participant", t.participant), zap.Error(err))
		}
	}
}

// othersLocked copies the members so callers can write to them unlocked.
func (s *Server) othersLocked(session string, except *member) []member {
	var out []member
	for m := range s.sessions[session] {
		if m != except {
			out = append(out, *m)
		}
	}
	return out
}

func (s *Server) membersLocked(session string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.sessions[session]))
	for m := range s.sessions[session] {
		ids = append(ids, m.participant)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
