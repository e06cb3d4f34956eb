package app

import (
	"context"
	"sync"

	"github.com/dkeye/Vote/internal/core"
	"github.com/dkeye/Vote/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Room    domain.RoomCode
	Pending bool
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Sessions maps live connections to their transport and current room.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*sessionEntry
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[domain.ConnID]*sessionEntry),
	}
}

func (s *Sessions) Bind(sid domain.ConnID, sess core.MemberSession, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("token", sess.ClientToken()).Msg("bound session")
}

func (s *Sessions) Get(sid domain.ConnID) (core.MemberSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (s *Sessions) Unbind(sid domain.ConnID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("unbind session")
}

// RoomOf returns the room sid belongs to, including rooms where it awaits approval.
func (s *Sessions) RoomOf(sid domain.ConnID) (code domain.RoomCode, pending bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, found := s.sessions[sid]
	if !found || e.Room == "" {
		return "", false, false
	}
	return e.Room, e.Pending, true
}

func (s *Sessions) SetRoom(sid domain.ConnID, code domain.RoomCode, pending bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok {
		return false
	}
	e.Room = code
	e.Pending = pending
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("room", string(code)).Bool("pending", pending).Msg("updated room")
	return true
}

// PromotePending marks sid a participant of code, but only while it is
// still waiting there. It reports false when sid moved on meanwhile.
func (s *Sessions) PromotePending(sid domain.ConnID, code domain.RoomCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok || e.Room != code || !e.Pending {
		return false
	}
	e.Pending = false
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("room", string(code)).Msg("promoted from waiting room")
	return true
}

// ClearRoom detaches sid from its room if it is still in code.
func (s *Sessions) ClearRoom(sid domain.ConnID, code domain.RoomCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sid]; ok && e.Room == code {
		e.Room = ""
		e.Pending = false
		log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("room", string(code)).Msg("removed room association")
	}
}

// Cancel stops the connection's pumps; the adapter then reports a disconnect.
func (s *Sessions) Cancel(sid domain.ConnID) bool {
	s.mu.RLock()
	e, ok := s.sessions[sid]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
