package core

import "github.com/dkeye/Vote/internal/domain"

// memberSession implements MemberSession by pairing identity + transport.
type memberSession struct {
	id     domain.ConnID
	token  string
	signal SignalConnection
}

func NewMemberSession(id domain.ConnID, token string, signal SignalConnection) MemberSession {
	return &memberSession{id: id, token: token, signal: signal}
}

func (m *memberSession) ID() domain.ConnID        { return m.id }
func (m *memberSession) ClientToken() string      { return m.token }
func (m *memberSession) Signal() SignalConnection { return m.signal }
