package core

import "github.com/dkeye/Vote/internal/domain"

// MemberSession binds a connection id to its transport endpoint.
// This is what the dispatcher fans out to.
type MemberSession interface {
	ID() domain.ConnID
	// ClientToken is the browser-scoped token the connection was opened with.
	ClientToken() string
	Signal() SignalConnection
}
