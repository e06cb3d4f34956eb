package core

import (
	"time"

	"github.com/dkeye/Vote/internal/domain"
)

// Clock returns the current time; injected so tests control idle timing.
type Clock func() time.Time

type JoinStatus string

const (
	JoinStatusJoined  JoinStatus = "joined"
	JoinStatusPending JoinStatus = "pending"
)

type JoinResult struct {
	Status JoinStatus
	// AlreadyJoined is set when the connection was a participant before the call.
	AlreadyJoined bool
	// Snapshot is only filled for JoinStatusJoined.
	Snapshot domain.RoomSnapshot
}

type LeaveResult struct {
	WasParticipant bool
	WasPending     bool
	ProfileRemoved bool
	RemovedProfile domain.ProfileID
	// WithdrawnVote is the new tally of the profile the leaver had voted for.
	WithdrawnVote *domain.VoteTally
	// NewHost is set when the host left and another participant was promoted.
	NewHost domain.ConnID
	// Empty means the last participant left; the room is closed.
	Empty bool
	// Evicted are pending connections dropped because the room closed.
	Evicted          []domain.ConnID
	ParticipantCount int
}

type ProfileInput struct {
	Name      string
	AvatarRef string
	ModelRef  string
}

// RoomService is the state machine of one room.
// All methods are safe for concurrent use; each call is atomic.
// Methods that take an actor ConnID accept "" for system calls where noted.
type RoomService interface {
	Code() domain.RoomCode
	Host() domain.ConnID
	Closed() bool

	Join(sid domain.ConnID, password string) (JoinResult, error)
	Approve(host, target domain.ConnID) (domain.RoomSnapshot, error)
	Reject(host, target domain.ConnID) error
	Leave(sid domain.ConnID) LeaveResult

	AddProfile(sid domain.ConnID, in ProfileInput) (domain.Profile, error)
	CastVote(sid domain.ConnID, profileID domain.ProfileID) (domain.VoteTally, error)
	CanEndVoting() domain.EndCheck
	StartVoting(host domain.ConnID) error
	// EndVoting closes voting; sid may be "" for a system call.
	EndVoting(sid domain.ConnID) (domain.Results, error)
	// Reset clears profiles and votes; sid may be "" for a system call.
	Reset(sid domain.ConnID) (domain.RoomStats, error)
	Chat(sid domain.ConnID, text string, maxLen int) (domain.ChatMessage, error)

	Stats() domain.RoomStats
	Snapshot() domain.RoomSnapshot
	Participants() []domain.ConnID
	Touch()
	// CloseIfIdle closes an empty room idle for longer than threshold.
	// inspected is false when the room was busy and got skipped.
	CloseIfIdle(now time.Time, threshold time.Duration) (closed, inspected bool)
}

type RoomInfo struct {
	Code             domain.RoomCode `json:"code"`
	ParticipantCount int             `json:"participantCount"`
}
