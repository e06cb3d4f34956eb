package domain

import (
	"strings"
	"time"
)

const (
	RoomCodeLength = 6
	// RoomCodeChars excludes the look-alikes 0/O and 1/I.
	RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	DefaultParticipantLimit = 50
	MinProfilesForVoting    = 2
)

type (
	RoomCode string
	// ConnID identifies one live signal connection.
	ConnID string
)

// NormalizeRoomCode trims and upper-cases user input.
func NormalizeRoomCode(raw string) RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// Valid reports whether c has the right length and only uses the code alphabet.
func (c RoomCode) Valid() bool {
	if len(c) != RoomCodeLength {
		return false
	}
	for i := 0; i < len(c); i++ {
		if strings.IndexByte(RoomCodeChars, c[i]) < 0 {
			return false
		}
	}
	return true
}

type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseVotingOpen Phase = "voting"
	PhaseEnded      Phase = "ended"
)

func (p Phase) CanAcceptVotes() bool    { return p == PhaseVotingOpen }
func (p Phase) CanAcceptProfiles() bool { return p != PhaseEnded }

// RoomOptions are the optional capabilities chosen at creation time.
type RoomOptions struct {
	Password         string `json:"-"`
	ParticipantLimit int    `json:"participantLimit"`
	// RequireApproval parks joiners in a waiting room until the host decides.
	RequireApproval bool `json:"requireApproval"`
	// HostControlled starts the room in PhaseWaiting and restricts
	// start, end and reset to the host.
	HostControlled bool `json:"hostControlled"`
}

func (o RoomOptions) WithDefaults() RoomOptions {
	if o.ParticipantLimit <= 0 {
		o.ParticipantLimit = DefaultParticipantLimit
	}
	return o
}

// InitialPhase is the phase a fresh or reset room starts in.
func (o RoomOptions) InitialPhase() Phase {
	if o.HostControlled {
		return PhaseWaiting
	}
	return PhaseVotingOpen
}

// RoomStats is the read-only summary broadcast to room members.
type RoomStats struct {
	Code                RoomCode  `json:"code"`
	Phase               Phase     `json:"phase"`
	ProfileCount        int       `json:"profileCount"`
	ParticipantCount    int       `json:"participantCount"`
	PendingCount        int       `json:"pendingCount"`
	VotedCount          int       `json:"votedCount"`
	IsVotingEnded       bool      `json:"isVotingEnded"`
	CanEndVoting        bool      `json:"canEndVoting"`
	MinProfilesRequired int       `json:"minProfilesRequired"`
	ParticipantLimit    int       `json:"participantLimit"`
	HasPassword         bool      `json:"hasPassword"`
	RequireApproval     bool      `json:"requireApproval"`
	HostConnectionID    ConnID    `json:"hostConnectionId,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	LastActivityAt      time.Time `json:"lastActivityAt"`
}
