package orch

import (
	"encoding/json"

	"github.com/dkeye/Vote/internal/core"
	"github.com/dkeye/Vote/internal/domain"
)

// Outbound event names.
const (
	EventRoomCreated        = "room-created"
	EventRoomJoined         = "room-joined"
	EventParticipantJoined  = "participant-joined"
	EventParticipantLeft    = "participant-left"
	EventParticipantPending = "participant-pending"
	EventPendingApproval    = "pending-approval"
	EventPasswordRequired   = "password-required"
	EventJoinRejected       = "join-rejected"
	EventRoomClosed         = "room-closed"
	EventProfileAdded       = "profile-added"
	EventProfilesUpdated    = "profiles-updated"
	EventVoteUpdate         = "vote-update"
	EventVoteConfirmed      = "vote-confirmed"
	EventVotingStarted      = "voting-started"
	EventVotingEnded        = "voting-ended"
	EventRoomReset          = "room-reset"
	EventRoomStats          = "room-stats"
	EventLeftRoom           = "left-room"
	EventHostChanged        = "host-changed"
	EventChatMessage        = "chat-message"
	EventWhoAmI             = "whoami"
	EventPong               = "pong"
	EventError              = "error"
)

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Encode renders one outbound event.
func Encode(eventType string, data any) (core.Frame, error) {
	return json.Marshal(envelope{Type: eventType, Data: data})
}

type roomJoinedData struct {
	Code         domain.RoomCode     `json:"code"`
	ConnectionID domain.ConnID       `json:"connectionId"`
	IsHost       bool                `json:"isHost"`
	Room         domain.RoomSnapshot `json:"room"`
}

type participantData struct {
	ConnectionID     domain.ConnID `json:"connectionId"`
	ParticipantCount int           `json:"participantCount"`
}

type pendingData struct {
	ConnectionID domain.ConnID `json:"connectionId"`
}

type roomRefData struct {
	Code domain.RoomCode `json:"code"`
}

type profilesData struct {
	Profiles []domain.Profile         `json:"profiles"`
	Votes    map[domain.ProfileID]int `json:"votes"`
}

type voteConfirmedData struct {
	ProfileID domain.ProfileID `json:"profileId"`
}

type hostChangedData struct {
	HostConnectionID domain.ConnID `json:"hostConnectionId"`
}

type whoAmIData struct {
	ConnectionID domain.ConnID   `json:"connectionId"`
	Room         domain.RoomCode `json:"room,omitempty"`
	IsHost       bool            `json:"isHost"`
	Pending      bool            `json:"pending"`
}

type errorData struct {
	Code     domain.Code       `json:"code"`
	Category domain.Category   `json:"category"`
	Message  string            `json:"message"`
	Detail   string            `json:"detail,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Request  string            `json:"request,omitempty"`
}
