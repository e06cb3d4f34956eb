package orch

import "github.com/dkeye/Vote/internal/domain"

// Request names as they appear in the inbound "type" field.
const (
	TypeCreateRoom         = "create-room"
	TypeJoinRoom           = "join-room"
	TypeApproveParticipant = "approve-participant"
	TypeRejectParticipant  = "reject-participant"
	TypeCreateProfile      = "create-profile"
	TypeCastVote           = "cast-vote"
	TypeStartVoting        = "start-voting"
	TypeEndVoting          = "end-voting"
	TypeGetRoomStats       = "get-room-stats"
	TypeResetRoom          = "reset-room"
	TypeLeaveRoom          = "leave-room"
	TypeSendMessage        = "send-message"
	TypeWhoAmI             = "whoami"
	TypePing               = "ping"
	TypeDisconnect         = "disconnect"
)

// Request is the closed set of inbound operations. Only types in this
// package implement it.
type Request interface {
	RequestType() string
	isRequest()
}

type CreateRoom struct {
	Password         string `json:"password" validate:"max=64"`
	ParticipantLimit int    `json:"participantLimit" validate:"gte=0,lte=500"`
	RequireApproval  bool   `json:"waitingRoomEnabled"`
	// HostControlled overrides the server default when set.
	HostControlled *bool `json:"hostControlled"`
}

type JoinRoom struct {
	Code     string `json:"roomCode" validate:"required"`
	Password string `json:"password" validate:"max=64"`
}

type ApproveParticipant struct {
	Target domain.ConnID `json:"targetConnectionId" validate:"required"`
}

type RejectParticipant struct {
	Target domain.ConnID `json:"targetConnectionId" validate:"required"`
}

type CreateProfile struct {
	Name      string `json:"name" validate:"required"`
	AvatarRef string `json:"avatar" validate:"max=512"`
	ModelRef  string `json:"model" validate:"max=512"`
}

type CastVote struct {
	ProfileID domain.ProfileID `json:"profileId" validate:"required"`
}

type StartVoting struct{}
type EndVoting struct{}
type GetRoomStats struct{}
type ResetRoom struct{}
type LeaveRoom struct{}

type SendMessage struct {
	Text string `json:"text" validate:"required"`
}

type WhoAmI struct{}
type Ping struct{}

// Disconnect is issued by the transport when a connection goes away.
type Disconnect struct{}

func (CreateRoom) RequestType() string         { return TypeCreateRoom }
func (JoinRoom) RequestType() string           { return TypeJoinRoom }
func (ApproveParticipant) RequestType() string { return TypeApproveParticipant }
func (RejectParticipant) RequestType() string  { return TypeRejectParticipant }
func (CreateProfile) RequestType() string      { return TypeCreateProfile }
func (CastVote) RequestType() string           { return TypeCastVote }
func (StartVoting) RequestType() string        { return TypeStartVoting }
func (EndVoting) RequestType() string          { return TypeEndVoting }
func (GetRoomStats) RequestType() string       { return TypeGetRoomStats }
func (ResetRoom) RequestType() string          { return TypeResetRoom }
func (LeaveRoom) RequestType() string          { return TypeLeaveRoom }
func (SendMessage) RequestType() string        { return TypeSendMessage }
func (WhoAmI) RequestType() string             { return TypeWhoAmI }
func (Ping) RequestType() string               { return TypePing }
func (Disconnect) RequestType() string         { return TypeDisconnect }

func (CreateRoom) isRequest()         {}
func (JoinRoom) isRequest()           {}
func (ApproveParticipant) isRequest() {}
func (RejectParticipant) isRequest()  {}
func (CreateProfile) isRequest()      {}
func (CastVote) isRequest()           {}
func (StartVoting) isRequest()        {}
func (EndVoting) isRequest()          {}
func (GetRoomStats) isRequest()       {}
func (ResetRoom) isRequest()          {}
func (LeaveRoom) isRequest()          {}
func (SendMessage) isRequest()        {}
func (WhoAmI) isRequest()             {}
func (Ping) isRequest()               {}
func (Disconnect) isRequest()         {}

// DecodeRequest builds the request named by a wire type. decode fills a
// pointer to the concrete request struct. ok is false for unknown names;
// Disconnect is transport-internal and has no wire name.
func DecodeRequest(name string, decode func(any) error) (req Request, ok bool, err error) {
	switch name {
	case TypeCreateRoom:
		return decodeAs[CreateRoom](decode)
	case TypeJoinRoom:
		return decodeAs[JoinRoom](decode)
	case TypeApproveParticipant:
		return decodeAs[ApproveParticipant](decode)
	case TypeRejectParticipant:
		return decodeAs[RejectParticipant](decode)
	case TypeCreateProfile:
		return decodeAs[CreateProfile](decode)
	case TypeCastVote:
		return decodeAs[CastVote](decode)
	case TypeStartVoting:
		return StartVoting{}, true, nil
	case TypeEndVoting:
		return EndVoting{}, true, nil
	case TypeGetRoomStats:
		return GetRoomStats{}, true, nil
	case TypeResetRoom:
		return ResetRoom{}, true, nil
	case TypeLeaveRoom:
		return LeaveRoom{}, true, nil
	case TypeSendMessage:
		return decodeAs[SendMessage](decode)
	case TypeWhoAmI:
		return WhoAmI{}, true, nil
	case TypePing:
		return Ping{}, true, nil
	}
	return nil, false, nil
}

func decodeAs[T Request](decode func(any) error) (Request, bool, error) {
	var r T
	if err := decode(&r); err != nil {
		return nil, true, err
	}
	return r, true, nil
}
