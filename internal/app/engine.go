package app

import (
	"github.com/dkeye/Vote/internal/core"
	"github.com/dkeye/Vote/internal/domain"
)

// Engine runs room-scoped operations by room code. It resolves the room in
// the registry, delegates to the room's state machine and removes rooms that
// became empty.
type Engine struct {
	Rooms *RoomRegistry
}

func NewEngine(rooms *RoomRegistry) *Engine {
	return &Engine{Rooms: rooms}
}

func (e *Engine) room(code domain.RoomCode) (core.RoomService, error) {
	room, ok := e.Rooms.GetRoom(string(code))
	if !ok {
		return nil, domain.NewError(domain.CodeRoomNotFound)
	}
	return room, nil
}

func (e *Engine) CreateRoom(creator domain.ConnID, opts domain.RoomOptions) (domain.RoomSnapshot, error) {
	room, err := e.Rooms.CreateRoom(creator, opts)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.Snapshot(), nil
}

// JoinRoom validates the raw code before the lookup so a malformed code
// is reported as such rather than as a missing room.
func (e *Engine) JoinRoom(rawCode string, sid domain.ConnID, password string) (domain.RoomCode, core.JoinResult, error) {
	code := domain.NormalizeRoomCode(rawCode)
	if !code.Valid() {
		return "", core.JoinResult{}, domain.NewError(domain.CodeInvalidRoomCode)
	}
	room, err := e.room(code)
	if err != nil {
		return code, core.JoinResult{}, err
	}
	res, err := room.Join(sid, password)
	return code, res, err
}

func (e *Engine) ApproveParticipant(code domain.RoomCode, host, target domain.ConnID) (domain.RoomSnapshot, error) {
	room, err := e.room(code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.Approve(host, target)
}

func (e *Engine) RejectParticipant(code domain.RoomCode, host, target domain.ConnID) error {
	room, err := e.room(code)
	if err != nil {
		return err
	}
	return room.Reject(host, target)
}

// LeaveRoom removes sid from the room. The room is deleted from the
// registry once its last participant is gone.
func (e *Engine) LeaveRoom(code domain.RoomCode, sid domain.ConnID) (core.LeaveResult, error) {
	room, err := e.room(code)
	if err != nil {
		return core.LeaveResult{}, err
	}
	res := room.Leave(sid)
	if res.Empty {
		e.Rooms.deleteIfSame(code, room)
	}
	return res, nil
}

func (e *Engine) AddProfile(code domain.RoomCode, sid domain.ConnID, in core.ProfileInput) (domain.Profile, error) {
	room, err := e.room(code)
	if err != nil {
		return domain.Profile{}, err
	}
	return room.AddProfile(sid, in)
}

func (e *Engine) CastVote(code domain.RoomCode, sid domain.ConnID, profileID domain.ProfileID) (domain.VoteTally, error) {
	room, err := e.room(code)
	if err != nil {
		return domain.VoteTally{}, err
	}
	return room.CastVote(sid, profileID)
}

func (e *Engine) CanEndVoting(code domain.RoomCode) (domain.EndCheck, error) {
	room, err := e.room(code)
	if err != nil {
		return domain.EndCheck{}, err
	}
	return room.CanEndVoting(), nil
}

func (e *Engine) StartVoting(code domain.RoomCode, host domain.ConnID) error {
	room, err := e.room(code)
	if err != nil {
		return err
	}
	return room.StartVoting(host)
}

// EndVoting closes voting; sid may be empty for a system call.
func (e *Engine) EndVoting(code domain.RoomCode, sid domain.ConnID) (domain.Results, error) {
	room, err := e.room(code)
	if err != nil {
		return domain.Results{}, err
	}
	return room.EndVoting(sid)
}

func (e *Engine) ResetRoom(code domain.RoomCode, sid domain.ConnID) (domain.RoomStats, error) {
	room, err := e.room(code)
	if err != nil {
		return domain.RoomStats{}, err
	}
	return room.Reset(sid)
}

func (e *Engine) GetRoomStats(code domain.RoomCode) (domain.RoomStats, error) {
	room, err := e.room(code)
	if err != nil {
		return domain.RoomStats{}, err
	}
	return room.Stats(), nil
}

func (e *Engine) Snapshot(code domain.RoomCode) (domain.RoomSnapshot, error) {
	room, err := e.room(code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	return room.Snapshot(), nil
}

func (e *Engine) SendChat(code domain.RoomCode, sid domain.ConnID, text string, maxLen int) (domain.ChatMessage, error) {
	room, err := e.room(code)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return room.Chat(sid, text, maxLen)
}

// Participants returns the connections of a live room, or nil.
func (e *Engine) Participants(code domain.RoomCode) []domain.ConnID {
	room, err := e.room(code)
	if err != nil {
		return nil
	}
	return room.Participants()
}

func (e *Engine) Host(code domain.RoomCode) domain.ConnID {
	room, err := e.room(code)
	if err != nil {
		return ""
	}
	return room.Host()
}
