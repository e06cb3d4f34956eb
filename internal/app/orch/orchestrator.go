package orch

import (
	"errors"

	"github.com/dkeye/Vote/internal/app"
	"github.com/dkeye/Vote/internal/core"
	"github.com/dkeye/Vote/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the dispatcher between connections and rooms. It turns
// requests into engine calls and engine results into events for the
// requester and the room.
type Orchestrator struct {
	Sessions *app.Sessions
	Engine   *app.Engine
	Policy   app.Policy

	// Defaults fill options a create-room request leaves unset.
	Defaults   domain.RoomOptions
	ChatMaxLen int
}

// Dispatch handles one request from sid. Failures are reported to sid only.
func (o *Orchestrator) Dispatch(sid domain.ConnID, req Request) {
	log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("type", req.RequestType()).Msg("dispatch")

	var err error
	switch r := req.(type) {
	case CreateRoom:
		err = o.createRoom(sid, r)
	case JoinRoom:
		err = o.joinRoom(sid, r)
	case ApproveParticipant:
		err = o.approve(sid, r)
	case RejectParticipant:
		err = o.reject(sid, r)
	case LeaveRoom:
		err = o.leaveRoom(sid)
	case Disconnect:
		o.disconnect(sid)
	case CreateProfile:
		err = o.createProfile(sid, r)
	case CastVote:
		err = o.castVote(sid, r)
	case StartVoting:
		err = o.startVoting(sid)
	case EndVoting:
		err = o.endVoting(sid)
	case GetRoomStats:
		err = o.roomStats(sid)
	case ResetRoom:
		err = o.resetRoom(sid)
	case SendMessage:
		err = o.sendMessage(sid, r)
	case WhoAmI:
		o.whoAmI(sid)
	case Ping:
		o.send(sid, EventPong, nil)
	default:
		err = domain.Errorf(domain.CodeInvalidMessage, "unsupported request %q", req.RequestType())
	}
	if err != nil {
		o.SendError(sid, req.RequestType(), err)
	}
}

// SendError unicasts a coded error to sid.
func (o *Orchestrator) SendError(sid domain.ConnID, request string, err error) {
	data := errorData{Code: domain.CodeOf(err), Request: request}
	data.Category = data.Code.Category()
	data.Message = data.Code.UserMessage()
	var de *domain.Error
	if errors.As(err, &de) {
		data.Detail = de.Message
		data.Metadata = de.Metadata
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("request", request).Str("code", string(de.Code)).Msg("request rejected")
	} else {
		log.Error().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Str("request", request).Msg("request failed")
	}
	o.send(sid, EventError, data)
}

// currentRoom returns the room sid participates in. Pending connections
// are not in a room yet.
func (o *Orchestrator) currentRoom(sid domain.ConnID) (domain.RoomCode, error) {
	code, pending, ok := o.Sessions.RoomOf(sid)
	if !ok || pending {
		return "", domain.NewError(domain.CodeNotInRoom)
	}
	return code, nil
}

func (o *Orchestrator) send(sid domain.ConnID, eventType string, data any) {
	frame, err := Encode(eventType, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("event", eventType).Msg("encode event")
		return
	}
	code, _, _ := o.Sessions.RoomOf(sid)
	o.sendFrame(code, sid, frame)
}

// broadcast sends an event to every participant of code except skip.
func (o *Orchestrator) broadcast(code domain.RoomCode, eventType string, data any, skip ...domain.ConnID) {
	frame, err := Encode(eventType, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("event", eventType).Msg("encode event")
		return
	}
next:
	for _, sid := range o.Engine.Participants(code) {
		for _, s := range skip {
			if s == sid {
				continue next
			}
		}
		o.sendFrame(code, sid, frame)
	}
}

func (o *Orchestrator) broadcastStats(code domain.RoomCode) {
	stats, err := o.Engine.GetRoomStats(code)
	if err != nil {
		return
	}
	o.broadcast(code, EventRoomStats, stats)
}

func (o *Orchestrator) sendFrame(code domain.RoomCode, sid domain.ConnID, frame core.Frame) {
	sess, ok := o.Sessions.Get(sid)
	if !ok {
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(code)).Msg("send failed")
		o.onBackPressure(code, sid, sess)
	}
}

func (o *Orchestrator) onBackPressure(code domain.RoomCode, sid domain.ConnID, sess core.MemberSession) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(code, sess) {
	case app.KickMember:
		// The transport reports a Disconnect once its pumps stop.
		o.Sessions.Cancel(sid)
	case app.DropFrame, app.NoAction:
	}
}
