package orch

import (
	"errors"

	"github.com/dkeye/Vote/internal/core"
	"github.com/dkeye/Vote/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) roomOptions(r CreateRoom) domain.RoomOptions {
	opts := domain.RoomOptions{
		Password:         r.Password,
		ParticipantLimit: r.ParticipantLimit,
		RequireApproval:  r.RequireApproval,
		HostControlled:   o.Defaults.HostControlled,
	}
	if opts.ParticipantLimit == 0 {
		opts.ParticipantLimit = o.Defaults.ParticipantLimit
	}
	if r.HostControlled != nil {
		opts.HostControlled = *r.HostControlled
	}
	return opts
}

func (o *Orchestrator) createRoom(sid domain.ConnID, r CreateRoom) error {
	snap, err := o.Engine.CreateRoom(sid, o.roomOptions(r))
	if err != nil {
		return err
	}
	if prev, _, ok := o.Sessions.RoomOf(sid); ok {
		o.leave(sid, prev)
	}
	o.Sessions.SetRoom(sid, snap.Code, false)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(snap.Code)).Msg("room created")

	o.send(sid, EventRoomCreated, roomJoinedData{Code: snap.Code, ConnectionID: sid, IsHost: true, Room: snap})
	return nil
}

// joinRoom enters the new room first so a failed join keeps sid where it was.
func (o *Orchestrator) joinRoom(sid domain.ConnID, r JoinRoom) error {
	code, res, err := o.Engine.JoinRoom(r.Code, sid, r.Password)
	if errors.Is(err, domain.NewError(domain.CodePasswordRequired)) {
		o.send(sid, EventPasswordRequired, roomRefData{Code: code})
		return nil
	}
	if err != nil {
		return err
	}
	if prev, _, ok := o.Sessions.RoomOf(sid); ok && prev != code {
		o.leave(sid, prev)
	}

	if res.Status == core.JoinStatusPending {
		o.Sessions.SetRoom(sid, code, true)
		o.send(sid, EventPendingApproval, roomRefData{Code: code})
		if host := o.Engine.Host(code); host != "" {
			o.send(host, EventParticipantPending, pendingData{ConnectionID: sid})
		}
		o.broadcastStats(code)
		return nil
	}

	o.Sessions.SetRoom(sid, code, false)
	o.send(sid, EventRoomJoined, roomJoinedData{
		Code:         code,
		ConnectionID: sid,
		IsHost:       res.Snapshot.Stats.HostConnectionID == sid,
		Room:         res.Snapshot,
	})
	if !res.AlreadyJoined {
		o.broadcast(code, EventParticipantJoined, participantData{ConnectionID: sid, ParticipantCount: res.Snapshot.Stats.ParticipantCount}, sid)
		o.broadcastStats(code)
	}
	return nil
}

func (o *Orchestrator) approve(sid domain.ConnID, r ApproveParticipant) error {
	code, err := o.currentRoom(sid)
	if err != nil {
		return err
	}
	snap, err := o.Engine.ApproveParticipant(code, sid, r.Target)
	if err != nil {
		return err
	}
	if !o.Sessions.PromotePending(r.Target, code) {
		// target left or joined elsewhere after the room admitted it
		o.leave(r.Target, code)
		return nil
	}
	o.send(r.Target, EventRoomJoined, roomJoinedData{Code: code, ConnectionID: r.Target, Room: snap})
	o.broadcast(code, EventParticipantJoined, participantData{ConnectionID: r.Target, ParticipantCount: snap.Stats.ParticipantCount}, r.Target)
	o.broadcastStats(code)
	return nil
}

func (o *Orchestrator) reject(sid domain.ConnID, r RejectParticipant) error {
	code, err := o.currentRoom(sid)
	if err != nil {
		return err
	}
	if err := o.Engine.RejectParticipant(code, sid, r.Target); err != nil {
		return err
	}
	o.Sessions.ClearRoom(r.Target, code)
	o.send(r.Target, EventJoinRejected, roomRefData{Code: code})
	o.broadcastStats(code)
	return nil
}

func (o *Orchestrator) leaveRoom(sid domain.ConnID) error {
	code, _, ok := o.Sessions.RoomOf(sid)
	if !ok {
		return domain.NewError(domain.CodeNotInRoom)
	}
	o.leave(sid, code)
	o.send(sid, EventLeftRoom, roomRefData{Code: code})
	return nil
}

func (o *Orchestrator) disconnect(sid domain.ConnID) {
	if code, _, ok := o.Sessions.RoomOf(sid); ok {
		o.leave(sid, code)
	}
	o.Sessions.Unbind(sid)
}

// leave removes sid from code and tells the remaining participants what
// changed because of it.
func (o *Orchestrator) leave(sid domain.ConnID, code domain.RoomCode) {
	res, err := o.Engine.LeaveRoom(code, sid)
	o.Sessions.ClearRoom(sid, code)
	if err != nil || (!res.WasParticipant && !res.WasPending) {
		return
	}
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(code)).Bool("empty", res.Empty).Msg("left room")

	if res.Empty {
		for _, p := range res.Evicted {
			o.send(p, EventRoomClosed, roomRefData{Code: code})
			o.Sessions.ClearRoom(p, code)
		}
		return
	}
	if res.WasParticipant {
		o.broadcast(code, EventParticipantLeft, participantData{ConnectionID: sid, ParticipantCount: res.ParticipantCount})
	}
	if res.ProfileRemoved || res.WithdrawnVote != nil {
		if snap, err := o.Engine.Snapshot(code); err == nil {
			o.broadcast(code, EventProfilesUpdated, profilesData{Profiles: snap.Profiles, Votes: snap.Votes})
		}
	}
	if res.NewHost != "" {
		o.broadcast(code, EventHostChanged, hostChangedData{HostConnectionID: res.NewHost})
	}
	o.broadcastStats(code)
}
