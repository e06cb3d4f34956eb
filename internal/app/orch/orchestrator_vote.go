package orch

import (
	"github.com/dkeye/Vote/internal/core"
	"github.com/dkeye/Vote/internal/domain"
)

func (o *Orchestrator) createProfile(sid domain.ConnID, r CreateProfile) error {
	code, err := o.currentRoom(sid)
	if err != nil {
		return err
	}
	p, err := o.Engine.AddProfile(code, sid, core.ProfileInput{Name: r.Name, AvatarRef: r.AvatarRef, ModelRef: r.ModelRef})
	if err != nil {
		return err
	}
	o.broadcast(code, EventProfileAdded, p)
	o.broadcastStats(code)
	return nil
}

func (o *Orchestrator) castVote(sid domain.ConnID, r CastVote) error {
	code, err := o.currentRoom(sid)
	if err != nil {
		return err
	}
	tally, err := o.Engine.CastVote(code, sid, r.ProfileID)
	if err != nil {
		return err
	}
	o.send(sid, EventVoteConfirmed, voteConfirmedData{ProfileID: tally.ProfileID})
	o.broadcast(code, EventVoteUpdate, tally)
	o.broadcastStats(code)
	return nil
}

func (o *Orchestrator) startVoting(sid domain.ConnID) error {
	code, err := o.currentRoom(sid)
	if err != nil {
		return err
	}
	if err := o.Engine.StartVoting(code, sid); err != nil {
		return err
	}
	o.broadcast(code, EventVotingStarted, roomRefData{Code: code})
	o.broadcastStats(code)
	return nil
}

func (o *Orchestrator) endVoting(sid domain.ConnID) error {
	code, err := o.currentRoom(sid)
	if err != nil {
		return err
	}
	results, err := o.Engine.EndVoting(code, sid)
	if err != nil {
		return err
	}
	o.broadcast(code, EventVotingEnded, results)
	o.broadcastStats(code)
	return nil
}

func (o *Orchestrator) roomStats(sid domain.ConnID) error {
	code, err := o.currentRoom(sid)
	if err != nil {
		return err
	}
	stats, err := o.Engine.GetRoomStats(code)
	if err != nil {
		return err
	}
	o.send(sid, EventRoomStats, stats)
	return nil
}

func (o *Orchestrator) resetRoom(sid domain.ConnID) error {
	code, err := o.currentRoom(sid)
	if err != nil {
		return err
	}
	stats, err := o.Engine.ResetRoom(code, sid)
	if err != nil {
		return err
	}
	o.broadcast(code, EventRoomReset, stats)
	return nil
}

func (o *Orchestrator) sendMessage(sid domain.ConnID, r SendMessage) error {
	code, err := o.currentRoom(sid)
	if err != nil {
		return err
	}
	msg, err := o.Engine.SendChat(code, sid, r.Text, o.ChatMaxLen)
	if err != nil {
		return err
	}
	o.broadcast(code, EventChatMessage, msg)
	return nil
}

func (o *Orchestrator) whoAmI(sid domain.ConnID) {
	data := whoAmIData{ConnectionID: sid}
	if code, pending, ok := o.Sessions.RoomOf(sid); ok {
		data.Room = code
		data.Pending = pending
		data.IsHost = o.Engine.Host(code) == sid
	}
	o.send(sid, EventWhoAmI, data)
}
