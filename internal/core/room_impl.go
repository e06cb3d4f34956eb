package core

import (
	"crypto/subtle"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dkeye/Vote/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// Every operation validates fully before it mutates, under one mutex.
type roomImpl struct {
	mu  sync.Mutex
	now Clock

	code   domain.RoomCode
	opts   domain.RoomOptions
	host   domain.ConnID
	phase  domain.Phase
	closed bool

	// participants and pending keep join order; the oldest participant
	// is promoted when the host leaves.
	participants []domain.ConnID
	pending      []domain.ConnID

	profiles []domain.Profile
	votes    map[domain.ProfileID]int
	votedBy  map[domain.ConnID]domain.ProfileID
	byConn   map[domain.ConnID]domain.ProfileID

	createdAt    time.Time
	lastActivity time.Time
}

// NewRoomService creates a room with host as its sole participant.
func NewRoomService(code domain.RoomCode, host domain.ConnID, opts domain.RoomOptions, now Clock) RoomService {
	if now == nil {
		now = time.Now
	}
	opts = opts.WithDefaults()
	t := now()
	return &roomImpl{
		now:          now,
		code:         code,
		opts:         opts,
		host:         host,
		phase:        opts.InitialPhase(),
		participants: []domain.ConnID{host},
		votes:        make(map[domain.ProfileID]int),
		votedBy:      make(map[domain.ConnID]domain.ProfileID),
		byConn:       make(map[domain.ConnID]domain.ProfileID),
		createdAt:    t,
		lastActivity: t,
	}
}

func (r *roomImpl) Code() domain.RoomCode       { return r.code }
func (r *roomImpl) Host() domain.ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

func (r *roomImpl) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *roomImpl) Join(sid domain.ConnID, password string) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return JoinResult{}, domain.NewError(domain.CodeRoomNotFound)
	}
	if slices.Contains(r.participants, sid) {
		return JoinResult{Status: JoinStatusJoined, AlreadyJoined: true, Snapshot: r.snapshotLocked()}, nil
	}
	if slices.Contains(r.pending, sid) {
		return JoinResult{Status: JoinStatusPending}, nil
	}
	if r.opts.Password != "" {
		if password == "" {
			return JoinResult{}, domain.NewError(domain.CodePasswordRequired)
		}
		if subtle.ConstantTimeCompare([]byte(password), []byte(r.opts.Password)) != 1 {
			return JoinResult{}, domain.NewError(domain.CodeIncorrectPassword)
		}
	}
	if r.phase == domain.PhaseEnded {
		return JoinResult{}, domain.NewError(domain.CodeVotingEnded)
	}
	if len(r.participants) >= r.opts.ParticipantLimit {
		return JoinResult{}, domain.WithMetadata(domain.CodeRoomFull, "participant limit reached",
			map[string]string{"limit": strconv.Itoa(r.opts.ParticipantLimit)})
	}

	if r.opts.RequireApproval && sid != r.host {
		r.pending = append(r.pending, sid)
		r.touchLocked()
		log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("sid", string(sid)).Msg("join pending approval")
		return JoinResult{Status: JoinStatusPending}, nil
	}

	r.participants = append(r.participants, sid)
	r.touchLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("sid", string(sid)).Int("participants", len(r.participants)).Msg("participant joined")
	return JoinResult{Status: JoinStatusJoined, Snapshot: r.snapshotLocked()}, nil
}

func (r *roomImpl) Approve(host, target domain.ConnID) (domain.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.RoomSnapshot{}, domain.NewError(domain.CodeRoomNotFound)
	}
	if host != r.host {
		return domain.RoomSnapshot{}, domain.NewError(domain.CodeNotHost)
	}
	i := slices.Index(r.pending, target)
	if i < 0 {
		return domain.RoomSnapshot{}, domain.NewError(domain.CodeNotPending)
	}
	if r.phase == domain.PhaseEnded {
		return domain.RoomSnapshot{}, domain.NewError(domain.CodeVotingEnded)
	}
	if len(r.participants) >= r.opts.ParticipantLimit {
		return domain.RoomSnapshot{}, domain.NewError(domain.CodeRoomFull)
	}

	r.pending = slices.Delete(r.pending, i, i+1)
	r.participants = append(r.participants, target)
	r.touchLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("sid", string(target)).Msg("participant approved")
	return r.snapshotLocked(), nil
}

func (r *roomImpl) Reject(host, target domain.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.NewError(domain.CodeRoomNotFound)
	}
	if host != r.host {
		return domain.NewError(domain.CodeNotHost)
	}
	i := slices.Index(r.pending, target)
	if i < 0 {
		return domain.NewError(domain.CodeNotPending)
	}
	r.pending = slices.Delete(r.pending, i, i+1)
	r.touchLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("sid", string(target)).Msg("participant rejected")
	return nil
}

func (r *roomImpl) Leave(sid domain.ConnID) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res LeaveResult
	if r.closed {
		return res
	}
	if i := slices.Index(r.pending, sid); i >= 0 {
		r.pending = slices.Delete(r.pending, i, i+1)
		res.WasPending = true
	}
	if i := slices.Index(r.participants, sid); i >= 0 {
		r.participants = slices.Delete(r.participants, i, i+1)
		res.WasParticipant = true
	}
	res.ParticipantCount = len(r.participants)
	if !res.WasParticipant && !res.WasPending {
		return res
	}

	if target, ok := r.votedBy[sid]; ok {
		r.votes[target]--
		delete(r.votedBy, sid)
		res.WithdrawnVote = &domain.VoteTally{ProfileID: target, Count: r.votes[target]}
	}
	if pid, ok := r.byConn[sid]; ok {
		r.removeProfileLocked(pid)
		res.ProfileRemoved = true
		res.RemovedProfile = pid
	}

	if sid == r.host {
		r.host = ""
		if len(r.participants) > 0 {
			r.host = r.participants[0]
			res.NewHost = r.host
			log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("host", string(r.host)).Msg("host promoted")
		}
	}
	r.touchLocked()

	if len(r.participants) == 0 {
		res.Empty = true
		res.Evicted = r.pending
		r.pending = nil
		r.closed = true
		log.Info().Str("module", "core.room").Str("room", string(r.code)).Msg("room empty, closed")
	}
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("sid", string(sid)).Int("participants", len(r.participants)).Bool("profile_removed", res.ProfileRemoved).Msg("participant left")
	return res
}

// removeProfileLocked drops a profile with its tally and owner mapping.
// Ballots cast for it are returned to their voters.
func (r *roomImpl) removeProfileLocked(pid domain.ProfileID) {
	r.profiles = slices.DeleteFunc(r.profiles, func(p domain.Profile) bool { return p.ID == pid })
	delete(r.votes, pid)
	for owner, id := range r.byConn {
		if id == pid {
			delete(r.byConn, owner)
		}
	}
	for voter, target := range r.votedBy {
		if target == pid {
			delete(r.votedBy, voter)
		}
	}
}

func (r *roomImpl) AddProfile(sid domain.ConnID, in ProfileInput) (domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.Profile{}, domain.NewError(domain.CodeRoomNotFound)
	}
	if !slices.Contains(r.participants, sid) {
		return domain.Profile{}, domain.NewError(domain.CodeNotParticipant)
	}
	if !r.phase.CanAcceptProfiles() {
		return domain.Profile{}, domain.NewError(domain.CodeVotingEnded)
	}
	if _, ok := r.byConn[sid]; ok {
		return domain.Profile{}, domain.NewError(domain.CodeDuplicateProfile)
	}
	name, err := domain.CleanDisplayName(in.Name)
	if err != nil {
		return domain.Profile{}, err
	}

	p := domain.Profile{
		ID:          domain.NewProfileID(),
		Owner:       sid,
		DisplayName: name,
		AvatarRef:   in.AvatarRef,
		ModelRef:    in.ModelRef,
	}
	r.profiles = append(r.profiles, p)
	r.votes[p.ID] = 0
	r.byConn[sid] = p.ID
	r.touchLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("sid", string(sid)).Str("profile", string(p.ID)).Msg("profile added")
	return p, nil
}

func (r *roomImpl) CastVote(sid domain.ConnID, profileID domain.ProfileID) (domain.VoteTally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.VoteTally{}, domain.NewError(domain.CodeRoomNotFound)
	}
	if !slices.Contains(r.participants, sid) {
		return domain.VoteTally{}, domain.NewError(domain.CodeNotParticipant)
	}
	own, hasProfile := r.byConn[sid]
	if hasProfile && own == profileID {
		return domain.VoteTally{}, domain.NewError(domain.CodeSelfVote)
	}
	if !r.phase.CanAcceptVotes() {
		if r.phase == domain.PhaseWaiting {
			return domain.VoteTally{}, domain.NewError(domain.CodeVotingNotStarted)
		}
		return domain.VoteTally{}, domain.NewError(domain.CodeVotingEnded)
	}
	if !hasProfile {
		return domain.VoteTally{}, domain.NewError(domain.CodeNoProfile)
	}
	if _, voted := r.votedBy[sid]; voted {
		return domain.VoteTally{}, domain.NewError(domain.CodeAlreadyVoted)
	}
	if _, exists := r.votes[profileID]; !exists {
		return domain.VoteTally{}, domain.NewError(domain.CodeInvalidProfile)
	}

	r.votes[profileID]++
	r.votedBy[sid] = profileID
	r.touchLocked()
	log.Debug().Str("module", "core.room").Str("room", string(r.code)).Str("sid", string(sid)).Str("profile", string(profileID)).Int("count", r.votes[profileID]).Msg("vote cast")
	return domain.VoteTally{ProfileID: profileID, Count: r.votes[profileID]}, nil
}

func (r *roomImpl) CanEndVoting() domain.EndCheck {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endCheckLocked()
}

func (r *roomImpl) endCheckLocked() domain.EndCheck {
	return domain.EndCheck{
		CanEnd:       len(r.profiles) >= domain.MinProfilesForVoting,
		ProfileCount: len(r.profiles),
		MinRequired:  domain.MinProfilesForVoting,
	}
}

func (r *roomImpl) StartVoting(host domain.ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.NewError(domain.CodeRoomNotFound)
	}
	if host != r.host {
		return domain.NewError(domain.CodeNotHost)
	}
	if r.phase != domain.PhaseWaiting {
		return domain.Errorf(domain.CodeInvalidPhase, "cannot start voting in phase %s", r.phase)
	}
	r.phase = domain.PhaseVotingOpen
	r.touchLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Msg("voting started")
	return nil
}

// authorizeControlLocked checks that sid may end or reset the room.
func (r *roomImpl) authorizeControlLocked(sid domain.ConnID) error {
	if sid == "" {
		return nil
	}
	if !slices.Contains(r.participants, sid) {
		return domain.NewError(domain.CodeNotParticipant)
	}
	if r.opts.HostControlled && sid != r.host {
		return domain.NewError(domain.CodeNotHost)
	}
	return nil
}

func (r *roomImpl) EndVoting(sid domain.ConnID) (domain.Results, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.Results{}, domain.NewError(domain.CodeRoomNotFound)
	}
	if err := r.authorizeControlLocked(sid); err != nil {
		return domain.Results{}, err
	}
	if r.phase == domain.PhaseEnded {
		return domain.Results{}, domain.NewError(domain.CodeVotingEnded)
	}
	check := r.endCheckLocked()
	if !check.CanEnd {
		return domain.Results{}, domain.WithMetadata(domain.CodeInsufficientProfiles,
			"need at least "+strconv.Itoa(check.MinRequired)+" profiles, have "+strconv.Itoa(check.ProfileCount),
			map[string]string{
				"min":   strconv.Itoa(check.MinRequired),
				"count": strconv.Itoa(check.ProfileCount),
			})
	}

	r.phase = domain.PhaseEnded
	r.touchLocked()

	winners := domain.Winners(r.profiles, r.votes)
	total := 0
	for _, n := range r.votes {
		total += n
	}
	res := domain.Results{
		Winners:           winners,
		FinalVotes:        maps.Clone(r.votes),
		TotalParticipants: len(r.profiles),
		TotalVotesCast:    total,
		IsTie:             len(winners) > 1,
	}
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Int("winners", len(winners)).Int("votes", total).Msg("voting ended")
	return res, nil
}

func (r *roomImpl) Reset(sid domain.ConnID) (domain.RoomStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.RoomStats{}, domain.NewError(domain.CodeRoomNotFound)
	}
	if err := r.authorizeControlLocked(sid); err != nil {
		return domain.RoomStats{}, err
	}
	r.profiles = nil
	r.votes = make(map[domain.ProfileID]int)
	r.votedBy = make(map[domain.ConnID]domain.ProfileID)
	r.byConn = make(map[domain.ConnID]domain.ProfileID)
	r.phase = r.opts.InitialPhase()
	r.touchLocked()
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Msg("room reset")
	return r.statsLocked(), nil
}

func (r *roomImpl) Chat(sid domain.ConnID, text string, maxLen int) (domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ChatMessage{}, domain.NewError(domain.CodeRoomNotFound)
	}
	if !slices.Contains(r.participants, sid) {
		return domain.ChatMessage{}, domain.NewError(domain.CodeNotParticipant)
	}
	clean, err := domain.CleanChatMessage(text, maxLen)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	msg := domain.ChatMessage{From: sid, Text: clean, SentAt: r.now()}
	if pid, ok := r.byConn[sid]; ok {
		for _, p := range r.profiles {
			if p.ID == pid {
				msg.Author = p.DisplayName
				break
			}
		}
	}
	r.touchLocked()
	return msg, nil
}

func (r *roomImpl) Stats() domain.RoomStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statsLocked()
}

func (r *roomImpl) statsLocked() domain.RoomStats {
	return domain.RoomStats{
		Code:                r.code,
		Phase:               r.phase,
		ProfileCount:        len(r.profiles),
		ParticipantCount:    len(r.participants),
		PendingCount:        len(r.pending),
		VotedCount:          len(r.votedBy),
		IsVotingEnded:       r.phase == domain.PhaseEnded,
		CanEndVoting:        len(r.profiles) >= domain.MinProfilesForVoting,
		MinProfilesRequired: domain.MinProfilesForVoting,
		ParticipantLimit:    r.opts.ParticipantLimit,
		HasPassword:         r.opts.Password != "",
		RequireApproval:     r.opts.RequireApproval,
		HostConnectionID:    r.host,
		CreatedAt:           r.createdAt,
		LastActivityAt:      r.lastActivity,
	}
}

func (r *roomImpl) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *roomImpl) snapshotLocked() domain.RoomSnapshot {
	return domain.RoomSnapshot{
		Code:     r.code,
		Phase:    r.phase,
		Profiles: slices.Clone(r.profiles),
		Votes:    maps.Clone(r.votes),
		Stats:    r.statsLocked(),
	}
}

func (r *roomImpl) Participants() []domain.ConnID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.participants)
}

func (r *roomImpl) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()
}

func (r *roomImpl) touchLocked() {
	r.lastActivity = r.now()
}

func (r *roomImpl) CloseIfIdle(now time.Time, threshold time.Duration) (closed, inspected bool) {
	if !r.mu.TryLock() {
		return false, false
	}
	defer r.mu.Unlock()
	if r.closed {
		return true, true
	}
	if len(r.participants) == 0 && now.Sub(r.lastActivity) > threshold {
		r.closed = true
		return true, true
	}
	return false, true
}
