package core

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Vote/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newRoom(t *testing.T, opts domain.RoomOptions) (*roomImpl, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	r := NewRoomService("ABC234", "host", opts, clock.Now).(*roomImpl)
	return r, clock
}

func isCode(code domain.Code) error { return domain.NewError(code) }

// checkInvariants asserts the bookkeeping relations that must hold after
// every operation.
func checkInvariants(t *testing.T, r *roomImpl) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	require.Len(t, r.votes, len(r.profiles))
	counted := make(map[domain.ProfileID]int)
	for voter, target := range r.votedBy {
		counted[target]++
		own, ok := r.byConn[voter]
		require.True(t, ok, "voter %s has no profile", voter)
		require.NotEqual(t, own, target, "self vote by %s", voter)
	}
	sum := 0
	for _, p := range r.profiles {
		n, ok := r.votes[p.ID]
		require.True(t, ok)
		require.Equal(t, counted[p.ID], n, "tally of %s", p.ID)
		sum += n
	}
	require.Equal(t, len(r.votedBy), sum)
	for owner, pid := range r.byConn {
		_, ok := r.votes[pid]
		require.True(t, ok, "owner %s maps to a removed profile", owner)
	}
}

func join(t *testing.T, r RoomService, sid domain.ConnID) {
	t.Helper()
	res, err := r.Join(sid, "")
	require.NoError(t, err)
	require.Equal(t, JoinStatusJoined, res.Status)
}

func addProfile(t *testing.T, r RoomService, sid domain.ConnID, name string) domain.Profile {
	t.Helper()
	p, err := r.AddProfile(sid, ProfileInput{Name: name})
	require.NoError(t, err)
	return p
}

func TestNewRoomHostIsSoleParticipant(t *testing.T) {
	r, clock := newRoom(t, domain.RoomOptions{})
	assert.Equal(t, []domain.ConnID{"host"}, r.Participants())
	assert.Equal(t, domain.ConnID("host"), r.Host())

	stats := r.Stats()
	assert.Equal(t, domain.PhaseVotingOpen, stats.Phase)
	assert.Equal(t, 1, stats.ParticipantCount)
	assert.Equal(t, domain.DefaultParticipantLimit, stats.ParticipantLimit)
	assert.Equal(t, clock.Now(), stats.CreatedAt)
	assert.Equal(t, clock.Now(), stats.LastActivityAt)
}

func TestJoin(t *testing.T) {
	r, clock := newRoom(t, domain.RoomOptions{})
	clock.Advance(time.Minute)

	res, err := r.Join("b", "")
	require.NoError(t, err)
	assert.Equal(t, JoinStatusJoined, res.Status)
	assert.False(t, res.AlreadyJoined)
	assert.Equal(t, 2, res.Snapshot.Stats.ParticipantCount)
	assert.Equal(t, clock.Now(), r.Stats().LastActivityAt)

	res, err = r.Join("b", "")
	require.NoError(t, err)
	assert.True(t, res.AlreadyJoined)
	assert.Len(t, r.Participants(), 2)
}

func TestJoinPassword(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{Password: "s3cret"})

	_, err := r.Join("b", "")
	assert.ErrorIs(t, err, isCode(domain.CodePasswordRequired))
	_, err = r.Join("b", "wrong")
	assert.ErrorIs(t, err, isCode(domain.CodeIncorrectPassword))
	_, err = r.Join("b", "s3cret")
	assert.NoError(t, err)
	assert.True(t, r.Stats().HasPassword)
}

func TestJoinRoomFull(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{ParticipantLimit: 2})
	join(t, r, "b")

	_, err := r.Join("c", "")
	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.CodeRoomFull, de.Code)
	assert.Equal(t, "2", de.Metadata["limit"])
	assert.Len(t, r.Participants(), 2)
}

func TestJoinAfterVotingEnded(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{})
	join(t, r, "b")
	addProfile(t, r, "host", "Alice")
	addProfile(t, r, "b", "Bob")
	_, err := r.EndVoting("host")
	require.NoError(t, err)

	_, err = r.Join("c", "")
	assert.ErrorIs(t, err, isCode(domain.CodeVotingEnded))
}

func TestApprovalFlow(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{RequireApproval: true})

	res, err := r.Join("b", "")
	require.NoError(t, err)
	assert.Equal(t, JoinStatusPending, res.Status)
	assert.NotContains(t, r.Participants(), domain.ConnID("b"))
	assert.Equal(t, 1, r.Stats().PendingCount)

	_, err = r.Approve("b", "b")
	assert.ErrorIs(t, err, isCode(domain.CodeNotHost))
	_, err = r.Approve("host", "nobody")
	assert.ErrorIs(t, err, isCode(domain.CodeNotPending))

	snap, err := r.Approve("host", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Stats.ParticipantCount)
	assert.Equal(t, 0, snap.Stats.PendingCount)
	assert.Contains(t, r.Participants(), domain.ConnID("b"))

	_, err = r.Join("c", "")
	require.NoError(t, err)
	assert.NoError(t, r.Reject("host", "c"))
	assert.ErrorIs(t, r.Reject("host", "c"), isCode(domain.CodeNotPending))
	assert.NotContains(t, r.Participants(), domain.ConnID("c"))
}

func TestApproveRechecksCapacity(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{RequireApproval: true, ParticipantLimit: 2})
	_, err := r.Join("b", "")
	require.NoError(t, err)
	_, err = r.Join("c", "")
	require.NoError(t, err)

	_, err = r.Approve("host", "b")
	require.NoError(t, err)
	_, err = r.Approve("host", "c")
	assert.ErrorIs(t, err, isCode(domain.CodeRoomFull))
}

func TestAddProfile(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{})

	p := addProfile(t, r, "host", "  Alice ")
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, domain.ConnID("host"), p.Owner)
	assert.NotEmpty(t, p.ID)

	_, err := r.AddProfile("host", ProfileInput{Name: "Again"})
	assert.ErrorIs(t, err, isCode(domain.CodeDuplicateProfile))
	_, err = r.AddProfile("stranger", ProfileInput{Name: "X"})
	assert.ErrorIs(t, err, isCode(domain.CodeNotParticipant))

	join(t, r, "b")
	_, err = r.AddProfile("b", ProfileInput{Name: "   "})
	assert.ErrorIs(t, err, isCode(domain.CodeInvalidName))

	assert.Equal(t, 0, r.Snapshot().Votes[p.ID])
	checkInvariants(t, r)
}

func TestCastVote(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{})
	join(t, r, "b")
	join(t, r, "c")
	alice := addProfile(t, r, "host", "Alice")
	bob := addProfile(t, r, "b", "Bob")

	tally, err := r.CastVote("b", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteTally{ProfileID: alice.ID, Count: 1}, tally)
	checkInvariants(t, r)

	_, err = r.CastVote("b", alice.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeAlreadyVoted))
	assert.Equal(t, 1, r.Snapshot().Votes[alice.ID])

	_, err = r.CastVote("host", alice.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeSelfVote))

	_, err = r.CastVote("c", bob.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeNoProfile))

	_, err = r.CastVote("host", "missing")
	assert.ErrorIs(t, err, isCode(domain.CodeInvalidProfile))

	_, err = r.CastVote("stranger", bob.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeNotParticipant))

	assert.Equal(t, 1, r.Stats().VotedCount)
	checkInvariants(t, r)
}

func TestSelfVoteReportedInEveryPhase(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{HostControlled: true})
	join(t, r, "b")
	alice := addProfile(t, r, "host", "Alice")
	addProfile(t, r, "b", "Bob")

	_, err := r.CastVote("host", alice.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeSelfVote))

	require.NoError(t, r.StartVoting("host"))
	_, err = r.CastVote("host", alice.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeSelfVote))

	_, err = r.EndVoting("host")
	require.NoError(t, err)
	_, err = r.CastVote("host", alice.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeSelfVote))
}

func TestPhaseReportedBeforeMissingProfile(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{HostControlled: true})
	join(t, r, "b")
	join(t, r, "c")
	alice := addProfile(t, r, "host", "Alice")
	addProfile(t, r, "b", "Bob")

	_, err := r.CastVote("c", alice.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeVotingNotStarted))

	require.NoError(t, r.StartVoting("host"))
	_, err = r.CastVote("c", alice.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeNoProfile))

	_, err = r.EndVoting("host")
	require.NoError(t, err)
	_, err = r.CastVote("c", alice.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeVotingEnded))
}

func TestHostControlledPhases(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{HostControlled: true})
	join(t, r, "b")
	alice := addProfile(t, r, "host", "Alice")
	addProfile(t, r, "b", "Bob")

	assert.Equal(t, domain.PhaseWaiting, r.Stats().Phase)
	_, err := r.CastVote("b", alice.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeVotingNotStarted))

	assert.ErrorIs(t, r.StartVoting("b"), isCode(domain.CodeNotHost))
	require.NoError(t, r.StartVoting("host"))
	assert.ErrorIs(t, r.StartVoting("host"), isCode(domain.CodeInvalidPhase))

	_, err = r.EndVoting("b")
	assert.ErrorIs(t, err, isCode(domain.CodeNotHost))
	_, err = r.Reset("b")
	assert.ErrorIs(t, err, isCode(domain.CodeNotHost))

	_, err = r.CastVote("b", alice.ID)
	require.NoError(t, err)
	_, err = r.EndVoting("host")
	require.NoError(t, err)

	stats, err := r.Reset("host")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseWaiting, stats.Phase)
}

func TestEndVoting(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{})
	join(t, r, "b")
	alice := addProfile(t, r, "host", "Alice")

	_, err := r.EndVoting("host")
	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, domain.CodeInsufficientProfiles, de.Code)
	assert.Equal(t, "2", de.Metadata["min"])
	assert.Equal(t, "1", de.Metadata["count"])
	assert.Equal(t, domain.EndCheck{CanEnd: false, ProfileCount: 1, MinRequired: 2}, r.CanEndVoting())

	bob := addProfile(t, r, "b", "Bob")
	assert.True(t, r.CanEndVoting().CanEnd)
	_, err = r.CastVote("b", alice.ID)
	require.NoError(t, err)

	res, err := r.EndVoting("")
	require.NoError(t, err)
	assert.Equal(t, []domain.Profile{alice}, res.Winners)
	assert.Equal(t, map[domain.ProfileID]int{alice.ID: 1, bob.ID: 0}, res.FinalVotes)
	assert.Equal(t, 2, res.TotalParticipants)
	assert.Equal(t, 1, res.TotalVotesCast)
	assert.False(t, res.IsTie)
	assert.True(t, r.Stats().IsVotingEnded)

	_, err = r.EndVoting("host")
	assert.ErrorIs(t, err, isCode(domain.CodeVotingEnded))
	_, err = r.AddProfile("host", ProfileInput{Name: "Late"})
	assert.ErrorIs(t, err, isCode(domain.CodeVotingEnded))
	_, err = r.CastVote("host", bob.ID)
	assert.ErrorIs(t, err, isCode(domain.CodeVotingEnded))
}

func TestEndVotingTieInCreationOrder(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{})
	voters := []domain.ConnID{"v1", "v2", "v3", "v4", "v5", "v6", "v7", "v8"}
	join(t, r, "o2")
	join(t, r, "o3")
	for _, v := range voters {
		join(t, r, v)
	}
	p1 := addProfile(t, r, "host", "P1")
	p2 := addProfile(t, r, "o2", "P2")
	p3 := addProfile(t, r, "o3", "P3")
	for _, v := range voters {
		addProfile(t, r, v, "voter "+string(v))
	}
	plan := []domain.ProfileID{p1.ID, p1.ID, p2.ID, p2.ID, p2.ID, p3.ID, p3.ID, p3.ID}
	for i, v := range voters {
		_, err := r.CastVote(v, plan[i])
		require.NoError(t, err)
	}
	checkInvariants(t, r)

	res, err := r.EndVoting("host")
	require.NoError(t, err)
	assert.Equal(t, []domain.Profile{p2, p3}, res.Winners)
	assert.True(t, res.IsTie)
	assert.Equal(t, 8, res.TotalVotesCast)
}

func TestLeaveWithdrawsVoteAndProfile(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{})
	join(t, r, "b")
	join(t, r, "c")
	alice := addProfile(t, r, "host", "Alice")
	bob := addProfile(t, r, "b", "Bob")
	addProfile(t, r, "c", "Carol")

	_, err := r.CastVote("b", alice.ID)
	require.NoError(t, err)
	_, err = r.CastVote("c", bob.ID)
	require.NoError(t, err)

	res := r.Leave("b")
	assert.True(t, res.WasParticipant)
	assert.True(t, res.ProfileRemoved)
	assert.Equal(t, bob.ID, res.RemovedProfile)
	require.NotNil(t, res.WithdrawnVote)
	assert.Equal(t, domain.VoteTally{ProfileID: alice.ID, Count: 0}, *res.WithdrawnVote)
	assert.Equal(t, 2, res.ParticipantCount)
	assert.False(t, res.Empty)
	checkInvariants(t, r)

	// c voted for the removed profile and may vote again.
	_, err = r.CastVote("c", alice.ID)
	assert.NoError(t, err)
	checkInvariants(t, r)
}

func TestLeavePromotesEarliestParticipant(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{RequireApproval: true})
	_, err := r.Join("pending", "")
	require.NoError(t, err)
	_, err = r.Join("b", "")
	require.NoError(t, err)
	_, err = r.Join("c", "")
	require.NoError(t, err)
	_, err = r.Approve("host", "c")
	require.NoError(t, err)
	_, err = r.Approve("host", "b")
	require.NoError(t, err)

	res := r.Leave("host")
	assert.Equal(t, domain.ConnID("c"), res.NewHost)
	assert.Equal(t, domain.ConnID("c"), r.Host())
}

func TestLastLeaveClosesRoomAndEvictsPending(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{RequireApproval: true})
	_, err := r.Join("p", "")
	require.NoError(t, err)

	res := r.Leave("host")
	assert.True(t, res.Empty)
	assert.Equal(t, []domain.ConnID{"p"}, res.Evicted)
	assert.Empty(t, res.NewHost)
	assert.True(t, r.Closed())

	_, err = r.Join("x", "")
	assert.ErrorIs(t, err, isCode(domain.CodeRoomNotFound))
	assert.Equal(t, LeaveResult{}, r.Leave("p"))
}

func TestLeaveUnknownIsNoop(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{})
	res := r.Leave("nobody")
	assert.False(t, res.WasParticipant)
	assert.False(t, res.WasPending)
	assert.Len(t, r.Participants(), 1)
}

func TestResetBehavesLikeFreshRoom(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{Password: "pw", ParticipantLimit: 5})
	_, err := r.Join("b", "pw")
	require.NoError(t, err)
	alice := addProfile(t, r, "host", "Alice")
	addProfile(t, r, "b", "Bob")
	_, err = r.CastVote("b", alice.ID)
	require.NoError(t, err)
	_, err = r.EndVoting("host")
	require.NoError(t, err)

	stats, err := r.Reset("b")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseVotingOpen, stats.Phase)
	assert.Equal(t, 0, stats.ProfileCount)
	assert.Equal(t, 0, stats.VotedCount)
	assert.Equal(t, 2, stats.ParticipantCount)
	assert.Equal(t, 5, stats.ParticipantLimit)
	assert.True(t, stats.HasPassword)
	assert.Equal(t, domain.ConnID("host"), stats.HostConnectionID)

	alice = addProfile(t, r, "host", "Alice")
	addProfile(t, r, "b", "Bob")
	tally, err := r.CastVote("b", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Count)
	checkInvariants(t, r)

	_, err = r.Reset("stranger")
	assert.ErrorIs(t, err, isCode(domain.CodeNotParticipant))
}

func TestChat(t *testing.T) {
	r, clock := newRoom(t, domain.RoomOptions{})
	addProfile(t, r, "host", "Alice")
	join(t, r, "b")

	msg, err := r.Chat("host", " hello ", 200)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "Alice", msg.Author)
	assert.Equal(t, clock.Now(), msg.SentAt)

	msg, err = r.Chat("b", "hi", 200)
	require.NoError(t, err)
	assert.Empty(t, msg.Author)

	_, err = r.Chat("b", "", 200)
	assert.ErrorIs(t, err, isCode(domain.CodeInvalidMessage))
	_, err = r.Chat("stranger", "hi", 200)
	assert.ErrorIs(t, err, isCode(domain.CodeNotParticipant))
}

func TestCloseIfIdle(t *testing.T) {
	r, clock := newRoom(t, domain.RoomOptions{})

	closed, inspected := r.CloseIfIdle(clock.Now().Add(time.Hour), 30*time.Minute)
	assert.True(t, inspected)
	assert.False(t, closed, "room with participants is never idle-closed")

	r.mu.Lock()
	r.participants = nil
	r.mu.Unlock()

	closed, _ = r.CloseIfIdle(clock.Now().Add(10*time.Minute), 30*time.Minute)
	assert.False(t, closed)
	closed, inspected = r.CloseIfIdle(clock.Now().Add(31*time.Minute), 30*time.Minute)
	assert.True(t, inspected)
	assert.True(t, closed)
	assert.True(t, r.Closed())
}

func TestCloseIfIdleSkipsBusyRoom(t *testing.T) {
	r, clock := newRoom(t, domain.RoomOptions{})
	r.mu.Lock()
	defer r.mu.Unlock()
	closed, inspected := r.CloseIfIdle(clock.Now().Add(time.Hour), time.Minute)
	assert.False(t, inspected)
	assert.False(t, closed)
}

func TestConcurrentVotesCountOnce(t *testing.T) {
	r, _ := newRoom(t, domain.RoomOptions{})
	join(t, r, "b")
	alice := addProfile(t, r, "host", "Alice")
	addProfile(t, r, "b", "Bob")

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.CastVote("b", alice.ID); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, r.Snapshot().Votes[alice.ID])
	checkInvariants(t, r)
}
