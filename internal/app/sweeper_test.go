package app

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Vote/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeperReclaimsClosedRooms(t *testing.T) {
	reg := NewRoomRegistry()
	room, err := reg.CreateRoom("host", domain.RoomOptions{})
	require.NoError(t, err)
	room.Leave("host")

	s := &Sweeper{Rooms: reg, Interval: 5 * time.Millisecond, IdleTimeout: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeperRejectsNonPositiveInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		s := &Sweeper{Rooms: NewRoomRegistry(), Interval: d, IdleTimeout: time.Hour}
		assert.Error(t, s.Run(context.Background()))
	}
}

func TestSimplePolicyKicks(t *testing.T) {
	assert.Equal(t, KickMember, SimplePolicy{}.OnBackPressure("ABC234", nil))
}
