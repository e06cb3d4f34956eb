package app

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Vote/internal/core"
	"github.com/dkeye/Vote/internal/domain"
	"github.com/rs/zerolog/log"
)

// maxCodeAttempts bounds resampling; hitting it means the registry is corrupt
// or the code space is exhausted.
const maxCodeAttempts = 1000

// RoomRegistry is the authoritative store of live rooms.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode]core.RoomService

	now     core.Clock
	newCode func() (domain.RoomCode, error)
}

type RegistryOption func(*RoomRegistry)

func WithClock(now core.Clock) RegistryOption {
	return func(r *RoomRegistry) { r.now = now }
}

func WithCodeGenerator(gen func() (domain.RoomCode, error)) RegistryOption {
	return func(r *RoomRegistry) { r.newCode = gen }
}

func NewRoomRegistry(opts ...RegistryOption) *RoomRegistry {
	r := &RoomRegistry{
		rooms:   make(map[domain.RoomCode]core.RoomService),
		now:     time.Now,
		newCode: GenerateRoomCode,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GenerateRoomCode draws RoomCodeLength symbols uniformly from RoomCodeChars.
func GenerateRoomCode() (domain.RoomCode, error) {
	buf := make([]byte, domain.RoomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// 256 is a multiple of the 32-symbol alphabet, so the modulo is unbiased.
	for i, b := range buf {
		buf[i] = domain.RoomCodeChars[int(b)%len(domain.RoomCodeChars)]
	}
	return domain.RoomCode(buf), nil
}

// CreateRoom allocates a fresh code and registers a room hosted by creator.
func (r *RoomRegistry) CreateRoom(creator domain.ConnID, opts domain.RoomOptions) (core.RoomService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return nil, err
		}
		if _, taken := r.rooms[code]; taken {
			continue
		}
		room := core.NewRoomService(code, creator, opts, r.now)
		r.rooms[code] = room
		log.Info().Str("module", "app.rooms").Str("room", string(code)).Str("host", string(creator)).Int("live", len(r.rooms)).Msg("room created")
		return room, nil
	}
	log.Error().Str("module", "app.rooms").Int("live", len(r.rooms)).Msg("room code space exhausted")
	return nil, domain.Errorf(domain.CodeCodeSpaceFull, "no free code after %d attempts", maxCodeAttempts)
}

// GetRoom looks a room up case-insensitively. Closed rooms are not returned.
func (r *RoomRegistry) GetRoom(code string) (core.RoomService, bool) {
	key := domain.RoomCode(strings.ToUpper(strings.TrimSpace(code)))
	r.mu.RLock()
	room, ok := r.rooms[key]
	r.mu.RUnlock()
	if !ok || room.Closed() {
		return nil, false
	}
	return room, true
}

// DeleteRoom removes code; deleting a missing code is a no-op.
func (r *RoomRegistry) DeleteRoom(code domain.RoomCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[code]; ok {
		delete(r.rooms, code)
		log.Info().Str("module", "app.rooms").Str("room", string(code)).Msg("room deleted")
	}
}

// deleteIfSame removes code only while it still maps to room.
func (r *RoomRegistry) deleteIfSame(code domain.RoomCode, room core.RoomService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.rooms[code]; ok && current == room {
		delete(r.rooms, code)
		log.Info().Str("module", "app.rooms").Str("room", string(code)).Msg("room deleted")
	}
}

// TouchActivity marks the room as active now.
func (r *RoomRegistry) TouchActivity(code domain.RoomCode) bool {
	room, ok := r.GetRoom(string(code))
	if !ok {
		return false
	}
	room.Touch()
	return true
}

// SweepIdleRooms deletes every empty room idle for longer than threshold and
// returns the deleted codes. Rooms busy with an operation are skipped.
func (r *RoomRegistry) SweepIdleRooms(now time.Time, threshold time.Duration) []domain.RoomCode {
	r.mu.RLock()
	snapshot := make(map[domain.RoomCode]core.RoomService, len(r.rooms))
	for code, room := range r.rooms {
		snapshot[code] = room
	}
	r.mu.RUnlock()

	var deleted []domain.RoomCode
	skipped := 0
	for code, room := range snapshot {
		closed, inspected := room.CloseIfIdle(now, threshold)
		if !inspected {
			skipped++
			continue
		}
		if closed {
			r.deleteIfSame(code, room)
			deleted = append(deleted, code)
		}
	}
	log.Debug().Str("module", "app.rooms").Int("deleted", len(deleted)).Int("skipped", skipped).Int("live", r.Len()).Msg("idle sweep")
	return deleted
}

func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *RoomRegistry) List() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for code, room := range r.rooms {
		out = append(out, core.RoomInfo{Code: code, ParticipantCount: len(room.Participants())})
	}
	return out
}
