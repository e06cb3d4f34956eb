package signal

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Vote/internal/core"
	"github.com/stretchr/testify/assert"
)

type fakeWS struct {
	mu     sync.Mutex
	closed bool
}

func (f *fakeWS) ReadMessage() (int, []byte, error)         { return 0, nil, errors.New("not implemented") }
func (f *fakeWS) WriteMessage(int, []byte) error            { return nil }
func (f *fakeWS) SetWriteDeadline(time.Time) error          { return nil }
func (f *fakeWS) SetReadDeadline(time.Time) error           { return nil }
func (f *fakeWS) SetReadLimit(int64)                        {}
func (f *fakeWS) SetPongHandler(func(appData string) error) {}
func (f *fakeWS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestWsSignalConnBackpressure(t *testing.T) {
	conn := NewWsSignalConn(&fakeWS{})
	for i := 0; i < sendBuffer; i++ {
		assert.NoError(t, conn.TrySend(core.Frame("x")))
	}
	assert.ErrorIs(t, conn.TrySend(core.Frame("x")), ErrBackpressure)
}

func TestWsSignalConnClose(t *testing.T) {
	ws := &fakeWS{}
	conn := NewWsSignalConn(ws)
	conn.Close()
	conn.Close()

	assert.True(t, ws.closed)
	assert.ErrorIs(t, conn.TrySend(core.Frame("x")), ErrClosed)
}

var _ core.SignalConnection = (*WsSignalConn)(nil)
