package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Vote/internal/app/orch"
	"github.com/dkeye/Vote/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			// Unblocks the reader, which then reports the disconnect.
			c.Close()
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Info().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

func (c *WsSignalConn) write(mt int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(mt, data)
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid domain.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		ctl.Orch.Dispatch(sid, orch.Disconnect{})
		ctl.opts.Signal.Forget(sid)
		ctl.opts.Chat.Forget(sid)
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	if ctl.opts.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.opts.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(sid, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(sid domain.ConnID, data []byte) {
	if !ctl.opts.Signal.Allow(sid) {
		ctl.Orch.SendError(sid, "", domain.NewError(domain.CodeRateLimited))
		return
	}
	req, err := ctl.decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad message")
		ctl.Orch.SendError(sid, requestType(data), err)
		return
	}
	if _, isChat := req.(orch.SendMessage); isChat && !ctl.opts.Chat.Allow(sid) {
		ctl.Orch.SendError(sid, req.RequestType(), domain.NewError(domain.CodeRateLimited))
		return
	}
	ctl.Orch.Dispatch(sid, req)
}

// requestType extracts the "type" field for error correlation, or "".
func requestType(data []byte) string {
	var env struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(data, &env)
	return env.Type
}

// decode turns a flat JSON message {"type": ..., <fields>} into a request.
func (ctl *SignalWSController) decode(data []byte) (orch.Request, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, domain.Errorf(domain.CodeInvalidMessage, "malformed json")
	}
	req, ok, err := orch.DecodeRequest(env.Type, func(v any) error {
		if err := json.Unmarshal(data, v); err != nil {
			return domain.Errorf(domain.CodeBadPayload, "malformed %s payload", env.Type)
		}
		if err := ctl.validate.Struct(v); err != nil {
			return validationError(err)
		}
		return nil
	})
	if !ok {
		return nil, domain.Errorf(domain.CodeInvalidMessage, "unknown message type %q", env.Type)
	}
	return req, err
}

// fieldCodes maps a failing request field to the error a client expects.
var fieldCodes = map[string]domain.Code{
	"Code": domain.CodeInvalidRoomCode,
	"Name": domain.CodeInvalidName,
	"Text": domain.CodeInvalidMessage,
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.Errorf(domain.CodeBadPayload, "invalid payload")
	}
	fe := verrs[0]
	code, ok := fieldCodes[fe.StructField()]
	if !ok {
		code = domain.CodeBadPayload
	}
	return domain.WithMetadata(code, fe.Field()+" failed "+fe.Tag(), map[string]string{
		"field": fe.Field(),
		"rule":  fe.Tag(),
	})
}
