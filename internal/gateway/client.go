package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/pkg/dueldto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var errBadFrame = &domain.Error{Code: "bad_frame", Message: "unrecognized frame"}

// client is one websocket session. Reads happen on the serving goroutine;
// writes go through send and a dedicated writer goroutine.
type client struct {
	hub    *Hub
	svc    Service
	conn   *websocket.Conn
	send   chan dueldto.ServerFrame
	handle string

	mu       sync.Mutex
	playerID string

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newClient(h *Hub, svc Service, conn *websocket.Conn) *client {
	return &client{
		hub:    h,
		svc:    svc,
		conn:   conn,
		send:   make(chan dueldto.ServerFrame, h.cfg.QueueSize),
		handle: "ws:" + uuid.NewString(),
		done:   make(chan struct{}),
	}
}

func (c *client) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()

	c.wg.Add(2)
	go c.writeLoop(ctx)
	go c.pingLoop(ctx)

	for {
		var frame dueldto.ClientFrame
		if err := wsjson.Read(ctx, c.conn, &frame); err != nil {
			if websocket.CloseStatus(err) == -1 && !c.isClosed() {
				c.hub.logger.Debug("ws_read_failed", zap.String("player_id", c.id()), zap.Error(err))
			}
			break
		}
		c.dispatch(ctx, frame)
	}

	c.close(websocket.StatusNormalClosure, "")
	cancel()
	c.wg.Wait()

	c.hub.forget(c)
	id := c.id()
	if c.hub.unbind(id, c) {
		c.svc.Disconnect(context.Background(), id)
	}
}

func (c *client) dispatch(ctx context.Context, f dueldto.ClientFrame) {
	if f.Type == dueldto.FrameEnter {
		c.enter(ctx, f.PlayerID)
		return
	}
	id := c.id()
	if id == "" {
		c.enqueue(c.hub.invalidFrame("", domain.ErrUnknownPlayer))
		return
	}

	var err error
	switch f.Type {
	case dueldto.FrameReady:
		err = c.svc.MarkAvailable(ctx, id)
	case dueldto.FrameAttack, dueldto.FrameHeal:
		_, _, err = c.svc.SubmitMove(ctx, id, f.Type)
	case dueldto.FrameRequestMatch:
		_, err = c.svc.RequestMatch(ctx, id, f.Player1, f.Player2)
	case dueldto.FrameForfeit:
		_, err = c.svc.Forfeit(ctx, id)
	default:
		c.enqueue(c.hub.invalidFrame(id, fmt.Errorf("%w: %q", errBadFrame, f.Type)))
		return
	}
	c.reportUnrouted(id, err)
}

func (c *client) enter(ctx context.Context, playerID string) {
	if playerID == "" {
		c.enqueue(c.hub.invalidFrame("", domain.ErrUnknownPlayer))
		return
	}
	if cur := c.id(); cur != "" && cur != playerID {
		c.enqueue(c.hub.invalidFrame(playerID, fmt.Errorf("%w: connection already entered as %s", errBadFrame, cur)))
		return
	}

	// 먼저 bind: 재개된 대국 알림이 이 연결로 전달되도록
	prev := c.hub.bind(playerID, c, false)
	if prev != nil {
		// 이전 피어는 close 핸드셰이크에 응답하지 않을 수 있음
		go prev.close(websocket.StatusPolicyViolation, "replaced by a newer connection")
	}
	pl, err := c.svc.ConnectVia(ctx, playerID, c.handle)
	if err != nil {
		c.reportUnrouted(playerID, err)
		if c.hub.unbind(playerID, c) && prev != nil {
			c.svc.Disconnect(ctx, playerID)
		}
		return
	}
	c.mu.Lock()
	c.playerID = playerID
	c.mu.Unlock()
	if pl.Role == domain.RoleSpectator {
		c.hub.bind(playerID, c, true)
	}

	dp := dueldto.FromPlayer(pl)
	c.enqueue(dueldto.ServerFrame{
		Type:    dueldto.FrameEntered,
		Player:  &dp,
		Message: c.hub.render("event.entered", map[string]any{"Name": pl.Name}),
	})
	c.hub.logger.Info("ws_enter", zap.String("player_id", playerID), zap.String("handle", c.handle), zap.String("role", string(pl.Role)))
}

// reportUnrouted answers errors the notifier does not deliver: anything that
// is not a domain rejection.
func (c *client) reportUnrouted(playerID string, err error) {
	if err == nil || domain.IsRejection(err) {
		return
	}
	c.hub.logger.Error("ws_command_failed", zap.String("player_id", playerID), zap.Error(err))
	c.enqueue(c.hub.invalidFrame(playerID, err))
}

func (c *client) enqueue(f dueldto.ServerFrame) {
	if c.isClosed() {
		return
	}
	select {
	case c.send <- f:
	default:
		c.hub.logger.Warn("ws_queue_full", zap.String("player_id", c.id()), zap.String("frame", f.Type))
	}
}

func (c *client) writeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case f := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, c.hub.cfg.WriteTimeout)
			err := wsjson.Write(wctx, c.conn, f)
			cancel()
			if err != nil {
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (c *client) pingLoop(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.hub.cfg.PingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				c.close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.conn.Close(code, reason); err != nil && !errors.Is(err, context.Canceled) {
			c.hub.logger.Debug("ws_close", zap.String("player_id", c.id()), zap.Error(err))
		}
	})
}

func (c *client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *client) id() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}
