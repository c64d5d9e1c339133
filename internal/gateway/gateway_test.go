package gateway

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/duel-arena/internal/arena"
	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/internal/msgcat"
	"github.com/park285/duel-arena/internal/outcome"
	"github.com/park285/duel-arena/internal/players"
	"github.com/park285/duel-arena/internal/registry"
	"github.com/park285/duel-arena/internal/service/duel"
	"github.com/park285/duel-arena/pkg/dueldto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type harness struct {
	srv  *httptest.Server
	pool *arena.Pool
	hub  *Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

// newHarnessWith lets a test wrap the service the hub dispatches to.
func newHarnessWith(t *testing.T, wrap func(Service) Service) *harness {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	hub := NewHub(Config{PingInterval: time.Minute}, cat, nil)
	src := players.NewMemorySource(
		domain.Player{ID: "ann", Name: "Ann"},
		domain.Player{ID: "bob", Name: "Bob"},
		domain.Player{ID: "eve", Name: "Eve", Role: domain.RoleSpectator},
	)
	pool := arena.New(arena.Config{StartingHealth: 100}, registry.New(),
		outcome.NewSeeded(outcome.DefaultConfig(), 3, 4), arena.WithNotifier(hub))
	svc, err := duel.NewService(pool, src, hub, nil, duel.Config{}, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	var handled Service = svc
	if wrap != nil {
		handled = wrap(svc)
	}
	srv := httptest.NewServer(hub.Handler(handled))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &harness{srv: srv, pool: pool, hub: hub}
}

type wsPeer struct {
	t    *testing.T
	conn *websocket.Conn
}

func (h *harness) dial(t *testing.T) *wsPeer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return &wsPeer{t: t, conn: conn}
}

func (p *wsPeer) write(f dueldto.ClientFrame) {
	p.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, p.conn, f); err != nil {
		p.t.Fatalf("write %s: %v", f.Type, err)
	}
}

// expect reads frames until one of the wanted type arrives.
func (p *wsPeer) expect(frameType string) dueldto.ServerFrame {
	p.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var f dueldto.ServerFrame
		if err := wsjson.Read(ctx, p.conn, &f); err != nil {
			p.t.Fatalf("waiting for %s: %v", frameType, err)
		}
		if f.Type == frameType {
			return f
		}
	}
}

func (p *wsPeer) enter(id string) dueldto.ServerFrame {
	p.t.Helper()
	p.write(dueldto.ClientFrame{Type: dueldto.FrameEnter, PlayerID: id})
	return p.expect(dueldto.FrameEntered)
}

func TestMatchFlowOverWebsocket(t *testing.T) {
	h := newHarness(t)
	ann, bob, eve := h.dial(t), h.dial(t), h.dial(t)

	if f := ann.enter("ann"); f.Player == nil || f.Player.ID != "ann" || f.Message != "Welcome to the arena, Ann." {
		t.Fatalf("entered frame = %+v", f)
	}
	bob.enter("bob")
	if f := eve.enter("eve"); f.Player.Role != "spectator" {
		t.Fatalf("eve role = %+v", f.Player)
	}

	ann.write(dueldto.ClientFrame{Type: dueldto.FrameReady})
	bob.write(dueldto.ClientFrame{Type: dueldto.FrameReady})
	deadline := time.Now().Add(3 * time.Second)
	for len(h.pool.Free()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	ann.write(dueldto.ClientFrame{Type: dueldto.FrameRequestMatch, Player1: "ann", Player2: "bob"})

	for _, p := range []*wsPeer{ann, bob, eve} {
		f := p.expect(dueldto.FrameStartGame)
		if f.Match == nil || f.Match.Turn != "ann" || f.Message != "Ann vs Bob. Ann moves first." {
			t.Fatalf("start frame = %+v", f)
		}
	}

	ann.write(dueldto.ClientFrame{Type: dueldto.FrameAttack})
	for _, p := range []*wsPeer{ann, bob, eve} {
		f := p.expect(dueldto.FrameMovePlayed)
		if f.Move == nil || f.Move.ActorID != "ann" || f.Match.Turn != "bob" {
			t.Fatalf("move frame = %+v", f)
		}
	}

	ann.write(dueldto.ClientFrame{Type: dueldto.FrameHeal})
	if f := ann.expect(dueldto.FrameInvalid); f.Code != "out_of_turn" || f.Message != "Wait for your turn." {
		t.Fatalf("invalid frame = %+v", f)
	}

	bob.write(dueldto.ClientFrame{Type: dueldto.FrameForfeit})
	for _, p := range []*wsPeer{ann, bob, eve} {
		f := p.expect(dueldto.FrameGameOver)
		if f.Winner != "ann" || f.Message != "Ann wins by forfeit." {
			t.Fatalf("game over frame = %+v", f)
		}
	}
}

func TestRejectionsOverWebsocket(t *testing.T) {
	h := newHarness(t)
	p := h.dial(t)

	p.write(dueldto.ClientFrame{Type: dueldto.FrameAttack})
	if f := p.expect(dueldto.FrameInvalid); f.Code != "unknown_player" {
		t.Fatalf("before enter = %+v", f)
	}

	p.write(dueldto.ClientFrame{Type: dueldto.FrameEnter, PlayerID: "ghost"})
	if f := p.expect(dueldto.FrameInvalid); f.Code != "unknown_player" {
		t.Fatalf("unknown enter = %+v", f)
	}
	if h.hub.Online("ghost") {
		t.Fatalf("rejected player stayed bound")
	}

	p.enter("ann")
	p.write(dueldto.ClientFrame{Type: "dance"})
	if f := p.expect(dueldto.FrameInvalid); f.Code != "bad_frame" {
		t.Fatalf("bad frame = %+v", f)
	}
	p.write(dueldto.ClientFrame{Type: dueldto.FrameEnter, PlayerID: "bob"})
	if f := p.expect(dueldto.FrameInvalid); f.Code != "bad_frame" {
		t.Fatalf("re-enter = %+v", f)
	}
	p.write(dueldto.ClientFrame{Type: dueldto.FrameAttack})
	if f := p.expect(dueldto.FrameInvalid); f.Code != "not_in_match" {
		t.Fatalf("attack outside match = %+v", f)
	}
}

func TestCloseDisconnectsPlayer(t *testing.T) {
	h := newHarness(t)
	p := h.dial(t)
	p.enter("ann")
	if _, ok := h.pool.Lookup("ann"); !ok {
		t.Fatalf("ann not connected")
	}
	_ = p.conn.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := h.pool.Lookup("ann"); !ok && !h.hub.Online("ann") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ann still connected after close")
}

func TestNewerConnectionReplacesOlder(t *testing.T) {
	h := newHarness(t)
	first := h.dial(t)
	first.enter("ann")
	second := h.dial(t)
	start := time.Now()
	second.enter("ann")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("entered took %v behind the replaced connection", elapsed)
	}

	// the replaced session must not disconnect the newer one
	time.Sleep(100 * time.Millisecond)
	if _, ok := h.pool.Lookup("ann"); !ok || !h.hub.Online("ann") {
		t.Fatalf("ann dropped after reconnect")
	}
}

type failingConnect struct {
	Service
	fail atomic.Bool
}

func (f *failingConnect) ConnectVia(ctx context.Context, playerID, handle string) (domain.Player, error) {
	if f.fail.Load() {
		return domain.Player{}, errors.New("player store unavailable")
	}
	return f.Service.ConnectVia(ctx, playerID, handle)
}

func TestFailedReconnectReleasesPlayer(t *testing.T) {
	svc := &failingConnect{}
	h := newHarnessWith(t, func(s Service) Service {
		svc.Service = s
		return svc
	})
	first := h.dial(t)
	first.enter("ann")
	first.write(dueldto.ClientFrame{Type: dueldto.FrameReady})
	deadline := time.Now().Add(3 * time.Second)
	for len(h.pool.Free()) < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if free := h.pool.Free(); len(free) != 1 || free[0] != "ann" {
		t.Fatalf("free = %v", free)
	}

	svc.fail.Store(true)
	second := h.dial(t)
	second.write(dueldto.ClientFrame{Type: dueldto.FrameEnter, PlayerID: "ann"})
	second.expect(dueldto.FrameInvalid)

	deadline = time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := h.pool.Lookup("ann"); !ok && !h.hub.Online("ann") && len(h.pool.Free()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ann still matchable after a failed reconnect: free=%v", h.pool.Free())
}
