package arenaclient

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/duel-arena/internal/arena"
	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/internal/httpapi"
	"github.com/park285/duel-arena/internal/outcome"
	"github.com/park285/duel-arena/internal/players"
	"github.com/park285/duel-arena/internal/registry"
	"github.com/park285/duel-arena/internal/service/duel"
	"github.com/valyala/fasthttp"
)

func serve(t *testing.T, handler fasthttp.RequestHandler) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return "http://" + ln.Addr().String()
}

func serveArena(t *testing.T) string {
	t.Helper()
	src := players.NewMemorySource(domain.Player{ID: "ann", Name: "Ann"}, domain.Player{ID: "bob", Name: "Bob"})
	pool := arena.New(arena.Config{StartingHealth: 100}, registry.New(), outcome.NewSeeded(outcome.DefaultConfig(), 5, 6))
	svc, err := duel.NewService(pool, src, nil, nil, duel.Config{}, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	app := httpapi.New(httpapi.Deps{Service: svc})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestClientAgainstArena(t *testing.T) {
	c := New(serveArena(t), WithTimeout(3*time.Second))
	ctx := context.Background()

	for _, id := range []string{"ann", "bob"} {
		if _, err := c.Connect(ctx, id); err != nil {
			t.Fatalf("Connect %s: %v", id, err)
		}
		if err := c.MarkAvailable(ctx, id); err != nil {
			t.Fatalf("MarkAvailable %s: %v", id, err)
		}
	}
	m, err := c.StartMatch(ctx, "ann", "", "")
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	if m.Turn != "ann" {
		t.Fatalf("turn = %s", m.Turn)
	}

	if _, err := c.SubmitMove(ctx, "bob", "attack"); Code(err) != "out_of_turn" {
		t.Fatalf("expected out_of_turn, got %v", err)
	}
	mv, err := c.SubmitMove(ctx, "ann", "heal")
	if err != nil {
		t.Fatalf("SubmitMove: %v", err)
	}
	if mv.Move.Result != "heal" || mv.Match.Turn != "bob" {
		t.Fatalf("move = %+v", mv)
	}

	got, err := c.Match(ctx, m.ID)
	if err != nil || len(got.Moves) != 1 {
		t.Fatalf("Match: %v %+v", err, got)
	}
	h, err := c.Health(ctx)
	if err != nil || h.LiveMatches != 1 || h.Players != 2 {
		t.Fatalf("Health: %v %+v", err, h)
	}
	if _, err := c.Connect(ctx, "ghost"); Code(err) != "unknown_player" {
		t.Fatalf("expected unknown_player, got %v", err)
	}
	hist, err := c.History(ctx, "ann", 5)
	if err != nil || len(hist) != 0 {
		t.Fatalf("History: %v %+v", err, hist)
	}
}

func TestReadsRetryServerErrors(t *testing.T) {
	var calls atomic.Int32
	base := serve(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"status":"ok","players":1,"free":0,"live_matches":0}`)
	})
	c := New(base, WithRetry(3))
	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Players != 1 || calls.Load() != 3 {
		t.Fatalf("players=%d calls=%d", h.Players, calls.Load())
	}
}

func TestCommandsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	base := serve(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		ctx.SetBodyString("down")
	})
	c := New(base, WithRetry(3))
	err := c.MarkAvailable(context.Background(), "ann")
	if err == nil {
		t.Fatalf("expected error")
	}
	ae, ok := err.(*APIError)
	if !ok || ae.Status != fasthttp.StatusServiceUnavailable || ae.Message != "down" {
		t.Fatalf("error = %#v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestHeaderProvider(t *testing.T) {
	var seen atomic.Value
	base := serve(t, func(ctx *fasthttp.RequestCtx) {
		seen.Store(string(ctx.Request.Header.Peek("X-Trace")))
		ctx.SetBodyString(`[]`)
	})
	c := New(base, WithHeaderProvider(func() map[string]string { return map[string]string{"X-Trace": "abc", "": "skip"} }))
	if _, err := c.Players(context.Background()); err != nil {
		t.Fatalf("Players: %v", err)
	}
	if seen.Load() != "abc" {
		t.Fatalf("header = %v", seen.Load())
	}
}

func TestBackoff(t *testing.T) {
	if backoffDuration(0) != 100*time.Millisecond || backoffDuration(3) != 400*time.Millisecond || backoffDuration(10) != 3200*time.Millisecond {
		t.Fatalf("unexpected backoff schedule")
	}
}
