package scorecard

import (
	"bytes"
	"context"
	"image/png"
	"testing"
	"time"

	"github.com/park285/duel-arena/internal/domain"
)

func sampleSnapshot() domain.MatchSnapshot {
	return domain.MatchSnapshot{
		ID:    "3f0c2a8e-aaaa-bbbb-cccc-000000000000",
		State: domain.StateInProgress,
		Participants: [2]domain.ParticipantState{
			{ID: "ann", Name: "Ann", Health: 80, DamageDealt: 20},
			{ID: "bob", Health: 15, DamageDealt: 0},
		},
		Turn:      "bob",
		MoveCap:   20,
		StartedAt: time.Unix(1_700_000_000, 0),
	}
}

func TestRenderProducesPNG(t *testing.T) {
	data, err := Render(context.Background(), sampleSnapshot(), 100)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != cardWidth || b.Dy() != cardHeight {
		t.Fatalf("bounds = %v", b)
	}
}

func TestRenderFinishedMatchUsesCrown(t *testing.T) {
	snap := sampleSnapshot()
	snap.State = domain.StateFinished
	snap.Winner = "ann"
	snap.EndReason = domain.EndForfeit
	snap.Turn = ""
	if _, err := Render(context.Background(), snap, 0); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := statusLine(snap); got != "Ann wins (forfeit) after 0 moves" {
		t.Fatalf("status = %q", got)
	}
}

func TestRenderRejectsEmptySnapshot(t *testing.T) {
	if _, err := Render(context.Background(), domain.MatchSnapshot{}, 100); err == nil {
		t.Fatalf("expected error for snapshot without id")
	}
}

func TestRenderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Render(ctx, sampleSnapshot(), 100); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestBarGeometry(t *testing.T) {
	cases := []struct {
		health, full, track, want int
	}{
		{100, 100, 400, 400},
		{50, 100, 400, 200},
		{0, 100, 400, 0},
		{-5, 100, 400, 0},
		{150, 100, 400, 400},
	}
	for _, c := range cases {
		if got := barWidth(c.health, c.full, c.track); got != c.want {
			t.Fatalf("barWidth(%d,%d,%d) = %d, want %d", c.health, c.full, c.track, got, c.want)
		}
	}
	if barColor(90, 100) != barHighColor || barColor(30, 100) != barMidColor || barColor(10, 100) != barLowColor {
		t.Fatalf("unexpected bar colors")
	}
	if fullHealth(domain.MatchSnapshot{Participants: [2]domain.ParticipantState{{Health: 130}, {Health: 20}}}, 0) != 130 {
		t.Fatalf("fullHealth should follow the highest health")
	}
}

func TestStatusLineInProgress(t *testing.T) {
	if got := statusLine(sampleSnapshot()); got != "bob to move, 0 moves played of 20" {
		t.Fatalf("status = %q", got)
	}
	if got := headerLine(sampleSnapshot()); got != "Ann vs bob  #3f0c2a8e" {
		t.Fatalf("header = %q", got)
	}
}
