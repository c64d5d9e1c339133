package msgcat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/park285/duel-arena/internal/domain"
)

func TestEmbeddedReasonsCoverTaxonomy(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, e := range []*domain.Error{
		domain.ErrUnknownPlayer, domain.ErrAlreadyInMatch, domain.ErrPlayerUnavailable,
		domain.ErrOutOfTurn, domain.ErrNotInProgress, domain.ErrIllegalAction,
		domain.ErrNotInMatch, domain.ErrNotParticipant, domain.ErrNotAPlayer, domain.ErrInvalidSkills,
	} {
		if !c.Has("reason." + e.Code) {
			t.Fatalf("missing reason.%s", e.Code)
		}
	}
	got := c.Reason("ann", fmt.Errorf("connect: %w", domain.ErrAlreadyInMatch))
	if got != "ann is already in a match." {
		t.Fatalf("reason = %q", got)
	}
	if got := c.Reason("ann", fmt.Errorf("boom")); got != "Something went wrong. Try again." {
		t.Fatalf("internal reason = %q", got)
	}
	if c.Reason("ann", nil) != "" {
		t.Fatalf("nil error should render empty")
	}
}

func TestMoveAndGameOver(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	at := time.Now()
	snap := domain.MatchSnapshot{
		ID: "m1",
		Participants: [2]domain.ParticipantState{
			{ID: "p1", Name: "Ann"},
			{ID: "p2", Name: ""},
		},
		Winner:     "p2",
		EndReason:  domain.EndMoveCap,
		FinishedAt: &at,
	}
	names := Names(snap)
	if got := c.Move(domain.Move{ActorID: "p1", Result: domain.ResultCritical, Value: 44}, names); got != "Ann lands a critical hit for 44!" {
		t.Fatalf("move = %q", got)
	}
	if got := c.Move(domain.Move{ActorID: "p2", Result: domain.ResultMiss}, names); got != "p2 attacks and misses." {
		t.Fatalf("miss = %q", got)
	}
	if got := c.GameOver(snap); got != "Move limit reached. p2 wins on points." {
		t.Fatalf("game over = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("a.yaml", "reason:\n  out_of_turn: \"Not yet, {{.PlayerID}}.\"\n")
	write("ignored.txt", "reason: nope")

	c, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := c.Reason("bob", domain.ErrOutOfTurn); got != "Not yet, bob." {
		t.Fatalf("override = %q", got)
	}

	write("b.yml", "reason:\n  out_of_turn: dup\n")
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestRenderErrors(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Render("nope", nil); err == nil {
		t.Fatalf("expected missing template error")
	}
	if _, err := c.Render("event.entered", map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if got, err := c.Render("event.entered", map[string]any{"Name": "Ann"}); err != nil || got != "Welcome to the arena, Ann." {
		t.Fatalf("render = %q %v", got, err)
	}
	if _, err := parseYAMLToFlat([]byte("a: 1")); err == nil {
		t.Fatalf("expected non-string leaf error")
	}
}
