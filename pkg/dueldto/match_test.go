package dueldto

import (
	"testing"
	"time"

	"github.com/park285/duel-arena/internal/domain"
)

func TestFromSnapshot(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	snap := domain.MatchSnapshot{
		ID:    "m1",
		State: domain.StateFinished,
		Participants: [2]domain.ParticipantState{
			{ID: "a", Name: "Ann", Health: 40, DamageDealt: 60},
			{ID: "b", Name: "Bob", Health: -5, DamageDealt: 60},
		},
		Winner:     "a",
		EndReason:  domain.EndKnockout,
		Moves:      []domain.Move{{ID: "x", Seq: 1, ActorID: "a", Action: domain.ActionAttack, Result: domain.ResultCritical, Value: 45}},
		StartedAt:  at,
		FinishedAt: &at,
	}
	m := FromSnapshot(snap, true)
	if m.State != "FINISHED" || m.EndReason != "knockout" || m.Participants[1].Health != -5 {
		t.Fatalf("match = %+v", m)
	}
	if len(m.Moves) != 1 || m.Moves[0].Result != "critical" || m.Moves[0].Value != 45 {
		t.Fatalf("moves = %+v", m.Moves)
	}
	if brief := FromSnapshot(snap, false); brief.Moves != nil {
		t.Fatalf("moves should be omitted")
	}
}

func TestErrorBody(t *testing.T) {
	if (ErrorBody{Code: "out_of_turn"}).Error() != "out_of_turn" {
		t.Fatalf("code fallback")
	}
	if (ErrorBody{Code: "x", Message: "y"}).Error() != "y" {
		t.Fatalf("message preferred")
	}
	if (ErrorBody{}).Error() == "" {
		t.Fatalf("empty body should still describe itself")
	}
}
