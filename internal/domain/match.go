package domain

import (
	"strings"
	"time"
)

type Action string

const (
	ActionAttack Action = "attack"
	ActionHeal   Action = "heal"
)

// ParseAction returns ErrIllegalAction for anything other than attack or heal.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionAttack:
		return ActionAttack, nil
	case ActionHeal:
		return ActionHeal, nil
	default:
		return "", ErrIllegalAction
	}
}

type Result string

const (
	ResultMiss     Result = "miss"
	ResultHit      Result = "hit"
	ResultCritical Result = "critical"
	ResultHeal     Result = "heal"
)

// Outcome is a resolved roll before it is bound to a match.
type Outcome struct {
	Result Result
	Value  int
}

// Move is immutable once appended to a match log.
type Move struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	Seq       int       `json:"seq"`
	ActorID   string    `json:"actor_id"`
	Action    Action    `json:"action"`
	Result    Result    `json:"result"`
	Value     int       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type MatchState string

const (
	StateInProgress MatchState = "IN_PROGRESS"
	StateFinished   MatchState = "FINISHED"
)

type EndReason string

const (
	EndKnockout EndReason = "knockout"
	EndMoveCap  EndReason = "move_cap"
	EndForfeit  EndReason = "forfeit"
)

type ParticipantState struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Health      int    `json:"health"`
	DamageDealt int    `json:"damage_dealt"`
}

// MatchSnapshot is a point-in-time copy of a match; it shares no memory with it.
type MatchSnapshot struct {
	ID           string              `json:"id"`
	State        MatchState          `json:"state"`
	Participants [2]ParticipantState `json:"participants"`
	Turn         string              `json:"turn,omitempty"`
	Winner       string              `json:"winner,omitempty"`
	EndReason    EndReason           `json:"end_reason,omitempty"`
	MoveCap      int                 `json:"move_cap"`
	Moves        []Move              `json:"moves"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}

func (s MatchSnapshot) ParticipantIDs() [2]string {
	return [2]string{s.Participants[0].ID, s.Participants[1].ID}
}

func (s MatchSnapshot) HasParticipant(playerID string) bool {
	return s.Participants[0].ID == playerID || s.Participants[1].ID == playerID
}

func (s MatchSnapshot) LastMove() *Move {
	if len(s.Moves) == 0 {
		return nil
	}
	mv := s.Moves[len(s.Moves)-1]
	return &mv
}
