package dueldto

import (
	"time"

	"github.com/park285/duel-arena/internal/domain"
)

type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Strength  int    `json:"strength"`
	Agility   int    `json:"agility"`
	Distract  int    `json:"distraction"`
	MaxSkills int    `json:"max_skills"`
	InGame    bool   `json:"in_game"`
	Free      bool   `json:"free"`
}

type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Health      int    `json:"health"`
	DamageDealt int    `json:"damage_dealt"`
}

type Move struct {
	ID        string    `json:"id"`
	Seq       int       `json:"seq"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Value     int       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type Match struct {
	ID           string         `json:"id"`
	State        string         `json:"state"`
	Participants [2]Participant `json:"participants"`
	Turn         string         `json:"turn,omitempty"`
	Winner       string         `json:"winner,omitempty"`
	EndReason    string         `json:"end_reason,omitempty"`
	MoveCap      int            `json:"move_cap"`
	Moves        []Move         `json:"moves,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

type Result struct {
	MatchID    string    `json:"match_id"`
	Player1ID  string    `json:"player1_id"`
	Player2ID  string    `json:"player2_id"`
	WinnerID   string    `json:"winner_id"`
	EndReason  string    `json:"end_reason"`
	MoveCount  int       `json:"move_count"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}

func FromPlayer(p domain.Player) Player {
	return Player{
		ID:        p.ID,
		Name:      p.Name,
		Role:      string(p.Role),
		Strength:  p.Skills.Strength,
		Agility:   p.Skills.Agility,
		Distract:  p.Skills.Distraction,
		MaxSkills: p.MaxSkills,
	}
}

func FromMove(mv domain.Move) Move {
	return Move{
		ID:        mv.ID,
		Seq:       mv.Seq,
		ActorID:   mv.ActorID,
		Action:    string(mv.Action),
		Result:    string(mv.Result),
		Value:     mv.Value,
		Timestamp: mv.Timestamp,
	}
}

// FromSnapshot converts a snapshot; withMoves controls whether the log is included.
func FromSnapshot(s domain.MatchSnapshot, withMoves bool) Match {
	m := Match{
		ID:         s.ID,
		State:      string(s.State),
		Turn:       s.Turn,
		Winner:     s.Winner,
		EndReason:  string(s.EndReason),
		MoveCap:    s.MoveCap,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
	for i, p := range s.Participants {
		m.Participants[i] = Participant(p)
	}
	if withMoves {
		m.Moves = make([]Move, 0, len(s.Moves))
		for _, mv := range s.Moves {
			m.Moves = append(m.Moves, FromMove(mv))
		}
	}
	return m
}
