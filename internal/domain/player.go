package domain

import "strings"

type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
	RoleAdmin     Role = "admin"
)

// ParseRole maps free-form input to a Role; unknown values become RolePlayer.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spectator":
		return RoleSpectator
	case "admin":
		return RoleAdmin
	default:
		return RolePlayer
	}
}

type Skills struct {
	Strength    int `json:"strength" yaml:"strength"`
	Agility     int `json:"agility" yaml:"agility"`
	Distraction int `json:"distraction" yaml:"distraction"`
}

func (s Skills) Sum() int { return s.Strength + s.Agility + s.Distraction }

// Player is the external identity the core references. Health is only
// meaningful while the player is a participant of a live match and is
// mutated exclusively by that match.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Skills    Skills `json:"skills"`
	MaxSkills int    `json:"max_skills"`
	Health    int    `json:"health"`
	Handle    string `json:"-"`
}

// ValidateSkills enforces the per-player cap before skills reach outcome rolls.
func ValidateSkills(p *Player) error {
	if p == nil {
		return ErrUnknownPlayer
	}
	s := p.Skills
	if s.Strength < 0 || s.Agility < 0 || s.Distraction < 0 {
		return ErrInvalidSkills
	}
	if s.Sum() > p.MaxSkills {
		return ErrInvalidSkills
	}
	return nil
}

func (p *Player) CanPlay() bool { return p != nil && p.Role != RoleSpectator }
