package players

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/park285/duel-arena/internal/domain"
	"gopkg.in/yaml.v3"
)

const DefaultMaxSkills = 12

var ErrNotFound = errors.New("player not found")

// Source looks players up by id. Returned players are caller-owned copies.
type Source interface {
	Lookup(ctx context.Context, playerID string) (*domain.Player, error)
}

// MemorySource serves players from an in-process table.
type MemorySource struct {
	mu      sync.RWMutex
	players map[string]domain.Player
}

func NewMemorySource(list ...domain.Player) *MemorySource {
	s := &MemorySource{players: make(map[string]domain.Player, len(list))}
	for _, p := range list {
		s.Put(p)
	}
	return s
}

func (s *MemorySource) Put(p domain.Player) {
	if p.MaxSkills == 0 {
		p.MaxSkills = DefaultMaxSkills
	}
	if p.Role == "" {
		p.Role = domain.RolePlayer
	}
	s.mu.Lock()
	s.players[p.ID] = p
	s.mu.Unlock()
}

func (s *MemorySource) Lookup(_ context.Context, playerID string) (*domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// All lists the table ordered by id.
func (s *MemorySource) All() []domain.Player {
	s.mu.RLock()
	out := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type rosterFile struct {
	MaxSkills int           `yaml:"max_skills"`
	Players   []rosterEntry `yaml:"players"`
}

type rosterEntry struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Role      string        `yaml:"role"`
	MaxSkills int           `yaml:"max_skills"`
	Skills    domain.Skills `yaml:"skills"`
}

// ParseRoster decodes a YAML roster. Every entry is validated against its skill cap.
func ParseRoster(data []byte, defaultMaxSkills int) ([]domain.Player, error) {
	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if rf.MaxSkills > 0 {
		defaultMaxSkills = rf.MaxSkills
	}
	if defaultMaxSkills <= 0 {
		defaultMaxSkills = DefaultMaxSkills
	}
	seen := make(map[string]struct{}, len(rf.Players))
	out := make([]domain.Player, 0, len(rf.Players))
	for i, e := range rf.Players {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("roster entry %d: id is required", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("roster entry %d: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}
		p := domain.Player{
			ID:        id,
			Name:      strings.TrimSpace(e.Name),
			Role:      domain.ParseRole(e.Role),
			Skills:    e.Skills,
			MaxSkills: e.MaxSkills,
		}
		if p.Name == "" {
			p.Name = id
		}
		if p.MaxSkills <= 0 {
			p.MaxSkills = defaultMaxSkills
		}
		if err := domain.ValidateSkills(&p); err != nil {
			return nil, fmt.Errorf("roster entry %q: %w", id, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func LoadRoster(path string, defaultMaxSkills int) ([]domain.Player, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data, defaultMaxSkills)
}
