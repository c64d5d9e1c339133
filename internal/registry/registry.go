package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/park285/duel-arena/internal/match"
)

var ErrDuplicateMatch = errors.New("match already registered")

// Registry indexes live matches by id and by participant. It does not enforce
// that a player is in at most one match; the arena does that.
type Registry struct {
	mu       sync.RWMutex
	matches  map[string]*match.Match
	byPlayer map[string]string
}

func New() *Registry {
	return &Registry{
		matches:  make(map[string]*match.Match),
		byPlayer: make(map[string]string),
	}
}

func (r *Registry) Register(m *match.Match) error {
	if m == nil {
		return errors.New("nil match")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[m.ID()]; ok {
		return ErrDuplicateMatch
	}
	r.matches[m.ID()] = m
	for _, id := range m.Participants() {
		r.byPlayer[id] = m.ID()
	}
	return nil
}

func (r *Registry) Find(matchID string) (*match.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	return m, ok
}

func (r *Registry) FindByParticipant(playerID string) (*match.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	m, ok := r.matches[id]
	return m, ok
}

// Retire drops a match. Unknown ids are ignored.
func (r *Registry) Retire(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return
	}
	delete(r.matches, matchID)
	for _, id := range m.Participants() {
		if r.byPlayer[id] == matchID {
			delete(r.byPlayer, id)
		}
	}
}

// List returns live matches ordered by start time.
func (r *Registry) List() []*match.Match {
	r.mu.RLock()
	out := make([]*match.Match, 0, len(r.matches))
	for _, m := range r.matches {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].StartedAt(), out[j].StartedAt()
		if a.Equal(b) {
			return out[i].ID() < out[j].ID()
		}
		return a.Before(b)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}
