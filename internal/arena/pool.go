package arena

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/internal/match"
	"github.com/park285/duel-arena/internal/notify"
	"github.com/park285/duel-arena/internal/registry"
)

type Config struct {
	StartingHealth int
	MoveCap        int
	// PreferUnplayed draws implicit opponents the other participant has not faced yet.
	PreferUnplayed bool
}

type Option func(*Pool)

func WithNotifier(n notify.Notifier) Option {
	return func(p *Pool) {
		if n != nil {
			p.notifier = n
		}
	}
}

func WithMatchIDs(next func() string) Option {
	return func(p *Pool) {
		if next != nil {
			p.newID = next
		}
	}
}

// WithMatchOptions appends options applied to every match the pool creates.
func WithMatchOptions(opts ...match.Option) Option {
	return func(p *Pool) { p.matchOpts = append(p.matchOpts, opts...) }
}

// Pool tracks connected and free players and pairs them into matches.
// connected, free and played are guarded by one lock so that no two
// StartMatch calls can take the same free player.
type Pool struct {
	cfg       Config
	registry  *registry.Registry
	resolver  match.Resolver
	notifier  notify.Notifier
	newID     func() string
	matchOpts []match.Option

	mu        sync.Mutex
	connected map[string]*domain.Player
	free      []string
	played    map[string]map[string]struct{}
}

func New(cfg Config, reg *registry.Registry, resolver match.Resolver, opts ...Option) *Pool {
	if reg == nil || resolver == nil {
		panic("arena: registry and resolver are required")
	}
	p := &Pool{
		cfg:       cfg,
		registry:  reg,
		resolver:  resolver,
		notifier:  notify.Nop{},
		newID:     uuid.NewString,
		connected: make(map[string]*domain.Player),
		played:    make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) Registry() *registry.Registry { return p.registry }

// PlayerConnected adds pl to the connected set. A player who is still a
// participant of a live match is told about it instead of becoming free.
func (p *Pool) PlayerConnected(ctx context.Context, pl *domain.Player) error {
	if pl == nil || pl.ID == "" {
		return domain.ErrUnknownPlayer
	}
	if err := domain.ValidateSkills(pl); err != nil {
		return fmt.Errorf("connect %s: %w", pl.ID, err)
	}
	cp := *pl
	cp.Health = 0

	p.mu.Lock()
	p.connected[cp.ID] = &cp
	p.mu.Unlock()

	if m, ok := p.registry.FindByParticipant(cp.ID); ok {
		p.notifier.MatchResumed(ctx, cp.ID, m.Snapshot())
	}
	return nil
}

// MarkAvailable queues a connected player for pairing. Repeated calls are no-ops.
func (p *Pool) MarkAvailable(_ context.Context, playerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pl, ok := p.connected[playerID]
	if !ok {
		return domain.ErrUnknownPlayer
	}
	if !pl.CanPlay() {
		return domain.ErrNotAPlayer
	}
	if _, ok := p.registry.FindByParticipant(playerID); ok {
		return domain.ErrAlreadyInMatch
	}
	if !slices.Contains(p.free, playerID) {
		p.free = append(p.free, pl.ID)
	}
	return nil
}

// StartMatch pairs two free players. Either id may be empty, in which case
// the next eligible free player is drawn. player1 moves first.
func (p *Pool) StartMatch(ctx context.Context, player1ID, player2ID string) (*match.Match, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(ctx, player1ID, player2ID)
}

// Matchmake pairs free players in queue order until fewer than two remain.
func (p *Pool) Matchmake(ctx context.Context) []*match.Match {
	p.mu.Lock()
	defer p.mu.Unlock()

	var started []*match.Match
	for len(p.free) >= 2 {
		m, err := p.startLocked(ctx, "", "")
		if err != nil {
			break
		}
		started = append(started, m)
	}
	return started
}

// PlayerDisconnected는 플레이어를 제거. 진행 중인 대국은 건드리지 않음.
func (p *Pool) PlayerDisconnected(_ context.Context, playerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.connected, playerID)
	p.free = slices.DeleteFunc(p.free, func(id string) bool { return id == playerID })
}

func (p *Pool) startLocked(ctx context.Context, id1, id2 string) (*match.Match, error) {
	for _, id := range []string{id1, id2} {
		if id == "" {
			continue
		}
		if pl, ok := p.connected[id]; ok && !pl.CanPlay() {
			return nil, domain.ErrNotAPlayer
		}
		if !slices.Contains(p.free, id) {
			return nil, fmt.Errorf("%w: %s is not free", domain.ErrPlayerUnavailable, id)
		}
	}
	if id1 != "" && id1 == id2 {
		return nil, fmt.Errorf("%w: %s cannot face itself", domain.ErrPlayerUnavailable, id1)
	}
	if id1 == "" {
		id1 = p.draw(id2)
	}
	if id2 == "" {
		id2 = p.draw(id1)
	}
	if id1 == "" || id2 == "" {
		return nil, fmt.Errorf("%w: not enough free players", domain.ErrPlayerUnavailable)
	}

	pl1, pl2 := p.connected[id1], p.connected[id2]
	if pl1 == nil || pl2 == nil {
		// free는 항상 connected의 부분집합
		panic(fmt.Sprintf("arena: free player %q/%q not connected", id1, id2))
	}

	opts := append([]match.Option{
		match.WithNotifier(p.notifier),
		match.WithRetirer(p.registry),
	}, p.matchOpts...)
	m := match.New(p.newID(), pl1, pl2, p.resolver, match.Config{
		StartingHealth: p.cfg.StartingHealth,
		MoveCap:        p.cfg.MoveCap,
	}, opts...)
	if err := p.registry.Register(m); err != nil {
		return nil, fmt.Errorf("register match: %w", err)
	}
	p.free = slices.DeleteFunc(p.free, func(id string) bool { return id == id1 || id == id2 })
	p.markPlayed(id1, id2)

	p.notifier.MatchStarted(ctx, m.Snapshot())
	return m, nil
}

// draw는 exclude를 제외한 다음 대기 플레이어를 반환. 없으면 "".
func (p *Pool) draw(exclude string) string {
	if p.cfg.PreferUnplayed && exclude != "" {
		faced := p.played[exclude]
		for _, id := range p.free {
			if id == exclude {
				continue
			}
			if _, ok := faced[id]; !ok {
				return id
			}
		}
	}
	for _, id := range p.free {
		if id != exclude {
			return id
		}
	}
	return ""
}

func (p *Pool) markPlayed(a, b string) {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		set, ok := p.played[pair[0]]
		if !ok {
			set = make(map[string]struct{})
			p.played[pair[0]] = set
		}
		set[pair[1]] = struct{}{}
	}
}

// Lookup returns a copy of a connected player.
func (p *Pool) Lookup(playerID string) (domain.Player, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.connected[playerID]
	if !ok {
		return domain.Player{}, false
	}
	return *pl, true
}

// Players lists connected players ordered by id.
func (p *Pool) Players() []domain.Player {
	p.mu.Lock()
	out := make([]domain.Player, 0, len(p.connected))
	for _, pl := range p.connected {
		out = append(out, *pl)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Free returns the queue of players waiting for a match.
func (p *Pool) Free() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.free)
}

func (p *Pool) IsInGame(playerID string) bool {
	_, ok := p.registry.FindByParticipant(playerID)
	return ok
}
