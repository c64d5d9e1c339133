package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/internal/notify"
)

const DefaultStartingHealth = 100

// Resolver computes move outcomes from skills.
type Resolver interface {
	ResolveAttack(actor, opponent domain.Skills) domain.Outcome
	ResolveHeal() domain.Outcome
}

// Retirer removes a finished match from the set of live matches.
type Retirer interface {
	Retire(matchID string)
}

type Config struct {
	StartingHealth int
	// MoveCap: 허용된 수가 이 값에 도달하면 종료. 0이면 제한 없음
	MoveCap int
}

type Option func(*Match)

func WithNotifier(n notify.Notifier) Option {
	return func(m *Match) {
		if n != nil {
			m.notifier = n
		}
	}
}

func WithRetirer(r Retirer) Option {
	return func(m *Match) { m.retirer = r }
}

func WithClock(now func() time.Time) Option {
	return func(m *Match) {
		if now != nil {
			m.now = now
		}
	}
}

func WithMoveIDs(next func() string) Option {
	return func(m *Match) {
		if next != nil {
			m.newMoveID = next
		}
	}
}

// Match is a single two-player contest. All mutating operations are
// serialized by the match lock; at most one move is in flight at a time.
type Match struct {
	id        string
	cfg       Config
	resolver  Resolver
	notifier  notify.Notifier
	retirer   Retirer
	now       func() time.Time
	newMoveID func() string

	mu         sync.Mutex
	players    [2]domain.Player
	damage     [2]int
	state      domain.MatchState
	turn       string
	winner     string
	reason     domain.EndReason
	moves      []domain.Move
	startedAt  time.Time
	finishedAt *time.Time
}

// New creates an in-progress match where p1 moves first. The match keeps its
// own copy of both participants and owns their health for its lifetime.
// Invalid participants are a programming error and panic.
func New(id string, p1, p2 *domain.Player, resolver Resolver, cfg Config, opts ...Option) *Match {
	if p1 == nil || p2 == nil || p1.ID == "" || p2.ID == "" {
		panic("match: both participants are required")
	}
	if p1.ID == p2.ID {
		panic(fmt.Sprintf("match: participant %q cannot face itself", p1.ID))
	}
	if resolver == nil {
		panic("match: resolver is required")
	}
	if cfg.StartingHealth <= 0 {
		cfg.StartingHealth = DefaultStartingHealth
	}
	m := &Match{
		id:        id,
		cfg:       cfg,
		resolver:  resolver,
		notifier:  notify.Nop{},
		now:       time.Now,
		newMoveID: uuid.NewString,
		players:   [2]domain.Player{*p1, *p2},
		state:     domain.StateInProgress,
		turn:      p1.ID,
		moves:     []domain.Move{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.players[0].Health = cfg.StartingHealth
	m.players[1].Health = cfg.StartingHealth
	m.startedAt = m.now()
	return m
}

func (m *Match) ID() string { return m.id }

// Participants returns the participant ids in their fixed order.
func (m *Match) Participants() [2]string {
	return [2]string{m.players[0].ID, m.players[1].ID}
}

func (m *Match) HasParticipant(playerID string) bool {
	return m.index(playerID) >= 0
}

func (m *Match) Attack(ctx context.Context, actorID string) (domain.Move, error) {
	return m.Play(ctx, actorID, domain.ActionAttack)
}

func (m *Match) Heal(ctx context.Context, actorID string) (domain.Move, error) {
	return m.Play(ctx, actorID, domain.ActionHeal)
}

// Play는 actorID의 수를 적용하고 수락된 수를 반환.
func (m *Match) Play(ctx context.Context, actorID string, action domain.Action) (domain.Move, error) {
	if action != domain.ActionAttack && action != domain.ActionHeal {
		return domain.Move{}, domain.ErrIllegalAction
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != domain.StateInProgress {
		return domain.Move{}, domain.ErrNotInProgress
	}
	actor := m.index(actorID)
	if actor < 0 {
		return domain.Move{}, domain.ErrNotParticipant
	}
	if actorID != m.turn {
		return domain.Move{}, domain.ErrOutOfTurn
	}
	opponent := 1 - actor

	var out domain.Outcome
	switch action {
	case domain.ActionAttack:
		out = m.resolver.ResolveAttack(m.players[actor].Skills, m.players[opponent].Skills)
		mustValidAttack(out)
		m.players[opponent].Health -= out.Value
		m.damage[actor] += out.Value
	case domain.ActionHeal:
		out = m.resolver.ResolveHeal()
		mustValidHeal(out)
		m.players[actor].Health += out.Value
	}

	mv := domain.Move{
		ID:        m.newMoveID(),
		MatchID:   m.id,
		Seq:       len(m.moves) + 1,
		ActorID:   m.players[actor].ID,
		Action:    action,
		Result:    out.Result,
		Value:     out.Value,
		Timestamp: m.now(),
	}
	m.moves = append(m.moves, mv)
	m.turn = m.players[opponent].ID

	finished := m.evaluate()
	snap := m.snapshotLocked()
	m.notifier.MovePlayed(ctx, snap, mv)
	if finished {
		m.closeLocked(ctx, snap)
	}
	return mv, nil
}

// Forfeit: playerID의 상대 승리로 종료. 수 기록은 남기지 않음.
func (m *Match) Forfeit(ctx context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != domain.StateInProgress {
		return domain.ErrNotInProgress
	}
	idx := m.index(playerID)
	if idx < 0 {
		return domain.ErrNotParticipant
	}
	m.finish(1-idx, domain.EndForfeit)
	m.closeLocked(ctx, m.snapshotLocked())
	return nil
}

func (m *Match) IsOver() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == domain.StateFinished
}

// Winner returns the winner id, empty while the match is in progress.
func (m *Match) Winner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winner
}

// Turn returns the participant allowed to move next, empty once finished.
func (m *Match) Turn() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turn
}

func (m *Match) Snapshot() domain.MatchSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Match) StartedAt() time.Time { return m.startedAt }

// evaluate checks end conditions after an accepted move.
func (m *Match) evaluate() bool {
	switch {
	case m.players[0].Health <= 0 || m.players[1].Health <= 0:
		// 한 수에 한 참가자의 체력만 변함
		winner := 0
		if m.players[0].Health <= 0 {
			winner = 1
		}
		m.finish(winner, domain.EndKnockout)
	case m.cfg.MoveCap > 0 && len(m.moves) >= m.cfg.MoveCap:
		m.finish(m.tiebreak(), domain.EndMoveCap)
	default:
		return false
	}
	return true
}

// tiebreak: 준 피해량 → 현재 체력 → 선공 순으로 승자 결정.
func (m *Match) tiebreak() int {
	switch {
	case m.damage[0] != m.damage[1]:
		if m.damage[1] > m.damage[0] {
			return 1
		}
		return 0
	case m.players[0].Health != m.players[1].Health:
		if m.players[1].Health > m.players[0].Health {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func (m *Match) finish(winner int, reason domain.EndReason) {
	at := m.now()
	m.state = domain.StateFinished
	m.turn = ""
	m.winner = m.players[winner].ID
	m.reason = reason
	m.finishedAt = &at
}

func (m *Match) closeLocked(ctx context.Context, snap domain.MatchSnapshot) {
	m.notifier.MatchOver(ctx, snap)
	if m.retirer != nil {
		m.retirer.Retire(m.id)
	}
}

func (m *Match) snapshotLocked() domain.MatchSnapshot {
	snap := domain.MatchSnapshot{
		ID:        m.id,
		State:     m.state,
		Turn:      m.turn,
		Winner:    m.winner,
		EndReason: m.reason,
		MoveCap:   m.cfg.MoveCap,
		Moves:     append([]domain.Move(nil), m.moves...),
		StartedAt: m.startedAt,
	}
	for i := range m.players {
		snap.Participants[i] = domain.ParticipantState{
			ID:          m.players[i].ID,
			Name:        m.players[i].Name,
			Health:      m.players[i].Health,
			DamageDealt: m.damage[i],
		}
	}
	if m.finishedAt != nil {
		at := *m.finishedAt
		snap.FinishedAt = &at
	}
	return snap
}

func (m *Match) index(playerID string) int {
	switch playerID {
	case "":
		return -1
	case m.players[0].ID:
		return 0
	case m.players[1].ID:
		return 1
	default:
		return -1
	}
}

func mustValidAttack(out domain.Outcome) {
	ok := out.Value >= 0 &&
		(out.Result == domain.ResultMiss && out.Value == 0 ||
			out.Result == domain.ResultHit || out.Result == domain.ResultCritical)
	if !ok {
		panic(fmt.Sprintf("match: resolver returned invalid attack outcome %+v", out))
	}
}

func mustValidHeal(out domain.Outcome) {
	if out.Result != domain.ResultHeal || out.Value < 0 {
		panic(fmt.Sprintf("match: resolver returned invalid heal outcome %+v", out))
	}
}
