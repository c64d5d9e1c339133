package duel

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/duel-arena/internal/arena"
	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/internal/notify"
	"github.com/park285/duel-arena/internal/players"
	"go.uber.org/zap"
)

// Kicker asks the matchmaking loop for an extra run. It must not block.
type Kicker interface {
	Kick()
}

type Config struct {
	// ForfeitOnDisconnect ends a live match in the opponent's favor when a participant leaves.
	ForfeitOnDisconnect bool
}

// Service is the inbound command surface shared by the websocket and REST transports.
type Service struct {
	pool     *arena.Pool
	source   players.Source
	notifier notify.Notifier
	kicker   Kicker
	cfg      Config
	logger   *zap.Logger
}

func NewService(pool *arena.Pool, source players.Source, notifier notify.Notifier, kicker Kicker, cfg Config, logger *zap.Logger) (*Service, error) {
	if pool == nil {
		return nil, errors.New("duel service requires an arena pool")
	}
	if source == nil {
		return nil, errors.New("duel service requires a player source")
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pool: pool, source: source, notifier: notifier, kicker: kicker, cfg: cfg, logger: logger}, nil
}

func (s *Service) Pool() *arena.Pool { return s.pool }

// Connect looks the player up and adds them to the arena.
func (s *Service) Connect(ctx context.Context, playerID string) (domain.Player, error) {
	return s.ConnectVia(ctx, playerID, "")
}

// ConnectVia is Connect for a transport session; handle is stored on the
// pooled player record and never interpreted.
func (s *Service) ConnectVia(ctx context.Context, playerID, handle string) (domain.Player, error) {
	pl, err := s.source.Lookup(ctx, playerID)
	if err != nil {
		if errors.Is(err, players.ErrNotFound) {
			return domain.Player{}, s.reject(ctx, playerID, domain.ErrUnknownPlayer)
		}
		s.logger.Error("player_lookup_failed", zap.String("player_id", playerID), zap.Error(err))
		return domain.Player{}, fmt.Errorf("lookup player %s: %w", playerID, err)
	}
	pl.Handle = handle
	if err := s.pool.PlayerConnected(ctx, pl); err != nil {
		return domain.Player{}, s.reject(ctx, playerID, err)
	}
	s.logger.Info("arena_connect",
		zap.String("player_id", pl.ID),
		zap.String("role", string(pl.Role)),
		zap.Bool("in_game", s.pool.IsInGame(pl.ID)),
	)
	s.kick()
	return *pl, nil
}

// Disconnect removes the player from the arena and applies the disconnect policy
// to a live match.
func (s *Service) Disconnect(ctx context.Context, playerID string) {
	s.pool.PlayerDisconnected(ctx, playerID)
	s.logger.Info("arena_disconnect", zap.String("player_id", playerID))
	if !s.cfg.ForfeitOnDisconnect {
		return
	}
	m, ok := s.pool.Registry().FindByParticipant(playerID)
	if !ok {
		return
	}
	if err := m.Forfeit(ctx, playerID); err != nil && !errors.Is(err, domain.ErrNotInProgress) {
		s.logger.Warn("disconnect_forfeit_failed", zap.String("player_id", playerID), zap.String("match_id", m.ID()), zap.Error(err))
		return
	}
	s.kick()
}

func (s *Service) MarkAvailable(ctx context.Context, playerID string) error {
	if err := s.pool.MarkAvailable(ctx, playerID); err != nil {
		return s.reject(ctx, playerID, err)
	}
	s.kick()
	return nil
}

// RequestMatch starts a match; empty ids are drawn from the free queue.
// requesterID only scopes the rejection notification.
func (s *Service) RequestMatch(ctx context.Context, requesterID, player1ID, player2ID string) (domain.MatchSnapshot, error) {
	m, err := s.pool.StartMatch(ctx, player1ID, player2ID)
	if err != nil {
		return domain.MatchSnapshot{}, s.reject(ctx, requesterID, err)
	}
	return m.Snapshot(), nil
}

// SubmitMove plays action in the player's live match.
func (s *Service) SubmitMove(ctx context.Context, playerID, action string) (domain.Move, domain.MatchSnapshot, error) {
	act, err := domain.ParseAction(action)
	if err != nil {
		return domain.Move{}, domain.MatchSnapshot{}, s.reject(ctx, playerID, err)
	}
	m, ok := s.pool.Registry().FindByParticipant(playerID)
	if !ok {
		return domain.Move{}, domain.MatchSnapshot{}, s.reject(ctx, playerID, domain.ErrNotInMatch)
	}
	mv, err := m.Play(ctx, playerID, act)
	if err != nil {
		return domain.Move{}, domain.MatchSnapshot{}, s.reject(ctx, playerID, err)
	}
	snap := m.Snapshot()
	if snap.State == domain.StateFinished {
		s.kick()
	}
	return mv, snap, nil
}

// Forfeit: 플레이어가 참가 중인 대국을 기권 처리.
func (s *Service) Forfeit(ctx context.Context, playerID string) (domain.MatchSnapshot, error) {
	m, ok := s.pool.Registry().FindByParticipant(playerID)
	if !ok {
		return domain.MatchSnapshot{}, s.reject(ctx, playerID, domain.ErrNotInMatch)
	}
	if err := m.Forfeit(ctx, playerID); err != nil {
		return domain.MatchSnapshot{}, s.reject(ctx, playerID, err)
	}
	s.kick()
	return m.Snapshot(), nil
}

// LiveMatch returns the snapshot of a live match by id.
func (s *Service) LiveMatch(matchID string) (domain.MatchSnapshot, bool) {
	m, ok := s.pool.Registry().Find(matchID)
	if !ok {
		return domain.MatchSnapshot{}, false
	}
	return m.Snapshot(), true
}

func (s *Service) LiveMatches() []domain.MatchSnapshot {
	list := s.pool.Registry().List()
	out := make([]domain.MatchSnapshot, 0, len(list))
	for _, m := range list {
		out = append(out, m.Snapshot())
	}
	return out
}

// MatchOf returns the live match the player takes part in.
func (s *Service) MatchOf(playerID string) (domain.MatchSnapshot, bool) {
	m, ok := s.pool.Registry().FindByParticipant(playerID)
	if !ok {
		return domain.MatchSnapshot{}, false
	}
	return m.Snapshot(), true
}

// Matchmake pairs free players; it is the scheduler's entry point.
func (s *Service) Matchmake(ctx context.Context) int {
	started := s.pool.Matchmake(ctx)
	if len(started) > 0 {
		s.logger.Debug("matchmake", zap.Int("started", len(started)), zap.Int("free", len(s.pool.Free())))
	}
	return len(started)
}

func (s *Service) reject(ctx context.Context, playerID string, err error) error {
	if domain.IsRejection(err) {
		s.notifier.InvalidRequest(ctx, playerID, err)
	}
	return err
}

func (s *Service) kick() {
	if s.kicker != nil {
		s.kicker.Kick()
	}
}
