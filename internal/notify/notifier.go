package notify

import (
	"context"

	"github.com/park285/duel-arena/internal/domain"
	"go.uber.org/zap"
)

// Notifier receives match state changes. Matches call it while holding their
// own lock, so implementations must not block on I/O and must not call back
// into a match or the arena synchronously.
type Notifier interface {
	MatchStarted(ctx context.Context, snap domain.MatchSnapshot)
	MatchResumed(ctx context.Context, playerID string, snap domain.MatchSnapshot)
	MovePlayed(ctx context.Context, snap domain.MatchSnapshot, mv domain.Move)
	MatchOver(ctx context.Context, snap domain.MatchSnapshot)
	InvalidRequest(ctx context.Context, playerID string, err error)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) MatchStarted(context.Context, domain.MatchSnapshot)            {}
func (Nop) MatchResumed(context.Context, string, domain.MatchSnapshot)    {}
func (Nop) MovePlayed(context.Context, domain.MatchSnapshot, domain.Move) {}
func (Nop) MatchOver(context.Context, domain.MatchSnapshot)               {}
func (Nop) InvalidRequest(context.Context, string, error)                 {}

// Fanout delivers each notification to every sink in order.
type Fanout []Notifier

func (f Fanout) MatchStarted(ctx context.Context, snap domain.MatchSnapshot) {
	for _, n := range f {
		n.MatchStarted(ctx, snap)
	}
}

func (f Fanout) MatchResumed(ctx context.Context, playerID string, snap domain.MatchSnapshot) {
	for _, n := range f {
		n.MatchResumed(ctx, playerID, snap)
	}
}

func (f Fanout) MovePlayed(ctx context.Context, snap domain.MatchSnapshot, mv domain.Move) {
	for _, n := range f {
		n.MovePlayed(ctx, snap, mv)
	}
}

func (f Fanout) MatchOver(ctx context.Context, snap domain.MatchSnapshot) {
	for _, n := range f {
		n.MatchOver(ctx, snap)
	}
}

func (f Fanout) InvalidRequest(ctx context.Context, playerID string, err error) {
	for _, n := range f {
		n.InvalidRequest(ctx, playerID, err)
	}
}

// Log writes every notification as a structured log line.
type Log struct {
	Logger *zap.Logger
}

func (l Log) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l Log) MatchStarted(_ context.Context, snap domain.MatchSnapshot) {
	l.logger().Info("match_start",
		zap.String("match_id", snap.ID),
		zap.String("player1_id", snap.Participants[0].ID),
		zap.String("player2_id", snap.Participants[1].ID),
	)
}

func (l Log) MatchResumed(_ context.Context, playerID string, snap domain.MatchSnapshot) {
	l.logger().Info("match_resume", zap.String("match_id", snap.ID), zap.String("player_id", playerID))
}

func (l Log) MovePlayed(_ context.Context, snap domain.MatchSnapshot, mv domain.Move) {
	l.logger().Info("match_move",
		zap.String("match_id", snap.ID),
		zap.Int("seq", mv.Seq),
		zap.String("actor_id", mv.ActorID),
		zap.String("action", string(mv.Action)),
		zap.String("result", string(mv.Result)),
		zap.Int("value", mv.Value),
		zap.Int("player1_health", snap.Participants[0].Health),
		zap.Int("player2_health", snap.Participants[1].Health),
	)
}

func (l Log) MatchOver(_ context.Context, snap domain.MatchSnapshot) {
	l.logger().Info("match_over",
		zap.String("match_id", snap.ID),
		zap.String("winner", snap.Winner),
		zap.String("end_reason", string(snap.EndReason)),
		zap.Int("moves", len(snap.Moves)),
	)
}

func (l Log) InvalidRequest(_ context.Context, playerID string, err error) {
	l.logger().Warn("invalid_request",
		zap.String("player_id", playerID),
		zap.String("code", domain.ReasonCode(err)),
		zap.Error(err),
	)
}
