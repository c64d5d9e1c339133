package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/internal/sqldb"
)

var ErrNotFinished = errors.New("match is not finished")

// Result is the persisted summary of a finished match.
type Result struct {
	MatchID    string           `json:"match_id"`
	Player1ID  string           `json:"player1_id"`
	Player2ID  string           `json:"player2_id"`
	WinnerID   string           `json:"winner_id"`
	EndReason  domain.EndReason `json:"end_reason"`
	MoveCount  int              `json:"move_count"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Duration   time.Duration    `json:"duration_ms"`
}

// ResultFromSnapshot summarizes a finished snapshot.
func ResultFromSnapshot(snap domain.MatchSnapshot) (Result, error) {
	if snap.State != domain.StateFinished || snap.FinishedAt == nil {
		return Result{}, ErrNotFinished
	}
	d := snap.FinishedAt.Sub(snap.StartedAt)
	if d < 0 {
		d = 0
	}
	return Result{
		MatchID:    snap.ID,
		Player1ID:  snap.Participants[0].ID,
		Player2ID:  snap.Participants[1].ID,
		WinnerID:   snap.Winner,
		EndReason:  snap.EndReason,
		MoveCount:  len(snap.Moves),
		StartedAt:  snap.StartedAt.UTC(),
		FinishedAt: snap.FinishedAt.UTC(),
		Duration:   d,
	}, nil
}

type Results interface {
	SaveResult(ctx context.Context, snap domain.MatchSnapshot) error
	RecentByPlayer(ctx context.Context, playerID string, limit int) ([]Result, error)
	Moves(ctx context.Context, matchID string) ([]domain.Move, error)
}

// SQLResults stores results in duel_matches and duel_moves.
type SQLResults struct {
	db *sqldb.DB
}

func NewSQLResults(db *sqldb.DB) *SQLResults { return &SQLResults{db: db} }

func (r *SQLResults) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS duel_matches (
			match_id       TEXT PRIMARY KEY,
			player1_id     TEXT NOT NULL,
			player2_id     TEXT NOT NULL,
			winner_id      TEXT NOT NULL,
			end_reason     TEXT NOT NULL,
			move_count     INTEGER NOT NULL,
			started_at_ms  BIGINT NOT NULL,
			finished_at_ms BIGINT NOT NULL,
			duration_ms    BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS duel_matches_player1_idx ON duel_matches (player1_id, finished_at_ms)`,
		`CREATE INDEX IF NOT EXISTS duel_matches_player2_idx ON duel_matches (player2_id, finished_at_ms)`,
		`CREATE TABLE IF NOT EXISTS duel_moves (
			match_id     TEXT NOT NULL,
			seq          INTEGER NOT NULL,
			move_id      TEXT NOT NULL,
			actor_id     TEXT NOT NULL,
			action       TEXT NOT NULL,
			result       TEXT NOT NULL,
			value        INTEGER NOT NULL,
			played_at_ms BIGINT NOT NULL,
			PRIMARY KEY (match_id, seq)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure results schema: %w", err)
		}
	}
	return nil
}

// SaveResult upserts the match row and replaces its move log.
func (r *SQLResults) SaveResult(ctx context.Context, snap domain.MatchSnapshot) error {
	res, err := ResultFromSnapshot(snap)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	d := r.db.Dialect
	_, err = tx.ExecContext(ctx, d.Rebind(`
		INSERT INTO duel_matches (
			match_id, player1_id, player2_id, winner_id, end_reason,
			move_count, started_at_ms, finished_at_ms, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id) DO UPDATE SET
			player1_id = excluded.player1_id,
			player2_id = excluded.player2_id,
			winner_id = excluded.winner_id,
			end_reason = excluded.end_reason,
			move_count = excluded.move_count,
			started_at_ms = excluded.started_at_ms,
			finished_at_ms = excluded.finished_at_ms,
			duration_ms = excluded.duration_ms`),
		res.MatchID, res.Player1ID, res.Player2ID, res.WinnerID, string(res.EndReason),
		res.MoveCount, sqldb.ToMillis(res.StartedAt), sqldb.ToMillis(res.FinishedAt), res.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("upsert duel match: %w", err)
	}
	if _, err := tx.ExecContext(ctx, d.Rebind(`DELETE FROM duel_moves WHERE match_id = ?`), res.MatchID); err != nil {
		return fmt.Errorf("clear duel moves: %w", err)
	}
	insert := d.Rebind(`
		INSERT INTO duel_moves (match_id, seq, move_id, actor_id, action, result, value, played_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, mv := range snap.Moves {
		if _, err := tx.ExecContext(ctx, insert,
			res.MatchID, mv.Seq, mv.ID, mv.ActorID, string(mv.Action), string(mv.Result), mv.Value, sqldb.ToMillis(mv.Timestamp),
		); err != nil {
			return fmt.Errorf("insert duel move %d: %w", mv.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLResults) RecentByPlayer(ctx context.Context, playerID string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(`
		SELECT match_id, player1_id, player2_id, winner_id, end_reason,
			move_count, started_at_ms, finished_at_ms, duration_ms
		FROM duel_matches
		WHERE player1_id = ? OR player2_id = ?
		ORDER BY finished_at_ms DESC, match_id DESC
		LIMIT ?`), playerID, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select duel matches: %w", err)
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var (
			res                      Result
			reason                   string
			startMS, finishMS, durMS int64
		)
		if err := rows.Scan(&res.MatchID, &res.Player1ID, &res.Player2ID, &res.WinnerID, &reason,
			&res.MoveCount, &startMS, &finishMS, &durMS); err != nil {
			return nil, fmt.Errorf("scan duel match: %w", err)
		}
		res.EndReason = domain.EndReason(reason)
		res.StartedAt = sqldb.FromMillis(startMS)
		res.FinishedAt = sqldb.FromMillis(finishMS)
		res.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *SQLResults) Moves(ctx context.Context, matchID string) ([]domain.Move, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(`
		SELECT seq, move_id, actor_id, action, result, value, played_at_ms
		FROM duel_moves
		WHERE match_id = ?
		ORDER BY seq`), matchID)
	if err != nil {
		return nil, fmt.Errorf("select duel moves: %w", err)
	}
	defer rows.Close()

	var out []domain.Move
	for rows.Next() {
		var (
			mv             domain.Move
			action, result string
			playedMS       int64
		)
		if err := rows.Scan(&mv.Seq, &mv.ID, &mv.ActorID, &action, &result, &mv.Value, &playedMS); err != nil {
			return nil, fmt.Errorf("scan duel move: %w", err)
		}
		mv.MatchID = matchID
		mv.Action = domain.Action(action)
		mv.Result = domain.Result(result)
		mv.Timestamp = sqldb.FromMillis(playedMS)
		out = append(out, mv)
	}
	return out, rows.Err()
}

// MemoryResults is the in-process fallback used when no database is configured.
type MemoryResults struct {
	mu      sync.RWMutex
	results map[string]Result
	moves   map[string][]domain.Move
}

func NewMemoryResults() *MemoryResults {
	return &MemoryResults{results: make(map[string]Result), moves: make(map[string][]domain.Move)}
}

func (m *MemoryResults) SaveResult(_ context.Context, snap domain.MatchSnapshot) error {
	res, err := ResultFromSnapshot(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[res.MatchID] = res
	m.moves[res.MatchID] = append([]domain.Move(nil), snap.Moves...)
	return nil
}

func (m *MemoryResults) RecentByPlayer(_ context.Context, playerID string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	var items []Result
	for _, r := range m.results {
		if r.Player1ID == playerID || r.Player2ID == playerID {
			items = append(items, r)
		}
	}
	m.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool {
		if !items[i].FinishedAt.Equal(items[j].FinishedAt) {
			return items[i].FinishedAt.After(items[j].FinishedAt)
		}
		return items[i].MatchID > items[j].MatchID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryResults) Moves(_ context.Context, matchID string) ([]domain.Move, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Move(nil), m.moves[matchID]...), nil
}
