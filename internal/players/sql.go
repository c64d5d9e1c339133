package players

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/internal/sqldb"
)

// SQLSource reads players from the players table.
type SQLSource struct {
	db        *sqldb.DB
	maxSkills int
}

func NewSQLSource(db *sqldb.DB, defaultMaxSkills int) *SQLSource {
	if defaultMaxSkills <= 0 {
		defaultMaxSkills = DefaultMaxSkills
	}
	return &SQLSource{db: db, maxSkills: defaultMaxSkills}
}

func (s *SQLSource) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS players (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			role        TEXT NOT NULL DEFAULT 'player',
			strength    INTEGER NOT NULL DEFAULT 0,
			agility     INTEGER NOT NULL DEFAULT 0,
			distraction INTEGER NOT NULL DEFAULT 0,
			max_skills  INTEGER NOT NULL DEFAULT 0
		)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create players table: %w", err)
	}
	return nil
}

func (s *SQLSource) Lookup(ctx context.Context, playerID string) (*domain.Player, error) {
	query := s.db.Dialect.Rebind(`
		SELECT id, name, role, strength, agility, distraction, max_skills
		FROM players
		WHERE id = ?`)
	var (
		p    domain.Player
		role string
	)
	err := s.db.QueryRowContext(ctx, query, playerID).Scan(
		&p.ID, &p.Name, &role,
		&p.Skills.Strength, &p.Skills.Agility, &p.Skills.Distraction,
		&p.MaxSkills,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select player: %w", err)
	}
	p.Role = domain.ParseRole(role)
	if p.MaxSkills <= 0 {
		p.MaxSkills = s.maxSkills
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	return &p, nil
}

// Upsert writes a player row; used for roster seeding.
func (s *SQLSource) Upsert(ctx context.Context, p domain.Player) error {
	query := s.db.Dialect.Rebind(`
		INSERT INTO players (id, name, role, strength, agility, distraction, max_skills)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			strength = excluded.strength,
			agility = excluded.agility,
			distraction = excluded.distraction,
			max_skills = excluded.max_skills`)
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, string(p.Role),
		p.Skills.Strength, p.Skills.Agility, p.Skills.Distraction,
		p.MaxSkills,
	)
	if err != nil {
		return fmt.Errorf("upsert player %s: %w", p.ID, err)
	}
	return nil
}
