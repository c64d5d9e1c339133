// Package builder wires the arena components from configuration.
package builder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/park285/duel-arena/internal/arena"
	"github.com/park285/duel-arena/internal/config"
	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/internal/gateway"
	"github.com/park285/duel-arena/internal/httpapi"
	"github.com/park285/duel-arena/internal/msgcat"
	"github.com/park285/duel-arena/internal/notify"
	"github.com/park285/duel-arena/internal/outcome"
	"github.com/park285/duel-arena/internal/players"
	"github.com/park285/duel-arena/internal/registry"
	"github.com/park285/duel-arena/internal/scheduler"
	"github.com/park285/duel-arena/internal/service/duel"
	"github.com/park285/duel-arena/internal/sqldb"
	"github.com/park285/duel-arena/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	Config    *config.AppConfig
	Catalog   *msgcat.Catalog
	Hub       *gateway.Hub
	Pool      *arena.Pool
	Service   *duel.Service
	Scheduler *scheduler.Scheduler // nil when AUTO_MATCH is off
	Snapshots *store.Snapshots     // nil without REDIS_URL
	Results   store.Results
	Journal   *store.Journal

	logger  *zap.Logger
	db      *sqldb.DB
	rdb     *redis.Client
	started bool
}

type matchmakeFunc func(ctx context.Context) int

func (f matchmakeFunc) Matchmake(ctx context.Context) int { return f(ctx) }

// New opens the configured stores and assembles the arena. Close releases
// everything New acquired, also after a partial failure.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (_ *Deps, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	if d.Catalog, err = msgcat.New(cfg.MessagesDir); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	source, err := d.openPlayers(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		results := store.NewSQLResults(d.db)
		if err := results.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure results schema: %w", err)
		}
		d.Results = results
	} else {
		d.Results = store.NewMemoryResults()
	}

	var saver store.SnapshotSaver
	if cfg.RedisURL != "" {
		if d.rdb, err = store.OpenRedis(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
		d.Snapshots = store.NewSnapshots(d.rdb, cfg.SnapshotTTL)
		saver = d.Snapshots
		// live matches are not restored; snapshots left by a previous process are only reported
		if ids, lerr := d.Snapshots.LiveIDs(ctx); lerr != nil {
			logger.Warn("stale_live_snapshots_failed", zap.Error(lerr))
		} else if len(ids) > 0 {
			logger.Warn("stale_live_snapshots", zap.Int("count", len(ids)), zap.Strings("match_ids", ids))
		}
	}
	d.Journal = store.NewJournal(saver, d.Results, logger.Named("journal"), 0)

	d.Hub = gateway.NewHub(gateway.Config{}, d.Catalog, logger.Named("gateway"))
	notifier := notify.Fanout{d.Hub, d.Journal, notify.Log{Logger: logger.Named("match")}}

	resolver := outcome.New(outcome.Config{BaseMiss: cfg.BaseMiss, BaseCritical: cfg.BaseCritical})
	d.Pool = arena.New(arena.Config{
		StartingHealth: cfg.StartingHealth,
		MoveCap:        cfg.MoveCap,
		PreferUnplayed: cfg.PreferUnplayed,
	}, registry.New(), resolver, arena.WithNotifier(notifier))

	var kicker duel.Kicker
	if cfg.AutoMatch {
		d.Scheduler, err = scheduler.New(matchmakeFunc(func(ctx context.Context) int {
			return d.Service.Matchmake(ctx)
		}), cfg.MatchmakeInterval, logger.Named("scheduler"))
		if err != nil {
			return nil, err
		}
		kicker = d.Scheduler
	}

	d.Service, err = duel.NewService(d.Pool, source, notifier, kicker, duel.Config{
		ForfeitOnDisconnect: cfg.ForfeitOnDisconnect,
	}, logger.Named("duel"))
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Deps) openPlayers(ctx context.Context) (players.Source, error) {
	cfg := d.Config
	var roster []domain.Player
	if cfg.RosterFile != "" {
		list, err := players.LoadRoster(cfg.RosterFile, cfg.MaxSkills)
		if err != nil {
			return nil, err
		}
		roster = list
	}
	if cfg.DatabaseURL == "" {
		return players.NewMemorySource(roster...), nil
	}

	db, err := sqldb.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	d.db = db
	src := players.NewSQLSource(db, cfg.MaxSkills)
	if err := src.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure players schema: %w", err)
	}
	for _, p := range roster {
		if err := src.Upsert(ctx, p); err != nil {
			return nil, fmt.Errorf("seed player %s: %w", p.ID, err)
		}
	}
	if len(roster) > 0 {
		d.logger.Info("roster_seeded", zap.Int("players", len(roster)))
	}
	return src, nil
}

// Start launches background matchmaking.
func (d *Deps) Start(ctx context.Context) error {
	if d.Scheduler == nil || d.started {
		return nil
	}
	if err := d.Scheduler.Start(ctx); err != nil {
		return err
	}
	d.started = true
	return nil
}

// HTTPApp builds the REST application.
func (d *Deps) HTTPApp() *fiber.App {
	deps := httpapi.Deps{
		Service:        d.Service,
		Results:        d.Results,
		Catalog:        d.Catalog,
		StartingHealth: d.Config.StartingHealth,
		Logger:         d.logger.Named("http"),
	}
	if d.Snapshots != nil {
		deps.Snapshots = d.Snapshots
	}
	return httpapi.New(deps)
}

// WSHandler serves the websocket gateway.
func (d *Deps) WSHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", d.Hub.Handler(d.Service))
	return mux
}

// Close stops matchmaking, drops websocket sessions, drains the journal and
// closes the stores, in that order.
func (d *Deps) Close() error {
	var errs []error
	if d.Scheduler != nil && d.started {
		errs = append(errs, d.Scheduler.Stop())
		d.started = false
	}
	if d.Hub != nil {
		d.Hub.Close()
	}
	if d.Journal != nil {
		d.Journal.Close()
	}
	if d.rdb != nil {
		errs = append(errs, d.rdb.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	return errors.Join(errs...)
}
