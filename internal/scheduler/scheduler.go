package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Matchmaker pairs free players and reports how many matches it started.
type Matchmaker interface {
	Matchmake(ctx context.Context) int
}

// Scheduler runs matchmaking on a fixed interval and whenever Kick is called.
type Scheduler struct {
	mm       Matchmaker
	interval time.Duration
	logger   *zap.Logger

	sched gocron.Scheduler
	kick  chan struct{}
	runMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(mm Matchmaker, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if mm == nil {
		return nil, errors.New("scheduler requires a matchmaker")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid matchmake interval %v", interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		mm:       mm,
		interval: interval,
		logger:   logger,
		sched:    sched,
		kick:     make(chan struct{}, 1),
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	_, err := s.sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.run(ctx, "interval") }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("register matchmake job: %w", err)
	}
	s.sched.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.kick:
				s.run(ctx, "kick")
			}
		}
	}()
	s.logger.Info("scheduler_started", zap.Duration("interval", s.interval))
	return nil
}

// Kick requests an extra matchmaking run. Never blocks; pending kicks coalesce.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if n := s.mm.Matchmake(ctx); n > 0 {
		s.logger.Info("matchmake_run", zap.String("trigger", trigger), zap.Int("started", n))
	}
}
