package store

import (
	"context"
	"sync"
	"time"

	"github.com/park285/duel-arena/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultJournalQueue = 256
	journalWriteTimeout = 5 * time.Second
)

type SnapshotSaver interface {
	Save(ctx context.Context, snap domain.MatchSnapshot) error
}

type journalEntry struct {
	snap  domain.MatchSnapshot
	final bool
}

// Journal persists match transitions after they happen. It implements
// notify.Notifier; writes are queued and applied by one worker, so callers
// never wait on storage. A full queue drops the write.
type Journal struct {
	snaps   SnapshotSaver
	results Results
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan journalEntry
	done   chan struct{}
}

func NewJournal(snaps SnapshotSaver, results Results, logger *zap.Logger, queueSize int) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultJournalQueue
	}
	j := &Journal{
		snaps:   snaps,
		results: results,
		logger:  logger,
		queue:   make(chan journalEntry, queueSize),
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *Journal) MatchStarted(_ context.Context, snap domain.MatchSnapshot) {
	j.enqueue(journalEntry{snap: snap})
}

func (j *Journal) MatchResumed(context.Context, string, domain.MatchSnapshot) {}

func (j *Journal) MovePlayed(_ context.Context, snap domain.MatchSnapshot, _ domain.Move) {
	j.enqueue(journalEntry{snap: snap})
}

func (j *Journal) MatchOver(_ context.Context, snap domain.MatchSnapshot) {
	j.enqueue(journalEntry{snap: snap, final: true})
}

func (j *Journal) InvalidRequest(context.Context, string, error) {}

// Close stops accepting entries and waits for queued ones to be written.
func (j *Journal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()
	<-j.done
}

func (j *Journal) enqueue(e journalEntry) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- e:
	default:
		j.logger.Warn("journal_queue_full", zap.String("match_id", e.snap.ID), zap.Bool("final", e.final))
	}
}

func (j *Journal) run() {
	defer close(j.done)
	for e := range j.queue {
		j.write(e)
	}
}

func (j *Journal) write(e journalEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	if j.snaps != nil {
		if err := j.snaps.Save(ctx, e.snap); err != nil {
			j.logger.Warn("journal_snapshot_failed", zap.String("match_id", e.snap.ID), zap.Error(err))
		}
	}
	if !e.final || j.results == nil {
		return
	}
	if err := j.results.SaveResult(ctx, e.snap); err != nil {
		j.logger.Error("journal_result_failed", zap.String("match_id", e.snap.ID), zap.Error(err))
		return
	}
	j.logger.Info("match_persisted",
		zap.String("match_id", e.snap.ID),
		zap.String("winner", e.snap.Winner),
		zap.Int("moves", len(e.snap.Moves)),
	)
}
