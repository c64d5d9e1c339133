package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/park285/duel-arena/internal/domain"
	"github.com/redis/go-redis/v9"
)

const DefaultSnapshotTTL = 24 * time.Hour

// Snapshots keeps the latest snapshot of each match in redis, indexed by
// participant, so finished matches stay inspectable after they are retired.
type Snapshots struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSnapshots(rdb *redis.Client, ttl time.Duration) *Snapshots {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Snapshots{rdb: rdb, ttl: ttl}
}

// OpenRedis connects to REDIS_URL and verifies the connection.
func OpenRedis(ctx context.Context, raw string) (*redis.Client, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := ParseRedisURL(raw)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}, nil
}

func matchKey(id string) string   { return "duel:match:" + strings.TrimSpace(id) }
func userIdxKey(id string) string { return "duel:index:user:" + strings.TrimSpace(id) }
func liveKey() string             { return "duel:live" }

func (s *Snapshots) Save(ctx context.Context, snap domain.MatchSnapshot) error {
	if snap.ID == "" {
		return errors.New("snapshot without match id")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, matchKey(snap.ID), raw, s.ttl)
	for _, id := range snap.ParticipantIDs() {
		if strings.TrimSpace(id) == "" {
			continue
		}
		pipe.SAdd(ctx, userIdxKey(id), snap.ID)
		pipe.Expire(ctx, userIdxKey(id), s.ttl)
	}
	if snap.State == domain.StateInProgress {
		pipe.SAdd(ctx, liveKey(), snap.ID)
	} else {
		pipe.SRem(ctx, liveKey(), snap.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// Load returns nil without error when the match is unknown or expired.
func (s *Snapshots) Load(ctx context.Context, matchID string) (*domain.MatchSnapshot, error) {
	raw, err := s.rdb.Get(ctx, matchKey(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.MatchSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", matchID, err)
	}
	return &snap, nil
}

// ByPlayer returns the stored snapshots a player took part in, newest first.
func (s *Snapshots) ByPlayer(ctx context.Context, playerID string) ([]domain.MatchSnapshot, error) {
	ids, err := s.rdb.SMembers(ctx, userIdxKey(playerID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.MatchSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			// expired; drop the dangling index entry
			_ = s.rdb.SRem(ctx, userIdxKey(playerID), id).Err()
			continue
		}
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// LiveIDs lists matches whose last stored snapshot was still in progress.
func (s *Snapshots) LiveIDs(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, liveKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
