package outcome

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/park285/duel-arena/internal/domain"
)

const (
	DefaultBaseMiss     = 10.0
	DefaultBaseCritical = 10.0

	hitMin      = 10
	hitMax      = 30
	criticalMin = 31
	criticalMax = 50
	healMin     = 10
	healMax     = 30
)

type Config struct {
	BaseMiss     float64
	BaseCritical float64
}

func DefaultConfig() Config {
	return Config{BaseMiss: DefaultBaseMiss, BaseCritical: DefaultBaseCritical}
}

// Resolver rolls attack and heal outcomes. Safe for concurrent use.
type Resolver struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a resolver seeded from crypto/rand.
func New(cfg Config) *Resolver {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic("outcome: seed: " + err.Error())
	}
	return NewSeeded(cfg, binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
}

// NewSeeded returns a resolver whose roll sequence is fully determined by the seeds.
func NewSeeded(cfg Config, seed1, seed2 uint64) *Resolver {
	return &Resolver{cfg: cfg, rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// MissChance is the percentage (out of 100) that an attack against opponent misses.
func MissChance(base float64, opponent domain.Skills) float64 {
	return base + float64(opponent.Distraction) + 0.5*float64(opponent.Agility)
}

// CriticalChance is the percentage (out of 100) that a landed attack is critical.
func CriticalChance(base float64, actor domain.Skills) float64 {
	return base + float64(actor.Strength) + 0.5*float64(actor.Agility)
}

func (r *Resolver) ResolveAttack(actor, opponent domain.Skills) domain.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.percent() < MissChance(r.cfg.BaseMiss, opponent) {
		return domain.Outcome{Result: domain.ResultMiss, Value: 0}
	}
	if r.percent() < CriticalChance(r.cfg.BaseCritical, actor) {
		return domain.Outcome{Result: domain.ResultCritical, Value: r.between(criticalMin, criticalMax)}
	}
	return domain.Outcome{Result: domain.ResultHit, Value: r.between(hitMin, hitMax)}
}

func (r *Resolver) ResolveHeal() domain.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Outcome{Result: domain.ResultHeal, Value: r.between(healMin, healMax)}
}

// percent returns a uniform float in [0,100).
func (r *Resolver) percent() float64 { return r.rng.Float64() * 100 }

// between returns a uniform integer in [lo,hi].
func (r *Resolver) between(lo, hi int) int { return lo + r.rng.IntN(hi-lo+1) }
