package outcome

import (
	"sync"
	"testing"

	"github.com/park285/duel-arena/internal/domain"
)

func TestChanceFormulas(t *testing.T) {
	opp := domain.Skills{Strength: 3, Agility: 4, Distraction: 2}
	if got := MissChance(10, opp); got != 14 {
		t.Fatalf("MissChance = %v, want 14", got)
	}
	actor := domain.Skills{Strength: 5, Agility: 3}
	if got := CriticalChance(10, actor); got != 16.5 {
		t.Fatalf("CriticalChance = %v, want 16.5", got)
	}
}

func TestResolveAttackBounds(t *testing.T) {
	r := NewSeeded(DefaultConfig(), 1, 2)
	seen := map[domain.Result]int{}
	for i := 0; i < 20000; i++ {
		o := r.ResolveAttack(domain.Skills{}, domain.Skills{})
		seen[o.Result]++
		switch o.Result {
		case domain.ResultMiss:
			if o.Value != 0 {
				t.Fatalf("miss with value %d", o.Value)
			}
		case domain.ResultCritical:
			if o.Value < 31 || o.Value > 50 {
				t.Fatalf("critical value %d out of [31,50]", o.Value)
			}
		case domain.ResultHit:
			if o.Value < 10 || o.Value > 30 {
				t.Fatalf("hit value %d out of [10,30]", o.Value)
			}
		default:
			t.Fatalf("unexpected attack result %q", o.Result)
		}
	}
	for _, res := range []domain.Result{domain.ResultMiss, domain.ResultHit, domain.ResultCritical} {
		if seen[res] == 0 {
			t.Fatalf("result %q never observed", res)
		}
	}
	// 10% miss with zero skills; allow generous slack.
	if miss := seen[domain.ResultMiss]; miss < 1500 || miss > 2500 {
		t.Fatalf("miss count %d far from expected 2000", miss)
	}
}

func TestResolveAttackCertainMissAndCritical(t *testing.T) {
	r := NewSeeded(Config{BaseMiss: 100, BaseCritical: 0}, 7, 7)
	for i := 0; i < 100; i++ {
		if o := r.ResolveAttack(domain.Skills{}, domain.Skills{}); o.Result != domain.ResultMiss {
			t.Fatalf("expected certain miss, got %q", o.Result)
		}
	}
	r = NewSeeded(Config{BaseMiss: 0, BaseCritical: 100}, 7, 7)
	for i := 0; i < 100; i++ {
		if o := r.ResolveAttack(domain.Skills{}, domain.Skills{}); o.Result != domain.ResultCritical {
			t.Fatalf("expected certain critical, got %q", o.Result)
		}
	}
}

func TestResolveHealBounds(t *testing.T) {
	r := NewSeeded(DefaultConfig(), 3, 4)
	for i := 0; i < 5000; i++ {
		o := r.ResolveHeal()
		if o.Result != domain.ResultHeal || o.Value < 10 || o.Value > 30 {
			t.Fatalf("unexpected heal outcome %+v", o)
		}
	}
}

func TestSeededIsReproducible(t *testing.T) {
	a := NewSeeded(DefaultConfig(), 42, 43)
	b := NewSeeded(DefaultConfig(), 42, 43)
	skills := domain.Skills{Strength: 2, Agility: 2, Distraction: 2}
	for i := 0; i < 200; i++ {
		if x, y := a.ResolveAttack(skills, skills), b.ResolveAttack(skills, skills); x != y {
			t.Fatalf("roll %d diverged: %+v vs %+v", i, x, y)
		}
	}
}

func TestResolverConcurrentUse(t *testing.T) {
	r := New(DefaultConfig())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				r.ResolveAttack(domain.Skills{}, domain.Skills{})
				r.ResolveHeal()
			}
		}()
	}
	wg.Wait()
}
