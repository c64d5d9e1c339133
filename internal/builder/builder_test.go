package builder

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/duel-arena/internal/config"
	"github.com/park285/duel-arena/internal/domain"
)

const roster = `
players:
  - id: ann
    name: Ann
    skills: {strength: 4, agility: 4, distraction: 4}
  - id: bob
    name: Bob
`

func testConfig(t *testing.T, extra map[string]string) *config.AppConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(roster), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	vars := map[string]string{"ROSTER_FILE": path, "AUTO_MATCH": "false"}
	for k, v := range extra {
		vars[k] = v
	}
	cfg, err := config.LoadFrom(vars)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMemoryArenaAutoMatches(t *testing.T) {
	cfg := testConfig(t, map[string]string{"AUTO_MATCH": "true", "MATCHMAKE_INTERVAL": "20ms"})
	ctx := context.Background()
	d, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	if d.Scheduler == nil || d.Snapshots != nil {
		t.Fatalf("unexpected wiring: scheduler=%v snapshots=%v", d.Scheduler, d.Snapshots)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, id := range []string{"ann", "bob"} {
		if _, err := d.Service.Connect(ctx, id); err != nil {
			t.Fatalf("Connect %s: %v", id, err)
		}
		if err := d.Service.MarkAvailable(ctx, id); err != nil {
			t.Fatalf("MarkAvailable %s: %v", id, err)
		}
	}
	waitFor(t, "automatic match", func() bool { return d.Pool.IsInGame("ann") })

	if _, err := d.Service.Forfeit(ctx, "bob"); err != nil {
		t.Fatalf("Forfeit: %v", err)
	}
	waitFor(t, "persisted result", func() bool {
		list, err := d.Results.RecentByPlayer(ctx, "ann", 5)
		return err == nil && len(list) == 1 && list[0].WinnerID == "ann"
	})
}

func TestSQLAndRedisWiring(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, map[string]string{
		"DATABASE_URL": "sqlite::memory:",
		"REDIS_URL":    fmt.Sprintf("redis://%s/0", mr.Addr()),
	})
	ctx := context.Background()
	d, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	if d.Scheduler != nil || d.Snapshots == nil {
		t.Fatalf("unexpected wiring")
	}

	pl, err := d.Service.Connect(ctx, "ann")
	if err != nil {
		t.Fatalf("Connect from seeded table: %v", err)
	}
	if pl.Skills.Strength != 4 || pl.MaxSkills != 12 {
		t.Fatalf("player = %+v", pl)
	}
	if _, err := d.Service.Connect(ctx, "bob"); err != nil {
		t.Fatalf("Connect bob: %v", err)
	}
	for _, id := range []string{"ann", "bob"} {
		if err := d.Service.MarkAvailable(ctx, id); err != nil {
			t.Fatalf("MarkAvailable: %v", err)
		}
	}
	snap, err := d.Service.RequestMatch(ctx, "ann", "ann", "bob")
	if err != nil {
		t.Fatalf("RequestMatch: %v", err)
	}
	if _, err := d.Service.Forfeit(ctx, "ann"); err != nil {
		t.Fatalf("Forfeit: %v", err)
	}

	waitFor(t, "sql result", func() bool {
		list, err := d.Results.RecentByPlayer(ctx, "bob", 5)
		return err == nil && len(list) == 1 && list[0].EndReason == domain.EndForfeit
	})
	waitFor(t, "redis snapshot", func() bool {
		got, err := d.Snapshots.Load(ctx, snap.ID)
		return err == nil && got != nil && got.State == domain.StateFinished
	})

	resp, err := d.HTTPApp().Test(httptest.NewRequest("GET", "/games/"+snap.ID, nil), -1)
	if err != nil {
		t.Fatalf("GET persisted game: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("persisted game status = %d", resp.StatusCode)
	}
}

func TestNewFailsOnBadDatabase(t *testing.T) {
	cfg := testConfig(t, map[string]string{"DATABASE_URL": "mysql://nope"})
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for unsupported database url")
	}
}
