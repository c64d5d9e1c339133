package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/duel-arena/internal/arenaclient"
)

func main() {
	baseURL := os.Getenv("ARENA_BASE_URL")
	wsURL := os.Getenv("ARENA_WS_URL")
	playerID := os.Getenv("ARENA_PLAYER_ID")

	if baseURL == "" {
		log.Fatal("ARENA_BASE_URL is required")
	}

	client := arenaclient.New(baseURL, arenaclient.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h, err := client.Health(ctx)
	if err != nil {
		log.Printf("/health error: %v", err)
	} else {
		log.Printf("/health ok: status=%s players=%d free=%d live=%d", h.Status, h.Players, h.Free, h.LiveMatches)
	}
	if live, err := client.LiveMatches(ctx); err == nil {
		for _, m := range live {
			fmt.Printf("match %s %s vs %s turn=%s moves=%d\n", m.ID, m.Participants[0].ID, m.Participants[1].ID, m.Turn, len(m.Moves))
		}
	}

	if wsURL == "" {
		log.Println("ARENA_WS_URL not set; skipping WS check")
		return
	}

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	s, err := arenaclient.Dial(cctx, wsURL, nil)
	if err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	defer s.Close()
	if playerID == "" {
		log.Println("WS connected; ARENA_PLAYER_ID not set, skipping enter")
		return
	}
	p, err := s.Enter(cctx, playerID)
	if err != nil {
		log.Printf("WS enter error: %v", err)
		return
	}
	log.Printf("WS entered as %s (%s)", p.ID, p.Role)

	// Observe for a short window
	octx, ocancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ocancel()
	for {
		f, err := s.Next(octx)
		if err != nil {
			return
		}
		fmt.Printf("WS frame type=%s code=%s message=%q\n", f.Type, f.Code, f.Message)
	}
}
