package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/internal/msgcat"
	"github.com/park285/duel-arena/pkg/dueldto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Service is the command surface the gateway drives.
type Service interface {
	ConnectVia(ctx context.Context, playerID, handle string) (domain.Player, error)
	Disconnect(ctx context.Context, playerID string)
	MarkAvailable(ctx context.Context, playerID string) error
	RequestMatch(ctx context.Context, requesterID, player1ID, player2ID string) (domain.MatchSnapshot, error)
	SubmitMove(ctx context.Context, playerID, action string) (domain.Move, domain.MatchSnapshot, error)
	Forfeit(ctx context.Context, playerID string) (domain.MatchSnapshot, error)
}

type Config struct {
	QueueSize    int
	WriteTimeout time.Duration
	PingInterval time.Duration
	// OriginPatterns is passed to websocket.Accept; empty allows same-origin only.
	OriginPatterns []string
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	return c
}

// Hub routes match notifications to websocket clients. It implements
// notify.Notifier; every method only enqueues frames and never blocks.
type Hub struct {
	cfg     Config
	catalog *msgcat.Catalog
	logger  *zap.Logger

	mu         sync.RWMutex
	players    map[string]*client
	spectators map[*client]struct{}
	clients    map[*client]struct{}
}

func NewHub(cfg Config, catalog *msgcat.Catalog, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		cfg:        cfg.withDefaults(),
		catalog:    catalog,
		logger:     logger,
		players:    make(map[string]*client),
		spectators: make(map[*client]struct{}),
		clients:    make(map[*client]struct{}),
	}
}

// Handler upgrades requests to websocket sessions driving svc.
func (h *Hub) Handler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns:  h.cfg.OriginPatterns,
			CompressionMode: websocket.CompressionNoContextTakeover,
		})
		if err != nil {
			h.logger.Warn("ws_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			return
		}
		c := newClient(h, svc, conn)
		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.mu.Unlock()
		c.serve(r.Context())
	})
}

// Close drops every client connection.
func (h *Hub) Close() {
	h.mu.RLock()
	list := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		list = append(list, c)
	}
	h.mu.RUnlock()
	for _, c := range list {
		c.close(websocket.StatusGoingAway, "server shutdown")
	}
}

// Online reports whether a player has a bound connection.
func (h *Hub) Online(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.players[playerID]
	return ok
}

func (h *Hub) bind(playerID string, c *client, spectator bool) (prev *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev = h.players[playerID]
	if prev == c {
		prev = nil
	}
	if prev != nil {
		delete(h.spectators, prev)
	}
	h.players[playerID] = c
	if spectator {
		h.spectators[c] = struct{}{}
	} else {
		delete(h.spectators, c)
	}
	return prev
}

// unbind detaches c from playerID; it reports whether c was still the
// player's current connection.
func (h *Hub) unbind(playerID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.spectators, c)
	if playerID == "" || h.players[playerID] != c {
		return false
	}
	delete(h.players, playerID)
	return true
}

func (h *Hub) forget(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *Hub) sendTo(playerID string, f dueldto.ServerFrame) {
	h.mu.RLock()
	c := h.players[playerID]
	h.mu.RUnlock()
	if c != nil {
		c.enqueue(f)
	}
}

// broadcast sends f to both participants and to every spectator.
func (h *Hub) broadcast(snap domain.MatchSnapshot, f dueldto.ServerFrame) {
	h.mu.RLock()
	targets := make([]*client, 0, 2+len(h.spectators))
	for _, id := range snap.ParticipantIDs() {
		if c := h.players[id]; c != nil {
			targets = append(targets, c)
		}
	}
	for c := range h.spectators {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.enqueue(f)
	}
}

func (h *Hub) MatchStarted(_ context.Context, snap domain.MatchSnapshot) {
	m := dueldto.FromSnapshot(snap, false)
	h.broadcast(snap, dueldto.ServerFrame{
		Type:  dueldto.FrameStartGame,
		Match: &m,
		Message: h.render("event.start_game", map[string]any{
			"Player1": nameOf(snap, 0),
			"Player2": nameOf(snap, 1),
		}),
	})
}

func (h *Hub) MatchResumed(_ context.Context, playerID string, snap domain.MatchSnapshot) {
	m := dueldto.FromSnapshot(snap, true)
	opponent := nameOf(snap, 0)
	if snap.Participants[0].ID == playerID {
		opponent = nameOf(snap, 1)
	}
	h.sendTo(playerID, dueldto.ServerFrame{
		Type:    dueldto.FrameInGame,
		Match:   &m,
		Message: h.render("event.in_game", map[string]any{"Opponent": opponent}),
	})
}

func (h *Hub) MovePlayed(_ context.Context, snap domain.MatchSnapshot, mv domain.Move) {
	m := dueldto.FromSnapshot(snap, false)
	dm := dueldto.FromMove(mv)
	f := dueldto.ServerFrame{Type: dueldto.FrameMovePlayed, Match: &m, Move: &dm}
	if h.catalog != nil {
		f.Message = h.catalog.Move(mv, msgcat.Names(snap))
	}
	h.broadcast(snap, f)
}

func (h *Hub) MatchOver(_ context.Context, snap domain.MatchSnapshot) {
	m := dueldto.FromSnapshot(snap, false)
	f := dueldto.ServerFrame{Type: dueldto.FrameGameOver, Match: &m, Winner: snap.Winner}
	if h.catalog != nil {
		f.Message = h.catalog.GameOver(snap)
	}
	h.broadcast(snap, f)
}

func (h *Hub) InvalidRequest(_ context.Context, playerID string, err error) {
	h.sendTo(playerID, h.invalidFrame(playerID, err))
}

func (h *Hub) invalidFrame(playerID string, err error) dueldto.ServerFrame {
	f := dueldto.ServerFrame{Type: dueldto.FrameInvalid, Code: domain.ReasonCode(err)}
	if h.catalog != nil {
		f.Message = h.catalog.Reason(playerID, err)
	} else if err != nil {
		f.Message = err.Error()
	}
	return f
}

func (h *Hub) render(key string, data map[string]any) string {
	if h.catalog == nil {
		return ""
	}
	s, err := h.catalog.Render(key, data)
	if err != nil {
		h.logger.Debug("ws_render_failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return s
}

func nameOf(snap domain.MatchSnapshot, i int) string {
	if n := snap.Participants[i].Name; n != "" {
		return n
	}
	return snap.Participants[i].ID
}
