// Package httpapi exposes the arena over REST.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/park285/duel-arena/internal/domain"
	"github.com/park285/duel-arena/internal/msgcat"
	"github.com/park285/duel-arena/internal/scorecard"
	"github.com/park285/duel-arena/internal/service/duel"
	"github.com/park285/duel-arena/internal/store"
	"github.com/park285/duel-arena/pkg/dueldto"
	"go.uber.org/zap"
)

// PlayerHeader carries the acting player on REST move submissions.
const PlayerHeader = "X-Player-Id"

const defaultHistoryLimit = 20

// SnapshotReader reads persisted snapshots of matches no longer held in memory.
type SnapshotReader interface {
	Load(ctx context.Context, matchID string) (*domain.MatchSnapshot, error)
	ByPlayer(ctx context.Context, playerID string) ([]domain.MatchSnapshot, error)
}

type Deps struct {
	Service        *duel.Service
	Snapshots      SnapshotReader
	Results        store.Results
	Catalog        *msgcat.Catalog
	StartingHealth int
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

type handlers struct {
	Deps
}

// New builds the fiber app serving the REST routes.
func New(d Deps) *fiber.App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 5 * time.Second
	}
	h := &handlers{Deps: d}

	app := fiber.New(fiber.Config{
		AppName:               "duel-arena",
		DisableStartupMessage: true,
		Immutable:             true,
		ErrorHandler:          h.errorHandler,
	})
	app.Use(h.accessLog)

	app.Get("/health", h.health)

	app.Get("/players", h.listPlayers)
	app.Post("/players/:id/connect", h.connectPlayer)
	app.Delete("/players/:id", h.disconnectPlayer)
	app.Post("/players/:id/available", h.markAvailable)
	app.Get("/players/:id/history", h.history)
	app.Get("/players/:id/match", h.playerMatch)
	app.Get("/players/:id/snapshots", h.playerSnapshots)

	app.Get("/games", h.listGames)
	app.Post("/games", h.startGame)
	app.Get("/games/:id", h.getGame)
	app.Get("/games/:id/card.png", h.gameCard)
	app.Get("/games/:id/moves", h.gameMoves)

	app.Post("/moves", h.submitMove)
	return app
}

func (h *handlers) ctx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.RequestTimeout)
}

func (h *handlers) health(c *fiber.Ctx) error {
	pool := h.Service.Pool()
	return c.JSON(dueldto.Health{
		Status:      "ok",
		Players:     len(pool.Players()),
		Free:        len(pool.Free()),
		LiveMatches: pool.Registry().Len(),
	})
}

func (h *handlers) listPlayers(c *fiber.Ctx) error {
	pool := h.Service.Pool()
	free := make(map[string]bool)
	for _, id := range pool.Free() {
		free[id] = true
	}
	list := pool.Players()
	out := make([]dueldto.Player, 0, len(list))
	for _, p := range list {
		dp := dueldto.FromPlayer(p)
		dp.Free = free[p.ID]
		dp.InGame = pool.IsInGame(p.ID)
		out = append(out, dp)
	}
	return c.JSON(out)
}

func (h *handlers) connectPlayer(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	pl, err := h.Service.ConnectVia(ctx, c.Params("id"), "rest")
	if err != nil {
		return err
	}
	dp := dueldto.FromPlayer(pl)
	dp.InGame = h.Service.Pool().IsInGame(pl.ID)
	return c.JSON(dp)
}

func (h *handlers) disconnectPlayer(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	h.Service.Disconnect(ctx, c.Params("id"))
	return c.SendStatus(http.StatusNoContent)
}

func (h *handlers) markAvailable(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Service.MarkAvailable(ctx, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *handlers) history(c *fiber.Ctx) error {
	if h.Results == nil {
		return c.JSON([]dueldto.Result{})
	}
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.Results.RecentByPlayer(ctx, c.Params("id"), limit)
	if err != nil {
		return err
	}
	out := make([]dueldto.Result, 0, len(list))
	for _, r := range list {
		out = append(out, dueldto.Result{
			MatchID:    r.MatchID,
			Player1ID:  r.Player1ID,
			Player2ID:  r.Player2ID,
			WinnerID:   r.WinnerID,
			EndReason:  string(r.EndReason),
			MoveCount:  r.MoveCount,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			DurationMS: r.Duration.Milliseconds(),
		})
	}
	return c.JSON(out)
}

func (h *handlers) playerMatch(c *fiber.Ctx) error {
	snap, ok := h.Service.MatchOf(c.Params("id"))
	if !ok {
		return domain.ErrNotInMatch
	}
	return c.JSON(dueldto.FromSnapshot(snap, true))
}

// playerSnapshots lists the persisted snapshots still within their TTL, newest first.
func (h *handlers) playerSnapshots(c *fiber.Ctx) error {
	out := []dueldto.Match{}
	if h.Snapshots == nil {
		return c.JSON(out)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.Snapshots.ByPlayer(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	for _, s := range list {
		out = append(out, dueldto.FromSnapshot(s, false))
	}
	return c.JSON(out)
}

// gameMoves returns the move log of a live match, else of a stored result.
func (h *handlers) gameMoves(c *fiber.Ctx) error {
	id := c.Params("id")
	snap, live := h.Service.LiveMatch(id)
	moves := snap.Moves
	if !live && h.Results != nil {
		ctx, cancel := h.ctx(c)
		defer cancel()
		list, err := h.Results.Moves(ctx, id)
		if err != nil {
			return err
		}
		moves = list
	}
	if !live && len(moves) == 0 {
		return fiber.NewError(http.StatusNotFound, "no moves recorded for match")
	}
	out := make([]dueldto.Move, 0, len(moves))
	for _, mv := range moves {
		out = append(out, dueldto.FromMove(mv))
	}
	return c.JSON(out)
}

func (h *handlers) listGames(c *fiber.Ctx) error {
	list := h.Service.LiveMatches()
	out := make([]dueldto.Match, 0, len(list))
	for _, s := range list {
		out = append(out, dueldto.FromSnapshot(s, false))
	}
	return c.JSON(out)
}

func (h *handlers) startGame(c *fiber.Ctx) error {
	var req dueldto.StartMatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	snap, err := h.Service.RequestMatch(ctx, strings.TrimSpace(c.Get(PlayerHeader)), req.Player1, req.Player2)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dueldto.FromSnapshot(snap, false))
}

func (h *handlers) getGame(c *fiber.Ctx) error {
	snap, err := h.findGame(c)
	if err != nil {
		return err
	}
	return c.JSON(dueldto.FromSnapshot(snap, true))
}

func (h *handlers) gameCard(c *fiber.Ctx) error {
	snap, err := h.findGame(c)
	if err != nil {
		return err
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	data, err := scorecard.Render(ctx, snap, h.StartingHealth)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

// findGame prefers the live match and falls back to the persisted snapshot.
func (h *handlers) findGame(c *fiber.Ctx) (domain.MatchSnapshot, error) {
	id := c.Params("id")
	if snap, ok := h.Service.LiveMatch(id); ok {
		return snap, nil
	}
	if h.Snapshots != nil {
		ctx, cancel := h.ctx(c)
		defer cancel()
		snap, err := h.Snapshots.Load(ctx, id)
		if err != nil {
			return domain.MatchSnapshot{}, err
		}
		if snap != nil {
			return *snap, nil
		}
	}
	return domain.MatchSnapshot{}, fiber.NewError(http.StatusNotFound, "match not found")
}

func (h *handlers) submitMove(c *fiber.Ctx) error {
	playerID := strings.TrimSpace(c.Get(PlayerHeader))
	if playerID == "" {
		return fiber.NewError(http.StatusBadRequest, PlayerHeader+" header is required")
	}
	var req dueldto.MoveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	mv, snap, err := h.Service.SubmitMove(ctx, playerID, req.Action)
	if err != nil {
		return err
	}
	return c.JSON(dueldto.MoveResponse{Move: dueldto.FromMove(mv), Match: dueldto.FromSnapshot(snap, false)})
}

func (h *handlers) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(dueldto.ErrorBody{Code: codeForStatus(fe.Code), Message: fe.Message})
	}
	code := domain.ReasonCode(err)
	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("http_request_failed", zap.String("path", c.Path()), zap.Error(err))
	}
	msg := err.Error()
	if h.Catalog != nil {
		subject := strings.TrimSpace(c.Get(PlayerHeader))
		if subject == "" {
			subject = c.Params("id")
		}
		msg = h.Catalog.Reason(subject, err)
	}
	return c.Status(status).JSON(dueldto.ErrorBody{Code: code, Message: msg})
}

// StatusFor maps a reason code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case "unknown_player", "not_in_match":
		return http.StatusNotFound
	case "already_in_match", "player_unavailable", "out_of_turn", "not_in_progress":
		return http.StatusConflict
	case "illegal_action", "not_participant", "not_a_player", "invalid_skills":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "http_" + strconv.Itoa(status)
	}
}

func (h *handlers) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = StatusFor(domain.ReasonCode(err))
		}
	}
	h.Logger.Debug("http_request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)),
	)
	return err
}
