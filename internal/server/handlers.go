package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/realdoomsman/bagflip-casino/internal/game"
	"github.com/realdoomsman/bagflip-casino/internal/ledger"
	"github.com/realdoomsman/bagflip-casino/internal/pvp"
	"github.com/realdoomsman/bagflip-casino/internal/settle"
	"github.com/realdoomsman/bagflip-casino/internal/vrf"
)

type wagerRequest struct {
	RequestID string `json:"request_id"`
	Player    string `json:"player"`
	GameType  string `json:"game_type"`
	Wager     int64  `json:"wager"`
	Choice    int    `json:"choice"`
}

// placeWagerHandler settles one solo wager synchronously.
func (s *FiberServer) placeWagerHandler(c *fiber.Ctx) error {
	var req wagerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := s.engine.Play(c.Context(), settle.PlayRequest{
		RequestID: req.RequestID,
		Player:    req.Player,
		Kind:      game.Kind(req.GameType),
		Wager:     req.Wager,
		Choice:    game.Choice(req.Choice),
	})
	if err != nil {
		return errorResponse(c, err)
	}

	s.snapshots.Invalidate(c.Context())
	return c.JSON(result)
}

func (s *FiberServer) getGameHandler(c *fiber.Ctx) error {
	g, err := s.store.GetGame(c.Context(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(g)
}

type createRoomRequest struct {
	Creator  string `json:"creator"`
	GameType string `json:"game_type"`
	Wager    int64  `json:"wager"`
	Choice   int    `json:"choice"`
}

func (s *FiberServer) createRoomHandler(c *fiber.Ctx) error {
	var req createRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	room, err := s.rooms.CreateRoom(c.Context(), pvp.CreateRequest{
		Creator: req.Creator,
		Kind:    game.Kind(req.GameType),
		Wager:   req.Wager,
		Choice:  game.Choice(req.Choice),
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

func (s *FiberServer) listRoomsHandler(c *fiber.Ctx) error {
	rooms, err := s.store.ListOpenRooms(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

type joinRoomRequest struct {
	Player string `json:"player"`
}

func (s *FiberServer) joinRoomHandler(c *fiber.Ctx) error {
	var req joinRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	room, err := s.rooms.JoinRoom(c.Context(), c.Params("id"), req.Player)
	if err != nil {
		return errorResponse(c, err)
	}

	s.snapshots.Invalidate(c.Context())
	return c.JSON(room)
}

func (s *FiberServer) cancelRoomHandler(c *fiber.Ctx) error {
	var req joinRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	room, err := s.rooms.CancelRoom(c.Context(), c.Params("id"), req.Player)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(room)
}

func (s *FiberServer) statsHandler(c *fiber.Ctx) error {
	if cached, ok := s.snapshots.Stats(c.Context()); ok {
		return c.JSON(cached)
	}

	stats, err := s.store.GetStats(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	s.snapshots.StoreStats(c.Context(), stats)
	return c.JSON(stats)
}

func (s *FiberServer) dailyStatsHandler(c *fiber.Ctx) error {
	stats, err := s.store.GetDailyStats(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(stats)
}

const defaultLeaderboardLimit = 10

func (s *FiberServer) leaderboardHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultLeaderboardLimit)
	if limit <= 0 || limit > 100 {
		limit = defaultLeaderboardLimit
	}

	// Serve the snapshot when it covers the requested window.
	if cached, ok := s.snapshots.Leaderboard(c.Context()); ok && len(cached) >= limit {
		return c.JSON(fiber.Map{"leaderboard": cached[:limit]})
	}

	entries, err := s.store.GetLeaderboard(c.Context(), limit)
	if err != nil {
		return errorResponse(c, err)
	}
	s.snapshots.StoreLeaderboard(c.Context(), entries)
	return c.JSON(fiber.Map{"leaderboard": entries})
}

func (s *FiberServer) liveFeedHandler(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > ledger.FeedLimit {
		limit = 20
	}

	feed, err := s.store.GetLiveFeed(c.Context(), limit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"feed": feed})
}

func (s *FiberServer) userStatsHandler(c *fiber.Ctx) error {
	stats, err := s.store.GetUserStats(c.Context(), c.Params("address"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(stats)
}

// errorResponse maps sentinel errors onto HTTP status codes.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch {
	case errors.Is(err, ledger.ErrDuplicateRequest),
		errors.Is(err, ledger.ErrRoomNotAvailable),
		errors.Is(err, settle.ErrRequestInFlight):
		status = fiber.StatusConflict
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, ledger.ErrRoomNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, game.ErrUnsupportedGameKind),
		errors.Is(err, game.ErrInvalidChoice),
		errors.Is(err, settle.ErrInvalidWager),
		errors.Is(err, settle.ErrMissingPlayer),
		errors.Is(err, pvp.ErrInvalidWager),
		errors.Is(err, pvp.ErrMissingPlayer),
		errors.Is(err, pvp.ErrSelfJoin):
		status = fiber.StatusBadRequest
	case errors.Is(err, pvp.ErrNotRoomCreator):
		status = fiber.StatusForbidden
	case errors.Is(err, vrf.ErrProviderUnavailable):
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
