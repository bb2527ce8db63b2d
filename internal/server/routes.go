package server

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/gofiber/contrib/websocket"
)

func (s *FiberServer) RegisterFiberRoutes() {
	// Apply CORS middleware
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	// Basic routes
	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api/v1")

	// Solo wagers
	api.Post("/wager", s.placeWagerHandler)
	api.Get("/games/:id", s.getGameHandler)

	// Head-to-head rooms
	api.Get("/pvp/rooms", s.listRoomsHandler)
	api.Post("/pvp/rooms", s.createRoomHandler)
	api.Post("/pvp/rooms/:id/join", s.joinRoomHandler)
	api.Delete("/pvp/rooms/:id", s.cancelRoomHandler)

	// Dashboard reads
	api.Get("/stats", s.statsHandler)
	api.Get("/daily-stats", s.dailyStatsHandler)
	api.Get("/leaderboard", s.leaderboardHandler)
	api.Get("/live-feed", s.liveFeedHandler)
	api.Get("/users/:address", s.userStatsHandler)

	// WebSocket route
	s.App.Get("/ws", websocket.New(s.eventsWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"events": fiber.Map{
			"status":            "running",
			"connected_clients": s.eventHub.GetClientCount(),
		},
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	}
	if s.cache != nil {
		health["cache"] = s.cache.Health()
	}
	return c.JSON(health)
}

// eventsWebSocketHandler streams settlement events to connected clients.
func (s *FiberServer) eventsWebSocketHandler(conn *websocket.Conn) {
	player := conn.Query("player", "anonymous")

	log.Printf("[WS] New connection from player: %s", player)

	s.eventHub.RegisterClient(conn, player)

	// The stream is one-way; reads only detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("[WS] Read error for player %s: %v", player, err)
			s.eventHub.UnregisterClient(conn)
			break
		}
	}
}
