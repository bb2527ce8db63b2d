package server

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/realdoomsman/bagflip-casino/internal/cache"
	"github.com/realdoomsman/bagflip-casino/internal/database"
	"github.com/realdoomsman/bagflip-casino/internal/hub"
	"github.com/realdoomsman/bagflip-casino/internal/ledger"
	"github.com/realdoomsman/bagflip-casino/internal/payout"
	"github.com/realdoomsman/bagflip-casino/internal/pvp"
	"github.com/realdoomsman/bagflip-casino/internal/settle"
	"github.com/realdoomsman/bagflip-casino/internal/vrf"
)

type FiberServer struct {
	*fiber.App

	db        database.Service
	cache     cache.Service
	snapshots *cache.Snapshots
	store     ledger.Ledger
	engine    *settle.Engine
	rooms     *pvp.Manager
	eventHub  *hub.Hub

	hubCancel context.CancelFunc
}

func New() *FiberServer {
	// Ledger backend: postgres by default, memory for local development.
	var (
		db    database.Service
		store ledger.Ledger
	)
	switch backend := getEnv("LEDGER_BACKEND", "postgres"); backend {
	case "memory":
		log.Println("[SERVER] Using in-memory ledger")
		store = ledger.NewMemory()
	default:
		db = database.New()
		store = ledger.NewPostgres(db.Pool())
	}

	// Redis cache is optional; reads fall through to the ledger without it.
	redisService := cache.New()
	snapshots := cache.NewSnapshots(redisService)

	provider := newProvider()
	dispatcher := payout.NewSimDispatcher()
	eventHub := hub.NewHub()

	engine := settle.NewEngine(provider, store, dispatcher, eventHub)
	rooms := pvp.NewManager(provider, store, dispatcher, eventHub)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "bagflip",
			AppName:       "bagflip",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:        db,
		cache:     redisService,
		snapshots: snapshots,
		store:     store,
		engine:    engine,
		rooms:     rooms,
		eventHub:  eventHub,
	}

	// Apply global middleware
	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	hubCtx, hubCancel := context.WithCancel(context.Background())
	server.hubCancel = hubCancel
	go eventHub.Run(hubCtx)

	if err := rooms.StartSweeper(); err != nil {
		log.Printf("[SERVER] Failed to start room sweeper: %v", err)
	}

	log.Printf("[SERVER] Settlement engine ready (randomness: %s)", provider.Mode())

	return server
}

func newProvider() vrf.Provider {
	switch mode := getEnv("VRF_MODE", vrf.ModeLocal); mode {
	case vrf.ModeOracle:
		url := getEnv("VRF_ORACLE_URL", "http://localhost:9090")
		log.Printf("[SERVER] Using randomness oracle at %s", url)
		return vrf.NewOracleProvider(url, 5*time.Second)
	default:
		return vrf.NewLocalProvider()
	}
}

// Shutdown stops the sweeper and hub before closing connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.rooms != nil {
		if err := s.rooms.Shutdown(); err != nil {
			log.Printf("[SERVER] Error stopping room sweeper: %v", err)
		}
	}
	if s.hubCancel != nil {
		s.hubCancel()
	}

	if s.cache != nil {
		s.cache.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
