package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"github.com/realdoomsman/bagflip-casino/internal/server"
)

func main() {
	srv := server.New()
	srv.RegisterFiberRoutes()

	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Printf("[SERVER] Listening on :%d", port)
		if err := srv.Listen(fmt.Sprintf(":%d", port)); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		log.Println("[SERVER] Shutdown signal received")

		if err := srv.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Printf("[SERVER] Forced shutdown: %v", err)
		}
		return srv.Shutdown()
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("[SERVER] Exit with error: %v", err)
	}
	log.Println("[SERVER] Graceful shutdown complete")
}
