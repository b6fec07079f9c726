// Command backendsim serves an in-memory smart-home backend for homectl and
// for manual testing: REST control endpoints, JWT sign-in and a websocket feed.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smarthome_sync/internal/backend"
	"smarthome_sync/internal/config"
	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/repository"
	"smarthome_sync/internal/repository/db"
	"smarthome_sync/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default configs/config.yml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level)

	if cfg.Backend.JWTSecret == "" {
		log.Fatalw("backend.jwt_secret is required")
	}

	// Accounts are rebuilt from backend.users on every start.
	conn, err := db.InitDB(db.MemoryDSN)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim, err := backend.New(ctx, repos.Auth, backend.Config{
		JWTSecret: cfg.Backend.JWTSecret,
		TokenTTL:  cfg.Backend.TokenTTL,
		Users:     cfg.Backend.Users,
		Seed:      true,
	}, log)
	if err != nil {
		log.Fatalw("failed to start simulator", "err", err)
	}

	srv := &server.Server{}
	runHTTPServer(srv, cfg.Backend.Port, sim, log)

	waitForShutdown(cancel, srv, log)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, sim *backend.Simulator, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, sim.Router()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if addr, err := srv.Addr(ctx); err == nil {
		log.Infow("backend_listening", "addr", addr)
	}
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
