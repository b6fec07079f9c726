package backend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// Config describes a simulator instance.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	Users     map[string]string // username -> password
	Clock     clockwork.Clock
	Seed      bool
}

// Simulator bundles the state, auth and router of one backend instance.
type Simulator struct {
	Home    *Home
	Auth    *Auth
	Handler *Handler
}

// New creates the simulator and registers cfg.Users in the user repository.
func New(ctx context.Context, users repository.Authorization, cfg Config, log *logger.Logger) (*Simulator, error) {
	home := NewHome()
	if cfg.Seed {
		home.Seed()
	}
	auth := NewAuth(users, cfg.JWTSecret, cfg.TokenTTL, cfg.Clock)

	names := make([]string, 0, len(cfg.Users))
	for name := range cfg.Users {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := auth.SignUp(ctx, name, cfg.Users[name]); err != nil {
			return nil, fmt.Errorf("register user %q: %w", name, err)
		}
	}

	return &Simulator{Home: home, Auth: auth, Handler: NewHandler(home, auth, log)}, nil
}

// Router returns the gin engine serving the simulator.
func (s *Simulator) Router() *gin.Engine {
	return s.Handler.InitRoutes()
}
