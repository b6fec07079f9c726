// Command homectl controls a smart-home backend from the terminal. Every
// change is applied optimistically and journaled to the configured SQLite file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"smarthome_sync/internal/api"
	"smarthome_sync/internal/config"
	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/models"
	"smarthome_sync/internal/pipeline"
	"smarthome_sync/internal/repository"
	"smarthome_sync/internal/repository/db"
	"smarthome_sync/internal/service"
	"smarthome_sync/internal/session"
)

const usageText = `usage: homectl [-config file] [-v] <command> [args]

commands:
  devices                               list air-conditioners
  lights                                list lights
  automations                           list automations and their next run
  power <id> on|off
  temp <id> <celsius>
  mode <id> COOL|HEAT|DRY|FAN|AUTO
  fan <id> <0-5>
  swing <id> on|off
  toggle <light-id>
  level <light-id> <1-100>
  schedule <automation-id>              show the schedule
  schedule <automation-id> daily HH:MM
  schedule <automation-id> weekly DAY HH:MM
  schedule <automation-id> monthly DOM HH:MM
  equipment <automation-id> [+type:id ...] [-type:id ...]
  history [-from T] [-to T] [-outcome O] [-kind K]
  watch                                 follow pushed state until interrupted
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	configPath := flag.String("config", "", "path to config file (default configs/config.yml)")
	verbose := flag.Bool("v", false, "log at the configured level instead of warn")
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	level := logger.WarnLevel
	if *verbose {
		level = cfg.Log.Level
	}
	log := logger.NewTo(level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, closeApp, err := newApp(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	err = a.run(ctx, flag.Arg(0), flag.Args()[1:])
	closeApp()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		flag.Usage()
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newApp wires the session, request pipeline, journal and services, and
// signs in unless the startup policy restored a credential.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, func(), error) {
	conn, err := db.InitDB(cfg.Journal.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	closeDB := func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}
	repos := repository.NewRepository(conn)

	sessions := session.NewStore(session.WithLogger(log))
	if err := sessions.Bootstrap(startupPolicy(cfg.Session.StartupPolicy), cfg.Session.Token); err != nil {
		closeDB()
		return nil, nil, err
	}

	p := pipeline.New(cfg.API.BaseURL, pipeline.NewRestyTransport(cfg.API.Timeout), sessions, log)
	svc := service.NewService(api.New(p), repos, service.Options{
		ReconcileConcurrency: cfg.Reconcile.Concurrency,
		Log:                  log,
	})
	cancelWatch := svc.Auth.WatchExpiry(func(session.ExpiryEvent) {
		fmt.Fprintln(os.Stderr, "session expired; run the command again to sign in")
	})

	if !svc.Auth.SignedIn() {
		creds := models.Credentials{Username: cfg.Auth.Username, Password: cfg.Auth.Password}
		if err := svc.Auth.SignIn(ctx, creds); err != nil {
			cancelWatch()
			closeDB()
			return nil, nil, err
		}
	}

	a := &app{cfg: cfg, svc: svc, sessions: sessions, log: log, out: os.Stdout}
	return a, func() {
		cancelWatch()
		closeDB()
	}, nil
}

func startupPolicy(s string) session.StartupPolicy {
	if s == config.PolicyRestore {
		return session.PolicyRestore
	}
	return session.PolicyClear
}
