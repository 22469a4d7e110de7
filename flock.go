// Package flock is the embedding surface for proxy runtimes: one Setup call
// wires the settings file, the decision store, the engine and the network
// sync client into a ready Mediator.
package flock

import (
	"context"
	"fmt"

	"flock/internal/blocker"
	"flock/internal/config"
	"flock/internal/database"
	"flock/internal/mediator"
	"flock/internal/netsync"

	"github.com/charmbracelet/log"
)

// Runtime holds the assembled local instance. The embedding proxy hands
// each intercepted flow to Mediator and calls Close on shutdown.
type Runtime struct {
	Mediator *mediator.Mediator
	Client   *netsync.Client
}

// Setup assembles a local instance: settings, store, whitelist seed,
// engine, sync client. The sync client connects in the background; when
// the aggregator is unreachable the instance runs standalone.
func Setup(ctx context.Context) (*Runtime, error) {
	config.ReadSettings()
	cfg := config.GetConfig()

	if _, err := database.SetupDB(); err != nil {
		return nil, fmt.Errorf("flock: set up decision store: %w", err)
	}

	if err := database.SeedWhitelist(ctx, cfg.Whitelist); err != nil {
		log.Warn("whitelist seeding failed", "error", err)
	}

	engine, err := blocker.NewEngine(cfg.Blocking.BlockPatterns)
	if err != nil {
		return nil, fmt.Errorf("flock: compile block patterns: %w", err)
	}

	client := netsync.NewClient(cfg.Network.ServerURL, cfg.Network.Enabled)
	client.Connect(ctx)

	return &Runtime{
		Mediator: mediator.New(engine, client),
		Client:   client,
	}, nil
}

// Close stops the sync client. The store handle stays open for the
// process lifetime.
func (r *Runtime) Close() {
	r.Client.Close()
}
