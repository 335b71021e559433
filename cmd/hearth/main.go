package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hearthvtt/hearth-cli/internal/adapters/driven/config/file"
	"github.com/hearthvtt/hearth-cli/internal/adapters/driven/socket"
	"github.com/hearthvtt/hearth-cli/internal/adapters/driven/storage/sqlite"
	"github.com/hearthvtt/hearth-cli/internal/adapters/driven/timing"
	"github.com/hearthvtt/hearth-cli/internal/adapters/driving/cli"
	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/core/ports/driven"
	"github.com/hearthvtt/hearth-cli/internal/core/services"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

const dialTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cli.SetVersion(version)

	url := cfg.GetString("server.url")
	if url == "" {
		// No stored connection: connect, version, and help still work.
		cli.Wire(nil, nil, nil, cfg)
		return cli.Execute()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	transport, err := socket.Dial(ctx, url, cfg.GetString("server.token"))
	cancel()
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer transport.Close()

	store, err := sqlite.NewStore(cfg.GetString("client.dataDir"))
	if err != nil {
		return fmt.Errorf("opening setting store: %w", err)
	}
	defer store.Close()

	frameInterval := time.Duration(cfg.GetInt("client.frameIntervalMs")) * time.Millisecond
	rt, err := services.NewRuntime(services.RuntimeConfig{
		Transport: transport,
		Store:     store,
		Clock:     timing.Clock{},
		Ticker:    timing.NewTicker(frameInterval),
		User:      currentUser(cfg),
	})
	if err != nil {
		return fmt.Errorf("starting runtime: %w", err)
	}
	defer rt.Close()
	rt.SetReady(true)

	cli.Wire(rt, rt.Settings(), rt, cfg)
	return cli.Execute()
}

// currentUser builds the acting user from stored config. A one-shot CLI has
// no login handshake, so identity defaults to a fresh gamemaster when the
// config does not pin one.
func currentUser(cfg driven.ConfigStore) *domain.User {
	id := cfg.GetString("user.id")
	if id == "" {
		id = domain.RandomID()
	}
	name := cfg.GetString("user.name")
	if name == "" {
		name = "Gamemaster"
	}
	role := domain.Role(cfg.GetInt("user.role"))
	if role < domain.RolePlayer || role > domain.RoleGamemaster {
		role = domain.RoleGamemaster
	}
	return &domain.User{ID: id, Name: name, Role: role}
}
