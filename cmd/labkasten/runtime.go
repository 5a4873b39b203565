package main

import (
	"fmt"
	"log/slog"

	"github.com/p-arndt/labkasten/internal/config"
	"github.com/p-arndt/labkasten/internal/docker"
	"github.com/p-arndt/labkasten/internal/dockercli"
	"github.com/p-arndt/labkasten/internal/driver"
)

// newDriver builds the configured runtime driver and a func releasing it.
func newDriver(cfg *config.Config, logger *slog.Logger) (driver.Driver, func() error, error) {
	maxOut, err := cfg.MaxOutputBytes()
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Runtime.Driver {
	case "cli":
		rt := dockercli.New(cfg.Runtime.Binary, logger)
		rt.MaxOutput = maxOut
		return rt, func() error { return nil }, nil
	case "docker", "":
		dc, err := docker.New(maxOut)
		if err != nil {
			return nil, nil, fmt.Errorf("docker client: %w", err)
		}
		return dc, dc.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown runtime driver %q", cfg.Runtime.Driver)
	}
}
