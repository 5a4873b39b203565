package testutil

import (
	"bytes"
	"log/slog"
	"sync"

	"github.com/p-arndt/labkasten/internal/config"
)

// TestConfig returns a Config with small port ranges and short timeouts.
func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.DBPath = ":memory:"
	cfg.Ports.Lab = config.PortRange{Base: 18000, Span: 50}
	cfg.Ports.Workstation = config.PortRange{Base: 19000, Span: 50}
	cfg.Timeouts = config.Timeouts{Pull: 5, Run: 2, Inspect: 1, Remove: 1, Exec: 2}
	cfg.Labs = config.DefaultLabs()
	return cfg
}

// LogBuffer collects log output so tests can assert on emitted diagnostics.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestLogger returns a debug-level text logger writing into a fresh LogBuffer.
func TestLogger() (*slog.Logger, *LogBuffer) {
	buf := &LogBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
