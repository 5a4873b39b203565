package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"
)

// PortRange is a block of host ports handed out to one session kind.
type PortRange struct {
	Base int `yaml:"base"`
	Span int `yaml:"span"`
}

type RuntimeConfig struct {
	Driver     string `yaml:"driver"` // "docker" (engine API) or "cli"
	Binary     string `yaml:"binary"`
	NamePrefix string `yaml:"name_prefix"`
}

type PortsConfig struct {
	Lab         PortRange `yaml:"lab"`
	Workstation PortRange `yaml:"workstation"`
}

// Timeouts are in seconds.
type Timeouts struct {
	Pull    int `yaml:"pull"`
	Run     int `yaml:"run"`
	Inspect int `yaml:"inspect"`
	Remove  int `yaml:"remove"`
	Exec    int `yaml:"exec"`
}

type ExecConfig struct {
	MaxOutput     string `yaml:"max_output"`
	Shell         string `yaml:"shell"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	Burst         int    `yaml:"burst"`
}

type Limits struct {
	CPU    float64 `yaml:"cpu"`
	Memory string  `yaml:"memory"`
	Pids   int     `yaml:"pids"`
}

type WorkstationConfig struct {
	Image        string   `yaml:"image"`
	InternalPort int      `yaml:"internal_port"`
	Command      []string `yaml:"command"`
	Scheme       string   `yaml:"scheme"`
}

type LabConfig struct {
	DefaultInternalPort int    `yaml:"default_internal_port"`
	Scheme              string `yaml:"scheme"`
}

// PrewarmConfig controls pulling lab images in the background at startup.
type PrewarmConfig struct {
	Enabled bool `yaml:"enabled"`
	Workers int  `yaml:"workers"`
}

type ReaperConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	IdleSeconds     int `yaml:"idle_seconds"`
}

// LabSeed is a catalog entry declared in the config file.
type LabSeed struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Difficulty   string `yaml:"difficulty"`
	Category     string `yaml:"category"`
	Image        string `yaml:"image"`
	InternalPort int    `yaml:"internal_port"`
}

type Config struct {
	Listen      string            `yaml:"listen"`
	LogLevel    string            `yaml:"log_level"`
	PublicHost  string            `yaml:"public_host"`
	DBPath      string            `yaml:"db_path"`
	APIKey      string            `yaml:"api_key"`
	Origins     []string          `yaml:"allowed_origins"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
	Ports       PortsConfig       `yaml:"ports"`
	Timeouts    Timeouts          `yaml:"timeouts"`
	Exec        ExecConfig        `yaml:"exec"`
	Limits      Limits            `yaml:"limits"`
	Workstation WorkstationConfig `yaml:"workstation"`
	Lab         LabConfig         `yaml:"lab"`
	Reaper      ReaperConfig      `yaml:"reaper"`
	Prewarm     PrewarmConfig     `yaml:"prewarm"`
	Labs        []LabSeed         `yaml:"labs"`
}

func Load(yamlPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:     "127.0.0.1:8080",
		LogLevel:   "info",
		PublicHost: "localhost",
		DBPath:     "./labkasten.db",
		Runtime: RuntimeConfig{
			Driver:     "docker",
			Binary:     "docker",
			NamePrefix: "labkasten",
		},
		Ports: PortsConfig{
			Lab:         PortRange{Base: 8082, Span: 1000},
			Workstation: PortRange{Base: 22220, Span: 1000},
		},
		Timeouts: Timeouts{
			Pull:    300,
			Run:     10,
			Inspect: 5,
			Remove:  10,
			Exec:    60,
		},
		Exec: ExecConfig{
			MaxOutput:     "10MiB",
			Shell:         "/bin/sh",
			RatePerMinute: 120,
			Burst:         20,
		},
		Limits: Limits{
			CPU:    1.0,
			Memory: "512m",
			Pids:   256,
		},
		Workstation: WorkstationConfig{
			Image:        "alpine:3.19",
			InternalPort: 22,
			Command:      []string{"sh", "-c", "while true; do sleep 3600; done"},
			Scheme:       "ssh",
		},
		Lab: LabConfig{
			DefaultInternalPort: 80,
			Scheme:              "http",
		},
		Reaper: ReaperConfig{
			IntervalSeconds: 60,
			IdleSeconds:     1800,
		},
		Prewarm: PrewarmConfig{
			Enabled: false,
			Workers: 2,
		},
		Labs: DefaultLabs(),
	}
}

// DefaultLabs is the catalog shipped with a fresh install.
func DefaultLabs() []LabSeed {
	return []LabSeed{
		{ID: "dvwa", Name: "DVWA - Web Application Security", Difficulty: "easy", Category: "Web Application",
			Description: "SQL injection, XSS and CSRF against a deliberately broken PHP app.",
			Image:       "vulnerables/web-dvwa", InternalPort: 80},
		{ID: "juice-shop", Name: "OWASP Juice Shop", Difficulty: "medium", Category: "Web Application",
			Description: "Modern vulnerable web application covering the OWASP Top 10.",
			Image:       "bkimminich/juice-shop", InternalPort: 3000},
		{ID: "metasploitable2", Name: "Metasploitable 2", Difficulty: "hard", Category: "Network Security",
			Description: "Intentionally vulnerable Linux host for exploitation practice.",
			Image:       "tleemcjr/metasploitable2", InternalPort: 80},
		{ID: "network-scanning", Name: "Basic Network Scanning", Difficulty: "easy", Category: "Network Security",
			Description: "Reconnaissance with nmap from the workstation."},
		{ID: "password-cracking", Name: "Password Cracking", Difficulty: "medium", Category: "Cryptography",
			Description: "John the Ripper and Hashcat from the workstation."},
	}
}

// Validate rejects configurations the session manager cannot run with.
func (c *Config) Validate() error {
	for name, r := range map[string]PortRange{"lab": c.Ports.Lab, "workstation": c.Ports.Workstation} {
		if r.Base <= 0 || r.Span <= 0 || r.Base+r.Span > 65536 {
			return fmt.Errorf("ports.%s: invalid range base=%d span=%d", name, r.Base, r.Span)
		}
	}
	if overlaps(c.Ports.Lab, c.Ports.Workstation) {
		return fmt.Errorf("ports.lab and ports.workstation overlap")
	}
	switch c.Runtime.Driver {
	case "docker", "cli":
	default:
		return fmt.Errorf("runtime.driver: unknown driver %q", c.Runtime.Driver)
	}
	if _, err := c.MaxOutputBytes(); err != nil {
		return fmt.Errorf("exec.max_output: %w", err)
	}
	if _, err := c.MemoryBytes(); err != nil {
		return fmt.Errorf("limits.memory: %w", err)
	}
	return nil
}

func overlaps(a, b PortRange) bool {
	return a.Base < b.Base+b.Span && b.Base < a.Base+a.Span
}

// MaxOutputBytes parses exec.max_output in binary units ("10MiB", "512k").
func (c *Config) MaxOutputBytes() (int64, error) {
	if c.Exec.MaxOutput == "" {
		return 0, nil
	}
	return units.RAMInBytes(c.Exec.MaxOutput)
}

// MemoryBytes parses limits.memory using docker's RAM notation ("512m", "1g").
func (c *Config) MemoryBytes() (int64, error) {
	if c.Limits.Memory == "" {
		return 0, nil
	}
	return units.RAMInBytes(c.Limits.Memory)
}

func (t Timeouts) PullTimeout() time.Duration    { return seconds(t.Pull) }
func (t Timeouts) RunTimeout() time.Duration     { return seconds(t.Run) }
func (t Timeouts) InspectTimeout() time.Duration { return seconds(t.Inspect) }
func (t Timeouts) RemoveTimeout() time.Duration  { return seconds(t.Remove) }
func (t Timeouts) ExecTimeout() time.Duration    { return seconds(t.Exec) }

func (r ReaperConfig) Interval() time.Duration      { return seconds(r.IntervalSeconds) }
func (r ReaperConfig) IdleThreshold() time.Duration { return seconds(r.IdleSeconds) }

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LABKASTEN_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("LABKASTEN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LABKASTEN_PUBLIC_HOST"); v != "" {
		cfg.PublicHost = v
	}
	if v := os.Getenv("LABKASTEN_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LABKASTEN_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("LABKASTEN_RUNTIME_DRIVER"); v != "" {
		cfg.Runtime.Driver = v
	}
	if v := os.Getenv("LABKASTEN_RUNTIME_BINARY"); v != "" {
		cfg.Runtime.Binary = v
	}
	if v := os.Getenv("LABKASTEN_WORKSTATION_IMAGE"); v != "" {
		cfg.Workstation.Image = v
	}
	if v := os.Getenv("LABKASTEN_EXEC_MAX_OUTPUT"); v != "" {
		cfg.Exec.MaxOutput = v
	}
	if v := os.Getenv("LABKASTEN_MEMORY_LIMIT"); v != "" {
		cfg.Limits.Memory = v
	}
	if v := os.Getenv("LABKASTEN_PREWARM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Prewarm.Enabled = b
		}
	}
	if v := os.Getenv("LABKASTEN_CPU_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Limits.CPU = f
		}
	}
	intOverride("LABKASTEN_LAB_PORT_BASE", &cfg.Ports.Lab.Base)
	intOverride("LABKASTEN_WORKSTATION_PORT_BASE", &cfg.Ports.Workstation.Base)
	intOverride("LABKASTEN_PULL_TIMEOUT", &cfg.Timeouts.Pull)
	intOverride("LABKASTEN_EXEC_TIMEOUT", &cfg.Timeouts.Exec)
	intOverride("LABKASTEN_REAPER_INTERVAL_SECONDS", &cfg.Reaper.IntervalSeconds)
	intOverride("LABKASTEN_IDLE_SECONDS", &cfg.Reaper.IdleSeconds)
	if v := os.Getenv("LABKASTEN_WORKSTATION_COMMAND"); v != "" {
		if args, err := shellquote.Split(v); err == nil && len(args) > 0 {
			cfg.Workstation.Command = args
		}
	}
}

func intOverride(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
