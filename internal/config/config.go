package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xr-emulator/backend/internal/device"
)

// AutoToken as server.auth_token asks for a random token at startup.
const AutoToken = "auto"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Device    DeviceConfig    `yaml:"device"`
	Frame     FrameConfig     `yaml:"frame"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token"`
	PanelDir       string   `yaml:"panel_dir"` // static control panel files, optional
}

type DeviceConfig struct {
	Profile      string `yaml:"profile"`
	ProfilesFile string `yaml:"profiles_file"`
}

type FrameConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Stereo    *bool         `yaml:"stereo"` // nil keeps the profile's setting
	EyeOffset float64       `yaml:"eye_offset"`
}

type BroadcastConfig struct {
	Throttle         time.Duration `yaml:"throttle"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Device: DeviceConfig{
			Profile: "generic-headset",
		},
		Frame: FrameConfig{
			Interval:  time.Second / 60,
			EyeOffset: 0.032,
		},
		Broadcast: BroadcastConfig{
			Throttle:         50 * time.Millisecond,
			SnapshotInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Default returns the configuration used when no file is given.
func Default() *Config { return defaultConfig() }

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Frame.Interval <= 0 {
		return fmt.Errorf("frame.interval must be positive, got %s", c.Frame.Interval)
	}
	if c.Frame.EyeOffset < 0 {
		return fmt.Errorf("frame.eye_offset must not be negative, got %g", c.Frame.EyeOffset)
	}
	if c.Broadcast.Throttle < 0 || c.Broadcast.SnapshotInterval < 0 {
		return errors.New("broadcast intervals must not be negative")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Catalog returns the built-in profiles merged with device.profiles_file.
func (c *Config) Catalog() (*device.Catalog, error) {
	catalog := device.Builtin()
	if c.Device.ProfilesFile != "" {
		if err := catalog.LoadFile(c.Device.ProfilesFile); err != nil {
			return nil, fmt.Errorf("load profiles: %w", err)
		}
	}
	return catalog, nil
}

// Profile resolves device.profile against Catalog.
func (c *Config) Profile() (*device.Profile, error) {
	catalog, err := c.Catalog()
	if err != nil {
		return nil, err
	}
	p, ok := catalog.Lookup(c.Device.Profile)
	if !ok {
		return nil, fmt.Errorf("unknown device profile %q (have %v)", c.Device.Profile, catalog.IDs())
	}
	if c.Frame.Stereo != nil {
		p.Stereo = *c.Frame.Stereo
	}
	return p, nil
}

// GenerateToken returns 16 random bytes, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
