// Package config loads the Magic Candle configuration from YAML, .env and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/magiccandle/internal/blow"
	"github.com/ayusman/magiccandle/internal/logging"
)

// Environment variables recognised by Load.
const (
	EnvConfig   = "MAGICCANDLE_CONFIG"
	EnvAddr     = "MAGICCANDLE_ADDR"
	EnvCamera   = "MAGICCANDLE_CAMERA"
	EnvLogLevel = "MAGICCANDLE_LOG_LEVEL"
	EnvDataDir  = "MAGICCANDLE_DATA_DIR"
)

// CameraConfig selects and tunes the webcam.
type CameraConfig struct {
	Device int  `yaml:"device"`
	Mirror bool `yaml:"mirror"`
	FPS    int  `yaml:"fps"`
}

// FaceMeshConfig configures the landmark service.
type FaceMeshConfig struct {
	Script          string  `yaml:"script"`
	MinConfidence   float64 `yaml:"min_confidence"`
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`
}

// ReactionConfig configures what happens when a blow is detected.
type ReactionConfig struct {
	SoundPlugin   string        `yaml:"sound_plugin"`
	Song          string        `yaml:"song"`
	Player        string        `yaml:"player"` // empty picks a player on PATH
	PluginTimeout time.Duration `yaml:"plugin_timeout"`
}

// Config is the complete application configuration.
type Config struct {
	Addr      string          `yaml:"addr"`
	DataDir   string          `yaml:"data_dir"`
	DBPath    string          `yaml:"db_path"`
	WebDir    string          `yaml:"web_dir"`
	PluginDir string          `yaml:"plugin_dir"`
	Tray      bool            `yaml:"tray"`
	Camera    CameraConfig    `yaml:"camera"`
	FaceMesh  FaceMeshConfig  `yaml:"facemesh"`
	Detector  blow.Thresholds `yaml:"detector"`
	Reaction  ReactionConfig  `yaml:"reaction"`
	Log       logging.Config  `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr: ":8080",
		Tray: true,
		Camera: CameraConfig{
			Device: 0,
			Mirror: true,
			FPS:    30,
		},
		FaceMesh: FaceMeshConfig{
			MinConfidence:   0.5,
			MinTrackingConf: 0.5,
		},
		Detector: blow.DefaultThresholds(),
		Reaction: ReactionConfig{
			SoundPlugin:   "sound",
			Song:          "assets/happyBirthday.mp3",
			PluginTimeout: 5 * time.Second,
		},
		Log: logging.DefaultConfig(),
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// $MAGICCANDLE_CONFIG when path is empty), then environment overrides. A
// .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvCamera); v != "" {
		device, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvCamera, v, err)
		}
		c.Camera.Device = device
	}
	return nil
}

// resolvePaths fills derived paths under the data directory, which defaults
// to ~/.magiccandle.
func (c *Config) resolvePaths() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".magiccandle")
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "magiccandle.db")
	}
	if c.PluginDir == "" {
		c.PluginDir = filepath.Join(c.DataDir, "plugins")
	}
	return nil
}

// Validate rejects configurations the detector or loop cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS)
	}
	if c.Detector.MouthOpen <= 0 {
		return fmt.Errorf("detector.mouth_open must be positive, got %d", c.Detector.MouthOpen)
	}
	if c.Detector.CheekShrink <= 0 {
		return fmt.Errorf("detector.cheek_shrink must be positive, got %d", c.Detector.CheekShrink)
	}
	if c.Detector.ResetAfter <= 0 {
		return fmt.Errorf("detector.reset_after must be positive, got %s", c.Detector.ResetAfter)
	}
	if c.Detector.HistorySize <= 0 {
		return fmt.Errorf("detector.history_size must be positive, got %d", c.Detector.HistorySize)
	}
	if c.Reaction.PluginTimeout <= 0 {
		return fmt.Errorf("reaction.plugin_timeout must be positive, got %s", c.Reaction.PluginTimeout)
	}
	return nil
}
