// Package config provides configuration management for facetrack.
// It loads configuration from YAML files with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LicenseKeyEnv overrides engine.license_key when set.
const LicenseKeyEnv = "FACETRACK_LICENSE_KEY"

// DefaultTrackerParameters are the realtime detection parameters handed to
// the tracker verbatim when the config does not override them.
const DefaultTrackerParameters = "FaceDetection2PatchSize=256; Threshold=0.8; Threshold2=0.9; SmoothAttributeLiveness=false; LivenessFramesCount=1; DetectLiveness=true"

// Config holds all facetrack configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Engine   EngineConfig   `yaml:"engine"`
	Liveness LivenessConfig `yaml:"liveness_detection"`
	Storage  StorageConfig  `yaml:"storage"`
	Display  DisplayConfig  `yaml:"display"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CameraConfig holds camera settings.
type CameraConfig struct {
	// Device is the camera name or path. Empty selects the first camera listed.
	Device string `yaml:"device"`
	// PreferLargestFormat picks the largest video format the camera reports.
	PreferLargestFormat bool `yaml:"prefer_largest_format"`
	Width               int  `yaml:"width"`
	Height              int  `yaml:"height"`
	// FrameTimeoutMs bounds a single frame grab.
	FrameTimeoutMs int `yaml:"frame_timeout_ms"`
	// PollIntervalMs is the pause after a grab that produced no frame.
	PollIntervalMs int `yaml:"poll_interval_ms"`
}

// EngineConfig holds recognition engine settings.
type EngineConfig struct {
	LicenseKey        string  `yaml:"license_key"`
	ModelPath         string  `yaml:"model_path"`
	TrackerParameters string  `yaml:"tracker_parameters"`
	Tolerance         float64 `yaml:"tolerance"`
	MatchThreshold    float64 `yaml:"match_threshold"`
}

// LivenessConfig holds liveness scoring settings.
type LivenessConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Level       string `yaml:"level"`
	MinFaceSize int    `yaml:"min_face_size"`
}

// StorageConfig holds identity store settings.
type StorageConfig struct {
	DataDir           string `yaml:"data_dir"`
	MemoryFile        string `yaml:"memory_file"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
}

// DisplayConfig describes the headless display surface.
type DisplayConfig struct {
	Width        int    `yaml:"width"`
	Height       int    `yaml:"height"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/facetrack")
	return &Config{
		Camera: CameraConfig{
			Device:              "",
			PreferLargestFormat: true,
			Width:               0,
			Height:              0,
			FrameTimeoutMs:      500,
			PollIntervalMs:      10,
		},
		Engine: EngineConfig{
			ModelPath:         filepath.Join(dataDir, "models"),
			TrackerParameters: DefaultTrackerParameters,
			Tolerance:         0.4,
			MatchThreshold:    0.1,
		},
		Liveness: LivenessConfig{
			Enabled:     true,
			Level:       "standard",
			MinFaceSize: 80,
		},
		Storage: StorageConfig{
			DataDir:           dataDir,
			MemoryFile:        "tracker_memory.dat",
			EncryptionEnabled: false,
		},
		Display: DisplayConfig{
			Width:        640,
			Height:       480,
			SnapshotPath: filepath.Join(dataDir, "live.png"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "facetrack.log"),
		},
	}
}

// Load loads configuration from the specified file on top of the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, err
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/facetrack/facetrack.yaml"); err == nil {
		return Load("/etc/facetrack/facetrack.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/facetrack/facetrack.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

// LoadEnv reads .env files (a missing file is not an error) and applies
// environment overrides.
func (c *Config) LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	if key := os.Getenv(LicenseKeyEnv); key != "" {
		c.Engine.LicenseKey = key
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FrameTimeoutMs <= 0 {
		return fmt.Errorf("frame_timeout_ms must be positive, got %d", c.Camera.FrameTimeoutMs)
	}
	if c.Camera.PollIntervalMs < 0 {
		return fmt.Errorf("poll_interval_ms must not be negative, got %d", c.Camera.PollIntervalMs)
	}

	if c.Engine.Tolerance <= 0 || c.Engine.Tolerance > 1 {
		return fmt.Errorf("tolerance must be in (0, 1], got %f", c.Engine.Tolerance)
	}
	if c.Engine.MatchThreshold < 0 || c.Engine.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold must be between 0 and 1, got %f", c.Engine.MatchThreshold)
	}

	validLevels := map[string]bool{"basic": true, "standard": true, "strict": true, "paranoid": true}
	if !validLevels[c.Liveness.Level] {
		return fmt.Errorf("invalid liveness level: %s (must be basic, standard, strict, or paranoid)", c.Liveness.Level)
	}
	if c.Liveness.MinFaceSize < 0 {
		return fmt.Errorf("min_face_size must not be negative, got %d", c.Liveness.MinFaceSize)
	}

	if c.Storage.MemoryFile == "" {
		return errors.New("storage.memory_file must be set")
	}

	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("invalid display size: %dx%d", c.Display.Width, c.Display.Height)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	if strings.HasPrefix(c.Camera.Device, "~/") || strings.Contains(c.Camera.Device, "$") {
		c.Camera.Device = ExpandPath(c.Camera.Device)
	}
	c.Engine.ModelPath = ExpandPath(c.Engine.ModelPath)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Storage.MemoryFile = ExpandPath(c.Storage.MemoryFile)
	c.Display.SnapshotPath = ExpandPath(c.Display.SnapshotPath)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// MemoryPath returns the tracker memory file location. Relative names are
// resolved against the data directory.
func (c *Config) MemoryPath() string {
	if filepath.IsAbs(c.Storage.MemoryFile) {
		return c.Storage.MemoryFile
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.MemoryFile)
}

// EnsureDirectories creates the directories the session writes into.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Storage.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.MemoryPath()), 0700); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	if err := os.MkdirAll(c.Engine.ModelPath, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	if c.Display.SnapshotPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.Display.SnapshotPath), 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	if c.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Logging.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	return nil
}
