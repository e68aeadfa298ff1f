package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/fingergun/internal/control"
	"github.com/ayusman/fingergun/internal/cursor"
	"github.com/ayusman/fingergun/internal/detector"
	"github.com/ayusman/fingergun/internal/gesture"
	"github.com/ayusman/fingergun/internal/logger"
	"github.com/ayusman/fingergun/internal/plugin"
)

const (
	// DefaultConfigFilename is used when no path is given.
	DefaultConfigFilename = "fingergun.yaml"
	// DefaultDataDir is created under the user's home directory.
	DefaultDataDir = ".fingergun"
	// DefaultDBFilename is the sqlite database inside the data directory.
	DefaultDBFilename = "fingergun.db"
	// DefaultPluginDirname is the plugin directory inside the data directory.
	DefaultPluginDirname = "plugins"
	// DefaultFilePermissions is used when writing a config file.
	DefaultFilePermissions = 0o600
)

var (
	// ErrConfigIsNotSet is returned for a nil configuration.
	ErrConfigIsNotSet = errors.New("configuration is not set")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")
)

// Config is the root of the YAML settings file.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Camera   CameraConfig    `yaml:"camera"`
	Detector detector.Config `yaml:"detector"`
	Gesture  gesture.Params  `yaml:"gesture"`
	Cursor   cursor.Config   `yaml:"cursor"`
	Tracking TrackingConfig  `yaml:"tracking"`
	Store    StoreConfig     `yaml:"store"`
	MQTT     MQTTConfig      `yaml:"mqtt"`
	Log      LogConfig       `yaml:"log"`
	Preview  PreviewConfig   `yaml:"preview"`
	Tray     TrayConfig      `yaml:"tray"`
	Plugins  PluginsConfig   `yaml:"plugins"`
}

// ServerConfig configures the HTTP and websocket listener.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// CameraConfig configures frame acquisition.
type CameraConfig struct {
	DeviceID int  `yaml:"device_id"`
	FPS      int  `yaml:"fps"`
	Mirror   bool `yaml:"mirror"`
	// MotionThreshold is the percentage of changed pixels that wakes the
	// landmark estimator while no hand is tracked. 0 runs it on every frame.
	MotionThreshold float64 `yaml:"motion_threshold"`
}

// TrackingConfig configures the tracking-loss policy.
type TrackingConfig struct {
	MaxLossFrames int `yaml:"max_loss_frames"`
}

// StoreConfig configures the session history database.
type StoreConfig struct {
	// Path of the sqlite file. Empty means ~/.fingergun/fingergun.db.
	Path string `yaml:"path"`
}

// MQTTConfig configures the optional event publisher. An empty Broker
// disables it.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// PreviewConfig configures the annotated MJPEG preview.
type PreviewConfig struct {
	Enabled bool `yaml:"enabled"`
	Quality int  `yaml:"quality"`
}

// TrayConfig configures the system tray icon.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PluginsConfig binds control events to plugin actions.
type PluginsConfig struct {
	// Dir holds one directory per plugin. Empty means ~/.fingergun/plugins.
	Dir      string           `yaml:"dir"`
	Timeout  time.Duration    `yaml:"timeout"`
	Bindings []plugin.Binding `yaml:"bindings,omitempty"`
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Camera: CameraConfig{FPS: 30, Mirror: true},
		Detector: detector.DefaultConfig(),
		Gesture:  gesture.DefaultParams(),
		Cursor:   cursor.DefaultConfig(),
		Tracking: TrackingConfig{MaxLossFrames: control.DefaultConfig().MaxLossFrames},
		MQTT: MQTTConfig{
			ClientID:       "fingergun",
			TopicPrefix:    "fingergun",
			ConnectTimeout: 5 * time.Second,
		},
		Log:     LogConfig{Level: "info"},
		Preview: PreviewConfig{Enabled: true, Quality: 80},
		Tray:    TrayConfig{Enabled: true},
		Plugins: PluginsConfig{Timeout: plugin.DefaultTimeout},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save validates cfg and writes it to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return ErrConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks cfg and fills zero values with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ErrConfigIsNotSet
	}

	def := Default()

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		return fmt.Errorf("%w: server.addr %q: %v", ErrInvalid, cfg.Server.Addr, err)
	}

	if cfg.Camera.DeviceID < 0 {
		return fmt.Errorf("%w: camera.device_id must not be negative", ErrInvalid)
	}
	if cfg.Camera.FPS <= 0 {
		cfg.Camera.FPS = def.Camera.FPS
	}
	if cfg.Camera.MotionThreshold < 0 || cfg.Camera.MotionThreshold > 100 {
		return fmt.Errorf("%w: camera.motion_threshold must be within [0, 100]", ErrInvalid)
	}

	if cfg.Detector.MaxHands <= 0 {
		cfg.Detector.MaxHands = def.Detector.MaxHands
	}
	if err := checkUnit("detector.min_confidence", cfg.Detector.MinConfidence); err != nil {
		return err
	}
	if err := checkUnit("detector.min_tracking_confidence", cfg.Detector.MinTrackingConf); err != nil {
		return err
	}

	if err := validateGesture(&cfg.Gesture, def.Gesture); err != nil {
		return err
	}

	if err := checkUnit("cursor.alpha", cfg.Cursor.Alpha); err != nil {
		return err
	}
	if err := checkUnit("cursor.direction_alpha", cfg.Cursor.DirectionAlpha); err != nil {
		return err
	}
	if cfg.Cursor.Deadzone < 0 {
		return fmt.Errorf("%w: cursor.deadzone must not be negative", ErrInvalid)
	}

	if cfg.Tracking.MaxLossFrames < 0 {
		return fmt.Errorf("%w: tracking.max_loss_frames must not be negative", ErrInvalid)
	}

	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2", ErrInvalid)
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = def.MQTT.ClientID
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	if cfg.MQTT.ConnectTimeout <= 0 {
		cfg.MQTT.ConnectTimeout = def.MQTT.ConnectTimeout
	}

	if _, ok := logger.ParseLogLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, cfg.Log.Level)
	}

	if cfg.Preview.Quality <= 0 || cfg.Preview.Quality > 100 {
		cfg.Preview.Quality = def.Preview.Quality
	}

	if cfg.Plugins.Timeout <= 0 {
		cfg.Plugins.Timeout = def.Plugins.Timeout
	}
	for i, b := range cfg.Plugins.Bindings {
		switch b.Event {
		case plugin.EventShot, plugin.EventArmed, plugin.EventDisarmed:
		default:
			return fmt.Errorf("%w: plugins.bindings[%d].event %q", ErrInvalid, i, b.Event)
		}
		if b.Plugin == "" || b.Action == "" {
			return fmt.Errorf("%w: plugins.bindings[%d] needs a plugin and an action", ErrInvalid, i)
		}
	}

	return nil
}

func validateGesture(p *gesture.Params, def gesture.Params) error {
	if p.ShootThreshold <= 0 {
		return fmt.Errorf("%w: gesture.shoot_threshold must be positive", ErrInvalid)
	}
	if p.ShootCooldown < 0 || p.State.ShootCooldown < 0 {
		return fmt.Errorf("%w: gesture shoot cooldown must not be negative", ErrInvalid)
	}
	if p.VelocityBufferSize <= 0 {
		p.VelocityBufferSize = def.VelocityBufferSize
	}
	if p.ShootPulseFrames <= 0 {
		p.ShootPulseFrames = def.ShootPulseFrames
	}
	if p.MinBentFingers <= 0 || p.MinBentFingers > 3 {
		return fmt.Errorf("%w: gesture.min_bent_fingers must be between 1 and 3", ErrInvalid)
	}
	if p.State.HistorySize <= 0 {
		p.State.HistorySize = def.State.HistorySize
	}
	if err := checkUnit("gesture.state.armed_enter_threshold", p.State.ArmedEnterThreshold); err != nil {
		return err
	}
	if err := checkUnit("gesture.state.armed_exit_threshold", p.State.ArmedExitThreshold); err != nil {
		return err
	}
	if p.State.ArmedExitThreshold > p.State.ArmedEnterThreshold {
		return fmt.Errorf("%w: gesture.state.armed_exit_threshold above armed_enter_threshold", ErrInvalid)
	}
	return nil
}

func checkUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalid, name, v)
	}
	return nil
}

// SessionConfig maps the settings onto the control session parameters.
func (c *Config) SessionConfig() control.Config {
	cfg := control.DefaultConfig()
	cfg.Gesture = c.Gesture
	cfg.Cursor = c.Cursor
	cfg.MaxLossFrames = c.Tracking.MaxLossFrames
	return cfg
}

// DBPath returns the configured database path, defaulting to the user's
// data directory.
func (c *Config) DBPath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultDataDir, DefaultDBFilename), nil
}

// PluginDir returns the configured plugin directory, defaulting to the
// user's data directory.
func (c *Config) PluginDir() (string, error) {
	if c.Plugins.Dir != "" {
		return c.Plugins.Dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultDataDir, DefaultPluginDirname), nil
}
