// Package config loads kiosk settings: defaults, then an optional YAML
// file, then a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Camera  CameraConfig  `yaml:"camera"`
	Stream  StreamConfig  `yaml:"stream"`
	Channel ChannelConfig `yaml:"channel"`
	Enroll  EnrollConfig  `yaml:"enroll"`
	Login   LoginConfig   `yaml:"login"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	URL string `yaml:"url"`
}

type CameraConfig struct {
	Device      int           `yaml:"device"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
	ReadFPS     float64       `yaml:"read_fps"`
}

type StreamConfig struct {
	Interval    time.Duration `yaml:"interval"`
	JPEGQuality int           `yaml:"jpeg_quality"`
}

type ChannelConfig struct {
	ReconnectBase time.Duration `yaml:"reconnect_base"`
	ReconnectMax  time.Duration `yaml:"reconnect_max"`
}

type EnrollConfig struct {
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
	StallTimeout  time.Duration `yaml:"stall_timeout"`
}

type LoginConfig struct {
	RedirectDelay time.Duration `yaml:"redirect_delay"`
	// PageLinger is how long the followed page stays up. Zero waits for a key.
	PageLinger time.Duration `yaml:"page_linger"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{URL: "ws://127.0.0.1:5000/ws"},
		Camera: CameraConfig{
			Device:      0,
			OpenTimeout: 15 * time.Second,
			ReadFPS:     10,
		},
		Stream: StreamConfig{
			Interval:    100 * time.Millisecond,
			JPEGQuality: 70,
		},
		Channel: ChannelConfig{
			ReconnectBase: time.Second,
			ReconnectMax:  30 * time.Second,
		},
		Enroll: EnrollConfig{
			SubmitTimeout: 10 * time.Second,
			StallTimeout:  2 * time.Minute,
		},
		Login: LoginConfig{
			RedirectDelay: 1500 * time.Millisecond,
			PageLinger:    10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "kiosk.log",
		},
	}
}

// Load builds the configuration. A missing file at path is not an error;
// an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// .env is optional; the process environment still applies without it.
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.URL = GetEnv("KIOSK_URL", c.Server.URL)
	c.Camera.Device = GetEnvInt("KIOSK_CAMERA_DEVICE", c.Camera.Device)
	c.Stream.JPEGQuality = GetEnvInt("KIOSK_JPEG_QUALITY", c.Stream.JPEGQuality)
	c.Log.Level = GetEnv("KIOSK_LOG_LEVEL", c.Log.Level)
	c.Log.Format = GetEnv("KIOSK_LOG_FORMAT", c.Log.Format)
	c.Log.File = GetEnv("KIOSK_LOG_FILE", c.Log.File)
	c.Metrics.Addr = GetEnv("KIOSK_METRICS_ADDR", c.Metrics.Addr)

	var err error
	if c.Stream.Interval, err = getEnvDuration("KIOSK_STREAM_INTERVAL", c.Stream.Interval); err != nil {
		return err
	}
	if c.Camera.OpenTimeout, err = getEnvDuration("KIOSK_CAMERA_OPEN_TIMEOUT", c.Camera.OpenTimeout); err != nil {
		return err
	}
	if c.Enroll.StallTimeout, err = getEnvDuration("KIOSK_STALL_TIMEOUT", c.Enroll.StallTimeout); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings the kiosk cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.URL == "" {
		errs = append(errs, errors.New("server.url is required"))
	}
	if c.Camera.Device < 0 {
		errs = append(errs, fmt.Errorf("camera.device must be >= 0, got %d", c.Camera.Device))
	}
	if c.Camera.ReadFPS <= 0 {
		errs = append(errs, fmt.Errorf("camera.read_fps must be > 0, got %v", c.Camera.ReadFPS))
	}
	if c.Stream.Interval <= 0 {
		errs = append(errs, fmt.Errorf("stream.interval must be > 0, got %v", c.Stream.Interval))
	}
	if c.Stream.JPEGQuality < 1 || c.Stream.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("stream.jpeg_quality must be in 1..100, got %d", c.Stream.JPEGQuality))
	}
	if c.Channel.ReconnectBase <= 0 || c.Channel.ReconnectMax < c.Channel.ReconnectBase {
		errs = append(errs, fmt.Errorf("channel: need 0 < reconnect_base <= reconnect_max, got %v and %v",
			c.Channel.ReconnectBase, c.Channel.ReconnectMax))
	}
	return errors.Join(errs...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
