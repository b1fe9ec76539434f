package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"zebra-emulator/internal/domain"
	"zebra-emulator/internal/markup"
)

// Render backends.
const (
	BackendLabelary = "labelary"
	BackendCommand  = "command"
)

// DefaultRenderCommand is the local rasteriser looked up on PATH. It reads
// markup on stdin and writes PNG on stdout.
const DefaultRenderCommand = "zplrender"

// Preview strategies.
const (
	PreviewFile   = "file"
	PreviewWindow = "window"
)

// Config is built once at startup and only read afterwards.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Label       LabelConfig       `yaml:"label"`
	Render      RenderConfig      `yaml:"render"`
	Preview     PreviewConfig     `yaml:"preview"`
	RateLimiter RateLimiterConfig `yaml:"rate_limiter"`
	Logger      LoggerConfig      `yaml:"logger"`
}

type ServerConfig struct {
	Interface      string `yaml:"interface"`
	Port           int    `yaml:"port"`
	BodyLimitBytes int    `yaml:"body_limit_bytes"`
}

type LabelConfig struct {
	WidthIn  float64 `yaml:"width_in"`
	HeightIn float64 `yaml:"height_in"`
	DPI      int     `yaml:"dpi"`
	Charset  string  `yaml:"charset"`
}

type RenderConfig struct {
	Backend  string         `yaml:"backend"`
	Timeout  time.Duration  `yaml:"timeout"`
	Labelary LabelaryConfig `yaml:"labelary"`
	Command  CommandConfig  `yaml:"command"`
}

type LabelaryConfig struct {
	BaseURL string `yaml:"base_url"`
}

type CommandConfig struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}

type PreviewConfig struct {
	Strategy string        `yaml:"strategy"`
	File     FilePreview   `yaml:"file"`
	Window   WindowPreview `yaml:"window"`
}

type FilePreview struct {
	Dir        string `yaml:"dir"`
	Name       string `yaml:"name"`
	PerRequest bool   `yaml:"per_request"`
	OpenViewer bool   `yaml:"open_viewer"`
}

type WindowPreview struct {
	ChromePath   string        `yaml:"chrome_path"`
	NoSandbox    bool          `yaml:"no_sandbox"`
	Headless     bool          `yaml:"headless"`
	UserDataDir  string        `yaml:"user_data_dir"`
	Scale        int           `yaml:"scale"`
	PollInterval time.Duration `yaml:"poll_interval"`
	OpenTimeout  time.Duration `yaml:"open_timeout"`
}

type RateLimiterConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Max       int           `yaml:"max"`
	Interval  time.Duration `yaml:"interval"`
	RedisHost string        `yaml:"redis_host"`
	RedisDB   int           `yaml:"redis_db"`
}

type LoggerConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the settings of a 2.25x1.25in label on a 203 dpi printer
// served on 127.0.0.1:8080 and rendered by a local command. Labels never
// leave the machine unless the labelary backend is chosen.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Interface:      "127.0.0.1",
			Port:           8080,
			BodyLimitBytes: 4 * 1024 * 1024,
		},
		Label: LabelConfig{
			WidthIn:  2.25,
			HeightIn: 1.25,
			DPI:      int(domain.DefaultResolution),
			Charset:  markup.DefaultCharset,
		},
		Render: RenderConfig{
			Backend:  BackendCommand,
			Timeout:  10 * time.Second,
			Command:  CommandConfig{Path: DefaultRenderCommand},
			Labelary: LabelaryConfig{BaseURL: "https://api.labelary.com"},
		},
		Preview: PreviewConfig{
			Strategy: PreviewFile,
			File:     FilePreview{Name: "zebra_label.png", OpenViewer: true},
			Window: WindowPreview{
				Scale:        1,
				PollInterval: 50 * time.Millisecond,
				OpenTimeout:  15 * time.Second,
			},
		},
		RateLimiter: RateLimiterConfig{
			Max:      60,
			Interval: time.Minute,
		},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Path returns flagPath, or the file named by CONFIG_PATH when it is empty.
func Path(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv("CONFIG_PATH")
}

// Read overlays the YAML file at path on the defaults. An empty path yields
// the defaults. The result is not validated: callers apply their overrides
// first and then call Validate once.
func Read(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.BodyLimitBytes <= 0 {
		errs = append(errs, errors.New("server.body_limit_bytes must be positive"))
	}
	if _, err := c.Canvas(); err != nil {
		errs = append(errs, fmt.Errorf("label: %w", err))
	}
	if !markup.Supported(c.Label.Charset) {
		errs = append(errs, fmt.Errorf("label.charset %q is not supported", c.Label.Charset))
	}
	if c.Render.Timeout <= 0 {
		errs = append(errs, errors.New("render.timeout must be positive"))
	}
	switch c.Render.Backend {
	case BackendLabelary:
	case BackendCommand:
		if c.Render.Command.Path == "" {
			errs = append(errs, errors.New("render.command.path is required for the command backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("render.backend %q is not one of labelary, command", c.Render.Backend))
	}
	switch c.Preview.Strategy {
	case PreviewFile:
	case PreviewWindow:
		if c.Preview.Window.Scale < 1 {
			errs = append(errs, errors.New("preview.window.scale must be at least 1"))
		}
	default:
		errs = append(errs, fmt.Errorf("preview.strategy %q is not one of file, window", c.Preview.Strategy))
	}
	if c.RateLimiter.Enabled {
		if c.RateLimiter.Max <= 0 {
			errs = append(errs, errors.New("rate_limiter.max must be positive"))
		}
		if c.RateLimiter.Interval <= 0 {
			errs = append(errs, errors.New("rate_limiter.interval must be positive"))
		}
	}
	return errors.Join(errs...)
}

// Canvas derives the pixel canvas from the label settings.
func (c Config) Canvas() (domain.Canvas, error) {
	return domain.NewCanvas(c.Label.WidthIn, c.Label.HeightIn, domain.Resolution(c.Label.DPI))
}

// ListenAddr is interface:port.
func (c Config) ListenAddr() string {
	host := c.Server.Interface
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}
