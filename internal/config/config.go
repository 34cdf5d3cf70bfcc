package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/inamate/canvas/internal/engine"
	"github.com/inamate/canvas/internal/viewport"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`

	HistoryLimit     int           `envconfig:"HISTORY_LIMIT" default:"50"`
	MinScale         float64       `envconfig:"MIN_SCALE" default:"0.1"`
	MaxScale         float64       `envconfig:"MAX_SCALE" default:"10"`
	ZoomStep         float64       `envconfig:"ZOOM_STEP" default:"1.1"`
	FreeDrawInterval time.Duration `envconfig:"FREEDRAW_INTERVAL" default:"8ms"`
	FrameInterval    time.Duration `envconfig:"FRAME_INTERVAL" default:"16ms"`
	RasterScale      float64       `envconfig:"RASTER_SCALE" default:"1"`
	GenerateDelay    time.Duration `envconfig:"GENERATE_DELAY" default:"150ms"`
	Advertise        bool          `envconfig:"MDNS_ADVERTISE" default:"false"`
	TuningFile       string        `envconfig:"TUNING_FILE"`

	Tuning Tuning `ignored:"true"`
}

// Tuning is the optional TOML override of the engine defaults.
//
//	[viewport]
//	min_scale = 0.25
//	[draw]
//	threshold = 2
//	stroke = "#38bdf8"
type Tuning struct {
	Viewport struct {
		MinScale float64 `toml:"min_scale"`
		MaxScale float64 `toml:"max_scale"`
		ZoomStep float64 `toml:"zoom_step"`
	} `toml:"viewport"`
	Draw struct {
		Threshold       float64 `toml:"threshold"`
		FreeDrawMS      int     `toml:"freedraw_interval_ms"`
		Stroke          string  `toml:"stroke"`
		StrokeWidth     float64 `toml:"stroke_width"`
		TextPlaceholder string  `toml:"text_placeholder"`
		FrameLabels     *bool   `toml:"frame_labels"`
	} `toml:"draw"`
	Image struct {
		Width  float64 `toml:"width"`
		Height float64 `toml:"height"`
	} `toml:"image"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.TuningFile != "" {
		t, err := LoadTuning(cfg.TuningFile)
		if err != nil {
			return nil, err
		}
		cfg.Tuning = t
	}
	return &cfg, nil
}

func LoadTuning(path string) (Tuning, error) {
	var t Tuning
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tuning file: %w", err)
	}
	if err := ParseTuning(data, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func ParseTuning(data []byte, t *Tuning) error {
	if err := toml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("parse tuning: %w", err)
	}
	return nil
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// OriginPatterns strips the scheme from each origin for the websocket
// accept check.
func (c *Config) OriginPatterns() []string {
	origins := c.Origins()
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		out = append(out, o)
	}
	return out
}

// Engine builds the engine tuning block. Tuning file values win over the
// environment; anything left zero falls back to the engine defaults.
func (c *Config) Engine() engine.Config {
	ec := engine.DefaultConfig()
	ec.Viewport = viewport.Limits{
		MinScale: pick(c.Tuning.Viewport.MinScale, c.MinScale),
		MaxScale: pick(c.Tuning.Viewport.MaxScale, c.MaxScale),
		ZoomStep: pick(c.Tuning.Viewport.ZoomStep, c.ZoomStep),
	}
	ec.FreeDrawInterval = c.FreeDrawInterval
	if ms := c.Tuning.Draw.FreeDrawMS; ms > 0 {
		ec.FreeDrawInterval = time.Duration(ms) * time.Millisecond
	}

	d := c.Tuning.Draw
	ec.DrawThreshold = pick(d.Threshold, ec.DrawThreshold)
	if d.Stroke != "" {
		ec.DrawStyle.Stroke = d.Stroke
	}
	ec.DrawStyle.StrokeWidth = pick(d.StrokeWidth, ec.DrawStyle.StrokeWidth)
	if d.TextPlaceholder != "" {
		ec.TextPlaceholder = d.TextPlaceholder
	}
	if d.FrameLabels != nil {
		ec.FrameLabels = *d.FrameLabels
	}
	ec.ImageSize.X = pick(c.Tuning.Image.Width, ec.ImageSize.X)
	ec.ImageSize.Y = pick(c.Tuning.Image.Height, ec.ImageSize.Y)
	return ec
}

func pick(override, fallback float64) float64 {
	if override > 0 {
		return override
	}
	return fallback
}
