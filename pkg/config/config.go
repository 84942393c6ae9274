// Package config loads graphlens settings from a TOML file.
//
// Every field has a default, so an empty or missing file is valid. CLI flags
// override file values after [Load].
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/graphlens/pkg/cache"
	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/explore"
	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/layout"
)

// FileName is the config file looked up in [DefaultPath].
const FileName = "config.toml"

// Config is the whole configuration.
type Config struct {
	Center         string `toml:"center"`
	PageURL        string `toml:"page_url"`
	ExpandEndpoint string `toml:"expand_endpoint"`
	FilterEndpoint string `toml:"filter_endpoint"`
	CenterColor    string `toml:"center_color"`

	Features         Features         `toml:"features"`
	PropertiesEditor PropertiesEditor `toml:"properties_editor"`
	Layout           Layout           `toml:"layout"`
	Cache            Cache            `toml:"cache"`
}

// Features switches UI and exploration features.
type Features struct {
	Expand       bool `toml:"expand"`
	ReCenter     bool `toml:"re_center"`
	Pin          bool `toml:"pin"`
	DragNew      bool `toml:"drag_new"`
	OpenNewTab   bool `toml:"open_new_tab"`
	ControlPanel bool `toml:"control_panel"`
	InfoPanel    bool `toml:"info_panel"`
	Help         bool `toml:"help"`
}

// PropertiesEditor switches the editing features.
type PropertiesEditor struct {
	AddNew          bool `toml:"add_new"`
	ChangeEdge      bool `toml:"change_edge"`
	DeleteSelection bool `toml:"delete_selection"`
}

// Layout sizes the canvas.
type Layout struct {
	Width   float64 `toml:"width"`
	Height  float64 `toml:"height"`
	Bounded bool    `toml:"bounded"`
	Charge  float64 `toml:"charge"`
}

// Cache selects where expansion responses are cached.
type Cache struct {
	Backend   string   `toml:"backend"`
	TTL       Duration `toml:"ttl"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
}

// Duration reads TOML strings such as "10m".
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns the configuration used when no file sets a value.
func Default() Config {
	return Config{
		ExpandEndpoint: "/vertices",
		FilterEndpoint: "/filter",
		CenterColor:    graph.CenterColor,
		Features: Features{
			Expand: true, ReCenter: true, Pin: true, DragNew: true,
			OpenNewTab: true, ControlPanel: true, InfoPanel: true, Help: true,
		},
		PropertiesEditor: PropertiesEditor{AddNew: true, ChangeEdge: true, DeleteSelection: true},
		Layout:           Layout{Width: 960, Height: 600, Bounded: true, Charge: -300},
		Cache:            Cache{Backend: cache.BackendFile, TTL: Duration{10 * time.Minute}, RedisAddr: "localhost:6379"},
	}
}

// DefaultPath returns ~/.config/graphlens/config.toml, honouring
// XDG_CONFIG_HOME.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "graphlens", FileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "graphlens", FileName), nil
}

// Load reads path over [Default]. A missing file is not an error when
// optional is set, which is how the CLI treats the default path.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, gerrors.Wrap(gerrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return Config{}, gerrors.New(gerrors.ErrCodeInvalidConfig, "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks values that defaults cannot repair.
func (c Config) Validate() error {
	if c.PageURL != "" {
		if err := gerrors.ValidateURL(c.PageURL); err != nil {
			return gerrors.Wrap(gerrors.ErrCodeInvalidConfig, err, "page_url")
		}
	}
	if c.Layout.Width <= 0 || c.Layout.Height <= 0 {
		return gerrors.New(gerrors.ErrCodeInvalidConfig, "layout size must be positive, got %gx%g", c.Layout.Width, c.Layout.Height)
	}
	if c.Cache.TTL.Duration < 0 {
		return gerrors.New(gerrors.ErrCodeInvalidConfig, "cache ttl must not be negative")
	}
	switch c.Cache.Backend {
	case "", cache.BackendNone, cache.BackendFile, cache.BackendRedis:
	default:
		return gerrors.New(gerrors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.CenterColor != "" && !isHexColor(c.CenterColor) {
		return gerrors.New(gerrors.ErrCodeInvalidConfig, "center_color %q is not a #rrggbb colour", c.CenterColor)
	}
	return nil
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// ExploreFeatures maps the feature switches onto the explorer's.
func (c Config) ExploreFeatures() explore.Features {
	return explore.Features{
		Expand:          c.Features.Expand,
		ReCenter:        c.Features.ReCenter,
		Pin:             c.Features.Pin,
		DragNew:         c.Features.DragNew && c.PropertiesEditor.AddNew,
		ChangeEdge:      c.PropertiesEditor.ChangeEdge,
		DeleteSelection: c.PropertiesEditor.DeleteSelection,
	}
}

// LayoutPolicy returns the layout policy. Pinning follows the pin feature.
func (c Config) LayoutPolicy() layout.Policy {
	return layout.Policy{
		Width:      c.Layout.Width,
		Height:     c.Layout.Height,
		Bounded:    c.Layout.Bounded,
		DisablePin: !c.Features.Pin,
	}
}

// CacheOptions returns the options for [cache.Open].
func (c Config) CacheOptions() cache.Options {
	opts := cache.Options{Backend: c.Cache.Backend, Dir: c.Cache.Dir}
	if c.Cache.Backend == cache.BackendRedis {
		opts.RedisURL = c.Cache.RedisAddr
		if !strings.Contains(opts.RedisURL, "://") {
			opts.RedisURL = "redis://" + opts.RedisURL
		}
	}
	return opts
}

// Simulation returns the force simulation with the configured charge.
func (c Config) Simulation() layout.Simulation {
	f := layout.NewForce()
	if c.Layout.Charge != 0 {
		f.Charge = c.Layout.Charge
	}
	return f
}
