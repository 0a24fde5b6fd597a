// ABOUTME: YAML configuration for the resonate-play CLI
// ABOUTME: Loads settings from disk and fills defaults for missing keys
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/resample"
)

const (
	// DefaultDir is the configuration directory under the home directory
	DefaultDir = ".resonate"
	// DefaultFile is the configuration filename
	DefaultFile = "config.yaml"
)

// ErrInvalid is returned by Validate for out-of-range settings
var ErrInvalid = errors.New("invalid configuration")

// Device holds output device settings
type Device struct {
	Frequency    int    `yaml:"frequency,omitempty"`
	Channels     int    `yaml:"channels,omitempty"`
	BufferFrames int    `yaml:"buffer_frames,omitempty"`
	SampleType   string `yaml:"sample_type,omitempty"`
	// Path is the output file of the wav sink
	Path string `yaml:"path,omitempty"`
	// FollowRate reopens the device at each decoder's native rate
	FollowRate bool `yaml:"follow_rate,omitempty"`
}

// Control holds control server settings
type Control struct {
	// Addr is the websocket listen address; empty disables the server
	Addr string `yaml:"addr,omitempty"`
	MDNS bool   `yaml:"mdns,omitempty"`
	Name string `yaml:"name,omitempty"`
}

// Config is the resonate-play configuration file
type Config struct {
	Sink      string `yaml:"sink,omitempty"`
	Device    Device `yaml:"device,omitempty"`
	Resampler string `yaml:"resampler,omitempty"`
	// Volume is a percentage, 0-100
	Volume  int     `yaml:"volume"`
	Loop    int     `yaml:"loop,omitempty"`
	Control Control `yaml:"control,omitempty"`
	LogFile string  `yaml:"log_file,omitempty"`
	// CacheDir stores downloaded http(s) resources
	CacheDir string `yaml:"cache_dir,omitempty"`

	path string
}

// Default returns the built-in settings.
func Default() *Config {
	dev := output.DefaultConfig()
	return &Config{
		Sink: "oto",
		Device: Device{
			Frequency:    dev.Frequency,
			Channels:     dev.Channels,
			BufferFrames: dev.BufferFrames,
			SampleType:   dev.SampleType.String(),
			Path:         dev.Path,
		},
		Resampler: "linear",
		Volume:    100,
		LogFile:   "resonate-play.log",
	}
}

// DefaultPath returns ~/.resonate/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultDir, DefaultFile), nil
}

// Load reads the config at path over the defaults. An empty path selects
// DefaultPath; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// Save writes the config back to its path.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config has no path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks ranges and names.
func (c *Config) Validate() error {
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume %d out of range 0-100: %w", c.Volume, ErrInvalid)
	}
	if c.Device.Frequency < 0 || c.Device.Channels < 0 || c.Device.BufferFrames < 0 {
		return fmt.Errorf("negative device setting: %w", ErrInvalid)
	}
	if _, err := ParseSampleType(c.Device.SampleType); err != nil {
		return err
	}
	if _, err := resample.ByName(c.Resampler); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	return nil
}

// Output converts the device section to an output configuration.
func (c *Config) Output() output.Config {
	st, _ := ParseSampleType(c.Device.SampleType)
	return output.Config{
		Frequency:    c.Device.Frequency,
		Channels:     c.Device.Channels,
		SampleType:   st,
		BufferFrames: c.Device.BufferFrames,
		Path:         c.Device.Path,
		Realtime:     true,
	}
}

// EngineVolume scales the percentage volume to the engine range.
func (c *Config) EngineVolume() int {
	return c.Volume * audio.MaxVolume / 100
}

// ParseSampleType maps s16, s24, s24_32 and s32 to sample types. An
// empty name selects s16.
func ParseSampleType(name string) (audio.SampleType, error) {
	switch name {
	case "", "s16":
		return audio.SampleTypeS16, nil
	case "s24":
		return audio.SampleTypeS24, nil
	case "s24_32":
		return audio.SampleTypeS24Padded, nil
	case "s32":
		return audio.SampleTypeS32, nil
	}
	return audio.SampleTypeUnknown, fmt.Errorf("unknown sample type %q: %w", name, ErrInvalid)
}
