// ABOUTME: Tests for the CLI configuration file
// ABOUTME: Tests defaults, YAML overrides, validation and round trips
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := Default()
	if cfg.Sink != want.Sink || cfg.Volume != want.Volume || cfg.Device != want.Device {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Path() != path {
		t.Errorf("expected path %s, got %s", path, cfg.Path())
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
sink: wav
resampler: soxr
volume: 50
loop: -1
device:
  frequency: 44100
  sample_type: s24
control:
  addr: ":8928"
  mdns: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Sink != "wav" || cfg.Resampler != "soxr" || cfg.Loop != -1 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Control.Addr != ":8928" || !cfg.Control.MDNS {
		t.Errorf("unexpected control section %+v", cfg.Control)
	}

	out := cfg.Output()
	if out.Frequency != 44100 || out.SampleType != audio.SampleTypeS24 {
		t.Errorf("unexpected output config %+v", out)
	}
	// keys absent from the file keep their defaults
	if out.Channels != 2 || out.BufferFrames != Default().Device.BufferFrames {
		t.Errorf("expected default channels and period, got %+v", out)
	}
	if cfg.EngineVolume() != audio.MaxVolume/2 {
		t.Errorf("expected half volume, got %d", cfg.EngineVolume())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "volume", body: "volume: 150\n"},
		{name: "sample type", body: "device:\n  sample_type: f32\n"},
		{name: "resampler", body: "resampler: cubic\n"},
		{name: "negative frequency", body: "device:\n  frequency: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}

	if _, err := Load(writeConfig(t, "volume: [")); err == nil {
		t.Error("expected a parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Sink = "malgo"
	cfg.Volume = 30
	if err := cfg.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Sink != "malgo" || loaded.Volume != 30 {
		t.Errorf("round trip lost settings: %+v", loaded)
	}
}

func TestParseSampleType(t *testing.T) {
	for _, st := range []audio.SampleType{audio.SampleTypeS16, audio.SampleTypeS24, audio.SampleTypeS24Padded, audio.SampleTypeS32} {
		got, err := ParseSampleType(st.String())
		if err != nil || got != st {
			t.Errorf("%s: got %v (%v)", st, got, err)
		}
	}
}
