package video

import (
	"errors"
	"testing"
)

func TestDefaultEditConfig(t *testing.T) {
	cfg := DefaultEditConfig()

	if cfg.Speed != 1.0 || cfg.Brightness != 1.0 || cfg.Contrast != 1.0 || cfg.Saturation != 1.0 {
		t.Errorf("multipliers = %+v, want all 1.0", cfg)
	}
	if cfg.Zoom != 1.0 {
		t.Errorf("Zoom = %v, want 1.0", cfg.Zoom)
	}
	if cfg.Flip != FlipNone {
		t.Errorf("Flip = %q, want %q", cfg.Flip, FlipNone)
	}
	if cfg.Audio != AudioKeep {
		t.Errorf("Audio = %q, want %q", cfg.Audio, AudioKeep)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestEditConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EditConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *EditConfig) {}},
		{name: "zeroSpeed", mutate: func(c *EditConfig) { c.Speed = 0 }, wantErr: true},
		{name: "negativeSpeed", mutate: func(c *EditConfig) { c.Speed = -1 }, wantErr: true},
		{name: "zoomBelowOne", mutate: func(c *EditConfig) { c.Zoom = 0.9 }, wantErr: true},
		{name: "opacityAboveOne", mutate: func(c *EditConfig) { c.OverlayOpacity = 1.5 }, wantErr: true},
		{name: "opacityNegative", mutate: func(c *EditConfig) { c.OverlayOpacity = -0.1 }, wantErr: true},
		{name: "negativeContrast", mutate: func(c *EditConfig) { c.Contrast = -1 }, wantErr: true},
		{name: "unknownFlip", mutate: func(c *EditConfig) { c.Flip = "diagonal" }, wantErr: true},
		{name: "unknownAudio", mutate: func(c *EditConfig) { c.Audio = "mute" }, wantErr: true},
		{name: "replaceWithoutPath", mutate: func(c *EditConfig) { c.Audio = AudioReplace }, wantErr: true},
		{
			name: "replaceWithPath",
			mutate: func(c *EditConfig) {
				c.Audio = AudioReplace
				c.AudioPath = "/music/track.mp3"
			},
		},
		{
			name: "fullyEdited",
			mutate: func(c *EditConfig) {
				c.Speed = 1.25
				c.Zoom = 1.2
				c.Rotation = 3
				c.OverlayOpacity = 0.3
				c.Flip = FlipHorizontal
				c.Audio = AudioRemove
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEditConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParseFlipMode(t *testing.T) {
	tests := []struct {
		input   string
		want    FlipMode
		wantErr bool
	}{
		{input: "", want: FlipNone},
		{input: "None", want: FlipNone},
		{input: "Horizontal", want: FlipHorizontal},
		{input: "vertical", want: FlipVertical},
		{input: "sideways", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFlipMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFlipMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFlipMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAudioMode(t *testing.T) {
	tests := []struct {
		input   string
		want    AudioMode
		wantErr bool
	}{
		{input: "Keep Original", want: AudioKeep},
		{input: "keep", want: AudioKeep},
		{input: "Remove", want: AudioRemove},
		{input: "replace", want: AudioReplace},
		{input: "louder", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAudioMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAudioMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAudioMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
