package video

import (
	"errors"
	"fmt"
	"strings"
)

type FlipMode string

const (
	FlipNone       FlipMode = "none"
	FlipHorizontal FlipMode = "horizontal"
	FlipVertical   FlipMode = "vertical"
)

type AudioMode string

const (
	AudioKeep    AudioMode = "keep"
	AudioRemove  AudioMode = "remove"
	AudioReplace AudioMode = "replace"
)

var ErrInvalidConfig = errors.New("invalid edit config")

// EditConfig describes the edits applied to one source file. Multipliers of
// 1.0 and zero-valued optional fields leave the source untouched.
type EditConfig struct {
	Speed          float64   `json:"speed" yaml:"speed"`
	Brightness     float64   `json:"brightness" yaml:"brightness"`
	Contrast       float64   `json:"contrast" yaml:"contrast"`
	Saturation     float64   `json:"saturation" yaml:"saturation"`
	Flip           FlipMode  `json:"flip_mode" yaml:"flip_mode"`
	Audio          AudioMode `json:"audio_mode" yaml:"audio_mode"`
	LogoPath       string    `json:"logo_path,omitempty" yaml:"logo_path"`
	AudioPath      string    `json:"audio_path,omitempty" yaml:"audio_path"`
	Zoom           float64   `json:"zoom_factor" yaml:"zoom_factor"`
	Rotation       float64   `json:"rotation_angle" yaml:"rotation_angle"`
	OverlayOpacity float64   `json:"overlay_opacity" yaml:"overlay_opacity"`
}

func DefaultEditConfig() EditConfig {
	return EditConfig{
		Speed:      1.0,
		Brightness: 1.0,
		Contrast:   1.0,
		Saturation: 1.0,
		Flip:       FlipNone,
		Audio:      AudioKeep,
		Zoom:       1.0,
	}
}

func (c EditConfig) Validate() error {
	var problems []string

	if c.Speed <= 0 {
		problems = append(problems, fmt.Sprintf("speed must be > 0, got %g", c.Speed))
	}
	if c.Brightness < 0 || c.Contrast < 0 || c.Saturation < 0 {
		problems = append(problems, "brightness, contrast and saturation must be >= 0")
	}
	if c.Zoom < 1.0 {
		problems = append(problems, fmt.Sprintf("zoom_factor must be >= 1.0, got %g", c.Zoom))
	}
	if c.OverlayOpacity < 0 || c.OverlayOpacity > 1 {
		problems = append(problems, fmt.Sprintf("overlay_opacity must be within [0,1], got %g", c.OverlayOpacity))
	}

	switch c.Flip {
	case FlipNone, FlipHorizontal, FlipVertical:
	default:
		problems = append(problems, fmt.Sprintf("unknown flip_mode %q", c.Flip))
	}

	switch c.Audio {
	case AudioKeep, AudioRemove:
	case AudioReplace:
		if c.AudioPath == "" {
			problems = append(problems, "audio_mode replace requires audio_path")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown audio_mode %q", c.Audio))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ParseFlipMode accepts the canonical values as well as the capitalised
// labels older preset files were written with ("None", "Horizontal").
func ParseFlipMode(s string) (FlipMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FlipNone, nil
	case "horizontal":
		return FlipHorizontal, nil
	case "vertical":
		return FlipVertical, nil
	}
	return "", fmt.Errorf("%w: unknown flip mode %q", ErrInvalidConfig, s)
}

func ParseAudioMode(s string) (AudioMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep", "keep original":
		return AudioKeep, nil
	case "remove":
		return AudioRemove, nil
	case "replace":
		return AudioReplace, nil
	}
	return "", fmt.Errorf("%w: unknown audio mode %q", ErrInvalidConfig, s)
}
