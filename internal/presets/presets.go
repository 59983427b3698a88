package presets

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"tubebatch/internal/store"
	"tubebatch/internal/video"
)

// NoEffects is the reserved choice that applies no edits at all.
const NoEffects = "None (No Effects)"

var (
	ErrEmptyName    = errors.New("preset name cannot be empty")
	ErrReservedName = errors.New("preset name is reserved")
	ErrNotFound     = errors.New("preset not found")
)

// Preset is a partial EditConfig. Nil fields keep the base value when the
// preset is applied.
type Preset struct {
	Speed          *float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
	Brightness     *float64 `json:"brightness,omitempty" yaml:"brightness,omitempty"`
	Contrast       *float64 `json:"contrast,omitempty" yaml:"contrast,omitempty"`
	Saturation     *float64 `json:"saturation,omitempty" yaml:"saturation,omitempty"`
	FlipMode       *string  `json:"flip_mode,omitempty" yaml:"flip_mode,omitempty"`
	AudioMode      *string  `json:"audio_mode,omitempty" yaml:"audio_mode,omitempty"`
	LogoPath       *string  `json:"logo_path,omitempty" yaml:"logo_path,omitempty"`
	AudioPath      *string  `json:"audio_path,omitempty" yaml:"audio_path,omitempty"`
	ZoomFactor     *float64 `json:"zoom_factor,omitempty" yaml:"zoom_factor,omitempty"`
	RotationAngle  *float64 `json:"rotation_angle,omitempty" yaml:"rotation_angle,omitempty"`
	OverlayOpacity *float64 `json:"overlay_opacity,omitempty" yaml:"overlay_opacity,omitempty"`
}

func (p Preset) IsEmpty() bool {
	return p == Preset{}
}

// Apply overlays the set fields of p onto base.
func (p Preset) Apply(base video.EditConfig) (video.EditConfig, error) {
	cfg := base

	setFloat(&cfg.Speed, p.Speed)
	setFloat(&cfg.Brightness, p.Brightness)
	setFloat(&cfg.Contrast, p.Contrast)
	setFloat(&cfg.Saturation, p.Saturation)
	setFloat(&cfg.Zoom, p.ZoomFactor)
	setFloat(&cfg.Rotation, p.RotationAngle)
	setFloat(&cfg.OverlayOpacity, p.OverlayOpacity)

	if p.LogoPath != nil {
		cfg.LogoPath = *p.LogoPath
	}
	if p.AudioPath != nil {
		cfg.AudioPath = *p.AudioPath
	}

	if p.FlipMode != nil {
		mode, err := video.ParseFlipMode(*p.FlipMode)
		if err != nil {
			return base, err
		}
		cfg.Flip = mode
	}
	if p.AudioMode != nil {
		mode, err := video.ParseAudioMode(*p.AudioMode)
		if err != nil {
			return base, err
		}
		cfg.Audio = mode
	}

	return cfg, nil
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

// FromEditConfig captures every field of cfg as a preset.
func FromEditConfig(cfg video.EditConfig) Preset {
	flip := string(cfg.Flip)
	audio := string(cfg.Audio)
	p := Preset{
		Speed:          &cfg.Speed,
		Brightness:     &cfg.Brightness,
		Contrast:       &cfg.Contrast,
		Saturation:     &cfg.Saturation,
		FlipMode:       &flip,
		AudioMode:      &audio,
		ZoomFactor:     &cfg.Zoom,
		RotationAngle:  &cfg.Rotation,
		OverlayOpacity: &cfg.OverlayOpacity,
	}
	if cfg.LogoPath != "" {
		p.LogoPath = &cfg.LogoPath
	}
	if cfg.AudioPath != "" {
		p.AudioPath = &cfg.AudioPath
	}
	return p
}

type Store struct {
	doc *store.Document[map[string]Preset]
}

func Open(path string) (*Store, error) {
	doc, err := store.Open(path, func() map[string]Preset { return map[string]Preset{} })
	if err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}
	return &Store{doc: doc}, nil
}

func (s *Store) Path() string {
	return s.doc.Path()
}

func (s *Store) List() []string {
	var names []string
	s.doc.Read(func(m map[string]Preset) {
		for name := range m {
			names = append(names, name)
		}
	})
	sort.Strings(names)
	return names
}

// Get returns the named preset, or an empty preset when the name is unknown.
func (s *Store) Get(name string) Preset {
	var p Preset
	s.doc.Read(func(m map[string]Preset) {
		p = m[name]
	})
	return p
}

func (s *Store) Has(name string) bool {
	var ok bool
	s.doc.Read(func(m map[string]Preset) {
		_, ok = m[name]
	})
	return ok
}

// Resolve turns a preset name into a concrete EditConfig. NoEffects, the
// empty name and unknown names resolve to the defaults.
func (s *Store) Resolve(name string) (video.EditConfig, error) {
	base := video.DefaultEditConfig()
	if name == "" || name == NoEffects {
		return base, nil
	}
	cfg, err := s.Get(name).Apply(base)
	if err != nil {
		return base, fmt.Errorf("preset %q: %w", name, err)
	}
	return cfg, nil
}

func (s *Store) Save(name string, p Preset) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if name == NoEffects {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	if _, err := p.Apply(video.DefaultEditConfig()); err != nil {
		return err
	}

	return s.doc.Update(func(m map[string]Preset) (map[string]Preset, error) {
		if m == nil {
			m = map[string]Preset{}
		}
		m[name] = p
		return m, nil
	})
}

func (s *Store) Delete(name string) error {
	return s.doc.Update(func(m map[string]Preset) (map[string]Preset, error) {
		if _, ok := m[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		delete(m, name)
		return m, nil
	})
}
