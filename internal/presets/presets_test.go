package presets

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"tubebatch/internal/video"
)

func ptr[T any](v T) *T {
	return &v
}

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presets.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s, path
}

func TestOpenLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	legacy := `{
    "Mirror": {"flip_mode": "Horizontal", "zoom_factor": 1.1, "rotation_angle": 2, "overlay_opacity": 0.2}
}`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	cfg, err := s.Resolve("Mirror")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Flip != video.FlipHorizontal || cfg.Zoom != 1.1 || cfg.Rotation != 2 || cfg.OverlayOpacity != 0.2 {
		t.Errorf("Resolve() = %+v", cfg)
	}
	if cfg.Speed != 1.0 {
		t.Errorf("unset Speed = %v, want default 1.0", cfg.Speed)
	}
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.json")
	if err := os.WriteFile(path, []byte("[1,2"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Open() expected error for corrupt presets file")
	}
}

func TestSaveListGet(t *testing.T) {
	s, path := openStore(t)

	if err := s.Save("Zoomed", Preset{ZoomFactor: ptr(1.3)}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save("Alpha", Preset{FlipMode: ptr("vertical")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if got := s.List(); !slices.Equal(got, []string{"Alpha", "Zoomed"}) {
		t.Errorf("List() = %v, want sorted names", got)
	}

	if p := s.Get("Zoomed"); p.ZoomFactor == nil || *p.ZoomFactor != 1.3 {
		t.Errorf("Get(Zoomed) = %+v", p)
	}
	if p := s.Get("Unknown"); !p.IsEmpty() {
		t.Errorf("Get(Unknown) = %+v, want empty preset", p)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.Has("Alpha") || !reopened.Has("Zoomed") {
		t.Errorf("reopened store lost presets: %v", reopened.List())
	}
}

func TestSaveOverwrites(t *testing.T) {
	s, _ := openStore(t)

	_ = s.Save("P", Preset{Speed: ptr(2.0)})
	if err := s.Save("P", Preset{Speed: ptr(0.5)}); err != nil {
		t.Fatal(err)
	}
	if got := *s.Get("P").Speed; got != 0.5 {
		t.Errorf("Speed = %v, want 0.5", got)
	}
	if n := len(s.List()); n != 1 {
		t.Errorf("List() has %d names, want 1", n)
	}
}

func TestSaveRejected(t *testing.T) {
	tests := []struct {
		name       string
		presetName string
		preset     Preset
		wantErr    error
	}{
		{name: "emptyName", presetName: "", wantErr: ErrEmptyName},
		{name: "blankName", presetName: "   ", wantErr: ErrEmptyName},
		{name: "reservedName", presetName: NoEffects, wantErr: ErrReservedName},
		{name: "badFlip", presetName: "Bad", preset: Preset{FlipMode: ptr("diagonal")}, wantErr: video.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, path := openStore(t)

			err := s.Save(tt.presetName, tt.preset)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Save() error = %v, want %v", err, tt.wantErr)
			}
			if len(s.List()) != 0 {
				t.Errorf("List() = %v, want empty", s.List())
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Error("presets file was written for a rejected save")
			}
		})
	}
}

func TestDelete(t *testing.T) {
	s, path := openStore(t)

	if err := s.Save("Keep", Preset{Speed: ptr(1.5)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save("Drop", Preset{Speed: ptr(0.8)}); err != nil {
		t.Fatal(err)
	}

	if err := s.Delete("Drop"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := s.List(); !slices.Equal(got, []string{"Keep"}) {
		t.Errorf("List() = %v, want [Keep]", got)
	}

	before, _ := os.ReadFile(path)
	if err := s.Delete("Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(Missing) error = %v, want ErrNotFound", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("presets file changed after deleting an unknown preset")
	}
	if got := s.List(); !slices.Equal(got, []string{"Keep"}) {
		t.Errorf("List() after failed delete = %v", got)
	}
}

func TestResolve(t *testing.T) {
	s, _ := openStore(t)
	_ = s.Save("Fast", Preset{Speed: ptr(1.5), AudioMode: ptr("Remove")})

	tests := []struct {
		name   string
		preset string
		want   func(video.EditConfig) bool
	}{
		{name: "noEffects", preset: NoEffects, want: func(c video.EditConfig) bool { return c == video.DefaultEditConfig() }},
		{name: "emptyName", preset: "", want: func(c video.EditConfig) bool { return c == video.DefaultEditConfig() }},
		{name: "unknown", preset: "Ghost", want: func(c video.EditConfig) bool { return c == video.DefaultEditConfig() }},
		{name: "known", preset: "Fast", want: func(c video.EditConfig) bool { return c.Speed == 1.5 && c.Audio == video.AudioRemove }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := s.Resolve(tt.preset)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !tt.want(cfg) {
				t.Errorf("Resolve(%q) = %+v", tt.preset, cfg)
			}
		})
	}
}

func TestApplyKeepsUnsetFields(t *testing.T) {
	base := video.DefaultEditConfig()
	base.LogoPath = "/logo.png"

	cfg, err := Preset{Contrast: ptr(1.2)}.Apply(base)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Contrast != 1.2 || cfg.LogoPath != "/logo.png" || cfg.Speed != 1.0 {
		t.Errorf("Apply() = %+v", cfg)
	}

	if _, err := (Preset{AudioMode: ptr("louder")}).Apply(base); !errors.Is(err, video.ErrInvalidConfig) {
		t.Errorf("Apply() error = %v, want ErrInvalidConfig", err)
	}
}

func TestFromEditConfigRoundTrip(t *testing.T) {
	cfg := video.DefaultEditConfig()
	cfg.Speed = 1.25
	cfg.Flip = video.FlipVertical
	cfg.LogoPath = "/brand.png"

	got, err := FromEditConfig(cfg).Apply(video.DefaultEditConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got != cfg {
		t.Errorf("round trip = %+v, want %+v", got, cfg)
	}
}
