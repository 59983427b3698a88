package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tubebatch/internal/distribution"
	"tubebatch/internal/presets"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	want := &Session{
		Batch: BatchSettings{
			OutputFolder:  "/out",
			TitleTemplate: "{filename} - My Awesome Video",
			Description:   "desc",
			Tags:          "a,b",
			Privacy:       "unlisted",
			Schedule:      "01/02/2027 09:00",
		},
		Queue: []Entry{
			{VideoPath: "/in/a.mp4", CredentialRef: "tokens/token_UC1.json", Preset: "Mirror"},
			{VideoPath: "/in/b.mov", CredentialRef: "tokens/token_UC2.json", Preset: presets.NoEffects},
		},
	}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Batch != want.Batch {
		t.Errorf("Batch = %+v, want %+v", got.Batch, want.Batch)
	}
	if len(got.Queue) != 2 || got.Queue[0] != want.Queue[0] || got.Queue[1] != want.Queue[1] {
		t.Errorf("Queue = %+v", got.Queue)
	}

	data, _ := os.ReadFile(path)
	for _, key := range []string{`"batch_settings"`, `"output_folder"`, `"title_template"`, `"video_path"`, `"selected_token_file"`, `"selected_preset"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("session file missing key %s", key)
		}
	}
}

func TestLoadLegacySession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	legacy := `{
    "batch_settings": {"output_folder": "/out", "title_template": "{filename}"},
    "queue": [
        {"video_path": "/in/a.mp4", "selected_token_file": null, "selected_preset": "None (No Effects)"},
        {"video_path": "/in/b.mp4", "selected_token_file": "tokens/token_UC1.pickle"}
    ]
}`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Queue[0].CredentialRef != "" {
		t.Errorf("null token file = %q, want empty", s.Queue[0].CredentialRef)
	}
	if s.Queue[1].Preset != presets.NoEffects {
		t.Errorf("missing preset = %q, want %q", s.Queue[1].Preset, presets.NoEffects)
	}

	if s.Batch.TitleTemplate != "{filename}" || s.Batch.Privacy != "" {
		t.Errorf("Batch = %+v", s.Batch)
	}
	if _, err := distribution.ParsePrivacy(s.Batch.Privacy); err != nil {
		t.Errorf("legacy privacy should default cleanly: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{name: "corrupt", content: "{"},
		{name: "entryWithoutPath", content: `{"queue":[{"selected_preset":"x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) error = %v, want ErrNotExist", err)
	}
}

func TestSaveEmptyQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := Save(path, &Session{}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"queue": []`) {
		t.Errorf("empty queue not written as array: %s", data)
	}
}
