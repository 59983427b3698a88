package session

import (
	"fmt"

	"tubebatch/internal/presets"
	"tubebatch/internal/store"
)

type BatchSettings struct {
	OutputFolder  string `json:"output_folder"`
	TitleTemplate string `json:"title_template"`
	Description   string `json:"description,omitempty"`
	Tags          string `json:"tags,omitempty"`
	Privacy       string `json:"privacy,omitempty"`
	Schedule      string `json:"schedule,omitempty"`
}

// Entry is one queued row. CredentialRef and Preset hold the selections by
// value so they can be re-resolved against the stores when loaded.
type Entry struct {
	VideoPath     string `json:"video_path"`
	CredentialRef string `json:"selected_token_file"`
	Preset        string `json:"selected_preset"`
}

type Session struct {
	Batch BatchSettings `json:"batch_settings"`
	Queue []Entry       `json:"queue"`
}

func Save(path string, s *Session) error {
	out := *s
	if out.Queue == nil {
		out.Queue = []Entry{}
	}
	if err := store.WriteJSON(path, out); err != nil {
		return fmt.Errorf("could not save session: %w", err)
	}
	return nil
}

func Load(path string) (*Session, error) {
	var s Session
	if err := store.ReadJSON(path, &s); err != nil {
		return nil, fmt.Errorf("could not load session: %w", err)
	}

	for i := range s.Queue {
		if s.Queue[i].VideoPath == "" {
			return nil, fmt.Errorf("could not load session: queue entry %d has no video_path", i)
		}
		if s.Queue[i].Preset == "" {
			s.Queue[i].Preset = presets.NoEffects
		}
	}
	return &s, nil
}
