package distribution

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestResolveTitle(t *testing.T) {
	tests := []struct {
		name     string
		template string
		source   string
		want     string
	}{
		{name: "placeholderPrefix", template: "{filename} - demo", source: "clip.mp4", want: "clip - demo"},
		{name: "noPlaceholder", template: "Weekly upload", source: "clip.mp4", want: "Weekly upload"},
		{name: "fullPath", template: "{filename}", source: "/videos/raw/holiday.final.mov", want: "holiday.final"},
		{name: "repeatedPlaceholder", template: "{filename} / {filename}", source: "a.mkv", want: "a / a"},
		{name: "noExtension", template: "[{filename}]", source: "/tmp/raw", want: "[raw]"},
		{name: "emptyTemplate", template: "", source: "clip.mp4", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTitle(tt.template, tt.source)
			if got != tt.want {
				t.Errorf("ResolveTitle(%q, %q) = %q, want %q", tt.template, tt.source, got, tt.want)
			}
			if again := ResolveTitle(got, tt.source); again != got {
				t.Errorf("ResolveTitle is not idempotent: %q then %q", got, again)
			}
		})
	}
}

func TestMetadataResolveDoesNotMutate(t *testing.T) {
	meta := Metadata{Title: "{filename} - demo"}

	first := meta.Resolve("one.mp4")
	second := meta.Resolve("two.mp4")

	if first.Title != "one - demo" || second.Title != "two - demo" {
		t.Errorf("Resolve() = %q, %q", first.Title, second.Title)
	}
	if meta.Title != "{filename} - demo" {
		t.Errorf("template mutated to %q", meta.Title)
	}
}

func TestSplitTags(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{input: "", want: nil},
		{input: "go, video ,  shorts", want: []string{"go", "video", "shorts"}},
		{input: ",,one,,", want: []string{"one"}},
		{input: "   ", want: nil},
	}

	for _, tt := range tests {
		got := SplitTags(tt.input)
		if !slices.Equal(got, tt.want) {
			t.Errorf("SplitTags(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParsePrivacy(t *testing.T) {
	tests := []struct {
		input   string
		want    Privacy
		wantErr bool
	}{
		{input: "", want: PrivacyPrivate},
		{input: "Public", want: PrivacyPublic},
		{input: "unlisted", want: PrivacyUnlisted},
		{input: "secret", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParsePrivacy(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePrivacy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidPrivacy) {
			t.Errorf("ParsePrivacy(%q) error = %v, want ErrInvalidPrivacy", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParsePrivacy(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseSchedule(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)

	tests := []struct {
		name    string
		input   string
		loc     *time.Location
		want    time.Time
		wantErr bool
	}{
		{name: "empty", input: "", want: time.Time{}},
		{name: "utc", input: "24/12/2026 18:30", want: time.Date(2026, 12, 24, 18, 30, 0, 0, time.UTC)},
		{name: "offsetZone", input: "24/12/2026 18:30", loc: berlin, want: time.Date(2026, 12, 24, 17, 30, 0, 0, time.UTC)},
		{name: "isoRejected", input: "2026-12-24T18:30", wantErr: true},
		{name: "monthFirstRejected", input: "12/24/2026 18:30", wantErr: true},
		{name: "missingTime", input: "24/12/2026", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.input, tt.loc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSchedule() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidSchedule) {
					t.Errorf("ParseSchedule() error = %v, want ErrInvalidSchedule", err)
				}
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseSchedule() = %v, want %v", got, tt.want)
			}
			if !got.IsZero() && got.Location() != time.UTC {
				t.Errorf("ParseSchedule() location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr error
	}{
		{name: "valid", meta: Metadata{Title: "x", Privacy: PrivacyPublic}},
		{name: "badPrivacy", meta: Metadata{Privacy: "friends"}, wantErr: ErrInvalidPrivacy},
		{name: "badSchedule", meta: Metadata{Schedule: "tomorrow"}, wantErr: ErrInvalidSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate(time.UTC)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
