package distribution

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	FilenamePlaceholder = "{filename}"
	ScheduleLayout      = "02/01/2006 15:04"
)

type Privacy string

const (
	PrivacyPrivate  Privacy = "private"
	PrivacyUnlisted Privacy = "unlisted"
	PrivacyPublic   Privacy = "public"
)

var (
	// ErrCredentialInvalid reports a stored credential that is expired or
	// revoked and cannot be refreshed. The account has to be linked again.
	ErrCredentialInvalid = errors.New("credential invalid or expired and cannot be refreshed")
	ErrInvalidSchedule   = errors.New("invalid schedule format, use DD/MM/YYYY HH:MM")
	ErrInvalidPrivacy    = errors.New("invalid privacy status")
)

type Metadata struct {
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description" yaml:"description"`
	Tags        string  `json:"tags" yaml:"tags"`
	Privacy     Privacy `json:"privacy" yaml:"privacy"`
	Schedule    string  `json:"schedule,omitempty" yaml:"schedule"`
}

type UploadRequest struct {
	FilePath      string
	Metadata      Metadata
	CredentialRef string
	OnProgress    func(percent float64)
}

type UploadResponse struct {
	ID       string
	URL      string
	Platform string
}

type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error)
	Platform() string
}

// ResolveTitle substitutes every {filename} in template with the base name of
// sourcePath without its extension.
func ResolveTitle(template, sourcePath string) string {
	if !strings.Contains(template, FilenamePlaceholder) {
		return template
	}
	base := filepath.Base(sourcePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(template, FilenamePlaceholder, name)
}

// Resolve returns a copy of m with the title resolved for sourcePath.
func (m Metadata) Resolve(sourcePath string) Metadata {
	m.Title = ResolveTitle(m.Title, sourcePath)
	return m
}

func (m Metadata) TagList() []string {
	return SplitTags(m.Tags)
}

func (m Metadata) Validate(loc *time.Location) error {
	if _, err := ParsePrivacy(string(m.Privacy)); err != nil {
		return err
	}
	if _, err := ParseSchedule(m.Schedule, loc); err != nil {
		return err
	}
	return nil
}

func SplitTags(tags string) []string {
	var result []string
	for _, tag := range strings.Split(tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			result = append(result, tag)
		}
	}
	return result
}

func ParsePrivacy(s string) (Privacy, error) {
	switch Privacy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PrivacyPrivate:
		return PrivacyPrivate, nil
	case PrivacyUnlisted:
		return PrivacyUnlisted, nil
	case PrivacyPublic:
		return PrivacyPublic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPrivacy, s)
}

// ParseSchedule converts a DD/MM/YYYY HH:MM string, read in loc, into a UTC
// instant. An empty string means "publish immediately" and yields the zero
// time. A nil loc is treated as UTC.
func ParseSchedule(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}

	t, err := time.ParseInLocation(ScheduleLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSchedule, s)
	}
	return t.UTC(), nil
}
