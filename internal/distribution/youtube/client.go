package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"tubebatch/internal/credentials"
	"tubebatch/internal/distribution"
)

const (
	defaultCategoryID = "22"
	defaultChunkSize  = 8 * 1024 * 1024
	platform          = "youtube"
)

var _ distribution.Uploader = (*Client)(nil)

type Options struct {
	CategoryID string
	ChunkSize  int
	// Location is used to read schedule strings. Nil means UTC.
	Location *time.Location
	Logger   *slog.Logger
	// Endpoint overrides the API base URL.
	Endpoint string
}

type Client struct {
	oauth  *oauth2.Config
	creds  credentials.Store
	opts   Options
	logger *slog.Logger
}

func NewClient(oauth *oauth2.Config, creds credentials.Store, opts Options) *Client {
	if opts.CategoryID == "" {
		opts.CategoryID = defaultCategoryID
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		oauth:  oauth,
		creds:  creds,
		opts:   opts,
		logger: logger,
	}
}

func (c *Client) Platform() string {
	return platform
}

func (c *Client) Upload(ctx context.Context, req distribution.UploadRequest) (*distribution.UploadResponse, error) {
	publishAt, err := distribution.ParseSchedule(req.Metadata.Schedule, c.opts.Location)
	if err != nil {
		return nil, err
	}
	privacy, err := distribution.ParsePrivacy(string(req.Metadata.Privacy))
	if err != nil {
		return nil, err
	}

	httpClient, err := c.httpClient(ctx, req.CredentialRef)
	if err != nil {
		return nil, err
	}

	service, err := c.service(ctx, httpClient)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video file: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat video file: %w", err)
	}
	size := info.Size()

	video := buildVideo(req.Metadata, c.opts.CategoryID, privacy, publishAt)

	c.logger.Info("Uploading video",
		"file", req.FilePath,
		"title", video.Snippet.Title,
		"privacy", video.Status.PrivacyStatus,
		"size", size,
	)

	call := service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(file, googleapi.ChunkSize(c.opts.ChunkSize)).
		ProgressUpdater(func(current, total int64) {
			if total <= 0 {
				total = size
			}
			reportProgress(req.OnProgress, current, total)
		}).
		Context(ctx)

	uploaded, err := call.Do()
	if err != nil {
		return nil, classifyError(err)
	}

	reportProgress(req.OnProgress, 1, 1)

	return &distribution.UploadResponse{
		ID:       uploaded.Id,
		URL:      fmt.Sprintf("https://youtube.com/watch?v=%s", uploaded.Id),
		Platform: platform,
	}, nil
}

func (c *Client) httpClient(ctx context.Context, ref string) (*http.Client, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: no credential selected", distribution.ErrCredentialInvalid)
	}

	token, err := c.creds.Load(ctx, ref)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", distribution.ErrCredentialInvalid, err)
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if !token.Valid() && token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token expired and has no refresh token", distribution.ErrCredentialInvalid)
	}

	src := credentials.PersistingTokenSource(ctx, c.creds, ref, token, c.oauth.TokenSource(ctx, token))
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, src)), nil
}

func (c *Client) service(ctx context.Context, httpClient *http.Client) (*youtube.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.opts.Endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	return service, nil
}

// buildVideo maps metadata onto the API resource. A scheduled upload is
// always private until publishAt.
func buildVideo(meta distribution.Metadata, categoryID string, privacy distribution.Privacy, publishAt time.Time) *youtube.Video {
	status := &youtube.VideoStatus{
		PrivacyStatus:           string(privacy),
		SelfDeclaredMadeForKids: false,
		ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
	}
	if !publishAt.IsZero() {
		status.PrivacyStatus = string(distribution.PrivacyPrivate)
		status.PublishAt = publishAt.UTC().Format(time.RFC3339)
	}

	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.TagList(),
			CategoryId:  categoryID,
		},
		Status: status,
	}
}

func classifyError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %w", distribution.ErrCredentialInvalid, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", distribution.ErrCredentialInvalid, err)
	}

	return fmt.Errorf("failed to upload video: %w", err)
}

func reportProgress(fn func(float64), current, total int64) {
	if fn == nil || total <= 0 {
		return
	}
	pct := float64(current) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	fn(pct)
}
