package youtube

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"tubebatch/internal/credentials"
	"tubebatch/internal/distribution"
)

type recordedRequest struct {
	path   string
	auth   string
	body   string
	method string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	response string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		path:   r.URL.Path,
		auth:   r.Header.Get("Authorization"),
		body:   string(body),
		method: r.Method,
	})
	status, response := f.status, f.response
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

func (f *fakeAPI) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no request reached the API")
	}
	return f.requests[len(f.requests)-1]
}

type uploadFixture struct {
	client *Client
	api    *fakeAPI
	store  *credentials.FileStore
	ref    string
	file   string
}

func newUploadFixture(t *testing.T, token *oauth2.Token, tokenHandler http.HandlerFunc) *uploadFixture {
	t.Helper()

	api := &fakeAPI{response: `{"id":"vid123","kind":"youtube#video"}`}
	apiServer := httptest.NewServer(api)
	t.Cleanup(apiServer.Close)

	tokenURL := "http://127.0.0.1:1/token"
	if tokenHandler != nil {
		tokenServer := httptest.NewServer(tokenHandler)
		t.Cleanup(tokenServer.Close)
		tokenURL = tokenServer.URL
	}

	dir := t.TempDir()
	store := credentials.NewFileStore(filepath.Join(dir, "tokens"))
	ref := store.RefFor("UC1")
	if token != nil {
		if err := store.Save(context.Background(), ref, token); err != nil {
			t.Fatal(err)
		}
	}

	file := filepath.Join(dir, "clip_processed_1.mp4")
	if err := os.WriteFile(file, []byte("fake video bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "http://127.0.0.1:1/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	client := NewClient(oauthCfg, store, Options{Endpoint: apiServer.URL + "/"})
	return &uploadFixture{client: client, api: api, store: store, ref: ref, file: file}
}

func validToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access-1",
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(&oauth2.Config{}, credentials.NewFileStore(t.TempDir()), Options{})

	if client.opts.CategoryID != "22" {
		t.Errorf("CategoryID = %q, want 22", client.opts.CategoryID)
	}
	if client.opts.ChunkSize != defaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", client.opts.ChunkSize, defaultChunkSize)
	}
	if client.opts.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", client.opts.Location)
	}
	if got := client.Platform(); got != platform {
		t.Errorf("Platform() = %q, want %q", got, platform)
	}
}

func TestBuildVideo(t *testing.T) {
	meta := distribution.Metadata{
		Title:       "clip - demo",
		Description: "desc",
		Tags:        "a, b,,c ",
	}

	immediate := buildVideo(meta, "22", distribution.PrivacyPublic, time.Time{})
	if immediate.Status.PrivacyStatus != "public" {
		t.Errorf("PrivacyStatus = %q, want public", immediate.Status.PrivacyStatus)
	}
	if immediate.Status.PublishAt != "" {
		t.Errorf("PublishAt = %q, want empty", immediate.Status.PublishAt)
	}
	if got := strings.Join(immediate.Snippet.Tags, "|"); got != "a|b|c" {
		t.Errorf("Tags = %q, want a|b|c", got)
	}
	if immediate.Snippet.CategoryId != "22" {
		t.Errorf("CategoryId = %q, want 22", immediate.Snippet.CategoryId)
	}

	at := time.Date(2026, 12, 24, 18, 30, 0, 0, time.UTC)
	scheduled := buildVideo(meta, "22", distribution.PrivacyPublic, at)
	if scheduled.Status.PrivacyStatus != "private" {
		t.Errorf("scheduled PrivacyStatus = %q, want private", scheduled.Status.PrivacyStatus)
	}
	if scheduled.Status.PublishAt != "2026-12-24T18:30:00Z" {
		t.Errorf("PublishAt = %q", scheduled.Status.PublishAt)
	}
}

func TestUpload(t *testing.T) {
	fx := newUploadFixture(t, validToken(), nil)

	var progress []float64
	resp, err := fx.client.Upload(context.Background(), distribution.UploadRequest{
		FilePath: fx.file,
		Metadata: distribution.Metadata{
			Title:    "clip - demo",
			Tags:     "go, video",
			Privacy:  distribution.PrivacyUnlisted,
			Schedule: "24/12/2026 18:30",
		},
		CredentialRef: fx.ref,
		OnProgress:    func(p float64) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if resp.ID != "vid123" {
		t.Errorf("ID = %q, want vid123", resp.ID)
	}
	if resp.URL != "https://youtube.com/watch?v=vid123" {
		t.Errorf("URL = %q", resp.URL)
	}

	req := fx.api.last(t)
	if req.method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.method)
	}
	if !strings.Contains(req.path, "/videos") {
		t.Errorf("path = %q, want videos endpoint", req.path)
	}
	if req.auth != "Bearer access-1" {
		t.Errorf("Authorization = %q", req.auth)
	}
	for _, want := range []string{`"title":"clip - demo"`, `"privacyStatus":"private"`, `"publishAt":"2026-12-24T18:30:00Z"`, `"categoryId":"22"`, "fake video bytes"} {
		if !strings.Contains(req.body, want) {
			t.Errorf("request body missing %s", want)
		}
	}

	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Errorf("progress = %v, want to end at 100", progress)
	}
}

func TestUploadValidation(t *testing.T) {
	fx := newUploadFixture(t, validToken(), nil)

	tests := []struct {
		name    string
		req     distribution.UploadRequest
		wantErr error
	}{
		{
			name:    "badSchedule",
			req:     distribution.UploadRequest{FilePath: fx.file, CredentialRef: fx.ref, Metadata: distribution.Metadata{Schedule: "2026-12-24"}},
			wantErr: distribution.ErrInvalidSchedule,
		},
		{
			name:    "badPrivacy",
			req:     distribution.UploadRequest{FilePath: fx.file, CredentialRef: fx.ref, Metadata: distribution.Metadata{Privacy: "friends"}},
			wantErr: distribution.ErrInvalidPrivacy,
		},
		{
			name:    "noCredential",
			req:     distribution.UploadRequest{FilePath: fx.file},
			wantErr: distribution.ErrCredentialInvalid,
		},
		{
			name:    "unknownCredential",
			req:     distribution.UploadRequest{FilePath: fx.file, CredentialRef: fx.store.RefFor("UCgone")},
			wantErr: distribution.ErrCredentialInvalid,
		},
		{
			name:    "missingFile",
			req:     distribution.UploadRequest{FilePath: filepath.Join(t.TempDir(), "missing.mp4"), CredentialRef: fx.ref},
			wantErr: os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.client.Upload(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Upload() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if len(fx.api.requests) != 0 {
		t.Errorf("API received %d requests, want 0", len(fx.api.requests))
	}
}

func TestUploadExpiredTokenWithoutRefresh(t *testing.T) {
	expired := &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)}
	fx := newUploadFixture(t, expired, nil)

	_, err := fx.client.Upload(context.Background(), distribution.UploadRequest{
		FilePath:      fx.file,
		CredentialRef: fx.ref,
	})
	if !errors.Is(err, distribution.ErrCredentialInvalid) {
		t.Errorf("Upload() error = %v, want ErrCredentialInvalid", err)
	}
}

func TestUploadRefreshesAndPersistsToken(t *testing.T) {
	expired := &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	}
	fx := newUploadFixture(t, expired, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
	})

	if _, err := fx.client.Upload(context.Background(), distribution.UploadRequest{
		FilePath:      fx.file,
		CredentialRef: fx.ref,
	}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if got := fx.api.last(t).auth; got != "Bearer fresh" {
		t.Errorf("Authorization = %q, want refreshed token", got)
	}

	saved, err := fx.store.Load(context.Background(), fx.ref)
	if err != nil {
		t.Fatal(err)
	}
	if saved.AccessToken != "fresh" {
		t.Errorf("stored AccessToken = %q, want fresh", saved.AccessToken)
	}
	if saved.RefreshToken != "refresh-1" {
		t.Errorf("stored RefreshToken = %q, want it kept", saved.RefreshToken)
	}
}

func TestUploadRevokedRefreshToken(t *testing.T) {
	expired := &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Hour),
	}
	fx := newUploadFixture(t, expired, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
	})

	_, err := fx.client.Upload(context.Background(), distribution.UploadRequest{
		FilePath:      fx.file,
		CredentialRef: fx.ref,
	})
	if !errors.Is(err, distribution.ErrCredentialInvalid) {
		t.Errorf("Upload() error = %v, want ErrCredentialInvalid", err)
	}
}

func TestUploadAPIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantInvalid bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantInvalid: true},
		{name: "forbidden", status: http.StatusForbidden, wantInvalid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newUploadFixture(t, validToken(), nil)
			fx.api.status = tt.status
			fx.api.response = `{"error":{"message":"nope"}}`

			_, err := fx.client.Upload(context.Background(), distribution.UploadRequest{
				FilePath:      fx.file,
				CredentialRef: fx.ref,
			})
			if err == nil {
				t.Fatal("Upload() expected error")
			}
			if got := errors.Is(err, distribution.ErrCredentialInvalid); got != tt.wantInvalid {
				t.Errorf("errors.Is(ErrCredentialInvalid) = %v, want %v (err = %v)", got, tt.wantInvalid, err)
			}
		})
	}
}

func TestReportProgress(t *testing.T) {
	var got []float64
	fn := func(p float64) { got = append(got, p) }

	reportProgress(fn, 50, 200)
	reportProgress(fn, 300, 200)
	reportProgress(fn, 10, 0)
	reportProgress(nil, 1, 1)

	if len(got) != 2 || got[0] != 25 || got[1] != 100 {
		t.Errorf("progress = %v, want [25 100]", got)
	}
}
