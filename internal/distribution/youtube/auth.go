package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"tubebatch/internal/accounts"
)

const (
	DefaultCallbackAddr = "localhost:8085"
	callbackPath        = "/callback"
	defaultLinkTimeout  = 5 * time.Minute
)

var (
	ErrNoChannel   = errors.New("no YouTube channel found for this Google account")
	ErrLinkTimeout = errors.New("authentication timed out")
)

var scopes = []string{
	youtube.YoutubeUploadScope,
	youtube.YoutubeReadonlyScope,
}

// NewOAuthConfig builds the desktop-app OAuth config. When secretsFile is set
// it takes precedence over the explicit client id and secret.
func NewOAuthConfig(clientID, clientSecret, secretsFile, callbackAddr string) (*oauth2.Config, error) {
	if callbackAddr == "" {
		callbackAddr = DefaultCallbackAddr
	}
	redirectURL := "http://" + callbackAddr + callbackPath

	if secretsFile != "" {
		data, err := os.ReadFile(secretsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read client secrets: %w", err)
		}
		cfg, err := google.ConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse client secrets: %w", err)
		}
		cfg.RedirectURL = redirectURL
		return cfg, nil
	}

	if clientID == "" || clientSecret == "" {
		return nil, errors.New("YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET must be set")
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       scopes,
		RedirectURL:  redirectURL,
	}, nil
}

type LinkerOptions struct {
	CallbackAddr string
	Timeout      time.Duration
	PKCE         bool
	// OpenURL is called with the consent URL. Defaults to the system browser.
	OpenURL  func(url string) error
	Logger   *slog.Logger
	Endpoint string
}

// Linker runs the interactive consent flow for one channel.
type Linker struct {
	oauth *oauth2.Config
	opts  LinkerOptions
}

var _ accounts.Linker = (*Linker)(nil)

func NewLinker(oauth *oauth2.Config, opts LinkerOptions) *Linker {
	if opts.CallbackAddr == "" {
		opts.CallbackAddr = DefaultCallbackAddr
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLinkTimeout
	}
	if opts.OpenURL == nil {
		opts.OpenURL = browser.OpenURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Linker{oauth: oauth, opts: opts}
}

func (l *Linker) Link(ctx context.Context) (*accounts.Linked, error) {
	listener, err := net.Listen("tcp", l.opts.CallbackAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	state := uuid.NewString()
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server := &http.Server{
		Handler:           callbackHandler(state, codeChan, errChan),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authOpts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.ApprovalForce}
	var verifier string
	if l.opts.PKCE {
		verifier = oauth2.GenerateVerifier()
		authOpts = append(authOpts, oauth2.S256ChallengeOption(verifier))
	}

	authURL := l.oauth.AuthCodeURL(state, authOpts...)
	l.opts.Logger.Info("Opening browser for YouTube authentication", "url", authURL)
	if err := l.opts.OpenURL(authURL); err != nil {
		l.opts.Logger.Warn("Failed to open browser", "error", err)
	}

	timer := time.NewTimer(l.opts.Timeout)
	defer timer.Stop()

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return nil, err
	case <-timer.C:
		return nil, ErrLinkTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var exchangeOpts []oauth2.AuthCodeOption
	if verifier != "" {
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(verifier))
	}
	token, err := l.oauth.Exchange(ctx, code, exchangeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	return l.fetchChannel(ctx, token)
}

func (l *Linker) fetchChannel(ctx context.Context, token *oauth2.Token) (*accounts.Linked, error) {
	opts := []option.ClientOption{option.WithHTTPClient(l.oauth.Client(ctx, token))}
	if l.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(l.opts.Endpoint))
	}

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	resp, err := service.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel info: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, ErrNoChannel
	}

	channel := resp.Items[0]
	return &accounts.Linked{
		ID:    channel.Id,
		Title: channel.Snippet.Title,
		Token: token,
	}, nil
}

func callbackHandler(state string, codeChan chan<- string, errChan chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != callbackPath {
			http.NotFound(w, r)
			return
		}

		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		if reason := query.Get("error"); reason != "" {
			sendErr(errChan, fmt.Errorf("authorization denied: %s", reason))
			_, _ = fmt.Fprintf(w, "<html><body><h1>Error</h1><p>%s</p></body></html>", html.EscapeString(reason))
			return
		}

		code := query.Get("code")
		if code == "" {
			sendErr(errChan, errors.New("no code in callback"))
			_, _ = fmt.Fprintf(w, "<html><body><h1>Error</h1><p>No authorization code received.</p></body></html>")
			return
		}

		select {
		case codeChan <- code:
		default:
		}
		_, _ = fmt.Fprintf(w, "<html><body><h1>Success!</h1><p>You can close this window and return to the terminal.</p></body></html>")
	})
}

func sendErr(errChan chan<- error, err error) {
	select {
	case errChan <- err:
	default:
	}
}
