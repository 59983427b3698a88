package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"tubebatch/internal/accounts"
	"tubebatch/internal/credentials"
	"tubebatch/internal/distribution/youtube"
	"tubebatch/internal/notify"
	"tubebatch/internal/presets"
	"tubebatch/internal/video"
	"tubebatch/pkg/config"
)

// Stores are the persisted documents every command needs. They can be opened
// without any OAuth configuration.
type Stores struct {
	Presets     *presets.Store
	Accounts    *accounts.Store
	Credentials credentials.Store
	closers     []io.Closer
}

func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	creds, closers, err := openCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return openDocuments(cfg, logger, creds, closers)
}

// openDocuments owns closers and closes them if a document fails to load.
func openDocuments(cfg *config.Config, logger *slog.Logger, creds credentials.Store, closers []io.Closer) (*Stores, error) {
	s := &Stores{Credentials: creds, closers: closers}

	ps, err := presets.Open(cfg.Paths.PresetsFile)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	as, err := accounts.Open(cfg.Paths.AccountsFile, creds, logger)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	s.Presets = ps
	s.Accounts = as
	return s, nil
}

func openCredentials(ctx context.Context, cfg *config.Config) (credentials.Store, []io.Closer, error) {
	switch cfg.Credentials.Backend {
	case config.CredentialsSecretMgr:
		sm, err := credentials.NewSecretManagerStore(ctx, cfg.GCPProject)
		if err != nil {
			return nil, nil, err
		}
		return sm, []io.Closer{sm}, nil
	default:
		return credentials.NewFileStore(cfg.Paths.TokensDir), nil, nil
	}
}

// BuildService wires the stores, the ffmpeg transformer, the YouTube
// uploader and linker, and the notifier from cfg.
func BuildService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	oauth, err := youtube.NewOAuthConfig(
		cfg.YouTubeClientID,
		cfg.YouTubeClientSecret,
		cfg.YouTubeClientSecrets,
		cfg.Upload.CallbackAddr,
	)
	if err != nil {
		return nil, fmt.Errorf("youtube is not configured: %w", err)
	}

	stores, err := OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	transformer := video.NewTransformer(video.TransformerOptions{
		FFmpegPath:  cfg.FFmpeg.Binary,
		FFprobePath: cfg.FFmpeg.Probe,
		VideoCodec:  cfg.FFmpeg.VideoCodec,
		AudioCodec:  cfg.FFmpeg.AudioCodec,
		Preset:      cfg.FFmpeg.Preset,
		Logger:      logger,
	})

	uploader := youtube.NewClient(oauth, stores.Credentials, youtube.Options{
		CategoryID: cfg.Upload.CategoryID,
		ChunkSize:  cfg.ChunkSize(),
		Location:   loc,
		Logger:     logger,
	})

	linker := youtube.NewLinker(oauth, youtube.LinkerOptions{
		CallbackAddr: cfg.Upload.CallbackAddr,
		Timeout:      cfg.Upload.LinkTimeout,
		PKCE:         cfg.Upload.PKCE,
		Logger:       logger,
	})

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotifyEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, notify.TelegramOptions{Logger: logger})
		if err != nil {
			return nil, errors.Join(err, stores.Close())
		}
		notifier = tg
	}

	return NewService(ServiceOptions{
		Presets:     stores.Presets,
		Accounts:    stores.Accounts,
		Transformer: transformer,
		Uploader:    uploader,
		Linker:      linker,
		Notifier:    notifier,
		Builder: BuilderOptions{
			Location:      loc,
			DefaultPreset: cfg.Defaults.Preset,
			CacheDir:      cfg.Paths.CacheDir,
			Logger:        logger,
		},
		EventBuffer:  cfg.Queue.EventBuffer,
		OutputSuffix: cfg.FFmpeg.OutputSuffix,
		Logger:       logger,
		Closers:      []io.Closer{stores},
	}), nil
}
