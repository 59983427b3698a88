package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath     = "config.yaml"
	defaultDataDir        = "./data"
	defaultCacheDir       = "./.cache"
	defaultOutputDir      = "./output"
	defaultTitleTemplate  = "{filename} - My Awesome Video"
	defaultPrivacy        = "private"
	defaultPreset         = "None (No Effects)"
	defaultFFmpeg         = "ffmpeg"
	defaultFFprobe        = "ffprobe"
	defaultVideoCodec     = "libx264"
	defaultAudioCodec     = "aac"
	defaultEncodePreset   = "medium"
	defaultOutputSuffix   = "_processed"
	defaultCategoryID     = "22"
	defaultChunkSizeMB    = 8
	defaultTimezone       = "UTC"
	defaultCallbackAddr   = "localhost:8085"
	defaultLinkTimeout    = 5 * time.Minute
	defaultCredentials    = CredentialsFile
	defaultWatchSettle    = 2 * time.Second
	defaultEventBuffer    = 256
	accountsFileName      = "accounts.json"
	presetsFileName       = "presets.json"
	sessionFileName       = "session.json"
	tokensDirName         = "tokens"
)

const (
	CredentialsFile      = "file"
	CredentialsSecretMgr = "secretmanager"
)

type Config struct {
	YouTubeClientID      string
	YouTubeClientSecret  string
	YouTubeClientSecrets string
	TelegramBotToken     string
	TelegramChatID       int64
	GCPProject           string
	GCSBucket            string

	Paths       PathsConfig       `yaml:"paths"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
	FFmpeg      FFmpegConfig      `yaml:"ffmpeg"`
	Upload      UploadConfig      `yaml:"upload"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Watch       WatchConfig       `yaml:"watch"`
	Queue       QueueConfig       `yaml:"queue"`
}

type PathsConfig struct {
	DataDir      string `yaml:"data_dir"`
	AccountsFile string `yaml:"accounts_file"`
	PresetsFile  string `yaml:"presets_file"`
	SessionFile  string `yaml:"session_file"`
	TokensDir    string `yaml:"tokens_dir"`
	CacheDir     string `yaml:"cache_dir"`
}

type DefaultsConfig struct {
	OutputFolder  string `yaml:"output_folder"`
	TitleTemplate string `yaml:"title_template"`
	Description   string `yaml:"description"`
	Tags          string `yaml:"tags"`
	Privacy       string `yaml:"privacy"`
	Preset        string `yaml:"preset"`
	Account       string `yaml:"account"`
}

type FFmpegConfig struct {
	Binary       string `yaml:"binary"`
	Probe        string `yaml:"probe"`
	VideoCodec   string `yaml:"video_codec"`
	AudioCodec   string `yaml:"audio_codec"`
	Preset       string `yaml:"preset"`
	OutputSuffix string `yaml:"output_suffix"`
}

type UploadConfig struct {
	CategoryID       string        `yaml:"category_id"`
	ChunkSizeMB      int           `yaml:"chunk_size_mb"`
	ScheduleTimezone string        `yaml:"schedule_timezone"`
	CallbackAddr     string        `yaml:"callback_addr"`
	LinkTimeout      time.Duration `yaml:"link_timeout"`
	PKCE             bool          `yaml:"pkce"`
}

type CredentialsConfig struct {
	// Backend is "file" or "secretmanager".
	Backend string `yaml:"backend"`
}

type WatchConfig struct {
	Dir    string        `yaml:"dir"`
	Settle time.Duration `yaml:"settle"`
}

type QueueConfig struct {
	EventBuffer int  `yaml:"event_buffer"`
	Notify      bool `yaml:"notify"`
}

// Load reads .env for secrets and config.yaml for everything else. A missing
// config.yaml is an error, a missing .env is not.
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, defaultConfigPath)
}

func LoadFile(ctx context.Context, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		YouTubeClientID:      os.Getenv("YOUTUBE_CLIENT_ID"),
		YouTubeClientSecret:  os.Getenv("YOUTUBE_CLIENT_SECRET"),
		YouTubeClientSecrets: os.Getenv("YOUTUBE_CLIENT_SECRETS_FILE"),
		TelegramBotToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		GCPProject:           os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GCSBucket:            os.Getenv("GCS_BUCKET"),
	}

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = id
	}

	if err := loadYAMLConfig(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAMLConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Credentials.Backend {
	case CredentialsFile:
	case CredentialsSecretMgr:
		if c.GCPProject == "" {
			return fmt.Errorf("credentials backend %q requires GOOGLE_CLOUD_PROJECT", CredentialsSecretMgr)
		}
	default:
		return fmt.Errorf("unknown credentials backend %q", c.Credentials.Backend)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the zone schedule strings are written in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Upload.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule_timezone %q: %w", c.Upload.ScheduleTimezone, err)
	}
	return loc, nil
}

func (c *Config) ChunkSize() int {
	return c.Upload.ChunkSizeMB * 1024 * 1024
}

func (c *Config) NotifyEnabled() bool {
	return c.Queue.Notify && c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func applyDefaults(cfg *Config) {
	applyPathsDefaults(cfg)
	applyBatchDefaults(cfg)
	applyFFmpegDefaults(cfg)
	applyUploadDefaults(cfg)
	applyCredentialsDefaults(cfg)
	applyWatchDefaults(cfg)
	applyQueueDefaults(cfg)
}

func applyPathsDefaults(cfg *Config) {
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = defaultDataDir
	}
	if cfg.Paths.AccountsFile == "" {
		cfg.Paths.AccountsFile = filepath.Join(cfg.Paths.DataDir, accountsFileName)
	}
	if cfg.Paths.PresetsFile == "" {
		cfg.Paths.PresetsFile = filepath.Join(cfg.Paths.DataDir, presetsFileName)
	}
	if cfg.Paths.SessionFile == "" {
		cfg.Paths.SessionFile = filepath.Join(cfg.Paths.DataDir, sessionFileName)
	}
	if cfg.Paths.TokensDir == "" {
		cfg.Paths.TokensDir = filepath.Join(cfg.Paths.DataDir, tokensDirName)
	}
	if cfg.Paths.CacheDir == "" {
		cfg.Paths.CacheDir = defaultCacheDir
	}
}

func applyBatchDefaults(cfg *Config) {
	if cfg.Defaults.OutputFolder == "" {
		cfg.Defaults.OutputFolder = defaultOutputDir
	}
	if cfg.Defaults.TitleTemplate == "" {
		cfg.Defaults.TitleTemplate = defaultTitleTemplate
	}
	if cfg.Defaults.Privacy == "" {
		cfg.Defaults.Privacy = defaultPrivacy
	}
	if cfg.Defaults.Preset == "" {
		cfg.Defaults.Preset = defaultPreset
	}
}

func applyFFmpegDefaults(cfg *Config) {
	if cfg.FFmpeg.Binary == "" {
		cfg.FFmpeg.Binary = defaultFFmpeg
	}
	if cfg.FFmpeg.Probe == "" {
		cfg.FFmpeg.Probe = defaultFFprobe
	}
	if cfg.FFmpeg.VideoCodec == "" {
		cfg.FFmpeg.VideoCodec = defaultVideoCodec
	}
	if cfg.FFmpeg.AudioCodec == "" {
		cfg.FFmpeg.AudioCodec = defaultAudioCodec
	}
	if cfg.FFmpeg.Preset == "" {
		cfg.FFmpeg.Preset = defaultEncodePreset
	}
	if cfg.FFmpeg.OutputSuffix == "" {
		cfg.FFmpeg.OutputSuffix = defaultOutputSuffix
	}
}

func applyUploadDefaults(cfg *Config) {
	if cfg.Upload.CategoryID == "" {
		cfg.Upload.CategoryID = defaultCategoryID
	}
	if cfg.Upload.ChunkSizeMB <= 0 {
		cfg.Upload.ChunkSizeMB = defaultChunkSizeMB
	}
	if cfg.Upload.ScheduleTimezone == "" {
		cfg.Upload.ScheduleTimezone = defaultTimezone
	}
	if cfg.Upload.CallbackAddr == "" {
		cfg.Upload.CallbackAddr = defaultCallbackAddr
	}
	if cfg.Upload.LinkTimeout <= 0 {
		cfg.Upload.LinkTimeout = defaultLinkTimeout
	}
}

func applyCredentialsDefaults(cfg *Config) {
	if cfg.Credentials.Backend == "" {
		cfg.Credentials.Backend = defaultCredentials
	}
}

func applyWatchDefaults(cfg *Config) {
	if cfg.Watch.Settle <= 0 {
		cfg.Watch.Settle = defaultWatchSettle
	}
}

func applyQueueDefaults(cfg *Config) {
	if cfg.Queue.EventBuffer <= 0 {
		cfg.Queue.EventBuffer = defaultEventBuffer
	}
}
