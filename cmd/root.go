package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"tubebatch/internal/app"
	"tubebatch/pkg/config"
)

var (
	verbose    bool
	configPath string
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var rootCmd = &cobra.Command{
	Use:   "tubebatch",
	Short: "Batch-edit videos and upload them to YouTube",
	Long: `Tubebatch applies edit presets to a queue of videos with ffmpeg and
uploads each result to one of several linked YouTube channels.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config.yaml")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setupLogger()
	}
}

func Execute() error {
	return rootCmd.Execute()
}

func setupLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStores is for commands that only read or edit the local documents.
func openStores(ctx context.Context) (*config.Config, *app.Stores, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	stores, err := app.OpenStores(ctx, cfg, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return cfg, stores, nil
}

func openService(ctx context.Context) (*config.Config, *app.Service, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.BuildService(ctx, cfg, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}

// newStoreBuilder is a queue builder for commands that never run the queue
// and so do not need YouTube configured.
func newStoreBuilder(cfg *config.Config, stores *app.Stores) (*app.Builder, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return app.NewBuilder(stores.Presets, stores.Accounts, app.BuilderOptions{
		Location:      loc,
		DefaultPreset: cfg.Defaults.Preset,
		CacheDir:      cfg.Paths.CacheDir,
		Logger:        slog.Default(),
	}), nil
}
