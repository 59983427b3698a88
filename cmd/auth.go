package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tubebatch/internal/credentials"
	"tubebatch/pkg/config"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspect authentication for external services",
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check authentication status for all services",
	Long:  `Verify which services are configured and that every linked account still has a stored token.`,
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, stores, err := openStores(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	fmt.Println(infoStyle.Render("\nService Authentication Status:\n"))

	switch {
	case cfg.YouTubeClientID != "" && cfg.YouTubeClientSecret != "":
		fmt.Println(successStyle.Render("✓ YouTube: client credentials configured"))
	case cfg.YouTubeClientSecrets != "":
		fmt.Println(successStyle.Render("✓ YouTube: client secrets file " + cfg.YouTubeClientSecrets))
	default:
		fmt.Println(errorStyle.Render("✗ YouTube: missing YOUTUBE_CLIENT_ID or YOUTUBE_CLIENT_SECRET"))
	}

	backend := "local files in " + cfg.Paths.TokensDir
	if cfg.Credentials.Backend == config.CredentialsSecretMgr {
		backend = "Secret Manager in project " + cfg.GCPProject
	}
	fmt.Println(infoStyle.Render("  Tokens: " + backend))

	list := stores.Accounts.List()
	if len(list) == 0 {
		fmt.Println(warnStyle.Render("✗ Accounts: none linked"))
		fmt.Println(infoStyle.Render("  Run: tubebatch accounts add"))
	}
	for _, a := range list {
		if _, err := stores.Credentials.Load(ctx, a.CredentialRef); err != nil {
			if errors.Is(err, credentials.ErrNotFound) {
				fmt.Println(errorStyle.Render("✗ " + a.Name + ": token missing, remove and link again"))
			} else {
				fmt.Println(errorStyle.Render(fmt.Sprintf("✗ %s: %v", a.Name, err)))
			}
			continue
		}
		fmt.Println(successStyle.Render("✓ " + a.Name))
	}

	switch {
	case cfg.NotifyEnabled():
		fmt.Println(successStyle.Render("✓ Telegram: run notifications enabled"))
	case cfg.TelegramBotToken != "" && cfg.TelegramChatID == 0:
		fmt.Println(warnStyle.Render("✗ Telegram: missing TELEGRAM_CHAT_ID"))
	case cfg.TelegramBotToken != "":
		fmt.Println(infoStyle.Render("- Telegram: configured, queue.notify is off"))
	default:
		fmt.Println(infoStyle.Render("- Telegram: not configured (optional)"))
	}

	if cfg.GCSBucket != "" {
		fmt.Println(successStyle.Render("✓ Cloud Storage: default bucket " + cfg.GCSBucket))
	} else {
		fmt.Println(infoStyle.Render("- Cloud Storage: no default bucket (optional)"))
	}

	fmt.Println()
	return nil
}
