package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tubebatch/pkg/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard for Tubebatch",
	Long:  `Check for ffmpeg, create directories and config.yaml, and write the .env secrets.`,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Println(titleStyle.Render("🎬 Tubebatch Setup"))

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Checking tools", checkTools},
		{"Writing config", writeDefaultConfig},
		{"Creating directories", func() error { return createDirectories(cmd.Context()) }},
		{"Configuring environment", configureEnv},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	printNextSteps()
	return nil
}

func checkTools() error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if !commandExists(tool) {
			fmt.Println(warnStyle.Render(fmt.Sprintf("%s not found, install it from https://ffmpeg.org/download.html", tool)))
			continue
		}
		fmt.Println(successStyle.Render("✓ Found " + tool))
	}
	return nil
}

// setupFile is the subset of config.yaml the wizard writes. Everything else
// keeps its built-in default.
type setupFile struct {
	Paths    config.PathsConfig    `yaml:"paths"`
	Defaults config.DefaultsConfig `yaml:"defaults"`
	Queue    config.QueueConfig    `yaml:"queue"`
}

func writeDefaultConfig() error {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println(infoStyle.Render("Kept existing " + configPath))
		return nil
	}

	out := setupFile{
		Paths: config.PathsConfig{
			DataDir:      "./data",
			AccountsFile: "./data/accounts.json",
			PresetsFile:  "./data/presets.json",
			SessionFile:  "./data/session.json",
			TokensDir:    "./data/tokens",
			CacheDir:     "./.cache",
		},
		Defaults: config.DefaultsConfig{
			OutputFolder:  "./output",
			TitleTemplate: "{filename}",
			Privacy:       "private",
		},
		Queue: config.QueueConfig{EventBuffer: 256},
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Output folder").
				Description("Processed videos are written here").
				Value(&out.Defaults.OutputFolder).
				Validate(required("Output folder")),
			huh.NewInput().
				Title("Title template").
				Description("{filename} is replaced with the source file name").
				Value(&out.Defaults.TitleTemplate),
			huh.NewSelect[string]().
				Title("Default privacy").
				Options(huh.NewOptions("private", "unlisted", "public")...).
				Value(&out.Defaults.Privacy),
		),
	).Run(); err != nil {
		return err
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", configPath, err)
	}
	fmt.Println(successStyle.Render("✓ Created " + configPath))
	return nil
}

func createDirectories(ctx context.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	dirs := []string{cfg.Paths.DataDir, cfg.Paths.TokensDir, cfg.Defaults.OutputFolder}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	fmt.Println(successStyle.Render("✓ Created directories"))
	return nil
}

func configureEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		var overwrite bool
		if err := huh.NewConfirm().
			Title("Found existing .env file").
			Description("Overwrite?").
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println(infoStyle.Render("Kept existing .env"))
			return nil
		}
	}

	env := make(map[string]string)

	if err := configureYouTube(env); err != nil {
		return err
	}
	if err := configureGCP(env); err != nil {
		return err
	}
	if err := configureTelegram(env); err != nil {
		return err
	}

	return writeEnvFile(env)
}

func configureYouTube(env map[string]string) error {
	fmt.Println(infoStyle.Render(`
To create OAuth credentials:
1. Go to https://console.cloud.google.com/apis/credentials
2. Click "Create Credentials" → "OAuth client ID"
3. Choose "Desktop app" as application type
4. Copy the Client ID and Client Secret
`))

	var clientID, clientSecret string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("YouTube Client ID").
				Value(&clientID).
				Validate(required("YouTube Client ID")),
			huh.NewInput().
				Title("YouTube Client Secret").
				EchoMode(huh.EchoModePassword).
				Value(&clientSecret).
				Validate(required("YouTube Client Secret")),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	env["YOUTUBE_CLIENT_ID"] = strings.TrimSpace(clientID)
	env["YOUTUBE_CLIENT_SECRET"] = strings.TrimSpace(clientSecret)
	return nil
}

func configureGCP(env map[string]string) error {
	var setup bool
	if err := huh.NewConfirm().
		Title("Setup Google Cloud?").
		Description("For Secret Manager token storage and queueing videos from Cloud Storage (optional)").
		Value(&setup).
		Run(); err != nil || !setup {
		return err
	}

	project := getActiveProject()
	var bucket string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project ID").
				Value(&project).
				Validate(required("Project ID")),
			huh.NewInput().
				Title("Default bucket").
				Description("Used by --remote, leave empty to always pass gs:// URLs").
				Value(&bucket),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	project = strings.TrimSpace(project)
	env["GOOGLE_CLOUD_PROJECT"] = project
	if b := strings.TrimSpace(bucket); b != "" {
		env["GCS_BUCKET"] = b
	}

	if commandExists("gcloud") {
		if err := enableGCPAPIs(project); err != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("API enablement failed: %v", err)))
		}
	} else {
		fmt.Println(warnStyle.Render("gcloud CLI not found, enable the YouTube, Secret Manager and Storage APIs manually"))
	}
	return nil
}

func getActiveProject() string {
	if !commandExists("gcloud") {
		return ""
	}
	out, err := exec.Command("gcloud", "config", "get-value", "project").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func enableGCPAPIs(project string) error {
	apis := []string{
		"youtube.googleapis.com",
		"secretmanager.googleapis.com",
		"storage.googleapis.com",
	}

	return runWithSpinner("Enabling APIs", func() error {
		args := append([]string{"services", "enable"}, apis...)
		args = append(args, "--project", project)
		return runSetupCmd("gcloud", args...)
	})
}

func configureTelegram(env map[string]string) error {
	var setup bool
	if err := huh.NewConfirm().
		Title("Setup Telegram bot?").
		Description("Sends a summary when a queue run finishes (optional)").
		Value(&setup).
		Run(); err != nil || !setup {
		return err
	}

	var token, chatID string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram Bot Token").
				Description("Get from @BotFather → https://t.me/BotFather").
				EchoMode(huh.EchoModePassword).
				Value(&token),
			huh.NewInput().
				Title("Chat ID").
				Description("The chat that receives run summaries").
				Value(&chatID).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
						return fmt.Errorf("must be a number")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	if t := strings.TrimSpace(token); t != "" {
		env["TELEGRAM_BOT_TOKEN"] = t
	}
	if id := strings.TrimSpace(chatID); id != "" {
		env["TELEGRAM_CHAT_ID"] = id
	}
	return nil
}

func writeEnvFile(env map[string]string) error {
	f, err := os.OpenFile(".env", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	order := []string{
		"YOUTUBE_CLIENT_ID",
		"YOUTUBE_CLIENT_SECRET",
		"GOOGLE_CLOUD_PROJECT",
		"GCS_BUCKET",
		"TELEGRAM_BOT_TOKEN",
		"TELEGRAM_CHAT_ID",
	}

	for _, key := range order {
		if val, ok := env[key]; ok && val != "" {
			_, _ = fmt.Fprintf(f, "%s=%s\n", key, val)
		}
	}

	fmt.Println(successStyle.Render("✓ Created .env file"))
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(titleStyle.Render("Next steps:"))
	fmt.Println("  1. Link a channel: tubebatch accounts add")
	fmt.Println("  2. Create a preset (optional): tubebatch presets save \"My preset\"")
	fmt.Println("  3. Run: tubebatch run ./videos --account \"My Channel\"")
	fmt.Println("  Set queue.notify: true in config.yaml for Telegram summaries")
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runSetupCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %s", err, stderr.String())
	}
	return nil
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ " + title))
	return nil
}
