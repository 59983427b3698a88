package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tubebatch/internal/app"
	"tubebatch/internal/session"
	"tubebatch/internal/storage"
	"tubebatch/pkg/config"
)

// queueFlags are shared by every command that assembles a queue.
type queueFlags struct {
	session     string
	preset      string
	account     string
	output      string
	title       string
	description string
	tags        string
	privacy     string
	schedule    string
	remote      []string
}

func (f *queueFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.session, "session", "", "Load the queue and batch settings from a session file")
	flags.StringVarP(&f.preset, "preset", "p", "", "Preset for added videos (default from config)")
	flags.StringVarP(&f.account, "account", "a", "", "Account id or name for added videos, and fallback for unlinked session rows")
	flags.StringVarP(&f.output, "output", "o", "", "Output folder for processed videos")
	flags.StringVarP(&f.title, "title", "t", "", "Title template, {filename} is replaced per video")
	flags.StringVar(&f.description, "description", "", "Video description")
	flags.StringVar(&f.tags, "tags", "", "Comma separated tags")
	flags.StringVar(&f.privacy, "privacy", "", "private, unlisted or public")
	flags.StringVar(&f.schedule, "schedule", "", "Publish time as DD/MM/YYYY HH:MM")
	flags.StringSliceVar(&f.remote, "remote", nil, "Object prefix in the default GCS bucket to queue (repeatable)")
}

// assemble fills b from the session file and args, and returns the batch
// settings. Explicit flags override the session, which overrides config.
func (f *queueFlags) assemble(ctx context.Context, cmd *cobra.Command, cfg *config.Config, b *app.Builder, args []string) (app.Batch, error) {
	batch := app.Batch{
		OutputFolder:  cfg.Defaults.OutputFolder,
		TitleTemplate: cfg.Defaults.TitleTemplate,
		Description:   cfg.Defaults.Description,
		Tags:          cfg.Defaults.Tags,
		Privacy:       cfg.Defaults.Privacy,
	}

	account := f.account
	if account == "" {
		account = cfg.Defaults.Account
	}

	if f.session != "" {
		s, err := session.Load(f.session)
		if err != nil {
			return batch, err
		}
		loaded, warnings, err := b.FromSession(s, f.account)
		if err != nil {
			return batch, err
		}
		for _, w := range warnings {
			fmt.Println(warnStyle.Render("! " + w))
		}
		batch = loaded
	}

	for _, prefix := range f.remote {
		if cfg.GCSBucket == "" {
			return batch, errors.New("--remote needs GCS_BUCKET, or pass a full gs:// URL")
		}
		args = append(args, "gs://"+cfg.GCSBucket+"/"+strings.TrimPrefix(prefix, "/"))
	}

	for _, arg := range args {
		switch {
		case storage.IsGCSURL(arg):
			n, err := b.AddRemote(ctx, arg, f.preset, account)
			if err != nil {
				return batch, err
			}
			fmt.Println(infoStyle.Render(fmt.Sprintf("Added %d video(s) from %s", n, arg)))
		case isDir(arg):
			n, err := b.AddFolder(ctx, arg, f.preset, account)
			if err != nil {
				return batch, err
			}
			fmt.Println(infoStyle.Render(fmt.Sprintf("Added %d video(s) from %s", n, arg)))
		default:
			if err := b.AddFiles([]string{arg}, f.preset, account); err != nil {
				return batch, err
			}
		}
	}

	changed := cmd.Flags().Changed
	if changed("output") {
		batch.OutputFolder = f.output
	}
	if changed("title") {
		batch.TitleTemplate = f.title
	}
	if changed("description") {
		batch.Description = f.description
	}
	if changed("tags") {
		batch.Tags = f.tags
	}
	if changed("privacy") {
		batch.Privacy = f.privacy
	}
	if changed("schedule") {
		batch.Schedule = f.schedule
	}
	return batch, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
