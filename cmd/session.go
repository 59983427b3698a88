package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"tubebatch/internal/session"
)

var sessionQueue queueFlags

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Save and inspect queue sessions",
}

var sessionSaveCmd = &cobra.Command{
	Use:   "save <file> [files|folders|gs://bucket/prefix]...",
	Short: "Save a queue and its batch settings without running it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, stores, err := openStores(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = stores.Close() }()

		builder, err := newStoreBuilder(cfg, stores)
		if err != nil {
			return err
		}
		batch, err := sessionQueue.assemble(ctx, cmd, cfg, builder, args[1:])
		if err != nil {
			return err
		}
		if err := session.Save(args[0], builder.Session(batch)); err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Saved %d video(s) to %s", builder.Len(), args[0])))
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print a saved session and check it against current presets and accounts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, stores, err := openStores(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = stores.Close() }()

		path := cfg.Paths.SessionFile
		if len(args) == 1 {
			path = args[0]
		}
		s, err := session.Load(path)
		if err != nil {
			return err
		}

		builder, err := newStoreBuilder(cfg, stores)
		if err != nil {
			return err
		}
		batch, warnings, err := builder.FromSession(s, "")
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render(path))
		fmt.Printf("  %s %s\n", dimStyle.Render("Output:"), batch.OutputFolder)
		fmt.Printf("  %s %s\n", dimStyle.Render("Title:"), batch.TitleTemplate)
		fmt.Printf("  %s %s\n", dimStyle.Render("Privacy:"), batch.Privacy)
		if batch.Schedule != "" {
			fmt.Printf("  %s %s\n", dimStyle.Render("Schedule:"), batch.Schedule)
		}
		fmt.Println()

		for i, row := range builder.Rows() {
			account := row.CredentialRef
			if a, ok := stores.Accounts.FindByRef(row.CredentialRef); ok {
				account = a.Name
			}
			if row.Unresolved {
				account = errorStyle.Render("unlinked account")
			}
			fmt.Printf("  %s %s %s\n",
				dimStyle.Render(fmt.Sprintf("%2d.", i+1)),
				filepath.Base(row.SourcePath),
				infoStyle.Render(fmt.Sprintf("%s [%s]", account, row.Preset)),
			)
		}
		for _, w := range warnings {
			fmt.Println(warnStyle.Render("! " + w))
		}
		return nil
	},
}

func init() {
	sessionQueue.register(sessionSaveCmd)
	sessionCmd.AddCommand(sessionSaveCmd, sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}
