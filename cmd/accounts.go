package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"tubebatch/internal/accounts"
)

var accountsRemoveYes bool

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage linked YouTube channels",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List linked channels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, stores, err := openStores(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = stores.Close() }()

		list := stores.Accounts.List()
		fmt.Println(titleStyle.Render("Accounts"))
		if len(list) == 0 {
			fmt.Println(warnStyle.Render("  No accounts linked, run: tubebatch accounts add"))
			return nil
		}
		for _, a := range list {
			fmt.Printf("  %s %s\n", a.Name, dimStyle.Render(a.CredentialRef))
		}
		return nil
	},
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Link a YouTube channel through the browser",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		fmt.Println(infoStyle.Render("A browser window will open, sign in and pick the channel to link."))

		var account accounts.Account
		err = runWithSpinner("Waiting for authorization", func() error {
			var linkErr error
			account, linkErr = svc.LinkAccount(cmd.Context())
			return linkErr
		})
		if err != nil {
			if errors.Is(err, accounts.ErrAlreadyLinked) {
				fmt.Println(warnStyle.Render(err.Error()))
				return nil
			}
			return err
		}
		fmt.Println(successStyle.Render("Linked " + account.Name))
		return nil
	},
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <id|name>",
	Short: "Unlink a channel and delete its stored token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, stores, err := openStores(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = stores.Close() }()

		account, ok := stores.Accounts.Lookup(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", accounts.ErrNotFound, args[0])
		}

		if !accountsRemoveYes {
			confirm := false
			if err := huh.NewConfirm().
				Title(fmt.Sprintf("Remove %s?", account.Name)).
				Description("Queued videos and sessions using this account will need a new one.").
				Affirmative("Remove").
				Negative("Cancel").
				Value(&confirm).
				Run(); err != nil {
				return err
			}
			if !confirm {
				return nil
			}
		}

		if err := stores.Accounts.Remove(cmd.Context(), account.ID); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Removed " + account.Name))
		return nil
	},
}

func init() {
	accountsRemoveCmd.Flags().BoolVarP(&accountsRemoveYes, "yes", "y", false, "Do not ask for confirmation")
	accountsCmd.AddCommand(accountsListCmd, accountsAddCmd, accountsRemoveCmd)
	rootCmd.AddCommand(accountsCmd)
}
