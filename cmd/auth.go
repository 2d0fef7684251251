package cmd

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/teemow/agenda/internal/config"
	"github.com/teemow/agenda/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		account         string
		credentialsFile string
		callbackAddr    string
		noBrowser       bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize read-only access to a Google account",
		Long: `Authorize agenda to read Google Calendar and Google Tasks for an account.

A browser window opens for consent and the token is stored with 0600
permissions in the user cache directory. The OAuth client credentials come
from --credentials-file or the account's entry in the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := google.NewTokenStore("")
			path, err := store.Path(account)
			if err != nil {
				return err
			}
			if credentialsFile == "" {
				cfg, err := loadSettings(cmd)
				if err != nil {
					return err
				}
				credentialsFile = credentialsFor(cfg, account)
			}
			if credentialsFile == "" {
				return fmt.Errorf("no credentials file for account %s, pass --credentials-file", account)
			}

			conf, err := google.LoadConfig(credentialsFile)
			if err != nil {
				return err
			}

			ctx, stop := commandContext(cmd)
			defer stop()

			out := cmd.ErrOrStderr()
			flow := &google.LocalServerFlow{
				Addr: callbackAddr,
				Open: func(url string) error {
					fmt.Fprintln(out, headingStyle.Render("Open this URL to authorize agenda:"))
					fmt.Fprintln(out, url)
					if noBrowser {
						return nil
					}
					if err := openBrowser(url); err != nil {
						fmt.Fprintln(out, mutedStyle.Render("Could not start a browser, open the URL manually."))
					}
					return nil
				},
			}
			tok, err := flow.Run(ctx, conf)
			if err != nil {
				return err
			}

			if err := store.Save(account, tok); err != nil {
				return err
			}
			fmt.Fprintln(out, successLine(fmt.Sprintf("Authorized account %s, token saved to %s", account, path)))
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", google.DefaultAccount, "Account name used for the token file")
	cmd.Flags().StringVar(&credentialsFile, "credentials-file", "", "OAuth client credentials JSON (default: from config)")
	cmd.Flags().StringVar(&callbackAddr, "callback-addr", google.DefaultCallbackAddr, "Listen address of the OAuth callback server")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the consent URL without opening a browser")
	return cmd
}

func credentialsFor(cfg *config.Config, account string) string {
	for _, g := range cfg.Sources.Google {
		if g.Account == account {
			return g.CredentialsFile
		}
	}
	return ""
}

func openBrowser(url string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	return c.Start()
}
