package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/theme"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		url    string
		key    string
		forget bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the Redmine API key in the system keyring",
		Long: `Check a Redmine API key against the server and store it in the system
keyring. The key is shown on the "My account" page of Redmine. Without
--key it is read from a password prompt.`,
		Example: `  mailissue login --url https://redmine.example.com
  mailissue login --forget`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if url == "" {
				url = a.cfg.Redmine.URL
			}
			url = strings.TrimRight(url, "/")

			keys, err := a.deps.OpenKeys()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if forget {
				if err := keys.DeleteAPIKey(url); err != nil {
					return err
				}
				fmt.Fprintln(w, theme.Result("removed the api key for "+url, nil))
				return nil
			}

			if key == "" {
				err := runForm(cmd.Context(), cmd, huh.NewGroup(
					huh.NewInput().
						Title("API key for " + url).
						EchoMode(huh.EchoModePassword).
						Value(&key),
				))
				if err != nil {
					return err
				}
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("no api key given")
			}

			cfg := *a.cfg
			cfg.Redmine.URL = url
			cfg.Redmine.APIKey = ""
			if err := cfg.Validate(); err != nil {
				return err
			}

			user, err := a.deps.NewTracker(&cfg, key, a.log, a.reg).ValidateConnection(cmd.Context())
			if err != nil {
				return fmt.Errorf("checking api key: %w", err)
			}
			if err := keys.SetAPIKey(url, key); err != nil {
				return err
			}

			cfg.Redmine.Account = user.Login
			if err := model.SaveConfig(a.configPath, &cfg); err != nil {
				return err
			}

			name := strings.TrimSpace(user.Firstname + " " + user.Lastname)
			if name == "" {
				name = user.Login
			}
			fmt.Fprintln(w, theme.Result(fmt.Sprintf("logged in to %s as %s", url, name), nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Redmine URL (default from configuration)")
	cmd.Flags().StringVar(&key, "key", "", "API key (prompted when omitted)")
	cmd.Flags().BoolVar(&forget, "forget", false, "Remove the stored key instead")
	return cmd
}
