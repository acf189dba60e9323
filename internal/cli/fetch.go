package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/mailissue/internal/store"
	"github.com/nhle/mailissue/internal/theme"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		mailbox string
		since   time.Duration
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "List recent messages of the IMAP mailbox",
		Long: `List the most recent messages of the configured IMAP mailbox with their
UIDs. Messages an issue was already created from show the issue id. Pass
a UID to create or update with --uid.`,
		Example: `  mailissue fetch --since 24h --limit 10
  mailissue create --uid 4711`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.cfg.IMAP.Host == "" {
				return errors.New("imap.host is not configured")
			}
			if mailbox == "" {
				mailbox = a.cfg.IMAP.Mailbox
			}

			envelopes, err := a.deps.NewMailbox(a.cfg.IMAP).FetchEnvelopes(ctx, mailbox, since, limit)
			if err != nil {
				return err
			}
			if len(envelopes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), theme.HelpStyle.Render("No messages in "+mailbox))
				return nil
			}

			linked := map[string]int{}
			if st, err := a.store(); err != nil {
				a.log.Error(err, "opening link store")
			} else {
				defer st.Close()
				for _, env := range envelopes {
					link, err := st.LatestLinkForMessage(ctx, env.MessageID)
					if err == nil {
						linked[env.MessageID] = link.IssueID
					} else if !errors.Is(err, store.ErrNotFound) {
						a.log.Error(err, "looking up message link", "message", env.MessageID)
					}
				}
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
				Headers("UID", "DATE", "FROM", "SUBJECT", "ISSUE")
			for _, env := range envelopes {
				issue := ""
				if id, ok := linked[env.MessageID]; ok {
					issue = "#" + strconv.Itoa(id)
				}
				t.Row(
					strconv.FormatUint(uint64(env.UID), 10),
					env.Date.Format("2006-01-02 15:04"),
					env.From,
					env.Subject,
					issue,
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}

	cmd.Flags().StringVar(&mailbox, "mailbox", "", "Mailbox to list (default from configuration)")
	cmd.Flags().DurationVar(&since, "since", 72*time.Hour, "Only list messages received within this window")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of messages")
	return cmd
}
