package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/mailissue/internal/source/email"
	issuesync "github.com/nhle/mailissue/internal/sync"
	"github.com/nhle/mailissue/internal/theme"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		mailbox  string
		interval time.Duration
		since    time.Duration
		limit    int
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Report new messages no issue was created from",
		Long: `Poll the configured IMAP mailbox and print every message that shows up
for the first time and has no issue yet. Runs until interrupted.`,
		Example: `  mailissue watch --interval 5m
  mailissue watch --once --since 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.cfg.IMAP.Host == "" {
				return errors.New("imap.host is not configured")
			}
			if mailbox == "" {
				mailbox = a.cfg.IMAP.Mailbox
			}

			st, err := a.store()
			if err != nil {
				return err
			}
			defer st.Close()

			p := issuesync.New(a.deps.NewMailbox(a.cfg.IMAP), st, issuesync.Options{
				Mailbox:  mailbox,
				Interval: interval,
				Since:    since,
				Limit:    limit,
				Logger:   a.log.WithName("watch"),
				Now:      a.deps.Now,
			})

			w := cmd.OutOrStdout()
			if once {
				res := p.Poll(ctx)
				if res.Error != nil {
					return res.Error
				}
				printNewMessages(w, res.Messages)
				return nil
			}

			fmt.Fprintln(w, theme.HelpStyle.Render(fmt.Sprintf("Watching %s every %s", mailbox, interval)))
			for res := range p.Start(ctx) {
				if res.Error != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), theme.Result("poll at "+res.At.Format("15:04:05"), res.Error))
					continue
				}
				printNewMessages(w, res.Messages)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mailbox, "mailbox", "", "Mailbox to watch (default from configuration)")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Minute, "Time between polls")
	cmd.Flags().DurationVar(&since, "since", 72*time.Hour, "Only messages received within this duration")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of messages per poll")
	cmd.Flags().BoolVar(&once, "once", false, "Poll once and exit")
	return cmd
}

func printNewMessages(w io.Writer, msgs []email.Envelope) {
	for _, m := range msgs {
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			theme.LabelStyle.Render("uid "+strconv.FormatUint(uint64(m.UID), 10)),
			m.Date.Format("2006-01-02 15:04"),
			m.From,
			theme.ValueStyle.Render(m.Subject),
		)
	}
}
