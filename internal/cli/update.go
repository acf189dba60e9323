package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/mailissue/internal/editor"
	"github.com/nhle/mailissue/internal/store"
)

func newUpdateCmd(a *app) *cobra.Command {
	f := &issueFlags{}
	cmd := &cobra.Command{
		Use:   "update [message.eml]",
		Short: "Add a mail message to an existing issue",
		Long: `Add a mail message to an existing Redmine issue as notes.

Without --issue the issue most recently created from the same message id
is updated.`,
		Example: `  # Add a reply to issue 42 and close it
  mailissue update reply.eml --issue 42 --status 5

  # Update the issue created earlier from the same thread
  mailissue update reply.eml --notes "Customer confirmed the fix"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpdate(cmd, args, f)
		},
	}

	fs := cmd.Flags()
	addIssueFlags(fs, f)
	fs.IntVar(&f.issue, "issue", 0, "Issue id (default from the link store)")
	fs.StringVarP(&f.notes, "notes", "n", "", "Notes (default from the message)")
	return cmd
}

func (a *app) runUpdate(cmd *cobra.Command, args []string, f *issueFlags) error {
	ctx := cmd.Context()

	msg, err := a.loadMessage(ctx, cmd, args, f)
	if err != nil {
		return err
	}

	issueID := f.issue
	if issueID == 0 {
		issueID, err = a.linkedIssue(cmd, msg.MessageID)
		if err != nil {
			return err
		}
	}

	m, draft := a.mapMessage(msg, f)

	t, err := a.tracker()
	if err != nil {
		return err
	}
	e, err := a.newEditor(ctx, t, draft, editor.ModeUpdate)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.LoadIssue(ctx, issueID); err != nil {
		return err
	}
	if err := applyIssueFlags(cmd, e, f); err != nil {
		return err
	}
	if f.linkRefs {
		n := addReferences(e, m.ReferencedIssues(msg), issueID)
		a.log.V(1).Info("related referenced issues", "count", n)
	}
	if f.interactive {
		if err := runInteractive(ctx, cmd, e); err != nil {
			return err
		}
	}
	if f.dryRun {
		return printDryRun(cmd.OutOrStdout(), e)
	}

	res, err := submit(ctx, e)
	if err != nil {
		return err
	}

	a.recordLink(ctx, cmd, msg, res.Issue, e.Draft().ProjectID, msg.Subject)
	var extra [][2]string
	if ps := e.ParentSubject(); ps != "" {
		extra = append(extra, [2]string{"Parent", ps})
	}
	printSubmit(cmd.OutOrStdout(), "Updated issue", res, extra...)
	return nil
}

// linkedIssue looks up the issue last created from messageID.
func (a *app) linkedIssue(cmd *cobra.Command, messageID string) (int, error) {
	if messageID == "" {
		return 0, errors.New("the message has no Message-ID; pass --issue")
	}
	st, err := a.store()
	if err != nil {
		return 0, err
	}
	defer st.Close()

	link, err := st.LatestLinkForMessage(cmd.Context(), messageID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("no issue was created from %s; pass --issue", messageID)
	}
	if err != nil {
		return 0, err
	}
	a.log.V(1).Info("using linked issue", "message", messageID, "issue", link.IssueID)
	return link.IssueID, nil
}
