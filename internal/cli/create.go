package cli

import (
	"github.com/spf13/cobra"

	"github.com/nhle/mailissue/internal/editor"
	"github.com/nhle/mailissue/internal/model"
)

func newCreateCmd(a *app) *cobra.Command {
	f := &issueFlags{}
	cmd := &cobra.Command{
		Use:   "create [message.eml]",
		Short: "Create an issue from a mail message",
		Long: `Create a Redmine issue from a mail message.

The message is read from the given file, from stdin when the file is "-"
or missing, or from the IMAP mailbox with --uid. The project comes from
--project, from the directory mapping of the mailbox or from
target_project.`,
		Example: `  # Create an issue in project 3 and relate the issues the message references
  mailissue create message.eml --project 3 --link-references

  # Preview the request for a message in the mailbox
  mailissue create --uid 4711 --dry-run

  # Pick project, tracker and subject interactively
  mailissue create message.eml -i`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCreate(cmd, args, f)
		},
	}

	fs := cmd.Flags()
	addIssueFlags(fs, f)
	fs.IntVarP(&f.project, "project", "p", 0, "Project id")
	fs.IntVarP(&f.tracker, "tracker", "t", 0, "Tracker id")
	fs.StringVarP(&f.subject, "subject", "s", "", "Issue subject (default from the message)")
	fs.IntSliceVarP(&f.watchers, "watcher", "w", nil, "Watcher user id (repeatable)")
	return cmd
}

func (a *app) runCreate(cmd *cobra.Command, args []string, f *issueFlags) error {
	ctx := cmd.Context()

	msg, err := a.loadMessage(ctx, cmd, args, f)
	if err != nil {
		return err
	}
	m, draft := a.mapMessage(msg, f)
	if f.project > 0 {
		draft.ProjectID = model.IntPtr(f.project)
	}

	t, err := a.tracker()
	if err != nil {
		return err
	}
	e, err := a.newEditor(ctx, t, draft, editor.ModeCreate)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := applyIssueFlags(cmd, e, f); err != nil {
		return err
	}
	if f.linkRefs {
		n := addReferences(e, m.ReferencedIssues(msg), 0)
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

	subject := ""
	if res.Params.Subject != nil {
		subject = *res.Params.Subject
	}
	a.recordLink(ctx, cmd, msg, res.Issue, res.Params.ProjectID, subject)
	printSubmit(cmd.OutOrStdout(), "Created issue", res)
	return nil
}
