package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nhle/mailissue/internal/editor"
	"github.com/nhle/mailissue/internal/form"
	"github.com/nhle/mailissue/internal/mapper"
	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/refdata"
	"github.com/nhle/mailissue/internal/relation"
	"github.com/nhle/mailissue/internal/source/email"
	"github.com/nhle/mailissue/internal/theme"
)

// issueFlags are the draft edits shared by create and update.
type issueFlags struct {
	uid     uint32
	mailbox string

	project  int
	issue    int
	tracker  int
	status   int
	assignee int
	version  int
	parent   string
	subject  string
	notes    string
	watchers []int

	start     string
	due       string
	withStart bool
	withDue   bool

	relations     []string
	linkRefs      bool
	sets          []string
	checks        []string
	noAttachments bool
	interactive   bool
	dryRun        bool
}

func addIssueFlags(fs *pflag.FlagSet, f *issueFlags) {
	fs.Uint32Var(&f.uid, "uid", 0, "Read the message with this UID from the IMAP mailbox instead of a file")
	fs.StringVar(&f.mailbox, "mailbox", "", "IMAP mailbox of --uid (default from configuration)")
	fs.IntVar(&f.status, "status", 0, "Status id")
	fs.IntVar(&f.assignee, "assignee", 0, "Assignee user id")
	fs.IntVar(&f.version, "version", 0, "Target version id")
	fs.StringVar(&f.parent, "parent", "", "Parent issue id")
	fs.StringVar(&f.start, "start", "", "Start date (YYYY-MM-DD); enables the start date")
	fs.StringVar(&f.due, "due", "", "Due date (YYYY-MM-DD); enables the due date")
	fs.BoolVar(&f.withStart, "with-start", false, "Submit the start date mapped from the message")
	fs.BoolVar(&f.withDue, "with-due", false, "Submit the due date mapped from the message")
	fs.StringArrayVarP(&f.relations, "relation", "r", nil, "Relation as [type:]issue, e.g. blocks:12 (repeatable)")
	fs.BoolVar(&f.linkRefs, "link-references", false, "Relate every issue referenced as #N in the message")
	fs.StringArrayVar(&f.sets, "set", nil, "Control value as key=value, e.g. custom_fields[]:4=prod (repeatable)")
	fs.StringArrayVar(&f.checks, "check", nil, "Checkbox key to tick; key=false clears it (repeatable)")
	fs.BoolVar(&f.noAttachments, "no-attachments", false, "Do not upload the message attachments")
	fs.BoolVarP(&f.interactive, "interactive", "i", false, "Edit the main fields in a terminal form before submitting")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Print the request as YAML instead of submitting it")
}

// loadMessage reads the message named by args: a file, "-" or nothing
// for stdin, or the --uid message of the IMAP mailbox.
func (a *app) loadMessage(ctx context.Context, cmd *cobra.Command, args []string, f *issueFlags) (*email.Message, error) {
	switch {
	case f.uid != 0:
		if len(args) > 0 {
			return nil, errors.New("--uid cannot be combined with a message file")
		}
		mailbox := f.mailbox
		if mailbox == "" {
			mailbox = a.cfg.IMAP.Mailbox
		}
		return a.deps.NewMailbox(a.cfg.IMAP).FetchMessage(ctx, mailbox, f.uid)
	case len(args) == 0 || args[0] == "-":
		return email.Parse(cmd.InOrStdin())
	default:
		return email.ParseFile(args[0])
	}
}

// mapMessage derives the initial draft from msg.
func (a *app) mapMessage(msg *email.Message, f *issueFlags) (*mapper.Mapper, model.Draft) {
	cfg := a.cfg.Mapping()
	if f.noAttachments {
		cfg.UploadAttachments = false
	}
	m := mapper.New(cfg, email.Extractor{},
		mapper.WithClock(a.deps.Now),
		mapper.WithLogger(a.log.WithName("mapper")),
	)
	return m, m.ToDraftFields(msg)
}

func (a *app) newEditor(ctx context.Context, t Tracker, d model.Draft, mode editor.Mode) (*editor.Editor, error) {
	resolver := refdata.NewResolver(t,
		refdata.WithCache(refdata.NewCache()),
		refdata.WithLogger(a.log.WithName("refdata")),
		refdata.WithRemoteCustomFields(a.cfg.CustomFieldsRemote),
	)
	return editor.New(ctx, editor.Options{
		Tracker:  t,
		Resolver: resolver,
		Draft:    d,
		Config:   a.cfg,
		Logger:   a.log.WithName("editor"),
		Mode:     mode,
		Debounce: a.deps.Debounce,
	})
}

type fieldEdit struct {
	flag  string
	field form.FieldID
	value string
}

// applyIssueFlags replays the changed flags as control edits.
func applyIssueFlags(cmd *cobra.Command, e *editor.Editor, f *issueFlags) error {
	fl := cmd.Flags()

	edits := []fieldEdit{
		{"tracker", form.FieldTracker, strconv.Itoa(f.tracker)},
		{"status", form.FieldStatus, strconv.Itoa(f.status)},
		{"assignee", form.FieldAssignee, strconv.Itoa(f.assignee)},
		{"version", form.FieldVersion, strconv.Itoa(f.version)},
		{"parent", form.FieldParent, f.parent},
		{"subject", form.FieldSubject, f.subject},
		{"notes", form.FieldNotes, f.notes},
	}
	for _, ed := range edits {
		if !fl.Changed(ed.flag) {
			continue
		}
		if err := editChoice(e, string(ed.field), ed.value); err != nil {
			return fmt.Errorf("--%s: %w", ed.flag, err)
		}
	}

	for _, d := range []struct {
		flag    string
		field   form.FieldID
		value   string
		enabled bool
	}{
		{"start", form.FieldStartDate, f.start, f.withStart},
		{"due", form.FieldDueDate, f.due, f.withDue},
	} {
		if d.value == "" && !d.enabled {
			continue
		}
		if err := e.SetDateEnabled(d.field, true); err != nil {
			return fmt.Errorf("--%s: %w", d.flag, err)
		}
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(mapper.DateLayout, d.value); err != nil {
			return fmt.Errorf("--%s: %q is not a YYYY-MM-DD date", d.flag, d.value)
		}
		if err := e.Edit(string(d.field), d.value); err != nil {
			return fmt.Errorf("--%s: %w", d.flag, err)
		}
	}

	for _, id := range f.watchers {
		key := form.GroupKey(form.FieldWatchers, strconv.Itoa(id))
		if err := e.Check(key, true); err != nil {
			return fmt.Errorf("--watcher: user %d is not a member of the project: %w", id, err)
		}
	}

	for _, kv := range f.sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("--set: %q is not key=value", kv)
		}
		if err := editChoice(e, key, value); err != nil {
			return fmt.Errorf("--set %s: %w", key, err)
		}
	}

	for _, kv := range f.checks {
		key, raw, hasValue := strings.Cut(kv, "=")
		checked := true
		if hasValue {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("--check %s: %w", key, err)
			}
			checked = v
		}
		if err := e.Check(key, checked); err != nil {
			return fmt.Errorf("--check %s: %w", key, err)
		}
	}

	for _, raw := range f.relations {
		t, target, err := parseRelation(raw)
		if err != nil {
			return fmt.Errorf("--relation: %w", err)
		}
		e.AddRelation(t, target)
	}

	return nil
}

// editChoice edits a control and fails when a select does not offer
// the value.
func editChoice(e *editor.Editor, key, value string) error {
	if err := e.Edit(key, value); err != nil {
		return err
	}
	c, ok := e.Control(key)
	if ok && c.Kind == form.KindSelect && c.Value != value {
		return fmt.Errorf("%q is not one of the offered choices", value)
	}
	return nil
}

// parseRelation parses "[type:]target". A bare target relates.
func parseRelation(s string) (model.RelationType, int, error) {
	t, target := model.RelationRelates, s
	if name, rest, ok := strings.Cut(s, ":"); ok {
		rt, known := model.ParseRelationType(strings.TrimSpace(name))
		if !known {
			return "", 0, fmt.Errorf("unknown relation type %q", name)
		}
		t, target = rt, rest
	}
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(target), "#"))
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("invalid relation target %q", target)
	}
	return t, id, nil
}

// addReferences relates the referenced issues that are neither self nor
// already related.
func addReferences(e *editor.Editor, refs []int, self int) int {
	related := map[int]bool{self: true}
	for _, r := range e.Relations() {
		related[r.Target] = true
	}
	added := 0
	for _, id := range refs {
		if related[id] {
			continue
		}
		related[id] = true
		e.AddRelation(model.RelationRelates, id)
		added++
	}
	return added
}

// invalidError describes the fields that block submission.
func invalidError(e *editor.Editor) error {
	var problems []string
	if c, ok := e.Control(string(form.FieldParent)); ok && c.Invalid {
		problems = append(problems, "the parent issue cannot be the issue itself")
	}
	for _, r := range e.Relations() {
		if r.Invalid {
			problems = append(problems, fmt.Sprintf("relation to #%d points at the issue or its parent", r.Target))
		}
	}
	if len(problems) == 0 {
		return editor.ErrInvalid
	}
	return fmt.Errorf("%w: %s", editor.ErrInvalid, strings.Join(problems, "; "))
}

type dryRunOutput struct {
	Mode        string            `yaml:"mode"`
	Issue       int               `yaml:"issue,omitempty"`
	Params      model.IssueParams `yaml:"params"`
	Attachments []string          `yaml:"attachments,omitempty"`
	Relations   []dryRunRelation  `yaml:"relations,omitempty"`
}

type dryRunRelation struct {
	ID     int                `yaml:"id,omitempty"`
	Type   model.RelationType `yaml:"type"`
	Target int                `yaml:"target"`
	Delay  *int               `yaml:"delay,omitempty"`
}

func printDryRun(w io.Writer, e *editor.Editor) error {
	d := e.Draft()
	out := dryRunOutput{
		Mode:   e.Mode().String(),
		Issue:  d.ID,
		Params: e.Params(),
	}
	for _, f := range d.Files {
		out.Attachments = append(out.Attachments, f.Filename)
	}
	for _, r := range e.Relations() {
		if r.Target == 0 {
			continue
		}
		out.Relations = append(out.Relations, dryRunRelation{
			ID: r.ID, Type: r.Type, Target: r.Target, Delay: r.Delay,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return enc.Close()
}

func printSubmit(w io.Writer, title string, res *editor.SubmitResult, extra ...[2]string) {
	rows := [][2]string{{"Issue", theme.Issue(res.Issue.ID)}}
	if res.Params.Subject != nil {
		rows = append(rows, [2]string{"Subject", *res.Params.Subject})
	}
	rows = append(rows, extra...)
	if res.Params.ProjectID != nil {
		rows = append(rows, [2]string{"Project", strconv.Itoa(*res.Params.ProjectID)})
	}
	if n := len(res.Params.Uploads); n > 0 {
		rows = append(rows, [2]string{"Attachments", strconv.Itoa(n)})
	}
	fmt.Fprintln(w, theme.Panel(title, rows))

	for _, o := range res.Relations {
		fmt.Fprintln(w, theme.Result(describeOperation(o), o.Err))
	}
}

func describeOperation(o relation.Outcome) string {
	kind := o.Operation.Kind.String()
	rel := o.Operation.Relation
	label := theme.OperationStyle(kind).Render(kind)
	if rel.IssueToID == 0 {
		return fmt.Sprintf("%s relation %d", label, rel.ID)
	}
	return fmt.Sprintf("%s %s %s", label, rel.Type, theme.Issue(rel.IssueToID))
}

// recordLink stores the message to issue link. Failures are reported
// but do not fail the command; the issue already exists.
func (a *app) recordLink(ctx context.Context, cmd *cobra.Command, msg *email.Message, issue *model.Issue, projectID *int, subject string) {
	if msg.MessageID == "" {
		return
	}
	st, err := a.store()
	if err != nil {
		a.log.Error(err, "opening link store")
		fmt.Fprintln(cmd.ErrOrStderr(), theme.Result("recording message link", err))
		return
	}
	defer st.Close()

	link := model.IssueLink{MessageID: msg.MessageID, IssueID: issue.ID, Subject: subject}
	if projectID != nil {
		link.ProjectID = *projectID
	} else if issue.Project != nil {
		link.ProjectID = issue.Project.ID
	}
	if _, err := st.CreateLink(ctx, link); err != nil {
		a.log.Error(err, "recording message link", "message", msg.MessageID, "issue", issue.ID)
		fmt.Fprintln(cmd.ErrOrStderr(), theme.Result("recording message link", err))
	}
}

// submit runs the editor's submission and explains the common
// failures.
func submit(ctx context.Context, e *editor.Editor) (*editor.SubmitResult, error) {
	res, err := e.Submit(ctx)
	switch {
	case errors.Is(err, editor.ErrMissingProject):
		return nil, fmt.Errorf("%w; pass --project or set target_project", err)
	case errors.Is(err, editor.ErrInvalid):
		return nil, invalidError(e)
	case err != nil:
		return nil, err
	}
	return res, nil
}
