package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/mailissue/internal/editor"
	"github.com/nhle/mailissue/internal/form"
)

// formBindings holds the values edited by the terminal form on the heap
// so that huh's Value pointers stay valid.
type formBindings struct {
	project  string
	tracker  string
	status   string
	assignee string
	subject  string
	notes    string
	watchers []string
}

// runInteractive asks for the project first, since the other choices
// depend on it, then for the remaining main fields.
func runInteractive(ctx context.Context, cmd *cobra.Command, e *editor.Editor) error {
	fb := bindingsFrom(e)

	if e.Mode() == editor.ModeCreate {
		if sel := selectFor(e, form.FieldProject, "Project", &fb.project); sel != nil {
			if err := runForm(ctx, cmd, huh.NewGroup(sel)); err != nil {
				return err
			}
			if id, err := strconv.Atoi(fb.project); err == nil && id > 0 {
				if _, err := e.ChangeProject(ctx, id); err != nil {
					return err
				}
			}
			fb = bindingsFrom(e)
		}
	}

	fields := []huh.Field{}
	if e.Mode() == editor.ModeCreate {
		if sel := selectFor(e, form.FieldTracker, "Tracker", &fb.tracker); sel != nil {
			fields = append(fields, sel)
		}
		fields = append(fields, huh.NewInput().
			Title("Subject").
			Value(&fb.subject).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("subject is required")
				}
				return nil
			}))
	} else {
		fields = append(fields, huh.NewText().
			Title("Notes").
			Value(&fb.notes))
	}
	if sel := selectFor(e, form.FieldStatus, "Status", &fb.status); sel != nil {
		fields = append(fields, sel)
	}
	if sel := selectFor(e, form.FieldAssignee, "Assignee", &fb.assignee); sel != nil {
		fields = append(fields, sel)
	}
	if ms := watcherSelect(e, &fb.watchers); ms != nil {
		fields = append(fields, ms)
	}

	if err := runForm(ctx, cmd, huh.NewGroup(fields...)); err != nil {
		return err
	}
	return fb.apply(e)
}

func runForm(ctx context.Context, cmd *cobra.Command, groups ...*huh.Group) error {
	err := huh.NewForm(groups...).
		WithInput(cmd.InOrStdin()).
		WithOutput(cmd.OutOrStdout()).
		WithShowHelp(true).
		RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("aborted")
	}
	return err
}

func bindingsFrom(e *editor.Editor) *formBindings {
	fb := &formBindings{}
	value := func(id form.FieldID) string {
		c, _ := e.Control(string(id))
		return c.Value
	}
	fb.project = value(form.FieldProject)
	fb.tracker = value(form.FieldTracker)
	fb.status = value(form.FieldStatus)
	fb.assignee = value(form.FieldAssignee)
	fb.subject = value(form.FieldSubject)
	fb.notes = value(form.FieldNotes)
	for _, c := range watcherControls(e) {
		if c.Checked {
			fb.watchers = append(fb.watchers, c.Value)
		}
	}
	return fb
}

// apply writes the edited values back as control edits.
func (fb *formBindings) apply(e *editor.Editor) error {
	edits := []struct {
		field form.FieldID
		value string
	}{
		{form.FieldTracker, fb.tracker},
		{form.FieldStatus, fb.status},
		{form.FieldAssignee, fb.assignee},
		{form.FieldSubject, fb.subject},
		{form.FieldNotes, fb.notes},
	}
	for _, ed := range edits {
		c, ok := e.Control(string(ed.field))
		if !ok || c.Hidden || c.Value == ed.value {
			continue
		}
		if err := e.Edit(string(ed.field), ed.value); err != nil {
			return fmt.Errorf("%s: %w", ed.field, err)
		}
	}

	chosen := make(map[string]bool, len(fb.watchers))
	for _, v := range fb.watchers {
		chosen[v] = true
	}
	for _, c := range watcherControls(e) {
		if c.Checked == chosen[c.Value] {
			continue
		}
		if err := e.Check(c.Key, chosen[c.Value]); err != nil {
			return fmt.Errorf("watchers: %w", err)
		}
	}
	return nil
}

// selectFor renders a select control as a huh select, nil when the
// control is absent or hidden.
func selectFor(e *editor.Editor, id form.FieldID, title string, value *string) *huh.Select[string] {
	c, ok := e.Control(string(id))
	if !ok || c.Hidden || c.Kind != form.KindSelect {
		return nil
	}
	var opts []huh.Option[string]
	if c.HasEmptyOption {
		opts = append(opts, huh.NewOption("(none)", ""))
	}
	for _, o := range c.Options {
		opts = append(opts, huh.NewOption(o.Label, o.Value))
	}
	return huh.NewSelect[string]().
		Title(title).
		Options(opts...).
		Value(value)
}

func watcherSelect(e *editor.Editor, value *[]string) *huh.MultiSelect[string] {
	controls := watcherControls(e)
	if len(controls) == 0 {
		return nil
	}
	opts := make([]huh.Option[string], 0, len(controls))
	for _, c := range controls {
		opts = append(opts, huh.NewOption(c.Label, c.Value).Selected(c.Checked))
	}
	return huh.NewMultiSelect[string]().
		Title("Watchers").
		Options(opts...).
		Value(value)
}

// watcherControls returns the enabled, visible boxes of the watcher
// group.
func watcherControls(e *editor.Editor) []form.Control {
	var out []form.Control
	for _, c := range e.Controls() {
		if c.Desc.Field != form.FieldWatchers || c.Kind != form.KindCheckbox {
			continue
		}
		if c.Hidden || c.Disabled {
			continue
		}
		out = append(out, c)
	}
	return out
}
