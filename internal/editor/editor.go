// Package editor drives one issue form: it populates the form from
// reference data, keeps the draft in sync with edits, rebinds dependent
// fields when the project changes and submits the result.
package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/nhle/mailissue/internal/debounce"
	"github.com/nhle/mailissue/internal/form"
	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/refdata"
	"github.com/nhle/mailissue/internal/relation"
	"github.com/nhle/mailissue/internal/source"
	"github.com/nhle/mailissue/internal/validate"
)

var (
	// ErrInvalid is returned by Submit while validation fails.
	ErrInvalid = errors.New("issue form has invalid fields")

	// ErrMissingProject is returned by Submit when creating an issue
	// without a project.
	ErrMissingProject = errors.New("no project selected")

	// ErrNoIssue is returned by Submit in update mode before an issue
	// was loaded.
	ErrNoIssue = errors.New("no issue loaded")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("editor is closed")

	// ErrProjectField is returned when the project is edited as a plain
	// field; ChangeProject must be used instead.
	ErrProjectField = errors.New("use ChangeProject to change the project")
)

// Mode selects between creating an issue and updating an existing one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	if m == ModeUpdate {
		return "update"
	}
	return "create"
}

// Options configures an Editor.
type Options struct {
	Tracker source.Tracker

	// Resolver defaults to an uncached resolver over Tracker.
	Resolver *refdata.Resolver

	// Draft is the initial draft, usually produced by the mapper.
	Draft model.Draft

	// Config provides the field visibility and custom field settings.
	Config *model.AppConfig

	Logger logr.Logger
	Mode   Mode

	// Debounce is the quiescence window of field edits.
	Debounce time.Duration
}

// Editor owns a draft and the form bound to it. Its methods may be
// called from any goroutine; a single mutex serializes every change to
// the draft and the form while tracker calls run without it.
type Editor struct {
	tracker  source.Tracker
	resolver *refdata.Resolver
	cfg      *model.AppConfig
	log      logr.Logger
	mode     Mode

	mu        sync.Mutex
	draft     *model.Draft
	form      *form.Form
	binder    *form.Binder
	relations *relation.Set
	gate      *validate.Gate

	projects []model.Project
	statuses []model.Status

	// custom holds the configured custom field definitions.
	custom []model.CustomFieldDefinition

	parentSubject string

	// gen tags project rebinds; issueGen tags issue loads.
	gen      uint64
	issueGen uint64
	closed   bool
}

// New fetches the reference data of the draft's project, renders the
// form and applies the draft to it.
func New(ctx context.Context, opts Options) (*Editor, error) {
	if opts.Tracker == nil {
		return nil, errors.New("editor: tracker is required")
	}
	if opts.Config == nil {
		opts.Config = model.DefaultConfig()
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.Resolver == nil {
		opts.Resolver = refdata.NewResolver(opts.Tracker,
			refdata.WithLogger(opts.Logger),
			refdata.WithRemoteCustomFields(opts.Config.CustomFieldsRemote))
	}
	if opts.Debounce <= 0 {
		opts.Debounce = debounce.DefaultDelay
	}

	draft := opts.Draft
	e := &Editor{
		tracker:   opts.Tracker,
		resolver:  opts.Resolver,
		cfg:       opts.Config,
		log:       opts.Logger.WithName("editor"),
		mode:      opts.Mode,
		draft:     &draft,
		relations: relation.NewSet(),
		gate:      validate.NewGate(),
	}

	layout := form.CreateLayout
	if opts.Mode == ModeUpdate {
		layout = form.UpdateLayout
	}
	e.form = form.New(layout)
	e.binder = form.NewBinder(e.form, e.draft, &e.mu, debounce.New(opts.Debounce), e.afterRead)

	projectID := 0
	if draft.ProjectID != nil {
		projectID = *draft.ProjectID
	}
	refs, err := e.resolver.Initial(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("opening %s form: %w", opts.Mode, err)
	}

	defs, err := e.resolver.CustomFields(ctx, opts.Config.CustomFields)
	if err != nil {
		return nil, fmt.Errorf("opening %s form: %w", opts.Mode, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.projects = refs.Projects
	e.statuses = refs.Statuses
	e.custom = defs

	e.form.SetChoices(form.FieldProject, projectOptions(refs.Projects))
	e.form.SetChoices(form.FieldStatus, statusOptions(refs.Statuses))
	e.setProjectChoices(refs)
	if e.mode == ModeCreate {
		e.form.RebuildCustomFields(defs)
	}
	e.form.ApplyVisibility(e.cfg.Visible)
	e.form.ApplyDraft(e.draft)
	e.pruneChoices()
	e.readCustomFields()

	e.relations.Reinit(e.draft.ID, e.draft.Relations)
	e.validate()

	e.log.V(1).Info("editor ready", "mode", e.mode, "project", projectID,
		"custom_fields", len(e.form.CustomFieldIDs()))
	return e, nil
}

// setProjectChoices rebuilds the project-dependent controls from refs.
func (e *Editor) setProjectChoices(refs *model.ReferenceSet) {
	users := refs.Users()
	e.form.SetChoices(form.FieldTracker, trackerOptions(refs.Trackers))
	e.form.SetChoices(form.FieldVersion, versionOptions(refs.Versions))
	e.form.SetChoices(form.FieldAssignee, userOptions(users))
	e.form.SetChoices(form.FieldWatchers, userOptions(users))
}

// readCustomFields copies every rendered custom field into the draft so
// defaults are part of it.
func (e *Editor) readCustomFields() {
	for _, id := range e.form.CustomFieldIDs() {
		for _, key := range e.form.CustomFieldKeys(id) {
			_ = e.form.ReadControl(key, e.draft)
		}
	}
}

// afterRead runs under mu after a debounced read.
func (e *Editor) afterRead(key string) {
	e.log.V(2).Info("field read", "key", key)
	e.validate()
}

// validate reruns the gate on the current state and flags the failing
// controls. Called with mu held.
func (e *Editor) validate() validate.Result {
	in := validate.Input{SelfID: e.draft.ID}
	if c := e.form.Control(string(form.FieldParent)); c != nil {
		in.ParentRaw = c.Value
	}
	for _, r := range e.relations.Rows() {
		in.Rows = append(in.Rows, validate.RowInput{Key: r.Key, Target: r.Target})
	}

	res := e.gate.Run(in)
	e.form.SetInvalid(string(form.FieldParent), res.ParentInvalid)
	for _, r := range e.relations.Rows() {
		e.relations.SetInvalid(r.Key, slices.Contains(res.InvalidRows, r.Key))
	}
	return res
}

// OnValid registers fn to be called whenever a validation pass succeeds.
// fn runs with the editor locked and must not call back into it.
func (e *Editor) OnValid(fn func()) {
	e.gate.OnValid(fn)
}

// OnInvalid registers fn to be called whenever a validation pass fails.
// fn runs with the editor locked and must not call back into it.
func (e *Editor) OnInvalid(fn func(validate.Result)) {
	e.gate.OnInvalid(fn)
}

// Mode returns the editor mode.
func (e *Editor) Mode() Mode {
	return e.mode
}

// Edit sets the raw value of a control and schedules its read into the
// draft.
func (e *Editor) Edit(key, raw string) error {
	if key == string(form.FieldProject) {
		return ErrProjectField
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	err := e.form.SetValue(key, raw)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.binder.Changed(key)
	return nil
}

// Check sets the state of a checkbox and schedules its read into the
// draft.
func (e *Editor) Check(key string, checked bool) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	err := e.form.SetChecked(key, checked)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.binder.Changed(key)
	return nil
}

// SetDateEnabled toggles whether a date field is submitted.
func (e *Editor) SetDateEnabled(field form.FieldID, enabled bool) error {
	if field != form.FieldStartDate && field != form.FieldDueDate {
		return fmt.Errorf("%s is not a date field", field)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.form.SetDisabled(string(field), !enabled)
}

// AddRelation appends a relation row and returns its key.
func (e *Editor) AddRelation(t model.RelationType, target int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := e.relations.AddTarget(t, target)
	e.validate()
	return key
}

// EditRelation changes a relation row.
func (e *Editor) EditRelation(key string, t model.RelationType, target int, delay *int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.relations.Edit(key, t, target, delay); err != nil {
		return err
	}
	e.validate()
	return nil
}

// RemoveRelation drops a relation row.
func (e *Editor) RemoveRelation(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := e.relations.Remove(key)
	e.validate()
	return ok
}

// Relations returns the current relation rows.
func (e *Editor) Relations() []relation.Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.relations.Rows()
}

// Draft flushes pending edits and returns a copy of the draft.
func (e *Editor) Draft() model.Draft {
	e.binder.Flush()
	e.mu.Lock()
	defer e.mu.Unlock()
	d := *e.draft
	d.WatcherUserIDs = slices.Clone(d.WatcherUserIDs)
	d.CustomFields = slices.Clone(d.CustomFields)
	return d
}

// Controls returns copies of the rendered controls in display order.
func (e *Editor) Controls() []form.Control {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []form.Control
	for _, c := range e.form.Controls() {
		out = append(out, *c)
	}
	return out
}

// Control returns a copy of one control.
func (e *Editor) Control(key string) (form.Control, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.form.Control(key)
	if c == nil {
		return form.Control{}, false
	}
	return *c, true
}

// ParentSubject returns the subject of the loaded issue's parent.
func (e *Editor) ParentSubject() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parentSubject
}

// Valid reports the result of the latest validation pass.
func (e *Editor) Valid() bool {
	return e.gate.Last().Valid()
}

// Close discards pending edits. The editor cannot be used afterwards.
func (e *Editor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.binder.Stop()
}

func projectOptions(projects []model.Project) []form.Option {
	opts := make([]form.Option, 0, len(projects))
	for _, p := range projects {
		label := p.FullName
		if label == "" {
			label = p.Name
		}
		opts = append(opts, form.Option{Value: strconv.Itoa(p.ID), Label: label})
	}
	return opts
}

func trackerOptions(trackers []model.Tracker) []form.Option {
	opts := make([]form.Option, 0, len(trackers))
	for _, t := range trackers {
		opts = append(opts, form.Option{Value: strconv.Itoa(t.ID), Label: t.Name})
	}
	return opts
}

func statusOptions(statuses []model.Status) []form.Option {
	opts := make([]form.Option, 0, len(statuses))
	for _, s := range statuses {
		opts = append(opts, form.Option{Value: strconv.Itoa(s.ID), Label: s.Name})
	}
	return opts
}

func versionOptions(versions []model.Version) []form.Option {
	opts := make([]form.Option, 0, len(versions))
	for _, v := range versions {
		opts = append(opts, form.Option{Value: strconv.Itoa(v.ID), Label: v.Name})
	}
	return opts
}

func userOptions(users []model.Ref) []form.Option {
	opts := make([]form.Option, 0, len(users))
	for _, u := range users {
		opts = append(opts, form.Option{Value: strconv.Itoa(u.ID), Label: u.Name})
	}
	return opts
}
