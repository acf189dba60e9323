package editor

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/nhle/mailissue/internal/form"
	"github.com/nhle/mailissue/internal/model"
)

// projectFields are the controls whose choices depend on the project.
var projectFields = []form.FieldID{
	form.FieldTracker,
	form.FieldVersion,
	form.FieldAssignee,
	form.FieldWatchers,
}

// ChangeProject switches the draft to projectID and rebinds the
// project-dependent fields. The trackers, versions and members of the
// project are fetched together; the draft keeps every value that is
// still offered.
//
// A failed fetch applies nothing. When another ChangeProject starts
// before this one finishes, this one's result is discarded and applied
// is false.
func (e *Editor) ChangeProject(ctx context.Context, projectID int) (applied bool, err error) {
	if projectID <= 0 {
		return false, fmt.Errorf("invalid project id %d", projectID)
	}

	// Pending reads must land before the rebuilt controls are re-read.
	e.binder.Flush()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false, ErrClosed
	}
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	refs, err := e.resolver.Project(ctx, projectID)
	if err != nil {
		e.log.Error(err, "project rebind failed", "project", projectID)
		return false, fmt.Errorf("changing project to %d: %w", projectID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || e.closed {
		e.log.V(1).Info("discarding stale project rebind", "project", projectID,
			"generation", gen, "current", e.gen)
		return false, nil
	}

	e.rebindProject(projectID, refs)
	e.validate()
	return true, nil
}

// rebindProject applies refs for projectID. Called with mu held.
func (e *Editor) rebindProject(projectID int, refs *model.ReferenceSet) {
	e.draft.ProjectID = model.IntPtr(projectID)
	if c := e.form.Control(string(form.FieldProject)); c != nil {
		c.SetValue(strconv.Itoa(projectID))
	}

	e.absorbEdits()
	e.setProjectChoices(refs)
	e.form.ApplyFields(e.draft, projectFields...)
	e.pruneChoices()

	e.log.V(1).Info("project rebound", "project", projectID,
		"trackers", len(refs.Trackers), "versions", len(refs.Versions),
		"members", len(refs.Members))
}

// absorbEdits reads the project-dependent controls into the draft and
// drops their pending reads, so edits made while the project was being
// fetched take part in the rebind. Called with mu held.
func (e *Editor) absorbEdits() {
	for _, c := range e.form.Controls() {
		if slices.Contains(projectFields, c.Desc.Field) {
			e.binder.Cancel(c.Key)
		}
	}
	for _, id := range projectFields {
		e.form.ReadField(id, e.draft)
	}
}

// pruneChoices drops draft values that the rendered selects no longer
// offer, so the draft matches what would be submitted. Called with mu
// held.
func (e *Editor) pruneChoices() {
	d := e.draft
	selects := map[form.FieldID]*int{
		form.FieldProject:  d.ProjectID,
		form.FieldTracker:  d.TrackerID,
		form.FieldStatus:   d.StatusID,
		form.FieldVersion:  d.FixedVersionID,
		form.FieldAssignee: d.AssignedToID,
	}
	for id, v := range selects {
		c := e.form.Control(string(id))
		if v == nil || c == nil || c.Value != "" {
			continue
		}
		e.form.ReadField(id, d)
	}
	e.form.ReadField(form.FieldWatchers, d)
}

// LoadIssue binds the editor to an existing issue: the draft takes the
// issue's description, status, assignee, version, parent and the dates
// that are already set, the custom fields are rebuilt from the issue and
// its relations become the new snapshot.
func (e *Editor) LoadIssue(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("invalid issue id %d", id)
	}

	e.binder.Flush()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.issueGen++
	gen := e.issueGen
	configured := e.custom
	e.mu.Unlock()

	issue, err := e.tracker.Issue(ctx, id)
	if err != nil {
		return fmt.Errorf("loading issue %d: %w", id, err)
	}

	parentSubject := ""
	if issue.Parent != nil {
		parentSubject = issue.Parent.Subject
		if parentSubject == "" {
			if parent, err := e.tracker.Issue(ctx, issue.Parent.ID); err != nil {
				e.log.Error(err, "fetching parent subject", "parent", issue.Parent.ID)
			} else {
				parentSubject = parent.Subject
			}
		}
	}

	var refs *model.ReferenceSet
	if issue.Project != nil {
		refs, err = e.resolver.Project(ctx, issue.Project.ID)
		if err != nil {
			return fmt.Errorf("loading issue %d: %w", id, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.issueGen || e.closed {
		e.log.V(1).Info("discarding stale issue load", "issue", id)
		return nil
	}

	e.gen++
	if refs != nil {
		e.rebindProject(issue.Project.ID, refs)
	}

	d := e.draft
	d.ID = issue.ID
	d.Description = issue.Description
	d.StatusID = refID(issue.Status)
	d.AssignedToID = refID(issue.AssignedTo)
	d.FixedVersionID = refID(issue.FixedVersion)
	d.ParentIssueID = nil
	if issue.Parent != nil {
		d.ParentIssueID = model.IntPtr(issue.Parent.ID)
	}
	e.parentSubject = parentSubject

	if d.StartDate != "" {
		d.StartDate = issue.StartDate
	}
	if d.DueDate != "" {
		d.DueDate = issue.DueDate
	}

	e.relations.Reinit(issue.ID, issue.Relations)
	d.Relations = issue.Relations

	d.CustomFields = nil
	e.form.RebuildCustomFields(mergeCustomFields(configured, issue.CustomFields))

	e.form.ApplyDraft(d)
	e.pruneChoices()
	e.readCustomFields()
	e.validate()

	e.log.V(1).Info("issue loaded", "issue", issue.ID,
		"relations", len(issue.Relations), "custom_fields", len(issue.CustomFields))
	return nil
}

func refID(r *model.Ref) *int {
	if r == nil {
		return nil
	}
	return model.IntPtr(r.ID)
}

// mergeCustomFields turns the values carried by an issue into
// definitions. A configured definition with the same id supplies the
// format and the possible values.
func mergeCustomFields(configured []model.CustomFieldDefinition, values []model.CustomFieldValue) []model.CustomFieldDefinition {
	byID := make(map[int]model.CustomFieldDefinition, len(configured))
	for _, def := range configured {
		byID[def.ID] = def
	}

	defs := model.DefinitionsFromIssue(values)
	for i, def := range defs {
		known, ok := byID[def.ID]
		if !ok {
			continue
		}
		known.Current = def.Current
		if known.Name == "" {
			known.Name = def.Name
		}
		defs[i] = known
	}
	return defs
}
