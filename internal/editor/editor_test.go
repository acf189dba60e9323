package editor

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailissue/internal/form"
	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/validate"
	"github.com/nhle/mailissue/tests/testutil"
)

func newEditor(t *testing.T, ft *testutil.FakeTracker, d model.Draft, mode Mode) *Editor {
	t.Helper()
	e, err := New(context.Background(), Options{
		Tracker:  ft,
		Draft:    d,
		Mode:     mode,
		Debounce: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestChangeProjectKeepsOfferedValues(t *testing.T) {
	tests := []struct {
		name        string
		tracker     int
		wantTracker *int
	}{
		{name: "tracker offered by both projects", tracker: 1, wantTracker: model.IntPtr(1)},
		{name: "tracker missing from new project", tracker: 3, wantTracker: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := testutil.NewFakeTracker()
			e := newEditor(t, ft, model.Draft{
				ProjectID:      model.IntPtr(1),
				TrackerID:      model.IntPtr(tt.tracker),
				FixedVersionID: model.IntPtr(10),
				AssignedToID:   model.IntPtr(101),
				WatcherUserIDs: []int{100, 101},
			}, ModeCreate)

			applied, err := e.ChangeProject(context.Background(), 2)
			require.NoError(t, err)
			assert.True(t, applied)

			d := e.Draft()
			assert.Equal(t, 2, *d.ProjectID)
			assert.Equal(t, tt.wantTracker, d.TrackerID)
			assert.Equal(t, 0, *d.FixedVersionID)
			assert.Equal(t, 0, *d.AssignedToID)
			assert.Equal(t, []int{100}, d.WatcherUserIDs)

			c, ok := e.Control(string(form.FieldProject))
			require.True(t, ok)
			assert.Equal(t, "2", c.Value)

			p := e.Params()
			assert.Equal(t, tt.wantTracker, p.TrackerID)
			assert.Equal(t, []int{100}, p.WatcherUserIDs)
		})
	}
}

func TestChangeProjectDiscardsStaleResult(t *testing.T) {
	ft := testutil.NewFakeTracker()
	e := newEditor(t, ft, model.Draft{ProjectID: model.IntPtr(1), TrackerID: model.IntPtr(3)}, ModeCreate)

	release := ft.Block(2)
	type result struct {
		applied bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		applied, err := e.ChangeProject(context.Background(), 2)
		done <- result{applied, err}
	}()

	require.Eventually(t, func() bool {
		return slices.Contains(ft.Calls(), "Trackers(2)")
	}, time.Second, 5*time.Millisecond)

	applied, err := e.ChangeProject(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, applied)

	release()
	stale := <-done
	require.NoError(t, stale.err)
	assert.False(t, stale.applied)

	d := e.Draft()
	assert.Equal(t, 1, *d.ProjectID)
	assert.Equal(t, 3, *d.TrackerID)
	tracker, ok := e.Control(string(form.FieldTracker))
	require.True(t, ok)
	assert.Len(t, tracker.Options, 2)
}

func TestChangeProjectKeepsEditMadeDuringFetch(t *testing.T) {
	ft := testutil.NewFakeTracker()
	e := newEditor(t, ft, model.Draft{ProjectID: model.IntPtr(1), AssignedToID: model.IntPtr(101)}, ModeCreate)

	release := ft.Block(2)
	done := make(chan error, 1)
	go func() {
		_, err := e.ChangeProject(context.Background(), 2)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return slices.Contains(ft.Calls(), "Trackers(2)")
	}, time.Second, 5*time.Millisecond)

	// User 100 is a member of both projects.
	require.NoError(t, e.Edit(string(form.FieldAssignee), "100"))

	release()
	require.NoError(t, <-done)

	c, ok := e.Control(string(form.FieldAssignee))
	require.True(t, ok)
	assert.Equal(t, "100", c.Value)

	p := e.Params()
	require.NotNil(t, p.AssignedToID)
	assert.Equal(t, 100, *p.AssignedToID)
	assert.Equal(t, 100, *e.Draft().AssignedToID)
}

func TestChangeProjectFailureAppliesNothing(t *testing.T) {
	ft := testutil.NewFakeTracker()
	e := newEditor(t, ft, model.Draft{ProjectID: model.IntPtr(1), TrackerID: model.IntPtr(3)}, ModeCreate)

	ft.Errors["Versions"] = errors.New("backend down")
	applied, err := e.ChangeProject(context.Background(), 2)
	require.Error(t, err)
	assert.False(t, applied)
	assert.Contains(t, err.Error(), "backend down")

	d := e.Draft()
	assert.Equal(t, 1, *d.ProjectID)
	assert.Equal(t, 3, *d.TrackerID)

	c, _ := e.Control(string(form.FieldTracker))
	assert.Equal(t, "3", c.Value)
	assert.Len(t, c.Options, 2)
}

func TestNewFailsWithoutReferenceData(t *testing.T) {
	ft := testutil.NewFakeTracker()
	ft.Errors["Statuses"] = errors.New("timeout")

	_, err := New(context.Background(), Options{Tracker: ft, Draft: model.Draft{ProjectID: model.IntPtr(1)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestSubmitCreate(t *testing.T) {
	ft := testutil.NewFakeTracker()
	e := newEditor(t, ft, model.Draft{
		ProjectID:   model.IntPtr(1),
		TrackerID:   model.IntPtr(1),
		Subject:     "Server down",
		Description: "It crashed at noon.\n",
		StatusID:    model.IntPtr(1),
		StartDate:   "2026-10-14",
		DueDate:     "2026-10-21",
		Files: []model.Upload{
			{Filename: "log.txt", ContentType: "text/plain", Data: []byte("trace")},
		},
	}, ModeCreate)

	require.NoError(t, e.Edit(string(form.FieldSubject), "Server down again"))
	require.NoError(t, e.Check(form.GroupKey(form.FieldWatchers, "101"), true))
	require.NoError(t, e.SetDateEnabled(form.FieldDueDate, true))
	e.AddRelation(model.RelationRelates, 20)

	res, err := e.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1001, res.Issue.ID)

	created := ft.Created()
	require.Len(t, created, 1)
	p := created[0]
	assert.Equal(t, "Server down again", *p.Subject)
	assert.Equal(t, "It crashed at noon.\n", *p.Description)
	assert.Equal(t, []int{101}, p.WatcherUserIDs)
	assert.Nil(t, p.StartDate)
	require.NotNil(t, p.DueDate)
	assert.Equal(t, "2026-10-21", *p.DueDate)
	require.Len(t, p.Uploads, 1)
	assert.Equal(t, "tok-1", p.Uploads[0].Token)

	require.Len(t, res.Relations, 1)
	assert.NoError(t, res.Relations[0].Err)
	saved := ft.SavedRelations()
	require.Len(t, saved, 1)
	assert.Equal(t, 1001, saved[0].IssueID)
	assert.Equal(t, 20, saved[0].IssueToID)

	d := e.Draft()
	assert.Equal(t, "Server down again", d.Subject)
	assert.Equal(t, []int{101}, d.WatcherUserIDs)
}

func TestSubmitRequiresProject(t *testing.T) {
	ft := testutil.NewFakeTracker()
	e := newEditor(t, ft, model.Draft{Subject: "Orphan"}, ModeCreate)

	_, err := e.Submit(context.Background())
	assert.ErrorIs(t, err, ErrMissingProject)
	assert.Empty(t, ft.Created())
}

func TestEditRejectsProjectAndClosedEditor(t *testing.T) {
	ft := testutil.NewFakeTracker()
	e := newEditor(t, ft, model.Draft{ProjectID: model.IntPtr(1)}, ModeCreate)

	assert.ErrorIs(t, e.Edit(string(form.FieldProject), "2"), ErrProjectField)
	assert.ErrorIs(t, e.Edit("nope", "x"), form.ErrUnknownControl)
	assert.Error(t, e.SetDateEnabled(form.FieldSubject, true))

	e.Close()
	assert.ErrorIs(t, e.Edit(string(form.FieldSubject), "x"), ErrClosed)
	_, err := e.Submit(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func seedIssue(ft *testutil.FakeTracker) {
	ft.Issues[3] = &model.Issue{ID: 3, Subject: "Parent task"}
	ft.Issues[9] = &model.Issue{
		ID:          9,
		Project:     &model.Ref{ID: 1},
		Status:      &model.Ref{ID: 2},
		AssignedTo:  &model.Ref{ID: 100},
		Parent:      &model.IssueRef{ID: 3},
		Subject:     "Server down",
		Description: "Original description",
		DueDate:     "2026-11-01",
		CustomFields: []model.CustomFieldValue{
			{ID: 4, Name: "Tags", Multiple: true, Values: []string{"x"}},
			{ID: 6, Name: "Env", Value: "prod"},
		},
		Relations: []model.Relation{
			{ID: 5, IssueID: 9, IssueToID: 10, Type: model.RelationRelates},
		},
	}
}

func TestLoadIssue(t *testing.T) {
	ft := testutil.NewFakeTracker()
	seedIssue(ft)
	e := newEditor(t, ft, model.Draft{Notes: "From mail"}, ModeUpdate)

	require.NoError(t, e.LoadIssue(context.Background(), 9))

	d := e.Draft()
	assert.Equal(t, 9, d.ID)
	assert.Equal(t, 1, *d.ProjectID)
	assert.Equal(t, "Original description", d.Description)
	assert.Equal(t, 2, *d.StatusID)
	assert.Equal(t, 100, *d.AssignedToID)
	assert.Nil(t, d.FixedVersionID)
	assert.Equal(t, 3, *d.ParentIssueID)
	assert.Empty(t, d.DueDate, "dates that were not set stay unset")
	assert.Equal(t, "From mail", d.Notes)
	assert.Equal(t, "Parent task", e.ParentSubject())

	rows := e.Relations()
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].Target)

	c, ok := e.Control(form.CustomOptionKey(4, "x"))
	require.True(t, ok)
	assert.True(t, c.Checked)
	c, ok = e.Control(form.CustomKey(6))
	require.True(t, ok)
	assert.Equal(t, "prod", c.Value)

	_, ok = e.Control(string(form.FieldProject))
	assert.False(t, ok, "update forms do not render the project")

	assert.Error(t, e.LoadIssue(context.Background(), 404))
}

func TestSubmitUpdateValidation(t *testing.T) {
	ft := testutil.NewFakeTracker()
	seedIssue(ft)
	e := newEditor(t, ft, model.Draft{Notes: "From mail"}, ModeUpdate)

	var valid, invalid int
	e.OnValid(func() { valid++ })
	e.OnInvalid(func(validate.Result) { invalid++ })

	_, err := e.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoIssue)

	require.NoError(t, e.LoadIssue(context.Background(), 9))

	require.NoError(t, e.Edit(string(form.FieldParent), "9"))
	_, err = e.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Positive(t, invalid)
	c, _ := e.Control(string(form.FieldParent))
	assert.True(t, c.Invalid)

	require.NoError(t, e.Edit(string(form.FieldParent), "3"))
	key := e.AddRelation(model.RelationBlocks, 3)
	assert.False(t, e.Valid(), "a relation to the parent is unavailable")
	assert.True(t, e.Relations()[1].Invalid)
	require.True(t, e.RemoveRelation(key))
	assert.True(t, e.Valid())

	res, err := e.Submit(context.Background())
	require.NoError(t, err)
	assert.Positive(t, valid)
	assert.Empty(t, res.Relations, "unchanged relations are not rewritten")

	p, ok := ft.Updated(9)
	require.True(t, ok)
	require.NotNil(t, p.Notes)
	assert.Equal(t, "From mail", *p.Notes)
	assert.Equal(t, 3, *p.ParentIssueID)
	assert.Equal(t, []model.CustomFieldValue{
		{ID: 4, Multiple: true, Values: []string{"x"}},
		{ID: 6, Value: "prod"},
	}, p.CustomFields)
}

func TestEditorDebouncedEdits(t *testing.T) {
	ft := testutil.NewFakeTracker()
	e, err := New(context.Background(), Options{
		Tracker:  ft,
		Draft:    model.Draft{ProjectID: model.IntPtr(1)},
		Debounce: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer e.Close()

	var reads int
	e.OnValid(func() { reads++ })

	for _, v := range []string{"a", "ab", "abc"} {
		require.NoError(t, e.Edit(string(form.FieldSubject), v))
	}

	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.draft.Subject == "abc"
	}, time.Second, 5*time.Millisecond)

	e.mu.Lock()
	defer e.mu.Unlock()
	assert.Equal(t, 1, reads, "three quick edits cause a single read")
}
