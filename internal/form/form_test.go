package form

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailissue/internal/debounce"
	"github.com/nhle/mailissue/internal/model"
)

func newCreateForm(t *testing.T) *Form {
	t.Helper()
	f := New(CreateLayout)
	f.SetChoices(FieldProject, []Option{{Value: "1", Label: "Ops"}, {Value: "2", Label: "Web"}})
	f.SetChoices(FieldTracker, []Option{{Value: "1", Label: "Bug"}, {Value: "3", Label: "Support"}})
	f.SetChoices(FieldStatus, []Option{{Value: "1", Label: "New"}, {Value: "2", Label: "Open"}})
	f.SetChoices(FieldAssignee, []Option{{Value: "100", Label: "Alice"}, {Value: "101", Label: "Bob"}})
	f.SetChoices(FieldVersion, []Option{{Value: "10", Label: "1.0"}})
	f.SetChoices(FieldWatchers, []Option{
		{Value: "100", Label: "Alice"},
		{Value: "101", Label: "Bob"},
		{Value: "102", Label: "Carol"},
	})
	return f
}

func snapshot(f *Form) map[string]Control {
	out := make(map[string]Control)
	for _, c := range f.Controls() {
		out[c.Key] = *c
	}
	return out
}

func TestApplyDraftIsIdempotent(t *testing.T) {
	f := newCreateForm(t)
	f.RebuildCustomFields([]model.CustomFieldDefinition{
		{ID: 4, Name: "Tags", Format: model.FormatList, Multiple: true,
			PossibleValues: []model.PossibleValue{{Value: "a"}, {Value: "b"}}},
		{ID: 5, Name: "Env", Format: model.FormatString},
	})

	d := &model.Draft{
		ProjectID:      model.IntPtr(2),
		TrackerID:      model.IntPtr(3),
		Subject:        "Server down",
		Description:    "It crashed.",
		StatusID:       model.IntPtr(1),
		AssignedToID:   model.IntPtr(101),
		WatcherUserIDs: []int{101, 102},
		DueDate:        "2026-10-21",
		CustomFields: []model.CustomFieldValue{
			{ID: 4, Multiple: true, Values: []string{"b"}},
			{ID: 5, Value: "prod"},
		},
	}

	f.ApplyDraft(d)
	first := snapshot(f)
	f.ApplyDraft(d)
	assert.Equal(t, first, snapshot(f))

	assert.Equal(t, "2", f.Control("project_id").Value)
	assert.Equal(t, "3", f.Control("tracker_id").Value)
	assert.Equal(t, "", f.Control("fixed_version_id").Value)
	assert.False(t, f.Control(GroupKey(FieldWatchers, "100")).Checked)
	assert.True(t, f.Control(GroupKey(FieldWatchers, "101")).Checked)
	assert.True(t, f.Control(GroupKey(FieldWatchers, "102")).Checked)
	assert.True(t, f.Control(CustomOptionKey(4, "b")).Checked)
	assert.Equal(t, "prod", f.Control(CustomKey(5)).Value)
}

func TestApplyDraftLeavesDatesWhenEmpty(t *testing.T) {
	f := newCreateForm(t)
	require.NoError(t, f.SetValue("start_date", "2026-10-14"))

	f.ApplyDraft(&model.Draft{})
	assert.Equal(t, "2026-10-14", f.Control("start_date").Value)
}

func TestWatcherSetSemantics(t *testing.T) {
	f := newCreateForm(t)
	d := &model.Draft{WatcherUserIDs: []int{101, 102}}
	f.ApplyDraft(d)

	require.NoError(t, f.SetChecked(GroupKey(FieldWatchers, "101"), false))
	require.NoError(t, f.ReadControl(GroupKey(FieldWatchers, "101"), d))
	assert.ElementsMatch(t, []int{102}, d.WatcherUserIDs)

	require.NoError(t, f.SetChecked(GroupKey(FieldWatchers, "100"), true))
	require.NoError(t, f.ReadControl(GroupKey(FieldWatchers, "100"), d))
	assert.ElementsMatch(t, []int{100, 102}, d.WatcherUserIDs)

	// Reading a box twice does not duplicate its value.
	require.NoError(t, f.ReadControl(GroupKey(FieldWatchers, "100"), d))
	assert.ElementsMatch(t, []int{100, 102}, d.WatcherUserIDs)

	p := f.CollectRequestParams()
	assert.ElementsMatch(t, []int{100, 102}, p.WatcherUserIDs)
}

func TestReadControlParseRules(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		raw   string
		check func(t *testing.T, d *model.Draft)
	}{
		{
			name: "empty parent is null",
			key:  "parent_issue_id",
			raw:  "",
			check: func(t *testing.T, d *model.Draft) {
				assert.Nil(t, d.ParentIssueID)
			},
		},
		{
			name: "malformed parent is zero",
			key:  "parent_issue_id",
			raw:  "abc",
			check: func(t *testing.T, d *model.Draft) {
				require.NotNil(t, d.ParentIssueID)
				assert.Equal(t, 0, *d.ParentIssueID)
			},
		},
		{
			name: "leading digits are kept",
			key:  "parent_issue_id",
			raw:  "12abc",
			check: func(t *testing.T, d *model.Draft) {
				require.NotNil(t, d.ParentIssueID)
				assert.Equal(t, 12, *d.ParentIssueID)
			},
		},
		{
			name: "empty assignee is zero",
			key:  "assigned_to_id",
			raw:  "",
			check: func(t *testing.T, d *model.Draft) {
				require.NotNil(t, d.AssignedToID)
				assert.Equal(t, 0, *d.AssignedToID)
			},
		},
		{
			name: "unknown project is null",
			key:  "project_id",
			raw:  "99",
			check: func(t *testing.T, d *model.Draft) {
				assert.Nil(t, d.ProjectID)
			},
		},
		{
			name: "subject is raw",
			key:  "subject",
			raw:  "  spaced  ",
			check: func(t *testing.T, d *model.Draft) {
				assert.Equal(t, "  spaced  ", d.Subject)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCreateForm(t)
			d := &model.Draft{ParentIssueID: model.IntPtr(7), ProjectID: model.IntPtr(1)}
			require.NoError(t, f.SetValue(tt.key, tt.raw))
			require.NoError(t, f.ReadControl(tt.key, d))
			tt.check(t, d)
		})
	}
}

func TestReadControlUnknownKey(t *testing.T) {
	f := newCreateForm(t)
	err := f.ReadControl("nope", &model.Draft{})
	assert.ErrorIs(t, err, ErrUnknownControl)
}

func TestSetChoicesKeepsValidValue(t *testing.T) {
	f := newCreateForm(t)

	require.NoError(t, f.SetValue("tracker_id", "3"))
	f.SetChoices(FieldTracker, []Option{{Value: "1"}, {Value: "2"}})
	assert.Equal(t, "", f.Control("tracker_id").Value)

	require.NoError(t, f.SetValue("tracker_id", "1"))
	f.SetChoices(FieldTracker, []Option{{Value: "1"}, {Value: "2"}})
	assert.Equal(t, "1", f.Control("tracker_id").Value)
}

func TestCollectRequestParams(t *testing.T) {
	f := newCreateForm(t)
	f.ApplyDraft(&model.Draft{
		ProjectID:    model.IntPtr(1),
		TrackerID:    model.IntPtr(1),
		Subject:      "Server down",
		StartDate:    "2026-10-14",
		DueDate:      "2026-10-21",
		StatusID:     model.IntPtr(2),
		AssignedToID: model.IntPtr(100),
	})

	p := f.CollectRequestParams()
	assert.Equal(t, 1, *p.ProjectID)
	assert.Equal(t, "Server down", *p.Subject)
	assert.Equal(t, 100, *p.AssignedToID)
	assert.Nil(t, p.StartDate, "dates are disabled by default")
	assert.Nil(t, p.DueDate)
	assert.Nil(t, p.ParentIssueID)
	assert.NotNil(t, p.WatcherUserIDs)
	assert.Empty(t, p.WatcherUserIDs)

	require.NoError(t, f.SetDisabled("due_date", false))
	f.SetHidden(FieldSubject, true)
	p = f.CollectRequestParams()
	require.NotNil(t, p.DueDate)
	assert.Equal(t, "2026-10-21", *p.DueDate)
	require.NotNil(t, p.Subject, "hidden controls are still collected")
	assert.True(t, f.Control("subject").Hidden)
}

func TestCustomFieldRows(t *testing.T) {
	f := New(UpdateLayout)
	f.RebuildCustomFields([]model.CustomFieldDefinition{
		{ID: 1, Name: "Tags", Format: model.FormatList, Multiple: true,
			PossibleValues: []model.PossibleValue{{Value: "a"}, {Value: "b"}}},
		{ID: 2, Name: "Estimate", Format: model.FormatInt},
		{ID: 3, Name: "Urgent", Format: model.FormatBool, DefaultValue: "1"},
		{ID: 4, Name: "Area", Format: model.FormatList,
			PossibleValues: []model.PossibleValue{{Value: "db"}, {Value: "ui"}}},
		{ID: 5, Name: "Labels", Format: model.FormatString, Multiple: true,
			Current: &model.CustomFieldValue{ID: 5, Multiple: true, Values: []string{"x", "y"}}},
	})

	assert.Equal(t, []int{1, 2, 3, 4, 5}, f.CustomFieldIDs())
	assert.Equal(t, KindNumber, f.Control(CustomKey(2)).Kind)
	assert.Equal(t, KindSelect, f.Control(CustomKey(3)).Kind)
	assert.Equal(t, "1", f.Control(CustomKey(3)).Value)
	assert.Len(t, f.CustomFieldKeys(5), 2)
	assert.True(t, f.Control(CustomOptionKey(5, "y")).Checked)

	p := f.CollectRequestParams()
	assert.Equal(t, []model.CustomFieldValue{
		{ID: 1, Multiple: true, Values: []string{}},
		{ID: 3, Value: "1"},
		{ID: 4, Value: ""},
		{ID: 5, Multiple: true, Values: []string{"x", "y"}},
	}, p.CustomFields, "an empty integer field is omitted")

	d := &model.Draft{}
	require.NoError(t, f.SetValue(CustomKey(2), "8"))
	require.NoError(t, f.ReadControl(CustomKey(2), d))
	require.NoError(t, f.SetChecked(CustomOptionKey(1, "b"), true))
	require.NoError(t, f.ReadControl(CustomOptionKey(1, "b"), d))
	assert.Equal(t, "8", d.CustomField(2).Value)
	assert.Equal(t, []string{"b"}, d.CustomField(1).Values)

	require.NoError(t, f.SetValue(CustomKey(2), ""))
	require.NoError(t, f.ReadControl(CustomKey(2), d))
	assert.Nil(t, d.CustomField(2))

	f.RebuildCustomFields(nil)
	assert.Nil(t, f.Control(CustomKey(2)))
	assert.Empty(t, f.CollectRequestParams().CustomFields)
}

func TestParseInt(t *testing.T) {
	tests := map[string]int{
		"":     0,
		"42":   42,
		" 7":   7,
		"-3x":  -3,
		"x1":   0,
		"+":    0,
		"0012": 12,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseInt(in), "ParseInt(%q)", in)
	}
}

func TestBinderCoalescesEdits(t *testing.T) {
	f := newCreateForm(t)
	d := &model.Draft{}
	var mu sync.Mutex
	var reads atomic.Int32

	b := NewBinder(f, d, &mu, debounce.New(30*time.Millisecond), func(string) {
		reads.Add(1)
	})
	defer b.Stop()

	for _, v := range []string{"S", "Se", "Server"} {
		mu.Lock()
		require.NoError(t, f.SetValue("subject", v))
		mu.Unlock()
		b.Changed("subject")
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return reads.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 1, reads.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Server", d.Subject)
}

func TestBinderFlush(t *testing.T) {
	f := newCreateForm(t)
	d := &model.Draft{}
	var mu sync.Mutex

	b := NewBinder(f, d, &mu, debounce.New(time.Hour), nil)
	defer b.Stop()

	require.NoError(t, f.SetValue("subject", "Draft"))
	b.Changed("subject")
	assert.True(t, b.Pending("subject"))

	b.Flush()
	assert.False(t, b.Pending("subject"))
	assert.Equal(t, "Draft", d.Subject)
}
