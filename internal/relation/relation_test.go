package relation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/tests/testutil"
)

func loaded(id int, t model.RelationType, target int, delay *int) Row {
	original := model.Relation{ID: id, IssueID: 9, IssueToID: target, Type: t, Delay: delay}
	return Row{Key: "r", ID: id, Type: t, Target: target, Delay: delay, Original: &original}
}

func TestReconcileMinimality(t *testing.T) {
	tests := []struct {
		name    string
		rows    func() []Row
		removed []int
		want    []OpKind
		wantID  int
	}{
		{
			name: "unchanged row",
			rows: func() []Row { return []Row{loaded(5, model.RelationRelates, 10, nil)} },
		},
		{
			name: "target changed",
			rows: func() []Row {
				r := loaded(5, model.RelationRelates, 10, nil)
				r.Target = 11
				return []Row{r}
			},
			want:   []OpKind{OpUpdate},
			wantID: 5,
		},
		{
			name: "type changed",
			rows: func() []Row {
				r := loaded(5, model.RelationRelates, 10, nil)
				r.Type = model.RelationBlocks
				return []Row{r}
			},
			want:   []OpKind{OpUpdate},
			wantID: 5,
		},
		{
			name: "target cleared",
			rows: func() []Row {
				r := loaded(5, model.RelationRelates, 10, nil)
				r.Target = 0
				return []Row{r}
			},
			want:   []OpKind{OpDelete},
			wantID: 5,
		},
		{
			name: "new row with target",
			rows: func() []Row { return []Row{{Key: "n", Type: model.RelationRelates, Target: 20}} },
			want: []OpKind{OpCreate},
		},
		{
			name: "new empty row",
			rows: func() []Row { return []Row{{Key: "n", Type: model.RelationRelates}} },
		},
		{
			name: "delay ignored for relates",
			rows: func() []Row {
				r := loaded(5, model.RelationRelates, 10, nil)
				r.Delay = model.IntPtr(3)
				return []Row{r}
			},
		},
		{
			name: "missing delay equals zero",
			rows: func() []Row {
				r := loaded(5, model.RelationPrecedes, 10, model.IntPtr(0))
				r.Delay = nil
				return []Row{r}
			},
		},
		{
			name: "delay changed for precedes",
			rows: func() []Row {
				r := loaded(5, model.RelationPrecedes, 10, model.IntPtr(1))
				r.Delay = model.IntPtr(2)
				return []Row{r}
			},
			want:   []OpKind{OpUpdate},
			wantID: 5,
		},
		{
			name:    "removed row",
			rows:    func() []Row { return nil },
			removed: []int{7},
			want:    []OpKind{OpDelete},
			wantID:  7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := Reconcile(9, tt.rows(), tt.removed)
			require.Len(t, ops, len(tt.want))
			for i, kind := range tt.want {
				assert.Equal(t, kind, ops[i].Kind)
				assert.Equal(t, 9, ops[i].Relation.IssueID)
			}
			if tt.wantID != 0 {
				assert.Equal(t, tt.wantID, ops[0].Relation.ID)
			}
		})
	}
}

func TestSetReinitInvertsReverseRelations(t *testing.T) {
	s := NewSet()
	s.Reinit(9, []model.Relation{
		{ID: 5, IssueID: 9, IssueToID: 10, Type: model.RelationRelates},
		{ID: 6, IssueID: 3, IssueToID: 9, Type: model.RelationBlocks},
		{ID: 7, IssueID: 4, IssueToID: 9, Type: model.RelationPrecedes, Delay: model.IntPtr(2)},
	})

	rows := s.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, model.RelationBlocked, rows[1].Type)
	assert.Equal(t, 3, rows[1].Target)
	assert.Equal(t, model.RelationFollows, rows[2].Type)
	assert.Equal(t, 4, rows[2].Target)
	assert.Empty(t, s.Plan(0), "freshly loaded rows need no writes")
}

func TestSetSave(t *testing.T) {
	ft := testutil.NewFakeTracker()
	s := NewSet()
	s.Reinit(9, []model.Relation{
		{ID: 5, IssueID: 9, IssueToID: 10, Type: model.RelationRelates},
		{ID: 6, IssueID: 9, IssueToID: 12, Type: model.RelationRelates},
		{ID: 7, IssueID: 9, IssueToID: 13, Type: model.RelationRelates},
	})
	rows := s.Rows()

	require.NoError(t, s.Edit(rows[0].Key, model.RelationRelates, 11, nil))
	require.True(t, s.Remove(rows[1].Key))
	require.NoError(t, s.Edit(rows[2].Key, model.RelationRelates, 0, nil))
	newKey := s.Add()
	require.NoError(t, s.Edit(newKey, model.RelationBlocks, 20, nil))
	s.Add()

	outcomes := s.Save(context.Background(), ft, 0)
	require.Len(t, outcomes, 4)
	assert.Empty(t, Failed(outcomes))

	saved := ft.SavedRelations()
	require.Len(t, saved, 2)
	assert.Equal(t, 11, saved[0].IssueToID)
	assert.Equal(t, 5, saved[0].ID, "update carries the prior id")
	assert.Equal(t, 20, saved[1].IssueToID)
	assert.Equal(t, []int{6, 7}, ft.DeletedRelations())

	assert.Empty(t, s.Removed())
	assert.Empty(t, s.Plan(0), "a second save is a no-op")

	cleared, ok := s.Row(rows[2].Key)
	require.True(t, ok)
	assert.Zero(t, cleared.ID)
	assert.Nil(t, cleared.Original)
}

func TestSetSavePartialFailure(t *testing.T) {
	ft := testutil.NewFakeTracker()
	ft.RelationErrors[21] = errors.New("boom")

	s := NewSet()
	s.Reinit(9, nil)
	ok := s.AddTarget(model.RelationRelates, 20)
	bad := s.AddTarget(model.RelationRelates, 21)

	outcomes := s.Save(context.Background(), ft, 0)
	require.Len(t, outcomes, 2)

	failed := Failed(outcomes)
	require.Len(t, failed, 1)
	assert.Equal(t, bad, failed[0].Operation.RowKey)
	assert.EqualError(t, failed[0].Err, "boom")

	okRow, _ := s.Row(ok)
	assert.NotZero(t, okRow.ID)
	badRow, _ := s.Row(bad)
	assert.Zero(t, badRow.ID)

	ops := s.Plan(0)
	require.Len(t, ops, 1, "only the failed row is retried")
	assert.Equal(t, bad, ops[0].RowKey)
}

func TestSetRemovedIDsAreDeletedOnce(t *testing.T) {
	ft := testutil.NewFakeTracker()
	ft.Errors["DeleteRelation"] = errors.New("gone away")

	s := NewSet()
	s.Reinit(9, []model.Relation{
		{ID: 5, IssueID: 9, IssueToID: 10, Type: model.RelationRelates},
	})
	require.True(t, s.Remove(s.Rows()[0].Key))

	outcomes := s.Save(context.Background(), ft, 0)
	require.Len(t, outcomes, 1)
	require.Len(t, Failed(outcomes), 1)
	assert.Equal(t, OpDelete, outcomes[0].Operation.Kind)

	assert.Empty(t, s.Removed())
	assert.Empty(t, s.Plan(0))
}

func TestSetPlanUsesNewIssueID(t *testing.T) {
	s := NewSet()
	s.AddTarget(model.RelationRelates, 20)

	ops := s.Plan(1001)
	require.Len(t, ops, 1)
	assert.Equal(t, 1001, ops[0].Relation.IssueID)
	assert.Equal(t, 1001, s.IssueID())
}

func TestSetEditErrors(t *testing.T) {
	s := NewSet()
	key := s.Add()
	assert.Error(t, s.Edit("missing", model.RelationRelates, 1, nil))
	assert.Error(t, s.Edit(key, "sideways", 1, nil))
	assert.False(t, s.Remove("missing"))
}
