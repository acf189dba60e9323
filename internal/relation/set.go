package relation

import (
	"context"
	"fmt"
	"slices"

	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/source"
)

// Set is the working set of relation rows of one issue together with
// the ids of loaded rows that were removed. It is not safe for
// concurrent use.
type Set struct {
	issueID int
	rows    []*Row
	removed []int
	seq     int
}

// NewSet returns an empty set for a new issue.
func NewSet() *Set {
	return &Set{}
}

// IssueID returns the owning issue, zero before the issue exists.
func (s *Set) IssueID() int {
	return s.issueID
}

// Reinit replaces every row with the relations of issueID and takes them
// as the new snapshot. Relations pointing at issueID are shown from its
// side, with the type inverted.
func (s *Set) Reinit(issueID int, relations []model.Relation) {
	s.issueID = issueID
	s.rows = nil
	s.removed = nil

	for _, rel := range relations {
		if rel.IssueToID == issueID && rel.IssueID != issueID {
			rel = model.Relation{
				ID:        rel.ID,
				IssueID:   issueID,
				IssueToID: rel.IssueID,
				Type:      rel.Type.Inverse(),
				Delay:     rel.Delay,
			}
		}
		original := rel
		row := s.newRow()
		row.ID = rel.ID
		row.Type = rel.Type
		row.Target = rel.IssueToID
		row.Delay = rel.Delay
		row.Original = &original
		s.rows = append(s.rows, row)
	}
}

func (s *Set) newRow() *Row {
	s.seq++
	return &Row{Key: fmt.Sprintf("relation-%d", s.seq), Type: model.RelationRelates}
}

// Add appends an empty relates row and returns its key.
func (s *Set) Add() string {
	row := s.newRow()
	s.rows = append(s.rows, row)
	return row.Key
}

// AddTarget appends a row of type t pointing at target and returns its key.
func (s *Set) AddTarget(t model.RelationType, target int) string {
	row := s.newRow()
	row.Type = t
	row.Target = target
	s.rows = append(s.rows, row)
	return row.Key
}

// Row returns a copy of the row with the given key.
func (s *Set) Row(key string) (Row, bool) {
	if r := s.find(key); r != nil {
		return *r, true
	}
	return Row{}, false
}

func (s *Set) find(key string) *Row {
	for _, r := range s.rows {
		if r.Key == key {
			return r
		}
	}
	return nil
}

// Edit sets the editable fields of a row. A zero target clears it.
func (s *Set) Edit(key string, t model.RelationType, target int, delay *int) error {
	r := s.find(key)
	if r == nil {
		return fmt.Errorf("unknown relation row %q", key)
	}
	if _, ok := model.ParseRelationType(string(t)); !ok {
		return fmt.Errorf("unknown relation type %q", t)
	}
	r.Type = t
	r.Target = target
	r.Delay = delay
	return nil
}

// SetInvalid flags a row as failing validation.
func (s *Set) SetInvalid(key string, invalid bool) {
	if r := s.find(key); r != nil {
		r.Invalid = invalid
	}
}

// Remove drops a row. The relation it was loaded from, if any, is
// scheduled for deletion.
func (s *Set) Remove(key string) bool {
	i := slices.IndexFunc(s.rows, func(r *Row) bool { return r.Key == key })
	if i < 0 {
		return false
	}
	if id := s.rows[i].ID; id != 0 && !slices.Contains(s.removed, id) {
		s.removed = append(s.removed, id)
	}
	s.rows = slices.Delete(s.rows, i, i+1)
	return true
}

// Rows returns copies of the rows in order.
func (s *Set) Rows() []Row {
	out := make([]Row, len(s.rows))
	for i, r := range s.rows {
		out[i] = *r
	}
	return out
}

// Removed returns the ids scheduled for deletion.
func (s *Set) Removed() []int {
	return slices.Clone(s.removed)
}

// Plan computes the operations of a save on issueID. A zero issueID
// keeps the current owner.
func (s *Set) Plan(issueID int) []Operation {
	if issueID != 0 {
		s.issueID = issueID
	}
	return Reconcile(s.issueID, s.Rows(), s.removed)
}

// Apply folds settled outcomes back into the set. Successful writes
// become the new snapshot of their row; a cleared row that was deleted
// becomes a new row. Removed ids are forgotten once their delete was
// attempted, whatever its outcome. Failed writes of rows leave the row
// untouched so a later save retries them.
func (s *Set) Apply(outcomes []Outcome) {
	for _, o := range outcomes {
		op := o.Operation
		if op.RowKey == "" {
			s.removed = slices.DeleteFunc(s.removed, func(id int) bool { return id == op.Relation.ID })
			continue
		}
		if o.Err != nil {
			continue
		}
		r := s.find(op.RowKey)
		if r == nil {
			continue
		}
		if op.Kind == OpDelete {
			r.ID = 0
			r.Original = nil
			continue
		}
		saved := op.Relation
		if o.Saved != nil {
			saved.ID = o.Saved.ID
		}
		r.ID = saved.ID
		r.Original = &saved
	}
}

// Save plans, executes and applies a save on issueID.
func (s *Set) Save(ctx context.Context, w source.RelationWriter, issueID int) []Outcome {
	outcomes := Execute(ctx, w, s.Plan(issueID))
	s.Apply(outcomes)
	return outcomes
}
