// Package relation tracks the relations of an issue being edited and
// reconciles them with the tracker using as few writes as possible.
package relation

import (
	"context"

	"github.com/sourcegraph/conc/iter"

	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/source"
)

// Row is one editable relation line. ID is the remote relation id the
// row was loaded from, zero for rows added in this session. Target zero
// means the target field is empty.
type Row struct {
	Key     string
	ID      int
	Type    model.RelationType
	Target  int
	Delay   *int
	Invalid bool

	// Original is the snapshot taken when the row was loaded.
	Original *model.Relation
}

// Candidate builds the relation the row currently describes.
func (r Row) Candidate(issueID int) model.Relation {
	return model.Relation{
		ID:        r.ID,
		IssueID:   issueID,
		IssueToID: r.Target,
		Type:      r.Type,
		Delay:     r.Delay,
	}
}

// OpKind is the kind of a reconciliation write.
type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Operation is one write against the tracker. RowKey is empty for
// deletes of removed rows.
type Operation struct {
	Kind     OpKind
	Relation model.Relation
	RowKey   string
}

// Outcome is the settled result of one operation. Saved is the relation
// as stored by the tracker after a successful create or update.
type Outcome struct {
	Operation Operation
	Saved     *model.Relation
	Err       error
}

// Reconcile computes the writes that bring the tracker in line with
// rows. removed holds the ids of loaded rows the user deleted; each is
// deleted once, see Set.Apply.
//
// A loaded row is rewritten only when its type, target or delay differ
// from its snapshot; a loaded row whose target was cleared is deleted.
// New rows are created when they have a target and skipped otherwise.
func Reconcile(issueID int, rows []Row, removed []int) []Operation {
	var ops []Operation
	for _, id := range removed {
		ops = append(ops, Operation{
			Kind:     OpDelete,
			Relation: model.Relation{ID: id, IssueID: issueID},
		})
	}

	for _, row := range rows {
		rel := row.Candidate(issueID)
		switch {
		case row.ID == 0 && row.Target == 0:
			continue
		case row.ID == 0:
			ops = append(ops, Operation{Kind: OpCreate, Relation: rel, RowKey: row.Key})
		case row.Target == 0:
			ops = append(ops, Operation{Kind: OpDelete, Relation: rel, RowKey: row.Key})
		case row.Original != nil && sameRelation(rel, *row.Original):
			continue
		default:
			ops = append(ops, Operation{Kind: OpUpdate, Relation: rel, RowKey: row.Key})
		}
	}
	return ops
}

// sameRelation compares the user-editable attributes. Delay only counts
// for types that use one, with a missing delay equal to zero.
func sameRelation(a, b model.Relation) bool {
	if a.Type != b.Type || a.IssueToID != b.IssueToID {
		return false
	}
	if !a.Type.HasDelay() {
		return true
	}
	return delayValue(a.Delay) == delayValue(b.Delay)
}

func delayValue(d *int) int {
	if d == nil {
		return 0
	}
	return *d
}

// Execute issues every operation concurrently and waits for all of them
// to settle. Outcomes are returned in operation order; a failure does
// not affect the other operations.
func Execute(ctx context.Context, w source.RelationWriter, ops []Operation) []Outcome {
	return iter.Map(ops, func(op *Operation) Outcome {
		out := Outcome{Operation: *op}
		switch op.Kind {
		case OpDelete:
			out.Err = w.DeleteRelation(ctx, op.Relation.ID)
		default:
			out.Saved, out.Err = w.SaveRelation(ctx, op.Relation)
		}
		return out
	})
}

// Failed returns the outcomes that carry an error.
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
