package model

// RelationType is the semantics of a directed link between two issues.
type RelationType string

const (
	RelationRelates    RelationType = "relates"
	RelationDuplicates RelationType = "duplicates"
	RelationDuplicated RelationType = "duplicated"
	RelationBlocks     RelationType = "blocks"
	RelationBlocked    RelationType = "blocked"
	RelationPrecedes   RelationType = "precedes"
	RelationFollows    RelationType = "follows"
	RelationCopiedTo   RelationType = "copied_to"
	RelationCopiedFrom RelationType = "copied_from"
)

// RelationTypes lists every relation type in display order.
var RelationTypes = []RelationType{
	RelationRelates,
	RelationDuplicates,
	RelationDuplicated,
	RelationBlocks,
	RelationBlocked,
	RelationPrecedes,
	RelationFollows,
	RelationCopiedTo,
	RelationCopiedFrom,
}

// ParseRelationType returns the relation type named s.
func ParseRelationType(s string) (RelationType, bool) {
	for _, t := range RelationTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// HasDelay reports whether a delay is meaningful for the type.
func (t RelationType) HasDelay() bool {
	return t == RelationPrecedes || t == RelationFollows
}

// Relation links IssueID to IssueToID. ID is set only once the relation
// exists remotely.
type Relation struct {
	ID        int          `json:"id,omitempty" yaml:"id,omitempty"`
	IssueID   int          `json:"issue_id" yaml:"issue_id"`
	IssueToID int          `json:"issue_to_id" yaml:"issue_to_id"`
	Type      RelationType `json:"relation_type" yaml:"relation_type"`
	Delay     *int         `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// EffectiveDelay returns the delay when the type uses one, else nil.
func (r Relation) EffectiveDelay() *int {
	if !r.Type.HasDelay() {
		return nil
	}
	return r.Delay
}

// Inverse returns the type as seen from the other end of the relation.
func (t RelationType) Inverse() RelationType {
	switch t {
	case RelationDuplicates:
		return RelationDuplicated
	case RelationDuplicated:
		return RelationDuplicates
	case RelationBlocks:
		return RelationBlocked
	case RelationBlocked:
		return RelationBlocks
	case RelationPrecedes:
		return RelationFollows
	case RelationFollows:
		return RelationPrecedes
	case RelationCopiedTo:
		return RelationCopiedFrom
	case RelationCopiedFrom:
		return RelationCopiedTo
	default:
		return t
	}
}
