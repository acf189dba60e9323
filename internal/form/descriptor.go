package form

import "github.com/nhle/mailissue/internal/model"

// FieldID names a draft attribute bound to one or more controls.
type FieldID string

const (
	FieldProject      FieldID = "project_id"
	FieldTracker      FieldID = "tracker_id"
	FieldSubject      FieldID = "subject"
	FieldDescription  FieldID = "description"
	FieldNotes        FieldID = "notes"
	FieldStatus       FieldID = "status_id"
	FieldAssignee     FieldID = "assigned_to_id"
	FieldVersion      FieldID = "fixed_version_id"
	FieldWatchers     FieldID = "watcher_user_ids"
	FieldStartDate    FieldID = "start_date"
	FieldDueDate      FieldID = "due_date"
	FieldParent       FieldID = "parent_issue_id"
	FieldCustomFields FieldID = "custom_fields"
)

// ValueType is how a control's raw value is parsed.
type ValueType int

const (
	TypeString ValueType = iota
	TypeInteger
	TypeBoolean
)

func (t ValueType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Descriptor binds a control to a draft attribute. Array descriptors
// are shared by every checkbox of a group; CustomFieldID is set for
// controls holding one custom_fields entry.
type Descriptor struct {
	Field         FieldID
	Type          ValueType
	Array         bool
	CustomFieldID int
}

// Param returns the request parameter name, suffixed with [] for
// array-valued attributes.
func (d Descriptor) Param() string {
	if d.Array {
		return string(d.Field) + "[]"
	}
	return string(d.Field)
}

// binding is a registry entry: the descriptor of a standard field, the
// control it renders as, and its accessors into the draft and the
// outbound params. Exactly one of str, num and set is non-nil.
type binding struct {
	desc     Descriptor
	kind     Kind
	hasEmpty bool
	disabled bool

	str func(*model.Draft) *string
	num func(*model.Draft) **int
	set func(*model.Draft) *[]int

	outStr func(*model.IssueParams) **string
	outNum func(*model.IssueParams) **int
	outSet func(*model.IssueParams) *[]int
}

type registry map[FieldID]*binding

// newRegistry declares every standard field once.
func newRegistry() registry {
	r := registry{}
	add := func(b *binding) { r[b.desc.Field] = b }

	str := func(f FieldID, kind Kind, get func(*model.Draft) *string, out func(*model.IssueParams) **string) *binding {
		return &binding{desc: Descriptor{Field: f, Type: TypeString}, kind: kind, str: get, outStr: out}
	}
	num := func(f FieldID, kind Kind, hasEmpty bool, get func(*model.Draft) **int, out func(*model.IssueParams) **int) *binding {
		return &binding{desc: Descriptor{Field: f, Type: TypeInteger}, kind: kind, hasEmpty: hasEmpty, num: get, outNum: out}
	}

	add(num(FieldProject, KindSelect, false,
		func(d *model.Draft) **int { return &d.ProjectID },
		func(p *model.IssueParams) **int { return &p.ProjectID }))
	add(num(FieldTracker, KindSelect, false,
		func(d *model.Draft) **int { return &d.TrackerID },
		func(p *model.IssueParams) **int { return &p.TrackerID }))
	add(str(FieldSubject, KindText,
		func(d *model.Draft) *string { return &d.Subject },
		func(p *model.IssueParams) **string { return &p.Subject }))
	add(str(FieldDescription, KindTextarea,
		func(d *model.Draft) *string { return &d.Description },
		func(p *model.IssueParams) **string { return &p.Description }))
	add(str(FieldNotes, KindTextarea,
		func(d *model.Draft) *string { return &d.Notes },
		func(p *model.IssueParams) **string { return &p.Notes }))
	add(num(FieldStatus, KindSelect, false,
		func(d *model.Draft) **int { return &d.StatusID },
		func(p *model.IssueParams) **int { return &p.StatusID }))
	add(num(FieldAssignee, KindSelect, true,
		func(d *model.Draft) **int { return &d.AssignedToID },
		func(p *model.IssueParams) **int { return &p.AssignedToID }))
	add(num(FieldVersion, KindSelect, true,
		func(d *model.Draft) **int { return &d.FixedVersionID },
		func(p *model.IssueParams) **int { return &p.FixedVersionID }))
	add(&binding{
		desc: Descriptor{Field: FieldWatchers, Type: TypeInteger, Array: true},
		kind: KindCheckbox,
		set:  func(d *model.Draft) *[]int { return &d.WatcherUserIDs },
		outSet: func(p *model.IssueParams) *[]int {
			return &p.WatcherUserIDs
		},
	})

	start := str(FieldStartDate, KindDate,
		func(d *model.Draft) *string { return &d.StartDate },
		func(p *model.IssueParams) **string { return &p.StartDate })
	start.disabled = true
	add(start)
	due := str(FieldDueDate, KindDate,
		func(d *model.Draft) *string { return &d.DueDate },
		func(p *model.IssueParams) **string { return &p.DueDate })
	due.disabled = true
	add(due)

	add(num(FieldParent, KindNumber, false,
		func(d *model.Draft) **int { return &d.ParentIssueID },
		func(p *model.IssueParams) **int { return &p.ParentIssueID }))

	return r
}

// Layout selects the standard fields a form renders, in display order.
type Layout []FieldID

var (
	// CreateLayout is used when creating an issue from a message.
	CreateLayout = Layout{
		FieldProject, FieldTracker, FieldSubject, FieldDescription,
		FieldStatus, FieldAssignee, FieldWatchers, FieldVersion,
		FieldStartDate, FieldDueDate, FieldParent,
	}

	// UpdateLayout is used when adding a message to an existing issue.
	UpdateLayout = Layout{
		FieldDescription, FieldNotes, FieldStatus, FieldAssignee,
		FieldVersion, FieldStartDate, FieldDueDate, FieldParent,
	}
)

// VisibilityGroups maps the keys of the field visibility settings to the
// fields they show or hide.
var VisibilityGroups = map[string][]FieldID{
	"project":     {FieldProject},
	"tracker":     {FieldTracker},
	"subject":     {FieldSubject},
	"description": {FieldDescription},
	"notes":       {FieldNotes},
	"status":      {FieldStatus},
	"assigned":    {FieldAssignee},
	"watcher":     {FieldWatchers},
	"version":     {FieldVersion},
	"period":      {FieldStartDate, FieldDueDate},
	"other":       {FieldParent},
}
