package model

// IssueRef points at another issue; Subject may be empty.
type IssueRef struct {
	ID      int    `json:"id"`
	Subject string `json:"subject,omitempty"`
}

// Issue is a remote issue as returned by the tracker.
type Issue struct {
	ID           int                `json:"id"`
	Project      *Ref               `json:"project,omitempty"`
	Tracker      *Ref               `json:"tracker,omitempty"`
	Status       *Ref               `json:"status,omitempty"`
	AssignedTo   *Ref               `json:"assigned_to,omitempty"`
	FixedVersion *Ref               `json:"fixed_version,omitempty"`
	Parent       *IssueRef          `json:"parent,omitempty"`
	Subject      string             `json:"subject"`
	Description  string             `json:"description"`
	StartDate    string             `json:"start_date,omitempty"`
	DueDate      string             `json:"due_date,omitempty"`
	CustomFields []CustomFieldValue `json:"custom_fields,omitempty"`
	Relations    []Relation         `json:"relations,omitempty"`
}

// IssueParams is the outbound create/update payload. Nil pointers and
// empty slices are omitted from the request.
type IssueParams struct {
	ProjectID      *int               `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	TrackerID      *int               `json:"tracker_id,omitempty" yaml:"tracker_id,omitempty"`
	StatusID       *int               `json:"status_id,omitempty" yaml:"status_id,omitempty"`
	Subject        *string            `json:"subject,omitempty" yaml:"subject,omitempty"`
	Description    *string            `json:"description,omitempty" yaml:"description,omitempty"`
	Notes          *string            `json:"notes,omitempty" yaml:"notes,omitempty"`
	AssignedToID   *int               `json:"assigned_to_id,omitempty" yaml:"assigned_to_id,omitempty"`
	FixedVersionID *int               `json:"fixed_version_id,omitempty" yaml:"fixed_version_id,omitempty"`
	ParentIssueID  *int               `json:"parent_issue_id,omitempty" yaml:"parent_issue_id,omitempty"`
	WatcherUserIDs []int              `json:"watcher_user_ids,omitempty" yaml:"watcher_user_ids,omitempty"`
	StartDate      *string            `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	DueDate        *string            `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	CustomFields   []CustomFieldValue `json:"custom_fields,omitempty" yaml:"custom_fields,omitempty"`
	Uploads        []Upload           `json:"uploads,omitempty" yaml:"uploads,omitempty"`
}
