package model

// Draft is the in-progress issue payload edited before submission.
// Nullable integer attributes are nil until chosen.
type Draft struct {
	// ID is the issue being edited; zero while creating a new issue.
	ID int `json:"id,omitempty" yaml:"id,omitempty"`

	ProjectID      *int   `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	TrackerID      *int   `json:"tracker_id,omitempty" yaml:"tracker_id,omitempty"`
	Subject        string `json:"subject" yaml:"subject"`
	Description    string `json:"description" yaml:"description"`
	Notes          string `json:"notes,omitempty" yaml:"notes,omitempty"`
	StatusID       *int   `json:"status_id,omitempty" yaml:"status_id,omitempty"`
	AssignedToID   *int   `json:"assigned_to_id,omitempty" yaml:"assigned_to_id,omitempty"`
	FixedVersionID *int   `json:"fixed_version_id,omitempty" yaml:"fixed_version_id,omitempty"`

	// WatcherUserIDs has set semantics; order is irrelevant.
	WatcherUserIDs []int `json:"watcher_user_ids,omitempty" yaml:"watcher_user_ids,omitempty"`

	// StartDate and DueDate are YYYY-MM-DD or empty. Whether they are
	// submitted is decided by the form's enable toggles.
	StartDate string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	DueDate   string `json:"due_date,omitempty" yaml:"due_date,omitempty"`

	ParentIssueID *int `json:"parent_issue_id,omitempty" yaml:"parent_issue_id,omitempty"`

	CustomFields []CustomFieldValue `json:"custom_fields,omitempty" yaml:"custom_fields,omitempty"`
	Relations    []Relation         `json:"relations,omitempty" yaml:"relations,omitempty"`
	Files        []Upload           `json:"files,omitempty" yaml:"files,omitempty"`
}

// HasWatcher reports whether userID is in the watcher set.
func (d *Draft) HasWatcher(userID int) bool {
	for _, id := range d.WatcherUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CustomField returns the draft entry for a custom field id, or nil.
func (d *Draft) CustomField(id int) *CustomFieldValue {
	for i := range d.CustomFields {
		if d.CustomFields[i].ID == id {
			return &d.CustomFields[i]
		}
	}
	return nil
}

// SetCustomField replaces or appends the entry for v.ID.
func (d *Draft) SetCustomField(v CustomFieldValue) {
	if cur := d.CustomField(v.ID); cur != nil {
		*cur = v
		return
	}
	d.CustomFields = append(d.CustomFields, v)
}

// RemoveCustomField drops the entry for id, if any.
func (d *Draft) RemoveCustomField(id int) {
	for i := range d.CustomFields {
		if d.CustomFields[i].ID == id {
			d.CustomFields = append(d.CustomFields[:i], d.CustomFields[i+1:]...)
			return
		}
	}
}

// Upload is a pending or uploaded attachment reference.
type Upload struct {
	Token       string `json:"token,omitempty" yaml:"token,omitempty"`
	Filename    string `json:"filename" yaml:"filename"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Data holds the attachment content until it is uploaded.
	Data []byte `json:"-" yaml:"-"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }
