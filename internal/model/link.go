package model

import "time"

// IssueLink records that an issue was created from a mail message.
type IssueLink struct {
	ID        string    `json:"id" db:"id" yaml:"id"`
	MessageID string    `json:"message_id" db:"message_id" yaml:"message_id"`
	IssueID   int       `json:"issue_id" db:"issue_id" yaml:"issue_id"`
	ProjectID int       `json:"project_id" db:"project_id" yaml:"project_id"`
	Subject   string    `json:"subject" db:"subject" yaml:"subject"`
	CreatedAt time.Time `json:"created_at" db:"created_at" yaml:"created_at"`
}
