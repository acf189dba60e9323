package redmine

import "github.com/nhle/mailissue/internal/model"

// pageSize is the page size requested from list endpoints; 100 is the
// server-side maximum.
const pageSize = 100

// listOptions are the query parameters shared by list endpoints.
type listOptions struct {
	Limit   int    `url:"limit,omitempty"`
	Offset  int    `url:"offset,omitempty"`
	Include string `url:"include,omitempty"`
}

// includeOptions requests associated data on a single resource.
type includeOptions struct {
	Include string `url:"include,omitempty"`
}

// uploadOptions names the file being uploaded.
type uploadOptions struct {
	Filename string `url:"filename,omitempty"`
}

// errorResponse is the body of a 422 response.
type errorResponse struct {
	Errors []string `json:"errors"`
}

// CurrentUser is the account the API key belongs to.
type CurrentUser struct {
	ID        int    `json:"id"`
	Login     string `json:"login"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Mail      string `json:"mail"`
}

type currentUserResponse struct {
	User CurrentUser `json:"user"`
}

type projectResponse struct {
	Project struct {
		ID       int             `json:"id"`
		Trackers []model.Tracker `json:"trackers"`
	} `json:"project"`
}

type statusesResponse struct {
	IssueStatuses []model.Status `json:"issue_statuses"`
}

type customFieldsResponse struct {
	CustomFields []model.CustomFieldDefinition `json:"custom_fields"`
}

type issueRequest struct {
	Issue model.IssueParams `json:"issue"`
}

type issueResponse struct {
	Issue model.Issue `json:"issue"`
}

type relationPayload struct {
	IssueToID    int                `json:"issue_to_id"`
	RelationType model.RelationType `json:"relation_type"`
	Delay        *int               `json:"delay,omitempty"`
}

type relationRequest struct {
	Relation relationPayload `json:"relation"`
}

type relationResponse struct {
	Relation model.Relation `json:"relation"`
}

type uploadResponse struct {
	Upload struct {
		ID    int    `json:"id"`
		Token string `json:"token"`
	} `json:"upload"`
}
