package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nhle/mailissue/internal/model"
)

// AuthError indicates that authentication has failed for the tracker.
// It is returned by tracker clients when a 401 response is received.
type AuthError struct {
	URL     string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.URL, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// APIError is a non-2xx response from the tracker. Messages holds the
// validation errors reported by the server, if any.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Messages   []string
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("api error (%d) on %s %s: %s",
			e.StatusCode, e.Method, e.Path, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.Path, e.Body)
}

// IsNotFound reports whether err carries a 404 APIError.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsValidation reports whether err carries a 422 APIError.
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity
}

// ReferenceSource fetches the lookup data needed to render an issue form.
type ReferenceSource interface {
	// Projects returns every project visible to the user.
	Projects(ctx context.Context) ([]model.Project, error)

	// Trackers returns the trackers enabled for a project.
	Trackers(ctx context.Context, projectID int) ([]model.Tracker, error)

	// Statuses returns the global issue statuses.
	Statuses(ctx context.Context) ([]model.Status, error)

	// Versions returns the versions shared with a project.
	Versions(ctx context.Context, projectID int) ([]model.Version, error)

	// Members returns the memberships of a project.
	Members(ctx context.Context, projectID int) ([]model.Member, error)

	// CustomFields returns every custom field definition. Most servers
	// restrict this to administrators.
	CustomFields(ctx context.Context) ([]model.CustomFieldDefinition, error)
}

// RelationWriter persists issue relations.
type RelationWriter interface {
	// SaveRelation creates the relation, or replaces it when ID is set.
	SaveRelation(ctx context.Context, rel model.Relation) (*model.Relation, error)

	// DeleteRelation removes the relation with the given id.
	DeleteRelation(ctx context.Context, id int) error
}

// Tracker is the contract of the remote issue tracker.
type Tracker interface {
	ReferenceSource
	RelationWriter

	// Issue fetches an issue with its relations and custom field values.
	Issue(ctx context.Context, id int) (*model.Issue, error)

	// CreateIssue creates an issue and returns it as stored.
	CreateIssue(ctx context.Context, params model.IssueParams) (*model.Issue, error)

	// UpdateIssue updates an existing issue.
	UpdateIssue(ctx context.Context, id int, params model.IssueParams) error

	// Upload stores an attachment and returns a token for IssueParams.Uploads.
	Upload(ctx context.Context, filename, contentType string, data []byte) (*model.Upload, error)
}
