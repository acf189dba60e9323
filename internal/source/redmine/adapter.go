package redmine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/source"
)

// Adapter implements source.Tracker for Redmine.
type Adapter struct {
	client *Client
}

var _ source.Tracker = (*Adapter)(nil)

// NewAdapter creates a new Redmine tracker adapter.
func NewAdapter(baseURL, apiKey string, opts ...Option) *Adapter {
	return &Adapter{client: NewClient(baseURL, apiKey, opts...)}
}

// Client exposes the underlying HTTP client.
func (a *Adapter) Client() *Client {
	return a.client
}

// ValidateConnection verifies the API key by calling GET /users/current.json.
func (a *Adapter) ValidateConnection(ctx context.Context) (*CurrentUser, error) {
	var resp currentUserResponse
	if err := a.client.Get(ctx, "/users/current.json", nil, &resp); err != nil {
		return nil, fmt.Errorf("validating Redmine connection: %w", err)
	}
	return &resp.User, nil
}

// Projects returns every visible project with FullName resolved.
func (a *Adapter) Projects(ctx context.Context) ([]model.Project, error) {
	projects, err := fetchAll[model.Project](ctx, a.client, "/projects.json", "projects", listOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching projects: %w", err)
	}
	model.ResolveProjectNames(projects)
	return projects, nil
}

// Trackers returns the trackers enabled for a project.
func (a *Adapter) Trackers(ctx context.Context, projectID int) ([]model.Tracker, error) {
	var resp projectResponse
	path := fmt.Sprintf("/projects/%d.json", projectID)
	if err := a.client.Get(ctx, path, includeOptions{Include: "trackers"}, &resp); err != nil {
		return nil, fmt.Errorf("fetching trackers of project %d: %w", projectID, err)
	}
	return resp.Project.Trackers, nil
}

// Statuses returns every issue status.
func (a *Adapter) Statuses(ctx context.Context) ([]model.Status, error) {
	var resp statusesResponse
	if err := a.client.Get(ctx, "/issue_statuses.json", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching statuses: %w", err)
	}
	return resp.IssueStatuses, nil
}

// Versions returns the versions available to a project.
func (a *Adapter) Versions(ctx context.Context, projectID int) ([]model.Version, error) {
	path := fmt.Sprintf("/projects/%d/versions.json", projectID)
	versions, err := fetchAll[model.Version](ctx, a.client, path, "versions", listOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching versions of project %d: %w", projectID, err)
	}
	return versions, nil
}

// Members returns the memberships of a project.
func (a *Adapter) Members(ctx context.Context, projectID int) ([]model.Member, error) {
	path := fmt.Sprintf("/projects/%d/memberships.json", projectID)
	members, err := fetchAll[model.Member](ctx, a.client, path, "memberships", listOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching members of project %d: %w", projectID, err)
	}
	return members, nil
}

// CustomFields returns every custom field definition. Requires an
// administrator key.
func (a *Adapter) CustomFields(ctx context.Context) ([]model.CustomFieldDefinition, error) {
	var resp customFieldsResponse
	if err := a.client.Get(ctx, "/custom_fields.json", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching custom fields: %w", err)
	}
	return resp.CustomFields, nil
}

// Issue fetches an issue with its relations.
func (a *Adapter) Issue(ctx context.Context, id int) (*model.Issue, error) {
	var resp issueResponse
	path := fmt.Sprintf("/issues/%d.json", id)
	if err := a.client.Get(ctx, path, includeOptions{Include: "relations"}, &resp); err != nil {
		return nil, fmt.Errorf("fetching issue %d: %w", id, err)
	}
	return &resp.Issue, nil
}

// CreateIssue creates an issue and returns it as stored.
func (a *Adapter) CreateIssue(ctx context.Context, params model.IssueParams) (*model.Issue, error) {
	var resp issueResponse
	if err := a.client.Post(ctx, "/issues.json", issueRequest{Issue: params}, &resp); err != nil {
		return nil, fmt.Errorf("creating issue: %w", err)
	}
	return &resp.Issue, nil
}

// UpdateIssue updates an existing issue.
func (a *Adapter) UpdateIssue(ctx context.Context, id int, params model.IssueParams) error {
	path := fmt.Sprintf("/issues/%d.json", id)
	if err := a.client.Put(ctx, path, issueRequest{Issue: params}); err != nil {
		return fmt.Errorf("updating issue %d: %w", id, err)
	}
	return nil
}

// SaveRelation creates rel on rel.IssueID. Redmine cannot modify a
// relation in place, so a relation with an ID is deleted and recreated.
func (a *Adapter) SaveRelation(ctx context.Context, rel model.Relation) (*model.Relation, error) {
	if rel.ID != 0 {
		if err := a.DeleteRelation(ctx, rel.ID); err != nil && !source.IsNotFound(err) {
			return nil, err
		}
	}

	req := relationRequest{Relation: relationPayload{
		IssueToID:    rel.IssueToID,
		RelationType: rel.Type,
		Delay:        rel.EffectiveDelay(),
	}}
	var resp relationResponse
	path := fmt.Sprintf("/issues/%d/relations.json", rel.IssueID)
	if err := a.client.Post(ctx, path, req, &resp); err != nil {
		return nil, fmt.Errorf("saving relation %s #%d -> #%d: %w",
			rel.Type, rel.IssueID, rel.IssueToID, err)
	}
	return &resp.Relation, nil
}

// DeleteRelation removes a relation.
func (a *Adapter) DeleteRelation(ctx context.Context, id int) error {
	path := fmt.Sprintf("/relations/%d.json", id)
	if err := a.client.Delete(ctx, path); err != nil {
		return fmt.Errorf("deleting relation %d: %w", id, err)
	}
	return nil
}

// Upload stores an attachment and returns its token.
func (a *Adapter) Upload(
	ctx context.Context,
	filename string,
	contentType string,
	data []byte,
) (*model.Upload, error) {
	var resp uploadResponse
	path, err := withQuery("/uploads.json", uploadOptions{Filename: filename})
	if err != nil {
		return nil, err
	}
	if err := a.client.PostBinary(ctx, path, data, &resp); err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filename, err)
	}
	return &model.Upload{
		Token:       resp.Upload.Token,
		Filename:    filename,
		ContentType: contentType,
	}, nil
}

// fetchAll walks a paginated list endpoint, decoding the array found
// under key on every page.
func fetchAll[T any](
	ctx context.Context,
	c *Client,
	path string,
	key string,
	opts listOptions,
) ([]T, error) {
	var all []T
	opts.Limit = pageSize
	for {
		var page map[string]json.RawMessage
		if err := c.Get(ctx, path, opts, &page); err != nil {
			return nil, err
		}

		var items []T
		if raw, ok := page[key]; ok {
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", key, err)
			}
		}
		all = append(all, items...)

		total := len(all)
		if raw, ok := page["total_count"]; ok {
			if err := json.Unmarshal(raw, &total); err != nil {
				return nil, fmt.Errorf("decoding total_count: %w", err)
			}
		}
		if len(items) == 0 || len(all) >= total {
			return all, nil
		}
		opts.Offset = len(all)
	}
}
