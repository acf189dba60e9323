package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/source"
	"github.com/nhle/mailissue/internal/source/redmine"
)

// FakeTracker is an in-memory source.Tracker. Fields may be set before
// use; recorded calls are read through the accessor methods.
type FakeTracker struct {
	ProjectList       []model.Project
	TrackersByProject map[int][]model.Tracker
	StatusList        []model.Status
	VersionsByProject map[int][]model.Version
	MembersByProject  map[int][]model.Member
	CustomFieldList   []model.CustomFieldDefinition
	Issues            map[int]*model.Issue

	// User is returned by ValidateConnection.
	User redmine.CurrentUser

	// Errors makes the named method fail, e.g. "Trackers".
	Errors map[string]error

	// RelationErrors makes SaveRelation fail for the given target id.
	RelationErrors map[int]error

	mu               sync.Mutex
	gates            map[int]chan struct{}
	calls            []string
	created          []model.IssueParams
	updated          map[int]model.IssueParams
	savedRelations   []model.Relation
	deletedRelations []int
	uploads          []string
	nextIssueID      int
	nextRelationID   int
}

var _ source.Tracker = (*FakeTracker)(nil)

// NewFakeTracker returns a tracker with two projects:
//
//	project 1: trackers 1 (Bug), 3 (Support); version 10; users 100, 101
//	project 2: trackers 1 (Bug), 2 (Feature); version 20; user 100 and a group
func NewFakeTracker() *FakeTracker {
	return &FakeTracker{
		ProjectList: []model.Project{
			{ID: 1, Name: "Ops", Identifier: "ops"},
			{ID: 2, Name: "Web", Identifier: "web", Parent: &model.Ref{ID: 1, Name: "Ops"}},
		},
		TrackersByProject: map[int][]model.Tracker{
			1: {{ID: 1, Name: "Bug"}, {ID: 3, Name: "Support"}},
			2: {{ID: 1, Name: "Bug"}, {ID: 2, Name: "Feature"}},
		},
		StatusList: []model.Status{
			{ID: 1, Name: "New"},
			{ID: 2, Name: "In Progress"},
			{ID: 5, Name: "Closed", IsClosed: true},
		},
		VersionsByProject: map[int][]model.Version{
			1: {{ID: 10, Name: "1.0", Status: "open"}},
			2: {{ID: 20, Name: "2.0", Status: "open"}},
		},
		MembersByProject: map[int][]model.Member{
			1: {
				{ID: 1, User: &model.Ref{ID: 100, Name: "Alice"}},
				{ID: 2, User: &model.Ref{ID: 101, Name: "Bob"}},
			},
			2: {
				{ID: 3, User: &model.Ref{ID: 100, Name: "Alice"}},
				{ID: 4, Group: &model.Ref{ID: 500, Name: "Admins"}},
			},
		},
		Issues:         map[int]*model.Issue{},
		User:           redmine.CurrentUser{ID: 100, Login: "alice", Firstname: "Alice"},
		Errors:         map[string]error{},
		RelationErrors: map[int]error{},
		updated:        map[int]model.IssueParams{},
		nextIssueID:    1000,
		nextRelationID: 5000,
	}
}

// Block makes Trackers calls for projectID wait until the returned
// release function is called.
func (f *FakeTracker) Block(projectID int) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = map[int]chan struct{}{}
	}
	ch := make(chan struct{})
	f.gates[projectID] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (f *FakeTracker) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *FakeTracker) fail(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Errors[method]
}

// Calls returns every recorded call in order.
func (f *FakeTracker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Created returns the params of every CreateIssue call.
func (f *FakeTracker) Created() []model.IssueParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.IssueParams(nil), f.created...)
}

// Updated returns the params of the last UpdateIssue call for id.
func (f *FakeTracker) Updated(id int) (model.IssueParams, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.updated[id]
	return p, ok
}

// SavedRelations returns saved relations sorted by target id.
func (f *FakeTracker) SavedRelations() []model.Relation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]model.Relation(nil), f.savedRelations...)
	sort.Slice(out, func(i, j int) bool { return out[i].IssueToID < out[j].IssueToID })
	return out
}

// DeletedRelations returns deleted relation ids in ascending order.
func (f *FakeTracker) DeletedRelations() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]int(nil), f.deletedRelations...)
	sort.Ints(out)
	return out
}

// Uploads returns uploaded file names in call order.
func (f *FakeTracker) Uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

func (f *FakeTracker) Projects(ctx context.Context) ([]model.Project, error) {
	f.record("Projects")
	if err := f.fail("Projects"); err != nil {
		return nil, err
	}
	projects := append([]model.Project(nil), f.ProjectList...)
	model.ResolveProjectNames(projects)
	return projects, nil
}

func (f *FakeTracker) Trackers(ctx context.Context, projectID int) ([]model.Tracker, error) {
	f.record("Trackers(%d)", projectID)

	f.mu.Lock()
	gate := f.gates[projectID]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := f.fail("Trackers"); err != nil {
		return nil, err
	}
	return f.TrackersByProject[projectID], nil
}

func (f *FakeTracker) Statuses(ctx context.Context) ([]model.Status, error) {
	f.record("Statuses")
	if err := f.fail("Statuses"); err != nil {
		return nil, err
	}
	return f.StatusList, nil
}

func (f *FakeTracker) Versions(ctx context.Context, projectID int) ([]model.Version, error) {
	f.record("Versions(%d)", projectID)
	if err := f.fail("Versions"); err != nil {
		return nil, err
	}
	return f.VersionsByProject[projectID], nil
}

func (f *FakeTracker) Members(ctx context.Context, projectID int) ([]model.Member, error) {
	f.record("Members(%d)", projectID)
	if err := f.fail("Members"); err != nil {
		return nil, err
	}
	return f.MembersByProject[projectID], nil
}

func (f *FakeTracker) CustomFields(ctx context.Context) ([]model.CustomFieldDefinition, error) {
	f.record("CustomFields")
	if err := f.fail("CustomFields"); err != nil {
		return nil, err
	}
	return f.CustomFieldList, nil
}

func (f *FakeTracker) Issue(ctx context.Context, id int) (*model.Issue, error) {
	f.record("Issue(%d)", id)
	if err := f.fail("Issue"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.Issues[id]
	if !ok {
		return nil, &source.APIError{Method: "GET", Path: fmt.Sprintf("/issues/%d.json", id), StatusCode: 404}
	}
	cp := *issue
	return &cp, nil
}

func (f *FakeTracker) CreateIssue(ctx context.Context, params model.IssueParams) (*model.Issue, error) {
	f.record("CreateIssue")
	if err := f.fail("CreateIssue"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextIssueID++
	f.created = append(f.created, params)
	issue := &model.Issue{ID: f.nextIssueID}
	if params.Subject != nil {
		issue.Subject = *params.Subject
	}
	if params.ProjectID != nil {
		issue.Project = &model.Ref{ID: *params.ProjectID}
	}
	f.Issues[issue.ID] = issue
	return issue, nil
}

func (f *FakeTracker) UpdateIssue(ctx context.Context, id int, params model.IssueParams) error {
	f.record("UpdateIssue(%d)", id)
	if err := f.fail("UpdateIssue"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[id] = params
	return nil
}

func (f *FakeTracker) SaveRelation(ctx context.Context, rel model.Relation) (*model.Relation, error) {
	f.record("SaveRelation(%d->%d)", rel.IssueID, rel.IssueToID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.RelationErrors[rel.IssueToID]; err != nil {
		return nil, err
	}
	f.nextRelationID++
	saved := rel
	saved.ID = f.nextRelationID
	f.savedRelations = append(f.savedRelations, rel)
	return &saved, nil
}

func (f *FakeTracker) DeleteRelation(ctx context.Context, id int) error {
	f.record("DeleteRelation(%d)", id)
	if err := f.fail("DeleteRelation"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedRelations = append(f.deletedRelations, id)
	return nil
}

func (f *FakeTracker) Upload(ctx context.Context, filename, contentType string, data []byte) (*model.Upload, error) {
	f.record("Upload(%s)", filename)
	if err := f.fail("Upload"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	return &model.Upload{
		Token:       fmt.Sprintf("tok-%d", len(f.uploads)),
		Filename:    filename,
		ContentType: contentType,
	}, nil
}

func (f *FakeTracker) ValidateConnection(ctx context.Context) (*redmine.CurrentUser, error) {
	f.record("ValidateConnection")
	if err := f.fail("ValidateConnection"); err != nil {
		return nil, err
	}
	u := f.User
	return &u, nil
}
