package editor

import (
	"context"
	"fmt"

	"github.com/nhle/mailissue/internal/model"
	"github.com/nhle/mailissue/internal/relation"
)

// SubmitResult is what a submission produced. Relations holds one
// outcome per relation write; a failed relation write does not fail the
// submission.
type SubmitResult struct {
	Issue     *model.Issue
	Params    model.IssueParams
	Relations []relation.Outcome
}

// Params flushes pending edits and returns the request the form would
// submit now.
func (e *Editor) Params() model.IssueParams {
	e.binder.Flush()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.CollectRequestParams()
}

// Submit flushes pending edits, uploads pending attachments, creates or
// updates the issue and saves its relations.
func (e *Editor) Submit(ctx context.Context) (*SubmitResult, error) {
	e.binder.Flush()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if res := e.validate(); !res.Valid() {
		e.mu.Unlock()
		return nil, ErrInvalid
	}
	params := e.form.CollectRequestParams()
	issueID := e.draft.ID
	files := append([]model.Upload(nil), e.draft.Files...)
	e.mu.Unlock()

	if e.mode == ModeCreate && params.ProjectID == nil {
		return nil, ErrMissingProject
	}
	if e.mode == ModeUpdate && issueID == 0 {
		return nil, ErrNoIssue
	}

	for _, f := range files {
		if f.Token == "" {
			up, err := e.tracker.Upload(ctx, f.Filename, f.ContentType, f.Data)
			if err != nil {
				return nil, fmt.Errorf("submitting issue: %w", err)
			}
			f.Token = up.Token
		}
		params.Uploads = append(params.Uploads, model.Upload{
			Token:       f.Token,
			Filename:    f.Filename,
			ContentType: f.ContentType,
			Description: f.Description,
		})
	}

	var issue *model.Issue
	if e.mode == ModeCreate {
		created, err := e.tracker.CreateIssue(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("submitting issue: %w", err)
		}
		issue = created
	} else {
		if err := e.tracker.UpdateIssue(ctx, issueID, params); err != nil {
			return nil, fmt.Errorf("submitting issue: %w", err)
		}
		issue = &model.Issue{ID: issueID}
	}

	e.mu.Lock()
	e.draft.ID = issue.ID
	ops := e.relations.Plan(issue.ID)
	e.mu.Unlock()

	outcomes := relation.Execute(ctx, e.tracker, ops)

	e.mu.Lock()
	e.relations.Apply(outcomes)
	e.mu.Unlock()

	failed := relation.Failed(outcomes)
	for _, o := range failed {
		e.log.Error(o.Err, "relation write failed", "issue", issue.ID,
			"op", o.Operation.Kind.String(), "target", o.Operation.Relation.IssueToID)
	}
	e.log.Info("issue submitted", "mode", e.mode.String(), "issue", issue.ID,
		"uploads", len(params.Uploads), "relations", len(outcomes), "failed", len(failed))

	return &SubmitResult{Issue: issue, Params: params, Relations: outcomes}, nil
}
