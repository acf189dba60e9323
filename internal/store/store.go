package store

import (
	"context"
	"errors"

	"github.com/nhle/mailissue/internal/model"
)

// ErrNotFound is returned when no link matches a lookup.
var ErrNotFound = errors.New("link not found")

// LinkFilter controls filtering and pagination for link queries.
type LinkFilter struct {
	MessageID *string
	IssueID   *int
	ProjectID *int
	Query     *string // search subject
	SortDesc  bool
	Limit     int
	Offset    int
}

// Store persists the message to issue links recorded by the CLI.
type Store interface {
	CreateLink(ctx context.Context, link model.IssueLink) (model.IssueLink, error)
	DeleteLink(ctx context.Context, id string) error
	GetLinks(ctx context.Context, filter LinkFilter) ([]model.IssueLink, error)
	GetLinkCount(ctx context.Context, filter LinkFilter) (int, error)

	// LatestLinkForMessage returns the most recent link created from
	// messageID, or ErrNotFound.
	LatestLinkForMessage(ctx context.Context, messageID string) (*model.IssueLink, error)

	Close() error
}
