package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailissue/internal/model"
)

// CreateLink records a link from a message to an issue. Recording the
// same message and issue again refreshes the subject and project of the
// existing link.
func (s *SQLiteStore) CreateLink(ctx context.Context, link model.IssueLink) (model.IssueLink, error) {
	if link.MessageID == "" {
		return model.IssueLink{}, errors.New("creating link: message id is required")
	}
	if link.IssueID <= 0 {
		return model.IssueLink{}, fmt.Errorf("creating link: invalid issue id %d", link.IssueID)
	}
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	link.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issue_links (id, message_id, issue_id, project_id, subject, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id, issue_id) DO UPDATE SET
			project_id = excluded.project_id,
			subject    = excluded.subject`,
		link.ID, link.MessageID, link.IssueID, link.ProjectID, link.Subject, link.CreatedAt,
	)
	if err != nil {
		return model.IssueLink{}, fmt.Errorf("creating link: %w", err)
	}

	var saved model.IssueLink
	err = s.db.GetContext(ctx, &saved,
		"SELECT * FROM issue_links WHERE message_id = ? AND issue_id = ?",
		link.MessageID, link.IssueID,
	)
	if err != nil {
		return model.IssueLink{}, fmt.Errorf("reading link: %w", err)
	}
	return saved, nil
}

// DeleteLink removes a link by ID.
func (s *SQLiteStore) DeleteLink(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issue_links WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting link %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deleting link %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetLinks retrieves links matching filter, oldest first unless
// SortDesc is set.
func (s *SQLiteStore) GetLinks(ctx context.Context, filter LinkFilter) ([]model.IssueLink, error) {
	where, args := linkConditions(filter)

	query := "SELECT * FROM issue_links" + where
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY created_at %s, rowid %s", direction, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var links []model.IssueLink
	if err := s.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	return links, nil
}

// GetLinkCount counts the links matching filter, ignoring pagination.
func (s *SQLiteStore) GetLinkCount(ctx context.Context, filter LinkFilter) (int, error) {
	where, args := linkConditions(filter)

	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM issue_links"+where, args...); err != nil {
		return 0, fmt.Errorf("counting links: %w", err)
	}
	return n, nil
}

// LatestLinkForMessage returns the newest link recorded for messageID.
func (s *SQLiteStore) LatestLinkForMessage(ctx context.Context, messageID string) (*model.IssueLink, error) {
	var link model.IssueLink
	err := s.db.GetContext(ctx, &link, `
		SELECT * FROM issue_links
		WHERE message_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting link for message %s: %w", messageID, err)
	}
	return &link, nil
}

func linkConditions(filter LinkFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.MessageID != nil {
		conditions = append(conditions, "message_id = ?")
		args = append(args, *filter.MessageID)
	}
	if filter.IssueID != nil {
		conditions = append(conditions, "issue_id = ?")
		args = append(args, *filter.IssueID)
	}
	if filter.ProjectID != nil {
		conditions = append(conditions, "project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "subject LIKE ?")
		args = append(args, "%"+*filter.Query+"%")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
