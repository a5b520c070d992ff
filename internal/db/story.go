package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

// UserStory groups tasks under a project.
type UserStory struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateUserStory inserts a story under an existing project.
func (s *Store) CreateUserStory(ctx context.Context, projectID, title, description string) (*UserStory, error) {
	exists, err := s.ProjectExists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, tqerrors.ErrProjectNotFound(projectID)
	}

	now := s.Now()
	us := &UserStory{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.ExecContext(ctx, `
		INSERT INTO user_stories (id, project_id, title, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, us.ID, us.ProjectID, us.Title, us.Description, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create user story: %w", err)
	}
	return us, nil
}

// GetUserStory retrieves a story by ID. Returns nil, nil when it doesn't exist.
func (s *Store) GetUserStory(ctx context.Context, id string) (*UserStory, error) {
	row := s.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, created_at, updated_at
		FROM user_stories WHERE id = ?
	`, id)

	us, err := scanUserStory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user story %s: %w", id, err)
	}
	return us, nil
}

// ListUserStories returns the stories of a project in creation order.
func (s *Store) ListUserStories(ctx context.Context, projectID string) ([]UserStory, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, project_id, title, description, created_at, updated_at
		FROM user_stories
		WHERE project_id = ?
		ORDER BY created_at ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list user stories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stories []UserStory
	for rows.Next() {
		us, err := scanUserStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user story: %w", err)
		}
		stories = append(stories, *us)
	}
	return stories, rows.Err()
}

// UserStoryExists reports whether a story with the given ID exists.
func (s *Store) UserStoryExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_stories WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("check user story %s: %w", id, err)
	}
	return n > 0, nil
}

func scanUserStory(row rowScanner) (*UserStory, error) {
	var us UserStory
	var createdAt, updatedAt string
	if err := row.Scan(&us.ID, &us.ProjectID, &us.Title, &us.Description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	us.CreatedAt = parseTimestamp(createdAt)
	us.UpdatedAt = parseTimestamp(updatedAt)
	return &us, nil
}
