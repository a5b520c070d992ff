package db

import (
	"context"
	"database/sql"
	"fmt"
)

// LatestTaskProject returns the project of the most recently updated task,
// or "" when there are no tasks.
func (s *Store) LatestTaskProject(ctx context.Context) (string, error) {
	return s.latestProjectID(ctx, "latest task project", `
		SELECT s.project_id
		FROM tasks t JOIN user_stories s ON s.id = t.user_story_id
		ORDER BY t.updated_at DESC, t.id DESC
		LIMIT 1
	`)
}

// LatestStoryProject returns the project of the most recently updated story,
// or "" when there are no stories.
func (s *Store) LatestStoryProject(ctx context.Context) (string, error) {
	return s.latestProjectID(ctx, "latest story project", `
		SELECT project_id FROM user_stories
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`)
}

// LatestProject returns the most recently updated project, or "" when there
// are none.
func (s *Store) LatestProject(ctx context.Context) (string, error) {
	return s.latestProjectID(ctx, "latest project", `
		SELECT id FROM projects
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`)
}

func (s *Store) latestProjectID(ctx context.Context, what, query string) (string, error) {
	var id string
	err := s.QueryRowContext(ctx, query).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", what, err)
	}
	return id, nil
}
