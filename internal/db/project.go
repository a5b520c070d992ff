package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Project is the top of the work item hierarchy and owns one ordered queue.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateProject inserts a new project.
func (s *Store) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	now := s.Now()
	p := &Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// GetProject retrieves a project by ID. Returns nil, nil when it doesn't exist.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)

	p, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// ListProjects returns all projects, most recently updated first.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM projects
		ORDER BY updated_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// ProjectExists reports whether a project with the given ID exists.
func (s *Store) ProjectExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("check project %s: %w", id, err)
	}
	return n > 0, nil
}

// LockProjectTx confirms the project exists and, on dialects with row locks,
// locks its row until the transaction ends so queue mutations on the same
// project serialize.
func LockProjectTx(tx *TxOps, projectID string) (bool, error) {
	var id string
	err := tx.QueryRow("SELECT id FROM projects WHERE id = ?"+tx.forUpdate, projectID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock project %s: %w", projectID, err)
	}
	return true, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTimestamp(createdAt)
	p.UpdatedAt = parseTimestamp(updatedAt)
	return &p, nil
}
