package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/Brownie44l1/smartseva-api/internal/repository"
	"github.com/Brownie44l1/smartseva-api/internal/triage"
)

const complaintColumns = `id, filename, stored_path, issue_type, predicted_class, main_category,
	confidence, emergency_level, department, timeline, feedback, mismatch, created_at`

// ComplaintRepository implements repository.ComplaintRepository for SQLite.
type ComplaintRepository struct {
	db *DB
}

func NewComplaintRepository(db *DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

func (r *ComplaintRepository) Insert(c *repository.Complaint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var timeline sql.NullString
	if c.Result.Timeline != triage.TimelineNone {
		timeline = sql.NullString{String: string(c.Result.Timeline), Valid: true}
	}

	_, err := r.db.conn.Exec(`
		INSERT INTO complaints (`+complaintColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Filename, c.StoredPath, c.Result.IssueType, c.Result.PredictedClass.String(),
		c.Result.MainCategory.String(), c.Result.ConfidencePercent, string(c.Result.EmergencyLevel),
		c.Result.Department, timeline, c.Result.Feedback, c.Result.Mismatch, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert complaint: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when no complaint has the given id.
func (r *ComplaintRepository) GetByID(id string) (*repository.Complaint, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	row := r.db.conn.QueryRow(`SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id)
	c, err := scanComplaint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get complaint: %w", err)
	}
	return c, nil
}

// List returns the newest complaints first.
func (r *ComplaintRepository) List(limit int) ([]repository.Complaint, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rows, err := r.db.conn.Query(`
		SELECT `+complaintColumns+` FROM complaints
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()

	var complaints []repository.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan complaint: %w", err)
		}
		complaints = append(complaints, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read complaints: %w", err)
	}

	return complaints, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComplaint(s scanner) (*repository.Complaint, error) {
	var (
		c         repository.Complaint
		predicted string
		main      string
		emergency string
		timeline  sql.NullString
	)
	err := s.Scan(&c.ID, &c.Filename, &c.StoredPath, &c.Result.IssueType, &predicted, &main,
		&c.Result.ConfidencePercent, &emergency, &c.Result.Department, &timeline,
		&c.Result.Feedback, &c.Result.Mismatch, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	c.Result.PredictedClass = triage.ParseSeverity(predicted)
	c.Result.MainCategory, _ = triage.ParseMain(main)
	c.Result.EmergencyLevel = triage.EmergencyLevel(emergency)
	c.Result.ConfidenceKind = triage.ConfidenceMaxHeadScore
	if timeline.Valid {
		c.Result.Timeline = triage.Timeline(timeline.String)
	}
	return &c, nil
}
