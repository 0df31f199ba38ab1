package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/study-planner-api/internal/models"
)

const timetableColumns = "id, learner_id, title, reference_date, horizon_end, total_tasks, scheduled_tasks, warning_count, request, output, created_at, updated_at"

// TimetableRepository persists generated timetables. Queries use '?' placeholders and are
// rebound for the active driver so the same statements serve postgres and sqlite.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// Create inserts a timetable row with generated defaults.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.Timetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if timetable.LearnerID == "" {
		return fmt.Errorf("learner_id is required")
	}
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if len(timetable.Request) == 0 {
		timetable.Request = types.JSONText(`{}`)
	}
	if len(timetable.Output) == 0 {
		timetable.Output = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	const query = `INSERT INTO timetables (id, learner_id, title, reference_date, horizon_end, total_tasks, scheduled_tasks, warning_count, request, output, created_at, updated_at)
VALUES (:id, :learner_id, :title, :reference_date, :horizon_end, :total_tasks, :scheduled_tasks, :warning_count, :request, :output, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, timetable); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// GetByID loads a timetable by its identifier.
func (r *TimetableRepository) GetByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := r.db.Rebind("SELECT " + timetableColumns + " FROM timetables WHERE id = ?")
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// ListByLearner returns a page of timetables for the learner, newest first, with the total count.
func (r *TimetableRepository) ListByLearner(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM timetables WHERE learner_id = ?")
	if err := r.db.GetContext(ctx, &total, countQuery, filter.LearnerID); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}

	query := r.db.Rebind("SELECT " + timetableColumns + " FROM timetables WHERE learner_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?")
	timetables := make([]models.Timetable, 0)
	if err := r.db.SelectContext(ctx, &timetables, query, filter.LearnerID, size, (page-1)*size); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}
	return timetables, total, nil
}

// UpdateOutput replaces the stored output and its summary counters.
func (r *TimetableRepository) UpdateOutput(ctx context.Context, timetable *models.Timetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	timetable.UpdatedAt = time.Now().UTC()
	query := r.db.Rebind("UPDATE timetables SET total_tasks = ?, scheduled_tasks = ?, warning_count = ?, output = ?, updated_at = ? WHERE id = ?")
	result, err := r.db.ExecContext(ctx, query, timetable.TotalTasks, timetable.ScheduledTasks, timetable.WarningCount, timetable.Output, timetable.UpdatedAt, timetable.ID)
	if err != nil {
		return fmt.Errorf("update timetable output: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a stored timetable.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind("DELETE FROM timetables WHERE id = ?")
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
