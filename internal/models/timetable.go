package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Timetable is a saved generation owned by one learner. Request and Output hold the
// engine input and result as JSON so a stored plan can be re-opened and adapted.
type Timetable struct {
	ID             string         `db:"id" json:"id"`
	LearnerID      string         `db:"learner_id" json:"learner_id"`
	Title          string         `db:"title" json:"title"`
	ReferenceDate  string         `db:"reference_date" json:"reference_date"`
	HorizonEnd     string         `db:"horizon_end" json:"horizon_end"`
	TotalTasks     int            `db:"total_tasks" json:"total_tasks"`
	ScheduledTasks int            `db:"scheduled_tasks" json:"scheduled_tasks"`
	WarningCount   int            `db:"warning_count" json:"warning_count"`
	Request        types.JSONText `db:"request" json:"-"`
	Output         types.JSONText `db:"output" json:"-"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// TimetableFilter captures list criteria.
type TimetableFilter struct {
	LearnerID string
	Page      int
	PageSize  int
}
