package dto

import (
	"time"

	"github.com/noah-isme/study-planner-api/internal/models"
	"github.com/noah-isme/study-planner-api/internal/timetable"
)

// Generation modes reported back to clients.
const (
	ModePreview = "preview"
	ModeSaved   = "saved"
)

// GenerateTimetableRequest is the POST /timetable/generate payload. Event, availability,
// preference and topic records are loosely typed and normalised by the engine.
type GenerateTimetableRequest struct {
	Events       []timetable.Record      `json:"events" validate:"omitempty,dive,required"`
	Availability timetable.Record        `json:"availability"`
	Preferences  timetable.Record        `json:"preferences"`
	Topics       []timetable.Record      `json:"topics" validate:"omitempty,dive,required"`
	CurrentDate  string                  `json:"current_date" validate:"omitempty,max=32"`
	Weights      *timetable.ScoreWeights `json:"weights,omitempty"`
	Title        string                  `json:"title" validate:"omitempty,max=120"`
	Save         bool                    `json:"save"`
}

// ToInput converts the payload into engine input.
func (r GenerateTimetableRequest) ToInput() timetable.Input {
	return timetable.Input{
		Events:       r.Events,
		Availability: r.Availability,
		Preferences:  r.Preferences,
		Topics:       r.Topics,
		CurrentDate:  r.CurrentDate,
	}
}

// GenerateTimetableResponse wraps a generated timetable.
type GenerateTimetableResponse struct {
	Mode        string            `json:"mode"`
	TimetableID *string           `json:"timetable_id,omitempty"`
	Message     string            `json:"message"`
	Timetable   *timetable.Output `json:"timetable"`
}

// ValidateTimetableResponse is the dry-run result of normalising a request.
type ValidateTimetableResponse struct {
	Valid         bool    `json:"valid"`
	EventsCount   int     `json:"events_count,omitempty"`
	TopicsCount   int     `json:"topics_count,omitempty"`
	WeekdayHours  float64 `json:"weekday_hours,omitempty"`
	WeekendHours  float64 `json:"weekend_hours,omitempty"`
	SessionLength int     `json:"session_length,omitempty"`
	HorizonEnd    string  `json:"horizon_end,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// TimetableResponse describes a saved timetable. Timetable is omitted in list views.
type TimetableResponse struct {
	ID             string            `json:"id"`
	LearnerID      string            `json:"learner_id"`
	Title          string            `json:"title"`
	ReferenceDate  string            `json:"reference_date"`
	HorizonEnd     string            `json:"horizon_end"`
	TotalTasks     int               `json:"total_tasks"`
	ScheduledTasks int               `json:"scheduled_tasks"`
	WarningCount   int               `json:"warning_count"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Timetable      *timetable.Output `json:"timetable,omitempty"`
}

// NewTimetableResponse maps a stored record onto the response shape.
func NewTimetableResponse(record *models.Timetable, output *timetable.Output) TimetableResponse {
	return TimetableResponse{
		ID:             record.ID,
		LearnerID:      record.LearnerID,
		Title:          record.Title,
		ReferenceDate:  record.ReferenceDate,
		HorizonEnd:     record.HorizonEnd,
		TotalTasks:     record.TotalTasks,
		ScheduledTasks: record.ScheduledTasks,
		WarningCount:   record.WarningCount,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
		Timetable:      output,
	}
}

// ListTimetablesQuery captures GET /timetables query parameters.
type ListTimetablesQuery struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// MissedSessionRequest reports a session the learner did not attend.
type MissedSessionRequest struct {
	TaskID      string `json:"task_id" validate:"required"`
	CurrentDate string `json:"current_date" validate:"omitempty,max=32"`
}

// MissedSessionResponse returns the rescheduled clone alongside the updated timetable.
type MissedSessionResponse struct {
	Rescheduled *timetable.StudyTask `json:"rescheduled_task"`
	Timetable   *timetable.Output    `json:"timetable"`
}

// ConfidenceUpdateRequest records a new self-assessed confidence for a topic.
type ConfidenceUpdateRequest struct {
	TopicID       string   `json:"topic_id" validate:"required"`
	NewConfidence *float64 `json:"new_confidence" validate:"required"`
}

// ConfidenceUpdateResponse lists revision tasks created by the update.
type ConfidenceUpdateResponse struct {
	RevisionTasks []*timetable.StudyTask `json:"revision_tasks"`
	Timetable     *timetable.Output      `json:"timetable"`
}
