package timetable

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
)

// EventType enumerates fixed commitments.
type EventType string

const (
	EventExam       EventType = "exam"
	EventAssignment EventType = "assignment"
	EventDeadline   EventType = "deadline"
	EventLecture    EventType = "lecture"
	EventLab        EventType = "lab"
)

// ParseEventType maps unknown values to EventDeadline.
func ParseEventType(value string) EventType {
	switch EventType(value) {
	case EventExam, EventAssignment, EventDeadline, EventLecture, EventLab:
		return EventType(value)
	default:
		return EventDeadline
	}
}

// TaskStatus tracks a study task through scheduling.
type TaskStatus string

const (
	StatusPending     TaskStatus = "pending"
	StatusScheduled   TaskStatus = "scheduled"
	StatusInProgress  TaskStatus = "in_progress"
	StatusCompleted   TaskStatus = "completed"
	StatusMissed      TaskStatus = "missed"
	StatusRescheduled TaskStatus = "rescheduled"
)

// TaskType classifies the kind of study work.
type TaskType string

const (
	TaskInitialLearning TaskType = "initial_learning"
	TaskRevision        TaskType = "revision"
	TaskPractice        TaskType = "practice"
	TaskExamPrep        TaskType = "exam_prep"
)

// Severity grades capacity warnings.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// FixedEvent is an external commitment such as an exam or assignment.
type FixedEvent struct {
	ID                   string    `json:"id"`
	EventType            EventType `json:"event_type"`
	Subject              string    `json:"subject"`
	Topic                string    `json:"topic,omitempty"`
	TargetDate           Date      `json:"target_date"`
	PriorityLevel        int       `json:"priority_level"`
	EstimatedEffortHours float64   `json:"estimated_effort_hours"`
	Description          string    `json:"description,omitempty"`
}

// Validate enforces priority and effort bounds.
func (e FixedEvent) Validate() error {
	if e.PriorityLevel < 1 || e.PriorityLevel > 10 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("priority_level must be 1-10, got %d", e.PriorityLevel))
	}
	if !isFinite(e.EstimatedEffortHours) {
		return appErrors.Clone(appErrors.ErrValidation, "estimated_effort_hours must be a finite number")
	}
	if e.EstimatedEffortHours < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "estimated_effort_hours cannot be negative")
	}
	return nil
}

// DailyAvailability describes how much a learner can study on each day.
type DailyAvailability struct {
	WeekdayHours  float64 `json:"weekday_hours"`
	WeekendHours  float64 `json:"weekend_hours"`
	StartTime     Clock   `json:"start_time"`
	EndTime       Clock   `json:"end_time"`
	ExcludedDates []Date  `json:"excluded_dates"`
}

// Validate rejects non-finite or negative daily allowances.
func (a DailyAvailability) Validate() error {
	if !isFinite(a.WeekdayHours) || a.WeekdayHours < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "weekday_hours must be a non-negative finite number")
	}
	if !isFinite(a.WeekendHours) || a.WeekendHours < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "weekend_hours must be a non-negative finite number")
	}
	return nil
}

// HoursFor returns zero for excluded dates and the weekday or weekend allowance otherwise.
func (a DailyAvailability) HoursFor(d Date) float64 {
	for _, excluded := range a.ExcludedDates {
		if excluded.Equal(d) {
			return 0
		}
	}
	if IsWeekend(d) {
		return a.WeekendHours
	}
	return a.WeekdayHours
}

// StudyPreferences shapes session sizing and daily limits.
type StudyPreferences struct {
	SessionLengthMinutes int     `json:"session_length_minutes"`
	BreakLengthMinutes   int     `json:"break_length_minutes"`
	MaxSessionsPerDay    int     `json:"max_sessions_per_day"`
	MaxSubjectsPerDay    int     `json:"max_subjects_per_day"`
	BufferPercentage     float64 `json:"buffer_percentage"`
	PreferMorning        bool    `json:"prefer_morning"`
	MinSessionGapMinutes int     `json:"min_session_gap_minutes"`
}

// Validate enforces the session, break and buffer constraints.
func (p StudyPreferences) Validate() error {
	if p.SessionLengthMinutes < 15 {
		return appErrors.Clone(appErrors.ErrValidation, "session_length_minutes must be at least 15")
	}
	if p.BreakLengthMinutes < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "break_length_minutes cannot be negative")
	}
	if !isFinite(p.BufferPercentage) || p.BufferPercentage < 0.1 || p.BufferPercentage > 0.3 {
		return appErrors.Clone(appErrors.ErrValidation, "buffer_percentage should be between 0.1 and 0.3")
	}
	return nil
}

// LearningTopic is a detected topic the learner needs to study.
type LearningTopic struct {
	ID              string   `json:"id"`
	Subject         string   `json:"subject"`
	Topic           string   `json:"topic"`
	DifficultyScore float64  `json:"difficulty_score"`
	ConfidenceScore float64  `json:"confidence_score"`
	Prerequisites   []string `json:"prerequisites"`
	EstimatedHours  float64  `json:"estimated_hours"`
	IsConceptHeavy  bool     `json:"is_concept_heavy"`
}

// Validate enforces score bounds.
func (t LearningTopic) Validate() error {
	if !isFinite(t.DifficultyScore) || t.DifficultyScore < 0 || t.DifficultyScore > 1 {
		return appErrors.Clone(appErrors.ErrValidation, "difficulty_score must be between 0 and 1")
	}
	if !isFinite(t.ConfidenceScore) || t.ConfidenceScore < 0 || t.ConfidenceScore > 1 {
		return appErrors.Clone(appErrors.ErrValidation, "confidence_score must be between 0 and 1")
	}
	if !isFinite(t.EstimatedHours) || t.EstimatedHours < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "estimated_hours must be a non-negative finite number")
	}
	return nil
}

// StudyTask is the unit of scheduling and the only entity mutated during generation.
type StudyTask struct {
	TaskID            string     `json:"task_id"`
	Subject           string     `json:"subject"`
	Topic             string     `json:"topic"`
	Deadline          Date       `json:"deadline"`
	RequiredMinutes   int        `json:"required_minutes"`
	Priority          int        `json:"priority"`
	DifficultyScore   float64    `json:"difficulty_score"`
	ConfidenceScore   float64    `json:"confidence_score"`
	Status            TaskStatus `json:"status"`
	TaskType          TaskType   `json:"task_type"`
	ParentTaskID      *string    `json:"parent_task_id"`
	ScheduledDate     *Date      `json:"scheduled_date"`
	SourceEventID     string     `json:"source_event_id,omitempty"`
	SourceTopicID     string     `json:"source_topic_id,omitempty"`
	ScheduledSlot     *int       `json:"scheduled_slot,omitempty"`
	RevisionIteration int        `json:"revision_iteration,omitempty"`
}

// MarkScheduled records the placement of the task.
func (t *StudyTask) MarkScheduled(d Date, slot int) {
	t.Status = StatusScheduled
	t.ScheduledDate = &d
	t.ScheduledSlot = &slot
}

// MarkCompleted flags the task as done.
func (t *StudyTask) MarkCompleted() { t.Status = StatusCompleted }

// MarkMissed flags the task as missed.
func (t *StudyTask) MarkMissed() { t.Status = StatusMissed }

// IsScheduled reports whether the task holds a placement.
func (t *StudyTask) IsScheduled() bool {
	return t.Status == StatusScheduled && t.ScheduledDate != nil
}

// CloneForReschedule copies the task under a new id with a priority boost, reset to pending.
func (t *StudyTask) CloneForReschedule(newID string) *StudyTask {
	parent := t.TaskID
	return &StudyTask{
		TaskID:          newID,
		Subject:         t.Subject,
		Topic:           t.Topic,
		Deadline:        t.Deadline,
		RequiredMinutes: t.RequiredMinutes,
		Priority:        clampInt(t.Priority+1, 1, 10),
		DifficultyScore: t.DifficultyScore,
		ConfidenceScore: t.ConfidenceScore,
		Status:          StatusPending,
		TaskType:        t.TaskType,
		ParentTaskID:    &parent,
		SourceEventID:   t.SourceEventID,
		SourceTopicID:   t.SourceTopicID,
	}
}

// TimeSlot is one placement within a day.
type TimeSlot struct {
	StartTime Clock    `json:"start_time"`
	EndTime   Clock    `json:"end_time"`
	Subject   string   `json:"subject"`
	Topic     string   `json:"topic"`
	TaskID    string   `json:"task_id"`
	TaskType  TaskType `json:"task_type"`
	IsBreak   bool     `json:"is_break"`
}

// DaySchedule holds the ordered slots for one date. Totals are kept in step with the slots.
type DaySchedule struct {
	Date              Date
	Slots             []TimeSlot
	TotalStudyMinutes int
	CapacityUsed      float64
	subjects          map[string]struct{}
}

// NewDaySchedule returns an empty schedule for d.
func NewDaySchedule(d Date) *DaySchedule {
	return &DaySchedule{Date: d, Slots: []TimeSlot{}, subjects: map[string]struct{}{}}
}

// AddSlot appends a slot and updates study minutes and subjects for non-break slots.
func (s *DaySchedule) AddSlot(slot TimeSlot) {
	s.Slots = append(s.Slots, slot)
	if slot.IsBreak {
		return
	}
	s.TotalStudyMinutes += MinutesBetween(slot.StartTime, slot.EndTime)
	if s.subjects == nil {
		s.subjects = map[string]struct{}{}
	}
	s.subjects[slot.Subject] = struct{}{}
}

// SessionCount counts non-break slots.
func (s *DaySchedule) SessionCount() int {
	count := 0
	for _, slot := range s.Slots {
		if !slot.IsBreak {
			count++
		}
	}
	return count
}

// SubjectsCovered returns the subjects placed on the day in sorted order.
func (s *DaySchedule) SubjectsCovered() []string {
	subjects := make([]string, 0, len(s.subjects))
	for subject := range s.subjects {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

type dayScheduleJSON struct {
	Date              Date       `json:"date"`
	Slots             []TimeSlot `json:"slots"`
	TotalStudyMinutes int        `json:"total_study_minutes"`
	SubjectsCovered   []string   `json:"subjects_covered"`
	CapacityUsed      float64    `json:"capacity_used"`
	SessionCount      int        `json:"session_count"`
}

// MarshalJSON emits the derived session count and rounds capacity to two decimals.
func (s *DaySchedule) MarshalJSON() ([]byte, error) {
	slots := s.Slots
	if slots == nil {
		slots = []TimeSlot{}
	}
	return json.Marshal(dayScheduleJSON{
		Date:              s.Date,
		Slots:             slots,
		TotalStudyMinutes: s.TotalStudyMinutes,
		SubjectsCovered:   s.SubjectsCovered(),
		CapacityUsed:      math.Round(s.CapacityUsed*100) / 100,
		SessionCount:      s.SessionCount(),
	})
}

// UnmarshalJSON restores a persisted schedule.
func (s *DaySchedule) UnmarshalJSON(data []byte) error {
	var raw dayScheduleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Date = raw.Date
	s.Slots = raw.Slots
	if s.Slots == nil {
		s.Slots = []TimeSlot{}
	}
	s.TotalStudyMinutes = raw.TotalStudyMinutes
	s.CapacityUsed = raw.CapacityUsed
	s.subjects = make(map[string]struct{}, len(raw.SubjectsCovered))
	for _, subject := range raw.SubjectsCovered {
		s.subjects[subject] = struct{}{}
	}
	return nil
}

// CapacityWarning reports a shortfall or an adjustment to the plan.
type CapacityWarning struct {
	Date          Date     `json:"date"`
	Message       string   `json:"message"`
	AffectedTasks []string `json:"affected_tasks"`
	Severity      Severity `json:"severity"`
}

// Metadata summarises one generation.
type Metadata struct {
	GeneratedAt    Date `json:"generated_at"`
	HorizonEnd     Date `json:"horizon_end"`
	TotalTasks     int  `json:"total_tasks"`
	ScheduledTasks int  `json:"scheduled_tasks"`
	TotalEvents    int  `json:"total_events"`
	TotalTopics    int  `json:"total_topics"`
}

// Output is the complete result of a generation.
type Output struct {
	Schedule map[string]*DaySchedule `json:"schedule"`
	Tasks    []*StudyTask            `json:"tasks"`
	Warnings []CapacityWarning       `json:"warnings"`
	Metadata Metadata                `json:"metadata"`
}

// ScheduleFor returns the day schedule for d, if the date is inside the horizon.
func (o *Output) ScheduleFor(d Date) (*DaySchedule, bool) {
	day, ok := o.Schedule[d.String()]
	return day, ok
}

// ScheduledTasks returns tasks holding a placement.
func (o *Output) ScheduledTasks() []*StudyTask {
	return o.tasksWithStatus(StatusScheduled)
}

// UnscheduledTasks returns tasks still pending.
func (o *Output) UnscheduledTasks() []*StudyTask {
	return o.tasksWithStatus(StatusPending)
}

// FindTask looks a task up by id.
func (o *Output) FindTask(taskID string) (*StudyTask, bool) {
	for _, task := range o.Tasks {
		if task.TaskID == taskID {
			return task, true
		}
	}
	return nil, false
}

// Dates returns the schedule keys in chronological order.
func (o *Output) Dates() []string {
	keys := make([]string, 0, len(o.Schedule))
	for key := range o.Schedule {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (o *Output) tasksWithStatus(status TaskStatus) []*StudyTask {
	result := make([]*StudyTask, 0)
	for _, task := range o.Tasks {
		if task.Status == status {
			result = append(result, task)
		}
	}
	return result
}
