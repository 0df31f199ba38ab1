package timetable

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
)

const (
	horizonPaddingDays = 3
	overflowDays       = 3
	overflowMaxPrio    = 5
	criticalPriority   = 8
)

// Input carries the raw generation request.
type Input struct {
	Events       []Record `json:"events" yaml:"events"`
	Availability Record   `json:"availability" yaml:"availability"`
	Preferences  Record   `json:"preferences" yaml:"preferences"`
	Topics       []Record `json:"topics" yaml:"topics"`
	CurrentDate  string   `json:"current_date,omitempty" yaml:"current_date,omitempty"`
}

// Option customises a Scheduler.
type Option func(*schedulerOptions)

type schedulerOptions struct {
	logger    *zap.Logger
	weights   *ScoreWeights
	now       func() time.Time
	maxEffort float64
}

// WithLogger traces allocation outcomes at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *schedulerOptions) { o.logger = logger }
}

// WithWeights overrides the urgency weighting.
func WithWeights(weights ScoreWeights) Option {
	return func(o *schedulerOptions) { o.weights = &weights }
}

// WithNow supplies the clock used when the input carries no current date.
func WithNow(now func() time.Time) Option {
	return func(o *schedulerOptions) { o.now = now }
}

// WithMaxEffortHours rejects events whose estimated effort exceeds hours. Zero disables the limit.
func WithMaxEffortHours(hours float64) Option {
	return func(o *schedulerOptions) { o.maxEffort = hours }
}

// Scheduler turns one learner's normalised inputs into a timetable. Instances are not safe for concurrent use.
type Scheduler struct {
	current      Date
	events       []FixedEvent
	availability DailyAvailability
	preferences  StudyPreferences
	topics       []LearningTopic

	scorer   *UrgencyScorer
	planner  *CapacityPlanner
	logger   *zap.Logger
	decomp   *Decomposer
	tasks    []*StudyTask
	warnings []CapacityWarning
	schedule map[string]*DaySchedule
}

// NewScheduler normalises the input and fails fast on the first invalid value.
func NewScheduler(in Input, opts ...Option) (*Scheduler, error) {
	options := schedulerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	current := DateOf(options.now())
	if in.CurrentDate != "" {
		parsed, err := ParseDate(in.CurrentDate)
		if err != nil {
			return nil, err
		}
		current = parsed
	}

	var n Normalizer
	events, err := n.Events(in.Events)
	if err != nil {
		return nil, err
	}
	if options.maxEffort > 0 {
		for i, event := range events {
			if event.EstimatedEffortHours > options.maxEffort {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("events[%d]: estimated_effort_hours must not exceed %g", i, options.maxEffort))
			}
		}
	}
	availability, err := n.Availability(in.Availability)
	if err != nil {
		return nil, err
	}
	preferences, err := n.Preferences(in.Preferences)
	if err != nil {
		return nil, err
	}
	topics, err := n.Topics(in.Topics)
	if err != nil {
		return nil, err
	}
	scorer, err := NewUrgencyScorer(options.weights)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		current:      current,
		events:       events,
		availability: availability,
		preferences:  preferences,
		topics:       topics,
		scorer:       scorer,
		planner:      NewCapacityPlanner(availability, preferences),
		logger:       options.logger,
	}, nil
}

// Generate is a convenience wrapper around NewScheduler and Scheduler.Generate.
func Generate(in Input, opts ...Option) (*Output, error) {
	scheduler, err := NewScheduler(in, opts...)
	if err != nil {
		return nil, err
	}
	return scheduler.Generate(), nil
}

// CurrentDate returns the reference day of the run.
func (s *Scheduler) CurrentDate() Date { return s.current }

// Events returns the normalised events.
func (s *Scheduler) Events() []FixedEvent { return s.events }

// Topics returns the normalised topics.
func (s *Scheduler) Topics() []LearningTopic { return s.topics }

// Availability returns the normalised availability.
func (s *Scheduler) Availability() DailyAvailability { return s.availability }

// Preferences returns the normalised preferences.
func (s *Scheduler) Preferences() StudyPreferences { return s.preferences }

// Generate runs decomposition, ranking, greedy allocation and spaced repetition.
// Each call starts from fresh state so repeated calls produce identical output.
func (s *Scheduler) Generate() *Output {
	s.decomp = NewDecomposer(s.preferences)
	s.tasks = nil
	s.warnings = []CapacityWarning{}
	s.schedule = make(map[string]*DaySchedule)

	end := s.Horizon()
	s.decomposeAll(end)

	capacities := s.planner.Build(s.current, end)
	for _, day := range DateRange(s.current, end) {
		s.schedule[day.String()] = NewDaySchedule(day)
	}

	s.scheduleTasks(capacities, end)
	s.addSpacedRepetition(capacities, end)
	s.checkCompleteness()

	scheduled := 0
	for _, task := range s.tasks {
		if task.Status == StatusScheduled {
			scheduled++
		}
	}
	tasks := s.tasks
	if tasks == nil {
		tasks = []*StudyTask{}
	}

	s.logger.Debug("timetable generated",
		zap.String("current_date", s.current.String()),
		zap.String("horizon_end", end.String()),
		zap.Int("tasks", len(tasks)),
		zap.Int("scheduled", scheduled),
		zap.Int("warnings", len(s.warnings)),
		zap.Int("remaining_minutes", capacities.RemainingCapacity()),
	)

	return &Output{
		Schedule: s.schedule,
		Tasks:    tasks,
		Warnings: s.warnings,
		Metadata: Metadata{
			GeneratedAt:    s.current,
			HorizonEnd:     end,
			TotalTasks:     len(tasks),
			ScheduledTasks: scheduled,
			TotalEvents:    len(s.events),
			TotalTopics:    len(s.topics),
		},
	}
}

// Horizon is the latest event deadline plus padding, or thirty days out without events.
func (s *Scheduler) Horizon() Date {
	latest, ok := s.latestDeadline()
	if !ok {
		return s.current.AddDays(DefaultHorizonDays)
	}
	return latest.AddDays(horizonPaddingDays)
}

func (s *Scheduler) latestDeadline() (Date, bool) {
	deadlines := make([]Date, 0, len(s.events))
	for _, event := range s.events {
		deadlines = append(deadlines, event.TargetDate)
	}
	return LatestDate(deadlines)
}

func (s *Scheduler) decomposeAll(end Date) {
	for _, event := range s.events {
		s.tasks = append(s.tasks, s.decomp.DecomposeEvent(event)...)
	}
	topicDeadline := end
	if latest, ok := s.latestDeadline(); ok {
		topicDeadline = latest
	}
	for _, topic := range s.topics {
		s.tasks = append(s.tasks, s.decomp.DecomposeTopic(topic, topicDeadline)...)
	}
}

func (s *Scheduler) scheduleTasks(capacities CapacityMap, end Date) {
	pending := make([]*StudyTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		if task.Status == StatusPending {
			pending = append(pending, task)
		}
	}
	horizonDays := DaysBetween(s.current, end)
	for _, ranked := range s.scorer.Rank(pending, s.current, horizonDays) {
		if !s.allocate(ranked.Task, capacities) {
			s.logger.Debug("task left unscheduled",
				zap.String("task_id", ranked.Task.TaskID),
				zap.Float64("score", ranked.Score),
				zap.String("explanation", ranked.Breakdown.Explanation),
			)
		}
	}
}

func (s *Scheduler) fits(capacity *DayCapacity, task *StudyTask) bool {
	return capacity.CanFitSession(task.RequiredMinutes, task.Subject, task.Topic, s.preferences.MaxSubjectsPerDay)
}

// allocate places task on the first fitting day up to its deadline. Tasks of priority five
// or lower may spill up to three days past the deadline with a warning.
func (s *Scheduler) allocate(task *StudyTask, capacities CapacityMap) bool {
	for _, day := range DateRange(s.current, task.Deadline) {
		capacity, ok := capacities[day.String()]
		if !ok {
			continue
		}
		if s.fits(capacity, task) {
			s.place(task, capacity, day)
			return true
		}
	}

	if task.Priority > overflowMaxPrio {
		return false
	}
	for offset := 1; offset <= overflowDays; offset++ {
		fallback := task.Deadline.AddDays(offset)
		capacity, ok := capacities[fallback.String()]
		if !ok {
			continue
		}
		if s.fits(capacity, task) {
			s.place(task, capacity, fallback)
			s.warnings = append(s.warnings, CapacityWarning{
				Date:          fallback,
				Message:       fmt.Sprintf("Task '%s' pushed past deadline", task.Topic),
				AffectedTasks: []string{task.TaskID},
				Severity:      SeverityWarning,
			})
			return true
		}
	}
	return false
}

func (s *Scheduler) place(task *StudyTask, capacity *DayCapacity, day Date) {
	schedule := s.schedule[day.String()]
	start := capacity.NextAvailable
	schedule.AddSlot(TimeSlot{
		StartTime: start,
		EndTime:   start.Add(task.RequiredMinutes),
		Subject:   task.Subject,
		Topic:     task.Topic,
		TaskID:    task.TaskID,
		TaskType:  task.TaskType,
	})
	task.MarkScheduled(day, len(schedule.Slots)-1)

	capacity.Allocate(task.RequiredMinutes, task.Subject, task.Topic)
	capacity.NextAvailable = start.Add(task.RequiredMinutes + s.preferences.BreakLengthMinutes)
	if capacity.TotalMinutes > 0 {
		schedule.CapacityUsed = capacity.UsedFraction()
	}
}

// addSpacedRepetition books best-effort revisions after the earliest initial session of each
// concept-heavy topic. Revisions that do not fit their exact day are dropped.
func (s *Scheduler) addSpacedRepetition(capacities CapacityMap, end Date) {
	conceptHeavy := make(map[string]struct{})
	for _, topic := range s.topics {
		if topic.IsConceptHeavy {
			conceptHeavy[topic.ID] = struct{}{}
		}
	}
	if len(conceptHeavy) == 0 {
		return
	}

	var order []string
	earliest := make(map[string]*StudyTask)
	for _, task := range s.tasks {
		if !task.IsScheduled() || task.TaskType != TaskInitialLearning || task.SourceTopicID == "" {
			continue
		}
		if _, ok := conceptHeavy[task.SourceTopicID]; !ok {
			continue
		}
		existing, seen := earliest[task.SourceTopicID]
		if !seen {
			order = append(order, task.SourceTopicID)
			earliest[task.SourceTopicID] = task
			continue
		}
		if task.ScheduledDate.Before(*existing.ScheduledDate) {
			earliest[task.SourceTopicID] = task
		}
	}

	for _, topicID := range order {
		source := earliest[topicID]
		for i, revisionDate := range SpacedRepetitionDates(*source.ScheduledDate, end, RevisionIntervals) {
			revision := s.decomp.RevisionTask(source, revisionDate, i+1)
			capacity, ok := capacities[revisionDate.String()]
			if !ok || !s.fits(capacity, revision) {
				s.logger.Debug("revision dropped",
					zap.String("topic_id", topicID),
					zap.String("date", revisionDate.String()),
				)
				continue
			}
			s.tasks = append(s.tasks, revision)
			s.place(revision, capacity, revisionDate)
		}
	}
}

// checkCompleteness emits one warning per deadline holding pending tasks.
func (s *Scheduler) checkCompleteness() {
	var deadlines []string
	groups := make(map[string][]*StudyTask)
	for _, task := range s.tasks {
		if task.Status != StatusPending {
			continue
		}
		key := task.Deadline.String()
		if _, ok := groups[key]; !ok {
			deadlines = append(deadlines, key)
		}
		groups[key] = append(groups[key], task)
	}

	for _, key := range deadlines {
		tasks := groups[key]
		severity := SeverityWarning
		affected := make([]string, 0, len(tasks))
		for _, task := range tasks {
			if task.Priority >= criticalPriority {
				severity = SeverityCritical
			}
			affected = append(affected, task.TaskID)
		}
		s.warnings = append(s.warnings, CapacityWarning{
			Date:          tasks[0].Deadline,
			Message:       fmt.Sprintf("Could not schedule %d task(s) before deadline", len(tasks)),
			AffectedTasks: affected,
			Severity:      severity,
		})
	}
}
