package timetable

import (
	"fmt"
	"math"
)

const (
	maxTopicSessions    = 10
	minSessionMinutes   = 15
	hardTopicSessionCap = 30
)

// Decomposer splits events and topics into session-sized tasks. Ids are sequential per instance.
type Decomposer struct {
	sessionLength int
	counter       int
}

// NewDecomposer sizes tasks by the preferred session length.
func NewDecomposer(prefs StudyPreferences) *Decomposer {
	return &Decomposer{sessionLength: prefs.SessionLengthMinutes}
}

func (d *Decomposer) nextID(prefix string) string {
	d.counter++
	return fmt.Sprintf("%s_%04d", prefix, d.counter)
}

// splitMinutes distributes total evenly, handing the remainder one minute at a time to the first sessions.
func splitMinutes(total, sessions int) []int {
	parts := make([]int, sessions)
	base := total / sessions
	remainder := total % sessions
	for i := range parts {
		parts[i] = base
		if i < remainder {
			parts[i]++
		}
	}
	return parts
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// DecomposeEvent turns one event into exam-prep or initial-learning tasks.
func (d *Decomposer) DecomposeEvent(event FixedEvent) []*StudyTask {
	total := HoursToMinutes(event.EstimatedEffortHours)
	taskType := TaskInitialLearning
	if event.EventType == EventExam {
		taskType = TaskExamPrep
	}
	topic := event.Topic
	if topic == "" {
		topic = fmt.Sprintf("%s preparation", event.EventType)
	}

	sessions := max(1, ceilDiv(total, d.sessionLength))
	tasks := make([]*StudyTask, 0, sessions)
	for _, minutes := range splitMinutes(total, sessions) {
		tasks = append(tasks, &StudyTask{
			TaskID:          d.nextID("event"),
			Subject:         event.Subject,
			Topic:           topic,
			Deadline:        event.TargetDate,
			RequiredMinutes: min(minutes, d.sessionLength),
			Priority:        event.PriorityLevel,
			DifficultyScore: 0.5,
			ConfidenceScore: 0.5,
			Status:          StatusPending,
			TaskType:        taskType,
			SourceEventID:   event.ID,
		})
	}
	return tasks
}

// DecomposeTopic sizes a topic by difficulty and confidence. Hard or unfamiliar topics get shorter sessions.
func (d *Decomposer) DecomposeTopic(topic LearningTopic, deadline Date) []*StudyTask {
	base := float64(HoursToMinutes(topic.EstimatedHours))
	difficultyMultiplier := 1.0 + topic.DifficultyScore*0.5
	confidenceMultiplier := 1.0 + (1-topic.ConfidenceScore)*0.5
	adjusted := int(base * difficultyMultiplier * confidenceMultiplier)

	sessionLength := d.sessionLength
	if topic.DifficultyScore > 0.7 || topic.ConfidenceScore < 0.3 {
		sessionLength = min(d.sessionLength, hardTopicSessionCap)
	}
	sessions := min(max(1, ceilDiv(adjusted, sessionLength)), maxTopicSessions)
	priority := TopicPriority(topic)

	tasks := make([]*StudyTask, 0, sessions)
	for _, minutes := range splitMinutes(adjusted, sessions) {
		tasks = append(tasks, &StudyTask{
			TaskID:          d.nextID("topic"),
			Subject:         topic.Subject,
			Topic:           topic.Topic,
			Deadline:        deadline,
			RequiredMinutes: min(max(minutes, minSessionMinutes), d.sessionLength),
			Priority:        priority,
			DifficultyScore: topic.DifficultyScore,
			ConfidenceScore: topic.ConfidenceScore,
			Status:          StatusPending,
			TaskType:        TaskInitialLearning,
			SourceTopicID:   topic.ID,
		})
	}
	return tasks
}

// TopicPriority rises with difficulty and falls with confidence.
func TopicPriority(topic LearningTopic) int {
	score := (topic.DifficultyScore + (1 - topic.ConfidenceScore)) / 2
	return clampInt(int(math.Round(score*10)), 1, 10)
}

// RevisionTask derives a shorter follow-up of source due on revisionDate.
func (d *Decomposer) RevisionTask(source *StudyTask, revisionDate Date, iteration int) *StudyTask {
	parent := source.TaskID
	return &StudyTask{
		TaskID:            d.nextID("revision"),
		Subject:           source.Subject,
		Topic:             source.Topic,
		Deadline:          revisionDate,
		RequiredMinutes:   max(minSessionMinutes, source.RequiredMinutes/2),
		Priority:          max(1, source.Priority-1),
		DifficultyScore:   source.DifficultyScore,
		ConfidenceScore:   math.Min(1.0, source.ConfidenceScore+0.1*float64(iteration)),
		Status:            StatusPending,
		TaskType:          TaskRevision,
		ParentTaskID:      &parent,
		SourceTopicID:     source.SourceTopicID,
		RevisionIteration: iteration,
	}
}
