package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultPreferences() StudyPreferences {
	prefs, _ := Normalizer{}.Preferences(nil)
	return prefs
}

func sumMinutes(tasks []*StudyTask) int {
	total := 0
	for _, task := range tasks {
		total += task.RequiredMinutes
	}
	return total
}

func TestDecomposeEventSplitsEvenly(t *testing.T) {
	d := NewDecomposer(defaultPreferences())
	event := FixedEvent{ID: "ev-1", EventType: EventAssignment, Subject: "History", Topic: "Essay", TargetDate: MustParseDate("2024-03-20"), PriorityLevel: 6, EstimatedEffortHours: 10}

	tasks := d.DecomposeEvent(event)
	require.Len(t, tasks, 14)
	assert.Equal(t, 600, sumMinutes(tasks))
	assert.Equal(t, 43, tasks[0].RequiredMinutes)
	assert.Equal(t, 43, tasks[11].RequiredMinutes)
	assert.Equal(t, 42, tasks[12].RequiredMinutes)
	assert.Equal(t, "event_0001", tasks[0].TaskID)
	assert.Equal(t, "event_0014", tasks[13].TaskID)

	for _, task := range tasks {
		assert.LessOrEqual(t, task.RequiredMinutes, 45)
		assert.Equal(t, TaskInitialLearning, task.TaskType)
		assert.Equal(t, StatusPending, task.Status)
		assert.Equal(t, 6, task.Priority)
		assert.Equal(t, "ev-1", task.SourceEventID)
		assert.Equal(t, "2024-03-20", task.Deadline.String())
	}
}

func TestDecomposeExamDefaultsTopic(t *testing.T) {
	d := NewDecomposer(defaultPreferences())
	tasks := d.DecomposeEvent(FixedEvent{ID: "ev", EventType: EventExam, Subject: "Math", TargetDate: MustParseDate("2024-03-11"), PriorityLevel: 9, EstimatedEffortHours: 5})

	require.Len(t, tasks, 7)
	assert.Equal(t, 300, sumMinutes(tasks))
	assert.Equal(t, "exam preparation", tasks[0].Topic)
	assert.Equal(t, TaskExamPrep, tasks[0].TaskType)
}

func TestDecomposeZeroEffortEventKeepsOneTask(t *testing.T) {
	d := NewDecomposer(defaultPreferences())
	tasks := d.DecomposeEvent(FixedEvent{EventType: EventLecture, TargetDate: MustParseDate("2024-03-11"), PriorityLevel: 5})
	require.Len(t, tasks, 1)
	assert.Equal(t, 0, tasks[0].RequiredMinutes)
}

func TestDecomposeTopicScalesByDifficultyAndConfidence(t *testing.T) {
	d := NewDecomposer(defaultPreferences())
	topic := LearningTopic{ID: "alg", Subject: "Math", Topic: "Algebra", DifficultyScore: 0.5, ConfidenceScore: 0.5, EstimatedHours: 2}

	tasks := d.DecomposeTopic(topic, MustParseDate("2024-03-30"))
	require.Len(t, tasks, 5)
	assert.Equal(t, 187, sumMinutes(tasks))
	assert.Equal(t, []int{38, 38, 37, 37, 37}, []int{tasks[0].RequiredMinutes, tasks[1].RequiredMinutes, tasks[2].RequiredMinutes, tasks[3].RequiredMinutes, tasks[4].RequiredMinutes})
	assert.Equal(t, 5, tasks[0].Priority)
	assert.Equal(t, "topic_0001", tasks[0].TaskID)
	assert.Equal(t, "alg", tasks[0].SourceTopicID)
}

func TestDecomposeHardTopicUsesShortSessions(t *testing.T) {
	d := NewDecomposer(defaultPreferences())
	topic := LearningTopic{ID: "q", Subject: "Physics", Topic: "Quantum", DifficultyScore: 0.8, ConfidenceScore: 0.2, EstimatedHours: 1}

	tasks := d.DecomposeTopic(topic, MustParseDate("2024-03-30"))
	require.Len(t, tasks, 4)
	for _, task := range tasks {
		assert.LessOrEqual(t, task.RequiredMinutes, 30)
	}
	assert.Equal(t, 8, tasks[0].Priority)
}

func TestDecomposeTopicCapsSessionsAndFloorsMinutes(t *testing.T) {
	d := NewDecomposer(defaultPreferences())

	big := d.DecomposeTopic(LearningTopic{ID: "big", Topic: "Big", DifficultyScore: 1, ConfidenceScore: 0, EstimatedHours: 10}, MustParseDate("2024-03-30"))
	assert.Len(t, big, 10)
	assert.Equal(t, 10, big[0].Priority)

	tiny := d.DecomposeTopic(LearningTopic{ID: "tiny", Topic: "Tiny", DifficultyScore: 0.5, ConfidenceScore: 0.5, EstimatedHours: 0.1}, MustParseDate("2024-03-30"))
	require.Len(t, tiny, 1)
	assert.Equal(t, 15, tiny[0].RequiredMinutes)
}

func TestTopicPriorityRounds(t *testing.T) {
	assert.Equal(t, 6, TopicPriority(LearningTopic{DifficultyScore: 0.6, ConfidenceScore: 0.5}))
	assert.Equal(t, 1, TopicPriority(LearningTopic{DifficultyScore: 0, ConfidenceScore: 1}))
}

func TestRevisionTask(t *testing.T) {
	d := NewDecomposer(defaultPreferences())
	source := &StudyTask{TaskID: "topic_0001", Subject: "Bio", Topic: "Cells", RequiredMinutes: 45, Priority: 1, DifficultyScore: 0.4, ConfidenceScore: 0.95, SourceTopicID: "cells"}

	revision := d.RevisionTask(source, MustParseDate("2024-03-07"), 2)
	assert.Equal(t, "revision_0001", revision.TaskID)
	assert.Equal(t, 22, revision.RequiredMinutes)
	assert.Equal(t, 1, revision.Priority)
	assert.Equal(t, 1.0, revision.ConfidenceScore)
	assert.Equal(t, TaskRevision, revision.TaskType)
	assert.Equal(t, StatusPending, revision.Status)
	require.NotNil(t, revision.ParentTaskID)
	assert.Equal(t, "topic_0001", *revision.ParentTaskID)
	assert.Equal(t, "cells", revision.SourceTopicID)
	assert.Equal(t, 2, revision.RevisionIteration)
	assert.Equal(t, "2024-03-07", revision.Deadline.String())

	source.RequiredMinutes = 20
	assert.Equal(t, 15, d.RevisionTask(source, MustParseDate("2024-03-07"), 1).RequiredMinutes)
}
