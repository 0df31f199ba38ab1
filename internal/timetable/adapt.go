package timetable

import "fmt"

// confidenceDropThreshold is the fall in confidence that triggers an extra revision.
const confidenceDropThreshold = 0.2

// HandleMissedSession marks the task missed and appends a pending clone with a priority boost.
// The clone is not allocated; callers re-run allocation themselves. Unknown ids leave out untouched.
func HandleMissedSession(out *Output, taskID string, current Date) (*StudyTask, bool) {
	if out == nil {
		return nil, false
	}
	task, ok := out.FindTask(taskID)
	if !ok {
		return nil, false
	}

	task.MarkMissed()
	rescheduled := task.CloneForReschedule(JoinID(taskID, "reschedule"))
	out.Tasks = append(out.Tasks, rescheduled)
	out.Warnings = append(out.Warnings, CapacityWarning{
		Date:          current,
		Message:       fmt.Sprintf("Task '%s' was missed and needs rescheduling", task.Topic),
		AffectedTasks: []string{taskID, rescheduled.TaskID},
		Severity:      SeverityWarning,
	})
	out.Metadata.TotalTasks = len(out.Tasks)
	out.Metadata.ScheduledTasks = len(out.ScheduledTasks())
	return rescheduled, true
}

// UpdateConfidence sets the confidence of every task tied to topicID. When the score falls by
// more than 0.2 a single revision task is returned for the caller to schedule. The schedule is not touched.
func UpdateConfidence(out *Output, topicID string, confidence float64) []*StudyTask {
	revisions := []*StudyTask{}
	if out == nil {
		return revisions
	}
	confidence = Clamp(confidence, 0, 1)

	for _, task := range out.Tasks {
		if task.SourceTopicID != topicID {
			continue
		}
		previous := task.ConfidenceScore
		task.ConfidenceScore = confidence
		if len(revisions) > 0 || confidence >= previous-confidenceDropThreshold {
			continue
		}
		parent := task.TaskID
		revisions = append(revisions, &StudyTask{
			TaskID:          JoinID(task.TaskID, "confidence", "revision"),
			Subject:         task.Subject,
			Topic:           task.Topic,
			Deadline:        task.Deadline,
			RequiredMinutes: max(minSessionMinutes, task.RequiredMinutes/2),
			Priority:        min(10, task.Priority+2),
			DifficultyScore: task.DifficultyScore,
			ConfidenceScore: confidence,
			Status:          StatusPending,
			TaskType:        TaskRevision,
			ParentTaskID:    &parent,
			SourceTopicID:   topicID,
		})
	}
	return revisions
}
