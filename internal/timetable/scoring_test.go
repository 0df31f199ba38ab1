package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
)

var scoringToday = MustParseDate("2024-03-04")

func scoringTask(id string, priority int, confidence float64, deadlineOffset int) *StudyTask {
	return &StudyTask{
		TaskID:          id,
		Subject:         "Math",
		Topic:           "Algebra",
		Deadline:        scoringToday.AddDays(deadlineOffset),
		RequiredMinutes: 45,
		Priority:        priority,
		DifficultyScore: 0.5,
		ConfidenceScore: confidence,
		Status:          StatusPending,
		TaskType:        TaskInitialLearning,
	}
}

func newDefaultScorer(t *testing.T) *UrgencyScorer {
	t.Helper()
	scorer, err := NewUrgencyScorer(nil)
	require.NoError(t, err)
	return scorer
}

func TestNewUrgencyScorerRejectsUnbalancedWeights(t *testing.T) {
	_, err := NewUrgencyScorer(&ScoreWeights{Priority: 0.1, Difficulty: 0.1, Deadline: 0.1, Confidence: 0.1, Type: 0.1})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidWeights))

	scorer, err := NewUrgencyScorer(&ScoreWeights{Priority: 0.3, Difficulty: 0.1, Deadline: 0.4, Confidence: 0.1, Type: 0.1})
	require.NoError(t, err)
	assert.Equal(t, 0.4, scorer.Weights().Deadline)
}

func TestDeadlineComponent(t *testing.T) {
	assert.Equal(t, 1.0, DeadlineComponent(-2, 30))
	assert.Equal(t, 1.0, DeadlineComponent(0, 30))
	assert.Equal(t, 0.1, DeadlineComponent(30, 30))
	assert.Equal(t, 0.1, DeadlineComponent(45, 30))
	assert.InDelta(t, 0.5, DeadlineComponent(10, 40), 1e-9)
	assert.Equal(t, 0.1, DeadlineComponent(29, 30))
}

func TestScoreBreakdownComponents(t *testing.T) {
	task := scoringTask("t1", 9, 0.5, 7)
	task.TaskType = TaskExamPrep

	b := newDefaultScorer(t).Breakdown(task, scoringToday, 10)

	assert.Equal(t, 0.9, b.PriorityComponent)
	assert.Equal(t, 0.5, b.DifficultyComponent)
	assert.InDelta(t, 0.16334, b.DeadlineComponent, 1e-4)
	assert.Equal(t, 0.5, b.ConfidenceComponent)
	assert.Equal(t, 0.15, b.TypeComponent)
	assert.Equal(t, 7, b.DaysUntilDeadline)
	assert.InDelta(t, 0.44717, b.TotalScore, 1e-4)
}

func TestScoreMonotonicity(t *testing.T) {
	scorer := newDefaultScorer(t)

	previous := -1.0
	for priority := 1; priority <= 10; priority++ {
		score := scorer.Score(scoringTask("p", priority, 0.5, 5), scoringToday, 30)
		assert.GreaterOrEqual(t, score, previous, "priority %d", priority)
		previous = score
	}

	previous = -1.0
	for _, confidence := range []float64{1, 0.8, 0.6, 0.4, 0.2, 0} {
		score := scorer.Score(scoringTask("c", 5, confidence, 5), scoringToday, 30)
		assert.GreaterOrEqual(t, score, previous, "confidence %.1f", confidence)
		previous = score
	}
}

func TestScoreOverdueDeadlineIsMaximal(t *testing.T) {
	b := newDefaultScorer(t).Breakdown(scoringTask("late", 5, 0.5, -4), scoringToday, 30)
	assert.Equal(t, 1.0, b.DeadlineComponent)
	assert.Equal(t, -4, b.DaysUntilDeadline)
	assert.LessOrEqual(t, b.TotalScore, 1.0)
}

func TestExplain(t *testing.T) {
	urgent := scoringTask("u", 9, 0.2, 2)
	urgent.DifficultyScore = 0.8
	urgent.TaskType = TaskExamPrep
	assert.Equal(t, "High priority, deadline imminent, low confidence, high difficulty, exam preparation", Explain(urgent, 2))

	assert.Equal(t, "Overdue", Explain(scoringTask("o", 5, 0.5, -1), -1))
	assert.Equal(t, "Standard priority task", Explain(scoringTask("s", 5, 0.5, 20), 20))

	revision := scoringTask("r", 2, 0.9, 6)
	revision.TaskType = TaskRevision
	assert.Equal(t, "Low priority, deadline approaching, high confidence, revision task", Explain(revision, 6))
}

func TestRankOrdersByScoreThenDeadline(t *testing.T) {
	scorer := newDefaultScorer(t)
	far := scoringTask("far", 5, 0.5, 40)
	nearer := scoringTask("nearer", 5, 0.5, 35)
	urgent := scoringTask("urgent", 9, 0.5, 1)

	ranked := scorer.Rank([]*StudyTask{far, nearer, urgent}, scoringToday, 30)
	require.Len(t, ranked, 3)
	assert.Equal(t, "urgent", ranked[0].Task.TaskID)
	assert.Equal(t, "nearer", ranked[1].Task.TaskID)
	assert.Equal(t, "far", ranked[2].Task.TaskID)
	assert.Equal(t, ranked[1].Score, ranked[2].Score)
}

func TestRankIsStableForIdenticalTasks(t *testing.T) {
	scorer := newDefaultScorer(t)
	tasks := []*StudyTask{scoringTask("a", 5, 0.5, 3), scoringTask("b", 5, 0.5, 3), scoringTask("c", 5, 0.5, 3)}

	ranked := scorer.Rank(tasks, scoringToday, 30)
	ids := []string{ranked[0].Task.TaskID, ranked[1].Task.TaskID, ranked[2].Task.TaskID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestFilterSchedulable(t *testing.T) {
	done := scoringTask("done", 5, 0.5, 3)
	done.MarkCompleted()
	tasks := []*StudyTask{
		done,
		scoringTask("stale", 5, 0.5, -2),
		scoringTask("grace", 5, 0.5, -1),
		scoringTask("open", 5, 0.5, 4),
	}

	kept := newDefaultScorer(t).FilterSchedulable(tasks, scoringToday)
	require.Len(t, kept, 2)
	assert.Equal(t, "grace", kept[0].TaskID)
	assert.Equal(t, "open", kept[1].TaskID)
}

func TestScoreBatch(t *testing.T) {
	scorer := newDefaultScorer(t)
	tasks := []*StudyTask{scoringTask("a", 3, 0.5, 3), scoringTask("b", 9, 0.5, 3)}

	scores := scorer.ScoreBatch(tasks, scoringToday, 30)
	require.Len(t, scores, 2)
	assert.Greater(t, scores["b"], scores["a"])
}
