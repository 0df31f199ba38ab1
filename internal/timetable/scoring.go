package timetable

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
)

// DefaultHorizonDays normalises deadline urgency when no horizon is supplied.
const DefaultHorizonDays = 30

var typeBonuses = map[TaskType]float64{
	TaskExamPrep:        0.15,
	TaskRevision:        0.08,
	TaskInitialLearning: 0.05,
	TaskPractice:        0.02,
}

// ScoreWeights controls the contribution of each urgency component.
type ScoreWeights struct {
	Priority   float64 `json:"priority" yaml:"priority"`
	Difficulty float64 `json:"difficulty" yaml:"difficulty"`
	Deadline   float64 `json:"deadline" yaml:"deadline"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Type       float64 `json:"type" yaml:"type"`
}

// DefaultScoreWeights returns the stock weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Priority: 0.25, Difficulty: 0.15, Deadline: 0.35, Confidence: 0.15, Type: 0.10}
}

// Validate requires the weights to sum to roughly one.
func (w ScoreWeights) Validate() error {
	total := w.Priority + w.Difficulty + w.Deadline + w.Confidence + w.Type
	if total < 0.95 || total > 1.05 {
		return appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("weights should sum to ~1.0, got %.4f", total))
	}
	return nil
}

// ScoreBreakdown exposes every component behind a task's urgency.
type ScoreBreakdown struct {
	TaskID              string  `json:"task_id"`
	TotalScore          float64 `json:"total_score"`
	PriorityComponent   float64 `json:"priority"`
	DifficultyComponent float64 `json:"difficulty"`
	DeadlineComponent   float64 `json:"deadline"`
	ConfidenceComponent float64 `json:"confidence"`
	TypeComponent       float64 `json:"type"`
	DaysUntilDeadline   int     `json:"days_until_deadline"`
	Explanation         string  `json:"explanation"`
}

// RankedTask pairs a task with its score.
type RankedTask struct {
	Task      *StudyTask
	Score     float64
	Breakdown ScoreBreakdown
}

// UrgencyScorer computes deterministic urgency scores.
type UrgencyScorer struct {
	weights ScoreWeights
}

// NewUrgencyScorer uses the default weights when weights is nil.
func NewUrgencyScorer(weights *ScoreWeights) (*UrgencyScorer, error) {
	w := DefaultScoreWeights()
	if weights != nil {
		w = *weights
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &UrgencyScorer{weights: w}, nil
}

// Weights returns the active weighting.
func (s *UrgencyScorer) Weights() ScoreWeights { return s.weights }

// Score returns the clamped weighted urgency of task.
func (s *UrgencyScorer) Score(task *StudyTask, current Date, horizonDays int) float64 {
	return s.Breakdown(task, current, horizonDays).TotalScore
}

// Breakdown scores task and keeps each component.
func (s *UrgencyScorer) Breakdown(task *StudyTask, current Date, horizonDays int) ScoreBreakdown {
	days := DaysBetween(current, task.Deadline)
	b := ScoreBreakdown{
		TaskID:              task.TaskID,
		PriorityComponent:   float64(clampInt(task.Priority, 1, 10)) / 10.0,
		DifficultyComponent: Clamp(task.DifficultyScore, 0, 1),
		DeadlineComponent:   DeadlineComponent(days, horizonDays),
		ConfidenceComponent: 1 - Clamp(task.ConfidenceScore, 0, 1),
		TypeComponent:       typeBonuses[task.TaskType],
		DaysUntilDeadline:   days,
	}
	total := b.PriorityComponent*s.weights.Priority +
		b.DifficultyComponent*s.weights.Difficulty +
		b.DeadlineComponent*s.weights.Deadline +
		b.ConfidenceComponent*s.weights.Confidence +
		b.TypeComponent*s.weights.Type
	b.TotalScore = Clamp(total, 0, 1)
	b.Explanation = Explain(task, days)
	return b
}

// DeadlineComponent grows non-linearly as the deadline nears; overdue is maximal.
func DeadlineComponent(daysRemaining, horizonDays int) float64 {
	if daysRemaining <= 0 {
		return 1.0
	}
	if daysRemaining >= horizonDays {
		return 0.1
	}
	normalized := float64(daysRemaining) / float64(horizonDays)
	return math.Max(0.1, 1.0-math.Pow(normalized, 0.5))
}

// Explain summarises the factors driving a task's urgency.
func Explain(task *StudyTask, daysRemaining int) string {
	var factors []string

	switch {
	case task.Priority >= 8:
		factors = append(factors, "high priority")
	case task.Priority <= 3:
		factors = append(factors, "low priority")
	}

	switch {
	case daysRemaining <= 0:
		factors = append(factors, "OVERDUE")
	case daysRemaining <= 3:
		factors = append(factors, "deadline imminent")
	case daysRemaining <= 7:
		factors = append(factors, "deadline approaching")
	}

	switch {
	case task.ConfidenceScore < 0.3:
		factors = append(factors, "low confidence")
	case task.ConfidenceScore > 0.8:
		factors = append(factors, "high confidence")
	}

	if task.DifficultyScore > 0.7 {
		factors = append(factors, "high difficulty")
	}

	switch task.TaskType {
	case TaskExamPrep:
		factors = append(factors, "exam preparation")
	case TaskRevision:
		factors = append(factors, "revision task")
	}

	if len(factors) == 0 {
		return "Standard priority task"
	}
	return capitalize(strings.Join(factors, ", "))
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// Rank scores tasks and orders them by score descending, earlier deadline first on ties.
func (s *UrgencyScorer) Rank(tasks []*StudyTask, current Date, horizonDays int) []RankedTask {
	ranked := make([]RankedTask, 0, len(tasks))
	for _, task := range tasks {
		b := s.Breakdown(task, current, horizonDays)
		ranked = append(ranked, RankedTask{Task: task, Score: b.TotalScore, Breakdown: b})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Task.Deadline.Before(ranked[j].Task.Deadline)
	})
	return ranked
}

// FilterSchedulable drops completed tasks and tasks more than one day overdue.
func (s *UrgencyScorer) FilterSchedulable(tasks []*StudyTask, current Date) []*StudyTask {
	result := make([]*StudyTask, 0, len(tasks))
	for _, task := range tasks {
		if task.Status == StatusCompleted {
			continue
		}
		if DaysBetween(current, task.Deadline) < -1 {
			continue
		}
		result = append(result, task)
	}
	return result
}

// ScoreBatch maps task ids to urgency scores.
func (s *UrgencyScorer) ScoreBatch(tasks []*StudyTask, current Date, horizonDays int) map[string]float64 {
	scores := make(map[string]float64, len(tasks))
	for _, task := range tasks {
		scores[task.TaskID] = s.Score(task, current, horizonDays)
	}
	return scores
}
