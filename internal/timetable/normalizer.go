package timetable

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
)

// Record is a loosely typed input object as decoded from JSON or YAML.
type Record map[string]any

// eventNamespace seeds deterministic ids for events submitted without one.
var eventNamespace = uuid.MustParse("6f1d4f0e-8a43-5b2c-9d87-3c6e1a2b9f10")

// Normalizer coerces raw records into validated value types, filling defaults.
type Normalizer struct{}

// Events normalises every event record. The first invalid record aborts normalisation.
func (Normalizer) Events(records []Record) ([]FixedEvent, error) {
	events := make([]FixedEvent, 0, len(records))
	for i, record := range records {
		event, err := normalizeEvent(i, record)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func normalizeEvent(index int, record Record) (FixedEvent, error) {
	rawType, err := record.stringOf("event_type", "type")
	if err != nil {
		return FixedEvent{}, err
	}
	eventType := ParseEventType(strings.ToLower(strings.TrimSpace(rawType)))

	rawDate, ok := record.first("target_date", "date", "deadline")
	if !ok || rawDate == nil {
		return FixedEvent{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("events[%d]: target_date is required", index))
	}
	target, err := toDate(rawDate)
	if err != nil {
		return FixedEvent{}, err
	}

	priority, err := record.floatOf(5, "priority_level", "priority")
	if err != nil {
		return FixedEvent{}, err
	}
	effort, err := record.floatOf(2.0, "estimated_effort_hours", "effort_hours")
	if err != nil {
		return FixedEvent{}, err
	}
	subject, err := record.stringOr("Unknown", "subject")
	if err != nil {
		return FixedEvent{}, err
	}
	topic, err := record.stringOf("topic")
	if err != nil {
		return FixedEvent{}, err
	}
	description, err := record.stringOf("description")
	if err != nil {
		return FixedEvent{}, err
	}
	id, err := record.stringOf("id")
	if err != nil {
		return FixedEvent{}, err
	}
	if id == "" {
		id = uuid.NewSHA1(eventNamespace, []byte(fmt.Sprintf("%d|%s|%s|%s", index, subject, eventType, target))).String()
	}

	event := FixedEvent{
		ID:                   id,
		EventType:            eventType,
		Subject:              subject,
		Topic:                topic,
		TargetDate:           target,
		PriorityLevel:        int(Clamp(priority, 1, 10)),
		EstimatedEffortHours: effort,
		Description:          description,
	}
	if err := event.Validate(); err != nil {
		return FixedEvent{}, err
	}
	return event, nil
}

// Availability normalises the availability record. Unparseable excluded dates are skipped.
func (Normalizer) Availability(record Record) (DailyAvailability, error) {
	weekday, err := record.floatOf(4.0, "weekday_hours")
	if err != nil {
		return DailyAvailability{}, err
	}
	weekend, err := record.floatOf(6.0, "weekend_hours")
	if err != nil {
		return DailyAvailability{}, err
	}
	start, err := record.clockOf(NewClock(9, 0), "start_time")
	if err != nil {
		return DailyAvailability{}, err
	}
	end, err := record.clockOf(NewClock(21, 0), "end_time")
	if err != nil {
		return DailyAvailability{}, err
	}

	var excluded []Date
	if raw, ok := record.first("excluded_dates"); ok && raw != nil {
		values, ok := raw.([]any)
		if !ok {
			if strs, isStrings := raw.([]string); isStrings {
				for _, s := range strs {
					values = append(values, s)
				}
			} else {
				return DailyAvailability{}, appErrors.Clone(appErrors.ErrValidation, "excluded_dates must be a list")
			}
		}
		for _, value := range values {
			d, err := toDate(value)
			if err != nil {
				continue
			}
			excluded = append(excluded, d)
		}
	}

	availability := DailyAvailability{
		WeekdayHours:  weekday,
		WeekendHours:  weekend,
		StartTime:     start,
		EndTime:       end,
		ExcludedDates: excluded,
	}
	if err := availability.Validate(); err != nil {
		return DailyAvailability{}, err
	}
	return availability, nil
}

// Preferences normalises the preferences record. The buffer is clamped before validation.
func (Normalizer) Preferences(record Record) (StudyPreferences, error) {
	session, err := record.intOf(45, "session_length_minutes")
	if err != nil {
		return StudyPreferences{}, err
	}
	breakLength, err := record.intOf(15, "break_length_minutes")
	if err != nil {
		return StudyPreferences{}, err
	}
	maxSessions, err := record.intOf(6, "max_sessions_per_day")
	if err != nil {
		return StudyPreferences{}, err
	}
	maxSubjects, err := record.intOf(3, "max_subjects_per_day")
	if err != nil {
		return StudyPreferences{}, err
	}
	buffer, err := record.floatOf(0.15, "buffer_percentage")
	if err != nil {
		return StudyPreferences{}, err
	}
	preferMorning, err := record.boolOf(true, "prefer_morning")
	if err != nil {
		return StudyPreferences{}, err
	}
	gap, err := record.intOf(5, "min_session_gap_minutes")
	if err != nil {
		return StudyPreferences{}, err
	}

	prefs := StudyPreferences{
		SessionLengthMinutes: session,
		BreakLengthMinutes:   breakLength,
		MaxSessionsPerDay:    maxSessions,
		MaxSubjectsPerDay:    maxSubjects,
		BufferPercentage:     Clamp(buffer, 0.1, 0.3),
		PreferMorning:        preferMorning,
		MinSessionGapMinutes: gap,
	}
	if err := prefs.Validate(); err != nil {
		return StudyPreferences{}, err
	}
	return prefs, nil
}

// Topics normalises every topic record, defaulting ids to topic_<index>.
func (Normalizer) Topics(records []Record) ([]LearningTopic, error) {
	topics := make([]LearningTopic, 0, len(records))
	for i, record := range records {
		topic, err := normalizeTopic(i, record)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

func normalizeTopic(index int, record Record) (LearningTopic, error) {
	id, err := record.stringOr(fmt.Sprintf("topic_%d", index), "id")
	if err != nil {
		return LearningTopic{}, err
	}
	subject, err := record.stringOr("Unknown", "subject")
	if err != nil {
		return LearningTopic{}, err
	}
	name, err := record.stringOr(fmt.Sprintf("Topic %d", index), "topic", "name")
	if err != nil {
		return LearningTopic{}, err
	}
	difficulty, err := record.floatOf(0.5, "difficulty_score", "difficulty")
	if err != nil {
		return LearningTopic{}, err
	}
	confidence, err := record.floatOf(0.5, "confidence_score", "confidence")
	if err != nil {
		return LearningTopic{}, err
	}
	hours, err := record.floatOf(2.0, "estimated_hours")
	if err != nil {
		return LearningTopic{}, err
	}
	conceptHeavy, err := record.boolOf(false, "is_concept_heavy")
	if err != nil {
		return LearningTopic{}, err
	}
	prerequisites, err := record.stringsOf("prerequisites")
	if err != nil {
		return LearningTopic{}, err
	}

	topic := LearningTopic{
		ID:              id,
		Subject:         subject,
		Topic:           name,
		DifficultyScore: Clamp(difficulty, 0, 1),
		ConfidenceScore: Clamp(confidence, 0, 1),
		Prerequisites:   prerequisites,
		EstimatedHours:  hours,
		IsConceptHeavy:  conceptHeavy,
	}
	if err := topic.Validate(); err != nil {
		return LearningTopic{}, err
	}
	return topic, nil
}

// first returns the value of the first key present in the record.
func (r Record) first(keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := r[key]; ok {
			return value, true
		}
	}
	return nil, false
}

func (r Record) stringOf(keys ...string) (string, error) {
	return r.stringOr("", keys...)
}

func (r Record) stringOr(fallback string, keys ...string) (string, error) {
	raw, ok := r.first(keys...)
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case float64, float32, int, int64, int32, bool:
		return fmt.Sprint(v), nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a string", keys[0]))
	}
}

func (r Record) floatOf(fallback float64, keys ...string) (float64, error) {
	raw, ok := r.first(keys...)
	if !ok || raw == nil {
		return fallback, nil
	}
	value, err := toFloat(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be numeric", keys[0]))
	}
	if !isFinite(value) {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a finite number", keys[0]))
	}
	return value, nil
}

func (r Record) intOf(fallback int, keys ...string) (int, error) {
	value, err := r.floatOf(float64(fallback), keys...)
	if err != nil {
		return 0, err
	}
	if math.Abs(value) > math.MaxInt32 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is out of range", keys[0]))
	}
	return int(value), nil
}

func (r Record) boolOf(fallback bool, keys ...string) (bool, error) {
	raw, ok := r.first(keys...)
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a boolean", keys[0]))
		}
		return parsed, nil
	default:
		number, err := toFloat(v)
		if err != nil {
			return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a boolean", keys[0]))
		}
		return number != 0, nil
	}
}

func (r Record) clockOf(fallback Clock, keys ...string) (Clock, error) {
	raw, ok := r.first(keys...)
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case Clock:
		return v, nil
	case string:
		return ParseClock(v)
	default:
		return 0, appErrors.Clone(appErrors.ErrInvalidTime, fmt.Sprintf("cannot parse time: %v", v))
	}
}

func (r Record) stringsOf(keys ...string) ([]string, error) {
	raw, ok := r.first(keys...)
	if !ok || raw == nil {
		return []string{}, nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string{}, v...), nil
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			result = append(result, fmt.Sprint(item))
		}
		return result, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a list", keys[0]))
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case interface{ Float64() (float64, error) }:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", raw)
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func toDate(raw any) (Date, error) {
	switch v := raw.(type) {
	case Date:
		return v, nil
	case time.Time:
		return DateOf(v), nil
	case string:
		return ParseDate(v)
	default:
		return Date{}, appErrors.Clone(appErrors.ErrInvalidDate, fmt.Sprintf("cannot parse date: %v", v))
	}
}
