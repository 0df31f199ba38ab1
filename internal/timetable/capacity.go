package timetable

// DayCapacity tracks the remaining budget of one day during allocation.
type DayCapacity struct {
	Date             Date
	TotalMinutes     int
	AvailableMinutes int
	MaxSessions      int
	SessionsUsed     int
	SubjectsUsed     map[string]struct{}
	LastTopic        string
	NextAvailable    Clock
}

// CanFitSession checks minutes, session count, subject limit and back-to-back topic repetition.
func (c *DayCapacity) CanFitSession(minutes int, subject, topic string, maxSubjects int) bool {
	if c.AvailableMinutes < minutes {
		return false
	}
	if c.SessionsUsed >= c.MaxSessions {
		return false
	}
	if _, used := c.SubjectsUsed[subject]; !used && len(c.SubjectsUsed) >= maxSubjects {
		return false
	}
	if c.SessionsUsed > 0 && c.LastTopic == topic {
		return false
	}
	return true
}

// Allocate consumes capacity for one session.
func (c *DayCapacity) Allocate(minutes int, subject, topic string) {
	c.AvailableMinutes -= minutes
	c.SessionsUsed++
	if c.SubjectsUsed == nil {
		c.SubjectsUsed = map[string]struct{}{}
	}
	c.SubjectsUsed[subject] = struct{}{}
	c.LastTopic = topic
}

// UsedFraction is the share of total minutes already consumed, buffer included.
func (c *DayCapacity) UsedFraction() float64 {
	return SafeDivide(float64(c.TotalMinutes-c.AvailableMinutes), float64(c.TotalMinutes), 0)
}

// CapacityMap indexes day capacities by YYYY-MM-DD.
type CapacityMap map[string]*DayCapacity

// CapacityPlanner derives day budgets from availability and preferences.
type CapacityPlanner struct {
	availability DailyAvailability
	preferences  StudyPreferences
}

// NewCapacityPlanner binds the planner to one learner's settings.
func NewCapacityPlanner(availability DailyAvailability, preferences StudyPreferences) *CapacityPlanner {
	return &CapacityPlanner{availability: availability, preferences: preferences}
}

// Build creates a capacity entry for each day in [start, end], holding back the reserve buffer.
func (p *CapacityPlanner) Build(start, end Date) CapacityMap {
	capacities := make(CapacityMap)
	for _, day := range DateRange(start, end) {
		total := HoursToMinutes(p.availability.HoursFor(day))
		buffer := int(float64(total) * p.preferences.BufferPercentage)
		capacities[day.String()] = &DayCapacity{
			Date:             day,
			TotalMinutes:     total,
			AvailableMinutes: total - buffer,
			MaxSessions:      p.preferences.MaxSessionsPerDay,
			SubjectsUsed:     map[string]struct{}{},
			NextAvailable:    p.availability.StartTime,
		}
	}
	return capacities
}

// TotalCapacity sums the raw minutes of every day.
func (m CapacityMap) TotalCapacity() int {
	total := 0
	for _, c := range m {
		total += c.TotalMinutes
	}
	return total
}

// RemainingCapacity sums the minutes still available.
func (m CapacityMap) RemainingCapacity() int {
	total := 0
	for _, c := range m {
		total += c.AvailableMinutes
	}
	return total
}
