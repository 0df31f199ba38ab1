package service

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/study-planner-api/internal/dto"
	"github.com/noah-isme/study-planner-api/internal/models"
	"github.com/noah-isme/study-planner-api/internal/timetable"
	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
)

//go:embed fixtures/sample_timetable.yaml
var sampleFixture []byte

const timetableCachePrefix = "timetable"

type timetableStore interface {
	Create(ctx context.Context, timetable *models.Timetable) error
	GetByID(ctx context.Context, id string) (*models.Timetable, error)
	ListByLearner(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	UpdateOutput(ctx context.Context, timetable *models.Timetable) error
	Delete(ctx context.Context, id string) error
}

// TimetableServiceConfig governs limits, caching and persistence of generated timetables.
type TimetableServiceConfig struct {
	Enabled        bool
	Persist        bool
	CacheTTL       time.Duration
	MaxEvents      int
	MaxTopics      int
	MaxEffortHours float64
	SampleFixture  string
}

// TimetableService runs the planning engine for HTTP callers and manages saved timetables.
type TimetableService struct {
	repo      timetableStore
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableServiceConfig
	now       func() time.Time
}

// NewTimetableService constructs the service. A nil repo disables saved timetables.
func NewTimetableService(repo timetableStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg TimetableServiceConfig) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	return &TimetableService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate builds a timetable for the request. The boolean reports a cache hit.
// Saving requires an authenticated caller and persistence to be configured.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest, claims *models.JWTClaims) (*dto.GenerateTimetableResponse, bool, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, false, err
	}
	if req.Save {
		if claims == nil {
			return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to save timetables")
		}
		if !s.persistenceEnabled() {
			return nil, false, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable persistence is disabled")
		}
	}

	output, cacheHit, err := s.run(ctx, req.ToInput(), req.Weights)
	if err != nil {
		return nil, false, err
	}

	resp := &dto.GenerateTimetableResponse{
		Mode:      dto.ModePreview,
		Message:   generatedMessage(output),
		Timetable: output,
	}
	if !req.Save {
		return resp, cacheHit, nil
	}

	record, err := s.save(ctx, req, output, claims.UserID)
	if err != nil {
		return nil, cacheHit, err
	}
	resp.Mode = dto.ModeSaved
	resp.TimetableID = &record.ID
	return resp, cacheHit, nil
}

// Sample generates a timetable from the bundled fixture with dates relative to today.
func (s *TimetableService) Sample(ctx context.Context) (*dto.GenerateTimetableResponse, bool, error) {
	if !s.cfg.Enabled {
		return nil, false, appErrors.ErrPlannerDisabled
	}
	input, err := s.loadSample()
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sample timetable")
	}
	output, cacheHit, err := s.run(ctx, input, nil)
	if err != nil {
		return nil, false, err
	}
	return &dto.GenerateTimetableResponse{
		Mode:      dto.ModePreview,
		Message:   fmt.Sprintf("Sample timetable with %d events and %d topics", output.Metadata.TotalEvents, output.Metadata.TotalTopics),
		Timetable: output,
	}, cacheHit, nil
}

// Validate normalises the request without scheduling. Normalisation problems are reported
// in the response body; only a disabled planner or malformed payload returns an error.
func (s *TimetableService) Validate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.ValidateTimetableResponse, error) {
	if err := s.checkRequest(req); err != nil {
		if appErrors.Is(err, appErrors.ErrPlannerDisabled) {
			return nil, err
		}
		return &dto.ValidateTimetableResponse{Valid: false, Error: appErrors.FromError(err).Message}, nil
	}
	scheduler, err := timetable.NewScheduler(req.ToInput(), s.engineOptions(req.Weights)...)
	if err != nil {
		return &dto.ValidateTimetableResponse{Valid: false, Error: appErrors.FromError(err).Message}, nil
	}
	availability := scheduler.Availability()
	return &dto.ValidateTimetableResponse{
		Valid:         true,
		EventsCount:   len(scheduler.Events()),
		TopicsCount:   len(scheduler.Topics()),
		WeekdayHours:  availability.WeekdayHours,
		WeekendHours:  availability.WeekendHours,
		SessionLength: scheduler.Preferences().SessionLengthMinutes,
		HorizonEnd:    scheduler.Horizon().String(),
	}, nil
}

// List returns the caller's saved timetables without their schedules.
func (s *TimetableService) List(ctx context.Context, query dto.ListTimetablesQuery, claims *models.JWTClaims) ([]dto.TimetableResponse, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !s.persistenceEnabled() {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable persistence is disabled")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list query")
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}

	start := time.Now()
	records, total, err := s.repo.ListByLearner(ctx, models.TimetableFilter{LearnerID: claims.UserID, Page: query.Page, PageSize: query.PageSize})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	s.metrics.ObserveDBQuery("timetables_list", time.Since(start))

	items := make([]dto.TimetableResponse, 0, len(records))
	for i := range records {
		items = append(items, dto.NewTimetableResponse(&records[i], nil))
	}
	return items, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}

// Get loads a saved timetable including its schedule.
func (s *TimetableService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*dto.TimetableResponse, error) {
	record, output, err := s.load(ctx, id, claims, false)
	if err != nil {
		return nil, err
	}
	resp := dto.NewTimetableResponse(record, output)
	return &resp, nil
}

// Delete removes a saved timetable owned by the caller.
func (s *TimetableService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	if _, _, err := s.load(ctx, id, claims, true); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	return nil
}

// MarkMissed flags a session as missed on a saved timetable and appends its reschedule task.
func (s *TimetableService) MarkMissed(ctx context.Context, id string, req dto.MissedSessionRequest, claims *models.JWTClaims) (*dto.MissedSessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid missed session payload")
	}
	current := timetable.DateOf(s.now())
	if req.CurrentDate != "" {
		parsed, err := timetable.ParseDate(req.CurrentDate)
		if err != nil {
			return nil, err
		}
		current = parsed
	}

	record, output, err := s.load(ctx, id, claims, true)
	if err != nil {
		return nil, err
	}
	clone, ok := timetable.HandleMissedSession(output, req.TaskID, current)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("task %s not found in timetable", req.TaskID))
	}
	if err := s.store(ctx, record, output); err != nil {
		return nil, err
	}
	s.logger.Info("session marked missed", zap.String("timetable_id", id), zap.String("task_id", req.TaskID), zap.String("reschedule_id", clone.TaskID))
	return &dto.MissedSessionResponse{Rescheduled: clone, Timetable: output}, nil
}

// UpdateConfidence records a new confidence for a topic on a saved timetable.
func (s *TimetableService) UpdateConfidence(ctx context.Context, id string, req dto.ConfidenceUpdateRequest, claims *models.JWTClaims) (*dto.ConfidenceUpdateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confidence payload")
	}
	record, output, err := s.load(ctx, id, claims, true)
	if err != nil {
		return nil, err
	}
	revisions := timetable.UpdateConfidence(output, req.TopicID, *req.NewConfidence)
	if err := s.store(ctx, record, output); err != nil {
		return nil, err
	}
	return &dto.ConfidenceUpdateResponse{RevisionTasks: revisions, Timetable: output}, nil
}

// LoadOutput returns a saved timetable and its decoded output for internal consumers such as exports.
func (s *TimetableService) LoadOutput(ctx context.Context, id string) (*models.Timetable, *timetable.Output, error) {
	if !s.persistenceEnabled() {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable persistence is disabled")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	output, err := decodeOutput(record)
	if err != nil {
		return nil, nil, err
	}
	return record, output, nil
}

// Authorize checks that the caller may read (or, when write is set, modify) the timetable.
func (s *TimetableService) Authorize(ctx context.Context, id string, claims *models.JWTClaims, write bool) error {
	_, _, err := s.load(ctx, id, claims, write)
	return err
}

func (s *TimetableService) checkRequest(req dto.GenerateTimetableRequest) error {
	if !s.cfg.Enabled {
		return appErrors.ErrPlannerDisabled
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	if s.cfg.MaxEvents > 0 && len(req.Events) > s.cfg.MaxEvents {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d events are allowed", s.cfg.MaxEvents))
	}
	if s.cfg.MaxTopics > 0 && len(req.Topics) > s.cfg.MaxTopics {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d topics are allowed", s.cfg.MaxTopics))
	}
	return nil
}

func (s *TimetableService) engineOptions(weights *timetable.ScoreWeights) []timetable.Option {
	options := []timetable.Option{timetable.WithLogger(s.logger), timetable.WithNow(s.now), timetable.WithMaxEffortHours(s.cfg.MaxEffortHours)}
	if weights != nil {
		options = append(options, timetable.WithWeights(*weights))
	}
	return options
}

// run executes the engine, serving identical requests for the same day from cache.
func (s *TimetableService) run(ctx context.Context, input timetable.Input, weights *timetable.ScoreWeights) (*timetable.Output, bool, error) {
	if input.CurrentDate == "" {
		input.CurrentDate = timetable.DateOf(s.now()).String()
	}
	key, keyErr := HashKey(timetableCachePrefix, input, weights)
	if keyErr != nil {
		s.logger.Warn("timetable cache key failed", zap.Error(keyErr))
	}

	if keyErr == nil {
		var cached timetable.Output
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			s.metrics.ObserveGeneration(OutcomeCached, 0)
			return &cached, true, nil
		}
	}

	start := time.Now()
	output, err := timetable.Generate(input, s.engineOptions(weights)...)
	if err != nil {
		s.metrics.ObserveGeneration(OutcomeInvalid, time.Since(start))
		if appErrors.FromError(err).Status == appErrors.ErrInternal.Status {
			return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable input")
		}
		return nil, false, err
	}
	s.metrics.ObserveGeneration(OutcomeGenerated, time.Since(start))
	severities := make([]string, 0, len(output.Warnings))
	for _, warning := range output.Warnings {
		severities = append(severities, string(warning.Severity))
	}
	s.metrics.ObservePlan(output.Metadata.ScheduledTasks, output.Metadata.TotalTasks, severities)

	if keyErr == nil {
		_ = s.cache.Set(ctx, key, output, s.cfg.CacheTTL)
	}
	return output, false, nil
}

func (s *TimetableService) save(ctx context.Context, req dto.GenerateTimetableRequest, output *timetable.Output, learnerID string) (*models.Timetable, error) {
	requestJSON, err := json.Marshal(req.ToInput())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable request")
	}
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable")
	}
	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Study plan %s", output.Metadata.GeneratedAt)
	}
	record := &models.Timetable{
		LearnerID:      learnerID,
		Title:          title,
		ReferenceDate:  output.Metadata.GeneratedAt.String(),
		HorizonEnd:     output.Metadata.HorizonEnd.String(),
		TotalTasks:     output.Metadata.TotalTasks,
		ScheduledTasks: output.Metadata.ScheduledTasks,
		WarningCount:   len(output.Warnings),
		Request:        requestJSON,
		Output:         outputJSON,
	}
	start := time.Now()
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timetable")
	}
	s.metrics.ObserveDBQuery("timetables_create", time.Since(start))
	s.logger.Info("timetable saved", zap.String("timetable_id", record.ID), zap.String("learner_id", learnerID), zap.Int("tasks", record.TotalTasks))
	return record, nil
}

func (s *TimetableService) store(ctx context.Context, record *models.Timetable, output *timetable.Output) error {
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable")
	}
	record.Output = outputJSON
	record.TotalTasks = output.Metadata.TotalTasks
	record.ScheduledTasks = output.Metadata.ScheduledTasks
	record.WarningCount = len(output.Warnings)
	start := time.Now()
	if err := s.repo.UpdateOutput(ctx, record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable")
	}
	s.metrics.ObserveDBQuery("timetables_update", time.Since(start))
	return nil
}

func (s *TimetableService) load(ctx context.Context, id string, claims *models.JWTClaims, write bool) (*models.Timetable, *timetable.Output, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	record, output, err := s.LoadOutput(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if record.LearnerID != claims.UserID {
		if write && claims.Role != models.RoleAdmin {
			return nil, nil, appErrors.ErrForbidden
		}
		if !write && !claims.CanReadAll() {
			return nil, nil, appErrors.ErrForbidden
		}
	}
	return record, output, nil
}

func (s *TimetableService) persistenceEnabled() bool {
	return s.cfg.Persist && s.repo != nil
}

func (s *TimetableService) loadSample() (timetable.Input, error) {
	raw := sampleFixture
	if s.cfg.SampleFixture != "" {
		data, err := os.ReadFile(s.cfg.SampleFixture)
		if err != nil {
			return timetable.Input{}, fmt.Errorf("read sample fixture: %w", err)
		}
		raw = data
	}
	var input timetable.Input
	if err := yaml.Unmarshal(raw, &input); err != nil {
		return timetable.Input{}, fmt.Errorf("decode sample fixture: %w", err)
	}

	today := timetable.DateOf(s.now())
	for _, event := range input.Events {
		offset, ok := event["offset_days"]
		if !ok {
			continue
		}
		days, ok := offset.(int)
		if !ok {
			return timetable.Input{}, fmt.Errorf("offset_days must be an integer, got %T", offset)
		}
		delete(event, "offset_days")
		event["target_date"] = today.AddDays(days).String()
	}
	input.CurrentDate = today.String()
	return input, nil
}

func decodeOutput(record *models.Timetable) (*timetable.Output, error) {
	var output timetable.Output
	if err := json.Unmarshal(record.Output, &output); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored timetable is corrupt")
	}
	if output.Schedule == nil {
		output.Schedule = map[string]*timetable.DaySchedule{}
	}
	if output.Tasks == nil {
		output.Tasks = []*timetable.StudyTask{}
	}
	if output.Warnings == nil {
		output.Warnings = []timetable.CapacityWarning{}
	}
	return &output, nil
}

func generatedMessage(output *timetable.Output) string {
	return fmt.Sprintf("Timetable generated with %d warning(s)", len(output.Warnings))
}
