package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-planner-api/internal/dto"
	"github.com/noah-isme/study-planner-api/internal/models"
	"github.com/noah-isme/study-planner-api/internal/timetable"
	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
)

type timetablePlannerMock struct {
	generated   dto.GenerateTimetableRequest
	claims      *models.JWTClaims
	generateErr error
	cacheHit    bool
	saved       bool
	listQuery   dto.ListTimetablesQuery
	getErr      error
	deletedID   string
	missed      dto.MissedSessionRequest
	confidence  dto.ConfidenceUpdateRequest
	output      *timetable.Output
}

func (m *timetablePlannerMock) Generate(_ context.Context, req dto.GenerateTimetableRequest, claims *models.JWTClaims) (*dto.GenerateTimetableResponse, bool, error) {
	m.generated = req
	m.claims = claims
	if m.generateErr != nil {
		return nil, false, m.generateErr
	}
	output := m.output
	if output == nil {
		output = &timetable.Output{}
	}
	resp := &dto.GenerateTimetableResponse{Mode: dto.ModePreview, Message: "Timetable generated with 0 warning(s)", Timetable: output}
	if m.saved {
		id := "tt-1"
		resp.Mode = dto.ModeSaved
		resp.TimetableID = &id
	}
	return resp, m.cacheHit, nil
}

func (m *timetablePlannerMock) Sample(context.Context) (*dto.GenerateTimetableResponse, bool, error) {
	return &dto.GenerateTimetableResponse{Mode: dto.ModePreview, Timetable: &timetable.Output{}}, m.cacheHit, nil
}

func (m *timetablePlannerMock) Validate(_ context.Context, req dto.GenerateTimetableRequest) (*dto.ValidateTimetableResponse, error) {
	return &dto.ValidateTimetableResponse{Valid: true, EventsCount: len(req.Events)}, nil
}

func (m *timetablePlannerMock) List(_ context.Context, query dto.ListTimetablesQuery, claims *models.JWTClaims) ([]dto.TimetableResponse, *models.Pagination, error) {
	m.listQuery = query
	m.claims = claims
	return []dto.TimetableResponse{{ID: "tt-1", LearnerID: claims.UserID}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *timetablePlannerMock) Get(_ context.Context, id string, _ *models.JWTClaims) (*dto.TimetableResponse, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &dto.TimetableResponse{ID: id}, nil
}

func (m *timetablePlannerMock) Delete(_ context.Context, id string, _ *models.JWTClaims) error {
	m.deletedID = id
	return nil
}

func (m *timetablePlannerMock) MarkMissed(_ context.Context, _ string, req dto.MissedSessionRequest, _ *models.JWTClaims) (*dto.MissedSessionResponse, error) {
	m.missed = req
	return &dto.MissedSessionResponse{Rescheduled: &timetable.StudyTask{TaskID: req.TaskID + "_reschedule"}}, nil
}

func (m *timetablePlannerMock) UpdateConfidence(_ context.Context, _ string, req dto.ConfidenceUpdateRequest, _ *models.JWTClaims) (*dto.ConfidenceUpdateResponse, error) {
	m.confidence = req
	return &dto.ConfidenceUpdateResponse{RevisionTasks: []*timetable.StudyTask{}}, nil
}

func TestTimetableHandlerGeneratePreview(t *testing.T) {
	mock := &timetablePlannerMock{cacheHit: true, output: &timetable.Output{
		Metadata: timetable.Metadata{TotalTasks: 3, ScheduledTasks: 2},
		Warnings: []timetable.CapacityWarning{{Message: "Not enough time", Severity: timetable.SeverityWarning}},
	}}
	handler := NewTimetableHandler(mock)

	c, w := newGinContext(http.MethodPost, "/timetable/generate", `{"events":[{"subject":"Math","date":"2024-03-11"}],"current_date":"2024-03-04"}`)
	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mock.generated.Events, 1)
	assert.Equal(t, "Math", mock.generated.Events[0]["subject"])
	assert.Equal(t, "2024-03-04", mock.generated.CurrentDate)
	assert.Nil(t, mock.claims)

	envelope := decodeEnvelope(w)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.EqualValues(t, 2, envelope.Meta["scheduled_tasks"])
	assert.EqualValues(t, 1, envelope.Meta["unscheduled_tasks"])
	assert.EqualValues(t, 1, envelope.Meta["warnings"])
	var data struct {
		Mode string `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, dto.ModePreview, data.Mode)
}

func TestTimetableHandlerGenerateSavedReturnsCreated(t *testing.T) {
	mock := &timetablePlannerMock{saved: true}
	handler := NewTimetableHandler(mock)

	c, w := newGinContext(http.MethodPost, "/timetable/generate", `{"save":true}`)
	withClaims(c, "learner-1", models.RoleLearner)
	handler.Generate(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mock.claims)
	assert.Equal(t, "learner-1", mock.claims.UserID)
	assert.True(t, mock.generated.Save)
}

func TestTimetableHandlerGenerateRejectsMalformedJSON(t *testing.T) {
	handler := NewTimetableHandler(&timetablePlannerMock{})

	c, w := newGinContext(http.MethodPost, "/timetable/generate", `{"events":`)
	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(w).Error["code"])
}

func TestTimetableHandlerGenerateServiceError(t *testing.T) {
	handler := NewTimetableHandler(&timetablePlannerMock{generateErr: appErrors.Clone(appErrors.ErrValidation, "events[0]: target_date is required")})

	c, w := newGinContext(http.MethodPost, "/timetable/generate", `{}`)
	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "events[0]: target_date is required", decodeEnvelope(w).Error["message"])
}

func TestTimetableHandlerSampleAndValidate(t *testing.T) {
	handler := NewTimetableHandler(&timetablePlannerMock{})

	c, w := newGinContext(http.MethodGet, "/timetable/sample", nil)
	handler.Sample(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeEnvelope(w).Meta["cache_hit"])

	c, w = newGinContext(http.MethodPost, "/timetable/validate", `{"events":[{"subject":"Math"},{"subject":"Biology"}]}`)
	handler.Validate(c)
	require.Equal(t, http.StatusOK, w.Code)
	var data dto.ValidateTimetableResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(w).Data, &data))
	assert.True(t, data.Valid)
	assert.Equal(t, 2, data.EventsCount)
}

func TestTimetableHandlerListBindsQuery(t *testing.T) {
	mock := &timetablePlannerMock{}
	handler := NewTimetableHandler(mock)

	c, w := newGinContext(http.MethodGet, "/timetables?page=2&page_size=5", nil)
	withClaims(c, "learner-1", models.RoleLearner)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, mock.listQuery.Page)
	assert.Equal(t, 5, mock.listQuery.PageSize)
	assert.EqualValues(t, 1, decodeEnvelope(w).Pagination["total_count"])
}

func TestTimetableHandlerGetNotFound(t *testing.T) {
	handler := NewTimetableHandler(&timetablePlannerMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "timetable not found")})

	c, w := newGinContext(http.MethodGet, "/timetables/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerDelete(t *testing.T) {
	mock := &timetablePlannerMock{}
	handler := NewTimetableHandler(mock)

	c, w := newGinContext(http.MethodDelete, "/timetables/tt-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.Delete(c)

	// gin defers writing a bare status until the response is flushed.
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "tt-1", mock.deletedID)
}

func TestTimetableHandlerAdaptations(t *testing.T) {
	mock := &timetablePlannerMock{}
	handler := NewTimetableHandler(mock)

	c, w := newGinContext(http.MethodPost, "/timetables/tt-1/missed", `{"task_id":"event_0001","current_date":"2024-03-05"}`)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.MarkMissed(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "event_0001", mock.missed.TaskID)
	var missed struct {
		Rescheduled struct {
			TaskID string `json:"task_id"`
		} `json:"rescheduled_task"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(w).Data, &missed))
	assert.Equal(t, "event_0001_reschedule", missed.Rescheduled.TaskID)

	c, w = newGinContext(http.MethodPost, "/timetables/tt-1/confidence", `{"topic_id":"alg","new_confidence":0.2}`)
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}
	handler.UpdateConfidence(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alg", mock.confidence.TopicID)
	require.NotNil(t, mock.confidence.NewConfidence)
	assert.Equal(t, 0.2, *mock.confidence.NewConfidence)
}
