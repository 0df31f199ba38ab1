package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-planner-api/internal/dto"
	"github.com/noah-isme/study-planner-api/internal/middleware"
	"github.com/noah-isme/study-planner-api/internal/models"
	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
	"github.com/noah-isme/study-planner-api/pkg/response"
)

type timetablePlanner interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest, claims *models.JWTClaims) (*dto.GenerateTimetableResponse, bool, error)
	Sample(ctx context.Context) (*dto.GenerateTimetableResponse, bool, error)
	Validate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.ValidateTimetableResponse, error)
	List(ctx context.Context, query dto.ListTimetablesQuery, claims *models.JWTClaims) ([]dto.TimetableResponse, *models.Pagination, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*dto.TimetableResponse, error)
	Delete(ctx context.Context, id string, claims *models.JWTClaims) error
	MarkMissed(ctx context.Context, id string, req dto.MissedSessionRequest, claims *models.JWTClaims) (*dto.MissedSessionResponse, error)
	UpdateConfidence(ctx context.Context, id string, req dto.ConfidenceUpdateRequest, claims *models.JWTClaims) (*dto.ConfidenceUpdateResponse, error)
}

// TimetableHandler exposes timetable generation and saved timetable endpoints.
type TimetableHandler struct {
	service timetablePlanner
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetablePlanner) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Generate godoc
// @Summary Generate a study timetable
// @Description Runs the planner over the submitted events, topics, availability and preferences. Set save=true with a bearer token to persist the result.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	result, cacheHit, err := h.service.Generate(c.Request.Context(), req, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Mode == dto.ModeSaved {
		status = http.StatusCreated
	}
	middleware.SetCacheHit(c, cacheHit)
	setPlanMeta(c, result)
	response.JSON(c, status, result, nil, middleware.ExtractMeta(c))
}

// Sample godoc
// @Summary Generate a sample timetable
// @Description Plans the bundled example events and topics relative to today.
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable/sample [get]
func (h *TimetableHandler) Sample(c *gin.Context) {
	result, cacheHit, err := h.service.Sample(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	setPlanMeta(c, result)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

func setPlanMeta(c *gin.Context, result *dto.GenerateTimetableResponse) {
	if result == nil || result.Timetable == nil {
		return
	}
	middleware.SetPlanMeta(c, middleware.PlanMeta{
		TotalTasks:     result.Timetable.Metadata.TotalTasks,
		ScheduledTasks: result.Timetable.Metadata.ScheduledTasks,
		Warnings:       len(result.Timetable.Warnings),
	})
}

// Validate godoc
// @Summary Validate a generation payload
// @Description Normalises the payload without scheduling and reports what the planner understood.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/validate [post]
func (h *TimetableHandler) Validate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	result, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List saved timetables
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.ListTimetablesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a saved timetable
// @Tags Timetables
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a saved timetable
// @Tags Timetables
// @Security BearerAuth
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentClaims(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkMissed godoc
// @Summary Report a missed study session
// @Description Marks the task missed and appends an unscheduled, top-priority reschedule task.
// @Tags Timetables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timetable ID"
// @Param payload body dto.MissedSessionRequest true "Missed session"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/missed [post]
func (h *TimetableHandler) MarkMissed(c *gin.Context) {
	var req dto.MissedSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid missed session payload"))
		return
	}
	result, err := h.service.MarkMissed(c.Request.Context(), c.Param("id"), req, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// UpdateConfidence godoc
// @Summary Update topic confidence
// @Description Records a new confidence for a topic. A drop of more than 0.3 adds a revision task.
// @Tags Timetables
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Timetable ID"
// @Param payload body dto.ConfidenceUpdateRequest true "Confidence update"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/confidence [post]
func (h *TimetableHandler) UpdateConfidence(c *gin.Context) {
	var req dto.ConfidenceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confidence payload"))
		return
	}
	result, err := h.service.UpdateConfidence(c.Request.Context(), c.Param("id"), req, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
