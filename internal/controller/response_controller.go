package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/formresponses/internal/dto"
	"github.com/lshigami/formresponses/internal/formsapi"
	"github.com/lshigami/formresponses/internal/service"
	"github.com/rs/zerolog/log"
)

type ResponseController struct {
	submissionService service.SubmissionService
	responseService   service.ResponseService
	reportService     service.ReportService
}

func NewResponseController(ss service.SubmissionService, rs service.ResponseService, rps service.ReportService) *ResponseController {
	return &ResponseController{
		submissionService: ss,
		responseService:   rs,
		reportService:     rps,
	}
}

// RegisterRoutes mounts the public endpoints on r.
func (c *ResponseController) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", c.Health)
	r.POST("/submit", c.Submit)
	r.GET("/responses/:response_id", c.GetResponse)
	r.GET("/forms/:form_id/responses", c.ListResponses)
	r.GET("/forms/:form_id/aggregate", c.Aggregate)
	r.GET("/forms/:form_id/export", c.Export)
}

// Health godoc
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /health [get]
func (c *ResponseController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// Submit godoc
// @Summary Submit answers to a form
// @Description Validates every answer against the form's current schema and stores them together. Nothing is stored when any answer is rejected.
// @Tags Responses
// @Accept json
// @Produce json
// @Param Authorization header string false "Bearer token, required when the form does not allow anonymous answers"
// @Param submission body dto.SubmitRequest true "Form id and answers"
// @Success 201 {object} dto.ResponseDTO
// @Failure 401 {object} dto.ErrorResponse "Login required"
// @Failure 422 {object} dto.ErrorResponse "Invalid body or rejected answer"
// @Failure 423 {object} dto.ErrorResponse "Form is locked"
// @Failure 502 {object} dto.ErrorResponse "Forms service unreachable"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /submit [post]
func (c *ResponseController) Submit(ctx *gin.Context) {
	var req dto.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Submit: failed to bind JSON")
		ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: "Invalid request body", Detail: err.Error()})
		return
	}

	resp, err := c.submissionService.Submit(ctx.Request.Context(), req, ctx.GetHeader("Authorization"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// GetResponse godoc
// @Summary Get one response
// @Tags Responses
// @Produce json
// @Param response_id path int true "Response ID"
// @Success 200 {object} dto.ResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Response not found"
// @Failure 422 {object} dto.ErrorResponse "Invalid response id"
// @Router /responses/{response_id} [get]
func (c *ResponseController) GetResponse(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("response_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: "Invalid response id", Detail: err.Error()})
		return
	}
	resp, err := c.responseService.GetResponse(uint(id))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// ListResponses godoc
// @Summary List a form's responses
// @Description Responses in submission order, each with its answers.
// @Tags Responses
// @Produce json
// @Param form_id path int true "Form ID"
// @Success 200 {array} dto.ResponseDTO
// @Failure 422 {object} dto.ErrorResponse "Invalid form id"
// @Router /forms/{form_id}/responses [get]
func (c *ResponseController) ListResponses(ctx *gin.Context) {
	formID, ok := formIDParam(ctx)
	if !ok {
		return
	}
	list, err := c.responseService.ListResponses(formID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, list)
}

// Aggregate godoc
// @Summary Count answer values per question
// @Description Maps question id to value to count. Every element of a list answer is counted.
// @Tags Reports
// @Produce json
// @Param form_id path int true "Form ID"
// @Success 200 {object} map[string]map[string]int
// @Failure 422 {object} dto.ErrorResponse "Invalid form id"
// @Router /forms/{form_id}/aggregate [get]
func (c *ResponseController) Aggregate(ctx *gin.Context) {
	formID, ok := formIDParam(ctx)
	if !ok {
		return
	}
	agg, err := c.reportService.Aggregate(formID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, agg)
}

// Export godoc
// @Summary Export responses as a spreadsheet
// @Description One row per response and one q{id} column per answered question.
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param form_id path int true "Form ID"
// @Success 200 {file} binary
// @Failure 422 {object} dto.ErrorResponse "Invalid form id"
// @Router /forms/{form_id}/export [get]
func (c *ResponseController) Export(ctx *gin.Context) {
	formID, ok := formIDParam(ctx)
	if !ok {
		return
	}
	file, err := c.reportService.Export(ctx.Request.Context(), formID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", "attachment; filename="+file.Filename)
	ctx.Data(http.StatusOK, file.ContentType, file.Data)
}

func formIDParam(ctx *gin.Context) (int, bool) {
	id, err := strconv.Atoi(ctx.Param("form_id"))
	if err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: "Invalid form id", Detail: err.Error()})
		return 0, false
	}
	return id, true
}

// writeError maps service and schema errors onto HTTP statuses.
func writeError(ctx *gin.Context, err error) {
	var (
		validationErr *service.ValidationError
		unavailable   *formsapi.RemoteUnavailableError
		fetchFailed   *formsapi.FetchFailedError
		malformed     *formsapi.MalformedSchemaError
	)
	switch {
	case errors.Is(err, service.ErrFormLocked):
		ctx.JSON(http.StatusLocked, dto.ErrorResponse{Message: "Form is locked", Detail: err.Error()})
	case errors.Is(err, service.ErrAuthRequired):
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Login required", Detail: err.Error()})
	case errors.Is(err, service.ErrResponseNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Response not found", Detail: err.Error()})
	case errors.As(err, &validationErr):
		ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: "Answer rejected", Detail: validationErr.Detail})
	case errors.As(err, &malformed):
		ctx.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Message: "Malformed form schema", Detail: malformed.Error()})
	case errors.As(err, &unavailable):
		ctx.JSON(http.StatusBadGateway, dto.ErrorResponse{Message: "Forms service unreachable", Detail: unavailable.Error()})
	case errors.As(err, &fetchFailed):
		status := fetchFailed.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		ctx.JSON(status, dto.ErrorResponse{Message: "Form schema unavailable", Detail: fetchFailed.Body})
	default:
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("Unhandled error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Internal server error"})
	}
}
