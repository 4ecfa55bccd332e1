package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/train4best-api/internal/dto"
	"github.com/noah-isme/train4best-api/internal/middleware"
	"github.com/noah-isme/train4best-api/internal/models"
	"github.com/noah-isme/train4best-api/internal/service"
	appErrors "github.com/noah-isme/train4best-api/pkg/errors"
	"github.com/noah-isme/train4best-api/pkg/response"
)

const registrationSuccessMessage = "Successfully registered for the course. Please complete the payment."

type registrationService interface {
	Register(ctx context.Context, authCtx *models.AuthContext, req dto.RegisterCourseRequest, meta service.RequestMeta) (*dto.RegistrationResponse, error)
	MyCourses(ctx context.Context, authCtx *models.AuthContext) ([]dto.MyCourse, bool, error)
}

// RegistrationHandler exposes course registration endpoints.
type RegistrationHandler struct {
	service registrationService
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(svc registrationService) *RegistrationHandler {
	return &RegistrationHandler{service: svc}
}

// Register godoc
// @Summary Register for a course class
// @Description Registers the caller (bearer token) or an email for anonymous checkout, reserving a seat and creating an unpaid payment.
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.RegisterCourseRequest true "Registration payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /course/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req dto.RegisterCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	res, err := h.service.Register(c.Request.Context(), authContextFrom(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, registrationSuccessMessage, res, nil, middleware.ExtractMeta(c))
}

// MyCourses godoc
// @Summary List my course registrations
// @Tags Registration
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /course/my-courses [get]
func (h *RegistrationHandler) MyCourses(c *gin.Context) {
	courses, cacheHit, err := h.service.MyCourses(c.Request.Context(), authContextFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, courses, nil, middleware.ExtractMeta(c))
}
