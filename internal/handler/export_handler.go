package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/train4best-api/internal/dto"
	"github.com/noah-isme/train4best-api/internal/models"
	"github.com/noah-isme/train4best-api/internal/service"
	appErrors "github.com/noah-isme/train4best-api/pkg/errors"
	"github.com/noah-isme/train4best-api/pkg/response"
)

type rosterExporter interface {
	ExportRoster(ctx context.Context, classID, format string, actor *models.AuthContext) (*dto.RosterExportResponse, error)
	Open(token string) (*service.DownloadFile, error)
}

// ExportHandler serves roster exports.
type ExportHandler struct {
	service rosterExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc rosterExporter) *ExportHandler {
	return &ExportHandler{service: svc}
}

// ExportRoster godoc
// @Summary Export a class roster
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param format query string false "csv or pdf"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course-schedules/{id}/registrations/export [post]
func (h *ExportHandler) ExportRoster(c *gin.Context) {
	res, err := h.service.ExportRoster(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", service.ExportFormatCSV), authContextFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Download godoc
// @Summary Download a generated export
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, err := h.service.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.File.Close()

	info, err := file.File.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.DataFromReader(http.StatusOK, info.Size(), file.ContentType, file.File, nil)
}
