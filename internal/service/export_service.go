package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/train4best-api/internal/dto"
	"github.com/noah-isme/train4best-api/internal/models"
	appErrors "github.com/noah-isme/train4best-api/pkg/errors"
	"github.com/noah-isme/train4best-api/pkg/export"
	"github.com/noah-isme/train4best-api/pkg/storage"
)

// Supported roster export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type rosterReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.RegistrationDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes roster export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders class rosters and hands out signed download links.
type ExportService struct {
	roster    rosterReader
	classes   classReader
	storage   fileStorage
	renderers map[string]export.Renderer
	signer    *storage.SignedURLSigner
	audit     auditLogWriter
	logger    *zap.Logger
	cfg       ExportConfig
}

// DownloadFile is an opened export ready to stream.
type DownloadFile struct {
	File        *os.File
	Name        string
	ContentType string
}

// NewExportService constructs an ExportService.
func NewExportService(roster rosterReader, classes classReader, store fileStorage, signer *storage.SignedURLSigner, audit auditLogWriter, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		roster:  roster,
		classes: classes,
		storage: store,
		renderers: map[string]export.Renderer{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		signer: signer,
		audit:  audit,
		logger: logger,
		cfg:    cfg,
	}
}

// ExportRoster renders the active roster of a class and stores it for download.
func (s *ExportService) ExportRoster(ctx context.Context, classID, format string, actor *models.AuthContext) (*dto.RosterExportResponse, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	class, err := s.classes.FindDetailByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrClassNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	rows, err := s.roster.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	payload, err := renderer.Render(rosterDataset(class, rows))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	exportID := uuid.NewString()
	filename := path.Join("rosters", class.ID, fmt.Sprintf("%s.%s", exportID, renderer.Extension()))
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store roster")
	}
	token, expiresAt, err := s.signer.Generate(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api"
	}

	if s.audit != nil {
		log := &models.AuditLog{Action: models.AuditActionRosterExport, Resource: "classes", ResourceID: &class.ID}
		if actor != nil {
			log.UserID = &actor.UserID
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to record export audit log", zap.Error(err))
		}
	}

	return &dto.RosterExportResponse{
		ExportID:    exportID,
		Format:      format,
		Rows:        len(rows),
		DownloadURL: fmt.Sprintf("%s/exports/download?token=%s", prefix, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Open validates a download token and opens the referenced file.
func (s *ExportService) Open(token string) (*DownloadFile, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link is invalid or expired")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	contentType := "application/octet-stream"
	for _, renderer := range s.renderers {
		if strings.HasSuffix(relPath, "."+renderer.Extension()) {
			contentType = renderer.ContentType()
		}
	}
	return &DownloadFile{File: file, Name: path.Base(relPath), ContentType: contentType}, nil
}

// Cleanup removes stored exports older than the result TTL.
func (s *ExportService) Cleanup(ctx context.Context) (int, error) {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.logger.Info("removed stale exports", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

func rosterDataset(class *models.ClassDetail, rows []models.RegistrationDetail) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("Roster %s (%s - %s)", class.Label(), class.StartDate.Format("2006-01-02"), class.EndDate.Format("2006-01-02")),
		Headers: []string{"No", "Participant", "Email", "Registered", "Status", "Payment", "Amount", "Reference"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for i, row := range rows {
		reference := ""
		if row.ReferenceNumber != nil {
			reference = *row.ReferenceNumber
		}
		data.Rows = append(data.Rows, []string{
			strconv.Itoa(i + 1),
			row.ParticipantName,
			row.Email,
			row.RegistrationDate.Format("2006-01-02 15:04"),
			string(row.RegistrationStatus),
			string(row.PaymentStatus),
			strconv.FormatFloat(row.PaymentAmount, 'f', 2, 64),
			reference,
		})
	}
	return data
}
