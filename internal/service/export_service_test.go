package service

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/train4best-api/internal/models"
	appErrors "github.com/noah-isme/train4best-api/pkg/errors"
	"github.com/noah-isme/train4best-api/pkg/storage"
)

type rosterStub struct {
	rows []models.RegistrationDetail
}

func (r rosterStub) ListByClass(ctx context.Context, classID string) ([]models.RegistrationDetail, error) {
	return r.rows, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *recordingAudit) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ref := "REF17000000000001234"
	roster := rosterStub{rows: []models.RegistrationDetail{{
		CourseRegistration: models.CourseRegistration{
			ID:                 "r1",
			RegistrationDate:   time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
			RegistrationStatus: models.RegistrationPending,
			PaymentStatus:      models.PaymentUnpaid,
			PaymentAmount:      1500000,
		},
		ParticipantName: "Jane Doe",
		Email:           "jane@example.com",
		ReferenceNumber: &ref,
	}}}
	audit := &recordingAudit{}
	svc := NewExportService(roster, newMemoryDB(testClass("class-1", 10)), store, storage.NewSignedURLSigner("secret", time.Hour), audit, zap.NewNop(), ExportConfig{APIPrefix: "/api/"})
	return svc, audit
}

func tokenFromURL(t *testing.T, raw string) string {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed.Query().Get("token")
}

func TestExportRosterCSVRoundTrip(t *testing.T) {
	svc, audit := newExportServiceForTest(t)

	res, err := svc.ExportRoster(context.Background(), "class-1", "CSV", &models.AuthContext{UserID: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, "csv", res.Format)
	assert.Equal(t, 1, res.Rows)
	assert.True(t, strings.HasPrefix(res.DownloadURL, "/api/exports/download?token="))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "admin-1", *audit.logs[0].UserID)

	file, err := svc.Open(tokenFromURL(t, res.DownloadURL))
	require.NoError(t, err)
	defer file.File.Close()
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Name, ".csv"))

	body, err := io.ReadAll(file.File)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Jane Doe")
	assert.Contains(t, string(body), "REF17000000000001234")
}

func TestExportRosterPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	res, err := svc.ExportRoster(context.Background(), "class-1", "pdf", nil)
	require.NoError(t, err)

	file, err := svc.Open(tokenFromURL(t, res.DownloadURL))
	require.NoError(t, err)
	defer file.File.Close()
	assert.Equal(t, "application/pdf", file.ContentType)
}

func TestExportRosterErrors(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.ExportRoster(context.Background(), "class-1", "xlsx", nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ExportRoster(context.Background(), "missing", "csv", nil)
	assert.ErrorIs(t, err, appErrors.ErrClassNotFound)

	_, err = svc.Open("tampered.token.value.sig")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestExportCleanupKeepsFreshFiles(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	_, err := svc.ExportRoster(context.Background(), "class-1", "csv", nil)
	require.NoError(t, err)

	removed, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}
