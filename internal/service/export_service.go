package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/noticeboard/internal/models"
	appErrors "github.com/noah-isme/noticeboard/pkg/errors"
	"github.com/noah-isme/noticeboard/pkg/export"
)

type receiptRepository interface {
	ListReceipts(ctx context.Context, announcementID string) ([]models.ReadReceipt, error)
}

type editableAnnouncementLoader interface {
	GetForEdit(ctx context.Context, principal models.Principal, id string) (*models.Announcement, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered download.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Receipts    []models.ReadReceipt
}

// ExportService renders the read receipts of an announcement.
type ExportService struct {
	announcements editableAnnouncementLoader
	receipts      receiptRepository
	csv           csvRenderer
	pdf           pdfRenderer
	logger        *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(announcements editableAnnouncementLoader, receipts receiptRepository, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{announcements: announcements, receipts: receipts, csv: csv, pdf: pdf, logger: logger}
}

// ReadReceipts lists who read the announcement, rendered in format. Requires
// edit on announcement.
func (s *ExportService) ReadReceipts(ctx context.Context, principal models.Principal, announcementID string, format export.Format) (*ExportResult, error) {
	announcement, err := s.announcements.GetForEdit(ctx, principal, announcementID)
	if err != nil {
		return nil, err
	}
	receipts, err := s.receipts.ListReceipts(ctx, announcement.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load read receipts")
	}
	if receipts == nil {
		receipts = []models.ReadReceipt{}
	}

	result := &ExportResult{
		Filename:    export.Filename("receipts-"+announcement.ID, format),
		ContentType: format.ContentType(),
		Receipts:    receipts,
	}
	data := receiptDataset(receipts)
	switch format {
	case export.FormatCSV:
		result.Body, err = s.csv.Render(data)
	case export.FormatPDF:
		result.Body, err = s.pdf.Render(data, "Read receipts: "+announcement.Title)
	default:
		result.Body, err = json.Marshal(receipts)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render read receipts")
	}
	s.logger.Debug("read receipts exported",
		zap.String("announcement_id", announcement.ID),
		zap.String("format", string(format)),
		zap.Int("rows", len(receipts)),
	)
	return result, nil
}

func receiptDataset(receipts []models.ReadReceipt) export.Dataset {
	data := export.Dataset{Headers: []string{"User ID", "Username", "Read at"}}
	for _, r := range receipts {
		data.Rows = append(data.Rows, map[string]string{
			"User ID":  r.UserID,
			"Username": r.Username,
			"Read at":  r.ReadAt.UTC().Format(time.RFC3339),
		})
	}
	return data
}
