package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
	"github.com/smartcampusmng/campus-fees-api/pkg/export"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Enabled bool
	MaxRows int
}

// ExportFile is a rendered export ready to stream as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders payment registers and outstanding fee lists as
// downloadable files. Rendering is synchronous; the result is streamed
// back on the same request.
type ExportService struct {
	payments paymentRepository
	fees     studentFeeRepository
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(payments paymentRepository, fees studentFeeRepository, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		payments: payments,
		fees:     fees,
		csv:      csv,
		pdf:      pdf,
		logger:   logger,
		cfg:      cfg,
	}
}

// PaymentRegister renders all payments for a period.
func (s *ExportService) PaymentRegister(ctx context.Context, semester, academicYear string, format ExportFormat) (*ExportFile, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	rows, err := s.payments.ListByPeriod(ctx, semester, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	if len(rows) > s.cfg.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("export exceeds %d rows, narrow the period", s.cfg.MaxRows))
	}

	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Receipt":      row.ReceiptNumber,
			"Student ID":   row.StudentID,
			"Fee":          row.FeeName,
			"Semester":     deref(row.Semester),
			"Year":         deref(row.AcademicYear),
			"Amount":       fmt.Sprintf("%.2f", row.Amount),
			"Method":       string(row.Method),
			"Recorded By":  row.RecordedBy,
			"Payment Date": row.PaymentDate.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers:      []string{"Receipt", "Student ID", "Fee", "Semester", "Year", "Amount", "Method", "Recorded By", "Payment Date"},
		Rows:         dataRows,
		RightAligned: map[string]bool{"Amount": true},
	}
	title := exportTitle("Payment Register", semester, academicYear)
	return s.render(dataset, title, format)
}

// OutstandingFees renders pending fees, optionally scoped to a period.
func (s *ExportService) OutstandingFees(ctx context.Context, semester, academicYear string, format ExportFormat) (*ExportFile, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	var (
		rows []models.StudentFeeDetail
		err  error
	)
	if semester != "" || academicYear != "" {
		rows, err = s.fees.ListByPeriodAndStatus(ctx, semester, academicYear, models.FeeStatusPending)
	} else {
		rows, err = s.fees.ListByStatus(ctx, models.FeeStatusPending)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending fees")
	}
	if len(rows) > s.cfg.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("export exceeds %d rows, narrow the period", s.cfg.MaxRows))
	}

	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Student ID": row.StudentID,
			"Fee":        row.FeeName,
			"Frequency":  string(row.Frequency),
			"Semester":   deref(row.Semester),
			"Year":       deref(row.AcademicYear),
			"Amount":     fmt.Sprintf("%.2f", row.Amount),
			"Due Date":   row.DueDate.UTC().Format("2006-01-02"),
			"Status":     string(row.Status),
			"Alerted":    fmt.Sprintf("%t", row.Alerted),
		})
	}
	dataset := export.Dataset{
		Headers:      []string{"Student ID", "Fee", "Frequency", "Semester", "Year", "Amount", "Due Date", "Status", "Alerted"},
		Rows:         dataRows,
		RightAligned: map[string]bool{"Amount": true},
	}
	title := exportTitle("Outstanding Fees", semester, academicYear)
	return s.render(dataset, title, format)
}

func (s *ExportService) render(dataset export.Dataset, title string, format ExportFormat) (*ExportFile, error) {
	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("%s_%s.%s", sanitizeFilename(title), time.Now().UTC().Format("20060102_150405"), format)
	s.logger.Info("export rendered",
		zap.String("title", title),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)))
	return &ExportFile{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

func exportTitle(base, semester, academicYear string) string {
	parts := []string{base}
	if semester != "" {
		parts = append(parts, semester)
	}
	if academicYear != "" {
		parts = append(parts, academicYear)
	}
	return strings.Join(parts, " ")
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "(", "", ")", "", "..", ".", "__", "_")
	result := strings.ToLower(replacer.Replace(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
