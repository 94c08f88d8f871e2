package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/schoolbot/internal/models"
	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
	"github.com/noah-isme/schoolbot/pkg/export"
)

// Export formats.
const (
	FormatPDF = "pdf"
	FormatCSV = "csv"
)

var exportHeaders = []string{"ID", "Student", "Assignment", "Submitted", "Grade"}

// ExportFile is a rendered export ready to be sent over chat.
type ExportFile struct {
	Filename string
	Data     []byte
}

// DBQueryRecorder observes storage read timings.
type DBQueryRecorder interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// ExportService renders a teacher's submitted works into downloadable files.
type ExportService struct {
	assignments AssignmentRepo
	pdf         *export.PDFExporter
	csv         *export.CSVExporter
	metrics     DBQueryRecorder
	enabled     bool
}

// NewExportService constructs an ExportService. The metrics recorder is
// optional.
func NewExportService(assignments AssignmentRepo, enabled bool, metrics DBQueryRecorder) *ExportService {
	return &ExportService{
		assignments: assignments,
		pdf:         export.NewPDFExporter(),
		csv:         export.NewCSVExporter(),
		metrics:     metrics,
		enabled:     enabled,
	}
}

// Enabled reports whether exports are switched on.
func (s *ExportService) Enabled() bool {
	return s.enabled
}

// SubmittedWorks renders the teacher's submitted works in the given format.
func (s *ExportService) SubmittedWorks(ctx context.Context, teacherUsername, format string) (*ExportFile, error) {
	if !s.enabled {
		return nil, apperrors.Clone(apperrors.ErrForbidden, "exports are disabled")
	}

	start := time.Now()
	works, err := s.assignments.SubmittedByTeacher(ctx, teacherUsername, 500)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("export_submitted_works", time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	if len(works) == 0 {
		return nil, apperrors.Clone(apperrors.ErrNotFound, "no submitted works to export")
	}

	data := buildWorksDataset(works)
	stamp := time.Now().UTC().Format("2006-01-02")

	switch format {
	case FormatCSV:
		raw, err := s.csv.Render(data)
		if err != nil {
			return nil, fmt.Errorf("export works: %w", err)
		}
		return &ExportFile{Filename: fmt.Sprintf("works_%s.csv", stamp), Data: raw}, nil
	case FormatPDF:
		raw, err := s.pdf.Render(data, "Submitted works")
		if err != nil {
			return nil, fmt.Errorf("export works: %w", err)
		}
		return &ExportFile{Filename: fmt.Sprintf("works_%s.pdf", stamp), Data: raw}, nil
	default:
		return nil, apperrors.Clone(apperrors.ErrValidation, "format must be pdf or csv")
	}
}

func buildWorksDataset(works []models.SubmittedWork) export.Dataset {
	rows := make([]map[string]string, 0, len(works))
	for _, w := range works {
		grade := "-"
		if w.Grade != nil {
			grade = strconv.Itoa(*w.Grade)
		}
		submitted := ""
		if w.SubmittedAt != nil {
			submitted = w.SubmittedAt.UTC().Format("2006-01-02 15:04")
		}
		rows = append(rows, map[string]string{
			"ID":         strconv.FormatInt(w.ID, 10),
			"Student":    w.StudentName,
			"Assignment": w.Body,
			"Submitted":  submitted,
			"Grade":      grade,
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
