package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/models"
	appErrors "github.com/noah-isme/prhi-portal-api/pkg/errors"
	"github.com/noah-isme/prhi-portal-api/pkg/export"
)

// ExportFormat selects a rendered representation.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult is a rendered file ready for download.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type resumeRenderer interface {
	Render(resume export.Resume) ([]byte, error)
}

// ExportService renders applicant rosters and resumes.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	resume resumeRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, resume resumeRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if resume == nil {
		resume = export.NewResumeRenderer()
	}
	return &ExportService{csv: csv, pdf: pdf, resume: resume, logger: logger, now: time.Now}
}

// Applicants renders the applicant roster.
func (s *ExportService) Applicants(applicants []models.User, format ExportFormat) (*ExportResult, error) {
	dataset := applicantDataset(applicants)
	stamp := s.now().Format("20060102")

	var (
		payload []byte
		err     error
		result  ExportResult
	)
	switch format {
	case ExportCSV, "":
		payload, err = s.csv.Render(dataset)
		result = ExportResult{FileName: fmt.Sprintf("applicants-%s.csv", stamp), ContentType: "text/csv"}
	case ExportPDF:
		payload, err = s.pdf.Render(dataset, "Applicant Roster")
		result = ExportResult{FileName: fmt.Sprintf("applicants-%s.pdf", stamp), ContentType: "application/pdf"}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}
	if err != nil {
		s.logger.Error("render applicant export", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	result.Data = payload
	return &result, nil
}

// Resume renders an applicant's resume.
func (s *ExportService) Resume(resume export.Resume) (*ExportResult, error) {
	payload, err := s.resume.Render(resume)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Please fill out all required fields.")
	}
	name := strings.ReplaceAll(strings.TrimSpace(resume.FullName), " ", "_")
	return &ExportResult{FileName: name + "_Resume.pdf", ContentType: "application/pdf", Data: payload}, nil
}

func applicantDataset(applicants []models.User) export.Dataset {
	dataset := export.Dataset{Headers: []string{"Name", "Email", "Status", "Score", "Batch"}}
	for _, u := range applicants {
		score := "-"
		if u.AssessmentScore != nil && u.AssessmentTotal != nil {
			score = strconv.Itoa(*u.AssessmentScore) + "/" + strconv.Itoa(*u.AssessmentTotal)
		}
		dataset.AddRow(u.Name, u.Email, string(u.AssessmentStatus), score, u.Batch)
	}
	return dataset
}
