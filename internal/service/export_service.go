package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/study-planner-api/internal/models"
	"github.com/noah-isme/study-planner-api/internal/timetable"
	"github.com/noah-isme/study-planner-api/pkg/export"
	"github.com/noah-isme/study-planner-api/pkg/storage"
)

var exportHeaders = []string{"Date", "Day", "Start", "End", "Subject", "Topic", "Type", "Task ID"}

type timetableSource interface {
	LoadOutput(ctx context.Context, id string) (*models.Timetable, *timetable.Output, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders saved timetables and persists the files for signed download.
type ExportService struct {
	timetables timetableSource
	storage    fileStorage
	renderers  map[models.ExportFormat]datasetRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(timetables timetableSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter(0)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		timetables: timetables,
		storage:    store,
		renderers: map[models.ExportFormat]datasetRenderer{
			models.ExportFormatCSV: csv,
			models.ExportFormatPDF: pdf,
		},
		signer: signer,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Generate renders the job's timetable and stores the file behind a signed URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, ok := s.renderers[job.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Format)
	}
	record, output, err := s.timetables.LoadOutput(ctx, job.TimetableID)
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(BuildDataset(record.Title, output))
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job, record), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("timetable export rendered",
		zap.String("job_id", job.ID),
		zap.String("timetable_id", job.TimetableID),
		zap.String("path", relPath),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// BuildDataset flattens the study slots of a timetable into export rows in date order.
// Warnings become notes below the table.
func BuildDataset(title string, output *timetable.Output) export.Dataset {
	dataset := export.Dataset{Title: title, Headers: exportHeaders, Rows: []map[string]string{}}
	if output == nil {
		return dataset
	}
	for _, key := range output.Dates() {
		day := output.Schedule[key]
		for _, slot := range day.Slots {
			if slot.IsBreak {
				continue
			}
			dataset.Rows = append(dataset.Rows, map[string]string{
				"Date":    key,
				"Day":     timetable.DayName(day.Date),
				"Start":   hhmm(slot.StartTime),
				"End":     hhmm(slot.EndTime),
				"Subject": slot.Subject,
				"Topic":   slot.Topic,
				"Type":    string(slot.TaskType),
				"Task ID": slot.TaskID,
			})
		}
	}
	for _, warning := range output.Warnings {
		dataset.Notes = append(dataset.Notes, fmt.Sprintf("[%s] %s: %s", warning.Severity, warning.Date, warning.Message))
	}
	return dataset
}

// ContentType reports the MIME type served for a format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	if renderer, ok := s.renderers[format]; ok {
		return renderer.ContentType()
	}
	return "application/octet-stream"
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob, record *models.Timetable) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	title := sanitizeFilename(strings.ToLower(record.Title))
	return fmt.Sprintf("timetables/%s_%s_%s.%s", title, shortID(job.ID), timestamp, job.Format)
}

func hhmm(c timetable.Clock) string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "timetable"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 60 {
		return result[:60]
	}
	return result
}
