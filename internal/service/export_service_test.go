package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/study-planner-api/internal/models"
	"github.com/noah-isme/study-planner-api/internal/timetable"
	appErrors "github.com/noah-isme/study-planner-api/pkg/errors"
	"github.com/noah-isme/study-planner-api/pkg/storage"
)

type timetableSourceStub struct {
	record *models.Timetable
	output *timetable.Output
	err    error
}

func (s timetableSourceStub) LoadOutput(ctx context.Context, id string) (*models.Timetable, *timetable.Output, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.record, s.output, nil
}

func sampleExportOutput() *timetable.Output {
	monday := timetable.NewDaySchedule(timetable.MustParseDate("2024-03-04"))
	monday.AddSlot(timetable.TimeSlot{StartTime: timetable.NewClock(9, 0), EndTime: timetable.NewClock(9, 45), Subject: "Math", Topic: "Algebra", TaskID: "topic_0001", TaskType: timetable.TaskInitialLearning})
	monday.AddSlot(timetable.TimeSlot{StartTime: timetable.NewClock(9, 45), EndTime: timetable.NewClock(9, 55), IsBreak: true})
	tuesday := timetable.NewDaySchedule(timetable.MustParseDate("2024-03-05"))
	tuesday.AddSlot(timetable.TimeSlot{StartTime: timetable.NewClock(14, 30), EndTime: timetable.NewClock(15, 15), Subject: "Math", Topic: "Algebra", TaskID: "topic_0001_rev_1", TaskType: timetable.TaskRevision})

	return &timetable.Output{
		Schedule: map[string]*timetable.DaySchedule{"2024-03-05": tuesday, "2024-03-04": monday},
		Warnings: []timetable.CapacityWarning{{
			Date:     timetable.MustParseDate("2024-03-04"),
			Message:  "1 tasks could not be scheduled",
			Severity: timetable.SeverityWarning,
		}},
	}
}

func newExportServiceForTest(t *testing.T, source timetableSource) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(source, store, signer, ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}, zap.NewNop(), nil, nil)
	return svc, store
}

func TestBuildDataset(t *testing.T) {
	dataset := BuildDataset("Spring plan", sampleExportOutput())

	assert.Equal(t, "Spring plan", dataset.Title)
	assert.Equal(t, []string{"Date", "Day", "Start", "End", "Subject", "Topic", "Type", "Task ID"}, dataset.Headers)
	require.Len(t, dataset.Rows, 2)
	assert.Equal(t, map[string]string{
		"Date": "2024-03-04", "Day": "Monday", "Start": "09:00", "End": "09:45",
		"Subject": "Math", "Topic": "Algebra", "Type": "initial_learning", "Task ID": "topic_0001",
	}, dataset.Rows[0])
	assert.Equal(t, "2024-03-05", dataset.Rows[1]["Date"])
	assert.Equal(t, "14:30", dataset.Rows[1]["Start"])
	assert.Equal(t, []string{"[warning] 2024-03-04: 1 tasks could not be scheduled"}, dataset.Notes)

	empty := BuildDataset("", nil)
	assert.Empty(t, empty.Rows)
}

func TestExportServiceGenerateCSV(t *testing.T) {
	source := timetableSourceStub{record: &models.Timetable{ID: "tt-1", Title: "Spring Plan"}, output: sampleExportOutput()}
	svc, store := newExportServiceForTest(t, source)
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC) }

	job := &models.ExportJob{ID: "0123456789abcdef", TimetableID: "tt-1", Format: models.ExportFormatCSV}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "timetables/spring_plan_01234567_20240304_100000.csv", result.RelativePath)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.Equal(t, result.Token, extractToken(result.URL))
	assert.Equal(t, models.ExportFormatCSV, result.Format)

	file, err := store.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "Date,Day,Start,End,Subject,Topic,Type,Task ID\n2024-03-04,Monday,09:00,09:45,Math,Algebra,initial_learning,topic_0001\n"))

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, job.ID, jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGeneratePDF(t *testing.T) {
	source := timetableSourceStub{record: &models.Timetable{ID: "tt-1", Title: "Plan"}, output: sampleExportOutput()}
	svc, store := newExportServiceForTest(t, source)

	result, err := svc.Generate(context.Background(), &models.ExportJob{ID: "job-2", TimetableID: "tt-1", Format: models.ExportFormatPDF})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.RelativePath, ".pdf"))
	assert.Equal(t, "application/pdf", svc.ContentType(models.ExportFormatPDF))

	file, err := store.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	head := make([]byte, 5)
	_, err = io.ReadFull(file, head)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-", string(head))
}

func TestExportServiceGenerateErrors(t *testing.T) {
	svc, _ := newExportServiceForTest(t, timetableSourceStub{err: appErrors.ErrNotFound})

	_, err := svc.Generate(context.Background(), nil)
	assert.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ExportJob{ID: "job", Format: "xlsx"})
	assert.ErrorContains(t, err, "unsupported format")

	_, err = svc.Generate(context.Background(), &models.ExportJob{ID: "job", Format: models.ExportFormatCSV})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestExportServiceCleanup(t *testing.T) {
	svc, store := newExportServiceForTest(t, timetableSourceStub{})
	_, err := store.Save("timetables/old.csv", []byte("x"))
	require.NoError(t, err)

	deleted, err := svc.Cleanup(-time.Second)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	deleted, err = svc.Cleanup(time.Nanosecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"timetables/old.csv"}, deleted)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "timetable", sanitizeFilename(""))
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 200)), 60)
}
