package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	"github.com/noah-isme/uni-timetable-api/pkg/export"
	"github.com/noah-isme/uni-timetable-api/pkg/storage"
)

type sessionDetailReader interface {
	ListDetailed(ctx context.Context, timetableID string) ([]models.TimetableSessionDetail, error)
}

type timetableLookup interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	Location  *time.Location
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       export.Format
	ExpiresAt    time.Time
}

// ExportService renders stored timetables and persists the files.
type ExportService struct {
	timetables timetableLookup
	sessions   sessionDetailReader
	storage    fileStorage
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(timetables timetableLookup, sessions sessionDetailReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ExportService{
		timetables: timetables,
		sessions:   sessions,
		storage:    store,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate renders the job's timetable and stores the file under the job id.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	format, err := export.ParseFormat(job.Format)
	if err != nil {
		return nil, err
	}
	exporter, err := export.New(format)
	if err != nil {
		return nil, err
	}
	doc, err := s.BuildDocument(ctx, job.TimetableID)
	if err != nil {
		return nil, err
	}
	payload, err := exporter.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}

	relPath, err := s.storage.Save(path.Join(job.ID, export.Filename(doc, format)), payload)
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

	s.logger.Debug("export rendered",
		zap.String("job_id", job.ID),
		zap.String("format", string(format)),
		zap.Int("rows", len(doc.Rows)),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// BuildDocument loads a stored timetable with display fields.
func (s *ExportService) BuildDocument(ctx context.Context, timetableID string) (export.Document, error) {
	record, err := s.timetables.FindByID(ctx, timetableID)
	if err != nil {
		return export.Document{}, fmt.Errorf("load timetable %s: %w", timetableID, err)
	}
	details, err := s.sessions.ListDetailed(ctx, timetableID)
	if err != nil {
		return export.Document{}, fmt.Errorf("load sessions: %w", err)
	}
	rows, err := BuildExportRows(details, s.cfg.Location)
	if err != nil {
		return export.Document{}, err
	}
	return export.Document{
		TimetableID: record.ID,
		Title: fmt.Sprintf("Timetable v%d (%s to %s)", record.Version,
			record.StartDate.Format(timetable.DateLayout), record.EndDate.Format(timetable.DateLayout)),
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,
	}, nil
}

// BuildExportRows denormalises stored sessions, anchoring times in loc.
func BuildExportRows(details []models.TimetableSessionDetail, loc *time.Location) ([]export.SessionRow, error) {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([]export.SessionRow, 0, len(details))
	for _, d := range details {
		session, err := sessionFromRow(d.TimetableSession)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", d.ID, err)
		}
		rows = append(rows, export.SessionRow{
			Date:        session.Date.Format(timetable.DateLayout),
			Weekday:     session.Date.Weekday().String(),
			Start:       session.Start.String(),
			End:         session.End.String(),
			ProgramCode: d.ProgramCode,
			SubjectCode: d.SubjectCode,
			SubjectName: d.SubjectName,
			SubjectKind: d.SubjectKind,
			Teacher:     d.TeacherName,
			RoomCode:    d.RoomCode,
			ProgramID:   d.ProgramID,
			SubjectID:   d.SubjectID,
			TeacherID:   d.TeacherID,
			RoomID:      d.RoomID,
			StartAt:     atClock(session.Date, session.Start, loc),
			EndAt:       atClock(session.Date, session.End, loc),
		})
	}
	return rows, nil
}

func atClock(date time.Time, c timetable.Clock, loc *time.Location) time.Time {
	minutes := int(c)
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.Token, error) {
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
