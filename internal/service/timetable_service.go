package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	"github.com/noah-isme/uni-timetable-api/pkg/database"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

type timetableRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error
	ArchivePublished(ctx context.Context, exec sqlx.ExtContext, keepID string) (int64, error)
}

type timetableSessionRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.TimetableSession) error
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSession, error)
}

type inputsLoader interface {
	Inputs(ctx context.Context, programIDs []int64) (timetable.Inputs, error)
	Invalidate(ctx context.Context)
}

// TimetableService runs the generator, keeps proposals between generate and
// save, and manages stored timetable versions.
type TimetableService struct {
	timetables timetableRepository
	sessions   timetableSessionRepository
	loader     inputsLoader
	tx         database.TxBeginner
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
	generator  timetable.Config
	store      *proposalStore
}

// TimetableServiceConfig governs generator behaviour.
type TimetableServiceConfig struct {
	Generator   timetable.Config
	ProposalTTL time.Duration
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	timetables timetableRepository,
	sessions timetableSessionRepository,
	loader inputsLoader,
	tx database.TxBeginner,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	return &TimetableService{
		timetables: timetables,
		sessions:   sessions,
		loader:     loader,
		tx:         tx,
		validator:  validate,
		metrics:    metrics,
		logger:     logger,
		generator:  cfg.Generator,
		store:      newProposalStore(cfg.ProposalTTL),
	}
}

// Generate builds a proposal. A cancelled generation returns the partial
// response together with an ErrCancelled error and is not stored.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	request, err := req.ToRequest()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}

	var inputs timetable.Inputs
	if len(request.ProgramIDs) > 0 {
		inputs, err = s.loader.Inputs(ctx, request.ProgramIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduling inputs")
		}
	}

	snap, err := timetable.Load(request, inputs, s.generator)
	if err != nil {
		return nil, mapGeneratorError(err)
	}

	start := time.Now()
	report, err := timetable.Generate(ctx, snap)
	s.metrics.ObserveGeneration(report, time.Since(start))
	if err != nil {
		var cancelled *timetable.CancelledError
		if errors.As(err, &cancelled) {
			s.logger.Info("timetable generation cancelled", zap.Int("slots_considered", cancelled.SlotsConsidered))
			return dto.NewGenerateTimetableResponse("", report), mapGeneratorError(err)
		}
		s.logger.Error("timetable generation failed", zap.Error(err))
		return nil, mapGeneratorError(err)
	}

	proposal := timetableProposal{
		ID:          uuid.NewString(),
		Request:     snap.Request(),
		Report:      report,
		RequestedAt: time.Now().UTC(),
	}
	s.store.Save(proposal)

	s.logger.Info("timetable proposal generated",
		zap.String("proposal_id", proposal.ID),
		zap.Int("slots_considered", report.Stats.SlotsConsidered),
		zap.Int("sessions", report.Stats.SchedulesCreated),
		zap.Int("conflicts", report.Stats.ConflictsDetected),
		zap.Int("underserved", report.Stats.SubjectsUnderserved),
		zap.Duration("took", time.Since(start)),
	)
	return dto.NewGenerateTimetableResponse(proposal.ID, report), nil
}

// Save persists a proposal as a new timetable version in one transaction.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save timetable payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if len(proposal.Report.Sessions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "proposal has no sessions to save")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	meta, err := json.Marshal(newTimetableMeta(proposal))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}
	record := &models.Timetable{
		Status:     models.TimetableStatusDraft,
		StartDate:  proposal.Request.StartDate,
		EndDate:    proposal.Request.EndDate,
		ProgramIDs: pq.Int64Array(proposal.Request.ProgramIDs),
		Meta:       types.JSONText(meta),
	}

	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.timetables.CreateVersioned(ctx, tx, record); err != nil {
			return err
		}
		rows := make([]models.TimetableSession, 0, len(proposal.Report.Sessions))
		for _, session := range proposal.Report.Sessions {
			rows = append(rows, models.TimetableSession{
				TimetableID: record.ID,
				SessionDate: session.Date,
				StartTime:   session.Start.String(),
				EndTime:     session.End.String(),
				SubjectID:   session.SubjectID,
				TeacherID:   session.TeacherID,
				RoomID:      session.RoomID,
				ProgramID:   session.ProgramID,
			})
		}
		if err := s.sessions.InsertBatch(ctx, tx, rows); err != nil {
			return err
		}
		if req.Publish {
			return s.publishWithin(ctx, tx, record)
		}
		return nil
	})
	if err != nil {
		return nil, mapPersistError(err, "failed to save timetable")
	}

	s.store.Delete(req.ProposalID)
	s.loader.Invalidate(ctx)
	s.logger.Info("timetable saved",
		zap.String("timetable_id", record.ID),
		zap.Int("version", record.Version),
		zap.String("status", string(record.Status)),
	)
	return &dto.SaveTimetableResponse{TimetableID: record.ID, Version: record.Version, Status: string(record.Status)}, nil
}

// List returns stored timetable versions, newest first.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]dto.TimetableSummary, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	list, err := s.timetables.List(ctx, models.TimetableFilter{Status: models.TimetableStatus(query.Status), Limit: query.Limit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	out := make([]dto.TimetableSummary, 0, len(list))
	for _, item := range list {
		out = append(out, newTimetableSummary(item))
	}
	return out, nil
}

// Get returns one stored timetable.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableSummary, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := newTimetableSummary(*record)
	return &summary, nil
}

// GetSessions returns the stored sessions of a timetable.
func (s *TimetableService) GetSessions(ctx context.Context, id string) ([]dto.StoredSessionDTO, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.sessions.ListByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable sessions")
	}
	out := make([]dto.StoredSessionDTO, 0, len(rows))
	for _, row := range rows {
		session, err := sessionFromRow(row)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored session is malformed")
		}
		out = append(out, dto.StoredSessionDTO{ID: row.ID, SessionDTO: dto.NewSessionDTO(session)})
	}
	return out, nil
}

// Publish promotes a draft and archives the previously published version.
// Publishing an already published timetable is a no-op.
func (s *TimetableService) Publish(ctx context.Context, id string) (*dto.SaveTimetableResponse, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	switch record.Status {
	case models.TimetableStatusPublished:
		return &dto.SaveTimetableResponse{TimetableID: record.ID, Version: record.Version, Status: string(record.Status)}, nil
	case models.TimetableStatusArchived:
		return nil, appErrors.Clone(appErrors.ErrConflict, "archived timetables cannot be published")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	if err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		return s.publishWithin(ctx, tx, record)
	}); err != nil {
		return nil, mapPersistError(err, "failed to publish timetable")
	}
	return &dto.SaveTimetableResponse{TimetableID: record.ID, Version: record.Version, Status: string(record.Status)}, nil
}

// Delete removes a draft timetable version.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	record, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	if err := s.timetables.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	return nil
}

func (s *TimetableService) publishWithin(ctx context.Context, tx *sqlx.Tx, record *models.Timetable) error {
	archived, err := s.timetables.ArchivePublished(ctx, tx, record.ID)
	if err != nil {
		return err
	}
	if err := s.timetables.UpdateStatus(ctx, tx, record.ID, models.TimetableStatusPublished); err != nil {
		return err
	}
	record.Status = models.TimetableStatusPublished
	if archived > 0 {
		s.logger.Info("archived previously published timetables", zap.Int64("count", archived))
	}
	return nil
}

func (s *TimetableService) find(ctx context.Context, id string) (*models.Timetable, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return record, nil
}

// mapGeneratorError translates generator failures into API errors that keep
// the machine readable kind.
func mapGeneratorError(err error) error {
	var (
		invalid   *timetable.InvalidInputError
		snapshot  *timetable.SnapshotError
		cancelled *timetable.CancelledError
		invariant *timetable.InternalInvariantError
	)
	switch {
	case errors.As(err, &invalid):
		return appErrors.WithDetail(appErrors.ErrInvalidInput, string(invalid.Kind), invalid.Detail, err)
	case errors.As(err, &snapshot):
		return appErrors.WithDetail(appErrors.ErrSnapshot, "snapshot", snapshot.Detail, err)
	case errors.As(err, &cancelled):
		return appErrors.WithDetail(appErrors.ErrCancelled, "cancelled", cancelled.Error(), err)
	case errors.As(err, &invariant):
		return appErrors.WithDetail(appErrors.ErrInvariant, invariant.Invariant, invariant.Detail, err)
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation failed")
	}
}

// mapPersistError turns constraint violations into conflicts.
func mapPersistError(err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "timetable version already exists, retry the save")
		case pqExclusionViolation:
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "stored sessions overlap")
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func sessionFromRow(row models.TimetableSession) (timetable.Session, error) {
	start, err := timetable.ParseClock(row.StartTime)
	if err != nil {
		return timetable.Session{}, err
	}
	end, err := timetable.ParseClock(row.EndTime)
	if err != nil {
		return timetable.Session{}, err
	}
	date := timetable.DateOnly(row.SessionDate)
	return timetable.Session{
		Date:      date,
		Weekday:   timetable.WeekdayIndex(date),
		Start:     start,
		End:       end,
		SubjectID: row.SubjectID,
		TeacherID: row.TeacherID,
		RoomID:    row.RoomID,
		ProgramID: row.ProgramID,
	}, nil
}

// timetableMeta is stored alongside each version.
type timetableMeta struct {
	ProposalID        string               `json:"proposal_id"`
	GeneratedAt       time.Time            `json:"generated_at"`
	IncludeWeekends   bool                 `json:"include_weekends"`
	MaxSessionsPerDay int                  `json:"max_sessions_per_day"`
	Stats             dto.StatsDTO         `json:"stats"`
	Underserved       []dto.UnderservedDTO `json:"underserved"`
	Warnings          int                  `json:"warnings"`
}

func newTimetableMeta(p timetableProposal) timetableMeta {
	resp := dto.NewGenerateTimetableResponse(p.ID, p.Report)
	return timetableMeta{
		ProposalID:        p.ID,
		GeneratedAt:       p.RequestedAt,
		IncludeWeekends:   p.Request.IncludeWeekends,
		MaxSessionsPerDay: p.Request.MaxSessionsPerDay,
		Stats:             resp.Stats,
		Underserved:       resp.Underserved,
		Warnings:          len(resp.Warnings),
	}
}

func newTimetableSummary(t models.Timetable) dto.TimetableSummary {
	var meta timetableMeta
	if len(t.Meta) > 0 {
		_ = json.Unmarshal(t.Meta, &meta)
	}
	return dto.TimetableSummary{
		ID:         t.ID,
		Version:    t.Version,
		Status:     string(t.Status),
		StartDate:  t.StartDate.Format(timetable.DateLayout),
		EndDate:    t.EndDate.Format(timetable.DateLayout),
		ProgramIDs: append([]int64{}, t.ProgramIDs...),
		Sessions:   meta.Stats.SchedulesCreated,
		Conflicts:  meta.Stats.ConflictsDetected,
		CreatedAt:  t.CreatedAt,
	}
}

type timetableProposal struct {
	ID          string
	Request     timetable.Request
	Report      *timetable.Report
	RequestedAt time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]timetableProposal
	now   func() time.Time
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]timetableProposal),
		now:   time.Now,
	}
}

// Save stores proposal and sweeps expired entries.
func (s *proposalStore) Save(proposal timetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, item := range s.items {
		if s.expired(item) {
			delete(s.items, id)
		}
	}
	s.items[proposal.ID] = proposal
}

func (s *proposalStore) Get(id string) (timetableProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return timetableProposal{}, false
	}
	if s.expired(proposal) {
		s.Delete(id)
		return timetableProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *proposalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *proposalStore) expired(p timetableProposal) bool {
	return s.now().Sub(p.RequestedAt) > s.ttl
}
