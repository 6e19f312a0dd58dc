package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type timetableServiceMock struct {
	captured    dto.GenerateTimetableRequest
	generate    *dto.GenerateTimetableResponse
	generateErr error
	saved       dto.SaveTimetableRequest
	saveErr     error
	listQuery   dto.TimetableQuery
	deleteErr   error
	published   string
}

func (m *timetableServiceMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.captured = req
	return m.generate, m.generateErr
}

func (m *timetableServiceMock) Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error) {
	m.saved = req
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	return &dto.SaveTimetableResponse{TimetableID: "tt-1", Version: 1, Status: "DRAFT"}, nil
}

func (m *timetableServiceMock) List(ctx context.Context, query dto.TimetableQuery) ([]dto.TimetableSummary, error) {
	m.listQuery = query
	return []dto.TimetableSummary{{ID: "tt-1", Version: 1, Status: "DRAFT"}}, nil
}

func (m *timetableServiceMock) Get(ctx context.Context, id string) (*dto.TimetableSummary, error) {
	if id != "tt-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}
	return &dto.TimetableSummary{ID: id}, nil
}

func (m *timetableServiceMock) GetSessions(ctx context.Context, id string) ([]dto.StoredSessionDTO, error) {
	return []dto.StoredSessionDTO{{ID: "s-1", SessionDTO: dto.SessionDTO{Date: "2024-09-02", Start: "08:00", End: "09:30"}}}, nil
}

func (m *timetableServiceMock) Publish(ctx context.Context, id string) (*dto.SaveTimetableResponse, error) {
	m.published = id
	return &dto.SaveTimetableResponse{TimetableID: id, Version: 1, Status: "PUBLISHED"}, nil
}

func (m *timetableServiceMock) Delete(ctx context.Context, id string) error {
	return m.deleteErr
}

func newTimetableRouter(mock *timetableServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, "/api/v1", Handlers{Timetables: &TimetableHandler{service: mock}})
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string `json:"code"`
		Kind   string `json:"kind"`
		Detail string `json:"detail"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestTimetableHandlerGenerate(t *testing.T) {
	mock := &timetableServiceMock{generate: &dto.GenerateTimetableResponse{ProposalID: "p-1", Status: "completed"}}
	r := newTimetableRouter(mock)

	w := doJSON(r, http.MethodPost, "/api/v1/timetables/generate",
		`{"program_ids":[1,2],"start_date":"2024-09-02","end_date":"2024-09-06","max_sessions_per_day":4}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{1, 2}, mock.captured.ProgramIDs)
	assert.Equal(t, "2024-09-02", mock.captured.StartDate)
	assert.Equal(t, 4, mock.captured.MaxSessionsPerDay)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "preview", env.Meta["mode"])
	assert.Contains(t, string(env.Data), `"proposal_id":"p-1"`)
}

func TestTimetableHandlerGenerateMalformedBody(t *testing.T) {
	r := newTimetableRouter(&timetableServiceMock{})

	w := doJSON(r, http.MethodPost, "/api/v1/timetables/generate", `{"program_ids":`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestTimetableHandlerGenerateInvalidInputKind(t *testing.T) {
	mock := &timetableServiceMock{
		generateErr: appErrors.WithDetail(appErrors.ErrInvalidInput, "empty_program_list", "program_ids must not be empty", nil),
	}
	r := newTimetableRouter(mock)

	w := doJSON(r, http.MethodPost, "/api/v1/timetables/generate", `{"program_ids":[]}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
	assert.Equal(t, "empty_program_list", env.Error.Kind)
}

func TestTimetableHandlerGenerateCancelledKeepsPartial(t *testing.T) {
	mock := &timetableServiceMock{
		generate:    &dto.GenerateTimetableResponse{Status: "cancelled", Sessions: []dto.SessionDTO{{Date: "2024-09-02"}}},
		generateErr: appErrors.WithDetail(appErrors.ErrCancelled, "cancelled", "context canceled", nil),
	}
	r := newTimetableRouter(mock)

	w := doJSON(r, http.MethodPost, "/api/v1/timetables/generate", `{"program_ids":[1],"start_date":"2024-09-02","end_date":"2024-09-02"}`)

	require.Equal(t, http.StatusRequestTimeout, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "REQUEST_CANCELLED", env.Error.Code)
	assert.Contains(t, string(env.Data), `"status":"cancelled"`)
}

func TestTimetableHandlerSave(t *testing.T) {
	mock := &timetableServiceMock{}
	r := newTimetableRouter(mock)

	w := doJSON(r, http.MethodPost, "/api/v1/timetables", `{"proposal_id":"5f1a3c0e-8d4b-4c7e-9a2f-1b3c5d7e9f00","publish":true}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mock.saved.Publish)
	assert.Contains(t, w.Body.String(), `"timetable_id":"tt-1"`)
}

func TestTimetableHandlerSaveConflict(t *testing.T) {
	mock := &timetableServiceMock{saveErr: appErrors.Clone(appErrors.ErrConflict, "timetable overlaps")}
	r := newTimetableRouter(mock)

	w := doJSON(r, http.MethodPost, "/api/v1/timetables", `{"proposal_id":"5f1a3c0e-8d4b-4c7e-9a2f-1b3c5d7e9f00"}`)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestTimetableHandlerListAndSessions(t *testing.T) {
	mock := &timetableServiceMock{}
	r := newTimetableRouter(mock)

	w := doJSON(r, http.MethodGet, "/api/v1/timetables?status=DRAFT&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DRAFT", mock.listQuery.Status)
	assert.Equal(t, 5, mock.listQuery.Limit)
	assert.Contains(t, w.Body.String(), `"total_count":1`)

	w = doJSON(r, http.MethodGet, "/api/v1/timetables/tt-1/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"start_time":"08:00"`)

	w = doJSON(r, http.MethodGet, "/api/v1/timetables/tt-9", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerPublishAndDelete(t *testing.T) {
	mock := &timetableServiceMock{}
	r := newTimetableRouter(mock)

	w := doJSON(r, http.MethodPost, "/api/v1/timetables/tt-1/publish", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tt-1", mock.published)

	w = doJSON(r, http.MethodDelete, "/api/v1/timetables/tt-1", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	mock.deleteErr = appErrors.Clone(appErrors.ErrConflict, "only drafts can be deleted")
	w = doJSON(r, http.MethodDelete, "/api/v1/timetables/tt-1", "")
	require.Equal(t, http.StatusConflict, w.Code)
}
