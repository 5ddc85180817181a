package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/smartseva-api/internal/model"
	"github.com/Brownie44l1/smartseva-api/internal/preprocess"
	"github.com/Brownie44l1/smartseva-api/internal/repository"
	"github.com/Brownie44l1/smartseva-api/internal/triage"
)

type fakeClassifier struct {
	result *triage.Result
	err    error
	data   []byte
	tensor *preprocess.Tensor
}

func (f *fakeClassifier) ClassifyImage(ctx context.Context, data []byte) (*triage.Result, error) {
	f.data = data
	return f.result, f.err
}

func (f *fakeClassifier) ClassifyTensor(ctx context.Context, tensor *preprocess.Tensor) (*triage.Result, error) {
	f.tensor = tensor
	return f.result, f.err
}

type memRepo struct {
	items     []repository.Complaint
	limit     int
	insertErr error
}

func (m *memRepo) Insert(c *repository.Complaint) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.items = append(m.items, *c)
	return nil
}

func (m *memRepo) GetByID(id string) (*repository.Complaint, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			return &m.items[i], nil
		}
	}
	return nil, nil
}

func (m *memRepo) List(limit int) ([]repository.Complaint, error) {
	m.limit = limit
	if len(m.items) > limit {
		return m.items[:limit], nil
	}
	return m.items, nil
}

type recordingPublisher struct {
	published []any
}

func (p *recordingPublisher) Publish(v any) error {
	p.published = append(p.published, v)
	return nil
}

type staticStatus bool

func (s staticStatus) Loaded() bool { return bool(s) }

type testEnv struct {
	router     http.Handler
	classifier *fakeClassifier
	repo       *memRepo
	publisher  *recordingPublisher
	uploadDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	result := triage.Triage(triage.HeavyGarbage, 91.2, triage.MainGarbage)

	env := &testEnv{
		classifier: &fakeClassifier{result: &result},
		repo:       &memRepo{},
		publisher:  &recordingPublisher{},
		uploadDir:  filepath.Join(t.TempDir(), "uploads"),
	}

	params := preprocess.DefaultParams()
	params.Size = 2
	h := NewHandler(env.classifier, env.repo, env.publisher, staticStatus(true), Options{
		Params:         params,
		UploadDir:      env.uploadDir,
		MaxUploadBytes: 1 << 20,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	env.router = NewRouter(h, nil)
	return env
}

func multipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["model_loaded"])
}

func TestPredictFromImage(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(multipartRequest(t, "image", "street.JPG", []byte("jpeg-bytes")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte("jpeg-bytes"), env.classifier.data)

	var resp repository.Complaint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "street.JPG", resp.Filename)
	assert.Equal(t, triage.HeavyGarbage, resp.PredictedClass)
	assert.Equal(t, triage.EmergencyHigh, resp.EmergencyLevel)
	assert.Equal(t, triage.TimelineFewHours, resp.Timeline)

	require.Len(t, env.repo.items, 1)
	stored := env.repo.items[0]
	assert.Equal(t, resp.ID, stored.ID)
	assert.Equal(t, filepath.Join(env.uploadDir, resp.ID+".jpg"), stored.StoredPath)
	assert.WithinDuration(t, time.Now(), stored.CreatedAt, time.Minute)

	data, err := os.ReadFile(stored.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.Len(t, env.publisher.published, 1)
	assert.Equal(t, resp.ID, env.publisher.published[0].(*repository.Complaint).ID)
}

func TestPredictFromImageRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name  string
		field string
		file  string
	}{
		{"wrong field", "photo", "a.jpg"},
		{"unsupported extension", "image", "a.gif"},
		{"no extension", "image", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(multipartRequest(t, tt.field, tt.file, []byte("x")))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, env.classifier.data)
			assert.Empty(t, env.repo.items)
		})
	}
}

func TestPredictFromImageErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"decode", &preprocess.DecodeError{Err: preprocess.ErrEmptyImage}, http.StatusBadRequest, "Invalid image format"},
		{"unavailable", &model.ModelUnavailableError{Source: "model.onnx", Err: os.ErrNotExist}, http.StatusServiceUnavailable, "Model unavailable"},
		{"score shape", &triage.ScoreShapeError{Head: "main", Got: 2, Want: 3}, http.StatusInternalServerError, "Prediction failed"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "Prediction failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.classifier.err = tt.err
			env.classifier.result = nil

			rec := env.do(multipartRequest(t, "image", "a.png", []byte("x")))
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
			assert.Empty(t, env.repo.items)
			assert.Empty(t, env.publisher.published)

			_, err := os.Stat(env.uploadDir)
			assert.ErrorIs(t, err, os.ErrNotExist)
		})
	}
}

func TestPredictFromImageRemovesUploadWhenInsertFails(t *testing.T) {
	env := newTestEnv(t)
	env.repo.insertErr = errors.New("database is locked")

	rec := env.do(multipartRequest(t, "image", "a.png", []byte("x")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, env.publisher.published)

	entries, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadAndHistoryShareShape(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(multipartRequest(t, "image", "a.png", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)
	uploaded := rec.Body.String()

	var fields map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	assert.Contains(t, fields, "emergency_level")
	assert.NotContains(t, fields, "result")

	id := env.repo.items[0].ID
	rec = env.do(httptest.NewRequest(http.MethodGet, "/complaints/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, uploaded, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/complaints", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "["+uploaded+"]", rec.Body.String())
}

func TestPredictTensor(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(model.PredictionRequest{Image: make([]float32, 12)})
	rec := env.do(httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.classifier.tensor)
	assert.Equal(t, []int64{1, 2, 2, 3}, env.classifier.tensor.Shape)

	var result triage.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, triage.HeavyGarbage, result.PredictedClass)
}

func TestPredictTensorValidation(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(model.PredictionRequest{Image: make([]float32, 5)})
	rec := env.do(httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Expected 12 values, got 5")

	rec = env.do(httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, env.classifier.tensor)
}

func TestComplaints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/complaints", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, defaultListLimit, env.repo.limit)

	rec = env.do(multipartRequest(t, "image", "a.png", []byte("x")))
	require.Equal(t, http.StatusOK, rec.Code)
	id := env.repo.items[0].ID

	rec = env.do(httptest.NewRequest(http.MethodGet, "/complaints?limit=9999", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxListLimit, env.repo.limit)

	var list []repository.Complaint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Empty(t, list[0].StoredPath)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/complaints?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/complaints/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got repository.Complaint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, triage.DepartmentSanitation, got.Result.Department)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/complaints/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodOptions, "/predict/image", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}
