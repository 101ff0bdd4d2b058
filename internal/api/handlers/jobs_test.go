package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textlift/textlift/internal/jobs"
	"github.com/textlift/textlift/internal/models"
	"github.com/textlift/textlift/internal/progress"
	"github.com/textlift/textlift/internal/queue"
)

type fakeStore struct {
	created  []jobs.CreateRequest
	lastData []byte
	job      *models.Job
	jobs     []models.Job
	pages    []models.JobPage
	err      error
	deleted  []uuid.UUID
}

func (f *fakeStore) Create(ctx context.Context, req jobs.CreateRequest) (*models.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(req.Data)
	f.lastData = data
	f.created = append(f.created, req)
	job := &models.Job{
		ID:         uuid.New(),
		Filename:   req.Filename,
		Kind:       req.Kind,
		FileSize:   req.FileSize,
		Status:     models.JobStatusPending,
		Preprocess: req.Preprocess,
		Languages:  req.Languages,
		CreatedAt:  time.Now(),
	}
	f.job = job
	return job, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if f.job == nil || f.job.ID != id {
		return nil, errors.New("not found")
	}
	j := *f.job
	return &j, nil
}

func (f *fakeStore) List(ctx context.Context, limit, offset int) ([]models.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs, nil
}

func (f *fakeStore) Pages(ctx context.Context, jobID uuid.UUID) ([]models.JobPage, error) {
	return f.pages, nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

type fakeEnqueuer struct {
	payloads []queue.OCRProcessPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueOCRProcess(p queue.OCRProcessPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

type fakeTracker struct {
	snap *progress.Snapshot
}

func (f *fakeTracker) Get(ctx context.Context, jobID uuid.UUID) (*progress.Snapshot, error) {
	return f.snap, nil
}

func newHandler(store *fakeStore, enq *fakeEnqueuer, tr *fakeTracker) *JobHandler {
	return NewJobHandler(store, enq, tr, 32<<20, false)
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestCreateImageJob(t *testing.T) {
	store := &fakeStore{}
	enq := &fakeEnqueuer{}
	h := newHandler(store, enq, &fakeTracker{})

	body, ct := multipartBody(t, "file", "scan.png", "image/png", []byte("png-bytes"), map[string]string{
		"preprocess": "true",
		"languages":  "eng,deu",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, store.created, 1)
	assert.Equal(t, models.JobKindImage, store.created[0].Kind)
	assert.True(t, store.created[0].Preprocess)
	assert.Equal(t, []string{"eng", "deu"}, store.created[0].Languages)
	assert.Equal(t, []byte("png-bytes"), store.lastData)

	require.Len(t, enq.payloads, 1)
	assert.Equal(t, store.job.ID.String(), enq.payloads[0].JobID)
}

func TestCreatePDFJobByExtension(t *testing.T) {
	store := &fakeStore{}
	h := newHandler(store, &fakeEnqueuer{}, &fakeTracker{})

	body, ct := multipartBody(t, "file", "report.PDF", "application/octet-stream", []byte("%PDF"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.Create(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, models.JobKindPDF, store.created[0].Kind)
}

func TestCreateRejectsUnsupportedType(t *testing.T) {
	h := newHandler(&fakeStore{}, &fakeEnqueuer{}, &fakeTracker{})

	body, ct := multipartBody(t, "file", "notes.docx", "application/msword", []byte("doc"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.Create(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCreateRequiresFile(t *testing.T) {
	h := newHandler(&fakeStore{}, &fakeEnqueuer{}, &fakeTracker{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("preprocess", "true"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := httptest.NewRecorder()
	h.Create(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEnqueueFailure(t *testing.T) {
	h := newHandler(&fakeStore{}, &fakeEnqueuer{err: errors.New("redis down")}, &fakeTracker{})

	body, ct := multipartBody(t, "file", "scan.png", "image/png", []byte("x"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", body)
	req.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.Create(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestGetMergesProgress(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusProcessing}
	store := &fakeStore{job: job}
	tracker := &fakeTracker{snap: &progress.Snapshot{PagesDone: 3, PagesTotal: 10}}
	h := newHandler(store, &fakeEnqueuer{}, tracker)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID.String(), nil), "id", job.ID.String())
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pages_done":3`)
	assert.Contains(t, rec.Body.String(), `"page_count":10`)
}

func TestGetNotFound(t *testing.T) {
	h := newHandler(&fakeStore{}, &fakeEnqueuer{}, &fakeTracker{})

	id := uuid.New().String()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id, nil), "id", id)
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetInvalidID(t *testing.T) {
	h := newHandler(&fakeStore{}, &fakeEnqueuer{}, &fakeTracker{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope", nil), "id", "nope")
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTextDoneJob(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusDone, Text: "--- Page 1 ---\nhello\n\n"}
	h := newHandler(&fakeStore{job: job}, &fakeEnqueuer{}, &fakeTracker{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", job.ID.String())
	rec := httptest.NewRecorder()
	h.Text(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, job.Text, rec.Body.String())
}

func TestTextPendingJobConflicts(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusPending}
	h := newHandler(&fakeStore{job: job}, &fakeEnqueuer{}, &fakeTracker{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", job.ID.String())
	rec := httptest.NewRecorder()
	h.Text(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTextFailedJobReturnsMessage(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusFailed, Error: "The PDF could not be opened. It may be corrupted or password-protected."}
	h := newHandler(&fakeStore{job: job}, &fakeEnqueuer{}, &fakeTracker{})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", job.ID.String())
	rec := httptest.NewRecorder()
	h.Text(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "password-protected")
}

func TestListJobs(t *testing.T) {
	store := &fakeStore{jobs: []models.Job{{ID: uuid.New()}, {ID: uuid.New()}}}
	h := newHandler(store, &fakeEnqueuer{}, &fakeTracker{})

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}

func TestDeleteJob(t *testing.T) {
	store := &fakeStore{}
	h := newHandler(store, &fakeEnqueuer{}, &fakeTracker{})

	id := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "id", id.String())
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{id}, store.deleted)
}

func TestInferKind(t *testing.T) {
	cases := []struct {
		contentType string
		filename    string
		want        string
		wantErr     bool
	}{
		{"image/png", "a.png", models.JobKindImage, false},
		{"image/jpeg", "photo.jpg", models.JobKindImage, false},
		{"application/octet-stream", "scan.TIFF", models.JobKindImage, false},
		{"application/pdf", "doc.pdf", models.JobKindPDF, false},
		{"application/octet-stream", "doc.pdf", models.JobKindPDF, false},
		{"image/png; charset=binary", "a.png", models.JobKindImage, false},
		{"application/msword", "doc.docx", "", true},
		{"", "noext", "", true},
	}
	for _, tc := range cases {
		got, err := inferKind(tc.contentType, tc.filename)
		if tc.wantErr {
			assert.Error(t, err, "%s %s", tc.contentType, tc.filename)
			continue
		}
		require.NoError(t, err, "%s %s", tc.contentType, tc.filename)
		assert.Equal(t, tc.want, got)
	}
}
