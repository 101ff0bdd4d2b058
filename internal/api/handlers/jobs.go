package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/textlift/textlift/internal/jobs"
	"github.com/textlift/textlift/internal/models"
	"github.com/textlift/textlift/internal/progress"
	"github.com/textlift/textlift/internal/queue"
)

// JobStore is the slice of jobs.Service the handlers need.
type JobStore interface {
	Create(ctx context.Context, req jobs.CreateRequest) (*models.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, limit, offset int) ([]models.Job, error)
	Pages(ctx context.Context, jobID uuid.UUID) ([]models.JobPage, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Enqueuer interface {
	EnqueueOCRProcess(payload queue.OCRProcessPayload) error
}

type ProgressReader interface {
	Get(ctx context.Context, jobID uuid.UUID) (*progress.Snapshot, error)
}

type JobHandler struct {
	store             JobStore
	enqueuer          Enqueuer
	tracker           ProgressReader
	maxUploadBytes    int64
	defaultPreprocess bool
}

func NewJobHandler(store JobStore, enqueuer Enqueuer, tracker ProgressReader, maxUploadBytes int64, defaultPreprocess bool) *JobHandler {
	return &JobHandler{
		store:             store,
		enqueuer:          enqueuer,
		tracker:           tracker,
		maxUploadBytes:    maxUploadBytes,
		defaultPreprocess: defaultPreprocess,
	}
}

// Create accepts a multipart upload (field "file") plus the options the
// browser form exposes: "preprocess" and "languages". The job is enqueued
// and returned immediately; the client polls Get for progress.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d MB upload limit", h.maxUploadBytes>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	kind, err := inferKind(header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	preprocess := h.defaultPreprocess
	if v := r.FormValue("preprocess"); v != "" {
		preprocess, _ = strconv.ParseBool(v)
	}

	job, err := h.store.Create(r.Context(), jobs.CreateRequest{
		Filename:    header.Filename,
		Kind:        kind,
		ContentType: header.Header.Get("Content-Type"),
		FileSize:    header.Size,
		Preprocess:  preprocess,
		Languages:   parseLanguages(r.FormValue("languages")),
		Data:        file,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	if err := h.enqueuer.EnqueueOCRProcess(queue.OCRProcessPayload{JobID: job.ID.String()}); err != nil {
		_ = h.store.Delete(r.Context(), job.ID)
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": list, "count": len(list)})
}

// Get returns the job with live page progress merged in while the worker is
// still running.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if job.Status == models.JobStatusProcessing {
		if snap, err := h.tracker.Get(r.Context(), id); err == nil && snap != nil {
			job.PagesDone = snap.PagesDone
			job.PageCount = snap.PagesTotal
		}
	}

	writeJSON(w, http.StatusOK, job)
}

// Pages exposes the per-page breakdown of a finished job.
func (h *JobHandler) Pages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	pages, err := h.store.Pages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"pages": pages, "count": len(pages)})
}

// Text serves the extracted text as plain text for easy copy or download.
func (h *JobHandler) Text(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch job.Status {
	case models.JobStatusDone:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(job.Text))
	case models.JobStatusFailed:
		writeError(w, http.StatusConflict, job.Error)
	default:
		writeError(w, http.StatusConflict, "job is still processing")
	}
}

func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// inferKind decides between the image and PDF pipelines from the declared
// content type, falling back to the file extension when the browser sends
// something generic like application/octet-stream.
func inferKind(contentType, filename string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case ct == "application/pdf" || ext == ".pdf":
		return models.JobKindPDF, nil
	case strings.HasPrefix(ct, "image/") || imageExtensions[ext]:
		return models.JobKindImage, nil
	default:
		return "", fmt.Errorf("unsupported file type: upload a PNG, JPG, BMP, TIFF or PDF")
	}
}

func parseLanguages(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
