package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/textlift/textlift/internal/extract"
	"github.com/textlift/textlift/internal/models"
)

// ExtractHandler runs small image extractions inline, skipping the job
// queue. PDFs and anything over the size cap must go through /jobs.
type ExtractHandler struct {
	extractor         *extract.Extractor
	maxSyncBytes      int64
	defaultPreprocess bool
}

func NewExtractHandler(extractor *extract.Extractor, maxSyncBytes int64, defaultPreprocess bool) *ExtractHandler {
	return &ExtractHandler{
		extractor:         extractor,
		maxSyncBytes:      maxSyncBytes,
		defaultPreprocess: defaultPreprocess,
	}
}

func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSyncBytes)
	if err := r.ParseMultipartForm(h.maxSyncBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d MB limit for synchronous extraction; create a job instead", h.maxSyncBytes>>20))
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
	if kind != models.JobKindImage {
		writeError(w, http.StatusUnsupportedMediaType, "synchronous extraction supports images only; upload PDFs as jobs")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	preprocess := h.defaultPreprocess
	if v := r.FormValue("preprocess"); v != "" {
		preprocess, _ = strconv.ParseBool(v)
	}

	res, err := h.extractor.Run(r.Context(), extract.Request{
		Data:       data,
		Kind:       models.JobKindImage,
		Preprocess: preprocess,
		Languages:  parseLanguages(r.FormValue("languages")),
	}, nil)
	if err != nil {
		if errors.Is(err, extract.ErrBadImage) {
			writeError(w, http.StatusBadRequest, "the uploaded file could not be read as an image")
			return
		}
		writeError(w, http.StatusInternalServerError, "OCR processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"text":       res.Text,
		"page_count": res.PageCount,
	})
}
