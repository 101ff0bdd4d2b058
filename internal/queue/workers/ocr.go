package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/textlift/textlift/internal/extract"
	"github.com/textlift/textlift/internal/models"
	"github.com/textlift/textlift/internal/progress"
	"github.com/textlift/textlift/internal/queue"
)

// JobService is the slice of the jobs service the worker needs.
type JobService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Download(ctx context.Context, job *models.Job) (io.ReadCloser, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, res *extract.Result) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

type OCRWorker struct {
	jobSvc    JobService
	extractor *extract.Extractor
	tracker   *progress.Tracker
}

func NewOCRWorker(jobSvc JobService, extractor *extract.Extractor, tracker *progress.Tracker) *OCRWorker {
	return &OCRWorker{jobSvc: jobSvc, extractor: extractor, tracker: tracker}
}

// ProcessTask runs the extraction pipeline for one uploaded job. Infra
// failures (storage, database) return an error so asynq retries; pipeline
// failures are deterministic for a given file, so the job is marked failed
// with a user-facing message and the task is consumed.
func (w *OCRWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.OCRProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("parse job ID: %w", err)
	}

	slog.Info("processing job", "job_id", jobID)

	if err := w.jobSvc.MarkProcessing(ctx, jobID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	job, err := w.jobSvc.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	reader, err := w.jobSvc.Download(ctx, job)
	if err != nil {
		return fmt.Errorf("download upload: %w", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	res, err := w.extractor.Run(ctx, extract.Request{
		Data:       data,
		Kind:       job.Kind,
		Preprocess: job.Preprocess,
		Languages:  job.Languages,
	}, func(done, total int) {
		if err := w.tracker.Set(ctx, jobID, done, total); err != nil {
			slog.Warn("publish progress failed", "job_id", jobID, "error", err)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("extraction failed", "job_id", jobID, "error", err)
		if failErr := w.jobSvc.Fail(ctx, jobID, userMessage(err)); failErr != nil {
			return fmt.Errorf("mark failed: %w", failErr)
		}
		_ = w.tracker.Clear(ctx, jobID)
		return nil
	}

	if err := w.jobSvc.Complete(ctx, jobID, res); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	_ = w.tracker.Clear(ctx, jobID)

	slog.Info("job processed", "job_id", jobID, "pages", res.PageCount)
	return nil
}

// HandleError runs on every failed task attempt. Once retries are exhausted
// asynq archives the task, so the job row has to be failed here; otherwise
// the browser polls a stuck "processing" status forever. Progress snapshots
// expire on their own TTL.
func (w *OCRWorker) HandleError(ctx context.Context, task *asynq.Task, _ error) {
	if task.Type() != queue.TypeOCRProcess {
		return
	}
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried < maxRetry {
		return
	}
	w.failExhausted(ctx, task.Payload())
}

func (w *OCRWorker) failExhausted(ctx context.Context, payload []byte) {
	var p queue.OCRProcessPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		slog.Error("unmarshal exhausted task payload", "error", err)
		return
	}
	jobID, err := uuid.Parse(p.JobID)
	if err != nil {
		slog.Error("parse exhausted task job ID", "job_id", p.JobID, "error", err)
		return
	}
	slog.Error("job failed after exhausting retries", "job_id", jobID)
	if err := w.jobSvc.Fail(ctx, jobID, "Processing failed after repeated attempts. Please try uploading again."); err != nil {
		slog.Error("mark exhausted job failed", "job_id", jobID, "error", err)
	}
}

// userMessage maps pipeline errors to the strings shown in the browser.
func userMessage(err error) string {
	switch {
	case errors.Is(err, extract.ErrBadImage):
		return "The uploaded file could not be read as an image."
	case errors.Is(err, extract.ErrBadPDF):
		return "The PDF could not be opened. It may be corrupted or password-protected."
	case errors.Is(err, extract.ErrNoPages):
		return "No pages could be extracted from the PDF. It may be empty or corrupted."
	default:
		return "An unexpected error occurred during OCR processing."
	}
}
