package jobs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/textlift/textlift/internal/extract"
	"github.com/textlift/textlift/internal/models"
	"github.com/textlift/textlift/internal/storage"
)

const jobColumns = `id, filename, kind, file_path, file_size_bytes, status, preprocess,
	 languages, page_count, pages_done, result_text, error, created_at, finished_at`

type Service struct {
	db     *pgxpool.Pool
	store  storage.Storage
	bucket string
}

func NewService(db *pgxpool.Pool, store storage.Storage, bucket string) *Service {
	return &Service{db: db, store: store, bucket: bucket}
}

type CreateRequest struct {
	Filename    string
	Kind        string
	ContentType string
	FileSize    int64
	Preprocess  bool
	Languages   []string
	Data        io.Reader
}

// Create stores the upload and inserts the job row in pending state.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Job, error) {
	jobID := uuid.New()
	path := fmt.Sprintf("%s/%s", jobID, req.Filename)

	if err := s.store.Upload(ctx, s.bucket, path, req.Data, req.ContentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	languages := req.Languages
	if languages == nil {
		languages = []string{}
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO jobs (id, filename, kind, file_path, file_size_bytes, status, preprocess, languages)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+jobColumns,
		jobID, req.Filename, req.Kind, path, req.FileSize, models.JobStatusPending, req.Preprocess, languages,
	)

	job, err := scanJob(row)
	if err != nil {
		_ = s.store.Delete(ctx, s.bucket, path)
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Job, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// Pages returns the per-page records for a job ordered by page number.
func (s *Service) Pages(ctx context.Context, jobID uuid.UUID) ([]models.JobPage, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, job_id, page_number, status, source, text
		 FROM job_pages WHERE job_id = $1 ORDER BY page_number`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list job pages: %w", err)
	}
	defer rows.Close()

	var pages []models.JobPage
	for rows.Next() {
		var p models.JobPage
		if err := rows.Scan(&p.ID, &p.JobID, &p.PageNumber, &p.Status, &p.Source, &p.Text); err != nil {
			return nil, fmt.Errorf("scan job page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if job.FilePath != "" {
		_ = s.store.Delete(ctx, s.bucket, job.FilePath)
	}

	// job_pages rows go with the job via ON DELETE CASCADE.
	_, err = s.db.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	return err
}

// Download fetches the stored upload for processing.
func (s *Service) Download(ctx context.Context, job *models.Job) (io.ReadCloser, error) {
	return s.store.Download(ctx, s.bucket, job.FilePath)
}

func (s *Service) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE id = $2`, models.JobStatusProcessing, id)
	return err
}

// Complete records the extraction result and its per-page breakdown.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, res *extract.Result) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE jobs SET status = $1, result_text = $2, page_count = $3, pages_done = $3, finished_at = $4
		 WHERE id = $5`,
		models.JobStatusDone, res.Text, res.PageCount, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	for _, p := range res.Pages {
		_, err = tx.Exec(ctx,
			`INSERT INTO job_pages (id, job_id, page_number, status, source, text)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (job_id, page_number) DO UPDATE SET status = $4, source = $5, text = $6`,
			uuid.New(), id, p.Number, p.Status, p.Source, p.Text,
		)
		if err != nil {
			return fmt.Errorf("insert page %d: %w", p.Number, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Service) Fail(ctx context.Context, id uuid.UUID, message string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		models.JobStatusFailed, message, time.Now(), id,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	err := row.Scan(
		&j.ID, &j.Filename, &j.Kind, &j.FilePath, &j.FileSize, &j.Status, &j.Preprocess,
		&j.Languages, &j.PageCount, &j.PagesDone, &j.Text, &j.Error, &j.CreatedAt, &j.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
