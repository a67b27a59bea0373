package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/slidegen/internal/domain"
	"github.com/phrazzld/slidegen/internal/platform/logger"
	"github.com/phrazzld/slidegen/internal/store"
)

// PostgresJobStore implements store.JobStore. A job row and its document
// bytes are written in one transaction.
type PostgresJobStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresJobStore creates a job store over db.
func NewPostgresJobStore(db *sql.DB, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

var _ store.JobStore = (*PostgresJobStore)(nil)

const jobColumns = `j.id, j.kind, j.status, j.filename, j.mime_type, j.options, j.result,
	j.used_model, j.error_message, j.partial_state, j.created_at, j.updated_at`

// Create implements store.JobStore.Create
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return err
	}

	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("%w: failed to encode job options: %v", store.ErrInvalidEntity, err)
	}
	partial, err := marshalNullable(job.PartialState)
	if err != nil {
		return fmt.Errorf("%w: failed to encode partial state: %v", store.ErrInvalidEntity, err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jobs (id, kind, status, filename, mime_type, options, result,
				used_model, error_message, partial_state, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			job.ID, job.Kind, job.Status, job.Document.Filename, job.Document.MIMEType,
			options, nullableRaw(job.Result), job.UsedModel, job.Error, partial,
			job.CreatedAt, job.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert job %s: %w", job.ID, MapError(err))
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO job_documents (job_id, data) VALUES ($1, $2)`,
			job.ID, job.Document.Data,
		)
		if err != nil {
			return MapError(err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return err
	}

	log.Debug("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("kind", string(job.Kind)),
		slog.Int("document_bytes", len(job.Document.Data)))
	return nil
}

// GetByID implements store.JobStore.GetByID
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`, d.data
		FROM jobs j
		LEFT JOIN job_documents d ON d.job_id = j.id
		WHERE j.id = $1`, id)

	var data []byte
	job, err := scanJob(row, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("job not found", slog.String("job_id", id.String()))
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, MapError(err)
	}
	job.Document.Data = data
	return job, nil
}

// Update implements store.JobStore.Update
func (s *PostgresJobStore) Update(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	partial, err := marshalNullable(job.PartialState)
	if err != nil {
		return fmt.Errorf("%w: failed to encode partial state: %v", store.ErrInvalidEntity, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, result = $2, used_model = $3, error_message = $4,
			partial_state = $5, updated_at = $6
		WHERE id = $7`,
		job.Status, nullableRaw(job.Result), job.UsedModel, job.Error,
		partial, job.UpdatedAt, job.ID,
	)
	if err != nil {
		log.Error("failed to update job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}

	if err := checkRowsAffected(result, store.ErrJobNotFound); err != nil {
		return err
	}

	log.Debug("job updated",
		slog.String("job_id", job.ID.String()),
		slog.String("status", string(job.Status)))
	return nil
}

// List implements store.JobStore.List. Document bytes are not loaded.
func (s *PostgresJobStore) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs j
		ORDER BY j.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		log.Error("failed to list jobs", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads jobColumns, plus the document bytes when data is non-nil.
func scanJob(row rowScanner, data *[]byte) (*domain.Job, error) {
	var (
		job                      domain.Job
		options, result, partial []byte
	)
	dest := []any{
		&job.ID, &job.Kind, &job.Status, &job.Document.Filename, &job.Document.MIMEType,
		&options, &result, &job.UsedModel, &job.Error, &partial,
		&job.CreatedAt, &job.UpdatedAt,
	}
	if data != nil {
		dest = append(dest, data)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if len(options) > 0 {
		if err := json.Unmarshal(options, &job.Options); err != nil {
			return nil, fmt.Errorf("failed to decode job options: %w", err)
		}
	}
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}
	if len(partial) > 0 {
		job.PartialState = &domain.ReviewState{}
		if err := json.Unmarshal(partial, job.PartialState); err != nil {
			return nil, fmt.Errorf("failed to decode partial state: %w", err)
		}
	}
	return &job, nil
}

func marshalNullable(state *domain.ReviewState) (any, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}

func nullableRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
