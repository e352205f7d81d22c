package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/internal/workflow"
	"github.com/JaimeStill/attest/pkg/pagination"
	"github.com/JaimeStill/attest/pkg/query"
	"github.com/JaimeStill/attest/pkg/repository"
)

var errDuplicate = errors.New("analysis already exists")

const itemsQuery = `
	SELECT i.id, i.mapping_id, i.position, i.document_id, i.document_name,
		   i.page_number, i.locator, i.cited_text, i.relevance
	FROM public.evidence_items i
	JOIN public.evidence_mappings m ON m.id = i.mapping_id
	WHERE m.analysis_id = $1
	ORDER BY m.position, i.position`

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an analysis repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "analyses"),
		pagination: pagination,
	}
}

func (r *repo) Handler(engine Engine) *Handler {
	return NewHandler(r, engine, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[workflow.Job], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Error")

	filters.Apply(qb)

	result, err := repository.Page(ctx, r.db, qb, page, scanJob)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*workflow.Job, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	job, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, errDuplicate)
	}
	return &job, nil
}

func (r *repo) Create(ctx context.Context, job workflow.Job) error {
	docs, err := json.Marshal(job.DocumentIDs)
	if err != nil {
		return fmt.Errorf("marshal document_ids: %w", err)
	}

	q := `
		INSERT INTO analyses(id, organization_id, framework_id, document_ids, state, progress, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(ctx, q,
		job.ID, job.OrganizationID, job.FrameworkID, docs,
		job.State, job.Progress, job.CreatedAt,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, errDuplicate)
	}

	r.logger.Debug("analysis created", "id", job.ID)
	return nil
}

// UpdateState never moves a row out of a terminal state.
func (r *repo) UpdateState(ctx context.Context, job workflow.Job) error {
	q := `
		UPDATE analyses SET
			state = $2,
			progress = $3,
			total_controls = $4,
			completed_count = $5,
			started_at = $6,
			updated_at = NOW()
		WHERE id = $1 AND state NOT IN ('completed', 'failed')`

	err := repository.ExecExpectOne(ctx, r.db, q,
		job.ID, job.State, job.Progress, job.TotalControls, job.CompletedCount, job.StartedAt,
	)
	return repository.MapError(err, ErrNotFound, errDuplicate)
}

func (r *repo) Complete(ctx context.Context, job workflow.Job, outcomes []workflow.ControlOutcome) error {
	return repository.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := updateSummary(ctx, tx, job); err != nil {
			return err
		}

		mappingStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO evidence_mappings(
				id, analysis_id, control_id, control_code, position,
				status, confidence, reasoning, failed, attempts
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
		if err != nil {
			return fmt.Errorf("prepare mapping insert: %w", err)
		}
		defer mappingStmt.Close()

		itemStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO evidence_items(
				id, mapping_id, position, document_id, document_name,
				page_number, locator, cited_text, relevance
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
		if err != nil {
			return fmt.Errorf("prepare item insert: %w", err)
		}
		defer itemStmt.Close()

		for _, o := range outcomes {
			mappingID := uuid.New()
			_, err := mappingStmt.ExecContext(ctx,
				mappingID, job.ID, o.ControlID, o.ControlCode, o.Position,
				o.Status, o.Confidence, o.Reasoning, o.Failed, o.Attempts,
			)
			if err != nil {
				return fmt.Errorf("insert mapping %s: %w", o.ControlCode, err)
			}

			for i, c := range o.Citations {
				_, err := itemStmt.ExecContext(ctx,
					uuid.New(), mappingID, i, c.DocumentID, nullable(c.DocumentName),
					c.PageNumber, nullable(c.Locator), c.Text, c.Relevance,
				)
				if err != nil {
					return fmt.Errorf("insert evidence for %s: %w", o.ControlCode, err)
				}
			}
		}

		return nil
	})
}

// Fail stores the failed summary and drops any evidence already written.
func (r *repo) Fail(ctx context.Context, job workflow.Job) error {
	return repository.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM evidence_mappings WHERE analysis_id = $1`, job.ID); err != nil {
			return fmt.Errorf("clear evidence: %w", err)
		}
		return updateSummary(ctx, tx, job)
	})
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := repository.ExecCount(ctx, r.db,
		`DELETE FROM analyses WHERE id = $1 AND state IN ('completed', 'failed')`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if n > 0 {
		r.logger.Info("analysis deleted", "id", id)
		return nil
	}

	if _, err := r.Find(ctx, id); err != nil {
		return err
	}
	return workflow.ErrNotTerminal
}

func (r *repo) Evidence(ctx context.Context, id uuid.UUID) ([]Mapping, error) {
	if _, err := r.Find(ctx, id); err != nil {
		return nil, err
	}

	q, args := query.
		NewBuilder(mappingProjection, mappingSort).
		WhereEquals("AnalysisID", id).
		Build()

	mappings, err := repository.QueryMany(ctx, r.db, q, args, scanMapping)
	if err != nil {
		return nil, fmt.Errorf("query evidence mappings: %w", err)
	}

	items, err := repository.QueryMany(ctx, r.db, itemsQuery, []any{id}, scanItem)
	if err != nil {
		return nil, fmt.Errorf("query evidence items: %w", err)
	}

	index := make(map[uuid.UUID]int, len(mappings))
	for i, m := range mappings {
		index[m.ID] = i
	}
	for _, item := range items {
		if i, ok := index[item.MappingID]; ok {
			mappings[i].Items = append(mappings[i].Items, item)
		}
	}

	if mappings == nil {
		mappings = []Mapping{}
	}
	return mappings, nil
}

func updateSummary(ctx context.Context, tx *sql.Tx, job workflow.Job) error {
	q := `
		UPDATE analyses SET
			state = $2,
			progress = $3,
			total_controls = $4,
			completed_count = $5,
			compliant_count = $6,
			partial_count = $7,
			missing_count = $8,
			failed_count = $9,
			average_confidence = $10,
			processing_ms = $11,
			error = $12,
			started_at = $13,
			completed_at = $14,
			updated_at = NOW()
		WHERE id = $1`

	err := repository.ExecExpectOne(ctx, tx, q,
		job.ID, job.State, job.Progress, job.TotalControls, job.CompletedCount,
		job.CompliantCount, job.PartialCount, job.MissingCount, job.FailedCount,
		job.AverageConfidence, job.ProcessingMillis, job.Error, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update analysis summary: %w", repository.MapError(err, ErrNotFound, errDuplicate))
	}
	return nil
}
