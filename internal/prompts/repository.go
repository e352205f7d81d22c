package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/pkg/pagination"
	"github.com/JaimeStill/attest/pkg/query"
	"github.com/JaimeStill/attest/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a prompt repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "prompts"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

const resolveQuery = `
	SELECT id, framework_id, instructions
	FROM prompts
	WHERE stage = $1 AND active AND (framework_id IS NULL OR framework_id = $2)
	ORDER BY framework_id NULLS LAST
	LIMIT 1`

func (r *repo) Resolve(ctx context.Context, stage Stage, frameworkID uuid.UUID) (*Resolved, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return nil, err
	}

	var (
		id    uuid.UUID
		scope *uuid.UUID
		text  string
	)
	err := r.db.QueryRowContext(ctx, resolveQuery, stage, frameworkID).Scan(&id, &scope, &text)
	if errors.Is(err, sql.ErrNoRows) {
		text, err := Instructions(stage)
		if err != nil {
			return nil, err
		}
		return &Resolved{Stage: stage, Source: SourceDefault, Instructions: text}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s instructions: %w", stage, err)
	}

	res := &Resolved{Stage: stage, Source: SourceGlobal, PromptID: &id, Instructions: text}
	if scope != nil {
		res.Source = SourceFramework
	}
	return res, nil
}

func (r *repo) Compose(ctx context.Context, stage Stage, frameworkID uuid.UUID) (string, error) {
	res, err := r.Resolve(ctx, stage, frameworkID)
	if err != nil {
		return "", err
	}
	spec, err := Spec(stage)
	if err != nil {
		return "", err
	}

	r.logger.DebugContext(ctx, "prompt composed",
		"stage", stage, "framework_id", frameworkID, "source", res.Source, "prompt_id", res.PromptID)
	return Compose(res.Instructions, spec), nil
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Prompt], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Description", "Instructions")

	filters.Apply(qb)

	result, err := repository.Page(ctx, r.db, qb, page, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPrompt)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) Create(ctx context.Context, cmd Command) (*Prompt, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO prompts(name, stage, framework_id, instructions, description)
		VALUES ($1, $2, $3, $4, $5)
		` + returning

	args := []any{cmd.Name, cmd.Stage, cmd.FrameworkID, cmd.Instructions, cmd.Description}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, args, scanPrompt)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt created", "id", p.ID, "name", p.Name, "stage", p.Stage, "framework_id", p.FrameworkID)
	return &p, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd Command) (*Prompt, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		UPDATE prompts
		SET name = $1, stage = $2, framework_id = $3, instructions = $4, description = $5, updated_at = NOW()
		WHERE id = $6
		` + returning

	args := []any{cmd.Name, cmd.Stage, cmd.FrameworkID, cmd.Instructions, cmd.Description, id}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, args, scanPrompt)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt updated", "id", p.ID, "name", p.Name)
	return &p, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		return repository.ExecExpectOne(ctx, tx, "DELETE FROM prompts WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt deleted", "id", id)
	return nil
}

func (r *repo) Activate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		findQ, findArgs := query.NewBuilder(projection).BuildSingle("ID", id)
		target, err := repository.QueryOne(ctx, tx, findQ, findArgs, scanPrompt)
		if err != nil {
			return Prompt{}, err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE prompts SET active = false, updated_at = NOW()
			WHERE stage = $1 AND framework_id IS NOT DISTINCT FROM $2 AND active AND id <> $3`,
			target.Stage, target.FrameworkID, id,
		)
		if err != nil {
			return Prompt{}, fmt.Errorf("deactivate current: %w", err)
		}

		activateQ := `UPDATE prompts SET active = true, updated_at = NOW() WHERE id = $1 ` + returning
		return repository.QueryOne(ctx, tx, activateQ, []any{id}, scanPrompt)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt activated", "id", p.ID, "name", p.Name, "stage", p.Stage, "framework_id", p.FrameworkID)
	return &p, nil
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q := `UPDATE prompts SET active = false, updated_at = NOW() WHERE id = $1 ` + returning

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, []any{id}, scanPrompt)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt deactivated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return &p, nil
}
