package frameworks

import (
	"context"
	"database/sql"
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

// New creates a framework repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "frameworks"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Framework], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Description")

	filters.Apply(qb)

	result, err := repository.Page(ctx, r.db, qb, page, scanFramework)
	if err != nil {
		return nil, fmt.Errorf("list frameworks: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Framework, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	f, err := repository.QueryOne(ctx, r.db, q, args, scanFramework)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &f, nil
}

func (r *repo) Controls(ctx context.Context, frameworkID uuid.UUID) ([]Control, error) {
	fid := frameworkID
	q, args := query.
		NewBuilder(controlProjection, query.SortField{Field: "Position"}).
		WhereEquals("FrameworkID", &fid).
		Build()

	controls, err := repository.QueryMany(ctx, r.db, q, args, scanControl)
	if err != nil {
		return nil, fmt.Errorf("query controls: %w", err)
	}

	if len(controls) == 0 {
		var exists bool
		err := r.db.QueryRowContext(
			ctx,
			"SELECT EXISTS(SELECT 1 FROM frameworks WHERE id = $1)",
			frameworkID,
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check framework: %w", err)
		}
		if !exists {
			return nil, ErrNotFound
		}
	}

	return controls, nil
}

func (r *repo) Import(ctx context.Context, catalog *Catalog) (*Framework, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	f, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Framework, error) {
		var desc *string
		if catalog.Description != "" {
			desc = &catalog.Description
		}

		f := Framework{
			Name:         catalog.Name,
			Version:      catalog.Version,
			Description:  desc,
			ControlCount: len(catalog.Controls),
		}

		err := tx.QueryRowContext(
			ctx,
			`INSERT INTO frameworks(name, version, description)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			f.Name, f.Version, f.Description,
		).Scan(&f.ID, &f.CreatedAt)
		if err != nil {
			return Framework{}, err
		}

		stmt, err := tx.PrepareContext(
			ctx,
			`INSERT INTO controls(framework_id, code, title, description, requirement, position)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
		)
		if err != nil {
			return Framework{}, fmt.Errorf("prepare control insert: %w", err)
		}
		defer stmt.Close()

		for i, c := range catalog.Controls {
			if _, err := stmt.ExecContext(ctx, f.ID, c.Code, c.Title, c.Description, c.Requirement, i+1); err != nil {
				return Framework{}, fmt.Errorf("insert control %s: %w", c.Code, err)
			}
		}

		return f, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("framework imported", "id", f.ID, "name", f.Name, "version", f.Version, "controls", f.ControlCount)
	return &f, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		return repository.ExecExpectOne(ctx, tx, "DELETE FROM frameworks WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("framework deleted", "id", id)
	return nil
}
