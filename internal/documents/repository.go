package documents

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/JaimeStill/attest/pkg/pagination"
	"github.com/JaimeStill/attest/pkg/query"
	"github.com/JaimeStill/attest/pkg/repository"
	"github.com/JaimeStill/attest/pkg/storage"
)

type repo struct {
	db             *sql.DB
	storage        storage.System
	logger         *slog.Logger
	pagination     pagination.Config
	maxContextSize int64
}

// New creates a document repository implementing the System interface.
// maxContextSize bounds the rendered context of GetPreparedContext.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxContextSize int64,
) System {
	return &repo{
		db:             db,
		storage:        store,
		logger:         logger.With("system", "documents"),
		pagination:     pagination,
		maxContextSize: maxContextSize,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename", "ContentType")

	filters.Apply(qb)

	result, err := repository.Page(ctx, r.db, qb, page, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Document, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Document, error) {
	if cmd.OrganizationID == uuid.Nil || len(cmd.Data) == 0 {
		return nil, ErrInvalidFile
	}

	id := uuid.New()
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload document blob: %w", err)
	}

	status := StatusUploaded
	var textKey *string
	if isText(cmd.ContentType) {
		status = StatusPrepared
		textKey = &key
	}

	q := `
		INSERT INTO documents(id, organization_id, filename, content_type, size_bytes, page_count, storage_key, text_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + returning

	insertArgs := []any{
		id,
		cmd.OrganizationID,
		cmd.Filename,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
		textKey,
		status,
	}

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, insertArgs, scanDocument)
	})

	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document created", "id", d.ID, "filename", d.Filename, "status", d.Status)
	return &d, nil
}

func (r *repo) SetText(ctx context.Context, id uuid.UUID, text []byte) (*Document, error) {
	if len(bytes.TrimSpace(text)) == 0 {
		return nil, ErrEmptyText
	}
	if !utf8.Valid(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidFile)
	}

	doc, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	key := buildTextKey(doc.ID)
	if err := r.storage.Upload(ctx, key, bytes.NewReader(text), "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("upload prepared text: %w", err)
	}

	pages := len(SplitPages(string(text)))

	q := `
		UPDATE documents
		SET text_key = $2, status = $3, page_count = COALESCE(page_count, $4), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + returning

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Document, error) {
		return repository.QueryOne(ctx, tx, q, []any{id, key, StatusPrepared, pages}, scanDocument)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document text prepared", "id", id, "pages", pages)
	return &d, nil
}

func (r *repo) Open(ctx context.Context, id uuid.UUID) (*Document, io.ReadCloser, error) {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := r.storage.Download(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("download document: %w", err)
	}
	return doc, rc, nil
}

func (r *repo) Text(ctx context.Context, id uuid.UUID) (string, error) {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return "", err
	}
	return r.download(ctx, doc)
}

func (r *repo) GetPreparedContext(
	ctx context.Context,
	organizationID uuid.UUID,
	documentIDs []uuid.UUID,
) (*PreparedContext, error) {
	if len(documentIDs) == 0 {
		return nil, ErrNoPreparedDocuments
	}

	ids := make([]any, len(documentIDs))
	for i, id := range documentIDs {
		ids[i] = id
	}

	status := string(StatusPrepared)
	q, args := query.NewBuilder(projection).
		WhereEquals("OrganizationID", organizationID).
		WhereEquals("Status", &status).
		WhereIn("ID", ids).
		Build()

	found, err := repository.QueryMany(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query prepared documents: %w", err)
	}

	byID := make(map[uuid.UUID]Document, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}

	prepared := make([]PreparedDocument, 0, len(found))
	seen := make(map[uuid.UUID]bool, len(documentIDs))
	for _, id := range documentIDs {
		d, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true

		text, err := r.download(ctx, &d)
		if err != nil {
			return nil, fmt.Errorf("load document %s: %w", id, err)
		}
		prepared = append(prepared, PreparedDocument{
			ID:    d.ID,
			Name:  d.Filename,
			Pages: SplitPages(text),
		})
	}

	if len(prepared) == 0 {
		return nil, ErrNoPreparedDocuments
	}

	pc := NewPreparedContext(prepared, r.maxContextSize)
	if pc.Truncated {
		r.logger.WarnContext(ctx, "prepared context truncated",
			"organization_id", organizationID,
			"documents", len(prepared),
			"max_bytes", r.maxContextSize,
		)
	}
	return pc, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	err = repository.ExecTx(ctx, r.db, func(tx *sql.Tx) error {
		return repository.ExecExpectOne(ctx, tx, "DELETE FROM documents WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	keys := []string{doc.StorageKey}
	if doc.TextKey != nil && *doc.TextKey != doc.StorageKey {
		keys = append(keys, *doc.TextKey)
	}
	for _, key := range keys {
		if delErr := r.storage.Delete(ctx, key); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			r.logger.Warn("blob delete failed after DB delete", "key", key, "error", delErr)
		}
	}

	r.logger.Info("document deleted", "id", id)
	return nil
}

func (r *repo) download(ctx context.Context, doc *Document) (string, error) {
	if doc.Status != StatusPrepared || doc.TextKey == nil {
		return "", ErrNotPrepared
	}

	rc, err := r.storage.Download(ctx, *doc.TextKey)
	if err != nil {
		return "", fmt.Errorf("download prepared text: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read prepared text: %w", err)
	}
	return string(data), nil
}

func isText(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "text/")
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", id, filename)
}

func buildTextKey(id uuid.UUID) string {
	return fmt.Sprintf("documents/%s/text/prepared.txt", id)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" || name == "/" {
		name = "document"
	}
	return url.PathEscape(name)
}
