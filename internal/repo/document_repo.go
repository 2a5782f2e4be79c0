package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/dbutil"
	"github.com/abundance-ai/abundance/internal/pkg/errs"
)

var documentColumns = []string{"id", "user_id", "filename", "original_filename", "file_size",
	"file_type", "local_path", "embed_status", "embed_error", "index_path", "chunk_count", "ctime", "mtime"}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":                doc.ID,
		"user_id":           doc.UserID,
		"filename":          doc.Filename,
		"original_filename": doc.OriginalFilename,
		"file_size":         doc.FileSize,
		"file_type":         doc.FileType,
		"local_path":        doc.LocalPath,
		"embed_status":      string(doc.EmbedStatus),
		"embed_error":       doc.EmbedError,
		"index_path":        doc.IndexPath,
		"chunk_count":       doc.ChunkCount,
		"ctime":             doc.Ctime,
		"mtime":             doc.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	where := map[string]interface{}{"id": docID}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, errs.ErrNotFound
	}
	return scanDocument(rows)
}

func (r *DocumentRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Document, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc",
		"_limit":   []uint{uint(offset), uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()
	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

// ListEmbeddedByUser returns every document of the user that carries a usable
// index, oldest first so retrieval order is stable.
func (r *DocumentRepo) ListEmbeddedByUser(ctx context.Context, userID string) ([]*model.Document, error) {
	where := map[string]interface{}{
		"user_id":      userID,
		"embed_status": string(model.EmbedStatusEmbedded),
		"_orderby":     "ctime asc",
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListPending returns documents stuck before indexing, for the retry sweep.
func (r *DocumentRepo) ListPending(ctx context.Context, limit int) ([]*model.Document, error) {
	where := map[string]interface{}{
		"embed_status": string(model.EmbedStatusPending),
		"_orderby":     "ctime asc",
		"_limit":       []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var docs []*model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// MarkEmbedded flips pending->embedded. The status guard in the WHERE clause
// makes reprocessing a no-op: zero affected rows means someone else already
// embedded the document.
func (r *DocumentRepo) MarkEmbedded(ctx context.Context, docID, indexPath string, chunkCount int, mtime int64) (bool, error) {
	const query = `
		UPDATE documents
		SET embed_status = $1, embed_error = '', index_path = $2, chunk_count = $3, mtime = $4
		WHERE id = $5 AND embed_status = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		string(model.EmbedStatusEmbedded), indexPath, chunkCount, mtime,
		docID, string(model.EmbedStatusPending))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *DocumentRepo) MarkFailed(ctx context.Context, docID, reason string, mtime int64) error {
	const query = `
		UPDATE documents
		SET embed_status = $1, embed_error = $2, mtime = $3
		WHERE id = $4 AND embed_status = $5
	`
	_, err := r.db.ExecContext(ctx, query,
		string(model.EmbedStatusFailed), reason, mtime,
		docID, string(model.EmbedStatusPending))
	return err
}

// ResetPending re-arms a failed document for another indexing attempt.
func (r *DocumentRepo) ResetPending(ctx context.Context, docID string, mtime int64) error {
	const query = `
		UPDATE documents
		SET embed_status = $1, embed_error = '', mtime = $2
		WHERE id = $3 AND embed_status = $4
	`
	_, err := r.db.ExecContext(ctx, query,
		string(model.EmbedStatusPending), mtime,
		docID, string(model.EmbedStatusFailed))
	return err
}

func (r *DocumentRepo) Delete(ctx context.Context, docID string) error {
	where := map[string]interface{}{"id": docID}
	sqlStr, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	var status string
	if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.OriginalFilename, &doc.FileSize,
		&doc.FileType, &doc.LocalPath, &status, &doc.EmbedError, &doc.IndexPath,
		&doc.ChunkCount, &doc.Ctime, &doc.Mtime); err != nil {
		return nil, err
	}
	doc.EmbedStatus = model.EmbedStatus(status)
	return &doc, nil
}
