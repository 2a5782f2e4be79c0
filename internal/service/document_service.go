package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/abundance-ai/abundance/internal/ai"
	"github.com/abundance-ai/abundance/internal/filestore"
	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errs"
	"github.com/abundance-ai/abundance/internal/rag"
	"github.com/abundance-ai/abundance/internal/repo"
)

const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"

	embedRetryMaxElapsed = 2 * time.Minute
	failReasonMaxLen     = 500
)

// IndexEnqueuer hands a document id to the background indexing worker.
type IndexEnqueuer interface {
	Enqueue(docID string) bool
}

type DocumentService struct {
	docs     *repo.DocumentRepo
	cache    *repo.EmbeddingCacheRepo
	tokens   *TokenService
	store    filestore.Store
	embedder ai.IEmbedder
	splitter *rag.Splitter

	indexDir           string
	maxUploadBytes     int64
	embeddingChargeCap int64

	queue     IndexEnqueuer
	retriever *rag.Retriever
}

func NewDocumentService(docs *repo.DocumentRepo, cache *repo.EmbeddingCacheRepo, tokens *TokenService,
	store filestore.Store, embedder ai.IEmbedder, indexDir string, maxUploadBytes, embeddingChargeCap int64) *DocumentService {
	return &DocumentService{
		docs:               docs,
		cache:              cache,
		tokens:             tokens,
		store:              store,
		embedder:           embedder,
		splitter:           rag.NewSplitter(rag.DefaultChunkSize, rag.DefaultChunkOverlap),
		indexDir:           indexDir,
		maxUploadBytes:     maxUploadBytes,
		embeddingChargeCap: embeddingChargeCap,
	}
}

// SetIndexQueue and SetRetriever break the construction cycle between the
// service, the worker that calls back into it, and the retriever cache.
func (s *DocumentService) SetIndexQueue(queue IndexEnqueuer) {
	s.queue = queue
}

func (s *DocumentService) SetRetriever(r *rag.Retriever) {
	s.retriever = r
}

// Upload persists the raw file, records the document as pending and hands it
// to the indexing worker. The document is visible immediately; retrieval picks
// it up once indexing finishes.
func (s *DocumentService) Upload(ctx context.Context, user *model.User, originalFilename string, size int64, r io.Reader) (*model.Document, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if !rag.SupportedExt(ext) {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedFormat, ext)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: empty upload", errs.ErrInvalid)
	}
	if size > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", errs.ErrInvalid, s.maxUploadBytes)
	}
	storedName := newID() + ext
	key := user.ID + "/" + storedName
	if err := s.store.Save(ctx, key, io.LimitReader(r, s.maxUploadBytes), size); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	now := time.Now().UnixMilli()
	doc := &model.Document{
		ID:               newID(),
		UserID:           user.ID,
		Filename:         storedName,
		OriginalFilename: filepath.Base(originalFilename),
		FileSize:         size,
		FileType:         strings.TrimPrefix(ext, "."),
		LocalPath:        key,
		EmbedStatus:      model.EmbedStatusPending,
		Ctime:            now,
		Mtime:            now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		_ = s.store.Remove(ctx, key)
		return nil, err
	}
	if s.queue != nil && !s.queue.Enqueue(doc.ID) {
		logutil.GetLogger(ctx).Warn("index queue full, document waits for retry sweep",
			zap.String("document_id", doc.ID))
	}
	return doc, nil
}

// ProcessOutcome tells the caller what an indexing run actually did, so a
// short-circuited rerun is distinguishable from a fresh index.
type ProcessOutcome string

const (
	ProcessOutcomeIndexed          ProcessOutcome = "indexed"
	ProcessOutcomeAlreadyProcessed ProcessOutcome = "already_processed"
	ProcessOutcomeFailed           ProcessOutcome = "failed"
	ProcessOutcomeMissing          ProcessOutcome = "missing"
)

// Process runs the full indexing pipeline for one pending document: extract,
// split, embed, write the index file, flip the status and charge for the
// embedding. Safe to call more than once; only the worker that wins the
// status flip does any visible work, losers report ProcessOutcomeAlreadyProcessed.
func (s *DocumentService) Process(ctx context.Context, docID string) (ProcessOutcome, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		if errs.IsNotFound(err) {
			return ProcessOutcomeMissing, nil
		}
		return ProcessOutcomeFailed, err
	}
	if doc.EmbedStatus != model.EmbedStatusPending {
		return ProcessOutcomeAlreadyProcessed, nil
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("document_id", doc.ID), zap.String("user_id", doc.UserID))

	text, err := s.extract(ctx, doc)
	if err != nil {
		return ProcessOutcomeFailed, s.fail(ctx, doc, err)
	}
	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		return ProcessOutcomeFailed, s.fail(ctx, doc, errs.ErrEmptyContent)
	}

	var idx *rag.Index
	for _, chunk := range chunks {
		vec, err := s.embedChunk(ctx, chunk)
		if err != nil {
			return ProcessOutcomeFailed, s.fail(ctx, doc, fmt.Errorf("embed chunk: %w", err))
		}
		if idx == nil {
			idx = rag.NewIndex(s.embedder.ModelName(), len(vec))
		}
		if err := idx.Add(chunk, doc.OriginalFilename, vec); err != nil {
			return ProcessOutcomeFailed, s.fail(ctx, doc, err)
		}
	}
	indexPath := filepath.Join(s.indexDir, doc.UserID, doc.ID+".json")
	if err := idx.Save(indexPath); err != nil {
		if ferr := s.fail(ctx, doc, fmt.Errorf("write index: %w", err)); ferr != nil {
			return ProcessOutcomeFailed, ferr
		}
		return ProcessOutcomeFailed, err
	}

	flipped, err := s.docs.MarkEmbedded(ctx, doc.ID, indexPath, len(chunks), time.Now().UnixMilli())
	if err != nil {
		return ProcessOutcomeFailed, err
	}
	if !flipped {
		logger.Info("document already processed elsewhere")
		return ProcessOutcomeAlreadyProcessed, nil
	}
	if s.retriever != nil {
		s.retriever.Invalidate(indexPath)
	}

	charge := doc.FileSize / 4
	if charge > s.embeddingChargeCap {
		charge = s.embeddingChargeCap
	}
	charged, err := s.tokens.Debit(ctx, doc.UserID, charge, model.OpEmbedding, "", "",
		&model.EmbeddingUsage{DocumentID: doc.ID, FileSize: doc.FileSize})
	if err != nil {
		return ProcessOutcomeIndexed, err
	}
	if !charged {
		logger.Warn("embedding charge exceeds balance, document indexed without charge",
			zap.Int64("charge", charge))
	}
	logger.Info("document indexed",
		zap.Int("chunks", len(chunks)), zap.Int64("charge", charge))
	return ProcessOutcomeIndexed, nil
}

func (s *DocumentService) extract(ctx context.Context, doc *model.Document) (string, error) {
	rc, err := s.store.Open(ctx, doc.LocalPath)
	if err != nil {
		return "", fmt.Errorf("open stored file: %w", err)
	}
	defer func() { _ = rc.Close() }()
	text, err := rag.Extract(rc, doc.OriginalFilename)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errs.ErrEmptyContent
	}
	return text, nil
}

func (s *DocumentService) fail(ctx context.Context, doc *model.Document, cause error) error {
	reason := cause.Error()
	if len(reason) > failReasonMaxLen {
		reason = reason[:failReasonMaxLen]
	}
	logutil.GetLogger(ctx).Error("document indexing failed",
		zap.String("document_id", doc.ID), zap.Error(cause))
	return s.docs.MarkFailed(ctx, doc.ID, reason, time.Now().UnixMilli())
}

// embedChunk embeds one chunk with the Postgres cache in front of the
// provider and exponential backoff around transient provider failures.
func (s *DocumentService) embedChunk(ctx context.Context, content string) ([]float32, error) {
	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])
	modelName := s.embedder.ModelName()
	if vec, ok, err := s.cache.Get(ctx, modelName, taskTypeDocument, hash); err != nil {
		logutil.GetLogger(ctx).Warn("embedding cache lookup failed", zap.Error(err))
	} else if ok {
		return vec, nil
	}

	var vec []float32
	op := func() error {
		v, err := s.embedder.Embed(ctx, content, taskTypeDocument)
		if err != nil {
			return err
		}
		vec = v
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = embedRetryMaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	if err := s.cache.Save(ctx, &model.EmbeddingCache{
		ModelName:   modelName,
		TaskType:    taskTypeDocument,
		ContentHash: hash,
		Embedding:   vec,
		Ctime:       time.Now().UnixMilli(),
	}); err != nil {
		logutil.GetLogger(ctx).Warn("embedding cache save failed", zap.Error(err))
	}
	return vec, nil
}

func (s *DocumentService) List(ctx context.Context, userID string, limit, offset int) ([]*model.Document, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.docs.ListByUser(ctx, userID, limit, offset)
}

// Get returns the document if the caller owns it or is an admin.
func (s *DocumentService) Get(ctx context.Context, user *model.User, docID string) (*model.Document, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != user.ID && !user.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	return doc, nil
}

// Delete removes the record, the stored file and the index. Someone else's
// document deletes like a missing one. File removals are best effort; an
// orphaned blob is preferable to a record that will not die.
func (s *DocumentService) Delete(ctx context.Context, user *model.User, docID string) error {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if doc.UserID != user.ID && !user.IsAdmin() {
		return errs.ErrNotFound
	}
	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, doc.LocalPath); err != nil {
		logutil.GetLogger(ctx).Warn("remove stored file failed",
			zap.String("document_id", doc.ID), zap.Error(err))
	}
	if doc.IndexPath != "" {
		if err := os.Remove(doc.IndexPath); err != nil && !os.IsNotExist(err) {
			logutil.GetLogger(ctx).Warn("remove index file failed",
				zap.String("document_id", doc.ID), zap.Error(err))
		}
		if s.retriever != nil {
			s.retriever.Invalidate(doc.IndexPath)
		}
	}
	return nil
}

// Trigger kicks off processing for a pending document, or re-arms and
// re-enqueues a failed one. Already-embedded documents are rejected.
func (s *DocumentService) Trigger(ctx context.Context, user *model.User, docID string) error {
	doc, err := s.Get(ctx, user, docID)
	if err != nil {
		return err
	}
	switch doc.EmbedStatus {
	case model.EmbedStatusFailed:
		if err := s.docs.ResetPending(ctx, doc.ID, time.Now().UnixMilli()); err != nil {
			return err
		}
	case model.EmbedStatusPending:
	default:
		return fmt.Errorf("%w: document is already processed", errs.ErrInvalid)
	}
	if s.queue != nil {
		s.queue.Enqueue(doc.ID)
	}
	return nil
}

// PendingIDs lists documents awaiting indexing, for the retry sweep.
func (s *DocumentService) PendingIDs(ctx context.Context, limit int) ([]string, error) {
	docs, err := s.docs.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}
