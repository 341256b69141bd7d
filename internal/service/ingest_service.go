package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/scholarai/internal/ai"
	"github.com/xxxsen/scholarai/internal/chunker"
	"github.com/xxxsen/scholarai/internal/extract"
	"github.com/xxxsen/scholarai/internal/filestore"
	"github.com/xxxsen/scholarai/internal/model"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
	"github.com/xxxsen/scholarai/internal/retry"
	"github.com/xxxsen/scholarai/internal/vectorindex"
)

type IngestStage string

const (
	StageReceived          IngestStage = "received"
	StageExtracted         IngestStage = "extracted"
	StageChunked           IngestStage = "chunked"
	StageIndexed           IngestStage = "indexed"
	StageMetadataPersisted IngestStage = "metadata_persisted"
)

// IngestError records the last stage an upload reached before failing.
type IngestError struct {
	Stage IngestStage
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest failed after %s: %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

const defaultEmbedConcurrency = 4

type IngestRequest struct {
	OwnerID string
	Kind    model.SourceKind
	Source  *extract.Source
	// Message is the note attached to an image upload.
	Message string
}

type IngestResult struct {
	DocumentID string                 `json:"document_id"`
	PageCount  int                    `json:"page_count"`
	ChunkCount int                    `json:"chunk_count"`
	Message    string                 `json:"message"`
	Text       string                 `json:"-"`
	Timestamps []model.VideoTimestamp `json:"timestamps,omitempty"`
}

type IngestDeps struct {
	Extractors map[model.SourceKind]extract.TextExtractor
	Chunker    *chunker.Chunker
	Embedder   ai.IEmbedder
	Index      vectorindex.Index
	Documents  DocumentStore
	Images     ImageStore
	Files      filestore.Store
	Retry      *retry.Executor
}

type IngestConfig struct {
	Collection       string
	EmbedConcurrency int
}

type IngestService struct {
	deps        IngestDeps
	collection  string
	concurrency int
	now         func() time.Time
}

func NewIngestService(deps IngestDeps, cfg IngestConfig) *IngestService {
	if deps.Retry == nil {
		deps.Retry = retry.New(retry.Config{})
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = defaultEmbedConcurrency
	}
	return &IngestService{
		deps:        deps,
		collection:  cfg.Collection,
		concurrency: cfg.EmbedConcurrency,
		now:         time.Now,
	}
}

func (s *IngestService) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	if req == nil || req.Source == nil || req.OwnerID == "" {
		return nil, &IngestError{Stage: StageReceived, Err: appErr.ErrInvalid}
	}
	extractor, ok := s.deps.Extractors[req.Kind]
	if !ok {
		return nil, &IngestError{Stage: StageReceived, Err: fmt.Errorf("source kind %q: %w", req.Kind, appErr.ErrInvalid)}
	}
	docID := newID()
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", docID), zap.String("source_kind", string(req.Kind)))

	pages, err := retry.Do(ctx, s.deps.Retry, "extract", func(ctx context.Context) ([]model.Page, error) {
		return extractor.Extract(ctx, req.Source)
	})
	if err != nil {
		logger.Error("extract failed", zap.Error(err))
		return nil, &IngestError{Stage: StageReceived, Err: err}
	}
	if !extract.HasText(pages) {
		return nil, &IngestError{Stage: StageReceived, Err: appErr.ErrNoContent}
	}
	logger.Debug("document extracted", zap.Int("pages", len(pages)))

	chunks := s.deps.Chunker.Split(ctx, pages)
	if len(chunks) == 0 {
		return nil, &IngestError{Stage: StageExtracted, Err: appErr.ErrNoContent}
	}
	for i := range chunks {
		chunks[i].ID = newID()
		chunks[i].DocumentID = docID
	}

	fileKey := s.saveRaw(ctx, docID, req.Source)

	if err := s.index(ctx, chunks); err != nil {
		logger.Error("index chunks failed", zap.Error(err))
		s.removeRaw(ctx, fileKey)
		return nil, &IngestError{Stage: StageChunked, Err: fmt.Errorf("%w: %w", appErr.ErrIndexingFailed, err)}
	}

	doc := &model.Document{
		ID:         docID,
		OwnerID:    req.OwnerID,
		SourceKind: req.Kind,
		FileName:   req.Source.FileName,
		FileKey:    fileKey,
		SourceURL:  req.Source.URL,
		Collection: s.collection,
		PageCount:  len(pages),
		ChunkCount: len(chunks),
		UploadedAt: s.now().Unix(),
	}
	if err := s.deps.Retry.Run(ctx, "persist_document", func(ctx context.Context) error {
		return s.deps.Documents.Create(ctx, doc)
	}); err != nil {
		logger.Error("persist document failed, removing vectors", zap.Error(err))
		s.compensate(ctx, docID, fileKey)
		return nil, &IngestError{Stage: StageIndexed, Err: fmt.Errorf("%w: %w", appErr.ErrMetadataPersistFailed, err)}
	}

	res := &IngestResult{
		DocumentID: docID,
		PageCount:  doc.PageCount,
		ChunkCount: doc.ChunkCount,
		Message:    successMessage(req.Kind, req.Source),
		Text:       pages[0].Text,
	}
	switch req.Kind {
	case model.SourceKindImage:
		s.recordImage(ctx, req, docID, res.Text)
	case model.SourceKindVideo:
		if req.Source.URL == "" {
			break
		}
		stamps, err := extract.VideoTimestamps(req.Source.URL, res.Text)
		if err != nil {
			logger.Warn("parse video timestamps failed", zap.Error(err))
		}
		res.Timestamps = stamps
	}
	logger.Info("document ingested", zap.Int("pages", res.PageCount), zap.Int("chunks", res.ChunkCount))
	return res, nil
}

// index embeds every chunk with bounded concurrency and writes them in one
// insert. Vectors are only written once all embeddings succeed.
func (s *IngestService) index(ctx context.Context, chunks []model.Chunk) error {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, err := retry.Do(gctx, s.deps.Retry, "embed_chunk", func(ctx context.Context) ([]float32, error) {
				return s.deps.Embedder.Embed(ctx, chunks[i].Text, ai.TaskRetrievalDocument)
			})
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", chunks[i].Index, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	items := make([]vectorindex.Item, 0, len(chunks))
	for i, c := range chunks {
		chunks[i].Embedding = vectors[i]
		items = append(items, vectorindex.Item{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Vector:     vectors[i],
			Text:       c.Text,
			Metadata: map[string]string{
				vectorindex.MetaPage:  strconv.Itoa(c.PageNumber),
				vectorindex.MetaIndex: strconv.Itoa(c.Index),
			},
		})
	}
	return s.deps.Retry.Run(ctx, "insert_vectors", func(ctx context.Context) error {
		return s.deps.Index.Insert(ctx, s.collection, items)
	})
}

func (s *IngestService) compensate(ctx context.Context, docID, fileKey string) {
	// the caller's context may already be cancelled
	cctx := context.WithoutCancel(ctx)
	if err := s.deps.Index.DeleteByDocument(cctx, s.collection, docID); err != nil {
		logutil.GetLogger(ctx).Error("compensating vector delete failed",
			zap.String("document_id", docID), zap.Error(err))
	}
	s.removeRaw(cctx, fileKey)
}

func (s *IngestService) saveRaw(ctx context.Context, docID string, src *extract.Source) string {
	if s.deps.Files == nil || len(src.Data) == 0 {
		return ""
	}
	key := filestore.ObjectKey(docID, src.FileName)
	if err := s.deps.Files.Save(ctx, key, nopCloser{bytes.NewReader(src.Data)}, int64(len(src.Data))); err != nil {
		logutil.GetLogger(ctx).Warn("save raw upload failed",
			zap.String("document_id", docID), zap.String("file_key", key), zap.Error(err))
		return ""
	}
	return key
}

func (s *IngestService) removeRaw(ctx context.Context, key string) {
	if key == "" {
		return
	}
	deleter, ok := s.deps.Files.(filestore.Deleter)
	if !ok {
		return
	}
	if err := deleter.Delete(ctx, key); err != nil {
		logutil.GetLogger(ctx).Warn("remove raw upload failed", zap.String("file_key", key), zap.Error(err))
	}
}

func (s *IngestService) recordImage(ctx context.Context, req *IngestRequest, docID, description string) {
	if s.deps.Images == nil {
		return
	}
	img := &model.ImageRecord{
		ID:          newID(),
		UserID:      req.OwnerID,
		DocumentID:  docID,
		Description: description,
		Message:     req.Message,
		UploadedAt:  s.now().Unix(),
	}
	err := s.deps.Retry.Run(ctx, "persist_image", func(ctx context.Context) error {
		return s.deps.Images.Create(ctx, img)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logutil.GetLogger(ctx).Error("persist image record failed",
			zap.String("document_id", docID), zap.Error(err))
	}
}

func successMessage(kind model.SourceKind, src *extract.Source) string {
	switch kind {
	case model.SourceKindImage:
		return "Image processed successfully"
	case model.SourceKindVideo:
		if src.URL == "" {
			return "Video file processed successfully"
		}
		return "YouTube video processed successfully"
	default:
		return "Document processed successfully"
	}
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
