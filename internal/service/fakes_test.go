package service

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xxxsen/scholarai/internal/chunker"
	"github.com/xxxsen/scholarai/internal/extract"
	"github.com/xxxsen/scholarai/internal/model"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
	"github.com/xxxsen/scholarai/internal/retry"
	"github.com/xxxsen/scholarai/internal/semcache"
	"github.com/xxxsen/scholarai/internal/vectorindex"
)

const (
	testDim        = 32
	testCollection = "demo_collection"
)

// hashEmbedder maps words onto a fixed number of buckets, so texts sharing
// words land close together.
type hashEmbedder struct {
	calls atomic.Int32
	err   error
}

func (e *hashEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, testDim)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%testDim]++
	}
	vec[testDim-1] += 0.01
	return vec, nil
}

func (e *hashEmbedder) ModelName() string { return "hash" }

type fakeChat struct {
	answer string
	err    error
	calls  atomic.Int32
	last   string
}

func (c *fakeChat) Complete(ctx context.Context, systemPrompt string, userMessage string) (string, error) {
	c.calls.Add(1)
	c.last = systemPrompt
	if c.err != nil {
		return "", c.err
	}
	return c.answer, nil
}

type fakeExtractor struct {
	pages    []model.Page
	failures int
	err      error
	calls    int
}

func (f *fakeExtractor) Extract(ctx context.Context, src *extract.Source) ([]model.Page, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, appErr.ErrUnavailable
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

type memDocuments struct {
	mu        sync.Mutex
	docs      map[string]*model.Document
	createErr error
}

func newMemDocuments() *memDocuments {
	return &memDocuments{docs: map[string]*model.Document{}}
}

func (m *memDocuments) Create(ctx context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDocuments) GetByOwner(ctx context.Context, docID, ownerID string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docID]
	if !ok || doc.OwnerID != ownerID {
		return nil, appErr.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocuments) ListByOwner(ctx context.Context, ownerID string, offset, limit uint) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Document, 0)
	for _, d := range m.docs {
		if d.OwnerID == ownerID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDocuments) Delete(ctx context.Context, docID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docID]
	if !ok || doc.OwnerID != ownerID {
		return appErr.ErrNotFound
	}
	delete(m.docs, docID)
	return nil
}

type memAnswers struct {
	mu        sync.Mutex
	recs      []*model.AnswerRecord
	createErr error
}

func (m *memAnswers) Create(ctx context.Context, rec *model.AnswerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memAnswers) ListByDocument(ctx context.Context, docID, userID string) ([]*model.AnswerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.AnswerRecord, 0)
	for _, r := range m.recs {
		if r.DocumentID == docID && r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memAnswers) DeleteByDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.recs[:0]
	for _, r := range m.recs {
		if r.DocumentID != docID {
			kept = append(kept, r)
		}
	}
	m.recs = kept
	return nil
}

type memImages struct {
	mu   sync.Mutex
	imgs map[string]*model.ImageRecord
}

func (m *memImages) Create(ctx context.Context, img *model.ImageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.imgs == nil {
		m.imgs = map[string]*model.ImageRecord{}
	}
	m.imgs[img.DocumentID] = img
	return nil
}

func (m *memImages) DeleteByDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.imgs, docID)
	return nil
}

type recordingIndex struct {
	vectorindex.Index
	mu        sync.Mutex
	deleted   []string
	deleteErr error
}

func (r *recordingIndex) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	r.mu.Lock()
	r.deleted = append(r.deleted, documentID)
	deleteErr := r.deleteErr
	r.mu.Unlock()
	if deleteErr != nil {
		return deleteErr
	}
	return r.Index.DeleteByDocument(ctx, collection, documentID)
}

type testEnv struct {
	extractor *fakeExtractor
	embedder  *hashEmbedder
	chat      *fakeChat
	index     *recordingIndex
	docs      *memDocuments
	answers   *memAnswers
	images    *memImages
	cache     semcache.Cache
	ingest    *IngestService
	qa        *QAService
	documents *DocumentService
}

func fastRetry() *retry.Executor {
	return retry.New(retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
}

func newTestEnv(pages []model.Page) *testEnv {
	env := &testEnv{
		extractor: &fakeExtractor{pages: pages},
		embedder:  &hashEmbedder{},
		chat:      &fakeChat{answer: "Chapter 1 introduces the course."},
		index:     &recordingIndex{Index: vectorindex.NewMemory()},
		docs:      newMemDocuments(),
		answers:   &memAnswers{},
		images:    &memImages{},
	}
	if err := env.index.CreateCollection(context.Background(), testCollection, testDim, vectorindex.MetricCosine); err != nil {
		panic(err)
	}
	cache, err := semcache.New(env.embedder, semcache.NewMemoryBackend(100, time.Hour), semcache.Config{Threshold: semcache.DefaultThreshold})
	if err != nil {
		panic(err)
	}
	env.cache = cache
	rt := fastRetry()
	env.ingest = NewIngestService(IngestDeps{
		Extractors: map[model.SourceKind]extract.TextExtractor{
			model.SourceKindPDF:   env.extractor,
			model.SourceKindImage: env.extractor,
		},
		Chunker:   chunker.MustNew(chunker.Options{}),
		Embedder:  env.embedder,
		Index:     env.index,
		Documents: env.docs,
		Images:    env.images,
		Retry:     rt,
	}, IngestConfig{Collection: testCollection, EmbedConcurrency: 2})
	env.qa = NewQAService(QADeps{
		Documents: env.docs,
		Answers:   env.answers,
		Index:     env.index,
		Cache:     env.cache,
		Embedder:  env.embedder,
		Chat:      env.chat,
		Retry:     rt,
	}, QAConfig{TopK: 3})
	env.documents = NewDocumentService(DocumentDeps{
		Documents: env.docs,
		Answers:   env.answers,
		Images:    env.images,
		Index:     env.index,
		Cache:     env.cache,
		Retry:     rt,
	})
	return env
}

func twoChapterPages() []model.Page {
	return []model.Page{
		{Number: 1, Text: "Chapter 1: Intro"},
		{Number: 2, Text: "Chapter 2: Details"},
	}
}
