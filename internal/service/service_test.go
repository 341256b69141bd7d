package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/scholarai/internal/extract"
	"github.com/xxxsen/scholarai/internal/model"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
	"github.com/xxxsen/scholarai/internal/vectorindex"
)

func ingestPDF(t *testing.T, env *testEnv, owner string) *IngestResult {
	t.Helper()
	res, err := env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: owner,
		Kind:    model.SourceKindPDF,
		Source:  &extract.Source{FileName: "notes.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")},
	})
	require.NoError(t, err)
	return res
}

func TestUploadThenAsk(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	res := ingestPDF(t, env, "user-1")
	require.NotEmpty(t, res.DocumentID)
	require.Equal(t, 2, res.PageCount)
	require.Equal(t, 2, res.ChunkCount)
	require.Equal(t, "Document processed successfully", res.Message)

	doc, err := env.docs.GetByOwner(context.Background(), res.DocumentID, "user-1")
	require.NoError(t, err)
	require.Equal(t, testCollection, doc.Collection)
	require.Equal(t, 2, doc.PageCount)

	ans, err := env.qa.Ask(context.Background(), &AskRequest{
		DocumentID: res.DocumentID,
		UserID:     "user-1",
		Question:   "What does chapter 1 cover?",
	})
	require.NoError(t, err)
	require.NotEmpty(t, ans.Answer)
	require.NotEmpty(t, ans.QAID)
	require.False(t, ans.Cached)
	require.Contains(t, ans.Context, "Chapter 1: Intro")
	require.Contains(t, env.chat.last, "Chapter 1: Intro")

	history, err := env.documents.History(context.Background(), "user-1", res.DocumentID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, ans.QAID, history[0].ID)
}

func TestRepeatedQuestionHitsCache(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	res := ingestPDF(t, env, "user-1")
	req := &AskRequest{DocumentID: res.DocumentID, UserID: "user-1", Question: "What does chapter 1 cover?"}

	first, err := env.qa.Ask(context.Background(), req)
	require.NoError(t, err)
	second, err := env.qa.Ask(context.Background(), req)
	require.NoError(t, err)

	require.True(t, second.Cached)
	require.Equal(t, first.Answer, second.Answer)
	require.Equal(t, first.Context, second.Context)
	require.Equal(t, int32(1), env.chat.calls.Load())
	require.Len(t, env.answers.recs, 2)
}

func TestCacheIsScopedByDocument(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	a := ingestPDF(t, env, "user-1")
	b := ingestPDF(t, env, "user-1")

	_, err := env.qa.Ask(context.Background(), &AskRequest{DocumentID: a.DocumentID, UserID: "user-1", Question: "chapter 1?"})
	require.NoError(t, err)
	got, err := env.qa.Ask(context.Background(), &AskRequest{DocumentID: b.DocumentID, UserID: "user-1", Question: "chapter 1?"})
	require.NoError(t, err)
	require.False(t, got.Cached)
	require.Equal(t, int32(2), env.chat.calls.Load())
}

func TestAskDeniedForOtherUsers(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	res := ingestPDF(t, env, "owner")

	_, err := env.qa.Ask(context.Background(), &AskRequest{DocumentID: res.DocumentID, UserID: "intruder", Question: "chapter 1?"})
	require.True(t, errors.Is(err, appErr.ErrForbidden))

	_, err = env.qa.Ask(context.Background(), &AskRequest{DocumentID: "no-such-doc", UserID: "intruder", Question: "chapter 1?"})
	require.True(t, errors.Is(err, appErr.ErrForbidden))
	require.Equal(t, int32(0), env.chat.calls.Load())
}

func TestAskRejectsKindMismatch(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	res := ingestPDF(t, env, "user-1")
	_, err := env.qa.Ask(context.Background(), &AskRequest{
		DocumentID: res.DocumentID, UserID: "user-1", Question: "q", Kind: model.SourceKindVideo,
	})
	require.True(t, errors.Is(err, appErr.ErrForbidden))
}

func TestAskValidation(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	_, err := env.qa.Ask(context.Background(), &AskRequest{UserID: "user-1", Question: "q"})
	require.True(t, errors.Is(err, appErr.ErrInvalid))
	_, err = env.qa.Ask(context.Background(), &AskRequest{DocumentID: "d", UserID: "user-1", Question: "   "})
	require.True(t, errors.Is(err, appErr.ErrInvalid))
}

func TestAskWithoutRetrievedContext(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	require.NoError(t, env.docs.Create(context.Background(), &model.Document{
		ID: "empty-doc", OwnerID: "user-1", SourceKind: model.SourceKindPDF, Collection: testCollection,
	}))

	ans, err := env.qa.Ask(context.Background(), &AskRequest{DocumentID: "empty-doc", UserID: "user-1", Question: "anything?"})
	require.NoError(t, err)
	require.Equal(t, NoContextAnswer, ans.Answer)
	require.NotNil(t, ans.Context)
	require.Empty(t, ans.Context)
	require.Empty(t, ans.QAID)
	require.Equal(t, int32(0), env.chat.calls.Load())
	require.Empty(t, env.answers.recs)

	// nothing was cached, so a second ask still goes through retrieval
	again, err := env.qa.Ask(context.Background(), &AskRequest{DocumentID: "empty-doc", UserID: "user-1", Question: "anything?"})
	require.NoError(t, err)
	require.False(t, again.Cached)
}

func TestAskChatRejected(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	res := ingestPDF(t, env, "user-1")
	env.chat.err = appErr.ErrModelRejected

	_, err := env.qa.Ask(context.Background(), &AskRequest{DocumentID: res.DocumentID, UserID: "user-1", Question: "chapter 1?"})
	require.True(t, errors.Is(err, appErr.ErrModelRejected))
	require.Equal(t, int32(1), env.chat.calls.Load())
}

func TestAskChatUnavailableRetried(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	res := ingestPDF(t, env, "user-1")
	env.chat.err = appErr.ErrModelUnavailable

	_, err := env.qa.Ask(context.Background(), &AskRequest{DocumentID: res.DocumentID, UserID: "user-1", Question: "chapter 1?"})
	require.True(t, errors.Is(err, appErr.ErrModelUnavailable))
	require.Equal(t, int32(3), env.chat.calls.Load())
}

func TestIngestNoContent(t *testing.T) {
	env := newTestEnv([]model.Page{{Number: 1, Text: "  \n "}})
	_, err := env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: "user-1", Kind: model.SourceKindPDF, Source: &extract.Source{Data: []byte("x")},
	})
	var ingestErr *IngestError
	require.True(t, errors.As(err, &ingestErr))
	require.Equal(t, StageReceived, ingestErr.Stage)
	require.True(t, errors.Is(err, appErr.ErrNoContent))
	require.Equal(t, 1, env.extractor.calls)
	require.Empty(t, env.docs.docs)
}

func TestIngestRetriesExtraction(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	env.extractor.failures = 2
	res := ingestPDF(t, env, "user-1")
	require.Equal(t, 3, env.extractor.calls)
	require.Equal(t, 2, res.PageCount)
}

func TestIngestUnsupportedFileNotRetried(t *testing.T) {
	env := newTestEnv(nil)
	env.extractor.err = appErr.ErrUnsupportedFile
	_, err := env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: "user-1", Kind: model.SourceKindPDF, Source: &extract.Source{Data: []byte("x")},
	})
	require.True(t, errors.Is(err, appErr.ErrUnsupportedFile))
	require.Equal(t, 1, env.extractor.calls)
}

func TestIngestUnknownKind(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	_, err := env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: "user-1", Kind: model.SourceKindVideo, Source: &extract.Source{URL: "https://youtu.be/x"},
	})
	require.True(t, errors.Is(err, appErr.ErrInvalid))
}

func TestIngestEmbeddingFailure(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	env.embedder.err = appErr.ErrUnauthorized
	_, err := env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: "user-1", Kind: model.SourceKindPDF, Source: &extract.Source{Data: []byte("x")},
	})
	var ingestErr *IngestError
	require.True(t, errors.As(err, &ingestErr))
	require.Equal(t, StageChunked, ingestErr.Stage)
	require.True(t, errors.Is(err, appErr.ErrIndexingFailed))
	require.True(t, errors.Is(err, appErr.ErrUnauthorized))
	require.Empty(t, env.docs.docs)
}

func TestIngestCompensatesOnMetadataFailure(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	env.docs.createErr = appErr.ErrConflict

	_, err := env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: "user-1", Kind: model.SourceKindPDF, Source: &extract.Source{Data: []byte("x")},
	})
	var ingestErr *IngestError
	require.True(t, errors.As(err, &ingestErr))
	require.Equal(t, StageIndexed, ingestErr.Stage)
	require.True(t, errors.Is(err, appErr.ErrMetadataPersistFailed))
	require.True(t, errors.Is(err, appErr.ErrConflict))

	require.Len(t, env.index.deleted, 1)
	hits, err := env.index.Query(context.Background(), testCollection, vectorindex.Query{
		Vector: make([]float32, testDim), K: 3, DocumentID: env.index.deleted[0],
	})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestIngestCompensationFailureKeepsOriginalError(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	env.docs.createErr = appErr.ErrConflict
	env.index.deleteErr = appErr.ErrRetrievalUnavailable

	_, err := env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: "user-1", Kind: model.SourceKindPDF, Source: &extract.Source{Data: []byte("x")},
	})
	var ingestErr *IngestError
	require.True(t, errors.As(err, &ingestErr))
	require.Equal(t, StageIndexed, ingestErr.Stage)
	require.True(t, errors.Is(err, appErr.ErrMetadataPersistFailed))
	require.True(t, errors.Is(err, appErr.ErrConflict))
	require.False(t, errors.Is(err, appErr.ErrRetrievalUnavailable))
	require.Len(t, env.index.deleted, 1)
}

func TestAskPersistFailureStillAnswers(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	res := ingestPDF(t, env, "user-1")
	env.answers.createErr = appErr.ErrUnavailable

	ans, err := env.qa.Ask(context.Background(), &AskRequest{
		DocumentID: res.DocumentID,
		UserID:     "user-1",
		Question:   "What does chapter 1 cover?",
	})
	require.NoError(t, err)
	require.Equal(t, "Chapter 1 introduces the course.", ans.Answer)
	require.NotEmpty(t, ans.Context)
	require.Empty(t, ans.QAID)

	history, err := env.documents.History(context.Background(), "user-1", res.DocumentID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestIngestImageRecordsImage(t *testing.T) {
	env := newTestEnv([]model.Page{{Number: 1, Text: "A diagram of the water cycle."}})
	res, err := env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: "user-1",
		Kind:    model.SourceKindImage,
		Source:  &extract.Source{MimeType: "image/png", Data: []byte("png")},
		Message: "homework",
	})
	require.NoError(t, err)
	require.Equal(t, "A diagram of the water cycle.", res.Text)
	img := env.images.imgs[res.DocumentID]
	require.NotNil(t, img)
	require.Equal(t, "homework", img.Message)
}

func TestUploadRealPDFThenAsk(t *testing.T) {
	data, err := os.ReadFile("../extract/testdata/two_chapters.pdf")
	require.NoError(t, err)
	env := newTestEnv(nil)
	env.ingest.deps.Extractors[model.SourceKindPDF] = extract.NewPDF()

	res, err := env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: "user-1",
		Kind:    model.SourceKindPDF,
		Source:  &extract.Source{FileName: "two_chapters.pdf", MimeType: "application/pdf", Data: data},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.PageCount)
	require.Equal(t, 2, res.ChunkCount)

	ans, err := env.qa.Ask(context.Background(), &AskRequest{
		DocumentID: res.DocumentID,
		UserID:     "user-1",
		Question:   "What does chapter 2 cover?",
	})
	require.NoError(t, err)
	require.Len(t, ans.Context, 2)
	require.Contains(t, env.chat.last, "Chapter 1: Intro")
	require.Contains(t, env.chat.last, "Chapter 2: Details")
}

func TestIngestVideoSources(t *testing.T) {
	env := newTestEnv([]model.Page{{Number: 1, Text: "Heaps at 2:15. Quiz: 1) What is a heap? Answer key: 1) a tree."}})
	env.ingest.deps.Extractors[model.SourceKindVideo] = env.extractor

	res, err := env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: "user-1",
		Kind:    model.SourceKindVideo,
		Source:  &extract.Source{FileName: "week3.mp4", MimeType: "video/mp4", Data: []byte("video")},
	})
	require.NoError(t, err)
	require.Equal(t, "Video file processed successfully", res.Message)
	require.Empty(t, res.Timestamps)

	res, err = env.ingest.Ingest(context.Background(), &IngestRequest{
		OwnerID: "user-1",
		Kind:    model.SourceKindVideo,
		Source:  &extract.Source{URL: "https://youtu.be/abc"},
	})
	require.NoError(t, err)
	require.Equal(t, "YouTube video processed successfully", res.Message)
	require.Len(t, res.Timestamps, 1)
	require.Equal(t, 135, res.Timestamps[0].Seconds)
}

func TestDeleteCascade(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	res := ingestPDF(t, env, "user-1")
	_, err := env.qa.Ask(context.Background(), &AskRequest{DocumentID: res.DocumentID, UserID: "user-1", Question: "chapter 1?"})
	require.NoError(t, err)

	require.True(t, errors.Is(env.documents.Delete(context.Background(), "intruder", res.DocumentID), appErr.ErrNotFound))
	require.NoError(t, env.documents.Delete(context.Background(), "user-1", res.DocumentID))

	_, err = env.documents.Get(context.Background(), "user-1", res.DocumentID)
	require.True(t, errors.Is(err, appErr.ErrNotFound))
	require.Empty(t, env.answers.recs)
	hits, err := env.index.Query(context.Background(), testCollection, vectorindex.Query{
		Vector: make([]float32, testDim), K: 3, DocumentID: res.DocumentID,
	})
	require.NoError(t, err)
	require.Empty(t, hits)
	_, ok, err := env.cache.Lookup(context.Background(), res.DocumentID, "chapter 1?")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListDocuments(t *testing.T) {
	env := newTestEnv(twoChapterPages())
	ingestPDF(t, env, "user-1")
	ingestPDF(t, env, "user-1")
	ingestPDF(t, env, "user-2")

	docs, err := env.documents.List(context.Background(), "user-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
}
