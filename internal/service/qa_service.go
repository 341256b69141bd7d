package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/scholarai/internal/ai"
	"github.com/xxxsen/scholarai/internal/model"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
	"github.com/xxxsen/scholarai/internal/retry"
	"github.com/xxxsen/scholarai/internal/semcache"
	"github.com/xxxsen/scholarai/internal/vectorindex"
)

// NoContextAnswer is returned when retrieval finds nothing for the question.
const NoContextAnswer = "I could not find relevant content in this document to answer your question."

const (
	defaultTopK = 3
	maxQuestion = 4000
)

type AskRequest struct {
	DocumentID  string
	UserID      string
	DisplayName string
	Question    string
	// Kind restricts the question to documents of one source kind. Empty
	// accepts any.
	Kind model.SourceKind
}

type AskResult struct {
	QAID    string   `json:"qa_id"`
	Answer  string   `json:"answer"`
	Context []string `json:"context"`
	Cached  bool     `json:"cached"`
}

type QADeps struct {
	Documents DocumentStore
	Answers   AnswerStore
	Index     vectorindex.Index
	Cache     semcache.Cache
	Embedder  ai.IEmbedder
	Chat      ai.IChatModel
	Retry     *retry.Executor
}

type QAConfig struct {
	TopK   int
	Mode   vectorindex.Mode
	Lambda float64
}

type QAService struct {
	deps QADeps
	cfg  QAConfig
	now  func() time.Time
}

func NewQAService(deps QADeps, cfg QAConfig) *QAService {
	if deps.Retry == nil {
		deps.Retry = retry.New(retry.Config{})
	}
	if deps.Cache == nil {
		deps.Cache = semcache.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.Mode == "" {
		cfg.Mode = vectorindex.ModeSimilarity
	}
	return &QAService{deps: deps, cfg: cfg, now: time.Now}
}

func (s *QAService) Ask(ctx context.Context, req *AskRequest) (*AskResult, error) {
	question := strings.TrimSpace(req.Question)
	if req.DocumentID == "" || question == "" {
		return nil, fmt.Errorf("document_id and question are required: %w", appErr.ErrInvalid)
	}
	if len(question) > maxQuestion {
		return nil, fmt.Errorf("question too long: %w", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", req.DocumentID), zap.String("user_id", req.UserID))

	doc, err := s.authorize(ctx, req)
	if err != nil {
		return nil, err
	}

	if entry, ok, err := s.deps.Cache.Lookup(ctx, doc.ID, question); err != nil {
		logger.Warn("semantic cache lookup failed", zap.Error(err))
	} else if ok {
		logger.Debug("answer served from semantic cache", zap.Float64("distance", entry.Distance))
		res := &AskResult{Answer: entry.Answer, Context: nonNil(entry.Context), Cached: true}
		res.QAID = s.persist(ctx, req, question, res)
		return res, nil
	}

	chunks, err := s.retrieve(ctx, doc, question)
	if err != nil {
		logger.Error("retrieve context failed", zap.Error(err))
		return nil, err
	}
	if len(chunks) == 0 {
		logger.Info("no relevant context found")
		return &AskResult{Answer: NoContextAnswer, Context: []string{}}, nil
	}

	system, user := ai.RenderQAPrompt(ai.QAPromptVars{
		Context:         strings.Join(chunks, "\n\n"),
		Question:        question,
		UserDisplayName: req.DisplayName,
	})
	answer, err := retry.Do(ctx, s.deps.Retry, "chat_complete", func(ctx context.Context) (string, error) {
		return s.deps.Chat.Complete(ctx, system, user)
	})
	if err != nil {
		logger.Error("generate answer failed", zap.Error(err))
		return nil, err
	}

	if err := s.deps.Cache.Store(ctx, doc.ID, question, answer, chunks); err != nil {
		logger.Warn("semantic cache store failed", zap.Error(err))
	}
	res := &AskResult{Answer: answer, Context: chunks}
	res.QAID = s.persist(ctx, req, question, res)
	return res, nil
}

// authorize is evaluated on every request. A foreign document and a missing
// one are indistinguishable to the caller.
func (s *QAService) authorize(ctx context.Context, req *AskRequest) (*model.Document, error) {
	doc, err := retry.Do(ctx, s.deps.Retry, "check_access", func(ctx context.Context) (*model.Document, error) {
		return s.deps.Documents.GetByOwner(ctx, req.DocumentID, req.UserID)
	})
	if errors.Is(err, appErr.ErrNotFound) {
		return nil, fmt.Errorf("document %s: %w", req.DocumentID, appErr.ErrForbidden)
	}
	if err != nil {
		return nil, err
	}
	if req.Kind != "" && doc.SourceKind != req.Kind {
		return nil, fmt.Errorf("document %s is not a %s: %w", req.DocumentID, req.Kind, appErr.ErrForbidden)
	}
	return doc, nil
}

func (s *QAService) retrieve(ctx context.Context, doc *model.Document, question string) ([]string, error) {
	vec, err := retry.Do(ctx, s.deps.Retry, "embed_query", func(ctx context.Context) ([]float32, error) {
		return s.deps.Embedder.Embed(ctx, question, ai.TaskRetrievalQuery)
	})
	if err != nil {
		return nil, err
	}
	q := vectorindex.Query{
		Vector:     vec,
		K:          s.cfg.TopK,
		Mode:       s.cfg.Mode,
		DocumentID: doc.ID,
		Lambda:     s.cfg.Lambda,
	}
	hits, err := retry.Do(ctx, s.deps.Retry, "query_vectors", func(ctx context.Context) ([]vectorindex.Hit, error) {
		return s.deps.Index.Query(ctx, doc.Collection, q)
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Text)
	}
	return out, nil
}

// persist records the exchange and returns its id. Failures are logged, the
// answer is still returned and the id is empty.
func (s *QAService) persist(ctx context.Context, req *AskRequest, question string, res *AskResult) string {
	if s.deps.Answers == nil {
		return ""
	}
	rec := &model.AnswerRecord{
		ID:         newID(),
		DocumentID: req.DocumentID,
		UserID:     req.UserID,
		Question:   question,
		Answer:     res.Answer,
		Context:    res.Context,
		Ctime:      s.now().Unix(),
	}
	err := s.deps.Retry.Run(ctx, "persist_answer", func(ctx context.Context) error {
		return s.deps.Answers.Create(ctx, rec)
	})
	if err != nil {
		logutil.GetLogger(ctx).Error("persist answer failed",
			zap.String("document_id", req.DocumentID), zap.Error(err))
		return ""
	}
	return rec.ID
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
