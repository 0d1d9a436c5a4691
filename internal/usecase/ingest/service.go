package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/agent"
	"github.com/kailas-cloud/equidex/internal/domain/document"
	"github.com/kailas-cloud/equidex/internal/domain/fragment"
	"github.com/kailas-cloud/equidex/internal/logger"
)

// Chunking defaults, in characters.
const (
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 200
)

// summaryShapeName is the structured response name for chunk summaries.
const summaryShapeName = "chunk_summary"

// SummaryResponse is the shape the chunk summary agent answers with.
type SummaryResponse struct {
	Summary string `json:"summary" jsonschema_description:"One-paragraph summary of the chunk"`
}

// Validate rejects empty summaries.
func (r *SummaryResponse) Validate() error {
	if strings.TrimSpace(r.Summary) == "" {
		return fmt.Errorf("summary is empty")
	}
	return nil
}

// Service turns source documents into an embedded, immutable corpus.
type Service struct {
	embed         Embedder
	splitter      textsplitter.TextSplitter
	summarizer    Generator
	summaryAgent  agent.Agent
	summaryBudget int
	concurrency   int
	logger        *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithChunking sets chunk size and overlap for narrative text.
func WithChunking(size, overlap int) Option {
	return func(s *Service) {
		if size <= 0 {
			size = DefaultChunkSize
		}
		if overlap < 0 || overlap >= size {
			overlap = 0
		}
		s.splitter = newSplitter(size, overlap)
	}
}

// WithSummarizer condenses each narrative chunk with the chunk summary agent before embedding.
// A failed summary keeps the raw chunk.
func WithSummarizer(gen Generator, tokenBudget, concurrency int) Option {
	return func(s *Service) {
		s.summarizer = gen
		s.summaryBudget = tokenBudget
		if concurrency > 0 {
			s.concurrency = concurrency
		}
	}
}

// New creates an ingestion service.
func New(embed Embedder, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		embed:        embed,
		splitter:     newSplitter(DefaultChunkSize, DefaultChunkOverlap),
		summaryAgent: agent.ChunkSummary(),
		concurrency:  4,
		logger:       log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func newSplitter(size, overlap int) textsplitter.TextSplitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
}

type pending struct {
	payload string
	source  string
}

// Build chunks, serializes and embeds docs. Categories are embedded in text, table, article order.
func (s *Service) Build(ctx context.Context, docs []document.Document) (*fragment.Corpus, error) {
	log := logger.FromContextOr(ctx, s.logger)
	byCat := make(map[fragment.Category][]pending, len(fragment.Categories()))

	for _, d := range docs {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}

		chunks, err := s.chunks(ctx, d)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			byCat[fragment.Text] = append(byCat[fragment.Text], pending{payload: c, source: d.Name})
		}
		for _, t := range d.Tables {
			byCat[fragment.Table] = append(byCat[fragment.Table], pending{payload: t.Text(), source: d.Name})
		}
		for _, a := range d.Articles {
			if a.HTML != "" {
				parsed, err := ArticleFromHTML(strings.NewReader(a.HTML))
				if err != nil {
					return nil, fmt.Errorf("%w: document %q: %w", domain.ErrInvalidRequest, d.Name, err)
				}
				if a.Title == "" {
					a.Title = parsed.Title
				}
				if a.Summary == "" {
					a.Summary = parsed.Summary
				}
			}
			if text := a.Text(); text != "" {
				byCat[fragment.Article] = append(byCat[fragment.Article], pending{payload: text, source: d.Name})
			}
		}
	}

	total := 0
	for _, p := range byCat {
		total += len(p)
	}
	if total == 0 {
		return nil, domain.ErrEmptyCorpus
	}

	b := fragment.NewBuilder(0)
	for _, cat := range fragment.Categories() {
		items := byCat[cat]
		if len(items) == 0 {
			continue
		}
		texts := make([]string, len(items))
		for i, p := range items {
			texts[i] = p.payload
		}

		res, err := domain.EmbedAll(ctx, s.embed, texts)
		if err != nil {
			return nil, fmt.Errorf("embed %s fragments: %w", cat, err)
		}
		for i, p := range items {
			f, err := fragment.New(p.payload, cat, res.Embeddings[i])
			if err != nil {
				return nil, fmt.Errorf("%s fragment %d: %w", cat, i, err)
			}
			if err := b.Add(f.WithSource(p.source)); err != nil {
				return nil, fmt.Errorf("%s fragment %d: %w", cat, i, err)
			}
		}
	}

	corpus := b.Build()
	log.Info("Corpus built",
		zap.Int("documents", len(docs)),
		zap.Int("text", corpus.Count(fragment.Text)),
		zap.Int("table", corpus.Count(fragment.Table)),
		zap.Int("article", corpus.Count(fragment.Article)),
		zap.Int("dimension", corpus.Dimension()),
	)
	return corpus, nil
}

// chunks splits narrative text and optionally summarizes every chunk.
func (s *Service) chunks(ctx context.Context, d document.Document) ([]string, error) {
	if strings.TrimSpace(d.Text) == "" {
		return nil, nil
	}
	raw, err := s.splitter.SplitText(d.Text)
	if err != nil {
		return nil, fmt.Errorf("split document %q: %w", d.Name, err)
	}

	chunks := raw[:0]
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}
	if s.summarizer == nil || len(chunks) == 0 {
		return chunks, nil
	}

	out := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			out[i] = s.summarize(gctx, d.Name, i, c)
			return nil
		})
	}
	_ = g.Wait() // summarize never fails
	return out, nil
}

func (s *Service) summarize(ctx context.Context, docName string, i int, chunk string) string {
	prompt, err := s.summaryAgent.Render([]string{chunk}, s.summaryBudget)
	if err != nil {
		return chunk
	}

	var resp SummaryResponse
	usage, err := s.summarizer.Generate(ctx, domain.GenerationRequest{
		System: prompt.System,
		User:   prompt.User,
		Shape:  domain.Shape{Name: summaryShapeName, Target: &resp},
	})
	domain.UsageFromContext(ctx).AddGeneration(usage.PromptTokens, usage.CompletionTokens)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Warn("Chunk summary failed, keeping raw chunk",
			zap.String("document", docName),
			zap.Int("chunk", i),
			zap.Error(err),
		)
		return chunk
	}
	return strings.TrimSpace(resp.Summary)
}
