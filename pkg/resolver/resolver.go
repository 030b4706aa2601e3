package resolver

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/shopkeeper-ai/shopkeeper/pkg/intent"
	"github.com/shopkeeper-ai/shopkeeper/pkg/knowledge"
	"github.com/shopkeeper-ai/shopkeeper/pkg/llm"
	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
	"github.com/shopkeeper-ai/shopkeeper/pkg/queryperf"
	"github.com/shopkeeper-ai/shopkeeper/pkg/textproc"
)

const (
	DefaultLLMTimeout   = 30 * time.Second
	DefaultHistoryTurns = 6
	DefaultMaxProducts  = 3
	DefaultMaxPolicies  = 2

	journalTimeout     = 2 * time.Second
	maxJournalQuestion = 500
)

var errNoGateway = errors.New("no llm gateway configured")

// ResponseCache is the answer cache consulted first and filled by later tiers.
type ResponseCache interface {
	Lookup(ctx context.Context, question string) (string, models.HitKind, bool)
	Store(ctx context.Context, question, answer string)
}

// Recorder receives one response per request and any errors.
type Recorder interface {
	RecordResponse(latency time.Duration, cacheHit bool, kind models.HitKind)
	RecordError(errorType, message string)
}

// Journal keeps a durable record of interactions.
type Journal interface {
	Record(ctx context.Context, rec models.InteractionRecord) error
}

// Deps are the collaborators of a Resolver. Search is required; every
// other field may be left nil.
type Deps struct {
	Cache      ResponseCache
	Classifier *intent.Classifier
	Search     knowledge.Search
	// Texts defaults to Search when it also implements knowledge.TextProvider.
	Texts    knowledge.TextProvider
	Gateway  llm.Gateway
	Recorder Recorder
	Analyzer *queryperf.Analyzer
	Journal  Journal
	Logger   zerolog.Logger
}

// Options tune a Resolver. Zero fields take defaults.
type Options struct {
	SystemPrompt string
	HistoryTurns int
	LLMTimeout   time.Duration
	MaxProducts  int
	MaxPolicies  int
	Clock        func() time.Time
}

// Resolver answers customer questions through a fixed sequence of tiers:
// cache, catalog retrieval, local rules, LLM, static fallback. It is safe
// for concurrent use.
type Resolver struct {
	cache      ResponseCache
	classifier *intent.Classifier
	search     knowledge.Search
	texts      knowledge.TextProvider
	gateway    llm.Gateway
	recorder   Recorder
	analyzer   *queryperf.Analyzer
	journal    Journal
	logger     zerolog.Logger

	systemPrompt string
	historyTurns int
	llmTimeout   time.Duration
	maxProducts  int
	maxPolicies  int
	now          func() time.Time

	flight singleflight.Group
}

// New creates a Resolver.
func New(deps Deps, opts Options) (*Resolver, error) {
	if deps.Search == nil {
		return nil, errors.New("resolver: knowledge search is required")
	}

	r := &Resolver{
		cache:        deps.Cache,
		classifier:   deps.Classifier,
		search:       deps.Search,
		texts:        deps.Texts,
		gateway:      deps.Gateway,
		recorder:     deps.Recorder,
		analyzer:     deps.Analyzer,
		journal:      deps.Journal,
		logger:       deps.Logger,
		systemPrompt: opts.SystemPrompt,
		historyTurns: opts.HistoryTurns,
		llmTimeout:   opts.LLMTimeout,
		maxProducts:  opts.MaxProducts,
		maxPolicies:  opts.MaxPolicies,
		now:          opts.Clock,
	}
	if r.cache == nil {
		r.cache = noopCache{}
	}
	if r.classifier == nil {
		r.classifier = intent.NewClassifier()
	}
	if r.texts == nil {
		if tp, ok := deps.Search.(knowledge.TextProvider); ok {
			r.texts = tp
		}
	}
	if r.recorder == nil {
		r.recorder = noopRecorder{}
	}
	if r.historyTurns <= 0 {
		r.historyTurns = DefaultHistoryTurns
	}
	if r.llmTimeout <= 0 {
		r.llmTimeout = DefaultLLMTimeout
	}
	if r.maxProducts <= 0 {
		r.maxProducts = DefaultMaxProducts
	}
	if r.maxPolicies <= 0 {
		r.maxPolicies = DefaultMaxPolicies
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Resolve returns an answer for question. It never fails: internal errors
// yield an apology.
func (r *Resolver) Resolve(ctx context.Context, question string, history []models.ChatMessage) string {
	return r.ResolveDetailed(ctx, question, history).Answer
}

// ResolveDetailed is Resolve plus the outcome, intent and latency. Exactly
// one response is recorded per call.
func (r *Resolver) ResolveDetailed(ctx context.Context, question string, history []models.ChatMessage) (res models.Resolution) {
	start := r.now()
	requestID := uuid.NewString()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().
				Str("request_id", requestID).
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("resolve panicked")
			res = r.systemError(res.Intent, fmt.Errorf("panic: %v", p))
		}
		res.RequestID = requestID
		res.Latency = r.now().Sub(start)
		r.finish(ctx, question, res)
	}()

	q := r.newQuestion(question)
	res.Intent = q.Intent

	res, err := r.resolve(ctx, q, history)
	if err != nil {
		r.logger.Error().Err(err).Str("request_id", requestID).Msg("resolve failed")
		res = r.systemError(res.Intent, err)
	}
	return res
}

func (r *Resolver) newQuestion(raw string) models.Question {
	return models.Question{
		Raw:        raw,
		Normalized: textproc.Normalize(raw),
		Tokens:     textproc.Tokenize(raw),
		Intent:     string(r.classifier.Classify(raw)),
	}
}

func (r *Resolver) resolve(ctx context.Context, q models.Question, history []models.ChatMessage) (models.Resolution, error) {
	res := models.Resolution{Intent: q.Intent}

	if answer, kind, ok := r.cache.Lookup(ctx, q.Raw); ok {
		res.Answer = answer
		res.Outcome = models.OutcomeExactCacheHit
		if kind == models.HitSimilarity {
			res.Outcome = models.OutcomeSimilarityCacheHit
		}
		return res, nil
	}

	products, policies, err := r.retrieve(ctx, q)
	if err != nil {
		return res, err
	}
	if len(products) == 0 && len(policies) == 0 {
		res.Answer = noInformationAnswer(intent.Category(q.Intent))
		res.Outcome = models.OutcomeNoInformation
		return res, nil
	}

	answer, ok, err := r.localAnswer(ctx, q)
	if err != nil {
		return res, err
	}
	if ok {
		r.cache.Store(ctx, q.Raw, answer)
		res.Answer = answer
		res.Outcome = models.OutcomeLocalRuleHit
		return res, nil
	}

	products = products[:min(len(products), r.maxProducts)]
	policies = policies[:min(len(policies), r.maxPolicies)]

	answer, err = r.askLLM(ctx, q, history, products, policies)
	if err == nil {
		r.cache.Store(ctx, q.Raw, answer)
		res.Answer = answer
		res.Outcome = models.OutcomeLLMHit
		return res, nil
	}

	r.logger.Warn().Err(err).Str("intent", q.Intent).Msg("llm unavailable, using static answer")
	r.safely("record llm error", func() { r.recorder.RecordError("llm_error", err.Error()) })

	answer = staticAnswer(products, policies)
	if ctx.Err() == nil {
		r.cache.Store(ctx, q.Raw, answer)
	}
	res.Answer = answer
	res.Outcome = models.OutcomeLLMError
	return res, nil
}

// retrieve gathers candidate products and policy sections for q.
func (r *Resolver) retrieve(ctx context.Context, q models.Question) ([]models.Product, []models.PolicySection, error) {
	if len(q.Tokens) == 0 {
		return nil, nil, nil
	}
	products, err := queryperf.Observe(r.analyzer, ctx, "search_products", q.Intent, func(ctx context.Context) ([]models.Product, error) {
		return r.search.SearchProducts(ctx, q.Raw)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("search products: %w", err)
	}
	policies, err := queryperf.Observe(r.analyzer, ctx, "search_policies", q.Intent, func(ctx context.Context) ([]models.PolicySection, error) {
		return r.search.SearchPolicies(ctx, q.Raw)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("search policies: %w", err)
	}
	return products, policies, nil
}

// askLLM asks the gateway with catalog context. Identical first-turn
// questions in flight share one call. The shared call is detached from any
// single caller's cancellation and bounded only by the LLM timeout; a caller
// whose context ends stops waiting without affecting the others.
func (r *Resolver) askLLM(ctx context.Context, q models.Question, history []models.ChatMessage, products []models.Product, policies []models.PolicySection) (string, error) {
	if r.gateway == nil {
		return "", errNoGateway
	}

	messages := append(trimHistory(history, r.historyTurns), models.ChatMessage{
		Role:    models.RoleUser,
		Content: buildPrompt(q.Raw, products, policies),
	})
	call := func(ctx context.Context) (string, error) {
		return queryperf.Observe(r.analyzer, ctx, "llm_completion", q.Intent, func(ctx context.Context) (string, error) {
			return r.complete(ctx, messages)
		})
	}

	var (
		answer string
		err    error
	)
	if len(history) == 0 {
		shared := context.WithoutCancel(ctx)
		ch := r.flight.DoChan(q.Normalized, func() (any, error) { return call(shared) })
		select {
		case res := <-ch:
			answer, _ = res.Val.(string)
			err = res.Err
		case <-ctx.Done():
			return "", fmt.Errorf("llm completion: %w", ctx.Err())
		}
	} else {
		answer, err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	if answer = strings.TrimSpace(answer); answer == "" {
		return "", llm.ErrEmptyCompletion
	}
	return answer, nil
}

// complete bounds the gateway call by the LLM timeout even if the gateway
// ignores its context.
func (r *Resolver) complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.llmTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("llm gateway panic: %v", p)}
			}
		}()
		text, err := r.gateway.Complete(ctx, r.systemPrompt, messages)
		done <- result{text, err}
	}()

	select {
	case res := <-done:
		return res.text, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("llm completion: %w", ctx.Err())
	}
}

// trimHistory keeps the last turns messages.
func trimHistory(history []models.ChatMessage, turns int) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, min(len(history), turns)+1)
	for _, m := range history[max(0, len(history)-turns):] {
		if strings.TrimSpace(m.Content) != "" {
			out = append(out, m)
		}
	}
	return out
}

func (r *Resolver) systemError(intentName string, err error) models.Resolution {
	r.safely("record system error", func() { r.recorder.RecordError("system_error", err.Error()) })
	return models.Resolution{
		Answer:  apologyAnswer,
		Outcome: models.OutcomeSystemError,
		Intent:  intentName,
	}
}

// finish records the single response sample and journal row for a request.
func (r *Resolver) finish(ctx context.Context, question string, res models.Resolution) {
	kind := models.HitNone
	switch res.Outcome {
	case models.OutcomeExactCacheHit:
		kind = models.HitExact
	case models.OutcomeSimilarityCacheHit:
		kind = models.HitSimilarity
	}
	r.safely("record response", func() { r.recorder.RecordResponse(res.Latency, res.Outcome.CacheHit(), kind) })

	r.logger.Debug().
		Str("request_id", res.RequestID).
		Str("outcome", string(res.Outcome)).
		Str("intent", res.Intent).
		Dur("latency", res.Latency).
		Msg("question resolved")

	if r.journal == nil {
		return
	}
	r.safely("journal", func() {
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
		defer cancel()
		err := r.journal.Record(jctx, models.InteractionRecord{
			RequestID:   res.RequestID,
			Question:    truncateRunes(question, maxJournalQuestion),
			Intent:      res.Intent,
			Outcome:     res.Outcome,
			LatencyMs:   res.Latency.Milliseconds(),
			AnswerChars: utf8.RuneCountInString(res.Answer),
			CreatedAt:   r.now(),
		})
		if err != nil {
			r.logger.Warn().Err(err).Str("request_id", res.RequestID).Msg("journal write failed")
		}
	})
}

// safely runs fn and logs instead of propagating a panic.
func (r *Resolver) safely(what string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Interface("panic", p).Str("op", what).Msg("instrumentation panicked")
		}
	}()
	fn()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

type noopCache struct{}

func (noopCache) Lookup(context.Context, string) (string, models.HitKind, bool) {
	return "", models.HitNone, false
}
func (noopCache) Store(context.Context, string, string) {}

type noopRecorder struct{}

func (noopRecorder) RecordResponse(time.Duration, bool, models.HitKind) {}
func (noopRecorder) RecordError(string, string)                       {}
