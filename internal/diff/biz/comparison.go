package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/kart-io/revdiff/internal/diff/metrics"
	"github.com/kart-io/revdiff/internal/diff/store"
	"github.com/kart-io/revdiff/internal/model"
	"github.com/kart-io/revdiff/internal/pkg/extract"
	"github.com/kart-io/revdiff/pkg/cache"
	"github.com/kart-io/revdiff/pkg/errors"
	"github.com/kart-io/revdiff/pkg/id"
	"github.com/kart-io/revdiff/pkg/llm"
	diffopts "github.com/kart-io/revdiff/pkg/options/diff"
)

// truncationMarker is appended to a version's content when it exceeds the
// prompt budget.
const truncationMarker = "\n[content truncated]"

const comparisonSystemPrompt = `You are a document change analyst. Compare two versions of a document and respond in exactly this format:

SUMMARY: <one or two sentences describing the change>
CHANGES:
- <one bullet per notable change>
SIGNIFICANCE: <one of: Minor, Medium, High, Critical>`

// CompareRequest identifies one comparison invocation.
type CompareRequest struct {
	FromVersionID string
	ToVersionID   string

	// Model optionally overrides the gateway's default model.
	Model string

	// UserID attributes the operation for rate limiting and accounting.
	// Anonymous requests leave it empty and are neither limited nor billed.
	UserID string

	IPAddress string
	UserAgent string
}

// aiResult is the content-addressed cache payload: the parsed completion plus
// the accounting data needed to rebuild a Comparison row without a model call.
type aiResult struct {
	Summary         string             `json:"summary"`
	DetailedChanges string             `json:"detailed_changes"`
	ChangeType      model.ChangeType   `json:"change_type"`
	Significance    model.Significance `json:"significance"`
	Confidence      float64            `json:"confidence"`
	Model           string             `json:"model"`
	TokensUsed      int                `json:"tokens_used"`
}

// ComparisonService orchestrates the comparison pipeline: cache tiers, store
// lookups, text extraction, the AI gateway, persistence and usage accounting.
type ComparisonService struct {
	factory   store.Factory
	extractor extract.Extractor
	gateway   llm.Gateway
	tracker   *UsageTracker
	cache     cache.Store
	opts      *diffopts.Options
	metrics   *metrics.DiffMetrics

	// group coalesces concurrent Compare calls for the same normalized pair
	// so the gateway is invoked at most once per distinct in-flight triple.
	group singleflight.Group

	now func() time.Time
}

// ComparisonServiceOption configures a ComparisonService.
type ComparisonServiceOption func(*ComparisonService)

// WithComparisonClock overrides the time source. Intended for tests.
func WithComparisonClock(now func() time.Time) ComparisonServiceOption {
	return func(s *ComparisonService) {
		s.now = now
	}
}

// NewComparisonService creates a ComparisonService.
func NewComparisonService(
	factory store.Factory,
	extractor extract.Extractor,
	gateway llm.Gateway,
	tracker *UsageTracker,
	cacheStore cache.Store,
	opts *diffopts.Options,
	serviceOpts ...ComparisonServiceOption,
) *ComparisonService {
	s := &ComparisonService{
		factory:   factory,
		extractor: extractor,
		gateway:   gateway,
		tracker:   tracker,
		cache:     cacheStore,
		opts:      opts,
		metrics:   metrics.GetDiffMetrics(),
		now:       time.Now,
	}
	for _, opt := range serviceOpts {
		opt(s)
	}
	return s
}

// normalizePair orders a version pair so that every lookup, cache key and
// stored row uses the same identity regardless of argument order.
func normalizePair(a, b string) (lo, hi string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Compare returns the comparison for a version pair, computing it if needed.
//
// The pair is order-normalized first, so Compare(A, B) and Compare(B, A) are
// the same operation. Concurrent calls for the same pair share one
// computation; the computation runs on a detached context so one cancelled
// caller cannot abort it for the others.
func (s *ComparisonService) Compare(ctx context.Context, req CompareRequest) (*model.Comparison, error) {
	if req.FromVersionID == req.ToVersionID {
		return nil, errors.ErrSameVersion
	}
	lo, hi := normalizePair(req.FromVersionID, req.ToVersionID)

	if req.UserID != "" && !s.tracker.CheckRateLimit(ctx, req.UserID, model.OperationVersionComparison) {
		return nil, errors.ErrRateLimitExceeded
	}

	// Resolve version metadata up front: the document ID is part of the
	// comparison identity and the cross-document check must fail fast.
	fromVersion, err := s.versionMetadata(ctx, lo)
	if err != nil {
		return nil, err
	}
	toVersion, err := s.versionMetadata(ctx, hi)
	if err != nil {
		return nil, err
	}
	if fromVersion.DocumentID != toVersion.DocumentID {
		return nil, errors.ErrCrossDocumentMismatch
	}

	key := comparisonKey(fromVersion.DocumentID, lo, hi)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.compute(context.WithoutCancel(ctx), key, fromVersion, toVersion, req)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Comparison), nil
	}
}

// compute runs the cache-miss path for one normalized pair. Called at most
// once per in-flight pair via the single-flight group.
func (s *ComparisonService) compute(ctx context.Context, key string, fromVersion, toVersion *model.DocumentVersion, req CompareRequest) (*model.Comparison, error) {
	// Tier 1: assembled comparison cache. Already accounted for at creation
	// time, so no usage event.
	var cached model.Comparison
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		s.metrics.RecordComparison(metrics.CacheTierComparison, nil)
		return &cached, nil
	}

	// Tier 2: comparison store. A hit repopulates the cache.
	cmp, err := s.factory.Comparisons().GetByPair(ctx, fromVersion.DocumentID, fromVersion.ID, toVersion.ID)
	if err == nil {
		s.cacheComparison(ctx, key, cmp)
		s.metrics.RecordComparison(metrics.CacheTierComparison, nil)
		return cmp, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		s.metrics.RecordComparison(metrics.CacheTierNone, err)
		return nil, errors.ErrPersistenceFailure.WithCause(err)
	}

	// Full miss: extract both sides.
	contentFrom, err := s.versionContent(ctx, fromVersion)
	if err != nil {
		s.metrics.RecordComparison(metrics.CacheTierNone, err)
		return nil, err
	}
	contentTo, err := s.versionContent(ctx, toVersion)
	if err != nil {
		s.metrics.RecordComparison(metrics.CacheTierNone, err)
		return nil, err
	}

	// Tier 3: content-addressed result cache. The key includes the requested
	// model, so a result generated by one model is never served for a request
	// that asked for another.
	resultKey := aiResultKey(req.Model, contentFrom, contentTo)
	var cachedResult aiResult
	if err := cache.GetJSON(ctx, s.cache, resultKey, &cachedResult); err == nil {
		cmp, err := s.persistAndCache(ctx, key, fromVersion, toVersion, &cachedResult, 0)
		if err != nil {
			s.metrics.RecordComparison(metrics.CacheTierAIResult, err)
			return nil, err
		}
		s.logCacheHitUsage(ctx, req, fromVersion.DocumentID, cachedResult.Model)
		s.metrics.RecordComparison(metrics.CacheTierAIResult, nil)
		return cmp, nil
	}

	// Tier miss everywhere: call the gateway.
	result, processingMs, err := s.generate(ctx, req, fromVersion.DocumentID, contentFrom, contentTo)
	if err != nil {
		s.metrics.RecordComparison(metrics.CacheTierNone, err)
		return nil, err
	}

	if cacheErr := cache.SetJSON(ctx, s.cache, resultKey, result, s.opts.AIResultTTL); cacheErr != nil {
		logger.Warnw("Failed to cache AI result", "key", resultKey, "err", cacheErr)
	}

	cmp, err = s.persistAndCache(ctx, key, fromVersion, toVersion, result, processingMs)
	if err != nil {
		s.metrics.RecordComparison(metrics.CacheTierNone, err)
		return nil, err
	}
	s.metrics.RecordComparison(metrics.CacheTierNone, nil)
	return cmp, nil
}

// generate builds the bounded prompt, calls the gateway, parses the
// completion and writes the usage event. A gateway failure or empty
// completion writes a failed event (when a user is attributed) and maps to
// the generation-failure error. The returned milliseconds are the wall-clock
// duration of the gateway call; cache-served results report zero.
func (s *ComparisonService) generate(ctx context.Context, req CompareRequest, documentID, contentFrom, contentTo string) (*aiResult, int64, error) {
	prompt := buildPrompt(contentFrom, contentTo, s.opts.MaxPromptChars)

	start := s.now()
	completion, err := s.gateway.Complete(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: comparisonSystemPrompt,
		Model:        req.Model,
	})
	elapsed := s.now().Sub(start)

	if err == nil && completion.Content == "" {
		err = fmt.Errorf("gateway returned empty completion")
	}
	if err != nil {
		s.metrics.RecordAICall(elapsed, 0, err)
		s.logFailedUsage(ctx, req, documentID, elapsed, len(prompt), err)
		return nil, 0, errors.ErrAIGenerationFailure.WithCause(err)
	}

	tokens := completion.TokensUsed
	if tokens == 0 {
		tokens = ApproxTokens(completion.Content)
	}
	s.metrics.RecordAICall(completion.ResponseTime, tokens, nil)

	parsed := ParseCompletion(completion.Content)
	result := &aiResult{
		Summary:         parsed.Summary,
		DetailedChanges: parsed.DetailedChanges,
		ChangeType:      parsed.ChangeType,
		Significance:    parsed.Significance,
		Confidence:      parsed.Confidence,
		Model:           completion.Model,
		TokensUsed:      tokens,
	}

	if req.UserID != "" {
		event := &model.UsageEvent{
			UserID:        req.UserID,
			OperationType: model.OperationVersionComparison,
			Model:         completion.Model,
			TokensUsed:    tokens,
			EstimatedCost: EstimateCost(completion.Model, tokens),
			ResponseTime:  elapsed.Milliseconds(),
			Success:       true,
			DocumentID:    documentID,
			InputSize:     len(prompt),
			OutputSize:    len(completion.Content),
			IPAddress:     req.IPAddress,
			UserAgent:     req.UserAgent,
		}
		if logErr := s.tracker.LogUsage(ctx, event); logErr != nil {
			logger.Warnw("Failed to log usage event", "user", req.UserID, "err", logErr)
		}
	}
	return result, elapsed.Milliseconds(), nil
}

// persistAndCache builds the Comparison row from a parsed result, stores it
// and caches it at the comparison tier. A duplicate insert from a concurrent
// writer yields the winner's row. A store failure here happens after the AI
// call has already been billed, so it is logged and mapped to a persistence
// error without writing a second usage event.
func (s *ComparisonService) persistAndCache(ctx context.Context, key string, fromVersion, toVersion *model.DocumentVersion, result *aiResult, processingTimeMs int64) (*model.Comparison, error) {
	now := s.now().UTC()
	cmp := &model.Comparison{
		ID:              id.NewULID(),
		DocumentID:      fromVersion.DocumentID,
		FromVersionID:   fromVersion.ID,
		ToVersionID:     toVersion.ID,
		ChangeSummary:   result.Summary,
		DetailedChanges: result.DetailedChanges,
		ChangeType:      result.ChangeType,
		Significance:    result.Significance,
		AIModel:         result.Model,
		ConfidenceScore: result.Confidence,
		ProcessingTime:  processingTimeMs,
		TokensUsed:      result.TokensUsed,
		EstimatedCost:   EstimateCost(result.Model, result.TokensUsed),
		GeneratedAt:     now,
	}

	stored, created, err := s.factory.Comparisons().CreateOrGet(ctx, cmp)
	if err != nil {
		logger.Errorw("Failed to persist comparison after generation",
			"document", fromVersion.DocumentID, "from", fromVersion.ID, "to", toVersion.ID, "err", err)
		return nil, errors.ErrPersistenceFailure.WithCause(err)
	}
	if !created {
		logger.Infow("Concurrent writer won comparison insert, reusing row",
			"id", stored.ID, "document", stored.DocumentID)
	}

	s.cacheComparison(ctx, key, stored)
	if _, err := s.cache.RemoveByPrefix(ctx, docStatsPrefix(stored.DocumentID)); err != nil {
		logger.Warnw("Failed to invalidate document caches", "document", stored.DocumentID, "err", err)
	}
	return stored, nil
}

func (s *ComparisonService) cacheComparison(ctx context.Context, key string, cmp *model.Comparison) {
	if err := cache.SetJSON(ctx, s.cache, key, cmp, s.opts.ComparisonTTL); err != nil {
		logger.Warnw("Failed to cache comparison", "key", key, "err", err)
	}
}

// logCacheHitUsage records a free, cache-served usage event. Only attributed
// requests are logged.
func (s *ComparisonService) logCacheHitUsage(ctx context.Context, req CompareRequest, documentID, servedModel string) {
	if req.UserID == "" {
		return
	}
	event := &model.UsageEvent{
		UserID:          req.UserID,
		OperationType:   model.OperationVersionComparison,
		Model:           servedModel,
		Success:         true,
		ServedFromCache: true,
		DocumentID:      documentID,
		IPAddress:       req.IPAddress,
		UserAgent:       req.UserAgent,
	}
	if err := s.tracker.LogUsage(ctx, event); err != nil {
		logger.Warnw("Failed to log cache-hit usage event", "user", req.UserID, "err", err)
	}
}

func (s *ComparisonService) logFailedUsage(ctx context.Context, req CompareRequest, documentID string, elapsed time.Duration, inputSize int, cause error) {
	if req.UserID == "" {
		return
	}
	event := &model.UsageEvent{
		UserID:        req.UserID,
		OperationType: model.OperationVersionComparison,
		Model:         req.Model,
		ResponseTime:  elapsed.Milliseconds(),
		Success:       false,
		ErrorMessage:  truncate(cause.Error(), 512),
		DocumentID:    documentID,
		InputSize:     inputSize,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
	}
	if err := s.tracker.LogUsage(ctx, event); err != nil {
		logger.Warnw("Failed to log failed usage event", "user", req.UserID, "err", err)
	}
}

// versionMetadata resolves version metadata through its cache tier.
func (s *ComparisonService) versionMetadata(ctx context.Context, versionID string) (*model.DocumentVersion, error) {
	key := versionKey(versionID)

	var cached model.DocumentVersion
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		return &cached, nil
	}

	version, err := s.factory.Versions().Get(ctx, versionID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrVersionNotFound.WithMessagef("Document version %s not found", versionID)
		}
		return nil, errors.ErrPersistenceFailure.WithCause(err)
	}

	if err := cache.SetJSON(ctx, s.cache, key, version, s.opts.VersionMetadataTTL); err != nil {
		logger.Warnw("Failed to cache version metadata", "version", versionID, "err", err)
	}
	return version, nil
}

// versionContent resolves a version's extracted text through its cache tier.
func (s *ComparisonService) versionContent(ctx context.Context, version *model.DocumentVersion) (string, error) {
	key := contentKey(version.ID)

	if data, err := s.cache.Get(ctx, key); err == nil {
		return string(data), nil
	}

	text, err := s.extractor.ExtractFromVersion(ctx, version)
	s.metrics.RecordExtraction(err)
	if err != nil {
		return "", errors.ErrExtractionFailure.WithCause(err)
	}

	if err := s.cache.SetWithTTL(ctx, key, []byte(text), s.opts.ExtractedContentTTL); err != nil {
		logger.Warnw("Failed to cache extracted content", "version", version.ID, "err", err)
	}
	return text, nil
}

// buildPrompt bounds each side to budget characters and labels the halves.
func buildPrompt(contentFrom, contentTo string, budget int) string {
	return fmt.Sprintf("PREVIOUS VERSION:\n%s\n\nCURRENT VERSION:\n%s",
		boundContent(contentFrom, budget), boundContent(contentTo, budget))
}

func boundContent(content string, budget int) string {
	if len(content) <= budget {
		return content
	}
	return content[:budget] + truncationMarker
}

// GetComparison returns a comparison by ID.
func (s *ComparisonService) GetComparison(ctx context.Context, comparisonID string) (*model.Comparison, error) {
	cmp, err := s.factory.Comparisons().Get(ctx, comparisonID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrComparisonNotFound
		}
		return nil, errors.ErrPersistenceFailure.WithCause(err)
	}
	return cmp, nil
}

// documentListing is the cached ListByDocument payload.
type documentListing struct {
	Total int64               `json:"total"`
	Items []*model.Comparison `json:"items"`
}

// ListByDocument lists a document's comparisons, newest first. Listings are
// cached per (document, offset, limit) and invalidated on insert and delete.
func (s *ComparisonService) ListByDocument(ctx context.Context, documentID string, offset, limit int) (int64, []*model.Comparison, error) {
	key := fmt.Sprintf("%slist:%d:%d", docStatsPrefix(documentID), offset, limit)

	var cached documentListing
	if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
		return cached.Total, cached.Items, nil
	}

	total, items, err := s.factory.Comparisons().ListByDocument(ctx, documentID, offset, limit)
	if err != nil {
		return 0, nil, errors.ErrPersistenceFailure.WithCause(err)
	}

	if err := cache.SetJSON(ctx, s.cache, key, &documentListing{Total: total, Items: items}, s.opts.ComparisonTTL); err != nil {
		logger.Warnw("Failed to cache document listing", "document", documentID, "err", err)
	}
	return total, items, nil
}

// DeleteComparison removes a comparison and evicts its comparison-tier entry
// and the document's aggregate caches. The content-addressed AI-result tier
// is left alone: a later recompute of the same content may still reuse it.
func (s *ComparisonService) DeleteComparison(ctx context.Context, comparisonID string) error {
	cmp, err := s.GetComparison(ctx, comparisonID)
	if err != nil {
		return err
	}

	if err := s.factory.Comparisons().Delete(ctx, comparisonID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrComparisonNotFound
		}
		return errors.ErrPersistenceFailure.WithCause(err)
	}

	key := comparisonKey(cmp.DocumentID, cmp.FromVersionID, cmp.ToVersionID)
	if err := s.cache.Remove(ctx, key); err != nil {
		logger.Warnw("Failed to evict comparison cache entry", "key", key, "err", err)
	}
	if _, err := s.cache.RemoveByPrefix(ctx, docStatsPrefix(cmp.DocumentID)); err != nil {
		logger.Warnw("Failed to evict document caches", "document", cmp.DocumentID, "err", err)
	}
	return nil
}
