package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Diff service errors (Service: 20).
//
// These cover the comparison pipeline's failure taxonomy: missing inputs,
// cross-document requests, extraction and generation failures, and the
// persistence step after a successful (billed) generation.
var (
	// ErrVersionNotFound indicates a requested document version does not exist.
	ErrVersionNotFound = Register(&Errno{
		Code:      MakeCode(ServiceDiff, CategoryResource, 0),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Document version not found",
		MessageZH: "文档版本不存在",
	})

	// ErrComparisonNotFound indicates a requested comparison does not exist.
	ErrComparisonNotFound = Register(&Errno{
		Code:      MakeCode(ServiceDiff, CategoryResource, 1),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Comparison not found",
		MessageZH: "对比记录不存在",
	})

	// ErrCrossDocumentMismatch indicates the two versions belong to different documents.
	ErrCrossDocumentMismatch = Register(&Errno{
		Code:      MakeCode(ServiceDiff, CategoryRequest, 0),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Versions belong to different documents",
		MessageZH: "版本分属不同文档",
	})

	// ErrSameVersion indicates both sides of the pair are the same version.
	ErrSameVersion = Register(&Errno{
		Code:      MakeCode(ServiceDiff, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Cannot compare a version with itself",
		MessageZH: "不能与自身版本对比",
	})

	// ErrExtractionFailure indicates text extraction failed or yielded empty content.
	ErrExtractionFailure = Register(&Errno{
		Code:      MakeCode(ServiceDiff, CategoryInternal, 0),
		HTTP:      http.StatusUnprocessableEntity,
		GRPCCode:  codes.FailedPrecondition,
		MessageEN: "Text extraction failed",
		MessageZH: "文本提取失败",
	})

	// ErrAIGenerationFailure covers gateway network, auth, rate-limit and
	// empty-response failures.
	ErrAIGenerationFailure = Register(&Errno{
		Code:      MakeCode(ServiceDiff, CategoryNetwork, 0),
		HTTP:      http.StatusBadGateway,
		GRPCCode:  codes.Unavailable,
		MessageEN: "AI generation failed",
		MessageZH: "AI 生成失败",
	})

	// ErrPersistenceFailure indicates the comparison could not be stored.
	ErrPersistenceFailure = Register(&Errno{
		Code:      MakeCode(ServiceDiff, CategoryDatabase, 0),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Failed to persist comparison",
		MessageZH: "对比结果持久化失败",
	})

	// ErrRateLimitExceeded indicates the user exhausted the comparison quota.
	ErrRateLimitExceeded = Register(&Errno{
		Code:      MakeCode(ServiceDiff, CategoryRateLimit, 0),
		HTTP:      http.StatusTooManyRequests,
		GRPCCode:  codes.ResourceExhausted,
		MessageEN: "Comparison rate limit exceeded",
		MessageZH: "对比操作超出速率限制",
	})
)
