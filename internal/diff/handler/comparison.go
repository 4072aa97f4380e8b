// Package handler provides HTTP handlers for the comparison service.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/revdiff/internal/diff/biz"
	"github.com/kart-io/revdiff/pkg/errors"
	"github.com/kart-io/revdiff/pkg/response"
)

// userIDHeader carries the optional caller identity for rate limiting and
// usage accounting.
const userIDHeader = "X-User-ID"

// ComparisonHandler handles comparison HTTP requests.
type ComparisonHandler struct {
	service *biz.ComparisonService
	regen   *biz.Regenerator
}

// NewComparisonHandler creates a ComparisonHandler.
func NewComparisonHandler(service *biz.ComparisonService, regen *biz.Regenerator) *ComparisonHandler {
	return &ComparisonHandler{service: service, regen: regen}
}

// CompareRequest is the compare request body.
type CompareRequest struct {
	FromVersionID string `json:"from_version_id" binding:"required"`
	ToVersionID   string `json:"to_version_id" binding:"required"`
	Model         string `json:"model"`
}

// Compare computes (or serves) the comparison for a version pair.
func (h *ComparisonHandler) Compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, errors.ErrBadRequest.WithCause(err))
		return
	}

	cmp, err := h.service.Compare(c.Request.Context(), biz.CompareRequest{
		FromVersionID: req.FromVersionID,
		ToVersionID:   req.ToVersionID,
		Model:         req.Model,
		UserID:        c.GetHeader(userIDHeader),
		IPAddress:     c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	})
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, cmp)
}

// Get returns a comparison by ID.
func (h *ComparisonHandler) Get(c *gin.Context) {
	cmp, err := h.service.GetComparison(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, cmp)
}

// Delete removes a comparison and evicts its caches.
func (h *ComparisonHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteComparison(c.Request.Context(), c.Param("id")); err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OKWithMessage(c, "Comparison deleted", nil)
}

// ListByDocument lists a document's comparisons, newest first.
func (h *ComparisonHandler) ListByDocument(c *gin.Context) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	total, items, err := h.service.ListByDocument(c.Request.Context(), c.Param("id"), (page-1)*pageSize, pageSize)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.PageOK(c, items, total, page, pageSize)
}

// RegenerateRequest is the optional regenerate request body.
type RegenerateRequest struct {
	Model string `json:"model"`
}

// Regenerate queues a background latest-pair regeneration for a document.
func (h *ComparisonHandler) Regenerate(c *gin.Context) {
	var req RegenerateRequest
	// Body is optional.
	_ = c.ShouldBindJSON(&req)

	if err := h.regen.Enqueue(c.Param("id"), req.Model); err != nil {
		response.Fail(c, errors.ErrTooManyRequests.WithCause(err))
		return
	}
	response.OKWithMessage(c, "Regeneration queued", nil)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
