// Package api serves the backlink dashboard HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/checker"
	"github.com/lukemcguire/backlinkwatch/importer"
	"github.com/lukemcguire/backlinkwatch/logger"
	"github.com/lukemcguire/backlinkwatch/monitor"
	"github.com/lukemcguire/backlinkwatch/report"
	"github.com/lukemcguire/backlinkwatch/result"
	"github.com/lukemcguire/backlinkwatch/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxUploadBytes  = 10 << 20
)

// Repository is the backlink persistence the handlers need; *store.Store
// implements it.
type Repository interface {
	Insert(ctx context.Context, rec backlink.Record) (backlink.Record, error)
	InsertMany(ctx context.Context, recs []backlink.Record) (int, error)
	Get(ctx context.Context, id int64) (backlink.Record, error)
	List(ctx context.Context, f store.Filter) ([]backlink.Record, error)
	Count(ctx context.Context, f store.Filter) (int, error)
	IDs(ctx context.Context, f store.Filter) ([]int64, error)
	Delete(ctx context.Context, id int64) error
	DeleteMany(ctx context.Context, ids []int64) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Checks runs verifications; *monitor.Service implements it.
type Checks interface {
	CheckDue(ctx context.Context, force bool) (*checker.RunResult, error)
	CheckIDs(ctx context.Context, ids []int64) (*checker.RunResult, error)
	Test(ctx context.Context, liveLink, targetURL, targetAnchor string) (result.Verification, error)
	Stats(ctx context.Context) (backlink.Stats, error)
}

// Handler serves the backlink endpoints.
type Handler struct {
	repo   Repository
	checks Checks
	log    logger.Logger
	now    func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(repo Repository, checks Checks, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{repo: repo, checks: checks, log: log, now: time.Now}
}

// placementRequest is the body of create and test-link requests.
type placementRequest struct {
	LiveLink     string `json:"live_link"`
	TargetURL    string `json:"target_url"`
	TargetAnchor string `json:"target_anchor"`
}

func (p placementRequest) complete() bool {
	return strings.TrimSpace(p.LiveLink) != "" &&
		strings.TrimSpace(p.TargetURL) != "" &&
		strings.TrimSpace(p.TargetAnchor) != ""
}

// listResponse is the paginated backlink list.
type listResponse struct {
	Backlinks  []backlink.Record `json:"backlinks"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}

// checkResponse summarizes a check run.
type checkResponse struct {
	Success     bool   `json:"success"`
	RunID       string `json:"run_id"`
	Processed   int    `json:"processed"`
	Found       int    `json:"found"`
	Errors      int    `json:"errors"`
	Skipped     int    `json:"skipped"`
	Removed     int    `json:"removed"`
	Interrupted bool   `json:"interrupted"`
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListBacklinks handles GET /api/backlinks.
func (h *Handler) ListBacklinks(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := positiveQuery(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := positiveQuery(c, "limit", defaultPageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit = min(limit, maxPageSize)

	ctx := c.Request.Context()
	total, err := h.repo.Count(ctx, filter)
	if err != nil {
		h.internalError(c, "count backlinks", err)
		return
	}

	filter.Limit = limit
	filter.Offset = (page - 1) * limit
	recs, err := h.repo.List(ctx, filter)
	if err != nil {
		h.internalError(c, "list backlinks", err)
		return
	}

	c.JSON(http.StatusOK, listResponse{
		Backlinks:  recs,
		Total:      total,
		Page:       page,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	})
}

// ListIDs handles GET /api/backlinks/ids.
func (h *Handler) ListIDs(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := h.repo.IDs(c.Request.Context(), filter)
	if err != nil {
		h.internalError(c, "list backlink ids", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "ids": ids})
}

// GetBacklink handles GET /api/backlinks/:id.
func (h *Handler) GetBacklink(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		h.repoError(c, "get backlink", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// CreateBacklink handles POST /api/backlinks.
func (h *Handler) CreateBacklink(c *gin.Context) {
	var req placementRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.complete() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	rec, err := h.repo.Insert(c.Request.Context(), backlink.New(req.LiveLink, req.TargetURL, req.TargetAnchor))
	if err != nil {
		h.repoError(c, "create backlink", err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// DeleteBacklink handles DELETE /api/backlinks/:id.
func (h *Handler) DeleteBacklink(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.repoError(c, "delete backlink", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// BulkDelete handles POST /api/backlinks/bulk-delete.
func (h *Handler) BulkDelete(c *gin.Context) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No IDs provided"})
		return
	}
	deleted, err := h.repo.DeleteMany(c.Request.Context(), req.IDs)
	if err != nil {
		h.internalError(c, "bulk delete backlinks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": deleted})
}

// DeleteAll handles DELETE /api/backlinks/delete-all.
func (h *Handler) DeleteAll(c *gin.Context) {
	deleted, err := h.repo.DeleteAll(c.Request.Context())
	if err != nil {
		h.internalError(c, "delete all backlinks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"deleted": deleted,
		"message": fmt.Sprintf("Successfully deleted %d backlinks", deleted),
	})
}

// Upload handles POST /api/upload: a multipart CSV or XLSX file in the
// csvFile (or file) field.
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fh, err := c.FormFile("csvFile")
	if err != nil {
		fh, err = c.FormFile("file")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	file, err := fh.Open()
	if err != nil {
		h.internalError(c, "open upload", err)
		return
	}
	defer func() { _ = file.Close() }()

	var parsed importer.Result
	if strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
		parsed, err = importer.ReadXLSX(file)
	} else {
		parsed, err = importer.ReadCSV(file)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error processing file: " + err.Error()})
		return
	}

	inserted, err := h.repo.InsertMany(c.Request.Context(), parsed.Records)
	if err != nil {
		h.internalError(c, "import backlinks", err)
		return
	}

	h.log.Info("backlinks imported",
		logger.String("file", fh.Filename),
		logger.Int("imported", inserted),
		logger.Int("rejected", len(parsed.Errors)),
	)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  fmt.Sprintf("Uploaded %d backlinks", inserted),
		"count":    inserted,
		"rejected": len(parsed.Errors),
		"errors":   parsed.Errors,
	})
}

// CheckLinks handles POST /api/check-links. The body may set forceAll to
// check every record, or ids to check specific records.
func (h *Handler) CheckLinks(c *gin.Context) {
	var req struct {
		ForceAll bool    `json:"forceAll"`
		IDs      []int64 `json:"ids"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	ctx := c.Request.Context()
	var (
		res *checker.RunResult
		err error
	)
	if len(req.IDs) > 0 {
		res, err = h.checks.CheckIDs(ctx, req.IDs)
	} else {
		res, err = h.checks.CheckDue(ctx, req.ForceAll)
	}
	if errors.Is(err, monitor.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "A check run is already in progress"})
		return
	}
	if err != nil {
		h.internalError(c, "check links", err)
		return
	}

	c.JSON(http.StatusOK, checkResponse{
		Success:     true,
		RunID:       res.RunID,
		Processed:   res.Stats.Checked,
		Found:       res.Stats.LinksFound,
		Errors:      res.Stats.Errors + res.Stats.Unreachable,
		Skipped:     res.Stats.Skipped,
		Removed:     res.Stats.Removed,
		Interrupted: res.Interrupted,
	})
}

// TestLink handles POST /api/test-link.
func (h *Handler) TestLink(c *gin.Context) {
	var req placementRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.complete() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	v, err := h.checks.Test(c.Request.Context(), req.LiveLink, req.TargetURL, req.TargetAnchor)
	if err != nil {
		h.repoError(c, "test link", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(c *gin.Context) {
	st, err := h.checks.Stats(c.Request.Context())
	if err != nil {
		h.internalError(c, "load stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Export handles GET /api/export. format=json returns JSON, anything else CSV.
func (h *Handler) Export(c *gin.Context) {
	recs, err := h.repo.List(c.Request.Context(), store.Filter{})
	if err != nil {
		h.internalError(c, "export backlinks", err)
		return
	}

	if c.Query("format") == "json" {
		c.Header("Content-Type", "application/json")
		c.Header("Content-Disposition", "attachment; filename=backlinks-report.json")
		if err := report.WriteJSON(c.Writer, recs); err != nil {
			h.log.Error("failed to write json export", logger.Error(err))
		}
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=backlinks-report.csv")
	if err := report.WriteExportCSV(c.Writer, recs); err != nil {
		h.log.Error("failed to write csv export", logger.Error(err))
	}
}

// Template handles GET /api/template. format=xlsx returns a workbook.
func (h *Handler) Template(c *gin.Context) {
	if c.Query("format") == "xlsx" {
		c.Header("Content-Type", xlsxContentType)
		c.Header("Content-Disposition", "attachment; filename=backlink-template.xlsx")
		if err := importer.WriteXLSXTemplate(c.Writer); err != nil {
			h.log.Error("failed to write xlsx template", logger.Error(err))
		}
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=backlink-template.csv")
	if err := importer.WriteTemplate(c.Writer); err != nil {
		h.log.Error("failed to write csv template", logger.Error(err))
	}
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExcelReport handles GET /api/reports/excel.
func (h *Handler) ExcelReport(c *gin.Context) {
	recs, err := h.repo.List(c.Request.Context(), store.Filter{})
	if err != nil {
		h.internalError(c, "load report backlinks", err)
		return
	}

	now := h.now()
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=backlink-report-%s.xlsx", now.UTC().Format("2006-01-02")))
	if err := report.WriteXLSX(c.Writer, recs, now); err != nil {
		h.log.Error("failed to write excel report", logger.Error(err))
	}
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.log.Error("request failed",
		logger.String("operation", op),
		logger.String("path", c.FullPath()),
		logger.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}

// repoError maps not-found and validation errors to 4xx responses.
func (h *Handler) repoError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Backlink not found"})
	case errors.Is(err, backlink.ErrInvalidRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.internalError(c, op, err)
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid backlink id"})
		return 0, false
	}
	return id, true
}

func parseFilter(c *gin.Context) (store.Filter, error) {
	var f store.Filter
	if status := c.Query("status"); status != "" {
		f.Status = result.Status(status)
		if !f.Status.Valid() {
			return f, fmt.Errorf("invalid status %q", status)
		}
	}
	if raw, ok := c.GetQuery("link_found"); ok {
		found := raw == "true" || raw == "1"
		f.LinkFound = &found
	}
	return f, nil
}

func positiveQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}
