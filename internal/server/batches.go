package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
)

const dateLayout = "2006-01-02"

func parseID(c *gin.Context, param string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param(param))
	if err != nil {
		AbortWithError(c, newValidationError(param, "invalid_id", "malformed id"))
		return 0, false
	}
	return id, true
}

func parseDate(raw string) (time.Time, bool) {
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

type createBatchRequest struct {
	PeriodStart     string           `json:"period_start" binding:"required"`
	PeriodEnd       string           `json:"period_end" binding:"required"`
	Mode            string           `json:"mode" binding:"required"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	DiscountFlat    decimal.Decimal  `json:"discount_flat"`
	TaxRate         *decimal.Decimal `json:"tax_rate"`
}

func (s *Server) CreateBatch(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start, okStart := parseDate(req.PeriodStart)
	end, okEnd := parseDate(req.PeriodEnd)
	if !okStart || !okEnd {
		AbortWithError(c, billingdomain.ErrInvalidDateRange)
		return
	}

	batch, err := s.billingSvc.CreateBatch(c.Request.Context(), billingdomain.CreateBatchRequest{
		PeriodStart:     start,
		PeriodEnd:       end,
		Mode:            billingdomain.InvoiceMode(req.Mode),
		DiscountPercent: req.DiscountPercent,
		DiscountFlat:    req.DiscountFlat,
		TaxRate:         req.TaxRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

func (s *Server) PreviewBatchID(c *gin.Context) {
	start, ok := parseDate(c.Query("period_start"))
	if !ok {
		AbortWithError(c, billingdomain.ErrInvalidDateRange)
		return
	}

	number, err := s.billingSvc.PreviewBatchID(c.Request.Context(), start)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_number": number})
}

func (s *Server) ListBatches(c *gin.Context) {
	batches, err := s.billingSvc.ListBatches(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

func (s *Server) GetBatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	batch, err := s.billingSvc.GetBatch(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (s *Server) ListBatchLines(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	lines, err := s.billingSvc.Lines(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

type generateBatchRequest struct {
	ClientIDs  []string `json:"client_ids"`
	ProjectIDs []string `json:"project_ids"`
}

func (s *Server) GenerateBatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req generateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	clientIDs, err := parseIDList(req.ClientIDs)
	if err != nil {
		AbortWithError(c, newValidationError("client_ids", "invalid_id", "malformed id"))
		return
	}
	projectIDs, err := parseIDList(req.ProjectIDs)
	if err != nil {
		AbortWithError(c, newValidationError("project_ids", "invalid_id", "malformed id"))
		return
	}

	result, err := s.billingSvc.Generate(c.Request.Context(), billingdomain.GenerateRequest{
		BatchID:    id,
		ClientIDs:  clientIDs,
		ProjectIDs: projectIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseIDList(raw []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(raw))
	for _, value := range raw {
		id, err := snowflake.ParseString(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type reviewBatchRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) ReviewBatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req reviewBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.billingSvc.Review(c.Request.Context(), id, req.Notes); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reviewed"})
}

type finalizeBatchRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) FinalizeBatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req finalizeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	userID, err := snowflake.ParseString(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_id", "malformed id"))
		return
	}

	if err := s.billingSvc.Finalize(c.Request.Context(), id, userID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "finalized"})
}

func (s *Server) UnfinalizeBatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := s.billingSvc.Unfinalize(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "draft"})
}

func (s *Server) ExportBatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := s.billingSvc.Export(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "exported"})
}

func (s *Server) DeleteBatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	if err := s.billingSvc.Delete(c.Request.Context(), id, force); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) RecalculateBatchTax(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	batch, err := s.billingSvc.RecalculateBatchTax(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (s *Server) GetBatchRollup(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	rollup, err := s.reportingSvc.BatchRollup(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rollup)
}
