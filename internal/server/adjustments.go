package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
)

type applyAdjustmentRequest struct {
	ProjectID    *string                    `json:"project_id"`
	TargetAmount decimal.Decimal            `json:"target_amount"`
	Method       string                     `json:"method" binding:"required"`
	Reason       string                     `json:"reason"`
	SOWRef       string                     `json:"sow_ref"`
	CreatedBy    string                     `json:"created_by" binding:"required"`
	Allocation   map[string]decimal.Decimal `json:"allocation"`
}

func (s *Server) ApplyAdjustment(c *gin.Context) {
	batchID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req applyAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	createdBy, err := snowflake.ParseString(req.CreatedBy)
	if err != nil {
		AbortWithError(c, newValidationError("created_by", "invalid_id", "malformed id"))
		return
	}

	domainReq := billingdomain.ApplyAdjustmentRequest{
		BatchID:      batchID,
		TargetAmount: req.TargetAmount,
		Method:       billingdomain.AllocationMethod(req.Method),
		Reason:       req.Reason,
		SOWRef:       req.SOWRef,
		CreatedBy:    createdBy,
	}
	if req.ProjectID != nil {
		projectID, err := snowflake.ParseString(*req.ProjectID)
		if err != nil {
			AbortWithError(c, newValidationError("project_id", "invalid_id", "malformed id"))
			return
		}
		domainReq.ProjectID = &projectID
	}
	if len(req.Allocation) > 0 {
		domainReq.Allocation = make(map[snowflake.ID]decimal.Decimal, len(req.Allocation))
		for rawID, amount := range req.Allocation {
			lineID, err := snowflake.ParseString(rawID)
			if err != nil {
				AbortWithError(c, newValidationError("allocation", "invalid_id", "malformed line id"))
				return
			}
			domainReq.Allocation[lineID] = amount
		}
	}

	adjustment, err := s.billingSvc.ApplyAggregateAdjustment(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, adjustment)
}

func (s *Server) RemoveAdjustment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := s.billingSvc.RemoveAdjustment(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (s *Server) ListAdjustments(c *gin.Context) {
	batchID, ok := parseID(c, "id")
	if !ok {
		return
	}

	adjustments, err := s.billingSvc.ListAdjustments(c.Request.Context(), batchID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjustments": adjustments})
}
