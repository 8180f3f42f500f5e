package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
)

type lineChangesPayload struct {
	Description  *string          `json:"description"`
	BilledAmount *decimal.Decimal `json:"billed_amount"`
	Taxable      *bool            `json:"taxable"`
	MilestoneID  *string          `json:"milestone_id"`
}

type lineChangesRequest struct {
	lineChangesPayload
	EditorID string `json:"editor_id" binding:"required"`
}

func (r lineChangesPayload) toChanges() (billingdomain.LineChanges, error) {
	changes := billingdomain.LineChanges{
		Description:  r.Description,
		BilledAmount: r.BilledAmount,
		Taxable:      r.Taxable,
	}
	if r.MilestoneID != nil {
		id, err := snowflake.ParseString(*r.MilestoneID)
		if err != nil {
			return billingdomain.LineChanges{}, err
		}
		changes.MilestoneID = &id
	}
	return changes, nil
}

func (s *Server) UpdateLine(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req lineChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	editor, err := snowflake.ParseString(req.EditorID)
	if err != nil {
		AbortWithError(c, newValidationError("editor_id", "invalid_id", "malformed id"))
		return
	}
	changes, err := req.toChanges()
	if err != nil {
		AbortWithError(c, newValidationError("milestone_id", "invalid_id", "malformed id"))
		return
	}

	line, err := s.billingSvc.UpdateLine(c.Request.Context(), id, changes, editor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

type bulkUpdateRequest struct {
	EditorID string `json:"editor_id" binding:"required"`
	Updates  []struct {
		LineID  string             `json:"line_id" binding:"required"`
		Changes lineChangesPayload `json:"changes"`
	} `json:"updates" binding:"required"`
}

func (s *Server) BulkUpdateLines(c *gin.Context) {
	batchID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	editor, err := snowflake.ParseString(req.EditorID)
	if err != nil {
		AbortWithError(c, newValidationError("editor_id", "invalid_id", "malformed id"))
		return
	}

	updates := make([]billingdomain.BulkLineUpdate, 0, len(req.Updates))
	for _, item := range req.Updates {
		lineID, err := snowflake.ParseString(item.LineID)
		if err != nil {
			AbortWithError(c, newValidationError("line_id", "invalid_id", "malformed id"))
			return
		}
		changes, err := item.Changes.toChanges()
		if err != nil {
			AbortWithError(c, newValidationError("milestone_id", "invalid_id", "malformed id"))
			return
		}
		updates = append(updates, billingdomain.BulkLineUpdate{
			LineID:  lineID,
			Changes: changes,
		})
	}

	if err := s.billingSvc.BulkUpdateLines(c.Request.Context(), batchID, updates, editor); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(updates)})
}
