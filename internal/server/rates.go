package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ratesdomain "github.com/tempora-hq/tempora/internal/rates/domain"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
)

type createOverrideRequest struct {
	ProjectID      string          `json:"project_id" binding:"required"`
	PersonID       string          `json:"person_id" binding:"required"`
	BillingRate    decimal.Decimal `json:"billing_rate"`
	CostRate       decimal.Decimal `json:"cost_rate"`
	EffectiveStart string          `json:"effective_start" binding:"required"`
	EffectiveEnd   *string         `json:"effective_end"`
}

func (s *Server) CreateRateOverride(c *gin.Context) {
	var req createOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	projectID, err := snowflake.ParseString(req.ProjectID)
	if err != nil {
		AbortWithError(c, newValidationError("project_id", "invalid_id", "malformed id"))
		return
	}
	personID, err := snowflake.ParseString(req.PersonID)
	if err != nil {
		AbortWithError(c, newValidationError("person_id", "invalid_id", "malformed id"))
		return
	}
	start, ok := parseDate(req.EffectiveStart)
	if !ok {
		AbortWithError(c, ratesdomain.ErrInvalidRange)
		return
	}

	domainReq := ratesdomain.CreateOverrideRequest{
		ProjectID:      projectID,
		PersonID:       personID,
		BillingRate:    req.BillingRate,
		CostRate:       req.CostRate,
		EffectiveStart: start,
	}
	if req.EffectiveEnd != nil {
		end, ok := parseDate(*req.EffectiveEnd)
		if !ok {
			AbortWithError(c, ratesdomain.ErrInvalidRange)
			return
		}
		domainReq.EffectiveEnd = &end
	}

	override, err := s.ratesSvc.CreateOverride(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, override)
}

func (s *Server) ListRateOverrides(c *gin.Context) {
	projectID, err := snowflake.ParseString(c.Query("project_id"))
	if err != nil {
		AbortWithError(c, newValidationError("project_id", "invalid_id", "malformed id"))
		return
	}

	overrides, err := s.ratesSvc.ListOverrides(c.Request.Context(), projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": overrides})
}

type createScheduleRequest struct {
	PersonID       string          `json:"person_id" binding:"required"`
	BillingRate    decimal.Decimal `json:"billing_rate"`
	CostRate       decimal.Decimal `json:"cost_rate"`
	EffectiveStart string          `json:"effective_start" binding:"required"`
	EffectiveEnd   *string         `json:"effective_end"`
}

func (s *Server) CreateRateSchedule(c *gin.Context) {
	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	personID, err := snowflake.ParseString(req.PersonID)
	if err != nil {
		AbortWithError(c, newValidationError("person_id", "invalid_id", "malformed id"))
		return
	}
	start, ok := parseDate(req.EffectiveStart)
	if !ok {
		AbortWithError(c, ratesdomain.ErrInvalidRange)
		return
	}

	domainReq := ratesdomain.CreateScheduleRequest{
		PersonID:       personID,
		BillingRate:    req.BillingRate,
		CostRate:       req.CostRate,
		EffectiveStart: start,
	}
	if req.EffectiveEnd != nil {
		end, ok := parseDate(*req.EffectiveEnd)
		if !ok {
			AbortWithError(c, ratesdomain.ErrInvalidRange)
			return
		}
		domainReq.EffectiveEnd = &end
	}

	schedule, err := s.ratesSvc.CreateSchedule(c.Request.Context(), domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

func (s *Server) ListRateSchedules(c *gin.Context) {
	personID, err := snowflake.ParseString(c.Query("person_id"))
	if err != nil {
		AbortWithError(c, newValidationError("person_id", "invalid_id", "malformed id"))
		return
	}

	schedules, err := s.ratesSvc.ListSchedules(c.Request.Context(), personID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

// ResolveRate previews the cascade outcome for a person/project/date triple.
func (s *Server) ResolveRate(c *gin.Context) {
	personID, err := snowflake.ParseString(c.Query("person_id"))
	if err != nil {
		AbortWithError(c, newValidationError("person_id", "invalid_id", "malformed id"))
		return
	}
	projectID, err := snowflake.ParseString(c.Query("project_id"))
	if err != nil {
		AbortWithError(c, newValidationError("project_id", "invalid_id", "malformed id"))
		return
	}
	date, ok := parseDate(c.Query("date"))
	if !ok {
		AbortWithError(c, timesheetdomain.ErrInvalidDate)
		return
	}

	resolved, err := s.resolver.Resolve(c.Request.Context(), personID, projectID, date)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"billing_rate":   resolved.BillingRate,
		"cost_rate":      resolved.CostRate,
		"billing_source": resolved.BillingSource,
		"cost_source":    resolved.CostSource,
	})
}
