package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/tempora-hq/tempora/internal/audit/domain"
)

func (s *Server) GetProjectSummaries(c *gin.Context) {
	summaries, err := s.reportingSvc.ProjectSummaries(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": summaries})
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	logs, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListRequest{
		Action:     c.Query("action"),
		TargetType: c.Query("target_type"),
		TargetID:   c.Query("target_id"),
		Limit:      limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}
