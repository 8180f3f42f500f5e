package server

import (
	"fmt"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	"github.com/tempora-hq/tempora/internal/export"
	"github.com/tempora-hq/tempora/internal/providers/pdf"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
)

// ExportBatchLines streams the batch's lines as a CSV attachment.
func (s *Server) ExportBatchLines(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	batch, err := s.billingSvc.GetBatch(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	lines, err := s.billingSvc.Lines(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows := make([]export.Row, 0, len(lines))
	clients := map[snowflake.ID]*directorydomain.Client{}
	projects := map[snowflake.ID]*directorydomain.Project{}
	for _, line := range lines {
		client, okClient := clients[line.ClientID]
		if !okClient {
			client, _ = s.directory.Client(c.Request.Context(), line.ClientID)
			clients[line.ClientID] = client
		}
		project, okProject := projects[line.ProjectID]
		if !okProject {
			project, _ = s.directory.Project(c.Request.Context(), line.ProjectID)
			projects[line.ProjectID] = project
		}

		row := export.Row{
			LineID:      line.ID.String(),
			Type:        string(line.Type),
			Category:    s.lineCategory(c, line),
			Description: line.Description,
			Quantity:    line.Quantity,
			Rate:        line.Rate,
			Amount:      line.BilledAmount,
			Taxable:     line.Taxable,
			Date:        line.CreatedAt.Format(dateLayout),
		}
		if client != nil {
			row.Client = client.Name
		}
		if project != nil {
			row.Project = project.Name
			row.ProjectCode = project.Code
		}
		rows = append(rows, row)
	}

	filename := fmt.Sprintf("%s-lines.csv", batch.BatchNumber)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := export.WriteLines(c.Writer, rows); err != nil {
		s.log.Warn("csv export failed: " + err.Error())
	}
}

func (s *Server) lineCategory(c *gin.Context, line billingdomain.InvoiceLine) string {
	if line.Type != billingdomain.LineTypeExpense || line.SourceExpenseID == nil {
		return ""
	}
	var expense timesheetdomain.Expense
	if err := s.db.WithContext(c.Request.Context()).
		First(&expense, "id = ?", *line.SourceExpenseID).Error; err != nil {
		return ""
	}
	return expense.Category
}

// RenderBatch renders the batch as a PDF invoice document.
func (s *Server) RenderBatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	batch, err := s.billingSvc.GetBatch(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	lines, err := s.billingSvc.Lines(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	adjustments, err := s.billingSvc.ListAdjustments(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc := pdf.InvoiceDocument{
		Batch: *batch,
		Letterhead: pdf.Letterhead{
			FirmName: s.cfg.AppName,
		},
		Currency:    "USD",
		Lines:       lines,
		Adjustments: adjustments,
	}
	if len(lines) > 0 {
		if client, cerr := s.directory.Client(c.Request.Context(), lines[0].ClientID); cerr == nil {
			doc.ClientName = client.Name
			doc.Currency = client.Currency
		}
	}

	rendered, err := s.renderer.RenderInvoice(c.Request.Context(), doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("%s.pdf", batch.BatchNumber)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", rendered)
}
