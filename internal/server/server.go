package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tempora-hq/tempora/internal/audit"
	auditdomain "github.com/tempora-hq/tempora/internal/audit/domain"
	"github.com/tempora-hq/tempora/internal/billing"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	"github.com/tempora-hq/tempora/internal/config"
	"github.com/tempora-hq/tempora/internal/directory"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	"github.com/tempora-hq/tempora/internal/providers"
	"github.com/tempora-hq/tempora/internal/providers/pdf"
	"github.com/tempora-hq/tempora/internal/rates"
	ratesdomain "github.com/tempora-hq/tempora/internal/rates/domain"
	"github.com/tempora-hq/tempora/internal/reporting"
	reportingdomain "github.com/tempora-hq/tempora/internal/reporting/domain"
	"github.com/tempora-hq/tempora/internal/timesheet"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	directory.Module,
	rates.Module,
	timesheet.Module,
	billing.Module,
	reporting.Module,
	providers.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	db           *gorm.DB
	genID        *snowflake.Node
	billingSvc   billingdomain.Service
	timesheetSvc timesheetdomain.Service
	ratesSvc     ratesdomain.Service
	resolver     ratesdomain.Resolver
	reportingSvc reportingdomain.Service
	auditSvc     auditdomain.Service
	directory    directorydomain.Directory
	renderer     pdf.Renderer
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	GenID        *snowflake.Node
	BillingSvc   billingdomain.Service
	TimesheetSvc timesheetdomain.Service
	RatesSvc     ratesdomain.Service
	Resolver     ratesdomain.Resolver
	ReportingSvc reportingdomain.Service
	AuditSvc     auditdomain.Service
	Directory    directorydomain.Directory
	Renderer     pdf.Renderer
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http"),
		db:           p.DB,
		genID:        p.GenID,
		billingSvc:   p.BillingSvc,
		timesheetSvc: p.TimesheetSvc,
		ratesSvc:     p.RatesSvc,
		resolver:     p.Resolver,
		reportingSvc: p.ReportingSvc,
		auditSvc:     p.AuditSvc,
		directory:    p.Directory,
		renderer:     p.Renderer,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.TenantContext())

	// -------- Batches --------
	api.GET("/batches", s.ListBatches)
	api.POST("/batches", s.CreateBatch)
	api.GET("/batches/preview-id", s.PreviewBatchID)
	api.GET("/batches/:id", s.GetBatch)
	api.DELETE("/batches/:id", s.DeleteBatch)
	api.GET("/batches/:id/lines", s.ListBatchLines)
	api.GET("/batches/:id/lines/export", s.ExportBatchLines)
	api.GET("/batches/:id/render", s.RenderBatch)
	api.GET("/batches/:id/rollup", s.GetBatchRollup)
	api.POST("/batches/:id/generate", s.GenerateBatch)
	api.POST("/batches/:id/review", s.ReviewBatch)
	api.POST("/batches/:id/finalize", s.FinalizeBatch)
	api.POST("/batches/:id/unfinalize", s.UnfinalizeBatch)
	api.POST("/batches/:id/export", s.ExportBatch)
	api.POST("/batches/:id/recalculate-tax", s.RecalculateBatchTax)
	api.PUT("/batches/:id/lines", s.BulkUpdateLines)

	// -------- Lines --------
	api.PATCH("/lines/:id", s.UpdateLine)

	// -------- Adjustments --------
	api.GET("/batches/:id/adjustments", s.ListAdjustments)
	api.POST("/batches/:id/adjustments", s.ApplyAdjustment)
	api.DELETE("/adjustments/:id", s.RemoveAdjustment)

	// -------- Timesheet --------
	api.POST("/time-entries", s.CreateTimeEntry)
	api.POST("/expenses", s.CreateExpense)
	api.GET("/unbilled", s.GetUnbilledItems)
	api.POST("/rates/recalculate", s.RecalculateRates)

	// -------- Rates --------
	api.POST("/rates/overrides", s.CreateRateOverride)
	api.GET("/rates/overrides", s.ListRateOverrides)
	api.POST("/rates/schedules", s.CreateRateSchedule)
	api.GET("/rates/schedules", s.ListRateSchedules)
	api.GET("/rates/resolve", s.ResolveRate)

	// -------- Reporting --------
	api.GET("/reports/projects", s.GetProjectSummaries)

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}
