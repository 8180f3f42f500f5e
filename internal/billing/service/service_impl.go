package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/tempora-hq/tempora/internal/audit/domain"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	"github.com/tempora-hq/tempora/internal/clock"
	"github.com/tempora-hq/tempora/internal/config"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	ratesdomain "github.com/tempora-hq/tempora/internal/rates/domain"
	"github.com/tempora-hq/tempora/internal/tenantctx"
	pkgdb "github.com/tempora-hq/tempora/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Resolver  ratesdomain.Resolver
	Directory directorydomain.Directory
	Billing   *config.BillingConfigHolder
	AuditSvc  auditdomain.Service `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	resolver  ratesdomain.Resolver
	directory directorydomain.Directory
	billing   *config.BillingConfigHolder
	auditSvc  auditdomain.Service
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("billing.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		resolver:  p.Resolver,
		directory: p.Directory,
		billing:   p.Billing,
		auditSvc:  p.AuditSvc,
	}
}

func (s *Service) CreateBatch(ctx context.Context, req billingdomain.CreateBatchRequest) (*billingdomain.InvoiceBatch, error) {
	if req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() || req.PeriodEnd.Before(req.PeriodStart) {
		return nil, billingdomain.ErrInvalidDateRange
	}
	if req.Mode != billingdomain.ModeClient && req.Mode != billingdomain.ModeProject {
		return nil, billingdomain.ErrInvalidMode
	}
	if req.DiscountPercent.IsNegative() || req.DiscountFlat.IsNegative() {
		return nil, billingdomain.ErrInvalidTarget
	}

	taxRate := decimal.NewFromFloat(s.billing.Get().DefaultTaxRate)
	if req.TaxRate != nil {
		if req.TaxRate.IsNegative() {
			return nil, billingdomain.ErrInvalidTarget
		}
		taxRate = *req.TaxRate
	}

	tenantID, _ := tenantctx.TenantIDFromContext(ctx)
	now := s.clock.Now()

	batch := &billingdomain.InvoiceBatch{
		ID:              s.genID.Generate(),
		TenantID:        tenantID,
		PeriodStart:     req.PeriodStart,
		PeriodEnd:       req.PeriodEnd,
		Status:          billingdomain.BatchStatusDraft,
		Mode:            req.Mode,
		DiscountPercent: req.DiscountPercent,
		DiscountFlat:    req.DiscountFlat,
		TaxRate:         taxRate,
		TaxAmount:       decimal.Zero,
		TotalAmount:     decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.deriveBatchNumber(ctx, tx, tenantID, req.PeriodStart)
		if err != nil {
			return err
		}
		batch.BatchNumber = number

		if err := tx.Create(batch).Error; err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				// Concurrent creation raced on the sequence; retry once with
				// a random suffix.
				batch.BatchNumber = withRandomSuffix(number)
				return tx.Create(batch).Error
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("invoice batch created",
		zap.String("batch_number", batch.BatchNumber),
		zap.String("mode", string(batch.Mode)),
	)
	return batch, nil
}

func (s *Service) GetBatch(ctx context.Context, id snowflake.ID) (*billingdomain.InvoiceBatch, error) {
	var batch billingdomain.InvoiceBatch
	err := s.db.WithContext(ctx).First(&batch, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billingdomain.ErrBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (s *Service) ListBatches(ctx context.Context) ([]billingdomain.InvoiceBatch, error) {
	tenantID, _ := tenantctx.TenantIDFromContext(ctx)

	var batches []billingdomain.InvoiceBatch
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if tenantID != 0 {
		query = query.Where("tenant_id = ?", tenantID)
	}
	err := query.Find(&batches).Error
	return batches, err
}

func (s *Service) Lines(ctx context.Context, batchID snowflake.ID) ([]billingdomain.InvoiceLine, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}

	var lines []billingdomain.InvoiceLine
	err := s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

// loadBatchForUpdate reads the batch row inside tx, holding a row lock on
// dialects that support it. Every multi-row mutation goes through this so
// concurrent lifecycle operations serialize on the batch.
func (s *Service) loadBatchForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*billingdomain.InvoiceBatch, error) {
	query := tx.WithContext(ctx)
	if pkgdb.SupportsRowLocking(tx) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var batch billingdomain.InvoiceBatch
	err := query.First(&batch, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billingdomain.ErrBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, batch *billingdomain.InvoiceBatch, extra map[string]any) {
	if s.auditSvc == nil || batch == nil {
		return
	}

	metadata := map[string]any{
		"batch_number": batch.BatchNumber,
		"status":       string(batch.Status),
		"total_amount": batch.TotalAmount.String(),
	}
	for key, value := range extra {
		metadata[key] = value
	}

	targetID := batch.ID.String()
	_ = s.auditSvc.AuditLog(ctx, nil, action, "invoice_batch", &targetID, metadata)
}
