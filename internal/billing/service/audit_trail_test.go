package service

import (
	"testing"

	auditdomain "github.com/tempora-hq/tempora/internal/audit/domain"
	auditservice "github.com/tempora-hq/tempora/internal/audit/service"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLifecycleEmitsAuditTrail(t *testing.T) {
	f := newFixture(t)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    f.db,
		Log:   zap.NewNop(),
		GenID: f.node,
	})
	f.svc.(*Service).auditSvc = auditSvc

	f.createTimeEntry(t, "5", "100", 3)
	batch := f.generateProjectBatch(t)
	require.NoError(t, f.svc.Finalize(f.ctx, batch.ID, f.node.Generate()))
	require.NoError(t, f.svc.Export(f.ctx, batch.ID))

	logs, err := auditSvc.List(f.ctx, auditdomain.ListRequest{TargetType: "invoice_batch"})
	require.NoError(t, err)

	actions := make([]string, 0, len(logs))
	for _, entry := range logs {
		actions = append(actions, entry.Action)
		require.NotNil(t, entry.TargetID)
		assert.Equal(t, batch.ID.String(), *entry.TargetID)
		assert.Equal(t, batch.BatchNumber, entry.Metadata["batch_number"])
	}
	assert.Contains(t, actions, "batch.generated")
	assert.Contains(t, actions, "batch.finalized")
	assert.Contains(t, actions, "batch.exported")
}

func TestAuditFailureDoesNotBlockLifecycle(t *testing.T) {
	f := newFixture(t)

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    f.db,
		Log:   zap.NewNop(),
		GenID: f.node,
	})
	f.svc.(*Service).auditSvc = auditSvc

	// Audit writes happen after commit; even with the audit table gone the
	// billing operation itself must succeed.
	require.NoError(t, f.db.Migrator().DropTable(&auditdomain.AuditLog{}))

	f.createTimeEntry(t, "5", "100", 3)
	batch := f.generateProjectBatch(t)
	require.NoError(t, f.svc.Review(f.ctx, batch.ID, "ok"))

	reloaded := f.reloadBatch(t, batch.ID)
	assert.Equal(t, billingdomain.BatchStatusReviewed, reloaded.Status)
}
