package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	"gorm.io/gorm"
)

var seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)

// FormatBatchNumber renders a human-readable batch identifier from a
// template, the batch period start, and a monotonic sequence.
//
// This function is PURE:
// - No side effects
// - No DB access
// - Fully deterministic
func FormatBatchNumber(template string, periodStart time.Time, seq int64) (string, error) {
	if template == "" {
		return "", fmt.Errorf("batch number template is empty")
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid batch sequence: %d", seq)
	}

	out := template

	// Date tokens
	out = strings.ReplaceAll(out, "{YYYY}", periodStart.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", periodStart.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", periodStart.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", periodStart.Format("02"))

	// Simple sequence
	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))

	// Padded sequence
	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}

		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}

		return fmt.Sprintf("%0*d", width, seq)
	})

	// Final safety check: unresolved tokens
	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in batch number format: %s", out)
	}

	return out, nil
}

// PreviewBatchID derives the identifier the next created batch would get.
func (s *Service) PreviewBatchID(ctx context.Context, periodStart time.Time) (string, error) {
	if periodStart.IsZero() {
		return "", billingdomain.ErrInvalidDateRange
	}

	seq, err := s.nextBatchSequence(ctx, s.db, 0)
	if err != nil {
		return "", err
	}
	return FormatBatchNumber(s.billing.Get().BatchNumberTemplate, periodStart, seq)
}

func (s *Service) deriveBatchNumber(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, periodStart time.Time) (string, error) {
	seq, err := s.nextBatchSequence(ctx, tx, tenantID)
	if err != nil {
		return "", err
	}
	return FormatBatchNumber(s.billing.Get().BatchNumberTemplate, periodStart, seq)
}

func (s *Service) nextBatchSequence(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) (int64, error) {
	if !s.billing.Get().BatchNumberSequence {
		return 1, nil
	}

	query := tx.WithContext(ctx).Model(&billingdomain.InvoiceBatch{})
	if tenantID != 0 {
		query = query.Where("tenant_id = ?", tenantID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count + 1, nil
}

// withRandomSuffix resolves identifier collisions.
func withRandomSuffix(number string) string {
	return number + "-" + uuid.NewString()[:8]
}
