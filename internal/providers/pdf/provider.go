// Package pdf renders finalized invoice batches as paginated documents.
package pdf

import (
	"context"

	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
)

// Letterhead carries the issuing firm's identity printed on every invoice.
type Letterhead struct {
	FirmName    string
	FirmAddress string
	FirmEmail   string
	BankDetails string
}

// InvoiceDocument is the full rendering input: the batch, the firm
// letterhead, the client being billed, the lines, and any aggregate
// adjustments disclosed beneath the table.
type InvoiceDocument struct {
	Batch       billingdomain.InvoiceBatch
	Letterhead  Letterhead
	ClientName  string
	Currency    string
	Lines       []billingdomain.InvoiceLine
	Adjustments []billingdomain.InvoiceAdjustment
}

type Renderer interface {
	RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error)
}
