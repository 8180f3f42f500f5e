package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type marotoRenderer struct{}

func New() Renderer {
	return &marotoRenderer{}
}

func (r *marotoRenderer) RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(10,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+doc.Batch.BatchNumber, props.Text{Top: 0}),
			text.New("Service period: "+doc.Batch.PeriodStart.Format("2006-01-02")+" to "+doc.Batch.PeriodEnd.Format("2006-01-02"), props.Text{Top: 4}),
			text.New("Currency: "+doc.Currency, props.Text{Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(35,
		col.New(6).Add(
			text.New(doc.Letterhead.FirmName, props.Text{Style: fontstyle.Bold}),
			text.New(doc.Letterhead.FirmAddress, props.Text{Top: 5}),
			text.New(doc.Letterhead.FirmEmail, props.Text{Top: 18}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(doc.ClientName, props.Text{Top: 5}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Rate", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range doc.Lines {
		m.AddRow(12,
			text.NewCol(6, line.Description, props.Text{Size: 9}),
			text.NewCol(2, line.Quantity.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, line.Rate.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, line.BilledAmount.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
		)
	}

	for _, adjustment := range doc.Adjustments {
		label := fmt.Sprintf("Adjustment (%s)", adjustment.Method)
		if adjustment.SOWRef != "" {
			label += " per " + adjustment.SOWRef
		}
		m.AddRow(10,
			text.NewCol(8, label, props.Text{Size: 8}),
			text.NewCol(4, "reconciled to "+adjustment.TargetAmount.StringFixed(2), props.Text{Size: 8, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, doc.Batch.TotalAmount.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
	)
	if doc.Batch.DiscountFlat.IsPositive() || doc.Batch.DiscountPercent.IsPositive() {
		m.AddRow(10,
			col.New(8),
			text.NewCol(2, "Discount", props.Text{Size: 9}),
			text.NewCol(2, discountLabel(doc), props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Tax", props.Text{Size: 9}),
		text.NewCol(2, doc.Batch.TaxAmount.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total due", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, doc.Batch.GrandTotal().StringFixed(2), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if doc.Letterhead.BankDetails != "" {
		m.AddRow(20,
			text.NewCol(12, doc.Letterhead.BankDetails, props.Text{Size: 8, Top: 4}),
		)
	}

	rendered, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return rendered.GetBytes(), nil
}

func discountLabel(doc InvoiceDocument) string {
	if doc.Batch.DiscountPercent.IsPositive() {
		return doc.Batch.DiscountPercent.StringFixed(2) + "%"
	}
	return doc.Batch.DiscountFlat.StringFixed(2)
}
