package data

import (
	"bytes"
	"context"
	"fmt"

	"order-service/internal/biz"
	"order-service/internal/conf"

	"github.com/go-pdf/fpdf"
)

const defaultStoreName = "Kara-Saaram"

// InvoiceRenderer 订单发票 PDF 生成
type InvoiceRenderer struct {
	storeName   string
	merchantVPA string
	currency    string
}

// NewInvoiceRenderer 创建发票生成器
func NewInvoiceRenderer(c *conf.Bootstrap) *InvoiceRenderer {
	r := &InvoiceRenderer{storeName: defaultStoreName, currency: "INR"}
	if c.Notify != nil && c.Notify.StoreName != "" {
		r.storeName = c.Notify.StoreName
	}
	if c.Payment != nil {
		r.merchantVPA = c.Payment.MerchantVpa
		if c.Payment.Currency != "" {
			r.currency = c.Payment.Currency
		}
	}
	return r
}

// Render 生成发票，金额以订单冻结的行项目与小计为准
func (r *InvoiceRenderer) Render(_ context.Context, o *biz.Order) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 10, r.storeName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Ln(6)
	pdf.CellFormat(0, 8, "INVOICE", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Order No: "+o.OrderNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+o.CreatedAt.Format("02 Jan 2006"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Status: "+string(o.Status), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	name := o.Customer.Name
	if name == "" {
		name = "Customer"
	}
	pdf.CellFormat(0, 6, "Bill To:", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, name, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, o.Customer.Email, "", 1, "L", false, 0, "")
	if o.Customer.ShippingAddress != "" {
		pdf.MultiCell(0, 6, o.Customer.ShippingAddress, "", "L", false)
	}
	pdf.Ln(6)

	widths := []float64{90, 20, 32, 32}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Product", "Qty", "Price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, h, "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, li := range o.LineItems {
		pdf.CellFormat(widths[0], 7, li.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", li.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, li.UnitPrice.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, li.LineTotal().StringFixed(2), "", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 9, "Total ("+r.currency+")", "T", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 9, o.Subtotal.StringFixed(2), "T", 1, "R", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 9)
	if o.PaymentMethod != "" {
		pdf.CellFormat(0, 5, "Payment Method: "+o.PaymentMethod, "", 1, "L", false, 0, "")
	}
	if r.merchantVPA != "" {
		pdf.CellFormat(0, 5, "Merchant UPI: "+r.merchantVPA, "", 1, "L", false, 0, "")
	}
	if o.CounterpartyVPA != "" {
		pdf.CellFormat(0, 5, "Your UPI: "+o.CounterpartyVPA, "", 1, "L", false, 0, "")
	}
	if o.UTR != "" {
		pdf.CellFormat(0, 5, "Transaction Ref: "+o.UTR, "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
	pdf.CellFormat(0, 5, "Thank you for your order!", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", o.OrderNumber, err)
	}
	return buf.Bytes(), nil
}
