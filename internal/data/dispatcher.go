package data

import (
	"context"
	"fmt"
	"strings"

	"order-service/internal/biz"
	"order-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// notificationDispatcher 发票与邮件通知
type notificationDispatcher struct {
	invoices   *InvoiceRenderer
	mailer     *Mailer
	storeName  string
	adminEmail string
	currency   string
	log        *log.Helper
}

// NewNotificationDispatcher 创建通知投递实现
func NewNotificationDispatcher(c *conf.Bootstrap, invoices *InvoiceRenderer, mailer *Mailer, logger log.Logger) biz.NotificationDispatcher {
	d := &notificationDispatcher{
		invoices:  invoices,
		mailer:    mailer,
		storeName: defaultStoreName,
		currency:  "INR",
		log:       log.NewHelper(logger),
	}
	if c.Notify != nil {
		if c.Notify.StoreName != "" {
			d.storeName = c.Notify.StoreName
		}
		d.adminEmail = c.Notify.AdminEmail
		if d.adminEmail == "" && c.Notify.Smtp != nil {
			d.adminEmail = c.Notify.Smtp.Username
		}
	}
	if c.Payment != nil && c.Payment.Currency != "" {
		d.currency = c.Payment.Currency
	}
	return d
}

// RenderInvoice 生成发票
func (d *notificationDispatcher) RenderInvoice(ctx context.Context, o *biz.Order) ([]byte, error) {
	return d.invoices.Render(ctx, o)
}

// SendInvoice 发送发票给客户
func (d *notificationDispatcher) SendInvoice(ctx context.Context, email, name, orderNumber string, document []byte) error {
	if email == "" {
		return fmt.Errorf("order %s has no customer email", orderNumber)
	}
	if name == "" {
		name = "Customer"
	}
	body := fmt.Sprintf("Dear %s,\n\nThank you for your order with %s.\n\n"+
		"Your order #%s has been received. Please find your invoice attached.\n\n"+
		"We will notify you when the status of your order changes.\n\n%s\n",
		name, d.storeName, orderNumber, d.storeName)
	return d.mailer.Send(ctx, &Mail{
		To:          email,
		Subject:     fmt.Sprintf("Your Invoice - Order #%s | %s", orderNumber, d.storeName),
		Body:        body,
		Attachments: invoiceAttachment(orderNumber, document),
	})
}

// SendAdminNotification 新订单或支付提醒管理员
func (d *notificationDispatcher) SendAdminNotification(ctx context.Context, o *biz.Order, document []byte) error {
	if d.adminEmail == "" {
		d.log.Warnf("admin email not configured, skipping admin notification: order_number=%s", o.OrderNumber)
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New order received!\n\nORDER DETAILS\n\n")
	fmt.Fprintf(&b, "Order Number: %s\n", o.OrderNumber)
	fmt.Fprintf(&b, "Status: %s\n", o.Status)
	if o.PaymentMethod != "" {
		fmt.Fprintf(&b, "Payment: %s\n", o.PaymentMethod)
	}
	if o.UTR != "" {
		fmt.Fprintf(&b, "Transaction ID: %s\n", o.UTR)
	}
	if o.ReviewReason != "" {
		fmt.Fprintf(&b, "Needs review: %s\n", o.ReviewReason)
	}
	fmt.Fprintf(&b, "\nCUSTOMER DETAILS\n\n")
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\nPhone: %s\nAddress: %s\n",
		orDash(o.Customer.Name), o.Customer.Email, orDash(o.Customer.Phone), orDash(o.Customer.ShippingAddress))
	fmt.Fprintf(&b, "\nITEMS\n\n")
	for _, li := range o.LineItems {
		fmt.Fprintf(&b, "  - %s x %d = %s %s\n", li.Name, li.Quantity, d.currency, li.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTOTAL: %s %s\n", d.currency, o.Subtotal.StringFixed(2))
	if document != nil {
		b.WriteString("\nInvoice is attached to this email.\n")
	}

	return d.mailer.Send(ctx, &Mail{
		To:          d.adminEmail,
		Subject:     fmt.Sprintf("New Order #%s | %s", o.OrderNumber, d.storeName),
		Body:        b.String(),
		Attachments: invoiceAttachment(o.OrderNumber, document),
	})
}

// SendStatusUpdate 订单状态变更通知客户
func (d *notificationDispatcher) SendStatusUpdate(ctx context.Context, email, name, orderNumber string, status biz.OrderStatus) error {
	if email == "" {
		return fmt.Errorf("order %s has no customer email", orderNumber)
	}
	if name == "" {
		name = "Customer"
	}
	body := fmt.Sprintf("Dear %s,\n\n%s\n\nOrder #%s\nStatus: %s\n\n%s\n",
		name, statusMessage(status), orderNumber, status, d.storeName)
	return d.mailer.Send(ctx, &Mail{
		To:      email,
		Subject: fmt.Sprintf("Order #%s is now %s | %s", orderNumber, status, d.storeName),
		Body:    body,
	})
}

func statusMessage(status biz.OrderStatus) string {
	switch status {
	case biz.StatusPaid:
		return "We have received your payment. Your order is being prepared."
	case biz.StatusCompleted:
		return "Your order has been completed. Enjoy!"
	case biz.StatusFailed:
		return "We could not verify your payment. Please contact support if you were charged."
	case biz.StatusCancelled:
		return "Your order has been cancelled."
	case biz.StatusRefunded:
		return "Your payment has been refunded."
	default:
		return "The status of your order has changed."
	}
}

func invoiceAttachment(orderNumber string, document []byte) []Attachment {
	if document == nil {
		return nil
	}
	return []Attachment{{
		Filename:    "Invoice-" + orderNumber + ".pdf",
		ContentType: "application/pdf",
		Content:     document,
	}}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
