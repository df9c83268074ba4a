package service

import (
	"context"
	"strings"

	v1 "order-service/api/order/v1"
	"order-service/internal/auth"
	"order-service/internal/biz"

	pkgUtils "github.com/gaoyong06/go-pkg/utils"
	"github.com/go-kratos/kratos/v2/transport"
)

// customerFrom 当前登录用户 + 请求中填写的联系信息，请求邮箱优先
func customerFrom(claims *auth.Claims, req *v1.CreateOrderRequest) biz.Customer {
	c := biz.Customer{UserID: claims.UserID, Email: claims.Email}
	if req == nil {
		return c
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		c.Email = email
	}
	c.Name = req.CustomerName
	c.Phone = req.CustomerPhone
	c.ShippingAddress = req.ShippingAddress
	return c
}

func toLineItems(items []*v1.LineItem) []biz.LineItem {
	out := make([]biz.LineItem, 0, len(items))
	for _, li := range items {
		if li == nil {
			continue
		}
		out = append(out, biz.LineItem{
			CatalogItemID: li.CatalogItemID,
			Name:          li.Name,
			UnitPrice:     li.Price,
			Quantity:      li.Quantity,
			ImageRef:      li.Image,
		})
	}
	return out
}

func toOrder(o *biz.Order) *v1.Order {
	items := make([]*v1.LineItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, &v1.LineItem{
			CatalogItemID: li.CatalogItemID,
			Name:          li.Name,
			Price:         li.UnitPrice,
			Quantity:      li.Quantity,
			Image:         li.ImageRef,
		})
	}
	return &v1.Order{
		OrderNumber:     o.OrderNumber,
		ExternalRef:     o.ExternalRef,
		PaymentRef:      o.PaymentRef,
		PaymentMethod:   o.PaymentMethod,
		UTR:             o.UTR,
		CounterpartyVPA: o.CounterpartyVPA,
		WebhookVerified: o.WebhookVerified,
		CustomerEmail:   o.Customer.Email,
		CustomerName:    o.Customer.Name,
		CustomerPhone:   o.Customer.Phone,
		ShippingAddress: o.Customer.ShippingAddress,
		Items:           items,
		Subtotal:        o.Subtotal.StringFixed(2),
		Status:          string(o.Status),
		ReviewReason:    o.ReviewReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrders(orders []*biz.Order) []*v1.Order {
	out := make([]*v1.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrder(o))
	}
	return out
}

func toPaymentReply(out *biz.Outcome) *v1.PaymentReply {
	reply := &v1.PaymentReply{
		OrderNumber:  out.OrderNumber,
		Status:       string(out.Status),
		Result:       out.Result,
		Acknowledged: out.Acknowledged,
		Matched:      out.MatchedBy != "",
		Resolved:     out.Resolved,
		MatchedBy:    out.MatchedBy,
		Message:      out.Message,
	}
	if out.ExpectedAmount.Valid {
		reply.ExpectedAmount = out.ExpectedAmount.Decimal.StringFixed(2)
	}
	if out.ReceivedAmount.Valid {
		reply.ReceivedAmount = out.ReceivedAmount.Decimal.StringFixed(2)
	}
	return reply
}

func toUnmatched(p *biz.UnmatchedPayment) *v1.UnmatchedPayment {
	out := &v1.UnmatchedPayment{
		ID:              p.ID,
		Rail:            p.Rail,
		OrderNumber:     p.OrderNumber,
		ExternalOrderID: p.ExternalOrderID,
		PaymentRef:      p.PaymentRef,
		UTR:             p.UTR,
		MerchantVPA:     p.MerchantVPA,
		CounterpartyVPA: p.CounterpartyVPA,
		Failure:         p.Failure,
		CreatedAt:       p.CreatedAt,
	}
	if p.Amount.Valid {
		out.Amount = p.Amount.Decimal.StringFixed(2)
	}
	return out
}

// clientIP 仅在 HTTP 请求中可用
func clientIP(ctx context.Context) string {
	if _, ok := transport.FromServerContext(ctx); !ok {
		return ""
	}
	return pkgUtils.GetClientIP(ctx)
}
