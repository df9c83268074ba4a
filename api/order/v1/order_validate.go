package v1

import (
	"errors"
	"strings"
)

func required(fields ...[2]string) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return errors.New("missing required field: " + strings.Join(missing, ", "))
	}
	return nil
}

func (m *ConfirmPaymentRequest) Validate() error {
	return required([2]string{"orderNumber", m.OrderNumber})
}

func (m *VerifyGatewayPaymentRequest) Validate() error {
	return required(
		[2]string{"razorpay_order_id", m.RazorpayOrderID},
		[2]string{"razorpay_payment_id", m.RazorpayPaymentID},
		[2]string{"razorpay_signature", m.RazorpaySignature},
	)
}

func (m *ManualVerifyRequest) Validate() error {
	return required([2]string{"orderNumber", m.OrderNumber})
}

func (m *ManualUTRRequest) Validate() error {
	return required([2]string{"orderNumber", m.OrderNumber}, [2]string{"utr", m.UTR})
}

func (m *UpdateOrderStatusRequest) Validate() error {
	return required([2]string{"orderNumber", m.OrderNumber}, [2]string{"status", m.Status})
}
