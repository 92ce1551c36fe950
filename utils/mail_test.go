package utils

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/Kariqs/farmmarket-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func testNotifier(captured *capturedMail, sendErr error) *MailNotifier {
	n := NewMailNotifier(MailConfig{
		From:        "orders@farm.example",
		Password:    "pw",
		SMTPHost:    "smtp.farm.example",
		SMTPAddress: "smtp.farm.example:587",
		PublicURL:   "https://farm.example",
		Currency:    "INR",
	})
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = string(msg)
		return sendErr
	}
	return n
}

func TestOrderPaid_RendersOrder(t *testing.T) {
	var mail capturedMail
	n := testNotifier(&mail, nil)

	order := models.Order{
		ShippingFee: decimal.NewFromInt(49),
		TotalAmount: decimal.NewFromInt(249),
		OrderItems: []models.OrderItem{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(100), Product: &models.Product{Name: "Tomatoes"}},
		},
	}
	order.ID = 12

	err := n.OrderPaid(context.Background(), models.User{Name: "Asha", Email: "asha@example.com"}, order)
	require.NoError(t, err)

	assert.Equal(t, "smtp.farm.example:587", mail.addr)
	assert.Equal(t, []string{"asha@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Payment received for order #12")
	assert.Contains(t, mail.msg, "Thank you, Asha!")
	assert.Contains(t, mail.msg, "Tomatoes")
	assert.Contains(t, mail.msg, "₹200.00")
	assert.Contains(t, mail.msg, "₹249.00")
	assert.Contains(t, mail.msg, "https://farm.example/customer/orders")
}

func TestOrderPaid_SendFailure(t *testing.T) {
	var mail capturedMail
	n := testNotifier(&mail, errors.New("connection refused"))

	err := n.OrderPaid(context.Background(), models.User{Email: "asha@example.com"}, models.Order{})
	assert.ErrorContains(t, err, "failed to send email")
}

func TestSendEmail_NotConfigured(t *testing.T) {
	n := NewMailNotifier(MailConfig{})
	err := n.SendEmail("asha@example.com", "hi", "order_paid.html", OrderEmailData{})
	assert.Error(t, err)
}
