package utils

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/Kariqs/farmmarket-api/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type MailConfig struct {
	From        string
	Password    string
	SMTPHost    string
	SMTPAddress string
	PublicURL   string
	Currency    string
}

type OrderLine struct {
	Name     string
	Quantity int
	Amount   string
}

type OrderEmailData struct {
	Name     string
	OrderID  uint
	Lines    []OrderLine
	Shipping string
	Total    string
	OrderURL string
}

// sendFunc matches smtp.SendMail so tests can capture outgoing mail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailNotifier emails customers about their orders over SMTP.
type MailNotifier struct {
	cfg  MailConfig
	send sendFunc
}

func NewMailNotifier(cfg MailConfig) *MailNotifier {
	return &MailNotifier{cfg: cfg, send: smtp.SendMail}
}

func (m *MailNotifier) OrderPaid(_ context.Context, customer models.User, order models.Order) error {
	data := OrderEmailData{
		Name:     customer.Name,
		OrderID:  order.ID,
		Shipping: FormatCurrency(order.ShippingFee, m.cfg.Currency),
		Total:    FormatCurrency(order.TotalAmount, m.cfg.Currency),
		OrderURL: m.cfg.PublicURL + "/customer/orders",
	}
	for _, item := range order.OrderItems {
		name := fmt.Sprintf("Product #%d", item.ProductID)
		if item.Product != nil {
			name = item.Product.Name
		}
		data.Lines = append(data.Lines, OrderLine{
			Name:     name,
			Quantity: item.Quantity,
			Amount:   FormatCurrency(item.LineTotal(), m.cfg.Currency),
		})
	}

	subject := fmt.Sprintf("Payment received for order #%d", order.ID)
	return m.SendEmail(customer.Email, subject, "order_paid.html", data)
}

func (m *MailNotifier) SendEmail(emailTo, emailSubject, templateName string, data any) error {
	if m.cfg.SMTPAddress == "" || m.cfg.From == "" {
		return fmt.Errorf("mail not configured")
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}

	message := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n\r\n%s",
		m.cfg.From,
		emailTo,
		emailSubject,
		body.String(),
	)

	auth := smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.SMTPHost)
	if err := m.send(m.cfg.SMTPAddress, auth, m.cfg.From, []string{emailTo}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
