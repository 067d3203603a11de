package services

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/luxury-beauty/api/internal/domain"
)

// orderConfirmationTemplate renders the customer-facing confirmation mail.
// All order values pass through html/template escaping.
var orderConfirmationTemplate = template.Must(template.New("order_confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f1f1f;">
  <h2>Thank you for your order, {{.Name}}!</h2>
  <p>Your order <strong>{{.OrderNumber}}</strong> has been received.</p>
  <table width="100%" cellpadding="6" cellspacing="0" style="border-collapse: collapse;">
    <tr style="border-bottom: 1px solid #ddd; text-align: left;">
      <th>Item</th><th>Qty</th><th>Price</th><th>Total</th>
    </tr>
    {{range .Items}}
    <tr style="border-bottom: 1px solid #eee;">
      <td>{{.Label}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.LineTotal}}</td>
    </tr>
    {{end}}
  </table>
  <p>
    Subtotal: {{.Subtotal}}<br>
    {{if .Discount}}Discount: -{{.Discount}}<br>{{end}}
    Shipping: {{.Shipping}}<br>
    <strong>Total: {{.Total}}</strong>
  </p>
  <p>
    Delivery to:<br>
    {{.Name}}<br>
    {{.Address}}<br>
    {{.Town}}, {{.Province}}
  </p>
  <p>Payment method: {{.Method}}</p>
  <p>We will notify you when your order ships.</p>
</body>
</html>`))

type confirmationItemView struct {
	Label     string
	Quantity  int
	UnitPrice string
	LineTotal string
}

type confirmationView struct {
	Name        string
	OrderNumber string
	Items       []confirmationItemView
	Subtotal    string
	Discount    string
	Shipping    string
	Total       string
	Address     string
	Town        string
	Province    string
	Method      string
}

// NotificationServiceDeps lists collaborators for NewNotificationService.
type NotificationServiceDeps struct {
	Publisher EmailJobPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	publisher EmailJobPublisher
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
	printer   *message.Printer
}

// NewNotificationService builds the email dispatcher. When no publisher is
// configured sends degrade to a log line so checkout keeps working in
// environments without a mail worker.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &notificationService{
		publisher: deps.Publisher,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger:  logger,
		printer: message.NewPrinter(language.English),
	}, nil
}

// SendOrderConfirmation renders and enqueues the confirmation mail.
func (s *notificationService) SendOrderConfirmation(ctx context.Context, order domain.Order) error {
	to := strings.TrimSpace(order.Shipping.Email)
	if to == "" {
		return errors.New("notification service: order has no contact email")
	}

	html, err := s.renderConfirmation(order)
	if err != nil {
		return err
	}

	msg := EmailJobMessage{
		To:      to,
		Subject: "Order confirmation " + order.OrderNumber,
		HTML:    html,
		OrderID: order.ID,
	}

	if s.publisher == nil {
		s.logger(ctx, "notifications.email.skipped", map[string]any{
			"orderId": order.ID,
			"to":      to,
			"reason":  "publisher not configured",
		})
		return nil
	}

	jobID, err := s.publisher.PublishEmailJob(ctx, msg)
	if err != nil {
		return err
	}
	s.logger(ctx, "notifications.email.enqueued", map[string]any{
		"orderId": order.ID,
		"jobId":   jobID,
	})
	return nil
}

func (s *notificationService) renderConfirmation(order domain.Order) (string, error) {
	view := confirmationView{
		Name:        order.Shipping.Name,
		OrderNumber: order.OrderNumber,
		Subtotal:    s.formatMoney(order.Subtotal),
		Shipping:    s.formatMoney(order.ShippingCost),
		Total:       s.formatMoney(order.Total),
		Address:     order.Shipping.Address,
		Town:        order.Shipping.Town,
		Province:    string(order.Shipping.Province),
		Method:      paymentMethodLabel(order.Method),
	}
	if order.Discount > 0 {
		view.Discount = s.formatMoney(order.Discount)
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, confirmationItemView{
			Label:     itemLabel(item.ProductName, item.VariantName),
			Quantity:  item.Quantity,
			UnitPrice: s.formatMoney(item.UnitPrice),
			LineTotal: s.formatMoney(item.LineTotal),
		})
	}

	var buf strings.Builder
	if err := orderConfirmationTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatMoney renders minor units as "K2,900.00". Amounts stay integral
// through the split so no float rounding reaches the output.
func (s *notificationService) formatMoney(minor int64) string {
	major := minor / 100
	cents := minor % 100
	if cents < 0 {
		cents = -cents
	}
	return s.printer.Sprintf("K%d.%02d", major, cents)
}

func paymentMethodLabel(method domain.PaymentMethod) string {
	switch method {
	case domain.PaymentMethodLenco:
		return "Card / Mobile Money"
	case domain.PaymentMethodManualMomo:
		return "Mobile Money (manual)"
	case domain.PaymentMethodPayOnDelivery:
		return "Pay on delivery"
	default:
		return string(method)
	}
}
