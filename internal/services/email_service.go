package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/dtorrez/rentora-api/internal/config"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/pkg/logger"
	"github.com/resend/resend-go/v2"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

type EmailService struct {
	config       *config.Config
	resendClient *resend.Client
}

func NewEmailService(cfg *config.Config) *EmailService {
	client := resend.NewClient(cfg.ResendAPIKey)
	return &EmailService{
		config:       cfg,
		resendClient: client,
	}
}

// Helper function to safely get string from pointer
func getStringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *EmailService) send(to, subject, body string) error {
	if s.config.ResendAPIKey == "" {
		logger.Warn(fmt.Sprintf("[Email] RESEND_API_KEY not set, dropping email to %s (%s)", to, subject))
		return nil
	}
	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	_, err := s.resendClient.Emails.Send(params)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send email to %s: %v", to, err))
		return err
	}

	logger.Info(fmt.Sprintf("📧 [Email Sent] To: %s | Subject: %s", to, subject))
	return nil
}

func (s *EmailService) SendRecoveryCode(ctx context.Context, user *models.User, code string) error {
	data := struct {
		Name    string
		Code    string
		Minutes int
		AppURL  string
	}{
		Name:    user.FullName,
		Code:    code,
		Minutes: 15,
		AppURL:  s.config.AppURL,
	}

	body, err := s.renderTemplate("reset_code.html", data)
	if err != nil {
		return err
	}

	return s.send(user.Email, "Código de reseteo", body)
}

func (s *EmailService) SendAccountCreated(ctx context.Context, user *models.User) error {
	data := struct {
		Name   string
		AppURL string
	}{
		Name:   user.FullName,
		AppURL: s.config.AppURL,
	}

	body, err := s.renderTemplate("account_created.html", data)
	if err != nil {
		return err
	}

	return s.send(user.Email, "¡Bienvenido a Rentora!", body)
}

// SendInvoiceIssued notifies the tenant that a new invoice is payable. The
// invoice must come loaded with its lease, unit and tenant.
func (s *EmailService) SendInvoiceIssued(ctx context.Context, invoice *models.Invoice) error {
	tenant := invoice.Lease.TenantUser
	if tenant.Email == "" {
		return fmt.Errorf("invoice %d has no tenant email", invoice.ID)
	}

	dueDate := ""
	if invoice.DueDate != nil {
		dueDate = invoice.DueDate.Format("02/01/2006")
	}

	data := struct {
		Name          string
		InvoiceNumber string
		PropertyName  string
		UnitLabel     string
		PeriodStart   string
		PeriodEnd     string
		TotalAmount   string
		DueDate       string
		AppURL        string
	}{
		Name:          tenant.FullName,
		InvoiceNumber: getStringValue(invoice.InvoiceNumber),
		PropertyName:  invoice.Lease.Unit.Property.Name,
		UnitLabel:     invoice.Lease.Unit.Label,
		PeriodStart:   invoice.PeriodStart.Format("02/01/2006"),
		PeriodEnd:     invoice.PeriodEnd.Format("02/01/2006"),
		TotalAmount:   fmt.Sprintf("L%.2f", invoice.TotalAmount),
		DueDate:       dueDate,
		AppURL:        s.config.AppURL,
	}

	body, err := s.renderTemplate("invoice_issued.html", data)
	if err != nil {
		return err
	}

	return s.send(tenant.Email, "Factura Emitida", body)
}

type ReminderInvoiceData struct {
	InvoiceNumber string
	UnitLabel     string
	Balance       string
	DueDate       string
}

func reminderRows(invoices []models.Invoice) []ReminderInvoiceData {
	var rows []ReminderInvoiceData
	for i := range invoices {
		inv := &invoices[i]
		dueDate := ""
		if inv.DueDate != nil {
			dueDate = inv.DueDate.Format("02/01/2006")
		}
		rows = append(rows, ReminderInvoiceData{
			InvoiceNumber: getStringValue(inv.InvoiceNumber),
			UnitLabel:     inv.Lease.Unit.Label,
			Balance:       fmt.Sprintf("L%.2f", inv.BalanceAmount),
			DueDate:       dueDate,
		})
	}
	return rows
}

func (s *EmailService) SendOverdueInvoicesReminder(ctx context.Context, user *models.User, invoices []models.Invoice) error {
	data := struct {
		Name     string
		Invoices []ReminderInvoiceData
		AppURL   string
	}{
		Name:     user.FullName,
		Invoices: reminderRows(invoices),
		AppURL:   s.config.AppURL,
	}

	body, err := s.renderTemplate("overdue_invoices.html", data)
	if err != nil {
		return err
	}

	return s.send(user.Email, fmt.Sprintf("Facturas Vencidas (%d facturas)", len(invoices)), body)
}

func (s *EmailService) SendUpcomingInvoicesReminder(ctx context.Context, user *models.User, invoices []models.Invoice) error {
	data := struct {
		Name     string
		Invoices []ReminderInvoiceData
		AppURL   string
	}{
		Name:     user.FullName,
		Invoices: reminderRows(invoices),
		AppURL:   s.config.AppURL,
	}

	body, err := s.renderTemplate("upcoming_invoices.html", data)
	if err != nil {
		return err
	}

	return s.send(user.Email, "Facturas Próximas a Vencer", body)
}

// SendPaymentReceived sends the tenant a receipt summary for a settled
// payment. The payment must come loaded with its invoice and tenant.
func (s *EmailService) SendPaymentReceived(ctx context.Context, payment *models.Payment) error {
	tenant := payment.Invoice.Lease.TenantUser
	if tenant.Email == "" {
		return fmt.Errorf("payment %d has no tenant email", payment.ID)
	}

	mode := payment.PaymentMode
	if label, ok := paymentModeLabels[payment.PaymentMode]; ok {
		mode = label
	}

	data := struct {
		Name          string
		ReceiptNumber string
		InvoiceNumber string
		Amount        string
		Mode          string
		PaymentDate   string
		Balance       string
		AppURL        string
	}{
		Name:          tenant.FullName,
		ReceiptNumber: getStringValue(payment.ReceiptNumber),
		InvoiceNumber: getStringValue(payment.Invoice.InvoiceNumber),
		Amount:        fmt.Sprintf("L%.2f", payment.Amount),
		Mode:          mode,
		PaymentDate:   payment.PaymentDate.Format("02/01/2006"),
		Balance:       fmt.Sprintf("L%.2f", payment.Invoice.BalanceAmount),
		AppURL:        s.config.AppURL,
	}

	body, err := s.renderTemplate("payment_received.html", data)
	if err != nil {
		return err
	}

	return s.send(tenant.Email, "Pago Recibido", body)
}

// SendConfirmationReviewed tells the submitter how their payment
// confirmation request was resolved.
func (s *EmailService) SendConfirmationReviewed(ctx context.Context, request *models.PaymentConfirmationRequest) error {
	submitter := request.SubmittedBy
	if submitter.Email == "" {
		return fmt.Errorf("confirmation request %d has no submitter email", request.ID)
	}

	confirmed := request.Status == models.ConfirmationStatusConfirmed
	subject := "Pago Confirmado"
	if !confirmed {
		subject = "Solicitud de Pago Rechazada"
	}

	data := struct {
		Name           string
		Confirmed      bool
		InvoiceNumber  string
		Amount         string
		PaymentDate    string
		ReviewResponse string
		AppURL         string
	}{
		Name:           submitter.FullName,
		Confirmed:      confirmed,
		InvoiceNumber:  getStringValue(request.Invoice.InvoiceNumber),
		Amount:         fmt.Sprintf("L%.2f", request.Amount),
		PaymentDate:    request.PaymentDate.Format("02/01/2006"),
		ReviewResponse: getStringValue(request.ReviewResponse),
		AppURL:         s.config.AppURL,
	}

	body, err := s.renderTemplate("confirmation_reviewed.html", data)
	if err != nil {
		return err
	}

	return s.send(submitter.Email, subject, body)
}

func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}
