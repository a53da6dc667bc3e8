package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dtorrez/rentora-api/internal/config"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/services"
	"github.com/dtorrez/rentora-api/pkg/logger"
)

// Sends one email per template to TEST_EMAIL_TO using fixture billing data,
// so template changes can be eyeballed in a real inbox before a release.
func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger.Setup("development")

	if cfg.ResendAPIKey == "" {
		log.Fatal("RESEND_API_KEY is not set")
	}

	// Initialize email service
	emailService := services.NewEmailService(cfg)

	// Check if TEST_EMAIL_TO is set, otherwise use a default
	toEmail := os.Getenv("TEST_EMAIL_TO")
	if toEmail == "" {
		toEmail = "test@example.com"
		log.Println("TEST_EMAIL_TO not set, using test@example.com. Emails might mock or fail if domain not verified.")
	}

	tenant := models.User{
		FullName: "Test User",
		Email:    toEmail,
	}

	lease := models.Lease{
		BillingDay: 1,
		DueDays:    10,
		Currency:   "HNL",
		Unit: models.Unit{
			Label:       "A-101",
			MonthlyRent: 12000,
			Property:    models.Property{Name: "Residencial Los Pinos"},
		},
		TenantUser: tenant,
	}

	invoiceNumber := "INV-000123"
	dueDate := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	invoice := models.Invoice{
		ID:            123,
		InvoiceNumber: &invoiceNumber,
		PeriodStart:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:        models.InvoiceStatusIssued,
		Subtotal:      12000,
		TaxAmount:     0,
		TotalAmount:   12000,
		PaidAmount:    4500,
		BalanceAmount: 7500,
		Currency:      "HNL",
		DueDate:       &dueDate,
		Lease:         lease,
	}

	receiptNumber := "RCT-000077"
	payment := models.Payment{
		ID:            77,
		Amount:        4500,
		PaymentDate:   time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		PaymentMode:   models.PaymentModeBankTransfer,
		Status:        models.PaymentStatusCompleted,
		ReceiptNumber: &receiptNumber,
		Invoice:       invoice,
	}

	reviewResponse := "Verificado contra el estado de cuenta del banco"
	request := models.PaymentConfirmationRequest{
		ID:             9,
		Amount:         4500,
		PaymentDate:    time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		Status:         models.ConfirmationStatusConfirmed,
		ReviewResponse: &reviewResponse,
		Invoice:        invoice,
		SubmittedBy:    tenant,
	}

	pastDue := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	overdueNumber := "INV-000098"
	overdue := []models.Invoice{
		{
			InvoiceNumber: &overdueNumber,
			BalanceAmount: 12000,
			DueDate:       &pastDue,
			Lease:         lease,
		},
		invoice,
	}

	ctx := context.Background()
	sends := []struct {
		name string
		fn   func() error
	}{
		{"Account Created", func() error { return emailService.SendAccountCreated(ctx, &tenant) }},
		{"Recovery Code", func() error { return emailService.SendRecoveryCode(ctx, &tenant, "123456") }},
		{"Invoice Issued", func() error { return emailService.SendInvoiceIssued(ctx, &invoice) }},
		{"Payment Received", func() error { return emailService.SendPaymentReceived(ctx, &payment) }},
		{"Confirmation Reviewed", func() error { return emailService.SendConfirmationReviewed(ctx, &request) }},
		{"Overdue Reminder", func() error { return emailService.SendOverdueInvoicesReminder(ctx, &tenant, overdue) }},
		{"Upcoming Reminder", func() error { return emailService.SendUpcomingInvoicesReminder(ctx, &tenant, overdue[1:]) }},
	}

	for _, s := range sends {
		log.Printf("Sending %s email to %s...", s.name, toEmail)
		if err := s.fn(); err != nil {
			log.Fatalf("Failed to send %s email: %v", s.name, err)
		}
		log.Printf("%s email sent successfully!", s.name)
	}
}
