package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dtorrez/rentora-api/internal/config"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.Setup("test")
	os.Exit(m.Run())
}

// Without RESEND_API_KEY the service renders templates and drops the send,
// so these tests exercise the full data path without touching the network.

func TestEmailService_SendInvoiceIssued(t *testing.T) {
	service := NewEmailService(&config.Config{AppURL: "http://localhost:5173"})

	number := "INV-000007"
	due := date(2026, time.February, 10)
	invoice := &models.Invoice{
		ID:            7,
		InvoiceNumber: &number,
		PeriodStart:   date(2026, time.February, 1),
		PeriodEnd:     date(2026, time.February, 28),
		TotalAmount:   10500,
		DueDate:       &due,
		Lease: models.Lease{
			ID:         1,
			TenantUser: models.User{ID: 5, FullName: "Laura Mejía", Email: "laura@example.com"},
			Unit: models.Unit{
				ID:       3,
				Label:    "A-101",
				Property: models.Property{ID: 1, Name: "Torre Morazán"},
			},
		},
	}

	assert.NoError(t, service.SendInvoiceIssued(context.Background(), invoice))

	// Missing tenant email is reported, not silently skipped
	invoice.Lease.TenantUser.Email = ""
	err := service.SendInvoiceIssued(context.Background(), invoice)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no tenant email")
}

func TestEmailService_SendPaymentReceived(t *testing.T) {
	service := NewEmailService(&config.Config{})

	receipt := "RCT-000003"
	number := "INV-000007"
	payment := &models.Payment{
		ID:            500,
		Amount:        400,
		PaymentDate:   date(2026, time.February, 5),
		PaymentMode:   models.PaymentModeCash,
		ReceiptNumber: &receipt,
		Invoice: models.Invoice{
			ID:            7,
			InvoiceNumber: &number,
			BalanceAmount: 600,
			Lease: models.Lease{
				TenantUser: models.User{ID: 5, FullName: "Laura Mejía", Email: "laura@example.com"},
			},
		},
	}

	assert.NoError(t, service.SendPaymentReceived(context.Background(), payment))

	payment.Invoice.Lease.TenantUser.Email = ""
	assert.Error(t, service.SendPaymentReceived(context.Background(), payment))
}

func TestEmailService_SendConfirmationReviewed(t *testing.T) {
	service := NewEmailService(&config.Config{})

	response := "comprobante verificado"
	request := pendingRequest()
	request.Status = models.ConfirmationStatusConfirmed
	request.ReviewResponse = &response

	assert.NoError(t, service.SendConfirmationReviewed(context.Background(), request))

	request.Status = models.ConfirmationStatusRejected
	assert.NoError(t, service.SendConfirmationReviewed(context.Background(), request))
}

func TestEmailService_SendReminders(t *testing.T) {
	service := NewEmailService(&config.Config{})

	user := &models.User{ID: 5, FullName: "Laura Mejía", Email: "laura@example.com"}
	number := "INV-000001"
	due := date(2026, time.January, 10)
	invoices := []models.Invoice{{
		ID:            1,
		InvoiceNumber: &number,
		BalanceAmount: 6000,
		DueDate:       &due,
		Lease:         models.Lease{Unit: models.Unit{Label: "A-101"}},
	}}

	assert.NoError(t, service.SendOverdueInvoicesReminder(context.Background(), user, invoices))
	assert.NoError(t, service.SendUpcomingInvoicesReminder(context.Background(), user, invoices))
}

func TestReminderRows(t *testing.T) {
	number := "INV-000001"
	due := date(2026, time.January, 10)
	rows := reminderRows([]models.Invoice{
		{InvoiceNumber: &number, BalanceAmount: 6000, DueDate: &due,
			Lease: models.Lease{Unit: models.Unit{Label: "A-101"}}},
		{BalanceAmount: 300}, // draft data: no number, no due date
	})

	assert.Len(t, rows, 2)
	assert.Equal(t, "INV-000001", rows[0].InvoiceNumber)
	assert.Equal(t, "A-101", rows[0].UnitLabel)
	assert.Equal(t, "L6000.00", rows[0].Balance)
	assert.Equal(t, "10/01/2026", rows[0].DueDate)
	assert.Equal(t, "", rows[1].DueDate)
}
