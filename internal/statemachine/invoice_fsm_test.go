package statemachine

import (
	"context"
	"testing"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestInvoiceFSM_IssueFromDraft(t *testing.T) {
	invoice := &models.Invoice{Status: models.InvoiceStatusDraft}
	machine := NewInvoiceFSM(invoice)

	err := machine.Issue(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusIssued, invoice.Status)
	assert.Equal(t, models.InvoiceStatusIssued, machine.Current())
}

func TestInvoiceFSM_IssueRejectsNonDraft(t *testing.T) {
	invoice := &models.Invoice{Status: models.InvoiceStatusIssued}
	machine := NewInvoiceFSM(invoice)

	err := machine.Issue(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be issued")
	assert.Equal(t, models.InvoiceStatusIssued, invoice.Status)
}

func TestInvoiceFSM_PaymentFlow(t *testing.T) {
	invoice := &models.Invoice{Status: models.InvoiceStatusIssued}
	machine := NewInvoiceFSM(invoice)

	// A partial payment can repeat, a full payment closes the invoice
	assert.NoError(t, machine.PayPartial(context.Background()))
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, invoice.Status)

	assert.NoError(t, machine.PayPartial(context.Background()))
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, invoice.Status)

	assert.NoError(t, machine.PayFull(context.Background()))
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
}

func TestInvoiceFSM_PaymentsRejectedOnDraft(t *testing.T) {
	invoice := &models.Invoice{Status: models.InvoiceStatusDraft}
	machine := NewInvoiceFSM(invoice)

	err := machine.PayFull(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot receive payments")
}

func TestInvoiceFSM_VoidRequiresNothingPaid(t *testing.T) {
	invoice := &models.Invoice{Status: models.InvoiceStatusIssued, PaidAmount: 200}
	machine := NewInvoiceFSM(invoice)

	err := machine.Void(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be voided")
	assert.Equal(t, models.InvoiceStatusIssued, invoice.Status)
}

func TestInvoiceFSM_VoidUntouchedInvoice(t *testing.T) {
	invoice := &models.Invoice{Status: models.InvoiceStatusIssued}
	machine := NewInvoiceFSM(invoice)

	err := machine.Void(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusVoided, invoice.Status)
}

func TestInvoiceFSM_Can(t *testing.T) {
	machine := NewInvoiceFSM(&models.Invoice{Status: models.InvoiceStatusDraft})

	assert.True(t, machine.Can("issue"))
	assert.True(t, machine.Can("void"))
	assert.False(t, machine.Can("pay_full"))
}
