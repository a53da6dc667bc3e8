package statemachine

import (
	"context"
	"fmt"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/looplab/fsm"
)

// InvoiceFSM wraps an invoice with its state machine
type InvoiceFSM struct {
	invoice *models.Invoice
	fsm     *fsm.FSM
}

// NewInvoiceFSM creates a new invoice state machine
func NewInvoiceFSM(invoice *models.Invoice) *InvoiceFSM {
	ifsm := &InvoiceFSM{
		invoice: invoice,
	}

	ifsm.fsm = fsm.NewFSM(
		invoice.Status,
		fsm.Events{
			// draft → issued
			{Name: "issue", Src: []string{models.InvoiceStatusDraft}, Dst: models.InvoiceStatusIssued},

			// issued/partially_paid → partially_paid
			{Name: "pay_partial", Src: []string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid}, Dst: models.InvoiceStatusPartiallyPaid},

			// issued/partially_paid → paid
			{Name: "pay_full", Src: []string{models.InvoiceStatusIssued, models.InvoiceStatusPartiallyPaid}, Dst: models.InvoiceStatusPaid},

			// draft/issued → voided (only with nothing paid)
			{Name: "void", Src: []string{models.InvoiceStatusDraft, models.InvoiceStatusIssued}, Dst: models.InvoiceStatusVoided},
		},
		fsm.Callbacks{},
	)

	return ifsm
}

// Issue transitions invoice to issued state
func (i *InvoiceFSM) Issue(ctx context.Context) error {
	if !i.invoice.MayIssue() {
		return fmt.Errorf("invoice cannot be issued in current state: %s", i.invoice.Status)
	}

	if err := i.fsm.Event(ctx, "issue"); err != nil {
		return fmt.Errorf("failed to issue invoice: %w", err)
	}

	i.invoice.Status = i.fsm.Current()
	return nil
}

// PayPartial transitions invoice to partially_paid state
func (i *InvoiceFSM) PayPartial(ctx context.Context) error {
	if !i.invoice.MayApplyPayment() {
		return fmt.Errorf("invoice cannot receive payments in current state: %s", i.invoice.Status)
	}

	if err := i.fsm.Event(ctx, "pay_partial"); err != nil {
		return fmt.Errorf("failed to mark invoice partially paid: %w", err)
	}

	i.invoice.Status = i.fsm.Current()
	return nil
}

// PayFull transitions invoice to paid state
func (i *InvoiceFSM) PayFull(ctx context.Context) error {
	if !i.invoice.MayApplyPayment() {
		return fmt.Errorf("invoice cannot receive payments in current state: %s", i.invoice.Status)
	}

	if err := i.fsm.Event(ctx, "pay_full"); err != nil {
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}

	i.invoice.Status = i.fsm.Current()
	return nil
}

// Void transitions invoice to voided state
func (i *InvoiceFSM) Void(ctx context.Context) error {
	if !i.invoice.MayVoid() {
		return fmt.Errorf("invoice cannot be voided in current state: %s (paid %.2f)", i.invoice.Status, i.invoice.PaidAmount)
	}

	if err := i.fsm.Event(ctx, "void"); err != nil {
		return fmt.Errorf("failed to void invoice: %w", err)
	}

	i.invoice.Status = i.fsm.Current()
	return nil
}

// Current returns the current state
func (i *InvoiceFSM) Current() string {
	return i.fsm.Current()
}

// Can checks if a transition is possible
func (i *InvoiceFSM) Can(event string) bool {
	return i.fsm.Can(event)
}
