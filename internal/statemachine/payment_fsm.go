package statemachine

import (
	"context"
	"fmt"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/looplab/fsm"
)

// PaymentFSM wraps a payment with its state machine
type PaymentFSM struct {
	payment *models.Payment
	fsm     *fsm.FSM
}

// NewPaymentFSM creates a new payment state machine
func NewPaymentFSM(payment *models.Payment) *PaymentFSM {
	pfsm := &PaymentFSM{
		payment: payment,
	}

	pfsm.fsm = fsm.NewFSM(
		payment.Status,
		fsm.Events{
			// pending → completed (settles against the invoice)
			{Name: "complete", Src: []string{models.PaymentStatusPending}, Dst: models.PaymentStatusCompleted},

			// pending → failed (gateway declined or expired)
			{Name: "fail", Src: []string{models.PaymentStatusPending}, Dst: models.PaymentStatusFailed},
		},
		fsm.Callbacks{},
	)

	return pfsm
}

// Complete transitions payment to completed state
func (p *PaymentFSM) Complete(ctx context.Context) error {
	if !p.payment.MayComplete() {
		return fmt.Errorf("payment cannot be completed in current state: %s", p.payment.Status)
	}

	if err := p.fsm.Event(ctx, "complete"); err != nil {
		return fmt.Errorf("failed to complete payment: %w", err)
	}

	p.payment.Status = p.fsm.Current()
	return nil
}

// Fail transitions payment to failed state
func (p *PaymentFSM) Fail(ctx context.Context) error {
	if !p.payment.MayFail() {
		return fmt.Errorf("payment cannot be failed in current state: %s", p.payment.Status)
	}

	if err := p.fsm.Event(ctx, "fail"); err != nil {
		return fmt.Errorf("failed to fail payment: %w", err)
	}

	p.payment.Status = p.fsm.Current()
	return nil
}

// Current returns the current state
func (p *PaymentFSM) Current() string {
	return p.fsm.Current()
}

// Can checks if a transition is possible
func (p *PaymentFSM) Can(event string) bool {
	return p.fsm.Can(event)
}
