package statemachine

import (
	"context"
	"fmt"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/looplab/fsm"
)

// ConfirmationFSM wraps a payment confirmation request with its state machine
type ConfirmationFSM struct {
	request *models.PaymentConfirmationRequest
	fsm     *fsm.FSM
}

// NewConfirmationFSM creates a new confirmation request state machine
func NewConfirmationFSM(request *models.PaymentConfirmationRequest) *ConfirmationFSM {
	cfsm := &ConfirmationFSM{
		request: request,
	}

	cfsm.fsm = fsm.NewFSM(
		request.Status,
		fsm.Events{
			// pending → confirmed
			{Name: "confirm", Src: []string{models.ConfirmationStatusPending}, Dst: models.ConfirmationStatusConfirmed},

			// pending → rejected
			{Name: "reject", Src: []string{models.ConfirmationStatusPending}, Dst: models.ConfirmationStatusRejected},
		},
		fsm.Callbacks{},
	)

	return cfsm
}

// Confirm transitions the request to confirmed state
func (c *ConfirmationFSM) Confirm(ctx context.Context) error {
	if !c.request.MayConfirm() {
		return fmt.Errorf("confirmation request cannot be confirmed in current state: %s", c.request.Status)
	}

	if err := c.fsm.Event(ctx, "confirm"); err != nil {
		return fmt.Errorf("failed to confirm request: %w", err)
	}

	c.request.Status = c.fsm.Current()
	return nil
}

// Reject transitions the request to rejected state
func (c *ConfirmationFSM) Reject(ctx context.Context) error {
	if !c.request.MayReject() {
		return fmt.Errorf("confirmation request cannot be rejected in current state: %s", c.request.Status)
	}

	if err := c.fsm.Event(ctx, "reject"); err != nil {
		return fmt.Errorf("failed to reject request: %w", err)
	}

	c.request.Status = c.fsm.Current()
	return nil
}

// Current returns the current state
func (c *ConfirmationFSM) Current() string {
	return c.fsm.Current()
}

// Can checks if a transition is possible
func (c *ConfirmationFSM) Can(event string) bool {
	return c.fsm.Can(event)
}
