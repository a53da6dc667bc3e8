package statemachine

import (
	"context"
	"testing"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestPaymentFSM_CompleteFromPending(t *testing.T) {
	payment := &models.Payment{Status: models.PaymentStatusPending}
	machine := NewPaymentFSM(payment)

	err := machine.Complete(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
}

func TestPaymentFSM_FailFromPending(t *testing.T) {
	payment := &models.Payment{Status: models.PaymentStatusPending}
	machine := NewPaymentFSM(payment)

	err := machine.Fail(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
}

func TestPaymentFSM_SettledPaymentIsFinal(t *testing.T) {
	completed := &models.Payment{Status: models.PaymentStatusCompleted}
	err := NewPaymentFSM(completed).Complete(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be completed")

	failed := &models.Payment{Status: models.PaymentStatusFailed}
	err = NewPaymentFSM(failed).Complete(context.Background())
	assert.Error(t, err)

	err = NewPaymentFSM(failed).Fail(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be failed")
}
