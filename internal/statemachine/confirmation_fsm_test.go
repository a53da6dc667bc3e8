package statemachine

import (
	"context"
	"testing"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestConfirmationFSM_ConfirmFromPending(t *testing.T) {
	request := &models.PaymentConfirmationRequest{Status: models.ConfirmationStatusPending}
	machine := NewConfirmationFSM(request)

	err := machine.Confirm(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, models.ConfirmationStatusConfirmed, request.Status)
}

func TestConfirmationFSM_RejectFromPending(t *testing.T) {
	request := &models.PaymentConfirmationRequest{Status: models.ConfirmationStatusPending}
	machine := NewConfirmationFSM(request)

	err := machine.Reject(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, models.ConfirmationStatusRejected, request.Status)
}

func TestConfirmationFSM_ReviewedRequestIsFinal(t *testing.T) {
	confirmed := &models.PaymentConfirmationRequest{Status: models.ConfirmationStatusConfirmed}
	err := NewConfirmationFSM(confirmed).Reject(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be rejected")

	rejected := &models.PaymentConfirmationRequest{Status: models.ConfirmationStatusRejected}
	err = NewConfirmationFSM(rejected).Confirm(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be confirmed")
}
