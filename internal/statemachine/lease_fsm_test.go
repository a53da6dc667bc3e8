package statemachine

import (
	"context"
	"testing"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestLeaseFSM_TerminateFromActive(t *testing.T) {
	lease := &models.Lease{Status: models.LeaseStatusActive}
	machine := NewLeaseFSM(lease)

	err := machine.Terminate(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, models.LeaseStatusTerminated, lease.Status)
}

func TestLeaseFSM_ExpireFromActive(t *testing.T) {
	lease := &models.Lease{Status: models.LeaseStatusActive}
	machine := NewLeaseFSM(lease)

	err := machine.Expire(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, models.LeaseStatusExpired, lease.Status)
}

func TestLeaseFSM_ClosedLeaseStaysClosed(t *testing.T) {
	terminated := &models.Lease{Status: models.LeaseStatusTerminated}
	err := NewLeaseFSM(terminated).Expire(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot expire")

	expired := &models.Lease{Status: models.LeaseStatusExpired}
	err = NewLeaseFSM(expired).Terminate(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be terminated")
}
