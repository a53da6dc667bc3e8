package services

import (
	"testing"
	"time"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestCalculateProration_PartialMonth(t *testing.T) {
	service := NewProrationService()

	// Tenant moves in on the 15th of a 31-day month: 17 of 31 days
	amount, err := service.CalculateProration(10000,
		date(2026, time.January, 15), date(2026, time.January, 31),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.NoError(t, err)
	assert.Equal(t, 5483.87, amount)
}

func TestCalculateProration_FullCoverageIsExact(t *testing.T) {
	service := NewProrationService()

	// Full occupancy must return the charge exactly, not a rounded quotient
	amount, err := service.CalculateProration(1234.56,
		date(2026, time.January, 1), date(2026, time.January, 31),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.NoError(t, err)
	assert.Equal(t, 1234.56, amount)
}

func TestCalculateProration_UsageWiderThanPeriod(t *testing.T) {
	service := NewProrationService()

	// Occupancy spilling over both ends still covers the whole period
	amount, err := service.CalculateProration(10000,
		date(2025, time.December, 15), date(2026, time.February, 15),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.NoError(t, err)
	assert.Equal(t, 10000.00, amount)
}

func TestCalculateProration_NoOverlap(t *testing.T) {
	service := NewProrationService()

	amount, err := service.CalculateProration(10000,
		date(2026, time.March, 1), date(2026, time.March, 31),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.NoError(t, err)
	assert.Equal(t, 0.0, amount)
}

func TestCalculateProration_FebruaryUsesRealMonthLength(t *testing.T) {
	service := NewProrationService()

	// 14 of 28 days in a non-leap February
	amount, err := service.CalculateProration(10000,
		date(2026, time.February, 15), date(2026, time.February, 28),
		date(2026, time.February, 1), date(2026, time.February, 28))

	assert.NoError(t, err)
	assert.Equal(t, 5000.00, amount)

	// 15 of 29 days in a leap February
	amount, err = service.CalculateProration(10000,
		date(2024, time.February, 15), date(2024, time.February, 29),
		date(2024, time.February, 1), date(2024, time.February, 29))

	assert.NoError(t, err)
	assert.Equal(t, 5172.41, amount)
}

func TestCalculateProration_RoundsHalfUp(t *testing.T) {
	service := NewProrationService()

	// 100 * 1/31 = 3.2258... rounds up to 3.23
	amount, err := service.CalculateProration(100,
		date(2026, time.January, 1), date(2026, time.January, 1),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.NoError(t, err)
	assert.Equal(t, 3.23, amount)
}

func TestCalculateProration_RejectsNegativeAmount(t *testing.T) {
	service := NewProrationService()

	_, err := service.CalculateProration(-50,
		date(2026, time.January, 1), date(2026, time.January, 31),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCalculateProration_RejectsInvertedWindows(t *testing.T) {
	service := NewProrationService()

	_, err := service.CalculateProration(100,
		date(2026, time.January, 31), date(2026, time.January, 1),
		date(2026, time.January, 1), date(2026, time.January, 31))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = service.CalculateProration(100,
		date(2026, time.January, 1), date(2026, time.January, 31),
		date(2026, time.January, 31), date(2026, time.January, 1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestProrateCharge_ActualDaysPartial(t *testing.T) {
	service := NewProrationService()
	charge := &models.LeaseCharge{
		ChargeType:      models.ChargeTypeRent,
		Amount:          10000,
		ProrationMethod: models.ProrationActualDays,
	}

	amount, prorated, err := service.ProrateCharge(charge,
		date(2026, time.January, 15), date(2026, time.January, 31),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.NoError(t, err)
	assert.Equal(t, 5483.87, amount)
	assert.True(t, prorated)
}

func TestProrateCharge_ActualDaysFullPeriod(t *testing.T) {
	service := NewProrationService()
	charge := &models.LeaseCharge{
		ChargeType:      models.ChargeTypeRent,
		Amount:          10000,
		ProrationMethod: models.ProrationActualDays,
	}

	amount, prorated, err := service.ProrateCharge(charge,
		date(2026, time.January, 1), date(2026, time.January, 31),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.NoError(t, err)
	assert.Equal(t, 10000.00, amount)
	assert.False(t, prorated)
}

func TestProrateCharge_FlatChargeBillsInFull(t *testing.T) {
	service := NewProrationService()
	charge := &models.LeaseCharge{
		ChargeType:      models.ChargeTypeParking,
		Amount:          500,
		ProrationMethod: models.ProrationNone,
	}

	// Touching a single day of the period still bills the full amount
	amount, prorated, err := service.ProrateCharge(charge,
		date(2026, time.January, 31), date(2026, time.January, 31),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.NoError(t, err)
	assert.Equal(t, 500.00, amount)
	assert.False(t, prorated)
}

func TestProrateCharge_NoOverlapProducesNothing(t *testing.T) {
	service := NewProrationService()
	charge := &models.LeaseCharge{
		ChargeType:      models.ChargeTypeRent,
		Amount:          10000,
		ProrationMethod: models.ProrationNone,
	}

	amount, prorated, err := service.ProrateCharge(charge,
		date(2026, time.March, 1), date(2026, time.March, 31),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.NoError(t, err)
	assert.Equal(t, 0.0, amount)
	assert.False(t, prorated)
}

func TestProrateCharge_RejectsInvertedWindow(t *testing.T) {
	service := NewProrationService()
	charge := &models.LeaseCharge{
		ChargeType:      models.ChargeTypeRent,
		Amount:          10000,
		ProrationMethod: models.ProrationActualDays,
	}

	_, _, err := service.ProrateCharge(charge,
		date(2026, time.January, 31), date(2026, time.January, 1),
		date(2026, time.January, 1), date(2026, time.January, 31))

	assert.ErrorIs(t, err, ErrInvalidArgument)
}
