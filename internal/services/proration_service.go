package services

import (
	"fmt"
	"time"

	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/shopspring/decimal"
)

// ProrationService computes prorated charge amounts for partial billing periods
type ProrationService struct{}

// NewProrationService creates a new proration service
func NewProrationService() *ProrationService {
	return &ProrationService{}
}

// CalculateProration returns the portion of fullAmount covered by the overlap
// between the usage window and the billing period. Days count inclusively on
// both ends and the divisor is the real length of the billing period, so
// February prorates over 28 or 29 days and January over 31. The result is
// rounded to 2 decimal places, half up.
func (s *ProrationService) CalculateProration(fullAmount float64, usageStart, usageEnd, periodStart, periodEnd time.Time) (float64, error) {
	if fullAmount < 0 {
		return 0, fmt.Errorf("%w: el monto no puede ser negativo", ErrInvalidArgument)
	}

	usageStart = dateOnly(usageStart)
	usageEnd = dateOnly(usageEnd)
	periodStart = dateOnly(periodStart)
	periodEnd = dateOnly(periodEnd)

	if usageEnd.Before(usageStart) {
		return 0, fmt.Errorf("%w: ventana de uso invertida", ErrInvalidArgument)
	}
	if periodEnd.Before(periodStart) {
		return 0, fmt.Errorf("%w: período de facturación invertido", ErrInvalidArgument)
	}

	overlapStart, overlapEnd, ok := overlapWindow(usageStart, usageEnd, periodStart, periodEnd)
	if !ok {
		return 0, nil
	}

	overlapDays := daysInclusive(overlapStart, overlapEnd)
	periodDays := daysInclusive(periodStart, periodEnd)

	// Full coverage pays the full amount exactly, never a rounded quotient
	if overlapDays == periodDays {
		return roundMoney(fullAmount), nil
	}

	amount := decimal.NewFromFloat(fullAmount).
		Mul(decimal.NewFromInt(int64(overlapDays))).
		Div(decimal.NewFromInt(int64(periodDays)))
	return amount.Round(2).InexactFloat64(), nil
}

// ProrateCharge applies a lease charge's proration method to the given usage
// window and billing period. Returns the line amount and whether it was
// actually prorated (partial coverage under actual_days).
func (s *ProrationService) ProrateCharge(charge *models.LeaseCharge, usageStart, usageEnd, periodStart, periodEnd time.Time) (float64, bool, error) {
	usageStart = dateOnly(usageStart)
	usageEnd = dateOnly(usageEnd)
	periodStart = dateOnly(periodStart)
	periodEnd = dateOnly(periodEnd)

	if usageEnd.Before(usageStart) || periodEnd.Before(periodStart) {
		return 0, false, fmt.Errorf("%w: ventana de fechas invertida", ErrInvalidArgument)
	}

	overlapStart, overlapEnd, ok := overlapWindow(usageStart, usageEnd, periodStart, periodEnd)
	if !ok {
		return 0, false, nil
	}

	// Flat charges bill in full whenever they touch the period
	if charge.ProrationMethod == models.ProrationNone {
		return roundMoney(charge.Amount), false, nil
	}

	amount, err := s.CalculateProration(charge.Amount, usageStart, usageEnd, periodStart, periodEnd)
	if err != nil {
		return 0, false, err
	}
	prorated := daysInclusive(overlapStart, overlapEnd) != daysInclusive(periodStart, periodEnd)
	return amount, prorated, nil
}

// overlapWindow intersects two inclusive date ranges
func overlapWindow(aStart, aEnd, bStart, bEnd time.Time) (time.Time, time.Time, bool) {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// dateOnly strips the time-of-day component, normalizing to UTC midnight
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysInclusive counts calendar days between two dates, both ends included
func daysInclusive(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

// roundMoney rounds to 2 decimal places, half up
func roundMoney(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}
