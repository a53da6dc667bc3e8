package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	db *gorm.DB

	User         UserRepository
	Organization OrganizationRepository
	Property     PropertyRepository
	Unit         UnitRepository
	Lease        LeaseRepository
	LeaseCharge  LeaseChargeRepository
	Invoice      InvoiceRepository
	Payment      PaymentRepository
	Confirmation ConfirmationRepository
	Sequence     SequenceRepository
	Notification NotificationRepository
	RefreshToken RefreshTokenRepository
	Analytics    AnalyticsRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db: db,

		User:         NewUserRepository(db),
		Organization: NewOrganizationRepository(db),
		Property:     NewPropertyRepository(db),
		Unit:         NewUnitRepository(db),
		Lease:        NewLeaseRepository(db),
		LeaseCharge:  NewLeaseChargeRepository(db),
		Invoice:      NewInvoiceRepository(db),
		Payment:      NewPaymentRepository(db),
		Confirmation: NewConfirmationRepository(db),
		Sequence:     NewSequenceRepository(db),
		Notification: NewNotificationRepository(db),
		RefreshToken: NewRefreshTokenRepository(db),
		Analytics:    NewAnalyticsRepository(db),
	}
}

// Atomically runs fn against repositories bound to a single database
// transaction; the mutations commit or roll back together. Repositories
// assembled without a db handle (fakes in tests) run fn directly.
func (r *Repositories) Atomically(ctx context.Context, fn func(*Repositories) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
