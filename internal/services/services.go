package services

import (
	"github.com/dtorrez/rentora-api/internal/config"
	"github.com/dtorrez/rentora-api/internal/jobs"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/internal/storage"
	"gorm.io/gorm"
)

// Services holds all service instances
type Services struct {
	Auth         *AuthService
	User         *UserService
	Property     *PropertyService
	Unit         *UnitService
	Lease        *LeaseService
	Invoice      *InvoiceService
	Payment      *PaymentService
	Confirmation *ConfirmationService
	Notification *NotificationService
	Report       *ReportService
	Audit        *AuditService
	PaymentScore *PaymentScoreService
	Email        *EmailService
	Analytics    *AnalyticsService
	Export       *ExportService
	Job          *JobService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, store *storage.LocalStorage, cfg *config.Config, db *gorm.DB) *Services {
	notificationSvc := NewNotificationService(repos.Notification, repos.User)
	emailSvc := NewEmailService(cfg)
	auditSvc := NewAuditService(db)

	// Proof images live under the same root LocalStorage serves from
	imageSvc := NewImageService(cfg.StoragePath)

	prorationSvc := NewProrationService()
	invoiceSvc := NewInvoiceService(repos, prorationSvc, notificationSvc, emailSvc, auditSvc, worker, cfg)
	leaseSvc := NewLeaseService(repos.Lease, repos.LeaseCharge, repos.Unit, repos.User, notificationSvc, emailSvc, auditSvc, worker)
	scoreSvc := NewPaymentScoreService(repos.User, repos.Lease, repos.Invoice, repos.Payment)
	analyticsSvc := NewAnalyticsService(repos.Analytics, repos.Organization, notificationSvc)

	return &Services{
		Auth:         NewAuthService(repos.User, repos.RefreshToken, cfg),
		User:         NewUserService(repos.User, worker, emailSvc, auditSvc),
		Property:     NewPropertyService(repos.Property),
		Unit:         NewUnitService(repos.Unit, repos.Property, repos.Lease),
		Lease:        leaseSvc,
		Invoice:      invoiceSvc,
		Payment:      NewPaymentService(repos, notificationSvc, emailSvc, auditSvc, worker, cfg),
		Confirmation: NewConfirmationService(repos, store, imageSvc, notificationSvc, emailSvc, auditSvc, worker, cfg),
		Notification: notificationSvc,
		Report:       NewReportService(repos.Invoice, repos.Payment, repos.Lease, repos.User),
		Audit:        auditSvc,
		PaymentScore: scoreSvc,
		Email:        emailSvc,
		Analytics:    analyticsSvc,
		Export:       NewExportService(analyticsSvc),
		Job:          NewJobService(worker, invoiceSvc, leaseSvc, scoreSvc, analyticsSvc),
	}
}
