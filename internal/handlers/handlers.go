package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dtorrez/rentora-api/internal/services"
	"github.com/dtorrez/rentora-api/internal/storage"
)

// Handlers holds all handler instances
type Handlers struct {
	Health       *HealthHandler
	Auth         *AuthHandler
	User         *UserHandler
	Property     *PropertyHandler
	Unit         *UnitHandler
	Lease        *LeaseHandler
	Invoice      *InvoiceHandler
	Payment      *PaymentHandler
	Confirmation *ConfirmationHandler
	Notification *NotificationHandler
	Report       *ReportHandler
	Audit        *AuditHandler
	Analytics    *AnalyticsHandler
	Job          *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, storage *storage.LocalStorage) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(),
		Auth:         NewAuthHandler(svcs.Auth),
		User:         NewUserHandler(svcs.User, svcs.Lease, svcs.Invoice, svcs.Payment),
		Property:     NewPropertyHandler(svcs.Property),
		Unit:         NewUnitHandler(svcs.Unit),
		Lease:        NewLeaseHandler(svcs.Lease, svcs.User, svcs.Invoice),
		Invoice:      NewInvoiceHandler(svcs.Invoice, svcs.Export),
		Payment:      NewPaymentHandler(svcs.Payment, svcs.Export),
		Confirmation: NewConfirmationHandler(svcs.Confirmation),
		Notification: NewNotificationHandler(svcs.Notification),
		Report:       NewReportHandler(svcs.Report, svcs.Invoice, svcs.Payment, storage),
		Audit:        NewAuditHandler(svcs.Audit),
		Analytics:    NewAnalyticsHandler(svcs.Analytics, svcs.Export),
		Job:          NewJobHandler(svcs.Job),
	}
}

// respondError maps a service error to an HTTP status. Services return
// sentinel errors (services.ErrNotFound etc.) wrapped with detail, so one
// errors.Is chain covers every handler.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrInvalidPassword), errors.Is(err, services.ErrInvalidRecoveryCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrDuplicate), errors.Is(err, services.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrBusinessRule):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
