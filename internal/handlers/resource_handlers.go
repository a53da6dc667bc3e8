package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtorrez/rentora-api/internal/middleware"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/internal/services"
	"github.com/dtorrez/rentora-api/internal/storage"
)

type PropertyHandler struct {
	propertyService *services.PropertyService
}

func NewPropertyHandler(propertyService *services.PropertyService) *PropertyHandler {
	return &PropertyHandler{propertyService: propertyService}
}

// @Summary List Properties
// @Description Get a paginated list of properties
// @Tags Properties
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search_term query string false "Search term"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /properties [get]
func (h *PropertyHandler) Index(c *gin.Context) {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")

	properties, total, err := h.propertyService.List(c.Request.Context(), middleware.GetOrgID(c), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, p := range properties {
		responses = append(responses, p.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"properties": responses, "pagination": gin.H{"total": total}})
}

// @Summary Get Property
// @Description Get a property by ID
// @Tags Properties
// @Accept json
// @Produce json
// @Param property_id path int true "Property ID"
// @Success 200 {object} models.PropertyResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /properties/{property_id} [get]
func (h *PropertyHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("property_id"), 10, 32)
	property, err := h.propertyService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Propiedad no encontrada"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"property": property.ToResponse()})
}

// @Summary Create Property
// @Description Create a new property
// @Tags Properties
// @Accept json
// @Produce json
// @Param request body models.Property true "Property Data"
// @Success 201 {object} models.PropertyResponse
// @Security BearerAuth
// @Router /properties [post]
func (h *PropertyHandler) Create(c *gin.Context) {
	var property models.Property
	if err := c.ShouldBindJSON(&property); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	property.OrgID = middleware.GetOrgID(c)

	if err := h.propertyService.Create(c.Request.Context(), &property); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"property": property.ToResponse()})
}

// @Summary Update Property
// @Description Update an existing property
// @Tags Properties
// @Accept json
// @Produce json
// @Param property_id path int true "Property ID"
// @Param request body models.Property true "Property Data"
// @Success 200 {object} models.PropertyResponse
// @Security BearerAuth
// @Router /properties/{property_id} [put]
func (h *PropertyHandler) Update(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("property_id"), 10, 32)
	existing, err := h.propertyService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Propiedad no encontrada"})
		return
	}

	var property models.Property
	if err := c.ShouldBindJSON(&property); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	property.ID = existing.ID
	property.OrgID = existing.OrgID
	property.GUID = existing.GUID

	if err := h.propertyService.Update(c.Request.Context(), &property); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"property": property.ToResponse()})
}

// @Summary Delete Property
// @Description Delete a property without units
// @Tags Properties
// @Accept json
// @Produce json
// @Param property_id path int true "Property ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /properties/{property_id} [delete]
func (h *PropertyHandler) Delete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("property_id"), 10, 32)
	if err := h.propertyService.Delete(c.Request.Context(), uint(id)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Propiedad eliminada"})
}

type UnitHandler struct {
	unitService *services.UnitService
}

func NewUnitHandler(unitService *services.UnitService) *UnitHandler {
	return &UnitHandler{unitService: unitService}
}

// @Summary List Units
// @Description Get a paginated list of units for a property
// @Tags Units
// @Accept json
// @Produce json
// @Param property_id path int true "Property ID"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search_term query string false "Search term"
// @Param status query string false "Filter by status"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /properties/{property_id}/units [get]
func (h *UnitHandler) Index(c *gin.Context) {
	propertyID, _ := strconv.ParseUint(c.Param("property_id"), 10, 32)
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")
	query.Filters["status"] = c.Query("status")

	units, total, err := h.unitService.List(c.Request.Context(), uint(propertyID), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, u := range units {
		responses = append(responses, u.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"units": responses, "pagination": gin.H{"total": total}})
}

// @Summary Get Unit
// @Description Get a unit by ID
// @Tags Units
// @Accept json
// @Produce json
// @Param unit_id path int true "Unit ID"
// @Success 200 {object} models.UnitResponse
// @Security BearerAuth
// @Router /properties/{property_id}/units/{unit_id} [get]
func (h *UnitHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("unit_id"), 10, 32)
	unit, err := h.unitService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unidad no encontrada"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unit": unit.ToResponse()})
}

// @Summary Create Unit
// @Description Create a new unit in a property
// @Tags Units
// @Accept json
// @Produce json
// @Param property_id path int true "Property ID"
// @Param request body models.Unit true "Unit Data"
// @Success 201 {object} models.UnitResponse
// @Security BearerAuth
// @Router /properties/{property_id}/units [post]
func (h *UnitHandler) Create(c *gin.Context) {
	propertyID, _ := strconv.ParseUint(c.Param("property_id"), 10, 32)
	var unit models.Unit
	if err := c.ShouldBindJSON(&unit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit.PropertyID = uint(propertyID)

	if err := h.unitService.Create(c.Request.Context(), &unit); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"unit": unit.ToResponse()})
}

// @Summary Update Unit
// @Description Update an existing unit
// @Tags Units
// @Accept json
// @Produce json
// @Param unit_id path int true "Unit ID"
// @Param request body models.Unit true "Unit Data"
// @Success 200 {object} models.UnitResponse
// @Security BearerAuth
// @Router /properties/{property_id}/units/{unit_id} [put]
func (h *UnitHandler) Update(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("unit_id"), 10, 32)
	existing, err := h.unitService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unidad no encontrada"})
		return
	}

	var unit models.Unit
	if err := c.ShouldBindJSON(&unit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit.ID = existing.ID
	unit.PropertyID = existing.PropertyID

	if err := h.unitService.Update(c.Request.Context(), &unit); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unit": unit.ToResponse()})
}

// @Summary Delete Unit
// @Description Delete a unit without lease history
// @Tags Units
// @Accept json
// @Produce json
// @Param unit_id path int true "Unit ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /properties/{property_id}/units/{unit_id} [delete]
func (h *UnitHandler) Delete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("unit_id"), 10, 32)
	if err := h.unitService.Delete(c.Request.Context(), uint(id)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unidad eliminada"})
}

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// @Summary List Notifications
// @Description Get a paginated list of notifications for the current user
// @Tags Notifications
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) Index(c *gin.Context) {
	userID := middleware.GetUserID(c)
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))

	notifications, total, err := h.notificationService.FindByUser(c.Request.Context(), userID, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, n := range notifications {
		responses = append(responses, n.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"notifications": responses, "pagination": gin.H{"total": total}})
}

// @Summary Unread Notification Count
// @Description Get the number of unread notifications for the current user
// @Tags Notifications
// @Produce json
// @Success 200 {object} map[string]int64
// @Security BearerAuth
// @Router /notifications/unread_count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notificationService.CountUnread(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// @Summary Mark Notification Read
// @Description Mark a notification as read
// @Tags Notifications
// @Accept json
// @Produce json
// @Param notification_id path int true "Notification ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/{notification_id} [put]
func (h *NotificationHandler) Update(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("notification_id"), 10, 32)
	if err := h.notificationService.MarkAsRead(c.Request.Context(), uint(id), middleware.GetUserID(c)); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notificación marcada como leída"})
}

// @Summary Mark All Notifications Read
// @Description Mark all notifications as read for current user
// @Tags Notifications
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/mark_all_as_read [post]
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if err := h.notificationService.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Todas las notificaciones marcadas como leídas"})
}

// @Summary Delete Notification
// @Description Delete a notification
// @Tags Notifications
// @Accept json
// @Produce json
// @Param notification_id path int true "Notification ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/{notification_id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("notification_id"), 10, 32)
	if err := h.notificationService.Delete(c.Request.Context(), uint(id), middleware.GetUserID(c)); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notificación eliminada"})
}

type ReportHandler struct {
	reportService  *services.ReportService
	invoiceService *services.InvoiceService
	paymentService *services.PaymentService
	storage        *storage.LocalStorage
}

func NewReportHandler(reportService *services.ReportService, invoiceService *services.InvoiceService, paymentService *services.PaymentService, storage *storage.LocalStorage) *ReportHandler {
	return &ReportHandler{reportService: reportService, invoiceService: invoiceService, paymentService: paymentService, storage: storage}
}

// @Summary Collections Report
// @Description Download the monthly collections report as CSV
// @Tags Reports
// @Produce text/csv
// @Param month query int false "Month (1-12), defaults to current"
// @Param year query int false "Year, defaults to current"
// @Success 200 {file} file "collections.csv"
// @Security BearerAuth
// @Router /reports/collections_csv [get]
func (h *ReportHandler) CollectionsCSV(c *gin.Context) {
	now := time.Now()
	month, _ := strconv.Atoi(c.DefaultQuery("month", strconv.Itoa(int(now.Month()))))
	year, _ := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(now.Year())))

	buf, err := h.reportService.GenerateCollectionsCSV(c.Request.Context(), middleware.GetOrgID(c), month, year)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=collections_%d_%02d.csv", year, month))
	c.String(http.StatusOK, buf.String())
}

// @Summary Overdue Invoices Report
// @Description Download overdue invoices report as CSV
// @Tags Reports
// @Produce text/csv
// @Success 200 {file} file "overdue_invoices.csv"
// @Security BearerAuth
// @Router /reports/overdue_invoices_csv [get]
func (h *ReportHandler) OverdueInvoicesCSV(c *gin.Context) {
	buf, err := h.reportService.GenerateOverdueInvoicesCSV(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=overdue_invoices.csv")
	c.String(http.StatusOK, buf.String())
}

// @Summary Invoice PDF
// @Description Download an invoice as PDF
// @Tags Reports
// @Produce application/pdf
// @Param invoice_id path int true "Invoice ID"
// @Success 200 {file} file "invoice.pdf"
// @Failure 403,404 {object} map[string]string
// @Security BearerAuth
// @Router /invoices/{invoice_id}/pdf [get]
func (h *ReportHandler) InvoicePDF(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("invoice_id"), 10, 32)
	invoice, err := h.invoiceService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Factura no encontrada"})
		return
	}

	if !middleware.IsStaff(c) && invoice.Lease.TenantUserID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes permiso para ver esta factura"})
		return
	}

	buf, err := h.reportService.GenerateInvoicePDF(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice_%d.pdf", invoice.ID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// @Summary Payment Receipt PDF
// @Description Download the receipt for a completed payment as PDF
// @Tags Reports
// @Produce application/pdf
// @Param payment_id path int true "Payment ID"
// @Success 200 {file} file "receipt.pdf"
// @Failure 403,404,422 {object} map[string]string
// @Security BearerAuth
// @Router /payments/{payment_id}/receipt_pdf [get]
func (h *ReportHandler) ReceiptPDF(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("payment_id"), 10, 32)
	payment, err := h.paymentService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pago no encontrado"})
		return
	}

	if !middleware.IsStaff(c) && payment.Invoice.Lease.TenantUserID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes permiso para ver este recibo"})
		return
	}

	// Serve the cached rendering when present, completed payments never change
	if payment.ReceiptPath != nil && h.storage.Exists(*payment.ReceiptPath) {
		if fullPath, err := h.storage.SafeFullPath(*payment.ReceiptPath); err == nil {
			c.Header("Content-Type", "application/pdf")
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt_%d.pdf", payment.ID))
			c.File(fullPath)
			return
		}
	}

	buf, err := h.reportService.GenerateReceiptPDF(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	if path, err := h.storage.UploadFromBytes(buf.Bytes(), fmt.Sprintf("receipt_%d.pdf", payment.ID), "receipts"); err == nil {
		h.paymentService.UpdateReceiptPath(c.Request.Context(), payment.ID, path)
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt_%d.pdf", payment.ID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// @Summary Tenant Statement PDF
// @Description Download a tenant statement of account as PDF
// @Tags Reports
// @Produce application/pdf
// @Param user_id query int true "User ID"
// @Success 200 {file} file "statement.pdf"
// @Security BearerAuth
// @Router /reports/tenant_statement_pdf [get]
func (h *ReportHandler) TenantStatementPDF(c *gin.Context) {
	userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 32)
	if userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	buf, err := h.reportService.GenerateTenantStatementPDF(c.Request.Context(), uint(userID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=statement_%d.pdf", userID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// UserStatementPDF serves the same statement under /users/:user_id so tenants
// can download their own.
func (h *ReportHandler) UserStatementPDF(c *gin.Context) {
	userID, _ := strconv.ParseUint(c.Param("user_id"), 10, 32)

	buf, err := h.reportService.GenerateTenantStatementPDF(c.Request.Context(), uint(userID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=statement_%d.pdf", userID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Description Get a paginated list of audit logs, optionally filtered by entity
// @Tags Audit
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(50)
// @Param entity query string false "Filter by entity (Invoice, Payment, Lease...)"
// @Param entity_id query int false "Filter by entity ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /audits [get]
func (h *AuditHandler) Index(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	offset := (page - 1) * perPage
	entity := c.Query("entity")
	entityID, _ := strconv.ParseUint(c.Query("entity_id"), 10, 32)

	logs, total, err := h.auditService.List(c.Request.Context(), middleware.GetOrgID(c), entity, uint(entityID), perPage, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": logs, "pagination": gin.H{"total": total, "page": page, "per_page": perPage}})
}
