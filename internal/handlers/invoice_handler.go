package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtorrez/rentora-api/internal/middleware"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/internal/services"
)

type InvoiceHandler struct {
	invoiceService *services.InvoiceService
	exportService  *services.ExportService
}

func NewInvoiceHandler(invoiceService *services.InvoiceService, exportService *services.ExportService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, exportService: exportService}
}

// @Summary List Invoices
// @Description Get a paginated list of invoices. Tenants only see invoices of their own leases.
// @Tags Invoices
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status"
// @Param lease_id query int false "Filter by lease"
// @Param property_id query int false "Filter by property"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /invoices [get]
func (h *InvoiceHandler) Index(c *gin.Context) {
	query := h.parseQuery(c)

	invoices, total, err := h.invoiceService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, inv := range invoices {
		responses = append(responses, inv.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"invoices": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Invoice Stats
// @Description Get invoice counts per status for the organization
// @Tags Invoices
// @Produce json
// @Success 200 {object} repository.InvoiceStats
// @Security BearerAuth
// @Router /invoices/stats [get]
func (h *InvoiceHandler) Stats(c *gin.Context) {
	stats, err := h.invoiceService.GetStats(c.Request.Context(), middleware.GetOrgID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Monthly Billing Stats
// @Description Get the current month's invoiced, collected and overdue totals
// @Tags Invoices
// @Produce json
// @Success 200 {object} repository.BillingStats
// @Security BearerAuth
// @Router /invoices/monthly_stats [get]
func (h *InvoiceHandler) MonthlyStats(c *gin.Context) {
	stats, err := h.invoiceService.GetMonthlyStats(c.Request.Context(), middleware.GetOrgID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary Get Invoice
// @Description Get an invoice by ID with its lines and payments
// @Tags Invoices
// @Accept json
// @Produce json
// @Param invoice_id path int true "Invoice ID"
// @Success 200 {object} models.InvoiceResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /invoices/{invoice_id} [get]
func (h *InvoiceHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("invoice_id"), 10, 32)
	invoice, err := h.invoiceService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Factura no encontrada"})
		return
	}

	// Tenants may only see invoices of their own leases
	if !middleware.IsStaff(c) && invoice.Lease.TenantUserID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes permiso para ver esta factura"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": invoice.ToResponse()})
}

type GenerateInvoiceRequest struct {
	PeriodStart string `json:"period_start" binding:"required"`
	PeriodEnd   string `json:"period_end" binding:"required"`
}

// @Summary Generate Invoice
// @Description Generate (or regenerate while draft) the invoice of a lease for one billing period
// @Tags Invoices
// @Accept json
// @Produce json
// @Param lease_id path int true "Lease ID"
// @Param request body GenerateInvoiceRequest true "Billing Period (YYYY-MM-DD)"
// @Success 201 {object} models.InvoiceResponse
// @Failure 400,422 {object} map[string]string
// @Security BearerAuth
// @Router /leases/{lease_id}/invoices [post]
func (h *InvoiceHandler) Generate(c *gin.Context) {
	leaseID, _ := strconv.ParseUint(c.Param("lease_id"), 10, 32)
	var req GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_start y period_end son requeridos"})
		return
	}

	periodStart, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_start debe tener formato YYYY-MM-DD"})
		return
	}
	periodEnd, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_end debe tener formato YYYY-MM-DD"})
		return
	}

	invoice, err := h.invoiceService.Generate(c.Request.Context(), uint(leaseID), periodStart, periodEnd,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"invoice": invoice.ToResponse(), "message": "Factura generada"})
}

type IssueInvoiceRequest struct {
	LockVersion int `json:"lock_version" binding:"required"`
}

// @Summary Issue Invoice
// @Description Issue a draft invoice: assigns the invoice number, sets the due date and emails the tenant
// @Tags Invoices
// @Accept json
// @Produce json
// @Param invoice_id path int true "Invoice ID"
// @Param request body IssueInvoiceRequest true "Lock Version"
// @Success 200 {object} models.InvoiceResponse
// @Failure 409,422 {object} map[string]string
// @Security BearerAuth
// @Router /invoices/{invoice_id}/issue [post]
func (h *InvoiceHandler) Issue(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("invoice_id"), 10, 32)
	var req IssueInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lock_version es requerido"})
		return
	}

	invoice, err := h.invoiceService.Issue(c.Request.Context(), uint(id), req.LockVersion,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": invoice.ToResponse(), "message": "Factura emitida"})
}

type VoidInvoiceRequest struct {
	LockVersion int    `json:"lock_version" binding:"required"`
	Reason      string `json:"reason"`
}

// @Summary Void Invoice
// @Description Void an invoice with no recorded payments
// @Tags Invoices
// @Accept json
// @Produce json
// @Param invoice_id path int true "Invoice ID"
// @Param request body VoidInvoiceRequest true "Lock Version and Reason"
// @Success 200 {object} models.InvoiceResponse
// @Failure 409,422 {object} map[string]string
// @Security BearerAuth
// @Router /invoices/{invoice_id}/void [post]
func (h *InvoiceHandler) Void(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("invoice_id"), 10, 32)
	var req VoidInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lock_version es requerido"})
		return
	}

	invoice, err := h.invoiceService.Void(c.Request.Context(), uint(id), req.LockVersion, req.Reason,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": invoice.ToResponse(), "message": "Factura anulada"})
}

// @Summary List Lease Invoices
// @Description Get all invoices of a lease, newest period first
// @Tags Invoices
// @Accept json
// @Produce json
// @Param lease_id path int true "Lease ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /leases/{lease_id}/invoices [get]
func (h *InvoiceHandler) IndexByLease(c *gin.Context) {
	leaseID, _ := strconv.ParseUint(c.Param("lease_id"), 10, 32)
	invoices, err := h.invoiceService.FindByLease(c.Request.Context(), uint(leaseID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, inv := range invoices {
		responses = append(responses, inv.ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"invoices": responses})
}

// @Summary Export Invoices
// @Description Download the filtered invoice list as CSV or XLSX
// @Tags Invoices
// @Produce application/octet-stream
// @Param format query string true "Export format (csv, xlsx)"
// @Param status query string false "Filter by status"
// @Success 200 {file} file "invoices export"
// @Security BearerAuth
// @Router /invoices/export [get]
func (h *InvoiceHandler) Export(c *gin.Context) {
	format := c.Query("format")
	query := h.parseQuery(c)
	// Exports ignore pagination
	query.Page = 1
	query.PerPage = 10000

	invoices, _, err := h.invoiceService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var data []byte
	var filename string
	switch format {
	case "csv":
		data, filename, err = h.exportService.ExportInvoicesCSV(c.Request.Context(), invoices)
	case "xlsx":
		data, filename, err = h.exportService.ExportInvoicesXLSX(c.Request.Context(), invoices)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format (csv, xlsx)"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to generate %s: %v", format, err)})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (h *InvoiceHandler) parseQuery(c *gin.Context) *repository.InvoiceQuery {
	query := &repository.InvoiceQuery{ListQuery: repository.NewListQuery()}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")
	query.Status = c.Query("status")

	if leaseID, err := strconv.ParseUint(c.Query("lease_id"), 10, 32); err == nil {
		query.LeaseID = uint(leaseID)
	}
	if propertyID, err := strconv.ParseUint(c.Query("property_id"), 10, 32); err == nil {
		query.PropertyID = uint(propertyID)
	}

	// Parse sort parameter (format: field-direction)
	if sort := c.Query("sort"); sort != "" {
		parts := strings.Split(sort, "-")
		query.SortBy = parts[0]
		if len(parts) > 1 {
			query.SortDir = parts[1]
		}
	}

	query.OrgID = middleware.GetOrgID(c)
	query.UserID = middleware.GetUserID(c)
	query.IsAdmin = middleware.IsStaff(c)
	return query
}
