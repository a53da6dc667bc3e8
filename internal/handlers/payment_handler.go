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

type PaymentHandler struct {
	paymentService *services.PaymentService
	exportService  *services.ExportService
}

func NewPaymentHandler(paymentService *services.PaymentService, exportService *services.ExportService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, exportService: exportService}
}

// @Summary List Payments
// @Description Get a paginated list of payments. Tenants only see payments of their own leases.
// @Tags Payments
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status"
// @Param invoice_id query int false "Filter by invoice"
// @Param lease_id query int false "Filter by lease"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /payments [get]
func (h *PaymentHandler) Index(c *gin.Context) {
	query := h.parseQuery(c)

	payments, total, err := h.paymentService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, p := range payments {
		responses = append(responses, p.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Get Payment
// @Description Get a payment by ID
// @Tags Payments
// @Accept json
// @Produce json
// @Param payment_id path int true "Payment ID"
// @Success 200 {object} models.PaymentResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /payments/{payment_id} [get]
func (h *PaymentHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("payment_id"), 10, 32)
	payment, err := h.paymentService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pago no encontrado"})
		return
	}

	if !middleware.IsStaff(c) && payment.Invoice.Lease.TenantUserID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes permiso para ver este pago"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment.ToResponse()})
}

type RecordPaymentRequest struct {
	Amount         float64 `json:"amount" binding:"required"`
	PaymentMode    string  `json:"payment_mode" binding:"required"`
	PaymentDate    string  `json:"payment_date"` // YYYY-MM-DD, defaults to today
	TransactionRef string  `json:"transaction_ref"`
	PayerName      string  `json:"payer_name"`
	Notes          string  `json:"notes"`
	GatewayTxnID   string  `json:"gateway_txn_id"`
	GatewayName    string  `json:"gateway_name"`
}

// @Summary Record Payment
// @Description Record a payment against an invoice. Cash and referenced payments settle immediately; gateway payments stay pending until finalized.
// @Tags Payments
// @Accept json
// @Produce json
// @Param invoice_id path int true "Invoice ID"
// @Param request body RecordPaymentRequest true "Payment Data"
// @Success 201 {object} models.PaymentResponse
// @Failure 400,422 {object} map[string]string
// @Security BearerAuth
// @Router /invoices/{invoice_id}/payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	invoiceID, _ := strconv.ParseUint(c.Param("invoice_id"), 10, 32)
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Monto y modo de pago son requeridos"})
		return
	}

	input := services.RecordPaymentInput{
		InvoiceID:      uint(invoiceID),
		Amount:         req.Amount,
		PaymentMode:    req.PaymentMode,
		TransactionRef: req.TransactionRef,
		PayerName:      req.PayerName,
		Notes:          req.Notes,
		GatewayTxnID:   req.GatewayTxnID,
		GatewayName:    req.GatewayName,
	}
	if req.PaymentDate != "" {
		parsed, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payment_date debe tener formato YYYY-MM-DD"})
			return
		}
		input.PaymentDate = parsed
	}

	payment, err := h.paymentService.RecordPayment(c.Request.Context(), input,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"payment": payment.ToResponse(), "message": "Pago registrado"})
}

type FinalizePaymentRequest struct {
	Success       *bool  `json:"success" binding:"required"`
	FailureReason string `json:"failure_reason"`
}

// @Summary Finalize Gateway Payment
// @Description Settle or fail a pending gateway payment once the gateway outcome is known
// @Tags Payments
// @Accept json
// @Produce json
// @Param payment_id path int true "Payment ID"
// @Param request body FinalizePaymentRequest true "Gateway Outcome"
// @Success 200 {object} models.PaymentResponse
// @Failure 400,422 {object} map[string]string
// @Security BearerAuth
// @Router /payments/{payment_id}/finalize [post]
func (h *PaymentHandler) Finalize(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("payment_id"), 10, 32)
	var req FinalizePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "success es requerido"})
		return
	}

	payment, err := h.paymentService.FinalizeGatewayPayment(c.Request.Context(), uint(id), *req.Success, req.FailureReason,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Pago completado"
	if !*req.Success {
		message = "Pago marcado como fallido"
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment.ToResponse(), "message": message})
}

// @Summary List Invoice Payments
// @Description Get all payments recorded against an invoice
// @Tags Payments
// @Accept json
// @Produce json
// @Param invoice_id path int true "Invoice ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /invoices/{invoice_id}/payments [get]
func (h *PaymentHandler) IndexByInvoice(c *gin.Context) {
	invoiceID, _ := strconv.ParseUint(c.Param("invoice_id"), 10, 32)
	payments, err := h.paymentService.FindByInvoice(c.Request.Context(), uint(invoiceID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, p := range payments {
		responses = append(responses, p.ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"payments": responses})
}

// @Summary Export Payments
// @Description Download the filtered payment list as CSV or XLSX
// @Tags Payments
// @Produce application/octet-stream
// @Param format query string true "Export format (csv, xlsx)"
// @Param status query string false "Filter by status"
// @Success 200 {file} file "payments export"
// @Security BearerAuth
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	format := c.Query("format")
	query := h.parseQuery(c)
	// Exports ignore pagination
	query.Page = 1
	query.PerPage = 10000

	payments, _, err := h.paymentService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var data []byte
	var filename string
	switch format {
	case "csv":
		data, filename, err = h.exportService.ExportPaymentsCSV(c.Request.Context(), payments)
	case "xlsx":
		data, filename, err = h.exportService.ExportPaymentsXLSX(c.Request.Context(), payments)
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

func (h *PaymentHandler) parseQuery(c *gin.Context) *repository.PaymentQuery {
	query := &repository.PaymentQuery{ListQuery: repository.NewListQuery()}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")
	query.Status = c.Query("status")
	query.Filters["start_date"] = c.Query("start_date")
	query.Filters["end_date"] = c.Query("end_date")

	if invoiceID, err := strconv.ParseUint(c.Query("invoice_id"), 10, 32); err == nil {
		query.InvoiceID = uint(invoiceID)
	}
	if leaseID, err := strconv.ParseUint(c.Query("lease_id"), 10, 32); err == nil {
		query.LeaseID = uint(leaseID)
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
