package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtorrez/rentora-api/internal/middleware"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/internal/services"
	"github.com/dtorrez/rentora-api/internal/storage"
)

type ConfirmationHandler struct {
	confirmationService *services.ConfirmationService
}

func NewConfirmationHandler(confirmationService *services.ConfirmationService) *ConfirmationHandler {
	return &ConfirmationHandler{confirmationService: confirmationService}
}

// @Summary List Confirmation Requests
// @Description Get a paginated list of payment confirmation requests, pending first. Tenants only see their own.
// @Tags Confirmations
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status"
// @Param invoice_id query int false "Filter by invoice"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /confirmations [get]
func (h *ConfirmationHandler) Index(c *gin.Context) {
	query := &repository.ConfirmationQuery{ListQuery: repository.NewListQuery()}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Status = c.Query("status")
	if invoiceID, err := strconv.ParseUint(c.Query("invoice_id"), 10, 32); err == nil {
		query.InvoiceID = uint(invoiceID)
	}
	query.OrgID = middleware.GetOrgID(c)
	query.UserID = middleware.GetUserID(c)
	query.IsAdmin = middleware.IsStaff(c)

	requests, total, err := h.confirmationService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, r := range requests {
		responses = append(responses, r.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"confirmation_requests": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Pending Confirmation Count
// @Description Get the number of confirmation requests awaiting review
// @Tags Confirmations
// @Produce json
// @Success 200 {object} map[string]int64
// @Security BearerAuth
// @Router /confirmations/pending_count [get]
func (h *ConfirmationHandler) PendingCount(c *gin.Context) {
	count, err := h.confirmationService.CountPending(c.Request.Context(), middleware.GetOrgID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending_count": count})
}

// @Summary Get Confirmation Request
// @Description Get a confirmation request by ID
// @Tags Confirmations
// @Accept json
// @Produce json
// @Param confirmation_id path int true "Confirmation Request ID"
// @Success 200 {object} models.ConfirmationRequestResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /confirmations/{confirmation_id} [get]
func (h *ConfirmationHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("confirmation_id"), 10, 32)
	request, err := h.confirmationService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Solicitud no encontrada"})
		return
	}

	if !middleware.IsStaff(c) && request.SubmittedByID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes permiso para ver esta solicitud"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"confirmation_request": request.ToResponse()})
}

// @Summary Submit Confirmation Request
// @Description Report a payment made outside the system (bank deposit, transfer) with an optional proof file for staff review
// @Tags Confirmations
// @Accept multipart/form-data
// @Produce json
// @Param invoice_id formData int true "Invoice ID"
// @Param amount formData number true "Amount Paid"
// @Param payment_date formData string false "Payment Date (YYYY-MM-DD)"
// @Param receipt_number formData string false "Bank Receipt Number"
// @Param notes formData string false "Notes"
// @Param proof formData file false "Proof File (JPG, PNG or PDF)"
// @Success 201 {object} models.ConfirmationRequestResponse
// @Failure 400,422 {object} map[string]string
// @Security BearerAuth
// @Router /confirmations [post]
func (h *ConfirmationHandler) Create(c *gin.Context) {
	invoiceID, _ := strconv.ParseUint(c.PostForm("invoice_id"), 10, 32)
	if invoiceID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invoice_id es requerido"})
		return
	}
	amount, _ := strconv.ParseFloat(c.PostForm("amount"), 64)

	input := services.CreateConfirmationInput{
		InvoiceID:     uint(invoiceID),
		Amount:        amount,
		ReceiptNumber: c.PostForm("receipt_number"),
		Notes:         c.PostForm("notes"),
	}
	if dateStr := c.PostForm("payment_date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payment_date debe tener formato YYYY-MM-DD"})
			return
		}
		input.PaymentDate = parsed
	}

	proof, proofHeader, err := c.Request.FormFile("proof")
	if err == nil {
		defer proof.Close()
		if c.Request.ContentLength > 0 && c.Request.ContentLength > storage.MaxFileSize() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Archivo demasiado grande"})
			return
		}
		if !storage.IsValidContentType(proofHeader.Header.Get("Content-Type")) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Tipo de archivo inválido"})
			return
		}
	} else {
		proof, proofHeader = nil, nil
	}

	request, err := h.confirmationService.Create(c.Request.Context(), input, proof, proofHeader,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"confirmation_request": request.ToResponse(),
		"message":              "Solicitud de confirmación enviada",
	})
}

type ReviewConfirmationRequest struct {
	LockVersion    int    `json:"lock_version" binding:"required"`
	ReviewResponse string `json:"review_response"`
}

// @Summary Confirm Payment Request
// @Description Accept a pending confirmation request: a completed payment is created and applied to the invoice
// @Tags Confirmations
// @Accept json
// @Produce json
// @Param confirmation_id path int true "Confirmation Request ID"
// @Param request body ReviewConfirmationRequest true "Lock Version and Response"
// @Success 200 {object} models.ConfirmationRequestResponse
// @Failure 409,422 {object} map[string]string
// @Security BearerAuth
// @Router /confirmations/{confirmation_id}/confirm [post]
func (h *ConfirmationHandler) Confirm(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("confirmation_id"), 10, 32)
	var req ReviewConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lock_version es requerido"})
		return
	}

	request, err := h.confirmationService.Confirm(c.Request.Context(), uint(id), req.LockVersion, req.ReviewResponse,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"confirmation_request": request.ToResponse(), "message": "Pago confirmado"})
}

// @Summary Reject Payment Request
// @Description Reject a pending confirmation request. A review response explaining the rejection is required.
// @Tags Confirmations
// @Accept json
// @Produce json
// @Param confirmation_id path int true "Confirmation Request ID"
// @Param request body ReviewConfirmationRequest true "Lock Version and Response"
// @Success 200 {object} models.ConfirmationRequestResponse
// @Failure 400,409,422 {object} map[string]string
// @Security BearerAuth
// @Router /confirmations/{confirmation_id}/reject [post]
func (h *ConfirmationHandler) Reject(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("confirmation_id"), 10, 32)
	var req ReviewConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lock_version es requerido"})
		return
	}

	request, err := h.confirmationService.Reject(c.Request.Context(), uint(id), req.LockVersion, req.ReviewResponse,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"confirmation_request": request.ToResponse(), "message": "Solicitud rechazada"})
}

// @Summary Download Proof File
// @Description Download the proof of payment attached to a confirmation request
// @Tags Confirmations
// @Produce application/octet-stream
// @Param confirmation_id path int true "Confirmation Request ID"
// @Success 200 {file} file "proof"
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /confirmations/{confirmation_id}/proof [get]
func (h *ConfirmationHandler) Proof(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("confirmation_id"), 10, 32)
	request, err := h.confirmationService.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Solicitud no encontrada"})
		return
	}

	if !middleware.IsStaff(c) && request.SubmittedByID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes permiso para ver este comprobante"})
		return
	}

	fullPath, err := h.confirmationService.ProofFilePath(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comprobante no encontrado"})
		return
	}

	c.File(fullPath)
}
