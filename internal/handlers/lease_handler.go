package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtorrez/rentora-api/internal/middleware"
	"github.com/dtorrez/rentora-api/internal/models"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/internal/services"
)

var errInvalidChargeDate = errors.New("effective_from y effective_to deben tener formato YYYY-MM-DD")

type LeaseHandler struct {
	leaseService   *services.LeaseService
	userService    *services.UserService
	invoiceService *services.InvoiceService
}

func NewLeaseHandler(leaseService *services.LeaseService, userService *services.UserService, invoiceService *services.InvoiceService) *LeaseHandler {
	return &LeaseHandler{leaseService: leaseService, userService: userService, invoiceService: invoiceService}
}

// @Summary List Leases
// @Description Get a paginated list of leases. Tenants only see their own.
// @Tags Leases
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search_term query string false "Search term"
// @Param status query string false "Filter by status"
// @Param unit_id query int false "Filter by unit"
// @Param property_id query int false "Filter by property"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /leases [get]
func (h *LeaseHandler) Index(c *gin.Context) {
	query := &repository.LeaseQuery{ListQuery: repository.NewListQuery()}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Search = c.Query("search_term")
	query.Status = c.Query("status")
	if unitID, err := strconv.ParseUint(c.Query("unit_id"), 10, 32); err == nil {
		query.UnitID = uint(unitID)
	}
	if propertyID, err := strconv.ParseUint(c.Query("property_id"), 10, 32); err == nil {
		query.PropertyID = uint(propertyID)
	}
	if sortParam := c.Query("sort"); sortParam != "" {
		parts := strings.Split(sortParam, "-")
		if len(parts) == 2 {
			query.SortBy = parts[0]
			query.SortDir = parts[1]
		}
	}
	query.OrgID = middleware.GetOrgID(c)
	if !middleware.IsStaff(c) {
		query.TenantUserID = middleware.GetUserID(c)
	}

	leases, total, err := h.leaseService.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var responses []interface{}
	for _, lease := range leases {
		responses = append(responses, lease.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"leases": responses,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
		},
	})
}

// @Summary Get Lease
// @Description Get a lease by ID with unit, tenant and charges
// @Tags Leases
// @Accept json
// @Produce json
// @Param lease_id path int true "Lease ID"
// @Success 200 {object} models.LeaseResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /leases/{lease_id} [get]
func (h *LeaseHandler) Show(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("lease_id"), 10, 32)
	lease, err := h.leaseService.FindByIDWithDetails(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato de alquiler no encontrado"})
		return
	}

	if !middleware.IsStaff(c) && lease.TenantUserID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes permiso para ver este contrato"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"lease": lease.ToResponse()})
}

// TenantData carries the inline tenant when the lease is registered for a
// person without an account yet.
type TenantData struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Identity string `json:"identity"`
}

type CreateLeaseRequest struct {
	UnitID        uint            `json:"unit_id" binding:"required"`
	TenantUserID  uint            `json:"tenant_user_id"`
	StartDate     string          `json:"start_date" binding:"required"` // YYYY-MM-DD
	EndDate       string          `json:"end_date"`
	BillingDay    int             `json:"billing_day"`
	DueDays       int             `json:"due_days"`
	Currency      string          `json:"currency"`
	DepositAmount *float64        `json:"deposit_amount"`
	Note          string          `json:"note"`
	Charges       []ChargeRequest `json:"charges"`
	Tenant        *TenantData     `json:"tenant"`
}

// @Summary Create Lease
// @Description Create a new lease, optionally registering the tenant inline. Without explicit charges a monthly rent charge is created from the unit's rent.
// @Tags Leases
// @Accept json
// @Produce json
// @Param request body CreateLeaseRequest true "Lease Data"
// @Success 201 {object} models.LeaseResponse
// @Failure 400,422 {object} map[string]string
// @Security BearerAuth
// @Router /leases [post]
func (h *LeaseHandler) Create(c *gin.Context) {
	creatorID := middleware.GetUserID(c)
	orgID := middleware.GetOrgID(c)

	var req CreateLeaseRequest
	if err := BindNestedOrFlat(c, "lease", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unit_id y start_date son requeridos"})
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date debe tener formato YYYY-MM-DD"})
		return
	}
	var endDate *time.Time
	if req.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date debe tener formato YYYY-MM-DD"})
			return
		}
		endDate = &parsed
	}

	// Resolve the tenant: an existing user by ID, or find-or-create by email.
	var tenantID uint
	if req.TenantUserID != 0 {
		user, err := h.userService.FindByID(c.Request.Context(), req.TenantUserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Inquilino no encontrado"})
			return
		}
		if !user.IsActive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "El usuario no está activo y no puede tener contratos"})
			return
		}
		tenantID = user.ID
	} else {
		if req.Tenant == nil || strings.TrimSpace(req.Tenant.Email) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_user_id o los datos del inquilino son requeridos"})
			return
		}
		email := strings.TrimSpace(req.Tenant.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "El correo electrónico no tiene un formato válido"})
			return
		}

		existing, err := h.userService.FindByEmail(c.Request.Context(), email)
		if err == nil && existing != nil {
			tenantID = existing.ID
		} else {
			newUser := &models.User{
				OrgID:    orgID,
				Email:    email,
				FullName: req.Tenant.FullName,
				Phone:    req.Tenant.Phone,
				Identity: req.Tenant.Identity,
				Role:     models.RoleTenant,
				Status:   models.StatusActive,
			}
			// Temp password, the tenant changes it on first login
			tempPassword, err := services.GenerateTempPassword()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generando contraseña temporal"})
				return
			}
			if err := h.userService.Create(c.Request.Context(), newUser, tempPassword, creatorID); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creando inquilino: " + err.Error()})
				return
			}
			tenantID = newUser.ID
		}
	}

	lease := &models.Lease{
		OrgID:         orgID,
		UnitID:        req.UnitID,
		TenantUserID:  tenantID,
		CreatorID:     &creatorID,
		StartDate:     startDate,
		EndDate:       endDate,
		BillingDay:    req.BillingDay,
		DueDays:       req.DueDays,
		Currency:      req.Currency,
		DepositAmount: req.DepositAmount,
	}
	if req.Note != "" {
		lease.Note = &req.Note
	}
	for _, chargeReq := range req.Charges {
		charge, err := chargeFromRequest(&chargeReq)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		lease.Charges = append(lease.Charges, *charge)
	}

	if err := h.leaseService.Create(c.Request.Context(), lease,
		creatorID,
		c.ClientIP(),
		c.Request.UserAgent(),
	); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"lease": lease.ToResponse(), "message": "Contrato de alquiler creado exitosamente"})
}

type UpdateLeaseRequest struct {
	EndDate       *string  `json:"end_date"` // YYYY-MM-DD, empty string clears it
	BillingDay    *int     `json:"billing_day"`
	DueDays       *int     `json:"due_days"`
	DepositAmount *float64 `json:"deposit_amount"`
	Note          *string  `json:"note"`
}

// @Summary Update Lease
// @Description Update lease terms (end_date, billing_day, due_days, deposit, note). Allowed only while the lease is active.
// @Tags Leases
// @Accept json
// @Produce json
// @Param lease_id path int true "Lease ID"
// @Param request body UpdateLeaseRequest true "Lease Data"
// @Success 200 {object} models.LeaseResponse
// @Failure 400,403,404,409 {object} map[string]string
// @Security BearerAuth
// @Router /leases/{lease_id} [patch]
func (h *LeaseHandler) Update(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("lease_id"), 10, 32)
	lease, err := h.leaseService.FindByIDWithDetails(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contrato de alquiler no encontrado"})
		return
	}

	if lease.Status != models.LeaseStatusActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Solo se pueden editar contratos activos"})
		return
	}

	var req UpdateLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.EndDate != nil {
		s := strings.TrimSpace(*req.EndDate)
		if s == "" {
			lease.EndDate = nil
		} else {
			parsed, err := time.Parse("2006-01-02", s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "end_date debe tener formato YYYY-MM-DD"})
				return
			}
			lease.EndDate = &parsed
		}
	}
	if req.BillingDay != nil {
		lease.BillingDay = *req.BillingDay
	}
	if req.DueDays != nil {
		lease.DueDays = *req.DueDays
	}
	if req.DepositAmount != nil {
		lease.DepositAmount = req.DepositAmount
	}
	if req.Note != nil {
		lease.Note = req.Note
	}

	if err := h.leaseService.Update(c.Request.Context(), lease); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lease": lease.ToResponse(), "message": "Contrato actualizado"})
}

type TerminateLeaseRequest struct {
	LockVersion   int    `json:"lock_version" binding:"required"`
	EffectiveDate string `json:"effective_date"` // YYYY-MM-DD, defaults to today
	Note          string `json:"note"`
}

// @Summary Terminate Lease
// @Description Terminate an active lease. The effective date bounds the final prorated invoice and frees the unit.
// @Tags Leases
// @Accept json
// @Produce json
// @Param lease_id path int true "Lease ID"
// @Param request body TerminateLeaseRequest true "Lock Version, Effective Date and Note"
// @Success 200 {object} models.LeaseResponse
// @Failure 400,409,422 {object} map[string]string
// @Security BearerAuth
// @Router /leases/{lease_id}/terminate [post]
func (h *LeaseHandler) Terminate(c *gin.Context) {
	id, _ := strconv.ParseUint(c.Param("lease_id"), 10, 32)
	var req TerminateLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lock_version es requerido"})
		return
	}

	var effectiveDate *time.Time
	if req.EffectiveDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EffectiveDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "effective_date debe tener formato YYYY-MM-DD"})
			return
		}
		effectiveDate = &parsed
	}

	lease, err := h.leaseService.Terminate(c.Request.Context(), uint(id), req.LockVersion, effectiveDate, req.Note,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lease": lease.ToResponse(), "message": "Contrato terminado"})
}

type ChargeRequest struct {
	ChargeType      string  `json:"charge_type" binding:"required"`
	Description     string  `json:"description"`
	Amount          float64 `json:"amount" binding:"required"`
	TaxRate         float64 `json:"tax_rate"`
	ProrationMethod string  `json:"proration_method"`
	EffectiveFrom   string  `json:"effective_from"` // YYYY-MM-DD
	EffectiveTo     string  `json:"effective_to"`
}

func chargeFromRequest(req *ChargeRequest) (*models.LeaseCharge, error) {
	charge := &models.LeaseCharge{
		ChargeType:      req.ChargeType,
		Description:     req.Description,
		Amount:          req.Amount,
		TaxRate:         req.TaxRate,
		ProrationMethod: req.ProrationMethod,
	}
	if req.EffectiveFrom != "" {
		parsed, err := time.Parse("2006-01-02", req.EffectiveFrom)
		if err != nil {
			return nil, errInvalidChargeDate
		}
		charge.EffectiveFrom = &parsed
	}
	if req.EffectiveTo != "" {
		parsed, err := time.Parse("2006-01-02", req.EffectiveTo)
		if err != nil {
			return nil, errInvalidChargeDate
		}
		charge.EffectiveTo = &parsed
	}
	return charge, nil
}

// @Summary Add Lease Charge
// @Description Add a recurring charge (rent, maintenance, parking, water, other) to a lease
// @Tags Leases
// @Accept json
// @Produce json
// @Param lease_id path int true "Lease ID"
// @Param request body ChargeRequest true "Charge Data"
// @Success 201 {object} map[string]interface{}
// @Failure 400,404,422 {object} map[string]string
// @Security BearerAuth
// @Router /leases/{lease_id}/charges [post]
func (h *LeaseHandler) AddCharge(c *gin.Context) {
	leaseID, _ := strconv.ParseUint(c.Param("lease_id"), 10, 32)
	var req ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "charge_type y amount son requeridos"})
		return
	}

	charge, err := chargeFromRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.leaseService.AddCharge(c.Request.Context(), uint(leaseID), charge,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"charge": charge.ToResponse(), "message": "Cargo agregado"})
}

// @Summary Update Lease Charge
// @Description Update a charge on a lease. Future invoices pick up the new amount.
// @Tags Leases
// @Accept json
// @Produce json
// @Param lease_id path int true "Lease ID"
// @Param charge_id path int true "Charge ID"
// @Param request body ChargeRequest true "Charge Data"
// @Success 200 {object} map[string]interface{}
// @Failure 400,404,422 {object} map[string]string
// @Security BearerAuth
// @Router /leases/{lease_id}/charges/{charge_id} [patch]
func (h *LeaseHandler) UpdateCharge(c *gin.Context) {
	leaseID, _ := strconv.ParseUint(c.Param("lease_id"), 10, 32)
	chargeID, _ := strconv.ParseUint(c.Param("charge_id"), 10, 32)
	var req ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "charge_type y amount son requeridos"})
		return
	}

	charge, err := chargeFromRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.leaseService.UpdateCharge(c.Request.Context(), uint(leaseID), uint(chargeID), charge,
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"charge": charge.ToResponse(), "message": "Cargo actualizado"})
}

// @Summary Remove Lease Charge
// @Description Remove a charge from a lease. Issued invoices keep their lines.
// @Tags Leases
// @Accept json
// @Produce json
// @Param lease_id path int true "Lease ID"
// @Param charge_id path int true "Charge ID"
// @Success 200 {object} map[string]string
// @Failure 404,422 {object} map[string]string
// @Security BearerAuth
// @Router /leases/{lease_id}/charges/{charge_id} [delete]
func (h *LeaseHandler) RemoveCharge(c *gin.Context) {
	leaseID, _ := strconv.ParseUint(c.Param("lease_id"), 10, 32)
	chargeID, _ := strconv.ParseUint(c.Param("charge_id"), 10, 32)

	if err := h.leaseService.RemoveCharge(c.Request.Context(), uint(leaseID), uint(chargeID),
		middleware.GetUserID(c),
		c.ClientIP(),
		c.Request.UserAgent(),
	); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cargo eliminado"})
}
